package ingredient

import (
	"context"
	"errors"
	"fmt"

	"github.com/derlev/sandwich-spawnpoint/internal/middleware"
	"github.com/derlev/sandwich-spawnpoint/internal/models"
	"github.com/derlev/sandwich-spawnpoint/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound = errors.New("ingredient does not exist")
	ErrInUse    = errors.New("ingredient is referenced by orders")
)

type ListQuery struct {
	All string `form:"all" binding:"omitempty,oneof=true false"`
}

type AddDTO struct {
	Name    string `json:"name"    binding:"required"`
	Type    string `json:"type"    binding:"required,oneof=BREAD CHEESE MEAT SALAD TOMATO ONION SAUCE SPECIAL"`
	Enabled *bool  `json:"enabled"`
}

type ModifyDTO struct {
	Name    *string `json:"name"`
	Type    *string `json:"type"    binding:"omitempty,oneof=BREAD CHEESE MEAT SALAD TOMATO ONION SAUCE SPECIAL"`
	Enabled *bool   `json:"enabled"`
}

type orderCount struct {
	Orders int64 `json:"orders"`
}

// Listed is an ingredient with the number of orders referencing it.
type Listed struct {
	models.IngredientModel
	Count orderCount `json:"_count"`
}

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// List returns ingredients with their order counts. Disabled ones are only included with all.
func (s *Service) List(ctx context.Context, all bool) ([]Listed, error) {
	db := s.db.WithContext(ctx).Order(clause.OrderByColumn{Column: clause.Column{Name: "createdAt"}})
	if !all {
		db = db.Where(map[string]interface{}{"enabled": true})
	}
	var rows []models.IngredientModel
	if err := db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}

	counts, err := s.orderCounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Listed, len(rows))
	for i, row := range rows {
		out[i] = Listed{IngredientModel: row, Count: orderCount{Orders: counts[row.ID]}}
	}
	return out, nil
}

func (s *Service) orderCounts(ctx context.Context) (map[string]int64, error) {
	var refs []string
	err := s.db.WithContext(ctx).Model(&models.IngredientOnOrderModel{}).Pluck("ingredientId", &refs).Error
	if err != nil {
		return nil, fmt.Errorf("count ingredient orders: %w", err)
	}
	counts := make(map[string]int64)
	for _, id := range refs {
		counts[id]++
	}
	return counts, nil
}

func (s *Service) Add(ctx context.Context, dto AddDTO) (*models.IngredientModel, error) {
	row := models.IngredientModel{Name: dto.Name, Type: models.IngredientType(dto.Type), Enabled: true}
	if dto.Enabled != nil {
		row.Enabled = *dto.Enabled
	}
	// every column is written so an explicit false is not replaced by the column default
	if err := s.db.WithContext(ctx).Select("*").Create(&row).Error; err != nil {
		return nil, fmt.Errorf("add ingredient: %w", err)
	}
	return &row, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.IngredientModel, error) {
	var row models.IngredientModel
	err := s.db.WithContext(ctx).Where(map[string]interface{}{"id": id}).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load ingredient: %w", err)
	}
	return &row, nil
}

func (s *Service) Modify(ctx context.Context, id string, dto ModifyDTO) (*models.IngredientModel, error) {
	row, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if dto.Name != nil {
		updates["name"] = *dto.Name
	}
	if dto.Type != nil {
		updates["type"] = *dto.Type
	}
	if dto.Enabled != nil {
		updates["enabled"] = *dto.Enabled
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(row).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("modify ingredient: %w", err)
		}
	}
	return s.Get(ctx, id)
}

// Delete refuses to remove an ingredient that any order still references.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	var refs int64
	err := s.db.WithContext(ctx).Model(&models.IngredientOnOrderModel{}).
		Where(map[string]interface{}{"ingredientId": id}).
		Count(&refs).Error
	if err != nil {
		return fmt.Errorf("count ingredient orders: %w", err)
	}
	if refs > 0 {
		return ErrInUse
	}
	if err := s.db.WithContext(ctx).Where(map[string]interface{}{"id": id}).Delete(&models.IngredientModel{}).Error; err != nil {
		return fmt.Errorf("delete ingredient: %w", err)
	}
	return nil
}

type Handler struct {
	svc    *Service
	tokens middleware.TokenValidator
}

func NewHandler(svc *Service, tokens middleware.TokenValidator) *Handler {
	return &Handler{svc: svc, tokens: tokens}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/ingredient")
	g.GET("/list", middleware.Auth(h.tokens), h.list)

	a := g.Group("", middleware.Auth(h.tokens, models.RoleAdmin))
	a.POST("/add", h.add)
	a.PATCH("/modify/:id", h.modify)
	a.DELETE("/delete/:id", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	var q ListQuery
	if !response.BindQuery(c, &q) {
		return
	}
	all := q.All == "true"
	if all && !middleware.HasRole(c, models.RoleAdmin) {
		response.Forbidden(c, "You are not allowed to fetch all ingredients")
		return
	}
	rows, err := h.svc.List(c.Request.Context(), all)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, rows)
}

func (h *Handler) add(c *gin.Context) {
	var dto AddDTO
	if !response.BindJSON(c, &dto) {
		return
	}
	row, err := h.svc.Add(c.Request.Context(), dto)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, row)
}

func (h *Handler) modify(c *gin.Context) {
	id, ok := response.PathID(c)
	if !ok {
		return
	}
	var dto ModifyDTO
	if !response.BindJSON(c, &dto) {
		return
	}
	row, err := h.svc.Modify(c.Request.Context(), id, dto)
	if err != nil {
		response.Fail(c, mapError(err))
		return
	}
	response.OK(c, row)
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := response.PathID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		response.Fail(c, mapError(err))
		return
	}
	response.NoContent(c)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return response.ErrNotFound("Ingredient does not exist")
	case errors.Is(err, ErrInUse):
		return response.ErrBadRequest("Ingredient cannot be deleted. Has orders assigned!")
	}
	return err
}
