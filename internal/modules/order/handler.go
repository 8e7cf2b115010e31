package order

import (
	"errors"

	"github.com/derlev/sandwich-spawnpoint/internal/middleware"
	"github.com/derlev/sandwich-spawnpoint/internal/models"
	"github.com/derlev/sandwich-spawnpoint/internal/modules/appconfig"
	"github.com/derlev/sandwich-spawnpoint/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	svc    *Service
	config *appconfig.Store
	tokens middleware.TokenValidator
	log    *zap.Logger
}

func NewHandler(svc *Service, config *appconfig.Store, tokens middleware.TokenValidator, log *zap.Logger) *Handler {
	return &Handler{svc: svc, config: config, tokens: tokens, log: log}
}

// RegisterRoutes mounts the order routes. writeMW runs in front of order creation only.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, writeMW ...gin.HandlerFunc) {
	g := rg.Group("/order")
	authed := g.Group("", middleware.Auth(h.tokens))
	authed.POST("/new", append(append([]gin.HandlerFunc{}, writeMW...), h.create)...)
	authed.GET("/mine", h.mine)
	authed.DELETE("/cancel/:id", h.cancel)

	admin := g.Group("", middleware.Auth(h.tokens, models.RoleAdmin))
	admin.GET("/list", h.list)
	admin.PATCH("/modify/:id", h.modify)
	admin.DELETE("/delete/:id", h.delete)
}

func (h *Handler) create(c *gin.Context) {
	allowed, err := h.config.Bool(c.Request.Context(), appconfig.KeyAllowOrders)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if !allowed {
		response.Forbidden(c, "Orders are currently disabled")
		return
	}

	var dto CreateDTO
	if !response.BindJSON(c, &dto) {
		return
	}
	claim, _ := middleware.CurrentSession(c)
	o, err := h.svc.Create(c.Request.Context(), claim.Subject, dto.Ingredients)
	if err != nil {
		response.Fail(c, mapError(err))
		return
	}
	h.log.Debug("order placed", zap.String("order", o.ID), zap.String("uid", claim.Subject), zap.Int("lines", len(o.Ingredients)))
	response.Created(c, o)
}

func (h *Handler) mine(c *gin.Context) {
	claim, _ := middleware.CurrentSession(c)
	orders, err := h.svc.Mine(c.Request.Context(), claim.Subject)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, orders)
}

func (h *Handler) cancel(c *gin.Context) {
	id, ok := response.PathID(c)
	if !ok {
		return
	}
	claim, _ := middleware.CurrentSession(c)
	if err := h.svc.Cancel(c.Request.Context(), claim.Subject, id); err != nil {
		response.Fail(c, mapError(err))
		return
	}
	response.NoContent(c)
}

func (h *Handler) list(c *gin.Context) {
	var q ListQuery
	if !response.BindQuery(c, &q) {
		return
	}
	orders, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, orders)
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
	o, err := h.svc.Modify(c.Request.Context(), id, dto)
	if err != nil {
		response.Fail(c, mapError(err))
		return
	}
	response.OK(c, o)
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
		return response.ErrNotFound("Order does not exist")
	case errors.Is(err, ErrNotOwner):
		return response.ErrForbidden("You can only cancel your own orders")
	case errors.Is(err, ErrNotCancellable):
		return response.ErrBadRequest("Only queued orders can be cancelled")
	case errors.Is(err, ErrUnknownIngredient):
		return response.ErrBadRequest("Some ingredients do not exist or are disabled")
	}
	return err
}
