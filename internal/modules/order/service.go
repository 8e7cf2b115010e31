package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/derlev/sandwich-spawnpoint/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order(clause.OrderByColumn{Column: clause.Column{Name: "createdAt"}, Desc: true})
}

func withIngredients(db *gorm.DB) *gorm.DB {
	return db.Preload("Ingredients.Ingredient")
}

// Create places an order for userID. Every ingredient must exist and be enabled.
func (s *Service) Create(ctx context.Context, userID string, ingredientIDs []string) (*models.OrderModel, error) {
	lines := tally(ingredientIDs)
	var id string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkIngredients(tx, lines, true); err != nil {
			return err
		}
		o := models.OrderModel{UserID: userID, Status: models.OrderInQueue}
		if err := tx.Create(&o).Error; err != nil {
			return err
		}
		id = o.ID
		return insertLines(tx, id, lines)
	})
	if err != nil {
		return nil, wrap("create order", err)
	}
	return s.Get(ctx, id)
}

func checkIngredients(tx *gorm.DB, lines []line, enabledOnly bool) error {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.id
	}
	where := map[string]interface{}{"id": ids}
	if enabledOnly {
		where["enabled"] = true
	}
	var n int64
	if err := tx.Model(&models.IngredientModel{}).Where(where).Count(&n).Error; err != nil {
		return err
	}
	if n != int64(len(ids)) {
		return ErrUnknownIngredient
	}
	return nil
}

func insertLines(tx *gorm.DB, orderID string, lines []line) error {
	if len(lines) == 0 {
		return nil
	}
	rows := make([]models.IngredientOnOrderModel, len(lines))
	for i, l := range lines {
		rows[i] = models.IngredientOnOrderModel{OrderID: orderID, IngredientID: l.id, IngredientNumber: l.amount}
	}
	return tx.Create(&rows).Error
}

func (s *Service) Get(ctx context.Context, id string) (*models.OrderModel, error) {
	var o models.OrderModel
	err := withIngredients(s.db.WithContext(ctx)).Where(map[string]interface{}{"id": id}).Take(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	return &o, nil
}

// Mine lists the orders of userID, newest first.
func (s *Service) Mine(ctx context.Context, userID string) ([]models.OrderModel, error) {
	return s.List(ctx, ListQuery{UID: userID})
}

func (s *Service) List(ctx context.Context, q ListQuery) ([]models.OrderModel, error) {
	where := map[string]interface{}{}
	if q.Status != "" {
		where["status"] = q.Status
	}
	if q.UID != "" {
		where["userId"] = q.UID
	}
	orders := []models.OrderModel{}
	err := newestFirst(withIngredients(s.db.WithContext(ctx))).Where(where).Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// Cancel lets the owner withdraw an order while it is still queued.
func (s *Service) Cancel(ctx context.Context, userID, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o models.OrderModel
		err := tx.Where(map[string]interface{}{"id": id}).Take(&o).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return ErrNotOwner
		}
		if o.Status != models.OrderInQueue {
			return ErrNotCancellable
		}

		if err := tx.Where(map[string]interface{}{"orderId": id}).Delete(&models.IngredientOnOrderModel{}).Error; err != nil {
			return err
		}
		res := tx.Where(map[string]interface{}{"id": id, "status": models.OrderInQueue}).Delete(&models.OrderModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotCancellable
		}
		return nil
	})
	return wrap("cancel order", err)
}

// Modify applies a new ingredient list and/or status. The ingredient list replaces the current
// one: new ids are added, changed counts updated and missing ids removed.
func (s *Service) Modify(ctx context.Context, id string, dto ModifyDTO) (*models.OrderModel, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o models.OrderModel
		err := tx.Preload("Ingredients").Where(map[string]interface{}{"id": id}).Take(&o).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if dto.Status != nil {
			updates["status"] = *dto.Status
		}
		if len(dto.Ingredients) > 0 {
			changed, err := applyDiff(tx, &o, tally(dto.Ingredients))
			if err != nil {
				return err
			}
			if changed && len(updates) == 0 {
				updates["modifiedAt"] = time.Now().UTC()
			}
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&models.OrderModel{Base: models.Base{ID: o.ID}}).Updates(updates).Error
	})
	if err != nil {
		return nil, wrap("modify order", err)
	}
	return s.Get(ctx, id)
}

func applyDiff(tx *gorm.DB, o *models.OrderModel, next []line) (bool, error) {
	current := make(map[string]int, len(o.Ingredients))
	for _, item := range o.Ingredients {
		current[item.IngredientID] = item.IngredientNumber
	}
	wanted := make(map[string]bool, len(next))

	var created []line
	changed := false
	for _, l := range next {
		wanted[l.id] = true
		amount, ok := current[l.id]
		switch {
		case !ok:
			created = append(created, l)
		case amount != l.amount:
			err := tx.Model(&models.IngredientOnOrderModel{}).
				Where(map[string]interface{}{"orderId": o.ID, "ingredientId": l.id}).
				Update("ingredientNumber", l.amount).Error
			if err != nil {
				return false, err
			}
			changed = true
		}
	}

	if len(created) > 0 {
		if err := checkIngredients(tx, created, false); err != nil {
			return false, err
		}
		if err := insertLines(tx, o.ID, created); err != nil {
			return false, err
		}
		changed = true
	}

	var removed []string
	for id := range current {
		if !wanted[id] {
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		err := tx.Where(map[string]interface{}{"orderId": o.ID, "ingredientId": removed}).
			Delete(&models.IngredientOnOrderModel{}).Error
		if err != nil {
			return false, err
		}
		changed = true
	}
	return changed, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(map[string]interface{}{"orderId": id}).Delete(&models.IngredientOnOrderModel{}).Error; err != nil {
			return err
		}
		res := tx.Where(map[string]interface{}{"id": id}).Delete(&models.OrderModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	return wrap("delete order", err)
}

// wrap adds context to storage failures and passes domain errors through untouched.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrNotFound, ErrNotOwner, ErrNotCancellable, ErrUnknownIngredient} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
