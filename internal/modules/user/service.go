package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/derlev/sandwich-spawnpoint/internal/models"
	"github.com/derlev/sandwich-spawnpoint/internal/modules/appconfig"
	"github.com/derlev/sandwich-spawnpoint/internal/modules/bruteforce"
	"github.com/derlev/sandwich-spawnpoint/internal/pkg/jwt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db     *gorm.DB
	issuer *jwt.Issuer
	ledger *bruteforce.Ledger
	config *appconfig.Store
}

func NewService(db *gorm.DB, issuer *jwt.Issuer, ledger *bruteforce.Ledger, config *appconfig.Store) *Service {
	return &Service{db: db, issuer: issuer, ledger: ledger, config: config}
}

// Create stores a new USER and signs its first session.
func (s *Service) Create(ctx context.Context, name string) (*models.UserModel, *jwt.Token, error) {
	u := models.UserModel{Name: name, Role: models.RoleUser}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, nil, fmt.Errorf("create user: %w", err)
	}
	tok, err := s.issuer.Issue(u.ID, u.Name, u.Role, nil)
	if err != nil {
		return nil, nil, err
	}
	return &u, tok, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.UserModel, error) {
	var u models.UserModel
	err := s.db.WithContext(ctx).Where(map[string]interface{}{"id": id}).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &u, nil
}

func (s *Service) List(ctx context.Context, q ListQuery) ([]models.UserModel, error) {
	where := map[string]interface{}{}
	if q.Role != "" {
		where["role"] = q.Role
	}
	if q.ID != "" {
		where["id"] = q.ID
	}

	db := s.db.WithContext(ctx).Where(where).Order(clause.OrderByColumn{Column: clause.Column{Name: "createdAt"}})
	if q.Orders == "true" {
		db = db.Preload("Orders", func(tx *gorm.DB) *gorm.DB {
			return tx.Order(clause.OrderByColumn{Column: clause.Column{Name: "createdAt"}})
		})
	}
	users := []models.UserModel{}
	if err := db.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Delete removes the user together with its orders and recorded attempts.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var orderIDs []string
		if err := tx.Model(&models.OrderModel{}).Where(map[string]interface{}{"userId": id}).Pluck("id", &orderIDs).Error; err != nil {
			return err
		}
		if len(orderIDs) > 0 {
			if err := tx.Where(map[string]interface{}{"orderId": orderIDs}).Delete(&models.IngredientOnOrderModel{}).Error; err != nil {
				return err
			}
			if err := tx.Where(map[string]interface{}{"id": orderIDs}).Delete(&models.OrderModel{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where(map[string]interface{}{"userId": id}).Delete(&models.BruteforceModel{}).Error; err != nil {
			return err
		}
		res := tx.Where(map[string]interface{}{"id": id}).Delete(&models.UserModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// UpgradeToAdmin promotes the session's user when password matches adminUpgradePassword.
// The new token keeps the expiry of the session it replaces.
func (s *Service) UpgradeToAdmin(ctx context.Context, claim *jwt.SessionClaim, ip, password string) (*models.UserModel, *jwt.Token, error) {
	verify := func() (bool, error) {
		return s.config.ValidatePassword(ctx, appconfig.KeyAdminUpgradePassword, password)
	}
	if err := s.guard(ctx, claim, ip, models.ActionAdminPromote, verify, ErrInvalidPassword); err != nil {
		return nil, nil, err
	}
	return s.promote(ctx, claim, models.RoleAdmin)
}

// RedeemVip consumes otp and promotes the session's user to VIP in one transaction, so a failed
// promotion leaves the code in place.
func (s *Service) RedeemVip(ctx context.Context, claim *jwt.SessionClaim, ip, otp string) (*models.UserModel, *jwt.Token, error) {
	var u *models.UserModel
	verify := func() (bool, error) {
		return s.config.RedeemOtp(ctx, otp, func(tx *gorm.DB) error {
			var err error
			u, err = setRole(tx, claim.Subject, models.RoleVIP)
			return err
		})
	}
	if err := s.guard(ctx, claim, ip, models.ActionVipPromote, verify, ErrInvalidCode); err != nil {
		return nil, nil, err
	}
	return s.reissue(u, claim)
}

// guard checks the ledger before verify runs and records the attempt when verify fails.
func (s *Service) guard(ctx context.Context, claim *jwt.SessionClaim, ip string, action models.BruteforceAction, verify func() (bool, error), rejected error) error {
	if _, err := s.Get(ctx, claim.Subject); err != nil {
		return err
	}
	allowed, err := s.ledger.Check(ctx, ip, claim.Subject, action)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrTooManyAttempts
	}

	ok, err := verify()
	if err != nil {
		return err
	}
	if !ok {
		if err := s.ledger.Record(ctx, ip, claim.Subject, action); err != nil {
			return err
		}
		return rejected
	}
	return nil
}

func (s *Service) promote(ctx context.Context, claim *jwt.SessionClaim, role models.Role) (*models.UserModel, *jwt.Token, error) {
	u, err := setRole(s.db.WithContext(ctx), claim.Subject, role)
	if err != nil {
		return nil, nil, err
	}
	return s.reissue(u, claim)
}

func setRole(db *gorm.DB, id string, role models.Role) (*models.UserModel, error) {
	res := db.Model(&models.UserModel{}).
		Where(map[string]interface{}{"id": id}).
		Update("role", role)
	if res.Error != nil {
		return nil, fmt.Errorf("update role: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	var u models.UserModel
	if err := db.Where(map[string]interface{}{"id": id}).Take(&u).Error; err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &u, nil
}

// reissue signs a token for u that keeps the expiry of the session it replaces.
func (s *Service) reissue(u *models.UserModel, claim *jwt.SessionClaim) (*models.UserModel, *jwt.Token, error) {
	exp := claim.ExpiresAt
	tok, err := s.issuer.Issue(u.ID, u.Name, u.Role, &exp)
	if err != nil {
		return nil, nil, err
	}
	return u, tok, nil
}

// PruneExpired deletes users whose every possible session has expired.
func (s *Service) PruneExpired(ctx context.Context, lifetime time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-lifetime)
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.UserModel{}).
		Where(clause.Lt{Column: clause.Column{Name: "createdAt"}, Value: cutoff}).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("find expired users: %w", err)
	}
	var deleted int64
	for _, id := range ids {
		err := s.Delete(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return deleted, fmt.Errorf("prune user %s: %w", id, err)
		}
		deleted++
	}
	return deleted, nil
}
