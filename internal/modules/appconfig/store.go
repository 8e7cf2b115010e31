package appconfig

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/derlev/sandwich-spawnpoint/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	otpDigits   = 6
	otpAttempts = 10
)

var otpSpace = big.NewInt(1_000_000)

// Hasher is satisfied by *password.Hasher.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, encoded string) (bool, error)
}

// Cache holds the last loaded snapshot. Load also returns the generation the caller must hand
// back to Save; Save drops the snapshot when an Invalidate happened in between.
type Cache interface {
	Load(ctx context.Context) (*Snapshot, int64, bool, error)
	Save(ctx context.Context, gen int64, snap *Snapshot) error
	Invalidate(ctx context.Context) error
}

// Snapshot is everything Get needs. Password rows carry no value.
type Snapshot struct {
	Rows []models.ConfigModel `json:"rows"`
	Otps []string             `json:"otps"`
}

// Store reads and writes the declared config keys and the VIP codes.
type Store struct {
	db     *gorm.DB
	schema []Setting
	hasher Hasher
	cache  Cache
	log    *zap.Logger
}

type Option func(*Store)

func WithCache(c Cache) Option {
	return func(s *Store) { s.cache = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

func NewStore(db *gorm.DB, schema []Setting, hasher Hasher, opts ...Option) *Store {
	s := &Store{db: db, schema: schema, hasher: hasher, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) setting(key string) (Setting, bool) {
	for _, st := range s.schema {
		if st.Key == key {
			return st, true
		}
	}
	return Setting{}, false
}

func (s *Store) encodeDefault(st Setting) (string, error) {
	if st.Type != TypePassword {
		return st.Default, nil
	}
	hash, err := s.hasher.Hash(st.Default)
	if err != nil {
		return "", fmt.Errorf("hash default for %s: %w", st.Key, err)
	}
	return hash, nil
}

// Reconcile makes the table hold exactly one row per declared key. Existing rows keep their
// value unless their type tag no longer matches the declaration.
func (s *Store) Reconcile(ctx context.Context) error {
	var created, deleted, reset int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.ConfigModel
		if err := tx.Find(&rows).Error; err != nil {
			return err
		}

		present := make(map[string]bool, len(rows))
		for _, row := range rows {
			st, ok := s.setting(row.Key)
			if !ok || present[row.Key] {
				if err := tx.Delete(&models.ConfigModel{}, row.ID).Error; err != nil {
					return err
				}
				deleted++
				continue
			}
			present[row.Key] = true
			if row.Type == string(st.Type) {
				continue
			}
			value, err := s.encodeDefault(st)
			if err != nil {
				return err
			}
			if err := tx.Model(&row).Updates(map[string]interface{}{"type": string(st.Type), "value": value}).Error; err != nil {
				return err
			}
			reset++
		}

		for _, st := range s.schema {
			if present[st.Key] {
				continue
			}
			value, err := s.encodeDefault(st)
			if err != nil {
				return err
			}
			if err := tx.Create(&models.ConfigModel{Key: st.Key, Type: string(st.Type), Value: value}).Error; err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reconcile config: %w", err)
	}

	s.invalidate(ctx)
	if created+deleted+reset > 0 {
		s.log.Info("config reconciled", zap.Int("created", created), zap.Int("deleted", deleted), zap.Int("reset", reset))
	}
	return nil
}

func (s *Store) load(ctx context.Context) (*Snapshot, error) {
	var (
		gen      int64
		saveable bool
	)
	if s.cache != nil {
		snap, g, ok, err := s.cache.Load(ctx)
		switch {
		case err != nil:
			s.log.Warn("config cache read failed", zap.Error(err))
		case ok:
			return snap, nil
		default:
			gen, saveable = g, true
		}
	}

	snap := &Snapshot{Otps: []string{}}
	db := s.db.WithContext(ctx)
	if err := db.Order("id").Find(&snap.Rows).Error; err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	for i := range snap.Rows {
		if snap.Rows[i].Type == string(TypePassword) {
			snap.Rows[i].Value = ""
		}
	}
	err := db.Model(&models.VipOtpModel{}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "createdAt"}}).
		Order("id").
		Pluck("code", &snap.Otps).Error
	if err != nil {
		return nil, fmt.Errorf("load vip codes: %w", err)
	}

	if saveable {
		if err := s.cache.Save(ctx, gen, snap); err != nil {
			s.log.Warn("config cache write failed", zap.Error(err))
		}
	}
	return snap, nil
}

func (s *Store) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("config cache invalidation failed", zap.Error(err))
	}
}

// Get returns every readable key with its typed value. Password keys are never included and
// the code list is left out when stripSensitive is set.
func (s *Store) Get(ctx context.Context, stripSensitive bool) (map[string]interface{}, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(snap.Rows))
	for _, row := range snap.Rows {
		switch t := ValueType(row.Type); t {
		case TypePassword:
		case TypeOtpList:
			if !stripSensitive {
				otps := snap.Otps
				if otps == nil {
					otps = []string{}
				}
				out[row.Key] = otps
			}
		default:
			out[row.Key] = t.Cast(row.Value)
		}
	}
	return out, nil
}

// Bool reads a single BOOLEAN key.
func (s *Store) Bool(ctx context.Context, key string) (bool, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	for _, row := range snap.Rows {
		if row.Key != key {
			continue
		}
		if ValueType(row.Type) != TypeBoolean {
			return false, fmt.Errorf("%w: %s is %s", ErrTypeMismatch, key, row.Type)
		}
		return TypeBoolean.Cast(row.Value).(bool), nil
	}
	return false, fmt.Errorf("%w: %s", ErrUnknownKey, key)
}

// Update stores value under key. Password values are hashed and the code list can only change
// through CreateOtp and ConsumeOtp.
func (s *Store) Update(ctx context.Context, key string, value interface{}) error {
	st, ok := s.setting(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if st.Type == TypeOtpList {
		return fmt.Errorf("%w: %s", ErrProtectedType, key)
	}
	encoded, err := st.Type.Encode(value)
	if err != nil {
		return err
	}
	if st.Type == TypePassword {
		if encoded == "" {
			return fmt.Errorf("%w: password must not be empty", ErrInvalidValue)
		}
		if encoded, err = s.hasher.Hash(encoded); err != nil {
			return fmt.Errorf("hash %s: %w", key, err)
		}
	}

	res := s.db.WithContext(ctx).Model(&models.ConfigModel{}).
		Where(map[string]interface{}{"key": key}).
		Update("value", encoded)
	if res.Error != nil {
		return fmt.Errorf("update %s: %w", key, res.Error)
	}
	s.invalidate(ctx)
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

// ValidatePassword checks candidate against the hash stored under a PASSWORD key.
func (s *Store) ValidatePassword(ctx context.Context, key, candidate string) (bool, error) {
	var row models.ConfigModel
	err := s.db.WithContext(ctx).Where(map[string]interface{}{"key": key}).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if ValueType(row.Type) != TypePassword {
		return false, fmt.Errorf("%w: %s is %s", ErrTypeMismatch, key, row.Type)
	}
	if candidate == "" {
		return false, nil
	}
	return s.hasher.Verify(candidate, row.Value)
}

// CreateOtp stores and returns a new six digit code.
func (s *Store) CreateOtp(ctx context.Context) (string, error) {
	for i := 0; i < otpAttempts; i++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		err = s.db.WithContext(ctx).Create(&models.VipOtpModel{Code: code}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("store vip code: %w", err)
		}
		s.invalidate(ctx)
		return code, nil
	}
	return "", ErrOtpExhausted
}

// ConsumeOtp deletes code and reports whether it existed. Of two concurrent callers with the
// same code only one sees true.
func (s *Store) ConsumeOtp(ctx context.Context, code string) (bool, error) {
	return s.RedeemOtp(ctx, code, nil)
}

// RedeemOtp deletes code and runs fn in the same transaction when the code existed. An error
// from fn rolls the deletion back, so the code stays redeemable.
func (s *Store) RedeemOtp(ctx context.Context, code string, fn func(tx *gorm.DB) error) (bool, error) {
	found := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where(map[string]interface{}{"code": code}).Delete(&models.VipOtpModel{})
		if res.Error != nil {
			return fmt.Errorf("consume vip code: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		found = true
		if fn == nil {
			return nil
		}
		return fn(tx)
	})
	if err != nil {
		return false, err
	}
	if found {
		s.invalidate(ctx)
	}
	return found, nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", fmt.Errorf("generate vip code: %w", err)
	}
	return formatCode(n.Int64()), nil
}

// formatCode zero-pads n to the fixed code width.
func formatCode(n int64) string {
	return fmt.Sprintf("%0*d", otpDigits, n)
}
