package bruteforce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/derlev/sandwich-spawnpoint/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrMissingSubject is returned when neither an ip nor a user id is given.
var ErrMissingSubject = errors.New("bruteforce: ip or user id required")

// Policy decides when a subject is locked out of an action.
type Policy struct {
	Window        time.Duration
	UserThreshold int
	IPThreshold   int
}

func DefaultPolicy() Policy {
	return Policy{Window: 20 * time.Hour, UserThreshold: 3, IPThreshold: 21}
}

// Ledger is the append-only log of failed privileged attempts.
type Ledger struct {
	db     *gorm.DB
	policy Policy
	now    func() time.Time
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(db *gorm.DB, policy Policy, opts ...Option) *Ledger {
	l := &Ledger{db: db, policy: policy, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) Policy() Policy { return l.policy }

func (l *Ledger) cutoff() time.Time {
	return l.now().UTC().Add(-l.policy.Window)
}

// Check reports whether another attempt at action is allowed. A subject is blocked once its
// count inside the window reaches the threshold for either the user id or the ip.
func (l *Ledger) Check(ctx context.Context, ip, userID string, action models.BruteforceAction) (bool, error) {
	if ip == "" && userID == "" {
		return false, ErrMissingSubject
	}
	cutoff := l.cutoff()

	if userID != "" {
		n, err := l.count(ctx, action, "userId", userID, cutoff)
		if err != nil {
			return false, err
		}
		if n >= int64(l.policy.UserThreshold) {
			return false, nil
		}
	}
	if ip != "" {
		n, err := l.count(ctx, action, "ip", ip, cutoff)
		if err != nil {
			return false, err
		}
		if n >= int64(l.policy.IPThreshold) {
			return false, nil
		}
	}
	return true, nil
}

func (l *Ledger) count(ctx context.Context, action models.BruteforceAction, column, value string, cutoff time.Time) (int64, error) {
	var n int64
	err := l.db.WithContext(ctx).Model(&models.BruteforceModel{}).
		Where(map[string]interface{}{"action": action, column: value}).
		Where(clause.Gt{Column: clause.Column{Name: "createdAt"}, Value: cutoff}).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count %s attempts: %w", column, err)
	}
	return n, nil
}

// Record appends a failed attempt.
func (l *Ledger) Record(ctx context.Context, ip, userID string, action models.BruteforceAction) error {
	if ip == "" && userID == "" {
		return ErrMissingSubject
	}
	row := models.BruteforceModel{
		Action:    action,
		IP:        ip,
		CreatedAt: l.now().UTC(),
	}
	if userID != "" {
		row.UserID = &userID
	}
	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// Cleanup deletes attempts that fell out of the window and returns how many were removed.
func (l *Ledger) Cleanup(ctx context.Context) (int64, error) {
	res := l.db.WithContext(ctx).
		Where(clause.Lt{Column: clause.Column{Name: "createdAt"}, Value: l.cutoff()}).
		Delete(&models.BruteforceModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune attempts: %w", res.Error)
	}
	return res.RowsAffected, nil
}
