package bruteforce

import (
	"context"
	"testing"
	"time"

	"github.com/derlev/sandwich-spawnpoint/internal/models"
	"github.com/derlev/sandwich-spawnpoint/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

func newLedger(t *testing.T, now *time.Time) *Ledger {
	t.Helper()
	return NewLedger(testutil.NewDB(t), DefaultPolicy(), WithClock(func() time.Time { return *now }))
}

func recordN(t *testing.T, l *Ledger, n int, ip, uid string, action models.BruteforceAction) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, l.Record(context.Background(), ip, uid, action))
	}
}

func TestCheckRequiresSubject(t *testing.T) {
	now := t0
	l := newLedger(t, &now)
	_, err := l.Check(context.Background(), "", "", models.ActionAdminPromote)
	assert.ErrorIs(t, err, ErrMissingSubject)
	assert.ErrorIs(t, l.Record(context.Background(), "", "", models.ActionAdminPromote), ErrMissingSubject)
}

func TestUserThreshold(t *testing.T) {
	ctx := context.Background()
	now := t0
	l := newLedger(t, &now)

	recordN(t, l, 2, "", "user-a", models.ActionAdminPromote)
	ok, err := l.Check(ctx, "", "user-a", models.ActionAdminPromote)
	require.NoError(t, err)
	assert.True(t, ok, "two failures stay below the user threshold")

	recordN(t, l, 1, "", "user-a", models.ActionAdminPromote)
	ok, err = l.Check(ctx, "", "user-a", models.ActionAdminPromote)
	require.NoError(t, err)
	assert.False(t, ok, "three failures lock the user")

	ok, err = l.Check(ctx, "", "user-a", models.ActionVipPromote)
	require.NoError(t, err)
	assert.True(t, ok, "other actions are counted separately")

	ok, err = l.Check(ctx, "", "user-b", models.ActionAdminPromote)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIPThreshold(t *testing.T) {
	ctx := context.Background()
	now := t0
	l := newLedger(t, &now)

	recordN(t, l, 20, "10.0.0.7", "", models.ActionVipPromote)
	ok, err := l.Check(ctx, "10.0.0.7", "", models.ActionVipPromote)
	require.NoError(t, err)
	assert.True(t, ok)

	recordN(t, l, 1, "10.0.0.7", "", models.ActionVipPromote)
	ok, err = l.Check(ctx, "10.0.0.7", "", models.ActionVipPromote)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Check(ctx, "10.0.0.7", "fresh-user", models.ActionVipPromote)
	require.NoError(t, err)
	assert.False(t, ok, "either subject hitting its threshold blocks")
}

func TestWindowExpiresAttempts(t *testing.T) {
	ctx := context.Background()
	now := t0
	l := newLedger(t, &now)

	recordN(t, l, 3, "1.1.1.1", "user-a", models.ActionAdminPromote)
	ok, err := l.Check(ctx, "1.1.1.1", "user-a", models.ActionAdminPromote)
	require.NoError(t, err)
	assert.False(t, ok)

	now = t0.Add(20*time.Hour + time.Minute)
	ok, err = l.Check(ctx, "1.1.1.1", "user-a", models.ActionAdminPromote)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	now := t0
	l := newLedger(t, &now)

	recordN(t, l, 2, "2.2.2.2", "old", models.ActionAdminPromote)
	now = t0.Add(10 * time.Hour)
	recordN(t, l, 1, "2.2.2.2", "recent", models.ActionAdminPromote)

	now = t0.Add(20*time.Hour + time.Second)
	deleted, err := l.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	var rows []models.BruteforceModel
	require.NoError(t, l.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].UserID)
	assert.Equal(t, "recent", *rows[0].UserID)

	deleted, err = l.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
