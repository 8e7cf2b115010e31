package app

import (
	"context"
	"time"

	"github.com/derlev/sandwich-spawnpoint/internal/modules/user"
	"github.com/derlev/sandwich-spawnpoint/internal/pkg/cron"
	"go.uber.org/zap"
)

const cleanupInterval = 10 * time.Minute

// registerCronJobs registers the periodic cleanup jobs. A user older than the token lifetime has
// no valid session left and is removed with their orders.
func (a *App) registerCronJobs() {
	users := user.NewService(a.db, a.issuer, a.ledger, a.store)
	log := a.logger.Named("CronService")

	a.sched.Register(cron.Job{
		Name:        "prune_bruteforce",
		Description: "Delete failed upgrade attempts outside the lockout window",
		Interval:    cleanupInterval,
		Fn: func(ctx context.Context) error {
			n, err := a.ledger.Cleanup(ctx)
			if err != nil {
				return err
			}
			log.Info("pruned bruteforce attempts", zap.Int64("rows", n))
			return nil
		},
	})

	a.sched.Register(cron.Job{
		Name:        "prune_users",
		Description: "Delete users whose session has expired",
		Interval:    cleanupInterval,
		Fn: func(ctx context.Context) error {
			n, err := users.PruneExpired(ctx, a.issuer.Lifetime())
			if err != nil {
				return err
			}
			log.Info("pruned expired users", zap.Int64("users", n))
			return nil
		},
	})
}
