package crontab

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	goredis "github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/mileusna/crontab"
	"github.com/redis/go-redis/v9"

	"agent-server/internal/domain/session"
	"agent-server/internal/infrastructure/logger"
	"agent-server/internal/infrastructure/metrics"
)

const (
	sweepLockName = "agent-server:session-sweep"
	sweepLockTTL  = 2 * time.Minute
	sweepTimeout  = 1 * time.Minute
)

// Crontab runs the periodic expired-session sweep. A redis-backed lock keeps
// replicas from sweeping the same keyspace at once; a replica that loses the
// lock simply skips its run.
type Crontab struct {
	ctab            *crontab.Crontab
	store           *session.Store
	locker          *redsync.Redsync
	intervalMinutes int
}

func New(store *session.Store, client redis.UniversalClient, intervalMinutes int) *Crontab {
	return &Crontab{
		ctab:            crontab.New(),
		store:           store,
		locker:          redsync.New(goredis.NewPool(client)),
		intervalMinutes: intervalMinutes,
	}
}

// Run schedules the sweep job and blocks until ctx is cancelled. The sweep
// runs once immediately on startup.
func (c *Crontab) Run(ctx context.Context) error {
	c.sweep()

	cronExpr := fmt.Sprintf("*/%d * * * *", c.intervalMinutes)
	if err := c.ctab.AddJob(cronExpr, c.sweep); err != nil {
		return fmt.Errorf("schedule session sweep: %w", err)
	}

	log := logger.GetLogger()
	log.Info().Int("interval_minutes", c.intervalMinutes).Msg("session sweep scheduled")

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

func (c *Crontab) sweep() {
	log := logger.GetLogger()

	mutex := c.locker.NewMutex(sweepLockName, redsync.WithExpiry(sweepLockTTL), redsync.WithTries(1))
	if err := mutex.Lock(); err != nil {
		log.Debug().Err(err).Msg("sweep lock held elsewhere, skipping run")
		return
	}
	defer func() {
		if _, err := mutex.Unlock(); err != nil {
			log.Warn().Err(err).Msg("failed to release sweep lock")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	removed, err := c.store.SweepExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("session sweep failed")
		return
	}
	metrics.SessionsSweptTotal.Add(float64(removed))
}
