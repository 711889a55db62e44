package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dinor/dinor-api/utils"
)

// Scheduler runs periodic maintenance: cache warm-up and notification pruning.
type Scheduler struct {
	c   *cron.Cron
	log *zap.Logger
}

// NewScheduler registers the periodic jobs. warmSpec uses cron syntax or "@every 30m".
func NewScheduler(warmer *Warmer, warmSpec string, db *gorm.DB, notificationMaxAge time.Duration, log *zap.Logger) (*Scheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{log})))

	if _, err := c.AddFunc(warmSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		res := warmer.Warm(ctx)
		log.Info("scheduled cache warmup", zap.Strings("warmed", res.Warmed), zap.Int("failed", len(res.Failed)))
	}); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc("@daily", func() {
		n, err := utils.PruneNotifications(db, notificationMaxAge)
		if err != nil {
			log.Warn("notification pruning failed", zap.Error(err))
			return
		}
		log.Info("pruned admin notifications", zap.Int64("deleted", n))
	}); err != nil {
		return nil, err
	}

	return &Scheduler{c: c, log: log}, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() { s.c.Start() }

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.c.Stop().Done():
	case <-ctx.Done():
	}
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int { return len(s.c.Entries()) }

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ l *zap.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "err", err)...)
}
