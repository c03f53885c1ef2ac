package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Purger removes expired OTP records.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

const purgeTimeout = time.Minute

// StartPurgeJob runs purger on schedule ("@every 10m", "0 4 * * *", ...).
// An empty schedule registers nothing; the returned scheduler is still valid to Stop.
func StartPurgeJob(schedule string, purger Purger, log *zap.Logger) (*cron.Cron, error) {
	log = log.With(zap.String("component", "purge"))

	c := cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)))

	if schedule == "" {
		log.Info("OTP purge disabled")
		c.Start()
		return c, nil
	}

	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
		defer cancel()

		if _, err := purger.PurgeExpired(ctx); err != nil {
			log.Error("OTP purge failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid purge schedule %q: %w", schedule, err)
	}

	c.Start()
	log.Info("OTP purge scheduled", zap.String("schedule", schedule))
	return c, nil
}
