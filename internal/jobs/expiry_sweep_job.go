package jobs

import (
	"context"
	"time"

	"github.com/bisonbooks/backend/internal/billing"
	"github.com/bisonbooks/backend/internal/utils"
	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
)

// SweepLockKey guards the expiry sweep across replicas
const SweepLockKey = "billing:sweep:lock"

// Sweeper downgrades lapsed subscriptions
type Sweeper interface {
	CheckExpiredSubscriptions(ctx context.Context) (*billing.SweepResult, error)
}

// ExpirySweepJob runs the expired subscription sweep on a schedule
type ExpirySweepJob struct {
	sweeper   Sweeper
	lock      *RedisLock
	interval  time.Duration
	timeout   time.Duration
	scheduler *gocron.Scheduler
}

// NewExpirySweepJob creates a sweep job. A nil lock runs every tick unguarded.
func NewExpirySweepJob(sweeper Sweeper, lock *RedisLock, interval time.Duration) *ExpirySweepJob {
	if interval <= 0 {
		interval = time.Hour
	}

	return &ExpirySweepJob{
		sweeper:   sweeper,
		lock:      lock,
		interval:  interval,
		timeout:   interval / 2,
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

// Start schedules the sweep and starts the scheduler in the background
func (j *ExpirySweepJob) Start() error {
	j.scheduler.SingletonModeAll()
	if _, err := j.scheduler.Every(j.interval).Do(j.run); err != nil {
		return err
	}

	j.scheduler.StartAsync()
	utils.Logger.WithField("interval", j.interval.String()).Info("Scheduled expired subscription sweep")
	return nil
}

// Stop stops the scheduler
func (j *ExpirySweepJob) Stop() {
	j.scheduler.Stop()
}

func (j *ExpirySweepJob) run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if _, _, err := j.RunOnce(ctx); err != nil {
		utils.Logger.WithError(err).Error("Expired subscription sweep failed")
	}
}

// RunOnce sweeps if no other replica holds the lock. It reports whether the
// sweep ran.
func (j *ExpirySweepJob) RunOnce(ctx context.Context) (*billing.SweepResult, bool, error) {
	if j.lock != nil {
		token, ok, err := j.lock.TryLock(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			utils.Logger.Debug("Expired subscription sweep already running elsewhere")
			return nil, false, nil
		}
		defer func() {
			if err := j.lock.Unlock(context.Background(), token); err != nil {
				utils.Logger.WithError(err).Warn("Failed to release sweep lock")
			}
		}()
	}

	start := time.Now()
	result, err := j.sweeper.CheckExpiredSubscriptions(ctx)
	if err != nil {
		return nil, true, err
	}

	utils.Logger.WithFields(logrus.Fields{
		"count":    result.Count,
		"duration": time.Since(start).String(),
	}).Info("Expired subscription sweep completed")
	return result, true, nil
}
