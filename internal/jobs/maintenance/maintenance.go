package maintenance

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultInterval = 5 * time.Minute

type holdReleaser interface {
	ReleaseExpired(ctx context.Context, now time.Time) (int64, error)
}

type tokenSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// Job keeps showcase state honest without traffic: lapsed holds go back to
// available and stale bulk-action tokens are removed. Both operations are
// time-guarded, so a pass racing a live request is harmless.
type Job struct {
	releaser holdReleaser
	sweeper  tokenSweeper
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func New(releaser holdReleaser, sweeper tokenSweeper, interval time.Duration, logger *zap.Logger) *Job {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		releaser: releaser,
		sweeper:  sweeper,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	now := j.now().UTC()

	if j.releaser != nil {
		released, err := j.releaser.ReleaseExpired(ctx, now)
		if err != nil {
			return fmt.Errorf("release expired holds: %w", err)
		}
		if released > 0 {
			j.logger.Info("released expired holds", zap.Int64("cards", released))
		}
	}

	if j.sweeper != nil {
		swept, err := j.sweeper.SweepExpired(ctx, now)
		if err != nil {
			return fmt.Errorf("sweep expired action tokens: %w", err)
		}
		if swept > 0 {
			j.logger.Info("swept expired action tokens", zap.Int64("tokens", swept))
		}
	}

	return nil
}

// RunLoop executes the job immediately and then on every tick until the
// context is cancelled. Pass failures are logged, not fatal: the next tick
// retries.
func (j *Job) RunLoop(ctx context.Context) error {
	if err := j.Run(ctx); err != nil {
		j.logger.Warn("maintenance pass failed", zap.Error(err))
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Warn("maintenance pass failed", zap.Error(err))
			}
		}
	}
}
