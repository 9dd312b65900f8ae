package reservation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultHoldDuration = 15 * time.Minute

type Store interface {
	ReserveAvailable(ctx context.Context, id string, until, now time.Time) (bool, error)
	ReleaseExpired(ctx context.Context, now time.Time) (int64, error)
}

// Service owns the available → pending hold. The hold is advisory: it keeps
// the showcase honest between "card shown as free" and "owner reacts", it is
// not a lock.
type Service struct {
	store  Store
	hold   time.Duration
	logger *zap.Logger
}

func NewService(store Store, hold time.Duration, logger *zap.Logger) *Service {
	if hold <= 0 {
		hold = defaultHoldDuration
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		hold:   hold,
		logger: logger,
	}
}

// ReserveCards flips every still-available id to pending until now+hold and
// returns the ids it actually reserved. Ids that lost the race are skipped
// silently; the caller validated availability a moment ago and a lost race
// only costs a duplicate owner notification.
func (s *Service) ReserveCards(ctx context.Context, ids []string, now time.Time) ([]string, error) {
	if s.store == nil {
		return nil, fmt.Errorf("reservation store is not configured")
	}

	until := now.Add(s.hold)
	reserved := make([]string, 0, len(ids))
	for _, id := range ids {
		ok, err := s.store.ReserveAvailable(ctx, id, until, now)
		if err != nil {
			return reserved, fmt.Errorf("reserve card %s: %w", id, err)
		}
		if ok {
			reserved = append(reserved, id)
		}
	}

	return reserved, nil
}

// ReleaseExpired resets every lapsed hold. Safe to call from any handler and
// from the maintenance timer at once: the statement is guarded by
// pending_until, so a second run in a row is a no-op.
func (s *Service) ReleaseExpired(ctx context.Context, now time.Time) (int64, error) {
	if s.store == nil {
		return 0, fmt.Errorf("reservation store is not configured")
	}

	released, err := s.store.ReleaseExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("release expired holds: %w", err)
	}
	if released > 0 {
		s.logger.Debug("released expired card holds", zap.Int64("released", released))
	}

	return released, nil
}

func (s *Service) HoldDuration() time.Duration {
	return s.hold
}
