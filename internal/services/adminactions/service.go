package adminactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/subochevgeni/morrigan-postcards/internal/domain/model"
	"github.com/subochevgeni/morrigan-postcards/internal/pkg/shortid"
	pgrepo "github.com/subochevgeni/morrigan-postcards/internal/repo/postgres"
)

var (
	ErrTokenNotFound = errors.New("action token not found")
	ErrTokenExpired  = errors.New("action token expired")
)

const (
	defaultTokenTTL   = 24 * time.Hour
	maxActionCards    = 10
	tokenInsertTries  = 5
	minBulkActionSize = 2
)

type Store interface {
	InsertAction(ctx context.Context, action model.AdminAction) error
	GetAction(ctx context.Context, token string) (*model.AdminAction, error)
	DeleteAction(ctx context.Context, token string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Service issues single-use tokens for bulk inline-button actions. Telegram
// callback data is capped at 64 bytes, so a multi-card delete cannot carry
// its id list in the button itself.
type Service struct {
	store    Store
	ttl      time.Duration
	maxCards int
	logger   *zap.Logger
}

func NewService(store Store, ttl time.Duration, maxCards int, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	if maxCards <= 0 || maxCards > maxActionCards {
		maxCards = maxActionCards
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		ttl:      ttl,
		maxCards: maxCards,
		logger:   logger,
	}
}

// Create persists a bulk-delete token for the cleaned id list and returns it.
// Fewer than two distinct ids need no token (single-card buttons carry the id
// directly), so the empty string is returned instead.
func (s *Service) Create(ctx context.Context, ids []string, now time.Time) (string, error) {
	if s.store == nil {
		return "", fmt.Errorf("admin action store is not configured")
	}

	cleaned := dedupeOrdered(ids, s.maxCards)
	if len(cleaned) < minBulkActionSize {
		return "", nil
	}

	for attempt := 0; attempt < tokenInsertTries; attempt++ {
		token, err := shortid.NewActionToken()
		if err != nil {
			return "", fmt.Errorf("generate action token: %w", err)
		}

		err = s.store.InsertAction(ctx, model.AdminAction{
			Token:      token,
			ActionType: model.ActionBulkDeleteCards,
			CardIDs:    cleaned,
			CreatedAt:  now.UTC(),
			ExpiresAt:  now.Add(s.ttl).UTC(),
		})
		if err == nil {
			return token, nil
		}
		if errors.Is(err, pgrepo.ErrDuplicateToken) {
			continue
		}
		return "", fmt.Errorf("insert admin action: %w", err)
	}

	s.logger.Warn("action token collisions exhausted all attempts", zap.Int("attempts", tokenInsertTries))
	return "", nil
}

// Consume destructively reads the token. The delete-then-report order makes
// a double press benign: whoever loses the race sees ErrTokenNotFound.
func (s *Service) Consume(ctx context.Context, token string, now time.Time) ([]string, error) {
	if s.store == nil {
		return nil, fmt.Errorf("admin action store is not configured")
	}
	if !shortid.Valid(token, shortid.ActionTokenLength) {
		return nil, ErrTokenNotFound
	}

	action, err := s.store.GetAction(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("get admin action: %w", err)
	}
	if action == nil {
		return nil, ErrTokenNotFound
	}

	deleted, err := s.store.DeleteAction(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("delete admin action: %w", err)
	}
	if !deleted {
		return nil, ErrTokenNotFound
	}

	if !action.ExpiresAt.After(now) {
		return nil, ErrTokenExpired
	}

	return action.CardIDs, nil
}

func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	if s.store == nil {
		return 0, fmt.Errorf("admin action store is not configured")
	}

	swept, err := s.store.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("sweep expired admin actions: %w", err)
	}
	if swept > 0 {
		s.logger.Debug("swept expired action tokens", zap.Int64("swept", swept))
	}

	return swept, nil
}

func dedupeOrdered(ids []string, limit int) []string {
	out := make([]string, 0, len(ids))
	seen := map[string]struct{}{}
	for _, id := range ids {
		if !shortid.Valid(id, shortid.CardIDLength) {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
		if len(out) == limit {
			break
		}
	}
	return out
}
