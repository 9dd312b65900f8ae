package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/subochevgeni/morrigan-postcards/internal/pkg/shortid"
	"github.com/subochevgeni/morrigan-postcards/internal/services/notify"
)

var (
	ErrValidation  = errors.New("invalid request payload")
	ErrUnavailable = errors.New("card is not available")
)

const (
	maxCartSize    = 10
	maxNameLength  = 120
	maxNoteLength  = 1000
	dispatchWindow = 15 * time.Second
)

type CardChecker interface {
	FilterAvailable(ctx context.Context, ids []string, now time.Time) ([]string, error)
}

type RequestStore interface {
	InsertGroup(ctx context.Context, groupID uuid.UUID, cardIDs []string, name, message string, at time.Time) error
}

type Reserver interface {
	ReserveCards(ctx context.Context, ids []string, now time.Time) ([]string, error)
}

type Deduplicator interface {
	IsDuplicate(ctx context.Context, name string, ids []string, now time.Time) (bool, error)
}

type Notifier interface {
	Dispatch(ctx context.Context, event notify.RequestEvent)
}

type Submission struct {
	IDs     []string
	Name    string
	Message string
}

type Result struct {
	Deduped bool
}

// Service runs a visitor submission end to end: validation, duplicate
// short-circuit, availability check, persistence, hold, and the async
// admin notification.
type Service struct {
	cards    CardChecker
	store    RequestStore
	reserver Reserver
	dedup    Deduplicator
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(cards CardChecker, store RequestStore, reserver Reserver, dedup Deduplicator, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		cards:    cards,
		store:    store,
		reserver: reserver,
		dedup:    dedup,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) Submit(ctx context.Context, sub Submission) (Result, error) {
	ids, name, message, err := cleanSubmission(sub)
	if err != nil {
		return Result{}, err
	}

	now := s.now().UTC()

	duplicate, err := s.dedup.IsDuplicate(ctx, name, ids, now)
	if err != nil {
		return Result{}, fmt.Errorf("check duplicate submission: %w", err)
	}
	if duplicate {
		return Result{Deduped: true}, nil
	}

	available, err := s.cards.FilterAvailable(ctx, ids, now)
	if err != nil {
		return Result{}, fmt.Errorf("check card availability: %w", err)
	}
	if len(available) != len(ids) {
		return Result{}, ErrUnavailable
	}

	if err := s.store.InsertGroup(ctx, uuid.New(), ids, name, message, now); err != nil {
		return Result{}, fmt.Errorf("persist request: %w", err)
	}

	if _, err := s.reserver.ReserveCards(ctx, ids, now); err != nil {
		// The request row is already written; a missing hold only widens
		// the double-request race the hold was softening.
		s.logger.Warn("reserve requested cards", zap.Strings("ids", ids), zap.Error(err))
	}

	go s.dispatch(notify.RequestEvent{
		IDs:       ids,
		Name:      name,
		Message:   message,
		CreatedAt: now,
	})

	return Result{}, nil
}

func (s *Service) dispatch(event notify.RequestEvent) {
	if s.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchWindow)
	defer cancel()

	s.notifier.Dispatch(ctx, event)
}

func cleanSubmission(sub Submission) ([]string, string, string, error) {
	name := strings.TrimSpace(sub.Name)
	if name == "" {
		return nil, "", "", fmt.Errorf("%w: name is required", ErrValidation)
	}
	name = truncateText(name, maxNameLength)

	message := truncateText(strings.TrimSpace(sub.Message), maxNoteLength)

	if len(sub.IDs) == 0 {
		return nil, "", "", fmt.Errorf("%w: at least one card id is required", ErrValidation)
	}
	if len(sub.IDs) > maxCartSize {
		return nil, "", "", fmt.Errorf("%w: at most %d cards per request", ErrValidation, maxCartSize)
	}

	seen := make(map[string]struct{}, len(sub.IDs))
	ids := make([]string, 0, len(sub.IDs))
	for _, raw := range sub.IDs {
		id := strings.ToLower(strings.TrimSpace(raw))
		if !shortid.Valid(id, shortid.CardIDLength) {
			return nil, "", "", fmt.Errorf("%w: malformed card id", ErrValidation)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	return ids, name, message, nil
}

// truncateText caps s at max bytes without splitting a UTF-8 rune, so a long
// Cyrillic name stays valid for the text columns.
func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
