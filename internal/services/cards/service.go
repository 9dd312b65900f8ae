package cards

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/subochevgeni/morrigan-postcards/internal/domain/enums"
	"github.com/subochevgeni/morrigan-postcards/internal/domain/model"
	"github.com/subochevgeni/morrigan-postcards/internal/pkg/shortid"
	pgrepo "github.com/subochevgeni/morrigan-postcards/internal/repo/postgres"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("card not found")
)

const (
	maxListLimit     = 200
	defaultListLimit = 200
	defaultRecentIDs = 20
	idInsertRetries  = 5
)

type Store interface {
	InsertCard(ctx context.Context, card model.Card) error
	GetCard(ctx context.Context, id string) (*model.Card, error)
	DeleteCard(ctx context.Context, id string) error
	ListCards(ctx context.Context, limit int, category string) ([]model.Card, error)
	CountAvailable(ctx context.Context) (int64, error)
	LastAvailable(ctx context.Context) (*model.Card, error)
	ListRecentIDs(ctx context.Context, limit int) ([]string, error)
}

type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, int64, string, error)
	Delete(ctx context.Context, key string) error
}

type Upload struct {
	Body        io.Reader
	Size        int64
	ContentType string
}

type Service struct {
	store   Store
	storage ObjectStorage
	now     func() time.Time
	logger  *zap.Logger
}

func NewService(store Store, storage ObjectStorage, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		storage: storage,
		now:     time.Now,
		logger:  logger,
	}
}

func ImageKey(id string) string {
	return "cards/" + id + "/full.jpg"
}

func ThumbKey(id string) string {
	return "cards/" + id + "/thumb.jpg"
}

// Create uploads both blobs and inserts the card row. The short id keeps the
// showcase URLs human-readable, so collisions are possible and the insert is
// retried under a fresh id.
func (s *Service) Create(ctx context.Context, category enums.Category, full, thumb Upload) (model.Card, error) {
	if full.Body == nil || full.Size <= 0 || thumb.Body == nil || thumb.Size <= 0 {
		return model.Card{}, ErrValidation
	}
	if s.store == nil || s.storage == nil {
		return model.Card{}, fmt.Errorf("card dependencies are not configured")
	}
	if category == "" {
		category = enums.CategoryOther
	}

	if err := s.storage.EnsureBucket(ctx); err != nil {
		return model.Card{}, fmt.Errorf("ensure bucket: %w", err)
	}

	// buffer both blobs so an id-collision retry can re-upload them
	fullBuf, err := io.ReadAll(full.Body)
	if err != nil {
		return model.Card{}, fmt.Errorf("read full image: %w", err)
	}
	thumbBuf, err := io.ReadAll(thumb.Body)
	if err != nil {
		return model.Card{}, fmt.Errorf("read thumb image: %w", err)
	}

	for attempt := 0; attempt < idInsertRetries; attempt++ {
		id, err := shortid.NewCardID()
		if err != nil {
			return model.Card{}, fmt.Errorf("generate card id: %w", err)
		}

		card := model.Card{
			ID:        id,
			CreatedAt: s.now().UTC(),
			Status:    enums.CardAvailable,
			Category:  category,
			ImageKey:  ImageKey(id),
			ThumbKey:  ThumbKey(id),
		}

		if err := s.storage.Put(ctx, card.ImageKey, bytes.NewReader(fullBuf), int64(len(fullBuf)), contentTypeOrJPEG(full.ContentType)); err != nil {
			return model.Card{}, fmt.Errorf("put full image: %w", err)
		}
		if err := s.storage.Put(ctx, card.ThumbKey, bytes.NewReader(thumbBuf), int64(len(thumbBuf)), contentTypeOrJPEG(thumb.ContentType)); err != nil {
			_ = s.storage.Delete(ctx, card.ImageKey)
			return model.Card{}, fmt.Errorf("put thumb image: %w", err)
		}

		err = s.store.InsertCard(ctx, card)
		if err == nil {
			return card, nil
		}

		_ = s.storage.Delete(ctx, card.ImageKey)
		_ = s.storage.Delete(ctx, card.ThumbKey)
		if errors.Is(err, pgrepo.ErrDuplicateID) {
			// uploads are not reusable across ids, the keys embed the id
			continue
		}
		return model.Card{}, fmt.Errorf("insert card record: %w", err)
	}

	return model.Card{}, fmt.Errorf("card id collisions exhausted %d attempts", idInsertRetries)
}

func (s *Service) Get(ctx context.Context, id string) (*model.Card, error) {
	if !shortid.Valid(id, shortid.CardIDLength) {
		return nil, ErrValidation
	}
	if s.store == nil {
		return nil, fmt.Errorf("card store is not configured")
	}
	return s.store.GetCard(ctx, id)
}

// Delete removes the row and both backing blobs. A missing card reports
// false without error so bot commands can answer "not found" politely.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	if s.store == nil || s.storage == nil {
		return false, fmt.Errorf("card dependencies are not configured")
	}

	card, err := s.store.GetCard(ctx, id)
	if err != nil {
		return false, fmt.Errorf("get card for delete: %w", err)
	}
	if card == nil {
		return false, nil
	}

	if err := s.storage.Delete(ctx, card.ImageKey); err != nil {
		s.logger.Warn("failed to delete full image object", zap.Error(err), zap.String("card_id", id))
	}
	if err := s.storage.Delete(ctx, card.ThumbKey); err != nil {
		s.logger.Warn("failed to delete thumb image object", zap.Error(err), zap.String("card_id", id))
	}
	if err := s.store.DeleteCard(ctx, id); err != nil {
		return false, fmt.Errorf("delete card record: %w", err)
	}

	return true, nil
}

// DeleteMany is best effort per id; a failing card does not stop the rest of
// a bulk delete.
func (s *Service) DeleteMany(ctx context.Context, ids []string) []string {
	deleted := make([]string, 0, len(ids))
	for _, id := range ids {
		ok, err := s.Delete(ctx, id)
		if err != nil {
			s.logger.Warn("bulk delete card failed", zap.Error(err), zap.String("card_id", id))
			continue
		}
		if ok {
			deleted = append(deleted, id)
		}
	}
	return deleted
}

func (s *Service) List(ctx context.Context, limit int, category string) ([]model.Card, error) {
	if s.store == nil {
		return nil, fmt.Errorf("card store is not configured")
	}
	return s.store.ListCards(ctx, clampLimit(limit, defaultListLimit), category)
}

func (s *Service) Stats(ctx context.Context) (int64, error) {
	if s.store == nil {
		return 0, fmt.Errorf("card store is not configured")
	}
	return s.store.CountAvailable(ctx)
}

func (s *Service) Last(ctx context.Context) (*model.Card, error) {
	if s.store == nil {
		return nil, fmt.Errorf("card store is not configured")
	}
	return s.store.LastAvailable(ctx)
}

func (s *Service) RecentIDs(ctx context.Context, limit int) ([]string, error) {
	if s.store == nil {
		return nil, fmt.Errorf("card store is not configured")
	}
	return s.store.ListRecentIDs(ctx, clampLimit(limit, defaultRecentIDs))
}

// OpenImage resolves a card id to a streamed blob for the /img and /thumb
// read path.
func (s *Service) OpenImage(ctx context.Context, id string, thumb bool) (io.ReadCloser, int64, string, error) {
	if s.store == nil || s.storage == nil {
		return nil, 0, "", fmt.Errorf("card dependencies are not configured")
	}

	card, err := s.store.GetCard(ctx, id)
	if err != nil {
		return nil, 0, "", fmt.Errorf("get card for image: %w", err)
	}
	if card == nil {
		return nil, 0, "", ErrNotFound
	}

	key := card.ImageKey
	if thumb {
		key = card.ThumbKey
	}
	return s.storage.Open(ctx, key)
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func contentTypeOrJPEG(ct string) string {
	if ct == "" {
		return "image/jpeg"
	}
	return ct
}
