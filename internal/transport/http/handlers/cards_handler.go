package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/subochevgeni/morrigan-postcards/internal/domain/enums"
	"github.com/subochevgeni/morrigan-postcards/internal/domain/model"
	"github.com/subochevgeni/morrigan-postcards/internal/transport/http/dto"
	httperrors "github.com/subochevgeni/morrigan-postcards/internal/transport/http/errors"
)

type CardLister interface {
	List(ctx context.Context, limit int, category string) ([]model.Card, error)
}

type HoldReleaser interface {
	ReleaseExpired(ctx context.Context, now time.Time) (int64, error)
}

type CardsHandler struct {
	cards    CardLister
	releaser HoldReleaser
	logger   *zap.Logger
	now      func() time.Time
}

func NewCardsHandler(cards CardLister, releaser HoldReleaser, logger *zap.Logger) *CardsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CardsHandler{
		cards:    cards,
		releaser: releaser,
		logger:   logger,
		now:      time.Now,
	}
}

func (h *CardsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.cards == nil {
		writeInternal(w, "CARDS_UNAVAILABLE", "card service is unavailable")
		return
	}

	releaseLapsedHolds(r.Context(), h.releaser, h.now, h.logger)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	category := r.URL.Query().Get("category")

	items, err := h.cards.List(r.Context(), limit, category)
	if err != nil {
		h.logger.Error("list cards", zap.Error(err))
		writeInternal(w, "INTERNAL_ERROR", "failed to list cards")
		return
	}

	resp := dto.CardListResponse{Items: make([]dto.CardResponse, 0, len(items))}
	for _, card := range items {
		resp.Items = append(resp.Items, dto.CardResponse{
			ID:           card.ID,
			CreatedAt:    card.CreatedAt,
			Category:     card.Category.String(),
			Status:       string(card.Status),
			PendingUntil: card.PendingUntil,
			ThumbURL:     "/thumb/" + card.ID + ".jpg",
			ImageURL:     "/img/" + card.ID + ".jpg",
		})
	}

	httperrors.Write(w, http.StatusOK, resp)
}

func (h *CardsHandler) Categories(w http.ResponseWriter, _ *http.Request) {
	categories := enums.Categories()
	resp := dto.CategoryListResponse{Items: make([]dto.CategoryResponse, 0, len(categories))}
	for _, c := range categories {
		resp.Items = append(resp.Items, dto.CategoryResponse{ID: c.String(), Label: c.Label()})
	}

	httperrors.Write(w, http.StatusOK, resp)
}

// releaseLapsedHolds corrects expired reservations before the caller reads
// or writes showcase state. A failed sweep is only logged: stale holds fix
// themselves on the next pass.
func releaseLapsedHolds(ctx context.Context, releaser HoldReleaser, now func() time.Time, logger *zap.Logger) {
	if releaser == nil {
		return
	}
	if _, err := releaser.ReleaseExpired(ctx, now().UTC()); err != nil && logger != nil {
		logger.Warn("release expired holds", zap.Error(err))
	}
}
