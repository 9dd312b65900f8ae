package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/subochevgeni/morrigan-postcards/internal/pkg/shortid"
	"github.com/subochevgeni/morrigan-postcards/internal/services/cards"
)

// Images are immutable once uploaded, so clients may cache them for a year.
const imageCacheControl = "public, max-age=31536000, immutable"

type ImageOpener interface {
	OpenImage(ctx context.Context, id string, thumb bool) (io.ReadCloser, int64, string, error)
}

type ImageHandler struct {
	cards  ImageOpener
	logger *zap.Logger
}

func NewImageHandler(opener ImageOpener, logger *zap.Logger) *ImageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageHandler{cards: opener, logger: logger}
}

func (h *ImageHandler) Full(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, false)
}

func (h *ImageHandler) Thumb(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, true)
}

func (h *ImageHandler) serve(w http.ResponseWriter, r *http.Request, thumb bool) {
	if h.cards == nil {
		http.Error(w, "image storage is unavailable", http.StatusInternalServerError)
		return
	}

	id := strings.TrimSuffix(chi.URLParam(r, "file"), ".jpg")
	if !shortid.Valid(id, shortid.CardIDLength) {
		http.NotFound(w, r)
		return
	}

	body, size, contentType, err := h.cards.OpenImage(r.Context(), id, thumb)
	if err != nil {
		if errors.Is(err, cards.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("open card image", zap.String("id", id), zap.Error(err))
		http.Error(w, "failed to read image", http.StatusInternalServerError)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", imageCacheControl)
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}

	if _, err := io.Copy(w, body); err != nil {
		h.logger.Debug("stream card image", zap.String("id", id), zap.Error(err))
	}
}
