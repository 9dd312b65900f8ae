package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/subochevgeni/morrigan-postcards/internal/services/captcha"
	"github.com/subochevgeni/morrigan-postcards/internal/services/requests"
	"github.com/subochevgeni/morrigan-postcards/internal/transport/http/dto"
	httperrors "github.com/subochevgeni/morrigan-postcards/internal/transport/http/errors"
)

type RequestSubmitter interface {
	Submit(ctx context.Context, sub requests.Submission) (requests.Result, error)
}

type ChallengeVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (captcha.Result, error)
}

type RequestLimiter interface {
	AllowRequest(ctx context.Context, ip string) (int64, bool, error)
}

type RequestHandler struct {
	requests RequestSubmitter
	captcha  ChallengeVerifier
	limiter  RequestLimiter
	releaser HoldReleaser
	logger   *zap.Logger
	now      func() time.Time
}

func NewRequestHandler(submitter RequestSubmitter, verifier ChallengeVerifier, limiter RequestLimiter, releaser HoldReleaser, logger *zap.Logger) *RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RequestHandler{
		requests: submitter,
		captcha:  verifier,
		limiter:  limiter,
		releaser: releaser,
		logger:   logger,
		now:      time.Now,
	}
}

func (h *RequestHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.requests == nil || h.captcha == nil {
		writeInternal(w, "REQUEST_SERVICE_UNAVAILABLE", "request service is unavailable")
		return
	}

	var req dto.ExchangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	// Honeypot: a filled hidden field gets a quiet success, no side effects.
	if req.Website != "" {
		httperrors.Write(w, http.StatusOK, dto.ExchangeResponse{OK: true})
		return
	}

	ip := clientIPFromRequest(r)

	if h.limiter != nil {
		retryAfter, allowed, err := h.limiter.AllowRequest(r.Context(), ip)
		if err != nil {
			// Rate limiting is protective, not load-bearing: on limiter
			// failure the request proceeds.
			h.logger.Warn("request rate limiter", zap.Error(err))
		} else if !allowed {
			httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
				Code:          "TOO_MANY_REQUESTS",
				Message:       "too many requests, try again later",
				RetryAfterSec: retryAfter,
			})
			return
		}
	}

	verdict, err := h.captcha.Verify(r.Context(), req.TurnstileToken, ip)
	if err != nil {
		h.logger.Error("verify challenge token", zap.Error(err))
		writeForbidden(w, "CHALLENGE_FAILED", "challenge verification failed")
		return
	}
	if !verdict.OK {
		writeForbidden(w, "CHALLENGE_FAILED", "challenge verification failed: "+verdict.Reason)
		return
	}

	releaseLapsedHolds(r.Context(), h.releaser, h.now, h.logger)

	result, err := h.requests.Submit(r.Context(), requests.Submission{
		IDs:     req.CardIDs(),
		Name:    req.Name,
		Message: req.Message,
	})
	if err != nil {
		switch {
		case errors.Is(err, requests.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid request payload")
		case errors.Is(err, requests.ErrUnavailable):
			writeNotFound(w, "CARD_UNAVAILABLE", "card is not available")
		default:
			h.logger.Error("submit exchange request", zap.Error(err))
			writeInternal(w, "INTERNAL_ERROR", "failed to submit request")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.ExchangeResponse{OK: true, Deduped: result.Deduped})
}
