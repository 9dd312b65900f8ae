package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/subochevgeni/morrigan-postcards/internal/services/captcha"
	"github.com/subochevgeni/morrigan-postcards/internal/services/requests"
)

type fakeSubmitter struct {
	result      requests.Result
	err         error
	submissions []requests.Submission
}

func (f *fakeSubmitter) Submit(_ context.Context, sub requests.Submission) (requests.Result, error) {
	f.submissions = append(f.submissions, sub)
	return f.result, f.err
}

type fakeVerifier struct {
	result captcha.Result
	err    error
	tokens []string
}

func (f *fakeVerifier) Verify(_ context.Context, token, _ string) (captcha.Result, error) {
	f.tokens = append(f.tokens, token)
	return f.result, f.err
}

type fakeLimiter struct {
	retryAfter int64
	allowed    bool
	err        error
}

func (f *fakeLimiter) AllowRequest(_ context.Context, _ string) (int64, bool, error) {
	return f.retryAfter, f.allowed, f.err
}

type fakeReleaser struct {
	calls int
}

func (f *fakeReleaser) ReleaseExpired(_ context.Context, _ time.Time) (int64, error) {
	f.calls++
	return 0, nil
}

func postRequest(t *testing.T, h *RequestHandler, payload any) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/request", bytes.NewReader(body))
	req.RemoteAddr = "203.0.113.7:41812"
	rr := httptest.NewRecorder()
	h.Handle(rr, req)
	return rr
}

func TestRequestHandlerHappyPath(t *testing.T) {
	submitter := &fakeSubmitter{}
	verifier := &fakeVerifier{result: captcha.Result{OK: true}}
	releaser := &fakeReleaser{}
	h := NewRequestHandler(submitter, verifier, &fakeLimiter{allowed: true}, releaser, nil)

	rr := postRequest(t, h, map[string]any{
		"ids":            []string{"ab23cd", "ef45gh"},
		"name":           "Jo",
		"turnstileToken": "tok",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["ok"] != true {
		t.Fatalf("response = %v", resp)
	}
	if _, ok := resp["deduped"]; ok {
		t.Fatalf("deduped flag present on fresh submission: %v", resp)
	}

	if len(submitter.submissions) != 1 {
		t.Fatalf("submissions = %d", len(submitter.submissions))
	}
	if got := submitter.submissions[0]; len(got.IDs) != 2 || got.Name != "Jo" {
		t.Fatalf("submission = %+v", got)
	}
	if len(verifier.tokens) != 1 || verifier.tokens[0] != "tok" {
		t.Fatalf("verified tokens = %v", verifier.tokens)
	}
	if releaser.calls != 1 {
		t.Fatalf("release sweeps = %d", releaser.calls)
	}
}

func TestRequestHandlerDedupedFlag(t *testing.T) {
	submitter := &fakeSubmitter{result: requests.Result{Deduped: true}}
	h := NewRequestHandler(submitter, &fakeVerifier{result: captcha.Result{OK: true}}, nil, nil, nil)

	rr := postRequest(t, h, map[string]any{
		"id": "ab23cd", "name": "Jo", "turnstileToken": "tok",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["deduped"] != true {
		t.Fatalf("response = %v", resp)
	}
}

func TestRequestHandlerHoneypot(t *testing.T) {
	submitter := &fakeSubmitter{}
	verifier := &fakeVerifier{result: captcha.Result{OK: true}}
	h := NewRequestHandler(submitter, verifier, &fakeLimiter{allowed: true}, nil, nil)

	rr := postRequest(t, h, map[string]any{
		"id": "ab23cd", "name": "Jo", "website": "http://spam", "turnstileToken": "tok",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(submitter.submissions) != 0 || len(verifier.tokens) != 0 {
		t.Fatal("honeypot hit reached downstream services")
	}
}

func TestRequestHandlerRateLimited(t *testing.T) {
	submitter := &fakeSubmitter{}
	h := NewRequestHandler(submitter, &fakeVerifier{result: captcha.Result{OK: true}},
		&fakeLimiter{retryAfter: 42}, nil, nil)

	rr := postRequest(t, h, map[string]any{"id": "ab23cd", "name": "Jo", "turnstileToken": "tok"})

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if int(resp["retry_after_sec"].(float64)) != 42 {
		t.Fatalf("response = %v", resp)
	}
	if len(submitter.submissions) != 0 {
		t.Fatal("throttled request was submitted")
	}
}

func TestRequestHandlerLimiterFailureAllows(t *testing.T) {
	submitter := &fakeSubmitter{}
	h := NewRequestHandler(submitter, &fakeVerifier{result: captcha.Result{OK: true}},
		&fakeLimiter{err: fmt.Errorf("redis down")}, nil, nil)

	rr := postRequest(t, h, map[string]any{"id": "ab23cd", "name": "Jo", "turnstileToken": "tok"})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(submitter.submissions) != 1 {
		t.Fatal("request dropped on limiter infrastructure failure")
	}
}

func TestRequestHandlerChallengeRejected(t *testing.T) {
	submitter := &fakeSubmitter{}
	h := NewRequestHandler(submitter,
		&fakeVerifier{result: captcha.Result{Reason: captcha.ReasonBadHostname}}, nil, nil, nil)

	rr := postRequest(t, h, map[string]any{"id": "ab23cd", "name": "Jo", "turnstileToken": "tok"})

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(submitter.submissions) != 0 {
		t.Fatal("rejected challenge reached the request service")
	}
}

func TestRequestHandlerChallengeServiceError(t *testing.T) {
	h := NewRequestHandler(&fakeSubmitter{}, &fakeVerifier{err: fmt.Errorf("siteverify 502")}, nil, nil, nil)

	rr := postRequest(t, h, map[string]any{"id": "ab23cd", "name": "Jo", "turnstileToken": "tok"})

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRequestHandlerValidationError(t *testing.T) {
	submitter := &fakeSubmitter{err: fmt.Errorf("%w: malformed card id", requests.ErrValidation)}
	h := NewRequestHandler(submitter, &fakeVerifier{result: captcha.Result{OK: true}}, nil, nil, nil)

	rr := postRequest(t, h, map[string]any{"id": "zz", "name": "Jo", "turnstileToken": "tok"})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRequestHandlerUnavailableCard(t *testing.T) {
	submitter := &fakeSubmitter{err: requests.ErrUnavailable}
	h := NewRequestHandler(submitter, &fakeVerifier{result: captcha.Result{OK: true}}, nil, nil, nil)

	rr := postRequest(t, h, map[string]any{"id": "ab23cd", "name": "Jo", "turnstileToken": "tok"})

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRequestHandlerMalformedJSON(t *testing.T) {
	h := NewRequestHandler(&fakeSubmitter{}, &fakeVerifier{result: captcha.Result{OK: true}}, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/request", bytes.NewReader([]byte("{nope")))
	rr := httptest.NewRecorder()
	h.Handle(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}
