package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/subochevgeni/morrigan-postcards/internal/services/cards"
)

type fakeOpener struct {
	payloads map[string]string
	thumbs   []bool
}

func (f *fakeOpener) OpenImage(_ context.Context, id string, thumb bool) (io.ReadCloser, int64, string, error) {
	f.thumbs = append(f.thumbs, thumb)
	payload, ok := f.payloads[id]
	if !ok {
		return nil, 0, "", fmt.Errorf("open image: %w", cards.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader([]byte(payload))), int64(len(payload)), "image/jpeg", nil
}

func newImageRouter(opener *fakeOpener) chi.Router {
	h := NewImageHandler(opener, nil)
	r := chi.NewRouter()
	r.Get("/img/{file}", h.Full)
	r.Get("/thumb/{file}", h.Thumb)
	return r
}

func TestImageHandlerServesFull(t *testing.T) {
	opener := &fakeOpener{payloads: map[string]string{"ab23cd": "jpegdata"}}
	router := newImageRouter(opener)

	req := httptest.NewRequest(http.MethodGet, "/img/ab23cd.jpg", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := rr.Header().Get("Cache-Control"); got != "public, max-age=31536000, immutable" {
		t.Fatalf("cache-control = %q", got)
	}
	if got := rr.Header().Get("Content-Type"); got != "image/jpeg" {
		t.Fatalf("content-type = %q", got)
	}
	if rr.Body.String() != "jpegdata" {
		t.Fatalf("body = %q", rr.Body.String())
	}
	if len(opener.thumbs) != 1 || opener.thumbs[0] {
		t.Fatalf("thumb flags = %v, want full image", opener.thumbs)
	}
}

func TestImageHandlerServesThumb(t *testing.T) {
	opener := &fakeOpener{payloads: map[string]string{"ab23cd": "tiny"}}
	router := newImageRouter(opener)

	req := httptest.NewRequest(http.MethodGet, "/thumb/ab23cd.jpg", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(opener.thumbs) != 1 || !opener.thumbs[0] {
		t.Fatalf("thumb flags = %v, want thumbnail", opener.thumbs)
	}
}

func TestImageHandlerUnknownCard(t *testing.T) {
	router := newImageRouter(&fakeOpener{payloads: map[string]string{}})

	req := httptest.NewRequest(http.MethodGet, "/img/zzzz99.jpg", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestImageHandlerMalformedName(t *testing.T) {
	opener := &fakeOpener{payloads: map[string]string{"ab23cd": "jpegdata"}}
	router := newImageRouter(opener)

	for _, path := range []string{"/img/ab23cd.png", "/img/toolongname.jpg", "/img/AB23CD.jpg"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s: status = %d", path, rr.Code)
		}
	}
	if len(opener.thumbs) != 0 {
		t.Fatal("malformed names reached storage")
	}
}
