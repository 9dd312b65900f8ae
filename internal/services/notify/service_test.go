package notify

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type sentInline struct {
	chatID int64
	text   string
	rows   [][]Button
}

func (s sentInline) buttons() []Button {
	var flat []Button
	for _, row := range s.rows {
		flat = append(flat, row...)
	}
	return flat
}

type fakeMessenger struct {
	inlines     []sentInline
	texts       map[int64][]string
	groups      map[int64][][]string
	photos      map[int64][]string
	failInline  bool
	failGroup   bool
	failPhotoAt int
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		texts:       map[int64][]string{},
		groups:      map[int64][][]string{},
		photos:      map[int64][]string{},
		failPhotoAt: -1,
	}
}

func (f *fakeMessenger) SendText(_ context.Context, chatID int64, text string) error {
	f.texts[chatID] = append(f.texts[chatID], text)
	return nil
}

func (f *fakeMessenger) SendInline(_ context.Context, chatID int64, text string, rows [][]Button) error {
	if f.failInline {
		return fmt.Errorf("inline send failed")
	}
	f.inlines = append(f.inlines, sentInline{chatID: chatID, text: text, rows: rows})
	return nil
}

func (f *fakeMessenger) SendPhoto(_ context.Context, chatID int64, photoURL, _ string) error {
	if f.failPhotoAt >= 0 && len(f.photos[chatID]) == f.failPhotoAt {
		return fmt.Errorf("photo send failed")
	}
	f.photos[chatID] = append(f.photos[chatID], photoURL)
	return nil
}

func (f *fakeMessenger) SendPhotoGroup(_ context.Context, chatID int64, photoURLs []string) error {
	if f.failGroup {
		return fmt.Errorf("media group send failed")
	}
	f.groups[chatID] = append(f.groups[chatID], photoURLs)
	return nil
}

type fakeTokens struct {
	token   string
	err     error
	created [][]string
}

func (f *fakeTokens) Create(_ context.Context, ids []string, _ time.Time) (string, error) {
	f.created = append(f.created, ids)
	return f.token, f.err
}

var testEventTime = time.Date(2025, time.March, 8, 12, 0, 0, 0, time.UTC)

func TestDispatchMultiCardRequest(t *testing.T) {
	messenger := newFakeMessenger()
	tokens := &fakeTokens{token: "tok23456"}
	svc := NewService(messenger, tokens, []int64{100, 200}, "https://cards.example/", zap.NewNop())

	svc.Dispatch(context.Background(), RequestEvent{
		IDs:       []string{"ab23cd", "ef45gh"},
		Name:      "Jo",
		Message:   "привет",
		CreatedAt: testEventTime,
	})

	if len(messenger.inlines) != 2 {
		t.Fatalf("inline messages = %d, want 2", len(messenger.inlines))
	}

	first := messenger.inlines[0]
	if first.chatID != 100 || messenger.inlines[1].chatID != 200 {
		t.Fatalf("chat ids = %d, %d", first.chatID, messenger.inlines[1].chatID)
	}
	if !strings.Contains(first.text, "Запрос открыток (2)") {
		t.Fatalf("text missing header: %q", first.text)
	}
	if !strings.Contains(first.text, "https://cards.example/#ab23cd") {
		t.Fatalf("text missing card link: %q", first.text)
	}
	if !strings.Contains(first.text, "От: Jo") || !strings.Contains(first.text, "Сообщение: привет") {
		t.Fatalf("text missing requester lines: %q", first.text)
	}

	buttons := first.buttons()
	if len(buttons) != 3 {
		t.Fatalf("buttons = %d, want 3", len(buttons))
	}
	if buttons[0].Data != "del:ab23cd" || buttons[1].Data != "del:ef45gh" {
		t.Fatalf("delete buttons = %q, %q", buttons[0].Data, buttons[1].Data)
	}
	if buttons[2].Data != "delall:tok23456" {
		t.Fatalf("bulk button = %q", buttons[2].Data)
	}

	if len(tokens.created) != 1 {
		t.Fatalf("token creates = %d, want one per event", len(tokens.created))
	}

	groups := messenger.groups[100]
	if len(groups) != 1 || len(groups[0]) != 2 {
		t.Fatalf("preview group for chat 100 = %v", groups)
	}
	if groups[0][0] != "https://cards.example/thumb/ab23cd.jpg" {
		t.Fatalf("preview url = %q", groups[0][0])
	}
}

func TestDispatchFullCartChunksButtonRows(t *testing.T) {
	messenger := newFakeMessenger()
	tokens := &fakeTokens{token: "tok23456"}
	svc := NewService(messenger, tokens, []int64{100}, "https://cards.example", zap.NewNop())

	ids := []string{
		"aa23cd", "ab23cd", "ac23cd", "ad23cd", "ae23cd",
		"af23cd", "ag23cd", "ah23cd", "ak23cd", "am23cd",
	}
	svc.Dispatch(context.Background(), RequestEvent{
		IDs:       ids,
		Name:      "Jo",
		CreatedAt: testEventTime,
	})

	first := messenger.inlines[0]
	for i, row := range first.rows {
		if len(row) > 8 {
			t.Fatalf("row %d has %d buttons, over the keyboard row cap", i, len(row))
		}
	}
	if len(first.rows) != 4 {
		t.Fatalf("rows = %d, want 3 id rows plus the bulk row", len(first.rows))
	}

	buttons := first.buttons()
	if len(buttons) != len(ids)+1 {
		t.Fatalf("buttons = %d, want one per card plus bulk", len(buttons))
	}
	for i, id := range ids {
		if buttons[i].Data != "del:"+id {
			t.Fatalf("button %d = %q", i, buttons[i].Data)
		}
	}
	last := first.rows[len(first.rows)-1]
	if len(last) != 1 || last[0].Data != "delall:tok23456" {
		t.Fatalf("bulk row = %v", last)
	}
}

func TestDispatchSingleCardSkipsBulkToken(t *testing.T) {
	messenger := newFakeMessenger()
	tokens := &fakeTokens{token: "tok23456"}
	svc := NewService(messenger, tokens, []int64{100}, "https://cards.example", zap.NewNop())

	svc.Dispatch(context.Background(), RequestEvent{
		IDs:       []string{"ab23cd"},
		Name:      "Jo",
		CreatedAt: testEventTime,
	})

	if len(tokens.created) != 0 {
		t.Fatalf("token issued for a single card request")
	}

	first := messenger.inlines[0]
	if !strings.Contains(first.text, "Запрос открытки: ab23cd") {
		t.Fatalf("text = %q", first.text)
	}
	buttons := first.buttons()
	if len(buttons) != 1 || buttons[0].Data != "del:ab23cd" {
		t.Fatalf("buttons = %v", buttons)
	}
}

func TestDispatchTokenFailureDropsBulkButton(t *testing.T) {
	messenger := newFakeMessenger()
	tokens := &fakeTokens{err: fmt.Errorf("store down")}
	svc := NewService(messenger, tokens, []int64{100}, "https://cards.example", zap.NewNop())

	svc.Dispatch(context.Background(), RequestEvent{
		IDs:       []string{"ab23cd", "ef45gh"},
		Name:      "Jo",
		CreatedAt: testEventTime,
	})

	buttons := messenger.inlines[0].buttons()
	for _, btn := range buttons {
		if strings.HasPrefix(btn.Data, "delall:") {
			t.Fatalf("bulk button present despite token failure: %v", buttons)
		}
	}
	if len(buttons) != 2 {
		t.Fatalf("buttons = %d, want per-card only", len(buttons))
	}
}

func TestDispatchAlbumFailureFallsBackToPhotos(t *testing.T) {
	messenger := newFakeMessenger()
	messenger.failGroup = true
	svc := NewService(messenger, &fakeTokens{token: "tok23456"}, []int64{100}, "https://cards.example", zap.NewNop())

	svc.Dispatch(context.Background(), RequestEvent{
		IDs:       []string{"ab23cd", "ef45gh"},
		Name:      "Jo",
		CreatedAt: testEventTime,
	})

	photos := messenger.photos[100]
	if len(photos) != 2 {
		t.Fatalf("fallback photos = %d, want 2", len(photos))
	}
}

func TestDispatchInlineFailureSkipsPreviews(t *testing.T) {
	messenger := newFakeMessenger()
	messenger.failInline = true
	svc := NewService(messenger, &fakeTokens{token: "tok23456"}, []int64{100}, "https://cards.example", zap.NewNop())

	svc.Dispatch(context.Background(), RequestEvent{
		IDs:       []string{"ab23cd", "ef45gh"},
		Name:      "Jo",
		CreatedAt: testEventTime,
	})

	if len(messenger.groups[100]) != 0 || len(messenger.photos[100]) != 0 {
		t.Fatal("previews sent after notification send failed")
	}
}

func TestNotifyTextBroadcasts(t *testing.T) {
	messenger := newFakeMessenger()
	svc := NewService(messenger, nil, []int64{100, 200}, "https://cards.example", zap.NewNop())

	svc.NotifyText(context.Background(), "готово")

	if len(messenger.texts[100]) != 1 || len(messenger.texts[200]) != 1 {
		t.Fatalf("texts = %v", messenger.texts)
	}
}
