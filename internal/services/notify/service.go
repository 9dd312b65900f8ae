package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	bulkDeleteMinCards = 2

	// Telegram rejects keyboards with more than 8 buttons in a row; four
	// per row keeps the card-id labels readable on a phone.
	deleteButtonsPerRow = 4
)

type Button struct {
	Label string
	Data  string
}

type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendInline(ctx context.Context, chatID int64, text string, rows [][]Button) error
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error
	SendPhotoGroup(ctx context.Context, chatID int64, photoURLs []string) error
}

type TokenIssuer interface {
	Create(ctx context.Context, ids []string, now time.Time) (string, error)
}

// RequestEvent is one visitor submission as seen by the admin console.
type RequestEvent struct {
	IDs       []string
	Name      string
	Message   string
	CreatedAt time.Time
}

// Service formats exchange requests into admin notifications and pushes
// them to every configured admin chat. Dispatch never reports failure to
// the caller: the visitor already got their success response.
type Service struct {
	messenger Messenger
	tokens    TokenIssuer
	admins    []int64
	publicURL string
	logger    *zap.Logger
}

func NewService(messenger Messenger, tokens TokenIssuer, admins []int64, publicURL string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		messenger: messenger,
		tokens:    tokens,
		admins:    admins,
		publicURL: strings.TrimRight(strings.TrimSpace(publicURL), "/"),
		logger:    logger,
	}
}

// Dispatch sends the formatted request message with its action buttons,
// then the card previews, to each admin chat in turn.
func (s *Service) Dispatch(ctx context.Context, event RequestEvent) {
	if s.messenger == nil || len(s.admins) == 0 || len(event.IDs) == 0 {
		return
	}

	text := s.formatRequest(event)
	buttons := s.requestButtons(ctx, event)
	previews := s.previewURLs(event.IDs)

	for _, chatID := range s.admins {
		if err := s.messenger.SendInline(ctx, chatID, text, buttons); err != nil {
			s.logger.Warn("send request notification",
				zap.Int64("chat_id", chatID),
				zap.Error(err))
			continue
		}

		s.sendPreviews(ctx, chatID, previews)
	}
}

// NotifyText pushes a plain service message (upload confirmations, sweep
// reports) to every admin chat.
func (s *Service) NotifyText(ctx context.Context, text string) {
	if s.messenger == nil || strings.TrimSpace(text) == "" {
		return
	}

	for _, chatID := range s.admins {
		if err := s.messenger.SendText(ctx, chatID, text); err != nil {
			s.logger.Warn("send admin text",
				zap.Int64("chat_id", chatID),
				zap.Error(err))
		}
	}
}

func (s *Service) formatRequest(event RequestEvent) string {
	var sb strings.Builder

	if len(event.IDs) == 1 {
		sb.WriteString("📩 Запрос открытки: " + event.IDs[0] + "\n")
	} else {
		sb.WriteString(fmt.Sprintf("📩 Запрос открыток (%d):\n", len(event.IDs)))
		for _, id := range event.IDs {
			sb.WriteString("• " + id + " — " + s.cardPageURL(id) + "\n")
		}
	}

	sb.WriteString("От: " + event.Name)

	if msg := strings.TrimSpace(event.Message); msg != "" {
		sb.WriteString("\nСообщение: " + msg)
	}

	return sb.String()
}

func (s *Service) requestButtons(ctx context.Context, event RequestEvent) [][]Button {
	var rows [][]Button
	var row []Button
	for _, id := range event.IDs {
		row = append(row, Button{
			Label: "🗑 " + id,
			Data:  "del:" + id,
		})
		if len(row) == deleteButtonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	if len(event.IDs) >= bulkDeleteMinCards && s.tokens != nil {
		token, err := s.tokens.Create(ctx, event.IDs, event.CreatedAt)
		if err != nil {
			s.logger.Warn("issue bulk delete token", zap.Error(err))
		} else if token != "" {
			rows = append(rows, []Button{{
				Label: "🗑 Удалить все",
				Data:  "delall:" + token,
			}})
		}
	}

	return rows
}

func (s *Service) sendPreviews(ctx context.Context, chatID int64, previews []string) {
	if len(previews) == 0 {
		return
	}

	err := s.messenger.SendPhotoGroup(ctx, chatID, previews)
	if err == nil {
		return
	}
	s.logger.Warn("send preview album, falling back to single photos",
		zap.Int64("chat_id", chatID),
		zap.Error(err))

	for _, url := range previews {
		if err := s.messenger.SendPhoto(ctx, chatID, url, ""); err != nil {
			s.logger.Warn("send preview photo",
				zap.Int64("chat_id", chatID),
				zap.String("url", url),
				zap.Error(err))
		}
	}
}

func (s *Service) previewURLs(ids []string) []string {
	urls := make([]string, 0, len(ids))
	for _, id := range ids {
		urls = append(urls, s.publicURL+"/thumb/"+id+".jpg")
	}
	return urls
}

func (s *Service) cardPageURL(id string) string {
	return s.publicURL + "/#" + id
}
