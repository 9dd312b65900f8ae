package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Bot struct {
	api        *tgbotapi.BotAPI
	httpClient *http.Client
}

type PhotoSize struct {
	FileID string
	Width  int
	Height int
}

// MessageUpdate is a flattened incoming message: either a command, a plain
// text, or a media message with the photo size ladder Telegram provides.
type MessageUpdate struct {
	ChatID      int64
	UserID      int64
	Username    string
	Command     string
	Args        string
	Text        string
	Caption     string
	Photos      []PhotoSize
	HasDocument bool
}

type CallbackUpdate struct {
	CallbackID string
	ChatID     int64
	UserID     int64
	Username   string
	Data       string
}

type InlineButton struct {
	Label string
	Data  string
}

func NewBot(token string) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}

	api, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}

	return &Bot{
		api: api,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// Classify maps a raw update onto the two shapes the admin console handles.
// Both results are nil for update kinds the console ignores.
func Classify(update tgbotapi.Update) (*MessageUpdate, *CallbackUpdate) {
	if update.CallbackQuery != nil && update.CallbackQuery.From != nil {
		chatID := int64(0)
		if update.CallbackQuery.Message != nil {
			chatID = update.CallbackQuery.Message.Chat.ID
		}
		return nil, &CallbackUpdate{
			CallbackID: update.CallbackQuery.ID,
			ChatID:     chatID,
			UserID:     update.CallbackQuery.From.ID,
			Username:   update.CallbackQuery.From.UserName,
			Data:       update.CallbackQuery.Data,
		}
	}

	if update.Message == nil || update.Message.From == nil {
		return nil, nil
	}

	msg := update.Message
	out := &MessageUpdate{
		ChatID:      msg.Chat.ID,
		UserID:      msg.From.ID,
		Username:    msg.From.UserName,
		Text:        strings.TrimSpace(msg.Text),
		Caption:     strings.TrimSpace(msg.Caption),
		HasDocument: msg.Document != nil,
	}

	if msg.IsCommand() {
		out.Command = msg.Command()
		out.Args = strings.TrimSpace(msg.CommandArguments())
	}

	for _, p := range msg.Photo {
		out.Photos = append(out.Photos, PhotoSize{
			FileID: p.FileID,
			Width:  p.Width,
			Height: p.Height,
		})
	}

	return out, nil
}

// Listen runs a long-polling loop as an alternative to the webhook route.
func (b *Bot) Listen(ctx context.Context, handler func(context.Context, tgbotapi.Update)) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if handler == nil {
		return fmt.Errorf("update handler is nil")
	}

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := b.api.GetUpdatesChan(updateCfg)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			handler(ctx, update)
		}
	}
}

func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if chatID == 0 {
		return fmt.Errorf("chat id is required")
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	_ = ctx
	return nil
}

// SendMenu attaches a persistent reply keyboard built from rows of plain
// button labels.
func (b *Bot) SendMenu(ctx context.Context, chatID int64, text string, rows [][]string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if chatID == 0 {
		return fmt.Errorf("chat id is required")
	}

	keyboardRows := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		keyboardRows = append(keyboardRows, buttons)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	keyboard := tgbotapi.NewReplyKeyboard(keyboardRows...)
	keyboard.ResizeKeyboard = true
	msg.ReplyMarkup = keyboard

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram menu: %w", err)
	}

	_ = ctx
	return nil
}

// SendInline sends text with an inline callback keyboard. Telegram caps a
// keyboard row at 8 buttons, so callers pass pre-chunked rows.
func (b *Bot) SendInline(ctx context.Context, chatID int64, text string, rows [][]InlineButton) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if chatID == 0 {
		return fmt.Errorf("chat id is required")
	}

	msg := tgbotapi.NewMessage(chatID, text)
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, buttons := range rows {
		if len(buttons) == 0 {
			continue
		}
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(buttons))
		for _, btn := range buttons {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data))
		}
		keyboard = append(keyboard, row)
	}
	if len(keyboard) > 0 {
		msg.ReplyMarkup = tgbotapi.InlineKeyboardMarkup{InlineKeyboard: keyboard}
	}

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram inline message: %w", err)
	}

	_ = ctx
	return nil
}

func (b *Bot) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if chatID == 0 || strings.TrimSpace(photoURL) == "" {
		return fmt.Errorf("chat id and photo url are required")
	}

	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(photoURL))
	msg.Caption = caption
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram photo: %w", err)
	}

	_ = ctx
	return nil
}

// SendPhotoGroup sends up to ten photos as one album. Telegram rejects
// albums of a single item, so small batches fall back to SendPhoto.
func (b *Bot) SendPhotoGroup(ctx context.Context, chatID int64, photoURLs []string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if chatID == 0 || len(photoURLs) == 0 {
		return fmt.Errorf("chat id and photo urls are required")
	}

	if len(photoURLs) == 1 {
		return b.SendPhoto(ctx, chatID, photoURLs[0], "")
	}

	if len(photoURLs) > 10 {
		photoURLs = photoURLs[:10]
	}

	media := make([]interface{}, 0, len(photoURLs))
	for _, url := range photoURLs {
		media = append(media, tgbotapi.NewInputMediaPhoto(tgbotapi.FileURL(url)))
	}

	group := tgbotapi.NewMediaGroup(chatID, media)
	if _, err := b.api.SendMediaGroup(group); err != nil {
		return fmt.Errorf("send telegram media group: %w", err)
	}

	_ = ctx
	return nil
}

func (b *Bot) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if strings.TrimSpace(callbackID) == "" {
		return nil
	}

	cfg := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(cfg); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}

	_ = ctx
	return nil
}

// DownloadPhoto fetches a photo file by Telegram file id and returns its
// body, declared length, and content type.
func (b *Bot) DownloadPhoto(ctx context.Context, fileID string) (io.ReadCloser, int64, string, error) {
	if b == nil || b.api == nil {
		return nil, 0, "", fmt.Errorf("telegram bot is not initialized")
	}
	if strings.TrimSpace(fileID) == "" {
		return nil, 0, "", fmt.Errorf("file id is required")
	}

	tgFile, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, 0, "", fmt.Errorf("get telegram file: %w", err)
	}

	fileURL := tgFile.Link(b.api.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, 0, "", fmt.Errorf("create file request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, 0, "", fmt.Errorf("download telegram file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, 0, "", fmt.Errorf("unexpected telegram file status: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.TrimSpace(contentType) == "" {
		contentType = "image/jpeg"
	}

	return resp.Body, resp.ContentLength, contentType, nil
}
