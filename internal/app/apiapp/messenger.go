package apiapp

import (
	"context"

	tginfra "github.com/subochevgeni/morrigan-postcards/internal/infra/telegram"
	"github.com/subochevgeni/morrigan-postcards/internal/services/notify"
)

// botMessenger bridges the notification service's button type onto the
// Telegram client. All other methods match directly.
type botMessenger struct {
	bot *tginfra.Bot
}

func (m botMessenger) SendText(ctx context.Context, chatID int64, text string) error {
	return m.bot.SendText(ctx, chatID, text)
}

func (m botMessenger) SendInline(ctx context.Context, chatID int64, text string, rows [][]notify.Button) error {
	converted := make([][]tginfra.InlineButton, 0, len(rows))
	for _, buttons := range rows {
		row := make([]tginfra.InlineButton, 0, len(buttons))
		for _, b := range buttons {
			row = append(row, tginfra.InlineButton{Label: b.Label, Data: b.Data})
		}
		converted = append(converted, row)
	}
	return m.bot.SendInline(ctx, chatID, text, converted)
}

func (m botMessenger) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error {
	return m.bot.SendPhoto(ctx, chatID, photoURL, caption)
}

func (m botMessenger) SendPhotoGroup(ctx context.Context, chatID int64, photoURLs []string) error {
	return m.bot.SendPhotoGroup(ctx, chatID, photoURLs)
}
