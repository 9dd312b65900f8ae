package adminbot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/subochevgeni/morrigan-postcards/internal/domain/enums"
	"github.com/subochevgeni/morrigan-postcards/internal/domain/model"
	"github.com/subochevgeni/morrigan-postcards/internal/pkg/shortid"
	"github.com/subochevgeni/morrigan-postcards/internal/services/adminactions"
	"github.com/subochevgeni/morrigan-postcards/internal/services/cards"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

var pickPattern = regexp.MustCompile(`pick_([0-9a-z]+)`)

type Photo struct {
	FileID string
	Width  int
	Height int
}

type Message struct {
	ChatID      int64
	UserID      int64
	Username    string
	Command     string
	Args        string
	Text        string
	Caption     string
	Photos      []Photo
	HasDocument bool
}

type Callback struct {
	CallbackID string
	ChatID     int64
	UserID     int64
	Data       string
}

type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendMenu(ctx context.Context, chatID int64, text string, rows [][]string) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

type PhotoFetcher interface {
	DownloadPhoto(ctx context.Context, fileID string) (io.ReadCloser, int64, string, error)
}

type CardAdmin interface {
	Create(ctx context.Context, category enums.Category, full, thumb cards.Upload) (model.Card, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteMany(ctx context.Context, ids []string) []string
	Stats(ctx context.Context) (int64, error)
	Last(ctx context.Context) (*model.Card, error)
	RecentIDs(ctx context.Context, limit int) ([]string, error)
}

type TokenConsumer interface {
	Consume(ctx context.Context, token string, now time.Time) ([]string, error)
}

// Service is the admin console behind the bot: photo uploads become cards,
// commands inspect the showcase, callbacks act on request notifications.
type Service struct {
	messenger    Messenger
	files        PhotoFetcher
	cards        CardAdmin
	tokens       TokenConsumer
	admins       []int64
	primaryAdmin int64
	publicURL    string
	logger       *zap.Logger
	now          func() time.Time
}

func NewService(messenger Messenger, files PhotoFetcher, cardAdmin CardAdmin, tokens TokenConsumer, admins []int64, primaryAdmin int64, publicURL string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		messenger:    messenger,
		files:        files,
		cards:        cardAdmin,
		tokens:       tokens,
		admins:       admins,
		primaryAdmin: primaryAdmin,
		publicURL:    strings.TrimRight(strings.TrimSpace(publicURL), "/"),
		logger:       logger,
		now:          time.Now,
	}
}

func (s *Service) isAdmin(chatID int64) bool {
	for _, id := range s.admins {
		if id == chatID {
			return true
		}
	}
	return false
}

func helpText() string {
	return "📌 Admin menu\n" +
		"• Просто пришли ФОТО (как Photo) — добавлю открытку\n" +
		"• Подпись к фото — категория (landscape, city, art, holiday, animals)\n\n" +
		"Команды:\n" +
		"/help — это меню\n" +
		"/myid — показать chat_id\n" +
		"/stats — сколько доступно\n" +
		"/last — последняя добавленная\n" +
		"/list [n] — последние n ID (по умолчанию 20)\n" +
		"/delete <id> — удалить открытку"
}

func helpKeyboard() [][]string {
	return [][]string{
		{"/help", "/stats", "/last"},
		{"/list 20", "/myid"},
		{"/delete "},
	}
}

func (s *Service) HandleMessage(ctx context.Context, msg Message) error {
	if s.messenger == nil {
		return fmt.Errorf("messenger is not configured")
	}

	admin := s.isAdmin(msg.ChatID)

	switch msg.Command {
	case "myid":
		return s.handleMyID(ctx, msg)
	case "start":
		return s.handleStart(ctx, msg, admin)
	}

	if !admin {
		return nil
	}

	if msg.Command != "" {
		return s.handleAdminCommand(ctx, msg)
	}

	if msg.HasDocument {
		hint := "Пришли картинку как PHOTO (не как файл/document), тогда появится миниатюра и всё будет красиво.\n\n" + helpText()
		return s.messenger.SendMenu(ctx, msg.ChatID, hint, helpKeyboard())
	}

	if len(msg.Photos) > 0 {
		return s.handlePhotoUpload(ctx, msg)
	}

	return s.messenger.SendMenu(ctx, msg.ChatID, helpText(), helpKeyboard())
}

// handleMyID answers everyone, so new admins can discover their chat id;
// the primary admin gets a heads-up about who asked.
func (s *Service) handleMyID(ctx context.Context, msg Message) error {
	username := displayUsername(msg.Username)

	reply := fmt.Sprintf("Ваш chat_id: %d\nusername: %s", msg.ChatID, username)
	if err := s.messenger.SendText(ctx, msg.ChatID, reply); err != nil {
		return err
	}

	if s.primaryAdmin != 0 && s.primaryAdmin != msg.ChatID {
		notice := fmt.Sprintf("👤 /myid от %s: chat_id=%d", username, msg.ChatID)
		if err := s.messenger.SendText(ctx, s.primaryAdmin, notice); err != nil {
			s.logger.Warn("notify primary admin", zap.Error(err))
		}
	}

	return nil
}

// handleStart serves the pick_<id> deep link from the showcase for
// non-admins; admins just get the menu.
func (s *Service) handleStart(ctx context.Context, msg Message, admin bool) error {
	if !admin {
		m := pickPattern.FindStringSubmatch(strings.ToLower(msg.Args))
		if m == nil {
			return nil
		}
		pickedID := m[1]

		if s.primaryAdmin != 0 {
			notice := fmt.Sprintf("📩 Запрос открытки: %s\nОт: %s\nЧат: %d",
				pickedID, displayUsername(msg.Username), msg.ChatID)
			if err := s.messenger.SendText(ctx, s.primaryAdmin, notice); err != nil {
				s.logger.Warn("forward pick request", zap.Error(err))
			}
		}

		return s.messenger.SendText(ctx, msg.ChatID,
			fmt.Sprintf("Ок! Я передал запрос владельцу 🙂\nID: %s", pickedID))
	}

	return s.messenger.SendMenu(ctx, msg.ChatID, helpText(), helpKeyboard())
}

func (s *Service) handleAdminCommand(ctx context.Context, msg Message) error {
	switch strings.ToLower(msg.Command) {
	case "help", "menu":
		return s.messenger.SendMenu(ctx, msg.ChatID, helpText(), helpKeyboard())

	case "stats":
		count, err := s.cards.Stats(ctx)
		if err != nil {
			return err
		}
		return s.messenger.SendText(ctx, msg.ChatID, fmt.Sprintf("📊 Доступно открыток: %d", count))

	case "last":
		last, err := s.cards.Last(ctx)
		if err != nil {
			return err
		}
		if last == nil {
			return s.messenger.SendText(ctx, msg.ChatID, "Пока нет открыток.")
		}
		return s.messenger.SendText(ctx, msg.ChatID,
			fmt.Sprintf("🆕 Последняя: %s\n%s", last.ID, s.cardPageURL(last.ID)))

	case "list":
		limit := parseListLimit(msg.Args)
		ids, err := s.cards.RecentIDs(ctx, limit)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return s.messenger.SendText(ctx, msg.ChatID, "Список пуст.")
		}
		return s.messenger.SendText(ctx, msg.ChatID,
			fmt.Sprintf("🗂️ Последние %d ID:\n%s", len(ids), strings.Join(ids, "\n")))

	case "delete":
		id := strings.ToLower(strings.TrimSpace(msg.Args))
		if id == "" {
			return s.messenger.SendText(ctx, msg.ChatID, "Использование: /delete <id>")
		}
		deleted, err := s.cards.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return s.messenger.SendText(ctx, msg.ChatID, fmt.Sprintf("Не нашёл ID: %s", id))
		}
		return s.messenger.SendText(ctx, msg.ChatID, fmt.Sprintf("🗑️ Удалено: %s", id))

	default:
		return s.messenger.SendMenu(ctx, msg.ChatID, "Не понял команду.\n\n"+helpText(), helpKeyboard())
	}
}

// handlePhotoUpload takes the largest size as the full image and the middle
// size as the thumbnail; the caption, if any, selects the category.
func (s *Service) handlePhotoUpload(ctx context.Context, msg Message) error {
	if s.files == nil {
		return fmt.Errorf("photo fetcher is not configured")
	}

	category, _ := enums.ParseCategory(msg.Caption)

	large := msg.Photos[len(msg.Photos)-1]
	thumbSrc := msg.Photos[(len(msg.Photos)-1)/2]

	card, err := s.storePhoto(ctx, category, large.FileID, thumbSrc.FileID)
	if err != nil {
		s.logger.Error("store uploaded photo", zap.Error(err))
		return s.messenger.SendText(ctx, msg.ChatID, "❌ Ошибка при добавлении. Посмотри логи сервиса.")
	}

	confirmation := fmt.Sprintf("✅ Добавлено: %s\nВитрина: %s\nУдалить: /delete %s",
		card.ID, s.cardPageURL(card.ID), card.ID)
	return s.messenger.SendMenu(ctx, msg.ChatID, confirmation, helpKeyboard())
}

func (s *Service) storePhoto(ctx context.Context, category enums.Category, fullFileID, thumbFileID string) (model.Card, error) {
	fullBody, fullSize, fullType, err := s.files.DownloadPhoto(ctx, fullFileID)
	if err != nil {
		return model.Card{}, fmt.Errorf("download full photo: %w", err)
	}
	defer fullBody.Close()

	thumbBody, thumbSize, thumbType, err := s.files.DownloadPhoto(ctx, thumbFileID)
	if err != nil {
		return model.Card{}, fmt.Errorf("download thumb photo: %w", err)
	}
	defer thumbBody.Close()

	return s.cards.Create(ctx, category,
		cards.Upload{Body: fullBody, Size: fullSize, ContentType: fullType},
		cards.Upload{Body: thumbBody, Size: thumbSize, ContentType: thumbType},
	)
}

func (s *Service) HandleCallback(ctx context.Context, cb Callback) error {
	if s.messenger == nil {
		return fmt.Errorf("messenger is not configured")
	}

	if !s.isAdmin(cb.ChatID) {
		return s.messenger.AnswerCallback(ctx, cb.CallbackID, "")
	}

	data := strings.TrimSpace(cb.Data)
	switch {
	case strings.HasPrefix(data, "del:"):
		return s.handleSingleDelete(ctx, cb, strings.TrimPrefix(data, "del:"))
	case strings.HasPrefix(data, "delall:"):
		return s.handleBulkDelete(ctx, cb, strings.TrimPrefix(data, "delall:"))
	default:
		return s.messenger.AnswerCallback(ctx, cb.CallbackID, "Неизвестное действие")
	}
}

func (s *Service) handleSingleDelete(ctx context.Context, cb Callback, id string) error {
	if !shortid.Valid(id, shortid.CardIDLength) {
		return s.messenger.AnswerCallback(ctx, cb.CallbackID, "Неизвестное действие")
	}

	deleted, err := s.cards.Delete(ctx, id)
	if err != nil {
		s.logger.Error("delete card from callback", zap.String("id", id), zap.Error(err))
		return s.messenger.AnswerCallback(ctx, cb.CallbackID, "Не удалось удалить")
	}
	if !deleted {
		return s.messenger.AnswerCallback(ctx, cb.CallbackID, "Уже удалена")
	}

	if err := s.messenger.AnswerCallback(ctx, cb.CallbackID, "Удалено"); err != nil {
		return err
	}
	return s.messenger.SendText(ctx, cb.ChatID, fmt.Sprintf("🗑️ Удалено: %s", id))
}

func (s *Service) handleBulkDelete(ctx context.Context, cb Callback, token string) error {
	ids, err := s.tokens.Consume(ctx, token, s.now().UTC())
	if err != nil {
		if errors.Is(err, adminactions.ErrTokenNotFound) || errors.Is(err, adminactions.ErrTokenExpired) {
			return s.messenger.AnswerCallback(ctx, cb.CallbackID, "Ссылка устарела или уже использована")
		}
		s.logger.Error("consume bulk delete token", zap.Error(err))
		return s.messenger.AnswerCallback(ctx, cb.CallbackID, "Не удалось удалить")
	}

	deleted := s.cards.DeleteMany(ctx, ids)

	if err := s.messenger.AnswerCallback(ctx, cb.CallbackID, "Удалено"); err != nil {
		return err
	}
	return s.messenger.SendText(ctx, cb.ChatID,
		fmt.Sprintf("🗑️ Удалено: %d из %d", len(deleted), len(ids)))
}

func (s *Service) cardPageURL(id string) string {
	return s.publicURL + "/#" + id
}

func displayUsername(username string) string {
	if strings.TrimSpace(username) == "" {
		return "(no username)"
	}
	return "@" + username
}

func parseListLimit(args string) int {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return defaultListLimit
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return defaultListLimit
	}
	if n < 1 {
		n = 1
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n
}
