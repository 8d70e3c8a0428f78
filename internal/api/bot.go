package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "pcb-inspector/internal/application"
	"pcb-inspector/internal/domain/entity"
	"pcb-inspector/internal/domain/port"
)

const (
	msgStart = `👋 Привет! Я бот контроля качества печатных плат.

📸 Отправьте фото платы со штрихкодом. Я найду дефекты и покажу результат, а в базу он попадёт только после вашего подтверждения.

📋 Команды:
/check — начать проверку платы
/stats — сводка по базе
/recent — последние записи
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте фото платы (лучше файлом, без сжатия)
2️⃣ Бот прочитает штрихкод и найдёт дефекты
3️⃣ Проверьте разметку и нажмите «Записать» или «Отменить»

💡 Рекомендации:
• Штрихкод должен быть целиком в кадре
• Снимайте при хорошем освещении, без бликов
• Фото должно быть чётким

📋 Команды:
/check — начать проверку
/stats — сводка по базе
/recent — последние записи
/cancel — отменить операцию`

	msgAwaitingPhoto   = "📸 Отправьте фото платы для проверки."
	msgCancelled       = "❌ Операция отменена. Отправьте /check для новой проверки."
	msgSendPhoto       = "📸 Пожалуйста, отправьте фото платы для проверки."
	msgAwaitDecision   = "⏳ Сначала примите решение по предыдущей проверке: нажмите «Записать» или «Отменить»."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing      = "⏳ Обрабатываю изображение..."
	msgProcessingError = "⚠️ Не удалось обработать изображение. Попробуйте сделать другое фото."
	msgBarcodeNotFound = "🔍 Штрихкод не найден. Сфотографируйте плату так, чтобы штрихкод был целиком в кадре."
	msgInternalError   = "⚠️ Внутренняя ошибка. Попробуйте ещё раз позже."
	msgReviewExpired   = "⌛ Проверка не найдена или устарела. Отправьте фото заново."
	msgDiscarded       = "🗑 Результат не записан."
	msgNoRecords       = "📭 В базе пока нет записей."
)

const (
	callbackCommit  = "commit"
	callbackDiscard = "discard"

	recentRecordsLimit  = 10
	maxPhotoDownloadLen = 50 << 20
)

// botAPI — используемая часть клиента Telegram.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot представляет Telegram-бота
type Bot struct {
	api      botAPI
	token    string
	download func(ctx context.Context, url string) ([]byte, error)

	users   *app.UserService
	reviews *app.ReviewService
	monitor *app.MonitorService
	images  port.ImageProcessor
}

// NewBot создаёт нового бота
func NewBot(token string, users *app.UserService, reviews *app.ReviewService, monitor *app.MonitorService, images port.ImageProcessor) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", api.Self.UserName)

	return newBot(api, token, users, reviews, monitor, images), nil
}

func newBot(api botAPI, token string, users *app.UserService, reviews *app.ReviewService, monitor *app.MonitorService, images port.ImageProcessor) *Bot {
	return &Bot{
		api:      api,
		token:    token,
		download: httpDownload,
		users:    users,
		reviews:  reviews,
		monitor:  monitor,
		images:   images,
	}
}

// Run запускает основной цикл обработки сообщений до отмены контекста
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	user, err := b.users.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		log.Printf("Error getting user: %v", err)
		return
	}

	// Обработка команд
	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	// Обработка фото
	if fileID, ok := imageFileID(msg); ok {
		b.handlePhoto(ctx, msg, user, fileID)
		return
	}

	// Текстовое сообщение (не команда)
	if user.State == entity.StateAwaitingConfirmation {
		b.sendMessage(msg.Chat.ID, msgAwaitDecision)
		return
	}
	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// imageFileID выбирает фото максимального размера или документ-изображение.
func imageFileID(msg *tgbotapi.Message) (string, bool) {
	if len(msg.Photo) > 0 {
		return msg.Photo[len(msg.Photo)-1].FileID, true
	}
	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		return msg.Document.FileID, true
	}
	return "", false
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.dropPending(ctx, user)
		b.setState(ctx, user, entity.StateMainMenu)
		b.sendMessage(chatID, msgStart)

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "check":
		b.dropPending(ctx, user)
		b.setState(ctx, user, entity.StateAwaitingPhoto)
		b.sendMessage(chatID, msgAwaitingPhoto)

	case "cancel":
		b.dropPending(ctx, user)
		b.setState(ctx, user, entity.StateMainMenu)
		b.sendMessage(chatID, msgCancelled)

	case "stats":
		stats, err := b.monitor.Stats(ctx)
		if err != nil {
			log.Printf("Error loading stats: %v", err)
			b.sendMessage(chatID, msgInternalError)
			return
		}
		b.sendMessage(chatID, formatStats(stats))

	case "recent":
		records, err := b.monitor.List(ctx, entity.RecordFilter{Limit: recentRecordsLimit})
		if err != nil {
			log.Printf("Error loading records: %v", err)
			b.sendMessage(chatID, msgInternalError)
			return
		}
		b.sendMessage(chatID, formatRecent(records))

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}
}

// handlePhoto проверяет фото и предлагает записать результат
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message, user *entity.User, fileID string) {
	chatID := msg.Chat.ID

	// новое фото отменяет неподтверждённую проверку
	b.dropPending(ctx, user)
	b.setState(ctx, user, entity.StateProcessing)
	b.sendMessage(chatID, msgProcessing)

	imageData, err := b.downloadFile(ctx, fileID)
	if err != nil {
		log.Printf("Error downloading photo: %v", err)
		b.sendMessage(chatID, msgProcessingError)
		b.setState(ctx, user, entity.StateMainMenu)
		return
	}

	review, err := b.reviews.StartPhoto(ctx, user.ID, imageData)
	if err != nil {
		switch {
		case errors.Is(err, entity.ErrBarcodeNotFound):
			b.sendMessage(chatID, msgBarcodeNotFound)
		case errors.Is(err, entity.ErrImageRead):
			b.sendMessage(chatID, msgProcessingError)
		default:
			log.Printf("Error inspecting photo: %v", err)
			b.sendMessage(chatID, msgInternalError)
		}
		b.setState(ctx, user, entity.StateAwaitingPhoto)
		return
	}

	log.Printf("Review %s for user %d: barcode=%s status=%s defects=%d",
		review.ID, user.ID, review.Inspection.Barcode, review.Inspection.Verdict.QualityStatus, len(review.Inspection.Defects))

	if _, err := b.users.AwaitConfirmation(ctx, user.ID, user.ChatID, review.ID); err != nil {
		log.Printf("Error saving user state: %v", err)
	}
	b.sendReview(chatID, review)
}

func (b *Bot) sendReview(chatID int64, review *app.Review) {
	caption := formatReview(review.Inspection)
	keyboard := reviewKeyboard(review.ID.String())

	var buf bytes.Buffer
	if review.Inspection.Annotated != nil {
		if err := b.images.EncodeJPEG(&buf, review.Inspection.Annotated); err != nil {
			log.Printf("Error encoding annotated image: %v", err)
			buf.Reset()
		}
	}

	if buf.Len() == 0 {
		msg := tgbotapi.NewMessage(chatID, caption)
		msg.ReplyMarkup = keyboard
		if _, err := b.api.Send(msg); err != nil {
			log.Printf("Error sending message: %v", err)
		}
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "inspection.jpg", Bytes: buf.Bytes()})
	photo.Caption = caption
	photo.ReplyMarkup = keyboard
	if _, err := b.api.Send(photo); err != nil {
		log.Printf("Error sending photo: %v", err)
	}
}

// handleCallback обрабатывает нажатие «Записать» или «Отменить»
func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.From == nil || cq.Message == nil {
		return
	}
	chatID := cq.Message.Chat.ID

	action, reviewID, err := parseCallback(cq.Data)
	if err != nil {
		log.Printf("Bad callback data %q: %v", cq.Data, err)
		b.answerCallback(cq.ID, "")
		return
	}

	user, err := b.users.Get(ctx, cq.From.ID, chatID)
	if err != nil {
		log.Printf("Error getting user: %v", err)
		b.answerCallback(cq.ID, "")
		return
	}

	// кнопки одноразовые
	b.clearKeyboard(chatID, cq.Message.MessageID)

	switch action {
	case callbackCommit:
		out, err := b.reviews.Confirm(ctx, cq.From.ID, reviewID)
		switch {
		case errors.Is(err, entity.ErrReviewNotFound):
			b.answerCallback(cq.ID, "")
			b.sendMessage(chatID, msgReviewExpired)
		case err != nil:
			log.Printf("Error committing review %s: %v", reviewID, err)
			b.answerCallback(cq.ID, "")
			b.sendMessage(chatID, msgInternalError)
		default:
			b.answerCallback(cq.ID, "Готово")
			b.sendMessage(chatID, formatOutcome(out))
		}

	case callbackDiscard:
		if err := b.reviews.Discard(ctx, cq.From.ID, reviewID); err != nil {
			b.answerCallback(cq.ID, "")
			b.sendMessage(chatID, msgReviewExpired)
		} else {
			b.answerCallback(cq.ID, "Отменено")
			b.sendMessage(chatID, msgDiscarded)
		}
	}

	if user.PendingReview == reviewID {
		b.setState(ctx, user, entity.StateMainMenu)
	}
}

// dropPending отменяет неподтверждённую проверку пользователя
func (b *Bot) dropPending(ctx context.Context, user *entity.User) {
	if user.State != entity.StateAwaitingConfirmation {
		return
	}
	if err := b.reviews.Discard(ctx, user.ID, user.PendingReview); err != nil && !errors.Is(err, entity.ErrReviewNotFound) {
		log.Printf("Error discarding review: %v", err)
	}
}

func (b *Bot) setState(ctx context.Context, user *entity.User, state entity.UserState) {
	updated, err := b.users.SetState(ctx, user.ID, user.ChatID, state)
	if err != nil {
		log.Printf("Error saving user state: %v", err)
		return
	}
	*user = *updated
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return b.download(ctx, file.Link(b.token))
}

func httpDownload(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoDownloadLen))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

func (b *Bot) answerCallback(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		log.Printf("Error answering callback: %v", err)
	}
}

func (b *Bot) clearKeyboard(chatID int64, messageID int) {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	if _, err := b.api.Request(edit); err != nil {
		log.Printf("Error clearing keyboard: %v", err)
	}
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}
