package telegram

import (
	"bytes"
	"context"
	"image"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	app "pcb-inspector/internal/application"
	"pcb-inspector/internal/domain/entity"
	"pcb-inspector/internal/infrastructure/storage"
	"pcb-inspector/internal/infrastructure/vision"
)

const testBarcode = "4006381333931"

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error) {
	return tgbotapi.File{FileID: config.FileID, FilePath: "photos/" + config.FileID + ".jpg"}, nil
}

func (f *fakeAPI) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) StopReceivingUpdates() {}

// texts возвращает тексты и подписи всех отправленных сообщений.
func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.PhotoConfig:
			out = append(out, m.Caption)
		}
	}
	return out
}

func (f *fakeAPI) last() string {
	texts := f.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

type stubDecoder struct {
	symbols []entity.DecodedSymbol
}

func (d *stubDecoder) Decode(ctx context.Context, img image.Image) ([]entity.DecodedSymbol, error) {
	return d.symbols, nil
}

type stubDetector struct{}

func (stubDetector) Detect(ctx context.Context, img image.Image, threshold float64) ([]entity.Defect, error) {
	return []entity.Defect{{Type: "spur", Confidence: 0.66, Box: image.Rect(20, 20, 40, 40)}}, nil
}

type botFixture struct {
	bot     *Bot
	api     *fakeAPI
	store   *storage.MemoryRecordStore
	users   *app.UserService
	decoder *stubDecoder
}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()

	store := storage.NewMemoryRecordStore(entity.ScanRecord{
		Barcode:       testBarcode,
		ProductID:     "P1",
		ShiftID:       "B",
		QualityStatus: "pending",
	})
	decoder := &stubDecoder{symbols: []entity.DecodedSymbol{{
		Payload: testBarcode,
		Polygon: []image.Point{{0, 0}, {20, 0}, {20, 10}, {0, 10}},
	}}}
	processor := vision.NewProcessor()
	inspections := app.NewInspectionService(processor, decoder, stubDetector{}, store, nil, app.DefaultInspectionConfig())
	users := app.NewUserService(storage.NewMemoryUserRepository())
	api := &fakeAPI{}

	b := newBot(api, "token", users, app.NewReviewService(inspections, store, 0), app.NewMonitorService(store, nil), processor)
	b.download = func(ctx context.Context, url string) ([]byte, error) {
		require.Contains(t, url, "token")
		var buf bytes.Buffer
		require.NoError(t, imaging.Encode(&buf, imaging.New(120, 90, image.White.C), imaging.JPEG))
		return buf.Bytes(), nil
	}
	return &botFixture{bot: b, api: api, store: store, users: users, decoder: decoder}
}

func photoUpdate(userID int64) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: userID},
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", Width: 90},
			{FileID: "large", Width: 1280},
		},
	}}
}

func commandUpdate(userID int64, command string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 2,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      "/" + command,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command) + 1}},
	}}
}

func callbackUpdate(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{MessageID: 3, Chat: &tgbotapi.Chat{ID: userID}},
		Data:    data,
	}}
}

func (f *botFixture) pendingReview(t *testing.T, userID int64) uuid.UUID {
	t.Helper()
	user, err := f.users.Get(context.Background(), userID, userID)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingConfirmation, user.State)
	return user.PendingReview
}

func TestBot_PhotoThenCommit(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.handleUpdate(ctx, photoUpdate(11))

	f.api.mu.Lock()
	photo, ok := f.api.sent[len(f.api.sent)-1].(tgbotapi.PhotoConfig)
	f.api.mu.Unlock()
	require.True(t, ok)
	require.Contains(t, photo.Caption, testBarcode)
	require.Contains(t, photo.Caption, "spur — 0.66")
	require.NotNil(t, photo.ReplyMarkup)

	record, err := f.store.FindByBarcode(ctx, testBarcode)
	require.NoError(t, err)
	require.Equal(t, "pending", record.QualityStatus)

	id := f.pendingReview(t, 11)
	f.bot.handleUpdate(ctx, callbackUpdate(11, "commit:"+id.String()))

	require.Contains(t, f.api.last(), "обновлена")
	require.Contains(t, f.api.last(), "Изделие: P1")

	record, err = f.store.FindByBarcode(ctx, testBarcode)
	require.NoError(t, err)
	require.Equal(t, entity.StatusDefective, record.QualityStatus)
	require.Equal(t, "spur", record.DefectType)

	user, err := f.users.Get(ctx, 11, 11)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)

	// повторное нажатие
	f.bot.handleUpdate(ctx, callbackUpdate(11, "commit:"+id.String()))
	require.Equal(t, msgReviewExpired, f.api.last())
}

func TestBot_DiscardAndForeignCallback(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.handleUpdate(ctx, photoUpdate(11))
	id := f.pendingReview(t, 11)

	f.bot.handleUpdate(ctx, callbackUpdate(99, "commit:"+id.String()))
	require.Equal(t, msgReviewExpired, f.api.last())

	f.bot.handleUpdate(ctx, callbackUpdate(11, "discard:"+id.String()))
	require.Equal(t, msgDiscarded, f.api.last())

	record, err := f.store.FindByBarcode(ctx, testBarcode)
	require.NoError(t, err)
	require.Equal(t, "pending", record.QualityStatus)
}

func TestBot_NoBarcode(t *testing.T) {
	f := newBotFixture(t)
	f.decoder.symbols = nil

	f.bot.handleUpdate(context.Background(), photoUpdate(5))
	require.Equal(t, msgBarcodeNotFound, f.api.last())

	user, err := f.users.Get(context.Background(), 5, 5)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingPhoto, user.State)
}

func TestBot_CancelDropsPendingReview(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.handleUpdate(ctx, photoUpdate(11))
	id := f.pendingReview(t, 11)

	f.bot.handleUpdate(ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 11}, Chat: &tgbotapi.Chat{ID: 11}, Text: "привет",
	}})
	require.Equal(t, msgAwaitDecision, f.api.last())

	f.bot.handleUpdate(ctx, commandUpdate(11, "cancel"))
	require.Equal(t, msgCancelled, f.api.last())

	f.bot.handleUpdate(ctx, callbackUpdate(11, "commit:"+id.String()))
	require.Equal(t, msgReviewExpired, f.api.last())
}

func TestBot_StatsAndRecent(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.handleUpdate(ctx, commandUpdate(1, "stats"))
	require.Contains(t, f.api.last(), "Всего плат: 1")
	require.Contains(t, f.api.last(), "Не проверено: 1")

	f.bot.handleUpdate(ctx, commandUpdate(1, "recent"))
	require.True(t, strings.Contains(f.api.last(), testBarcode+" · pending"))

	f.bot.handleUpdate(ctx, commandUpdate(1, "nope"))
	require.Equal(t, msgUnknownCommand, f.api.last())
}

func TestParseCallback(t *testing.T) {
	id := uuid.New()

	action, got, err := parseCallback("commit:" + id.String())
	require.NoError(t, err)
	require.Equal(t, callbackCommit, action)
	require.Equal(t, id, got)

	for _, data := range []string{"", "commit", "launch:" + id.String(), "discard:xyz"} {
		_, _, err := parseCallback(data)
		require.Error(t, err, data)
	}
}

func TestFormatOutcome_NotProvisioned(t *testing.T) {
	text := formatOutcome(&app.ReviewOutcome{Barcode: testBarcode})
	require.Contains(t, text, "не найден в базе")
}
