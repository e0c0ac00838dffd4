package infrastructure

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/entities"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockBotAPI is a mock implementation of botAPI.
type MockBotAPI struct {
	mock.Mock
}

func (m *MockBotAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func (m *MockBotAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	args := m.Called(c)
	resp, _ := args.Get(0).(*tgbotapi.APIResponse)
	return resp, args.Error(1)
}

func (m *MockBotAPI) GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error) {
	args := m.Called(config)
	return args.Get(0).(tgbotapi.File), args.Error(1)
}

func (m *MockBotAPI) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	args := m.Called(config)
	return args.Get(0).(tgbotapi.UpdatesChannel)
}

func (m *MockBotAPI) StopReceivingUpdates() {
	m.Called()
}

func newTestTelegramClient(api *MockBotAPI) *TelegramClient {
	return &TelegramClient{api: api, token: "test-token", username: "NovaAiBot"}
}

func TestTelegramClient_SendMarkdown(t *testing.T) {
	api := &MockBotAPI{}
	api.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ParseMode == tgbotapi.ModeMarkdownV2 && msg.Text == `x \= 1\.`
	})).Return(tgbotapi.Message{MessageID: 5}, nil).Once()

	client := newTestTelegramClient(api)
	id, err := client.Send(context.Background(), 10, entities.Content{Text: "x = 1.", Markdown: true})
	require.NoError(t, err)
	assert.Equal(t, 5, id)
	api.AssertExpectations(t)
}

func TestTelegramClient_MarkdownFallsBackToPlain(t *testing.T) {
	api := &MockBotAPI{}
	api.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		return c.(tgbotapi.MessageConfig).ParseMode == tgbotapi.ModeMarkdownV2
	})).Return(tgbotapi.Message{}, errors.New("can't parse entities")).Once()
	api.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg := c.(tgbotapi.MessageConfig)
		return msg.ParseMode == "" && msg.Text == "a*b"
	})).Return(tgbotapi.Message{MessageID: 6}, nil).Once()

	client := newTestTelegramClient(api)
	id, err := client.Send(context.Background(), 10, entities.Content{Text: "a*b", Markdown: true})
	require.NoError(t, err)
	assert.Equal(t, 6, id)
	api.AssertExpectations(t)
}

func TestTelegramClient_SendPhotoWithKeyboard(t *testing.T) {
	api := &MockBotAPI{}
	api.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		photo, ok := c.(tgbotapi.PhotoConfig)
		if !ok || photo.Caption != "Nova Learn" {
			return false
		}
		if _, isID := photo.File.(tgbotapi.FileID); !isID {
			return false
		}
		kb, ok := photo.ReplyMarkup.(*tgbotapi.InlineKeyboardMarkup)
		return ok && len(kb.InlineKeyboard) == 1 && *kb.InlineKeyboard[0][0].CallbackData == "ad_pause:1"
	})).Return(tgbotapi.Message{MessageID: 9}, nil).Once()

	client := newTestTelegramClient(api)
	id, err := client.Send(context.Background(), -20, entities.Content{
		ImageRef: "AgACAgIAAxk",
		Caption:  "Nova Learn",
		Buttons:  [][]entities.Button{{{Text: "Pause", Data: "ad_pause:1"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 9, id)
}

func TestTelegramClient_SendError(t *testing.T) {
	api := &MockBotAPI{}
	api.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("bot was blocked by the user"))

	_, err := newTestTelegramClient(api).Send(context.Background(), 10, entities.Content{Text: "hi"})
	assert.ErrorContains(t, err, "blocked")
}

func TestTelegramClient_Delete(t *testing.T) {
	api := &MockBotAPI{}
	api.On("Request", tgbotapi.NewDeleteMessage(10, 77)).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()

	require.NoError(t, newTestTelegramClient(api).Delete(context.Background(), 10, 77))
	api.AssertExpectations(t)
}

func TestTelegramClient_DownloadPhotoTooLarge(t *testing.T) {
	api := &MockBotAPI{}
	api.On("GetFile", tgbotapi.FileConfig{FileID: "big"}).
		Return(tgbotapi.File{FileID: "big", FileSize: MaxPhotoBytes + 1}, nil)

	_, err := newTestTelegramClient(api).DownloadPhoto(context.Background(), "big")
	assert.ErrorIs(t, err, ErrPhotoTooLarge)
}

func TestTelegramClient_PollDispatchesUntilCancelled(t *testing.T) {
	api := &MockBotAPI{}
	updates := make(chan tgbotapi.Update, 2)
	api.On("GetUpdatesChan", mock.Anything).Return(tgbotapi.UpdatesChannel(updates))
	api.On("StopReceivingUpdates").Return()

	updates <- tgbotapi.Update{UpdateID: 1}
	updates <- tgbotapi.Update{UpdateID: 2}

	var handled atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newTestTelegramClient(api).Poll(ctx, func(ctx context.Context, u tgbotapi.Update) {
			handled.Add(1)
		})
		close(done)
	}()

	assert.Eventually(t, func() bool { return handled.Load() == 2 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Poll did not return")
	}
	api.AssertCalled(t, "StopReceivingUpdates")
}
