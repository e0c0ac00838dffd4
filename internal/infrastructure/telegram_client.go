package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/entities"
	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/interfaces"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// MaxPhotoBytes is the largest photo accepted as a question.
const MaxPhotoBytes = 5 * 1024 * 1024

var ErrPhotoTooLarge = errors.New("telegram: photo exceeds 5MB")

// botAPI is the subset of *tgbotapi.BotAPI the client uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// TelegramClient is the Telegram Messenger plus update polling.
type TelegramClient struct {
	api      botAPI
	token    string
	username string
	client   *http.Client
}

func NewTelegramClient(token string) (*TelegramClient, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	log.WithField("username", bot.Self.UserName).Info("Telegram bot authorized")
	return &TelegramClient{api: bot, token: token, username: bot.Self.UserName, client: &http.Client{}}, nil
}

var _ interfaces.Messenger = (*TelegramClient)(nil)

// Username is the bot's @name without the @.
func (t *TelegramClient) Username() string {
	return t.username
}

func inlineKeyboard(buttons [][]entities.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, row := range buttons {
		r := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			r = append(r, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, r)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func photoFile(ref string) tgbotapi.RequestFileData {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return tgbotapi.FileURL(ref)
	}
	return tgbotapi.FileID(ref)
}

func buildChattable(chatID int64, content entities.Content, markdown bool) tgbotapi.Chattable {
	kb := inlineKeyboard(content.Buttons)

	if content.IsImage() {
		photo := tgbotapi.NewPhoto(chatID, photoFile(content.ImageRef))
		photo.Caption = content.Caption
		if markdown {
			photo.Caption = FormatMarkdownV2(content.Caption)
			photo.ParseMode = tgbotapi.ModeMarkdownV2
		}
		if kb != nil {
			photo.ReplyMarkup = kb
		}
		return photo
	}

	msg := tgbotapi.NewMessage(chatID, content.Text)
	if markdown {
		msg.Text = FormatMarkdownV2(content.Text)
		msg.ParseMode = tgbotapi.ModeMarkdownV2
	}
	if kb != nil {
		msg.ReplyMarkup = kb
	}
	return msg
}

// Send delivers content and returns the Telegram message id. Markdown content
// that Telegram refuses to parse is re-sent as plain text.
func (t *TelegramClient) Send(ctx context.Context, chatID int64, content entities.Content) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if content.Markdown {
		sent, err := t.api.Send(buildChattable(chatID, content, true))
		if err == nil {
			return sent.MessageID, nil
		}
		log.WithField("chat_id", chatID).WithError(err).Warn("MarkdownV2 send failed, retrying as plain text")
	}

	sent, err := t.api.Send(buildChattable(chatID, content, false))
	if err != nil {
		return 0, fmt.Errorf("send to %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

func (t *TelegramClient) Delete(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete %d in %d: %w", messageID, chatID, err)
	}
	return nil
}

// SendPhotoBytes uploads an in-memory image.
func (t *TelegramClient) SendPhotoBytes(ctx context.Context, chatID int64, name string, data []byte, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	photo.Caption = caption
	_, err := t.api.Send(photo)
	return err
}

// Typing shows the typing indicator. Failures are ignored.
func (t *TelegramClient) Typing(chatID int64) {
	_, _ = t.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
}

// AnswerCallback acknowledges an inline button press.
func (t *TelegramClient) AnswerCallback(callbackID, text string) {
	if _, err := t.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		log.WithError(err).Debug("Failed to answer callback")
	}
}

// DownloadPhoto fetches a photo by file id. Photos over MaxPhotoBytes are
// rejected before and after download.
func (t *TelegramClient) DownloadPhoto(ctx context.Context, fileID string) (*entities.Media, error) {
	file, err := t.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	if file.FileSize > MaxPhotoBytes {
		return nil, ErrPhotoTooLarge
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(t.token), nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download photo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download photo: http %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxPhotoBytes+1))
	if err != nil {
		return nil, fmt.Errorf("download photo: %w", err)
	}
	if len(data) > MaxPhotoBytes {
		return nil, ErrPhotoTooLarge
	}

	log.WithFields(log.Fields{"file_id": fileID, "bytes": len(data)}).Info("Photo downloaded")
	return &entities.Media{Data: data, MimeType: "image/jpeg"}, nil
}

// Poll long-polls for updates and runs handler for each one on its own
// goroutine. It returns once ctx is done and every handler has finished.
func (t *TelegramClient) Poll(ctx context.Context, handler func(ctx context.Context, update tgbotapi.Update)) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.api.GetUpdatesChan(u)

	log.WithField("username", t.username).Info("Started polling")

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			log.Info("Stopped polling")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				handler(ctx, update)
			}()
		}
	}
}
