package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/entities"
	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/infrastructure"
	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/interfaces"
	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/usecases"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
)

const broadcastTag = "#broadcast"

const (
	msgBusy          = "⏳ Please wait, I'm still working on your previous question."
	msgPhotoTooLarge = "❌ Image too large. Please send an image under 5MB."
	msgPhotoFailed   = "❌ Sorry, I couldn't download your image. Please try again."
	msgSettingsClose = "⚙️ Settings closed."
)

// Bot is the Telegram surface the router needs.
type Bot interface {
	interfaces.Messenger
	Username() string
	SendPhotoBytes(ctx context.Context, chatID int64, name string, data []byte, caption string) error
	DownloadPhoto(ctx context.Context, fileID string) (*entities.Media, error)
	AnswerCallback(callbackID, text string)
	Typing(chatID int64)
}

// Router turns Telegram updates into coordinator events.
type Router struct {
	bot      Bot
	coord    *usecases.Coordinator
	sessions *infrastructure.SessionManager
}

func NewRouter(bot Bot, coord *usecases.Coordinator, sessions *infrastructure.SessionManager) *Router {
	return &Router{bot: bot, coord: coord, sessions: sessions}
}

// HandleUpdate processes one update. It is safe to call concurrently.
func (r *Router) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			log.WithField("update_id", update.UpdateID).Errorf("Recovered from panic in update handler: %v", rec)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		r.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		r.handleMessage(ctx, update.Message)
	}
}

func (r *Router) send(ctx context.Context, chatID int64, text string) {
	if _, err := r.bot.Send(ctx, chatID, entities.Content{Text: text}); err != nil {
		log.WithField("chat_id", chatID).WithError(err).Warn("Failed to send reply")
	}
}

func (r *Router) dispatch(ctx context.Context, ev entities.Event) {
	if err := r.coord.Handle(ctx, ev); err != nil {
		log.WithField("event", fmt.Sprintf("%T", ev)).WithError(err).Error("Event handling failed")
	}
}

func userIDOf(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	return strconv.FormatInt(u.ID, 10)
}

func displayName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// largestPhoto returns the file id of the biggest size Telegram offers.
func largestPhoto(sizes []tgbotapi.PhotoSize) string {
	if len(sizes) == 0 {
		return ""
	}
	return sizes[len(sizes)-1].FileID
}

func (r *Router) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	kind, ok := entities.ChatKindFromTelegram(msg.Chat.Type)
	if !ok {
		return
	}
	chatID := msg.Chat.ID
	userID := userIDOf(msg.From)
	r.coord.TrackChat(ctx, chatID, kind, msg.Chat.Title)

	if msg.IsCommand() {
		r.handleCommand(ctx, msg, userID)
		return
	}

	photo := largestPhoto(msg.Photo)
	text := msg.Text
	if photo != "" {
		text = msg.Caption
	}

	if photo != "" && strings.HasPrefix(text, broadcastTag) {
		target, rest := splitFirst(strings.TrimPrefix(text, broadcastTag))
		r.dispatch(ctx, entities.AdminCommandEvent{
			UserID:   userID,
			ChatID:   chatID,
			Command:  entities.CmdBroadcast,
			Args:     nonEmpty(target),
			Text:     rest,
			ImageRef: photo,
		})
		return
	}

	if r.coord.IsOwner(userID) && r.coord.BuilderActive(chatID) {
		r.dispatch(ctx, entities.AdminCommandEvent{
			UserID:   userID,
			ChatID:   chatID,
			Command:  entities.CmdAdBuilderStep,
			Text:     text,
			ImageRef: photo,
		})
		return
	}

	if strings.TrimSpace(text) == "" && photo == "" {
		return
	}

	if !r.sessions.TryStart(chatID, userID) {
		r.send(ctx, chatID, msgBusy)
		return
	}
	defer r.sessions.Finish(chatID, userID)

	q := entities.QuestionEvent{
		UserID:      userID,
		ChatID:      chatID,
		ChatKind:    kind,
		ChatTitle:   msg.Chat.Title,
		MessageID:   msg.MessageID,
		DisplayName: displayName(msg.From),
		Text:        text,
	}
	if photo != "" {
		media, err := r.bot.DownloadPhoto(ctx, photo)
		if errors.Is(err, infrastructure.ErrPhotoTooLarge) {
			r.send(ctx, chatID, msgPhotoTooLarge)
			return
		}
		if err != nil {
			log.WithField("chat_id", chatID).WithError(err).Error("Photo download failed")
			r.send(ctx, chatID, msgPhotoFailed)
			return
		}
		q.Image = media
	}

	r.bot.Typing(chatID)
	r.dispatch(ctx, q)
}

func splitFirst(s string) (string, string) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \n\t"); i >= 0 {
		return s[:i], strings.TrimSpace(s[i+1:])
	}
	return s, ""
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

func (r *Router) handleCommand(ctx context.Context, msg *tgbotapi.Message, userID string) {
	chatID := msg.Chat.ID
	admin := func(cmd entities.AdminCommand, args []string, text string) {
		r.dispatch(ctx, entities.AdminCommandEvent{UserID: userID, ChatID: chatID, Command: cmd, Args: args, Text: text})
	}

	switch msg.Command() {
	case "start":
		log.WithFields(log.Fields{"user_id": userID, "chat_id": chatID}).Info("/start")
		if !r.coord.IsOwner(userID) {
			if _, err := r.coord.Ledger().EnsureAccount(ctx, userID, displayName(msg.From)); err != nil {
				log.WithError(err).Warn("Failed to create account")
			}
		}
		r.send(ctx, chatID, usecases.WelcomeMessage(r.coord.Links(), r.coord.Ledger().DailyCap()))

	case "help":
		r.send(ctx, chatID, usecases.HelpMessage(r.coord.Links()))

	case "status":
		r.status(ctx, msg, userID)

	case "share":
		r.share(ctx, chatID)

	case "settings":
		admin(entities.CmdStats, nil, "")

	case "broadcast":
		target, rest := splitFirst(msg.CommandArguments())
		admin(entities.CmdBroadcast, nonEmpty(target), rest)

	case "balance":
		args := strings.Fields(msg.CommandArguments())
		cmd := entities.CmdAddBalance
		if len(args) > 0 && strings.EqualFold(args[0], "set") {
			cmd = entities.CmdSetBalance
		}
		if len(args) > 0 && (strings.EqualFold(args[0], "set") || strings.EqualFold(args[0], "add")) {
			args = args[1:]
		}
		admin(cmd, args, "")

	case "ads":
		admin(entities.CmdListAds, nil, "")

	case "newad":
		admin(entities.CmdNewAd, nil, "")

	case "cancel":
		admin(entities.CmdCancel, nil, "")
	}
}

func (r *Router) status(ctx context.Context, msg *tgbotapi.Message, userID string) {
	chatID := msg.Chat.ID
	if r.coord.IsOwner(userID) {
		r.send(ctx, chatID, "👑 You are the owner: unlimited questions.")
		return
	}
	if _, err := r.coord.Ledger().EnsureAccount(ctx, userID, displayName(msg.From)); err != nil {
		log.WithError(err).Warn("Failed to create account")
	}
	st, err := r.coord.Ledger().Status(userID)
	if err != nil {
		log.WithField("user_id", userID).WithError(err).Error("Failed to read status")
		return
	}
	r.send(ctx, chatID, usecases.StatusMessage(st, r.coord.Links()))
}

// share sends a QR code pointing at the bot.
func (r *Router) share(ctx context.Context, chatID int64) {
	link := "https://t.me/" + r.bot.Username()
	png, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		log.WithError(err).Error("Failed to generate QR code")
		r.send(ctx, chatID, link)
		return
	}
	if err := r.bot.SendPhotoBytes(ctx, chatID, "novaaibot.png", png, "📲 Scan to chat with NovaAI\n"+link); err != nil {
		log.WithField("chat_id", chatID).WithError(err).Warn("Failed to send QR code")
	}
}

func broadcastHelp(target string) string {
	return fmt.Sprintf("📢 Broadcast to %s\n\n"+
		"Text broadcast:\n/broadcast %s <your message>\n\n"+
		"Image broadcast:\nSend a photo with caption: #broadcast %s <message>", target, target, target)
}

func (r *Router) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	r.bot.AnswerCallback(cb.ID, "")
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	userID := userIDOf(cb.From)

	if !r.sessions.AllowClick(chatID) {
		return
	}

	admin := func(cmd entities.AdminCommand, args ...string) {
		r.dispatch(ctx, entities.AdminCommandEvent{UserID: userID, ChatID: chatID, Command: cmd, Args: args})
	}

	data := cb.Data
	action, id, _ := strings.Cut(data, ":")
	switch action {
	case usecases.CallbackStats:
		admin(entities.CmdStats)
	case usecases.CallbackAds:
		admin(entities.CmdListAds)
	case usecases.CallbackAIOn:
		admin(entities.CmdAIOn)
	case usecases.CallbackAIOff:
		admin(entities.CmdAIOff)
	case usecases.CallbackAdPause:
		admin(entities.CmdPauseAd, id)
	case usecases.CallbackAdResume:
		admin(entities.CmdResumeAd, id)
	case usecases.CallbackAdDelete:
		admin(entities.CmdDeleteAd, id)
	case usecases.CallbackBroadcastUsers, usecases.CallbackBroadcastGroups, usecases.CallbackBroadcastAll, usecases.CallbackClose:
		if !r.coord.IsOwner(userID) {
			return
		}
		switch action {
		case usecases.CallbackBroadcastUsers:
			r.send(ctx, chatID, broadcastHelp("users"))
		case usecases.CallbackBroadcastGroups:
			r.send(ctx, chatID, broadcastHelp("groups"))
		case usecases.CallbackBroadcastAll:
			r.send(ctx, chatID, broadcastHelp("all"))
		default:
			r.send(ctx, chatID, msgSettingsClose)
		}
	default:
		log.WithField("data", data).Debug("Unknown callback")
	}
}
