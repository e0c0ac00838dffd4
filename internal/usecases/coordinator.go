package usecases

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/entities"
	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/interfaces"
	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/repository"
	log "github.com/sirupsen/logrus"
)

type CoordinatorConfig struct {
	OwnerID  string
	Links    Links
	AnswerAd *entities.Content // sent after every answer when set
}

// Coordinator turns inbound events into ledger, orchestrator and scheduler
// calls and replies through the messenger.
type Coordinator struct {
	ledger       *Ledger
	orchestrator *Orchestrator
	scheduler    *Scheduler
	dashboard    *DashboardUsecase
	settings     *RuntimeSettings
	chats        *repository.ChatRepository
	messenger    interfaces.Messenger
	limiter      interfaces.SendLimiter
	builders     *BuilderSessions
	cfg          CoordinatorConfig
}

func NewCoordinator(
	ledger *Ledger,
	orchestrator *Orchestrator,
	scheduler *Scheduler,
	dashboard *DashboardUsecase,
	settings *RuntimeSettings,
	chats *repository.ChatRepository,
	messenger interfaces.Messenger,
	limiter interfaces.SendLimiter,
	cfg CoordinatorConfig,
) *Coordinator {
	return &Coordinator{
		ledger:       ledger,
		orchestrator: orchestrator,
		scheduler:    scheduler,
		dashboard:    dashboard,
		settings:     settings,
		chats:        chats,
		messenger:    messenger,
		limiter:      limiter,
		builders:     NewBuilderSessions(),
		cfg:          cfg,
	}
}

func (c *Coordinator) IsOwner(userID string) bool {
	return c.cfg.OwnerID != "" && userID == c.cfg.OwnerID
}

// BuilderActive reports whether chatID is in the middle of /newad.
func (c *Coordinator) BuilderActive(chatID int64) bool {
	return c.builders.Active(chatID)
}

func (c *Coordinator) Links() Links {
	return c.cfg.Links
}

func (c *Coordinator) Ledger() *Ledger {
	return c.ledger
}

// Handle dispatches one inbound event.
func (c *Coordinator) Handle(ctx context.Context, ev entities.Event) error {
	switch e := ev.(type) {
	case entities.QuestionEvent:
		return c.handleQuestion(ctx, e)
	case entities.AdminCommandEvent:
		return c.handleAdmin(ctx, e)
	case entities.TickEvent:
		c.scheduler.Tick(ctx, e.At)
		return nil
	}
	return fmt.Errorf("unsupported event %T", ev)
}

// TrackChat records a chat in the registry. Untracked kinds are ignored.
func (c *Coordinator) TrackChat(ctx context.Context, chatID int64, kind entities.ChatKind, title string) {
	if kind == "" {
		return
	}
	if err := c.chats.Track(ctx, chatID, kind, title); err != nil {
		log.WithField("chat_id", chatID).WithError(err).Warn("Failed to track chat")
	}
}

func (c *Coordinator) reply(ctx context.Context, chatID int64, content entities.Content) (int, error) {
	if err := c.limiter.Wait(ctx, chatID); err != nil {
		return 0, err
	}
	id, err := c.messenger.Send(ctx, chatID, content)
	if err != nil {
		log.WithField("chat_id", chatID).WithError(err).Warn("Failed to send message")
	}
	return id, err
}

func (c *Coordinator) replyText(ctx context.Context, chatID int64, text string) error {
	_, err := c.reply(ctx, chatID, entities.Content{Text: text})
	return err
}

func (c *Coordinator) handleQuestion(ctx context.Context, q entities.QuestionEvent) error {
	c.TrackChat(ctx, q.ChatID, q.ChatKind, q.ChatTitle)

	question := strings.TrimSpace(q.Text)
	if question == "" && q.IsImage() {
		question = DefaultImagePrompt
	}
	if question == "" {
		return nil
	}

	owner := c.IsOwner(q.UserID)
	logger := log.WithFields(log.Fields{
		"user_id":   q.UserID,
		"chat_id":   q.ChatID,
		"has_image": q.IsImage(),
	})

	if !owner && !c.settings.AIEnabled() {
		return c.replyText(ctx, q.ChatID, msgAIDisabled)
	}

	// The owner is never charged.
	if !owner {
		cost := CostOf(q.IsImage())
		decision, err := c.ledger.Reserve(ctx, q.UserID, q.DisplayName, cost)
		if err != nil {
			logger.WithError(err).Error("Admission failed")
			_ = c.replyText(ctx, q.ChatID, failureMessage(q.IsImage(), c.cfg.Links))
			return err
		}
		if decision != Admit {
			logger.WithField("decision", decision.String()).Info("Question rejected")
			var balance int64
			if acc, err := c.ledger.Account(q.UserID); err == nil {
				balance = acc.Balance
			}
			return c.replyText(ctx, q.ChatID, RejectionMessage(decision, balance, cost, c.cfg.Links))
		}
	}

	waitID, _ := c.reply(ctx, q.ChatID, entities.Content{Text: waitMessage(q.IsImage())})

	logger.Info("Answering question")
	result, err := c.orchestrator.Complete(ctx, Query{
		Question: question,
		Media:    q.Image,
		SizeHint: runeLen(question),
	})

	if waitID != 0 {
		if derr := c.messenger.Delete(ctx, q.ChatID, waitID); derr != nil {
			logger.WithError(derr).Debug("Failed to delete wait message")
		}
	}

	if err != nil {
		logger.WithError(err).Error("No provider could answer")
		return c.replyText(ctx, q.ChatID, failureMessage(q.IsImage(), c.cfg.Links))
	}

	answer := result.Text + answerFooter(q.IsImage(), c.cfg.Links)
	for _, part := range SplitMessage(answer, MaxMessageLength) {
		if _, err := c.reply(ctx, q.ChatID, entities.Content{Text: part, Markdown: true}); err != nil {
			return err
		}
	}

	logger.WithFields(log.Fields{
		"provider":      result.Metadata.Provider,
		"model":         result.Metadata.Model,
		"tokens":        result.Metadata.TotalTokens,
		"continuations": result.Metadata.Continuations,
	}).Info("Answer delivered")

	if c.cfg.AnswerAd != nil {
		_, _ = c.reply(ctx, q.ChatID, *c.cfg.AnswerAd)
	}
	return nil
}

func (c *Coordinator) handleAdmin(ctx context.Context, cmd entities.AdminCommandEvent) error {
	if !c.IsOwner(cmd.UserID) {
		log.WithField("user_id", cmd.UserID).Warn("Unauthorized admin command")
		return c.replyText(ctx, cmd.ChatID, msgUnauthorized)
	}

	switch cmd.Command {
	case entities.CmdStats:
		stats := c.dashboard.GetStats()
		_, err := c.reply(ctx, cmd.ChatID, entities.Content{
			Text:    statsMessage(stats),
			Buttons: SettingsKeyboard(stats.AIEnabled),
		})
		return err

	case entities.CmdAIOn, entities.CmdAIOff:
		enabled := cmd.Command == entities.CmdAIOn
		if err := c.settings.SetAIEnabled(ctx, enabled); err != nil {
			return err
		}
		if enabled {
			return c.replyText(ctx, cmd.ChatID, "✅ AI answers are ON.")
		}
		return c.replyText(ctx, cmd.ChatID, "⛔ AI answers are OFF. Users will be asked to come back later.")

	case entities.CmdBroadcast:
		return c.broadcast(ctx, cmd)

	case entities.CmdAddBalance, entities.CmdSetBalance:
		return c.changeBalance(ctx, cmd)

	case entities.CmdListAds:
		ads := c.scheduler.ListAds(ctx)
		_, err := c.reply(ctx, cmd.ChatID, entities.Content{Text: adListMessage(ads), Buttons: AdKeyboard(ads)})
		return err

	case entities.CmdPauseAd, entities.CmdResumeAd, entities.CmdDeleteAd:
		return c.adAction(ctx, cmd)

	case entities.CmdNewAd:
		c.builders.Begin(cmd.ChatID)
		return c.replyText(ctx, cmd.ChatID, builderPrompt(StepName))

	case entities.CmdAdBuilderStep:
		return c.builderStep(ctx, cmd)

	case entities.CmdCancel:
		if c.builders.End(cmd.ChatID) {
			return c.replyText(ctx, cmd.ChatID, "❌ Ad creation cancelled.")
		}
		return c.replyText(ctx, cmd.ChatID, "Nothing to cancel.")
	}
	return fmt.Errorf("unknown admin command %q", cmd.Command)
}

// BroadcastTargets resolves users, groups or all to chat ids.
func (c *Coordinator) BroadcastTargets(target string) ([]int64, bool) {
	switch strings.ToLower(target) {
	case "users":
		return c.chats.IDs(entities.ChatKindPrivate), true
	case "groups":
		return c.chats.IDs(entities.ChatKindGroup), true
	case "all":
		return c.chats.IDs(""), true
	}
	return nil, false
}

func (c *Coordinator) broadcast(ctx context.Context, cmd entities.AdminCommandEvent) error {
	const usage = "❌ Invalid Format\n\nUsage:\n/broadcast users <message>\n/broadcast groups <message>\n/broadcast all <message>\n\nFor an image, send a photo with caption: #broadcast all <message>"

	if len(cmd.Args) == 0 {
		return c.replyText(ctx, cmd.ChatID, usage)
	}
	chats, ok := c.BroadcastTargets(cmd.Args[0])
	if !ok {
		return c.replyText(ctx, cmd.ChatID, "❌ Invalid target. Use: users, groups, or all")
	}
	message := strings.TrimSpace(cmd.Text)
	if message == "" && cmd.ImageRef == "" {
		return c.replyText(ctx, cmd.ChatID, usage)
	}
	if len(chats) == 0 {
		return c.replyText(ctx, cmd.ChatID, fmt.Sprintf("⚠️ No %s found to broadcast to.", cmd.Args[0]))
	}

	header := "📢 Announcement from NovaAI"
	content := entities.Content{Text: header + "\n\n" + message}
	if cmd.ImageRef != "" {
		content = entities.Content{ImageRef: cmd.ImageRef, Caption: header}
		if message != "" {
			content.Caption += "\n\n" + message
		}
	}

	_ = c.replyText(ctx, cmd.ChatID, fmt.Sprintf("📢 Broadcasting to %d chats...", len(chats)))

	sent, failed := 0, 0
	for _, chatID := range chats {
		if err := c.limiter.Wait(ctx, chatID); err != nil {
			return err
		}
		if _, err := c.messenger.Send(ctx, chatID, content); err != nil {
			failed++
			log.WithField("chat_id", chatID).WithError(err).Warn("Broadcast send failed")
			continue
		}
		sent++
	}

	log.WithFields(log.Fields{"target": cmd.Args[0], "sent": sent, "failed": failed}).Info("Broadcast complete")
	return c.replyText(ctx, cmd.ChatID, fmt.Sprintf("✅ Broadcast Complete\n\n✅ Sent: %d\n❌ Failed: %d\n📱 Total: %d", sent, failed, len(chats)))
}

func (c *Coordinator) changeBalance(ctx context.Context, cmd entities.AdminCommandEvent) error {
	if len(cmd.Args) != 2 {
		return c.replyText(ctx, cmd.ChatID, "Usage: /balance add|set <user id> <amount>")
	}
	userID := cmd.Args[0]
	amount, err := strconv.ParseInt(cmd.Args[1], 10, 64)
	if err != nil {
		return c.replyText(ctx, cmd.ChatID, "❌ Amount must be a whole number.")
	}

	var acc entities.UserAccount
	if cmd.Command == entities.CmdAddBalance {
		acc, err = c.ledger.AddBalance(ctx, userID, amount)
	} else {
		acc, err = c.ledger.SetBalance(ctx, userID, amount)
	}
	if errors.Is(err, ErrNegativeBalance) {
		return c.replyText(ctx, cmd.ChatID, "❌ Balance cannot go below zero.")
	}
	if err != nil {
		return err
	}
	return c.replyText(ctx, cmd.ChatID, fmt.Sprintf("💳 User %s now has %d credits.", acc.ID, acc.Balance))
}

func (c *Coordinator) adAction(ctx context.Context, cmd entities.AdminCommandEvent) error {
	if len(cmd.Args) != 1 {
		return c.replyText(ctx, cmd.ChatID, "Usage: /ads to manage scheduled ads")
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(cmd.Args[0], "#"), 10, 64)
	if err != nil {
		return c.replyText(ctx, cmd.ChatID, "❌ Invalid ad id.")
	}

	var done string
	switch cmd.Command {
	case entities.CmdPauseAd:
		err, done = c.scheduler.Pause(ctx, id), "⏸️ Ad #%d paused."
	case entities.CmdResumeAd:
		err, done = c.scheduler.Resume(ctx, id), "▶️ Ad #%d resumed."
	default:
		err, done = c.scheduler.Delete(ctx, id), "🗑️ Ad #%d deleted."
	}
	if errors.Is(err, ErrAdNotFound) {
		return c.replyText(ctx, cmd.ChatID, fmt.Sprintf("❌ Ad #%d not found.", id))
	}
	if err != nil {
		return err
	}
	return c.replyText(ctx, cmd.ChatID, fmt.Sprintf(done, id))
}

func (c *Coordinator) resolveTargets(input string) ([]int64, error) {
	if chats, ok := c.BroadcastTargets(strings.TrimSpace(input)); ok {
		return chats, nil
	}
	var ids []int64
	for _, field := range strings.FieldsFunc(input, func(r rune) bool { return r == ',' || r == ' ' || r == '\n' }) {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a chat id", ErrInvalidAd, field)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Coordinator) builderStep(ctx context.Context, cmd entities.AdminCommandEvent) error {
	text := strings.TrimSpace(cmd.Text)

	var draft *NewAd
	var next BuilderStep
	err := c.builders.Update(cmd.ChatID, func(b *AdBuilder) error {
		var err error
		switch b.Step() {
		case StepName:
			err = b.SetName(text)
		case StepKind:
			err = b.SetKind(entities.AdKind(strings.ToLower(text)))
		case StepContent:
			content := entities.Content{Text: text}
			if cmd.ImageRef != "" {
				content = entities.Content{ImageRef: cmd.ImageRef, Caption: text}
			}
			err = b.SetContent(content)
		case StepInterval:
			hours, convErr := strconv.Atoi(text)
			if convErr != nil {
				return fmt.Errorf("%w: send a number of hours", ErrInvalidScheduleInterval)
			}
			err = b.SetInterval(hours)
		case StepTargets:
			targets, resolveErr := c.resolveTargets(text)
			if resolveErr != nil {
				return resolveErr
			}
			err = b.SetTargets(targets)
		default:
			err = ErrUnexpectedStep
		}
		if err != nil {
			return err
		}
		next = b.Step()
		if next == StepComplete {
			d, err := b.Draft()
			if err != nil {
				return err
			}
			draft = &d
		}
		return nil
	})

	switch {
	case errors.Is(err, ErrUnexpectedStep):
		c.builders.End(cmd.ChatID)
		return c.replyText(ctx, cmd.ChatID, "❌ No ad in progress. Use /newad to start.")
	case errors.Is(err, ErrInvalidScheduleInterval), errors.Is(err, ErrInvalidAd):
		return c.replyText(ctx, cmd.ChatID, "⚠️ "+err.Error()+"\n\nPlease try again or /cancel.")
	case err != nil:
		return err
	}

	if draft == nil {
		return c.replyText(ctx, cmd.ChatID, builderPrompt(next))
	}

	c.builders.End(cmd.ChatID)
	id, err := c.scheduler.CreateAd(ctx, *draft)
	if err != nil {
		return c.replyText(ctx, cmd.ChatID, "⚠️ Could not create ad: "+err.Error())
	}
	return c.replyText(ctx, cmd.ChatID, fmt.Sprintf("✅ Ad #%d created. It will be posted to %d chats every %dh, starting with the next cycle.",
		id, len(draft.TargetChats), draft.IntervalHours))
}
