package usecases

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/entities"
	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testOwner = "999"

type coordinatorFixture struct {
	coord     *Coordinator
	ledger    *Ledger
	provider  *MockProvider
	messenger *MockMessenger
	chats     *repository.ChatRepository
	scheduler *Scheduler

	mu   sync.Mutex
	sent map[int64][]entities.Content
}

func newCoordinatorFixture(t *testing.T) *coordinatorFixture {
	t.Helper()
	ctx := context.Background()
	store := newTestStore(t)

	accounts, err := repository.NewAccountRepository(ctx, store)
	require.NoError(t, err)
	chats, err := repository.NewChatRepository(ctx, store)
	require.NoError(t, err)
	ads, err := repository.NewAdRepository(ctx, store)
	require.NoError(t, err)
	configs, err := repository.NewConfigRepository(ctx, store)
	require.NoError(t, err)

	clock := newTestClock(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC))
	ledger := NewLedger(accounts, LedgerConfig{DailyCap: DefaultDailyCap, StartingBalance: DefaultStartingBalance})
	ledger.SetClock(clock.Now)

	f := &coordinatorFixture{
		ledger:    ledger,
		provider:  newMockProvider("openai"),
		messenger: &MockMessenger{},
		chats:     chats,
		sent:      make(map[int64][]entities.Content),
	}
	f.scheduler = NewScheduler(ads, f.messenger, noopLimiter{}, time.Minute, 0)
	f.scheduler.now = clock.Now

	settings := NewRuntimeSettings(configs, true)
	dashboard := NewDashboardUsecase(accounts, chats, ads, settings)
	orchestrator := NewOrchestrator("", f.provider)

	f.coord = NewCoordinator(ledger, orchestrator, f.scheduler, dashboard, settings, chats,
		f.messenger, noopLimiter{}, CoordinatorConfig{OwnerID: testOwner})

	f.messenger.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			f.mu.Lock()
			defer f.mu.Unlock()
			chatID := args.Get(1).(int64)
			f.sent[chatID] = append(f.sent[chatID], args.Get(2).(entities.Content))
		}).Return(7, nil)
	f.messenger.On("Delete", mock.Anything, mock.Anything, 7).Return(nil)
	return f
}

func (f *coordinatorFixture) messages(chatID int64) []entities.Content {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entities.Content(nil), f.sent[chatID]...)
}

func (f *coordinatorFixture) last(chatID int64) entities.Content {
	msgs := f.messages(chatID)
	if len(msgs) == 0 {
		return entities.Content{}
	}
	return msgs[len(msgs)-1]
}

func question(userID string, chatID int64, text string) entities.QuestionEvent {
	return entities.QuestionEvent{
		UserID:   userID,
		ChatID:   chatID,
		ChatKind: entities.ChatKindPrivate,
		Text:     text,
	}
}

func admin(cmd entities.AdminCommand, text string, args ...string) entities.AdminCommandEvent {
	return entities.AdminCommandEvent{UserID: testOwner, ChatID: 1, Command: cmd, Args: args, Text: text}
}

func TestCoordinator_QuestionAnsweredAndCharged(t *testing.T) {
	ctx := context.Background()
	f := newCoordinatorFixture(t)
	f.provider.On("Invoke", mock.Anything, mock.Anything).
		Return(&entities.CompletionResponse{Text: "Photosynthesis turns light into sugar.", Status: entities.StatusCompleted}, nil).Once()

	require.NoError(t, f.coord.Handle(ctx, question("42", 42, "What is photosynthesis?")))

	msgs := f.messages(42)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Text, "Processing your question")
	assert.Contains(t, msgs[1].Text, "Photosynthesis turns light into sugar.")
	assert.Contains(t, msgs[1].Text, "Powered by NovaAI")
	assert.True(t, msgs[1].Markdown)
	f.messenger.AssertCalled(t, "Delete", mock.Anything, int64(42), 7)

	acc, err := f.ledger.Account("42")
	require.NoError(t, err)
	assert.Equal(t, DefaultStartingBalance-TextCost, acc.Balance)
	assert.Equal(t, int64(1), acc.TotalQuestions)
	assert.Equal(t, []int64{42}, f.chats.IDs(entities.ChatKindPrivate))
}

func TestCoordinator_RejectedQuestionNeverReachesProvider(t *testing.T) {
	ctx := context.Background()
	f := newCoordinatorFixture(t)
	f.provider.On("Invoke", mock.Anything, mock.Anything).
		Return(&entities.CompletionResponse{Text: "ok", Status: entities.StatusCompleted}, nil)

	require.NoError(t, f.coord.Handle(ctx, question("42", 42, "one")))
	require.NoError(t, f.coord.Handle(ctx, question("42", 42, "two")))
	require.NoError(t, f.coord.Handle(ctx, question("42", 42, "three")))

	assert.Contains(t, f.last(42).Text, "Daily Limit Reached")
	f.provider.AssertNumberOfCalls(t, "Invoke", 2)
}

func TestCoordinator_OwnerIsNotCharged(t *testing.T) {
	ctx := context.Background()
	f := newCoordinatorFixture(t)
	f.provider.On("Invoke", mock.Anything, mock.Anything).
		Return(&entities.CompletionResponse{Text: "ok", Status: entities.StatusCompleted}, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.coord.Handle(ctx, question(testOwner, 1, "why?")))
	}

	_, err := f.ledger.Account(testOwner)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	f.provider.AssertNumberOfCalls(t, "Invoke", 3)
}

func TestCoordinator_ProviderFailureKeepsCharge(t *testing.T) {
	ctx := context.Background()
	f := newCoordinatorFixture(t)
	f.provider.On("Invoke", mock.Anything, mock.Anything).Return(nil, errors.New("503")).Once()

	require.NoError(t, f.coord.Handle(ctx, question("42", 42, "Explain gravity")))

	assert.Contains(t, f.last(42).Text, "encountered an error")
	acc, err := f.ledger.Account("42")
	require.NoError(t, err)
	assert.Equal(t, int64(1), acc.DailyUsage)
}

func TestCoordinator_AIDisabledBlocksUsersOnly(t *testing.T) {
	ctx := context.Background()
	f := newCoordinatorFixture(t)
	f.provider.On("Invoke", mock.Anything, mock.Anything).
		Return(&entities.CompletionResponse{Text: "ok", Status: entities.StatusCompleted}, nil)

	require.NoError(t, f.coord.Handle(ctx, admin(entities.CmdAIOff, "")))
	require.NoError(t, f.coord.Handle(ctx, question("42", 42, "hello")))
	assert.Equal(t, msgAIDisabled, f.last(42).Text)
	f.provider.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)

	require.NoError(t, f.coord.Handle(ctx, question(testOwner, 1, "hello")))
	f.provider.AssertNumberOfCalls(t, "Invoke", 1)
}

func TestCoordinator_LongAnswerIsSplit(t *testing.T) {
	ctx := context.Background()
	f := newCoordinatorFixture(t)

	long := ""
	for i := 0; i < 120; i++ {
		long += "This line is part of a very long worked solution with many steps.\n"
	}
	f.provider.On("Invoke", mock.Anything, mock.Anything).
		Return(&entities.CompletionResponse{Text: long, Status: entities.StatusCompleted}, nil).Once()

	require.NoError(t, f.coord.Handle(ctx, question("42", 42, "Solve it")))

	msgs := f.messages(42)
	require.Greater(t, len(msgs), 3)
	for _, m := range msgs[1:] {
		assert.LessOrEqual(t, len([]rune(m.Text)), MaxMessageLength)
	}
}

func TestCoordinator_AdminCommandsRequireOwner(t *testing.T) {
	ctx := context.Background()
	f := newCoordinatorFixture(t)

	cmd := admin(entities.CmdStats, "")
	cmd.UserID = "42"
	cmd.ChatID = 42
	require.NoError(t, f.coord.Handle(ctx, cmd))
	assert.Equal(t, msgUnauthorized, f.last(42).Text)
}

func TestCoordinator_Broadcast(t *testing.T) {
	ctx := context.Background()
	f := newCoordinatorFixture(t)
	f.coord.TrackChat(ctx, 10, entities.ChatKindPrivate, "")
	f.coord.TrackChat(ctx, -20, entities.ChatKindGroup, "Physics")

	require.NoError(t, f.coord.Handle(ctx, admin(entities.CmdBroadcast, "Exams moved to Monday", "groups")))

	assert.Empty(t, f.messages(10))
	require.Len(t, f.messages(-20), 1)
	assert.Equal(t, "📢 Announcement from NovaAI\n\nExams moved to Monday", f.last(-20).Text)
	assert.Contains(t, f.last(1).Text, "Sent: 1")

	require.NoError(t, f.coord.Handle(ctx, admin(entities.CmdBroadcast, "hi", "everyone")))
	assert.Contains(t, f.last(1).Text, "Invalid target")
}

func TestCoordinator_BalanceCommands(t *testing.T) {
	ctx := context.Background()
	f := newCoordinatorFixture(t)

	require.NoError(t, f.coord.Handle(ctx, admin(entities.CmdSetBalance, "", "42", "3")))
	require.NoError(t, f.coord.Handle(ctx, admin(entities.CmdAddBalance, "", "42", "5")))
	acc, err := f.ledger.Account("42")
	require.NoError(t, err)
	assert.Equal(t, int64(8), acc.Balance)

	require.NoError(t, f.coord.Handle(ctx, admin(entities.CmdAddBalance, "", "42", "-100")))
	assert.Contains(t, f.last(1).Text, "below zero")

	require.NoError(t, f.coord.Handle(ctx, admin(entities.CmdSetBalance, "", "42", "lots")))
	assert.Contains(t, f.last(1).Text, "whole number")
}

func TestCoordinator_AdBuilderFlow(t *testing.T) {
	ctx := context.Background()
	f := newCoordinatorFixture(t)
	f.coord.TrackChat(ctx, -20, entities.ChatKindGroup, "Physics")
	f.coord.TrackChat(ctx, -30, entities.ChatKindGroup, "Maths")

	require.NoError(t, f.coord.Handle(ctx, admin(entities.CmdNewAd, "")))
	assert.True(t, f.coord.BuilderActive(1))

	steps := []string{"Nova Learn", "text", "Download Nova Learn today", "0", "6", "groups"}
	for _, s := range steps {
		require.NoError(t, f.coord.Handle(ctx, admin(entities.CmdAdBuilderStep, s)))
	}

	assert.False(t, f.coord.BuilderActive(1))
	assert.Contains(t, f.last(1).Text, "Ad #1 created")

	ad, err := f.scheduler.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "Nova Learn", ad.Name)
	assert.Equal(t, 6, ad.IntervalHours)
	assert.Equal(t, []int64{-30, -20}, ad.TargetChats)

	require.NoError(t, f.coord.Handle(ctx, admin(entities.CmdPauseAd, "", "1")))
	ad, err = f.scheduler.Get(1)
	require.NoError(t, err)
	assert.False(t, ad.Enabled)

	require.NoError(t, f.coord.Handle(ctx, admin(entities.CmdDeleteAd, "", "#1")))
	_, err = f.scheduler.Get(1)
	assert.ErrorIs(t, err, ErrAdNotFound)

	require.NoError(t, f.coord.Handle(ctx, admin(entities.CmdResumeAd, "", "1")))
	assert.Contains(t, f.last(1).Text, "not found")
}

func TestCoordinator_CancelBuilder(t *testing.T) {
	ctx := context.Background()
	f := newCoordinatorFixture(t)

	require.NoError(t, f.coord.Handle(ctx, admin(entities.CmdNewAd, "")))
	require.NoError(t, f.coord.Handle(ctx, admin(entities.CmdCancel, "")))
	assert.False(t, f.coord.BuilderActive(1))

	require.NoError(t, f.coord.Handle(ctx, admin(entities.CmdAdBuilderStep, "stray")))
	assert.Contains(t, f.last(1).Text, "No ad in progress")
}

func TestCoordinator_TickEventPostsDueAds(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	id, err := f.scheduler.CreateAd(ctx, textAd("promo", 6, -100))
	require.NoError(t, err)

	require.NoError(t, f.coord.Handle(ctx, entities.TickEvent{At: f.scheduler.now()}))
	require.Len(t, f.messages(-100), 1)
	assert.Equal(t, "Download Nova Learn", f.messages(-100)[0].Text)

	ad, err := f.scheduler.Get(id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ad.TotalPosts)

	// Not due again within the interval.
	require.NoError(t, f.coord.Handle(ctx, entities.TickEvent{At: f.scheduler.now().Add(time.Hour)}))
	assert.Len(t, f.messages(-100), 1)
}

func TestCoordinator_SchedulerWorkerDispatchesTicks(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.scheduler.period = 10 * time.Millisecond

	_, err := f.scheduler.CreateAd(context.Background(), textAd("promo", 6, -100))
	require.NoError(t, err)

	stop := f.scheduler.Start(context.Background(), f.coord)
	defer stop()
	assert.Eventually(t, func() bool { return len(f.messages(-100)) == 1 }, 2*time.Second, 10*time.Millisecond)
}
