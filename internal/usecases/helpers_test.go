package usecases

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/entities"
	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/repository"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) repository.Store {
	t.Helper()
	store, err := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// testClock is a settable clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock {
	return &testClock{now: now}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// MockMessenger is a mock implementation of interfaces.Messenger.
type MockMessenger struct {
	mock.Mock
}

func (m *MockMessenger) Send(ctx context.Context, chatID int64, content entities.Content) (int, error) {
	args := m.Called(ctx, chatID, content)
	return args.Int(0), args.Error(1)
}

func (m *MockMessenger) Delete(ctx context.Context, chatID int64, messageID int) error {
	args := m.Called(ctx, chatID, messageID)
	return args.Error(0)
}

// MockProvider is a mock implementation of interfaces.CompletionProvider.
type MockProvider struct {
	mock.Mock
	name       string
	configured bool
}

func newMockProvider(name string) *MockProvider {
	return &MockProvider{name: name, configured: true}
}

func (m *MockProvider) Name() string     { return m.name }
func (m *MockProvider) Configured() bool { return m.configured }

func (m *MockProvider) Invoke(ctx context.Context, req entities.CompletionRequest) (*entities.CompletionResponse, error) {
	args := m.Called(ctx, req)
	if fn, ok := args.Get(0).(func(context.Context, entities.CompletionRequest) (*entities.CompletionResponse, error)); ok {
		return fn(ctx, req)
	}
	resp, _ := args.Get(0).(*entities.CompletionResponse)
	return resp, args.Error(1)
}

type noopLimiter struct{}

func (noopLimiter) Wait(ctx context.Context, chatID int64) error {
	return ctx.Err()
}
