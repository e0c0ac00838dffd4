package usecases

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T, clock *testClock) (*Ledger, repository.Store) {
	t.Helper()
	store := newTestStore(t)
	accounts, err := repository.NewAccountRepository(context.Background(), store)
	require.NoError(t, err)

	ledger := NewLedger(accounts, LedgerConfig{DailyCap: DefaultDailyCap, StartingBalance: DefaultStartingBalance})
	ledger.SetClock(clock.Now)
	return ledger, store
}

func TestLedger_EnsureAccountIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t, newTestClock(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)))

	acc, err := ledger.EnsureAccount(ctx, "42", "Ana")
	require.NoError(t, err)
	assert.Equal(t, DefaultStartingBalance, acc.Balance)
	assert.Equal(t, "2025-05-01", acc.LastResetDate)

	_, err = ledger.SetBalance(ctx, "42", 3)
	require.NoError(t, err)

	acc, err = ledger.EnsureAccount(ctx, "42", "Ana")
	require.NoError(t, err)
	assert.Equal(t, int64(3), acc.Balance)
}

func TestLedger_DailyCapRejectsThirdTextRequest(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t, newTestClock(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)))

	for i := 0; i < 2; i++ {
		d, err := ledger.Reserve(ctx, "u1", "", TextCost)
		require.NoError(t, err)
		assert.Equal(t, Admit, d)
	}

	d, err := ledger.Reserve(ctx, "u1", "", TextCost)
	require.NoError(t, err)
	assert.Equal(t, RejectDailyLimit, d)

	acc, err := ledger.Account("u1")
	require.NoError(t, err)
	assert.Equal(t, int64(8), acc.Balance)
	assert.Equal(t, int64(2), acc.DailyUsage)
	assert.Equal(t, int64(2), acc.TotalQuestions)
}

func TestLedger_ImageRequestUsesWholeDailyCap(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t, newTestClock(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)))

	d, err := ledger.Admit(ctx, "u1", true)
	require.NoError(t, err)
	require.Equal(t, Admit, d)
	require.NoError(t, ledger.CommitRequest(ctx, "u1", true))

	d, err = ledger.Admit(ctx, "u1", false)
	require.NoError(t, err)
	assert.Equal(t, RejectDailyLimit, d)
}

func TestLedger_InsufficientBalanceIsDistinct(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t, newTestClock(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)))

	_, err := ledger.SetBalance(ctx, "u1", 1)
	require.NoError(t, err)

	d, err := ledger.Admit(ctx, "u1", true)
	require.NoError(t, err)
	assert.Equal(t, RejectInsufficientBalance, d)

	d, err = ledger.Admit(ctx, "u1", false)
	require.NoError(t, err)
	assert.Equal(t, Admit, d)
}

func TestLedger_DailyLimitCheckedBeforeBalance(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t, newTestClock(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)))

	_, err := ledger.SetBalance(ctx, "u1", 2)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := ledger.Reserve(ctx, "u1", "", TextCost)
		require.NoError(t, err)
	}

	// Both limits are hit; the daily limit is reported.
	d, err := ledger.Admit(ctx, "u1", false)
	require.NoError(t, err)
	assert.Equal(t, RejectDailyLimit, d)
}

func TestLedger_RolloverResetsUsageAndPersists(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(time.Date(2025, 5, 1, 23, 0, 0, 0, time.UTC))
	ledger, store := newTestLedger(t, clock)

	for i := 0; i < 2; i++ {
		_, err := ledger.Reserve(ctx, "u1", "", TextCost)
		require.NoError(t, err)
	}

	clock.Advance(2 * time.Hour)
	d, err := ledger.Admit(ctx, "u1", false)
	require.NoError(t, err)
	assert.Equal(t, Admit, d)

	// The rollover written by the check is visible after a reload.
	accounts, err := repository.NewAccountRepository(ctx, store)
	require.NoError(t, err)
	acc, ok := accounts.Get("u1")
	require.True(t, ok)
	assert.Equal(t, "2025-05-02", acc.LastResetDate)
	assert.Equal(t, int64(0), acc.DailyUsage)
	assert.Equal(t, int64(8), acc.Balance)
}

func TestLedger_RolloverFollowsConfiguredLocation(t *testing.T) {
	ctx := context.Background()
	loc := time.FixedZone("UTC+5", 5*60*60)
	clock := newTestClock(time.Date(2025, 5, 1, 20, 0, 0, 0, time.UTC))

	accounts, err := repository.NewAccountRepository(ctx, newTestStore(t))
	require.NoError(t, err)
	ledger := NewLedger(accounts, LedgerConfig{Location: loc, StartingBalance: 10})
	ledger.SetClock(clock.Now)

	acc, err := ledger.EnsureAccount(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, "2025-05-02", acc.LastResetDate)
}

func TestLedger_CommitRevokedWhenNoLongerAffordable(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t, newTestClock(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)))

	_, err := ledger.SetBalance(ctx, "u1", 1)
	require.NoError(t, err)

	d, err := ledger.Admit(ctx, "u1", false)
	require.NoError(t, err)
	require.Equal(t, Admit, d)

	_, err = ledger.SetBalance(ctx, "u1", 0)
	require.NoError(t, err)

	err = ledger.CommitRequest(ctx, "u1", false)
	assert.ErrorIs(t, err, ErrAdmissionRevoked)

	acc, _ := ledger.Account("u1")
	assert.Equal(t, int64(0), acc.Balance)
}

func TestLedger_ConcurrentReserveNeverOverspends(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t, newTestClock(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)))

	_, err := ledger.SetBalance(ctx, "u1", 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := ledger.Reserve(ctx, "u1", "", TextCost)
			assert.NoError(t, err)
			if d == Admit {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, admitted)
	acc, _ := ledger.Account("u1")
	assert.Equal(t, int64(0), acc.Balance)
}

func TestLedger_AdminBalance(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t, newTestClock(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)))

	acc, err := ledger.AddBalance(ctx, "u1", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(15), acc.Balance)

	_, err = ledger.AddBalance(ctx, "u1", -16)
	assert.ErrorIs(t, err, ErrNegativeBalance)

	_, err = ledger.SetBalance(ctx, "u1", -1)
	assert.ErrorIs(t, err, ErrNegativeBalance)

	acc, err = ledger.Account("u1")
	require.NoError(t, err)
	assert.Equal(t, int64(15), acc.Balance)

	_, err = ledger.Account("nobody")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestLedger_Status(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC))
	ledger, _ := newTestLedger(t, clock)

	_, err := ledger.Reserve(ctx, "u1", "", TextCost)
	require.NoError(t, err)

	st, err := ledger.Status("u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.DailyRemaining)
	assert.Equal(t, int64(9), st.Balance)

	clock.Advance(24 * time.Hour)
	st, err = ledger.Status("u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.DailyRemaining)
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "admit", Admit.String())
	assert.Equal(t, "daily_limit", RejectDailyLimit.String())
	assert.Equal(t, "insufficient_balance", RejectInsufficientBalance.String())
}
