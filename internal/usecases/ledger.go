package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/entities"
	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/repository"
	log "github.com/sirupsen/logrus"
)

const (
	TextCost  int64 = 1
	ImageCost int64 = 2

	DefaultDailyCap        int64 = 2
	DefaultStartingBalance int64 = 10

	dateLayout = "2006-01-02"
)

var (
	ErrAccountNotFound  = errors.New("ledger: account not found")
	ErrNegativeBalance  = errors.New("ledger: balance cannot be negative")
	ErrAdmissionRevoked = errors.New("ledger: admission no longer valid")
)

// Decision is the outcome of an admission check.
type Decision int

const (
	Admit Decision = iota
	RejectDailyLimit
	RejectInsufficientBalance
)

func (d Decision) String() string {
	switch d {
	case Admit:
		return "admit"
	case RejectDailyLimit:
		return "daily_limit"
	case RejectInsufficientBalance:
		return "insufficient_balance"
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// CostOf maps a request class to its credit cost.
func CostOf(isImage bool) int64 {
	if isImage {
		return ImageCost
	}
	return TextCost
}

type LedgerConfig struct {
	DailyCap        int64
	StartingBalance int64
	Location        *time.Location
}

// Ledger is the request admission ledger. All account read-modify-writes
// happen under mu.
type Ledger struct {
	accounts *repository.AccountRepository
	cfg      LedgerConfig
	now      func() time.Time

	mu sync.Mutex
}

func NewLedger(accounts *repository.AccountRepository, cfg LedgerConfig) *Ledger {
	if cfg.DailyCap <= 0 {
		cfg.DailyCap = DefaultDailyCap
	}
	if cfg.StartingBalance < 0 {
		cfg.StartingBalance = 0
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Ledger{accounts: accounts, cfg: cfg, now: time.Now}
}

// SetClock replaces the ledger clock.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

func (l *Ledger) DailyCap() int64 {
	return l.cfg.DailyCap
}

func (l *Ledger) today() string {
	return l.now().In(l.cfg.Location).Format(dateLayout)
}

// prepare creates the account if needed and applies the day rollover.
func (l *Ledger) prepare(acc *entities.UserAccount, exists bool, userID, displayName, today string) {
	if !exists {
		acc.ID = userID
		acc.Balance = l.cfg.StartingBalance
		acc.LastResetDate = today
	}
	if displayName != "" {
		acc.DisplayName = displayName
	}
	if acc.LastResetDate != today {
		acc.DailyUsage = 0
		acc.LastResetDate = today
	}
}

func (l *Ledger) decide(acc *entities.UserAccount, cost int64) Decision {
	if acc.DailyUsage+cost > l.cfg.DailyCap {
		return RejectDailyLimit
	}
	if acc.Balance < cost {
		return RejectInsufficientBalance
	}
	return Admit
}

// EnsureAccount returns the user's account, creating it with the starting
// balance on first sight.
func (l *Ledger) EnsureAccount(ctx context.Context, userID, displayName string) (entities.UserAccount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := l.today()
	return l.accounts.Mutate(ctx, userID, func(acc *entities.UserAccount, exists bool) error {
		l.prepare(acc, exists, userID, displayName, today)
		return nil
	})
}

// CheckAdmission decides whether a request of the given cost may run. The
// day rollover is persisted even when nothing else changes.
func (l *Ledger) CheckAdmission(ctx context.Context, userID string, cost int64) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := l.today()
	var decision Decision
	_, err := l.accounts.Mutate(ctx, userID, func(acc *entities.UserAccount, exists bool) error {
		l.prepare(acc, exists, userID, "", today)
		decision = l.decide(acc, cost)
		return nil
	})
	return decision, err
}

// Commit charges an admitted request. It re-validates first and returns
// ErrAdmissionRevoked instead of letting the balance go negative or the daily
// cap be exceeded.
func (l *Ledger) Commit(ctx context.Context, userID string, cost int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := l.today()
	_, err := l.accounts.Mutate(ctx, userID, func(acc *entities.UserAccount, exists bool) error {
		l.prepare(acc, exists, userID, "", today)
		if d := l.decide(acc, cost); d != Admit {
			return fmt.Errorf("%w: %s", ErrAdmissionRevoked, d)
		}
		l.charge(acc, cost)
		return nil
	})
	return err
}

// Reserve checks and commits under one lock, so concurrent requests from
// the same user cannot both be admitted against the same credits.
func (l *Ledger) Reserve(ctx context.Context, userID, displayName string, cost int64) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := l.today()
	var decision Decision
	acc, err := l.accounts.Mutate(ctx, userID, func(acc *entities.UserAccount, exists bool) error {
		l.prepare(acc, exists, userID, displayName, today)
		decision = l.decide(acc, cost)
		if decision == Admit {
			l.charge(acc, cost)
		}
		return nil
	})
	if err != nil {
		return decision, err
	}

	log.WithFields(log.Fields{
		"user_id":     userID,
		"cost":        cost,
		"decision":    decision.String(),
		"balance":     acc.Balance,
		"daily_usage": acc.DailyUsage,
	}).Debug("Admission decided")
	return decision, nil
}

func (l *Ledger) charge(acc *entities.UserAccount, cost int64) {
	acc.Balance -= cost
	acc.DailyUsage += cost
	acc.TotalQuestions++
}

// Admit is CheckAdmission for a request class.
func (l *Ledger) Admit(ctx context.Context, userID string, isImage bool) (Decision, error) {
	return l.CheckAdmission(ctx, userID, CostOf(isImage))
}

// CommitRequest is Commit for a request class.
func (l *Ledger) CommitRequest(ctx context.Context, userID string, isImage bool) error {
	return l.Commit(ctx, userID, CostOf(isImage))
}

// AddBalance credits amount (which may be negative) to an account.
func (l *Ledger) AddBalance(ctx context.Context, userID string, amount int64) (entities.UserAccount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := l.today()
	return l.accounts.Mutate(ctx, userID, func(acc *entities.UserAccount, exists bool) error {
		l.prepare(acc, exists, userID, "", today)
		if acc.Balance+amount < 0 {
			return ErrNegativeBalance
		}
		acc.Balance += amount
		return nil
	})
}

// SetBalance overwrites an account's balance.
func (l *Ledger) SetBalance(ctx context.Context, userID string, balance int64) (entities.UserAccount, error) {
	if balance < 0 {
		return entities.UserAccount{}, ErrNegativeBalance
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	today := l.today()
	return l.accounts.Mutate(ctx, userID, func(acc *entities.UserAccount, exists bool) error {
		l.prepare(acc, exists, userID, "", today)
		acc.Balance = balance
		return nil
	})
}

// Account returns an existing account without creating it.
func (l *Ledger) Account(userID string) (entities.UserAccount, error) {
	acc, ok := l.accounts.Get(userID)
	if !ok {
		return entities.UserAccount{}, ErrAccountNotFound
	}
	return acc, nil
}

// Status reports quota figures as of now. Usage from a past day reads as 0.
func (l *Ledger) Status(userID string) (entities.QuotaStatus, error) {
	acc, err := l.Account(userID)
	if err != nil {
		return entities.QuotaStatus{}, err
	}

	used := acc.DailyUsage
	if acc.LastResetDate != l.today() {
		used = 0
	}
	remaining := l.cfg.DailyCap - used
	if remaining < 0 {
		remaining = 0
	}
	return entities.QuotaStatus{
		Balance:        acc.Balance,
		DailyCap:       l.cfg.DailyCap,
		DailyUsed:      used,
		DailyRemaining: remaining,
		TotalQuestions: acc.TotalQuestions,
	}, nil
}
