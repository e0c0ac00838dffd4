package repository

import (
	"context"

	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/entities"
)

// AccountRepository holds per-user quota accounts keyed by user ID.
type AccountRepository struct {
	accounts *Collection[entities.UserAccount]
}

func NewAccountRepository(ctx context.Context, store Store) (*AccountRepository, error) {
	accounts, err := LoadCollection[entities.UserAccount](ctx, store, CollectionAccounts)
	if err != nil {
		return nil, err
	}
	return &AccountRepository{accounts: accounts}, nil
}

func (r *AccountRepository) Get(userID string) (entities.UserAccount, bool) {
	return r.accounts.Get(userID)
}

// Mutate runs fn on the account, creating it when exists is false.
func (r *AccountRepository) Mutate(ctx context.Context, userID string, fn func(acc *entities.UserAccount, exists bool) error) (entities.UserAccount, error) {
	return r.accounts.Mutate(ctx, userID, fn)
}

func (r *AccountRepository) List() []entities.UserAccount {
	return r.accounts.All()
}

func (r *AccountRepository) Count() int {
	return r.accounts.Len()
}

// TotalQuestions sums answered questions over all accounts.
func (r *AccountRepository) TotalQuestions() int64 {
	var total int64
	for _, acc := range r.accounts.All() {
		total += acc.TotalQuestions
	}
	return total
}

func (r *AccountRepository) Flush(ctx context.Context) error {
	return r.accounts.Flush(ctx)
}
