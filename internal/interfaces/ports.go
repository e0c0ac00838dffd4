package interfaces

import (
	"context"

	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/entities"
)

// CompletionProvider is one text/vision completion backend.
type CompletionProvider interface {
	Name() string
	// Configured reports whether the provider has credentials. Unconfigured
	// providers are skipped by the fallback chain.
	Configured() bool
	Invoke(ctx context.Context, req entities.CompletionRequest) (*entities.CompletionResponse, error)
}

// Messenger is the outbound chat gateway.
type Messenger interface {
	Send(ctx context.Context, chatID int64, content entities.Content) (int, error)
	Delete(ctx context.Context, chatID int64, messageID int) error
}

// SendLimiter paces outbound sends to stay under platform rate limits.
type SendLimiter interface {
	Wait(ctx context.Context, chatID int64) error
}
