package usecases

import "time"

const (
	ModelFlagship = "gpt-5"
	ModelMini     = "gpt-5-mini"
	ModelNano     = "gpt-5-nano"
)

// Selection is the primary provider's parameters for one question.
type Selection struct {
	Model           string
	MaxOutputTokens int
	Timeout         time.Duration
}

// SelectModel picks tier, output budget and deadline from the request shape
// alone.
func SelectModel(hasImage bool, inputSize int) Selection {
	switch {
	case hasImage:
		return Selection{Model: ModelFlagship, MaxOutputTokens: 8000, Timeout: 300 * time.Second}
	case inputSize > 200:
		return Selection{Model: ModelFlagship, MaxOutputTokens: 4000, Timeout: 180 * time.Second}
	case inputSize > 50:
		return Selection{Model: ModelMini, MaxOutputTokens: 2000, Timeout: 120 * time.Second}
	default:
		return Selection{Model: ModelNano, MaxOutputTokens: 1000, Timeout: 90 * time.Second}
	}
}
