package repository

import (
	"context"
	"strconv"
	"time"
)

const KeyAIEnabled = "ai_enabled"

type BotConfig struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConfigRepository holds owner-changeable runtime settings.
type ConfigRepository struct {
	configs *Collection[BotConfig]
}

func NewConfigRepository(ctx context.Context, store Store) (*ConfigRepository, error) {
	configs, err := LoadCollection[BotConfig](ctx, store, CollectionSettings)
	if err != nil {
		return nil, err
	}
	return &ConfigRepository{configs: configs}, nil
}

// GetConfig returns a config value by key
func (r *ConfigRepository) GetConfig(key string) (string, bool) {
	c, ok := r.configs.Get(key)
	return c.Value, ok
}

// SetConfig sets a config value
func (r *ConfigRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.configs.Mutate(ctx, key, func(c *BotConfig, _ bool) error {
		c.Key = key
		c.Value = value
		c.UpdatedAt = time.Now().UTC()
		return nil
	})
	return err
}

// GetAllConfigs returns all configs
func (r *ConfigRepository) GetAllConfigs() []BotConfig {
	return r.configs.All()
}

// GetBool reads a boolean setting, falling back to def when unset or invalid.
func (r *ConfigRepository) GetBool(key string, def bool) bool {
	v, ok := r.GetConfig(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func (r *ConfigRepository) SetBool(ctx context.Context, key string, value bool) error {
	return r.SetConfig(ctx, key, strconv.FormatBool(value))
}

func (r *ConfigRepository) Flush(ctx context.Context) error {
	return r.configs.Flush(ctx)
}
