package repository

import (
	"context"
	"errors"
)

// Collections persisted by the bot.
const (
	CollectionAccounts = "accounts"
	CollectionAds      = "ads"
	CollectionChats    = "chats"
	CollectionSettings = "settings"
	CollectionMeta     = "meta"
)

var (
	ErrNotFound         = errors.New("repository: record not found")
	ErrPersistenceWrite = errors.New("repository: persistence write failed")
)

// Record is one stored JSON document.
type Record struct {
	Key string
	Doc []byte
}

// Store is a document store keyed by (collection, key). Documents are JSON.
type Store interface {
	Get(ctx context.Context, collection, key string) ([]byte, error)
	List(ctx context.Context, collection string) ([]Record, error)
	Put(ctx context.Context, collection, key string, doc []byte) error
	Delete(ctx context.Context, collection, key string) error
	// Update runs fn on the current document (nil when absent) and stores the
	// result atomically. Returning a nil document leaves the record unchanged.
	Update(ctx context.Context, collection, key string, fn func(current []byte) ([]byte, error)) ([]byte, error)
	Close() error
}
