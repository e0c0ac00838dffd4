package repository

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/entities"
)

// ChatRepository is the registry of chats the bot has seen.
type ChatRepository struct {
	chats *Collection[entities.ChatRecord]
	now   func() time.Time
}

func NewChatRepository(ctx context.Context, store Store) (*ChatRepository, error) {
	chats, err := LoadCollection[entities.ChatRecord](ctx, store, CollectionChats)
	if err != nil {
		return nil, err
	}
	return &ChatRepository{chats: chats, now: time.Now}, nil
}

// Track records or refreshes a chat.
func (r *ChatRepository) Track(ctx context.Context, id int64, kind entities.ChatKind, title string) error {
	_, err := r.chats.Mutate(ctx, strconv.FormatInt(id, 10), func(c *entities.ChatRecord, _ bool) error {
		c.ID = id
		c.Kind = kind
		if title != "" {
			c.Title = title
		}
		c.LastSeen = r.now().UTC()
		return nil
	})
	return err
}

// IDs returns chat ids of the given kind in ascending order. An empty kind
// returns every chat.
func (r *ChatRepository) IDs(kind entities.ChatKind) []int64 {
	ids := []int64{}
	for _, c := range r.chats.All() {
		if kind == "" || c.Kind == kind {
			ids = append(ids, c.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *ChatRepository) List() []entities.ChatRecord {
	return r.chats.All()
}

// Counts returns the number of private and group chats.
func (r *ChatRepository) Counts() (users, groups int) {
	for _, c := range r.chats.All() {
		switch c.Kind {
		case entities.ChatKindPrivate:
			users++
		case entities.ChatKindGroup:
			groups++
		}
	}
	return users, groups
}

func (r *ChatRepository) Flush(ctx context.Context) error {
	return r.chats.Flush(ctx)
}
