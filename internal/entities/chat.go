package entities

import "time"

type ChatKind string

const (
	ChatKindPrivate ChatKind = "private"
	ChatKindGroup   ChatKind = "group"
)

// ChatRecord is a chat the bot has seen, used for broadcasts and ad targets.
type ChatRecord struct {
	ID       int64     `json:"id"`
	Kind     ChatKind  `json:"kind"`
	Title    string    `json:"title,omitempty"`
	LastSeen time.Time `json:"last_seen"`
}

// ChatKindFromTelegram maps Telegram chat types onto registry kinds. Channels
// and unknown types are not tracked.
func ChatKindFromTelegram(chatType string) (ChatKind, bool) {
	switch chatType {
	case "private":
		return ChatKindPrivate, true
	case "group", "supergroup":
		return ChatKindGroup, true
	}
	return "", false
}
