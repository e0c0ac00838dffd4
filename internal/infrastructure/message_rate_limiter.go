package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/interfaces"
	"golang.org/x/time/rate"
)

// DefaultGlobalSendRate stays under Telegram's ~30 messages/second bot limit.
const DefaultGlobalSendRate = 25

// SendThrottle paces outbound sends with one limiter per chat and one shared
// limiter for the whole bot.
type SendThrottle struct {
	mu          sync.Mutex
	chats       map[int64]*chatBucket
	perChat     rate.Limit
	global      *rate.Limiter
	idleTTL     time.Duration
	lastCleanup time.Time
}

type chatBucket struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// NewSendThrottle allows one send per interval in each chat and globalPerSecond
// sends overall. A zero interval or rate disables that limit.
func NewSendThrottle(interval time.Duration, globalPerSecond int) *SendThrottle {
	perChat := rate.Inf
	if interval > 0 {
		perChat = rate.Every(interval)
	}
	global := rate.NewLimiter(rate.Inf, 1)
	if globalPerSecond > 0 {
		global = rate.NewLimiter(rate.Limit(globalPerSecond), globalPerSecond)
	}
	return &SendThrottle{
		chats:       make(map[int64]*chatBucket),
		perChat:     perChat,
		global:      global,
		idleTTL:     10 * time.Minute,
		lastCleanup: time.Now(),
	}
}

var _ interfaces.SendLimiter = (*SendThrottle)(nil)

// Wait blocks until a send to chatID is allowed or ctx is done.
func (s *SendThrottle) Wait(ctx context.Context, chatID int64) error {
	if err := s.bucket(chatID).Wait(ctx); err != nil {
		return err
	}
	return s.global.Wait(ctx)
}

func (s *SendThrottle) bucket(chatID int64) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.Sub(s.lastCleanup) > s.idleTTL {
		for id, b := range s.chats {
			if now.Sub(b.lastUsed) > s.idleTTL {
				delete(s.chats, id)
			}
		}
		s.lastCleanup = now
	}

	b, ok := s.chats[chatID]
	if !ok {
		b = &chatBucket{limiter: rate.NewLimiter(s.perChat, 1)}
		s.chats[chatID] = b
	}
	b.lastUsed = now
	return b.limiter
}

// ActiveChats returns how many chats currently hold a limiter.
func (s *SendThrottle) ActiveChats() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chats)
}
