package infrastructure

import (
	"sync"
	"time"
)

// ClickDebounce is the minimum gap between two button presses in a chat.
const ClickDebounce = 2 * time.Second

// sessionKey identifies one user in one chat. Group members each get their
// own question slot.
type sessionKey struct {
	chatID int64
	userID string
}

// ChatSession tracks button presses for one chat.
type ChatSession struct {
	lastClick time.Time
}

// SessionManager guards users against overlapping questions and chats
// against repeated button presses.
type SessionManager struct {
	mu       sync.Mutex
	inFlight map[sessionKey]struct{}
	sessions map[int64]*ChatSession
	now      func() time.Time
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		inFlight: make(map[sessionKey]struct{}),
		sessions: make(map[int64]*ChatSession),
		now:      time.Now,
	}
}

// TryStart marks userID as busy in chatID. It returns false if that user's
// previous question there is still being answered.
func (sm *SessionManager) TryStart(chatID int64, userID string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	key := sessionKey{chatID: chatID, userID: userID}
	if _, busy := sm.inFlight[key]; busy {
		return false
	}
	sm.inFlight[key] = struct{}{}
	return true
}

func (sm *SessionManager) Finish(chatID int64, userID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.inFlight, sessionKey{chatID: chatID, userID: userID})
}

// AllowClick debounces inline button presses.
func (sm *SessionManager) AllowClick(chatID int64) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s, ok := sm.sessions[chatID]
	if !ok {
		s = &ChatSession{}
		sm.sessions[chatID] = s
	}
	now := sm.now()
	if !s.lastClick.IsZero() && now.Sub(s.lastClick) < ClickDebounce {
		return false
	}
	s.lastClick = now
	return true
}
