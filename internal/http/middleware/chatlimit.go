package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type chatVisitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ChatLimiter bounds how fast a single chat may submit events, independent of
// the caller's IP. Entries for quiet chats are dropped on access.
type ChatLimiter struct {
	mu    sync.Mutex
	chats map[int64]*chatVisitor
	rps   rate.Limit
	burst int
}

func NewChatLimiter(rps float64, burst int) *ChatLimiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 5
	}
	return &ChatLimiter{
		chats: make(map[int64]*chatVisitor),
		rps:   rate.Limit(rps),
		burst: burst,
	}
}

func (l *ChatLimiter) Allow(chatID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for id, v := range l.chats {
		if now.Sub(v.lastSeen) > 10*time.Minute {
			delete(l.chats, id)
		}
	}

	v, ok := l.chats[chatID]
	if !ok {
		v = &chatVisitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.chats[chatID] = v
	}
	v.lastSeen = now
	return v.limiter.Allow()
}
