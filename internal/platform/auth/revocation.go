package auth

import (
	"sync"
	"time"
)

// RevocationList holds the ids (jti) of tokens ended by logout until they
// would have expired on their own. Safe for concurrent use.
type RevocationList struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
	done    chan struct{}
}

// NewRevocationList creates a list and starts a goroutine that drops expired
// entries every interval. Call Close to stop it.
func NewRevocationList(interval time.Duration) *RevocationList {
	l := &RevocationList{
		entries: make(map[string]time.Time),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go l.cleanupLoop(interval)
	return l
}

// Revoke records jti as revoked until expiresAt.
func (l *RevocationList) Revoke(jti string, expiresAt time.Time) {
	if jti == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[jti] = expiresAt
}

// IsRevoked checks if a token id has been revoked.
func (l *RevocationList) IsRevoked(jti string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[jti]
	return ok
}

// Count returns the number of currently revoked tokens.
func (l *RevocationList) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Close stops the cleanup goroutine. Only the first call has effect.
func (l *RevocationList) Close() {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
}

func (l *RevocationList) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

// cleanup removes entries whose tokens have expired.
func (l *RevocationList) cleanup() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	for jti, exp := range l.entries {
		if now.After(exp) {
			delete(l.entries, jti)
		}
	}
}
