// Package session tracks the signed-in user. The rest of the app only sees
// the Provider contract: the current session, sign-out, and a change stream.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is an authenticated user session.
type Session struct {
	UserID      uuid.UUID
	Email       string
	AccessToken string
	Expiry      time.Time
}

// Valid reports whether the session token is still usable.
func (s *Session) Valid() bool {
	if s == nil || s.AccessToken == "" {
		return false
	}
	return s.Expiry.IsZero() || time.Now().Before(s.Expiry)
}

// Provider exposes the current session and session changes.
type Provider interface {
	// Current returns the active session, or nil when signed out.
	Current() *Session

	// SignOut ends the active session. Subscribers observe a nil session.
	SignOut(ctx context.Context) error

	// Changes streams session transitions: a Session on sign-in, nil on
	// sign-out.
	Changes() <-chan *Session
}

// broadcaster fans session transitions out to subscribers. Slow subscribers
// drop intermediate transitions rather than block the provider.
type broadcaster struct {
	mu   sync.Mutex
	subs []chan *Session
}

func (b *broadcaster) subscribe() <-chan *Session {
	ch := make(chan *Session, 1)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

func (b *broadcaster) publish(sess *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- sess:
		default:
			// Replace the stale pending value with the latest one.
			select {
			case <-ch:
			default:
			}
			ch <- sess
		}
	}
}
