package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// OAuthProvider authenticates against the backend's token endpoint with the
// password grant and tracks the resulting session.
type OAuthProvider struct {
	config *oauth2.Config

	mu      sync.RWMutex
	current *Session

	events broadcaster
}

// NewOAuthProvider creates a provider for the given backend base URL.
func NewOAuthProvider(baseURL, anonKey string) *OAuthProvider {
	return &OAuthProvider{
		config: &oauth2.Config{
			ClientID: anonKey,
			Endpoint: oauth2.Endpoint{
				TokenURL: baseURL + "/auth/v1/token",
			},
		},
	}
}

// SignIn exchanges credentials for a session and publishes it.
func (p *OAuthProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	token, err := p.config.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("sign-in failed: %w", err)
	}

	sess := &Session{
		UserID:      userIDFromToken(token),
		Email:       email,
		AccessToken: token.AccessToken,
		Expiry:      token.Expiry,
	}

	p.mu.Lock()
	p.current = sess
	p.mu.Unlock()

	slog.Debug("Signed in", "user", sess.UserID)
	p.events.publish(sess)
	return sess, nil
}

// Current returns the active session, or nil when signed out.
func (p *OAuthProvider) Current() *Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// SignOut clears the session and notifies subscribers.
func (p *OAuthProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	wasSignedIn := p.current != nil
	p.current = nil
	p.mu.Unlock()

	if wasSignedIn {
		slog.Debug("Signed out")
		p.events.publish(nil)
	}
	return nil
}

// Changes streams session transitions.
func (p *OAuthProvider) Changes() <-chan *Session {
	return p.events.subscribe()
}

// userIDFromToken reads the user id the token endpoint attaches to the
// token response.
func userIDFromToken(token *oauth2.Token) uuid.UUID {
	raw, ok := token.Extra("user_id").(string)
	if !ok {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// Static is a fixed-session provider for single-user, local-only use.
type Static struct {
	sess   *Session
	mu     sync.RWMutex
	events broadcaster
}

// NewStatic creates a provider that always reports the given session.
func NewStatic(sess *Session) *Static {
	return &Static{sess: sess}
}

func (s *Static) Current() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess
}

func (s *Static) SignOut(ctx context.Context) error {
	s.mu.Lock()
	wasSignedIn := s.sess != nil
	s.sess = nil
	s.mu.Unlock()

	if wasSignedIn {
		s.events.publish(nil)
	}
	return nil
}

func (s *Static) Changes() <-chan *Session {
	return s.events.subscribe()
}
