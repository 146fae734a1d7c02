// Package session owns the current-user identity. Every component that needs
// to know who is acting receives a provider (or a session resolved from one)
// explicitly; there is no ambient auth state.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/unifound/unifound/internal/auth"
	"github.com/unifound/unifound/internal/model"
)

// Provider holds the current session and notifies listeners on sign-in and
// sign-out. The session itself is read-only to consumers.
type Provider struct {
	secret string

	mu      sync.Mutex
	current *model.Session
	nextID  int
	subs    map[int]func(*model.Session)
	// revoked maps a token's JTI to its expiry; entries are purged once the
	// token would have expired anyway.
	revoked map[string]time.Time
}

// NewProvider creates a provider that verifies tokens with the given secret.
func NewProvider(secret string) *Provider {
	return &Provider{
		secret:  secret,
		subs:    make(map[int]func(*model.Session)),
		revoked: make(map[string]time.Time),
	}
}

// Current returns the active session, or nil when signed out.
func (p *Provider) Current() *model.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Resolve verifies a bearer token and returns the session it carries without
// touching provider state. The API middleware uses this per request.
func (p *Provider) Resolve(token string) (*model.Session, error) {
	claims, err := auth.ValidateToken(p.secret, token)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	_, gone := p.revoked[claims.ID]
	p.mu.Unlock()
	if gone {
		return nil, fmt.Errorf("token %s is revoked", claims.ID)
	}
	return claims.Session(), nil
}

// Revoke invalidates a still-valid token for the rest of its lifetime.
func (p *Provider) Revoke(token string) error {
	claims, err := auth.ValidateToken(p.secret, token)
	if err != nil {
		return err
	}

	expiry := time.Now().Add(auth.TokenExpiry)
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}

	p.mu.Lock()
	now := time.Now()
	for jti, exp := range p.revoked {
		if exp.Before(now) {
			delete(p.revoked, jti)
		}
	}
	p.revoked[claims.ID] = expiry
	p.mu.Unlock()
	return nil
}

// Issue signs a fresh token for an account that already passed a credential
// check.
func (p *Provider) Issue(account *model.Account) (string, error) {
	return auth.GenerateToken(p.secret, account.ID, account.Email, account.IsAdmin)
}

// SignIn verifies the token and installs its session as current.
func (p *Provider) SignIn(token string) (*model.Session, error) {
	sess, err := p.Resolve(token)
	if err != nil {
		return nil, err
	}
	p.set(sess)
	return sess, nil
}

// SignOut clears the current session.
func (p *Provider) SignOut() {
	p.set(nil)
}

// OnChange registers a listener invoked with the new session (nil on
// sign-out). The returned function unsubscribes.
func (p *Provider) OnChange(cb func(*model.Session)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = cb
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

func (p *Provider) set(sess *model.Session) {
	p.mu.Lock()
	p.current = sess
	listeners := make([]func(*model.Session), 0, len(p.subs))
	for _, cb := range p.subs {
		listeners = append(listeners, cb)
	}
	p.mu.Unlock()

	for _, cb := range listeners {
		cb(sess)
	}
}
