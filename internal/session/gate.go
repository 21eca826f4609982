// Package session mirrors the signed-in identity to every interested
// component. There is no getter for the current user: subscribers receive
// the current state first and every change after it.
package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"pinworld/internal/model"
)

// Gate is a process-scoped handle; construct one and share it.
type Gate struct {
	auth   Authenticator
	tokens *TokenService
	log    *zap.Logger

	mu      sync.Mutex
	current *model.Identity
	subs    map[uint64]chan *model.Identity
	next    uint64
}

// Option configures a Gate.
type Option func(*Gate)

// WithTokens makes Login attach a signed session token to the identity and
// enables Restore.
func WithTokens(ts *TokenService) Option {
	return func(g *Gate) { g.tokens = ts }
}

func NewGate(auth Authenticator, log *zap.Logger, opts ...Option) *Gate {
	g := &Gate{
		auth: auth,
		log:  log.Named("session"),
		subs: make(map[uint64]chan *model.Identity),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Login authenticates and, on success, pushes the identity to all
// subscribers. A failure leaves the current state untouched.
func (g *Gate) Login(ctx context.Context, email, password string) error {
	id, err := g.auth.Authenticate(ctx, email, password)
	if err != nil {
		g.log.Info("login_failed", zap.Error(err))
		return err
	}
	if g.tokens != nil {
		token, err := g.tokens.Issue(id)
		if err != nil {
			g.log.Error("login_token_failed", zap.Error(err))
			return err
		}
		id = &model.Identity{UserID: id.UserID, Email: id.Email, Token: token}
	}
	g.log.Info("login_success", zap.String("user_id", id.UserID))
	g.set(id)
	return nil
}

// Restore resumes a session from a token issued by an earlier Login.
func (g *Gate) Restore(token string) error {
	if g.tokens == nil {
		return fmt.Errorf("%w: gate has no token service", ErrInvalidToken)
	}
	id, err := g.tokens.Parse(token)
	if err != nil {
		g.log.Info("session_restore_failed", zap.Error(err))
		return err
	}
	g.log.Info("session_restored", zap.String("user_id", id.UserID))
	g.set(id)
	return nil
}

// Logout pushes "no session".
func (g *Gate) Logout() {
	g.log.Info("logout")
	g.set(nil)
}

// Subscribe returns a channel that first yields the current identity and then
// each change; a slow reader only sees the newest state. The returned func
// unsubscribes and closes the channel; extra calls are no-ops.
func (g *Gate) Subscribe() (<-chan *model.Identity, func()) {
	ch := make(chan *model.Identity, 1)

	g.mu.Lock()
	id := g.next
	g.next++
	g.subs[id] = ch
	ch <- g.current
	g.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.subs, id)
			close(ch)
			g.mu.Unlock()
		})
	}
}

func (g *Gate) set(id *model.Identity) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.current = id
	for _, ch := range g.subs {
		// Senders hold mu, so the slot is free after the drain.
		select {
		case <-ch:
		default:
		}
		ch <- id
	}
}
