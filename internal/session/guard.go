// Package session owns the provider session lifecycle: the guard decides
// when a fresh login is required, the cache persists a still-valid session
// across restarts, and the keep-alive prober defers provider-side expiry.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Toskysun/sdu-seat/internal/domain/booking"
)

// DefaultExpiryMargin is how close to the provider expiry a session is
// still trusted. Attempts within the margin force a re-login first.
const DefaultExpiryMargin = 2 * time.Minute

// Guard is the single owner of SessionState. All reads go through
// EnsureValid; the state is replaced wholesale on re-login, never mutated.
// The mutex also serializes the keep-alive probe against login, so a probe
// can never race a booking pass refreshing the session.
type Guard struct {
	auth   booking.AuthClient
	cache  *Cache // optional
	log    *zap.Logger
	now    func() time.Time
	margin time.Duration

	mu      sync.Mutex
	state   booking.SessionState
	relogin atomic.Bool // set by anyone observing a reauth response
}

type GuardOption func(*Guard)

// WithClock injects a time source (tests).
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) { g.now = now }
}

// WithExpiryMargin overrides the safety margin before provider expiry.
func WithExpiryMargin(d time.Duration) GuardOption {
	return func(g *Guard) { g.margin = d }
}

// WithCache persists sessions across process restarts.
func WithCache(c *Cache) GuardOption {
	return func(g *Guard) { g.cache = c }
}

func NewGuard(auth booking.AuthClient, log *zap.Logger, opts ...GuardOption) *Guard {
	g := &Guard{
		auth:   auth,
		log:    log,
		now:    time.Now,
		margin: DefaultExpiryMargin,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Invalidate flags the session dead regardless of its cached expiry. The
// next EnsureValid performs a fresh login. Called by the engine when the
// provider answers a booking attempt with a reauth response.
func (g *Guard) Invalidate() {
	g.relogin.Store(true)
}

// current returns the session state without refreshing it (tests).
func (g *Guard) current() booking.SessionState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// EnsureValid returns a usable session, logging in only when the current
// one is expired, absent, or externally invalidated. Login failures
// surface as AuthError; the retry policy belongs to the orchestrator, not
// here.
func (g *Guard) EnsureValid(ctx context.Context) (booking.SessionState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	forced := g.relogin.Load()
	if !forced && !g.state.ExpiredAt(g.now(), g.margin) {
		return g.state, nil
	}

	if !forced && g.state.AccessToken == "" && g.cache != nil {
		if cached, ok := g.cache.Load(); ok && !cached.ExpiredAt(g.now(), g.margin) {
			g.log.Info("reusing cached session",
				zap.String("user", cached.Name),
				zap.Time("expires", cached.ExpiresAt))
			g.state = cached
			return g.state, nil
		}
	}

	if forced {
		g.log.Info("session invalidated, forcing fresh login")
	} else {
		g.log.Info("session expired or absent, logging in")
	}

	state, err := g.auth.Login(ctx)
	if err != nil {
		return booking.SessionState{}, err
	}
	g.state = state
	g.relogin.Store(false)
	if g.cache != nil {
		if err := g.cache.Store(state); err != nil {
			g.log.Warn("session cache write failed", zap.Error(err))
		}
	}
	return g.state, nil
}

// Probe validates the current session against the provider under the
// guard's own lock. Used by the keep-alive ticker; returns false once the
// provider rejects the session, after flagging the guard.
func (g *Guard) Probe(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state.AccessToken == "" {
		return false
	}
	ok, err := g.auth.Validate(ctx, g.state)
	if err != nil {
		g.log.Debug("keep-alive probe failed", zap.Error(err))
		return true // network hiccup, not evidence of a dead session
	}
	if !ok {
		g.log.Warn("keep-alive probe: provider rejected session")
		g.relogin.Store(true)
		return false
	}
	return true
}
