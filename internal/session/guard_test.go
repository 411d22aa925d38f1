package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Toskysun/sdu-seat/internal/domain/booking"
)

type fakeAuth struct {
	state       booking.SessionState
	loginErr    error
	logins      int
	validations int
	valid       bool
	validateErr error
}

func (f *fakeAuth) Login(context.Context) (booking.SessionState, error) {
	f.logins++
	if f.loginErr != nil {
		return booking.SessionState{}, f.loginErr
	}
	return f.state, nil
}

func (f *fakeAuth) Validate(context.Context, booking.SessionState) (bool, error) {
	f.validations++
	return f.valid, f.validateErr
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestEnsureValidLogsInOnce(t *testing.T) {
	now := time.Date(2026, 9, 1, 6, 0, 0, 0, time.Local)
	auth := &fakeAuth{state: booking.SessionState{
		AccessToken: "tok",
		UserID:      "202400001",
		ExpiresAt:   now.Add(2 * time.Hour),
	}}
	g := NewGuard(auth, zap.NewNop(), WithClock(fixedClock(now)))

	s1, err := g.EnsureValid(context.Background())
	require.NoError(t, err)
	s2, err := g.EnsureValid(context.Background())
	require.NoError(t, err)

	assert.Equal(t, s1, s2)
	assert.Equal(t, 1, auth.logins, "valid session must be reused")
}

func TestEnsureValidRelogsInsideExpiryMargin(t *testing.T) {
	now := time.Date(2026, 9, 1, 6, 0, 0, 0, time.Local)
	clock := now
	auth := &fakeAuth{state: booking.SessionState{
		AccessToken: "tok",
		ExpiresAt:   now.Add(10 * time.Minute),
	}}
	g := NewGuard(auth, zap.NewNop(),
		WithClock(func() time.Time { return clock }),
		WithExpiryMargin(2*time.Minute))

	_, err := g.EnsureValid(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, auth.logins)

	// 90 seconds before expiry: inside the 2 minute margin
	clock = now.Add(10*time.Minute - 90*time.Second)
	auth.state.ExpiresAt = clock.Add(2 * time.Hour)
	_, err = g.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, auth.logins)
}

func TestInvalidateForcesLogin(t *testing.T) {
	now := time.Date(2026, 9, 1, 6, 0, 0, 0, time.Local)
	auth := &fakeAuth{state: booking.SessionState{
		AccessToken: "tok",
		ExpiresAt:   now.Add(2 * time.Hour),
	}}
	g := NewGuard(auth, zap.NewNop(), WithClock(fixedClock(now)))

	_, err := g.EnsureValid(context.Background())
	require.NoError(t, err)
	g.Invalidate()
	_, err = g.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, auth.logins, "invalidation must override a fresh expiry")

	// flag is one-shot
	_, err = g.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, auth.logins)
}

func TestEnsureValidLoginFailure(t *testing.T) {
	auth := &fakeAuth{loginErr: errors.New("wechat cookie rejected")}
	g := NewGuard(auth, zap.NewNop())

	_, err := g.EnsureValid(context.Background())
	require.Error(t, err)
	assert.True(t, g.current().ExpiredAt(time.Now(), 0), "failed login leaves no usable state")
}

func TestEnsureValidReusesCachedSession(t *testing.T) {
	now := time.Date(2026, 9, 1, 6, 0, 0, 0, time.Local)
	dir := t.TempDir()
	cache, err := NewCache(filepath.Join(dir, "session.cache"), "202400001", "dev1")
	require.NoError(t, err)
	cached := booking.SessionState{
		AccessToken: "cached-tok",
		UserID:      "202400001",
		Name:        "测试",
		ExpiresAt:   now.Add(2 * time.Hour),
	}
	require.NoError(t, cache.Store(cached))

	auth := &fakeAuth{state: booking.SessionState{AccessToken: "fresh-tok"}}
	g := NewGuard(auth, zap.NewNop(), WithClock(fixedClock(now)), WithCache(cache))

	s, err := g.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached-tok", s.AccessToken)
	assert.Equal(t, 0, auth.logins, "cache hit must not log in")
}

func TestEnsureValidIgnoresExpiredCachedSession(t *testing.T) {
	now := time.Date(2026, 9, 1, 6, 0, 0, 0, time.Local)
	dir := t.TempDir()
	cache, err := NewCache(filepath.Join(dir, "session.cache"), "202400001", "dev1")
	require.NoError(t, err)
	require.NoError(t, cache.Store(booking.SessionState{
		AccessToken: "stale-tok",
		ExpiresAt:   now.Add(-time.Hour),
	}))

	auth := &fakeAuth{state: booking.SessionState{
		AccessToken: "fresh-tok",
		ExpiresAt:   now.Add(2 * time.Hour),
	}}
	g := NewGuard(auth, zap.NewNop(), WithClock(fixedClock(now)), WithCache(cache))

	s, err := g.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-tok", s.AccessToken)
	assert.Equal(t, 1, auth.logins)
}

func TestProbe(t *testing.T) {
	now := time.Date(2026, 9, 1, 6, 0, 0, 0, time.Local)

	t.Run("no session", func(t *testing.T) {
		g := NewGuard(&fakeAuth{}, zap.NewNop())
		assert.False(t, g.Probe(context.Background()))
	})

	t.Run("provider accepts", func(t *testing.T) {
		auth := &fakeAuth{valid: true, state: booking.SessionState{AccessToken: "tok", ExpiresAt: now.Add(time.Hour)}}
		g := NewGuard(auth, zap.NewNop(), WithClock(fixedClock(now)))
		_, err := g.EnsureValid(context.Background())
		require.NoError(t, err)
		assert.True(t, g.Probe(context.Background()))
	})

	t.Run("provider rejects flags relogin", func(t *testing.T) {
		auth := &fakeAuth{valid: false, state: booking.SessionState{AccessToken: "tok", ExpiresAt: now.Add(time.Hour)}}
		g := NewGuard(auth, zap.NewNop(), WithClock(fixedClock(now)))
		_, err := g.EnsureValid(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, auth.logins)

		assert.False(t, g.Probe(context.Background()))
		_, err = g.EnsureValid(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, auth.logins, "rejected probe must force the next login")
	})

	t.Run("network error is not a dead session", func(t *testing.T) {
		auth := &fakeAuth{validateErr: errors.New("timeout"), state: booking.SessionState{AccessToken: "tok", ExpiresAt: now.Add(time.Hour)}}
		g := NewGuard(auth, zap.NewNop(), WithClock(fixedClock(now)))
		_, err := g.EnsureValid(context.Background())
		require.NoError(t, err)
		assert.True(t, g.Probe(context.Background()))
	})
}
