// Package scheduler arms the daily booking trigger and the optional
// pre-refresh at a wall-clock instant with millisecond precision.
package scheduler

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

var clockPattern = regexp.MustCompile(`^(\d{2}):(\d{2})(?::(\d{2})(?:\.(\d{1,3}))?)?$`)

// Clock is a time of day parsed from "HH:mm", "HH:mm:ss" or
// "HH:mm:ss.SSS".
type Clock struct {
	Hour, Minute, Second, Millisecond int
}

func ParseClock(s string) (Clock, error) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return Clock{}, fmt.Errorf("invalid trigger time %q (want HH:mm[:ss[.SSS]])", s)
	}
	c := Clock{}
	c.Hour, _ = strconv.Atoi(m[1])
	c.Minute, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		c.Second, _ = strconv.Atoi(m[3])
	}
	if m[4] != "" {
		// pad "5" -> 500ms
		frac := m[4]
		for len(frac) < 3 {
			frac += "0"
		}
		c.Millisecond, _ = strconv.Atoi(frac)
	}
	if c.Hour > 23 || c.Minute > 59 || c.Second > 59 {
		return Clock{}, fmt.Errorf("trigger time %q out of range", s)
	}
	return c, nil
}

// Next returns the first instant at this time of day after now.
func (c Clock) Next(now time.Time) time.Time {
	at := time.Date(now.Year(), now.Month(), now.Day(),
		c.Hour, c.Minute, c.Second, c.Millisecond*int(time.Millisecond), now.Location())
	if !at.After(now) {
		at = at.Add(24 * time.Hour)
	}
	return at
}

// Scheduler fires Trigger daily at the configured time, optionally
// preceded by PreRefresh. After the first firing it re-arms on a fixed
// 24-hour period, so the trigger instant does not drift across days.
type Scheduler struct {
	Trigger    func(ctx context.Context)
	PreRefresh func(ctx context.Context) // nil disables the pre-refresh

	clock Clock
	lead  time.Duration // how long before the trigger PreRefresh fires
	log   *zap.Logger
	now   func() time.Time

	mu sync.Mutex // serializes pre-refresh and trigger execution
}

func New(clock Clock, preRefreshLead time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{
		clock: clock,
		lead:  preRefreshLead,
		log:   log,
		now:   time.Now,
	}
}

// SetClockSource injects a time source (tests).
func (s *Scheduler) SetClockSource(now func() time.Time) { s.now = now }

// Run blocks until the context is cancelled, firing the configured tasks.
// The pre-refresh is armed once for the first cycle; when its instant has
// already passed at startup, it is skipped rather than fired late.
func (s *Scheduler) Run(ctx context.Context) error {
	now := s.now()
	next := s.clock.Next(now)
	s.log.Info("trigger armed", zap.Time("at", next))

	var preC <-chan time.Time
	if s.PreRefresh != nil && s.lead > 0 {
		pre := next.Add(-s.lead)
		if pre.After(now) {
			preTimer := time.NewTimer(pre.Sub(now))
			defer preTimer.Stop()
			preC = preTimer.C
			s.log.Info("pre-refresh armed", zap.Time("at", pre))
		} else {
			s.log.Info("pre-refresh instant already passed, skipping", zap.Time("at", pre))
		}
	}

	mainTimer := time.NewTimer(next.Sub(now))
	defer mainTimer.Stop()
	var daily *time.Ticker
	defer func() {
		if daily != nil {
			daily.Stop()
		}
	}()

	mainC := mainTimer.C
	var tickC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			// an in-flight task holds the mutex; wait for it to drain
			s.mu.Lock()
			s.mu.Unlock() //nolint:staticcheck
			return ctx.Err()

		case <-preC:
			preC = nil
			s.runTask(ctx, "pre-refresh", s.PreRefresh)

		case <-mainC:
			mainC = nil
			s.runTask(ctx, "trigger", s.Trigger)
			daily = time.NewTicker(24 * time.Hour)
			tickC = daily.C

		case <-tickC:
			s.runTask(ctx, "trigger", s.Trigger)
		}
	}
}

// runTask executes one scheduled task under the scheduler mutex, which
// guarantees the pre-refresh and the trigger never overlap even when a
// slow pre-refresh runs into the trigger instant.
func (s *Scheduler) runTask(ctx context.Context, name string, task func(ctx context.Context)) {
	if task == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	s.log.Info("scheduled task firing", zap.String("task", name))
	start := s.now()
	task(ctx)
	s.log.Info("scheduled task done",
		zap.String("task", name),
		zap.Duration("took", s.now().Sub(start)))
}
