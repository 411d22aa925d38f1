package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Toskysun/sdu-seat/internal/domain/booking"
)

// SessionSource is the slice of the session guard the orchestrator needs.
type SessionSource interface {
	EnsureValid(ctx context.Context) (booking.SessionState, error)
}

// InventorySource produces fresh per-period snapshots.
type InventorySource interface {
	Fetch(ctx context.Context, date string) (booking.Inventory, error)
}

// RunStatus is the terminal state of one daily run.
type RunStatus int

const (
	RunSucceeded RunStatus = iota // every active period booked
	RunAborted                    // rate limit or hopeless only-preferred state
	RunExhausted                  // retry budget spent
)

func (s RunStatus) String() string {
	switch s {
	case RunSucceeded:
		return "succeeded"
	case RunAborted:
		return "aborted"
	default:
		return "exhausted"
	}
}

// RunReport summarizes one daily run.
type RunReport struct {
	Status   RunStatus
	Date     string
	Passes   int
	Outcomes map[int]bool // period id -> booked, one entry per active period
}

// Booked counts the periods that ended up reserved.
func (r RunReport) Booked() int {
	n := 0
	for _, ok := range r.Outcomes {
		if ok {
			n++
		}
	}
	return n
}

// Orchestrator drives the bounded retry loop around booking passes: at
// most maxAttempts+1 passes with a fixed sleep between them, aborting
// early on rate limiting, on a hopeless only-preferred state, or once all
// periods are booked.
type Orchestrator struct {
	sessions SessionSource
	fetcher  InventorySource
	engine   *Engine
	notifier booking.Notifier
	log      *zap.Logger

	maxAttempts   int
	interval      time.Duration
	onlyPreferred bool

	sleep func(ctx context.Context, d time.Duration) error

	warm booking.Inventory // optional pre-refresh handoff
}

func NewOrchestrator(sessions SessionSource, fetcher InventorySource, eng *Engine, notifier booking.Notifier, maxAttempts int, interval time.Duration, onlyPreferred bool, log *zap.Logger) *Orchestrator {
	if notifier == nil {
		notifier = booking.NopNotifier{}
	}
	return &Orchestrator{
		sessions:      sessions,
		fetcher:       fetcher,
		engine:        eng,
		notifier:      notifier,
		log:           log,
		maxAttempts:   maxAttempts,
		interval:      interval,
		onlyPreferred: onlyPreferred,
		sleep:         sleepCtx,
	}
}

// WarmInventory hands over an inventory fetched by the pre-refresh so the
// first pass starts without a catalog round trip.
func (o *Orchestrator) WarmInventory(inv booking.Inventory) {
	o.warm = inv
}

// Run executes one full daily run for the given date and reports how it
// ended. The per-period outcome map is scoped to this run alone.
func (o *Orchestrator) Run(ctx context.Context, date string) RunReport {
	report := RunReport{Date: date, Outcomes: make(map[int]bool)}
	inventory := o.warm
	o.warm = nil

	for attempt := 0; attempt <= o.maxAttempts; attempt++ {
		report.Passes++
		passErr := o.pass(ctx, date, &inventory, report.Outcomes)

		if len(report.Outcomes) > 0 && allBooked(report.Outcomes) {
			report.Status = RunSucceeded
			o.log.Info("all periods booked", zap.String("date", date), zap.Int("passes", report.Passes))
			return report
		}

		switch {
		case passErr == nil:
			// soft failures only; fall through to the retry sleep
		case errors.Is(passErr, booking.ErrRateLimited):
			o.log.Error("rate limited, aborting run", zap.Error(passErr))
			report.Status = RunAborted
			o.notifyFailure(report, "访问频繁，本次运行已中止")
			return report
		case o.onlyPreferred && errors.Is(passErr, booking.ErrOnlyPreferredUnavailable):
			o.log.Error("all preferred seats unbookable with fallback disabled, aborting run", zap.Error(passErr))
			report.Status = RunAborted
			o.notifyFailure(report, "所有预设座位均不可预约，且设置了只预约预设座位")
			return report
		case ctx.Err() != nil:
			report.Status = RunExhausted
			return report
		default:
			o.log.Warn("booking pass failed", zap.Int("attempt", attempt), zap.Error(passErr))
		}

		if attempt < o.maxAttempts {
			o.log.Info("retrying booking pass",
				zap.Int("attempt", attempt+1),
				zap.Int("max", o.maxAttempts),
				zap.Duration("in", o.interval))
			if err := o.sleep(ctx, o.interval); err != nil {
				report.Status = RunExhausted
				return report
			}
		}
	}

	report.Status = RunExhausted
	if report.Booked() == 0 {
		o.notifyFailure(report, fmt.Sprintf("尝试了%d次预约，但均失败。", o.maxAttempts+1))
	}
	return report
}

// pass ensures a valid session, refreshes the inventory when empty, and
// attempts every period that has not succeeded yet, strictly in order.
func (o *Orchestrator) pass(ctx context.Context, date string, inventory *booking.Inventory, outcomes map[int]bool) error {
	session, err := o.sessions.EnsureValid(ctx)
	if err != nil {
		return err
	}

	if len(*inventory) == 0 {
		inv, err := o.fetcher.Fetch(ctx, date)
		if err != nil {
			return err
		}
		*inventory = inv
	}
	for id := range *inventory {
		if _, ok := outcomes[id]; !ok {
			outcomes[id] = false
		}
	}

	anyFailed := false
	for _, id := range sortedPeriodIDs(*inventory) {
		if outcomes[id] {
			continue
		}
		res, err := o.engine.AttemptPeriod(ctx, (*inventory)[id], date, session)
		if err != nil {
			// run-aborting condition: stop immediately, remaining periods
			// stay unattempted this pass
			*inventory = nil
			return err
		}
		outcomes[id] = res.Booked
		if !res.Booked {
			anyFailed = true
		}
	}

	if anyFailed {
		// seat statuses are stale after a failed pass; force a refetch
		*inventory = nil
	}
	return nil
}

// notifyFailure fires the end-of-run notification, sent only when the run
// produced no booking at all; individual successes were already notified
// by the engine.
func (o *Orchestrator) notifyFailure(report RunReport, reason string) {
	if report.Booked() > 0 {
		return
	}
	o.notifier.Notify(
		"图书馆座位预约失败通知",
		fmt.Sprintf("预约失败！\n日期：%s\n预约成功时段：%d/%d\n\n失败原因：\n%s",
			report.Date, report.Booked(), len(report.Outcomes), reason),
	)
}

func allBooked(outcomes map[int]bool) bool {
	for _, ok := range outcomes {
		if !ok {
			return false
		}
	}
	return true
}

func sortedPeriodIDs(inv booking.Inventory) []int {
	ids := make([]int, 0, len(inv))
	for id := range inv {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
