// Package engine holds the booking state machine: response
// classification, the per-period seat attempt, and the outer retry
// orchestration.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Toskysun/sdu-seat/internal/domain/booking"
)

// Invalidator is the slice of the session guard the engine needs.
type Invalidator interface {
	Invalidate()
}

// AttemptRecorder persists individual booking attempts for the history
// log. Recording failures never disturb the booking flow.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, periodLabel, seat string, status int, message, outcome string)
}

// PeriodResult is the outcome of one booking pass over one period.
type PeriodResult struct {
	PeriodID int
	Booked   bool
	Seat     booking.Seat // the attempted seat, zero when none was bookable
	Outcome  Outcome
	Reason   string
}

// Engine books one seat per period per pass. Attempts are deliberately
// sequential: parallel booking calls are what trips the provider's rate
// limiter, so only the inventory fetch runs concurrently, never this.
type Engine struct {
	provider      booking.Provider
	guard         Invalidator
	notifier      booking.Notifier
	recorder      AttemptRecorder // optional
	log           *zap.Logger
	onlyPreferred bool
}

func New(provider booking.Provider, guard Invalidator, notifier booking.Notifier, onlyPreferred bool, log *zap.Logger) *Engine {
	if notifier == nil {
		notifier = booking.NopNotifier{}
	}
	return &Engine{
		provider:      provider,
		guard:         guard,
		notifier:      notifier,
		log:           log,
		onlyPreferred: onlyPreferred,
	}
}

// SetRecorder attaches attempt persistence.
func (e *Engine) SetRecorder(r AttemptRecorder) { e.recorder = r }

// AttemptPeriod tries to reserve one seat for the snapshot's period:
// the first bookable preferred seat, else (unless only-preferred) the
// first bookable seat of the whole area. Exactly one seat is attempted
// per pass; soft failures are reported in the result with a nil error.
// The two run-aborting conditions surface as wrapped sentinel errors.
func (e *Engine) AttemptPeriod(ctx context.Context, snap booking.AreaSnapshot, date string, session booking.SessionState) (PeriodResult, error) {
	res := PeriodResult{PeriodID: snap.Period.ID}
	label := snap.Period.Label()

	seat, ok := booking.FirstBookable(snap.Preferred)
	if !ok {
		if e.onlyPreferred {
			res.Reason = "no preferred seat bookable"
			return res, &booking.BookingError{
				Seat:   "(preferred set)",
				Period: label,
				Err:    booking.ErrOnlyPreferredUnavailable,
			}
		}
		e.log.Info("no preferred seat bookable, falling back to area",
			zap.String("period", label))
		seat, ok = booking.FirstBookable(snap.All)
		if !ok {
			res.Reason = "no bookable seat in area"
			e.log.Warn("no bookable seat", zap.String("period", label))
			return res, nil
		}
	}
	res.Seat = seat

	e.log.Info("attempting seat",
		zap.String("period", label),
		zap.String("seat", seat.FullName()),
		zap.String("date", date))

	status, message, err := e.provider.Book(ctx, seat, snap.Period, date, session)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Reason = fmt.Sprintf("booking call failed: %v", err)
		e.log.Warn("booking call failed",
			zap.String("seat", seat.FullName()), zap.Error(err))
		return res, nil
	}

	outcome := Classify(status, message)
	res.Outcome = outcome
	res.Reason = message
	e.record(ctx, label, seat.FullName(), status, message, outcome)
	e.log.Info("booking response",
		zap.String("period", label),
		zap.String("seat", seat.FullName()),
		zap.Int("status", status),
		zap.String("message", message),
		zap.Stringer("outcome", outcome))

	switch outcome {
	case OutcomeSuccess:
		res.Booked = true
		e.notifier.Notify(
			"图书馆座位预约成功通知",
			fmt.Sprintf("预约成功！\n日期：%s\n时间段：%s\n座位：%s\n\n祝您学习愉快！", date, label, seat.FullName()),
		)
		return res, nil

	case OutcomeNeedReauth:
		// The session, not the seat, is the problem: flag the guard and
		// end this period's pass without trying further seats.
		e.guard.Invalidate()
		return res, nil

	case OutcomeRateLimited:
		return res, &booking.BookingError{
			Seat:   seat.FullName(),
			Period: label,
			Err:    fmt.Errorf("%w: %s", booking.ErrRateLimited, message),
		}

	default:
		// AlreadyBooked, NotYetBookable, UnknownFailure: one seat per
		// pass, move on and let the retry loop decide.
		return res, nil
	}
}

func (e *Engine) record(ctx context.Context, period, seat string, status int, message string, outcome Outcome) {
	if e.recorder == nil {
		return
	}
	e.recorder.RecordAttempt(ctx, period, seat, status, message, outcome.String())
}
