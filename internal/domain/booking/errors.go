package booking

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited means the provider flagged our request frequency.
	// Always fatal to the current run; nothing may retry past it.
	ErrRateLimited = errors.New("provider rate limit hit")

	// ErrOnlyPreferredUnavailable means no preferred seat was bookable and
	// the only-preferred policy forbids area-wide fallback. Retrying cannot
	// help, so the orchestrator aborts the run on it.
	ErrOnlyPreferredUnavailable = errors.New("no preferred seat bookable and fallback disabled")
)

// AuthError wraps a login or session failure.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return "auth: " + e.Op
	}
	return fmt.Sprintf("auth: %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// CatalogError marks an inventory fetch failure, including the provider
// returning zero seats for an active period.
type CatalogError struct {
	Area   string
	Period string
	Err    error
}

func (e *CatalogError) Error() string {
	msg := "catalog"
	if e.Area != "" {
		msg += " area " + e.Area
	}
	if e.Period != "" {
		msg += " period " + e.Period
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *CatalogError) Unwrap() error { return e.Err }

// BookingError wraps a per-attempt domain failure with the seat and period
// it concerns. Rate-limit and only-preferred conditions are carried as
// wrapped sentinels so callers classify with errors.Is.
type BookingError struct {
	Seat   string
	Period string
	Err    error
}

func (e *BookingError) Error() string {
	return fmt.Sprintf("booking %s %s: %v", e.Period, e.Seat, e.Err)
}

func (e *BookingError) Unwrap() error { return e.Err }
