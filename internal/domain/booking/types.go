package booking

import (
	"fmt"
	"time"
)

// SeatStatus is the provider's seat state enumeration.
type SeatStatus int

const (
	SeatUnavailable     SeatStatus = 0
	SeatBookable        SeatStatus = 1
	SeatReserved        SeatStatus = 2
	SeatTemporarilyAway SeatStatus = 3
	SeatInUse           SeatStatus = 4
)

func (s SeatStatus) String() string {
	switch s {
	case SeatUnavailable:
		return "unavailable"
	case SeatBookable:
		return "bookable"
	case SeatReserved:
		return "reserved"
	case SeatTemporarilyAway:
		return "temporarily away"
	case SeatInUse:
		return "in use"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Bookable reports whether a booking attempt against this seat can succeed.
func (s SeatStatus) Bookable() bool { return s == SeatBookable }

// Area is a named zone of the library: either a top-level building or a
// room within one. Rooms carry the day's bookable periods.
type Area struct {
	ID         int
	Name       string
	ParentID   int
	FreeSeats  int
	TotalSeats int
	Periods    []Period
}

// Period is one bookable time segment of an area, immutable once fetched
// for a given date. ID is the provider's segment id used on booking calls.
type Period struct {
	ID        int
	StartTime string // "08:00"
	EndTime   string // "12:00"
	Date      string // "2006-01-02", may be empty on older API variants
}

// Label renders the period the way operators know it, e.g. "08:00-12:00".
func (p Period) Label() string { return p.StartTime + "-" + p.EndTime }

// Seat is a value snapshot of one seat in one period. Snapshots are
// re-fetched, never mutated.
type Seat struct {
	ID     int
	Name   string
	Status SeatStatus
	Area   *Area
}

// FullName is the operator-facing "room-seat" identifier.
func (s Seat) FullName() string {
	if s.Area == nil {
		return s.Name
	}
	return s.Area.Name + "-" + s.Name
}

// AreaSnapshot holds, for one period, the configured preferred seats (in
// configured order) and every seat of the configured area. A successful
// fetch never produces an empty All list.
type AreaSnapshot struct {
	Period    Period
	Preferred []Seat
	All       []Seat
}

// Inventory maps period id to its snapshot for one fetch of one date.
type Inventory map[int]AreaSnapshot

// SessionState is the credential produced by a login. It is owned by the
// session guard and replaced wholesale on every re-login.
type SessionState struct {
	AccessToken string
	UserID      string
	Name        string
	ExpiresAt   time.Time
}

// ExpiredAt reports whether the session is unusable at the given instant:
// no token, or within margin of the provider-issued expiry. A zero expiry
// with a token is treated as not expiring (the provider re-issues expiry
// lazily on some API versions).
func (s SessionState) ExpiredAt(now time.Time, margin time.Duration) bool {
	if s.AccessToken == "" {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt.Add(-margin))
}
