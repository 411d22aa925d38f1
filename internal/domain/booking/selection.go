package booking

import (
	"fmt"
	"strings"
)

// FirstBookable returns the first seat in the given order that can be
// booked right now. Order is significant: preferred seats are attempted in
// configured order, area seats in catalog order.
func FirstBookable(seats []Seat) (Seat, bool) {
	for _, s := range seats {
		if s.Status.Bookable() {
			return s, true
		}
	}
	return Seat{}, false
}

// Window is the configured daily booking window, e.g. 08:00-22:30.
// Endpoints are zero-padded HH:mm strings, which order lexically.
type Window struct {
	Start string
	End   string
}

// ParseWindow parses "HH:mm-HH:mm".
func ParseWindow(s string) (Window, error) {
	start, end, ok := strings.Cut(s, "-")
	if !ok || len(start) != 5 || len(end) != 5 {
		return Window{}, fmt.Errorf("invalid booking window %q (want HH:mm-HH:mm)", s)
	}
	if end <= start {
		return Window{}, fmt.Errorf("booking window %q ends before it starts", s)
	}
	return Window{Start: start, End: end}, nil
}

func (w Window) String() string { return w.Start + "-" + w.End }

// Overlaps reports whether the period's [start,end) interval intersects
// the window: max(windowStart, periodStart) < min(windowEnd, periodEnd).
func (w Window) Overlaps(p Period) bool {
	left := w.Start
	if p.StartTime > left {
		left = p.StartTime
	}
	right := w.End
	if p.EndTime < right {
		right = p.EndTime
	}
	return left < right
}
