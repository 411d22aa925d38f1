package booking

import "context"

// AuthClient produces and validates sessions against the provider's
// authentication surface. Implementations own their cookie state and reset
// it on Login.
type AuthClient interface {
	Login(ctx context.Context) (SessionState, error)
	// Validate probes the provider with the given session. false with a nil
	// error means the provider rejected the session (re-login required).
	Validate(ctx context.Context, s SessionState) (bool, error)
}

// Catalog exposes the provider's area/seat listings for a date.
type Catalog interface {
	Libraries(ctx context.Context, date string) (map[string]Area, error)
	SubAreas(ctx context.Context, parent Area, date string) (map[string]Area, error)
	Seats(ctx context.Context, area Area, period Period, date string) (map[string]Seat, error)
}

// Provider performs booking operations. Book returns the provider's raw
// status code and message; classification happens in the engine.
type Provider interface {
	Book(ctx context.Context, seat Seat, period Period, date string, session SessionState) (status int, message string, err error)
	Cancel(ctx context.Context, bookingID string, session SessionState) error
}

// Notifier delivers out-of-band notifications. Fire and forget: failures
// are logged by the implementation and never reach the booking flow.
type Notifier interface {
	Notify(subject, body string)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(string, string) {}
