package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// KeepAlive periodically probes the provider through the guard to keep
// the session warm between the pre-refresh and the trigger. Probes run
// under the guard's lock, so they are serialized against login and can
// never overlap a booking pass refreshing the session.
type KeepAlive struct {
	guard    *Guard
	interval time.Duration
	log      *zap.Logger
}

func NewKeepAlive(g *Guard, interval time.Duration, log *zap.Logger) *KeepAlive {
	return &KeepAlive{guard: g, interval: interval, log: log}
}

// Run probes until the context is cancelled or the provider rejects the
// session. On rejection the guard is already flagged, so the next booking
// pass logs in fresh; the prober's job is done and it stops itself.
func (k *KeepAlive) Run(ctx context.Context) {
	t := time.NewTicker(k.interval)
	defer t.Stop()

	k.log.Info("keep-alive started", zap.Duration("interval", k.interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !k.guard.Probe(ctx) {
				k.log.Info("keep-alive stopped")
				return
			}
		}
	}
}
