package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/domain/event"
	"chat-relay/runtime"
)

// PresenceSweepWorker marks users offline once they idle past the threshold,
// independent of the disconnect grace mechanism. This is what catches
// backgrounded tabs that keep their socket but stop sending heartbeats.
type PresenceSweepWorker struct {
	log       *slog.Logger
	presence  *runtime.PresenceTracker
	fanout    *runtime.Fanout
	interval  time.Duration
	threshold time.Duration
}

func NewPresenceSweepWorker(log *slog.Logger, presence *runtime.PresenceTracker,
	fanout *runtime.Fanout, interval, threshold time.Duration) *PresenceSweepWorker {
	return &PresenceSweepWorker{
		log:       log,
		presence:  presence,
		fanout:    fanout,
		interval:  interval,
		threshold: threshold,
	}
}

func (w *PresenceSweepWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, username := range w.presence.IdleUsers(w.threshold) {
				if w.presence.SetOffline(username) {
					w.log.Info("Presence sweep marked user offline", "username", username)
					w.fanout.ToAll(event.PresenceOffline, event.PresencePayload{Username: username})
				}
			}
		}
	}
}
