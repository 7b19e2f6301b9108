package runtime

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
)

type AggregationKind string

const (
	KindJoin  AggregationKind = "joined"
	KindLeave AggregationKind = "left"
)

type bucketKey struct {
	scope domain.ScopeID
	kind  AggregationKind
}

type aggregationBucket struct {
	usernames []string
	timer     *time.Timer
}

// Aggregator debounces join/leave churn into single system notices. The first
// event for a (scope, kind) pair opens a bucket with a fixed window; later
// same-kind events add the username without resetting the timer. Firing emits
// exactly one system message naming all distinct users, then drops the bucket.
type Aggregator struct {
	mu           sync.Mutex
	log          *slog.Logger
	window       time.Duration
	writeTimeout time.Duration
	backend      contract.Backend
	publish      func(scope domain.ScopeID, name string, payload any)
	buckets      map[bucketKey]*aggregationBucket
	stopped      bool
}

func NewAggregator(log *slog.Logger, backend contract.Backend, window, writeTimeout time.Duration,
	publish func(scope domain.ScopeID, name string, payload any)) *Aggregator {
	return &Aggregator{
		log:          log,
		window:       window,
		writeTimeout: writeTimeout,
		backend:      backend,
		publish:      publish,
		buckets:      make(map[bucketKey]*aggregationBucket),
	}
}

// Observe records one join/leave occurrence for aggregation.
func (a *Aggregator) Observe(scope domain.ScopeID, kind AggregationKind, username string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	key := bucketKey{scope: scope, kind: kind}
	bucket, ok := a.buckets[key]
	if !ok {
		bucket = &aggregationBucket{}
		bucket.timer = time.AfterFunc(a.window, func() { a.fire(key) })
		a.buckets[key] = bucket
	}
	bucket.usernames = append(bucket.usernames, username)
}

func (a *Aggregator) fire(key bucketKey) {
	a.mu.Lock()
	bucket, ok := a.buckets[key]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.buckets, key)
	names := lo.Uniq(bucket.usernames)
	a.mu.Unlock()

	if len(names) == 0 {
		return
	}
	notice := domain.Message{
		ID:        uuid.NewString(),
		Username:  domain.SystemUsername,
		System:    true,
		Text:      FormatNames(names) + " " + string(key.kind),
		Timestamp: time.Now().UnixMilli(),
	}
	// Optimistic relay: broadcast with the local id immediately, persist in
	// the background, reconcile if the durable id differs.
	a.publish(key.scope, event.System, event.SystemPayload{Scope: key.scope, Message: notice})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.writeTimeout)
		defer cancel()
		persisted, err := a.backend.PostMessage(ctx, key.scope, notice)
		if err != nil {
			a.log.Warn("System notice persistence failed", "scope", key.scope, "error", err)
			return
		}
		if persisted.ID != "" && persisted.ID != notice.ID {
			a.publish(key.scope, event.SystemReconciled, event.ReconciledPayload{
				Scope:     key.scope,
				LocalID:   notice.ID,
				MessageID: persisted.ID,
			})
		}
	}()
}

// Stop cancels every pending window. Buckets that never fire emit nothing.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	for key, bucket := range a.buckets {
		bucket.timer.Stop()
		delete(a.buckets, key)
	}
}

// FormatNames renders a deduplicated name list as "A", "A and B", or
// "A, B and C".
func FormatNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}
