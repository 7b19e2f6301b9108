//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chat-relay/domain"
)

// Outbound is one named event on its way to a connection.
type Outbound struct {
	Event   string
	Payload any
}

// EventSink is the delivery end of a live connection. Implementations must
// never block the caller; a slow consumer drops rather than stalls.
type EventSink interface {
	Consume(ctx context.Context, e Outbound) error
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Backend is the persistence API surface the relay depends on. Reads take a
// caller-supplied fallback and never return an error; writes surface errors
// for the breaker and the scoped error events.
type Backend interface {
	LatestMessages(ctx context.Context, scope domain.ScopeID, count int, fallback []domain.Message) []domain.Message
	PageMessages(ctx context.Context, scope domain.ScopeID, beforeMs int64, limit int, fallback []domain.Message) []domain.Message
	PostMessage(ctx context.Context, scope domain.ScopeID, m domain.Message) (domain.Message, error)
	EditMessage(ctx context.Context, scope domain.ScopeID, messageID, text string) error
	DeleteMessage(ctx context.Context, scope domain.ScopeID, messageID string) error
	React(ctx context.Context, scope domain.ScopeID, messageID, userID, username, emoji string) (map[string]domain.Reaction, error)
	MessageFilters(ctx context.Context, userID string, fallback domain.FilterSet) domain.FilterSet
	AddGroupMember(ctx context.Context, scope domain.ScopeID, username string) error
	RemoveGroupMember(ctx context.Context, scope domain.ScopeID, username string) error
	ProfilesBatch(ctx context.Context, usernames []string) (map[string]domain.ProfileSummary, error)
	Like(ctx context.Context, from, target string) error
	Unlike(ctx context.Context, from, target string) error
	DMThreads(ctx context.Context, username string, fallback []domain.ScopeID) []domain.ScopeID
}
