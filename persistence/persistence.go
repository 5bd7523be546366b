package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/chatwright/chatwright/model"
)

var ErrNotFound = errors.New("not found")

// ErrStaleVersion is returned by Save when the stored run has moved on
// since it was loaded. The caller reloads and decides whether the
// message is still unconsumed.
var ErrStaleVersion = errors.New("stale run version")

// ErrLockHeld is returned when a session lock could not be acquired
// within the caller's deadline.
var ErrLockHeld = errors.New("session lock held")

// RunStore is the context store contract: durable, keyed run state
// with optimistic concurrency. It is the only shared mutable resource
// in the core.
type RunStore interface {
	Load(ctx context.Context, runId string) (*model.FlowRun, error)
	// Save persists the run if the stored version still equals
	// expectedVersion, bumping run.Version on success.
	Save(ctx context.Context, run *model.FlowRun, expectedVersion int64) error
	Delete(ctx context.Context, runId string) error
	// ActiveRun returns the run id currently owned by the session, or
	// ErrNotFound.
	ActiveRun(ctx context.Context, sessionId string) (string, error)
	// SetActiveRun claims the session for a run; returns false when the
	// session already owns an active run.
	SetActiveRun(ctx context.Context, sessionId string, runId string) (bool, error)
	ClearActiveRun(ctx context.Context, sessionId string, runId string) error
}

type Unlock func(ctx context.Context) error

// Locker serializes steps for a session. Two near-simultaneous
// messages from the same user must not both advance the same state.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (Unlock, error)
}

// CatalogStore persists versioned, immutable flow definitions. The
// core treats it as read-only apart from Publish.
type CatalogStore interface {
	SaveFlowDefinition(ctx context.Context, def model.FlowDefinition) error
	GetFlowDefinition(ctx context.Context, id string) (*model.FlowDefinition, error)
	ListFlowDefinitions(ctx context.Context) ([]model.FlowDefinition, error)
	DeleteFlowDefinition(ctx context.Context, id string) error
}
