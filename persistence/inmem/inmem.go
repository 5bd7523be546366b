// Package inmem provides in-process implementations of the persistence
// contracts for tests and single-node development mode.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/chatwright/chatwright/model"
	"github.com/chatwright/chatwright/persistence"
)

var _ persistence.RunStore = new(RunStore)

type RunStore struct {
	mu       sync.Mutex
	runs     map[string]model.FlowRun
	sessions map[string]string
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs:     make(map[string]model.FlowRun),
		sessions: make(map[string]string),
	}
}

func (s *RunStore) Load(ctx context.Context, runId string) (*model.FlowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runId]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	copied := run
	copied.Context = copyMap(run.Context)
	copied.Collected = copyBoolMap(run.Collected)
	return &copied, nil
}

func (s *RunStore) Save(ctx context.Context, run *model.FlowRun, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.runs[run.RunId]
	if ok && stored.Version != expectedVersion {
		return persistence.ErrStaleVersion
	}
	if !ok && expectedVersion != 0 {
		return persistence.ErrStaleVersion
	}
	run.Version = expectedVersion + 1
	copied := *run
	copied.Context = copyMap(run.Context)
	copied.Collected = copyBoolMap(run.Collected)
	s.runs[run.RunId] = copied
	return nil
}

func (s *RunStore) Delete(ctx context.Context, runId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runId)
	return nil
}

func (s *RunStore) ActiveRun(ctx context.Context, sessionId string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	runId, ok := s.sessions[sessionId]
	if !ok {
		return "", persistence.ErrNotFound
	}
	return runId, nil
}

func (s *RunStore) SetActiveRun(ctx context.Context, sessionId string, runId string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionId]; ok {
		return false, nil
	}
	s.sessions[sessionId] = runId
	return true, nil
}

func (s *RunStore) ClearActiveRun(ctx context.Context, sessionId string, runId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[sessionId] == runId {
		delete(s.sessions, sessionId)
	}
	return nil
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyBoolMap(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var _ persistence.Locker = new(Locker)

// Locker serializes sessions within a single process.
type Locker struct {
	mu    sync.Mutex
	locks map[string]bool
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]bool)}
}

func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (persistence.Unlock, error) {
	for {
		l.mu.Lock()
		if !l.locks[key] {
			l.locks[key] = true
			l.mu.Unlock()
			unlock := func(ctx context.Context) error {
				l.mu.Lock()
				defer l.mu.Unlock()
				delete(l.locks, key)
				return nil
			}
			return unlock, nil
		}
		l.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, persistence.ErrLockHeld
		case <-time.After(5 * time.Millisecond):
		}
	}
}

var _ persistence.CatalogStore = new(CatalogStore)

type CatalogStore struct {
	mu   sync.RWMutex
	defs map[string]model.FlowDefinition
}

func NewCatalogStore() *CatalogStore {
	return &CatalogStore{defs: make(map[string]model.FlowDefinition)}
}

func (c *CatalogStore) SaveFlowDefinition(ctx context.Context, def model.FlowDefinition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defs[def.Id] = def
	return nil
}

func (c *CatalogStore) GetFlowDefinition(ctx context.Context, id string) (*model.FlowDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.defs[id]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return &def, nil
}

func (c *CatalogStore) ListFlowDefinitions(ctx context.Context) ([]model.FlowDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	defs := make([]model.FlowDefinition, 0, len(c.defs))
	for _, def := range c.defs {
		defs = append(defs, def)
	}
	return defs, nil
}

func (c *CatalogStore) DeleteFlowDefinition(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.defs, id)
	return nil
}
