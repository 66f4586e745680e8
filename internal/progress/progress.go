// Package progress holds per-task scrape progress so external observers can
// poll or stream it. The reporter is an injectable handle over a Store, not a
// package-level singleton, so tests and concurrent runs get isolated state.
package progress

import (
	"context"
	"sync"
)

// State is the last known progress of one task. It is overwritten on every
// update, never appended, and kept after completion so late observers can
// still read the terminal state.
type State struct {
	Percent float64 `json:"percentual"`
	Message string  `json:"mensagem"`
}

// DefaultState is what observers see for a task id that has not reported yet.
func DefaultState() State {
	return State{Percent: 0, Message: "Aguardando..."}
}

// Store persists task progress. Implementations must be safe for one writer
// and any number of concurrent readers.
type Store interface {
	Set(ctx context.Context, taskID string, state State) error
	Get(ctx context.Context, taskID string) (State, error)
}

// MemoryStore keeps progress in a mutex-guarded map for the process lifetime.
// Updates are small and infrequent, so a single lock is enough.
type MemoryStore struct {
	mu    sync.Mutex
	tasks map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]State)}
}

func (s *MemoryStore) Set(ctx context.Context, taskID string, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[taskID] = state
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, taskID string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.tasks[taskID]
	if !ok {
		return DefaultState(), nil
	}
	return state, nil
}

// Reporter is the handle the orchestrator writes milestones through.
type Reporter struct {
	store Store
}

func NewReporter(store Store) *Reporter {
	return &Reporter{store: store}
}

// Set overwrites the state for taskID. An empty taskID is a no-op, matching
// CLI runs that do not track progress.
func (r *Reporter) Set(ctx context.Context, taskID string, percent float64, message string) {
	if taskID == "" {
		return
	}
	_ = r.store.Set(ctx, taskID, State{Percent: percent, Message: message})
}

// Get returns the current state for taskID, or the default for unknown ids.
func (r *Reporter) Get(ctx context.Context, taskID string) State {
	state, err := r.store.Get(ctx, taskID)
	if err != nil {
		return DefaultState()
	}
	return state
}
