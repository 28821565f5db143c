package database

import (
	"context"
	"sync"
)

// Snapshotter is implemented by in-memory repositories so StubTxManager can roll them back.
type Snapshotter interface {
	Snapshot() (restore func())
}

// StubTxManager serializes units of work over in-memory repositories and restores their
// state when a unit fails.
type StubTxManager struct {
	mu           sync.Mutex
	participants []Snapshotter
	commits      int
	rollbacks    int
}

func NewStubTxManager(participants ...Snapshotter) *StubTxManager {
	return &StubTxManager{participants: participants}
}

func (m *StubTxManager) Register(participants ...Snapshotter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants = append(m.participants, participants...)
}

func (m *StubTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTransaction(ctx) {
		return fn(ctx)
	}

	m.mu.Lock()
	restores := make([]func(), 0, len(m.participants))
	for _, p := range m.participants {
		restores = append(restores, p.Snapshot())
	}

	state := &txState{outer: ctx}
	err := fn(context.WithValue(ctx, txKey{}, state))
	if err != nil {
		for _, restore := range restores {
			restore()
		}
		m.rollbacks++
		m.mu.Unlock()
		return err
	}
	m.commits++
	m.mu.Unlock()

	runAfterCommit(state)
	return nil
}

func (m *StubTxManager) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

func (m *StubTxManager) Rollbacks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rollbacks
}
