package session

import (
	"context"
	"errors"
	"sync"

	"github.com/lumenvoice/companion-gateway/internal/emotion"
)

// ErrNotFound is returned when a session has no stored state.
var ErrNotFound = errors.New("session not found")

// Store persists per-session state: the published record plus the
// emotion machine's state, so a session survives reconnects.
type Store interface {
	LoadRecord(ctx context.Context, sessionID string) (Record, error)
	SaveRecord(ctx context.Context, sessionID string, rec Record) error
	LoadEmotion(ctx context.Context, sessionID string) (emotion.State, error)
	SaveEmotion(ctx context.Context, sessionID string, state emotion.State) error
	Delete(ctx context.Context, sessionID string) error
	Close() error
}

type memoryEntry struct {
	record     Record
	hasRecord  bool
	emotion    emotion.State
	hasEmotion bool
}

// MemoryStore is the default in-process store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memoryEntry
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memoryEntry)}
}

func (m *MemoryStore) LoadRecord(ctx context.Context, sessionID string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[sessionID]
	if !ok || !e.hasRecord {
		return Record{}, ErrNotFound
	}
	return e.record, nil
}

func (m *MemoryStore) SaveRecord(ctx context.Context, sessionID string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entry(sessionID)
	e.record = rec
	e.hasRecord = true
	return nil
}

func (m *MemoryStore) LoadEmotion(ctx context.Context, sessionID string) (emotion.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[sessionID]
	if !ok || !e.hasEmotion {
		return emotion.State{}, ErrNotFound
	}
	return e.emotion, nil
}

func (m *MemoryStore) SaveEmotion(ctx context.Context, sessionID string, state emotion.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entry(sessionID)
	e.emotion = state
	e.hasEmotion = true
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// entry returns the session's entry, creating it if needed. Caller
// must hold the write lock.
func (m *MemoryStore) entry(sessionID string) *memoryEntry {
	e, ok := m.sessions[sessionID]
	if !ok {
		e = &memoryEntry{}
		m.sessions[sessionID] = e
	}
	return e
}
