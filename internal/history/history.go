package history

import (
	"context"
	"sync"

	"ai-planner/internal/intent"
	"ai-planner/internal/llm"
	"ai-planner/internal/storage"
)

// sessionLock is a one-slot semaphore; refs counts holders and waiters so
// the registry can drop it once nobody needs it.
type sessionLock struct {
	ch   chan struct{}
	refs int
}

// Manager reads conversation history out of a store and serializes work per
// session. Distinct sessions never share a lock.
type Manager struct {
	store  storage.Store
	window int

	mu       sync.Mutex
	sessions map[string]*sessionLock
}

func NewManager(store storage.Store, window int) *Manager {
	if window <= 0 {
		window = intent.DefaultWindow
	}
	return &Manager{store: store, window: window, sessions: make(map[string]*sessionLock)}
}

func (m *Manager) WindowSize() int { return m.window }

// Read returns the last limit turns of a session in chronological order.
// limit <= 0 returns everything.
func (m *Manager) Read(ctx context.Context, sessionID string, limit int) ([]storage.Turn, error) {
	return m.store.Turns(ctx, sessionID, limit)
}

// Window returns the bounded history handed to the classifier.
func (m *Manager) Window(ctx context.Context, sessionID string) ([]llm.Message, error) {
	turns, err := m.store.Turns(ctx, sessionID, m.window)
	if err != nil {
		return nil, err
	}
	return ToMessages(turns), nil
}

func ToMessages(turns []storage.Turn) []llm.Message {
	out := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		role := llm.RoleUser
		if t.Role == storage.RoleAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: t.Content})
	}
	return out
}

// Lock blocks until the caller holds the session or ctx is done. The
// returned func releases it and must be called exactly once.
func (m *Manager) Lock(ctx context.Context, sessionID string) (func(), error) {
	m.mu.Lock()
	l, ok := m.sessions[sessionID]
	if !ok {
		l = &sessionLock{ch: make(chan struct{}, 1)}
		m.sessions[sessionID] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(sessionID, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			m.release(sessionID, l)
		})
	}, nil
}

func (m *Manager) release(sessionID string, l *sessionLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.sessions, sessionID)
	}
}

// activeLocks reports how many sessions currently have holders or waiters.
func (m *Manager) activeLocks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
