package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process memory. It is the default backend
// and the base the file store replays into.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]Session
	turns     map[string][]Turn
	turnIDs   map[string]struct{}
	artifacts []Artifact
	artIdx    map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		turns:    make(map[string][]Turn),
		turnIDs:  make(map[string]struct{}),
		artIdx:   make(map[string]int),
	}
}

// batch is the unit of commit: every write of one turn. The file store
// persists it as one JSON line.
type batch struct {
	Op         string     `json:"op"`
	Sessions   []Session  `json:"sessions,omitempty"`
	Turns      []Turn     `json:"turns,omitempty"`
	Artifacts  []Artifact `json:"artifacts,omitempty"`
	ArtifactID string     `json:"artifact_id,omitempty"`
}

const (
	opCommit   = "commit"
	opComplete = "complete"
)

type memTx struct {
	b batch
}

func (tx *memTx) EnsureSession(id string, at time.Time) error {
	if id == "" {
		return fmt.Errorf("%w: empty session id", ErrInvalidData)
	}
	tx.b.Sessions = append(tx.b.Sessions, Session{ID: id, CreatedAt: at, UpdatedAt: at})
	return nil
}

func (tx *memTx) AppendTurn(t Turn) (string, error) {
	if err := validateTurn(t); err != nil {
		return "", err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	tx.b.Turns = append(tx.b.Turns, t)
	return t.ID, nil
}

func (tx *memTx) PutArtifact(a Artifact) (string, error) {
	if err := validateArtifact(a); err != nil {
		return "", err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	tx.b.Artifacts = append(tx.b.Artifacts, a)
	return a.ID, nil
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	return s.commit(ctx, fn, nil)
}

// commit runs fn, then under the write lock finalizes the batch, hands it to
// persist (if any) and applies it. A persist failure leaves memory untouched.
func (s *MemoryStore) commit(ctx context.Context, fn func(Tx) error, persist func(batch) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{b: batch{Op: opCommit}}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := s.prepareLocked(tx.b)
	if err != nil {
		return err
	}
	if persist != nil {
		if err := persist(b); err != nil {
			return err
		}
	}
	s.applyLocked(b)
	return nil
}

// prepareLocked assigns sequence numbers, clamps timestamps and checks that
// every artifact points at a known turn.
func (s *MemoryStore) prepareLocked(in batch) (batch, error) {
	out := batch{Op: in.Op}
	known := make(map[string]bool)
	for _, sess := range in.Sessions {
		if known[sess.ID] {
			continue
		}
		known[sess.ID] = true
		if cur, ok := s.sessions[sess.ID]; ok {
			cur.UpdatedAt = maxTime(cur.UpdatedAt, sess.UpdatedAt)
			sess = cur
		}
		out.Sessions = append(out.Sessions, sess)
	}

	last := make(map[string]Turn)
	staged := make(map[string]struct{})
	for _, t := range in.Turns {
		if _, ok := s.sessions[t.SessionID]; !ok && !known[t.SessionID] {
			return batch{}, fmt.Errorf("%w: turn for unknown session %q", ErrInvalidData, t.SessionID)
		}
		if _, dup := s.turnIDs[t.ID]; dup {
			return batch{}, fmt.Errorf("%w: duplicate turn id %q", ErrInvalidData, t.ID)
		}
		prev, ok := last[t.SessionID]
		if !ok {
			if ts := s.turns[t.SessionID]; len(ts) > 0 {
				prev, ok = ts[len(ts)-1], true
			}
		}
		t.Seq = 1
		if ok {
			t.Seq = prev.Seq + 1
			t.Timestamp = maxTime(t.Timestamp, prev.Timestamp)
		}
		last[t.SessionID] = t
		staged[t.ID] = struct{}{}
		out.Turns = append(out.Turns, t)
	}

	for _, a := range in.Artifacts {
		_, committed := s.turnIDs[a.TurnID]
		_, pending := staged[a.TurnID]
		if !committed && !pending {
			return batch{}, fmt.Errorf("%w: artifact references unknown turn %q", ErrInvalidData, a.TurnID)
		}
		if _, dup := s.artIdx[a.ID]; dup {
			return batch{}, fmt.Errorf("%w: duplicate artifact id %q", ErrInvalidData, a.ID)
		}
		out.Artifacts = append(out.Artifacts, a)
	}
	return out, nil
}

func (s *MemoryStore) applyLocked(b batch) {
	if b.Op == opComplete {
		if i, ok := s.artIdx[b.ArtifactID]; ok {
			s.artifacts[i].Completed = true
		}
		return
	}
	for _, sess := range b.Sessions {
		s.sessions[sess.ID] = sess
	}
	for _, t := range b.Turns {
		s.turns[t.SessionID] = append(s.turns[t.SessionID], t)
		s.turnIDs[t.ID] = struct{}{}
	}
	for _, a := range b.Artifacts {
		s.artIdx[a.ID] = len(s.artifacts)
		s.artifacts = append(s.artifacts, a)
	}
}

func (s *MemoryStore) Turns(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts := s.turns[sessionID]
	if limit > 0 && len(ts) > limit {
		ts = ts[len(ts)-limit:]
	}
	out := make([]Turn, len(ts))
	copy(out, ts)
	return out, nil
}

func (s *MemoryStore) Artifacts(ctx context.Context, f ArtifactFilter) ([]Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Artifact
	for _, a := range s.artifacts {
		if f.Match(a) {
			out = append(out, cloneArtifact(a))
		}
	}
	return out, nil
}

func (s *MemoryStore) CompleteTask(ctx context.Context, sessionID, id string) (Artifact, error) {
	return s.complete(ctx, sessionID, id, nil)
}

func (s *MemoryStore) complete(ctx context.Context, sessionID, id string, persist func(batch) error) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.artIdx[id]
	if !ok || s.artifacts[i].Kind != KindTask || s.artifacts[i].SessionID != sessionID {
		return Artifact{}, fmt.Errorf("task %q: %w", id, ErrNotFound)
	}
	if s.artifacts[i].Completed {
		return cloneArtifact(s.artifacts[i]), nil
	}
	b := batch{Op: opComplete, ArtifactID: id}
	if persist != nil {
		if err := persist(b); err != nil {
			return Artifact{}, err
		}
	}
	s.applyLocked(b)
	return cloneArtifact(s.artifacts[i]), nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneArtifact(a Artifact) Artifact {
	a.Tags = append([]string(nil), a.Tags...)
	a.Reminders = append([]int(nil), a.Reminders...)
	return a
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
