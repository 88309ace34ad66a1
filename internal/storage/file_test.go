package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreReplay(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "nested", "planner.jsonl")
	s, err := NewFileStore(p)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	commitPair(t, s, "a", "hello", "hi", t0, nil)
	commitPair(t, s, "a", "buy milk", "ok", t0, &Artifact{Kind: KindTask, Description: "buy milk", CreatedAt: t0})
	tasks, _ := s.Artifacts(context.Background(), ArtifactFilter{Kind: KindTask})
	if _, err := s.CompleteTask(context.Background(), "a", tasks[0].ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st, err := os.Stat(p)
	if err != nil || st.Size() == 0 {
		t.Fatalf("file not written")
	}

	s2, err := NewFileStore(p)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	turns, _ := s2.Turns(context.Background(), "a", 0)
	if len(turns) != 4 {
		t.Fatalf("want 4 turns after replay, got %d", len(turns))
	}
	if turns[0].Content != "hello" || turns[3].Seq != 4 {
		t.Fatalf("replay order mismatch: %+v", turns)
	}
	arts, _ := s2.Artifacts(context.Background(), ArtifactFilter{})
	if len(arts) != 1 || !arts[0].Completed || arts[0].TurnID != turns[3].ID {
		t.Fatalf("artifact not replayed correctly: %+v", arts)
	}

	// new commits continue the sequence
	commitPair(t, s2, "a", "more", "sure", t0, nil)
	turns, _ = s2.Turns(context.Background(), "a", 1)
	if turns[0].Seq != 6 {
		t.Fatalf("want seq 6, got %d", turns[0].Seq)
	}
}

func TestFileStoreSkipsTornLine(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "planner.jsonl")
	s, err := NewFileStore(p)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	commitPair(t, s, "a", "hello", "hi", t0, nil)
	_ = s.Close()

	f, err := os.OpenFile(p, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString(`{"op":"commit","turns":[{"id":"x","session_id":"a"`); err != nil {
		t.Fatalf("write torn line: %v", err)
	}
	_ = f.Close()

	s2, err := NewFileStore(p)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	turns, _ := s2.Turns(context.Background(), "a", 0)
	if len(turns) != 2 {
		t.Fatalf("torn line should be ignored, got %d turns", len(turns))
	}

	// a commit after the torn tail must land on its own line
	commitPair(t, s2, "a", "again", "sure", t0, nil)
	_ = s2.Close()

	s3, err := NewFileStore(p)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s3.Close()
	turns, _ = s3.Turns(context.Background(), "a", 0)
	if len(turns) != 4 {
		t.Fatalf("committed pair lost after reopen: want 4 turns, got %d", len(turns))
	}
	if turns[2].Content != "again" || turns[3].Seq != 4 {
		t.Fatalf("unexpected turns: %+v", turns)
	}
}

func TestFileStoreTerminatesLastLine(t *testing.T) {
	p := filepath.Join(t.TempDir(), "planner.jsonl")
	s, err := NewFileStore(p)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	commitPair(t, s, "a", "hello", "hi", t0, nil)
	_ = s.Close()

	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := os.WriteFile(p, data[:len(data)-1], 0o644); err != nil {
		t.Fatalf("strip newline: %v", err)
	}

	s2, err := NewFileStore(p)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	commitPair(t, s2, "a", "again", "sure", t0, nil)
	_ = s2.Close()

	s3, err := NewFileStore(p)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s3.Close()
	if turns, _ := s3.Turns(context.Background(), "a", 0); len(turns) != 4 {
		t.Fatalf("want 4 turns, got %d", len(turns))
	}
}

func TestFileStoreFailedSyncLeavesNoLine(t *testing.T) {
	p := filepath.Join(t.TempDir(), "planner.jsonl")
	s, err := NewFileStore(p)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	commitPair(t, s, "a", "hello", "hi", t0, nil)
	before, _ := os.Stat(p)

	s.syncFile = func(*os.File) error { return errors.New("disk full") }
	if _, _, err := writePair(s, "a", "buy milk", "ok", t0, &Artifact{Kind: KindTask, Description: "buy milk", CreatedAt: t0}); err == nil {
		t.Fatalf("expected sync failure")
	}
	after, _ := os.Stat(p)
	if after.Size() != before.Size() {
		t.Fatalf("failed batch left %d bytes behind", after.Size()-before.Size())
	}

	// the caller retries once the disk recovers
	s.syncFile = (*os.File).Sync
	commitPair(t, s, "a", "buy milk", "ok", t0, &Artifact{Kind: KindTask, Description: "buy milk", CreatedAt: t0})
	_ = s.Close()

	s2, err := NewFileStore(p)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	turns, _ := s2.Turns(context.Background(), "a", 0)
	if len(turns) != 4 {
		t.Fatalf("want 4 turns after retry, got %d", len(turns))
	}
	arts, _ := s2.Artifacts(context.Background(), ArtifactFilter{})
	if len(arts) != 1 {
		t.Fatalf("want one artifact after retry, got %d", len(arts))
	}
}
