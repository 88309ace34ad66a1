package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ai-planner/internal/intent"
	"ai-planner/internal/llm"
	"ai-planner/internal/storage"
)

func seed(t *testing.T, s storage.Store, sid string, n int) {
	t.Helper()
	at := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		err := s.WithTx(context.Background(), func(tx storage.Tx) error {
			if err := tx.EnsureSession(sid, at); err != nil {
				return err
			}
			if _, err := tx.AppendTurn(storage.Turn{SessionID: sid, Role: storage.RoleUser, Content: fmt.Sprintf("u%d", i), Timestamp: at}); err != nil {
				return err
			}
			_, err := tx.AppendTurn(storage.Turn{SessionID: sid, Role: storage.RoleAssistant, Content: fmt.Sprintf("a%d", i), Timestamp: at})
			return err
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestWindowIsBoundedAndChronological(t *testing.T) {
	s := storage.NewMemoryStore()
	seed(t, s, "a", 15)
	seed(t, s, "b", 1)
	m := NewManager(s, 4)

	msgs, err := m.Window(context.Background(), "a")
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	want := []llm.Message{
		{Role: llm.RoleUser, Content: "u13"},
		{Role: llm.RoleAssistant, Content: "a13"},
		{Role: llm.RoleUser, Content: "u14"},
		{Role: llm.RoleAssistant, Content: "a14"},
	}
	if len(msgs) != len(want) {
		t.Fatalf("want %d messages, got %d", len(want), len(msgs))
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Fatalf("msg %d: want %+v, got %+v", i, want[i], msgs[i])
		}
	}

	other, _ := m.Window(context.Background(), "b")
	if len(other) != 2 || other[0].Content != "u0" {
		t.Fatalf("sessions leaked: %+v", other)
	}
	empty, _ := m.Window(context.Background(), "new")
	if len(empty) != 0 {
		t.Fatalf("new session should have empty history")
	}
}

func TestDefaultWindow(t *testing.T) {
	if NewManager(storage.NewMemoryStore(), 0).WindowSize() != intent.DefaultWindow {
		t.Fatalf("zero window should select the default")
	}
}

func TestReadLimit(t *testing.T) {
	s := storage.NewMemoryStore()
	seed(t, s, "a", 3)
	m := NewManager(s, 2)
	all, _ := m.Read(context.Background(), "a", 0)
	if len(all) != 6 {
		t.Fatalf("want 6 turns, got %d", len(all))
	}
	last, _ := m.Read(context.Background(), "a", 3)
	if len(last) != 3 || last[0].Content != "a1" || last[2].Content != "a2" {
		t.Fatalf("unexpected tail: %+v", last)
	}
}

func TestLockSerializesSameSession(t *testing.T) {
	m := NewManager(storage.NewMemoryStore(), 0)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(context.Background(), "a")
			if err != nil {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("lock admitted %d holders at once", maxSeen)
	}
	if n := m.activeLocks(); n != 0 {
		t.Fatalf("idle locks not dropped: %d", n)
	}
}

func TestLockDistinctSessionsDoNotContend(t *testing.T) {
	m := NewManager(storage.NewMemoryStore(), 0)
	unlockA, err := m.Lock(context.Background(), "a")
	if err != nil {
		t.Fatalf("lock a: %v", err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := m.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("session b blocked by session a: %v", err)
	}
	unlockB()
}

func TestLockHonorsContext(t *testing.T) {
	m := NewManager(storage.NewMemoryStore(), 0)
	unlock, _ := m.Lock(context.Background(), "a")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Lock(ctx, "a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
	unlock()
	unlock() // second call is a no-op
	if n := m.activeLocks(); n != 0 {
		t.Fatalf("want no active locks, got %d", n)
	}
}
