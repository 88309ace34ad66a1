package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestAddJobRejectsBadSpec(t *testing.T) {
	s := New(time.UTC)
	defer s.Stop()
	if err := s.AddJob("not a cron spec", "digest", func(context.Context) error { return nil }); err == nil {
		t.Fatalf("expected error for invalid spec")
	}
	if s.IsRunning() {
		t.Fatalf("no job should be registered")
	}
}

func TestJobRuns(t *testing.T) {
	s := New(nil)
	ran := make(chan struct{}, 1)
	if err := s.AddJob("@every 10ms", "tick", func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}); err != nil {
		t.Fatalf("add job: %v", err)
	}
	if !s.IsRunning() {
		t.Fatalf("job should be registered")
	}
	s.Start()
	defer s.Stop()
	if s.Next().IsZero() {
		t.Fatalf("next run should be scheduled")
	}
	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatalf("job did not run")
	}
}
