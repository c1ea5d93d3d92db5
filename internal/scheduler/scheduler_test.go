package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stlalpha/wwivcore/internal/config"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	tmpDir := t.TempDir()
	return NewScheduler(config.EventsConfig{MaxConcurrentEvents: 2}, filepath.Join(tmpDir, "history.json"))
}

func TestRegisterBuiltinRunsOnSchedule(t *testing.T) {
	s := newTestScheduler(t)

	var calls int32
	done := make(chan struct{})
	s.RegisterBuiltin(BuiltinJob{
		ID:       "test_builtin",
		Name:     "Test Builtin",
		Schedule: "* * * * * *", // every second
		Run: func(ctx context.Context) error {
			if atomic.AddInt32(&calls, 1) == 1 {
				close(done)
			}
			return nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go s.Start(ctx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("builtin job never ran")
	}
	cancel()

	hist := s.GetHistory()
	h, ok := hist["test_builtin"]
	if !ok {
		t.Fatal("expected history entry for test_builtin")
	}
	if h.LastStatus != "success" {
		t.Errorf("expected success, got %s", h.LastStatus)
	}
}

func TestRegisterBuiltinSharesRunningGuardWithEvents(t *testing.T) {
	s := newTestScheduler(t)
	s.runningEvents["dup"] = true

	result := false
	s.runWithConcurrency("dup", "Duplicate", func() EventResult {
		result = true
		return EventResult{EventID: "dup", Success: true}
	})
	if result {
		t.Error("expected already-running job to be skipped")
	}
}

func TestExecuteBuiltinReportsError(t *testing.T) {
	s := &Scheduler{}
	job := BuiltinJob{
		ID:   "failing",
		Name: "Failing Job",
		Run: func(ctx context.Context) error {
			return os.ErrNotExist
		},
	}

	result := s.executeBuiltin(context.Background(), job)
	if result.Success {
		t.Error("expected failure")
	}
	if result.Error == nil {
		t.Error("expected Error to be set")
	}
}
