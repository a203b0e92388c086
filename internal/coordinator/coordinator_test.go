package coordinator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func blockingLoop(started *int32) LoopFunc {
	return func(ctx context.Context) error {
		atomic.AddInt32(started, 1)
		<-ctx.Done()
		return nil
	}
}

func TestCoordinator_RunsAllLoops(t *testing.T) {
	var started int32
	coord := New(zerolog.Nop())
	coord.Add("runner", blockingLoop(&started))
	coord.Add("status", blockingLoop(&started))
	coord.Add("watch", blockingLoop(&started))
	coord.Add("disabled", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := coord.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&started); got != 3 {
		t.Fatalf("expected 3 loops started, got %d", got)
	}
	if len(coord.Errors()) != 0 {
		t.Fatalf("expected no loop errors, got %v", coord.Errors())
	}
}

func TestCoordinator_RecordsLoopErrors(t *testing.T) {
	var started int32
	coord := New(zerolog.Nop())
	coord.Add("runner", blockingLoop(&started))
	coord.Add("watch", LoopFunc(func(context.Context) error {
		return errors.New("inotify limit reached")
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := coord.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	errs := coord.Errors()
	if errs["watch"] == nil || errs["watch"].Error() != "inotify limit reached" {
		t.Fatalf("expected watch error recorded, got %v", errs)
	}
	if _, ok := errs["runner"]; ok {
		t.Fatalf("runner should have exited cleanly")
	}
}

func TestCoordinator_GracefulShutdown(t *testing.T) {
	var started int32
	coord := New(zerolog.Nop())
	coord.Add("runner", blockingLoop(&started))
	coord.Add("status", blockingLoop(&started))

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- coord.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("coordinator did not stop after context cancellation")
	}
}
