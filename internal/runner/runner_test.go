package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nholik/craft-sentinel/internal/engine"
	"github.com/nholik/craft-sentinel/internal/executor"
	"github.com/rs/zerolog"
)

type fakeTicker struct {
	ch      chan time.Time
	stopped bool
	mu      sync.Mutex
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.ch
}

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTicker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func TestRunner_Run_TicksRunUpdateStatusAndSurviveFailures(t *testing.T) {
	ticker := &fakeTicker{ch: make(chan time.Time, 2)}
	seen := make(chan engine.Trigger, 3)
	failures := []error{
		&PassError{Stage: StageService, Err: errors.New("dbus: connection refused")},
		&executor.ActionError{Action: engine.Action{Kind: engine.StartService}, Err: errors.New("unit not found")},
		nil,
	}
	calls := 0

	r := New(zerolog.Nop(), time.Second,
		WithTickerFactory(func(time.Duration) Ticker {
			return ticker
		}),
		WithRunOnce(func(_ context.Context, trigger engine.Trigger) error {
			err := failures[calls%len(failures)]
			calls++
			seen <- trigger
			return err
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		_ = r.Run(ctx)
		close(done)
	}()

	ticker.ch <- time.Now()
	ticker.ch <- time.Now()

	want := []engine.Trigger{engine.TriggerStart, engine.TriggerUpdateStatus, engine.TriggerUpdateStatus}
	for _, expected := range want {
		select {
		case got := <-seen:
			if got != expected {
				t.Fatalf("expected %s, got %s", expected, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", expected)
		}
	}

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("runner did not stop after cancel")
	}

	if !ticker.Stopped() {
		t.Fatalf("expected ticker to be stopped")
	}
}

func TestRunner_Run_StopsOnContextCancel(t *testing.T) {
	ticker := &fakeTicker{ch: make(chan time.Time, 1)}

	r := New(zerolog.Nop(), time.Second,
		WithTickerFactory(func(time.Duration) Ticker {
			return ticker
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		_ = r.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("runner did not stop after cancel")
	}

	if !ticker.Stopped() {
		t.Fatalf("expected ticker to be stopped")
	}
}

func TestRunner_Run_RejectsZeroPollInterval(t *testing.T) {
	r := New(zerolog.Nop(), 0)

	err := r.Run(context.Background())
	if err == nil {
		t.Fatalf("expected error for zero poll interval")
	}
}

func TestRunner_Run_DrainsQueuedTriggers(t *testing.T) {
	ticker := &fakeTicker{ch: make(chan time.Time)}
	seen := make(chan engine.Trigger, 4)

	r := New(zerolog.Nop(), time.Second,
		WithTickerFactory(func(time.Duration) Ticker {
			return ticker
		}),
		WithRunOnce(func(_ context.Context, trigger engine.Trigger) error {
			seen <- trigger
			return nil
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = r.Run(ctx)
	}()

	if !r.Trigger(engine.TriggerConfigChanged) {
		t.Fatalf("expected trigger to be queued")
	}

	want := []engine.Trigger{engine.TriggerStart, engine.TriggerConfigChanged}
	for _, expected := range want {
		select {
		case got := <-seen:
			if got != expected {
				t.Fatalf("expected %s, got %s", expected, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", expected)
		}
	}
}

func TestRunner_Trigger_FullQueue(t *testing.T) {
	r := New(zerolog.Nop(), time.Second)
	for i := 0; i < triggerQueueSize; i++ {
		if !r.Trigger(engine.TriggerUpdateStatus) {
			t.Fatalf("trigger %d rejected early", i)
		}
	}
	if r.Trigger(engine.TriggerUpdateStatus) {
		t.Fatalf("expected full queue to reject trigger")
	}
}
