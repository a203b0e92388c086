package coordinator

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Loop is a long-running component that stops when its context is canceled.
type Loop interface {
	Run(ctx context.Context) error
}

// LoopFunc adapts a function to Loop.
type LoopFunc func(ctx context.Context) error

// Run implements Loop.
func (f LoopFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type namedLoop struct {
	name string
	loop Loop
}

// Coordinator runs the reconciliation loop next to its companions (status
// probe, file watchers) and waits for all of them on shutdown.
type Coordinator struct {
	logger     zerolog.Logger
	loops      []namedLoop
	loopErrors map[string]error
	mu         sync.RWMutex
}

// New constructs an empty Coordinator.
func New(logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		logger:     logger,
		loopErrors: make(map[string]error),
	}
}

// Add registers a loop. Nil loops are ignored.
func (c *Coordinator) Add(name string, loop Loop) {
	if loop == nil {
		return
	}
	c.loops = append(c.loops, namedLoop{name: name, loop: loop})
}

// Run starts all loops in parallel and blocks until every loop returned.
// Returns nil on clean shutdown; per-loop errors are logged and kept for Errors.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info().
		Int("loops", len(c.loops)).
		Msg("starting coordinator")

	var wg sync.WaitGroup
	for _, entry := range c.loops {
		wg.Add(1)
		go c.spawn(ctx, &wg, entry)
	}

	wg.Wait()
	c.logger.Info().Msg("all loops stopped")

	c.mu.RLock()
	defer c.mu.RUnlock()
	for name, err := range c.loopErrors {
		if err != nil {
			c.logger.Error().Err(err).Str("loop", name).Msg("loop error")
		}
	}

	return nil
}

func (c *Coordinator) spawn(ctx context.Context, wg *sync.WaitGroup, entry namedLoop) {
	defer wg.Done()

	logger := c.logger.With().Str("loop", entry.name).Logger()
	logger.Info().Msg("loop started")

	if err := entry.loop.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("loop exited with error")
		c.recordError(entry.name, err)
		return
	}
	logger.Info().Msg("loop exited cleanly")
}

func (c *Coordinator) recordError(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loopErrors[name] = err
}

// Errors returns a copy of the recorded per-loop errors.
func (c *Coordinator) Errors() map[string]error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]error, len(c.loopErrors))
	for k, v := range c.loopErrors {
		result[k] = v
	}
	return result
}
