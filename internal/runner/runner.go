package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nholik/craft-sentinel/internal/engine"
	"github.com/nholik/craft-sentinel/internal/executor"
	"github.com/nholik/craft-sentinel/internal/healthcheck"
	"github.com/nholik/craft-sentinel/internal/host"
	"github.com/nholik/craft-sentinel/internal/metrics"
	"github.com/nholik/craft-sentinel/internal/options"
	"github.com/nholik/craft-sentinel/internal/resource"
	"github.com/nholik/craft-sentinel/internal/state"
	"github.com/rs/zerolog"
)

const triggerQueueSize = 8

// Ticker is the minimal interface needed for driving the runner loop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

// PlanExecutor applies a plan, calling committed after each successful action.
type PlanExecutor interface {
	Run(ctx context.Context, plan engine.Plan, config options.Snapshot, committed func(engine.Action) error) (int, error)
}

// ResourceSyncer refreshes the server jar from its remote source.
type ResourceSyncer interface {
	Sync(ctx context.Context) (resource.FetchResult, error)
}

// OptionsLoader returns the current option values.
type OptionsLoader func() (map[string]string, error)

// Result summarizes one reconciliation pass.
type Result struct {
	PassID   string
	Trigger  engine.Trigger
	Plan     engine.Plan
	Executed int
}

// Runner drives reconciliation passes: one at a time, on startup, on every
// tick and on every queued trigger.
type Runner struct {
	logger        zerolog.Logger
	pollInterval  time.Duration
	tickerFactory func(time.Duration) Ticker
	runOnce       func(context.Context, engine.Trigger) error
	triggers      chan engine.Trigger

	passMu      sync.Mutex
	stateStore  state.Store
	stateMu     *sync.Mutex
	executor    PlanExecutor
	services    host.ServiceManager
	resources   host.Resources
	syncer      ResourceSyncer
	loadOptions OptionsLoader
	serviceName string
	planner     func(engine.Trigger, engine.Input) engine.Plan
	metrics     *metrics.Metrics
	tracker     *healthcheck.Tracker
	newPassID   func() string
}

// Option customizes runner behavior.
type Option func(*Runner)

// WithTickerFactory overrides how tickers are created.
func WithTickerFactory(factory func(time.Duration) Ticker) Option {
	return func(r *Runner) {
		r.tickerFactory = factory
	}
}

// WithRunOnce overrides the single-pass execution step.
func WithRunOnce(runOnce func(context.Context, engine.Trigger) error) Option {
	return func(r *Runner) {
		r.runOnce = runOnce
	}
}

// WithStateStore sets the condition store. lock is shared with every other
// writer of the store.
func WithStateStore(store state.Store, lock *sync.Mutex) Option {
	return func(r *Runner) {
		r.stateStore = store
		r.stateMu = lock
	}
}

// WithExecutor sets the plan executor.
func WithExecutor(exec PlanExecutor) Option {
	return func(r *Runner) {
		r.executor = exec
	}
}

// WithHost sets the observers used to build the engine input.
func WithHost(services host.ServiceManager, resources host.Resources, serviceName string) Option {
	return func(r *Runner) {
		r.services = services
		r.resources = resources
		r.serviceName = serviceName
	}
}

// WithResourceSyncer refreshes the resource before every pass.
func WithResourceSyncer(syncer ResourceSyncer) Option {
	return func(r *Runner) {
		r.syncer = syncer
	}
}

// WithOptionsLoader sets where option values come from.
func WithOptionsLoader(loader OptionsLoader) Option {
	return func(r *Runner) {
		r.loadOptions = loader
	}
}

// WithPlanner replaces the handler evaluation, e.g. with engine.ForTrigger.
func WithPlanner(planner func(engine.Trigger, engine.Input) engine.Plan) Option {
	return func(r *Runner) {
		r.planner = planner
	}
}

// WithObservability wires metrics and the health tracker.
func WithObservability(metricsCollector *metrics.Metrics, tracker *healthcheck.Tracker) Option {
	return func(r *Runner) {
		r.metrics = metricsCollector
		r.tracker = tracker
	}
}

// New constructs a Runner with the given logger and poll interval.
func New(logger zerolog.Logger, pollInterval time.Duration, opts ...Option) *Runner {
	r := &Runner{
		logger:       logger,
		pollInterval: pollInterval,
		tickerFactory: func(d time.Duration) Ticker {
			return timeTicker{ticker: time.NewTicker(d)}
		},
		triggers:    make(chan engine.Trigger, triggerQueueSize),
		serviceName: "minecraft",
		planner:     engine.Reconcile,
		loadOptions: func() (map[string]string, error) { return options.Defaults(), nil },
		newPassID:   func() string { return uuid.NewString() },
	}
	r.runOnce = func(ctx context.Context, trigger engine.Trigger) error {
		_, err := r.RunOnce(ctx, trigger)
		return err
	}

	for _, opt := range opts {
		opt(r)
	}
	if r.stateStore != nil && r.stateMu == nil {
		r.stateMu = &sync.Mutex{}
	}

	return r
}

// Trigger queues a pass. It reports false when the queue is full; a full
// queue already guarantees another pass.
func (r *Runner) Trigger(trigger engine.Trigger) bool {
	select {
	case r.triggers <- trigger:
		return true
	default:
		r.logger.Warn().Str("trigger", string(trigger)).Msg("trigger queue full, dropping trigger")
		return false
	}
}

// Run starts the main loop and blocks until the context is canceled.
func (r *Runner) Run(ctx context.Context) error {
	if r.pollInterval <= 0 {
		return errors.New("poll interval must be greater than zero")
	}

	// Run immediately on startup
	r.dispatch(ctx, engine.TriggerStart)

	ticker := r.tickerFactory(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("runner stopped")
			return nil
		case trigger := <-r.triggers:
			r.dispatch(ctx, trigger)
		case <-ticker.C():
			r.dispatch(ctx, engine.TriggerUpdateStatus)
		}
	}
}

// dispatch runs one pass and logs its failure; the loop keeps going either way.
func (r *Runner) dispatch(ctx context.Context, trigger engine.Trigger) {
	err := r.runOnce(ctx, trigger)
	if err == nil {
		return
	}

	event := r.logger.Error().Err(err).Str("trigger", string(trigger))
	var passErr *PassError
	var actionErr *executor.ActionError
	switch {
	case errors.As(err, &passErr):
		event = event.Str("stage", string(passErr.Stage))
	case errors.As(err, &actionErr):
		event = event.Str("action", actionErr.Action.String())
	}
	event.Msg("pass failed")
}

// observation is everything a pass reads before planning.
type observation struct {
	state       state.State
	input       engine.Input
	current     map[string]string
	fingerprint string
	trigger     engine.Trigger
}

func (r *Runner) observe(ctx context.Context, logger zerolog.Logger, trigger engine.Trigger) (observation, error) {
	if r.stateStore == nil || r.services == nil || r.resources == nil {
		return observation{}, errors.New("runner is not fully configured")
	}

	current, err := r.loadOptions()
	if err != nil {
		return observation{}, stageError(StageOptions, err)
	}

	var loaded state.State
	err = r.withStateLock(func() error {
		var err error
		loaded, err = r.stateStore.Load(ctx)
		return err
	})
	if err != nil {
		return observation{}, stageError(StageState, err)
	}
	if loaded.Flags == nil {
		loaded.Flags = state.Flags{}
	}

	path, ready, err := executor.ResourceReady(ctx, r.resources)
	if err != nil {
		logger.Warn().Err(err).Msg("resource check failed, treating resource as unready")
		ready = false
	}

	var fingerprint string
	if ready {
		fingerprint, err = resource.Fingerprint(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("resource fingerprint failed")
		}
	}
	if fingerprint != "" && fingerprint != loaded.ResourceFingerprint && loaded.Flags.Has(engine.FlagInstalled) && trigger != engine.TriggerUpgrade {
		logger.Info().
			Str("previous", loaded.ResourceFingerprint).
			Str("current", fingerprint).
			Str("requested_trigger", string(trigger)).
			Msg("resource changed, upgrading")
		trigger = engine.TriggerUpgrade
	}

	running, err := r.services.IsRunning(ctx, r.serviceName)
	if err != nil {
		return observation{}, stageError(StageService, err)
	}

	return observation{
		state:       loaded,
		current:     current,
		fingerprint: fingerprint,
		trigger:     trigger,
		input: engine.Input{
			Flags:          loaded.Flags.Clone(),
			Config:         options.NewSnapshot(loaded.Applied, current),
			ResourceReady:  ready,
			ServiceRunning: running,
		},
	}, nil
}

// Plan computes the plan trigger would produce right now without executing it.
func (r *Runner) Plan(ctx context.Context, trigger engine.Trigger) (engine.Plan, engine.Input, error) {
	obs, err := r.observe(ctx, r.logger, trigger)
	if err != nil {
		return engine.Plan{}, engine.Input{}, err
	}
	return r.planner(obs.trigger, obs.input), obs.input, nil
}

// RunOnce executes a single reconciliation pass.
func (r *Runner) RunOnce(ctx context.Context, trigger engine.Trigger) (Result, error) {
	r.passMu.Lock()
	defer r.passMu.Unlock()

	start := time.Now()
	result := Result{PassID: r.newPassID(), Trigger: trigger}
	logger := r.logger.With().Str("pass_id", result.PassID).Str("trigger", string(trigger)).Logger()

	err := r.pass(ctx, logger, &result)
	duration := time.Since(start)

	r.metrics.ObservePass(string(result.Trigger), duration, err)
	r.tracker.RecordPass(string(result.Trigger), duration, result.Executed, err)
	if err != nil {
		return result, err
	}
	r.metrics.SetLastSuccessfulPassTimestamp(time.Now())

	logger.Info().
		Int("actions", result.Executed).
		Strs("handlers", result.Plan.Handlers).
		Dur("duration", duration).
		Msg("pass complete")
	return result, nil
}

func (r *Runner) pass(ctx context.Context, logger zerolog.Logger, result *Result) error {
	if r.executor == nil {
		return errors.New("runner has no executor")
	}

	if r.syncer != nil {
		if fetched, err := r.syncer.Sync(ctx); err != nil {
			logger.Warn().Err(err).Msg("resource sync failed, using local copy")
		} else if !fetched.NotModified {
			logger.Info().Int64("bytes", fetched.Size).Str("etag", fetched.ETag).Msg("resource refreshed")
		}
	}

	obs, err := r.observe(ctx, logger, result.Trigger)
	if err != nil {
		return err
	}
	result.Trigger = obs.trigger

	plan := r.planner(obs.trigger, obs.input)
	result.Plan = plan
	if plan.Empty() {
		logger.Debug().Msg("nothing to do")
	} else {
		logger.Info().
			Strs("handlers", plan.Handlers).
			Strs("actions", plan.Strings()).
			Strs("changed_options", obs.input.Config.ChangedNames()).
			Bool("resource_ready", obs.input.ResourceReady).
			Bool("service_running", obs.input.ServiceRunning).
			Msg("executing plan")
	}

	executed, err := r.executor.Run(ctx, plan, obs.input.Config, func(action engine.Action) error {
		linked := action.Kind == engine.LinkResource && obs.fingerprint != ""
		if len(action.Sets) == 0 && !linked {
			return nil
		}
		_, err := state.Update(ctx, r.stateStore, r.stateMu, func(s *state.State) error {
			s.Flags.Apply(action.Sets)
			// The fingerprint tracks what the link points at.
			if linked {
				s.ResourceFingerprint = obs.fingerprint
			}
			return nil
		})
		if err == nil && len(action.Sets) > 0 {
			logger.Info().Str("action", action.String()).Interface("flags", action.Sets).Msg("flags committed")
		}
		return err
	})
	result.Executed = executed
	if err != nil {
		return err
	}

	// A pending change stays pending until a pass renders it.
	if obs.input.Config.AnyChanged() && !plan.Contains(engine.RenderServiceProperties) {
		logger.Debug().Strs("changed_options", obs.input.Config.ChangedNames()).Msg("configuration change left pending")
		return nil
	}
	_, err = state.Update(ctx, r.stateStore, r.stateMu, func(s *state.State) error {
		s.Applied = obs.current
		return nil
	})
	if err != nil {
		return stageError(StageCommit, err)
	}
	return nil
}

func (r *Runner) withStateLock(fn func() error) error {
	if r.stateMu == nil {
		return fn()
	}
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return fn()
}
