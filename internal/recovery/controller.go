package recovery

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nholik/space-sentinel/internal/hub"
	"github.com/nholik/space-sentinel/internal/liveness"
	"github.com/nholik/space-sentinel/internal/space"
	"github.com/rs/zerolog"
)

const (
	// MinRestartWait is the shortest a restart is ever waited on.
	MinRestartWait = 480 * time.Second
	// RestartPollInterval is the poll interval used after a restart.
	RestartPollInterval = 15 * time.Second
	// DefaultPollTimeout bounds a runtime query issued inside a wait loop.
	DefaultPollTimeout = 60 * time.Second
)

// Result describes how a restart attempt ended.
type Result struct {
	Success bool
	State   liveness.State
	Elapsed time.Duration
	Note    string
}

// Controller waits for spaces to come up and restarts them when they do not.
type Controller struct {
	logger       zerolog.Logger
	client       hub.Client
	keywords     liveness.Keywords
	pollTimeout  time.Duration
	restartFloor time.Duration
	restartPoll  time.Duration
	now          func() time.Time
	sleep        func(context.Context, time.Duration) bool
}

// Option customizes Controller behavior.
type Option func(*Controller)

// WithClock overrides the time source and sleep function.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) bool) Option {
	return func(c *Controller) {
		c.now = now
		c.sleep = sleep
	}
}

// WithKeywords overrides the content classification phrases.
func WithKeywords(keywords liveness.Keywords) Option {
	return func(c *Controller) {
		c.keywords = keywords
	}
}

// WithPollTimeout overrides the runtime query timeout used while polling.
func WithPollTimeout(timeout time.Duration) Option {
	return func(c *Controller) {
		c.pollTimeout = timeout
	}
}

// New constructs a Controller backed by the given hub client.
func New(logger zerolog.Logger, client hub.Client, opts ...Option) *Controller {
	c := &Controller{
		logger:       logger,
		client:       client,
		keywords:     liveness.DefaultKeywords(),
		pollTimeout:  DefaultPollTimeout,
		restartFloor: MinRestartWait,
		restartPoll:  RestartPollInterval,
		now:          time.Now,
		sleep:        SleepWithContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RestartWait returns the wait ceiling applied after a restart.
func (c *Controller) RestartWait(requested time.Duration) time.Duration {
	if requested < c.restartFloor {
		return c.restartFloor
	}
	return requested
}

// WaitUntilRunning polls the runtime resource until the space is RUNNING or ERROR,
// or until maxWait has elapsed on the wall clock. Between polls the public page
// refines a provisional state that is returned when time runs out. The deadline
// is checked after every outbound call, so the call returns within maxWait plus
// one poll interval plus one call timeout.
func (c *Controller) WaitUntilRunning(ctx context.Context, target space.Target, token string, maxWait, poll time.Duration) (liveness.State, time.Duration) {
	start := c.now()
	last := liveness.StateUnknown
	schedule := backoff.WithContext(backoff.NewConstantBackOff(poll), ctx)

	logger := c.logger.With().Str("space", target.ID()).Logger()

	for {
		stage, observed := c.pollRuntime(ctx, target, token)
		if observed && stage.Terminal() {
			return stage, c.now().Sub(start)
		}

		if c.now().Sub(start) > maxWait {
			return finalState(last, stage, observed), c.now().Sub(start)
		}

		probe := c.client.Probe(ctx, target)
		last = liveness.ClassifyContent(c.keywords, probe.StatusCode, probe.Body)

		// A slow probe must not buy another sleep and runtime query.
		if c.now().Sub(start) > maxWait {
			return finalState(last, stage, observed), c.now().Sub(start)
		}

		logger.Debug().
			Str("stage", string(stage)).
			Int("status", probe.StatusCode).
			Str("provisional", string(last)).
			Dur("elapsed", c.now().Sub(start)).
			Msg("waiting for space")

		wait := schedule.NextBackOff()
		if wait == backoff.Stop || !c.sleep(ctx, wait) {
			logger.Warn().Msg("wait interrupted")
			return finalState(last, stage, observed), c.now().Sub(start)
		}
	}
}

func (c *Controller) pollRuntime(ctx context.Context, target space.Target, token string) (liveness.State, bool) {
	pollCtx := ctx
	if c.pollTimeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, c.pollTimeout)
		defer cancel()
	}
	signal := c.client.Runtime(pollCtx, target, token)
	return liveness.NormalizeStage(signal.Stage)
}

func finalState(last, stage liveness.State, observed bool) liveness.State {
	if last != liveness.StateUnknown {
		return last
	}
	if observed {
		return liveness.Canonicalize(stage)
	}
	return liveness.StateTimeout
}

// RestartAndWait issues a restart and waits for the space to reach RUNNING.
// The wait ceiling is never below MinRestartWait. A rejected restart is not retried.
func (c *Controller) RestartAndWait(ctx context.Context, target space.Target, token string, waitAfter time.Duration) Result {
	start := c.now()
	logger := c.logger.With().Str("space", target.ID()).Logger()

	if token == "" {
		logger.Warn().Msg("restart requested without credential")
		return Result{State: liveness.StateError, Note: "missing credential, restart skipped"}
	}

	if err := c.client.Restart(ctx, target, token); err != nil {
		note := "restart exception: " + err.Error()
		var statusErr *hub.StatusError
		if errors.As(err, &statusErr) {
			note = statusErr.Error()
		}
		logger.Error().Err(err).Msg("restart rejected")
		return Result{State: liveness.StateError, Elapsed: c.now().Sub(start), Note: note}
	}

	ceiling := c.RestartWait(waitAfter)
	logger.Info().Dur("max_wait", ceiling).Msg("restart accepted, waiting for space")

	state, _ := c.WaitUntilRunning(ctx, target, token, ceiling, c.restartPoll)
	result := Result{
		Success: state == liveness.StateRunning,
		State:   state,
		Elapsed: c.now().Sub(start),
	}
	if !result.Success {
		result.Note = "not running after restart"
	}
	return result
}

// SleepWithContext sleeps for wait and reports false if ctx ended first.
func SleepWithContext(ctx context.Context, wait time.Duration) bool {
	if wait <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
