package runner

import (
	"context"
	"errors"
	"time"

	"github.com/nholik/space-sentinel/internal/hub"
	"github.com/nholik/space-sentinel/internal/liveness"
	"github.com/nholik/space-sentinel/internal/metrics"
	"github.com/nholik/space-sentinel/internal/recovery"
	"github.com/nholik/space-sentinel/internal/report"
	"github.com/nholik/space-sentinel/internal/space"
	"github.com/rs/zerolog"
)

const (
	noteGlobalTimeout     = "global timeout"
	noteInterrupted       = "interrupted"
	noteMissingCredential = "missing credential, rebuild skipped"
)

// Budget bounds a single run. It is fixed when the runner is built.
type Budget struct {
	GlobalTimeout time.Duration
	WakeWait      time.Duration
	Pacing        time.Duration
	PollInterval  time.Duration
}

// DefaultBudget returns the budget used when nothing is configured.
func DefaultBudget() Budget {
	return Budget{
		GlobalTimeout: 1800 * time.Second,
		WakeWait:      240 * time.Second,
		Pacing:        5 * time.Second,
		PollInterval:  10 * time.Second,
	}
}

// Runner walks the target list once, classifying and recovering each space in turn.
type Runner struct {
	logger     zerolog.Logger
	client     hub.Client
	controller *recovery.Controller
	keywords   liveness.Keywords
	budget     Budget
	token      string
	metrics    *metrics.Metrics
	sink       report.Sink
	pollLimit  time.Duration
	now        func() time.Time
	sleep      func(context.Context, time.Duration) bool
}

// Option customizes runner behavior.
type Option func(*Runner)

// WithClock overrides the time source and sleep function.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) bool) Option {
	return func(r *Runner) {
		r.now = now
		r.sleep = sleep
	}
}

// WithToken sets the credential used for runtime queries and restarts.
func WithToken(token string) Option {
	return func(r *Runner) {
		r.token = token
	}
}

// WithKeywords overrides the content classification phrases.
func WithKeywords(keywords liveness.Keywords) Option {
	return func(r *Runner) {
		r.keywords = keywords
	}
}

// WithMetrics records outcomes in the given collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithSink hands every finished run to sink.
func WithSink(sink report.Sink) Option {
	return func(r *Runner) {
		r.sink = sink
	}
}

// WithPollTimeout bounds each runtime query issued while waiting on a space.
func WithPollTimeout(timeout time.Duration) Option {
	return func(r *Runner) {
		r.pollLimit = timeout
	}
}

// New constructs a Runner for the given hub client and budget.
func New(logger zerolog.Logger, client hub.Client, budget Budget, opts ...Option) (*Runner, error) {
	if client == nil {
		return nil, errors.New("hub client is required")
	}
	if budget.PollInterval <= 0 {
		return nil, errors.New("poll interval must be greater than zero")
	}
	if budget.GlobalTimeout < 0 || budget.WakeWait < 0 || budget.Pacing < 0 {
		return nil, errors.New("budget durations cannot be negative")
	}

	r := &Runner{
		logger:   logger,
		client:   client,
		keywords: liveness.DefaultKeywords(),
		budget:   budget,
		now:      time.Now,
		sleep:    recovery.SleepWithContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	controllerOpts := []recovery.Option{
		recovery.WithClock(r.now, r.sleep),
		recovery.WithKeywords(r.keywords),
	}
	if r.pollLimit > 0 {
		controllerOpts = append(controllerOpts, recovery.WithPollTimeout(r.pollLimit))
	}
	r.controller = recovery.New(logger, client, controllerOpts...)
	return r, nil
}

// Run processes every target in order and returns the outcome sequence.
// The global deadline is checked before each target only; a wait already in
// progress finishes even if it overruns the budget.
func (r *Runner) Run(ctx context.Context, targets []space.Target) space.Run {
	run := space.Run{
		StartedAt: r.now(),
		Outcomes:  make([]space.Outcome, 0, len(targets)),
	}

	r.logger.Info().
		Int("targets", len(targets)).
		Bool("credential", r.token != "").
		Dur("global_timeout", r.budget.GlobalTimeout).
		Msg("run started")

	for _, target := range targets {
		logger := r.logger.With().Str("space", target.ID()).Logger()

		if note, skip := r.skipReason(ctx, run.StartedAt); skip {
			logger.Warn().Str("reason", note).Msg("skipping space")
			r.record(&run, space.Outcome{
				Target: target,
				Action: space.ActionSkip,
				State:  liveness.StateTimeout,
				Note:   note,
			})
			run.Failed = true
			continue
		}

		logger.Info().Msg("checking space")
		outcomes := r.processTarget(ctx, logger, target)
		for _, outcome := range outcomes {
			r.record(&run, outcome)
		}
		if final := outcomes[len(outcomes)-1]; !final.Success {
			run.Failed = true
		}

		r.sleep(ctx, r.budget.Pacing)
	}

	run.FinishedAt = r.now()
	r.metrics.ObserveRun(run)

	// A reporting failure is logged; it never changes the run result.
	if r.sink != nil {
		if err := r.sink.Write(run); err != nil {
			r.logger.Error().Err(err).Msg("failed to report run")
		}
	}

	r.logger.Info().
		Int("outcomes", len(run.Outcomes)).
		Bool("failed", run.Failed).
		Dur("elapsed", run.FinishedAt.Sub(run.StartedAt)).
		Msg("run finished")

	return run
}

func (r *Runner) skipReason(ctx context.Context, started time.Time) (string, bool) {
	if ctx.Err() != nil {
		return noteInterrupted, true
	}
	if r.now().Sub(started) > r.budget.GlobalTimeout {
		return noteGlobalTimeout, true
	}
	return "", false
}

func (r *Runner) record(run *space.Run, outcome space.Outcome) {
	run.Outcomes = append(run.Outcomes, outcome)
	r.metrics.ObserveOutcome(outcome)

	event := r.logger.Info()
	if !outcome.Success {
		event = r.logger.Warn()
	}
	event.
		Str("space", outcome.Target.ID()).
		Str("action", string(outcome.Action)).
		Str("state", outcome.State.String()).
		Bool("success", outcome.Success).
		Dur("duration", outcome.Duration).
		Str("note", outcome.Note).
		Msg("outcome recorded")
}

func (r *Runner) processTarget(ctx context.Context, logger zerolog.Logger, target space.Target) []space.Outcome {
	probe := r.client.Probe(ctx, target)
	runtime := r.client.Runtime(ctx, target, r.token)
	stage, observed := liveness.NormalizeStage(runtime.Stage)

	if observed {
		switch stage {
		case liveness.StateRunning:
			return []space.Outcome{{
				Target:   target,
				Action:   space.ActionCheck,
				State:    liveness.StateRunning,
				Success:  true,
				Duration: probe.Elapsed,
			}}
		case liveness.StateError:
			logger.Warn().
				Str("stage", runtime.Stage).
				Str("error_message", runtime.ErrorMessage).
				Msg("runtime reports error, rebuilding")
			detected := space.Outcome{
				Target:   target,
				Action:   space.ActionCheck,
				State:    liveness.StateError,
				Duration: probe.Elapsed,
				Note:     "stage " + runtime.Stage,
			}
			return []space.Outcome{detected, r.rebuild(ctx, target)}
		}
	}

	content := liveness.ClassifyContent(r.keywords, probe.StatusCode, probe.Body)
	switch content {
	case liveness.StateRunning, liveness.StateWakingUp:
		return r.keepalive(ctx, logger, target, probe, content)
	case liveness.StateError:
		logger.Warn().Int("status", probe.StatusCode).Msg("page reports error, rebuilding")
		detected := space.Outcome{
			Target:   target,
			Action:   space.ActionCheck,
			State:    liveness.StateError,
			Duration: probe.Elapsed,
			Note:     "error page",
		}
		return []space.Outcome{detected, r.rebuild(ctx, target)}
	}

	outcome := space.Outcome{
		Target:   target,
		Action:   space.ActionCheck,
		State:    content,
		Duration: probe.Elapsed,
	}
	if observed {
		outcome.State = liveness.Canonicalize(stage)
		if outcome.State != stage {
			outcome.Note = "stage " + string(stage)
		}
	}
	outcome.Success = outcome.State == liveness.StateRunning
	logger.Info().
		Str("stage", string(stage)).
		Str("content", string(content)).
		Msg("space state ambiguous")
	return []space.Outcome{outcome}
}

func (r *Runner) keepalive(ctx context.Context, logger zerolog.Logger, target space.Target, probe hub.ProbeSignal, content liveness.State) []space.Outcome {
	logger.Info().
		Str("content", string(content)).
		Dur("max_wait", r.budget.WakeWait).
		Msg("keeping space awake")

	final, waited := r.controller.WaitUntilRunning(ctx, target, r.token, r.budget.WakeWait, r.budget.PollInterval)

	outcome := space.Outcome{
		Target:   target,
		Action:   space.ActionKeepalive,
		State:    final,
		Duration: probe.Elapsed + waited,
	}
	if !final.Terminal() {
		outcome.State = liveness.StateWakingUp
		if final != liveness.StateWakingUp {
			outcome.Note = "last state " + final.String()
		}
	}
	outcome.Success = outcome.State != liveness.StateError
	if outcome.Success {
		return []space.Outcome{outcome}
	}

	if r.token == "" {
		outcome.Note = noteMissingCredential
		return []space.Outcome{outcome}
	}
	logger.Warn().Msg("keepalive failed, rebuilding")
	return []space.Outcome{outcome, r.rebuild(ctx, target)}
}

func (r *Runner) rebuild(ctx context.Context, target space.Target) space.Outcome {
	if r.token == "" {
		return space.Outcome{
			Target: target,
			Action: space.ActionRebuild,
			State:  liveness.StateError,
			Note:   noteMissingCredential,
		}
	}

	result := r.controller.RestartAndWait(ctx, target, r.token, r.budget.WakeWait)
	r.metrics.IncRestarts(result.Success)
	return space.Outcome{
		Target:   target,
		Action:   space.ActionRebuild,
		State:    result.State,
		Success:  result.Success,
		Duration: result.Elapsed,
		Note:     result.Note,
	}
}
