package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nholik/space-sentinel/internal/config"
	"github.com/nholik/space-sentinel/internal/hub"
	"github.com/nholik/space-sentinel/internal/liveness"
	"github.com/nholik/space-sentinel/internal/logging"
	"github.com/nholik/space-sentinel/internal/metrics"
	"github.com/nholik/space-sentinel/internal/report"
	"github.com/nholik/space-sentinel/internal/runner"
	"github.com/nholik/space-sentinel/internal/space"
	"github.com/nholik/space-sentinel/internal/state"
	"github.com/nholik/space-sentinel/internal/transition"
	"github.com/rs/zerolog"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, newHubClient)
	stop()
	os.Exit(code)
}

type clientFactory func(cfg config.Config, logger zerolog.Logger) hub.Client

func newHubClient(cfg config.Config, logger zerolog.Logger) hub.Client {
	return hub.NewHTTPClient(logger,
		hub.WithBaseURL(cfg.HubURL),
		hub.WithSpaceDomain(cfg.SpaceDomain),
		hub.WithTimeouts(hub.Timeouts{
			Runtime: cfg.RuntimeTimeout,
			Probe:   cfg.ProbeTimeout,
			Restart: hub.DefaultTimeouts.Restart,
		}),
	)
}

func run(ctx context.Context, newClient clientFactory) int {
	cfg, err := config.Load()
	if err != nil {
		logger := logging.New()
		logger.Error().Err(err).Msg("invalid configuration")
		return space.ExitConfig
	}

	logger := logging.NewWithLevel(cfg.LogLevel)
	logger.Info().
		Str("owner", cfg.Owner).
		Int("targets", len(cfg.Targets)).
		Bool("credential", cfg.Token != "").
		Dur("global_timeout", cfg.GlobalTimeout).
		Msg("space-sentinel starting")

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error().Err(err).Str("timezone", cfg.Timezone).Msg("invalid report timezone")
		return space.ExitConfig
	}

	budget := runner.DefaultBudget()
	budget.GlobalTimeout = cfg.GlobalTimeout
	budget.WakeWait = cfg.WakeWait
	budget.Pacing = cfg.Pacing

	m := metrics.New()
	r, err := runner.New(logger, newClient(cfg, logger), budget,
		runner.WithToken(cfg.Token),
		runner.WithMetrics(m),
		runner.WithPollTimeout(cfg.PollTimeout),
		runner.WithSink(report.NewWriter(logger, cfg.ReportHTML, cfg.ReportMarkdown, location)),
	)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build runner")
		return space.ExitConfig
	}

	result := r.Run(ctx, cfg.Targets)

	if cfg.StateFile != "" {
		// The snapshot must still be saved after an interrupt.
		recordTransitions(context.WithoutCancel(ctx), logger, state.NewFileStore(cfg.StateFile, logger), result)
	}

	if cfg.MetricsFile != "" {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Error().Err(err).Str("path", cfg.MetricsFile).Msg("failed to write metrics textfile")
		}
	}

	code := result.ExitCode()
	if err := report.AppendOutput(cfg.GitHubOutput, "exit_code", strconv.Itoa(code)); err != nil {
		logger.Error().Err(err).Str("path", cfg.GitHubOutput).Msg("failed to write ci output")
	}

	logger.Info().
		Int("exit_code", code).
		Int("outcomes", len(result.Outcomes)).
		Dur("elapsed", result.FinishedAt.Sub(result.StartedAt)).
		Msg("space-sentinel finished")
	return code
}

func recordTransitions(ctx context.Context, logger zerolog.Logger, store state.Store, result space.Run) {
	prev, err := store.Load(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load previous state")
		prev = state.State{}
	}

	current := state.FromRun(result)
	for _, t := range transition.DetectSpaceTransitions(prev, current) {
		event := logger.Warn()
		if t.Recovered() || t.CurrentState == liveness.StateRunning {
			event = logger.Info()
		}
		event.
			Str("space", t.Space).
			Str("from", t.PreviousState.String()).
			Str("to", t.CurrentState.String()).
			Bool("success", t.CurrentSuccess).
			Str("note", t.Note).
			Msg("space state changed")
	}

	if err := store.Save(ctx, current); err != nil {
		logger.Error().Err(err).Msg("failed to save state")
	}
}
