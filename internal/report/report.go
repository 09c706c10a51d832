package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nholik/space-sentinel/internal/space"
	"github.com/rs/zerolog"
)

const timestampLayout = "2006-01-02 15:04:05"

// Sink consumes the outcome sequence of a finished run.
type Sink interface {
	Write(run space.Run) error
}

// Writer persists a run as an HTML log entry and a Markdown summary.
type Writer struct {
	logger       zerolog.Logger
	htmlPath     string
	markdownPath string
	location     *time.Location
}

// NewWriter constructs a Writer. Empty paths disable the matching document.
func NewWriter(logger zerolog.Logger, htmlPath, markdownPath string, location *time.Location) *Writer {
	if location == nil {
		location = time.UTC
	}
	return &Writer{
		logger:       logger,
		htmlPath:     htmlPath,
		markdownPath: markdownPath,
		location:     location,
	}
}

// Write implements Sink. Both documents are attempted even if one fails.
func (w *Writer) Write(run space.Run) error {
	timestamp := w.Timestamp(run)
	rows := buildRows(run.Outcomes)

	var errs []error
	if w.htmlPath != "" {
		if err := writeHTML(w.htmlPath, timestamp, rows); err != nil {
			errs = append(errs, fmt.Errorf("write html report: %w", err))
		} else {
			w.logger.Info().Str("path", w.htmlPath).Msg("html report updated")
		}
	}
	if w.markdownPath != "" {
		if err := writeMarkdown(w.markdownPath, timestamp, rows); err != nil {
			errs = append(errs, fmt.Errorf("write markdown report: %w", err))
		} else {
			w.logger.Info().Str("path", w.markdownPath).Msg("markdown report updated")
		}
	}
	return errors.Join(errs...)
}

// Timestamp formats the run's finish time in the writer's location.
func (w *Writer) Timestamp(run space.Run) string {
	at := run.FinishedAt
	if at.IsZero() {
		at = time.Now()
	}
	return at.In(w.location).Format(timestampLayout)
}

type row struct {
	Space    string
	Action   string
	State    string
	Success  bool
	Duration string
	Note     string
}

func (r row) Icon() string {
	if r.Success {
		return "✅"
	}
	return "❌"
}

func (r row) Class() string {
	if r.Success {
		return "success"
	}
	return "failure"
}

// buildRows labels spaces by name, or by owner/name once owners differ.
func buildRows(outcomes []space.Outcome) []row {
	label := func(t space.Target) string { return t.Name }
	for _, outcome := range outcomes {
		if outcome.Target.Owner != outcomes[0].Target.Owner {
			label = space.Target.ID
			break
		}
	}

	rows := make([]row, 0, len(outcomes))
	for _, outcome := range outcomes {
		rows = append(rows, row{
			Space:    label(outcome.Target),
			Action:   string(outcome.Action),
			State:    outcome.State.String(),
			Success:  outcome.Success,
			Duration: fmt.Sprintf("%.1fs", outcome.Duration.Seconds()),
			Note:     strings.TrimSpace(outcome.Note),
		})
	}
	return rows
}
