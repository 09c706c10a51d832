package space

import (
	"strings"
	"time"

	"github.com/nholik/space-sentinel/internal/liveness"
)

// Target identifies one monitored space.
type Target struct {
	Owner string `yaml:"owner" json:"owner"`
	Name  string `yaml:"name" json:"name"`
}

// ID returns the owner/name form used by the management API.
func (t Target) ID() string {
	return t.Owner + "/" + t.Name
}

// Subdomain returns the host label the platform serves the space under.
func (t Target) Subdomain() string {
	label := strings.ToLower(t.Owner + "-" + t.Name)
	return strings.NewReplacer("_", "-", ".", "-").Replace(label)
}

// Action names what the sentinel did with a target.
type Action string

const (
	ActionCheck     Action = "check"
	ActionKeepalive Action = "keepalive"
	ActionRebuild   Action = "rebuild"
	ActionSkip      Action = "skip"
)

// Outcome records what happened to one target during a run.
type Outcome struct {
	Target   Target         `json:"target"`
	Action   Action         `json:"action"`
	State    liveness.State `json:"state"`
	Success  bool           `json:"success"`
	Duration time.Duration  `json:"duration"`
	Note     string         `json:"note,omitempty"`
}

// Run is the ordered outcome sequence for one invocation.
type Run struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []Outcome
	Failed     bool
}

// ExitCode maps the run result onto the process exit contract.
func (r Run) ExitCode() int {
	if r.Failed {
		return ExitFailure
	}
	return ExitOK
}

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitConfig  = 2
)

// Final returns the last outcome recorded for each target, in first-seen order.
func (r Run) Final() []Outcome {
	index := make(map[Target]int, len(r.Outcomes))
	final := make([]Outcome, 0, len(r.Outcomes))
	for _, outcome := range r.Outcomes {
		if i, ok := index[outcome.Target]; ok {
			final[i] = outcome
			continue
		}
		index[outcome.Target] = len(final)
		final = append(final, outcome)
	}
	return final
}
