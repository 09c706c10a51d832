package state

import (
	"context"
	"time"

	"github.com/nholik/space-sentinel/internal/liveness"
	"github.com/nholik/space-sentinel/internal/space"
)

// SpaceSnapshot captures the final outcome of a space in the last run.
type SpaceSnapshot struct {
	Owner       string         `json:"owner"`
	Name        string         `json:"name"`
	Action      space.Action   `json:"action"`
	State       liveness.State `json:"state"`
	Success     bool           `json:"success"`
	Note        string         `json:"note,omitempty"`
	EvaluatedAt time.Time      `json:"evaluated_at"`
}

// State stores snapshots keyed by owner/name.
type State struct {
	Spaces map[string]SpaceSnapshot `json:"spaces"`
}

// FromRun builds a state from the final outcome of each target in run.
func FromRun(run space.Run) State {
	st := State{Spaces: make(map[string]SpaceSnapshot, len(run.Outcomes))}
	for _, outcome := range run.Final() {
		st.Spaces[outcome.Target.ID()] = SpaceSnapshot{
			Owner:       outcome.Target.Owner,
			Name:        outcome.Target.Name,
			Action:      outcome.Action,
			State:       outcome.State,
			Success:     outcome.Success,
			Note:        outcome.Note,
			EvaluatedAt: run.FinishedAt,
		}
	}
	return st
}

// Store defines the interface for persisting state.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}
