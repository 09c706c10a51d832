package transition

import (
	"sort"

	"github.com/nholik/space-sentinel/internal/liveness"
	"github.com/nholik/space-sentinel/internal/state"
)

// SpaceTransition captures a change in a space's final state between runs.
type SpaceTransition struct {
	Space           string
	PreviousState   liveness.State
	CurrentState    liveness.State
	PreviousSuccess bool
	CurrentSuccess  bool
	Note            string
}

// Recovered reports whether the space went from failing to healthy.
func (t SpaceTransition) Recovered() bool {
	return !t.PreviousSuccess && t.CurrentSuccess
}

// DetectSpaceTransitions compares the previous snapshot with the current one.
// On a first run only spaces that did not end RUNNING are reported.
func DetectSpaceTransitions(prev, current state.State) []SpaceTransition {
	firstRun := len(prev.Spaces) == 0

	transitions := make([]SpaceTransition, 0)
	for id, cur := range current.Spaces {
		before, hadPrev := prev.Spaces[id]

		switch {
		case firstRun || !hadPrev:
			if cur.State == liveness.StateRunning {
				continue
			}
		case before.State == cur.State && before.Success == cur.Success:
			continue
		}

		transitions = append(transitions, SpaceTransition{
			Space:           id,
			PreviousState:   before.State,
			CurrentState:    cur.State,
			PreviousSuccess: before.Success,
			CurrentSuccess:  cur.Success,
			Note:            cur.Note,
		})
	}

	sort.Slice(transitions, func(i, j int) bool {
		return transitions[i].Space < transitions[j].Space
	})

	return transitions
}
