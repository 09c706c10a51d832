package liveness

// State is the canonical liveness of a space.
type State string

const (
	StateRunning  State = "RUNNING"
	StateWakingUp State = "WAKING_UP"
	StateSleeping State = "SLEEPING"
	StateError    State = "ERROR"
	StateUnknown  State = "UNKNOWN"
	StateTimeout  State = "TIMEOUT"
)

// String implements fmt.Stringer.
func (s State) String() string {
	if s == "" {
		return string(StateUnknown)
	}
	return string(s)
}

// Canonical reports whether s is one of the canonical states.
func (s State) Canonical() bool {
	switch s {
	case StateRunning, StateWakingUp, StateSleeping, StateError, StateUnknown, StateTimeout:
		return true
	default:
		return false
	}
}

// Terminal reports whether a wait loop can stop on s without waiting for the ceiling.
func (s State) Terminal() bool {
	return s == StateRunning || s == StateError
}
