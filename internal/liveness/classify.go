package liveness

import (
	"net/http"
	"strings"
)

// TransportFailureStatus marks a content probe that never got an HTTP response.
const TransportFailureStatus = 599

var defaultErrorPageKeywords = []string{
	"application error",
	"runtime error",
	"traceback (most recent call last)",
	"build failed",
	"build error",
	"error id:",
	"internal server error",
}

var defaultWakingUpKeywords = []string{
	"waking up",
	"is waking up",
	"space is loading",
	"loading space",
	"container is starting",
	"building",
	"launching",
	"runtime is starting",
	"runtime starting",
	"starting",
}

// Keywords holds the page phrases used to classify raw content.
// The zero value matches nothing.
type Keywords struct {
	errorPage []string
	wakingUp  []string
}

// NewKeywords copies and lowercases the given phrase lists. Blank phrases are dropped.
func NewKeywords(errorPage, wakingUp []string) Keywords {
	return Keywords{
		errorPage: lowerAll(errorPage),
		wakingUp:  lowerAll(wakingUp),
	}
}

// DefaultKeywords returns the built-in error page and waking up phrases.
func DefaultKeywords() Keywords {
	return NewKeywords(defaultErrorPageKeywords, defaultWakingUpKeywords)
}

// ErrorPage returns a copy of the error page phrases.
func (k Keywords) ErrorPage() []string {
	return append([]string(nil), k.errorPage...)
}

// WakingUp returns a copy of the waking up phrases.
func (k Keywords) WakingUp() []string {
	return append([]string(nil), k.wakingUp...)
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	return out
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

var stageTable = map[string]State{
	"RUNNING":          StateRunning,
	"RUNNING_BUILDING": StateRunning,
	"BUILDING":         StateWakingUp,
	"STARTING":         StateWakingUp,
	"RUNTIME_STARTING": StateWakingUp,
	"SLEEPING":         StateSleeping,
	"STOPPED":          StateSleeping,
}

// NormalizeStage maps a management API stage token onto a canonical state.
// Unrecognized tokens come back uppercased so callers can still see them.
// An empty stage yields ok == false.
func NormalizeStage(stage string) (State, bool) {
	token := strings.ToUpper(strings.TrimSpace(stage))
	if token == "" {
		return "", false
	}
	if state, ok := stageTable[token]; ok {
		return state, true
	}
	if strings.Contains(token, "ERROR") || strings.Contains(token, "FAIL") {
		return StateError, true
	}
	return State(token), true
}

// ClassifyContent classifies a space from the status and body of its public page.
// Server errors win over any keyword; error phrases win over waking up phrases.
func ClassifyContent(keywords Keywords, statusCode int, body string) State {
	if statusCode >= http.StatusInternalServerError {
		return StateError
	}
	lower := strings.ToLower(body)
	if containsAny(lower, keywords.errorPage) {
		return StateError
	}
	if containsAny(lower, keywords.wakingUp) {
		return StateWakingUp
	}
	switch {
	case statusCode >= 200 && statusCode < 300:
		return StateRunning
	case statusCode >= http.StatusBadRequest:
		return StateError
	default:
		return StateUnknown
	}
}

// Canonicalize folds a passed-through stage token into the canonical set.
func Canonicalize(state State) State {
	if state.Canonical() {
		return state
	}
	return StateUnknown
}
