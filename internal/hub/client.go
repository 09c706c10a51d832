package hub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nholik/space-sentinel/internal/space"
)

// ErrMissingCredential is returned when a restart is requested without a token.
var ErrMissingCredential = errors.New("hub credential is required")

// RuntimeSignal is the result of querying a space's runtime resource.
// An empty Stage means no signal was available.
type RuntimeSignal struct {
	Stage        string
	ErrorMessage string
	StatusCode   int
}

// Present reports whether the runtime query produced a stage token.
func (s RuntimeSignal) Present() bool {
	return s.Stage != ""
}

// ProbeSignal is the result of fetching a space's public page.
type ProbeSignal struct {
	StatusCode int
	Body       string
	Elapsed    time.Duration
}

// StatusError reports a management API call rejected with an HTTP status.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s http %d", e.Op, e.StatusCode)
}

// Client defines the hosting platform operations the sentinel needs.
// Runtime and Probe never fail; transport problems degrade into empty signals.
type Client interface {
	// Runtime queries the management API for the space's lifecycle stage.
	Runtime(ctx context.Context, target space.Target, token string) RuntimeSignal

	// Probe fetches the space's public address.
	Probe(ctx context.Context, target space.Target) ProbeSignal

	// Restart asks the platform to restart the space.
	Restart(ctx context.Context, target space.Target, token string) error
}
