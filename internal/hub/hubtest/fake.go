// Package hubtest provides in-memory stand-ins for the hub client and the clock.
package hubtest

import (
	"context"
	"sync"
	"time"

	"github.com/nholik/space-sentinel/internal/hub"
	"github.com/nholik/space-sentinel/internal/space"
)

// Clock is a manual clock. Sleep advances it instead of blocking.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock starting at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Sleep advances the clock by d unless ctx is already done.
func (c *Clock) Sleep(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	c.Advance(d)
	return true
}

// Fake is a scripted hub.Client. Each target replays its stage and probe
// scripts in order; the last entry repeats once a script is exhausted.
type Fake struct {
	mu sync.Mutex

	// Stages scripts runtime stage tokens per target name. "" means no signal.
	Stages map[string][]string
	// Probes scripts content probe results per target name.
	Probes map[string][]hub.ProbeSignal
	// RestartErr is returned by Restart for the given target name.
	RestartErr map[string]error

	// Clock, when set, is advanced by Latency on every call.
	Clock   *Clock
	Latency time.Duration

	runtimeCalls    map[string]int
	runtimeTimeouts map[string]time.Duration
	probeCalls      map[string]int
	restarts        []space.Target
}

var _ hub.Client = (*Fake)(nil)

func (f *Fake) tick() {
	if f.Clock != nil && f.Latency > 0 {
		f.Clock.Advance(f.Latency)
	}
}

// Runtime implements hub.Client.
func (f *Fake) Runtime(ctx context.Context, target space.Target, _ string) hub.RuntimeSignal {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tick()
	if f.runtimeCalls == nil {
		f.runtimeCalls = map[string]int{}
		f.runtimeTimeouts = map[string]time.Duration{}
	}
	if deadline, ok := ctx.Deadline(); ok {
		f.runtimeTimeouts[target.Name] = time.Until(deadline)
	} else {
		delete(f.runtimeTimeouts, target.Name)
	}
	n := f.runtimeCalls[target.Name]
	f.runtimeCalls[target.Name] = n + 1
	return hub.RuntimeSignal{Stage: pick(f.Stages[target.Name], n)}
}

// RuntimeTimeout reports the time left on the context of the last runtime
// query for name, and whether that context had a deadline at all.
func (f *Fake) RuntimeTimeout(name string) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.runtimeTimeouts[name]
	return d, ok
}

// Probe implements hub.Client.
func (f *Fake) Probe(_ context.Context, target space.Target) hub.ProbeSignal {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tick()
	if f.probeCalls == nil {
		f.probeCalls = map[string]int{}
	}
	n := f.probeCalls[target.Name]
	f.probeCalls[target.Name] = n + 1
	probe := pick(f.Probes[target.Name], n)
	if probe.StatusCode == 0 {
		probe.StatusCode = 599
		probe.Body = "no route to host"
	}
	probe.Elapsed = f.Latency
	return probe
}

// Restart implements hub.Client.
// Every call is recorded, including ones made without a token.
func (f *Fake) Restart(_ context.Context, target space.Target, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tick()
	f.restarts = append(f.restarts, target)
	if token == "" {
		return hub.ErrMissingCredential
	}
	return f.RestartErr[target.Name]
}

// Restarts returns every target Restart was called for.
func (f *Fake) Restarts() []space.Target {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]space.Target(nil), f.restarts...)
}

// RuntimeCalls returns how many runtime queries a target received.
func (f *Fake) RuntimeCalls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runtimeCalls[name]
}

// ProbeCalls returns how many content probes a target received.
func (f *Fake) ProbeCalls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probeCalls[name]
}

func pick[T any](script []T, n int) T {
	var zero T
	if len(script) == 0 {
		return zero
	}
	if n >= len(script) {
		return script[len(script)-1]
	}
	return script[n]
}
