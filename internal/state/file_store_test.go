package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nholik/space-sentinel/internal/liveness"
	"github.com/nholik/space-sentinel/internal/space"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	store := NewFileStore(path, zerolog.Nop())

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	st := State{
		Spaces: map[string]SpaceSnapshot{
			"alice/demo": {
				Owner:       "alice",
				Name:        "demo",
				Action:      space.ActionRebuild,
				State:       liveness.StateTimeout,
				Note:        "not running after restart",
				EvaluatedAt: now,
			},
			"alice/chat": {
				Owner:       "alice",
				Name:        "chat",
				Action:      space.ActionCheck,
				State:       liveness.StateRunning,
				Success:     true,
				EvaluatedAt: now,
			},
		},
	}

	require.NoError(t, store.Save(context.Background(), st))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, loaded.Spaces, 2)
	demo := loaded.Spaces["alice/demo"]
	assert.Equal(t, liveness.StateTimeout, demo.State)
	assert.Equal(t, space.ActionRebuild, demo.Action)
	assert.False(t, demo.Success)
	assert.Equal(t, "not running after restart", demo.Note)
	assert.True(t, demo.EvaluatedAt.Equal(now), "evaluated at %s", demo.EvaluatedAt)
	assert.True(t, loaded.Spaces["alice/chat"].Success)
}

func TestFileStore_MissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing.json"), zerolog.Nop())

	st, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, st.Spaces)
	assert.Empty(t, st.Spaces)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewFileStore(path, zerolog.Nop())
	require.NoError(t, os.WriteFile(path, []byte("{not-json"), 0o600))

	st, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st.Spaces)
}

func TestFileStore_CanceledContext(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "state.json"), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, store.Save(ctx, State{}))
	_, err := store.Load(ctx)
	assert.Error(t, err)
}

func TestFromRun_KeepsFinalOutcome(t *testing.T) {
	demo := space.Target{Owner: "alice", Name: "demo"}
	finished := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	run := space.Run{
		FinishedAt: finished,
		Outcomes: []space.Outcome{
			{Target: demo, Action: space.ActionKeepalive, State: liveness.StateError},
			{Target: demo, Action: space.ActionRebuild, State: liveness.StateRunning, Success: true},
		},
	}

	got := FromRun(run).Spaces["alice/demo"]

	assert.Equal(t, space.ActionRebuild, got.Action)
	assert.Equal(t, liveness.StateRunning, got.State)
	assert.True(t, got.Success)
	assert.True(t, got.EvaluatedAt.Equal(finished))
}
