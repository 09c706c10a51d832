package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/nholik/space-sentinel/internal/config"
	"github.com/nholik/space-sentinel/internal/hub"
	"github.com/nholik/space-sentinel/internal/hub/hubtest"
	"github.com/nholik/space-sentinel/internal/space"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"USERNAME", "SPACE_LIST", "HF_TOKEN", "GLOBAL_TIMEOUT_SECONDS", "WAKEUP_WAIT_SECONDS",
	"BETWEEN_REQUESTS_SECONDS", "SS_RUNTIME_TIMEOUT_SECONDS", "SS_POLL_TIMEOUT_SECONDS",
	"SS_PROBE_TIMEOUT_SECONDS", "SS_TARGETS_FILE", "SS_LOG_LEVEL", "SS_HUB_URL", "SS_SPACE_DOMAIN",
	"SS_REPORT_HTML", "SS_REPORT_MARKDOWN", "SS_STATE_FILE", "SS_METRICS_FILE", "SS_REPORT_TIMEZONE",
	"GITHUB_OUTPUT",
}

// isolate clears the sentinel environment and runs the test from an empty directory.
func isolate(t *testing.T) string {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
	dir := t.TempDir()
	original, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(original))
	})
	t.Setenv("SS_LOG_LEVEL", "error")
	return dir
}

func fakeFactory(fake *hubtest.Fake) clientFactory {
	return func(config.Config, zerolog.Logger) hub.Client {
		return fake
	}
}

func TestRun_ConfigErrorsExitBeforeAnyOutcome(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing owner", env: map[string]string{"SPACE_LIST": "demo"}},
		{name: "empty space list", env: map[string]string{"USERNAME": "alice", "SPACE_LIST": " , "}},
		{name: "zero probe timeout", env: map[string]string{"USERNAME": "alice", "SPACE_LIST": "demo", "SS_PROBE_TIMEOUT_SECONDS": "0"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := isolate(t)
			output := filepath.Join(dir, "github_output")
			t.Setenv("GITHUB_OUTPUT", output)
			for key, value := range tc.env {
				t.Setenv(key, value)
			}

			fake := &hubtest.Fake{}
			assert.Equal(t, space.ExitConfig, run(context.Background(), fakeFactory(fake)))
			assert.Zero(t, fake.RuntimeCalls("demo"))
			assert.Zero(t, fake.ProbeCalls("demo"))
			for _, name := range []string{"README.md", "docs", "github_output"} {
				assert.NoFileExists(t, filepath.Join(dir, name))
				assert.NoDirExists(t, filepath.Join(dir, name))
			}
		})
	}
}

func TestRun_HealthyRunWritesOutputs(t *testing.T) {
	dir := isolate(t)
	t.Setenv("USERNAME", "alice")
	t.Setenv("SPACE_LIST", "demo,chat")
	t.Setenv("BETWEEN_REQUESTS_SECONDS", "0")
	t.Setenv("SS_METRICS_FILE", filepath.Join(dir, "sentinel.prom"))
	t.Setenv("GITHUB_OUTPUT", filepath.Join(dir, "github_output"))

	fake := &hubtest.Fake{
		Stages: map[string][]string{"demo": {"RUNNING"}, "chat": {"RUNNING"}},
		Probes: map[string][]hub.ProbeSignal{
			"demo": {{StatusCode: 200, Body: "ok"}},
			"chat": {{StatusCode: 200, Body: "ok"}},
		},
	}

	require.Equal(t, space.ExitOK, run(context.Background(), fakeFactory(fake)))

	html := readFile(t, filepath.Join(dir, "docs", "index.html"))
	assert.Contains(t, html, "demo:")
	assert.Contains(t, html, "chat:")
	assert.Contains(t, readFile(t, filepath.Join(dir, "README.md")), "| demo | check | RUNNING |")
	assert.Equal(t, "exit_code=0\n", readFile(t, filepath.Join(dir, "github_output")))
	assert.Contains(t, readFile(t, filepath.Join(dir, "sentinel.prom")), "space_sentinel_outcomes_total")

	var snapshot struct {
		Spaces map[string]json.RawMessage `json:"spaces"`
	}
	require.NoError(t, json.Unmarshal([]byte(readFile(t, filepath.Join(dir, "docs", "state.json"))), &snapshot))
	assert.Len(t, snapshot.Spaces, 2)
	assert.Empty(t, fake.Restarts(), "healthy run must not restart")
}

func TestRun_FailureWithoutCredentialExitsOne(t *testing.T) {
	dir := isolate(t)
	t.Setenv("USERNAME", "alice")
	t.Setenv("SPACE_LIST", "broken")
	t.Setenv("BETWEEN_REQUESTS_SECONDS", "0")
	t.Setenv("GITHUB_OUTPUT", filepath.Join(dir, "github_output"))

	fake := &hubtest.Fake{
		Stages: map[string][]string{"broken": {"RUNTIME_ERROR"}},
		Probes: map[string][]hub.ProbeSignal{"broken": {{StatusCode: 503, Body: "down"}}},
	}

	assert.Equal(t, space.ExitFailure, run(context.Background(), fakeFactory(fake)))
	assert.Empty(t, fake.Restarts(), "restart must not be issued without a credential")
	assert.Equal(t, "exit_code=1\n", readFile(t, filepath.Join(dir, "github_output")))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
