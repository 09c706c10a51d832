package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nholik/space-sentinel/internal/space"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	envOwner, envSpaceList, envToken, envGlobalTimeout, envWakeWait, envPacing,
	envRuntimeTimeout, envPollTimeout, envProbeTimeout,
	envTargetsFile, envLogLevel, envHubURL, envSpaceDomain, envReportHTML,
	envReportMarkdown, envStateFile, envMetricsFile, envTimezone, envGitHubOutput,
}

// isolate runs the test in an empty directory with every config variable unset.
func isolate(t *testing.T) string {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
	dir := t.TempDir()
	restore := mustChdir(t, dir)
	t.Cleanup(restore)
	return dir
}

func defaults(targets ...space.Target) Config {
	return Config{
		Owner:          "alice",
		Targets:        targets,
		GlobalTimeout:  defaultGlobalTimeout,
		WakeWait:       defaultWakeWait,
		Pacing:         defaultPacing,
		RuntimeTimeout: defaultRuntimeTimeout,
		PollTimeout:    defaultPollTimeout,
		ProbeTimeout:   defaultProbeTimeout,
		LogLevel:       defaultLogLevel,
		HubURL:         defaultHubURL,
		SpaceDomain:    defaultSpaceDomain,
		ReportHTML:     defaultReportHTML,
		ReportMarkdown: defaultReportMarkdown,
		StateFile:      defaultStateFile,
		Timezone:       defaultTimezone,
	}
}

func TestLoad_ValidationAndDefaults(t *testing.T) {
	demo := space.Target{Owner: "alice", Name: "demo"}
	chat := space.Target{Owner: "alice", Name: "chat"}

	cases := []struct {
		name    string
		env     map[string]string
		wantErr bool
		want    func() Config
	}{
		{
			name:    "missing owner",
			env:     map[string]string{envSpaceList: "demo"},
			wantErr: true,
		},
		{
			name:    "missing space list",
			env:     map[string]string{envOwner: "alice"},
			wantErr: true,
		},
		{
			name:    "blank space list",
			env:     map[string]string{envOwner: "alice", envSpaceList: " , ,"},
			wantErr: true,
		},
		{
			name: "defaults applied",
			env:  map[string]string{envOwner: "alice", envSpaceList: "demo, chat ,"},
			want: func() Config { return defaults(demo, chat) },
		},
		{
			name: "custom budgets and outputs",
			env: map[string]string{
				envOwner:         "alice",
				envSpaceList:     "demo",
				envToken:         " hf_secret ",
				envGlobalTimeout: "600",
				envWakeWait:      "120",
				envPacing:        "0",
				envPollTimeout:   "45",
				envProbeTimeout:  "20",
				envStateFile:     "",
				envMetricsFile:   "/tmp/sentinel.prom",
				envGitHubOutput:  "/tmp/out",
				envLogLevel:      "debug",
			},
			want: func() Config {
				cfg := defaults(demo)
				cfg.Token = "hf_secret"
				cfg.GlobalTimeout = 600 * time.Second
				cfg.WakeWait = 120 * time.Second
				cfg.Pacing = 0
				cfg.PollTimeout = 45 * time.Second
				cfg.ProbeTimeout = 20 * time.Second
				cfg.StateFile = ""
				cfg.MetricsFile = "/tmp/sentinel.prom"
				cfg.GitHubOutput = "/tmp/out"
				cfg.LogLevel = "debug"
				return cfg
			},
		},
		{
			name:    "non numeric timeout",
			env:     map[string]string{envOwner: "alice", envSpaceList: "demo", envGlobalTimeout: "30m"},
			wantErr: true,
		},
		{
			name:    "negative pacing",
			env:     map[string]string{envOwner: "alice", envSpaceList: "demo", envPacing: "-1"},
			wantErr: true,
		},
		{
			name:    "zero probe timeout",
			env:     map[string]string{envOwner: "alice", envSpaceList: "demo", envProbeTimeout: "0"},
			wantErr: true,
		},
		{
			name:    "zero poll timeout",
			env:     map[string]string{envOwner: "alice", envSpaceList: "demo", envPollTimeout: "0"},
			wantErr: true,
		},
		{
			name:    "duplicate space",
			env:     map[string]string{envOwner: "alice", envSpaceList: "demo,demo"},
			wantErr: true,
		},
		{
			name:    "slash in name",
			env:     map[string]string{envOwner: "alice", envSpaceList: "bob/demo"},
			wantErr: true,
		},
		{
			name:    "invalid hub url",
			env:     map[string]string{envOwner: "alice", envSpaceList: "demo", envHubURL: "huggingface.co"},
			wantErr: true,
		},
		{
			name:    "invalid timezone",
			env:     map[string]string{envOwner: "alice", envSpaceList: "demo", envTimezone: "Mars/Olympus"},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			isolate(t)
			for key, value := range tc.env {
				t.Setenv(key, value)
			}

			got, err := Load()
			if tc.wantErr {
				require.Error(t, err)
				var cfgErr *Error
				assert.True(t, errors.As(err, &cfgErr), "expected config.Error, got %T", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want(), got)
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	dotenv := "USERNAME=alice\nSPACE_LIST=demo\nHF_TOKEN=from-dotenv\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(dotenv), 0o600))
	t.Setenv(envToken, "from-env")
	t.Cleanup(func() {
		_ = os.Unsetenv(envOwner)
		_ = os.Unsetenv(envSpaceList)
	})

	got, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "alice", got.Owner)
	assert.Equal(t, []space.Target{{Owner: "alice", Name: "demo"}}, got.Targets)
	assert.Equal(t, "from-env", got.Token, "process env must win over .env")
}

func TestLoad_TargetsFileMergesWithList(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "spaces.yaml")
	doc := "spaces:\n  - name: chat\n  - name: shared\n    owner: team\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	t.Setenv(envOwner, "alice")
	t.Setenv(envSpaceList, "demo")
	t.Setenv(envTargetsFile, path)

	got, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []space.Target{
		{Owner: "alice", Name: "demo"},
		{Owner: "alice", Name: "chat"},
		{Owner: "team", Name: "shared"},
	}, got.Targets)
}

func TestLoad_TargetsFileAlone(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "spaces.yaml")
	require.NoError(t, os.WriteFile(path, []byte("spaces:\n  - name: chat\n"), 0o600))

	t.Setenv(envOwner, "alice")
	t.Setenv(envTargetsFile, path)

	got, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []space.Target{{Owner: "alice", Name: "chat"}}, got.Targets)
}

func TestParseSpaceList(t *testing.T) {
	assert.Empty(t, ParseSpaceList("alice", ""))
	assert.Equal(t, []space.Target{{Owner: "alice", Name: "a"}, {Owner: "alice", Name: "b"}}, ParseSpaceList("alice", " a,,b "))
}

func mustChdir(t *testing.T, dir string) func() {
	t.Helper()
	original, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	return func() {
		require.NoError(t, os.Chdir(original))
	}
}
