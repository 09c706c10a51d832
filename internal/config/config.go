package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/nholik/space-sentinel/internal/space"
)

const (
	envOwner          = "USERNAME"
	envSpaceList      = "SPACE_LIST"
	envToken          = "HF_TOKEN"
	envGlobalTimeout  = "GLOBAL_TIMEOUT_SECONDS"
	envWakeWait       = "WAKEUP_WAIT_SECONDS"
	envPacing         = "BETWEEN_REQUESTS_SECONDS"
	envRuntimeTimeout = "SS_RUNTIME_TIMEOUT_SECONDS"
	envPollTimeout    = "SS_POLL_TIMEOUT_SECONDS"
	envProbeTimeout   = "SS_PROBE_TIMEOUT_SECONDS"
	envTargetsFile    = "SS_TARGETS_FILE"
	envLogLevel       = "SS_LOG_LEVEL"
	envHubURL         = "SS_HUB_URL"
	envSpaceDomain    = "SS_SPACE_DOMAIN"
	envReportHTML     = "SS_REPORT_HTML"
	envReportMarkdown = "SS_REPORT_MARKDOWN"
	envStateFile      = "SS_STATE_FILE"
	envMetricsFile    = "SS_METRICS_FILE"
	envTimezone       = "SS_REPORT_TIMEZONE"
	envGitHubOutput   = "GITHUB_OUTPUT"
)

const (
	defaultGlobalTimeout  = 1800 * time.Second
	defaultWakeWait       = 240 * time.Second
	defaultPacing         = 5 * time.Second
	defaultRuntimeTimeout = 30 * time.Second
	defaultPollTimeout    = 60 * time.Second
	defaultProbeTimeout   = 60 * time.Second
	defaultLogLevel       = "info"
	defaultHubURL         = "https://huggingface.co"
	defaultSpaceDomain    = "hf.space"
	defaultReportHTML     = "docs/index.html"
	defaultReportMarkdown = "README.md"
	defaultStateFile      = "docs/state.json"
	defaultTimezone       = "Asia/Shanghai"
)

// Error marks a configuration problem that must stop the run before any target is touched.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return "config: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func invalid(format string, args ...any) error {
	return &Error{Err: fmt.Errorf(format, args...)}
}

// Config describes runtime configuration loaded from the environment.
type Config struct {
	Owner          string
	Targets        []space.Target
	Token          string
	GlobalTimeout  time.Duration
	WakeWait       time.Duration
	Pacing         time.Duration
	RuntimeTimeout time.Duration
	PollTimeout    time.Duration
	ProbeTimeout   time.Duration
	LogLevel       string
	HubURL         string
	SpaceDomain    string
	ReportHTML     string
	ReportMarkdown string
	StateFile      string
	MetricsFile    string
	Timezone       string
	GitHubOutput   string
}

// Load reads configuration from environment variables and a local .env file if present.
// Existing environment variables take precedence over values in .env.
func Load() (Config, error) {
	if err := loadDotEnvIfPresent(".env"); err != nil {
		return Config{}, &Error{Err: fmt.Errorf("load .env: %w", err)}
	}

	cfg := Config{
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

	cfg.Owner, _ = lookupTrimmed(envOwner)
	cfg.Token, _ = lookupTrimmed(envToken)

	seconds := []struct {
		key string
		dst *time.Duration
	}{
		{envGlobalTimeout, &cfg.GlobalTimeout},
		{envWakeWait, &cfg.WakeWait},
		{envPacing, &cfg.Pacing},
		{envRuntimeTimeout, &cfg.RuntimeTimeout},
		{envPollTimeout, &cfg.PollTimeout},
		{envProbeTimeout, &cfg.ProbeTimeout},
	}
	for _, s := range seconds {
		if err := lookupSeconds(s.key, s.dst); err != nil {
			return Config{}, err
		}
	}

	// Every outbound call needs a bound; zero would mean none.
	timeouts := []struct {
		key   string
		value time.Duration
	}{
		{envRuntimeTimeout, cfg.RuntimeTimeout},
		{envPollTimeout, cfg.PollTimeout},
		{envProbeTimeout, cfg.ProbeTimeout},
	}
	for _, t := range timeouts {
		if t.value <= 0 {
			return Config{}, invalid("%s must be greater than zero", t.key)
		}
	}

	strs := []struct {
		key string
		dst *string
	}{
		{envLogLevel, &cfg.LogLevel},
		{envHubURL, &cfg.HubURL},
		{envSpaceDomain, &cfg.SpaceDomain},
		{envReportHTML, &cfg.ReportHTML},
		{envReportMarkdown, &cfg.ReportMarkdown},
		{envTimezone, &cfg.Timezone},
	}
	for _, s := range strs {
		if value, ok := lookupTrimmed(s.key); ok && value != "" {
			*s.dst = value
		}
	}

	// Empty values disable these outputs.
	if value, ok := lookupTrimmed(envStateFile); ok {
		cfg.StateFile = value
	}
	cfg.MetricsFile, _ = lookupTrimmed(envMetricsFile)
	cfg.GitHubOutput, _ = lookupTrimmed(envGitHubOutput)

	if cfg.Owner == "" {
		return Config{}, invalid("%s is required", envOwner)
	}

	list, _ := lookupTrimmed(envSpaceList)
	cfg.Targets = ParseSpaceList(cfg.Owner, list)

	if path, ok := lookupTrimmed(envTargetsFile); ok && path != "" {
		extra, err := LoadTargetsFile(path, cfg.Owner)
		if err != nil {
			return Config{}, &Error{Err: err}
		}
		cfg.Targets = append(cfg.Targets, extra...)
	}

	if len(cfg.Targets) == 0 {
		return Config{}, invalid("%s is empty", envSpaceList)
	}
	if err := validateTargets(cfg.Targets); err != nil {
		return Config{}, &Error{Err: err}
	}

	if err := validateURL(cfg.HubURL, envHubURL); err != nil {
		return Config{}, err
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return Config{}, invalid("invalid %s: %w", envTimezone, err)
	}

	return cfg, nil
}

// ParseSpaceList splits a comma-separated list of space names, dropping blanks.
func ParseSpaceList(owner, list string) []space.Target {
	var targets []space.Target
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		targets = append(targets, space.Target{Owner: owner, Name: name})
	}
	return targets
}

func lookupSeconds(key string, dst *time.Duration) error {
	value, ok := lookupTrimmed(key)
	if !ok || value == "" {
		return nil
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return invalid("invalid %s: %w", key, err)
	}
	if seconds < 0 {
		return invalid("%s cannot be negative", key)
	}
	*dst = time.Duration(seconds) * time.Second
	return nil
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return nil
	}

	return err
}

func validateURL(value, name string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return invalid("invalid %s: %w", name, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return invalid("invalid %s: must include scheme and host", name)
	}
	return nil
}
