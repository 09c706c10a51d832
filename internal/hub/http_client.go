package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/nholik/space-sentinel/internal/liveness"
	"github.com/nholik/space-sentinel/internal/space"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the management API of the hosting platform.
	DefaultBaseURL = "https://huggingface.co"
	// DefaultSpaceDomain is the domain public space addresses live under.
	DefaultSpaceDomain = "hf.space"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/118.0.0.0 Safari/537.36"

	defaultBodyLimit int64 = 2 << 20
	runtimeBodyLimit int64 = 256 << 10
)

// Timeouts bounds each kind of outbound call.
type Timeouts struct {
	Runtime time.Duration
	Probe   time.Duration
	Restart time.Duration
}

// DefaultTimeouts are applied when the caller's context has no deadline of its own.
var DefaultTimeouts = Timeouts{
	Runtime: 30 * time.Second,
	Probe:   60 * time.Second,
	Restart: 60 * time.Second,
}

// HTTPClient implements Client against the platform's HTTP endpoints.
type HTTPClient struct {
	logger    zerolog.Logger
	client    *retryablehttp.Client
	baseURL   string
	spaceURL  func(space.Target) string
	timeouts  Timeouts
	limiter   *rate.Limiter
	bodyLimit int64
	now       func() time.Time
}

// Option customizes HTTPClient behavior.
type Option func(*HTTPClient)

// WithBaseURL overrides the management API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *HTTPClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithSpaceDomain builds public addresses as https://{owner}-{name}.{domain}.
func WithSpaceDomain(domain string) Option {
	return func(c *HTTPClient) {
		c.spaceURL = domainURL(domain)
	}
}

// WithSpaceURL overrides how a target's public address is built.
func WithSpaceURL(fn func(space.Target) string) Option {
	return func(c *HTTPClient) {
		c.spaceURL = fn
	}
}

// WithTimeouts overrides the per-call timeouts.
func WithTimeouts(timeouts Timeouts) Option {
	return func(c *HTTPClient) {
		c.timeouts = timeouts
	}
}

// WithAPIRateLimit caps management API calls. A non-positive interval disables the limit.
func WithAPIRateLimit(interval time.Duration, burst int) Option {
	return func(c *HTTPClient) {
		if interval <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Every(interval), burst)
	}
}

// NewHTTPClient constructs an HTTPClient. Retries are disabled: every call is one attempt.
func NewHTTPClient(logger zerolog.Logger, opts ...Option) *HTTPClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.CheckRetry = func(_ context.Context, _ *http.Response, _ error) (bool, error) {
		return false, nil
	}
	client.Logger = nil
	client.HTTPClient = &http.Client{}

	c := &HTTPClient{
		logger:    logger,
		client:    client,
		baseURL:   DefaultBaseURL,
		spaceURL:  domainURL(DefaultSpaceDomain),
		timeouts:  DefaultTimeouts,
		limiter:   rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
		bodyLimit: defaultBodyLimit,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func domainURL(domain string) func(space.Target) string {
	domain = strings.Trim(domain, ". ")
	return func(t space.Target) string {
		return fmt.Sprintf("https://%s.%s", t.Subdomain(), domain)
	}
}

// SpaceURL returns the public address of a target.
func (c *HTTPClient) SpaceURL(target space.Target) string {
	return c.spaceURL(target)
}

func (c *HTTPClient) apiURL(target space.Target, resource string) string {
	return fmt.Sprintf("%s/api/spaces/%s/%s/%s", c.baseURL, target.Owner, target.Name, resource)
}

type runtimePayload struct {
	Stage        string `json:"stage"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage"`
}

// Runtime implements Client.
func (c *HTTPClient) Runtime(ctx context.Context, target space.Target, token string) RuntimeSignal {
	ctx, cancel := withDefaultTimeout(ctx, c.timeouts.Runtime)
	defer cancel()

	logger := c.logger.With().Str("space", target.ID()).Logger()

	if err := c.waitForRateLimit(ctx); err != nil {
		logger.Debug().Err(err).Msg("runtime query rate limited")
		return RuntimeSignal{}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.apiURL(target, "runtime"), nil)
	if err != nil {
		logger.Debug().Err(err).Msg("build runtime request")
		return RuntimeSignal{}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		logger.Debug().Err(err).Msg("runtime query failed")
		return RuntimeSignal{}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		logger.Debug().Int("status", resp.StatusCode).Msg("runtime query rejected")
		return RuntimeSignal{StatusCode: resp.StatusCode}
	}

	var payload runtimePayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, runtimeBodyLimit)).Decode(&payload); err != nil {
		logger.Debug().Err(err).Msg("decode runtime payload")
		return RuntimeSignal{StatusCode: resp.StatusCode}
	}

	stage := payload.Stage
	if stage == "" {
		stage = payload.Status
	}
	return RuntimeSignal{
		Stage:        strings.ToUpper(strings.TrimSpace(stage)),
		ErrorMessage: payload.ErrorMessage,
		StatusCode:   resp.StatusCode,
	}
}

// Probe implements Client.
func (c *HTTPClient) Probe(ctx context.Context, target space.Target) ProbeSignal {
	ctx, cancel := withDefaultTimeout(ctx, c.timeouts.Probe)
	defer cancel()

	start := c.now()
	failed := func(err error) ProbeSignal {
		c.logger.Debug().Err(err).Str("space", target.ID()).Msg("content probe failed")
		return ProbeSignal{
			StatusCode: liveness.TransportFailureStatus,
			Body:       err.Error(),
			Elapsed:    c.now().Sub(start),
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.spaceURL(target), nil)
	if err != nil {
		return failed(err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return failed(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.bodyLimit))
	if err != nil {
		return failed(fmt.Errorf("read body: %w", err))
	}

	return ProbeSignal{
		StatusCode: resp.StatusCode,
		Body:       string(body),
		Elapsed:    c.now().Sub(start),
	}
}

// Restart implements Client. A missing token fails without calling the API.
func (c *HTTPClient) Restart(ctx context.Context, target space.Target, token string) error {
	if token == "" {
		return ErrMissingCredential
	}

	ctx, cancel := withDefaultTimeout(ctx, c.timeouts.Restart)
	defer cancel()

	if err := c.waitForRateLimit(ctx); err != nil {
		return fmt.Errorf("restart rate limit: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.apiURL(target, "restart"), nil)
	if err != nil {
		return fmt.Errorf("build restart request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("restart request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, runtimeBodyLimit))

	if resp.StatusCode >= http.StatusBadRequest {
		return &StatusError{Op: "restart", StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *HTTPClient) waitForRateLimit(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// withDefaultTimeout keeps a caller-supplied deadline and applies fallback otherwise.
func withDefaultTimeout(ctx context.Context, fallback time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || fallback <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, fallback)
}
