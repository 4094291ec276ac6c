// Package trigger invokes the downstream deployment pipeline after a
// publishing run on the publish branch.
//
// The client owns only the outbound contract: what is posted, with which
// credential, and how transient failures are retried. The remote engine's
// own orchestration is out of scope.
package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/opendatateam/hydra-release/internal/errors"
)

const (
	defaultUserAgent = "hydra-release"
	defaultTimeout   = 30 * time.Second

	// maxErrorBody bounds how much of a failure response is surfaced in
	// the returned error.
	maxErrorBody = 8 << 10
)

// Payload is the request body sent to the deployment pipeline.
// Variables is forwarded verbatim and serialized even when empty; the
// deployment engine expects the field to be present.
type Payload struct {
	Application string `json:"application"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Variables   string `json:"variables"`
}

// Retryer bounds delivery attempts and paces the backoff between them.
type Retryer struct {
	// MaxAttempts is the total attempt budget, including the first.
	MaxAttempts int

	// BaseDelay seeds the exponential backoff.
	BaseDelay time.Duration

	// MaxDelay caps a single backoff interval.
	MaxDelay time.Duration
}

// DefaultRetryer is the retry policy used unless WithRetryer overrides it.
func DefaultRetryer() Retryer {
	return Retryer{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// Client posts deployment requests to the downstream pipeline endpoint.
type Client struct {
	endpoint  string
	token     string
	userAgent string

	httpClient *http.Client
	logger     *slog.Logger
	retryer    Retryer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient substitutes the HTTP client, primarily for testing.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger used for trigger operations.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRetryer overrides the retry policy.
func WithRetryer(retryer Retryer) Option {
	return func(c *Client) {
		c.retryer = retryer
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// New creates a trigger client for the given endpoint. The token is sent
// as a bearer credential; empty disables the Authorization header.
func New(endpoint, token string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "trigger endpoint is required")
	}

	client := &Client{
		endpoint:   endpoint,
		token:      token,
		userAgent:  defaultUserAgent,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
		retryer:    DefaultRetryer(),
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.retryer.MaxAttempts < 1 {
		client.retryer.MaxAttempts = 1
	}
	if client.retryer.BaseDelay <= 0 {
		client.retryer.BaseDelay = DefaultRetryer().BaseDelay
	}
	if client.retryer.MaxDelay <= 0 {
		client.retryer.MaxDelay = DefaultRetryer().MaxDelay
	}

	return client, nil
}

// Invoke posts the payload to the deployment pipeline. Transport failures
// and 429/5xx responses are retried with exponential backoff; any other
// non-2xx response is fatal and surfaces the response body in the error.
func (c *Client) Invoke(ctx context.Context, payload Payload) error {
	if payload.Application == "" {
		return errors.New(errors.CodeInvalidInput, "trigger payload requires an application")
	}
	if payload.Version == "" {
		return errors.New(errors.CodeInvalidInput, "trigger payload requires a version")
	}
	if payload.Environment == "" {
		return errors.New(errors.CodeInvalidInput, "trigger payload requires an environment")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, errors.CodeTriggerFailed, "failed to marshal trigger payload")
	}

	c.logger.InfoContext(ctx, "triggering downstream deployment",
		"application", payload.Application,
		"version", payload.Version,
		"environment", payload.Environment,
		"endpoint", c.endpoint)

	var lastErr error
	for attempt := 1; attempt <= c.retryer.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(c.backoff(attempt)):
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), errors.CodeTriggerFailed, "trigger cancelled")
			}
		}

		status, respBody, err := c.post(ctx, body)
		if err != nil {
			lastErr = errors.Wrap(err, errors.CodeNetwork, "deployment pipeline request failed")
			c.logger.WarnContext(ctx, "trigger attempt failed",
				"attempt", attempt, "error", err)
			continue
		}

		if status >= 200 && status < 300 {
			c.logger.InfoContext(ctx, "downstream deployment triggered",
				"application", payload.Application,
				"version", payload.Version,
				"status", status)
			return nil
		}

		if !retryableStatus(status) {
			return errors.Newf(errors.CodeTriggerFailed,
				"deployment pipeline rejected the trigger (status %d): %s",
				status, string(respBody))
		}

		lastErr = errors.Newf(errors.CodeTriggerFailed,
			"deployment pipeline returned status %d: %s", status, string(respBody))
		c.logger.WarnContext(ctx, "trigger attempt failed",
			"attempt", attempt, "status", status)
	}

	return errors.Wrap(lastErr, errors.CodeTriggerFailed,
		"failed to trigger downstream deployment after retries")
}

// post performs a single delivery attempt.
func (c *Client) post(ctx context.Context, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return resp.StatusCode, nil, err
	}

	return resp.StatusCode, respBody, nil
}

// backoff returns the delay before the given attempt: BaseDelay doubled
// per attempt with up to 25% jitter either way, capped at MaxDelay.
func (c *Client) backoff(attempt int) time.Duration {
	delay := time.Duration(math.Pow(2, float64(attempt-2))) * c.retryer.BaseDelay

	jitterRange := int64(float64(delay) * 0.25)
	if jitterRange > 0 {
		delay += time.Duration(rand.Int63n(2*jitterRange) - jitterRange)
	}

	if delay > c.retryer.MaxDelay {
		delay = c.retryer.MaxDelay
	}
	return delay
}

// retryableStatus reports whether the response status is transient.
// Client errors other than 429 are permanent: retrying a rejected
// payload or credential never helps.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
