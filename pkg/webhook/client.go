package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/farmconnect/farmconnect-backend/pkg/config"
	pkgerrors "github.com/farmconnect/farmconnect-backend/pkg/errors"
)

const (
	// SourceHeader identifies FarmConnect as the caller to the automation endpoint.
	SourceHeader = "X-Source"
	SourceValue  = "farmconnect"

	defaultTimeout         = 5 * time.Second
	defaultBackoff         = 500 * time.Millisecond
	responseBodyReadLimit  = 1024
	maxBackoffBetweenSends = 5 * time.Second
)

var errURLRequired = errors.New("webhook url is required")

// PermanentError marks a response the receiver rejected outright (4xx).
// Resending the same body will not change the outcome.
type PermanentError struct {
	StatusCode int
	Body       string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("webhook rejected event: status %d: %s", e.StatusCode, e.Body)
}

// Client posts event envelopes to the configured automation webhook.
type Client struct {
	httpClient *http.Client
	url        string
	maxRetries int
	backoff    time.Duration
	sleep      func(context.Context, time.Duration) error
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleep swaps the wait between retries; tests use it to skip real delays.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// NewClient builds a webhook client from config. The URL must be set even when
// delivery is disabled by the caller.
func NewClient(cfg config.WebhookConfig, opts ...Option) (*Client, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errURLRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		maxRetries: retries,
		backoff:    backoff,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Deliver posts body and retries 5xx responses and transport errors up to the
// configured retry count. A 4xx response returns *PermanentError immediately.
func (c *Client) Deliver(ctx context.Context, eventID string, body []byte) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "webhook client not configured")
	}

	wait := c.backoff
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
			wait *= 2
			if wait > maxBackoffBetweenSends {
				wait = maxBackoffBetweenSends
			}
		}

		err := c.send(ctx, eventID, body)
		if err == nil {
			return nil
		}
		var permanent *PermanentError
		if errors.As(err, &permanent) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, lastErr, fmt.Sprintf("webhook delivery failed after %d attempts", c.maxRetries+1))
}

func (c *Client) send(ctx context.Context, eventID string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return &PermanentError{Body: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SourceHeader, SourceValue)
	if eventID != "" {
		req.Header.Set("X-Event-ID", eventID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return &PermanentError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}

// Ping is used by readiness checks; the webhook has no health endpoint, so this
// only validates configuration.
func (c *Client) Ping(context.Context) error {
	if c == nil || c.url == "" {
		return errURLRequired
	}
	return nil
}

// URL returns the configured destination.
func (c *Client) URL() string {
	if c == nil {
		return ""
	}
	return c.url
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
