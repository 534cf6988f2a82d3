// Package upload delivers drop reports to the statistics service over HTTP.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/okian/stagedrops/internal/domain/report"
	"github.com/okian/stagedrops/pkg/logger"
)

// Header names understood by the statistics service.
const (
	AuthorizationHeader = "Authorization"
	IdentityHeader      = "X-Penguin-Set-PenguinID"
	credentialScheme    = "PenguinID "
)

const (
	defaultURL             = "https://penguin-stats.io/PenguinStats/api/v2/report"
	defaultTimeout         = 10 * time.Second
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 5 * time.Second
	maxErrorBody           = 512
)

// Client implements report.Uploader.
type Client struct {
	url             string
	http            *http.Client
	initialInterval time.Duration
	maxInterval     time.Duration
	logger          logger.Logger
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithURL sets the report endpoint.
func WithURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.url = url
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithBackoff sets the retry interval bounds.
func WithBackoff(initial, maxInterval time.Duration) Option {
	return func(c *Client) {
		if initial > 0 && maxInterval >= initial {
			c.initialInterval = initial
			c.maxInterval = maxInterval
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates an upload client.
func New(opts ...Option) *Client {
	c := &Client{
		url:             defaultURL,
		http:            &http.Client{Timeout: defaultTimeout},
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		logger:          logger.Get().Named("upload"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Upload posts the report, retrying transient failures up to req.Retries
// more times. Client errors are not retried.
func (c *Client) Upload(ctx context.Context, req report.UploadRequest) (report.Receipt, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = c.maxInterval

	attempt := 0
	op := func() (report.Receipt, error) {
		attempt++
		receipt, err := c.post(ctx, req)
		if err != nil {
			c.logger.Warn(ctx, "upload attempt failed",
				logger.String("service", req.Service),
				logger.Int("attempt", attempt),
				logger.Error(err),
			)
		}
		return receipt, err
	}

	tries := uint(1)
	if req.Retries > 0 {
		tries += uint(req.Retries)
	}
	return backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxTries(tries))
}

func (c *Client) post(ctx context.Context, req report.UploadRequest) (report.Receipt, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(req.Body))
	if err != nil {
		return report.Receipt{}, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.Credential != "" {
		httpReq.Header.Set(AuthorizationHeader, credentialScheme+req.Credential)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return report.Receipt{}, fmt.Errorf("post report: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
			return report.Receipt{}, backoff.Permanent(fmt.Errorf("%w: %d %s", ErrRejected, resp.StatusCode, bytes.TrimSpace(msg)))
		}
		return report.Receipt{}, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return report.Receipt{Identity: resp.Header.Get(IdentityHeader)}, nil
}
