// Package upstream calls the sibling schedule/notice service.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nailerHeum/AjouNICE/internal/apperrors"
	"github.com/nailerHeum/AjouNICE/internal/metrics"
)

const maxBodyBytes = 4 << 20

// Config configures a Client.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	RateLimit    float64
}

// Client fetches lookups from the sibling service. Each attempt gets its own
// timeout; failed attempts back off exponentially with jitter. Any failure
// surfaces as an UpstreamServiceError.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cfg        Config
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewClient creates a Client. A zero RateLimit disables throttling.
func NewClient(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit)))
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{},
		cfg:        cfg,
		limiter:    limiter,
		logger:     logger,
		metrics:    m,
	}
}

// Schedule returns the academic schedule.
func (c *Client) Schedule(ctx context.Context) (json.RawMessage, error) {
	return c.fetch(ctx, "schedule", "/api/schedule")
}

// Notice returns the notices for a board code.
func (c *Client) Notice(ctx context.Context, code string) (json.RawMessage, error) {
	return c.fetch(ctx, "notice", "/api/notice/"+url.PathEscape(code))
}

type envelope struct {
	Result json.RawMessage `json:"result"`
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func (c *Client) fetch(ctx context.Context, endpoint, path string) (json.RawMessage, error) {
	var (
		lastErr  error
		attempts int
		delay    = c.cfg.InitialDelay
	)

	for attempts < c.cfg.MaxAttempts {
		attempts++
		if err := c.limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		result, err := c.attempt(ctx, path)
		if err == nil {
			c.metrics.UpstreamCall(endpoint, nil)
			return result, nil
		}
		lastErr = err
		c.logger.Warn("upstream attempt failed", "endpoint", endpoint, "attempt", attempts, "error", err)

		if !retryable(err) || attempts == c.cfg.MaxAttempts || ctx.Err() != nil {
			break
		}

		sleep := delay + time.Duration(rand.Int64N(int64(delay/4)+1))
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			lastErr = ctx.Err()
		case <-timer.C:
		}
		if ctx.Err() != nil {
			break
		}
		delay = min(delay*2, c.cfg.MaxDelay)
	}

	c.metrics.UpstreamCall(endpoint, lastErr)
	upErr := &apperrors.UpstreamServiceError{Endpoint: endpoint, Attempts: attempts, Err: lastErr}
	var se *statusError
	if errors.As(lastErr, &se) {
		upErr.StatusCode = se.code
	}
	return nil, upErr
}

func (c *Client) attempt(ctx context.Context, path string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &statusError{code: resp.StatusCode}
	}

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(env.Result) == 0 {
		return json.RawMessage("null"), nil
	}
	return env.Result, nil
}

// retryable reports whether another attempt could succeed: transport errors,
// timeouts and 5xx/429 responses.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled)
}
