package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/maltedev/wildberries-parser/internal/antiblock"
	"github.com/maltedev/wildberries-parser/internal/ratelimit"
)

var ErrRetriesExhausted = errors.New("retries exhausted")

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

type Options struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Timeout    time.Duration
	UserAgents []string
}

func DefaultOptions() Options {
	return Options{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   60 * time.Second,
		Timeout:    10 * time.Second,
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Executor issues GET requests for JSON documents and retries failed
// attempts with exponential backoff. It knows nothing about response shapes.
type Executor struct {
	client *http.Client
	opts   Options
	sleep  SleepFunc
	logger *slog.Logger
}

func NewExecutor(opts Options, logger *slog.Logger) *Executor {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		sleep:  ratelimit.Sleep,
		logger: logger.With("component", "fetch"),
	}
}

// WithHTTPClient replaces the underlying client.
func (e *Executor) WithHTTPClient(client *http.Client) *Executor {
	e.client = client
	return e
}

func (e *Executor) WithSleep(fn SleepFunc) *Executor {
	e.sleep = fn
	return e
}

// GetJSON fetches rawURL with params merged into its query and decodes the
// body into out. Transport errors, non-2xx statuses and bodies that are not
// JSON are retried up to MaxRetries attempts in total; no wait follows the
// final attempt. Valid JSON of an unexpected shape is kept as whatever part
// of out it filled.
func (e *Executor) GetJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	target, err := buildURL(rawURL, params)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < e.opts.MaxRetries; attempt++ {
		lastErr = e.attempt(ctx, target, out)
		if lastErr == nil {
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		e.logger.Warn("Request failed",
			"url", target,
			"attempt", attempt+1,
			"max_retries", e.opts.MaxRetries,
			"error", lastErr)

		if attempt < e.opts.MaxRetries-1 {
			wait := antiblock.Backoff(attempt, e.opts.BaseDelay, e.opts.MaxDelay)
			if err := e.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, e.opts.MaxRetries, lastErr)
}

func (e *Executor) attempt(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Connection", "keep-alive")
	if ua := antiblock.RandomUserAgent(e.opts.UserAgents); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, URL: target}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			e.logger.Warn("Unexpected response shape", "url", target, "error", err)
			return nil
		}
		return fmt.Errorf("failed to decode body: %w", err)
	}

	return nil
}

func buildURL(rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			q[k] = vs
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}
