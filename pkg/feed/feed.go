// Package feed fetches remote or local line lists: signature corpora and
// hash lists published as plain text.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// DefaultMaxBytes bounds a downloaded list.
const DefaultMaxBytes = 256 * 1024 * 1024

// ErrTooLarge is returned for lists longer than Config.MaxBytes. A list is
// never truncated: a cut final line could parse as a shorter pattern.
var ErrTooLarge = errors.New("list exceeds size limit")

// Config controls fetching.
type Config struct {
	// Attempts is the number of HTTP tries (default: 4)
	Attempts int

	// Delay is the initial backoff, doubled after each failure and capped
	// at one minute (default: 500ms)
	Delay time.Duration

	// Client performs requests (default: a client with a 30s timeout)
	Client *http.Client

	// MaxBytes bounds a downloaded list (default: DefaultMaxBytes)
	MaxBytes int64

	// Logger receives retry warnings (default: no-op)
	Logger *zap.Logger
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		Attempts: 4,
		Delay:    500 * time.Millisecond,
		Client:   &http.Client{Timeout: 30 * time.Second},
		MaxBytes: DefaultMaxBytes,
	}
}

// Fetch reads the list at location with DefaultConfig.
func Fetch(ctx context.Context, location string) ([]string, error) {
	return FetchWithConfig(ctx, location, DefaultConfig())
}

// FetchWithConfig reads the list at location, which is either an http(s)
// URL or a file path. The content is split on '\r' and '\n'; blank lines
// are dropped.
func FetchWithConfig(ctx context.Context, location string, cfg Config) ([]string, error) {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if cfg.Client == nil {
		cfg.Client = DefaultConfig().Client
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}

	var body string
	var err error
	if IsRemote(location) {
		body, err = retry(ctx, cfg, func() (string, error) {
			return get(ctx, cfg.Client, location, cfg.MaxBytes)
		})
	} else {
		var data []byte
		data, err = os.ReadFile(location)
		body = string(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", location, err)
	}
	return Lines(body), nil
}

// IsRemote reports whether location is an http(s) URL.
func IsRemote(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// Lines splits s on line breaks and drops blank lines.
func Lines(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == '\r' || r == '\n' })
	out := fields[:0]
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			out = append(out, strings.TrimSpace(f))
		}
	}
	return out
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Temporary reports whether retrying may help.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func get(ctx context.Context, client *http.Client, url string, limit int64) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", backoff.Permanent(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{URL: url, StatusCode: resp.StatusCode}
		if !serr.Temporary() {
			return "", backoff.Permanent(serr)
		}
		return "", serr
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", backoff.Permanent(fmt.Errorf("GET %s: %w (%d bytes)", url, ErrTooLarge, limit))
	}
	return string(data), nil
}

// retry runs fn up to cfg.Attempts times with jittered exponential
// backoff starting at cfg.Delay and capped at one minute.
func retry[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	meter := otel.Meter("fdsec")
	attempts, _ := meter.Int64Counter("fdsec_feed_attempts_total")
	failures, _ := meter.Int64Counter("fdsec_feed_failures_total")

	policy := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(cfg.Delay),
		backoff.WithMaxInterval(time.Minute),
		backoff.WithMaxElapsedTime(0),
	)
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(cfg.Attempts-1)), ctx)

	attempt := 0
	v, err := backoff.RetryNotifyWithData(func() (T, error) {
		attempt++
		attempts.Add(ctx, 1)
		return fn()
	}, b, func(err error, wait time.Duration) {
		cfg.Logger.Warn("fetch failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))
	})
	if err != nil {
		failures.Add(ctx, 1)
	}
	return v, err
}
