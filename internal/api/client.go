package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"storycanvas/internal/util"
)

// TokenSource supplies the current session token, or "" when logged out.
type TokenSource func() string

// UnauthorizedHandler runs on every 401. silent reports whether the call
// was a background check whose failure should not alarm the user.
type UnauthorizedHandler func(silent bool)

// Options tweak a single call.
type Options struct {
	// Silent suppresses user-facing error UI on a 401; the forced logout
	// still happens.
	Silent bool
}

// Client talks to the story-canvas backend with bearer auth, per-endpoint
// timeouts and exponential-backoff retry on transport failures.
type Client struct {
	baseURL        string
	http           *http.Client
	log            zerolog.Logger
	token          TokenSource
	onUnauthorized UnauthorizedHandler

	maxRetries     int
	initialBackoff time.Duration
	storyTimeout   time.Duration
	defaultTimeout time.Duration
	pollInterval   time.Duration
	pollBudget     time.Duration

	// injectable for tests
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New validates the base URL and builds a client from config.
func New(cfg util.Config, logger zerolog.Logger) (*Client, error) {
	if _, err := url.ParseRequestURI(cfg.APIBaseURL); err != nil {
		return nil, errors.Wrap(err, "invalid API base URL")
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.APIBaseURL, "/"),
		http:           &http.Client{},
		log:            logger.With().Str("component", "api").Logger(),
		token:          func() string { return "" },
		onUnauthorized: func(bool) {},
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		storyTimeout:   cfg.StoryTimeout,
		defaultTimeout: cfg.DefaultTimeout,
		pollInterval:   cfg.PollInterval,
		pollBudget:     cfg.PollBudget,
		sleep:          sleepCtx,
		now:            time.Now,
	}, nil
}

// SetTokenSource wires the session store's token into outgoing requests.
func (c *Client) SetTokenSource(ts TokenSource) { c.token = ts }

// SetUnauthorizedHandler wires the forced-logout path for 401 responses.
func (c *Client) SetUnauthorizedHandler(h UnauthorizedHandler) { c.onUnauthorized = h }

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) timeoutFor(path string) time.Duration {
	if strings.Contains(path, "/ai/generate-prompt") {
		return c.storyTimeout
	}
	return c.defaultTimeout
}

// do performs one logical call: marshal, attach auth, retry transport
// failures with doubling backoff, decode the response into out.
//
// HTTP status errors are not retried: a 401 triggers the unauthorized
// handler and returns ErrUnauthorized; any other non-2xx returns an
// *APIError carrying the extracted server message.
func (c *Client) do(ctx context.Context, method, path string, body, out any, opts Options) error {
	endpoint := c.baseURL + path
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return errors.Wrap(err, "marshal request")
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.initialBackoff << (attempt - 1)
			c.log.Debug().Str("endpoint", endpoint).Int("attempt", attempt+1).Dur("delay", delay).Msg("retrying")
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
		}
		done, err := c.attempt(ctx, method, endpoint, path, payload, out, opts)
		if done {
			return err
		}
		lastErr = err
	}
	return errors.Wrapf(lastErr, "max retries reached fetching %s", endpoint)
}

// attempt reports done=true when the result is final (success or a
// non-retryable failure) and done=false for transport failures.
func (c *Client) attempt(ctx context.Context, method, endpoint, path string, payload []byte, out any, opts Options) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeoutFor(path))
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(callCtx, method, endpoint, reader)
	if err != nil {
		return true, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeout, abort or network failure: retryable unless the parent
		// context itself is gone.
		if ctx.Err() != nil {
			return true, ctx.Err()
		}
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.log.Warn().Str("endpoint", endpoint).Bool("silent", opts.Silent).Msg("unauthorized, forcing logout")
		c.onUnauthorized(opts.Silent)
		return true, ErrUnauthorized
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return true, ctx.Err()
		}
		return false, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := errorMessage(resp.StatusCode, text)
		c.log.Warn().Str("endpoint", endpoint).Int("status", resp.StatusCode).Str("message", msg).Msg("request failed")
		return true, &APIError{Status: resp.StatusCode, Endpoint: endpoint, Message: msg}
	}

	// Empty 2xx bodies are a successful empty result.
	if len(text) == 0 || out == nil {
		return true, nil
	}
	if err := json.Unmarshal(text, out); err != nil {
		return true, errors.Wrapf(err, "decode response from %s", endpoint)
	}
	return true, nil
}
