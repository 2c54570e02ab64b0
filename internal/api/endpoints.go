package api

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
)

// Register creates a user account. The backend does not issue a token
// here; callers log in afterwards.
func (c *Client) Register(ctx context.Context, username, password string) (*RegisterResponse, error) {
	var out RegisterResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", credentials{Username: username, Password: password}, &out, Options{})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", credentials{Username: username, Password: password}, &out, Options{})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout asks the backend to invalidate the current token. Best-effort:
// callers proceed with local cleanup regardless of the result.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, Options{})
}

// ExchangeFirebase trades a provider ID token (plus optional profile
// hints) for a backend session.
func (c *Client) ExchangeFirebase(ctx context.Context, idToken string, hint *FirebaseUserHint) (*FirebaseExchangeResponse, error) {
	var out FirebaseExchangeResponse
	err := c.do(ctx, http.MethodPost, "/auth/firebase", firebaseExchangeRequest{IDToken: idToken, User: hint}, &out, Options{})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// LoadSession fetches the persisted session snapshot. The call is silent:
// a 401 here means a stale cached token, not an expiry the user caused.
func (c *Client) LoadSession(ctx context.Context) (*SessionSnapshot, error) {
	var out SessionSnapshot
	err := c.do(ctx, http.MethodGet, "/story/load-session", nil, &out, Options{Silent: true})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveSession writes the snapshot back. Callers treat failures as
// best-effort and never roll back UI state.
func (c *Client) SaveSession(ctx context.Context, snap *SessionSnapshot) error {
	return c.do(ctx, http.MethodPost, "/story/save-session", snap, nil, Options{})
}

type payloadEnvelope struct {
	Payload any `json:"payload"`
}

// GeneratePrompt runs narrative+image-prompt generation. payload is the
// provider-shaped request built by the text package.
func (c *Client) GeneratePrompt(ctx context.Context, payload any) (*StoryResponse, error) {
	var out StoryResponse
	err := c.do(ctx, http.MethodPost, "/ai/generate-prompt", payloadEnvelope{Payload: payload}, &out, Options{})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateImage runs synchronous image generation.
func (c *Client) GenerateImage(ctx context.Context, payload any) (*ImageResponse, error) {
	var out ImageResponse
	err := c.do(ctx, http.MethodPost, "/ai/generate-image", payloadEnvelope{Payload: payload}, &out, Options{})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// EnqueueImageJob submits an async image job and returns its id.
func (c *Client) EnqueueImageJob(ctx context.Context, payload any) (string, error) {
	var out enqueueResponse
	err := c.do(ctx, http.MethodPost, "/ai/generate-image-async", payloadEnvelope{Payload: payload}, &out, Options{})
	if err != nil {
		return "", err
	}
	if out.JobID == "" {
		return "", errors.New("failed to enqueue image job")
	}
	return out.JobID, nil
}

// ImageJob reports one status check of an async job.
func (c *Client) ImageJob(ctx context.Context, jobID string) (*JobStatusResponse, error) {
	var out JobStatusResponse
	err := c.do(ctx, http.MethodGet, "/ai/generate-image-job/"+jobID, nil, &out, Options{})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Status fetches provider/feature flags for display.
func (c *Client) Status(ctx context.Context) (*ProviderStatus, error) {
	var out ProviderStatus
	err := c.do(ctx, http.MethodGet, "/ai/status", nil, &out, Options{Silent: true})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CacheList returns server cache metadata. An empty list is a normal
// result, not an error.
func (c *Client) CacheList(ctx context.Context) ([]CacheEntry, error) {
	var out cacheListResponse
	err := c.do(ctx, http.MethodGet, "/ai/cache/list", nil, &out, Options{})
	if err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// CacheInvalidate deletes one cache entry and its files by key.
func (c *Client) CacheInvalidate(ctx context.Context, key string) error {
	var out cacheInvalidateResponse
	err := c.do(ctx, http.MethodPost, "/ai/cache/invalidate", map[string]string{"key": key}, &out, Options{})
	if err != nil {
		return err
	}
	if !out.Success {
		if out.Error != "" {
			return errors.Errorf("failed to remove cache entry: %s", out.Error)
		}
		return errors.New("failed to remove cache entry")
	}
	return nil
}
