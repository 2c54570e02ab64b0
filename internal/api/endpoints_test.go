package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnqueueImageJobRejectsMissingJobID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	_, err := c.EnqueueImageJob(context.Background(), map[string]any{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to enqueue")
}

func TestCacheListEmptyIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"entries":[]}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	entries, err := c.CacheList(context.Background())
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCacheInvalidateChecksSuccessFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":"key not found"}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	err := c.CacheInvalidate(context.Background(), "k1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "key not found")
}

func TestGeneratePromptWrapsPayloadEnvelope(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"normalized_candidate":{"narrative":"n","image_prompt":"i","summary_point":"s"}}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	resp, err := c.GeneratePrompt(context.Background(), map[string]string{"contents": "x"})
	require.NoError(t, err)
	require.NotNil(t, resp.NormalizedCandidate)
	require.JSONEq(t, `{"payload":{"contents":"x"}}`, string(body))
}
