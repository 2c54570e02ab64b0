package api

import (
	"context"
	"encoding/json"
	errs "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// jobServer walks through the given status responses, one per poll.
func jobServer(t *testing.T, responses []JobStatusResponse) *httptest.Server {
	t.Helper()
	var n int
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := responses[len(responses)-1]
		if n < len(responses) {
			resp = responses[n]
		}
		n++
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestPollImageJobReturnsResultOnDone(t *testing.T) {
	srv := jobServer(t, []JobStatusResponse{
		{Status: StatusQueued},
		{Status: StatusRunning},
		{Status: StatusDone, Result: &JobResult{FileURLs: []string{"/images/a.png"}}},
	})
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	result, err := c.PollImageJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, []string{"/images/a.png"}, result.FileURLs)
}

func TestPollImageJobReportsJobError(t *testing.T) {
	srv := jobServer(t, []JobStatusResponse{
		{Status: StatusRunning},
		{Status: StatusError, Result: &JobResult{Error: "no GPU for you"}},
	})
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	_, err := c.PollImageJob(context.Background(), "job-2")
	var jobErr *JobError
	require.ErrorAs(t, err, &jobErr)
	require.Equal(t, "no GPU for you", jobErr.Message)
	require.Equal(t, "job-2", jobErr.JobID)
}

func TestPollImageJobErrorWithoutMessageGetsDefault(t *testing.T) {
	srv := jobServer(t, []JobStatusResponse{{Status: StatusError}})
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	_, err := c.PollImageJob(context.Background(), "job-3")
	var jobErr *JobError
	require.ErrorAs(t, err, &jobErr)
	require.Equal(t, "Async job failed", jobErr.Message)
}

func TestPollImageJobTimesOutDistinctly(t *testing.T) {
	srv := jobServer(t, []JobStatusResponse{{Status: StatusRunning}})
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	_, err := c.PollImageJob(context.Background(), "job-4")
	require.ErrorIs(t, err, ErrPollTimeout)

	var jobErr *JobError
	require.False(t, errs.As(err, &jobErr), "timeout must not look like a job-reported error")
}

func TestPollImageJobAbortsOnUnauthorized(t *testing.T) {
	var polls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	_, err := c.PollImageJob(context.Background(), "job-5")
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, 1, polls)
}

func TestPollImageJobToleratesTransientPollFailures(t *testing.T) {
	var n int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n++
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(JobStatusResponse{Status: StatusDone, Result: &JobResult{Files: []string{"x.png"}}})
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	result, err := c.PollImageJob(context.Background(), "job-6")
	require.NoError(t, err)
	require.Equal(t, []string{"x.png"}, result.Files)
}
