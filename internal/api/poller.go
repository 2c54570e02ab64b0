package api

import (
	"context"

	errs "errors"
)

// Job states as reported by the status endpoint.
const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusError   = "error"
)

// PollImageJob queries the job status endpoint at a fixed interval until
// the job finishes, fails, or the wall-clock budget runs out.
//
// Individual poll failures are tolerated and polling continues, with one
// exception: ErrUnauthorized aborts immediately since the session is gone.
// Exhausting the budget returns ErrPollTimeout, which is distinct from a
// job-reported JobError so callers can choose a fallback path.
func (c *Client) PollImageJob(ctx context.Context, jobID string) (*JobResult, error) {
	deadline := c.now().Add(c.pollBudget)
	for c.now().Before(deadline) {
		status, err := c.ImageJob(ctx, jobID)
		if err != nil {
			if errs.Is(err, ErrUnauthorized) {
				return nil, err
			}
			c.log.Debug().Err(err).Str("job_id", jobID).Msg("poll attempt failed, continuing")
		} else {
			switch status.Status {
			case StatusDone:
				if status.Result == nil {
					return &JobResult{}, nil
				}
				return status.Result, nil
			case StatusError:
				msg := "Async job failed"
				if status.Result != nil && status.Result.Error != "" {
					msg = status.Result.Error
				}
				return nil, &JobError{JobID: jobID, Message: msg}
			}
			// queued/running: keep polling
		}
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return nil, err
		}
	}
	return nil, ErrPollTimeout
}
