package api

import (
	"encoding/json"
	"fmt"

	errs "errors"
)

// ErrUnauthorized is returned after a 401 response. By the time a caller
// sees it the unauthorized handler has already run, so it means "no data,
// logout initiated" rather than a condition the caller should report twice.
var ErrUnauthorized = errs.New("unauthorized")

// ErrPollTimeout is returned when a job poll exhausts its wall-clock
// budget without reaching a terminal state. Distinct from JobError.
var ErrPollTimeout = errs.New("image generation timed out")

// APIError carries the server-reported message for a non-2xx response.
type APIError struct {
	Status   int
	Endpoint string
	Message  string
}

func (e *APIError) Error() string { return fmt.Sprintf("API call failed: %s", e.Message) }

// JobError is a terminal error reported by an async image job.
type JobError struct {
	JobID   string
	Message string
}

func (e *JobError) Error() string { return e.Message }

// errorMessage extracts a human-readable message from an error body:
// the JSON `error` field, then `message`, then the raw text, then a
// generic status line.
func errorMessage(status int, body []byte) string {
	fallback := fmt.Sprintf("HTTP Error %d", status)
	if len(body) == 0 {
		return fallback
	}
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return string(body)
	}
	for _, raw := range []json.RawMessage{envelope.Error, envelope.Message} {
		if len(raw) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return string(raw)
	}
	return string(body)
}
