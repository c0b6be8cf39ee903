package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNotFound           = fmt.Errorf("resource not found")
	ErrSnapshotNotReady   = fmt.Errorf("snapshot not ready")
	ErrUnexpectedResponse = fmt.Errorf("unexpected response")

	// Job errors
	ErrSubmissionRejected = fmt.Errorf("submission rejected")
	ErrPolling            = fmt.Errorf("polling error")
	ErrJobFailed          = fmt.Errorf("job failed")
	ErrMaxAttempts        = fmt.Errorf("maximum polling attempts reached")
	ErrPollerBusy         = fmt.Errorf("poller already running")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
