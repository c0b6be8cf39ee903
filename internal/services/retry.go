package services

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-retryablehttp"
)

// leveledLogger adapts a [log.Logger] to [retryablehttp.LeveledLogger].
type leveledLogger struct {
	l *log.Logger
}

func (r leveledLogger) Error(msg string, kv ...any) { r.l.Error(msg, kv...) }
func (r leveledLogger) Info(msg string, kv ...any)  { r.l.Info(msg, kv...) }
func (r leveledLogger) Debug(msg string, kv ...any) { r.l.Debug(msg, kv...) }
func (r leveledLogger) Warn(msg string, kv ...any)  { r.l.Warn(msg, kv...) }

// NewRetryingClient returns an [http.Client] that retries connection errors and 5xx responses up to retryMax
// times with exponential backoff.
//
// Use it only for idempotent reads.
func NewRetryingClient(retryMax int, timeout time.Duration, logger *log.Logger) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 4 * time.Second
	rc.HTTPClient.Timeout = timeout
	if logger != nil {
		rc.Logger = leveledLogger{l: logger}
	} else {
		rc.Logger = nil
	}
	return rc.StandardClient()
}

// NewClient returns a plain [http.Client] with timeout, used for submissions and status checks.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
