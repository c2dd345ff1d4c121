// Package delivery turns storage write notifications into OnObjectWritten
// calls with bounded retries, and terminalizes records whose processing
// keeps failing.
package delivery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/tendant/cloud-gallery/pkg/gallery"
)

// Handler processes and terminalizes images by storage key.
type Handler interface {
	OnObjectWritten(ctx context.Context, storageKey string) error
	MarkFailed(ctx context.Context, storageKey string, cause error) error
}

// RetryPolicy bounds the attempts made for one notification.
type RetryPolicy struct {
	MaxRetries uint64
	Initial    time.Duration
	Max        time.Duration
}

// DefaultRetryPolicy retries three times, starting at 200ms and capped at 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, Initial: 200 * time.Millisecond, Max: 5 * time.Second}
}

func (p RetryPolicy) backoff() retry.Backoff {
	initial := p.Initial
	if initial <= 0 {
		initial = 200 * time.Millisecond
	}
	b := retry.NewExponential(initial)
	if p.Max > 0 {
		b = retry.WithCappedDuration(p.Max, b)
	}
	return retry.WithMaxRetries(p.MaxRetries, b)
}

// Runner delivers notifications to a Handler.
type Runner struct {
	handler Handler
	policy  RetryPolicy
	logger  *slog.Logger
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithRetryPolicy sets the retry policy
func WithRetryPolicy(p RetryPolicy) RunnerOption {
	return func(r *Runner) {
		r.policy = p
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a Runner for handler
func NewRunner(handler Handler, opts ...RunnerOption) *Runner {
	r := &Runner{
		handler: handler,
		policy:  DefaultRetryPolicy(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Deliver handles one write notification. A nil return means the notification
// is settled and may be acknowledged: processed, a duplicate, ignored, an
// orphan, or marked FAILED. An error means it should be redelivered later.
func (r *Runner) Deliver(ctx context.Context, storageKey string) error {
	logger := r.logger.With("key", storageKey)

	attempt := 0
	err := retry.Do(ctx, r.policy.backoff(), func(ctx context.Context) error {
		attempt++
		err := r.handler.OnObjectWritten(ctx, storageKey)
		if err == nil || !retryable(err) {
			return err
		}
		logger.Warn("Image processing failed, will retry", "attempt", attempt, "error", err)
		return retry.RetryableError(err)
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, gallery.ErrIgnoredKey):
		logger.Debug("Ignoring notification for non-original key")
		return nil
	case errors.Is(err, gallery.ErrOrphanObject):
		logger.Warn("Dropping notification for object without metadata record", "error", err)
		return nil
	case errors.Is(err, gallery.ErrInvalidStatus):
		// A corrupt row can be neither completed nor failed; redelivery would
		// only block the partition behind it.
		logger.Error("Dropping notification for record with invalid status", "error", err)
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	}

	logger.Error("Image processing failed permanently", "attempts", attempt, "error", err)
	if ferr := r.handler.MarkFailed(ctx, storageKey, err); ferr != nil {
		if errors.Is(ferr, gallery.ErrOrphanObject) || errors.Is(ferr, gallery.ErrInvalidStatus) {
			logger.Error("Cannot mark image failed, dropping notification", "error", ferr)
			return nil
		}
		logger.Error("Failed to mark image failed", "error", ferr)
		return ferr
	}
	return nil
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, gallery.ErrIgnoredKey),
		errors.Is(err, gallery.ErrOrphanObject),
		errors.Is(err, gallery.ErrInvalidStatus),
		gallery.IsPermanent(err):
		return false
	case gallery.IsTransient(err):
		return true
	default:
		// unknown failures are treated as transient
		return true
	}
}
