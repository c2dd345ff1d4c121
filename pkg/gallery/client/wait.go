package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/tendant/cloud-gallery/pkg/gallery"
	"github.com/tendant/cloud-gallery/pkg/gallery/api"
)

var (
	// ErrNotReady is returned when the poll window closes with the image still PENDING.
	ErrNotReady = errors.New("image not ready within poll window")

	// ErrImageFailed is returned when ingestion terminalized the image as FAILED.
	ErrImageFailed = errors.New("image processing failed")
)

// PollPolicy bounds WaitReady. Polling backs off exponentially from Initial
// up to Max between attempts and gives up after Window.
type PollPolicy struct {
	Initial time.Duration
	Max     time.Duration
	Window  time.Duration
}

// DefaultPollPolicy polls from 250ms, capped at 2s, for up to 30s.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{Initial: 250 * time.Millisecond, Max: 2 * time.Second, Window: 30 * time.Second}
}

func (p PollPolicy) backoff() retry.Backoff {
	d := DefaultPollPolicy()
	if p.Initial <= 0 {
		p.Initial = d.Initial
	}
	if p.Max <= 0 {
		p.Max = d.Max
	}
	if p.Window <= 0 {
		p.Window = d.Window
	}
	b := retry.NewExponential(p.Initial)
	b = retry.WithCappedDuration(p.Max, b)
	return retry.WithMaxDuration(p.Window, b)
}

// WaitReady polls GetImage until the image leaves PENDING or the window closes.
// A FAILED image returns its record alongside ErrImageFailed.
func (c *Client) WaitReady(ctx context.Context, id uuid.UUID, policy PollPolicy) (*api.ImageResponse, error) {
	var last *api.ImageResponse
	err := retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		view, err := c.GetImage(ctx, id)
		if err != nil {
			return err
		}
		last = view

		status, err := gallery.ParseStatus(view.Status)
		if err != nil {
			return err
		}
		switch status {
		case gallery.StatusReady:
			return nil
		case gallery.StatusFailed:
			return fmt.Errorf("%w: %s", ErrImageFailed, view.FailureReason)
		case gallery.StatusPending:
			return retry.RetryableError(ErrNotReady)
		}
		return fmt.Errorf("unhandled status %q", view.Status)
	})
	if err != nil {
		if errors.Is(err, ErrNotReady) {
			return last, fmt.Errorf("%w: %s", ErrNotReady, id)
		}
		return last, err
	}
	return last, nil
}
