package delivery

import (
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/cloud-gallery/pkg/gallery/events"
	"golang.org/x/sync/errgroup"
)

// WebhookTokenHeader carries the shared secret configured on the bucket notification target.
const WebhookTokenHeader = "X-Gallery-Webhook-Token"

// Webhook receives S3/MinIO event notifications over HTTP. It answers 200
// once every record is settled and 500 otherwise, so the sender redelivers.
type Webhook struct {
	runner      *Runner
	token       string
	concurrency int
	maxBody     int64
	logger      *slog.Logger
}

// NewWebhook creates a webhook handler. An empty token disables the check.
func NewWebhook(runner *Runner, token string, concurrency int, logger *slog.Logger) *Webhook {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Webhook{
		runner:      runner,
		token:       token,
		concurrency: concurrency,
		maxBody:     1 << 20,
		logger:      logger,
	}
}

func (h *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.token != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(WebhookTokenHeader)), []byte(h.token)) != 1 {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "invalid webhook token")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", "failed to read body")
		return
	}

	created, err := events.Parse(body)
	if err != nil {
		h.logger.Warn("Rejecting malformed notification", "error", err)
		writeError(w, r, http.StatusBadRequest, "invalid_notification", err.Error())
		return
	}

	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(h.concurrency)
	for _, ev := range created {
		g.Go(func() error {
			return h.runner.Deliver(ctx, ev.Key)
		})
	}
	if err := g.Wait(); err != nil {
		h.logger.Error("Notification not settled", "error", err)
		writeError(w, r, http.StatusInternalServerError, "delivery_failed", "notification will need redelivery")
		return
	}

	render.JSON(w, r, map[string]int{"processed": len(created)})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
