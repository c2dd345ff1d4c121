package presigned

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/cloud-gallery/pkg/gallery"
)

// WriteHook is called after a presigned upload has been stored. It plays the
// role of the bucket's object-created notification for the local store.
type WriteHook func(ctx context.Context, key string)

// Handlers serves presigned upload and download URLs on top of a gallery.ObjectStore.
// It mimics S3 presigned URL behavior for stores that have no HTTP endpoint of their own.
type Handlers struct {
	store   gallery.ObjectStore
	signer  *Signer
	onWrite WriteHook
	maxBody int64
	logger  *slog.Logger
}

// HandlersOption configures Handlers
type HandlersOption func(*Handlers)

// WithWriteHook sets the hook fired after each successful upload
func WithWriteHook(hook WriteHook) HandlersOption {
	return func(h *Handlers) {
		h.onWrite = hook
	}
}

// WithMaxBodyBytes bounds the size of an upload
func WithMaxBodyBytes(n int64) HandlersOption {
	return func(h *Handlers) {
		h.maxBody = n
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) HandlersOption {
	return func(h *Handlers) {
		h.logger = logger
	}
}

// NewHandlers creates presigned URL handlers for store, validating with signer
func NewHandlers(store gallery.ObjectStore, signer *Signer, opts ...HandlersOption) *Handlers {
	h := &Handlers{
		store:   store,
		signer:  signer,
		maxBody: 20 << 20,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// UploadRoutes returns a router serving PUT /*
func (h *Handlers) UploadRoutes() chi.Router {
	r := chi.NewRouter()
	r.Put("/*", h.HandleUpload)
	return r
}

// DownloadRoutes returns a router serving GET /*
func (h *Handlers) DownloadRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/*", h.HandleDownload)
	return r
}

// HandleUpload handles PUT requests to presigned upload URLs.
// URL format: PUT /upload/{objectKey...}?signature={hmac}&expires={timestamp}
// The Content-Type header must match the type the URL was signed for.
func (h *Handlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		writeError(w, r, http.StatusBadRequest, "missing_object_key", "object key is required in URL path")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if err := h.signer.ValidateQuery(r.URL.Query(), http.MethodPut, key, contentType); err != nil {
		h.logger.Warn("Presigned upload signature validation failed", "key", key, "error", err)
		writeError(w, r, authStatus(err), "invalid_signature", err.Error())
		return
	}

	body := http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := h.store.Upload(r.Context(), key, normalize(contentType), body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "too_large", "upload exceeds size limit")
			return
		}
		h.logger.Error("Presigned upload failed", "key", key, "error", err)
		writeError(w, r, http.StatusInternalServerError, "upload_failed", "failed to store object")
		return
	}

	h.logger.Info("Presigned upload succeeded", "key", key)
	if h.onWrite != nil {
		h.onWrite(r.Context(), key)
	}

	// S3 answers a presigned PUT with 200 and an empty body
	w.WriteHeader(http.StatusOK)
}

// HandleDownload handles GET requests to presigned download URLs.
// URL format: GET /files/{objectKey...}?signature={hmac}&expires={timestamp}
func (h *Handlers) HandleDownload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		writeError(w, r, http.StatusBadRequest, "missing_object_key", "object key is required in URL path")
		return
	}

	if err := h.signer.ValidateQuery(r.URL.Query(), http.MethodGet, key, ""); err != nil {
		writeError(w, r, authStatus(err), "invalid_signature", err.Error())
		return
	}

	rc, err := h.store.Download(r.Context(), key)
	if err != nil {
		if errors.Is(err, gallery.ErrObjectNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "object not found")
			return
		}
		h.logger.Error("Presigned download failed", "key", key, "error", err)
		writeError(w, r, http.StatusInternalServerError, "download_failed", "failed to read object")
		return
	}
	defer rc.Close()

	if ct, ok := rc.(interface{ ContentType() string }); ok && ct.ContentType() != "" {
		w.Header().Set("Content-Type", ct.ContentType())
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("Presigned download interrupted", "key", key, "error", err)
	}
}

func authStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidExpiration):
		return http.StatusBadRequest
	case errors.Is(err, ErrMissingSignature), errors.Is(err, ErrMissingExpiration):
		return http.StatusUnauthorized
	default:
		return http.StatusForbidden
	}
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
