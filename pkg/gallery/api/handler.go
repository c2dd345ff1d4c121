package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/cloud-gallery/pkg/gallery"
)

// CreateImageRequest is the request body for POST /images
type CreateImageRequest struct {
	ContentType string `json:"contentType"`
	// ContentTypeSnake accepts the snake_case spelling used by older clients.
	ContentTypeSnake string `json:"content_type,omitempty"`
}

// ImageResponse is the single-record view returned by GET /images/{imageID}
type ImageResponse struct {
	ImageID       string    `json:"imageId"`
	Status        string    `json:"status"`
	ContentType   string    `json:"contentType"`
	ThumbKey      string    `json:"thumbRef,omitempty"`
	ThumbURL      string    `json:"thumbUrl,omitempty"`
	Labels        []string  `json:"labels"`
	FailureReason string    `json:"failureReason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ImageHandler serves the gallery HTTP API
type ImageHandler struct {
	service gallery.Service
	objects gallery.ObjectStore
	logger  *slog.Logger
}

// NewImageHandler creates a new image handler. objects is used to resolve
// thumbnail URLs on single-record reads and may be nil.
func NewImageHandler(service gallery.Service, objects gallery.ObjectStore, logger *slog.Logger) *ImageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageHandler{service: service, objects: objects, logger: logger}
}

// CreateImage mints an upload intent
func (h *ImageHandler) CreateImage(w http.ResponseWriter, r *http.Request) {
	var req CreateImageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = req.ContentTypeSnake
	}

	intent, err := h.service.RequestUpload(r.Context(), gallery.RequestUploadInput{
		ContentType: contentType,
		OwnerID:     OwnerFromContext(r.Context()),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, intent)
}

// ListImages returns READY images, newest first
func (h *ImageHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	items, err := h.service.ListReady(r.Context(), gallery.ListReadyRequest{Limit: limit})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	render.JSON(w, r, items)
}

// GetImage returns one record in any status, for upload status polling
func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "imageID"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_image_id", "image id must be a UUID")
		return
	}

	rec, err := h.service.GetImage(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := ImageResponse{
		ImageID:       rec.ImageID.String(),
		Status:        rec.Status.String(),
		ContentType:   rec.ContentType,
		Labels:        rec.Labels,
		FailureReason: rec.FailureReason,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
	if resp.Labels == nil {
		resp.Labels = []string{}
	}
	if rec.Visible() {
		resp.ThumbKey = rec.ThumbKey
		if h.objects != nil {
			if u, err := h.objects.ObjectURL(r.Context(), rec.ThumbKey); err == nil {
				resp.ThumbURL = u
			}
		}
	}
	render.JSON(w, r, resp)
}

func (h *ImageHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gallery.ErrInvalidContentType):
		writeError(w, r, http.StatusBadRequest, "invalid_content_type", err.Error())
	case errors.Is(err, gallery.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
	case errors.Is(err, gallery.ErrImageNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "image not found")
	default:
		h.logger.Error("Request failed", "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
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
