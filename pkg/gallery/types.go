package gallery

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an ImageRecord.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusReady   Status = "READY"
	StatusFailed  Status = "FAILED"
)

// ImageRecord is the persisted metadata for one uploaded image.
type ImageRecord struct {
	ImageID       uuid.UUID `json:"imageId"`
	Status        Status    `json:"status"`
	ContentType   string    `json:"contentType"`
	ObjectKey     string    `json:"objectKey"`
	ThumbKey      string    `json:"thumbRef,omitempty"`
	Labels        []string  `json:"labels,omitempty"`
	OwnerID       string    `json:"ownerId,omitempty"`
	FailureReason string    `json:"failureReason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Visible reports whether the record may be shown in the gallery.
func (r *ImageRecord) Visible() bool {
	return r.Status == StatusReady && r.ThumbKey != ""
}

// Clone returns a deep copy of the record.
func (r *ImageRecord) Clone() *ImageRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Labels != nil {
		c.Labels = append([]string(nil), r.Labels...)
	}
	return &c
}

// RequestUploadInput is the input to Service.RequestUpload.
type RequestUploadInput struct {
	ContentType string
	OwnerID     string
}

// UploadIntent is returned to the client after a successful RequestUpload.
type UploadIntent struct {
	ImageID     uuid.UUID `json:"imageId"`
	ObjectKey   string    `json:"objectKey"`
	UploadURL   string    `json:"uploadUrl"`
	ContentType string    `json:"contentType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// ListReadyRequest bounds a ListReady call. A zero Limit uses the configured page size.
type ListReadyRequest struct {
	Limit int
}

// GalleryItem is the public projection of a READY record.
type GalleryItem struct {
	ImageID   uuid.UUID `json:"imageId"`
	ThumbKey  string    `json:"thumbRef"`
	ThumbURL  string    `json:"thumbUrl,omitempty"`
	Labels    []string  `json:"labels"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReadyUpdate carries the values committed by the PENDING to READY transition.
type ReadyUpdate struct {
	ThumbKey  string
	Labels    []string
	UpdatedAt time.Time
}

// ListFilter bounds a MetadataStore.List call.
type ListFilter struct {
	Status *Status
	// HasThumbnail keeps only records with a non-empty thumbnail key.
	HasThumbnail bool
	Limit        int
}
