package gallery

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Service is the public surface of the ingestion pipeline.
type Service interface {
	// RequestUpload creates a PENDING record and returns a presigned write location.
	RequestUpload(ctx context.Context, in RequestUploadInput) (*UploadIntent, error)

	// OnObjectWritten processes a storage write-completion notification.
	// Safe to call any number of times, concurrently, for the same key.
	OnObjectWritten(ctx context.Context, storageKey string) error

	// MarkFailed terminalizes a PENDING record after retries are exhausted.
	MarkFailed(ctx context.Context, storageKey string, cause error) error

	// ListReady returns the gallery: READY records that carry a thumbnail.
	ListReady(ctx context.Context, req ListReadyRequest) ([]*GalleryItem, error)

	// GetImage returns a single record regardless of status.
	GetImage(ctx context.Context, id uuid.UUID) (*ImageRecord, error)
}

// MetadataStore persists ImageRecords.
type MetadataStore interface {
	Create(ctx context.Context, rec *ImageRecord) error
	Get(ctx context.Context, id uuid.UUID) (*ImageRecord, error)

	// CompleteReady sets READY, thumbnail key and labels only while the record
	// is PENDING. Returns ErrRaceLost when it is not, ErrImageNotFound when absent.
	CompleteReady(ctx context.Context, id uuid.UUID, update ReadyUpdate) error

	// MarkFailed sets FAILED only while the record is PENDING.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) error

	List(ctx context.Context, filter ListFilter) ([]*ImageRecord, error)
}

// ObjectStore is the binary storage behind uploads and thumbnails.
type ObjectStore interface {
	// UploadURL mints a write location for key restricted to contentType.
	UploadURL(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)

	// Download opens the object at key. Returns ErrObjectNotFound when absent.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Upload writes an object, overwriting any previous value.
	Upload(ctx context.Context, key, contentType string, r io.Reader) error

	// ObjectURL returns a read location suitable for clients.
	ObjectURL(ctx context.Context, key string) (string, error)
}

// Classifier labels image bytes. The algorithm is opaque to the pipeline.
type Classifier interface {
	Classify(ctx context.Context, image []byte) ([]string, error)
}

// Thumbnailer derives a fixed-size JPEG thumbnail from image bytes.
type Thumbnailer interface {
	Thumbnail(ctx context.Context, image []byte) ([]byte, error)
}

// Notifier is told about terminal transitions. Implementations must not block.
type Notifier interface {
	ImageReady(ctx context.Context, item *GalleryItem)
	ImageFailed(ctx context.Context, rec *ImageRecord)
}
