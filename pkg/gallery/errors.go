package gallery

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Intake errors are returned synchronously to the caller of RequestUpload.
var (
	// ErrInvalidContentType indicates the declared type is not an accepted image type
	ErrInvalidContentType = errors.New("invalid content type")

	// ErrUnauthorized indicates the caller has no valid identity for a write operation
	ErrUnauthorized = errors.New("unauthorized")
)

// Ingestion errors only decide whether a record ever becomes READY.
var (
	// ErrOrphanObject indicates a stored object has no metadata record
	ErrOrphanObject = errors.New("orphan object")

	// ErrFetchFailure indicates the original binary could not be read
	ErrFetchFailure = errors.New("fetch failure")

	// ErrClassificationFailure indicates the classifier failed or timed out
	ErrClassificationFailure = errors.New("classification failure")

	// ErrThumbnailWrite indicates the derived thumbnail could not be stored
	ErrThumbnailWrite = errors.New("thumbnail write failure")

	// ErrInvalidImage indicates the stored binary is not a decodable image
	ErrInvalidImage = errors.New("invalid image")

	// ErrIgnoredKey indicates a storage key that is not an original upload
	ErrIgnoredKey = errors.New("ignored object key")
)

// Store errors.
var (
	// ErrRaceLost indicates a conditional update found the record no longer PENDING
	ErrRaceLost = errors.New("conditional update lost race")

	// ErrImageNotFound indicates no record exists for the image id
	ErrImageNotFound = errors.New("image not found")

	// ErrObjectNotFound indicates no object is stored under the key
	ErrObjectNotFound = errors.New("object not found")

	// ErrImageExists indicates a record with the image id already exists
	ErrImageExists = errors.New("image already exists")

	// ErrStoreUnavailable indicates the metadata store could not be reached
	ErrStoreUnavailable = errors.New("metadata store unavailable")

	// ErrInvalidStatus indicates a persisted or serialized status outside the closed set
	ErrInvalidStatus = errors.New("invalid image status")
)

// ImageError represents an error related to an image operation
type ImageError struct {
	ImageID uuid.UUID
	Op      string
	Err     error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("image operation %s failed for image %s: %v", e.Op, e.ImageID, e.Err)
}

func (e *ImageError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether a failure from OnObjectWritten should be retried
// by the delivery mechanism.
func IsTransient(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrFetchFailure),
		errors.Is(err, ErrClassificationFailure),
		errors.Is(err, ErrThumbnailWrite),
		errors.Is(err, ErrStoreUnavailable):
		return true
	default:
		return false
	}
}

// IsPermanent reports whether a failure from OnObjectWritten can never succeed
// on retry and the record should be marked FAILED at once.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrInvalidImage)
}
