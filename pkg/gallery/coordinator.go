package gallery

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

func (s *service) RequestUpload(ctx context.Context, in RequestUploadInput) (*UploadIntent, error) {
	if s.cfg.Upload.RequireOwner && in.OwnerID == "" {
		return nil, ErrUnauthorized
	}
	contentType, err := NormalizeContentType(in.ContentType)
	if err != nil {
		return nil, err
	}
	if !contentTypeAllowed(contentType, s.cfg.Upload.AllowedContentTypes) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidContentType, contentType)
	}

	now := s.clock()
	id := uuid.New()
	rec := &ImageRecord{
		ImageID:     id,
		Status:      StatusPending,
		ContentType: contentType,
		ObjectKey:   OriginalKey(id, contentType),
		OwnerID:     in.OwnerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// The record must exist before any write location does, otherwise the
	// upload would land as an orphan.
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, &ImageError{ImageID: id, Op: "request_upload", Err: err}
	}

	expiry := s.cfg.Upload.URLExpiry
	uploadURL, err := s.objects.UploadURL(ctx, rec.ObjectKey, contentType, expiry)
	if err != nil {
		s.logger.Error("Failed to mint upload url, record left pending",
			"image_id", id, "key", rec.ObjectKey, "error", err)
		return nil, &ImageError{ImageID: id, Op: "request_upload", Err: err}
	}

	s.logger.Info("Upload intent created", "image_id", id, "content_type", contentType, "owner_id", in.OwnerID)

	return &UploadIntent{
		ImageID:     id,
		ObjectKey:   rec.ObjectKey,
		UploadURL:   uploadURL,
		ContentType: contentType,
		ExpiresAt:   now.Add(expiry),
	}, nil
}
