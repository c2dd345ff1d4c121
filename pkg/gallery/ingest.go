package gallery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

func (s *service) OnObjectWritten(ctx context.Context, storageKey string) error {
	id, err := ImageIDFromKey(storageKey)
	if err != nil {
		return err
	}
	logger := s.logger.With("image_id", id, "key", storageKey)

	rec, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrImageNotFound) {
		logger.Warn("Object has no metadata record")
		return &ImageError{ImageID: id, Op: "ingest", Err: fmt.Errorf("%w: %s", ErrOrphanObject, storageKey)}
	}
	if errors.Is(err, ErrInvalidStatus) {
		return &ImageError{ImageID: id, Op: "ingest", Err: err}
	}
	if err != nil {
		return &ImageError{ImageID: id, Op: "ingest", Err: fmt.Errorf("%w: %v", ErrStoreUnavailable, err)}
	}

	// The id alone is not enough: only the exact object minted for this record
	// may complete it.
	if strings.TrimPrefix(storageKey, "/") != rec.ObjectKey {
		logger.Warn("Object key does not match the record's upload key", "expected", rec.ObjectKey)
		return &ImageError{ImageID: id, Op: "ingest", Err: fmt.Errorf("%w: %s", ErrIgnoredKey, storageKey)}
	}

	ok, err := canIngest(rec.Status)
	if err != nil {
		return &ImageError{ImageID: id, Op: "ingest", Err: err}
	}
	if !ok {
		logger.Debug("Skipping notification for terminal record", "status", rec.Status)
		return nil
	}

	data, err := s.fetch(ctx, storageKey)
	if err != nil {
		return &ImageError{ImageID: id, Op: "ingest", Err: err}
	}

	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return &ImageError{ImageID: id, Op: "ingest", Err: fmt.Errorf("%w: detected %s", ErrInvalidImage, detected.String())}
	}
	if !detected.Is(rec.ContentType) {
		logger.Warn("Stored object does not match declared content type",
			"declared", rec.ContentType, "detected", detected.String())
	}

	thumb, labels, err := s.derive(ctx, data)
	if err != nil {
		return &ImageError{ImageID: id, Op: "ingest", Err: err}
	}

	thumbKey := ThumbnailKey(id)
	if err := s.objects.Upload(ctx, thumbKey, ThumbnailContentType, bytes.NewReader(thumb)); err != nil {
		return &ImageError{ImageID: id, Op: "ingest", Err: fmt.Errorf("%w: %v", ErrThumbnailWrite, err)}
	}

	now := s.clock()
	err = s.store.CompleteReady(ctx, id, ReadyUpdate{ThumbKey: thumbKey, Labels: labels, UpdatedAt: now})
	switch {
	case err == nil:
	case errors.Is(err, ErrRaceLost):
		logger.Debug("Another delivery already completed the record")
		return nil
	case errors.Is(err, ErrImageNotFound):
		logger.Warn("Record disappeared during processing")
		return &ImageError{ImageID: id, Op: "ingest", Err: fmt.Errorf("%w: %s", ErrOrphanObject, storageKey)}
	default:
		return &ImageError{ImageID: id, Op: "ingest", Err: fmt.Errorf("%w: %v", ErrStoreUnavailable, err)}
	}

	logger.Info("Image ready", "labels", labels)

	item := &GalleryItem{
		ImageID:   id,
		ThumbKey:  thumbKey,
		Labels:    labels,
		CreatedAt: rec.CreatedAt,
	}
	if u, err := s.objects.ObjectURL(ctx, thumbKey); err == nil {
		item.ThumbURL = u
	}
	s.notifier.ImageReady(ctx, item)

	return nil
}

// fetch reads the original binary, bounded by the configured maximum size.
func (s *service) fetch(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.objects.Download(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}
	defer rc.Close()

	limit := s.cfg.Ingest.MaxObjectBytes
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: object exceeds %d bytes", ErrInvalidImage, limit)
	}
	return data, nil
}

// derive runs the thumbnailer and the classifier concurrently over the same bytes.
func (s *service) derive(ctx context.Context, data []byte) ([]byte, []string, error) {
	var (
		thumb  []byte
		labels []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		thumb, err = s.thumbnailer.Thumbnail(gctx, data)
		return err
	})
	g.Go(func() error {
		cctx := gctx
		if s.cfg.Ingest.ClassifyTimeout > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(gctx, s.cfg.Ingest.ClassifyTimeout)
			defer cancel()
		}
		got, err := s.classifier.Classify(cctx, data)
		if err != nil {
			if IsPermanent(err) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrClassificationFailure, err)
		}
		labels = got
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if labels == nil {
		labels = []string{}
	}
	if n := s.cfg.Ingest.MaxLabels; n > 0 && len(labels) > n {
		labels = labels[:n]
	}
	return thumb, labels, nil
}

func (s *service) MarkFailed(ctx context.Context, storageKey string, cause error) error {
	id, err := ImageIDFromKey(storageKey)
	if err != nil {
		return err
	}

	reason := "processing failed"
	if cause != nil {
		reason = cause.Error()
	}

	err = s.store.MarkFailed(ctx, id, reason, s.clock())
	switch {
	case err == nil:
	case errors.Is(err, ErrRaceLost):
		return nil
	case errors.Is(err, ErrImageNotFound):
		return &ImageError{ImageID: id, Op: "mark_failed", Err: fmt.Errorf("%w: %s", ErrOrphanObject, storageKey)}
	case errors.Is(err, ErrInvalidStatus):
		return &ImageError{ImageID: id, Op: "mark_failed", Err: err}
	default:
		return &ImageError{ImageID: id, Op: "mark_failed", Err: fmt.Errorf("%w: %v", ErrStoreUnavailable, err)}
	}

	s.logger.Warn("Image marked failed", "image_id", id, "key", storageKey, "reason", reason)

	if rec, err := s.store.Get(ctx, id); err == nil {
		s.notifier.ImageFailed(ctx, rec)
	}
	return nil
}

func (s *service) GetImage(ctx context.Context, id uuid.UUID) (*ImageRecord, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, &ImageError{ImageID: id, Op: "get", Err: err}
	}
	return rec, nil
}
