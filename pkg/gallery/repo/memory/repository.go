package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/cloud-gallery/pkg/gallery"
)

// Repository implements gallery.MetadataStore using in-memory storage.
// The mutex is only held for map access, never across a call out.
type Repository struct {
	mu     sync.RWMutex
	images map[uuid.UUID]*gallery.ImageRecord
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		images: make(map[uuid.UUID]*gallery.ImageRecord),
	}
}

func (r *Repository) Create(ctx context.Context, rec *gallery.ImageRecord) error {
	status, err := gallery.ParseStatus(string(rec.Status))
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.images[rec.ImageID]; exists {
		return fmt.Errorf("%w: %s", gallery.ErrImageExists, rec.ImageID)
	}

	// Create a copy to avoid external modifications
	c := rec.Clone()
	c.Status = status
	r.images[rec.ImageID] = c

	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*gallery.ImageRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.images[id]
	if !exists {
		return nil, gallery.ErrImageNotFound
	}
	return rec.Clone(), nil
}

func (r *Repository) CompleteReady(ctx context.Context, id uuid.UUID, update gallery.ReadyUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.images[id]
	if !exists {
		return gallery.ErrImageNotFound
	}
	if err := gallery.CheckTransition(rec.Status, gallery.StatusReady); err != nil {
		return err
	}

	rec.Status = gallery.StatusReady
	rec.ThumbKey = update.ThumbKey
	rec.Labels = append([]string{}, update.Labels...)
	rec.UpdatedAt = stamp(update.UpdatedAt)
	return nil
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.images[id]
	if !exists {
		return gallery.ErrImageNotFound
	}
	if err := gallery.CheckTransition(rec.Status, gallery.StatusFailed); err != nil {
		return err
	}

	rec.Status = gallery.StatusFailed
	rec.FailureReason = reason
	rec.UpdatedAt = stamp(at)
	return nil
}

// List returns records newest first. A nil status matches every record.
func (r *Repository) List(ctx context.Context, filter gallery.ListFilter) ([]*gallery.ImageRecord, error) {
	r.mu.RLock()
	var result []*gallery.ImageRecord
	for _, rec := range r.images {
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		if filter.HasThumbnail && rec.ThumbKey == "" {
			continue
		}
		result = append(result, rec.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ImageID.String() < result[j].ImageID.String()
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
