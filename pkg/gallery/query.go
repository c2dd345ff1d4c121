package gallery

import (
	"context"
	"fmt"
	"sort"
)

func (s *service) ListReady(ctx context.Context, req ListReadyRequest) ([]*GalleryItem, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = s.cfg.Query.PageSize
	}
	if limit > s.cfg.Query.MaxPageSize {
		limit = s.cfg.Query.MaxPageSize
	}

	ready := StatusReady
	records, err := s.store.List(ctx, ListFilter{Status: &ready, HasThumbnail: true, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list ready images: %w", err)
	}

	// Stores may ignore the status filter; visibility is decided here.
	items := make([]*GalleryItem, 0, len(records))
	for _, rec := range records {
		if !rec.Visible() {
			continue
		}
		item := &GalleryItem{
			ImageID:   rec.ImageID,
			ThumbKey:  rec.ThumbKey,
			Labels:    rec.Labels,
			CreatedAt: rec.CreatedAt,
		}
		if item.Labels == nil {
			item.Labels = []string{}
		}
		u, err := s.objects.ObjectURL(ctx, rec.ThumbKey)
		if err != nil {
			s.logger.Warn("Failed to resolve thumbnail url", "image_id", rec.ImageID, "error", err)
		} else {
			item.ThumbURL = u
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}
