package postgres_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/cloud-gallery/pkg/gallery"
	"github.com/tendant/cloud-gallery/pkg/gallery/repo/postgres"
)

// newTestPool connects to TEST_DATABASE_URL, applies migrations and empties
// the images table. Tests are skipped without a database.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping database test in short mode")
	}
	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err, "Failed to connect to test database")
	require.NoError(t, pool.Ping(ctx), "Failed to ping test database")
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool))
	_, err = pool.Exec(ctx, "TRUNCATE images")
	require.NoError(t, err)
	return pool
}

func pending(created time.Time) *gallery.ImageRecord {
	id := uuid.New()
	return &gallery.ImageRecord{
		ImageID:     id,
		Status:      gallery.StatusPending,
		ContentType: "image/jpeg",
		ObjectKey:   gallery.OriginalKey(id, "image/jpeg"),
		CreatedAt:   created.UTC().Truncate(time.Microsecond),
		UpdatedAt:   created.UTC().Truncate(time.Microsecond),
	}
}

func TestPostgresRepository(t *testing.T) {
	pool := newTestPool(t)
	repo := postgres.NewWithPool(pool)
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		rec := pending(time.Now())
		require.NoError(t, repo.Create(ctx, rec))

		got, err := repo.Get(ctx, rec.ImageID)
		require.NoError(t, err)
		assert.Equal(t, gallery.StatusPending, got.Status)
		assert.Equal(t, rec.ObjectKey, got.ObjectKey)
		assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))

		err = repo.Create(ctx, rec)
		assert.ErrorIs(t, err, gallery.ErrImageExists)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := repo.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, gallery.ErrImageNotFound)
	})

	t.Run("CompleteReadyIsConditional", func(t *testing.T) {
		rec := pending(time.Now())
		require.NoError(t, repo.Create(ctx, rec))

		update := gallery.ReadyUpdate{ThumbKey: gallery.ThumbnailKey(rec.ImageID), Labels: []string{"dog", "grass"}, UpdatedAt: time.Now()}
		require.NoError(t, repo.CompleteReady(ctx, rec.ImageID, update))
		assert.ErrorIs(t, repo.CompleteReady(ctx, rec.ImageID, update), gallery.ErrRaceLost)
		assert.ErrorIs(t, repo.MarkFailed(ctx, rec.ImageID, "late", time.Now()), gallery.ErrRaceLost)
		assert.ErrorIs(t, repo.CompleteReady(ctx, uuid.New(), update), gallery.ErrImageNotFound)

		got, err := repo.Get(ctx, rec.ImageID)
		require.NoError(t, err)
		assert.Equal(t, gallery.StatusReady, got.Status)
		assert.Equal(t, []string{"dog", "grass"}, got.Labels)
	})

	t.Run("ConcurrentCompleteSingleWinner", func(t *testing.T) {
		rec := pending(time.Now())
		require.NoError(t, repo.Create(ctx, rec))

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := repo.CompleteReady(ctx, rec.ImageID, gallery.ReadyUpdate{ThumbKey: "thumb/k.jpg", UpdatedAt: time.Now()})
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})

	t.Run("StatusParsedAtBoundary", func(t *testing.T) {
		id := uuid.New()
		_, err := pool.Exec(ctx, `
			INSERT INTO images (image_id, status, content_type, object_key, thumb_key, created_at, updated_at)
			VALUES ($1, ' ready ', 'image/png', 'originals/x.png', 'thumb/x.jpg', now(), now())`, id)
		require.NoError(t, err)

		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, gallery.StatusReady, got.Status)

		ready := gallery.StatusReady
		list, err := repo.List(ctx, gallery.ListFilter{Status: &ready})
		require.NoError(t, err)
		ids := make([]uuid.UUID, 0, len(list))
		for _, rec := range list {
			assert.Equal(t, gallery.StatusReady, rec.Status)
			ids = append(ids, rec.ImageID)
		}
		assert.Contains(t, ids, id)
	})

	t.Run("UnknownStatusRejected", func(t *testing.T) {
		id := uuid.New()
		_, err := pool.Exec(ctx, `
			INSERT INTO images (image_id, status, content_type, object_key, created_at, updated_at)
			VALUES ($1, 'UPLOADING', 'image/png', 'originals/y.png', now(), now())`, id)
		require.NoError(t, err)

		_, err = repo.Get(ctx, id)
		assert.ErrorIs(t, err, gallery.ErrInvalidStatus)
	})
}
