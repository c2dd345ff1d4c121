package memory_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/cloud-gallery/pkg/gallery"
	"github.com/tendant/cloud-gallery/pkg/gallery/presigned"
	"github.com/tendant/cloud-gallery/pkg/gallery/storage/memory"
)

func TestMemoryBackend_UploadDownload(t *testing.T) {
	ctx := context.Background()
	backend := memory.New(memory.Config{})

	require.NoError(t, backend.Upload(ctx, "thumb/a.jpg", "image/jpeg", strings.NewReader("hello")))
	assert.True(t, backend.Exists("thumb/a.jpg"))

	rc, err := backend.Download(ctx, "thumb/a.jpg")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// overwrite is harmless
	require.NoError(t, backend.Upload(ctx, "thumb/a.jpg", "image/jpeg", strings.NewReader("hello")))

	_, err = backend.Download(ctx, "missing")
	assert.ErrorIs(t, err, gallery.ErrObjectNotFound)
}

func TestMemoryBackend_UploadURLRequiresSigner(t *testing.T) {
	backend := memory.New(memory.Config{})
	_, err := backend.UploadURL(context.Background(), "originals/a.png", "image/png", time.Minute)
	assert.Error(t, err)
}

func TestMemoryBackend_PresignedRoundTrip(t *testing.T) {
	signer := presigned.New(presigned.WithSecretKey("test-secret-key-at-least-32-bytes!!"))

	r := chi.NewRouter()
	srv := httptest.NewServer(r)
	defer srv.Close()

	backend := memory.New(memory.Config{
		Signer:       signer,
		UploadBase:   srv.URL + "/upload",
		DownloadBase: srv.URL + "/files",
	})

	var (
		mu      sync.Mutex
		written []string
	)
	handlers := presigned.NewHandlers(backend, signer, presigned.WithWriteHook(func(_ context.Context, key string) {
		mu.Lock()
		written = append(written, key)
		mu.Unlock()
	}))
	r.Mount("/upload", handlers.UploadRoutes())
	r.Mount("/files", handlers.DownloadRoutes())

	ctx := context.Background()
	uploadURL, err := backend.UploadURL(ctx, "originals/x.png", "image/png", time.Minute)
	require.NoError(t, err)

	t.Run("WrongContentTypeRejected", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPut, uploadURL, bytes.NewReader([]byte("data")))
		req.Header.Set("Content-Type", "image/jpeg")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.False(t, backend.Exists("originals/x.png"))
	})

	t.Run("UnsignedRejected", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPut, srv.URL+"/upload/originals/x.png", bytes.NewReader([]byte("data")))
		req.Header.Set("Content-Type", "image/png")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Upload", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPut, uploadURL, bytes.NewReader([]byte("data")))
		req.Header.Set("Content-Type", "image/png")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, backend.Exists("originals/x.png"))

		mu.Lock()
		assert.Equal(t, []string{"originals/x.png"}, written)
		mu.Unlock()
	})

	t.Run("Download", func(t *testing.T) {
		u, err := backend.ObjectURL(ctx, "originals/x.png")
		require.NoError(t, err)

		resp, err := http.Get(u)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "data", string(body))
	})
}
