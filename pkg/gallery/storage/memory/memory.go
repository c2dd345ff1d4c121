package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tendant/cloud-gallery/pkg/gallery"
	"github.com/tendant/cloud-gallery/pkg/gallery/presigned"
)

// Backend is an in-memory implementation of gallery.ObjectStore.
//
// Upload and download locations are HMAC-signed URLs served by
// presigned.Handlers, mounted by the caller under UploadBase and DownloadBase.
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object

	signer         *presigned.Signer
	uploadBase     string
	downloadBase   string
	downloadExpiry time.Duration
}

type object struct {
	data        []byte
	contentType string
}

// Config for the in-memory backend
type Config struct {
	Signer         *presigned.Signer
	UploadBase     string // e.g. http://localhost:8080/upload
	DownloadBase   string // e.g. http://localhost:8080/files
	DownloadExpiry time.Duration
}

// New creates a new in-memory storage backend
func New(cfg Config) *Backend {
	if cfg.DownloadExpiry <= 0 {
		cfg.DownloadExpiry = time.Hour
	}
	return &Backend{
		objects:        make(map[string]object),
		signer:         cfg.Signer,
		uploadBase:     strings.TrimSuffix(cfg.UploadBase, "/"),
		downloadBase:   strings.TrimSuffix(cfg.DownloadBase, "/"),
		downloadExpiry: cfg.DownloadExpiry,
	}
}

// UploadURL returns a signed PUT URL restricted to contentType
func (b *Backend) UploadURL(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	if b.signer == nil || !b.signer.IsEnabled() {
		return "", fmt.Errorf("memory backend: signer is not configured")
	}
	u, _, err := b.signer.SignURL(b.uploadBase, "PUT", key, contentType, expiry)
	if err != nil {
		return "", fmt.Errorf("failed to sign upload url: %w", err)
	}
	return u, nil
}

// ObjectURL returns a signed GET URL
func (b *Backend) ObjectURL(ctx context.Context, key string) (string, error) {
	if b.signer == nil || !b.signer.IsEnabled() {
		return b.downloadBase + "/" + key, nil
	}
	u, _, err := b.signer.SignURL(b.downloadBase, "GET", key, "", b.downloadExpiry)
	if err != nil {
		return "", fmt.Errorf("failed to sign download url: %w", err)
	}
	return u, nil
}

// Upload stores content, overwriting any previous value
func (b *Backend) Upload(ctx context.Context, key, contentType string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = object{data: data, contentType: contentType}
	return nil
}

// Download returns a reader over a copy of the stored bytes
func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	obj, ok := b.objects[key]
	b.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", gallery.ErrObjectNotFound, key)
	}
	return &reader{Reader: bytes.NewReader(obj.data), contentType: obj.contentType}, nil
}

// Exists reports whether an object is stored under key
func (b *Backend) Exists(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.objects[key]
	return ok
}

type reader struct {
	*bytes.Reader
	contentType string
}

func (r *reader) Close() error { return nil }

// ContentType is picked up by presigned.Handlers when serving downloads.
func (r *reader) ContentType() string { return r.contentType }
