package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/cloud-gallery/pkg/gallery/classify"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "jwt-secret")
	t.Setenv("AUTH_DISABLED", "false")
	t.Setenv("PRESIGN_SECRET", "presign-secret")
	t.Setenv("DATABASE_TYPE", "memory")
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("CLASSIFIER", "heuristic")
	t.Setenv("DELIVERY_MODE", "queue")
}

func TestLoad_FromEnv(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("SERVER_HOST", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("UPLOAD_URL_EXPIRY", "5m")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	sc := cfg.ServiceConfig()
	assert.Equal(t, 5*time.Minute, sc.Upload.URLExpiry)
	assert.True(t, sc.Upload.RequireOwner)
	assert.Equal(t, 5, sc.Ingest.MaxLabels)
	assert.Equal(t, int64(20<<20), sc.Ingest.MaxObjectBytes)

	rp := cfg.RetryPolicy()
	assert.Equal(t, uint64(3), rp.MaxRetries)
	assert.Equal(t, 200*time.Millisecond, rp.Initial)
}

func TestLoad_FromYAML(t *testing.T) {
	// environment values override the file
	for _, key := range []string{"PORT", "PUBLIC_URL", "JWT_SECRET", "STORAGE_BACKEND", "PRESIGN_SECRET", "CLASSIFIER", "CLASSIFIER_LABELS", "MAX_LABELS"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	path := filepath.Join(t.TempDir(), "gallery.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "7000"
  public_url: http://gallery.local
auth:
  jwt_secret: yaml-secret
storage:
  backend: memory
  presign_secret: yaml-presign
classifier:
  type: static
  static_labels: [cat, dog]
gallery:
  max_labels: 3
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "http://gallery.local", cfg.Server.PublicURL)
	assert.Equal(t, 3, cfg.ServiceConfig().Ingest.MaxLabels)
	assert.Equal(t, []string{"cat", "dog"}, cfg.Classifier.StaticLabels)
}

func validConfig() Config {
	return Config{
		Server:     ServerConfig{Port: "8080", PublicURL: "http://localhost:8080"},
		Auth:       AuthConfig{JWTSecret: "s"},
		Database:   DatabaseConfig{Type: "memory"},
		Storage:    StorageConfig{Backend: "memory", PresignSecret: "p", Bucket: "gallery"},
		Classifier: ClassifierConfig{Type: "heuristic"},
		Delivery:   DeliveryConfig{Mode: "queue", Workers: 2},
		Gallery: GalleryConfig{
			UploadURLExpiry: 15 * time.Minute,
			MaxLabels:       5,
			PageSize:        100,
			MaxPageSize:     1000,
		},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, func() error { c := validConfig(); return c.Validate() }())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"NoSecretWithoutOptOut", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"PostgresWithoutURL", func(c *Config) { c.Database.Type = "postgres" }},
		{"UnknownDatabase", func(c *Config) { c.Database.Type = "mysql" }},
		{"MemoryWithoutPresignSecret", func(c *Config) { c.Storage.PresignSecret = "" }},
		{"UnknownStorage", func(c *Config) { c.Storage.Backend = "gcs" }},
		{"StaticWithoutLabels", func(c *Config) { c.Classifier.Type = "static" }},
		{"UnknownClassifier", func(c *Config) { c.Classifier.Type = "vision" }},
		{"KafkaWithoutBrokers", func(c *Config) { c.Delivery.Mode = "kafka" }},
		{"ExpiryTooLong", func(c *Config) { c.Gallery.UploadURLExpiry = 2 * time.Hour }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	t.Run("AnonymousOptOut", func(t *testing.T) {
		c := validConfig()
		c.Auth = AuthConfig{Disabled: true}
		require.NoError(t, c.Validate())
		assert.False(t, c.ServiceConfig().Upload.RequireOwner)
	})
}

func TestBuilders(t *testing.T) {
	ctx := context.Background()
	c := validConfig()

	store, err := c.BuildMetadataStore(ctx)
	require.NoError(t, err)
	assert.Nil(t, store.Pool)
	assert.NoError(t, store.Ping(ctx))
	store.Close()

	objects, err := c.BuildObjectStore(ctx)
	require.NoError(t, err)
	require.NotNil(t, objects.Signer)
	u, err := objects.UploadURL(ctx, "originals/x.png", "image/png", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, u, "http://localhost:8080/upload/originals/x.png")

	classifier, err := c.BuildClassifier(ctx)
	require.NoError(t, err)
	assert.IsType(t, classify.Heuristic{}, classifier)

	c.Classifier = ClassifierConfig{Type: "static", StaticLabels: []string{"cat"}}
	classifier, err = c.BuildClassifier(ctx)
	require.NoError(t, err)
	labels, err := classifier.Classify(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, labels)
}
