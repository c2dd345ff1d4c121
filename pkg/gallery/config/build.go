package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/cloud-gallery/pkg/gallery"
	"github.com/tendant/cloud-gallery/pkg/gallery/classify"
	"github.com/tendant/cloud-gallery/pkg/gallery/presigned"
	"github.com/tendant/cloud-gallery/pkg/gallery/repo/memory"
	repopg "github.com/tendant/cloud-gallery/pkg/gallery/repo/postgres"
	memorystorage "github.com/tendant/cloud-gallery/pkg/gallery/storage/memory"
	s3storage "github.com/tendant/cloud-gallery/pkg/gallery/storage/s3"
)

// MetadataStore is a built store plus the pool behind it, if any
type MetadataStore struct {
	gallery.MetadataStore
	Pool *pgxpool.Pool
}

// Close releases the pool
func (m *MetadataStore) Close() {
	if m.Pool != nil {
		m.Pool.Close()
	}
}

// Ping checks the database; memory stores are always ready
func (m *MetadataStore) Ping(ctx context.Context) error {
	if m.Pool == nil {
		return nil
	}
	return m.Pool.Ping(ctx)
}

// BuildMetadataStore opens the configured metadata store, applying
// migrations on postgres when enabled.
func (c *Config) BuildMetadataStore(ctx context.Context) (*MetadataStore, error) {
	switch c.Database.Type {
	case "memory":
		return &MetadataStore{MetadataStore: memory.New()}, nil
	case "postgres":
		pool, err := c.openPool(ctx)
		if err != nil {
			return nil, err
		}
		if c.Database.MigrateOnStart {
			if err := repopg.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
		}
		return &MetadataStore{MetadataStore: repopg.NewWithPool(pool), Pool: pool}, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
}

func (c *Config) openPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(c.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema := c.Database.Schema; schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// ObjectStore is a built object store. Signer is set for the memory backend,
// whose presigned endpoints the server must mount.
type ObjectStore struct {
	gallery.ObjectStore
	Signer *presigned.Signer
}

// BuildObjectStore creates the configured object store
func (c *Config) BuildObjectStore(ctx context.Context) (*ObjectStore, error) {
	switch c.Storage.Backend {
	case "memory":
		signer := presigned.New(
			presigned.WithSecretKey(c.Storage.PresignSecret),
			presigned.WithDefaultExpiration(c.Gallery.UploadURLExpiry),
		)
		store := memorystorage.New(memorystorage.Config{
			Signer:       signer,
			UploadBase:   c.Server.PublicURL + "/upload",
			DownloadBase: c.Server.PublicURL + "/files",
		})
		return &ObjectStore{ObjectStore: store, Signer: signer}, nil
	case "s3":
		store, err := s3storage.New(ctx, s3storage.Config{
			Region:                 c.Storage.Region,
			Bucket:                 c.Storage.Bucket,
			AccessKeyID:            c.Storage.AccessKeyID,
			SecretAccessKey:        c.Storage.SecretAccessKey,
			Endpoint:               c.Storage.Endpoint,
			UsePathStyle:           c.Storage.UsePathStyle,
			PublicBaseURL:          c.Storage.PublicBaseURL,
			CreateBucketIfNotExist: c.Storage.CreateBucket,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 backend: %w", err)
		}
		return &ObjectStore{ObjectStore: store}, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", c.Storage.Backend)
	}
}

// BuildClassifier creates the configured classifier
func (c *Config) BuildClassifier(ctx context.Context) (gallery.Classifier, error) {
	switch c.Classifier.Type {
	case "static":
		return classify.NewStatic(c.Classifier.StaticLabels...), nil
	case "heuristic":
		return classify.Heuristic{}, nil
	case "rekognition":
		awsCfg, err := c.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		slog.Info("Using Rekognition classifier", "region", awsCfg.Region)
		return classify.NewRekognitionFromConfig(awsCfg, classify.RekognitionConfig{
			MaxLabels:     int32(c.Gallery.MaxLabels),
			MinConfidence: c.Classifier.MinConfidence,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported classifier: %s", c.Classifier.Type)
	}
}

func (c *Config) awsConfig(ctx context.Context) (aws.Config, error) {
	region := c.Classifier.Region
	if region == "" {
		region = c.Storage.Region
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if c.Storage.AccessKeyID != "" && c.Storage.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.Storage.AccessKeyID, c.Storage.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}
