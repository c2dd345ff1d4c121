// Package config loads the gallery server configuration and turns it into
// wired components.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/cloud-gallery/pkg/gallery"
	"github.com/tendant/cloud-gallery/pkg/gallery/delivery"
)

// Config is the single configuration struct for the gallery server. Library
// packages never read the environment; main loads this once and hands the
// pieces to each constructor.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Auth       AuthConfig       `yaml:"auth"`
	Database   DatabaseConfig   `yaml:"database"`
	Storage    StorageConfig    `yaml:"storage"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Delivery   DeliveryConfig   `yaml:"delivery"`
	Gallery    GalleryConfig    `yaml:"gallery"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" env:"SERVER_HOST"`
	Port            string        `yaml:"port" env:"PORT" env-default:"8080"`
	Environment     string        `yaml:"environment" env:"ENVIRONMENT" env-default:"development"` // development, production, testing
	// PublicURL is the API base URL clients reach; local presigned URLs are built on it.
	PublicURL       string        `yaml:"public_url" env:"PUBLIC_URL" env-default:"http://localhost:8080"`
	AllowedOrigins  []string      `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	// Disabled must be set explicitly to accept anonymous uploads.
	Disabled  bool   `yaml:"disabled" env:"AUTH_DISABLED" env-default:"false"`
}

type DatabaseConfig struct {
	Type           string `yaml:"type" env:"DATABASE_TYPE" env-default:"memory"` // memory, postgres
	URL            string `yaml:"url" env:"DATABASE_URL"`
	Schema         string `yaml:"schema" env:"DB_SCHEMA"`
	MigrateOnStart bool   `yaml:"migrate_on_start" env:"DB_MIGRATE" env-default:"true"`
}

type StorageConfig struct {
	Backend       string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"memory"` // memory, s3
	// PresignSecret signs local upload and download URLs for the memory backend.
	PresignSecret string `yaml:"presign_secret" env:"PRESIGN_SECRET"`
	MaxUploadSize int64  `yaml:"max_upload_size" env:"MAX_UPLOAD_SIZE" env-default:"20971520"`

	Bucket          string `yaml:"bucket" env:"S3_BUCKET" env-default:"gallery"`
	Region          string `yaml:"region" env:"AWS_REGION" env-default:"us-east-1"`
	AccessKeyID     string `yaml:"access_key_id" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
	Endpoint        string `yaml:"endpoint" env:"S3_ENDPOINT"`
	UsePathStyle    bool   `yaml:"use_path_style" env:"S3_USE_PATH_STYLE" env-default:"false"`
	// PublicBaseURL is the CDN or public bucket domain thumbnails are served from.
	PublicBaseURL   string `yaml:"public_base_url" env:"S3_PUBLIC_BASE_URL"`
	CreateBucket    bool   `yaml:"create_bucket" env:"S3_CREATE_BUCKET" env-default:"false"`
}

type ClassifierConfig struct {
	Type          string   `yaml:"type" env:"CLASSIFIER" env-default:"heuristic"` // static, heuristic, rekognition
	StaticLabels  []string `yaml:"static_labels" env:"CLASSIFIER_LABELS" env-separator:","`
	Region        string   `yaml:"region" env:"REKOGNITION_REGION"`
	MinConfidence float32  `yaml:"min_confidence" env:"REKOGNITION_MIN_CONFIDENCE" env-default:"70"`
}

type DeliveryConfig struct {
	Mode         string        `yaml:"mode" env:"DELIVERY_MODE" env-default:"queue"` // queue, kafka
	Workers      int           `yaml:"workers" env:"INGEST_WORKERS" env-default:"4"`
	WebhookToken string        `yaml:"webhook_token" env:"WEBHOOK_TOKEN"`
	MaxRetries   uint64        `yaml:"max_retries" env:"INGEST_MAX_RETRIES" env-default:"3"`
	RetryInitial time.Duration `yaml:"retry_initial" env:"INGEST_RETRY_INITIAL" env-default:"200ms"`
	RetryMax     time.Duration `yaml:"retry_max" env:"INGEST_RETRY_MAX" env-default:"5s"`

	KafkaBrokers []string `yaml:"kafka_brokers" env:"KAFKA_BROKERS" env-separator:","`
	KafkaTopic   string   `yaml:"kafka_topic" env:"KAFKA_TOPIC" env-default:"gallery-object-events"`
	KafkaGroupID string   `yaml:"kafka_group_id" env:"KAFKA_GROUP_ID" env-default:"gallery-ingest"`
}

type GalleryConfig struct {
	AllowedContentTypes []string      `yaml:"allowed_content_types" env:"ALLOWED_CONTENT_TYPES" env-separator:","`
	UploadURLExpiry     time.Duration `yaml:"upload_url_expiry" env:"UPLOAD_URL_EXPIRY" env-default:"15m"`
	MaxLabels           int           `yaml:"max_labels" env:"MAX_LABELS" env-default:"5"`
	ClassifyTimeout     time.Duration `yaml:"classify_timeout" env:"CLASSIFY_TIMEOUT" env-default:"30s"`
	PageSize            int           `yaml:"page_size" env:"PAGE_SIZE" env-default:"100"`
	MaxPageSize         int           `yaml:"max_page_size" env:"MAX_PAGE_SIZE" env-default:"1000"`
}

// Load reads the YAML file at path when given, otherwise the environment,
// and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field rules
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("port is required")
	}

	if c.Auth.JWTSecret == "" && !c.Auth.Disabled {
		return errors.New("jwt_secret is required unless auth is explicitly disabled")
	}

	switch c.Database.Type {
	case "memory":
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database_url is required when using postgres")
		}
	default:
		return fmt.Errorf("database type must be 'memory' or 'postgres', got %q", c.Database.Type)
	}

	switch c.Storage.Backend {
	case "memory":
		if c.Storage.PresignSecret == "" {
			return errors.New("presign_secret is required for the memory storage backend")
		}
		if c.Server.PublicURL == "" {
			return errors.New("public_url is required for the memory storage backend")
		}
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("bucket is required for the s3 storage backend")
		}
	default:
		return fmt.Errorf("storage backend must be 'memory' or 's3', got %q", c.Storage.Backend)
	}

	switch c.Classifier.Type {
	case "static":
		if len(c.Classifier.StaticLabels) == 0 {
			return errors.New("static classifier requires at least one label")
		}
	case "heuristic", "rekognition":
	default:
		return fmt.Errorf("classifier must be 'static', 'heuristic' or 'rekognition', got %q", c.Classifier.Type)
	}

	switch c.Delivery.Mode {
	case "queue":
		if c.Delivery.Workers <= 0 {
			return errors.New("ingest workers must be positive")
		}
	case "kafka":
		if len(c.Delivery.KafkaBrokers) == 0 || c.Delivery.KafkaTopic == "" {
			return errors.New("kafka delivery requires brokers and a topic")
		}
	default:
		return fmt.Errorf("delivery mode must be 'queue' or 'kafka', got %q", c.Delivery.Mode)
	}

	return c.ServiceConfig().Validate()
}

// ServiceConfig returns the pipeline configuration for gallery.New
func (c *Config) ServiceConfig() gallery.Config {
	sc := gallery.DefaultConfig()
	if len(c.Gallery.AllowedContentTypes) > 0 {
		types := make([]string, 0, len(c.Gallery.AllowedContentTypes))
		for _, t := range c.Gallery.AllowedContentTypes {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
		sc.Upload.AllowedContentTypes = types
	}
	sc.Upload.URLExpiry = c.Gallery.UploadURLExpiry
	sc.Upload.RequireOwner = !c.Auth.Disabled
	sc.Ingest.MaxLabels = c.Gallery.MaxLabels
	sc.Ingest.ClassifyTimeout = c.Gallery.ClassifyTimeout
	if c.Storage.MaxUploadSize > 0 {
		sc.Ingest.MaxObjectBytes = c.Storage.MaxUploadSize
	}
	sc.Query.PageSize = c.Gallery.PageSize
	sc.Query.MaxPageSize = c.Gallery.MaxPageSize
	return sc
}

// RetryPolicy returns the per-notification retry bound
func (c *Config) RetryPolicy() delivery.RetryPolicy {
	return delivery.RetryPolicy{
		MaxRetries: c.Delivery.MaxRetries,
		Initial:    c.Delivery.RetryInitial,
		Max:        c.Delivery.RetryMax,
	}
}

// KafkaConfig returns the notification topic settings
func (c *Config) KafkaConfig() delivery.KafkaConfig {
	return delivery.KafkaConfig{
		Brokers: c.Delivery.KafkaBrokers,
		Topic:   c.Delivery.KafkaTopic,
		GroupID: c.Delivery.KafkaGroupID,
	}
}

// Addr is the listen address
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// IsProduction reports whether the server runs in production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
