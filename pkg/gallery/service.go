package gallery

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// MaxUploadURLExpiry bounds the lifetime of a presigned write location.
const MaxUploadURLExpiry = time.Hour

// Config holds the tunables of the pipeline. It is passed in once at
// construction; the service never reads the environment.
type Config struct {
	Upload UploadConfig
	Ingest IngestConfig
	Query  QueryConfig
}

// UploadConfig configures RequestUpload.
type UploadConfig struct {
	AllowedContentTypes []string
	URLExpiry           time.Duration
	// RequireOwner rejects intents without an owner identity.
	RequireOwner bool
}

// IngestConfig configures OnObjectWritten.
type IngestConfig struct {
	MaxLabels       int
	MaxObjectBytes  int64
	ClassifyTimeout time.Duration
}

// QueryConfig configures ListReady.
type QueryConfig struct {
	PageSize    int
	MaxPageSize int
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		Upload: UploadConfig{
			AllowedContentTypes: DefaultAllowedContentTypes,
			URLExpiry:           15 * time.Minute,
		},
		Ingest: IngestConfig{
			MaxLabels:       5,
			MaxObjectBytes:  20 << 20,
			ClassifyTimeout: 30 * time.Second,
		},
		Query: QueryConfig{
			PageSize:    100,
			MaxPageSize: 1000,
		},
	}
}

// Validate checks the configuration for values the pipeline cannot honor.
func (c Config) Validate() error {
	if len(c.Upload.AllowedContentTypes) == 0 {
		return fmt.Errorf("at least one allowed content type is required")
	}
	if c.Upload.URLExpiry <= 0 || c.Upload.URLExpiry > MaxUploadURLExpiry {
		return fmt.Errorf("upload url expiry must be in (0, %s], got %s", MaxUploadURLExpiry, c.Upload.URLExpiry)
	}
	if c.Ingest.MaxLabels < 0 {
		return fmt.Errorf("max labels must not be negative")
	}
	if c.Ingest.MaxObjectBytes <= 0 {
		return fmt.Errorf("max object bytes must be positive")
	}
	if c.Query.PageSize <= 0 || c.Query.MaxPageSize < c.Query.PageSize {
		return fmt.Errorf("page size must be positive and not exceed max page size")
	}
	return nil
}

// service implements the Service interface
type service struct {
	store       MetadataStore
	objects     ObjectStore
	classifier  Classifier
	thumbnailer Thumbnailer
	notifier    Notifier
	logger      *slog.Logger
	cfg         Config
	now         func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithMetadataStore sets the metadata store for the service
func WithMetadataStore(store MetadataStore) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithObjectStore sets the binary storage for the service
func WithObjectStore(store ObjectStore) Option {
	return func(s *service) {
		s.objects = store
	}
}

// WithClassifier sets the labeling capability
func WithClassifier(c Classifier) Option {
	return func(s *service) {
		s.classifier = c
	}
}

// WithThumbnailer sets the thumbnail generator
func WithThumbnailer(t Thumbnailer) Option {
	return func(s *service) {
		s.thumbnailer = t
	}
}

// WithNotifier sets the receiver of terminal transitions
func WithNotifier(n Notifier) Option {
	return func(s *service) {
		s.notifier = n
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithConfig replaces the default configuration
func WithConfig(cfg Config) Option {
	return func(s *service) {
		s.cfg = cfg
	}
}

// WithClock overrides time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		cfg:    DefaultConfig(),
		logger: slog.Default(),
		now:    time.Now,
	}

	for _, option := range options {
		option(s)
	}

	if s.store == nil {
		return nil, fmt.Errorf("metadata store is required")
	}
	if s.objects == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if s.classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if s.thumbnailer == nil {
		return nil, fmt.Errorf("thumbnailer is required")
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if s.notifier == nil {
		s.notifier = NoopNotifier{}
	}

	return s, nil
}

func (s *service) clock() time.Time {
	return s.now().UTC()
}

// NoopNotifier discards all notifications.
type NoopNotifier struct{}

func (NoopNotifier) ImageReady(_ context.Context, _ *GalleryItem) {}

func (NoopNotifier) ImageFailed(_ context.Context, _ *ImageRecord) {}
