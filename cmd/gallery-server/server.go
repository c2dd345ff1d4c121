package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/cloud-gallery/pkg/gallery"
	"github.com/tendant/cloud-gallery/pkg/gallery/api"
	"github.com/tendant/cloud-gallery/pkg/gallery/config"
	"github.com/tendant/cloud-gallery/pkg/gallery/delivery"
	"github.com/tendant/cloud-gallery/pkg/gallery/feed"
	"github.com/tendant/cloud-gallery/pkg/gallery/presigned"
	"github.com/tendant/cloud-gallery/pkg/gallery/thumbnail"
)

// Server holds the wired components of a running gallery server.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *config.MetadataStore
	objects  *config.ObjectStore
	service  gallery.Service
	hub      *feed.Hub
	runner   *delivery.Runner
	queue    *delivery.Queue
	consumer *delivery.KafkaConsumer
	producer *delivery.KafkaPublisher
	router   *chi.Mux
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	opts.Level = slog.LevelDebug
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// NewServer builds every component from cfg
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger}

	store, err := cfg.BuildMetadataStore(ctx)
	if err != nil {
		return nil, err
	}
	s.store = store

	objects, err := cfg.BuildObjectStore(ctx)
	if err != nil {
		s.store.Close()
		return nil, err
	}
	s.objects = objects

	classifier, err := cfg.BuildClassifier(ctx)
	if err != nil {
		s.store.Close()
		return nil, err
	}

	s.hub = feed.NewHub(cfg.Server.AllowedOrigins, logger)

	svc, err := gallery.New(
		gallery.WithMetadataStore(store),
		gallery.WithObjectStore(objects),
		gallery.WithClassifier(classifier),
		gallery.WithThumbnailer(thumbnail.New()),
		gallery.WithNotifier(s.hub),
		gallery.WithConfig(cfg.ServiceConfig()),
		gallery.WithLogger(logger),
	)
	if err != nil {
		s.store.Close()
		return nil, fmt.Errorf("failed to build service: %w", err)
	}
	s.service = svc

	s.runner = delivery.NewRunner(svc,
		delivery.WithRetryPolicy(cfg.RetryPolicy()),
		delivery.WithLogger(logger),
	)

	switch cfg.Delivery.Mode {
	case "kafka":
		s.consumer = delivery.NewKafkaConsumer(cfg.KafkaConfig(), s.runner, logger)
		if objects.Signer != nil {
			s.producer = delivery.NewKafkaPublisher(cfg.KafkaConfig(), cfg.Storage.Bucket)
		}
	case "queue":
		if objects.Signer != nil {
			s.queue = delivery.NewQueue(s.runner, cfg.Delivery.Workers, logger)
		}
	}

	s.router = s.routes()
	return s, nil
}

// onLocalWrite raises the write-completion notification for the memory object store.
func (s *Server) onLocalWrite(ctx context.Context, key string) {
	// the request context ends with the PUT; delivery must outlive it
	ctx = context.WithoutCancel(ctx)

	var err error
	switch {
	case s.producer != nil:
		err = s.producer.Publish(ctx, key)
	case s.queue != nil:
		err = s.queue.Submit(ctx, key)
	default:
		return
	}
	if err != nil {
		s.logger.Error("Failed to raise write notification", "key", key, "error", err)
	}
}

func (s *Server) routes() *chi.Mux {
	rc := api.RouterConfig{
		Service:        s.service,
		Objects:        s.objects,
		Auth:           api.NewJWTAuth(s.cfg.Auth.JWTSecret),
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		Feed:           s.hub,
		Webhook:        delivery.NewWebhook(s.runner, s.cfg.Delivery.WebhookToken, s.cfg.Delivery.Workers, s.logger),
		Logger:         s.logger,
	}
	if s.cfg.Auth.Disabled {
		rc.Auth = nil
	}

	if s.objects.Signer != nil {
		files := presigned.NewHandlers(s.objects, s.objects.Signer,
			presigned.WithWriteHook(s.onLocalWrite),
			presigned.WithMaxBodyBytes(s.cfg.ServiceConfig().Ingest.MaxObjectBytes),
			presigned.WithLogger(s.logger),
		)
		rc.Uploads = files.UploadRoutes()
		rc.Downloads = files.DownloadRoutes()
	}

	r := api.NewRouter(rc)
	app.RoutesHealthz(r)
	r.Get("/healthz/ready", s.handleReady)
	return r
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("Readiness check failed", "error", err)
		render.Status(r, http.StatusServiceUnavailable)
		render.PlainText(w, r, http.StatusText(http.StatusServiceUnavailable))
		return
	}
	render.PlainText(w, r, http.StatusText(http.StatusOK))
}

// Start launches background delivery. Kafka consumer errors are reported on the returned channel.
func (s *Server) Start(ctx context.Context) <-chan error {
	errc := make(chan error, 1)
	if s.queue != nil {
		s.queue.Start()
	}
	if s.consumer != nil {
		go func() {
			if err := s.consumer.Run(ctx); err != nil {
				errc <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}
	return errc
}

// Close drains the queue and releases connections
func (s *Server) Close(ctx context.Context) error {
	var errs []error
	if s.queue != nil {
		if err := s.queue.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain queue: %w", err))
		}
	}
	if s.consumer != nil {
		if err := s.consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close consumer: %w", err))
		}
	}
	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	s.hub.Close()
	s.store.Close()
	return errors.Join(errs...)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}
