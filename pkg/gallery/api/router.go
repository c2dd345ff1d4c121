package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth"
	"github.com/tendant/cloud-gallery/pkg/gallery"
)

// RouterConfig wires the HTTP surface
type RouterConfig struct {
	Service gallery.Service
	Objects gallery.ObjectStore
	// Auth guards POST /images; nil leaves it anonymous.
	Auth           *jwtauth.JWTAuth
	AllowedOrigins []string
	// Optional handlers; nil routes are not mounted.
	Feed      http.Handler
	Webhook   http.Handler
	Uploads   http.Handler
	Downloads http.Handler
	Logger    *slog.Logger
}

// NewRouter returns the gallery router. Reads are open, writes go through Auth.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	h := NewImageHandler(cfg.Service, cfg.Objects, cfg.Logger)

	r.Route("/images", func(r chi.Router) {
		r.Get("/", h.ListImages)
		if cfg.Feed != nil {
			r.Get("/stream", cfg.Feed.ServeHTTP)
		}
		r.Get("/{imageID}", h.GetImage)

		r.Group(func(r chi.Router) {
			r.Use(writeAuth(cfg.Auth)...)
			r.Post("/", h.CreateImage)
		})
	})

	if cfg.Webhook != nil {
		r.Method(http.MethodPost, "/events/s3", cfg.Webhook)
	}
	if cfg.Uploads != nil {
		r.Mount("/upload", cfg.Uploads)
	}
	if cfg.Downloads != nil {
		r.Mount("/files", cfg.Downloads)
	}

	return r
}
