// Package devapi assembles the reference blog REST API served by
// cmd/blog-devapi and used by end-to-end tests of the client.
package devapi

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"blog-client/internal/domain"
	"blog-client/internal/handler"
	"blog-client/internal/middleware"
	"blog-client/internal/repository/memory"
	"blog-client/internal/repository/postgres"
	"blog-client/internal/service"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	BasePath  = "/api/v1"
	MediaPath = "/media"
)

// Options configures a dev API server. The zero value serves an in-memory
// API with no rate limiting or contract validation.
type Options struct {
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	HashCost       int
	AllowedOrigins []string

	// RateLimit is requests per second per client IP; zero disables it
	RateLimit float64
	RateBurst int

	// OpenAPISpec enables request validation against the contract file
	OpenAPISpec string

	// DB switches storage to Postgres. The schema must already be migrated.
	DB *sql.DB
}

// Server is the assembled dev API
type Server struct {
	Handler http.Handler
	Auth    *service.AuthService
	Blog    *service.BlogService
}

// New wires repositories, services and handlers into a chi router. Background
// work (rate limiter sweeping) stops when ctx is done.
func New(ctx context.Context, opts Options) (*Server, error) {
	var (
		accounts   domain.AccountRepository
		posts      domain.PostRepository
		categories domain.CategoryRepository
	)
	if opts.DB != nil {
		accounts = postgres.NewAccountRepository(opts.DB)
		posts = postgres.NewPostRepository(opts.DB)
		categories = postgres.NewCategoryRepository(opts.DB)
	} else {
		accounts = memory.NewAccountRepository()
		posts = memory.NewPostRepository()
		categories = memory.NewCategoryRepository(memory.DefaultCategories)
	}

	authService := service.NewAuthService(accounts, service.AuthConfig{
		AccessTTL:  opts.AccessTTL,
		RefreshTTL: opts.RefreshTTL,
		HashCost:   opts.HashCost,
	})
	blogService := service.NewBlogService(posts, categories)

	media := handler.NewMediaStore(MediaPath)
	authHandler := handler.NewAuthHandler(authService, media)
	postHandler := handler.NewPostHandler(blogService, authService, media)

	var validate func(http.Handler) http.Handler
	if opts.OpenAPISpec != "" {
		v, err := middleware.OpenAPIValidator(&middleware.OpenAPIValidatorConfig{
			Enabled:  true,
			SpecPath: opts.OpenAPISpec,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load request validator: %w", err)
		}
		validate = v
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestContext)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(opts.AllowedOrigins))
	}
	r.Use(middleware.Metrics())

	r.Get("/health", handler.Health)
	r.Get("/health/ready", handler.Ready(opts.DB))
	r.Handle("/metrics", promhttp.Handler())
	r.Handle(MediaPath+"/*", media)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Not found."}`))
	})

	r.Route(BasePath, func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(middleware.NewRateLimiter(ctx, opts.RateLimit, opts.RateBurst).Middleware())
		}
		if validate != nil {
			r.Use(validate)
		}

		r.Post("/token/", authHandler.ObtainToken)
		r.Post("/token/refresh/", authHandler.RefreshToken)
		r.Post("/register/", authHandler.Register)
		r.Post("/password-reset-request/", authHandler.RequestPasswordReset)
		r.Post("/password-reset-confirm/", authHandler.ConfirmPasswordReset)
		r.Get("/categories/", postHandler.Categories)

		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(authService))

			r.Get("/profile/", authHandler.Profile)
			r.Put("/profile/", authHandler.UpdateProfile)
			r.Get("/post-list/", postHandler.List)
			r.Get("/post-detail/{slug}/", postHandler.Detail)
			r.Post("/post-create/", postHandler.Create)
			r.Put("/post-update/{slug}/", postHandler.Update)
			r.Delete("/post-delete/{slug}/", postHandler.Delete)
		})
	})

	return &Server{
		Handler: r,
		Auth:    authService,
		Blog:    blogService,
	}, nil
}

// OpenStorage connects to Postgres and prepares the schema. An empty URL
// returns a nil DB, which selects in-memory storage.
func OpenStorage(ctx context.Context, dbURL string) (*sql.DB, error) {
	if dbURL == "" {
		return nil, nil
	}
	db, err := postgres.Open(ctx, dbURL)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db, memory.DefaultCategories); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
