package api

import (
	"context"
	"modelhub/internal/config"
	"modelhub/internal/logger"
	"modelhub/internal/ratelimit"
	"modelhub/internal/service"
	"modelhub/internal/storage"
	"modelhub/internal/websocket"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	config   *config.Config
	services *service.Services
	db       Pinger
	files    *storage.Gateway
	wsHub    *websocket.Hub
	limiter  ratelimit.Limiter
	logger   *logger.Logger
}

func NewServer(
	cfg *config.Config,
	services *service.Services,
	db Pinger,
	files *storage.Gateway,
	wsHub *websocket.Hub,
	limiter ratelimit.Limiter,
	log *logger.Logger,
) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		config:   cfg,
		services: services,
		db:       db,
		files:    files,
		wsHub:    wsHub,
		limiter:  limiter,
		logger:   log,
	}
}

// Routes builds the HTTP handler of the whole API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(s.withTraceID)
	r.Use(s.withLogging)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", traceIDHeader},
		ExposedHeaders:   []string{traceIDHeader, "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.HealthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", s.ServeWsHandler)
	r.Get(storage.URLPrefix+"{name}", s.ServeUploadHandler)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if s.limiter != nil {
					r.Use(ratelimit.Middleware(s.limiter))
				}
				r.Post("/register", s.RegisterHandler)
				r.Post("/login", s.LoginHandler)
			})
			r.With(s.AuthMiddleware).Get("/me", s.GetCurrentUserHandler)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.ListCategoriesHandler)
			r.Get("/{id}", s.GetCategoryHandler)
			r.With(s.AuthMiddleware).Post("/", s.CreateCategoryHandler)
		})

		r.Route("/models", func(r chi.Router) {
			r.Get("/", s.ListModelsHandler)
			r.Get("/{id}", s.GetModelHandler)
			r.Get("/{id}/download", s.DownloadModelHandler)

			r.Group(func(r chi.Router) {
				r.Use(s.AuthMiddleware)
				r.Post("/", s.CreateModelHandler)
				r.Put("/{id}", s.UpdateModelHandler)
				r.Delete("/{id}", s.DeleteModelHandler)
				r.Post("/{id}/like", s.LikeModelHandler)
				r.Post("/{id}/unlike", s.UnlikeModelHandler)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/{id}", s.GetProfileHandler)

			r.Group(func(r chi.Router) {
				r.Use(s.AuthMiddleware)
				r.Put("/{id}", s.UpdateProfileHandler)
				r.Post("/{id}/follow", s.FollowHandler)
				r.Post("/{id}/unfollow", s.UnfollowHandler)
			})
		})

		r.With(s.AuthMiddleware).Get("/events", s.GetEventsHandler)
	})

	return r
}

// HTTPServer wraps Routes in an *http.Server listening on the configured
// address.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.config.Server.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
