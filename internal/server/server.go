// Package server provides the HTTP server and routing for truckboard.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/truckboard/truckboard/internal/config"
	"github.com/truckboard/truckboard/internal/database"
	"github.com/truckboard/truckboard/internal/di"
	anomalyhandlers "github.com/truckboard/truckboard/internal/modules/anomaly/handlers"
	delegationhandlers "github.com/truckboard/truckboard/internal/modules/delegation/handlers"
	famehandlers "github.com/truckboard/truckboard/internal/modules/halloffame/handlers"
	rankinghandlers "github.com/truckboard/truckboard/internal/modules/ranking/handlers"
	regionhandlers "github.com/truckboard/truckboard/internal/modules/regions/handlers"
	settingshandlers "github.com/truckboard/truckboard/internal/modules/settings/handlers"
	trendhandlers "github.com/truckboard/truckboard/internal/modules/trends/handlers"
)

// Config holds server configuration.
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	ConfigDB  *database.DB
	RecordsDB *database.DB
	Container *di.Container
}

// Server is the HTTP server.
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	container      *di.Container
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Config,
		container:      cfg.Container,
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.Config.DataDir, cfg.ConfigDB, cfg.RecordsDB),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	c := s.container
	log := s.log

	rankingHandler := rankinghandlers.NewHandler(c.RankingCache, c.SettingsService, log)
	rankingHandler.RegisterRoutes(s.router)

	trendHandler := trendhandlers.NewHandler(c.TrendDetector, c.RankingCache, c.SettingsService, log)
	trendHandler.RegisterRoutes(s.router)

	anomalyHandler := anomalyhandlers.NewHandler(c.AnomalyDetector, c.MetricCatalog, c.RankingCache, c.SettingsService, log)
	anomalyHandler.RegisterRoutes(s.router)

	delegationHandler := delegationhandlers.NewHandler(c.DelegationService, c.RankingCache, c.SettingsService, c.RefreshService, log)
	delegationHandler.RegisterRoutes(s.router)

	regionHandler := regionhandlers.NewHandler(c.RegionCalculator, c.RefreshService, log)
	regionHandler.RegisterRoutes(s.router)

	fameHandler := famehandlers.NewHandler(c.FameService, log)
	fameHandler.RegisterRoutes(s.router)

	settingsHandler := settingshandlers.NewHandler(c.SettingsService, log)
	settingsHandler.RegisterRoutes(s.router)

	s.router.Post("/api/refresh", s.handleRefresh)
	s.router.Get("/api/system/health", s.systemHandlers.HandleHealth)
}

// handleRefresh handles POST /api/refresh: an immediate out-of-schedule
// recompute. Runs in the request context so the caller sees the outcome.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	if err := s.container.RefreshService.Refresh(ctx); err != nil {
		s.log.Error().Err(err).Msg("Manual refresh failed")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Start begins serving. Blocks until shutdown.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router exposes the mux for tests.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
