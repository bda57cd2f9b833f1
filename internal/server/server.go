package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/kartoza/sales-forecast/internal/api"
	"github.com/kartoza/sales-forecast/internal/config"
)

// Server holds all the components for the forecasting service
type Server struct {
	cfg        config.Config
	httpServer *http.Server
	router     *mux.Router
	handler    http.Handler
	logger     zerolog.Logger
}

// New creates a new Server with all routes and middleware initialized
func New(cfg config.Config, predictor api.Predictor, monitor api.PerformanceMonitor, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
		logger: logger.With().Str("component", "server").Logger(),
	}

	s.setupRoutes(predictor, monitor)

	// CORS sits outside the router so preflight requests never reach
	// method matching.
	var h http.Handler = s.router
	h = recoverMiddleware(s.logger)(h)
	if cfg.RateLimitRPS > 0 {
		h = rateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst)(h)
	}
	h = accessLogMiddleware(s.logger)(h)
	h = requestIDMiddleware(h)
	h = corsMiddleware(h)
	s.handler = h

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(predictor api.Predictor, monitor api.PerformanceMonitor) {
	apiHandler := api.NewHandler(predictor, monitor, s.cfg, s.logger)
	apiHandler.RegisterRoutes(s.router)

	// Serve generated monitoring reports, if configured
	if s.cfg.ReportsDir == "" {
		return
	}
	if info, err := os.Stat(s.cfg.ReportsDir); err != nil || !info.IsDir() {
		s.logger.Warn().Str("dir", s.cfg.ReportsDir).Msg("Reports directory not available")
		return
	}
	s.router.PathPrefix("/reports/").Handler(
		http.StripPrefix("/reports/", http.FileServer(http.Dir(s.cfg.ReportsDir))))
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for HTTP connections. It returns nil after Stop.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info().Str("addr", s.cfg.Addr()).Msg("Server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
