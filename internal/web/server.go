package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/saltyorg/inventory/internal/config"
	"github.com/saltyorg/inventory/internal/inventory"
	"github.com/saltyorg/inventory/internal/web/handlers"
	"github.com/saltyorg/inventory/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	store      *inventory.Database
	port       int
	bind       string
	allowedNet *net.IPNet
	router     *chi.Mux
	handlers   *handlers.Handlers
}

// NewServer creates a new web server for store
func NewServer(store *inventory.Database, cfg config.ServerConfig) (*Server, error) {
	var allowedNet *net.IPNet
	if cfg.AllowSubnet != "" {
		_, ipNet, err := net.ParseCIDR(cfg.AllowSubnet)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed subnet %q: %w", cfg.AllowSubnet, err)
		}
		allowedNet = ipNet
	}

	s := &Server{
		store:      store,
		port:       cfg.Port,
		bind:       cfg.Bind,
		allowedNet: allowedNet,
		router:     chi.NewRouter(),
		handlers:   handlers.New(store),
	}

	s.setupRoutes()
	return s, nil
}

// Handlers returns the request handlers so callers can attach version and maintenance info
func (s *Server) Handlers() *handlers.Handlers {
	return s.handlers
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := s.router
	h := s.handlers

	// Global middleware (applied to all routes, except timeout which is per-group)
	r.Use(chimiddleware.RequestID)
	// AllowSubnet must come BEFORE RealIP so we check the actual connection source
	r.Use(middleware.AllowSubnet(s.allowedNet))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Live streams - no timeout (long-lived connections)
	r.Group(func(r chi.Router) {
		r.Get("/api/items/stream", h.StreamItems)
		r.Get("/api/items/{id}/stream", h.StreamItem)
		r.Get("/api/ws/items", h.ItemsWebSocket)
	})

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(60 * time.Second))
		r.Get("/healthz", h.Health)

		r.Get("/api/items", h.ListItems)
		r.Post("/api/items", h.CreateItem)
		r.Get("/api/items/{id}", h.GetItem)
		r.Put("/api/items/{id}", h.UpdateItem)
		r.Delete("/api/items/{id}", h.DeleteItem)
	})
}

// Start runs the HTTP server until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	var addr string
	if s.bind != "" {
		addr = fmt.Sprintf("%s:%d", s.bind, s.port)
	} else {
		addr = fmt.Sprintf(":%d", s.port)
	}

	timeouts := config.GetTimeouts()
	server := &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: timeouts.HTTPRead,
		// WriteTimeout disabled (0) to allow SSE and WebSocket streams
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}
