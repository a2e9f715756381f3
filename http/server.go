// Package http serves the prediction form, its JSON API and the metrics
// endpoint.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/text/language"

	"tptpredict/config"
	"tptpredict/errors"
	"tptpredict/form"
	"tptpredict/inference"
	"tptpredict/logger"
)

type Server struct {
	server *http.Server
	config ServerConfig
	events *EventHub
}

type ServerConfig struct {
	Port           int
	Timeout        time.Duration
	MaxRequestSize int64
	Title          string
	Locale         language.Tag
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           8501,
		Timeout:        30 * time.Second,
		MaxRequestSize: 1 << 20,
		Title:          "Prediksi Tingkat Pengangguran Terbuka (TPT) Indonesia",
		Locale:         language.Indonesian,
	}
}

// ServerConfigFromConfig maps the http and ui sections of cfg.
func ServerConfigFromConfig(cfg *config.Config) ServerConfig {
	return ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		MaxRequestSize: cfg.Http.MaxRequestSize,
		Title:          cfg.UI.Title,
		Locale:         form.ParseLocale(cfg.UI.Locale),
	}
}

func NewServer(config ServerConfig, invoker *inference.Invoker) (*Server, error) {
	h, err := newHandlers(config, invoker)
	if err != nil {
		return nil, err
	}
	events := NewEventHub()
	invoker.OnReload(events.ArtifactsReloaded)

	mux := http.NewServeMux()
	h.register(mux)
	mux.HandleFunc("GET /api/events", events.HandleWebSocket)

	chain := Chain(
		RecoveryMiddleware,
		LoggerMiddleware,
		SecurityHeadersMiddleware,
		RequestSizeMiddleware(config.MaxRequestSize),
		TimeoutMiddleware(config.Timeout),
	)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      chain(mux),
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout,
			IdleTimeout:  120 * time.Second,
		},
		config: config,
		events: events,
	}, nil
}

// Start blocks until the server stops.
func (s *Server) Start() error {
	logger.Infof("Starting HTTP server on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "server failed")
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	logger.Infof("Shutting down HTTP server...")
	s.events.Stop()
	if err := s.server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}
	return nil
}

func (s *Server) Addr() string {
	return s.server.Addr
}

// Events returns the hub notifying pages of artifact reloads.
func (s *Server) Events() *EventHub {
	return s.events
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
