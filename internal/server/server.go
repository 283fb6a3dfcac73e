package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type Server struct {
	config   *Config
	server   *http.Server
	services *Services
}

func New(config *Config) (*Server, error) {
	services, err := NewServices(config)
	if err != nil {
		return nil, err
	}

	httpHandler := SetupRoutes(services, config)

	return &Server{
		config:   config,
		services: services,
		server: &http.Server{
			Addr:    config.HTTP.Addr,
			Handler: httpHandler,
		},
	}, nil
}

func (s *Server) Start(ctx context.Context) error {
	slog.Info("quillbox server start", "content", s.config.Data.ContentDir)
	defer slog.Info("quillbox server stop")

	if err := s.services.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.runHTTPServer(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		slog.Info("http server stopped")
	}()

	select {
	case err := <-errCh:
		slog.Error("server start error", "error", err)
		return err
	case <-ctx.Done():
	}

	slog.Info("quillbox shutdown signal")
	if err := s.Stop(context.Background()); err != nil {
		slog.Error("quillbox shutdown error", "error", err)
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	return s.services.Shutdown(shutdownCtx)
}

func (s *Server) runHTTPServer() error {
	if s.config.HTTP.CertFile != "" && s.config.HTTP.KeyFile != "" {
		slog.Info("server start tls", "addr", s.config.HTTP.Addr, "cert", s.config.HTTP.CertFile, "key", s.config.HTTP.KeyFile)
		return s.server.ListenAndServeTLS(s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	}
	slog.Info("server start http", "addr", s.config.HTTP.Addr)
	return s.server.ListenAndServe()
}
