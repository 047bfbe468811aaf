// Package api serves the sensor registry over HTTP and hosts the
// OAuth callback.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/ouraview/internal/oura"
	"github.com/lox/ouraview/internal/sensor"
)

type Server struct {
	scheduler *sensor.Scheduler
	// tokens maps sensor name to its token store. Empty in personal
	// access token mode.
	tokens map[string]*oura.TokenStore
	port   string
}

func NewServer(scheduler *sensor.Scheduler, tokens map[string]*oura.TokenStore, port string) *Server {
	if tokens == nil {
		tokens = map[string]*oura.TokenStore{}
	}
	return &Server{
		scheduler: scheduler,
		tokens:    tokens,
		port:      port,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/sensors", s.handleSensors)
	mux.HandleFunc("/api/sensors/", s.handleSensor)
	mux.HandleFunc(OAuthCallbackPath, s.handleOAuthCallback)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
