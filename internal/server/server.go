// Package server provides the HTTP and HTTPS servers that receive GitHub
// webhook events.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/simplesurance/mergeguard/internal/logfields"
	github_prov "github.com/simplesurance/mergeguard/internal/provider/github"
	"github.com/simplesurance/mergeguard/internal/tracing"
)

const loggerName = "http_server"

const (
	DefaultWebhookEndpoint = "/webhook"

	HealthzEndpoint = "/healthz"
	MetricsEndpoint = "/metrics"
)

const readHeaderTimeout = 10 * time.Second

type Config struct {
	HTTPListenAddr  string
	HTTPSListenAddr string
	HTTPSCertFile   string
	HTTPSKeyFile    string
	WebhookEndpoint string
}

// Server serves the webhook, health and metrics endpoints on HTTP and
// HTTPS listeners.
type Server struct {
	cfg     Config
	handler http.Handler
	logger  *zap.Logger

	servers []*http.Server
	wg      sync.WaitGroup
}

// New returns a server that passes POST requests to the webhook endpoint to
// webhook.
func New(cfg Config, webhook http.Handler) *Server {
	if cfg.WebhookEndpoint == "" {
		cfg.WebhookEndpoint = DefaultWebhookEndpoint
	}

	s := Server{
		cfg:    cfg,
		logger: zap.L().Named(loggerName),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+HealthzEndpoint, healthz)
	mux.Handle("GET "+MetricsEndpoint, promhttp.Handler())
	mux.Handle(
		cfg.WebhookEndpoint,
		otelhttp.NewHandler(s.logRequests(webhook), "webhook"),
	)

	s.handler = mux

	return &s
}

func healthz(resp http.ResponseWriter, _ *http.Request) {
	github_prov.WriteResponse(resp, http.StatusOK, "Server is running fine")
}

// Handler returns the handler for all endpoints.
func (s *Server) Handler() http.Handler {
	return s.handler
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(resp http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := statusRecorder{ResponseWriter: resp, status: http.StatusOK}

		next.ServeHTTP(&rec, req)

		tracing.WithTrace(req.Context(), s.logger).Debug(
			"http request processed",
			logfields.Event("http_request_processed"),
			zap.String("http_method", req.Method),
			zap.String("http_path", req.URL.Path),
			zap.String("http_remote_addr", req.RemoteAddr),
			zap.Int("http_status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// Start starts the configured listeners. It returns an error if a listener
// can not be created. The servers run until Shutdown is called.
func (s *Server) Start() error {
	if s.cfg.HTTPListenAddr == "" && s.cfg.HTTPSListenAddr == "" {
		return errors.New("no listen address configured")
	}

	if s.cfg.HTTPListenAddr != "" {
		ln, err := net.Listen("tcp", s.cfg.HTTPListenAddr)
		if err != nil {
			return fmt.Errorf("creating http listener failed: %w", err)
		}

		srv := s.newHTTPServer(nil)
		s.serve("http", srv, func() error { return srv.Serve(ln) }, ln.Addr())
	}

	if s.cfg.HTTPSListenAddr != "" {
		cert, err := tls.LoadX509KeyPair(s.cfg.HTTPSCertFile, s.cfg.HTTPSKeyFile)
		if err != nil {
			return fmt.Errorf("loading tls certificate failed: %w", err)
		}

		ln, err := net.Listen("tcp", s.cfg.HTTPSListenAddr)
		if err != nil {
			return fmt.Errorf("creating https listener failed: %w", err)
		}

		srv := s.newHTTPServer(&tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})
		s.serve("https", srv, func() error { return srv.ServeTLS(ln, "", "") }, ln.Addr())
	}

	return nil
}

func (s *Server) newHTTPServer(tlsCfg *tls.Config) *http.Server {
	srv := http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		TLSConfig:         tlsCfg,
		ErrorLog:          zap.NewStdLog(s.logger),
	}

	s.servers = append(s.servers, &srv)

	return &srv
}

func (s *Server) serve(proto string, srv *http.Server, serveFn func() error, addr net.Addr) {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.logger.Info(
			proto+" server started",
			logfields.Event(proto+"_server_started"),
			zap.Stringer("listenAddr", addr),
		)

		err := serveFn()
		if errors.Is(err, http.ErrServerClosed) {
			s.logger.Info(proto+" server terminated", logfields.Event(proto+"_server_terminated"))
			return
		}

		s.logger.Error(
			proto+" server terminated unexpectedly",
			logfields.Event(proto+"_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

// Shutdown stops accepting new connections and waits until running
// requests finished or ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	for _, srv := range s.servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	s.wg.Wait()

	return errors.Join(errs...)
}
