package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thisisjab/eventsearch/search"
)

// CompilerSource hands out the compiler to use for a request. The compiler
// may change between calls when the schema is reloaded.
type CompilerSource interface {
	Compiler() *search.Compiler
}

type server struct {
	cfg       Config
	logger    *slog.Logger
	compilers CompilerSource
	registry  *prometheus.Registry
	metrics   *Metrics
}

func NewServer(cfg Config, logger *slog.Logger, compilers CompilerSource) (*server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &server{
		cfg:       cfg,
		logger:    logger,
		compilers: compilers,
		registry:  registry,
		metrics:   NewMetrics(registry),
	}, nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/healthcheck", s.healthCheckHandler)
	mux.HandleFunc("POST /api/compile", s.compileHandler)
	mux.HandleFunc("GET /api/schema", s.schemaHandler)

	if s.cfg.Metrics.Enabled {
		mux.Handle("GET "+s.cfg.Metrics.Path, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	return s.requestIDMiddleware(s.recoverPanicMiddleware(s.requestLoggerMiddleware(s.corsMiddleware(mux))))
}

func (s *server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.routes(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down server", "addr", s.cfg.Addr)
		if err := srv.Shutdown(context.Background()); err != nil {
			s.logger.Error("failed to shutdown server", "addr", s.cfg.Addr, "error", err)
		}
	}()

	var serverErr error
	if s.cfg.CertFile != "" && s.cfg.KeyFile != "" {
		s.logger.Info("starting server with TLS", "addr", s.cfg.Addr)
		serverErr = srv.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
	} else {
		s.logger.Info("starting server without TLS", "addr", s.cfg.Addr)
		serverErr = srv.ListenAndServe()
	}

	if serverErr != nil && serverErr != http.ErrServerClosed {
		return serverErr
	}

	return nil
}
