package server

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/operator-framework/satkernel/pkg/lib/profile"
)

// Option applies a configuration option to the given config.
type Option func(s *serverConfig)

func WithAddress(addr string) Option {
	return func(sc *serverConfig) {
		sc.addr = addr
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(sc *serverConfig) {
		sc.logger = logger
	}
}

// WithProfiling serves pprof handlers to loopback clients.
func WithProfiling(profiling bool) Option {
	return func(sc *serverConfig) {
		sc.profiling = profiling
	}
}

type serverConfig struct {
	addr      string
	logger    logrus.FieldLogger
	profiling bool
}

func defaultServerConfig() serverConfig {
	return serverConfig{
		addr:   ":8080",
		logger: logrus.New(),
	}
}

// Server serves health, metrics and optionally profiles while a
// long-running command works.
type Server struct {
	http   *http.Server
	logger logrus.FieldLogger
}

func New(options ...Option) *Server {
	sc := defaultServerConfig()
	for _, o := range options {
		o(&sc)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())
	if sc.profiling {
		sc.logger.Info("profiling enabled")
		profile.RegisterHandlers(mux)
	}

	return &Server{
		http:   &http.Server{Addr: sc.addr, Handler: mux},
		logger: sc.logger,
	}
}

func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is done, then shuts the server down. It
// returns nil after a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	errs := make(chan error, 1)
	go func() {
		s.logger.Infof("serving metrics on %s", s.http.Addr)
		errs <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return errors.Wrap(err, "serving metrics")
	case <-ctx.Done():
	}
	if err := s.http.Shutdown(context.Background()); err != nil {
		return err
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serving metrics")
	}
	return nil
}
