// Package server exposes the queue manager over a JSON REST API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/vvatanabe/sqsredrive"
	"github.com/vvatanabe/sqsredrive/internal/constant"
	"github.com/vvatanabe/sqsredrive/internal/log"
	"github.com/vvatanabe/sqsredrive/internal/metrics"
)

// Service is the set of use cases served over HTTP. *sqsredrive.Manager implements it.
type Service interface {
	AddQueue(ctx context.Context, params *sqsredrive.AddQueueInput) (*sqsredrive.QueueConfiguration, error)
	ListQueues(ctx context.Context) ([]*sqsredrive.QueueConfiguration, error)
	GetQueue(ctx context.Context, id string) (*sqsredrive.QueueConfiguration, error)
	RefreshQueue(ctx context.Context, id string) (*sqsredrive.QueueConfiguration, error)
	RemoveQueue(ctx context.Context, id string) error
	PurgeQueue(ctx context.Context, id string) error
	ReceiveMessages(ctx context.Context, id string, params *sqsredrive.ReceiveInput) ([]sqsredrive.ReceivedMessage, error)
	ReceiveDLQMessages(ctx context.Context, id string, params *sqsredrive.ReceiveInput) ([]sqsredrive.ReceivedMessage, error)
	SendMessage(ctx context.Context, id string, params *sqsredrive.SendInput) (string, error)
	DeleteMessage(ctx context.Context, id, receiptHandle string) error
	ChangeVisibility(ctx context.Context, id, receiptHandle string, visibilityTimeout int) error
	RedriveBulk(ctx context.Context, id string, target sqsredrive.RedriveTarget) (*sqsredrive.RedriveResult, error)
	RedriveSelected(ctx context.Context, id string, messages []sqsredrive.MessageSnapshot) (*sqsredrive.RedriveResult, error)
	SetProfile(ctx context.Context, profile string) error
	Profile() string
	Profiles() []string
	VerifyCredentials(ctx context.Context) (*sqsredrive.CallerIdentity, error)
}

var _ Service = (*sqsredrive.Manager)(nil)

type Options struct {
	Logger logrus.FieldLogger
	// Metrics enables request metrics and the metrics endpoint when set.
	Metrics     *metrics.Metrics
	MetricsPath string
}

func WithLogger(logger logrus.FieldLogger) func(*Options) {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics, path string) func(*Options) {
	return func(o *Options) {
		o.Metrics = m
		if path != "" {
			o.MetricsPath = path
		}
	}
}

type Server struct {
	svc     Service
	logger  logrus.FieldLogger
	metrics *metrics.Metrics
	router  chi.Router
}

func New(svc Service, optFns ...func(*Options)) *Server {
	o := &Options{
		Logger:      log.Discard(),
		MetricsPath: constant.DefaultMetricsPath,
	}
	for _, opt := range optFns {
		opt(o)
	}
	s := &Server{
		svc:     svc,
		logger:  o.Logger,
		metrics: o.Metrics,
	}
	s.router = s.routes(o.MetricsPath)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes(metricsPath string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, metricsPath, s.metrics.Handler())
	}

	r.Route("/api/queues", func(r chi.Router) {
		r.Post("/", s.addQueue)
		r.Get("/", s.listQueues)
		r.Route("/{queueId}", func(r chi.Router) {
			r.Get("/", s.getQueue)
			r.Delete("/", s.removeQueue)
			r.Post("/refresh", s.refreshQueue)
			r.Post("/purge", s.purgeQueue)
			r.Get("/dlq/messages", s.receiveDLQMessages)
			r.Get("/messages", s.receiveMessages)
			r.Post("/messages", s.sendMessage)
			r.Delete("/messages", s.deleteMessage)
			r.Patch("/messages/visibility", s.changeVisibility)
			r.Post("/redrive", s.redriveBulk)
			r.Post("/redrive/selective", s.redriveSelected)
		})
	})
	r.Route("/api/config", func(r chi.Router) {
		r.Get("/profile", s.getProfile)
		r.Post("/profile", s.setProfile)
		r.Get("/profiles", s.listProfiles)
		r.Get("/test-credentials", s.testCredentials)
	})
	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if s.metrics != nil {
			s.metrics.ObserveHTTP(r.Method, route, status, elapsed)
		}
		s.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"route":      route,
			"status":     status,
			"elapsed":    elapsed,
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("handled request")
	})
}

// Run serves on addr until ctx is cancelled, then shuts down within shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, readTimeout, writeTimeout, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
