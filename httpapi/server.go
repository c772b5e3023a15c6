package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/singularitybridge/sb-api-services-v2-sub008/core"
	"github.com/singularitybridge/sb-api-services-v2-sub008/webhooks"
)

const defaultMaxBodyBytes = int64(1 << 20)

// Server exposes the webhook receiving surface over HTTP.
type Server struct {
	Config core.Config
	// Verifier defaults to a single-secret check built from the config;
	// replace it with a security.KeyringVerifier to honor rotation windows.
	Verifier        webhooks.Verifier
	SignatureHeader string
	Processor       *webhooks.BatchProcessor
	Logger          core.Logger
	Metrics         core.MetricsRecorder
	MaxBodyBytes    int64
	Now             func() time.Time

	httpServer *http.Server
}

func NewServer(cfg core.Config, processor *webhooks.BatchProcessor) (*Server, error) {
	if processor == nil {
		return nil, fmt.Errorf("httpapi: batch processor is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Server{
		Config:          cfg,
		Verifier:        webhooks.NewSignatureVerifier(cfg.Webhook.Secret, cfg.Webhook.SignatureHeader),
		SignatureHeader: cfg.Webhook.SignatureHeader,
		Processor:       processor,
		Metrics:         core.NopMetricsRecorder(),
		MaxBodyBytes:    defaultMaxBodyBytes,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// Start runs the HTTP server until ctx is cancelled, then drains in-flight
// requests before returning.
func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.Processor == nil {
		return fmt.Errorf("httpapi: server is not configured")
	}

	s.httpServer = &http.Server{
		Addr:         s.Config.Listen,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logInfo(ctx, "http server starting", "listen", s.Config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logInfo(ctx, "http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("httpapi: shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("httpapi: serve: %w", err)
	}
}

// Router builds the chi mux. Exposed so tests can drive the surface through
// httptest without binding a port.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/webhooks/verify", s.handleChallenge)
	r.Post("/webhooks", s.handleWebhook)
	if !s.Config.IsProduction() {
		r.Post("/webhooks/test", s.handleTestWebhook)
	}

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logInfo(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// verify fails closed when no verifier is configured.
func (s *Server) verify(ctx context.Context, rawBody []byte, signature string) error {
	if s == nil || s.Verifier == nil {
		return fmt.Errorf("httpapi: no signature verifier configured")
	}
	return s.Verifier.Verify(ctx, rawBody, signature)
}

func (s *Server) signatureHeader() string {
	if s != nil && s.SignatureHeader != "" {
		return s.SignatureHeader
	}
	return s.Config.Webhook.SignatureHeader
}

func (s *Server) maxBodyBytes() int64 {
	if s != nil && s.MaxBodyBytes > 0 {
		return s.MaxBodyBytes
	}
	return defaultMaxBodyBytes
}

func (s *Server) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Server) metrics() core.MetricsRecorder {
	if s != nil && s.Metrics != nil {
		return s.Metrics
	}
	return core.NopMetricsRecorder()
}

func (s *Server) logInfo(ctx context.Context, message string, args ...any) {
	if s == nil || s.Logger == nil {
		return
	}
	s.logger(ctx).Info(message, args...)
}

func (s *Server) logWarn(ctx context.Context, message string, args ...any) {
	if s == nil || s.Logger == nil {
		return
	}
	s.logger(ctx).Warn(message, args...)
}

func (s *Server) logError(ctx context.Context, message string, args ...any) {
	if s == nil || s.Logger == nil {
		return
	}
	s.logger(ctx).Error(message, args...)
}

func (s *Server) logger(ctx context.Context) core.Logger {
	logger := s.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	return logger
}
