// Package services is the composition root for the webhook receiver: it
// re-exports the public contracts and wires the verifier, processor, cache
// handlers, forwarder, and HTTP surface from one config.
package services

import (
	"context"
	"fmt"

	"github.com/singularitybridge/sb-api-services-v2-sub008/adapters/gologger"
	"github.com/singularitybridge/sb-api-services-v2-sub008/core"
	"github.com/singularitybridge/sb-api-services-v2-sub008/forward"
	"github.com/singularitybridge/sb-api-services-v2-sub008/httpapi"
	"github.com/singularitybridge/sb-api-services-v2-sub008/security"
	"github.com/singularitybridge/sb-api-services-v2-sub008/transport"
	"github.com/singularitybridge/sb-api-services-v2-sub008/webhooks"
)

type Config = core.Config
type WebhookConfig = core.WebhookConfig
type ForwardConfig = core.ForwardConfig
type CacheConfig = core.CacheConfig

type Logger = core.Logger
type LoggerProvider = core.LoggerProvider

type WebhookDelta = core.WebhookDelta
type WebhookDeltaData = core.WebhookDeltaData
type WebhookPayload = core.WebhookPayload
type DeltaError = core.DeltaError
type ProcessingResult = core.ProcessingResult
type CacheEntry = core.CacheEntry
type ForwardEnvelope = core.ForwardEnvelope
type ActionResult = core.ActionResult

type EventCacheStore = core.EventCacheStore
type EventCachePurger = core.EventCachePurger
type EventForwarder = core.EventForwarder
type TransportAdapter = core.TransportAdapter
type MetricsRecorder = core.MetricsRecorder

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// Receiver bundles the wired webhook pipeline. Fields are exported so
// callers can reach individual components after construction.
type Receiver struct {
	Config    core.Config
	Logger    core.Logger
	Cache     core.EventCacheStore
	Forwarder core.EventForwarder
	Processor *webhooks.BatchProcessor
	Handlers  *webhooks.CacheHandlers
	Server    *httpapi.Server
}

type Option func(*receiverOptions)

type receiverOptions struct {
	logger    core.Logger
	provider  core.LoggerProvider
	metrics   core.MetricsRecorder
	cache     core.EventCacheStore
	forwarder core.EventForwarder
	adapter   core.TransportAdapter
	verifier  webhooks.Verifier
}

func WithLogger(logger core.Logger) Option {
	return func(o *receiverOptions) { o.logger = logger }
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(o *receiverOptions) { o.provider = provider }
}

func WithMetrics(metrics core.MetricsRecorder) Option {
	return func(o *receiverOptions) { o.metrics = metrics }
}

// WithEventCache swaps the default in-memory store for a durable one, e.g.
// the bun-backed store from store/sql.
func WithEventCache(store core.EventCacheStore) Option {
	return func(o *receiverOptions) { o.cache = store }
}

func WithForwarder(forwarder core.EventForwarder) Option {
	return func(o *receiverOptions) { o.forwarder = forwarder }
}

// WithTransport overrides the HTTP transport used by the default forwarder.
func WithTransport(adapter core.TransportAdapter) Option {
	return func(o *receiverOptions) { o.adapter = adapter }
}

// WithVerifier replaces the single-secret verifier built from the config.
func WithVerifier(verifier webhooks.Verifier) Option {
	return func(o *receiverOptions) { o.verifier = verifier }
}

// WithSigningKeys verifies inbound signatures against a rotation keyring
// instead of the single configured secret.
func WithSigningKeys(keys security.Keyring) Option {
	return func(o *receiverOptions) { o.verifier = security.NewKeyringVerifier(keys) }
}

// NewReceiver wires the full pipeline: signature verification, batch
// processing into the event cache, optional forwarding, and the HTTP
// surface. The zero-dependency default runs entirely in memory.
func NewReceiver(cfg core.Config, opts ...Option) (*Receiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := receiverOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}

	_, logger := gologger.Resolve(cfg.ServiceName, options.provider, options.logger)

	cache := options.cache
	if cache == nil {
		cache = webhooks.NewInMemoryEventCacheStore()
	}

	forwarder := options.forwarder
	if forwarder == nil && cfg.Forward.URL != "" {
		adapter := options.adapter
		if adapter == nil {
			adapter = transport.NewRESTAdapter(nil)
		}
		f := forward.NewForwarder(adapter, cfg.Forward.URL, cfg.Forward.Secret)
		if cfg.Forward.Timeout > 0 {
			f.Timeout = cfg.Forward.Timeout
		}
		f.Logger = logger
		forwarder = f
	}

	processor := webhooks.NewBatchProcessor()
	processor.Logger = logger
	if options.metrics != nil {
		processor.Metrics = options.metrics
	}

	handlers := webhooks.NewCacheHandlers(cache, cfg.CacheTTL())
	handlers.Forwarder = forwarder
	if err := handlers.RegisterAll(processor); err != nil {
		return nil, err
	}

	server, err := httpapi.NewServer(cfg, processor)
	if err != nil {
		return nil, err
	}
	server.Logger = logger
	if options.metrics != nil {
		server.Metrics = options.metrics
	}
	if options.verifier != nil {
		server.Verifier = options.verifier
	}

	return &Receiver{
		Config:    cfg,
		Logger:    logger,
		Cache:     cache,
		Forwarder: forwarder,
		Processor: processor,
		Handlers:  handlers,
		Server:    server,
	}, nil
}

// Start runs the HTTP surface until ctx is cancelled.
func (r *Receiver) Start(ctx context.Context) error {
	if r == nil || r.Server == nil {
		return fmt.Errorf("services: receiver is not configured")
	}
	return r.Server.Start(ctx)
}
