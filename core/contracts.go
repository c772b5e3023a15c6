package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// EventCacheStore is the downstream collaborator webhook handlers write
// through. Implementations own their concurrency discipline.
type EventCacheStore interface {
	Upsert(ctx context.Context, entry CacheEntry) error
	Delete(ctx context.Context, grantID string, resourceType string, resourceID string) error
	Get(ctx context.Context, grantID string, resourceType string, resourceID string) (CacheEntry, error)
}

// EventCachePurger removes expired cache rows. Satisfied by the sql store and
// consumed by the maintenance job.
type EventCachePurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// EventForwarder relays a normalized event to the main application.
type EventForwarder interface {
	Forward(ctx context.Context, envelope ForwardEnvelope) error
}

type TransportRequest struct {
	Method   string
	URL      string
	Headers  map[string]string
	Query    map[string]string
	Body     []byte
	Metadata map[string]any
	Timeout  time.Duration
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

// TransportAdapter abstracts the outbound HTTP edge so providers and the
// forwarder can be exercised against fakes.
type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type CommandMessage interface {
	Type() string
}

type CommandDispatcher interface {
	Dispatch(ctx context.Context, msg any) error
}

type MetricsRecorder interface {
	IncrementCounter(ctx context.Context, name string, value int64, tags map[string]string)
	RecordHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type nopMetricsRecorder struct{}

func (nopMetricsRecorder) IncrementCounter(context.Context, string, int64, map[string]string) {}

func (nopMetricsRecorder) RecordHistogram(context.Context, string, float64, map[string]string) {}

// NopMetricsRecorder returns a recorder that drops every measurement.
func NopMetricsRecorder() MetricsRecorder {
	return nopMetricsRecorder{}
}
