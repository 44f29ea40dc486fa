package usecase

import (
	"context"
	"fmt"
	"time"

	"TokenLens/internal/domain/models"
	drepo "TokenLens/internal/domain/repository"
	"TokenLens/pkg/logger"
)

// Event backends.
const (
	BackendLog        = "log"
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
	BackendNone       = "none"
)

// EventProcessor routes fetch events to the configured backend.
type EventProcessor struct {
	pub     drepo.Publisher
	store   drepo.Storage
	metrics drepo.Metrics
	log     *logger.Logger
	backend string
}

// NewEventProcessor checks that the backend has what it needs. pub and
// store may be nil when their backend is not selected.
func NewEventProcessor(backend string, pub drepo.Publisher, store drepo.Storage, metrics drepo.Metrics, log *logger.Logger) (*EventProcessor, error) {
	switch backend {
	case BackendLog, BackendNone:
	case BackendKafka:
		if pub == nil {
			return nil, fmt.Errorf("event backend %s: publisher required", backend)
		}
	case BackendClickHouse:
		if store == nil {
			return nil, fmt.Errorf("event backend %s: storage required", backend)
		}
	default:
		return nil, fmt.Errorf("unknown event backend: %s", backend)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &EventProcessor{pub: pub, store: store, metrics: metrics, log: log, backend: backend}, nil
}

func (p *EventProcessor) Backend() string { return p.backend }

// ProcessBatch delivers events in one backend call. The log backend writes
// one line per event.
func (p *EventProcessor) ProcessBatch(ctx context.Context, events []*models.Event) error {
	if len(events) == 0 || p.backend == BackendNone {
		return nil
	}
	start := time.Now()
	var err error

	switch p.backend {
	case BackendLog:
		for _, e := range events {
			p.logEvent(e)
		}
	case BackendKafka:
		err = p.pub.PublishBatch(ctx, events)
	case BackendClickHouse:
		err = p.store.StoreBatch(ctx, events)
	}

	if err != nil {
		p.recordError("event_process_batch")
		return fmt.Errorf("process batch: %w", err)
	}
	if p.metrics != nil {
		for _, e := range events {
			p.metrics.RecordEventSent(p.backend, string(e.Capability))
		}
		p.metrics.RecordLatency("event_process_batch", time.Since(start).Seconds())
	}
	return nil
}

func (p *EventProcessor) logEvent(e *models.Event) {
	fields := []logger.Field{
		logger.String("stage", e.Stage),
		logger.String("token", e.TokenKey),
		logger.String("capability", string(e.Capability)),
		logger.String("cache_status", string(e.CacheStatus)),
		logger.Int64("elapsed_ms", e.ElapsedMs),
		logger.String("outcome", string(e.Outcome)),
	}
	if e.Provider != "" {
		fields = append(fields, logger.String("provider", e.Provider))
	}
	if e.ErrorKind != "" {
		fields = append(fields, logger.String("error_kind", string(e.ErrorKind)))
	}
	if e.ReportID != "" {
		fields = append(fields, logger.String("report_id", e.ReportID))
	}
	p.log.Info("fetch event", fields...)
}

func (p *EventProcessor) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}
