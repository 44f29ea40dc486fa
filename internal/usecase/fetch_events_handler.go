package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"TokenLens/internal/domain/models"
	domrepo "TokenLens/internal/domain/repository"
	pkgkafka "TokenLens/pkg/kafka"
)

// FetchEventsHandler consumes fetch events from Kafka and writes them to storage.
type FetchEventsHandler struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
}

func NewFetchEventsHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics) *FetchEventsHandler {
	return &FetchEventsHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *FetchEventsHandler) Topic() string { return h.topic }

func (h *FetchEventsHandler) Handle(ctx context.Context, b []byte) error {
	var e models.Event
	if err := json.Unmarshal(b, &e); err != nil {
		h.recordError("consumer_unmarshal")
		return fmt.Errorf("decode fetch event: %w", err)
	}
	if e.ID == "" || e.TokenKey == "" || !e.Capability.IsValid() {
		h.recordError("consumer_validate")
		return fmt.Errorf("fetch event %q incomplete", e.ID)
	}
	if e.ReportID == "" {
		e.ReportID = pkgkafka.HeaderFromContext(ctx, pkgkafka.HeaderReportID)
	}
	if !e.At.IsZero() && h.metrics != nil {
		h.metrics.RecordLatency("event_ingest_lag", time.Since(e.At).Seconds())
	}

	start := time.Now()
	err := h.storage.Store(ctx, &e)
	if h.metrics != nil {
		h.metrics.RecordLatency("event_store", time.Since(start).Seconds())
	}
	if err != nil {
		h.recordError("consumer_store")
		return err
	}
	if h.metrics != nil {
		h.metrics.RecordEventSent("clickhouse", string(e.Capability))
	}
	return nil
}

func (h *FetchEventsHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}

var _ pkgkafka.MessageHandler = (*FetchEventsHandler)(nil)
