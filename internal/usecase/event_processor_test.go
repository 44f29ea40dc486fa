package usecase

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"TokenLens/internal/domain/models"
	"TokenLens/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStorage struct {
	mu     sync.Mutex
	events []*models.Event
	err    error
}

func (s *memStorage) Init(context.Context) error { return nil }
func (s *memStorage) Store(_ context.Context, e *models.Event) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return nil
}
func (s *memStorage) StoreBatch(ctx context.Context, events []*models.Event) error {
	for _, e := range events {
		if err := s.Store(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
func (s *memStorage) Query(context.Context, string, time.Time, time.Time, int) ([]*models.Event, error) {
	return nil, nil
}
func (s *memStorage) Health(context.Context) error { return nil }

type memPublisher struct {
	batches int
	sent    []*models.Event
}

func (p *memPublisher) PublishBatch(_ context.Context, events []*models.Event) error {
	p.batches++
	p.sent = append(p.sent, events...)
	return nil
}

type tallyMetrics struct {
	mu     sync.Mutex
	sent   map[string]int
	errors map[string]int
}

func newTally() *tallyMetrics {
	return &tallyMetrics{sent: map[string]int{}, errors: map[string]int{}}
}

func (m *tallyMetrics) RecordFetch(string, string, string, string, float64) {}
func (m *tallyMetrics) RecordReport(float64, int)                          {}
func (m *tallyMetrics) RecordLatency(string, float64)                      {}
func (m *tallyMetrics) RecordEventSent(backend, _ string) {
	m.mu.Lock()
	m.sent[backend]++
	m.mu.Unlock()
}
func (m *tallyMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func sampleEvent(id string) *models.Event {
	return &models.Event{
		ID: id, TokenKey: "BTC", Stage: models.StageProvider,
		Capability: models.CapabilityMarketSnapshot, Provider: "coingecko",
		CacheStatus: models.CacheMiss, Outcome: models.StatusSuccess, At: time.Now(),
	}
}

func TestNewEventProcessorValidatesBackend(t *testing.T) {
	_, err := NewEventProcessor(BackendKafka, nil, nil, nil, nil)
	assert.Error(t, err)
	_, err = NewEventProcessor(BackendClickHouse, nil, nil, nil, nil)
	assert.Error(t, err)
	_, err = NewEventProcessor("s3", nil, nil, nil, nil)
	assert.Error(t, err)

	p, err := NewEventProcessor(BackendNone, nil, nil, nil, nil)
	require.NoError(t, err)
	assert.NoError(t, p.ProcessBatch(context.Background(), []*models.Event{sampleEvent("e1")}))
}

func TestEventProcessorRoutesToStorage(t *testing.T) {
	store := &memStorage{}
	metrics := newTally()
	p, err := NewEventProcessor(BackendClickHouse, nil, store, metrics, nil)
	require.NoError(t, err)

	require.NoError(t, p.ProcessBatch(context.Background(), []*models.Event{sampleEvent("e1")}))
	require.NoError(t, p.ProcessBatch(context.Background(), []*models.Event{sampleEvent("e2"), sampleEvent("e3")}))

	assert.Len(t, store.events, 3)
	assert.Equal(t, 3, metrics.sent[BackendClickHouse])
}

func TestEventProcessorBatchesToKafka(t *testing.T) {
	pub := &memPublisher{}
	p, err := NewEventProcessor(BackendKafka, pub, nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, p.ProcessBatch(context.Background(), []*models.Event{sampleEvent("e1"), sampleEvent("e2")}))
	assert.Equal(t, 1, pub.batches)
	assert.Len(t, pub.sent, 2)
}

func TestEventProcessorWrapsBackendErrors(t *testing.T) {
	store := &memStorage{err: errors.New("clickhouse down")}
	metrics := newTally()
	p, err := NewEventProcessor(BackendClickHouse, nil, store, metrics, nil)
	require.NoError(t, err)

	err = p.ProcessBatch(context.Background(), []*models.Event{sampleEvent("e1")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clickhouse down")
	assert.Equal(t, 1, metrics.errors["event_process_batch"])
	assert.Zero(t, metrics.sent[BackendClickHouse])
}

func TestEventProcessorLogsEvents(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewEventProcessor(BackendLog, nil, nil, nil, logger.NewWriter(&buf, zerolog.InfoLevel))
	require.NoError(t, err)

	e := sampleEvent("e1")
	e.ReportID = "r-42"
	require.NoError(t, p.ProcessBatch(context.Background(), []*models.Event{e}))

	out := buf.String()
	assert.Contains(t, out, `"provider":"coingecko"`)
	assert.Contains(t, out, `"report_id":"r-42"`)
	assert.NotContains(t, out, "error_kind")
}
