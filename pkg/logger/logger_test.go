package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.batches)
}

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.DebugLevel).With(String("component", "chain"))

	l.Info("provider done", String("provider", "coingecko"), Duration("elapsed_ms", 1500*time.Millisecond), Float64("score", 42.5))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "chain", line["component"])
	assert.Equal(t, "coingecko", line["provider"])
	assert.Equal(t, 1500.0, line["elapsed_ms"])
	assert.Equal(t, 42.5, line["score"])
	assert.Equal(t, "provider done", line["message"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.WarnLevel)
	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len())
	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestCollectorDeduplicatesErrors(t *testing.T) {
	pub := &capturePublisher{}
	l := NewWriter(&bytes.Buffer{}, zerolog.InfoLevel)
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "logs", Publisher: pub})

	for i := 0; i < 3; i++ {
		l.Error("upstream failed", Error(errors.New("boom")))
	}
	require.Equal(t, 1, l.collector.Pending())

	l.RemoveCollector()
	require.Equal(t, 1, pub.count())
	assert.Equal(t, "logs", pub.topic)
	assert.Equal(t, 3, pub.batches[0][0].Count)
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Publisher: pub})
	defer c.Close()

	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")

	assert.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, c.Pending())
}

func TestLoggerAnyAndStringsFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.DebugLevel)

	l.Debug("prefetch", Strings("tokens", []string{"BTC", "ETH"}), Any("capabilities", []string{"market_snapshot"}))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "BTC, ETH", line["tokens"])
	assert.Equal(t, []interface{}{"market_snapshot"}, line["capabilities"])
}
