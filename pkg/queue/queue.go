package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Enqueuer accepts work for later processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
}

// Config tunes workers and retries.
type Config struct {
	Workers    int
	RetryLimit int
	// RetryDelay is the first retry delay; it doubles per attempt up to MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	PollTimeout   time.Duration
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.RetryLimit < 0 {
		c.RetryLimit = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Second
	}
	if c.MaxRetryDelay < c.RetryDelay {
		c.MaxRetryDelay = 8 * c.RetryDelay
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = time.Second
	}
}

// Message is the wire form of queued work.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	LastError  string          `json:"last_error,omitempty"`
}

// NewMessage encodes payload into a fresh message.
func NewMessage(msgType string, payload interface{}, now time.Time) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return Message{ID: uuid.NewString(), Type: msgType, Payload: raw, EnqueuedAt: now.UTC()}, nil
}

// Decode unmarshals a job payload.
func Decode[T any](payload json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("%w: decode payload: %v", ErrPermanent, err)
	}
	return v, nil
}

// retryDelay is the wait before attempt n (1-based) is retried.
func (c Config) retryDelay(attempt int) time.Duration {
	d := c.RetryDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.MaxRetryDelay {
			return c.MaxRetryDelay
		}
	}
	return d
}
