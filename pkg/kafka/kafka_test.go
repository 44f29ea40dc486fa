package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffWithJitterStaysInRange(t *testing.T) {
	for attempt := 1; attempt <= 8; attempt++ {
		d := backoffWithJitter(50*time.Millisecond, time.Second, attempt)
		assert.GreaterOrEqual(t, d, 25*time.Millisecond)
		assert.LessOrEqual(t, d, time.Second)
	}
}

func TestHookChainRecoversPanics(t *testing.T) {
	var errs int
	chain := NewHookChain(
		HookFuncs{Err: func(context.Context, string, kafka.Message, []byte, error) { errs++ }},
		nil,
		HookFuncs{Before: func(context.Context, string, kafka.Message, []byte) (context.Context, []byte, error) {
			panic("boom")
		}},
	)

	_, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte("x"))
	var hookErr *HookError
	require.True(t, errors.As(err, &hookErr))
	assert.Equal(t, "ERR_PANIC", hookErr.Code)
	assert.Equal(t, 1, errs)
}

func TestHeaderHookCopiesHeaders(t *testing.T) {
	km := kafka.Message{Headers: []kafka.Header{{Key: HeaderReportID, Value: []byte("r-1")}}}
	ctx, data, err := HeaderHook(HeaderReportID, "missing").BeforeHandle(context.Background(), "t", km, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
	assert.Equal(t, "r-1", HeaderFromContext(ctx, HeaderReportID))
	assert.Empty(t, HeaderFromContext(ctx, "missing"))
}

func TestConstructorsRequireBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
	_, err = NewConsumer()
	assert.Error(t, err)
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(b))

	b, err = encodeValue("raw")
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))
}
