package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRemote struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttl     map[string]time.Duration
	failGet error
	failSet error
}

func newStubRemote() *stubRemote {
	return &stubRemote{data: map[string][]byte{}, ttl: map[string]time.Duration{}}
}

func (s *stubRemote) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	if s.failSet != nil {
		return s.failSet
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = b
	s.ttl[key] = expiration
	return nil
}

func (s *stubRemote) Get(_ context.Context, key string, dest interface{}) error {
	if s.failGet != nil {
		return s.failGet
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data[key]
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(b, dest)
}

func (s *stubRemote) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.ttl[key]
	if !ok {
		return 0, ErrCacheMiss
	}
	return d, nil
}

func (s *stubRemote) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
		delete(s.ttl, k)
	}
	return nil
}

func (s *stubRemote) Exists(_ context.Context, keys ...string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if _, ok := s.data[k]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRemote) Close() error { return nil }

type point struct {
	X int `json:"x"`
}

func TestLayeredBackfillsFromRemote(t *testing.T) {
	remote := newStubRemote()
	require.NoError(t, remote.Set(context.Background(), "p", point{X: 7}, time.Minute))

	mem := NewMemoryCache(WithMemoryCleanup(0))
	lc := NewLayered[point](mem, remote)
	defer lc.Close()

	got, ok := lc.Get(context.Background(), "p")
	require.True(t, ok)
	assert.Equal(t, 7, got.X)

	ttl, ok := mem.TTL("p")
	require.True(t, ok, "L1 backfilled")
	assert.InDelta(t, time.Minute.Seconds(), ttl.Seconds(), 1)
}

func TestLayeredWriteThrough(t *testing.T) {
	remote := newStubRemote()
	lc := NewLayered[point](NewMemoryCache(WithMemoryCleanup(0)), remote)
	defer lc.Close()

	lc.Set(context.Background(), "p", point{X: 3}, time.Second)
	ok, _ := remote.Exists(context.Background(), "p")
	assert.True(t, ok)

	lc.Delete(context.Background(), "p")
	_, hit := lc.Get(context.Background(), "p")
	assert.False(t, hit)
}

func TestLayeredRemoteErrorsDegradeToMiss(t *testing.T) {
	remote := newStubRemote()
	remote.failGet = errors.New("connection refused")
	remote.failSet = errors.New("connection refused")

	var ops []string
	lc := NewLayered[point](NewMemoryCache(WithMemoryCleanup(0)), remote,
		WithLayeredErrorHandler(func(op string, err error) { ops = append(ops, op) }))
	defer lc.Close()

	_, ok := lc.Get(context.Background(), "missing")
	assert.False(t, ok)

	lc.Set(context.Background(), "p", point{X: 1}, time.Second)
	got, ok := lc.Get(context.Background(), "p")
	require.True(t, ok, "L1 still serves")
	assert.Equal(t, 1, got.X)
	assert.Equal(t, []string{"get", "set"}, ops)
}

func TestLayeredWithoutRemote(t *testing.T) {
	lc := NewLayered[point](NewMemoryCache(WithMemoryCleanup(0)), nil)
	defer lc.Close()

	_, ok := lc.Get(context.Background(), "p")
	assert.False(t, ok)
	lc.Set(context.Background(), "p", point{X: 2}, time.Second)
	got, ok := lc.Get(context.Background(), "p")
	require.True(t, ok)
	assert.Equal(t, 2, got.X)
}
