package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"TokenLens/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

type outcome string

const (
	outcomeDone    outcome = "done"
	outcomeRetry   outcome = "retry"
	outcomeDead    outcome = "dead"
	outcomeUnknown outcome = "unknown_type"
)

// RedisQueue is a Redis list backed work queue. Failed messages are parked
// in a sorted set until their retry time, and land in a dead letter list
// after RetryLimit retries.
type RedisQueue struct {
	log    *logger.Logger
	cfg    Config
	client redis.UniversalClient
	prefix string
	now    func() time.Time

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix sets the Redis key prefix.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithRegisterer registers queue metrics on reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) RedisQueueOption {
	return func(*RedisQueue) { initQueueMetrics(reg) }
}

func NewRedisQueue(log *logger.Logger, cfg Config, client redis.UniversalClient, opts ...RedisQueueOption) *RedisQueue {
	if log == nil {
		log = logger.Nop()
	}
	cfg.applyDefaults()
	r := &RedisQueue{
		log:    log,
		cfg:    cfg,
		client: client,
		prefix: "tokenlens:queue",
		now:    time.Now,
		jobs:   make(map[string]Job),
	}
	for _, opt := range opts {
		opt(r)
	}
	initQueueMetrics(nil)
	return r
}

// RegisterJob routes messages of job.Type() to job.
func (r *RedisQueue) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.Type()]; ok {
		r.log.Warn("job already registered", logger.String("type", job.Type()))
		return
	}
	r.jobs[job.Type()] = job
}

// Start pings Redis and launches the workers and the retry mover.
func (r *RedisQueue) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("queue already running")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	runCtx, stop := context.WithCancel(ctx)
	r.cancel = stop
	r.running = true

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(runCtx, i)
	}
	r.wg.Add(1)
	go r.retryLoop(runCtx)

	r.log.Info("redis queue started", logger.Int("workers", r.cfg.Workers), logger.String("prefix", r.prefix))
	return nil
}

// Stop cancels the workers and waits for in-flight jobs up to ctx.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.log.Info("redis queue stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue stop: %w", ctx.Err())
	}
}

// Enqueue pushes a message. It does not require the workers to be running.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	msg, err := NewMessage(msgType, payload, r.now())
	if err != nil {
		return err
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.queueKey(), b).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	observeQueue(msgType, "enqueued")
	return nil
}

func (r *RedisQueue) worker(ctx context.Context, id int) {
	defer r.wg.Done()
	for ctx.Err() == nil {
		res, err := r.client.BRPop(ctx, r.cfg.PollTimeout, r.queueKey()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			r.log.Error("brpop failed", logger.Int("worker_id", id), logger.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
			continue
		}
		if len(res) < 2 {
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			r.log.Error("undecodable queue message dropped", logger.Error(err))
			continue
		}
		r.settle(ctx, msg, r.process(ctx, &msg))
	}
}

// process runs the job for msg and decides what happens to it next.
func (r *RedisQueue) process(ctx context.Context, msg *Message) outcome {
	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.log.Error("no job registered", logger.String("type", msg.Type), logger.String("id", msg.ID))
		return outcomeUnknown
	}

	start := r.now()
	err := job.Handle(ctx, msg.Payload)
	if err == nil {
		r.log.Debug("job done", logger.String("type", msg.Type), logger.String("id", msg.ID),
			logger.Duration("elapsed", r.now().Sub(start)))
		return outcomeDone
	}

	msg.Attempts++
	msg.LastError = err.Error()
	r.log.Warn("job failed", logger.String("type", msg.Type), logger.String("id", msg.ID),
		logger.Int("attempt", msg.Attempts), logger.Error(err))

	if errors.Is(err, ErrPermanent) || msg.Attempts > r.cfg.RetryLimit {
		return outcomeDead
	}
	return outcomeRetry
}

func (r *RedisQueue) settle(ctx context.Context, msg Message, o outcome) {
	observeQueue(msg.Type, string(o))
	switch o {
	case outcomeRetry:
		at := r.now().Add(r.cfg.retryDelay(msg.Attempts))
		b, err := json.Marshal(msg)
		if err == nil {
			err = r.client.ZAdd(ctx, r.retryKey(), redis.Z{Score: float64(at.Unix()), Member: b}).Err()
		}
		if err != nil {
			r.log.Error("schedule retry failed", logger.String("id", msg.ID), logger.Error(err))
		}
	case outcomeDead, outcomeUnknown:
		b, err := json.Marshal(msg)
		if err == nil {
			err = r.client.LPush(ctx, r.deadKey(), b).Err()
		}
		if err != nil {
			r.log.Error("dead letter push failed", logger.String("id", msg.ID), logger.Error(err))
		}
	}
}

func (r *RedisQueue) retryLoop(ctx context.Context) {
	defer r.wg.Done()
	t := time.NewTicker(r.cfg.PollTimeout * 5)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.moveDue(ctx)
		}
	}
}

// moveDue requeues parked messages whose retry time has passed.
func (r *RedisQueue) moveDue(ctx context.Context) {
	due, err := r.client.ZRangeByScore(ctx, r.retryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(r.now().Unix(), 10),
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			r.log.Error("fetch due retries failed", logger.Error(err))
		}
		return
	}
	for _, m := range due {
		pipe := r.client.TxPipeline()
		pipe.ZRem(ctx, r.retryKey(), m)
		pipe.LPush(ctx, r.queueKey(), m)
		if _, err := pipe.Exec(ctx); err != nil {
			if ctx.Err() == nil {
				r.log.Error("requeue retry failed", logger.Error(err))
			}
			return
		}
	}
}

func (r *RedisQueue) queueKey() string { return r.prefix + ":messages" }
func (r *RedisQueue) retryKey() string { return r.prefix + ":retry" }
func (r *RedisQueue) deadKey() string  { return r.prefix + ":dlq" }

var (
	queueJobsTotal *prometheus.CounterVec
	queueOnce      sync.Once
)

func initQueueMetrics(reg prometheus.Registerer) {
	queueOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		queueJobsTotal = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "tokenlens_queue_jobs_total",
			Help: "Queue messages by type and outcome",
		}, []string{"type", "outcome"})
	})
}

func observeQueue(msgType, o string) {
	if queueJobsTotal != nil {
		queueJobsTotal.WithLabelValues(msgType, o).Inc()
	}
}

var _ Enqueuer = (*RedisQueue)(nil)
