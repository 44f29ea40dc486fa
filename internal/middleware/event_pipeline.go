package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TokenLens/internal/domain/models"
	domrepo "TokenLens/internal/domain/repository"
	"TokenLens/pkg/logger"
)

// Proc is the downstream the pipeline forwards event batches to.
type Proc interface {
	ProcessBatch(ctx context.Context, events []*models.Event) error
}

// EventPipeline decouples event emission from delivery. Emit never blocks:
// events are queued and a background worker forwards them in batches of up
// to batchSize, waiting at most linger for a batch to fill. A failed batch
// is retried with backoff. A full queue drops the event.
type EventPipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	log     *logger.Logger
	bufSize int
	batch   int
	linger  time.Duration
	bufCh   chan *models.Event
	stopCh  chan struct{}
	done    chan struct{}
	mu      sync.Mutex
	started bool
	drain   time.Duration
}

type PipelineOption func(*EventPipeline)

// WithBufferSize sets the queue capacity.
func WithBufferSize(n int) PipelineOption {
	return func(p *EventPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithBatch sets the largest batch and how long the worker waits for one
// to fill after its first event.
func WithBatch(size int, linger time.Duration) PipelineOption {
	return func(p *EventPipeline) {
		if size > 0 {
			p.batch = size
		}
		if linger >= 0 {
			p.linger = linger
		}
	}
}

// WithDrainTimeout bounds how long Stop keeps forwarding queued events.
func WithDrainTimeout(d time.Duration) PipelineOption {
	return func(p *EventPipeline) {
		if d > 0 {
			p.drain = d
		}
	}
}

func WithPipelineLogger(l *logger.Logger) PipelineOption {
	return func(p *EventPipeline) {
		if l != nil {
			p.log = l
		}
	}
}

func NewEventPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *EventPipeline {
	p := &EventPipeline{
		proc:    proc,
		metrics: metrics,
		log:     logger.Nop(),
		bufSize: 1024,
		batch:   100,
		linger:  200 * time.Millisecond,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
		drain:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.Event, p.bufSize)
	return p
}

// Emit validates and enqueues e.
func (p *EventPipeline) Emit(_ context.Context, e *models.Event) {
	if err := validateEvent(e); err != nil {
		p.recordError("pipeline_validate")
		p.log.Debug("dropping invalid event", logger.Error(err))
		return
	}
	select {
	case p.bufCh <- e:
	default:
		p.recordError("pipeline_buffer_full")
	}
}

// Len reports queued events.
func (p *EventPipeline) Len() int { return len(p.bufCh) }

// Start launches the forwarding worker.
func (p *EventPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.run(ctx)
}

// Stop ends the worker after forwarding what is queued, bounded by the
// drain timeout.
func (p *EventPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	close(p.stopCh)
	<-p.done
}

func (p *EventPipeline) run(ctx context.Context) {
	defer close(p.done)
	backoff := 50 * time.Millisecond
	for {
		var first *models.Event
		select {
		case <-p.stopCh:
			p.flush(nil)
			return
		case first = <-p.bufCh:
		}

		batch, stopped := p.fill(first)
		for {
			start := time.Now()
			err := p.proc.ProcessBatch(ctx, batch)
			if err == nil {
				if p.metrics != nil {
					p.metrics.RecordLatency("pipeline_forward", time.Since(start).Seconds())
				}
				backoff = 50 * time.Millisecond
				break
			}
			p.recordError("pipeline_forward")
			p.log.Warn("event batch forward failed",
				logger.Error(err),
				logger.Int("events", len(batch)),
				logger.Duration("backoff", backoff),
			)
			if stopped {
				p.flush(batch)
				return
			}
			select {
			case <-time.After(backoff):
			case <-p.stopCh:
				p.flush(batch)
				return
			}
			if backoff < 2*time.Second {
				backoff *= 2
			}
		}
		if stopped {
			p.flush(nil)
			return
		}
	}
}

// fill collects up to batch events starting with first. It reports whether
// Stop was called while waiting.
func (p *EventPipeline) fill(first *models.Event) ([]*models.Event, bool) {
	batch := make([]*models.Event, 1, p.batch)
	batch[0] = first

	var timeout <-chan time.Time
	if p.linger > 0 {
		t := time.NewTimer(p.linger)
		defer t.Stop()
		timeout = t.C
	}
	for len(batch) < p.batch {
		if timeout == nil {
			select {
			case e := <-p.bufCh:
				batch = append(batch, e)
				continue
			default:
				return batch, false
			}
		}
		select {
		case e := <-p.bufCh:
			batch = append(batch, e)
		case <-timeout:
			return batch, false
		case <-p.stopCh:
			return batch, true
		}
	}
	return batch, false
}

// flush forwards pending (if any) and then the queue once, in batches,
// without retrying.
func (p *EventPipeline) flush(pending []*models.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), p.drain)
	defer cancel()

	batch := pending
	for {
		for len(batch) < p.batch {
			select {
			case e := <-p.bufCh:
				batch = append(batch, e)
				continue
			default:
			}
			break
		}
		if len(batch) == 0 {
			return
		}
		if err := p.proc.ProcessBatch(ctx, batch); err != nil {
			p.recordError("pipeline_drain")
		}
		batch = nil
		if ctx.Err() != nil {
			p.log.Warn("event drain timed out", logger.Int("remaining", len(p.bufCh)))
			return
		}
	}
}

func (p *EventPipeline) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}

func validateEvent(e *models.Event) error {
	if e == nil {
		return fmt.Errorf("event nil")
	}
	if e.TokenKey == "" {
		return fmt.Errorf("token empty")
	}
	if !e.Capability.IsValid() {
		return fmt.Errorf("capability %q invalid", e.Capability)
	}
	if e.Stage != models.StageProvider && e.Stage != models.StageCapability {
		return fmt.Errorf("stage %q invalid", e.Stage)
	}
	return nil
}
