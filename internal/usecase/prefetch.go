package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"TokenLens/internal/domain/models"
	"TokenLens/pkg/logger"
	"TokenLens/pkg/queue"
)

// PrefetchJobType is the queue message type that warms the result cache.
const PrefetchJobType = "report.prefetch"

// PrefetchRequest asks for a report to be built ahead of demand. No
// capabilities means all of them.
type PrefetchRequest struct {
	Token        string              `json:"token"`
	Capabilities []models.Capability `json:"capabilities,omitempty"`
}

// PrefetchJob builds reports off the request path so that later requests
// are served from the result cache.
type PrefetchJob struct {
	agg *ReportAggregateUseCase
	log *logger.Logger
}

func NewPrefetchJob(agg *ReportAggregateUseCase, log *logger.Logger) *PrefetchJob {
	if log == nil {
		log = logger.Nop()
	}
	return &PrefetchJob{agg: agg, log: log}
}

func (j *PrefetchJob) Type() string { return PrefetchJobType }

func (j *PrefetchJob) Handle(ctx context.Context, payload json.RawMessage) error {
	req, err := queue.Decode[PrefetchRequest](payload)
	if err != nil {
		return err
	}
	caps := req.Capabilities
	if len(caps) == 0 {
		caps = models.AllCapabilities()
	}

	report, err := j.agg.BuildReport(ctx, req.Token, caps, 0)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			return fmt.Errorf("%w: %v", queue.ErrPermanent, err)
		}
		return err
	}

	// A report where every capability timed out warmed nothing; let the
	// queue try again later.
	if len(report.Warnings) == len(caps) && allTimedOut(report.Warnings) {
		return fmt.Errorf("prefetch %s: every capability timed out", report.TokenKey)
	}
	j.log.Debug("report prefetched", logger.String("token", report.TokenKey),
		logger.Any("capabilities", caps),
		logger.Int("warnings", len(report.Warnings)))
	return nil
}

func allTimedOut(ws []models.Warning) bool {
	for _, w := range ws {
		if w.Reason != models.ErrTimeout {
			return false
		}
	}
	return true
}

// PrefetchScheduler enqueues a prefetch for each token on a fixed interval.
type PrefetchScheduler struct {
	q        queue.Enqueuer
	tokens   []string
	interval time.Duration
	log      *logger.Logger
}

func NewPrefetchScheduler(q queue.Enqueuer, tokens []string, interval time.Duration, log *logger.Logger) *PrefetchScheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &PrefetchScheduler{q: q, tokens: tokens, interval: interval, log: log}
}

// Run enqueues one round immediately, then one per interval until ctx ends.
func (s *PrefetchScheduler) Run(ctx context.Context) {
	if len(s.tokens) == 0 || s.interval <= 0 {
		return
	}
	s.log.Info("prefetch scheduler started",
		logger.Strings("tokens", s.tokens),
		logger.Duration("interval_ms", s.interval))
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		s.EnqueueAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// EnqueueAll enqueues one prefetch per token and returns how many were accepted.
func (s *PrefetchScheduler) EnqueueAll(ctx context.Context) int {
	n := 0
	for _, tok := range s.tokens {
		if err := s.q.Enqueue(ctx, PrefetchJobType, PrefetchRequest{Token: tok}); err != nil {
			s.log.Warn("prefetch enqueue failed", logger.String("token", tok), logger.Error(err))
			continue
		}
		n++
	}
	return n
}
