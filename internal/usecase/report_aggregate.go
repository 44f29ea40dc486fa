package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"TokenLens/internal/domain/models"
	domrepo "TokenLens/internal/domain/repository"
	"TokenLens/internal/domain/service"
	"TokenLens/internal/services/scoring"
	"TokenLens/pkg/logger"
	"TokenLens/pkg/util"

	"github.com/google/uuid"
)

// ErrInvalidRequest marks caller mistakes; everything else in a report is
// expressed as per-capability outcomes.
var ErrInvalidRequest = errors.New("invalid report request")

// DefaultReportDeadline applies when neither the caller nor the
// configuration sets one.
const DefaultReportDeadline = 8 * time.Second

type ReportOption func(*ReportAggregateUseCase)

// ReportAggregateUseCase fans a report out over the capability chains.
type ReportAggregateUseCase struct {
	chains   map[models.Capability]*Chain
	deadline time.Duration
	sink     domrepo.EventSink
	metrics  domrepo.Metrics
	log      *logger.Logger
	now      func() time.Time
}

func NewReportAggregateUseCase(chains []*Chain, deadline time.Duration, opts ...ReportOption) *ReportAggregateUseCase {
	if deadline <= 0 {
		deadline = DefaultReportDeadline
	}
	uc := &ReportAggregateUseCase{
		chains:   make(map[models.Capability]*Chain, len(chains)),
		deadline: deadline,
		log:      logger.Nop(),
		now:      time.Now,
	}
	for _, c := range chains {
		uc.chains[c.Spec().Capability] = c
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func WithReportEvents(s domrepo.EventSink) ReportOption {
	return func(uc *ReportAggregateUseCase) { uc.sink = s }
}

func WithReportMetrics(m domrepo.Metrics) ReportOption {
	return func(uc *ReportAggregateUseCase) { uc.metrics = m }
}

func WithReportLogger(l *logger.Logger) ReportOption {
	return func(uc *ReportAggregateUseCase) {
		if l != nil {
			uc.log = l
		}
	}
}

func WithReportClock(now func() time.Time) ReportOption {
	return func(uc *ReportAggregateUseCase) { uc.now = now }
}

// Chains returns the configured chain specs in canonical capability order.
func (uc *ReportAggregateUseCase) Chains() []service.ChainSpec {
	out := make([]service.ChainSpec, 0, len(uc.chains))
	for _, c := range uc.chains {
		out = append(out, c.Spec())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Capability.Order() < out[j].Capability.Order()
	})
	return out
}

// Deadline is the default per-report deadline.
func (uc *ReportAggregateUseCase) Deadline() time.Duration { return uc.deadline }

// BuildReport resolves every requested capability concurrently and waits
// until all have settled or the deadline passes. Capabilities still in
// flight at the deadline are recorded as timeouts. The only errors are
// invalid requests.
func (uc *ReportAggregateUseCase) BuildReport(ctx context.Context, tokenKey string, capabilities []models.Capability, deadline time.Duration) (*models.Report, error) {
	token := util.NormalizeTokenKey(tokenKey)
	if token == "" {
		return nil, fmt.Errorf("%w: token required", ErrInvalidRequest)
	}
	caps, err := dedupeCapabilities(capabilities)
	if err != nil {
		return nil, err
	}
	if deadline <= 0 {
		deadline = uc.deadline
	}

	start := uc.now()
	reportID := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ch := make(chan models.FetchOutcome, len(caps))
	var wg sync.WaitGroup
	for _, c := range caps {
		wg.Add(1)
		go func(c models.Capability) {
			defer wg.Done()
			ch <- uc.resolve(ctx, c, token, reportID)
		}(c)
	}
	go func() { wg.Wait(); close(ch) }()

	outcomes := make(map[models.Capability]models.FetchOutcome, len(caps))
	collect(ctx, ch, outcomes)

	for _, c := range caps {
		if _, ok := outcomes[c]; ok {
			continue
		}
		outcomes[c] = models.FetchOutcome{
			Capability:  c,
			Result:      models.Failure(c, models.ErrTimeout, "", "not settled within %s", deadline),
			CacheStatus: models.CacheBypass,
			ElapsedMs:   uc.now().Sub(start).Milliseconds(),
		}
	}

	for _, c := range caps {
		uc.emitCapability(ctx, token, reportID, outcomes[c])
	}

	report := AssembleReport(reportID, token, uc.now().UTC(), outcomes, scoring.Score(scoring.InputsFrom(outcomes)))

	elapsed := uc.now().Sub(start)
	if uc.metrics != nil {
		uc.metrics.RecordReport(elapsed.Seconds(), len(report.Warnings))
	}
	uc.log.Debug("report built",
		logger.String("report_id", reportID),
		logger.String("token", token),
		logger.Int("capabilities", len(caps)),
		logger.Int("warnings", len(report.Warnings)),
		logger.Duration("elapsed", elapsed),
	)
	return report, nil
}

// collect receives outcomes until the channel closes or ctx ends, then
// takes whatever already settled.
func collect(ctx context.Context, ch <-chan models.FetchOutcome, into map[models.Capability]models.FetchOutcome) {
	for {
		select {
		case o, ok := <-ch:
			if !ok {
				return
			}
			into[o.Capability] = o
		case <-ctx.Done():
			for {
				select {
				case o, ok := <-ch:
					if !ok {
						return
					}
					into[o.Capability] = o
				default:
					return
				}
			}
		}
	}
}

func (uc *ReportAggregateUseCase) resolve(ctx context.Context, c models.Capability, token, reportID string) models.FetchOutcome {
	chain, ok := uc.chains[c]
	if !ok {
		return models.FetchOutcome{
			Capability:  c,
			Result:      models.Failure(c, models.ErrUnconfigured, "", "no chain configured"),
			CacheStatus: models.CacheBypass,
		}
	}
	return chain.Resolve(ctx, token, reportID)
}

func (uc *ReportAggregateUseCase) emitCapability(ctx context.Context, token, reportID string, o models.FetchOutcome) {
	if uc.sink == nil {
		return
	}
	uc.sink.Emit(ctx, &models.Event{
		ID:          uuid.NewString(),
		ReportID:    reportID,
		TokenKey:    token,
		Stage:       models.StageCapability,
		Capability:  o.Capability,
		Provider:    o.Provider,
		CacheStatus: o.CacheStatus,
		ElapsedMs:   o.ElapsedMs,
		Outcome:     o.Result.Status,
		ErrorKind:   o.Result.Kind(),
		At:          uc.now(),
	})
}

func dedupeCapabilities(in []models.Capability) ([]models.Capability, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: at least one capability required", ErrInvalidRequest)
	}
	seen := make(map[models.Capability]bool, len(in))
	out := make([]models.Capability, 0, len(in))
	for _, c := range in {
		if !c.IsValid() {
			return nil, fmt.Errorf("%w: unknown capability %q", ErrInvalidRequest, c)
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}
