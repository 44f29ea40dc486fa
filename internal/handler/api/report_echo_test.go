package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"TokenLens/internal/domain/models"
	"TokenLens/internal/domain/service"
	"TokenLens/internal/service/providers"
	"TokenLens/internal/service/ratelimit"
	"TokenLens/internal/usecase"
	"TokenLens/pkg/cache"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type downProvider struct{ c models.Capability }

func (p downProvider) Name() string                  { return "whalealert" }
func (p downProvider) Capability() models.Capability { return p.c }
func (p downProvider) Fetch(context.Context, string) models.ProviderResult {
	return models.Failure(p.c, models.ErrNetwork, "whalealert", "connection reset")
}

type stubEvents struct {
	healthErr error
	gotToken  string
	gotLimit  int
}

func (s *stubEvents) Init(context.Context) error                        { return nil }
func (s *stubEvents) Store(context.Context, *models.Event) error        { return nil }
func (s *stubEvents) StoreBatch(context.Context, []*models.Event) error { return nil }
func (s *stubEvents) Health(context.Context) error                      { return s.healthErr }
func (s *stubEvents) Query(_ context.Context, token string, _, _ time.Time, limit int) ([]*models.Event, error) {
	s.gotToken, s.gotLimit = token, limit
	return []*models.Event{{ID: "e1", TokenKey: token, Stage: models.StageProvider, Capability: models.CapabilityMarketSnapshot}}, nil
}

func newAggregator(t *testing.T, override map[models.Capability]service.Provider) *usecase.ReportAggregateUseCase {
	t.Helper()
	mem := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	t.Cleanup(func() { _ = mem.Close() })
	rc := cache.NewLayered[models.ProviderResult](mem, nil)

	var chains []*usecase.Chain
	for _, c := range models.AllCapabilities() {
		var p service.Provider = providers.NewDemoProvider(c)
		if o, ok := override[c]; ok {
			p = o
		}
		chains = append(chains, usecase.NewChain(service.ChainSpec{
			Capability: c,
			Providers:  []service.Provider{p},
			SuccessTTL: time.Minute,
			ErrorTTL:   10 * time.Second,
			Timeout:    time.Second,
		}, rc))
	}
	return usecase.NewReportAggregateUseCase(chains, 2*time.Second)
}

func serve(h *ReportEchoHandler, target string) *httptest.ResponseRecorder {
	e := echo.New()
	h.RegisterRoutes(e)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	if into != nil {
		require.NoError(t, json.Unmarshal(env.Data, into))
	}
	return env
}

func TestReportReturnsEveryCapability(t *testing.T) {
	h := NewReportEchoHandler(nil, newAggregator(t, nil))

	rec := serve(h, "/api/report?token=btc")
	require.Equal(t, http.StatusOK, rec.Code)

	var dto ReportDTO
	decode(t, rec, &dto)
	assert.Equal(t, "BTC", dto.Token)
	assert.NotEmpty(t, dto.ID)
	require.Len(t, dto.Capabilities, 5)
	for c, o := range dto.Capabilities {
		assert.Equal(t, stateOK, o.Status, c)
		assert.Equal(t, providers.NameDemo, o.Provider)
		assert.NotNil(t, o.Data)
	}
	assert.Empty(t, dto.Warnings)
	assert.Contains(t, dto.Indicators, models.IndicatorRisk)
}

func TestReportRendersFailuresAsUnavailable(t *testing.T) {
	agg := newAggregator(t, map[models.Capability]service.Provider{
		models.CapabilityWhaleActivity: downProvider{c: models.CapabilityWhaleActivity},
	})
	h := NewReportEchoHandler(nil, agg)

	rec := serve(h, "/api/report?token=ETH&capabilities=whale_activity,market_snapshot")
	require.Equal(t, http.StatusOK, rec.Code)

	var dto ReportDTO
	decode(t, rec, &dto)
	require.Len(t, dto.Capabilities, 2)

	whale := dto.Capabilities[models.CapabilityWhaleActivity]
	assert.Equal(t, stateUnavailable, whale.Status)
	assert.Equal(t, models.ErrNetwork, whale.Reason)
	assert.Nil(t, whale.Data)

	require.Len(t, dto.Warnings, 1)
	assert.Equal(t, models.CapabilityWhaleActivity, dto.Warnings[0].Capability)
	assert.Equal(t, models.ErrNetwork, dto.Warnings[0].Reason)
}

func TestReportRejectsBadRequests(t *testing.T) {
	h := NewReportEchoHandler(nil, newAggregator(t, nil))

	cases := map[string]string{
		"missing token":      "/api/report",
		"unknown capability": "/api/report?token=BTC&capabilities=weather",
		"deadline too large": "/api/report?token=BTC&deadline_ms=999999",
		"blank token":        "/api/report?token=%20%20",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			rec := serve(h, target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			env := decode(t, rec, nil)
			assert.Equal(t, http.StatusBadRequest, env.Status)
		})
	}
}

func TestReportRateLimitedPerClient(t *testing.T) {
	h := NewReportEchoHandler(nil, newAggregator(t, nil),
		WithClientRateLimit(ratelimit.New(), 0.5, 1))

	e := echo.New()
	h.RegisterRoutes(e)
	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/report?token=BTC&capabilities=market_snapshot", nil)
		req.RemoteAddr = "203.0.113.9:5000"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do().Code)
	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("Retry-After"))

	// capabilities is not limited
	assert.Equal(t, http.StatusOK, serve(h, "/api/capabilities").Code)
}

func TestCapabilitiesListsChains(t *testing.T) {
	h := NewReportEchoHandler(nil, newAggregator(t, nil))

	rec := serve(h, "/api/capabilities")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Chains     []providers.Describe `json:"chains"`
		DeadlineMs int64                `json:"deadline_ms"`
	}
	decode(t, rec, &body)
	require.Len(t, body.Chains, 5)
	assert.Equal(t, models.CapabilityMarketSnapshot, body.Chains[0].Capability)
	assert.Equal(t, []string{providers.NameDemo}, body.Chains[0].Providers)
	assert.Equal(t, int64(2000), body.DeadlineMs)
}

func TestEventsRouteRequiresStore(t *testing.T) {
	h := NewReportEchoHandler(nil, newAggregator(t, nil))
	assert.Equal(t, http.StatusNotFound, serve(h, "/api/events?token=BTC").Code)

	store := &stubEvents{}
	h = NewReportEchoHandler(nil, newAggregator(t, nil), WithEventQuery(store))

	rec := serve(h, "/api/events?token=sol&limit=5000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SOL", store.gotToken)
	assert.Equal(t, defaultEventLimit, store.gotLimit)

	assert.Equal(t, http.StatusBadRequest, serve(h, "/api/events").Code)
}

type stubQueue struct {
	err  error
	reqs []usecase.PrefetchRequest
}

func (q *stubQueue) Enqueue(_ context.Context, _ string, payload interface{}) error {
	if q.err != nil {
		return q.err
	}
	q.reqs = append(q.reqs, payload.(usecase.PrefetchRequest))
	return nil
}

func TestPrefetchQueuesReport(t *testing.T) {
	q := &stubQueue{}
	h := NewReportEchoHandler(nil, newAggregator(t, nil), WithPrefetch(q))

	e := echo.New()
	h.RegisterRoutes(e)
	post := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, nil))
		return rec
	}

	assert.Equal(t, http.StatusAccepted, post("/api/prefetch?token=eth&capabilities=market_snapshot").Code)
	require.Len(t, q.reqs, 1)
	assert.Equal(t, "ETH", q.reqs[0].Token)
	assert.Equal(t, []models.Capability{models.CapabilityMarketSnapshot}, q.reqs[0].Capabilities)

	assert.Equal(t, http.StatusBadRequest, post("/api/prefetch").Code)

	q.err = errors.New("redis down")
	assert.Equal(t, http.StatusServiceUnavailable, post("/api/prefetch?token=eth").Code)
}

func TestHealthReflectsEventStore(t *testing.T) {
	h := NewReportEchoHandler(nil, newAggregator(t, nil))
	assert.Equal(t, http.StatusOK, serve(h, "/healthz").Code)

	h = NewReportEchoHandler(nil, newAggregator(t, nil), WithEventQuery(&stubEvents{healthErr: errors.New("dial tcp: refused")}))
	assert.Equal(t, http.StatusServiceUnavailable, serve(h, "/healthz").Code)
}
