package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"TokenLens/internal/domain/models"
	domrepo "TokenLens/internal/domain/repository"
	"TokenLens/internal/service/providers"
	"TokenLens/internal/service/ratelimit"
	"TokenLens/internal/usecase"
	xhttp "TokenLens/pkg/http"
	xlogger "TokenLens/pkg/logger"
	"TokenLens/pkg/queue"
	xutil "TokenLens/pkg/util"

	"github.com/labstack/echo/v4"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
	maxEventWindow    = 7 * 24 * time.Hour
)

// ReportEchoHandler serves token reports over echo.
type ReportEchoHandler struct {
	logger  *xlogger.Logger
	agg     *usecase.ReportAggregateUseCase
	events  domrepo.Storage
	warm    queue.Enqueuer
	limiter *ratelimit.Limiter
	rps     float64
	burst   int
}

type ReportHandlerOption func(*ReportEchoHandler)

// WithEventQuery exposes stored fetch events under /api/events.
func WithEventQuery(s domrepo.Storage) ReportHandlerOption {
	return func(h *ReportEchoHandler) { h.events = s }
}

// WithPrefetch enables POST /api/prefetch, which queues a report build.
func WithPrefetch(q queue.Enqueuer) ReportHandlerOption {
	return func(h *ReportEchoHandler) { h.warm = q }
}

// WithClientRateLimit limits /api/report per client IP. rps <= 0 disables it.
func WithClientRateLimit(l *ratelimit.Limiter, rps float64, burst int) ReportHandlerOption {
	return func(h *ReportEchoHandler) {
		h.limiter, h.rps, h.burst = l, rps, burst
	}
}

func NewReportEchoHandler(logger *xlogger.Logger, agg *usecase.ReportAggregateUseCase, opts ...ReportHandlerOption) *ReportEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	h := &ReportEchoHandler{logger: logger, agg: agg}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *ReportEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.GET("/report", h.Report, h.rateLimit)
	g.GET("/capabilities", h.Capabilities)
	if h.events != nil {
		g.GET("/events", h.Events)
	}
	if h.warm != nil {
		g.POST("/prefetch", h.Prefetch, h.rateLimit)
	}
}

func (h *ReportEchoHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.limiter == nil || h.rps <= 0 {
			return next(c)
		}
		if !h.limiter.Allow(c.RealIP(), float64(h.burst), h.rps) {
			retry := int(1/h.rps) + 1
			c.Response().Header().Set("Retry-After", strconv.Itoa(retry))
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded").WithParam("retry_after_s", retry))
		}
		return next(c)
	}
}

// Report handles GET /api/report?token=BTC&capabilities=a,b&deadline_ms=5000.
func (h *ReportEchoHandler) Report(c echo.Context) error {
	req := &models.ReportRequest{}
	if verrs := xhttp.ReadAndValidateRequest(c, req); verrs != nil {
		return xhttp.BadRequestResponse(c, verrs)
	}
	caps, err := models.ParseCapabilities(req.Capabilities)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("capabilities", err.Error()))
	}

	deadline := time.Duration(req.DeadlineMs) * time.Millisecond
	report, err := h.agg.BuildReport(c.Request().Context(), req.Token, caps, deadline)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidRequest) {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("", err.Error()).WithError(err))
		}
		h.logger.Error("report usecase error", xlogger.Error(err), xlogger.String("token", req.Token))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("report failed").WithError(err))
	}

	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, NewReportDTO(report))
}

// Prefetch handles POST /api/prefetch?token=BTC&capabilities=a,b.
func (h *ReportEchoHandler) Prefetch(c echo.Context) error {
	// echo binds query parameters only for GET, so read them directly
	token := xutil.NormalizeTokenKey(c.QueryParam("token"))
	if token == "" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("token", "token is required"))
	}
	caps, err := models.ParseCapabilities(c.QueryParam("capabilities"))
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("capabilities", err.Error()))
	}

	if err := h.warm.Enqueue(c.Request().Context(), usecase.PrefetchJobType, usecase.PrefetchRequest{Token: token, Capabilities: caps}); err != nil {
		h.logger.Error("prefetch enqueue failed", xlogger.Error(err), xlogger.String("token", token))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("prefetch queue unavailable").WithError(err))
	}
	return xhttp.DataResponse(c, http.StatusAccepted, map[string]string{"token": token})
}

// Capabilities lists the configured fallback chains.
func (h *ReportEchoHandler) Capabilities(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"chains":      providers.DescribeChains(h.agg.Chains()),
		"deadline_ms": h.agg.Deadline().Milliseconds(),
	})
}

// Events handles GET /api/events?token=BTC&from=...&to=...&limit=100.
func (h *ReportEchoHandler) Events(c echo.Context) error {
	token := xutil.NormalizeTokenKey(c.QueryParam("token"))
	if token == "" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("token", "token is required"))
	}
	to := xutil.ParseTimeDefault(c.QueryParam("to"), time.Now().UTC())
	from := xutil.ParseTimeDefault(c.QueryParam("from"), to.Add(-24*time.Hour))
	from, to = xutil.ClampRange(from, to, maxEventWindow)
	limit := xutil.ParseIntDefault(c.QueryParam("limit"), defaultEventLimit)
	if limit <= 0 || limit > maxEventLimit {
		limit = defaultEventLimit
	}

	events, err := h.events.Query(c.Request().Context(), token, from, to, limit)
	if err != nil {
		h.logger.Error("event query failed", xlogger.Error(err), xlogger.String("token", token))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("event store unavailable").WithError(err))
	}
	return xhttp.ListResponse(c, events, int64(len(events)))
}

// Health reports liveness, and event store reachability when one is attached.
func (h *ReportEchoHandler) Health(c echo.Context) error {
	if h.events != nil {
		if err := h.events.Health(c.Request().Context()); err != nil {
			h.logger.Warn("event store health check failed", xlogger.Error(err))
			return xhttp.DataResponse(c, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "events": err.Error()})
		}
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

var _ xhttp.Handler = (*ReportEchoHandler)(nil)
