package server

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"TokenLens/internal/middleware"
	"TokenLens/internal/usecase"
	"TokenLens/pkg/config"
	xhttp "TokenLens/pkg/http"
	pkgkafka "TokenLens/pkg/kafka"
	applogger "TokenLens/pkg/logger"
	"TokenLens/pkg/queue"
)

// App owns the long running parts of the service: HTTP server, event
// pipeline, optional Kafka consumer and optional prefetch queue.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	pipeline   *middleware.EventPipeline
	processor  *usecase.EventProcessor
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	queue      *queue.RedisQueue
	scheduler  *usecase.PrefetchScheduler
}

type Option func(*App)

// WithConsumer runs a Kafka consumer with kh registered.
func WithConsumer(c *pkgkafka.Consumer, kh pkgkafka.MessageHandler) Option {
	return func(a *App) {
		if c != nil && kh != nil {
			a.consumer, a.kh = c, kh
		}
	}
}

// WithPrefetch runs the prefetch queue workers and, if s is set, the scheduler.
func WithPrefetch(q *queue.RedisQueue, s *usecase.PrefetchScheduler) Option {
	return func(a *App) {
		if q != nil {
			a.queue, a.scheduler = q, s
		}
	}
}

func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	pipeline *middleware.EventPipeline,
	processor *usecase.EventProcessor,
	opts ...Option,
) *App {
	if log == nil {
		log = applogger.Nop()
	}
	a := &App{cfg: cfg, log: log, httpServer: httpServer, pipeline: pipeline, processor: processor}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts every component and blocks until ctx ends or SIGINT/SIGTERM
// arrives, then shuts down.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.pipeline.Start(ctx)
	a.log.Info("event pipeline started", applogger.String("backend", a.processor.Backend()))

	if a.consumer != nil {
		a.consumer.WithConsumerHook(pkgkafka.HeaderHook(pkgkafka.HeaderReportID))
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start failed", applogger.Error(err))
			a.consumer = nil
		} else {
			a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
		}
	}

	if a.queue != nil {
		if err := a.queue.Start(ctx); err != nil {
			a.log.Error("prefetch queue start failed", applogger.Error(err))
			a.queue = nil
		} else if a.scheduler != nil {
			go a.scheduler.Run(ctx)
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start failed", applogger.Error(err))
		return errors.Join(err, a.shutdown())
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops intake first, then drains what is in flight. Clients are
// closed by the cleanup returned from the injector.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	var errs []error
	if err := a.httpServer.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.log.Warn("prefetch queue stop", applogger.Error(err))
		}
	}

	a.pipeline.Stop()

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg != nil && a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}
