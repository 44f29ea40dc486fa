package di

import (
	"context"
	"fmt"
	"time"

	domrepo "TokenLens/internal/domain/repository"
	"TokenLens/internal/domain/service"
	"TokenLens/internal/handler/api"
	mid "TokenLens/internal/middleware"
	internalrepo "TokenLens/internal/repository"
	svcmetrics "TokenLens/internal/service/metrics"
	"TokenLens/internal/service/providers"
	"TokenLens/internal/service/ratelimit"
	"TokenLens/internal/usecase"
	"TokenLens/pkg/cache"
	pkgch "TokenLens/pkg/clickhouse"
	"TokenLens/pkg/config"
	xhttp "TokenLens/pkg/http"
	pkgkafka "TokenLens/pkg/kafka"
	applogger "TokenLens/pkg/logger"
	"TokenLens/pkg/metrics"
	"TokenLens/pkg/queue"
	"TokenLens/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/singleflight"
)

// Reporter is the CLI graph: an aggregator plus the pipeline its events go through.
type Reporter struct {
	Agg      *usecase.ReportAggregateUseCase
	Pipeline *mid.EventPipeline
}

// ProvideRegistry creates the Prometheus registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) *metrics.Recorder {
	return metrics.NewWithRegistry(reg)
}

func ProvideProviderMetrics(reg *prometheus.Registry) *svcmetrics.ProviderMetrics {
	return svcmetrics.NewProviderMetrics(reg)
}

// ProvideKafkaProducer creates the producer used for fetch events and log
// shipping. Nil when no brokers are configured.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the application logger. With a producer and a logs
// topic, error logs are also aggregated and shipped to Kafka.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	l = l.With(applogger.String("env", cfg.Environment))
	if producer == nil || cfg.Kafka.LogsTopic == "" {
		return l, func() {}, nil
	}
	l.AddCollector(&applogger.CollectionConfig{
		Topic:     cfg.Kafka.LogsTopic,
		Publisher: internalrepo.NewKafkaLogPublisher(producer),
	})
	return l, l.RemoveCollector, nil
}

// ProvideRedis connects the shared cache tier. A failed connection is logged
// and the service runs on process memory alone.
func ProvideRedis(cfg *config.Config, log *applogger.Logger) (*cache.RedisCache, func()) {
	if !cfg.Redis.Enabled {
		return nil, func() {}
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.PoolSize/2, 30*time.Second),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		log.Warn("redis unavailable, using memory cache only", applogger.Error(err),
			applogger.String("host", cfg.Redis.Host), applogger.Int("port", cfg.Redis.Port))
		return nil, func() {}
	}
	return rc, func() { _ = rc.Close() }
}

// ProvideResultCache builds the provider result cache.
func ProvideResultCache(cfg *config.Config, redis *cache.RedisCache, log *applogger.Logger) (*internalrepo.ResultCache, func()) {
	mem := cache.NewMemoryCache(
		cache.WithMemoryMaxSize(cfg.Cache.Capacity),
		cache.WithMemoryCleanup(cfg.Cache.CleanupInterval),
	)
	var remote cache.Service
	if redis != nil {
		remote = redis
	}
	return internalrepo.NewResultCache(mem, remote, time.Second, log), func() { _ = mem.Close() }
}

// ProvideChainSpecs builds the configured fallback chains.
func ProvideChainSpecs(cfg *config.Config, pm *svcmetrics.ProviderMetrics) ([]service.ChainSpec, error) {
	specs, err := providers.BuildChains(providers.Deps{
		Config:   cfg,
		Tracer:   otel.Tracer(cfg.Tracing.ServiceName),
		Cooldown: ratelimit.NewCooldown(nil),
		Limiter:  ratelimit.New(),
		Observer: pm,
	})
	if err != nil {
		return nil, fmt.Errorf("provider chains: %w", err)
	}
	return specs, nil
}

// ProvideClickHouseClient connects ClickHouse when a host is configured.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if cfg.ClickHouse.Host == "" {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideEventStorage creates the fetch event table and its store. Nil
// without ClickHouse.
func ProvideEventStorage(client *pkgch.Client, cfg *config.Config, log *applogger.Logger) (domrepo.Storage, error) {
	if client == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseEventStore(client.DB(), cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table, log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, []string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database}); err != nil {
		return nil, fmt.Errorf("clickhouse database: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideEventPublisher publishes fetch events to Kafka. Nil without a producer.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic)
}

func ProvideEventProcessor(
	cfg *config.Config,
	pub domrepo.Publisher,
	store domrepo.Storage,
	m *metrics.Recorder,
	log *applogger.Logger,
) (*usecase.EventProcessor, error) {
	return usecase.NewEventProcessor(cfg.Events.Backend, pub, store, m, log)
}

func ProvideEventPipeline(cfg *config.Config, proc *usecase.EventProcessor, m *metrics.Recorder, log *applogger.Logger) *mid.EventPipeline {
	return mid.NewEventPipeline(proc, m,
		mid.WithBufferSize(cfg.Events.BufferSize),
		mid.WithBatch(cfg.Events.BatchSize, cfg.Events.Linger),
		mid.WithDrainTimeout(cfg.Server.ShutdownTimeout/2),
		mid.WithPipelineLogger(log),
	)
}

// ProvideAggregator builds one Chain per spec and the report use case over them.
func ProvideAggregator(
	cfg *config.Config,
	specs []service.ChainSpec,
	rc *internalrepo.ResultCache,
	pipeline *mid.EventPipeline,
	m *metrics.Recorder,
	log *applogger.Logger,
) *usecase.ReportAggregateUseCase {
	opts := []usecase.ChainOption{
		usecase.WithEventSink(pipeline),
		usecase.WithChainMetrics(m),
		usecase.WithChainLogger(log),
	}
	if cfg.Report.SingleFlight {
		opts = append(opts, usecase.WithSingleFlight(&singleflight.Group{}))
	}
	chains := make([]*usecase.Chain, 0, len(specs))
	for _, s := range specs {
		log.Debug("capability chain",
			applogger.String("capability", string(s.Capability)),
			applogger.Strings("providers", s.ProviderNames()),
		)
		chains = append(chains, usecase.NewChain(s, rc, opts...))
	}
	return usecase.NewReportAggregateUseCase(chains, cfg.Report.Deadline,
		usecase.WithReportEvents(pipeline),
		usecase.WithReportMetrics(m),
		usecase.WithReportLogger(log),
	)
}

// ProvidePrefetchQueue creates the Redis prefetch queue with its job
// registered. Nil unless prefetch is enabled and Redis is reachable.
func ProvidePrefetchQueue(
	cfg *config.Config,
	redis *cache.RedisCache,
	agg *usecase.ReportAggregateUseCase,
	reg *prometheus.Registry,
	log *applogger.Logger,
) *queue.RedisQueue {
	if !cfg.Prefetch.Enabled || redis == nil {
		return nil
	}
	q := queue.NewRedisQueue(log, queue.Config{
		Workers:    cfg.Prefetch.Workers,
		RetryLimit: cfg.Prefetch.RetryLimit,
		RetryDelay: cfg.Prefetch.RetryDelay,
	}, redis.Client(),
		queue.WithKeyPrefix(cfg.Redis.Prefix+":prefetch"),
		queue.WithRegisterer(reg),
	)
	q.RegisterJob(usecase.NewPrefetchJob(agg, log))
	return q
}

// ProvidePrefetchScheduler enqueues configured tokens. Nil without a queue.
func ProvidePrefetchScheduler(cfg *config.Config, q *queue.RedisQueue, log *applogger.Logger) *usecase.PrefetchScheduler {
	if q == nil {
		return nil
	}
	tokens := make([]string, 0, len(cfg.Tokens))
	for k := range cfg.Tokens {
		tokens = append(tokens, k)
	}
	return usecase.NewPrefetchScheduler(q, tokens, cfg.Prefetch.Interval, log)
}

func ProvideReportHandler(
	cfg *config.Config,
	agg *usecase.ReportAggregateUseCase,
	store domrepo.Storage,
	q *queue.RedisQueue,
	log *applogger.Logger,
) *api.ReportEchoHandler {
	opts := []api.ReportHandlerOption{
		api.WithClientRateLimit(ratelimit.New(), cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst),
	}
	if store != nil {
		opts = append(opts, api.WithEventQuery(store))
	}
	if q != nil {
		opts = append(opts, api.WithPrefetch(q))
	}
	return api.NewReportEchoHandler(log, agg, opts...)
}

func ProvideHTTPServer(cfg *config.Config, h *api.ReportEchoHandler, reg *prometheus.Registry, log *applogger.Logger) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(h, log,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetrics(metricsPath),
		xhttp.WithRegistry(reg),
	)
}

// ProvideKafkaConsumer creates the fetch event consumer when events.consume is set.
func ProvideKafkaConsumer(cfg *config.Config, reg *prometheus.Registry, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Events.Consume {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(log),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideFetchEventsHandler persists consumed events. Nil without storage.
func ProvideFetchEventsHandler(cfg *config.Config, store domrepo.Storage, m *metrics.Recorder) *usecase.FetchEventsHandler {
	if store == nil {
		return nil
	}
	return usecase.NewFetchEventsHandler(cfg.Kafka.EventsTopic, store, m)
}

func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	pipeline *mid.EventPipeline,
	processor *usecase.EventProcessor,
	consumer *pkgkafka.Consumer,
	kh *usecase.FetchEventsHandler,
	q *queue.RedisQueue,
	sched *usecase.PrefetchScheduler,
) *server.App {
	opts := []server.Option{server.WithPrefetch(q, sched)}
	if consumer != nil && kh != nil {
		opts = append(opts, server.WithConsumer(consumer, kh))
	}
	return server.New(cfg, log, httpServer, pipeline, processor, opts...)
}

func ProvideReporter(agg *usecase.ReportAggregateUseCase, pipeline *mid.EventPipeline) *Reporter {
	return &Reporter{Agg: agg, Pipeline: pipeline}
}
