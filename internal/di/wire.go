//go:build wireinject
// +build wireinject

package di

import (
	"TokenLens/pkg/config"
	"TokenLens/pkg/server"

	"github.com/google/wire"
)

var coreSet = wire.NewSet(
	ProvideRegistry,
	ProvideMetrics,
	ProvideProviderMetrics,
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideRedis,
	ProvideResultCache,
	ProvideChainSpecs,
	ProvideClickHouseClient,
	ProvideEventStorage,
	ProvideEventPublisher,
	ProvideEventProcessor,
	ProvideEventPipeline,
	ProvideAggregator,
)

// InitializeApp wires the serve command.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		coreSet,
		ProvidePrefetchQueue,
		ProvidePrefetchScheduler,
		ProvideReportHandler,
		ProvideHTTPServer,
		ProvideKafkaConsumer,
		ProvideFetchEventsHandler,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeReporter wires the one-shot report command.
func InitializeReporter(cfg *config.Config) (*Reporter, func(), error) {
	wire.Build(coreSet, ProvideReporter)
	return nil, nil, nil
}
