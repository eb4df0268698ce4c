//go:build wireinject
// +build wireinject

package di

import (
	"IndexPulse/pkg/config"
	"IndexPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaConsumer,
		ProvideCache,

		// Repositories
		ProvideBarStore,

		// Model pipeline
		ProvideFeatureEngine,
		ProvideSelector,
		ProvideNormalizer,
		ProvidePreprocessor,
		ProvideModelConfig,
		ProvidePredictor,

		// Use cases
		ProvideMarketData,
		ProvideBarsHandler,
		ProvidePredictionService,
		ProvideTrainingService,
		ProvideJobQueue,

		// HTTP
		ProvideAPIHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
