package di

import (
	"IndexPulse/internal/usecase"
	"IndexPulse/pkg/config"
)

// InitializeTraining builds the training pipeline backed by the bar
// store, for CLI runs against stored data.
func InitializeTraining(cfg *config.Config) (*usecase.TrainingService, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	metrics := ProvideMetrics()
	client, err := ProvideClickHouseClient(cfg)
	if err != nil {
		return nil, err
	}
	barStore := ProvideBarStore(client, logger)
	engine := ProvideFeatureEngine(cfg, logger)
	selector := ProvideSelector(logger)
	normalizer := ProvideNormalizer(cfg)
	preprocessor := ProvidePreprocessor(selector, normalizer, cfg, logger)
	modelConfig := ProvideModelConfig(cfg)
	marketData := ProvideMarketData(barStore, engine, cfg, logger)
	return ProvideTrainingService(marketData, preprocessor, modelConfig, cfg, logger, metrics), nil
}

// InitializeOfflineTraining builds the training pipeline without any
// storage connection. Only TrainFromTable is usable on the result.
func InitializeOfflineTraining(cfg *config.Config) (*usecase.TrainingService, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	metrics := ProvideMetrics()
	engine := ProvideFeatureEngine(cfg, logger)
	selector := ProvideSelector(logger)
	normalizer := ProvideNormalizer(cfg)
	preprocessor := ProvidePreprocessor(selector, normalizer, cfg, logger)
	modelConfig := ProvideModelConfig(cfg)
	marketData := ProvideMarketData(nil, engine, cfg, logger)
	return ProvideTrainingService(marketData, preprocessor, modelConfig, cfg, logger, metrics), nil
}
