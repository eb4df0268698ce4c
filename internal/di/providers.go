package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"IndexPulse/internal/domain/repository"
	"IndexPulse/internal/handler/api"
	internalrepo "IndexPulse/internal/repository"
	"IndexPulse/internal/service/sentiment"
	"IndexPulse/internal/services/dataset"
	"IndexPulse/internal/services/features"
	seqmodel "IndexPulse/internal/services/model"
	"IndexPulse/internal/services/predict"
	"IndexPulse/internal/services/train"
	"IndexPulse/internal/usecase"
	"IndexPulse/pkg/cache"
	pkgch "IndexPulse/pkg/clickhouse"
	"IndexPulse/pkg/config"
	xhttp "IndexPulse/pkg/http"
	pkgkafka "IndexPulse/pkg/kafka"
	applogger "IndexPulse/pkg/logger"
	"IndexPulse/pkg/metrics"
	"IndexPulse/pkg/queue"
	"IndexPulse/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	})
}

// kafkaLogPublisher adapts the Kafka producer to the log collector's
// publisher seam.
type kafkaLogPublisher struct {
	p *pkgkafka.Producer
}

func (a kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return a.p.Publish(ctx, topic, nil, payload)
}

// ProvideLogAggregation attaches aggregated log publishing to the logger
// when Kafka is enabled. Failure to reach the brokers only disables the
// aggregation, never the app.
func ProvideLogAggregation(cfg *config.Config, l *applogger.Logger) {
	if !cfg.Kafka.Enabled {
		return
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
	)
	if err != nil {
		l.Warn("log aggregation disabled", applogger.Error(err))
		return
	}
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 100,
		Topic:          "logs.aggregated",
		Publisher:      kafkaLogPublisher{p: producer},
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and initializes
// the bar tables.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const barSchema = "(symbol String, t DateTime, open Float64, high Float64, low Float64, close Float64, volume Float64) ENGINE=MergeTree ORDER BY (symbol, t)"
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS indexpulse",
		"CREATE TABLE IF NOT EXISTS indexpulse.bars_1m " + barSchema,
		"CREATE TABLE IF NOT EXISTS indexpulse.bars_1h " + barSchema,
		"CREATE TABLE IF NOT EXISTS indexpulse.bars_1d " + barSchema,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideBarStore creates the ClickHouse bar repository.
func ProvideBarStore(chClient *pkgch.Client, l *applogger.Logger) repository.BarStore {
	store := internalrepo.NewCHBarStore(chClient)
	store.SetLogger(l)
	return store
}

// ProvideKafkaConsumer creates a Kafka consumer when ingestion is
// enabled; otherwise the app runs without one.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
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
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideBarsHandler registers the handler for the bars topic.
func ProvideBarsHandler(store repository.BarStore, m repository.Metrics, cfg *config.Config) *usecase.KafkaBarsHandler {
	return usecase.NewKafkaBarsHandler(cfg.Kafka.Topic, store, m)
}

// ProvideFeatureEngine creates the indicator engine, with the external
// sentiment feed attached when configured.
func ProvideFeatureEngine(cfg *config.Config, l *applogger.Logger) *features.Engine {
	opts := []features.EngineOption{features.WithLogger(l)}
	if cfg.Sentiment.Enabled && cfg.Sentiment.URL != "" {
		src := sentiment.NewHTTPSource(cfg.Sentiment.URL, cfg.Sentiment.Timeout, cfg.Sentiment.TTL, l)
		opts = append(opts, features.WithSentimentSource(src))
	}
	return features.NewEngine(opts...)
}

// ProvideSelector creates the feature selector.
func ProvideSelector(l *applogger.Logger) *features.Selector {
	return features.NewSelector(l)
}

// ProvideNormalizer creates the feature/target scaler.
func ProvideNormalizer(cfg *config.Config) *dataset.Normalizer {
	return dataset.NewNormalizer(cfg.Normalize())
}

// ProvidePreprocessor creates the windowing preprocessor.
func ProvidePreprocessor(selector *features.Selector, norm *dataset.Normalizer, cfg *config.Config, l *applogger.Logger) *dataset.Preprocessor {
	targets := dataset.NewSyntheticTargets(nil)
	return dataset.NewPreprocessor(selector, targets, norm, cfg.FeatureList(), cfg.Data.SequenceLength, cfg.Model.OutputSize, l)
}

// ProvideModelConfig derives the network shape from config; the input
// width follows the planned feature columns.
func ProvideModelConfig(cfg *config.Config) seqmodel.Config {
	return seqmodel.Config{
		Architecture:  cfg.Model.Architecture,
		InputFeatures: len(features.PlannedColumns(cfg.FeatureList())),
		HiddenSize:    cfg.Model.HiddenSize,
		NumLayers:     cfg.Model.NumLayers,
		OutputSize:    cfg.Model.OutputSize,
		Dropout:       cfg.Model.Dropout,
		Heads:         cfg.Model.AttentionHead,
	}
}

// ProvideMarketData creates the feature-table usecase.
func ProvideMarketData(store repository.BarStore, engine *features.Engine, cfg *config.Config, l *applogger.Logger) *usecase.MarketData {
	tf := repository.NormalizeTimeframe(cfg.Data.Timeframe)
	return usecase.NewMarketData(store, engine, tf, cfg.Data.Symbols, cfg.Data.Lookback, l)
}

// ProvidePredictor loads the serving model.
func ProvidePredictor(cfg *config.Config, modelCfg seqmodel.Config, selector *features.Selector, norm *dataset.Normalizer, l *applogger.Logger, m repository.Metrics) *predict.Predictor {
	return predict.New(cfg.Model.Path, modelCfg, cfg.Data.SequenceLength, cfg.FeatureList(), selector, norm, l, m)
}

// ProvideCache creates the Redis cache when enabled.
func ProvideCache(cfg *config.Config, l *applogger.Logger) cache.Service {
	if !cfg.Cache.Enabled {
		return nil
	}
	host, port := splitAddr(cfg.Cache.Addr)
	c, err := cache.NewRedisCache(
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(cfg.Cache.Password),
		cache.WithRedisDB(cfg.Cache.DB),
	)
	if err != nil {
		l.Warn("redis unavailable, using in-memory cache", applogger.Error(err))
		return cache.NewMemoryCache()
	}
	return cache.NewLayeredCache(c)
}

// ProvidePredictionService creates the cached prediction service.
func ProvidePredictionService(predictor *predict.Predictor, data *usecase.MarketData, c cache.Service, cfg *config.Config, l *applogger.Logger) *usecase.PredictionService {
	return usecase.NewPredictionService(predictor, data, c, cfg.Cache.TTL, cfg.Training.CheckpointDir, l)
}

// ProvideTrainingService creates the training pipeline.
func ProvideTrainingService(data *usecase.MarketData, prep *dataset.Preprocessor, modelCfg seqmodel.Config, cfg *config.Config, l *applogger.Logger, m repository.Metrics) *usecase.TrainingService {
	return usecase.NewTrainingService(data, prep, modelCfg, train.Config{
		LearningRate:          cfg.Training.LearningRate,
		Epochs:                cfg.Training.Epochs,
		BatchSize:             cfg.Training.BatchSize,
		EarlyStoppingPatience: cfg.Training.EarlyStoppingPatience,
		CheckpointDir:         cfg.Training.CheckpointDir,
	}, l, m)
}

// ProvideJobQueue creates the Redis-backed training job queue when
// enabled, with the training job registered.
func ProvideJobQueue(cfg *config.Config, ts *usecase.TrainingService, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, client, queue.ModeProducerConsumer, queue.WithKeyPrefix("indexpulse:queue"))
	q.RegisterJob(usecase.NewTrainJob(ts, l))
	return q
}

// ProvideAPIHandler creates the prediction API handler.
func ProvideAPIHandler(l *applogger.Logger, svc *usecase.PredictionService, data *usecase.MarketData, q *queue.RedisQueue) xhttp.Handler {
	return api.NewPredictionsEchoHandler(l, svc, data, q)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaBarsHandler,
	chClient *pkgch.Client,
	q *queue.RedisQueue,
) *server.App {
	ProvideLogAggregation(cfg, l)
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	return server.New(cfg, l, handler, consumer, kh, chClient, q)
}

func splitAddr(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 6379
	}
	return host, port
}
