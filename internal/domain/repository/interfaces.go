package repository

import (
	"context"

	"IndexPulse/internal/domain/models"
)

// Publisher pushes bars onto the ingestion bus.
type Publisher interface {
	Publish(ctx context.Context, bar *models.MarketBar) error
	PublishBatch(ctx context.Context, bars []*models.MarketBar) error
	Close() error
}

// Metrics records operational metrics for ingestion, training, and serving.
type Metrics interface {
	RecordMessageSent(backend, symbol string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordPrediction(confidence float64)
	RecordEpoch(epoch int, trainLoss, valLoss float64)
}
