package usecase

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"IndexPulse/internal/domain/models"
	"IndexPulse/internal/services/predict"
	"IndexPulse/internal/services/train"
	"IndexPulse/pkg/cache"
	applogger "IndexPulse/pkg/logger"
)

// PredictionService serves index predictions with a short-lived cache in
// front of the model. Identical symbol sets within the TTL share one
// forward pass.
type PredictionService struct {
	predictor *predict.Predictor
	data      *MarketData
	cache     cache.Service
	ttl       time.Duration
	histDir   string
	l         *applogger.Logger
}

// NewPredictionService creates the service. cache may be nil to disable
// caching.
func NewPredictionService(predictor *predict.Predictor, data *MarketData, c cache.Service, ttl time.Duration, histDir string, l *applogger.Logger) *PredictionService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &PredictionService{
		predictor: predictor,
		data:      data,
		cache:     c,
		ttl:       ttl,
		histDir:   histDir,
		l:         l,
	}
}

// GetPrediction returns a cached prediction when fresh, otherwise runs
// the model. Cache failures degrade to a direct prediction.
func (s *PredictionService) GetPrediction(ctx context.Context, symbols []string, lookback int) (*models.IndexPrediction, error) {
	key := predictionKey(symbols, lookback)

	if s.cache != nil {
		var cached models.IndexPrediction
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			if s.l != nil {
				s.l.Debug("prediction cache hit", applogger.String("key", key))
			}
			return &cached, nil
		}
	}

	out, err := s.predictor.PredictNext(ctx, symbols, s.data.WithLookback(lookback))
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, out, s.ttl); err != nil && s.l != nil {
			s.l.Warn("prediction cache set failed", applogger.Error(err))
		}
	}
	return out, nil
}

// ModelInfo exposes serving metadata.
func (s *PredictionService) ModelInfo() models.ModelInfo {
	return s.predictor.ModelInfo()
}

// History loads the persisted training history, if any.
func (s *PredictionService) History() (*models.TrainingHistory, error) {
	return train.LoadHistory(filepath.Join(s.histDir, train.HistoryFile))
}

func predictionKey(symbols []string, lookback int) string {
	joined := "all"
	if len(symbols) > 0 {
		sorted := append([]string(nil), symbols...)
		sort.Strings(sorted)
		joined = strings.Join(sorted, ",")
	}
	return cache.GenerateKeyWithParams("prediction", joined, lookback)
}
