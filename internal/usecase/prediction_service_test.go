package usecase

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"IndexPulse/internal/domain/models"
	"IndexPulse/internal/services/dataset"
	"IndexPulse/internal/services/features"
	seqmodel "IndexPulse/internal/services/model"
	"IndexPulse/internal/services/predict"
	"IndexPulse/pkg/cache"
)

func newTestPredictionService(t *testing.T, store *fakeBarStore, c cache.Service) *PredictionService {
	t.Helper()
	logical := []string{"close", "volume", "sentiment_score"}
	cfg := seqmodel.Config{
		InputFeatures: len(features.PlannedColumns(logical)),
		HiddenSize:    8,
		NumLayers:     1,
		OutputSize:    3,
		Dropout:       0.1,
		Heads:         2,
	}
	predictor := predict.New(
		filepath.Join(t.TempDir(), "absent.json"), cfg, 10, logical,
		features.NewSelector(nil), dataset.NewNormalizer(true), nil, nil,
	)
	data := newTestMarketData(store, nil)
	return NewPredictionService(predictor, data, c, time.Minute, t.TempDir(), nil)
}

func TestGetPredictionCaches(t *testing.T) {
	store := storeWithBars(40, "BTC")
	mc := cache.NewMemoryCache()
	defer mc.Close()
	svc := newTestPredictionService(t, store, mc)

	first, err := svc.GetPrediction(context.Background(), []string{"BTC"}, 0)
	if err != nil {
		t.Fatalf("first prediction: %v", err)
	}

	// wipe the store: a cache hit never touches it
	store.bars = make(map[string][]models.MarketBar)

	second, err := svc.GetPrediction(context.Background(), []string{"BTC"}, 0)
	if err != nil {
		t.Fatalf("second prediction: %v", err)
	}
	if second.Confidence != first.Confidence {
		t.Fatalf("cached prediction diverged: %v vs %v", second.Confidence, first.Confidence)
	}
}

func TestGetPredictionNoCache(t *testing.T) {
	store := storeWithBars(40, "BTC")
	svc := newTestPredictionService(t, store, nil)

	out, err := svc.GetPrediction(context.Background(), []string{"BTC"}, 0)
	if err != nil {
		t.Fatalf("prediction: %v", err)
	}
	if len(out.Indices) != 3 {
		t.Fatalf("expected 3 indices, got %d", len(out.Indices))
	}
}

func TestPredictionKey(t *testing.T) {
	if got := predictionKey(nil, 100); got != "prediction:all:100" {
		t.Fatalf("unexpected key %s", got)
	}
	a := predictionKey([]string{"ETH", "BTC"}, 50)
	b := predictionKey([]string{"BTC", "ETH"}, 50)
	if a != b {
		t.Fatalf("key must be order independent: %s vs %s", a, b)
	}
	if a != "prediction:BTC,ETH:50" {
		t.Fatalf("unexpected key %s", a)
	}
}
