package predict

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"IndexPulse/internal/domain/errs"
	"IndexPulse/internal/domain/models"
	"IndexPulse/internal/services/dataset"
	"IndexPulse/internal/services/features"
	seqmodel "IndexPulse/internal/services/model"
)

var testLogical = []string{"close", "volume", "sentiment_score"}

func testModelConfig() seqmodel.Config {
	return seqmodel.Config{
		InputFeatures: len(features.PlannedColumns(testLogical)),
		HiddenSize:    8,
		NumLayers:     1,
		OutputSize:    3,
		Dropout:       0.1,
		Heads:         2,
	}
}

func featureFixture(rows int) *models.Table {
	rng := rand.New(rand.NewSource(31))
	bars := make([]models.MarketBar, rows)
	price := 50.0
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		price += rng.NormFloat64()
		bars[i] = models.MarketBar{
			Symbol: "BTC",
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   price - 0.5,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 900 + rng.Float64()*100,
		}
	}
	t := models.TableFromBars(bars)
	engine := features.NewEngine(features.WithRand(rand.New(rand.NewSource(31))))
	return engine.Augment(t)
}

func newTestPredictor(modelPath string) *Predictor {
	return New(modelPath, testModelConfig(), 10, testLogical,
		features.NewSelector(nil), dataset.NewNormalizer(true), nil, nil)
}

func TestMissingCheckpointFallsBack(t *testing.T) {
	p := newTestPredictor(filepath.Join(t.TempDir(), "absent.json"))
	info := p.ModelInfo()
	if info.ModelExists {
		t.Fatalf("missing checkpoint must report untrained model")
	}
	if info.OutputSize != 3 {
		t.Fatalf("fallback must keep configured shape, got %d", info.OutputSize)
	}

	// degraded, not broken: inference still works
	out, err := p.PredictFromTable(featureFixture(30))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(out.Indices) != 3 {
		t.Fatalf("expected 3 indices, got %d", len(out.Indices))
	}
}

func TestTrainedCheckpointLoads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "best_model.json")
	cfg := testModelConfig()
	net := seqmodel.New(cfg, rand.New(rand.NewSource(32)))
	opt := seqmodel.NewAdam(0.001)
	sched := seqmodel.NewPlateauScheduler(opt, 0.5, 5)
	if err := seqmodel.SaveCheckpoint(path, &seqmodel.Checkpoint{
		Epoch:     5,
		Config:    cfg,
		Model:     net.StateDict(),
		Optimizer: opt.State(),
		Scheduler: sched.State(),
		BestLoss:  0.1,
	}); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	p := newTestPredictor(path)
	if !p.ModelInfo().ModelExists {
		t.Fatalf("expected trained model to load")
	}
}

func TestPredictFromTableTooShort(t *testing.T) {
	p := newTestPredictor(filepath.Join(t.TempDir(), "absent.json"))
	_, err := p.PredictFromTable(featureFixture(5))
	var insufficient *errs.InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
}

func TestPredictFromTableExactWindow(t *testing.T) {
	p := newTestPredictor(filepath.Join(t.TempDir(), "absent.json"))
	out, err := p.PredictFromTable(featureFixture(10))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	wantNames := []string{"Index_1", "Index_2", "Index_3"}
	for i, name := range wantNames {
		if out.IndexNames[i] != name {
			t.Fatalf("expected %s, got %s", name, out.IndexNames[i])
		}
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		t.Fatalf("confidence out of [0,1]: %v", out.Confidence)
	}
	if out.Timestamp == nil {
		t.Fatalf("expected timestamp from the table's time axis")
	}
}

type staticProvider struct {
	t *models.Table
}

func (p staticProvider) FeatureTable(_ context.Context, _ []string) (*models.Table, error) {
	return p.t, nil
}

func TestPredictNext(t *testing.T) {
	p := newTestPredictor(filepath.Join(t.TempDir(), "absent.json"))
	out, err := p.PredictNext(context.Background(), []string{"BTC"}, staticProvider{t: featureFixture(30)})
	if err != nil {
		t.Fatalf("predict next: %v", err)
	}
	if len(out.Symbols) != 1 || out.Symbols[0] != "BTC" {
		t.Fatalf("expected requested symbols echoed, got %v", out.Symbols)
	}
	if out.ModelPath == "" {
		t.Fatalf("expected model path in result")
	}
}

func TestPredictNextEmptyTable(t *testing.T) {
	p := newTestPredictor(filepath.Join(t.TempDir(), "absent.json"))
	_, err := p.PredictNext(context.Background(), []string{"BTC"}, staticProvider{t: models.NewTable()})
	var noData *errs.NoDataError
	if !errors.As(err, &noData) {
		t.Fatalf("expected NoDataError, got %v", err)
	}
}

func TestConfidence(t *testing.T) {
	if got := Confidence(nil); got != 0 {
		t.Fatalf("empty predictions must yield 0, got %v", got)
	}
	if got := Confidence([]float64{0.4, 0.4, 0.4}); got != 1 {
		t.Fatalf("constant predictions must yield 1, got %v", got)
	}
	got := Confidence([]float64{0, 10, 20})
	if got <= 0 || got >= 1 {
		t.Fatalf("dispersed predictions must land strictly inside (0,1), got %v", got)
	}
}
