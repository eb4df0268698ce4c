package dataset

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"IndexPulse/internal/domain/errs"
	"IndexPulse/internal/domain/models"
	"IndexPulse/internal/services/features"
)

func augmentedTable(symbol string, rows int) *models.Table {
	rng := rand.New(rand.NewSource(7))
	bars := make([]models.MarketBar, rows)
	price := 100.0
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		price += rng.NormFloat64()
		bars[i] = models.MarketBar{
			Symbol: symbol,
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   price - 0.5,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 1000 + rng.Float64()*100,
		}
	}
	t := models.TableFromBars(bars)
	engine := features.NewEngine(features.WithRand(rand.New(rand.NewSource(7))))
	return engine.Augment(t)
}

func newTestPreprocessor(seqLen, outputSize int) *Preprocessor {
	return NewPreprocessor(
		features.NewSelector(nil),
		NewSyntheticTargets(rand.New(rand.NewSource(7))),
		NewNormalizer(true),
		[]string{"close", "volume", "sentiment_score"},
		seqLen, outputSize, nil,
	)
}

func TestPrepareDataShapes(t *testing.T) {
	p := newTestPreprocessor(10, 3)
	prepared, err := p.PrepareData(augmentedTable("BTC", 100))
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	windows := 100 - 10
	split := int(float64(windows) * 0.8)
	if len(prepared.XTrain) != split {
		t.Fatalf("expected %d train windows, got %d", split, len(prepared.XTrain))
	}
	if len(prepared.XVal) != windows-split {
		t.Fatalf("expected %d val windows, got %d", windows-split, len(prepared.XVal))
	}
	if len(prepared.YTrain[0]) != 3 {
		t.Fatalf("expected targets tiled to width 3, got %d", len(prepared.YTrain[0]))
	}
	// tiled slots carry the same label
	if prepared.YTrain[0][0] != prepared.YTrain[0][2] {
		t.Fatalf("tiled target slots differ: %v", prepared.YTrain[0])
	}
	if len(prepared.FeatureNames) == 0 {
		t.Fatalf("expected selected feature names")
	}
	if len(prepared.XTrain[0][0]) != len(prepared.FeatureNames) {
		t.Fatalf("window width %d != feature count %d", len(prepared.XTrain[0][0]), len(prepared.FeatureNames))
	}
}

func TestPrepareDataNormalizerFitted(t *testing.T) {
	p := newTestPreprocessor(10, 1)
	if _, err := p.PrepareData(augmentedTable("BTC", 80)); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if !p.Normalizer().Fitted() {
		t.Fatalf("expected normalizer fitted after PrepareData")
	}
}

func TestPrepareDataTooFewRows(t *testing.T) {
	p := newTestPreprocessor(60, 3)
	_, err := p.PrepareData(augmentedTable("BTC", 30))
	var insufficient *errs.InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
}

func TestPrepareDataEmptyTable(t *testing.T) {
	p := newTestPreprocessor(10, 3)
	_, err := p.PrepareData(models.NewTable())
	var invalid *errs.InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
}

func TestSyntheticTargetsRange(t *testing.T) {
	targets, err := NewSyntheticTargets(rand.New(rand.NewSource(7))).Targets(augmentedTable("BTC", 60))
	if err != nil {
		t.Fatalf("targets: %v", err)
	}
	if len(targets) != 60 {
		t.Fatalf("expected one target per row, got %d", len(targets))
	}
	for i, v := range targets {
		if v < 0 || v > 1 {
			t.Fatalf("target %d out of [0,1]: %v", i, v)
		}
	}
}
