package usecase

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"IndexPulse/internal/domain/errs"
	"IndexPulse/internal/domain/models"
	domrepo "IndexPulse/internal/domain/repository"
	"IndexPulse/internal/services/features"
)

// fakeBarStore serves bars from memory, keyed by symbol.
type fakeBarStore struct {
	bars      map[string][]models.MarketBar
	healthErr error
	lastN     int
}

func (f *fakeBarStore) GetBars(_ context.Context, symbol string, from, to time.Time, _ domrepo.Timeframe) ([]models.MarketBar, error) {
	var out []models.MarketBar
	for _, b := range f.bars[symbol] {
		if !b.Time.Before(from) && !b.Time.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBarStore) GetLatestNBars(_ context.Context, symbol string, n int, _ domrepo.Timeframe) ([]models.MarketBar, error) {
	f.lastN = n
	bars := f.bars[symbol]
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars, nil
}

func (f *fakeBarStore) InsertBars(_ context.Context, bars []models.MarketBar) error {
	for _, b := range bars {
		f.bars[b.Symbol] = append(f.bars[b.Symbol], b)
	}
	return nil
}

func (f *fakeBarStore) Health(_ context.Context) error { return f.healthErr }

func storeWithBars(rows int, symbols ...string) *fakeBarStore {
	rng := rand.New(rand.NewSource(41))
	store := &fakeBarStore{bars: make(map[string][]models.MarketBar)}
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for _, sym := range symbols {
		price := 80.0
		for i := 0; i < rows; i++ {
			price += rng.NormFloat64()
			store.bars[sym] = append(store.bars[sym], models.MarketBar{
				Symbol: sym,
				Time:   start.Add(time.Duration(i) * time.Hour),
				Open:   price - 0.5,
				High:   price + 1,
				Low:    price - 1,
				Close:  price,
				Volume: 700 + rng.Float64()*50,
			})
		}
	}
	return store
}

func newTestMarketData(store domrepo.BarStore, symbols []string) *MarketData {
	engine := features.NewEngine(features.WithRand(rand.New(rand.NewSource(41))))
	return NewMarketData(store, engine, domrepo.TF1h, symbols, 100, nil)
}

func TestFeatureTableAugments(t *testing.T) {
	store := storeWithBars(50, "BTC", "ETH")
	m := newTestMarketData(store, nil)

	table, err := m.FeatureTable(context.Background(), []string{"BTC", "ETH"})
	if err != nil {
		t.Fatalf("feature table: %v", err)
	}
	if table.Len() != 100 {
		t.Fatalf("expected 100 rows, got %d", table.Len())
	}
	for _, col := range models.IndicatorColumns {
		if !table.HasColumn(col) {
			t.Fatalf("missing indicator column %s", col)
		}
	}
}

func TestFeatureTableDefaultSymbols(t *testing.T) {
	store := storeWithBars(30, "BTC")
	m := newTestMarketData(store, []string{"BTC"})

	table, err := m.FeatureTable(context.Background(), nil)
	if err != nil {
		t.Fatalf("feature table: %v", err)
	}
	if table.Len() != 30 {
		t.Fatalf("expected configured symbols used, got %d rows", table.Len())
	}
}

func TestFeatureTableSkipsEmptySymbols(t *testing.T) {
	store := storeWithBars(30, "BTC")
	m := newTestMarketData(store, nil)

	table, err := m.FeatureTable(context.Background(), []string{"BTC", "DOGE"})
	if err != nil {
		t.Fatalf("feature table: %v", err)
	}
	if table.Len() != 30 {
		t.Fatalf("expected only BTC rows, got %d", table.Len())
	}
}

func TestFeatureTableNoData(t *testing.T) {
	store := &fakeBarStore{bars: make(map[string][]models.MarketBar)}
	m := newTestMarketData(store, nil)

	_, err := m.FeatureTable(context.Background(), []string{"BTC"})
	var noData *errs.NoDataError
	if !errors.As(err, &noData) {
		t.Fatalf("expected NoDataError, got %v", err)
	}
}

func TestFeatureTableNoSymbols(t *testing.T) {
	store := storeWithBars(30, "BTC")
	m := newTestMarketData(store, nil)

	_, err := m.FeatureTable(context.Background(), nil)
	var invalid *errs.InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
}

func TestWithLookbackOverridesDefault(t *testing.T) {
	store := storeWithBars(50, "BTC")
	m := newTestMarketData(store, nil)

	if _, err := m.WithLookback(25).FeatureTable(context.Background(), []string{"BTC"}); err != nil {
		t.Fatalf("feature table: %v", err)
	}
	if store.lastN != 25 {
		t.Fatalf("expected lookback 25 passed to store, got %d", store.lastN)
	}

	if _, err := m.WithLookback(0).FeatureTable(context.Background(), []string{"BTC"}); err != nil {
		t.Fatalf("feature table: %v", err)
	}
	if store.lastN != 100 {
		t.Fatalf("expected configured default 100, got %d", store.lastN)
	}
}

func TestTrainingTableAlignsRange(t *testing.T) {
	store := storeWithBars(48, "BTC")
	m := newTestMarketData(store, nil)

	from := time.Date(2024, 5, 1, 0, 30, 0, 0, time.UTC)
	to := time.Date(2024, 5, 2, 12, 30, 0, 0, time.UTC)
	table, err := m.TrainingTable(context.Background(), []string{"BTC"}, from, to)
	if err != nil {
		t.Fatalf("training table: %v", err)
	}
	// aligned to hour boundaries: 05-01 00:00 through 05-02 12:00 inclusive
	if table.Len() != 37 {
		t.Fatalf("expected 37 aligned rows, got %d", table.Len())
	}
}
