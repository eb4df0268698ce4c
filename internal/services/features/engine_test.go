package features

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"IndexPulse/internal/domain/models"
)

func barTable(rowsPerSymbol int, symbols ...string) *models.Table {
	rng := rand.New(rand.NewSource(11))
	var bars []models.MarketBar
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, sym := range symbols {
		price := 100.0
		for i := 0; i < rowsPerSymbol; i++ {
			price += rng.NormFloat64()
			bars = append(bars, models.MarketBar{
				Symbol: sym,
				Time:   start.Add(time.Duration(i) * time.Hour),
				Open:   price - 0.5,
				High:   price + 1,
				Low:    price - 1,
				Close:  price,
				Volume: 500 + rng.Float64()*50,
			})
		}
	}
	return models.TableFromBars(bars)
}

func TestAugmentAddsColumns(t *testing.T) {
	e := NewEngine(WithRand(rand.New(rand.NewSource(11))))
	table := e.Augment(barTable(50, "BTC"))

	for _, col := range models.IndicatorColumns {
		if !table.HasColumn(col) {
			t.Fatalf("missing indicator column %s", col)
		}
	}
	if !table.HasColumn(models.ColSentiment) {
		t.Fatalf("missing sentiment column")
	}
	if table.Len() != 50 {
		t.Fatalf("row count changed: %d", table.Len())
	}
}

func TestAugmentNoNaNAfterFill(t *testing.T) {
	e := NewEngine(WithRand(rand.New(rand.NewSource(11))))
	table := e.Augment(barTable(50, "BTC", "ETH"))
	for _, name := range table.Columns() {
		for i, v := range table.Column(name) {
			if math.IsNaN(v) {
				t.Fatalf("NaN survived fill in %s row %d", name, i)
			}
		}
	}
}

func TestAddIndicatorsGroupsBySymbol(t *testing.T) {
	e := NewEngine(WithRand(rand.New(rand.NewSource(11))))
	table := barTable(40, "BTC", "ETH")
	e.AddIndicators(table)

	// the second symbol's first percent change restarts at NaN instead of
	// chaining off the first symbol's last close
	pct := table.Column(models.ColPriceChangePct)
	if !math.IsNaN(pct[0]) || !math.IsNaN(pct[40]) {
		t.Fatalf("expected NaN at each symbol's first row, got %v %v", pct[0], pct[40])
	}
}

func TestAddSentimentExternalSource(t *testing.T) {
	e := NewEngine(WithSentimentSource(ConstantSentiment{Value: 0.25}))
	table := barTable(10, "BTC")
	e.AddSentiment(table)
	for i, v := range table.Column(models.ColSentiment) {
		if v != 0.25 {
			t.Fatalf("row %d: expected constant 0.25, got %v", i, v)
		}
	}
}

func TestAddSentimentNoiseBounds(t *testing.T) {
	e := NewEngine(WithRand(rand.New(rand.NewSource(11))))
	table := barTable(30, "BTC")
	e.AddSentiment(table)
	for i, v := range table.Column(models.ColSentiment) {
		if v < -1 || v > 1 {
			t.Fatalf("row %d: sentiment noise out of [-1,1]: %v", i, v)
		}
	}
}

func TestFillMissingForwardThenZero(t *testing.T) {
	table := models.NewTable()
	table.SetColumn("x", []float64{math.NaN(), math.NaN(), 3, math.NaN(), 5})
	FillMissing(table)
	want := []float64{0, 0, 3, 3, 5}
	for i, v := range table.Column("x") {
		if v != want[i] {
			t.Fatalf("row %d: expected %v, got %v", i, want[i], v)
		}
	}
}
