package features

import (
	"errors"
	"math/rand"
	"testing"

	"IndexPulse/internal/domain/errs"
	"IndexPulse/internal/domain/models"
)

func TestSelectMapsLogicalNames(t *testing.T) {
	e := NewEngine(WithRand(rand.New(rand.NewSource(11))))
	table := e.Augment(barTable(40, "BTC"))

	s := NewSelector(nil)
	got, err := s.Select(table, []string{"close", "volume", "market_cap", "sentiment_score"})
	if err != nil {
		t.Fatalf("select: %v", err)
	}

	// market_cap proxies to Close, which is already selected, so the
	// physical set is Close, Volume, sentiment plus the indicator columns
	want := 3 + len(models.IndicatorColumns)
	if len(got) != want {
		t.Fatalf("expected %d columns, got %d: %v", want, len(got), got)
	}
	if got[0] != models.ColClose || got[1] != models.ColVolume {
		t.Fatalf("unexpected leading columns %v", got[:2])
	}
}

func TestSelectDropsMissing(t *testing.T) {
	table := models.NewTable()
	table.SetColumn(models.ColClose, []float64{1, 2, 3})

	s := NewSelector(nil)
	got, err := s.Select(table, []string{"close", "sentiment_score", "bogus"})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 1 || got[0] != models.ColClose {
		t.Fatalf("expected only Close, got %v", got)
	}
}

func TestSelectNothingUsable(t *testing.T) {
	table := models.NewTable()
	table.SetColumn("unrelated", []float64{1})

	s := NewSelector(nil)
	_, err := s.Select(table, []string{"close", "volume"})
	var invalid *errs.InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
}

func TestPlannedColumnsMatchesSelect(t *testing.T) {
	logical := []string{"close", "volume", "market_cap", "sentiment_score"}
	planned := PlannedColumns(logical)

	e := NewEngine(WithRand(rand.New(rand.NewSource(11))))
	table := e.Augment(barTable(40, "BTC"))
	selected, err := NewSelector(nil).Select(table, logical)
	if err != nil {
		t.Fatalf("select: %v", err)
	}

	if len(planned) != len(selected) {
		t.Fatalf("planned %d != selected %d", len(planned), len(selected))
	}
	for i := range planned {
		if planned[i] != selected[i] {
			t.Fatalf("column %d: planned %s, selected %s", i, planned[i], selected[i])
		}
	}
}
