package features

import (
	"math"
	"testing"
)

func TestRollingMeanMinPeriods(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	got := RollingMean(xs, 3, 1)
	want := []float64{1, 1.5, 2, 3, 4}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("row %d: expected %v, got %v", i, want[i], got[i])
		}
	}

	strict := RollingMean(xs, 3, 3)
	if !math.IsNaN(strict[0]) || !math.IsNaN(strict[1]) {
		t.Fatalf("expected NaN before the window fills, got %v %v", strict[0], strict[1])
	}
	if strict[2] != 2 {
		t.Fatalf("expected 2 at first full window, got %v", strict[2])
	}
}

func TestRollingMeanNaNPropagates(t *testing.T) {
	xs := []float64{1, math.NaN(), 3, 4}
	got := RollingMean(xs, 2, 1)
	if !math.IsNaN(got[1]) || !math.IsNaN(got[2]) {
		t.Fatalf("NaN input must poison windows containing it")
	}
	if got[3] != 3.5 {
		t.Fatalf("clean window after NaN: expected 3.5, got %v", got[3])
	}
}

func TestRollingStdSingleObservation(t *testing.T) {
	got := RollingStd([]float64{5, 5, 5}, 3, 1)
	if !math.IsNaN(got[0]) {
		t.Fatalf("sample std of one observation must be NaN")
	}
	if got[2] != 0 {
		t.Fatalf("constant window std must be 0, got %v", got[2])
	}
}

func TestEMASeedAndRecursion(t *testing.T) {
	xs := []float64{10, 20, 30}
	got := EMA(xs, 3)
	if got[0] != 10 {
		t.Fatalf("EMA seeds with first observation, got %v", got[0])
	}
	alpha := 2.0 / 4.0
	want1 := alpha*20 + (1-alpha)*10
	if math.Abs(got[1]-want1) > 1e-12 {
		t.Fatalf("expected %v, got %v", want1, got[1])
	}
}

func TestRSIBounds(t *testing.T) {
	n := 40
	up := make([]float64, n)
	for i := range up {
		up[i] = float64(100 + i)
	}
	got := RSI(up, 14)
	for i := 0; i < 14; i++ {
		if !math.IsNaN(got[i]) {
			t.Fatalf("row %d inside warmup should be NaN, got %v", i, got[i])
		}
	}
	if got[n-1] != 100 {
		t.Fatalf("monotone rally should pin RSI at 100, got %v", got[n-1])
	}

	alternating := make([]float64, n)
	for i := range alternating {
		alternating[i] = 100 + float64(i%2)
	}
	mixed := RSI(alternating, 14)
	last := mixed[n-1]
	if last <= 0 || last >= 100 {
		t.Fatalf("mixed series RSI out of (0,100): %v", last)
	}
}

func TestPctChange(t *testing.T) {
	got := PctChange([]float64{100, 110, 99})
	if !math.IsNaN(got[0]) {
		t.Fatalf("first row must be NaN")
	}
	if math.Abs(got[1]-0.1) > 1e-12 {
		t.Fatalf("expected 0.1, got %v", got[1])
	}
	if math.Abs(got[2]-(-0.1)) > 1e-12 {
		t.Fatalf("expected -0.1, got %v", got[2])
	}
}

func TestMinMaxScaleConstant(t *testing.T) {
	got := MinMaxScale([]float64{7, 7, 7})
	for i, v := range got {
		if v != 0 {
			t.Fatalf("constant input should scale to 0 at %d, got %v", i, v)
		}
	}
}
