package dataset

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"IndexPulse/internal/domain/errs"
)

func sampleData() ([][][]float64, [][]float64) {
	x := [][][]float64{
		{{1, 10}, {2, 20}, {3, 30}},
		{{4, 40}, {5, 50}, {6, 60}},
	}
	y := [][]float64{{0.2}, {0.8}}
	return x, y
}

func TestNormalizerFitTransform(t *testing.T) {
	n := NewNormalizer(true)
	x, y := sampleData()
	xs, ys := n.FitTransform(x, y)
	if !n.Fitted() {
		t.Fatalf("expected fitted after FitTransform")
	}

	// standardized features have zero pooled mean
	var sum float64
	count := 0
	for _, w := range xs {
		for _, row := range w {
			sum += row[0]
			count++
		}
	}
	if mean := sum / float64(count); math.Abs(mean) > 1e-9 {
		t.Fatalf("expected zero mean, got %v", mean)
	}

	// targets min-max scale to [0,1] with the extremes hit exactly
	if ys[0][0] != 0 || ys[1][0] != 1 {
		t.Fatalf("unexpected scaled targets %v %v", ys[0][0], ys[1][0])
	}
}

func TestNormalizerTransformBeforeFit(t *testing.T) {
	n := NewNormalizer(true)
	x, y := sampleData()
	_, _, err := n.Transform(x, y)
	var notFitted *errs.NotFittedError
	if !errors.As(err, &notFitted) {
		t.Fatalf("expected NotFittedError, got %v", err)
	}
}

func TestNormalizerDisabledPassthrough(t *testing.T) {
	n := NewNormalizer(false)
	x, y := sampleData()
	xs, ys := n.FitTransform(x, y)
	if xs[0][0][0] != x[0][0][0] || ys[0][0] != y[0][0] {
		t.Fatalf("disabled normalizer must not change data")
	}
	if n.Fitted() {
		t.Fatalf("disabled normalizer must not fit")
	}
}

func TestNormalizerSaveLoadRoundTrip(t *testing.T) {
	n := NewNormalizer(true)
	x, y := sampleData()
	n.FitTransform(x, y)

	path := filepath.Join(t.TempDir(), "scalers.json")
	if err := n.SaveFile(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored := NewNormalizer(true)
	if err := restored.LoadFile(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !restored.Fitted() {
		t.Fatalf("expected loaded normalizer to be fitted")
	}

	a, _, err := n.Transform(x, y)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	b, _, err := restored.Transform(x, y)
	if err != nil {
		t.Fatalf("restored transform: %v", err)
	}
	for i := range a {
		for tt := range a[i] {
			for j := range a[i][tt] {
				if a[i][tt][j] != b[i][tt][j] {
					t.Fatalf("restored transform diverges at [%d][%d][%d]", i, tt, j)
				}
			}
		}
	}
}

func TestNormalizerTransformWindowUnfitted(t *testing.T) {
	n := NewNormalizer(true)
	w := [][]float64{{1, 2}, {3, 4}}
	got, err := n.TransformWindow(w)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if got[0][0] != 1 || got[1][1] != 4 {
		t.Fatalf("unfitted TransformWindow must be identity")
	}
}

func TestNormalizerInverseTargets(t *testing.T) {
	n := NewNormalizer(true)
	x, y := sampleData()
	_, ys := n.FitTransform(x, y)
	back := n.InverseTransformTargets(ys)
	for i := range y {
		if math.Abs(back[i][0]-y[i][0]) > 1e-12 {
			t.Fatalf("inverse transform mismatch: %v vs %v", back[i][0], y[i][0])
		}
	}
}
