package dataset

import "testing"

func makeRows(n, width int) ([][]float64, []float64) {
	rows := make([][]float64, n)
	targets := make([]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, width)
		for j := range row {
			row[j] = float64(i*width + j)
		}
		rows[i] = row
		targets[i] = float64(i)
	}
	return rows, targets
}

func TestBuildSequencesShapes(t *testing.T) {
	rows, targets := makeRows(100, 4)
	x, y := BuildSequences(rows, targets, 10)
	if len(x) != 90 {
		t.Fatalf("expected 90 windows, got %d", len(x))
	}
	if len(y) != 90 {
		t.Fatalf("expected 90 targets, got %d", len(y))
	}
	if len(x[0]) != 10 || len(x[0][0]) != 4 {
		t.Fatalf("unexpected window shape %dx%d", len(x[0]), len(x[0][0]))
	}
}

func TestBuildSequencesTargetAlignment(t *testing.T) {
	rows, targets := makeRows(20, 2)
	x, y := BuildSequences(rows, targets, 5)
	for i := range x {
		// the label is the row immediately after the window
		if y[i] != targets[i+5] {
			t.Fatalf("window %d: expected target %v, got %v", i, targets[i+5], y[i])
		}
		if x[i][0][0] != rows[i][0] {
			t.Fatalf("window %d does not start at row %d", i, i)
		}
	}
}

func TestBuildSequencesTooShort(t *testing.T) {
	rows, targets := makeRows(5, 2)
	x, y := BuildSequences(rows, targets, 5)
	if x != nil || y != nil {
		t.Fatalf("expected no windows for n <= length, got %d", len(x))
	}
}
