package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"IndexPulse/internal/domain/errs"
)

// Normalizer standardizes feature windows and min-max-scales targets into
// [0,1]. Feature statistics pool all rows across all timesteps: one scale
// per feature channel applied uniformly along the time axis. Changing this
// pooling changes model behavior non-trivially, so it is kept as is.
type Normalizer struct {
	enabled bool
	fitted  bool

	mean  []float64
	scale []float64
	tMin  []float64
	tMax  []float64
}

// scalerState is the persisted form of fitted parameters.
type scalerState struct {
	Fitted bool      `json:"fitted"`
	Mean   []float64 `json:"feature_mean"`
	Scale  []float64 `json:"feature_scale"`
	TMin   []float64 `json:"target_min"`
	TMax   []float64 `json:"target_max"`
}

// NewNormalizer creates a normalizer. A disabled normalizer passes data
// through unchanged so callers can switch it off via configuration
// without branching.
func NewNormalizer(enabled bool) *Normalizer {
	return &Normalizer{enabled: enabled}
}

// Fitted reports whether parameters have been fitted or loaded.
func (n *Normalizer) Fitted() bool { return n.fitted }

// FitTransform fits feature and target scalers and returns scaled copies.
func (n *Normalizer) FitTransform(x [][][]float64, y [][]float64) ([][][]float64, [][]float64) {
	if !n.enabled {
		return x, y
	}
	n.fitFeatures(x)
	n.fitTargets(y)
	n.fitted = true
	xs, _ := n.transformFeatures(x)
	ys := n.transformTargets(y)
	return xs, ys
}

// Transform applies previously fitted parameters. Calling before any fit
// or load is a NotFittedError.
func (n *Normalizer) Transform(x [][][]float64, y [][]float64) ([][][]float64, [][]float64, error) {
	if !n.enabled {
		return x, y, nil
	}
	if !n.fitted {
		return nil, nil, &errs.NotFittedError{Op: "Transform"}
	}
	xs, err := n.transformFeatures(x)
	if err != nil {
		return nil, nil, err
	}
	return xs, n.transformTargets(y), nil
}

// TransformWindow scales a single feature window in natural units.
func (n *Normalizer) TransformWindow(w [][]float64) ([][]float64, error) {
	if !n.enabled || !n.fitted {
		return w, nil
	}
	xs, err := n.transformFeatures([][][]float64{w})
	if err != nil {
		return nil, err
	}
	return xs[0], nil
}

// InverseTransformTargets maps scaled targets back to natural units.
// Identity passthrough when normalization is disabled or unfitted.
func (n *Normalizer) InverseTransformTargets(y [][]float64) [][]float64 {
	if !n.enabled || !n.fitted || len(n.tMin) == 0 {
		return y
	}
	out := make([][]float64, len(y))
	for i, row := range y {
		r := make([]float64, len(row))
		for j, v := range row {
			k := j
			if k >= len(n.tMin) {
				k = len(n.tMin) - 1
			}
			r[j] = v*(n.tMax[k]-n.tMin[k]) + n.tMin[k]
		}
		out[i] = r
	}
	return out
}

// Save serializes the fitted scaler parameters as an opaque blob.
func (n *Normalizer) Save() ([]byte, error) {
	return json.Marshal(scalerState{
		Fitted: n.fitted,
		Mean:   n.mean,
		Scale:  n.scale,
		TMin:   n.tMin,
		TMax:   n.tMax,
	})
}

// Load restores fitted parameters from a blob and marks the state fitted.
func (n *Normalizer) Load(blob []byte) error {
	var st scalerState
	if err := json.Unmarshal(blob, &st); err != nil {
		return fmt.Errorf("decode scaler state: %w", err)
	}
	n.mean = st.Mean
	n.scale = st.Scale
	n.tMin = st.TMin
	n.tMax = st.TMax
	n.fitted = st.Fitted || len(st.Mean) > 0
	return nil
}

// SaveFile writes the scaler blob to disk.
func (n *Normalizer) SaveFile(path string) error {
	blob, err := n.Save()
	if err != nil {
		return err
	}
	return os.WriteFile(path, blob, 0o644)
}

// LoadFile restores the scaler blob from disk.
func (n *Normalizer) LoadFile(path string) error {
	blob, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read scaler file: %w", err)
	}
	return n.Load(blob)
}

func (n *Normalizer) fitFeatures(x [][][]float64) {
	if len(x) == 0 || len(x[0]) == 0 {
		return
	}
	f := len(x[0][0])
	sum := make([]float64, f)
	count := 0
	for _, w := range x {
		for _, row := range w {
			for j, v := range row {
				sum[j] += v
			}
			count++
		}
	}
	n.mean = make([]float64, f)
	for j := range sum {
		n.mean[j] = sum[j] / float64(count)
	}
	sq := make([]float64, f)
	for _, w := range x {
		for _, row := range w {
			for j, v := range row {
				d := v - n.mean[j]
				sq[j] += d * d
			}
		}
	}
	n.scale = make([]float64, f)
	for j := range sq {
		sd := math.Sqrt(sq[j] / float64(count))
		if sd == 0 {
			sd = 1
		}
		n.scale[j] = sd
	}
}

func (n *Normalizer) fitTargets(y [][]float64) {
	if len(y) == 0 {
		return
	}
	k := len(y[0])
	n.tMin = make([]float64, k)
	n.tMax = make([]float64, k)
	for j := 0; j < k; j++ {
		n.tMin[j] = y[0][j]
		n.tMax[j] = y[0][j]
	}
	for _, row := range y {
		for j, v := range row {
			if v < n.tMin[j] {
				n.tMin[j] = v
			}
			if v > n.tMax[j] {
				n.tMax[j] = v
			}
		}
	}
}

func (n *Normalizer) transformFeatures(x [][][]float64) ([][][]float64, error) {
	out := make([][][]float64, len(x))
	for i, w := range x {
		ow := make([][]float64, len(w))
		for t, row := range w {
			if len(row) != len(n.mean) {
				return nil, fmt.Errorf("feature width %d does not match fitted width %d", len(row), len(n.mean))
			}
			r := make([]float64, len(row))
			for j, v := range row {
				r[j] = (v - n.mean[j]) / n.scale[j]
			}
			ow[t] = r
		}
		out[i] = ow
	}
	return out, nil
}

func (n *Normalizer) transformTargets(y [][]float64) [][]float64 {
	out := make([][]float64, len(y))
	for i, row := range y {
		r := make([]float64, len(row))
		for j, v := range row {
			k := j
			if k >= len(n.tMin) {
				k = len(n.tMin) - 1
			}
			denom := n.tMax[k] - n.tMin[k]
			if denom == 0 {
				denom = 1
			}
			r[j] = (v - n.tMin[k]) / denom
		}
		out[i] = r
	}
	return out
}
