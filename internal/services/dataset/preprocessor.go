package dataset

import (
	"IndexPulse/internal/domain/errs"
	"IndexPulse/internal/domain/models"
	"IndexPulse/internal/services/features"
	applogger "IndexPulse/pkg/logger"
)

// Prepared holds the train/validation tensors produced by PrepareData.
type Prepared struct {
	XTrain [][][]float64
	YTrain [][]float64
	XVal   [][][]float64
	YVal   [][]float64

	FeatureNames []string
}

// Preprocessor turns an augmented feature table into normalized training
// sequences: select features, derive synthetic targets, build windows,
// split 80/20 chronologically, fit-normalize train / transform val, then
// tile targets to the model's output width.
type Preprocessor struct {
	selector *features.Selector
	targets  TargetSource
	norm     *Normalizer
	logical  []string

	seqLen     int
	outputSize int
	l          *applogger.Logger
}

// NewPreprocessor creates a preprocessor over the given selector, target
// source, and normalizer. logical names the requested feature columns.
func NewPreprocessor(selector *features.Selector, targets TargetSource, norm *Normalizer, logical []string, seqLen, outputSize int, l *applogger.Logger) *Preprocessor {
	return &Preprocessor{
		selector:   selector,
		targets:    targets,
		norm:       norm,
		logical:    logical,
		seqLen:     seqLen,
		outputSize: outputSize,
		l:          l,
	}
}

// Normalizer exposes the fitted scaler for persistence alongside checkpoints.
func (p *Preprocessor) Normalizer() *Normalizer { return p.norm }

// PrepareData runs the full preparation pipeline on an augmented table.
func (p *Preprocessor) PrepareData(t *models.Table) (*Prepared, error) {
	if t == nil || t.Len() == 0 {
		return nil, &errs.InvalidInputError{Reason: "empty feature table"}
	}

	selected, err := p.selector.Select(t, p.logical)
	if err != nil {
		return nil, err
	}
	rows, err := t.Matrix(selected)
	if err != nil {
		return nil, &errs.InvalidInputError{Reason: err.Error()}
	}

	targets, err := p.targets.Targets(t)
	if err != nil {
		return nil, err
	}

	x, y := BuildSequences(rows, targets, p.seqLen)
	if len(x) == 0 {
		return nil, &errs.InsufficientDataError{Need: p.seqLen + 1, Got: t.Len()}
	}

	split := int(float64(len(x)) * 0.8)
	if split == 0 {
		split = 1
	}
	xTrain, xVal := x[:split], x[split:]
	yTrain, yVal := columnize(y[:split]), columnize(y[split:])

	xTrain, yTrain = p.norm.FitTransform(xTrain, yTrain)
	xVal, yVal, err = p.norm.Transform(xVal, yVal)
	if err != nil {
		return nil, err
	}

	out := &Prepared{
		XTrain:       xTrain,
		YTrain:       tile(yTrain, p.outputSize),
		XVal:         xVal,
		YVal:         tile(yVal, p.outputSize),
		FeatureNames: selected,
	}
	if p.l != nil {
		p.l.Info("training data prepared",
			applogger.Int("train_windows", len(out.XTrain)),
			applogger.Int("val_windows", len(out.XVal)),
			applogger.Int("features", len(selected)),
			applogger.Int("sequence_length", p.seqLen),
		)
	}
	return out, nil
}

// columnize lifts a scalar target series into single-column rows.
func columnize(y []float64) [][]float64 {
	out := make([][]float64, len(y))
	for i, v := range y {
		out[i] = []float64{v}
	}
	return out
}

// tile repeats the scalar target across the model's output width so the
// regression head learns the same label per index slot.
func tile(y [][]float64, width int) [][]float64 {
	if width <= 1 {
		return y
	}
	out := make([][]float64, len(y))
	for i, row := range y {
		r := make([]float64, width)
		for j := 0; j < width; j++ {
			r[j] = row[0]
		}
		out[i] = r
	}
	return out
}
