package predict

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/stat"

	"IndexPulse/internal/domain/errs"
	"IndexPulse/internal/domain/models"
	domrepo "IndexPulse/internal/domain/repository"
	"IndexPulse/internal/services/dataset"
	"IndexPulse/internal/services/features"
	seqmodel "IndexPulse/internal/services/model"
	"IndexPulse/internal/services/train"
	applogger "IndexPulse/pkg/logger"
)

// TableProvider supplies an augmented feature table for requested
// symbols. The provider call blocks; timeouts and retries belong to the
// caller's context.
type TableProvider interface {
	FeatureTable(ctx context.Context, symbols []string) (*models.Table, error)
}

// Predictor loads a trained model (or falls back to untrained weights)
// and turns a raw price history into index predictions with a confidence
// score. Single-owner for mutation; concurrent read-only inference is
// safe once constructed since Predict never mutates state.
type Predictor struct {
	modelPath string
	exists    bool

	net      *seqmodel.Network
	selector *features.Selector
	norm     *dataset.Normalizer
	seqLen   int
	featured []string

	l       *applogger.Logger
	metrics domrepo.Metrics
}

// New constructs a predictor. A missing checkpoint is a warning-level
// condition: the predictor proceeds with an untrained model and callers
// detect the degraded mode through ModelInfo.
func New(modelPath string, cfg seqmodel.Config, seqLen int, logical []string, selector *features.Selector, norm *dataset.Normalizer, l *applogger.Logger, metrics domrepo.Metrics) *Predictor {
	p := &Predictor{
		modelPath: modelPath,
		selector:  selector,
		norm:      norm,
		seqLen:    seqLen,
		featured:  logical,
		l:         l,
		metrics:   metrics,
	}

	cp, err := seqmodel.LoadCheckpoint(modelPath)
	switch {
	case err == nil:
		p.net = seqmodel.New(cp.Config, rand.New(rand.NewSource(rand.Int63())))
		if lerr := p.net.LoadStateDict(cp.Model); lerr != nil {
			if l != nil {
				l.Warn("checkpoint state rejected, using untrained model", applogger.Error(lerr))
			}
			p.net = seqmodel.New(cfg, rand.New(rand.NewSource(rand.Int63())))
		} else {
			p.exists = true
		}
	default:
		if l != nil {
			l.Warn("model fallback", applogger.Error(&errs.ModelUninitializedError{Path: modelPath}))
		}
		p.net = seqmodel.New(cfg, rand.New(rand.NewSource(rand.Int63())))
	}

	// restore the fitted scaler persisted next to the checkpoints
	if norm != nil {
		scalerPath := filepath.Join(filepath.Dir(modelPath), train.ScalerFile)
		if _, err := os.Stat(scalerPath); err == nil {
			if lerr := norm.LoadFile(scalerPath); lerr != nil && l != nil {
				l.Warn("scaler restore failed", applogger.Error(lerr))
			}
		}
	}
	return p
}

// Predict runs a pure forward pass in evaluation mode over a batch of
// windows.
func (p *Predictor) Predict(batch [][][]float64) [][]float64 {
	return p.net.Predict(batch)
}

// PredictFromTable selects features from an augmented table, takes the
// most recent window, applies the fitted scaler when available, and
// packages the prediction with index names, confidence, and a
// best-effort timestamp.
func (p *Predictor) PredictFromTable(t *models.Table) (*models.IndexPrediction, error) {
	start := time.Now()
	selected, err := p.selector.Select(t, p.featured)
	if err != nil {
		return nil, err
	}
	if t.Len() < p.seqLen {
		return nil, &errs.InsufficientDataError{Need: p.seqLen, Got: t.Len()}
	}

	tail := t.Tail(p.seqLen)
	window, err := tail.Matrix(selected)
	if err != nil {
		return nil, &errs.InvalidInputError{Reason: err.Error()}
	}
	window, err = p.norm.TransformWindow(window)
	if err != nil {
		return nil, err
	}

	preds := p.net.Predict([][][]float64{window})[0]
	names := make([]string, len(preds))
	for i := range names {
		names[i] = fmt.Sprintf("Index_%d", i+1)
	}

	out := &models.IndexPrediction{
		Indices:    preds,
		IndexNames: names,
		Confidence: Confidence(preds),
		Timestamp:  extractTimestamp(t),
	}
	if p.metrics != nil {
		p.metrics.RecordPrediction(out.Confidence)
		p.metrics.RecordLatency("predict", time.Since(start).Seconds())
	}
	return out, nil
}

// PredictNext obtains a feature table from the upstream provider and
// predicts from it, merging in the requested symbols and checkpoint path
// for traceability.
func (p *Predictor) PredictNext(ctx context.Context, symbols []string, provider TableProvider) (*models.IndexPrediction, error) {
	t, err := provider.FeatureTable(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("feature table: %w", err)
	}
	if t == nil || t.Len() == 0 {
		return nil, &errs.NoDataError{Symbols: symbols}
	}

	out, err := p.PredictFromTable(t)
	if err != nil {
		return nil, err
	}
	if len(symbols) > 0 {
		out.Symbols = symbols
	} else {
		out.Symbols = distinct(t.Symbols)
	}
	out.ModelPath = p.modelPath
	return out, nil
}

// ModelInfo exposes serving metadata, including whether trained weights
// back the model.
func (p *Predictor) ModelInfo() models.ModelInfo {
	cfg := p.net.Cfg()
	return models.ModelInfo{
		ModelPath:     p.modelPath,
		Device:        "cpu",
		Architecture:  cfg.Architecture,
		InputFeatures: cfg.InputFeatures,
		HiddenSize:    cfg.HiddenSize,
		NumLayers:     cfg.NumLayers,
		OutputSize:    cfg.OutputSize,
		ModelExists:   p.exists,
	}
}

// Confidence maps prediction dispersion to [0,1]: 1/(1+variance). A
// constant vector yields exactly 1.0. Heuristic proxy, not a calibrated
// probability.
func Confidence(preds []float64) float64 {
	if len(preds) == 0 {
		return 0
	}
	v := stat.PopVariance(preds, nil)
	c := 1 / (1 + v)
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// extractTimestamp prefers the table's explicit time axis; no resolvable
// timestamp yields nil rather than a fabricated value.
func extractTimestamp(t *models.Table) *string {
	if len(t.Times) == 0 {
		return nil
	}
	last := t.Times[len(t.Times)-1]
	if last.IsZero() {
		return nil
	}
	s := last.Format(time.RFC3339)
	return &s
}

func distinct(xs []string) []string {
	seen := make(map[string]bool, len(xs))
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}
