package model

import (
	"errors"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"IndexPulse/internal/domain/errs"
)

func testConfig() Config {
	return Config{
		InputFeatures: 5,
		HiddenSize:    16,
		NumLayers:     2,
		OutputSize:    3,
		Dropout:       0.2,
		Heads:         4,
	}
}

func randomBatch(rng *rand.Rand, batch, steps, features int) [][][]float64 {
	out := make([][][]float64, batch)
	for i := range out {
		w := make([][]float64, steps)
		for t := range w {
			row := make([]float64, features)
			for j := range row {
				row[j] = rng.NormFloat64()
			}
			w[t] = row
		}
		out[i] = w
	}
	return out
}

func TestForwardShapes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	net := New(testConfig(), rng)

	xs := BatchToInputs(randomBatch(rng, 4, 12, 5))
	preds, hidden, cache := net.Forward(xs, nil, false)

	r, c := preds.Dims()
	if r != 4 || c != 3 {
		t.Fatalf("expected 4x3 predictions, got %dx%d", r, c)
	}
	if len(hidden.H) != 2 || len(hidden.C) != 2 {
		t.Fatalf("expected hidden state per layer")
	}
	hr, hc := hidden.H[0].Dims()
	if hr != 4 || hc != 16 {
		t.Fatalf("expected 4x16 hidden, got %dx%d", hr, hc)
	}
	if cache == nil || cache.steps != 12 {
		t.Fatalf("unexpected cache")
	}
}

func TestPredictDeterministicInEval(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	net := New(testConfig(), rng)
	batch := randomBatch(rng, 3, 10, 5)

	a := net.Predict(batch)
	b := net.Predict(batch)
	for i := range a {
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				t.Fatalf("eval-mode predictions differ at [%d][%d]", i, j)
			}
		}
	}
}

func TestMSELoss(t *testing.T) {
	preds := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	targets := mat.NewDense(2, 2, []float64{1, 2, 3, 2})
	loss, grad := MSELoss(preds, targets)
	if loss != 1 {
		t.Fatalf("expected loss 1, got %v", loss)
	}
	if grad.At(1, 1) != 1 {
		t.Fatalf("expected grad 2*2/4=1, got %v", grad.At(1, 1))
	}
	if grad.At(0, 0) != 0 {
		t.Fatalf("expected zero grad for matched element, got %v", grad.At(0, 0))
	}
}

func TestBackwardProducesFiniteGrads(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	net := New(testConfig(), rng)

	xs := BatchToInputs(randomBatch(rng, 4, 8, 5))
	targets := mat.NewDense(4, 3, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			targets.Set(i, j, rng.Float64())
		}
	}

	preds, _, cache := net.Forward(xs, nil, true)
	_, grad := MSELoss(preds, targets)
	net.ZeroGrad()
	net.Backward(cache, grad)

	nonZero := false
	for _, p := range net.Params() {
		for _, v := range p.Grad.RawMatrix().Data {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("non-finite gradient in %s", p.Name)
			}
			if v != 0 {
				nonZero = true
			}
		}
	}
	if !nonZero {
		t.Fatalf("backward produced no gradient at all")
	}
}

func TestStateDictRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	src := New(testConfig(), rng)
	dst := New(testConfig(), rand.New(rand.NewSource(5)))

	if err := dst.LoadStateDict(src.StateDict()); err != nil {
		t.Fatalf("load state: %v", err)
	}

	batch := randomBatch(rng, 2, 10, 5)
	a := src.Predict(batch)
	b := dst.Predict(batch)
	for i := range a {
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				t.Fatalf("loaded network diverges at [%d][%d]", i, j)
			}
		}
	}
}

func TestLoadStateDictShapeMismatch(t *testing.T) {
	src := New(testConfig(), rand.New(rand.NewSource(6)))
	cfg := testConfig()
	cfg.HiddenSize = 8
	dst := New(cfg, rand.New(rand.NewSource(7)))
	if err := dst.LoadStateDict(src.StateDict()); err == nil {
		t.Fatalf("expected shape mismatch error")
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	net := New(testConfig(), rng)
	opt := NewAdam(0.001)
	sched := NewPlateauScheduler(opt, 0.5, 5)

	path := filepath.Join(t.TempDir(), "ckpt.json")
	cp := &Checkpoint{
		Epoch:       7,
		Config:      net.Cfg(),
		Model:       net.StateDict(),
		Optimizer:   opt.State(),
		Scheduler:   sched.State(),
		TrainLosses: []float64{0.5, 0.4},
		ValLosses:   []float64{0.6, 0.5},
		BestLoss:    0.5,
	}
	if err := SaveCheckpoint(path, cp); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Epoch != 7 || got.BestLoss != 0.5 {
		t.Fatalf("unexpected checkpoint metadata %+v", got)
	}
	restored := New(got.Config, rand.New(rand.NewSource(9)))
	if err := restored.LoadStateDict(got.Model); err != nil {
		t.Fatalf("restore state: %v", err)
	}
}

func TestLoadCheckpointMissing(t *testing.T) {
	_, err := LoadCheckpoint(filepath.Join(t.TempDir(), "absent.json"))
	var notFound *errs.CheckpointNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected CheckpointNotFoundError, got %v", err)
	}
}

func TestClipGradNorm(t *testing.T) {
	p := &Param{Name: "p", W: mat.NewDense(1, 2, nil), Grad: mat.NewDense(1, 2, []float64{3, 4})}
	norm := ClipGradNorm([]*Param{p}, 1.0)
	if norm != 5 {
		t.Fatalf("expected pre-clip norm 5, got %v", norm)
	}
	total := 0.0
	for _, v := range p.Grad.RawMatrix().Data {
		total += v * v
	}
	if math.Abs(math.Sqrt(total)-1) > 1e-12 {
		t.Fatalf("expected clipped norm 1, got %v", math.Sqrt(total))
	}
}

func TestPlateauSchedulerHalvesLR(t *testing.T) {
	opt := NewAdam(0.01)
	sched := NewPlateauScheduler(opt, 0.5, 2)

	sched.Step(1.0) // new best
	sched.Step(1.1)
	sched.Step(1.2)
	if opt.LR() != 0.01 {
		t.Fatalf("lr reduced before patience exceeded: %v", opt.LR())
	}
	sched.Step(1.3)
	if opt.LR() != 0.005 {
		t.Fatalf("expected halved lr, got %v", opt.LR())
	}
}

func TestAdamStepMovesWeights(t *testing.T) {
	p := &Param{Name: "w", W: mat.NewDense(1, 1, []float64{1}), Grad: mat.NewDense(1, 1, []float64{0.5})}
	opt := NewAdam(0.1)
	opt.Step([]*Param{p})
	if p.W.At(0, 0) >= 1 {
		t.Fatalf("positive gradient must decrease the weight, got %v", p.W.At(0, 0))
	}

	st := opt.State()
	restored := NewAdam(0)
	restored.LoadState(st)
	if restored.LR() != 0.1 {
		t.Fatalf("optimizer state lost lr: %v", restored.LR())
	}
}
