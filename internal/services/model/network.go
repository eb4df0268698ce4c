package model

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Config holds the architecture dimensions of the sequence model.
type Config struct {
	Architecture  string  `json:"architecture" yaml:"architecture"`
	InputFeatures int     `json:"input_features" yaml:"input_features"`
	HiddenSize    int     `json:"hidden_size" yaml:"hidden_size"`
	NumLayers     int     `json:"num_layers" yaml:"num_layers"`
	OutputSize    int     `json:"output_size" yaml:"output_size"`
	Dropout       float64 `json:"dropout" yaml:"dropout"`
	Heads         int     `json:"heads" yaml:"heads"`
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Heads <= 0 {
		out.Heads = 4
	}
	if out.Architecture == "" {
		out.Architecture = "LSTM+Attention"
	}
	return out
}

// Hidden is the recurrent (hidden, cell) state per layer. A nil Hidden
// zero-initializes per batch.
type Hidden struct {
	H []*mat.Dense
	C []*mat.Dense
}

// Network is the sequence model: a multi-layer LSTM encoder, multi-head
// self-attention over the full encoded sequence, last-timestep selection,
// batch normalization, and a two-layer regression head. It is expressed
// as an explicit graph of stages over an owned parameter set with a
// hand-rolled forward/backward pair.
type Network struct {
	cfg Config

	lstm []*lstmLayer
	attn *attention
	bn   *batchNorm
	fc1  *linear
	fc2  *linear

	rng *rand.Rand
}

// New builds a network with fresh (untrained) weights.
func New(cfg Config, rng *rand.Rand) *Network {
	cfg = (&cfg).withDefaults()
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	n := &Network{cfg: cfg, rng: rng}
	for l := 0; l < cfg.NumLayers; l++ {
		in := cfg.InputFeatures
		if l > 0 {
			in = cfg.HiddenSize
		}
		n.lstm = append(n.lstm, newLSTMLayer(fmt.Sprintf("lstm.%d", l), in, cfg.HiddenSize, rng))
	}
	n.attn = newAttention("attn", cfg.HiddenSize, cfg.Heads, cfg.Dropout, rng)
	n.bn = newBatchNorm("bn", cfg.HiddenSize)
	n.fc1 = newLinear("fc1", cfg.HiddenSize, cfg.HiddenSize/2, rng)
	n.fc2 = newLinear("fc2", cfg.HiddenSize/2, cfg.OutputSize, rng)
	return n
}

// Cfg returns the architecture configuration.
func (n *Network) Cfg() Config { return n.cfg }

// Params returns every learnable parameter in a stable order.
func (n *Network) Params() []*Param {
	var out []*Param
	for _, l := range n.lstm {
		out = append(out, l.params()...)
	}
	out = append(out, n.attn.params()...)
	out = append(out, n.bn.params()...)
	out = append(out, n.fc1.params()...)
	out = append(out, n.fc2.params()...)
	return out
}

// ZeroGrad resets every parameter gradient.
func (n *Network) ZeroGrad() {
	for _, p := range n.Params() {
		p.ZeroGrad()
	}
}

// forwardCache carries per-stage intermediates for Backward.
type forwardCache struct {
	lstmCaches []*lstmCache
	interMasks [][]*mat.Dense // inter-layer dropout masks, time-major
	attnCache  *attnCache
	steps      int
	last       *mat.Dense
	bnCache    *bnCache
	fc1In      *mat.Dense
	reluMask   *mat.Dense
	dropMask   *mat.Dense
	fc2In      *mat.Dense
}

// Forward runs the model over a time-major sequence (each element is
// batch×features). A nil hidden state is zero-initialized. Returns
// predictions (batch×output), the final recurrent state, and the cache
// needed by Backward.
func (n *Network) Forward(xs []*mat.Dense, hidden *Hidden, training bool) (*mat.Dense, *Hidden, *forwardCache) {
	cache := &forwardCache{steps: len(xs)}
	outHidden := &Hidden{
		H: make([]*mat.Dense, len(n.lstm)),
		C: make([]*mat.Dense, len(n.lstm)),
	}

	cur := xs
	for l, layer := range n.lstm {
		var h0, c0 *mat.Dense
		if hidden != nil {
			h0, c0 = hidden.H[l], hidden.C[l]
		}
		hs, hT, cT, lc := layer.forward(cur, h0, c0)
		cache.lstmCaches = append(cache.lstmCaches, lc)
		outHidden.H[l] = hT
		outHidden.C[l] = cT

		// inter-layer dropout, matching the recurrent stack convention:
		// applied between layers only, never after the top layer
		if l < len(n.lstm)-1 && training && n.cfg.Dropout > 0 {
			masks := make([]*mat.Dense, len(hs))
			dropped := make([]*mat.Dense, len(hs))
			for t := range hs {
				dropped[t], masks[t] = dropoutForward(hs[t], n.cfg.Dropout, true, n.rng)
			}
			cache.interMasks = append(cache.interMasks, masks)
			cur = dropped
		} else {
			cache.interMasks = append(cache.interMasks, nil)
			cur = hs
		}
	}

	attended, ac := n.attn.forward(cur, training, n.rng)
	cache.attnCache = ac

	last := attended[len(attended)-1]
	cache.last = last

	normed, bc := n.bn.forward(last, training)
	cache.bnCache = bc

	h1, fc1In := n.fc1.forward(normed)
	cache.fc1In = fc1In
	act, reluMask := reluForward(h1)
	cache.reluMask = reluMask
	dropped, dropMask := dropoutForward(act, n.cfg.Dropout, training, n.rng)
	cache.dropMask = dropMask
	preds, fc2In := n.fc2.forward(dropped)
	cache.fc2In = fc2In

	return preds, outHidden, cache
}

// Backward propagates the prediction gradient through every stage,
// accumulating parameter gradients.
func (n *Network) Backward(cache *forwardCache, dPreds *mat.Dense) {
	d := n.fc2.backward(cache.fc2In, dPreds)
	d = dropoutBackward(d, cache.dropMask)
	d = reluBackward(d, cache.reluMask)
	d = n.fc1.backward(cache.fc1In, d)
	d = n.bn.backward(cache.bnCache, d)

	// only the last timestep feeds the head; earlier timesteps receive
	// gradient through attention
	dAttended := make([]*mat.Dense, cache.steps)
	dAttended[cache.steps-1] = d

	dhs := n.attn.backward(cache.attnCache, fillNilZeros(dAttended, d))

	for l := len(n.lstm) - 1; l >= 0; l-- {
		if masks := cache.interMasks[l]; masks != nil {
			for t := range dhs {
				dhs[t] = dropoutBackward(dhs[t], masks[t])
			}
		}
		dhs = n.lstm[l].backward(cache.lstmCaches[l], dhs)
	}
}

// Predict runs inference in evaluation mode on a batch of windows
// (batch × steps × features), returning batch × output predictions.
func (n *Network) Predict(batch [][][]float64) [][]float64 {
	xs := BatchToInputs(batch)
	preds, _, _ := n.Forward(xs, nil, false)
	r, c := preds.Dims()
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		row := make([]float64, c)
		for j := 0; j < c; j++ {
			row[j] = preds.At(i, j)
		}
		out[i] = row
	}
	return out
}

// BatchToInputs converts batch-major windows to the time-major layout the
// network consumes.
func BatchToInputs(batch [][][]float64) []*mat.Dense {
	b := len(batch)
	steps := len(batch[0])
	features := len(batch[0][0])
	xs := make([]*mat.Dense, steps)
	for t := 0; t < steps; t++ {
		m := mat.NewDense(b, features, nil)
		for i := 0; i < b; i++ {
			for j := 0; j < features; j++ {
				m.Set(i, j, batch[i][t][j])
			}
		}
		xs[t] = m
	}
	return xs
}

// MSELoss returns the mean-squared-error loss and its gradient with
// respect to predictions.
func MSELoss(preds, targets *mat.Dense) (float64, *mat.Dense) {
	r, c := preds.Dims()
	grad := mat.NewDense(r, c, nil)
	total := 0.0
	nElem := float64(r * c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d := preds.At(i, j) - targets.At(i, j)
			total += d * d
			grad.Set(i, j, 2*d/nElem)
		}
	}
	return total / nElem, grad
}

// fillNilZeros replaces nil slots with zero matrices shaped like ref.
func fillNilZeros(ms []*mat.Dense, ref *mat.Dense) []*mat.Dense {
	for i, m := range ms {
		if m == nil {
			ms[i] = zerosLike(ref)
		}
	}
	return ms
}
