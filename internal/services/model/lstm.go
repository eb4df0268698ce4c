package model

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// lstmLayer is one recurrent layer. Weight layout packs the four gates
// column-wise in i, f, g, o order: wx is in×4H, wh is H×4H, bias is 1×4H.
type lstmLayer struct {
	inSize int
	hidden int
	wx     *Param
	wh     *Param
	bias   *Param
}

func newLSTMLayer(prefix string, inSize, hidden int, rng *rand.Rand) *lstmLayer {
	bound := 1 / math.Sqrt(float64(hidden))
	return &lstmLayer{
		inSize: inSize,
		hidden: hidden,
		wx:     newParam(fmt.Sprintf("%s.wx", prefix), inSize, 4*hidden, bound, rng),
		wh:     newParam(fmt.Sprintf("%s.wh", prefix), hidden, 4*hidden, bound, rng),
		bias:   newParam(fmt.Sprintf("%s.bias", prefix), 1, 4*hidden, bound, rng),
	}
}

func (l *lstmLayer) params() []*Param {
	return []*Param{l.wx, l.wh, l.bias}
}

// lstmCache holds per-timestep activations needed for BPTT.
type lstmCache struct {
	xs    []*mat.Dense
	hPrev []*mat.Dense
	cPrev []*mat.Dense
	gi    []*mat.Dense
	gf    []*mat.Dense
	gg    []*mat.Dense
	gout  []*mat.Dense
	cell  []*mat.Dense
	tanhC []*mat.Dense
}

// forward runs the layer over a time-major sequence (each element is
// batch×inSize) and returns per-timestep hidden outputs plus the final
// (hidden, cell) pair.
func (l *lstmLayer) forward(xs []*mat.Dense, h0, c0 *mat.Dense) ([]*mat.Dense, *mat.Dense, *mat.Dense, *lstmCache) {
	steps := len(xs)
	batch, _ := xs[0].Dims()
	h := h0
	c := c0
	if h == nil {
		h = mat.NewDense(batch, l.hidden, nil)
	}
	if c == nil {
		c = mat.NewDense(batch, l.hidden, nil)
	}

	cache := &lstmCache{
		xs:    xs,
		hPrev: make([]*mat.Dense, steps),
		cPrev: make([]*mat.Dense, steps),
		gi:    make([]*mat.Dense, steps),
		gf:    make([]*mat.Dense, steps),
		gg:    make([]*mat.Dense, steps),
		gout:  make([]*mat.Dense, steps),
		cell:  make([]*mat.Dense, steps),
		tanhC: make([]*mat.Dense, steps),
	}
	hs := make([]*mat.Dense, steps)

	for t := 0; t < steps; t++ {
		cache.hPrev[t] = h
		cache.cPrev[t] = c

		var zx, zh mat.Dense
		zx.Mul(xs[t], l.wx.W)
		zh.Mul(h, l.wh.W)
		zx.Add(&zx, &zh)
		z := addBiasRow(&zx, l.bias.W)

		gi := applyFunc(sliceCols(z, 0, l.hidden), sigmoid)
		gf := applyFunc(sliceCols(z, l.hidden, 2*l.hidden), sigmoid)
		gg := applyFunc(sliceCols(z, 2*l.hidden, 3*l.hidden), math.Tanh)
		gout := applyFunc(sliceCols(z, 3*l.hidden, 4*l.hidden), sigmoid)

		cNext := mulElem(gf, c)
		addInPlace(cNext, mulElem(gi, gg))
		tc := applyFunc(cNext, math.Tanh)
		hNext := mulElem(gout, tc)

		cache.gi[t] = gi
		cache.gf[t] = gf
		cache.gg[t] = gg
		cache.gout[t] = gout
		cache.cell[t] = cNext
		cache.tanhC[t] = tc

		h, c = hNext, cNext
		hs[t] = hNext
	}
	return hs, h, c, cache
}

// backward runs truncated-free BPTT given per-timestep output gradients.
// Parameter gradients accumulate into the layer's params; the per-timestep
// input gradients are returned for the layer below.
func (l *lstmLayer) backward(cache *lstmCache, dhs []*mat.Dense) []*mat.Dense {
	steps := len(cache.xs)
	dxs := make([]*mat.Dense, steps)

	var dhNext, dcNext *mat.Dense
	for t := steps - 1; t >= 0; t-- {
		dh := dhs[t]
		if dh == nil {
			dh = zerosLike(cache.tanhC[t])
		}
		if dhNext != nil {
			dh = addCopy(dh, dhNext)
		}

		gout := cache.gout[t]
		tc := cache.tanhC[t]

		do := mulElem(dh, tc)
		dtc := mulElem(dh, gout)

		// dc = dtc*(1-tanh(c)^2) + dcNext
		dc := zerosLike(tc)
		dc.Apply(func(i, j int, v float64) float64 {
			return dtc.At(i, j) * (1 - v*v)
		}, tc)
		if dcNext != nil {
			addInPlace(dc, dcNext)
		}

		gi, gf, gg := cache.gi[t], cache.gf[t], cache.gg[t]
		di := mulElem(dc, gg)
		df := mulElem(dc, cache.cPrev[t])
		dg := mulElem(dc, gi)
		dcNext = mulElem(dc, gf)

		dzi := gateBackSigmoid(di, gi)
		dzf := gateBackSigmoid(df, gf)
		dzg := gateBackTanh(dg, gg)
		dzo := gateBackSigmoid(do, gout)
		dz := concatCols(dzi, dzf, dzg, dzo)

		var dwx, dwh mat.Dense
		dwx.Mul(cache.xs[t].T(), dz)
		l.wx.Grad.Add(l.wx.Grad, &dwx)
		dwh.Mul(cache.hPrev[t].T(), dz)
		l.wh.Grad.Add(l.wh.Grad, &dwh)
		colSums(l.bias.Grad, dz)

		var dx, dhPrev mat.Dense
		dx.Mul(dz, l.wx.W.T())
		dxs[t] = &dx
		dhPrev.Mul(dz, l.wh.W.T())
		dhNext = &dhPrev
	}
	return dxs
}

// gateBackSigmoid maps the gradient on a sigmoid gate output back to its
// pre-activation: dz = dg ∘ g ∘ (1-g).
func gateBackSigmoid(dg, g *mat.Dense) *mat.Dense {
	out := zerosLike(g)
	out.Apply(func(i, j int, v float64) float64 {
		return dg.At(i, j) * v * (1 - v)
	}, g)
	return out
}

// gateBackTanh maps the gradient on a tanh gate output back to its
// pre-activation: dz = dg ∘ (1-g²).
func gateBackTanh(dg, g *mat.Dense) *mat.Dense {
	out := zerosLike(g)
	out.Apply(func(i, j int, v float64) float64 {
		return dg.At(i, j) * (1 - v*v)
	}, g)
	return out
}

// sliceCols copies columns [from, to) of m into a new matrix.
func sliceCols(m *mat.Dense, from, to int) *mat.Dense {
	r, _ := m.Dims()
	out := mat.NewDense(r, to-from, nil)
	for i := 0; i < r; i++ {
		for j := from; j < to; j++ {
			out.Set(i, j-from, m.At(i, j))
		}
	}
	return out
}

// concatCols joins matrices with equal row counts column-wise.
func concatCols(ms ...*mat.Dense) *mat.Dense {
	r, _ := ms[0].Dims()
	total := 0
	for _, m := range ms {
		_, c := m.Dims()
		total += c
	}
	out := mat.NewDense(r, total, nil)
	off := 0
	for _, m := range ms {
		_, c := m.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				out.Set(i, off+j, m.At(i, j))
			}
		}
		off += c
	}
	return out
}

// addCopy returns a+b without mutating either.
func addCopy(a, b *mat.Dense) *mat.Dense {
	out := zerosLike(a)
	out.Add(a, b)
	return out
}
