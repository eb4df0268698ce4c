package model

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// attention is multi-head scaled dot-product self-attention over the full
// encoded sequence (query = key = value = encoder outputs). It re-weights
// timesteps by mutual relevance; the output keeps the encoder shape.
type attention struct {
	hidden  int
	heads   int
	dk      int
	dropout float64

	wq, wk, wv, wo *Param
	bq, bk, bv, bo *Param
}

func newAttention(prefix string, hidden, heads int, dropout float64, rng *rand.Rand) *attention {
	if hidden%heads != 0 {
		panic(fmt.Sprintf("hidden size %d not divisible by %d heads", hidden, heads))
	}
	bound := 1 / math.Sqrt(float64(hidden))
	return &attention{
		hidden:  hidden,
		heads:   heads,
		dk:      hidden / heads,
		dropout: dropout,
		wq:      newParam(prefix+".wq", hidden, hidden, bound, rng),
		wk:      newParam(prefix+".wk", hidden, hidden, bound, rng),
		wv:      newParam(prefix+".wv", hidden, hidden, bound, rng),
		wo:      newParam(prefix+".wo", hidden, hidden, bound, rng),
		bq:      constParam(prefix+".bq", 1, hidden, 0),
		bk:      constParam(prefix+".bk", 1, hidden, 0),
		bv:      constParam(prefix+".bv", 1, hidden, 0),
		bo:      constParam(prefix+".bo", 1, hidden, 0),
	}
}

func (a *attention) params() []*Param {
	return []*Param{a.wq, a.wk, a.wv, a.wo, a.bq, a.bk, a.bv, a.bo}
}

// attnCache stores per-sample intermediates for the backward pass.
type attnCache struct {
	x      []*mat.Dense   // T×H per sample
	q      []*mat.Dense   // T×H
	k      []*mat.Dense   // T×H
	v      []*mat.Dense   // T×H
	soft   [][]*mat.Dense // per sample, per head: T×T softmax weights
	mask   [][]*mat.Dense // inverted-dropout masks on weights, nil in eval
	concat []*mat.Dense   // T×H pre-output-projection
}

// forward takes a time-major sequence (T slices of batch×H) and returns
// the attended sequence in the same layout. Samples are processed one at
// a time since the weight matrices are shared.
func (a *attention) forward(xs []*mat.Dense, training bool, rng *rand.Rand) ([]*mat.Dense, *attnCache) {
	steps := len(xs)
	batch, _ := xs[0].Dims()
	scale := 1 / math.Sqrt(float64(a.dk))

	cache := &attnCache{
		x:      make([]*mat.Dense, batch),
		q:      make([]*mat.Dense, batch),
		k:      make([]*mat.Dense, batch),
		v:      make([]*mat.Dense, batch),
		soft:   make([][]*mat.Dense, batch),
		mask:   make([][]*mat.Dense, batch),
		concat: make([]*mat.Dense, batch),
	}
	ys := make([]*mat.Dense, steps)
	for t := range ys {
		ys[t] = mat.NewDense(batch, a.hidden, nil)
	}

	for b := 0; b < batch; b++ {
		x := timeMajorSample(xs, b)
		var q, k, v mat.Dense
		q.Mul(x, a.wq.W)
		k.Mul(x, a.wk.W)
		v.Mul(x, a.wv.W)
		qb := addBiasRow(&q, a.bq.W)
		kb := addBiasRow(&k, a.bk.W)
		vb := addBiasRow(&v, a.bv.W)

		concat := mat.NewDense(steps, a.hidden, nil)
		soft := make([]*mat.Dense, a.heads)
		masks := make([]*mat.Dense, a.heads)
		for h := 0; h < a.heads; h++ {
			qh := sliceCols(qb, h*a.dk, (h+1)*a.dk)
			kh := sliceCols(kb, h*a.dk, (h+1)*a.dk)
			vh := sliceCols(vb, h*a.dk, (h+1)*a.dk)

			var scores mat.Dense
			scores.Mul(qh, kh.T())
			scores.Scale(scale, &scores)
			weights := softmaxRows(&scores)
			soft[h] = weights

			applied := weights
			if training && a.dropout > 0 {
				masks[h] = dropoutMask(steps, steps, a.dropout, rng)
				applied = mulElem(weights, masks[h])
			}

			var out mat.Dense
			out.Mul(applied, vh)
			for i := 0; i < steps; i++ {
				for j := 0; j < a.dk; j++ {
					concat.Set(i, h*a.dk+j, out.At(i, j))
				}
			}
		}

		var proj mat.Dense
		proj.Mul(concat, a.wo.W)
		y := addBiasRow(&proj, a.bo.W)
		for t := 0; t < steps; t++ {
			for j := 0; j < a.hidden; j++ {
				ys[t].Set(b, j, y.At(t, j))
			}
		}

		cache.x[b] = x
		cache.q[b] = qb
		cache.k[b] = kb
		cache.v[b] = vb
		cache.soft[b] = soft
		cache.mask[b] = masks
		cache.concat[b] = concat
	}
	return ys, cache
}

// backward consumes time-major output gradients and returns time-major
// input gradients. Parameter gradients accumulate across samples.
func (a *attention) backward(cache *attnCache, dys []*mat.Dense) []*mat.Dense {
	steps := len(dys)
	batch, _ := dys[0].Dims()
	scale := 1 / math.Sqrt(float64(a.dk))

	dxs := make([]*mat.Dense, steps)
	for t := range dxs {
		dxs[t] = mat.NewDense(batch, a.hidden, nil)
	}

	for b := 0; b < batch; b++ {
		dy := timeMajorSample(dys, b)

		var dConcat mat.Dense
		dConcat.Mul(dy, a.wo.W.T())
		var dwo mat.Dense
		dwo.Mul(cache.concat[b].T(), dy)
		a.wo.Grad.Add(a.wo.Grad, &dwo)
		colSums(a.bo.Grad, dy)

		dq := mat.NewDense(steps, a.hidden, nil)
		dk := mat.NewDense(steps, a.hidden, nil)
		dv := mat.NewDense(steps, a.hidden, nil)

		for h := 0; h < a.heads; h++ {
			dOut := sliceCols(&dConcat, h*a.dk, (h+1)*a.dk)
			qh := sliceCols(cache.q[b], h*a.dk, (h+1)*a.dk)
			kh := sliceCols(cache.k[b], h*a.dk, (h+1)*a.dk)
			vh := sliceCols(cache.v[b], h*a.dk, (h+1)*a.dk)
			weights := cache.soft[b][h]

			applied := weights
			if m := cache.mask[b][h]; m != nil {
				applied = mulElem(weights, m)
			}

			var dApplied mat.Dense
			dApplied.Mul(dOut, vh.T())
			var dvh mat.Dense
			dvh.Mul(applied.T(), dOut)

			dWeights := &dApplied
			if m := cache.mask[b][h]; m != nil {
				dWeights = mulElem(&dApplied, m)
			}
			dScores := softmaxBackwardRows(weights, dWeights)
			dScores.Scale(scale, dScores)

			var dqh, dkh mat.Dense
			dqh.Mul(dScores, kh)
			dkh.Mul(dScores.T(), qh)

			setColsAdd(dq, h*a.dk, &dqh)
			setColsAdd(dk, h*a.dk, &dkh)
			setColsAdd(dv, h*a.dk, &dvh)
		}

		accumulateProjection(a.wq, a.bq, cache.x[b], dq)
		accumulateProjection(a.wk, a.bk, cache.x[b], dk)
		accumulateProjection(a.wv, a.bv, cache.x[b], dv)

		var dx1, dx2, dx3 mat.Dense
		dx1.Mul(dq, a.wq.W.T())
		dx2.Mul(dk, a.wk.W.T())
		dx3.Mul(dv, a.wv.W.T())
		dx1.Add(&dx1, &dx2)
		dx1.Add(&dx1, &dx3)

		for t := 0; t < steps; t++ {
			for j := 0; j < a.hidden; j++ {
				dxs[t].Set(b, j, dx1.At(t, j))
			}
		}
	}
	return dxs
}

// accumulateProjection adds input-projection gradients: dW += xᵀ·dProj,
// db += colsums(dProj).
func accumulateProjection(w, b *Param, x *mat.Dense, dProj *mat.Dense) {
	var dw mat.Dense
	dw.Mul(x.T(), dProj)
	w.Grad.Add(w.Grad, &dw)
	colSums(b.Grad, dProj)
}

// timeMajorSample extracts sample b from a time-major sequence as a T×H
// matrix.
func timeMajorSample(xs []*mat.Dense, b int) *mat.Dense {
	steps := len(xs)
	_, cols := xs[0].Dims()
	out := mat.NewDense(steps, cols, nil)
	for t := 0; t < steps; t++ {
		for j := 0; j < cols; j++ {
			out.Set(t, j, xs[t].At(b, j))
		}
	}
	return out
}

// setColsAdd adds src into dst starting at column offset.
func setColsAdd(dst *mat.Dense, offset int, src *mat.Dense) {
	r, c := src.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(i, offset+j, dst.At(i, offset+j)+src.At(i, j))
		}
	}
}

// dropoutMask builds an inverted-dropout mask: entries are 0 with
// probability p and 1/(1-p) otherwise.
func dropoutMask(rows, cols int, p float64, rng *rand.Rand) *mat.Dense {
	keep := 1 - p
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if rng.Float64() < keep {
				out.Set(i, j, 1/keep)
			}
		}
	}
	return out
}
