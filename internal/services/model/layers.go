package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// linear is a fully connected layer: y = x·W + b.
type linear struct {
	in, out int
	w       *Param
	b       *Param
}

func newLinear(prefix string, in, out int, rng *rand.Rand) *linear {
	bound := 1 / math.Sqrt(float64(in))
	return &linear{
		in:  in,
		out: out,
		w:   newParam(prefix+".w", in, out, bound, rng),
		b:   newParam(prefix+".b", 1, out, bound, rng),
	}
}

func (l *linear) params() []*Param { return []*Param{l.w, l.b} }

func (l *linear) forward(x *mat.Dense) (*mat.Dense, *mat.Dense) {
	var y mat.Dense
	y.Mul(x, l.w.W)
	return addBiasRow(&y, l.b.W), x
}

func (l *linear) backward(x, dy *mat.Dense) *mat.Dense {
	var dw mat.Dense
	dw.Mul(x.T(), dy)
	l.w.Grad.Add(l.w.Grad, &dw)
	colSums(l.b.Grad, dy)

	var dx mat.Dense
	dx.Mul(dy, l.w.W.T())
	return &dx
}

// reluForward returns max(0, x) and the activation mask.
func reluForward(x *mat.Dense) (*mat.Dense, *mat.Dense) {
	r, c := x.Dims()
	y := mat.NewDense(r, c, nil)
	mask := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := x.At(i, j); v > 0 {
				y.Set(i, j, v)
				mask.Set(i, j, 1)
			}
		}
	}
	return y, mask
}

func reluBackward(dy, mask *mat.Dense) *mat.Dense {
	return mulElem(dy, mask)
}

// dropoutForward applies inverted dropout in training mode; eval is identity.
func dropoutForward(x *mat.Dense, p float64, training bool, rng *rand.Rand) (*mat.Dense, *mat.Dense) {
	if !training || p <= 0 {
		return x, nil
	}
	r, c := x.Dims()
	mask := dropoutMask(r, c, p, rng)
	return mulElem(x, mask), mask
}

func dropoutBackward(dy, mask *mat.Dense) *mat.Dense {
	if mask == nil {
		return dy
	}
	return mulElem(dy, mask)
}

// batchNorm normalizes a batch×n activation over the batch dimension,
// tracking running statistics for evaluation mode.
type batchNorm struct {
	size     int
	gamma    *Param
	beta     *Param
	momentum float64
	eps      float64

	runningMean []float64
	runningVar  []float64
}

func newBatchNorm(prefix string, size int) *batchNorm {
	bn := &batchNorm{
		size:        size,
		gamma:       constParam(prefix+".gamma", 1, size, 1),
		beta:        constParam(prefix+".beta", 1, size, 0),
		momentum:    0.1,
		eps:         1e-5,
		runningMean: make([]float64, size),
		runningVar:  make([]float64, size),
	}
	for j := range bn.runningVar {
		bn.runningVar[j] = 1
	}
	return bn
}

func (bn *batchNorm) params() []*Param { return []*Param{bn.gamma, bn.beta} }

type bnCache struct {
	xHat *mat.Dense
	std  []float64
	xc   *mat.Dense // x - mean
}

func (bn *batchNorm) forward(x *mat.Dense, training bool) (*mat.Dense, *bnCache) {
	r, c := x.Dims()
	y := mat.NewDense(r, c, nil)

	if !training {
		for j := 0; j < c; j++ {
			std := math.Sqrt(bn.runningVar[j] + bn.eps)
			g, b := bn.gamma.W.At(0, j), bn.beta.W.At(0, j)
			for i := 0; i < r; i++ {
				y.Set(i, j, g*(x.At(i, j)-bn.runningMean[j])/std+b)
			}
		}
		return y, nil
	}

	mean := make([]float64, c)
	for j := 0; j < c; j++ {
		s := 0.0
		for i := 0; i < r; i++ {
			s += x.At(i, j)
		}
		mean[j] = s / float64(r)
	}
	variance := make([]float64, c)
	for j := 0; j < c; j++ {
		s := 0.0
		for i := 0; i < r; i++ {
			d := x.At(i, j) - mean[j]
			s += d * d
		}
		variance[j] = s / float64(r)
	}

	cache := &bnCache{
		xHat: mat.NewDense(r, c, nil),
		std:  make([]float64, c),
		xc:   mat.NewDense(r, c, nil),
	}
	for j := 0; j < c; j++ {
		cache.std[j] = math.Sqrt(variance[j] + bn.eps)
		g, b := bn.gamma.W.At(0, j), bn.beta.W.At(0, j)
		for i := 0; i < r; i++ {
			xc := x.At(i, j) - mean[j]
			xh := xc / cache.std[j]
			cache.xc.Set(i, j, xc)
			cache.xHat.Set(i, j, xh)
			y.Set(i, j, g*xh+b)
		}
	}

	// running stats use the unbiased variance estimate
	for j := 0; j < c; j++ {
		unbiased := variance[j]
		if r > 1 {
			unbiased = variance[j] * float64(r) / float64(r-1)
		}
		bn.runningMean[j] = (1-bn.momentum)*bn.runningMean[j] + bn.momentum*mean[j]
		bn.runningVar[j] = (1-bn.momentum)*bn.runningVar[j] + bn.momentum*unbiased
	}
	return y, cache
}

func (bn *batchNorm) backward(cache *bnCache, dy *mat.Dense) *mat.Dense {
	r, c := dy.Dims()
	dx := mat.NewDense(r, c, nil)
	n := float64(r)

	for j := 0; j < c; j++ {
		g := bn.gamma.W.At(0, j)
		std := cache.std[j]

		sumDy := 0.0
		sumDyXHat := 0.0
		for i := 0; i < r; i++ {
			sumDy += dy.At(i, j)
			sumDyXHat += dy.At(i, j) * cache.xHat.At(i, j)
		}
		bn.gamma.Grad.Set(0, j, bn.gamma.Grad.At(0, j)+sumDyXHat)
		bn.beta.Grad.Set(0, j, bn.beta.Grad.At(0, j)+sumDy)

		for i := 0; i < r; i++ {
			dxh := dy.At(i, j) * g
			v := (n*dxh - sumDy*g - cache.xHat.At(i, j)*sumDyXHat*g) / (n * std)
			dx.Set(i, j, v)
		}
	}
	return dx
}
