package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Param is one learnable weight matrix with its accumulated gradient.
// Bias vectors are stored as 1×n matrices.
type Param struct {
	Name string
	W    *mat.Dense
	Grad *mat.Dense
}

// newParam creates a parameter with uniform(-bound, bound) initialization.
func newParam(name string, rows, cols int, bound float64, rng *rand.Rand) *Param {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * bound
	}
	return &Param{
		Name: name,
		W:    mat.NewDense(rows, cols, data),
		Grad: mat.NewDense(rows, cols, nil),
	}
}

// constParam creates a parameter filled with a constant value.
func constParam(name string, rows, cols int, value float64) *Param {
	p := &Param{
		Name: name,
		W:    mat.NewDense(rows, cols, nil),
		Grad: mat.NewDense(rows, cols, nil),
	}
	if value != 0 {
		p.W.Apply(func(_, _ int, _ float64) float64 { return value }, p.W)
	}
	return p
}

// ZeroGrad resets the accumulated gradient.
func (p *Param) ZeroGrad() {
	p.Grad.Zero()
}

// ClipGradNorm rescales all gradients so their global L2 norm does not
// exceed maxNorm. Returns the pre-clip norm.
func ClipGradNorm(params []*Param, maxNorm float64) float64 {
	total := 0.0
	for _, p := range params {
		data := p.Grad.RawMatrix().Data
		for _, v := range data {
			total += v * v
		}
	}
	norm := math.Sqrt(total)
	if norm > maxNorm && norm > 0 {
		scale := maxNorm / norm
		for _, p := range params {
			p.Grad.Scale(scale, p.Grad)
		}
	}
	return norm
}
