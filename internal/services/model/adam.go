package model

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Adam implements the Adam optimizer with bias-corrected moment estimates.
type Adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64

	t int
	m map[string]*mat.Dense
	v map[string]*mat.Dense
}

// NewAdam creates an Adam optimizer with the usual defaults.
func NewAdam(lr float64) *Adam {
	return &Adam{
		lr:    lr,
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-8,
		m:     make(map[string]*mat.Dense),
		v:     make(map[string]*mat.Dense),
	}
}

// LR returns the current learning rate.
func (a *Adam) LR() float64 { return a.lr }

// SetLR overrides the learning rate (used by the plateau scheduler).
func (a *Adam) SetLR(lr float64) { a.lr = lr }

// Step applies one update over the accumulated gradients.
func (a *Adam) Step(params []*Param) {
	a.t++
	bc1 := 1 - math.Pow(a.beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.beta2, float64(a.t))

	for _, p := range params {
		r, c := p.W.Dims()
		m, ok := a.m[p.Name]
		if !ok {
			m = mat.NewDense(r, c, nil)
			a.m[p.Name] = m
		}
		v, ok := a.v[p.Name]
		if !ok {
			v = mat.NewDense(r, c, nil)
			a.v[p.Name] = v
		}

		g := p.Grad
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				gij := g.At(i, j)
				mij := a.beta1*m.At(i, j) + (1-a.beta1)*gij
				vij := a.beta2*v.At(i, j) + (1-a.beta2)*gij*gij
				m.Set(i, j, mij)
				v.Set(i, j, vij)
				mHat := mij / bc1
				vHat := vij / bc2
				p.W.Set(i, j, p.W.At(i, j)-a.lr*mHat/(math.Sqrt(vHat)+a.eps))
			}
		}
	}
}

// AdamState is the serializable optimizer state.
type AdamState struct {
	LR float64           `json:"lr"`
	T  int               `json:"t"`
	M  map[string]Tensor `json:"m"`
	V  map[string]Tensor `json:"v"`
}

// State captures the optimizer state for checkpointing.
func (a *Adam) State() AdamState {
	st := AdamState{LR: a.lr, T: a.t, M: make(map[string]Tensor), V: make(map[string]Tensor)}
	for name, m := range a.m {
		st.M[name] = tensorFrom(m)
	}
	for name, v := range a.v {
		st.V[name] = tensorFrom(v)
	}
	return st
}

// LoadState restores optimizer state from a checkpoint.
func (a *Adam) LoadState(st AdamState) {
	a.lr = st.LR
	a.t = st.T
	a.m = make(map[string]*mat.Dense, len(st.M))
	a.v = make(map[string]*mat.Dense, len(st.V))
	for name, t := range st.M {
		a.m[name] = t.dense()
	}
	for name, t := range st.V {
		a.v[name] = t.dense()
	}
}
