package model

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// applyFunc returns f applied elementwise to a new matrix.
func applyFunc(m *mat.Dense, f func(float64) float64) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, _ int, v float64) float64 { return f(v) }, m)
	return out
}

// mulElem returns the elementwise product of a and b.
func mulElem(a, b *mat.Dense) *mat.Dense {
	r, c := a.Dims()
	out := mat.NewDense(r, c, nil)
	out.MulElem(a, b)
	return out
}

// addInPlace adds b into a.
func addInPlace(a, b *mat.Dense) {
	a.Add(a, b)
}

// addBiasRow adds a 1×n bias row to every row of m, returning a new matrix.
func addBiasRow(m *mat.Dense, bias *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, m.At(i, j)+bias.At(0, j))
		}
	}
	return out
}

// colSums accumulates column sums of m into the 1×n gradient dst.
func colSums(dst *mat.Dense, m *mat.Dense) {
	r, c := m.Dims()
	for j := 0; j < c; j++ {
		s := 0.0
		for i := 0; i < r; i++ {
			s += m.At(i, j)
		}
		dst.Set(0, j, dst.At(0, j)+s)
	}
}

// softmaxRows applies a row-wise numerically stable softmax.
func softmaxRows(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		maxV := math.Inf(-1)
		for j := 0; j < c; j++ {
			if v := m.At(i, j); v > maxV {
				maxV = v
			}
		}
		sum := 0.0
		for j := 0; j < c; j++ {
			e := math.Exp(m.At(i, j) - maxV)
			out.Set(i, j, e)
			sum += e
		}
		for j := 0; j < c; j++ {
			out.Set(i, j, out.At(i, j)/sum)
		}
	}
	return out
}

// softmaxBackwardRows computes dS for row-wise softmax output a and
// upstream gradient da: dS = a ∘ (da − rowsum(da ∘ a)).
func softmaxBackwardRows(a, da *mat.Dense) *mat.Dense {
	r, c := a.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		dot := 0.0
		for j := 0; j < c; j++ {
			dot += da.At(i, j) * a.At(i, j)
		}
		for j := 0; j < c; j++ {
			out.Set(i, j, a.At(i, j)*(da.At(i, j)-dot))
		}
	}
	return out
}

// zerosLike returns a zero matrix with m's dimensions.
func zerosLike(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	return mat.NewDense(r, c, nil)
}
