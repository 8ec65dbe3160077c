// Package gauss holds Gaussian beliefs and the numerics shared by
// the regression models: jittered Cholesky factorization, seeded
// sampling and Gaussian conditioning.
package gauss

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrNotPositiveDefinite = errors.New("matrix is not positive definite")
	ErrInvalidBelief       = errors.New("invalid belief")
)

// Belief is a Gaussian distribution over a finite set of variables.
type Belief struct {
	Mean *mat.VecDense
	Cov  *mat.SymDense
}

// NewBelief copies mean and cov into a new belief. A nil cov is
// the zero covariance.
func NewBelief(mean []float64, cov mat.Symmetric) *Belief {
	n := len(mean)
	b := &Belief{
		Mean: mat.NewVecDense(n, append([]float64(nil), mean...)),
		Cov:  mat.NewSymDense(n, nil),
	}
	if cov != nil {
		if cov.SymmetricDim() != n {
			panic(mat.ErrShape)
		}
		b.Cov.CopySym(cov)
	}
	return b
}

// Point is a belief with all mass at x.
func Point(x []float64) *Belief {
	return NewBelief(x, nil)
}

// Diag is a belief with independent components.
func Diag(mean, variance []float64) *Belief {
	if len(mean) != len(variance) {
		panic(mat.ErrShape)
	}
	b := NewBelief(mean, nil)
	for i, v := range variance {
		b.Cov.SetSym(i, i, v)
	}
	return b
}

// Dim is the number of variables.
func (b *Belief) Dim() int {
	return b.Mean.Len()
}

// Clone returns a deep copy.
func (b *Belief) Clone() *Belief {
	return NewBelief(b.MeanSlice(), b.Cov)
}

// MeanSlice returns a copy of the mean.
func (b *Belief) MeanSlice() []float64 {
	m := make([]float64, b.Dim())
	for i := range m {
		m[i] = b.Mean.AtVec(i)
	}
	return m
}

// Var is the marginal variance of variable i.
func (b *Belief) Var(i int) float64 {
	return b.Cov.At(i, i)
}

// Std is the marginal standard deviation of variable i; tiny
// negative variances from round-off are reported as zero.
func (b *Belief) Std(i int) float64 {
	return math.Sqrt(math.Max(b.Var(i), 0))
}

// IsPoint is true when the covariance is identically zero.
func (b *Belief) IsPoint() bool {
	n := b.Dim()
	for i := 0; i != n; i++ {
		for j := i; j != n; j++ {
			if b.Cov.At(i, j) != 0 {
				return false
			}
		}
	}
	return true
}

// Validate checks that the mean and covariance are finite and that
// the covariance is positive semi-definite up to tol, relative to
// the largest variance.
func (b *Belief) Validate(tol float64) error {
	n := b.Dim()
	if b.Cov.SymmetricDim() != n {
		return fmt.Errorf("%w: mean has %d variables, covariance %d",
			ErrInvalidBelief, n, b.Cov.SymmetricDim())
	}
	scale := 1.
	for i := 0; i != n; i++ {
		if !finite(b.Mean.AtVec(i)) {
			return fmt.Errorf("%w: mean[%d] is %v", ErrInvalidBelief, i, b.Mean.AtVec(i))
		}
		for j := i; j != n; j++ {
			if !finite(b.Cov.At(i, j)) {
				return fmt.Errorf("%w: cov[%d,%d] is %v",
					ErrInvalidBelief, i, j, b.Cov.At(i, j))
			}
		}
		scale = math.Max(scale, math.Abs(b.Cov.At(i, i)))
	}
	if n == 0 {
		return nil
	}
	if lo := MinEigen(b.Cov); lo < -tol*scale {
		return fmt.Errorf("%w: smallest eigenvalue %g", ErrNotPositiveDefinite, lo)
	}
	return nil
}

// MinEigen is the smallest eigenvalue of a.
func MinEigen(a mat.Symmetric) float64 {
	var es mat.EigenSym
	if !es.Factorize(a, false) {
		return math.NaN()
	}
	lo := math.Inf(1)
	for _, v := range es.Values(nil) {
		lo = math.Min(lo, v)
	}
	return lo
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
