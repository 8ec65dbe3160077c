package gauss

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Jitter controls the regularization added to the diagonal when a
// factorization fails: Initial, then Initial*Factor, and so on, for
// at most MaxTries attempts after the unregularized one. Initial is
// relative to the mean diagonal of the matrix.
type Jitter struct {
	Initial  float64 `mapstructure:"initial" yaml:"initial"`
	Factor   float64 `mapstructure:"factor" yaml:"factor"`
	MaxTries int     `mapstructure:"max-tries" yaml:"max-tries"`
}

// DefaultJitter is used when a zero Jitter is passed.
var DefaultJitter = Jitter{
	Initial:  1e-10,
	Factor:   10,
	MaxTries: 8,
}

func (j Jitter) orDefault() Jitter {
	if j.MaxTries == 0 && j.Initial == 0 && j.Factor == 0 {
		return DefaultJitter
	}
	if j.Factor <= 1 {
		j.Factor = DefaultJitter.Factor
	}
	return j
}

// Factorize computes the Cholesky factorization of a. If a is not
// numerically positive definite, a growing multiple of the identity
// is added until the factorization succeeds. The absolute jitter
// that was added is returned along with the factor.
func Factorize(a mat.Symmetric, jitter Jitter) (*mat.Cholesky, float64, error) {
	chol := &mat.Cholesky{}
	if chol.Factorize(a) {
		return chol, 0, nil
	}

	jitter = jitter.orDefault()
	n := a.SymmetricDim()
	scale := 0.
	for i := 0; i != n; i++ {
		scale += math.Abs(a.At(i, i))
	}
	if n > 0 {
		scale /= float64(n)
	}
	if scale == 0 {
		scale = 1
	}

	b := mat.NewSymDense(n, nil)
	eps := jitter.Initial * scale
	for try := 0; try != jitter.MaxTries; try++ {
		b.CopySym(a)
		for i := 0; i != n; i++ {
			b.SetSym(i, i, b.At(i, i)+eps)
		}
		if chol.Factorize(b) {
			return chol, eps, nil
		}
		eps *= jitter.Factor
	}
	return nil, eps, fmt.Errorf("%w: no factorization after %d attempts, last jitter %g",
		ErrNotPositiveDefinite, jitter.MaxTries, eps/jitter.Factor)
}

// Symmetrize returns the symmetric part of a square matrix,
// discarding round-off asymmetry.
func Symmetrize(a mat.Matrix) *mat.SymDense {
	n, c := a.Dims()
	if n != c {
		panic(mat.ErrSquare)
	}
	s := mat.NewSymDense(n, nil)
	for i := 0; i != n; i++ {
		for j := i; j != n; j++ {
			s.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}
	return s
}

// Solve stores the solution X of A X = B in dst, where chol is the
// factor of A. The only error a factor reports on solving is
// ill-conditioning; the solution is still the best available and
// is kept.
func Solve(chol *mat.Cholesky, dst *mat.Dense, b mat.Matrix) {
	mustWellPosed(chol.SolveTo(dst, b))
}

// SolveVec is Solve for a vector right-hand side.
func SolveVec(chol *mat.Cholesky, dst *mat.VecDense, b mat.Vector) {
	mustWellPosed(chol.SolveVecTo(dst, b))
}

func mustWellPosed(err error) {
	var cond mat.Condition
	if err != nil && !errors.As(err, &cond) {
		panic(err)
	}
}

// Inverse returns the inverse of the factorized matrix.
func Inverse(chol *mat.Cholesky) *mat.SymDense {
	var inv mat.SymDense
	mustWellPosed(chol.InverseTo(&inv))
	return &inv
}
