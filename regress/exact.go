package regress

import (
	"math"

	"bitbucket.org/dtolpin/sonig/gauss"
	"bitbucket.org/dtolpin/sonig/kernel"
	"gonum.org/v1/gonum/mat"
)

// Exact is GP regression with the closed-form posterior.
type Exact struct {
	Kernel   *kernel.SE
	NoiseVar float64
	Jitter   gauss.Jitter

	X     [][]float64
	Y     []float64
	chol  *mat.Cholesky
	alpha *mat.VecDense
	eps   float64
}

// NewExact returns an unfitted model.
func NewExact(k *kernel.SE, noiseVar float64) *Exact {
	return &Exact{
		Kernel:   k,
		NoiseVar: noiseVar,
	}
}

// Fit conditions the prior on the observations y at X.
func (e *Exact) Fit(X [][]float64, y []float64) error {
	if len(X) != len(y) {
		panic(mat.ErrShape)
	}
	K := e.Kernel.Matrix(X)
	for i := range X {
		K.SetSym(i, i, K.At(i, i)+e.NoiseVar)
	}
	chol, eps, err := gauss.Factorize(K, e.Jitter)
	if err != nil {
		return err
	}
	alpha := mat.NewVecDense(len(y), nil)
	gauss.SolveVec(chol, alpha, mat.NewVecDense(len(y), append([]float64(nil), y...)))

	e.X, e.Y = X, y
	e.chol, e.alpha, e.eps = chol, alpha, eps
	return nil
}

// Jitter actually added to the diagonal on the last Fit.
func (e *Exact) Eps() float64 {
	return e.eps
}

// Predict returns the posterior belief over the latent function
// values at the points of X.
func (e *Exact) Predict(X [][]float64) (*gauss.Belief, error) {
	if e.chol == nil {
		return nil, ErrNotFitted
	}
	kxs := e.Kernel.Cross(e.X, X)
	mean := mat.NewVecDense(len(X), nil)
	mean.MulVec(kxs.T(), e.alpha)

	var v, q mat.Dense
	gauss.Solve(e.chol, &v, kxs)
	q.Mul(kxs.T(), &v)
	cov := mat.DenseCopyOf(e.Kernel.Matrix(X))
	cov.Sub(cov, &q)
	return &gauss.Belief{Mean: mean, Cov: gauss.Symmetrize(cov)}, nil
}

// LogMarginal is the log marginal likelihood of the fitted data.
func (e *Exact) LogMarginal() (float64, error) {
	if e.chol == nil {
		return math.NaN(), ErrNotFitted
	}
	n := float64(len(e.Y))
	fit := mat.Dot(mat.NewVecDense(len(e.Y), append([]float64(nil), e.Y...)), e.alpha)
	return -0.5*fit - 0.5*e.chol.LogDet() - 0.5*n*math.Log(2*math.Pi), nil
}
