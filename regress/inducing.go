// Package regress implements closed-form Gaussian process
// regression: the exact posterior, the FITC sparse approximation,
// and a bridge to gogp for one-step-ahead forecasting.
package regress

import (
	"errors"

	"bitbucket.org/dtolpin/sonig/gauss"
	"bitbucket.org/dtolpin/sonig/kernel"
	"gonum.org/v1/gonum/mat"
)

var ErrNotFitted = errors.New("model is not fitted")

// Inducing is a GP summarized by a belief over its values at a
// fixed set of inducing inputs. Values elsewhere follow the
// conditional of the prior given the inducing values.
type Inducing struct {
	Kernel *kernel.SE
	Xu     [][]float64
	Kuu    *mat.SymDense // prior covariance of the inducing values, with jitter
	Chol   *mat.Cholesky // factor of Kuu
	Fu     *gauss.Belief // belief over the inducing values
	Eps    float64       // jitter added to the diagonal of Kuu
}

// NewInducing returns the prior N(0, Kuu) over the inducing values.
func NewInducing(k *kernel.SE, Xu [][]float64, jitter gauss.Jitter) (*Inducing, error) {
	if len(Xu) == 0 {
		panic("regress: no inducing points")
	}
	for _, x := range Xu {
		if len(x) != k.NDim() {
			panic(mat.ErrShape)
		}
	}
	Kuu := k.Matrix(Xu)
	chol, eps, err := gauss.Factorize(Kuu, jitter)
	if err != nil {
		return nil, err
	}
	for i := range Xu {
		Kuu.SetSym(i, i, Kuu.At(i, i)+eps)
	}
	s := &Inducing{
		Kernel: k,
		Xu:     Xu,
		Kuu:    Kuu,
		Chol:   chol,
		Eps:    eps,
	}
	s.Reset()
	return s, nil
}

// Reset restores the prior belief.
func (s *Inducing) Reset() {
	s.Fu = gauss.NewBelief(make([]float64, len(s.Xu)), s.Kuu)
}

// M is the number of inducing points.
func (s *Inducing) M() int {
	return len(s.Xu)
}

// Weights returns ku = k(Xu, x) and a = Kuu⁻¹ ku, so that the prior
// conditional mean at x is aᵀ fu.
func (s *Inducing) Weights(x []float64) (ku, a *mat.VecDense) {
	ku = s.Kernel.Vec(s.Xu, x)
	a = mat.NewVecDense(s.M(), nil)
	gauss.SolveVec(s.Chol, a, ku)
	return ku, a
}

// Predict returns the belief over the latent function values at
// the points of X, with the full covariance
//
//	Kxx - Kxu Kuu⁻¹ Kux + Kxu Kuu⁻¹ Σu Kuu⁻¹ Kux.
func (s *Inducing) Predict(X [][]float64) *gauss.Belief {
	kux := s.Kernel.Cross(s.Xu, X)
	var w mat.Dense // Kuu⁻¹ Kux
	gauss.Solve(s.Chol, &w, kux)

	mean := mat.NewVecDense(len(X), nil)
	mean.MulVec(w.T(), s.Fu.Mean)

	var q, sw, wsw mat.Dense
	q.Mul(kux.T(), &w)
	sw.Mul(s.Fu.Cov, &w)
	wsw.Mul(w.T(), &sw)
	cov := mat.DenseCopyOf(s.Kernel.Matrix(X))
	cov.Sub(cov, &q)
	cov.Add(cov, &wsw)

	return &gauss.Belief{Mean: mean, Cov: gauss.Symmetrize(cov)}
}
