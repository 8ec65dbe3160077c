package regress

import (
	"math"

	"bitbucket.org/dtolpin/sonig/gauss"
	"bitbucket.org/dtolpin/sonig/kernel"
	"gonum.org/v1/gonum/mat"
)

// FITC is sparse GP regression with the fully independent training
// conditional: given the inducing values, the training outputs are
// independent with variance k(x,x) - q(x,x) + noise.
type FITC struct {
	*Inducing
	NoiseVar float64
	Jitter   gauss.Jitter
	fitted   bool
}

// NewFITC returns an unfitted model on the inducing inputs Xu.
func NewFITC(k *kernel.SE, noiseVar float64, Xu [][]float64, jitter gauss.Jitter) (*FITC, error) {
	s, err := NewInducing(k, Xu, jitter)
	if err != nil {
		return nil, err
	}
	return &FITC{
		Inducing: s,
		NoiseVar: noiseVar,
		Jitter:   jitter,
	}, nil
}

// Fit computes the posterior over the inducing values:
//
//	Σu = Kuu A⁻¹ Kuu,  μu = Kuu A⁻¹ Kun Λ⁻¹ y,
//	A = Kuu + Kun Λ⁻¹ Knu.
func (f *FITC) Fit(X [][]float64, y []float64) error {
	if len(X) != len(y) {
		panic(mat.ErrShape)
	}
	m, n := f.M(), len(X)
	kun := f.Kernel.Cross(f.Xu, X)
	var v mat.Dense // Kuu⁻¹ Kun
	gauss.Solve(f.Chol, &v, kun)

	// Λ⁻¹ as a vector.
	lambdaInv := make([]float64, n)
	for i := range X {
		q := 0.
		for j := 0; j != m; j++ {
			q += kun.At(j, i) * v.At(j, i)
		}
		lambdaInv[i] = 1 / (math.Max(f.Kernel.Variance-q, 0) + f.NoiseVar)
	}

	// Kun Λ⁻¹, scaled columns.
	scaled := mat.DenseCopyOf(kun)
	for i := range X {
		col := scaled.ColView(i).(*mat.VecDense)
		col.ScaleVec(lambdaInv[i], col)
	}

	var kk mat.Dense
	kk.Mul(scaled, kun.T())
	kk.Add(&kk, f.Kuu)
	A := gauss.Symmetrize(&kk)
	chol, _, err := gauss.Factorize(A, f.Jitter)
	if err != nil {
		return err
	}

	b := mat.NewVecDense(m, nil)
	b.MulVec(scaled, mat.NewVecDense(n, append([]float64(nil), y...)))
	t := mat.NewVecDense(m, nil)
	gauss.SolveVec(chol, t, b)
	mean := mat.NewVecDense(m, nil)
	mean.MulVec(f.Kuu, t)

	var ak, cov mat.Dense
	gauss.Solve(chol, &ak, f.Kuu)
	cov.Mul(f.Kuu, &ak)

	f.Fu = &gauss.Belief{Mean: mean, Cov: gauss.Symmetrize(&cov)}
	f.fitted = true
	return nil
}

// Posterior returns a copy of the belief over the inducing values.
func (f *FITC) Posterior() (*gauss.Belief, error) {
	if !f.fitted {
		return nil, ErrNotFitted
	}
	return f.Fu.Clone(), nil
}

// Predict returns the posterior belief over the latent function
// values at the points of X.
func (f *FITC) Predict(X [][]float64) (*gauss.Belief, error) {
	if !f.fitted {
		return nil, ErrNotFitted
	}
	return f.Inducing.Predict(X), nil
}
