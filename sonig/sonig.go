// Package sonig implements sequential Gaussian process regression
// with noisy inputs on a fixed set of inducing points. Observations
// are absorbed one at a time; the uncertainty of each input is
// propagated into the output through a first-order expansion of the
// posterior mean around the input mean.
package sonig

import (
	"errors"
	"fmt"
	"math"

	"bitbucket.org/dtolpin/sonig/gauss"
	"bitbucket.org/dtolpin/sonig/kernel"
	"bitbucket.org/dtolpin/sonig/regress"
	"gonum.org/v1/gonum/mat"
)

var ErrInvalidUpdate = errors.New("invalid update")

// DefaultTol is the tolerance for negative variances, relative to
// the signal variance.
const DefaultTol = 1e-9

// Model is the belief over the function values at the inducing
// points, updated in place by each observation.
type Model struct {
	NoiseVar float64 // output noise variance of the GP
	Tol      float64 // relative tolerance for negative variances

	sparse *regress.Inducing
	count  int
}

// New returns the prior model for the hyperparameters h on the
// inducing inputs Xu.
func New(h kernel.Hyper, Xu [][]float64, jitter gauss.Jitter) (*Model, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	s, err := regress.NewInducing(h.Kernel(), Xu, jitter)
	if err != nil {
		return nil, err
	}
	return &Model{
		NoiseVar: h.NoiseVar(),
		Tol:      DefaultTol,
		sparse:   s,
	}, nil
}

// Kernel is the covariance function.
func (m *Model) Kernel() *kernel.SE {
	return m.sparse.Kernel
}

// Points are the inducing inputs.
func (m *Model) Points() [][]float64 {
	return m.sparse.Xu
}

// Inducing returns a copy of the current belief over the function
// values at the inducing points.
func (m *Model) Inducing() *gauss.Belief {
	return m.sparse.Fu.Clone()
}

// Count is the number of observations absorbed since the last reset.
func (m *Model) Count() int {
	return m.count
}

// Reset restores the prior.
func (m *Model) Reset() {
	m.sparse.Reset()
	m.count = 0
}

// Result describes one update.
type Result struct {
	Prior         *gauss.Belief // function value at the input mean, before the update
	Posterior     *gauss.Belief // function value at the input mean, after the update
	Innovation    float64       // y - prior mean
	InnovationVar float64       // effective observation variance S
	Slope         []float64     // gradient of the posterior mean by the input
	Input         *gauss.Belief // posterior over the input
}

// local is the prediction at a single input mean, before the update.
type local struct {
	ku, a *mat.VecDense
	mean  float64
	vr    float64 // k(x,x) - aᵀku + aᵀΣu a
	slope []float64
}

func (m *Model) at(x []float64) local {
	s := m.sparse
	ku, a := s.Weights(x)
	var sa mat.VecDense
	sa.MulVec(s.Fu.Cov, a)
	l := local{
		ku:    ku,
		a:     a,
		mean:  mat.Dot(a, s.Fu.Mean),
		vr:    s.Kernel.Variance - mat.Dot(a, ku) + mat.Dot(a, &sa),
		slope: make([]float64, len(x)),
	}

	// ∇μ = Σ_i ∂k(x, u_i)/∂x β_i, β = Kuu⁻¹ μu.
	beta := mat.NewVecDense(s.M(), nil)
	gauss.SolveVec(s.Chol, beta, s.Fu.Mean)
	dk := make([]float64, len(x))
	for i, u := range s.Xu {
		s.Kernel.InputGrad(x, u, dk)
		b := beta.AtVec(i)
		for d := range dk {
			l.slope[d] += dk[d] * b
		}
	}
	return l
}

// quad is gᵀ Σ g.
func quad(cov mat.Symmetric, g []float64) float64 {
	v := mat.NewVecDense(len(g), g)
	return mat.Inner(v, cov, v)
}

// Update absorbs the observation of the function value at the
// input in, a Gaussian over the input space, as the one-dimensional
// Gaussian out. On failure the model is left unchanged and an error
// wrapping ErrInvalidUpdate is returned.
func (m *Model) Update(in, out *gauss.Belief) (*Result, error) {
	k := m.sparse.Kernel
	if in.Dim() != k.NDim() || out.Dim() != 1 {
		panic(mat.ErrShape)
	}
	tol := m.Tol * k.Variance
	x := in.MeanSlice()
	y, vy := out.Mean.AtVec(0), out.Var(0)
	if !finiteAll(x...) || !finiteAll(y, vy) {
		return nil, fmt.Errorf("%w: observation (%v, %v ± %v) is not finite",
			ErrInvalidUpdate, x, y, vy)
	}

	if vy < 0 {
		return nil, fmt.Errorf("%w: output variance %g at %v",
			ErrInvalidUpdate, vy, x)
	}
	for i := range x {
		if v := in.Var(i); !(v >= 0) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: input variance %g in dimension %d",
				ErrInvalidUpdate, v, i)
		}
	}

	l := m.at(x)
	if l.vr < -tol {
		return nil, fmt.Errorf("%w: prior variance %g at %v",
			ErrInvalidUpdate, l.vr, x)
	}
	l.vr = math.Max(l.vr, 0)
	vx := quad(in.Cov, l.slope)
	if vx < -tol {
		return nil, fmt.Errorf("%w: input covariance is not positive semidefinite, %g along the slope at %v",
			ErrInvalidUpdate, vx, x)
	}
	vx = math.Max(vx, 0)
	S := l.vr + m.NoiseVar + vy + vx
	if !(S > 0) || math.IsInf(S, 0) {
		return nil, fmt.Errorf("%w: observation variance %g at %v",
			ErrInvalidUpdate, S, x)
	}
	r := y - l.mean

	// c = Σu a; μu += c r/S; Σu -= c cᵀ/S.
	fu := m.sparse.Fu
	c := mat.NewVecDense(m.sparse.M(), nil)
	c.MulVec(fu.Cov, l.a)
	next := fu.Clone()
	next.Mean.AddScaledVec(next.Mean, r/S, c)
	next.Cov.SymRankOne(next.Cov, -1/S, c)
	for i := 0; i != next.Dim(); i++ {
		if !finiteAll(next.Mean.AtVec(i), next.Cov.At(i, i)) ||
			next.Cov.At(i, i) < -tol {
			return nil, fmt.Errorf("%w: inducing variance %g at %d",
				ErrInvalidUpdate, next.Cov.At(i, i), i)
		}
	}

	res := &Result{
		Prior: gauss.Diag([]float64{l.mean}, []float64{l.vr}),
		Posterior: gauss.Diag(
			[]float64{l.mean + l.vr*r/S},
			[]float64{math.Max(l.vr-l.vr*l.vr/S, 0)}),
		Innovation:    r,
		InnovationVar: S,
		Slope:         l.slope,
		Input:         inputPosterior(in, l.slope, r, S),
	}

	m.sparse.Fu = next
	m.count++
	return res, nil
}

// inputPosterior conditions the input on the observation through the
// linearized mean:
//
//	x̄ + Σx ∇μ r/S,  Σx - Σx ∇μ ∇μᵀ Σx/S.
func inputPosterior(in *gauss.Belief, slope []float64, r, S float64) *gauss.Belief {
	post := in.Clone()
	if in.IsPoint() {
		return post
	}
	g := mat.NewVecDense(len(slope), append([]float64(nil), slope...))
	var sg mat.VecDense
	sg.MulVec(in.Cov, g)
	post.Mean.AddScaledVec(post.Mean, r/S, &sg)
	post.Cov.SymRankOne(post.Cov, -1/S, &sg)
	return post
}

// Predict returns the belief over the function values at the points
// of X, with the full covariance.
func (m *Model) Predict(X [][]float64) *gauss.Belief {
	return m.sparse.Predict(X)
}

// PredictUncertain returns the one-dimensional belief over the
// function value at an uncertain input, with the input noise
// propagated through the linearized mean.
func (m *Model) PredictUncertain(in *gauss.Belief) *gauss.Belief {
	mean, vr, _ := m.predictUncertain(in)
	return gauss.Diag([]float64{mean}, []float64{vr})
}

func (m *Model) predictUncertain(in *gauss.Belief) (mean, vr float64, slope []float64) {
	if in.Dim() != m.sparse.Kernel.NDim() {
		panic(mat.ErrShape)
	}
	l := m.at(in.MeanSlice())
	return l.mean, math.Max(l.vr, 0) + quad(in.Cov, l.slope), l.slope
}

func (m *Model) snapshot() (*gauss.Belief, int) {
	return m.sparse.Fu.Clone(), m.count
}

func (m *Model) restore(fu *gauss.Belief, count int) {
	m.sparse.Fu, m.count = fu, count
}

func finiteAll(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
