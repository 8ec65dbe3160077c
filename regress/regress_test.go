package regress

import (
	"math"
	"testing"

	"bitbucket.org/dtolpin/sonig/gauss"
	"bitbucket.org/dtolpin/sonig/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

var (
	hyper = kernel.Hyper{
		LengthScales: []float64{0.8},
		SignalStd:    1.1,
		NoiseStd:     0.1,
	}
	trainX = [][]float64{{-2}, {-1.3}, {-0.4}, {0.1}, {0.9}, {1.7}, {2.5}}
	trainY = []float64{-0.9, -0.8, -0.3, 0.2, 0.8, 1.0, 0.6}
	testX  = [][]float64{{-2.2}, {-0.7}, {0}, {1.2}, {3}}
)

func TestExactInterpolates(t *testing.T) {
	e := NewExact(hyper.Kernel(), 1e-8)
	require.NoError(t, e.Fit(trainX, trainY))
	post, err := e.Predict(trainX)
	require.NoError(t, err)
	for i := range trainY {
		assert.InDelta(t, trainY[i], post.Mean.AtVec(i), 1e-5)
		assert.Less(t, post.Var(i), 1e-6)
	}
}

func TestExactMatchesConditioning(t *testing.T) {
	k := hyper.Kernel()
	e := NewExact(k, hyper.NoiseVar())
	require.NoError(t, e.Fit(trainX, trainY))
	post, err := e.Predict(testX)
	require.NoError(t, err)
	require.NoError(t, post.Validate(1e-9))

	// The same posterior by conditioning the joint prior over the
	// training and test values on noisy observations of the former.
	all := append(append([][]float64{}, trainX...), testX...)
	n, s := len(trainX), len(testX)
	prior := gauss.NewBelief(make([]float64, n+s), k.Matrix(all))
	H := mat.NewDense(n, n+s, nil)
	R := mat.NewSymDense(n, nil)
	for i := 0; i != n; i++ {
		H.Set(i, i, 1)
		R.SetSym(i, i, hyper.NoiseVar())
	}
	joint, err := gauss.Condition(prior, H, R, trainY, gauss.Jitter{})
	require.NoError(t, err)
	for i := 0; i != s; i++ {
		assert.InDelta(t, joint.Mean.AtVec(n+i), post.Mean.AtVec(i), 1e-8)
		for j := 0; j != s; j++ {
			assert.InDelta(t, joint.Cov.At(n+i, n+j), post.Cov.At(i, j), 1e-8)
		}
	}
}

func TestLogMarginal(t *testing.T) {
	k := hyper.Kernel()
	e := NewExact(k, hyper.NoiseVar())
	_, err := e.LogMarginal()
	assert.ErrorIs(t, err, ErrNotFitted)
	_, err = e.Predict(testX)
	assert.ErrorIs(t, err, ErrNotFitted)

	require.NoError(t, e.Fit(trainX, trainY))
	lml, err := e.LogMarginal()
	require.NoError(t, err)

	K := k.Matrix(trainX)
	for i := range trainX {
		K.SetSym(i, i, K.At(i, i)+hyper.NoiseVar())
	}
	normal, ok := distmv.NewNormal(make([]float64, len(trainY)), K, nil)
	require.True(t, ok)
	assert.InDelta(t, normal.LogProb(trainY), lml, 1e-9)
}

func TestFITCAtTrainingInputsIsExact(t *testing.T) {
	k := hyper.Kernel()
	e := NewExact(k, hyper.NoiseVar())
	require.NoError(t, e.Fit(trainX, trainY))
	f, err := NewFITC(k, hyper.NoiseVar(), trainX, gauss.Jitter{})
	require.NoError(t, err)
	_, err = f.Predict(testX)
	assert.ErrorIs(t, err, ErrNotFitted)
	require.NoError(t, f.Fit(trainX, trainY))

	pe, err := e.Predict(testX)
	require.NoError(t, err)
	pf, err := f.Predict(testX)
	require.NoError(t, err)
	for i := range testX {
		assert.InDelta(t, pe.Mean.AtVec(i), pf.Mean.AtVec(i), 1e-6)
		for j := range testX {
			assert.InDelta(t, pe.Cov.At(i, j), pf.Cov.At(i, j), 1e-6)
		}
	}
}

func TestFITCSparse(t *testing.T) {
	k := hyper.Kernel()
	f, err := NewFITC(k, hyper.NoiseVar(), [][]float64{{-2}, {0}, {2}}, gauss.Jitter{})
	require.NoError(t, err)
	_, err = f.Posterior()
	assert.ErrorIs(t, err, ErrNotFitted)
	require.NoError(t, f.Fit(trainX, trainY))
	post, err := f.Predict(testX)
	require.NoError(t, err)
	require.NoError(t, post.Validate(1e-9))
	fu, err := f.Posterior()
	require.NoError(t, err)
	assert.Equal(t, 3, fu.Dim())
	require.NoError(t, fu.Validate(1e-9))

	// The mean is Q*n (Qnn + Λ)⁻¹ y with Q = K·u Kuu⁻¹ Ku· and
	// Λ = diag(Knn - Qnn) + σn².
	xu := [][]float64{{-2}, {0}, {2}}
	var kuuInv mat.Dense
	require.NoError(t, kuuInv.Inverse(k.Matrix(xu)))
	nystrom := func(A, B [][]float64) *mat.Dense {
		var q, ka mat.Dense
		ka.Mul(k.Cross(A, xu), &kuuInv)
		q.Mul(&ka, k.Cross(xu, B))
		return &q
	}
	C := nystrom(trainX, trainX)
	for i := range trainX {
		C.Set(i, i, k.Variance+hyper.NoiseVar())
	}
	var w mat.VecDense
	require.NoError(t, w.SolveVec(C, mat.NewVecDense(len(trainY), trainY)))
	var mean mat.VecDense
	mean.MulVec(nystrom(testX, trainX), &w)
	for i := range testX {
		assert.InDelta(t, mean.AtVec(i), post.Mean.AtVec(i), 1e-6)
		assert.GreaterOrEqual(t, post.Var(i), 0.)
		assert.LessOrEqual(t, post.Var(i), k.Variance+1e-9)
	}
}

func TestInducingPrior(t *testing.T) {
	k := hyper.Kernel()
	s, err := NewInducing(k, [][]float64{{-1}, {1}}, gauss.Jitter{})
	require.NoError(t, err)
	assert.Equal(t, 2, s.M())

	// Under the prior the predictive covariance is the kernel.
	post := s.Predict(testX)
	K := k.Matrix(testX)
	for i := range testX {
		assert.InDelta(t, 0, post.Mean.AtVec(i), 1e-12)
		for j := range testX {
			assert.InDelta(t, K.At(i, j), post.Cov.At(i, j), 1e-9)
		}
	}

	ku, a := s.Weights([]float64{1})
	assert.InDelta(t, k.Variance, ku.AtVec(1), 1e-12)
	assert.InDelta(t, 0, a.AtVec(0), 1e-9)
	assert.InDelta(t, 1, a.AtVec(1), 1e-9)
}

func TestGoGP(t *testing.T) {
	e := NewExact(hyper.Kernel(), hyper.NoiseVar())
	require.NoError(t, e.Fit(trainX, trainY))
	pe, err := e.Predict(testX)
	require.NoError(t, err)

	g := GoGP(hyper)
	mu, sigma, err := Forecast(g, trainX, trainY, testX)
	require.NoError(t, err)
	require.Len(t, mu, len(testX))
	require.Len(t, sigma, len(testX))
	for i := range testX {
		assert.InDelta(t, pe.Mean.AtVec(i), mu[i], 1e-6)
		assert.False(t, math.IsNaN(sigma[i]))
	}
}
