// Package model defines the GP marginal likelihood as an infergo
// model over the log hyperparameters, and tunes the hyperparameters
// by maximizing it.
package model

import (
	"math"

	"bitbucket.org/dtolpin/infergo/model"
	"bitbucket.org/dtolpin/sonig/gauss"
	"bitbucket.org/dtolpin/sonig/kernel"
	"gonum.org/v1/gonum/mat"
)

// LML is the log marginal likelihood of the observations Y at X
// under a GP with the SE kernel and Gaussian output noise. The
// parameters are kernel.Hyper in log space, see Hyper.Theta.
type LML struct {
	X      [][]float64
	Y      []float64
	Priors model.Model // optional prior over the parameters
	Jitter gauss.Jitter
	grad   []float64
}

func (m *LML) Observe(x []float64) float64 {
	h := kernel.FromTheta(x)
	k := h.Kernel()
	nl, n := k.NDim(), len(m.X)
	var (
		s  = nl     // log signal std
		sn = nl + 1 // log noise std
	)

	if len(m.grad) != len(x) {
		m.grad = make([]float64, len(x))
	}
	for i := range m.grad {
		m.grad[i] = 0
	}

	K := k.Matrix(m.X)
	noise := h.NoiseVar()
	for i := 0; i != n; i++ {
		K.SetSym(i, i, K.At(i, i)+noise)
	}
	chol, _, err := gauss.Factorize(K, m.Jitter)
	if err != nil {
		return math.Inf(-1)
	}
	y := mat.NewVecDense(n, append([]float64(nil), m.Y...))
	alpha := mat.NewVecDense(n, nil)
	gauss.SolveVec(chol, alpha, y)
	ll := -0.5*mat.Dot(y, alpha) - 0.5*chol.LogDet() -
		0.5*float64(n)*math.Log(2*math.Pi)

	// dL/dθ = 1/2 tr((α αᵀ - K⁻¹) dK/dθ)
	Kinv := gauss.Inverse(chol)
	dk := make([]float64, nl+1)
	for i := 0; i != n; i++ {
		for j := i; j != n; j++ {
			w := alpha.AtVec(i)*alpha.AtVec(j) - Kinv.At(i, j)
			if i != j {
				w *= 2
			}
			k.HyperGrad(m.X[i], m.X[j], dk)
			for d := 0; d != nl; d++ {
				m.grad[d] += 0.5 * w * dk[d]
			}
			m.grad[s] += 0.5 * w * dk[nl]
			if i == j {
				m.grad[sn] += w * noise
			}
		}
	}

	if m.Priors != nil {
		ll += m.Priors.Observe(x)
		for i, g := range model.Gradient(m.Priors) {
			m.grad[i] += g
		}
	}
	return ll
}

func (m *LML) Gradient() []float64 {
	return m.grad
}
