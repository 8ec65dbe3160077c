package kernel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	dx  = 1e-6
	eps = 1e-5
)

func TestCov(t *testing.T) {
	k := NewSE([]float64{1, 2}, 3)
	for i, c := range []struct {
		a, b []float64
		cov  float64
	}{
		{[]float64{0, 0}, []float64{0, 0}, 9},
		{[]float64{1, 0}, []float64{0, 0}, 9 * math.Exp(-0.5)},
		{[]float64{0, 2}, []float64{0, 0}, 9 * math.Exp(-0.5)},
		{[]float64{1, 2}, []float64{0, 0}, 9 * math.Exp(-1)},
	} {
		assert.InDelta(t, c.cov, k.Cov(c.a, c.b), 1e-12, "case %d", i)
		assert.InDelta(t, c.cov, k.Cov(c.b, c.a), 1e-12, "case %d symmetric", i)
	}
}

func TestMatrix(t *testing.T) {
	k := NewSE([]float64{0.7}, 1.3)
	X := [][]float64{{0}, {0.5}, {-1}}
	K := k.Matrix(X)
	C := k.Cross(X, X)
	for i := range X {
		for j := range X {
			assert.InDelta(t, C.At(i, j), K.At(i, j), 1e-12)
		}
	}
	v := k.Vec(X, []float64{0.2})
	for i := range X {
		assert.InDelta(t, k.Cov(X[i], []float64{0.2}), v.AtVec(i), 1e-12)
	}
}

func TestInputGrad(t *testing.T) {
	k := NewSE([]float64{0.5, 1.5, 2}, 0.8)
	for i, c := range []struct {
		a, b []float64
	}{
		{[]float64{0, 0, 0}, []float64{0, 0, 0}},
		{[]float64{0.3, -0.2, 1}, []float64{0, 0.1, 0.5}},
		{[]float64{-1, 2, 0.5}, []float64{0.4, 1, -0.5}},
	} {
		grad := k.InputGrad(c.a, c.b, nil)
		c0 := k.Cov(c.a, c.b)
		for j := range c.a {
			a0 := c.a[j]
			c.a[j] += dx
			dcda := (k.Cov(c.a, c.b) - c0) / dx
			c.a[j] = a0
			assert.InDelta(t, dcda, grad[j], eps,
				"%d: dk/da%d mismatch", i, j)
		}
	}
}

func TestHyperGrad(t *testing.T) {
	h := Hyper{LengthScales: []float64{0.5, 1.5}, SignalStd: 0.8, NoiseStd: 0.1}
	a, b := []float64{0.3, -0.2}, []float64{-0.1, 0.6}
	grad := h.Kernel().HyperGrad(a, b, nil)
	theta := h.Theta()
	c0 := h.Kernel().Cov(a, b)
	for j := 0; j != len(theta)-1; j++ {
		theta[j] += dx
		dcdt := (FromTheta(theta).Kernel().Cov(a, b) - c0) / dx
		theta[j] -= dx
		assert.InDelta(t, dcdt, grad[j], eps, "dk/dtheta%d mismatch", j)
	}
}

func TestTheta(t *testing.T) {
	h := Hyper{LengthScales: []float64{0.5, 1.5}, SignalStd: 0.8, NoiseStd: 0.1}
	require.NoError(t, h.Validate())
	assert.Equal(t, 4, h.NTheta())
	g := FromTheta(h.Theta())
	assert.InDeltaSlice(t, h.LengthScales, g.LengthScales, 1e-12)
	assert.InDelta(t, h.SignalStd, g.SignalStd, 1e-12)
	assert.InDelta(t, h.NoiseStd, g.NoiseStd, 1e-12)
	assert.InDelta(t, 0.01, g.NoiseVar(), 1e-12)

	assert.ErrorIs(t, Hyper{}.Validate(), ErrInvalidHyper)
	assert.ErrorIs(t, Hyper{LengthScales: []float64{0}, SignalStd: 1}.Validate(), ErrInvalidHyper)
	assert.ErrorIs(t, Hyper{LengthScales: []float64{1}, SignalStd: 1, NoiseStd: -1}.Validate(), ErrInvalidHyper)
}

func TestSimil(t *testing.T) {
	se := NewSE([]float64{0.5, 2}, 1.2)
	s := Simil(se)
	assert.Equal(t, 0, s.NTheta())
	x := []float64{0.1, 0.4, -0.3, 1}
	assert.InDelta(t, se.Cov(x[:2], x[2:]), s.Observe(x), 1e-12)
	grad := s.Gradient()
	require.Len(t, grad, 4)
	c0 := s.Observe(x)
	for j := range x {
		x0 := x[j]
		x[j] += dx
		dcdx := (se.Cov(x[:2], x[2:]) - c0) / dx
		x[j] = x0
		assert.InDelta(t, dcdx, grad[j], eps, "dk/dx%d mismatch", j)
	}

	n := Noise(0.04)
	assert.Equal(t, 0.04, n.Observe([]float64{1, 2}))
	assert.Equal(t, []float64{0, 0}, n.Gradient())
}
