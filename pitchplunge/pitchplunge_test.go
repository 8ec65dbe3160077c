package pitchplunge

import (
	"errors"
	"math"
	"testing"

	"bitbucket.org/dtolpin/sonig/gauss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const dt = 0.01

func TestParams(t *testing.T) {
	p := Default()
	require.NoError(t, p.Validate())
	assert.InDelta(t, 0.3314, p.XAlpha(), 1e-4)
	assert.InDelta(t, 0.05580, p.IAlpha(), 1e-4)
	assert.Equal(t, p.KAlpha[0], p.Stiffness(0.1))
	p.Nonlinear = true
	assert.Equal(t, p.KAlpha[0], p.Stiffness(0))
	a := 0.1
	want := 6.833 + 9.967*a + 667.685*a*a + 26.569*a*a*a - 5087.931*a*a*a*a
	assert.InDelta(t, want, p.Stiffness(a), 1e-9)

	for _, mutate := range []func(*Params){
		func(p *Params) { p.B = 0 },
		func(p *Params) { p.MT = 1 },
		func(p *Params) { p.KAlpha = nil },
		func(p *Params) { p.U = -1 },
	} {
		q := Default()
		mutate(&q)
		assert.True(t, errors.Is(q.Validate(), ErrInvalidParams))
	}
}

func TestLinearize(t *testing.T) {
	sys, err := NewSystem(Default())
	require.NoError(t, err)
	A, B := sys.Linearize()
	for _, c := range []struct {
		x []float64
		u float64
	}{
		{[]float64{0.01, 0, 0, 0}, 0},
		{[]float64{0, 0.05, 0.1, -0.2}, 0.1},
		{[]float64{-0.02, 0.03, 0, 0.4}, -0.05},
	} {
		want := mat.NewVecDense(NState, nil)
		want.MulVec(A, mat.NewVecDense(NState, c.x))
		want.AddScaledVec(want, c.u, B.ColView(0))
		got := sys.Derivative(c.x, c.u)
		for i := range got {
			assert.InDelta(t, want.AtVec(i), got[i], 1e-9)
		}
	}
}

func TestDiscretize(t *testing.T) {
	p := Default()
	sys, err := NewSystem(p)
	require.NoError(t, err)
	Ad, Bd := sys.Discretize(dt)
	assert.Less(t, SpectralRadius(Ad), 1.)

	// Many small Runge-Kutta steps of the same linear system.
	x := []float64{0.01, 0.05, 0, 0}
	u := 0.02
	y := x
	for i := 0; i != 100; i++ {
		y = sys.rk4(y, u, dt/100)
	}
	next := sys.Step(x, u, dt)
	for i := range next {
		assert.InDelta(t, y[i], next[i], 1e-9)
	}
	zoh := mat.NewVecDense(NState, nil)
	zoh.MulVec(Ad, mat.NewVecDense(NState, x))
	zoh.AddScaledVec(zoh, u, Bd.ColView(0))
	for i := range next {
		assert.InDelta(t, zoh.AtVec(i), next[i], 1e-12)
	}
}

func TestSimulate(t *testing.T) {
	for _, c := range []struct {
		nonlinear bool
		alpha, h  float64 // bounds at the end of the run
	}{
		// Below flutter the linear oscillation decays.
		{false, 0.01, 0.001},
		// The softening pitch spring sustains a bounded limit cycle.
		{true, 0.3, 0.05},
	} {
		p := Default()
		p.Nonlinear = c.nonlinear
		sys, err := NewSystem(p)
		require.NoError(t, err)
		tr := sys.Simulate([]float64{0.01, 0.1, 0, 0}, Hold(0), dt, 1000)
		require.Len(t, tr.X, 1001)
		require.Len(t, tr.U, 1000)
		assert.InDelta(t, 10., tr.T[1000], 1e-9)
		last := tr.X[1000]
		assert.Less(t, math.Abs(last[Alpha]), c.alpha, "nonlinear: %v", c.nonlinear)
		assert.Less(t, math.Abs(last[H]), c.h, "nonlinear: %v", c.nonlinear)
	}
}

func TestLyapunov(t *testing.T) {
	sys, err := NewSystem(Default())
	require.NoError(t, err)
	Ad, _ := sys.Discretize(dt)
	Q := mat.NewSymDense(NState, nil)
	for i := 0; i != NState; i++ {
		Q.SetSym(i, i, 1)
	}
	P, err := Lyapunov(Ad, Q, 1e-14, 64)
	require.NoError(t, err)

	var pa, res mat.Dense
	pa.Mul(P, Ad)
	res.Mul(Ad.T(), &pa)
	res.Add(&res, Q)
	res.Sub(&res, P)
	assert.Less(t, mat.Norm(&res, math.Inf(1)), 1e-8*mat.Norm(P, math.Inf(1)))

	// The cost-to-go sums the stage costs along the trajectory.
	x := []float64{0.01, 0.05, 0, 0}
	total := 0.
	y := mat.NewVecDense(NState, append([]float64(nil), x...))
	for k := 0; k != 20000; k++ {
		total += mat.Dot(y, y)
		var next mat.VecDense
		next.MulVec(Ad, y)
		y = &next
	}
	assert.InDelta(t, total, Value(P, x), 1e-6*total)

	// An unstable matrix does not converge.
	unstable := mat.NewDense(1, 1, []float64{1.1})
	_, err = Lyapunov(unstable, mat.NewSymDense(1, []float64{1}), 1e-12, 10)
	assert.True(t, errors.Is(err, ErrNotConverged))
}

func TestPropagate(t *testing.T) {
	sys, err := NewSystem(Default())
	require.NoError(t, err)
	Ad, Bd := sys.Discretize(dt)
	x := []float64{0.01, 0.05, 0, 0}

	b := Propagate(Ad, Bd, gauss.Point(x), 0.1, nil)
	assert.True(t, b.IsPoint())
	want := sys.Step(x, 0.1, dt)
	for i := range want {
		assert.InDelta(t, want[i], b.Mean.AtVec(i), 1e-12)
	}

	Q := mat.NewSymDense(NState, nil)
	for i := 0; i != NState; i++ {
		Q.SetSym(i, i, 1e-6)
	}
	b = gauss.Point(x)
	for k := 0; k != 50; k++ {
		b = Propagate(Ad, Bd, b, 0, Q)
	}
	require.NoError(t, b.Validate(1e-9))
	assert.Greater(t, b.Var(H), 0.)
}
