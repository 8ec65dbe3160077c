package pitchplunge

import (
	"math"

	"bitbucket.org/dtolpin/sonig/gauss"
	"gonum.org/v1/gonum/mat"
)

// Dimensions of the state and the input.
const (
	NState = 4
	NInput = 1
)

// Indices of the state variables.
const (
	H = iota
	Alpha
	HDot
	AlphaDot
)

// System is the equation of motion
//
//	M q̈ + C q̇ + K(α) q = F β,  q = [h, α].
type System struct {
	Params
	M, C, K, F *mat.Dense // K is the stiffness at α = 0
	minv       *mat.Dense

	dt     float64 // of the cached discretization
	ad, bd *mat.Dense
}

// NewSystem builds the structural and aerodynamic matrices.
func NewSystem(p Params) (*System, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var (
		b, s, a = p.B, p.Span, p.A
		rho, U  = p.Rho, p.U
		xa      = p.XAlpha()
		cla     = p.CLAlpha
		cma     = p.CMAlpha()
	)
	sys := &System{
		Params: p,
		M: mat.NewDense(2, 2, []float64{
			p.MT, p.MW * xa * b,
			p.MW * xa * b, p.IAlpha(),
		}),
		C: mat.NewDense(2, 2, []float64{
			p.CH + rho*U*b*s*cla, rho * U * b * b * s * cla * (0.5 - a),
			-rho * U * b * b * s * cma, p.CAlpha - rho*U*b*b*b*s*cma*(0.5-a),
		}),
		K: mat.NewDense(2, 2, []float64{
			p.KH, rho * U * U * b * s * cla,
			0, p.KAlpha[0] - rho*U*U*b*b*s*cma,
		}),
		F: mat.NewDense(2, 1, []float64{
			-rho * U * U * b * s * p.CLBeta,
			rho * U * U * b * b * s * p.CMBeta,
		}),
		minv: mat.NewDense(2, 2, nil),
	}
	if err := sys.minv.Inverse(sys.M); err != nil {
		return nil, err
	}
	return sys, nil
}

// Derivative is ẋ at state x and flap deflection u.
func (sys *System) Derivative(x []float64, u float64) []float64 {
	if len(x) != NState {
		panic(mat.ErrShape)
	}
	q := mat.NewVecDense(2, []float64{x[H], x[Alpha]})
	qd := mat.NewVecDense(2, []float64{x[HDot], x[AlphaDot]})

	// F u - C q̇ - K(α) q
	force := mat.NewVecDense(2, nil)
	force.ScaleVec(u, sys.F.ColView(0))
	var t mat.VecDense
	t.MulVec(sys.C, qd)
	force.SubVec(force, &t)
	t.MulVec(sys.K, q)
	force.SubVec(force, &t)
	if sys.Nonlinear {
		dk := sys.Stiffness(x[Alpha]) - sys.KAlpha[0]
		force.SetVec(1, force.AtVec(1)-dk*x[Alpha])
	}

	var qdd mat.VecDense
	qdd.MulVec(sys.minv, force)
	return []float64{x[HDot], x[AlphaDot], qdd.AtVec(0), qdd.AtVec(1)}
}

// Linearize returns the continuous-time matrices of ẋ = A x + B u at
// the origin.
func (sys *System) Linearize() (A, B *mat.Dense) {
	A = mat.NewDense(NState, NState, nil)
	B = mat.NewDense(NState, NInput, nil)
	A.Set(H, HDot, 1)
	A.Set(Alpha, AlphaDot, 1)

	var mk, mc, mf mat.Dense
	mk.Mul(sys.minv, sys.K)
	mc.Mul(sys.minv, sys.C)
	mf.Mul(sys.minv, sys.F)
	for i := 0; i != 2; i++ {
		for j := 0; j != 2; j++ {
			A.Set(2+i, j, -mk.At(i, j))
			A.Set(2+i, 2+j, -mc.At(i, j))
		}
		B.Set(2+i, 0, mf.At(i, 0))
	}
	return A, B
}

// Discretize returns the zero-order hold discretization
//
//	x' = Ad x + Bd u
//
// of the linearized system, through the exponential of the
// augmented matrix [[A, B], [0, 0]] dt.
func (sys *System) Discretize(dt float64) (Ad, Bd *mat.Dense) {
	A, B := sys.Linearize()
	n := NState + NInput
	aug := mat.NewDense(n, n, nil)
	aug.Slice(0, NState, 0, NState).(*mat.Dense).Scale(dt, A)
	aug.Slice(0, NState, NState, n).(*mat.Dense).Scale(dt, B)
	var e mat.Dense
	e.Exp(aug)
	Ad = mat.DenseCopyOf(e.Slice(0, NState, 0, NState))
	Bd = mat.DenseCopyOf(e.Slice(0, NState, NState, n))
	return Ad, Bd
}

// Step advances the state by dt with the input held. The linear
// system is stepped exactly, the nonlinear one by Runge-Kutta.
func (sys *System) Step(x []float64, u, dt float64) []float64 {
	if sys.Nonlinear {
		return sys.rk4(x, u, dt)
	}
	if sys.ad == nil || sys.dt != dt {
		sys.ad, sys.bd = sys.Discretize(dt)
		sys.dt = dt
	}
	next := mat.NewVecDense(NState, nil)
	next.MulVec(sys.ad, mat.NewVecDense(NState, append([]float64(nil), x...)))
	next.AddScaledVec(next, u, sys.bd.ColView(0))
	return next.RawVector().Data
}

func (sys *System) rk4(x []float64, u, dt float64) []float64 {
	shift := func(k []float64, h float64) []float64 {
		y := make([]float64, NState)
		for i := range y {
			y[i] = x[i] + h*k[i]
		}
		return y
	}
	k1 := sys.Derivative(x, u)
	k2 := sys.Derivative(shift(k1, dt/2), u)
	k3 := sys.Derivative(shift(k2, dt/2), u)
	k4 := sys.Derivative(shift(k3, dt), u)
	next := make([]float64, NState)
	for i := range next {
		next[i] = x[i] + dt/6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	return next
}

// Policy chooses the flap deflection at time t in state x.
type Policy func(t float64, x []float64) float64

// Hold is the policy keeping the flap at u.
func Hold(u float64) Policy {
	return func(float64, []float64) float64 { return u }
}

// Feedback is the linear policy u = -Kx.
func Feedback(K []float64) Policy {
	return func(_ float64, x []float64) float64 {
		u := 0.
		for i := range K {
			u -= K[i] * x[i]
		}
		return u
	}
}

// Trajectory is a simulated run: len(X) = len(T) = len(U) + 1.
type Trajectory struct {
	T []float64
	X [][]float64
	U []float64
}

// Simulate runs the system from x0 for the given number of steps.
func (sys *System) Simulate(x0 []float64, policy Policy, dt float64, steps int) *Trajectory {
	tr := &Trajectory{
		T: make([]float64, steps+1),
		X: make([][]float64, steps+1),
		U: make([]float64, steps),
	}
	tr.X[0] = append([]float64(nil), x0...)
	for i := 0; i != steps; i++ {
		t := float64(i) * dt
		tr.U[i] = policy(t, tr.X[i])
		tr.X[i+1] = sys.Step(tr.X[i], tr.U[i], dt)
		tr.T[i+1] = t + dt
	}
	return tr
}

// Propagate returns the belief over the next state of the linear
// system x' = Ad x + Bd u + w, w ~ N(0, Q); Q may be nil.
func Propagate(Ad, Bd mat.Matrix, b *gauss.Belief, u float64, Q mat.Symmetric) *gauss.Belief {
	n, _ := Ad.Dims()
	mean := mat.NewVecDense(n, nil)
	mean.MulVec(Ad, b.Mean)
	mean.AddScaledVec(mean, u, mat.NewVecDense(n, mat.Col(nil, 0, Bd)))

	var ac, aca mat.Dense
	ac.Mul(Ad, b.Cov)
	aca.Mul(&ac, Ad.T())
	if Q != nil {
		aca.Add(&aca, Q)
	}
	return &gauss.Belief{Mean: mean, Cov: gauss.Symmetrize(&aca)}
}

// SpectralRadius is the largest eigenvalue modulus of a.
func SpectralRadius(a mat.Matrix) float64 {
	var eig mat.Eigen
	if !eig.Factorize(a, mat.EigenNone) {
		return math.NaN()
	}
	r := 0.
	for _, v := range eig.Values(nil) {
		r = math.Max(r, math.Hypot(real(v), imag(v)))
	}
	return r
}
