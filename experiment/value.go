package experiment

import (
	"fmt"
	"math"

	"bitbucket.org/dtolpin/sonig/figure"
	"bitbucket.org/dtolpin/sonig/gauss"
	"bitbucket.org/dtolpin/sonig/pitchplunge"
	"bitbucket.org/dtolpin/sonig/regress"
	"bitbucket.org/dtolpin/sonig/report"
	"bitbucket.org/dtolpin/sonig/sonig"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// value regresses the cost-to-go V(x) = xᵀPx of the uncontrolled
// linearized system, P solving the discrete Lyapunov equation of the
// stage cost, from noisy values at states drawn uniformly in a box.
func value(env *Env) error {
	cfg := env.Config
	vc := cfg.Value

	P, err := costToGo(cfg.System, cfg.Dt, vc.Cost)
	if err != nil {
		return err
	}

	box := Scaler{Mean: make([]float64, pitchplunge.NState), Std: vc.Box}
	h := vc.Hyper

	return env.trials(func(trial int, s *gauss.Sampler) error {
		X := sampleBox(s, vc.Box, vc.N)
		V := values(P, X)
		noise := vc.Noise * stat.StdDev(V, nil)
		y := make([]float64, len(V))
		for i := range V {
			y[i] = V[i] + noise*s.Normal()
		}
		out := FitScaler(column(y))
		Xz, yz := box.ApplyAll(X), col(out.ApplyAll(column(y)), 0)

		exact := regress.NewExact(h.Kernel(), h.NoiseVar())
		exact.Jitter = cfg.Jitter
		if err := exact.Fit(Xz, yz); err != nil {
			return fmt.Errorf("exact: %w", err)
		}

		Xu := make([][]float64, vc.Inducing)
		for i, j := range s.Rand().Perm(vc.N)[:vc.Inducing] {
			Xu[i] = Xz[j]
		}
		sparse, err := sonig.New(h, Xu, cfg.Jitter)
		if err != nil {
			return err
		}
		for i := range Xz {
			if _, err := sparse.Update(gauss.Point(Xz[i]), gauss.Point([]float64{yz[i]})); err != nil {
				return fmt.Errorf("sample %d: %w", i, err)
			}
		}

		quad, err := newQuadratic(Xz, yz, vc.PriorStd, h.NoiseVar(), cfg.Jitter)
		if err != nil {
			return fmt.Errorf("quadratic: %w", err)
		}

		predictors := []struct {
			name    string
			predict func(X [][]float64) (*gauss.Belief, error)
		}{
			{"exact", exact.Predict},
			{"sonig", func(X [][]float64) (*gauss.Belief, error) { return sparse.Predict(X), nil }},
			{"quadratic", quad.Predict},
		}

		// Accuracy on fresh states.
		Xt := sampleBox(s, vc.Box, vc.Test)
		Vt := values(P, Xt)
		base, err := report.NewBaseline(y)
		if err != nil {
			return err
		}
		for _, p := range predictors {
			b, err := p.predict(box.ApplyAll(Xt))
			if err != nil {
				return fmt.Errorf("%s: %w", p.name, err)
			}
			mean, variance := out.marginals(0, b, h.NoiseVar())
			if err := env.record(env.label(p.name, trial), Vt, mean, variance, base); err != nil {
				return err
			}
		}

		// The slice along the pitch axis.
		alpha := linspace(-vc.Box[pitchplunge.Alpha], vc.Box[pitchplunge.Alpha], vc.Grid)
		Xg := make([][]float64, len(alpha))
		for i, a := range alpha {
			Xg[i] = make([]float64, pitchplunge.NState)
			Xg[i][pitchplunge.Alpha] = a
		}
		Vg := values(P, Xg)
		tb := report.NewTable(env.label("pitch", trial), "alpha", "value",
			"exact", "exact_std", "sonig", "sonig_std", "quadratic", "quadratic_std")
		fits := make([]figure.Fit, len(predictors))
		for k, p := range predictors {
			b, err := p.predict(box.ApplyAll(Xg))
			if err != nil {
				return fmt.Errorf("%s: %w", p.name, err)
			}
			mean, variance := out.marginals(0, b, 0)
			fits[k] = figure.Fit{Label: p.name, X: alpha, Mean: mean, Std: sqrts(variance)}
		}
		for i := range alpha {
			row := []float64{alpha[i], Vg[i]}
			for _, f := range fits {
				row = append(row, f.Mean[i], f.Std[i])
			}
			tb.Append(row...)
		}
		env.Run.Attach(tb)

		env.Log.WithFields(log.Fields{
			"trial":    trial,
			"noise":    noise,
			"inducing": sparse.Count(),
		}).Debug("value models fitted")

		if trial != 0 {
			return nil
		}
		fig, err := figure.Regression("cost-to-go along the pitch axis", "α, rad", "V",
			figure.Curve{Label: "truth", X: alpha, Y: Vg},
			fits, figure.Curve{}, nil)
		if err != nil {
			return err
		}
		return fig.Save(env.figure("value"))
	})
}

// costToGo solves for the quadratic cost-to-go of the discretized
// linear system under the diagonal stage cost.
func costToGo(p pitchplunge.Params, dt float64, cost []float64) (*mat.SymDense, error) {
	linear := p
	linear.Nonlinear = false
	sys, err := pitchplunge.NewSystem(linear)
	if err != nil {
		return nil, err
	}
	Ad, _ := sys.Discretize(dt)
	if r := pitchplunge.SpectralRadius(Ad); !(r < 1) {
		return nil, fmt.Errorf("%w: spectral radius %.6f at U=%g", ErrUnstable, r, p.U)
	}
	Q := mat.NewSymDense(len(cost), nil)
	for i, c := range cost {
		Q.SetSym(i, i, c)
	}
	return pitchplunge.Lyapunov(Ad, Q, 1e-10, 64)
}

// sampleBox draws n states uniformly in the box of half-widths box.
func sampleBox(s *gauss.Sampler, box []float64, n int) [][]float64 {
	X := make([][]float64, n)
	for i := range X {
		X[i] = make([]float64, len(box))
		for j, b := range box {
			X[i][j] = s.Uniform(-b, b)
		}
	}
	return X
}

func values(P mat.Symmetric, X [][]float64) []float64 {
	V := make([]float64, len(X))
	for i, x := range X {
		V[i] = pitchplunge.Value(P, x)
	}
	return V
}

func sqrts(v []float64) []float64 {
	s := make([]float64, len(v))
	for i := range v {
		s[i] = math.Sqrt(math.Max(v[i], 0))
	}
	return s
}

// quadratic is Bayesian linear regression on the monomials of degree
// up to two, the family the cost-to-go belongs to.
type quadratic struct {
	w *gauss.Belief
}

func features(x []float64) []float64 {
	phi := []float64{1}
	phi = append(phi, x...)
	for i := range x {
		for j := i; j != len(x); j++ {
			phi = append(phi, x[i]*x[j])
		}
	}
	return phi
}

func design(X [][]float64) *mat.Dense {
	var H *mat.Dense
	for i, x := range X {
		phi := features(x)
		if H == nil {
			H = mat.NewDense(len(X), len(phi), nil)
		}
		H.SetRow(i, phi)
	}
	return H
}

func newQuadratic(X [][]float64, y []float64, priorStd, noiseVar float64, jitter gauss.Jitter) (*quadratic, error) {
	nw := len(features(X[0]))
	prior := gauss.Diag(make([]float64, nw), constant(nw, priorStd*priorStd))
	R := mat.NewDiagDense(len(y), constant(len(y), noiseVar))
	w, err := gauss.Condition(prior, design(X), R, y, jitter)
	if err != nil {
		return nil, err
	}
	return &quadratic{w: w}, nil
}

// Predict returns the belief over the regression function at X.
func (q *quadratic) Predict(X [][]float64) (*gauss.Belief, error) {
	H := design(X)
	mean := mat.NewVecDense(len(X), nil)
	mean.MulVec(H, q.w.Mean)
	var hs, hsh mat.Dense
	hs.Mul(H, q.w.Cov)
	hsh.Mul(&hs, H.T())
	return &gauss.Belief{Mean: mean, Cov: gauss.Symmetrize(&hsh)}, nil
}

func constant(n int, v float64) []float64 {
	c := make([]float64, n)
	for i := range c {
		c[i] = v
	}
	return c
}
