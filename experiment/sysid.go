package experiment

import (
	"fmt"
	"math"

	"bitbucket.org/dtolpin/sonig/figure"
	"bitbucket.org/dtolpin/sonig/gauss"
	"bitbucket.org/dtolpin/sonig/kernel"
	"bitbucket.org/dtolpin/sonig/pitchplunge"
	"bitbucket.org/dtolpin/sonig/regress"
	"bitbucket.org/dtolpin/sonig/report"
	"bitbucket.org/dtolpin/sonig/sonig"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

var stateNames = [pitchplunge.NState]string{"h", "alpha", "hdot", "alphadot"}

// rollout is the horizon of the free-run prediction.
const rollout = 50

// sysid learns the one-step map (x_k, β_k) -> x_{k+1} of the system
// from a trajectory excited by random flap deflections, with every
// state measured in noise. SONIG absorbs the measurements one at a
// time with the measurement noise on both sides; FITC and the exact
// GP fit the same data taking the noisy inputs as exact.
func sysid(env *Env) error {
	cfg := env.Config
	sc := cfg.Sysid
	sys, err := pitchplunge.NewSystem(cfg.System)
	if err != nil {
		return err
	}
	nx, nz := pitchplunge.NState, pitchplunge.NState+pitchplunge.NInput

	return env.trials(func(trial int, s *gauss.Sampler) error {
		train := excite(sys, s, sc.Initial, sc.Excitation, cfg.Dt, sc.Steps)
		test := excite(sys, s, sc.Initial, sc.Excitation, cfg.Dt, sc.Test)

		measured := make([][]float64, len(train.X))
		for i, x := range train.X {
			measured[i] = s.Perturb(x, sc.StateNoise)
		}
		Z, Y := transitions(measured, train.U), measured[1:]
		in, out := FitScaler(Z), FitScaler(Y)
		Zz, Yz := in.ApplyAll(Z), out.ApplyAll(Y)

		// Measurement noise in standardized units; the flap is exact.
		inVar := make([]float64, nz)
		outVar := make([]float64, nx)
		for j := 0; j != nx; j++ {
			v := sc.StateNoise[j] * sc.StateNoise[j]
			inVar[j] = v / (in.Std[j] * in.Std[j])
			outVar[j] = v / (out.Std[j] * out.Std[j])
		}

		hs := make([]kernel.Hyper, nx)
		for j := range hs {
			hs[j] = sc.Hyper
			if !sc.Tune {
				continue
			}
			h, tuned, err := tuneHyper(env, Zz[:sc.TuneN], col(Yz[:sc.TuneN], j), sc.Hyper)
			if err != nil {
				return fmt.Errorf("tune %s: %w", stateNames[j], err)
			}
			// The tuned noise includes the measurement noise of the
			// output, which SONIG accounts for separately.
			nv := h.NoiseVar()
			h.NoiseStd = math.Sqrt(math.Max(nv-outVar[j], 1e-4*nv))
			hs[j] = h
			env.Log.WithFields(log.Fields{
				"trial":  trial,
				"output": stateNames[j],
				"lml0":   tuned.LML0,
				"lml":    tuned.LML,
				"hyper":  fmt.Sprintf("%.3g", h.Theta()),
			}).Debug("tuned")
		}

		Xu := make([][]float64, sc.Inducing)
		for i, j := range s.Rand().Perm(len(Zz))[:sc.Inducing] {
			Xu[i] = Zz[j]
		}
		mm, err := sonig.NewMulti(hs, Xu, cfg.Jitter)
		if err != nil {
			return err
		}
		for k := range Zz {
			if _, err := mm.Update(gauss.Diag(Zz[k], inVar), gauss.Diag(Yz[k], outVar)); err != nil {
				return fmt.Errorf("step %d: %w", k, err)
			}
		}

		// One-step predictions along the test trajectory, from the
		// true states.
		Zt := in.ApplyAll(transitions(test.X, test.U))
		truth := test.X[1:]
		fits := make([]figure.Fit, 0, 3)
		tb := report.NewTable(env.label("onestep", trial), "t", "alpha",
			"sonig", "sonig_std", "fitc", "fitc_std", "exact", "exact_std")
		sparse := mm.Predict(Zt)
		for j := 0; j != nx; j++ {
			yj := col(Yz, j)
			fitc, err := regress.NewFITC(hs[j].Kernel(), hs[j].NoiseVar()+outVar[j], Xu, cfg.Jitter)
			if err != nil {
				return err
			}
			if err := fitc.Fit(Zz, yj); err != nil {
				return fmt.Errorf("fitc %s: %w", stateNames[j], err)
			}
			exact := regress.NewExact(hs[j].Kernel(), hs[j].NoiseVar()+outVar[j])
			exact.Jitter = cfg.Jitter
			if err := exact.Fit(Zz, yj); err != nil {
				return fmt.Errorf("exact %s: %w", stateNames[j], err)
			}
			fb, err := fitc.Predict(Zt)
			if err != nil {
				return err
			}
			eb, err := exact.Predict(Zt)
			if err != nil {
				return err
			}

			base, err := report.NewBaseline(col(Y, j))
			if err != nil {
				return err
			}
			for _, p := range []struct {
				name string
				b    *gauss.Belief
			}{
				{"sonig", sparse[j]},
				{"fitc", fb},
				{"exact", eb},
			} {
				mean, variance := out.marginals(j, p.b, hs[j].NoiseVar())
				name := env.label(p.name+"/"+stateNames[j], trial)
				if err := env.record(name, col(truth, j), mean, variance, base); err != nil {
					return err
				}
				if j == pitchplunge.Alpha {
					mean, variance := out.marginals(j, p.b, 0)
					fits = append(fits, figure.Fit{
						Label: p.name, X: test.T[1:], Mean: mean, Std: sqrts(variance),
					})
				}
			}
		}
		for i, t := range test.T[1:] {
			row := []float64{t, truth[i][pitchplunge.Alpha]}
			for _, f := range fits {
				row = append(row, f.Mean[i], f.Std[i])
			}
			tb.Append(row...)
		}
		env.Run.Attach(tb)

		// Free run: the state belief is fed back through the learned
		// dynamics, with the input noise propagated.
		horizon := min(rollout, sc.Test)
		rb := report.NewTable(env.label("rollout", trial), "t", "alpha", "mean", "std")
		b := gauss.Point(test.X[0])
		truthA := make([]float64, horizon)
		meanA := make([]float64, horizon)
		varA := make([]float64, horizon)
		for k := 0; k != horizon; k++ {
			next := mm.PredictUncertain(in.Belief(augment(b, test.U[k])))
			b = out.original(next, hs)
			truthA[k] = test.X[k+1][pitchplunge.Alpha]
			meanA[k] = b.Mean.AtVec(pitchplunge.Alpha)
			varA[k] = b.Var(pitchplunge.Alpha)
			rb.Append(test.T[k+1], truthA[k], meanA[k], b.Std(pitchplunge.Alpha))
		}
		env.Run.Attach(rb)
		base, err := report.NewBaseline(col(Y, pitchplunge.Alpha))
		if err != nil {
			return err
		}
		if err := env.record(env.label("rollout/alpha", trial), truthA, meanA, varA, base); err != nil {
			return err
		}

		env.Log.WithFields(log.Fields{
			"trial":    trial,
			"absorbed": mm.Count(),
			"inducing": sc.Inducing,
		}).Debug("dynamics learned")

		if trial != 0 {
			return nil
		}
		data := figure.Curve{Label: "measured", X: train.T[1:], Y: col(Y, pitchplunge.Alpha)}
		fig, err := figure.Regression("one-step prediction of the pitch", "t, s", "α, rad",
			figure.Curve{Label: "truth", X: test.T[1:], Y: col(truth, pitchplunge.Alpha)},
			fits, figure.Curve{}, nil)
		if err != nil {
			return err
		}
		if err := fig.Save(env.figure("sysid")); err != nil {
			return err
		}
		fig, err = figure.Series("training trajectory", "t, s", "α, rad",
			figure.Curve{Label: "truth", X: train.T, Y: col(train.X, pitchplunge.Alpha)}, data)
		if err != nil {
			return err
		}
		if err := fig.Save(env.figure("trajectory")); err != nil {
			return err
		}
		fig, err = figure.Regression("free run", "t, s", "α, rad",
			figure.Curve{Label: "truth", X: rb.Column(0), Y: truthA},
			[]figure.Fit{{Label: "sonig", X: rb.Column(0), Mean: meanA, Std: rb.Column(3)}},
			figure.Curve{}, nil)
		if err != nil {
			return err
		}
		return fig.Save(env.figure("rollout"))
	})
}

// excite simulates the system from a random initial state under
// random flap deflections.
func excite(sys *pitchplunge.System, s *gauss.Sampler, initial []float64, excitation, dt float64, steps int) *pitchplunge.Trajectory {
	x0 := s.Perturb(make([]float64, len(initial)), initial)
	policy := func(float64, []float64) float64 {
		return excitation * s.Normal()
	}
	return sys.Simulate(x0, policy, dt, steps)
}

// transitions are the inputs [x_k, u_k] of the one-step map.
func transitions(X [][]float64, U []float64) [][]float64 {
	Z := make([][]float64, len(U))
	for k, u := range U {
		Z[k] = append(append([]float64(nil), X[k]...), u)
	}
	return Z
}

// augment appends the exactly known input u to the state belief.
func augment(b *gauss.Belief, u float64) *gauss.Belief {
	n := b.Dim()
	cov := mat.NewSymDense(n+1, nil)
	for i := 0; i != n; i++ {
		for j := i; j != n; j++ {
			cov.SetSym(i, j, b.Cov.At(i, j))
		}
	}
	return gauss.NewBelief(append(b.MeanSlice(), u), cov)
}

// original maps a standardized belief over the outputs back to the
// original units, adding the process noise of each output.
func (s Scaler) original(b *gauss.Belief, hs []kernel.Hyper) *gauss.Belief {
	n := b.Dim()
	cov := mat.NewSymDense(n, nil)
	for i := 0; i != n; i++ {
		for j := i; j != n; j++ {
			v := b.Cov.At(i, j)
			if i == j {
				v += hs[i].NoiseVar()
			}
			cov.SetSym(i, j, v*s.Std[i]*s.Std[j])
		}
	}
	return gauss.NewBelief(s.Restore(b.MeanSlice()), cov)
}
