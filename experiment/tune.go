package experiment

import (
	"errors"
	"fmt"
	"math"

	"bitbucket.org/dtolpin/sonig/figure"
	"bitbucket.org/dtolpin/sonig/gauss"
	"bitbucket.org/dtolpin/sonig/kernel"
	"bitbucket.org/dtolpin/sonig/model"
	"bitbucket.org/dtolpin/sonig/pitchplunge"
	"bitbucket.org/dtolpin/sonig/regress"
	"bitbucket.org/dtolpin/sonig/report"
	log "github.com/sirupsen/logrus"
)

// tuneHyper maximizes the log marginal likelihood of standardized
// data, with the configured priors and bounds, starting from h0.
// When the optimizer fails at once h0 is kept.
func tuneHyper(env *Env, X [][]float64, y []float64, h0 kernel.Hyper) (kernel.Hyper, model.Tuned, error) {
	tc := env.Config.Tune
	pr := tc.Priors
	m := &model.LML{X: X, Y: y, Priors: &pr, Jitter: env.Config.Jitter}
	n := h0.NTheta()
	opts := model.Options{
		Lower:         constant(n, math.Log(tc.MinScale)),
		Upper:         constant(n, math.Log(tc.MaxScale)),
		MaxIterations: tc.MaxIterations,
	}
	tuned, err := model.Tune(m, h0.Theta(), opts)
	switch {
	case errors.Is(err, model.ErrNotTuned):
		env.Log.WithError(err).Warn("keeping the initial hyperparameters")
		return h0, tuned, nil
	case err != nil:
		return h0, tuned, err
	}
	return kernel.FromTheta(tuned.Theta), tuned, nil
}

// springMoment is the restoring moment k_α(α) α of the pitch spring.
func springMoment(p pitchplunge.Params, alpha float64) float64 {
	return p.Stiffness(alpha) * alpha
}

// springData draws n noisy moments at angles uniform in ±rng.
func springData(s *gauss.Sampler, p pitchplunge.Params, rng, noise float64, n int) (alpha, y []float64) {
	alpha, y = make([]float64, n), make([]float64, n)
	for i := range alpha {
		alpha[i] = s.Uniform(-rng, rng)
		y[i] = springMoment(p, alpha[i]) + noise*s.Normal()
	}
	return alpha, y
}

// tune fits the spring moment with the initial and the tuned
// hyperparameters, and checks the tuned fit against gogp.
func tune(env *Env) error {
	cfg := env.Config
	tc := cfg.Tune
	h0 := tc.Hyper
	angle := Scaler{Mean: []float64{0}, Std: []float64{tc.Range}}

	return env.trials(func(trial int, s *gauss.Sampler) error {
		alpha, y := springData(s, cfg.System, tc.Range, tc.Noise, tc.N)
		out := FitScaler(column(y))
		X, yz := angle.ApplyAll(column(alpha)), col(out.ApplyAll(column(y)), 0)

		grid := linspace(-tc.Range, tc.Range, tc.Grid)
		Xg := angle.ApplyAll(column(grid))
		truth := make([]float64, len(grid))
		for i, a := range grid {
			truth[i] = springMoment(cfg.System, a)
		}
		base, err := report.NewBaseline(y)
		if err != nil {
			return err
		}

		h, tuned, err := tuneHyper(env, X, yz, h0)
		if err != nil {
			return err
		}

		hyper := report.NewTable(env.label("hyper", trial),
			"lml", "length_scale", "signal_std", "noise_std")
		var fits []figure.Fit
		for _, c := range []struct {
			name string
			h    kernel.Hyper
		}{
			{"initial", h0},
			{"tuned", h},
		} {
			exact := regress.NewExact(c.h.Kernel(), c.h.NoiseVar())
			exact.Jitter = cfg.Jitter
			if err := exact.Fit(X, yz); err != nil {
				return fmt.Errorf("%s: %w", c.name, err)
			}
			lml, err := exact.LogMarginal()
			if err != nil {
				return err
			}
			hyper.Append(lml, c.h.LengthScales[0]*tc.Range,
				c.h.SignalStd*out.Std[0], c.h.NoiseStd*out.Std[0])

			b, err := exact.Predict(Xg)
			if err != nil {
				return err
			}
			mean, variance := out.marginals(0, b, c.h.NoiseVar())
			if err := env.record(env.label(c.name, trial), truth, mean, variance, base); err != nil {
				return err
			}
			mean, variance = out.marginals(0, b, 0)
			fits = append(fits, figure.Fit{Label: c.name, X: grid, Mean: mean, Std: sqrts(variance)})
		}
		env.Run.Attach(hyper)

		mu, sigma, err := regress.Forecast(regress.GoGP(h), X, yz, Xg)
		if err != nil {
			return fmt.Errorf("gogp: %w", err)
		}
		mean, variance := make([]float64, len(mu)), make([]float64, len(mu))
		for i := range mu {
			mean[i], variance[i] = out.Marginal(0, mu[i], sigma[i]*sigma[i]+h.NoiseVar())
		}
		if err := env.record(env.label("gogp", trial), truth, mean, variance, base); err != nil {
			return err
		}

		tb := report.NewTable(env.label("moment", trial), "alpha", "moment",
			"initial", "initial_std", "tuned", "tuned_std", "gogp")
		for i := range grid {
			tb.Append(grid[i], truth[i],
				fits[0].Mean[i], fits[0].Std[i], fits[1].Mean[i], fits[1].Std[i], mean[i])
		}
		env.Run.Attach(tb)

		env.Log.WithFields(log.Fields{
			"trial":      trial,
			"lml0":       fmt.Sprintf("%.4g", tuned.LML0),
			"lml":        fmt.Sprintf("%.4g", tuned.LML),
			"iterations": tuned.Iterations,
			"scale":      fmt.Sprintf("%.3g", h.LengthScales[0]*tc.Range),
			"noise":      fmt.Sprintf("%.3g", h.NoiseStd*out.Std[0]),
		}).Info("hyperparameters tuned")

		if trial != 0 {
			return nil
		}
		fig, err := figure.Regression("pitch spring moment", "α, rad", "M, N·m",
			figure.Curve{Label: "truth", X: grid, Y: truth},
			fits, figure.Curve{Label: "measured", X: alpha, Y: y}, nil)
		if err != nil {
			return err
		}
		return fig.Save(env.figure("tune"))
	})
}
