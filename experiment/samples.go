package experiment

import (
	"fmt"

	"bitbucket.org/dtolpin/sonig/figure"
	"bitbucket.org/dtolpin/sonig/gauss"
	"bitbucket.org/dtolpin/sonig/regress"
	"bitbucket.org/dtolpin/sonig/report"
	"gonum.org/v1/gonum/mat"
)

// samples draws functions from the GP prior and from the posterior
// given a few noisy spring moments.
func samples(env *Env) error {
	cfg := env.Config
	sc := cfg.Samples
	h := sc.Hyper
	angle := Scaler{Mean: []float64{0}, Std: []float64{cfg.Tune.Range}}

	return env.trials(func(trial int, s *gauss.Sampler) error {
		alpha, y := springData(s, cfg.System, cfg.Tune.Range, cfg.Tune.Noise, sc.N)
		out := FitScaler(column(y))
		X, yz := angle.ApplyAll(column(alpha)), col(out.ApplyAll(column(y)), 0)

		grid := linspace(-cfg.Tune.Range, cfg.Tune.Range, sc.Grid)
		Xg := angle.ApplyAll(column(grid))
		truth := make([]float64, len(grid))
		for i, a := range grid {
			truth[i] = springMoment(cfg.System, a)
		}

		k := h.Kernel()
		prior := gauss.NewBelief(make([]float64, len(grid)), k.Matrix(Xg))
		exact := regress.NewExact(k, h.NoiseVar())
		exact.Jitter = cfg.Jitter
		if err := exact.Fit(X, yz); err != nil {
			return err
		}
		post, err := exact.Predict(Xg)
		if err != nil {
			return err
		}

		base, err := report.NewBaseline(y)
		if err != nil {
			return err
		}
		columns := []string{"alpha", "moment"}
		draws := make([]*mat.Dense, 2)
		var curves [2][]figure.Curve
		for d, c := range []struct {
			name string
			b    *gauss.Belief
		}{
			{"prior", prior},
			{"posterior", post},
		} {
			mean, variance := out.marginals(0, c.b, h.NoiseVar())
			if err := env.record(env.label(c.name, trial), truth, mean, variance, base); err != nil {
				return err
			}
			if draws[d], err = s.Draw(c.b, sc.Draws); err != nil {
				return fmt.Errorf("%s: %w", c.name, err)
			}
			for i := 0; i != sc.Draws; i++ {
				f := make([]float64, len(grid))
				for j := range f {
					f[j], _ = out.Marginal(0, draws[d].At(i, j), 0)
				}
				curves[d] = append(curves[d], figure.Curve{
					Label: fmt.Sprintf("%s %d", c.name, i), X: grid, Y: f,
				})
				columns = append(columns, fmt.Sprintf("%s_%d", c.name, i))
			}
		}

		tb := report.NewTable(env.label("samples", trial), columns...)
		for j := range grid {
			row := []float64{grid[j], truth[j]}
			for d := range curves {
				for _, c := range curves[d] {
					row = append(row, c.Y[j])
				}
			}
			tb.Append(row...)
		}
		env.Run.Attach(tb)

		if trial != 0 {
			return nil
		}
		fig, err := figure.Series("prior samples", "α, rad", "M, N·m", curves[0]...)
		if err != nil {
			return err
		}
		if err := fig.Save(env.figure("prior")); err != nil {
			return err
		}
		mean, variance := out.marginals(0, post, 0)
		fig, err = figure.Regression("posterior samples", "α, rad", "M, N·m",
			figure.Curve{Label: "truth", X: grid, Y: truth},
			[]figure.Fit{{Label: "posterior", X: grid, Mean: mean, Std: sqrts(variance)}},
			figure.Curve{Label: "measured", X: alpha, Y: y}, nil)
		if err != nil {
			return err
		}
		for _, c := range curves[1] {
			if err := fig.Line(c); err != nil {
				return err
			}
		}
		return fig.Save(env.figure("posterior"))
	})
}
