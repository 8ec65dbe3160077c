// Package priors holds priors over GP hyperparameters in the log
// space where they are optimized.
package priors

import (
	. "bitbucket.org/dtolpin/infergo/dist"
)

// LogNormal is a prior on a positive hyperparameter: a normal
// over its logarithm.
type LogNormal struct {
	Mean float64 `mapstructure:"mean" yaml:"mean"`
	Std  float64 `mapstructure:"std" yaml:"std"`
}

func (p LogNormal) logp(x float64) float64 {
	return Normal.Logp(p.Mean, p.Std, x)
}

func (p LogNormal) dlogp(x float64) float64 {
	return -(x - p.Mean) / (p.Std * p.Std)
}

// Hyper is the prior over θ = (log ℓ_1, ..., log ℓ_D, log σ_f,
// log σ_n), with the same prior on every length scale.
type Hyper struct {
	LengthScale LogNormal `mapstructure:"length-scale" yaml:"length-scale"`
	SignalStd   LogNormal `mapstructure:"signal-std" yaml:"signal-std"`
	NoiseStd    LogNormal `mapstructure:"noise-std" yaml:"noise-std"`

	grad []float64
}

// Default returns weakly informative priors for standardized data.
func Default() *Hyper {
	return &Hyper{
		// Length scale is around 1, in wide margins.
		LengthScale: LogNormal{0, 2},
		// Signal standard deviation is mostly less than 1.
		SignalStd: LogNormal{-0.5, 1},
		// Noise is around 0.1 of the signal.
		NoiseStd: LogNormal{-2.3, 1.5},
	}
}

func (m *Hyper) Observe(x []float64) float64 {
	nl := len(x) - 2
	var (
		s = nl     // log signal std
		n = nl + 1 // log noise std
	)

	if len(m.grad) != len(x) {
		m.grad = make([]float64, len(x))
	}

	ll := 0.
	for i := 0; i != nl; i++ {
		ll += m.LengthScale.logp(x[i])
		m.grad[i] = m.LengthScale.dlogp(x[i])
	}
	ll += m.SignalStd.logp(x[s])
	m.grad[s] = m.SignalStd.dlogp(x[s])
	ll += m.NoiseStd.logp(x[n])
	m.grad[n] = m.NoiseStd.dlogp(x[n])

	return ll
}

func (m *Hyper) Gradient() []float64 {
	return m.grad
}
