package regress

import (
	"bitbucket.org/dtolpin/gogp/gp"
	"bitbucket.org/dtolpin/sonig/kernel"
)

// GoGP returns a gogp GP with the SE kernel and the output noise of h.
// The hyperparameters are fixed inside the kernels, gogp sees none.
func GoGP(h kernel.Hyper) *gp.GP {
	return &gp.GP{
		NDim:  len(h.LengthScales),
		Simil: kernel.Simil(h.Kernel()),
		Noise: kernel.Noise(h.NoiseVar()),
	}
}

// Forecast absorbs the observations into g and produces the
// predictive means and standard deviations at Z.
func Forecast(g *gp.GP, X [][]float64, y []float64, Z [][]float64) (
	mu, sigma []float64,
	err error,
) {
	if err = g.Absorb(X, y); err != nil {
		return nil, nil, err
	}
	return g.Produce(Z)
}
