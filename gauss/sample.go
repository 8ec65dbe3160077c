package gauss

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Sampler draws from Gaussian beliefs. All randomness of a run flows
// from one PCG generator seeded with (seed, stream), so a figure is
// reproduced by its seed and trial number.
type Sampler struct {
	src    *rand.PCG
	rng    *rand.Rand
	Jitter Jitter
}

// NewSampler returns a sampler on the PCG stream (seed, stream).
func NewSampler(seed, stream uint64) *Sampler {
	src := rand.NewPCG(seed, stream)
	return &Sampler{
		src: src,
		rng: rand.New(src),
	}
}

// Rand is the underlying generator, for draws that are not
// Gaussian vectors.
func (s *Sampler) Rand() *rand.Rand {
	return s.rng
}

// Normal draws a standard normal variate.
func (s *Sampler) Normal() float64 {
	return s.rng.NormFloat64()
}

// Uniform draws from [lo, hi).
func (s *Sampler) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*s.rng.Float64()
}

// Draw returns n samples of b, one per row. The covariance is
// factorized with jitter; point beliefs return copies of the mean.
func (s *Sampler) Draw(b *Belief, n int) (*mat.Dense, error) {
	d := b.Dim()
	out := mat.NewDense(n, d, nil)
	mean := b.MeanSlice()
	if b.IsPoint() {
		for i := 0; i != n; i++ {
			out.SetRow(i, mean)
		}
		return out, nil
	}
	chol, _, err := Factorize(b.Cov, s.Jitter)
	if err != nil {
		return nil, err
	}
	for i := 0; i != n; i++ {
		distmv.NormalRand(out.RawRowView(i), mean, chol, s.src)
	}
	return out, nil
}

// Perturb returns x plus independent zero-mean noise with the given
// standard deviations.
func (s *Sampler) Perturb(x, std []float64) []float64 {
	y := make([]float64, len(x))
	for i := range x {
		y[i] = x[i] + std[i]*s.rng.NormFloat64()
	}
	return y
}
