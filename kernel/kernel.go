package kernel

// Adapters letting gogp's gp.GP run on the SE kernel. A gogp kernel
// observes its hyperparameters followed by the points; the
// hyperparameters here are fixed, so the arguments are the points
// only.

// Similarity is the gogp similarity kernel over an SE covariance.
type Similarity struct {
	SE   *SE
	grad []float64
}

// Simil wraps se for gogp.
func Simil(se *SE) *Similarity {
	return &Similarity{SE: se}
}

func (s *Similarity) Observe(x []float64) float64 {
	n := s.SE.NDim()
	a, b := x[:n], x[n:2*n]

	if len(s.grad) != 2*n {
		s.grad = make([]float64, 2*n)
	}
	s.SE.InputGrad(a, b, s.grad[:n])
	// The kernel is stationary, the gradient by the second point
	// is the opposite.
	for i := 0; i != n; i++ {
		s.grad[n+i] = -s.grad[i]
	}
	return s.SE.Cov(a, b)
}

func (s *Similarity) Gradient() []float64 {
	return s.grad
}

func (*Similarity) NTheta() int { return 0 }

// ConstantNoise is the gogp noise kernel with a fixed variance.
type ConstantNoise struct {
	Variance float64
	grad     []float64
}

// Noise wraps a fixed noise variance for gogp.
func Noise(variance float64) *ConstantNoise {
	return &ConstantNoise{Variance: variance}
}

func (n *ConstantNoise) Observe(x []float64) float64 {
	if len(n.grad) != len(x) {
		n.grad = make([]float64, len(x))
	}
	return n.Variance
}

func (n *ConstantNoise) Gradient() []float64 {
	return n.grad
}

func (*ConstantNoise) NTheta() int { return 0 }
