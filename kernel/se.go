package kernel

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SE is the squared exponential covariance with one length scale
// per input dimension:
//
//	k(a, b) = Variance * exp(-1/2 sum_d (a_d - b_d)^2 / Lambda_d^2)
type SE struct {
	Lambda   []float64 // length scales
	Variance float64   // signal variance
}

// NewSE returns the kernel for the given length scales and signal
// standard deviation.
func NewSE(lengthScales []float64, signalStd float64) *SE {
	lambda := make([]float64, len(lengthScales))
	copy(lambda, lengthScales)
	return &SE{
		Lambda:   lambda,
		Variance: signalStd * signalStd,
	}
}

// NDim is the input dimension.
func (k *SE) NDim() int {
	return len(k.Lambda)
}

func (k *SE) sqdist(a, b []float64) float64 {
	s := 0.
	for d := range k.Lambda {
		z := (a[d] - b[d]) / k.Lambda[d]
		s += z * z
	}
	return s
}

// Cov is k(a, b).
func (k *SE) Cov(a, b []float64) float64 {
	return k.Variance * math.Exp(-0.5*k.sqdist(a, b))
}

// Matrix is the covariance matrix of the points in X.
func (k *SE) Matrix(X [][]float64) *mat.SymDense {
	K := mat.NewSymDense(len(X), nil)
	for i := range X {
		K.SetSym(i, i, k.Variance)
		for j := i + 1; j < len(X); j++ {
			K.SetSym(i, j, k.Cov(X[i], X[j]))
		}
	}
	return K
}

// Cross is the len(A)×len(B) matrix of covariances between A and B.
func (k *SE) Cross(A, B [][]float64) *mat.Dense {
	K := mat.NewDense(len(A), len(B), nil)
	for i := range A {
		for j := range B {
			K.Set(i, j, k.Cov(A[i], B[j]))
		}
	}
	return K
}

// Vec is the vector of covariances between the points in X and x.
func (k *SE) Vec(X [][]float64, x []float64) *mat.VecDense {
	v := mat.NewVecDense(len(X), nil)
	for i := range X {
		v.SetVec(i, k.Cov(X[i], x))
	}
	return v
}

// InputGrad stores the gradient of k(a, b) with respect to a in
// dst and returns dst. dst is allocated when nil.
func (k *SE) InputGrad(a, b, dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, k.NDim())
	}
	c := k.Cov(a, b)
	for d, l := range k.Lambda {
		dst[d] = -c * (a[d] - b[d]) / (l * l)
	}
	return dst
}

// HyperGrad stores the gradient of k(a, b) with respect to the
// log length scales followed by the log signal standard deviation
// in dst and returns dst.
func (k *SE) HyperGrad(a, b, dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, k.NDim()+1)
	}
	c := k.Cov(a, b)
	for d, l := range k.Lambda {
		z := (a[d] - b[d]) / l
		dst[d] = c * z * z
	}
	dst[k.NDim()] = 2 * c
	return dst
}

// Hyper is the hyperparameter set of a GP with the SE kernel and
// Gaussian output noise.
type Hyper struct {
	LengthScales []float64 `mapstructure:"length-scales" yaml:"length-scales"`
	SignalStd    float64   `mapstructure:"signal-std" yaml:"signal-std"`
	NoiseStd     float64   `mapstructure:"noise-std" yaml:"noise-std"`
}

var ErrInvalidHyper = errors.New("invalid hyperparameters")

// NTheta is the number of parameters in the optimization space:
// log length scales, log signal std, log noise std.
func (h Hyper) NTheta() int {
	return len(h.LengthScales) + 2
}

// Theta returns the hyperparameters in log space.
func (h Hyper) Theta() []float64 {
	theta := make([]float64, 0, h.NTheta())
	for _, l := range h.LengthScales {
		theta = append(theta, math.Log(l))
	}
	return append(theta, math.Log(h.SignalStd), math.Log(h.NoiseStd))
}

// FromTheta is the inverse of Theta.
func FromTheta(theta []float64) Hyper {
	nd := len(theta) - 2
	h := Hyper{LengthScales: make([]float64, nd)}
	for i := range h.LengthScales {
		h.LengthScales[i] = math.Exp(theta[i])
	}
	h.SignalStd = math.Exp(theta[nd])
	h.NoiseStd = math.Exp(theta[nd+1])
	return h
}

// Kernel builds the covariance function.
func (h Hyper) Kernel() *SE {
	return NewSE(h.LengthScales, h.SignalStd)
}

// NoiseVar is the output noise variance.
func (h Hyper) NoiseVar() float64 {
	return h.NoiseStd * h.NoiseStd
}

// Validate checks that all scales are positive and finite.
func (h Hyper) Validate() error {
	if len(h.LengthScales) == 0 {
		return fmt.Errorf("%w: no length scales", ErrInvalidHyper)
	}
	for i, l := range h.LengthScales {
		if !(l > 0) || math.IsInf(l, 0) {
			return fmt.Errorf("%w: length scale %d is %v", ErrInvalidHyper, i, l)
		}
	}
	if !(h.SignalStd > 0) || math.IsInf(h.SignalStd, 0) {
		return fmt.Errorf("%w: signal std is %v", ErrInvalidHyper, h.SignalStd)
	}
	if h.NoiseStd < 0 || math.IsInf(h.NoiseStd, 0) || math.IsNaN(h.NoiseStd) {
		return fmt.Errorf("%w: noise std is %v", ErrInvalidHyper, h.NoiseStd)
	}
	return nil
}
