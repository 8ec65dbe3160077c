package model

import (
	"errors"
	"fmt"
	"math"

	"bitbucket.org/dtolpin/infergo/infer"
	"bitbucket.org/dtolpin/infergo/model"
	"gonum.org/v1/gonum/optimize"
)

var ErrNotTuned = errors.New("optimizer stopped on the first iteration")

// Options of Tune. Lower and Upper bound every parameter; nil
// slices leave the parameters unbounded.
type Options struct {
	Lower         []float64
	Upper         []float64
	MaxIterations int             // 0 is until convergence
	Method        optimize.Method // nil is BFGS
}

// Tuned is the outcome of Tune.
type Tuned struct {
	Theta      []float64
	LML0, LML  float64 // log likelihood before and after
	Iterations int
}

// Tune maximizes the log likelihood of m starting from theta0.
//
// The optimizer does not need to converge officially, a few
// iterations usually bring most of the improvement. Only a failure
// on the first iteration is reported, as ErrNotTuned, and the
// initial parameters are returned then.
func Tune(m model.Model, theta0 []float64, opts Options) (Tuned, error) {
	b := &box{m: m, lo: opts.Lower, hi: opts.Upper}
	x0 := b.clamp(theta0)

	lml0 := m.Observe(x0)
	model.DropGradient(m)
	tuned := Tuned{Theta: x0, LML0: lml0, LML: lml0}

	Func, Grad := infer.FuncGrad(b)
	p := optimize.Problem{Func: Func, Grad: Grad}
	method := opts.Method
	if method == nil {
		method = &optimize.BFGS{}
	}
	result, err := optimize.Minimize(
		p, x0, &optimize.Settings{
			MajorIterations:   opts.MaxIterations,
			GradientThreshold: 0,
			Concurrent:        0,
		}, method)
	if result == nil {
		return tuned, fmt.Errorf("%w: %v", ErrNotTuned, err)
	}
	if err != nil && result.Stats.MajorIterations <= 1 {
		return tuned, fmt.Errorf("%w: %v", ErrNotTuned, err)
	}

	x := b.clamp(result.X)
	lml := m.Observe(x)
	model.DropGradient(m)
	if math.IsNaN(lml) || lml < lml0 {
		// The optimizer wandered off; the start is better.
		return tuned, nil
	}
	tuned.Theta, tuned.LML = x, lml
	tuned.Iterations = result.Stats.MajorIterations
	return tuned, nil
}

// box restricts a model to a box: the model is observed at the
// nearest point of the box, and a quadratic penalty on the distance
// to the box pulls the optimizer back inside.
type box struct {
	m      model.Model
	lo, hi []float64
	grad   []float64
}

func (b *box) clamp(x []float64) []float64 {
	z := append([]float64(nil), x...)
	for i := range z {
		if b.lo != nil && z[i] < b.lo[i] {
			z[i] = b.lo[i]
		}
		if b.hi != nil && z[i] > b.hi[i] {
			z[i] = b.hi[i]
		}
	}
	return z
}

func (b *box) Observe(x []float64) float64 {
	z := b.clamp(x)
	ll := b.m.Observe(z)
	if len(b.grad) != len(x) {
		b.grad = make([]float64, len(x))
	}
	copy(b.grad, model.Gradient(b.m))
	for i := range x {
		if d := x[i] - z[i]; d != 0 {
			ll -= d * d
			b.grad[i] = -2 * d
		}
	}
	return ll
}

func (b *box) Gradient() []float64 {
	return b.grad
}
