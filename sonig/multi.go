package sonig

import (
	"fmt"

	"bitbucket.org/dtolpin/sonig/gauss"
	"bitbucket.org/dtolpin/sonig/kernel"
	"gonum.org/v1/gonum/mat"
)

// Multi regresses a vector-valued function with one independent
// Model per output. All outputs share the input.
type Multi struct {
	Models []*Model
}

// NewMulti returns a model with one output per hyperparameter set,
// all on the inducing inputs Xu.
func NewMulti(hs []kernel.Hyper, Xu [][]float64, jitter gauss.Jitter) (*Multi, error) {
	mm := &Multi{Models: make([]*Model, len(hs))}
	for i, h := range hs {
		m, err := New(h, Xu, jitter)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		mm.Models[i] = m
	}
	return mm, nil
}

// NOut is the number of outputs.
func (mm *Multi) NOut() int {
	return len(mm.Models)
}

// Count is the number of observations absorbed.
func (mm *Multi) Count() int {
	return mm.Models[0].Count()
}

// Reset restores the prior of every output.
func (mm *Multi) Reset() {
	for _, m := range mm.Models {
		m.Reset()
	}
}

// Update absorbs one observation of all outputs. The outputs are
// processed in turn, each starting from the input posterior left by
// the previous one; only the marginal variances of out are used.
// The update is all or nothing: on failure of any output every
// output is restored.
func (mm *Multi) Update(in, out *gauss.Belief) ([]*Result, error) {
	if out.Dim() != mm.NOut() {
		panic(mat.ErrShape)
	}
	type state struct {
		fu    *gauss.Belief
		count int
	}
	saved := make([]state, mm.NOut())
	for i, m := range mm.Models {
		saved[i].fu, saved[i].count = m.snapshot()
	}

	results := make([]*Result, mm.NOut())
	x := in
	for i, m := range mm.Models {
		yi := gauss.Diag([]float64{out.Mean.AtVec(i)}, []float64{out.Var(i)})
		res, err := m.Update(x, yi)
		if err != nil {
			for j, s := range saved {
				mm.Models[j].restore(s.fu, s.count)
			}
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		results[i] = res
		x = res.Input
	}
	return results, nil
}

// Predict returns the belief over each output at the points of X.
func (mm *Multi) Predict(X [][]float64) []*gauss.Belief {
	bs := make([]*gauss.Belief, mm.NOut())
	for i, m := range mm.Models {
		bs[i] = m.Predict(X)
	}
	return bs
}

// PredictUncertain returns the joint belief over the outputs at an
// uncertain input. The outputs are correlated through the shared
// input: cov(f_i, f_j) = ∇μ_iᵀ Σx ∇μ_j.
func (mm *Multi) PredictUncertain(in *gauss.Belief) *gauss.Belief {
	n := mm.NOut()
	mean := make([]float64, n)
	slopes := make([]*mat.VecDense, n)
	b := gauss.NewBelief(mean, nil)
	for i, m := range mm.Models {
		mu, vr, g := m.predictUncertain(in)
		b.Mean.SetVec(i, mu)
		b.Cov.SetSym(i, i, vr)
		slopes[i] = mat.NewVecDense(len(g), g)
	}
	for i := 0; i != n; i++ {
		for j := i + 1; j != n; j++ {
			b.Cov.SetSym(i, j, mat.Inner(slopes[i], in.Cov, slopes[j]))
		}
	}
	return b
}
