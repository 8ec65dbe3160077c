package sonig

import (
	"errors"
	"testing"

	"bitbucket.org/dtolpin/sonig/gauss"
	"bitbucket.org/dtolpin/sonig/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newMulti(t *testing.T) *Multi {
	h2 := hyper
	h2.SignalStd = 0.5
	mm, err := NewMulti([]kernel.Hyper{hyper, h2}, points, gauss.Jitter{})
	require.NoError(t, err)
	return mm
}

func TestMultiUpdate(t *testing.T) {
	mm := newMulti(t)
	assert.Equal(t, 2, mm.NOut())
	for i := range trainX {
		_, err := mm.Update(gauss.Point(trainX[i]),
			gauss.Point([]float64{trainY[i], -0.5 * trainY[i]}))
		require.NoError(t, err)
	}
	assert.Equal(t, len(trainX), mm.Count())

	// With point inputs the outputs are independent models.
	single, err := New(hyper, points, gauss.Jitter{})
	require.NoError(t, err)
	feed(t, single, trainX, trainY)
	assertBeliefsEqual(t, single.Inducing(), mm.Models[0].Inducing(), 1e-12)

	bs := mm.Predict(testX)
	require.Len(t, bs, 2)
	for i := range testX {
		assert.InDelta(t, -0.5*bs[0].Mean.AtVec(i), bs[1].Mean.AtVec(i), 0.2)
	}

	mm.Reset()
	assert.Equal(t, 0, mm.Count())
}

func TestMultiChainsInput(t *testing.T) {
	mm := newMulti(t)
	for i := range trainX {
		_, err := mm.Update(gauss.Point(trainX[i]),
			gauss.Point([]float64{trainY[i], -0.5 * trainY[i]}))
		require.NoError(t, err)
	}
	in := gauss.Diag([]float64{0.5}, []float64{0.05})
	rs, err := mm.Update(in, gauss.Diag([]float64{0.4, -0.2}, []float64{0.01, 0.01}))
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Less(t, rs[0].Input.Var(0), in.Var(0))
	assert.Less(t, rs[1].Input.Var(0), rs[0].Input.Var(0))

	joint := mm.PredictUncertain(in)
	require.NoError(t, joint.Validate(1e-9))
	// Opposite slopes make the outputs anticorrelated.
	assert.Less(t, joint.Cov.At(0, 1), 0.)
}

func TestMultiIsAtomic(t *testing.T) {
	mm := newMulti(t)
	for i := range trainX[:4] {
		_, err := mm.Update(gauss.Point(trainX[i]),
			gauss.Point([]float64{trainY[i], -0.5 * trainY[i]}))
		require.NoError(t, err)
	}
	before := []*gauss.Belief{mm.Models[0].Inducing(), mm.Models[1].Inducing()}

	// The first output is fine, the second is invalid.
	out := gauss.NewBelief([]float64{0.2, 0.1},
		mat.NewSymDense(2, []float64{0.01, 0, 0, -10}))
	rs, err := mm.Update(gauss.Point([]float64{0.1}), out)
	assert.Nil(t, rs)
	assert.True(t, errors.Is(err, ErrInvalidUpdate), "%v", err)
	for i, m := range mm.Models {
		assertBeliefsEqual(t, before[i], m.Inducing(), 0)
		assert.Equal(t, 4, m.Count())
	}
}
