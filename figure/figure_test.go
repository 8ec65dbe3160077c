package figure

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegression(t *testing.T) {
	n := 50
	truth := Curve{Label: "truth", X: make([]float64, n), Y: make([]float64, n)}
	fit := Fit{Label: "fit", X: truth.X, Mean: make([]float64, n), Std: make([]float64, n)}
	for i := 0; i != n; i++ {
		x := -3 + 6*float64(i)/float64(n-1)
		truth.X[i] = x
		truth.Y[i] = math.Sin(x)
		fit.Mean[i] = 0.9 * math.Sin(x)
		fit.Std[i] = 0.1 + 0.05*math.Abs(x)
	}
	data := Curve{Label: "data", X: []float64{-2, 0, 1.5}, Y: []float64{-0.9, 0.1, 1}}

	f, err := Regression("sine", "x", "y", truth, []Fit{fit}, data, []float64{-2, 0, 2})
	require.NoError(t, err)
	dir := t.TempDir()
	for _, name := range []string{"fit.png", "sub/fit.svg"} {
		path := filepath.Join(dir, name)
		require.NoError(t, f.Save(path))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestInconsistent(t *testing.T) {
	_, err := Regression("bad", "x", "y",
		Curve{X: []float64{1, 2}, Y: []float64{1}}, nil, Curve{}, nil)
	assert.Error(t, err)
	_, err = Regression("bad", "x", "y", Curve{},
		[]Fit{{X: []float64{1, 2}, Mean: []float64{1, 2}, Std: []float64{1}}}, Curve{}, nil)
	assert.Error(t, err)
}

func TestSeries(t *testing.T) {
	f, err := Series("traces", "t", "x",
		Curve{Label: "h", X: []float64{0, 1, 2}, Y: []float64{0, 1, 0}},
		Curve{Label: "alpha", X: []float64{0, 1, 2}, Y: []float64{1, 0, 1}})
	require.NoError(t, err)
	require.NoError(t, f.Save(filepath.Join(t.TempDir(), "series.pdf")))
}
