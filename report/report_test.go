package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestNLPD(t *testing.T) {
	// Standard normal at the mean.
	assert.InDelta(t, 0.5*math.Log(2*math.Pi), NLPD(0, 0, 1), 1e-12)
	// One standard deviation away, variance 4.
	assert.InDelta(t, 0.5*math.Log(2*math.Pi*4)+0.5, NLPD(3, 1, 4), 1e-12)
}

func TestEvaluate(t *testing.T) {
	truth := []float64{1, 2, 3, 4}
	mean := []float64{1.5, 2, 2, 4}
	variance := []float64{0.25, 1, 0.01, 1}
	base, err := NewBaseline(truth)
	require.NoError(t, err)
	assert.Equal(t, 2.5, base.Mean)
	assert.Equal(t, 1.25, base.Var)

	m, err := Evaluate(truth, mean, variance, base)
	require.NoError(t, err)
	assert.Equal(t, 4, m.N)
	assert.InDelta(t, math.Sqrt((0.25+1)/4), m.RMSE, 1e-12)
	assert.InDelta(t, (-0.5+1)/4, m.MeanErr, 1e-12)
	assert.Equal(t, 1., m.MaxAbs)
	// The third prediction is 10σ off.
	assert.Equal(t, 1, m.Outliers)

	want := 0.
	wantSLL := 0.
	for i := range truth {
		want += NLPD(truth[i], mean[i], variance[i])
		wantSLL += NLPD(truth[i], mean[i], variance[i]) - NLPD(truth[i], base.Mean, base.Var)
	}
	assert.InDelta(t, want/4, m.NLPD, 1e-12)
	assert.InDelta(t, wantSLL/4, m.MSLL, 1e-12)

	_, err = Evaluate(nil, nil, nil, base)
	assert.ErrorIs(t, err, ErrNoData)
	_, err = Evaluate(truth, mean[:2], variance, base)
	assert.Error(t, err)
	_, err = Evaluate(truth, mean, []float64{1, 1, 0, 1}, base)
	assert.Error(t, err)
}

func TestTable(t *testing.T) {
	tb := NewTable("trace", "t", "x")
	tb.Append(0, 1.5)
	tb.Append(0.1, -2)
	assert.Panics(t, func() { tb.Append(1) })
	assert.Equal(t, []float64{1.5, -2}, tb.Column(1))

	var buf bytes.Buffer
	require.NoError(t, tb.WriteCSV(&buf))
	assert.Equal(t, "t,x\n0,1.5\n0.1,-2\n", buf.String())
}

func TestRun(t *testing.T) {
	r := NewRun("value", 42)
	r.Record("exact", Metrics{N: 10, RMSE: 0.1, NLPD: -1})
	r.Record("sonig", Metrics{N: 10, RMSE: 0.2, NLPD: -0.5, Outliers: 1})
	tb := NewTable("grid", "x", "y")
	tb.Append(1, 2)
	r.Attach(tb)
	r.Log()

	mark := r.Mark()
	r.Record("dropped", Metrics{N: 1})
	r.Attach(NewTable("dropped", "x"))
	r.Rollback(mark)
	require.Len(t, r.Results, 2)
	require.Len(t, r.Tables, 1)

	s := r.Summary()
	require.Len(t, s.Rows, 2)
	assert.Equal(t, 0.2, s.Rows[1][1])

	dir := t.TempDir()
	paths, err := r.SaveCSV(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "summary.csv"),
		filepath.Join(dir, "grid.csv"),
	}, paths)

	path := filepath.Join(dir, "run.xlsx")
	require.NoError(t, r.SaveWorkbook(path))
	_, err = os.Stat(path)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Summary", "grid"}, f.GetSheetList())
	v, err := f.GetCellValue("Summary", "B2")
	require.NoError(t, err)
	assert.Equal(t, "value", v)
	v, err = f.GetCellValue("Summary", "A8")
	require.NoError(t, err)
	assert.Equal(t, "sonig", v)
}
