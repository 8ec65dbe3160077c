// Package report computes accuracy metrics of probabilistic
// predictions and exports run results as CSV files and workbooks.
package report

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

var ErrNoData = errors.New("no data to evaluate")

// Outlier is the standardized residual beyond which a prediction
// counts as an outlier.
const Outlier = 3

// Metrics of predictions against the truth.
type Metrics struct {
	N        int
	RMSE     float64 // root mean squared error
	MeanErr  float64 // mean of truth - prediction
	MaxAbs   float64 // largest absolute error
	NLPD     float64 // average negative log predictive density
	MSLL     float64 // NLPD relative to the baseline
	Outliers int     // standardized residuals beyond Outlier
}

// Baseline is the trivial predictor with the mean and variance of
// the training outputs everywhere.
type Baseline struct {
	Mean, Var float64
}

// NewBaseline fits the trivial predictor to y.
func NewBaseline(y []float64) (Baseline, error) {
	mean, err := stats.Mean(y)
	if err != nil {
		return Baseline{}, err
	}
	vr, err := stats.Variance(y)
	if err != nil {
		return Baseline{}, err
	}
	return Baseline{Mean: mean, Var: vr}, nil
}

// NLPD is the negative log density of y under N(mean, variance).
func NLPD(y, mean, variance float64) float64 {
	d := y - mean
	return 0.5*(math.Log(2*math.Pi)+math.Log(variance)) + 0.5*d*d/variance
}

// Evaluate compares the predictive means and variances with the
// truth. The variances are of the observations, output noise
// included. The MSLL is computed when base has a positive variance.
func Evaluate(truth, mean, variance []float64, base Baseline) (Metrics, error) {
	n := len(truth)
	if n == 0 {
		return Metrics{}, ErrNoData
	}
	if len(mean) != n || len(variance) != n {
		return Metrics{}, fmt.Errorf("%d values, %d means, %d variances",
			n, len(mean), len(variance))
	}

	m := Metrics{N: n}
	errs := make(stats.Float64Data, n)
	sq := make(stats.Float64Data, n)
	abs := make(stats.Float64Data, n)
	nlpd := make(stats.Float64Data, n)
	sll := make(stats.Float64Data, n)
	for i := range truth {
		if !(variance[i] > 0) {
			return Metrics{}, fmt.Errorf("variance %d is %v", i, variance[i])
		}
		e := truth[i] - mean[i]
		errs[i], sq[i], abs[i] = e, e*e, math.Abs(e)
		nlpd[i] = NLPD(truth[i], mean[i], variance[i])
		if base.Var > 0 {
			sll[i] = nlpd[i] - NLPD(truth[i], base.Mean, base.Var)
		}
		if abs[i] > Outlier*math.Sqrt(variance[i]) {
			m.Outliers++
		}
	}

	var err error
	if m.MeanErr, err = errs.Mean(); err != nil {
		return Metrics{}, err
	}
	mse, err := sq.Mean()
	if err != nil {
		return Metrics{}, err
	}
	m.RMSE = math.Sqrt(mse)
	if m.MaxAbs, err = abs.Max(); err != nil {
		return Metrics{}, err
	}
	if m.NLPD, err = nlpd.Mean(); err != nil {
		return Metrics{}, err
	}
	if base.Var > 0 {
		if m.MSLL, err = sll.Mean(); err != nil {
			return Metrics{}, err
		}
	}
	return m, nil
}
