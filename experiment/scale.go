package experiment

import (
	"bitbucket.org/dtolpin/sonig/gauss"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Scaler maps each coordinate to (x - Mean)/Std.
type Scaler struct {
	Mean, Std []float64
}

// FitScaler standardizes the columns of X. A constant column is
// only centered.
func FitScaler(X [][]float64) Scaler {
	d := len(X[0])
	s := Scaler{Mean: make([]float64, d), Std: make([]float64, d)}
	col := make([]float64, len(X))
	for j := 0; j != d; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		s.Mean[j], s.Std[j] = stat.MeanStdDev(col, nil)
		if !(s.Std[j] > 0) {
			s.Std[j] = 1
		}
	}
	return s
}

// Apply standardizes x.
func (s Scaler) Apply(x []float64) []float64 {
	z := make([]float64, len(x))
	for j := range x {
		z[j] = (x[j] - s.Mean[j]) / s.Std[j]
	}
	return z
}

// ApplyAll standardizes the rows of X.
func (s Scaler) ApplyAll(X [][]float64) [][]float64 {
	Z := make([][]float64, len(X))
	for i := range X {
		Z[i] = s.Apply(X[i])
	}
	return Z
}

// Restore is the inverse of Apply.
func (s Scaler) Restore(z []float64) []float64 {
	x := make([]float64, len(z))
	for j := range z {
		x[j] = s.Mean[j] + s.Std[j]*z[j]
	}
	return x
}

// Belief standardizes the belief over x.
func (s Scaler) Belief(b *gauss.Belief) *gauss.Belief {
	n := b.Dim()
	cov := mat.NewSymDense(n, nil)
	for i := 0; i != n; i++ {
		for j := i; j != n; j++ {
			cov.SetSym(i, j, b.Cov.At(i, j)/(s.Std[i]*s.Std[j]))
		}
	}
	return gauss.NewBelief(s.Apply(b.MeanSlice()), cov)
}

// Marginal maps a standardized mean and variance of coordinate j
// back to the original units.
func (s Scaler) Marginal(j int, mean, variance float64) (float64, float64) {
	return s.Mean[j] + s.Std[j]*mean, s.Std[j] * s.Std[j] * variance
}

// column turns a slice into a single-column table.
func column(y []float64) [][]float64 {
	X := make([][]float64, len(y))
	for i := range y {
		X[i] = []float64{y[i]}
	}
	return X
}

// col extracts column j of the rows of X.
func col(X [][]float64, j int) []float64 {
	c := make([]float64, len(X))
	for i := range X {
		c[i] = X[i][j]
	}
	return c
}

// linspace returns n points evenly covering [lo, hi].
func linspace(lo, hi float64, n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return xs
}

// marginals returns the means and the variances of a belief mapped
// back through coordinate j of s, with noiseVar added to each
// standardized variance.
func (s Scaler) marginals(j int, b *gauss.Belief, noiseVar float64) (mean, variance []float64) {
	n := b.Dim()
	mean, variance = make([]float64, n), make([]float64, n)
	for i := 0; i != n; i++ {
		mean[i], variance[i] = s.Marginal(j, b.Mean.AtVec(i), b.Var(i)+noiseVar)
	}
	return mean, variance
}
