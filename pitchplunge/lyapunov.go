package pitchplunge

import (
	"errors"
	"fmt"

	"bitbucket.org/dtolpin/sonig/gauss"
	"gonum.org/v1/gonum/mat"
)

var ErrNotConverged = errors.New("iteration did not converge")

// Lyapunov solves the discrete Lyapunov equation
//
//	P = Aᵀ P A + Q
//
// for a stable A by doubling: P = Σ_k (Aᵀ)^k Q A^k, summed in
// blocks of 2^i terms. For the closed loop x' = A x with stage cost
// xᵀQx, the cost-to-go from x is xᵀPx.
func Lyapunov(A mat.Matrix, Q mat.Symmetric, tol float64, maxIter int) (*mat.SymDense, error) {
	n, c := A.Dims()
	if n != c || Q.SymmetricDim() != n {
		panic(mat.ErrShape)
	}
	P := mat.NewSymDense(n, nil)
	P.CopySym(Q)
	Ak := mat.DenseCopyOf(A)
	for i := 0; i != maxIter; i++ {
		var pa, apa mat.Dense
		pa.Mul(P, Ak)
		apa.Mul(Ak.T(), &pa)
		P = gauss.Symmetrize(addDense(P, &apa))
		if mat.Norm(&apa, 1) <= tol*mat.Norm(P, 1) {
			return P, nil
		}
		var sq mat.Dense
		sq.Mul(Ak, Ak)
		Ak = &sq
	}
	return P, fmt.Errorf("%w: Lyapunov equation after %d doublings",
		ErrNotConverged, maxIter)
}

func addDense(a, b mat.Matrix) *mat.Dense {
	var s mat.Dense
	s.Add(a, b)
	return &s
}

// Value is the quadratic cost-to-go xᵀPx.
func Value(P mat.Symmetric, x []float64) float64 {
	v := mat.NewVecDense(len(x), append([]float64(nil), x...))
	return mat.Inner(v, P, v)
}
