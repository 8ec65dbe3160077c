package gauss

import (
	"gonum.org/v1/gonum/mat"
)

// Condition returns the posterior of b after observing
//
//	y = H x + v,  v ~ N(0, R).
//
// b is not modified.
func Condition(b *Belief, H mat.Matrix, R mat.Symmetric, y []float64, jitter Jitter) (*Belief, error) {
	k, n := H.Dims()
	if n != b.Dim() || R.SymmetricDim() != k || len(y) != k {
		panic(mat.ErrShape)
	}

	// Cross covariance Σ Hᵀ and innovation covariance H Σ Hᵀ + R.
	var pht mat.Dense
	pht.Mul(b.Cov, H.T())
	var hph mat.Dense
	hph.Mul(H, &pht)
	S := mat.NewSymDense(k, nil)
	for i := 0; i != k; i++ {
		for j := i; j != k; j++ {
			S.SetSym(i, j, 0.5*(hph.At(i, j)+hph.At(j, i))+R.At(i, j))
		}
	}
	chol, _, err := Factorize(S, jitter)
	if err != nil {
		return nil, err
	}

	// Gain, transposed: S⁻¹ H Σ.
	var kt mat.Dense
	Solve(chol, &kt, pht.T())

	r := mat.NewVecDense(k, nil)
	r.MulVec(H, b.Mean)
	r.SubVec(mat.NewVecDense(k, append([]float64(nil), y...)), r)

	post := b.Clone()
	post.Mean.MulVec(kt.T(), r)
	post.Mean.AddVec(post.Mean, b.Mean)

	var dec mat.Dense
	dec.Mul(&pht, &kt)
	var cov mat.Dense
	cov.Sub(b.Cov, &dec)
	post.Cov = Symmetrize(&cov)
	return post, nil
}
