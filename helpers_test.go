package svdgo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// randDense returns an r x c matrix of standard normal draws.
func randDense(r, c int, rnd *rand.Rand) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rnd.NormFloat64()
	}
	return mat.NewDense(r, c, data)
}

// directTruncatedSVD computes the centered thin SVD of x truncated to k
// components, as a reference for the merging estimators.
func directTruncatedSVD(t *testing.T, x *mat.Dense, k int) (s []float64, vt *mat.Dense) {
	t.Helper()

	r, c := x.Dims()
	mean := make([]float64, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			mean[j] += x.At(i, j)
		}
	}
	for j := range mean {
		mean[j] /= float64(r)
	}
	xc := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			xc.Set(i, j, x.At(i, j)-mean[j])
		}
	}

	var svd mat.SVD
	require.True(t, svd.Factorize(xc, mat.SVDThin))
	all := svd.Values(nil)

	var v mat.Dense
	svd.VTo(&v)

	s = make([]float64, k)
	copy(s, all[:k])
	vt = mat.NewDense(k, c, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < c; j++ {
			vt.Set(i, j, v.At(j, i))
		}
	}
	return s, vt
}

// requireRowsEqualUpToSign asserts that each row of got equals the
// matching row of want up to a global sign flip of that row.
func requireRowsEqualUpToSign(t *testing.T, want, got *mat.Dense, tol float64) {
	t.Helper()

	wr, wc := want.Dims()
	gr, gc := got.Dims()
	require.Equal(t, wr, gr)
	require.Equal(t, wc, gc)

	for i := 0; i < wr; i++ {
		var dot float64
		for j := 0; j < wc; j++ {
			dot += want.At(i, j) * got.At(i, j)
		}
		sign := 1.0
		if dot < 0 {
			sign = -1.0
		}
		for j := 0; j < wc; j++ {
			require.InDelta(t, want.At(i, j), sign*got.At(i, j), tol, "row %d col %d", i, j)
		}
	}
}
