package svdgo

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestTruncateComponents(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		available int
		want      int
	}{
		{name: "KeepAllOnZero", requested: 0, available: 7, want: 7},
		{name: "KeepAllOnNegative", requested: -3, available: 7, want: 7},
		{name: "Truncate", requested: 3, available: 7, want: 3},
		{name: "ClampAboveRank", requested: 10, available: 7, want: 7},
		{name: "Exact", requested: 7, available: 7, want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncateComponents(tt.requested, tt.available, NoopLogger()))
		})
	}
}

func TestVerifyDescending(t *testing.T) {
	assert.NoError(t, verifyDescending([]float64{3, 2, 1}, "svd"))

	err := verifyDescending([]float64{1, 2}, "svd")
	var factErr *ErrFactorization
	require.ErrorAs(t, err, &factErr)
	assert.Equal(t, "svd", factErr.Op)
}

func TestBackProject_GuardsVanishingSingularValues(t *testing.T) {
	// Rank-1 data: the second singular value vanishes and its column must
	// come back zeroed, never NaN or Inf.
	xc := mat.NewDense(4, 2, []float64{
		1, 2,
		2, 4,
		-1, -2,
		-2, -4,
	})

	svd := new(mat.SVD)
	require.True(t, svd.Factorize(xc, mat.SVDThin))
	s := svd.Values(nil)

	var v mat.Dense
	svd.VTo(&v)
	vt := mat.DenseCopyOf(v.T())

	u := backProject(xc, vt, s, NoopLogger())
	r, c := u.Dims()
	require.Equal(t, 4, r)
	require.Equal(t, 2, c)

	for i := 0; i < r; i++ {
		assert.Zero(t, u.At(i, 1))
		assert.False(t, math.IsNaN(u.At(i, 0)))
	}

	// The surviving column is a unit vector.
	var norm float64
	for i := 0; i < r; i++ {
		norm += u.At(i, 0) * u.At(i, 0)
	}
	assert.InDelta(t, 1.0, norm, 1e-12)
}

func TestFactorization_Copies(t *testing.T) {
	rnd := rand.New(rand.NewSource(41))
	partitions := []mat.Matrix{randDense(20, 5, rnd)}

	model := NewDistributedSVD(WithComponents(3))
	require.NoError(t, model.Fit(partitions))

	s1, err := model.SingularValues()
	require.NoError(t, err)
	s1[0] = -99

	s2, err := model.SingularValues()
	require.NoError(t, err)
	assert.Greater(t, s2[0], 0.0)

	mean1, err := model.Mean()
	require.NoError(t, err)
	mean1[0] = 12345

	mean2, err := model.Mean()
	require.NoError(t, err)
	assert.NotEqual(t, 12345.0, mean2[0])

	vt1, err := model.Components()
	require.NoError(t, err)
	vt1.Set(0, 0, 12345)

	vt2, err := model.Components()
	require.NoError(t, err)
	assert.NotEqual(t, 12345.0, vt2.At(0, 0))
}
