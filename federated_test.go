package svdgo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestFederatedSVD_Fit(t *testing.T) {
	rnd := rand.New(rand.NewSource(21))
	partitions := []mat.Matrix{
		randDense(30, 10, rnd),
		randDense(20, 10, rnd),
		randDense(25, 10, rnd),
	}

	model := NewFederatedSVD(WithComponents(5))
	require.NoError(t, model.Fit(partitions))

	s, err := model.SingularValues()
	require.NoError(t, err)
	assert.Len(t, s, 5)
	for i, v := range s {
		assert.GreaterOrEqual(t, v, 0.0)
		if i > 0 {
			assert.LessOrEqual(t, v, s[i-1])
		}
	}
}

func TestFederatedSVD_AggregationIdentity(t *testing.T) {
	// The privacy-preserving trick: aggregated (count, sum, scatter)
	// statistics must reproduce the factorization of the pooled centered
	// rows without any raw row crossing the boundary. Singular values
	// and components must therefore match a direct SVD of the pooled
	// data.
	rnd := rand.New(rand.NewSource(22))
	x1 := randDense(30, 8, rnd)
	x2 := randDense(20, 8, rnd)

	pooled := mat.NewDense(50, 8, nil)
	for i := 0; i < 30; i++ {
		for j := 0; j < 8; j++ {
			pooled.Set(i, j, x1.At(i, j))
		}
	}
	for i := 0; i < 20; i++ {
		for j := 0; j < 8; j++ {
			pooled.Set(30+i, j, x2.At(i, j))
		}
	}

	model := NewFederatedSVD(WithComponents(8))
	require.NoError(t, model.Fit([]mat.Matrix{x1, x2}))

	wantS, wantVt := directTruncatedSVD(t, pooled, 8)

	s, err := model.SingularValues()
	require.NoError(t, err)
	assert.InDeltaSlice(t, wantS, s, 1e-6)

	vt, err := model.Components()
	require.NoError(t, err)
	requireRowsEqualUpToSign(t, wantVt, vt, 1e-6)

	mean, err := model.Mean()
	require.NoError(t, err)
	for j := 0; j < 8; j++ {
		var want float64
		for i := 0; i < 50; i++ {
			want += pooled.At(i, j)
		}
		want /= 50
		assert.InDelta(t, want, mean[j], 1e-12)
	}
}

func TestFederatedSVD_Transform(t *testing.T) {
	rnd := rand.New(rand.NewSource(23))
	partitions := []mat.Matrix{
		randDense(30, 10, rnd),
		randDense(20, 10, rnd),
	}

	model := NewFederatedSVD(WithComponents(5))
	require.NoError(t, model.Fit(partitions))

	scores, err := model.Transform(randDense(10, 10, rnd))
	require.NoError(t, err)
	r, c := scores.Dims()
	assert.Equal(t, 10, r)
	assert.Equal(t, 5, c)
}

func TestFederatedSVD_FitTransform(t *testing.T) {
	rnd := rand.New(rand.NewSource(24))
	partitions := []mat.Matrix{
		randDense(30, 10, rnd),
		randDense(20, 10, rnd),
	}

	model := NewFederatedSVD(WithComponents(5))
	scores, err := model.FitTransform(partitions)
	require.NoError(t, err)

	r, c := scores.Dims()
	assert.Equal(t, 50, r)
	assert.Equal(t, 5, c)
}

func TestFederatedSVD_InverseTransform(t *testing.T) {
	rnd := rand.New(rand.NewSource(25))
	partitions := []mat.Matrix{
		randDense(30, 10, rnd),
		randDense(20, 10, rnd),
	}

	model := NewFederatedSVD(WithComponents(5))
	require.NoError(t, model.Fit(partitions))

	x := randDense(10, 10, rnd)
	scores, err := model.Transform(x)
	require.NoError(t, err)
	rec, err := model.InverseTransform(scores)
	require.NoError(t, err)

	r, c := rec.Dims()
	assert.Equal(t, 10, r)
	assert.Equal(t, 10, c)
}

func TestFederatedSVD_ExplainedVarianceRatio(t *testing.T) {
	rnd := rand.New(rand.NewSource(26))
	partitions := []mat.Matrix{
		randDense(50, 10, rnd),
		randDense(50, 10, rnd),
	}

	model := NewFederatedSVD(WithComponents(5))
	require.NoError(t, model.Fit(partitions))

	ratio, err := model.ExplainedVarianceRatio()
	require.NoError(t, err)
	require.Len(t, ratio, 5)
	for _, v := range ratio {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestFederatedSVD_PrivacyBudget(t *testing.T) {
	model := NewFederatedSVD(WithComponents(5))

	budget := model.PrivacyBudget()
	assert.False(t, budget.RawDataShared)
	assert.NotEmpty(t, budget.Method)
	assert.NotEmpty(t, budget.DataSharing)
	assert.NotEmpty(t, budget.PrivacyLevel)
}

func TestFederatedSVD_Iterations(t *testing.T) {
	rnd := rand.New(rand.NewSource(27))
	partitions := []mat.Matrix{
		randDense(30, 10, rnd),
		randDense(20, 10, rnd),
	}

	model := NewFederatedSVD(WithComponents(5), WithIterations(20))
	require.NoError(t, model.Fit(partitions))

	assert.Equal(t, 20, model.Iterations())

	s, err := model.SingularValues()
	require.NoError(t, err)
	assert.Len(t, s, 5)
}

func TestFederatedSVD_ComponentCap(t *testing.T) {
	// Fewer samples than features: retained components are capped at the
	// sample count even though the scatter matrix has feature-count
	// eigenpairs.
	rnd := rand.New(rand.NewSource(28))
	x := randDense(6, 10, rnd)

	model := NewFederatedSVD()
	require.NoError(t, model.Fit([]mat.Matrix{x}))

	s, err := model.SingularValues()
	require.NoError(t, err)
	assert.Len(t, s, 6)
}

func TestFederatedSVD_Errors(t *testing.T) {
	rnd := rand.New(rand.NewSource(29))

	t.Run("FeatureMismatch", func(t *testing.T) {
		model := NewFederatedSVD()
		err := model.Fit([]mat.Matrix{
			randDense(10, 5, rnd),
			randDense(10, 6, rnd),
		})
		var mismatch *ErrShapeMismatch
		require.ErrorAs(t, err, &mismatch)
	})

	t.Run("NoSamples", func(t *testing.T) {
		model := NewFederatedSVD()
		err := model.Fit(nil)
		var degenerate *ErrDegenerateInput
		require.ErrorAs(t, err, &degenerate)
	})

	t.Run("Unfitted", func(t *testing.T) {
		model := NewFederatedSVD()

		_, err := model.Transform(randDense(5, 5, rnd))
		assert.ErrorIs(t, err, ErrNotFitted)

		_, err = model.InverseTransform(randDense(5, 5, rnd))
		assert.ErrorIs(t, err, ErrNotFitted)

		_, err = model.ExplainedVarianceRatio()
		assert.ErrorIs(t, err, ErrNotFitted)
	})
}
