package svdgo

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/svdgo/internal/matutil"
)

// backProjectionGuard is the relative singular-value threshold below which
// back-projection skips the division. Dividing by a vanishing singular
// value amplifies floating-point noise without bound; affected score
// columns are zeroed instead and a warning is logged.
const backProjectionGuard = 1e-12

// Factorization is a truncated SVD factorization shared by the partition
// estimators: a feature mean, singular values in descending order and the
// matching right singular vectors. It is valid by construction; the
// estimators gate access behind their own fitted checks.
type Factorization struct {
	mean []float64
	s    []float64
	vt   *mat.Dense // components x features, orthonormal rows
}

func newFactorization(mean, s []float64, vt *mat.Dense) *Factorization {
	return &Factorization{mean: mean, s: s, vt: vt}
}

// NumComponents returns the number of retained components.
func (f *Factorization) NumComponents() int { return len(f.s) }

// NumFeatures returns the feature dimensionality.
func (f *Factorization) NumFeatures() int {
	_, p := f.vt.Dims()
	return p
}

// Mean returns a copy of the feature-space mean vector.
func (f *Factorization) Mean() []float64 {
	out := make([]float64, len(f.mean))
	copy(out, f.mean)
	return out
}

// SingularValues returns a copy of the singular values, descending.
func (f *Factorization) SingularValues() []float64 {
	out := make([]float64, len(f.s))
	copy(out, f.s)
	return out
}

// Components returns a copy of the right singular vectors, one component
// per row (components x features).
func (f *Factorization) Components() *mat.Dense {
	out := &mat.Dense{}
	out.CloneFrom(f.vt)
	return out
}

// Transform centers X by the stored mean and projects it onto the right
// singular vectors, returning component scores (samples x components).
func (f *Factorization) Transform(x mat.Matrix) (*mat.Dense, error) {
	_, c := x.Dims()
	if p := f.NumFeatures(); c != p {
		return nil, &ErrShapeMismatch{What: "feature count", Expected: p, Actual: c}
	}
	xc := matutil.CenterRows(x, f.mean)
	var scores mat.Dense
	scores.Mul(xc, f.vt.T())
	return &scores, nil
}

// InverseTransform maps component scores back to the original feature
// space and re-adds the mean. The reconstruction is lossy whenever the
// factorization is truncated below full rank.
func (f *Factorization) InverseTransform(scores mat.Matrix) (*mat.Dense, error) {
	_, c := scores.Dims()
	if k := f.NumComponents(); c != k {
		return nil, &ErrShapeMismatch{What: "component count", Expected: k, Actual: c}
	}
	var x mat.Dense
	x.Mul(scores, f.vt)
	return matutil.AddToRows(&x, f.mean), nil
}

// ExplainedVarianceRatio returns the squared singular values divided by
// their sum. The entries are in [0, 1] and sum to 1 when the
// factorization retains full rank.
func (f *Factorization) ExplainedVarianceRatio() ([]float64, error) {
	var total float64
	for _, v := range f.s {
		total += v * v
	}
	if total == 0 {
		return nil, &ErrDegenerateInput{Reason: "zero total variance"}
	}
	ratio := make([]float64, len(f.s))
	for i, v := range f.s {
		ratio[i] = v * v / total
	}
	return ratio, nil
}

// truncateComponents clamps the requested component count against the
// available rank. requested <= 0 keeps everything.
func truncateComponents(requested, available int, logger *Logger) int {
	if requested <= 0 || requested >= available {
		if requested > available {
			logger.Debug("component request clamped",
				"requested", requested,
				"available", available,
			)
		}
		return available
	}
	return requested
}

// verifyDescending checks the documented descending-order contract of the
// upstream SVD before any truncation relies on it.
func verifyDescending(s []float64, op string) error {
	if !matutil.IsDescending(s) {
		return &ErrFactorization{Op: op}
	}
	return nil
}

// backProject recovers left singular vectors from pooled centered rows:
// U = Xc * Vt^T / s, column-wise. Columns whose singular value falls at
// or below the guard threshold are zeroed rather than divided through.
func backProject(xc *mat.Dense, vt *mat.Dense, s []float64, logger *Logger) *mat.Dense {
	var u mat.Dense
	u.Mul(xc, vt.T())

	guard := 0.0
	if len(s) > 0 {
		guard = s[0] * backProjectionGuard
	}
	n, _ := xc.Dims()
	for j, sv := range s {
		if sv <= guard {
			logger.Warn("near-zero singular value, zeroing back-projected column",
				"column", j,
				"singular_value", sv,
			)
			for i := 0; i < n; i++ {
				u.Set(i, j, 0)
			}
			continue
		}
		inv := 1 / sv
		for i := 0; i < n; i++ {
			u.Set(i, j, u.At(i, j)*inv)
		}
	}
	return &u
}

// clampNonNegative zeroes tiny negative values introduced by
// floating-point error before square roots are taken.
func clampNonNegative(v []float64) {
	for i := range v {
		if v[i] < 0 {
			v[i] = 0
		}
	}
}

// sqrtAll replaces each entry with its square root.
func sqrtAll(v []float64) {
	for i := range v {
		v[i] = math.Sqrt(v[i])
	}
}

// poolPartitions concatenates all non-nil partitions row-wise in their
// given order.
func poolPartitions(partitions []mat.Matrix) *mat.Dense {
	blocks := make([]*mat.Dense, 0, len(partitions))
	for _, x := range partitions {
		if x == nil {
			continue
		}
		var d mat.Dense
		d.CloneFrom(x)
		blocks = append(blocks, &d)
	}
	return matutil.VStack(blocks)
}
