package svdgo

import (
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/svdgo/internal/matutil"
)

// DistributedSVD computes a truncated SVD over data split across
// partitions by merging per-partition factorizations.
//
// Each partition is centered by the sample-weighted global mean and
// factored locally; the component-scaled local right singular vectors
// diag(s_i)*Vt_i are stacked and factored a second time to produce the
// global singular values and right singular vectors. Global left singular
// vectors are recovered by back-projecting the pooled centered rows.
//
// Local factorizations run concurrently; the merge reduction is ordered,
// so results are deterministic for a given partition order.
//
// The back-projection divides by singular values and is ill-conditioned
// when they approach zero; see the guard described on Factorization.
type DistributedSVD struct {
	opts options

	fact *Factorization
	u    *mat.Dense // pooled samples x components
}

// NewDistributedSVD creates an unfitted model.
func NewDistributedSVD(optFns ...Option) *DistributedSVD {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	return &DistributedSVD{opts: o}
}

// Fit merges the partitions into a global truncated factorization.
//
// All partitions must share the same feature count. Nil entries denote
// empty partitions: they contribute zero rows to the global mean and are
// skipped in the local factorization step. At least one sample is
// required overall.
//
// Validation happens before any state is written: a failed Fit leaves the
// model unfitted.
func (m *DistributedSVD) Fit(partitions []mat.Matrix) error {
	p, total, err := partitionShape(partitions)
	if err != nil {
		return err
	}

	log := m.opts.logger.WithPartitions(len(partitions)).WithSamples(total).WithFeatures(p)

	// Sample-weighted global mean from per-partition row sums. This is
	// exactly the single-pass mean of the pooled rows, unlike an average
	// of per-partition means.
	mean := make([]float64, p)
	for _, x := range partitions {
		if x == nil {
			continue
		}
		for j, v := range matutil.ColSums(x) {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(total)
	}

	centered := make([]*mat.Dense, len(partitions))
	for i, x := range partitions {
		if x == nil {
			continue
		}
		centered[i] = matutil.CenterRows(x, mean)
	}

	// Local factorizations are independent; run them concurrently and
	// reduce in partition order.
	blocks := make([]*mat.Dense, len(partitions))
	var g errgroup.Group
	for i, xc := range centered {
		if xc == nil {
			continue
		}
		i, xc := i, xc
		g.Go(func() error {
			var svd mat.SVD
			if !svd.Factorize(xc, mat.SVDThin) {
				return &ErrFactorization{Op: fmt.Sprintf("distributed svd: local thin svd, partition %d", i)}
			}
			s := svd.Values(nil)
			var v mat.Dense
			svd.VTo(&v)
			var vt mat.Dense
			vt.CloneFrom(v.T())
			blocks[i] = matutil.ScaleRows(s, &vt)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	stacked := matutil.VStack(blocks)

	var svd mat.SVD
	if !svd.Factorize(stacked, mat.SVDThin) {
		return &ErrFactorization{Op: "distributed svd: merge thin svd"}
	}
	s := svd.Values(nil)
	if err := verifyDescending(s, "distributed svd: singular value order"); err != nil {
		return err
	}

	k := truncateComponents(m.opts.components, len(s), log)

	var v mat.Dense
	svd.VTo(&v)
	var vt mat.Dense
	vt.CloneFrom(v.Slice(0, p, 0, k).T())

	sT := make([]float64, k)
	copy(sT, s[:k])

	pooled := matutil.VStack(centered)
	u := backProject(pooled, &vt, sT, log)

	m.fact = newFactorization(mean, sT, &vt)
	m.u = u

	log.Debug("fit completed", "components", k)
	return nil
}

// Transform centers X by the fitted global mean and projects it onto the
// global right singular vectors.
func (m *DistributedSVD) Transform(x mat.Matrix) (*mat.Dense, error) {
	if m.fact == nil {
		return nil, ErrNotFitted
	}
	return m.fact.Transform(x)
}

// FitTransform fits the model and transforms the row-wise concatenation
// of the partitions in their given order.
func (m *DistributedSVD) FitTransform(partitions []mat.Matrix) (*mat.Dense, error) {
	if err := m.Fit(partitions); err != nil {
		return nil, err
	}
	return m.Transform(poolPartitions(partitions))
}

// InverseTransform maps component scores back to feature space. The
// reconstruction is approximate whenever components were truncated.
func (m *DistributedSVD) InverseTransform(scores mat.Matrix) (*mat.Dense, error) {
	if m.fact == nil {
		return nil, ErrNotFitted
	}
	return m.fact.InverseTransform(scores)
}

// ExplainedVarianceRatio returns the fraction of variance captured by
// each retained component.
func (m *DistributedSVD) ExplainedVarianceRatio() ([]float64, error) {
	if m.fact == nil {
		return nil, ErrNotFitted
	}
	return m.fact.ExplainedVarianceRatio()
}

// SingularValues returns the global singular values, descending.
func (m *DistributedSVD) SingularValues() ([]float64, error) {
	if m.fact == nil {
		return nil, ErrNotFitted
	}
	return m.fact.SingularValues(), nil
}

// Components returns the global right singular vectors, one per row.
func (m *DistributedSVD) Components() (*mat.Dense, error) {
	if m.fact == nil {
		return nil, ErrNotFitted
	}
	return m.fact.Components(), nil
}

// LeftSingularVectors returns a copy of the back-projected left singular
// vectors over the pooled fit-time rows (samples x components). Columns
// whose singular value fell below the back-projection guard are zero.
func (m *DistributedSVD) LeftSingularVectors() (*mat.Dense, error) {
	if m.fact == nil {
		return nil, ErrNotFitted
	}
	out := &mat.Dense{}
	out.CloneFrom(m.u)
	return out, nil
}

// Mean returns the fitted global feature mean.
func (m *DistributedSVD) Mean() ([]float64, error) {
	if m.fact == nil {
		return nil, ErrNotFitted
	}
	return m.fact.Mean(), nil
}

// partitionShape validates that all non-nil partitions share a feature
// count and that at least one sample exists, returning the feature count
// and the pooled row total.
func partitionShape(partitions []mat.Matrix) (features, total int, err error) {
	features = -1
	for _, x := range partitions {
		if x == nil {
			continue
		}
		r, c := x.Dims()
		if features == -1 {
			features = c
		} else if c != features {
			return 0, 0, &ErrShapeMismatch{What: "partition feature count", Expected: features, Actual: c}
		}
		total += r
	}
	if total == 0 {
		return 0, 0, &ErrDegenerateInput{Reason: "zero total samples"}
	}
	return features, total, nil
}
