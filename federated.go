package svdgo

import (
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/svdgo/internal/matutil"
)

// FederatedSVD computes a truncated SVD from per-partition sufficient
// statistics so that raw rows never cross the aggregation boundary.
//
// Each partition contributes only its row count, column-sum vector and
// raw scatter matrix X^T*X. The aggregate scatter minus
// count*outer(mean, mean) reproduces the scatter of the pooled centered
// rows exactly (up to floating-point error); its symmetric
// eigendecomposition yields the singular values and right singular
// vectors.
//
// Left singular vectors are recovered by pooling the partition rows and
// back-projecting. A production deployment would have each partition
// compute its own slice of that projection locally instead of pooling;
// the pooled computation here is equivalent and keeps the type
// self-contained.
//
// The configured iteration count is stored and reported but the
// aggregation itself is a single pass; no iterative refinement is
// performed.
type FederatedSVD struct {
	opts options

	fact *Factorization
	u    *mat.Dense
}

// NewFederatedSVD creates an unfitted model.
func NewFederatedSVD(optFns ...Option) *FederatedSVD {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	return &FederatedSVD{opts: o}
}

// partitionStats are the sufficient statistics a partition shares with
// the aggregator.
type partitionStats struct {
	rows    int
	sum     []float64
	scatter *mat.Dense // features x features, X^T * X
}

func computePartitionStats(x mat.Matrix) *partitionStats {
	r, _ := x.Dims()
	var scatter mat.Dense
	scatter.Mul(x.T(), x)
	return &partitionStats{
		rows:    r,
		sum:     matutil.ColSums(x),
		scatter: &scatter,
	}
}

// Fit aggregates per-partition statistics into a global centered scatter
// matrix and eigendecomposes it.
//
// All partitions must share the same feature count. Nil entries denote
// empty partitions and contribute nothing. At least one sample is
// required overall.
//
// Validation happens before any state is written: a failed Fit leaves the
// model unfitted.
func (m *FederatedSVD) Fit(partitions []mat.Matrix) error {
	p, total, err := partitionShape(partitions)
	if err != nil {
		return err
	}

	log := m.opts.logger.WithPartitions(len(partitions)).WithSamples(total).WithFeatures(p)

	// Local statistics are independent; compute them concurrently and
	// reduce in partition order. The reduction is a plain sum, so any
	// grouping would give the same result; ordered reduction keeps the
	// floating-point rounding deterministic.
	stats := make([]*partitionStats, len(partitions))
	var g errgroup.Group
	for i, x := range partitions {
		if x == nil {
			continue
		}
		i, x := i, x
		g.Go(func() error {
			stats[i] = computePartitionStats(x)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	mean := make([]float64, p)
	scatter := mat.NewDense(p, p, nil)
	for _, st := range stats {
		if st == nil {
			continue
		}
		for j, v := range st.sum {
			mean[j] += v
		}
		scatter.Add(scatter, st.scatter)
	}
	for j := range mean {
		mean[j] /= float64(total)
	}

	// Centering identity: scatter - n*outer(mean, mean) equals the
	// scatter of the pooled centered rows.
	sym := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			sym.SetSym(i, j, scatter.At(i, j)-float64(total)*mean[i]*mean[j])
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return &ErrFactorization{Op: "federated svd: symmetric eigendecomposition"}
	}

	// EigenSym returns eigenvalues in ascending order; reverse into the
	// descending order the factorization contract requires.
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	available := p
	if total < available {
		available = total
	}

	desc := make([]float64, available)
	vt := mat.NewDense(available, p, nil)
	for i := 0; i < available; i++ {
		src := p - 1 - i
		desc[i] = vals[src]
		for j := 0; j < p; j++ {
			vt.Set(i, j, vecs.At(j, src))
		}
	}
	clampNonNegative(desc)
	sqrtAll(desc)

	k := truncateComponents(m.opts.components, available, log)
	sT := desc[:k]
	vtT := vt.Slice(0, k, 0, p).(*mat.Dense)

	pooled := matutil.CenterRows(poolPartitions(partitions), mean)
	u := backProject(pooled, vtT, sT, log)

	m.fact = newFactorization(mean, sT, vtT)
	m.u = u

	log.Debug("fit completed", "components", k)
	return nil
}

// Transform centers X by the fitted global mean and projects it onto the
// retained right singular vectors.
func (m *FederatedSVD) Transform(x mat.Matrix) (*mat.Dense, error) {
	if m.fact == nil {
		return nil, ErrNotFitted
	}
	return m.fact.Transform(x)
}

// FitTransform fits the model and transforms the row-wise concatenation
// of the partitions in their given order.
func (m *FederatedSVD) FitTransform(partitions []mat.Matrix) (*mat.Dense, error) {
	if err := m.Fit(partitions); err != nil {
		return nil, err
	}
	return m.Transform(poolPartitions(partitions))
}

// InverseTransform maps component scores back to feature space. The
// reconstruction is approximate whenever components were truncated.
func (m *FederatedSVD) InverseTransform(scores mat.Matrix) (*mat.Dense, error) {
	if m.fact == nil {
		return nil, ErrNotFitted
	}
	return m.fact.InverseTransform(scores)
}

// ExplainedVarianceRatio returns the fraction of variance captured by
// each retained component.
func (m *FederatedSVD) ExplainedVarianceRatio() ([]float64, error) {
	if m.fact == nil {
		return nil, ErrNotFitted
	}
	return m.fact.ExplainedVarianceRatio()
}

// SingularValues returns the singular values, descending.
func (m *FederatedSVD) SingularValues() ([]float64, error) {
	if m.fact == nil {
		return nil, ErrNotFitted
	}
	return m.fact.SingularValues(), nil
}

// Components returns the retained right singular vectors, one per row.
func (m *FederatedSVD) Components() (*mat.Dense, error) {
	if m.fact == nil {
		return nil, ErrNotFitted
	}
	return m.fact.Components(), nil
}

// LeftSingularVectors returns a copy of the back-projected left singular
// vectors over the pooled fit-time rows (samples x components). Columns
// whose singular value fell below the back-projection guard are zero.
func (m *FederatedSVD) LeftSingularVectors() (*mat.Dense, error) {
	if m.fact == nil {
		return nil, ErrNotFitted
	}
	out := &mat.Dense{}
	out.CloneFrom(m.u)
	return out, nil
}

// Mean returns the fitted global feature mean.
func (m *FederatedSVD) Mean() ([]float64, error) {
	if m.fact == nil {
		return nil, ErrNotFitted
	}
	return m.fact.Mean(), nil
}

// Iterations returns the configured federated iteration count. The value
// is informational; see the type documentation.
func (m *FederatedSVD) Iterations() int {
	return m.opts.iterations
}

// PrivacyBudget describes what a federated fit shares across the
// aggregation boundary. It is a qualitative record, not a quantified
// differential-privacy guarantee.
type PrivacyBudget struct {
	Method        string `json:"method"`
	DataSharing   string `json:"data_sharing"`
	RawDataShared bool   `json:"raw_data_shared"`
	PrivacyLevel  string `json:"privacy_level"`
}

// PrivacyBudget returns the fixed privacy record for this method.
func (m *FederatedSVD) PrivacyBudget() PrivacyBudget {
	return PrivacyBudget{
		Method:        "federated statistics aggregation",
		DataSharing:   "aggregated statistics only (row count, feature sums, scatter matrix)",
		RawDataShared: false,
		PrivacyLevel:  "high: raw rows never leave their partition",
	}
}
