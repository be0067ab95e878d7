// Package svdgo provides SVD-based dimensionality-reduction estimators for Go.
//
// Three estimators are available, all built on dense singular value
// decomposition:
//
//   - SVDEmbeddingRegression: truncated SVD embedding combined with a
//     least-squares regression in the reduced space.
//   - DistributedSVD: merges per-partition local SVDs into a global
//     factorization without a second pass over raw rows.
//   - FederatedSVD: aggregates per-partition sufficient statistics
//     (count, sum, scatter) so raw rows never cross the aggregation
//     boundary.
//
// # Quick Start
//
//	model := svdgo.NewDistributedSVD(svdgo.WithComponents(5))
//	if err := model.Fit(partitions); err != nil {
//	    log.Fatal(err)
//	}
//	scores, _ := model.Transform(X)
//	ratio, _ := model.ExplainedVarianceRatio()
//
// # Persistence
//
// Fitted models can be saved to and loaded from a modelstore.Store
// (local filesystem, in-memory, S3, MinIO):
//
//	store := modelstore.NewLocalStore("./models")
//	_ = model.Save(ctx, store, "churn-svd")
//	restored, _ := svdgo.LoadDistributedSVD(ctx, store, "churn-svd")
//
// Snapshots are self-describing: the codec and compression used at save
// time are recorded in the snapshot header and selected automatically on
// load.
//
// # Conventions
//
// Matrices follow gonum conventions: rows are samples, columns are
// features. Vectors are n-by-1 matrices. Input matrices are never
// mutated. A nil entry in a partition slice denotes an empty partition;
// it is skipped during factorization but still counts (as zero rows)
// toward global statistics.
package svdgo
