package svdgo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/svdgo/codec"
	"github.com/hupe1980/svdgo/modelstore"
)

// ErrInvalidSnapshot is returned when snapshot bytes cannot be decoded:
// wrong magic, unsupported format version, unknown codec or compression,
// or a snapshot of a different estimator kind.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Compression selects the snapshot body compression algorithm.
type Compression uint8

const (
	// CompressionNone stores the snapshot body uncompressed.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 framing (fast, moderate ratio).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstandard (better ratio, slightly slower).
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// Snapshot container layout:
//
//	[0:4]  magic "SVDG"
//	[4]    format version
//	[5]    compression
//	[6]    codec name length
//	[7:..] codec name
//	[..:]  body (codec-encoded, optionally compressed)
var snapshotMagic = [4]byte{'S', 'V', 'D', 'G'}

const snapshotFormatVersion = 1

// denseSnapshot is the wire form of a dense matrix, row-major.
type denseSnapshot struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

func newDenseSnapshot(m *mat.Dense) denseSnapshot {
	r, c := m.Dims()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data = append(data, m.At(i, j))
		}
	}
	return denseSnapshot{Rows: r, Cols: c, Data: data}
}

func (d denseSnapshot) matrix() (*mat.Dense, error) {
	if d.Rows <= 0 || d.Cols <= 0 || len(d.Data) != d.Rows*d.Cols {
		return nil, fmt.Errorf("%w: matrix with %d entries, dims %dx%d", ErrInvalidSnapshot, len(d.Data), d.Rows, d.Cols)
	}
	return mat.NewDense(d.Rows, d.Cols, d.Data), nil
}

type factorizationSnapshot struct {
	Mean           []float64     `json:"mean"`
	SingularValues []float64     `json:"singular_values"`
	Components     denseSnapshot `json:"components"`
}

func newFactorizationSnapshot(f *Factorization) factorizationSnapshot {
	return factorizationSnapshot{
		Mean:           f.Mean(),
		SingularValues: f.SingularValues(),
		Components:     newDenseSnapshot(f.vt),
	}
}

func (s factorizationSnapshot) factorization() (*Factorization, error) {
	vt, err := s.Components.matrix()
	if err != nil {
		return nil, err
	}
	r, c := vt.Dims()
	if len(s.SingularValues) != r || len(s.Mean) != c {
		return nil, fmt.Errorf("%w: inconsistent factorization dimensions", ErrInvalidSnapshot)
	}
	if !verifySnapshotOrder(s.SingularValues) {
		return nil, fmt.Errorf("%w: singular values not descending", ErrInvalidSnapshot)
	}
	return newFactorization(s.Mean, s.SingularValues, vt), nil
}

func verifySnapshotOrder(s []float64) bool {
	for i, v := range s {
		if v < 0 {
			return false
		}
		if i > 0 && v > s[i-1] {
			return false
		}
	}
	return true
}

const (
	kindEmbeddingRegression = "svd_embedding_regression"
	kindDistributed         = "distributed_svd"
	kindFederated           = "federated_svd"
)

type modelSnapshot struct {
	Kind          string                `json:"kind"`
	Factorization factorizationSnapshot `json:"factorization"`
	U             denseSnapshot         `json:"u"`
	TargetMean    []float64             `json:"target_mean,omitempty"`
	Weights       *denseSnapshot        `json:"weights,omitempty"`
	Iterations    int                   `json:"iterations,omitempty"`
}

func encodeSnapshot(snap *modelSnapshot, c codec.Codec, compression Compression) ([]byte, error) {
	body, err := c.Marshal(snap)
	if err != nil {
		return nil, err
	}
	body, err = compressBody(body, compression)
	if err != nil {
		return nil, err
	}

	name := c.Name()
	if len(name) > 255 {
		return nil, fmt.Errorf("codec name too long: %s", name)
	}

	var buf bytes.Buffer
	buf.Write(snapshotMagic[:])
	buf.WriteByte(snapshotFormatVersion)
	buf.WriteByte(byte(compression))
	buf.WriteByte(byte(len(name)))
	buf.WriteString(name)
	buf.Write(body)
	return buf.Bytes(), nil
}

func decodeSnapshot(data []byte, kind string) (*modelSnapshot, error) {
	if len(data) < 7 || !bytes.Equal(data[:4], snapshotMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidSnapshot)
	}
	if data[4] != snapshotFormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrInvalidSnapshot, data[4])
	}
	compression := Compression(data[5])
	nameLen := int(data[6])
	if len(data) < 7+nameLen {
		return nil, fmt.Errorf("%w: truncated header", ErrInvalidSnapshot)
	}
	codecName := string(data[7 : 7+nameLen])
	c, ok := codec.ByName(codecName)
	if !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", ErrInvalidSnapshot, codecName)
	}

	body, err := decompressBody(data[7+nameLen:], compression)
	if err != nil {
		return nil, err
	}

	var snap modelSnapshot
	if err := c.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if snap.Kind != kind {
		return nil, fmt.Errorf("%w: snapshot kind %q, want %q", ErrInvalidSnapshot, snap.Kind, kind)
	}
	return &snap, nil
}

func compressBody(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionZSTD:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("unsupported compression: %s", c)
	}
}

func decompressBody(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrInvalidSnapshot, err)
		}
		return out, nil
	case CompressionZSTD:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrInvalidSnapshot, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown compression %s", ErrInvalidSnapshot, c)
	}
}

// Save writes a snapshot of the fitted model to the store.
func (m *SVDEmbeddingRegression) Save(ctx context.Context, store modelstore.Store, name string) error {
	if m.fact == nil {
		return ErrNotFitted
	}
	weights := newDenseSnapshot(m.weights)
	snap := &modelSnapshot{
		Kind:          kindEmbeddingRegression,
		Factorization: newFactorizationSnapshot(m.fact),
		U:             newDenseSnapshot(m.u),
		TargetMean:    append([]float64(nil), m.meanY...),
		Weights:       &weights,
	}
	return saveSnapshot(ctx, store, name, snap, m.opts)
}

// LoadSVDEmbeddingRegression restores a fitted model from the store.
// Options may configure logging; the snapshot supplies the fitted state.
func LoadSVDEmbeddingRegression(ctx context.Context, store modelstore.Store, name string, optFns ...Option) (*SVDEmbeddingRegression, error) {
	m := NewSVDEmbeddingRegression(optFns...)
	snap, err := loadSnapshot(ctx, store, name, kindEmbeddingRegression, m.opts)
	if err != nil {
		return nil, err
	}
	fact, err := snap.Factorization.factorization()
	if err != nil {
		return nil, err
	}
	if snap.Weights == nil {
		return nil, fmt.Errorf("%w: missing regression weights", ErrInvalidSnapshot)
	}
	weights, err := snap.Weights.matrix()
	if err != nil {
		return nil, err
	}
	u, err := snap.U.matrix()
	if err != nil {
		return nil, err
	}
	k := fact.NumComponents()
	wr, wc := weights.Dims()
	if wr != k {
		return nil, fmt.Errorf("%w: weights have %d rows, want %d components", ErrInvalidSnapshot, wr, k)
	}
	if len(snap.TargetMean) != wc {
		return nil, fmt.Errorf("%w: target mean length %d, want %d targets", ErrInvalidSnapshot, len(snap.TargetMean), wc)
	}
	if _, uc := u.Dims(); uc != k {
		return nil, fmt.Errorf("%w: left singular vectors have %d columns, want %d components", ErrInvalidSnapshot, uc, k)
	}
	m.fact = fact
	m.u = u
	m.meanY = snap.TargetMean
	m.weights = weights
	m.opts.components = k
	return m, nil
}

// Save writes a snapshot of the fitted model to the store.
func (m *DistributedSVD) Save(ctx context.Context, store modelstore.Store, name string) error {
	if m.fact == nil {
		return ErrNotFitted
	}
	snap := &modelSnapshot{
		Kind:          kindDistributed,
		Factorization: newFactorizationSnapshot(m.fact),
		U:             newDenseSnapshot(m.u),
	}
	return saveSnapshot(ctx, store, name, snap, m.opts)
}

// LoadDistributedSVD restores a fitted model from the store.
func LoadDistributedSVD(ctx context.Context, store modelstore.Store, name string, optFns ...Option) (*DistributedSVD, error) {
	m := NewDistributedSVD(optFns...)
	snap, err := loadSnapshot(ctx, store, name, kindDistributed, m.opts)
	if err != nil {
		return nil, err
	}
	fact, err := snap.Factorization.factorization()
	if err != nil {
		return nil, err
	}
	u, err := snap.U.matrix()
	if err != nil {
		return nil, err
	}
	if _, uc := u.Dims(); uc != fact.NumComponents() {
		return nil, fmt.Errorf("%w: left singular vectors have %d columns, want %d components", ErrInvalidSnapshot, uc, fact.NumComponents())
	}
	m.fact = fact
	m.u = u
	m.opts.components = fact.NumComponents()
	return m, nil
}

// Save writes a snapshot of the fitted model to the store.
func (m *FederatedSVD) Save(ctx context.Context, store modelstore.Store, name string) error {
	if m.fact == nil {
		return ErrNotFitted
	}
	snap := &modelSnapshot{
		Kind:          kindFederated,
		Factorization: newFactorizationSnapshot(m.fact),
		U:             newDenseSnapshot(m.u),
		Iterations:    m.opts.iterations,
	}
	return saveSnapshot(ctx, store, name, snap, m.opts)
}

// LoadFederatedSVD restores a fitted model from the store.
func LoadFederatedSVD(ctx context.Context, store modelstore.Store, name string, optFns ...Option) (*FederatedSVD, error) {
	m := NewFederatedSVD(optFns...)
	snap, err := loadSnapshot(ctx, store, name, kindFederated, m.opts)
	if err != nil {
		return nil, err
	}
	fact, err := snap.Factorization.factorization()
	if err != nil {
		return nil, err
	}
	u, err := snap.U.matrix()
	if err != nil {
		return nil, err
	}
	if _, uc := u.Dims(); uc != fact.NumComponents() {
		return nil, fmt.Errorf("%w: left singular vectors have %d columns, want %d components", ErrInvalidSnapshot, uc, fact.NumComponents())
	}
	m.fact = fact
	m.u = u
	if snap.Iterations > 0 {
		m.opts.iterations = snap.Iterations
	}
	m.opts.components = fact.NumComponents()
	return m, nil
}

func saveSnapshot(ctx context.Context, store modelstore.Store, name string, snap *modelSnapshot, o options) error {
	data, err := encodeSnapshot(snap, o.codec, o.compression)
	if err != nil {
		o.logger.LogSave(ctx, snap.Kind, name, 0, err)
		return err
	}
	if err := store.Put(ctx, name, data); err != nil {
		o.logger.LogSave(ctx, snap.Kind, name, 0, err)
		return err
	}
	o.logger.LogSave(ctx, snap.Kind, name, len(data), nil)
	return nil
}

func loadSnapshot(ctx context.Context, store modelstore.Store, name, kind string, o options) (*modelSnapshot, error) {
	data, err := store.Get(ctx, name)
	if err != nil {
		o.logger.LogLoad(ctx, kind, name, err)
		return nil, err
	}
	snap, err := decodeSnapshot(data, kind)
	o.logger.LogLoad(ctx, kind, name, err)
	if err != nil {
		return nil, err
	}
	return snap, nil
}
