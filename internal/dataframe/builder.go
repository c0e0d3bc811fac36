// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package dataframe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/framefeed/internal/frameerr"
	"github.com/cardinalhq/framefeed/internal/logctx"
	"github.com/cardinalhq/framefeed/internal/tablefile"
)

// DefaultReadBatchSize is how many values one ReadBatch call asks for.
const DefaultReadBatchSize = 1024

// Builder materializes chunks of an initialized Source.
//
// Builds of chunks in different files may run concurrently. Builds that touch
// the same file must be serialized by the caller unless the File
// implementation is reentrant.
type Builder struct {
	meta      *TableMetadata
	files     []tablefile.File
	layout    Layout
	alloc     memory.Allocator
	batchSize int
}

type BuilderOption func(*Builder)

// WithAllocator sets the allocator ChunkBuffer slots come from.
func WithAllocator(alloc memory.Allocator) BuilderOption {
	return func(b *Builder) {
		b.alloc = alloc
	}
}

// WithReadBatchSize caps values per ReadBatch call.
func WithReadBatchSize(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

func NewBuilder(src *Source, layout Layout, opts ...BuilderOption) *Builder {
	b := &Builder{
		meta:      src.Meta,
		files:     src.Files,
		layout:    layout,
		alloc:     memory.DefaultAllocator,
		batchSize: DefaultReadBatchSize,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Builder) Meta() *TableMetadata { return b.meta }

func (b *Builder) Layout() Layout { return b.layout }

// GetChunkBuffer decodes every logical column of chunk id into a new
// ChunkBuffer. On error nothing is returned and everything decoded so far is
// freed.
func (b *Builder) GetChunkBuffer(ctx context.Context, id int) (*ChunkBuffer, error) {
	start := time.Now()
	cb, err := b.build(ctx, id)

	attrs := otelmetric.WithAttributes(attribute.String("precision", b.layout.Precision.String()))
	chunkBuildDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		chunkBuildErrors.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("kind", frameerr.KindName(err))))
		return nil, err
	}
	chunksBuilt.Add(ctx, 1, attrs)
	rowsDecoded.Add(ctx, int64(cb.NumRows()), attrs)
	var values int64
	for c := range cb.NumColumns() {
		values += int64(cb.valueSlot(c).len())
	}
	valuesDecoded.Add(ctx, values, attrs)
	return cb, nil
}

func (b *Builder) build(ctx context.Context, id int) (*ChunkBuffer, error) {
	addr, err := b.meta.ResolveChunk(id)
	if err != nil {
		return nil, err
	}
	numRows, err := b.meta.NumberOfRowsInChunk(id)
	if err != nil {
		return nil, err
	}
	rowStart, err := b.meta.ChunkRowStart(id)
	if err != nil {
		return nil, err
	}
	ctx = logctx.With(ctx, logctx.ChunkAttrs(id, addr.FileIndex, addr.RowGroup)...)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := b.files[addr.FileIndex]
	cb := newChunkBuffer(addr, rowStart, int(numRows), b.layout.Precision, len(b.layout.Columns))
	ok := false
	defer func() {
		if !ok {
			cb.Release()
		}
	}()

	physical := 0
	for _, spec := range b.layout.Columns {
		switch spec.Storage {
		case Dense:
			values, err := b.decodeDense(f, addr, physical, int(numRows)*spec.Dimension)
			if err != nil {
				return nil, err
			}
			cb.addDense(spec, physical, values)
		case Sparse:
			counts, indices, values, err := b.decodeSparse(f, addr, physical, int(numRows), spec.Dimension)
			if err != nil {
				return nil, err
			}
			cb.addSparse(spec, physical, counts, indices, values)
		}
		physical += spec.Storage.PhysicalColumns()
	}

	logctx.FromContext(ctx).Debug("Built chunk",
		slog.Int("rows", cb.NumRows()),
		slog.Int("bytes", cb.SizeBytes()))
	ok = true
	return cb, nil
}

func (b *Builder) openColumn(f tablefile.File, addr ChunkAddress, column int, want tablefile.PhysicalType) (tablefile.ColumnStream, error) {
	cs, err := f.Column(addr.RowGroup, column)
	if err != nil {
		kind := frameerr.KindOf(err)
		if kind == nil {
			kind = frameerr.ErrShortRead
		}
		return nil, frameerr.Wrap(kind, frameerr.ColumnLocation(addr.FileIndex, addr.RowGroup, column), err, "open column")
	}
	got := cs.PhysicalType()
	if got == want {
		return cs, nil
	}
	_ = cs.Close()
	loc := frameerr.ColumnLocation(addr.FileIndex, addr.RowGroup, column)
	if want != tablefile.TypeInt32 && (got == tablefile.TypeFloat || got == tablefile.TypeDouble) {
		return nil, frameerr.New(frameerr.ErrTypeMismatch, loc, "declared %s precision, column stores %s", b.layout.Precision, got)
	}
	return nil, frameerr.New(frameerr.ErrUnsupportedType, loc, "column stores %s, want %s", got, want)
}

func (b *Builder) decodeDense(f tablefile.File, addr ChunkAddress, column, target int) (slot, error) {
	return b.decodeValues(f, addr, column, target)
}

func (b *Builder) decodeValues(f tablefile.File, addr ChunkAddress, column, target int) (slot, error) {
	cs, err := b.openColumn(f, addr, column, b.layout.Precision.PhysicalType())
	if err != nil {
		return slot{}, err
	}
	defer func() {
		_ = cs.Close()
	}()

	loc := frameerr.ColumnLocation(addr.FileIndex, addr.RowGroup, column)
	s := allocSlot(b.alloc, valueElem(b.layout.Precision), target)
	if b.layout.Precision == Float {
		err = readFull(cs, float32s(s), b.batchSize, loc)
	} else {
		err = readFull(cs, float64s(s), b.batchSize, loc)
	}
	if err != nil {
		s.buf.Release()
		return slot{}, err
	}
	return s, nil
}

func (b *Builder) decodeInt32(f tablefile.File, addr ChunkAddress, column, target int) (slot, error) {
	cs, err := b.openColumn(f, addr, column, tablefile.TypeInt32)
	if err != nil {
		return slot{}, err
	}
	defer func() {
		_ = cs.Close()
	}()

	s := allocSlot(b.alloc, elemInt32, target)
	if err := readFull(cs, int32s(s), b.batchSize, frameerr.ColumnLocation(addr.FileIndex, addr.RowGroup, column)); err != nil {
		s.buf.Release()
		return slot{}, err
	}
	return s, nil
}

// decodeSparse reads counts, then indices, then values; the index and value
// targets come from the counts.
func (b *Builder) decodeSparse(f tablefile.File, addr ChunkAddress, column, numRows, dim int) (counts, indices, values slot, err error) {
	release := func(slots ...slot) {
		for _, s := range slots {
			s.buf.Release()
		}
	}

	counts, err = b.decodeInt32(f, addr, column, numRows)
	if err != nil {
		return slot{}, slot{}, slot{}, err
	}
	nnz := 0
	for r, n := range int32s(counts) {
		if n < 0 {
			release(counts)
			return slot{}, slot{}, slot{}, frameerr.New(frameerr.ErrIndexOutOfRange,
				frameerr.ColumnLocation(addr.FileIndex, addr.RowGroup, column), "row %d has negative count %d", r, n)
		}
		nnz += int(n)
	}

	indices, err = b.decodeInt32(f, addr, column+1, nnz)
	if err != nil {
		release(counts)
		return slot{}, slot{}, slot{}, err
	}
	for i, idx := range int32s(indices) {
		if idx < 0 || int(idx) >= dim {
			release(counts, indices)
			return slot{}, slot{}, slot{}, frameerr.New(frameerr.ErrIndexOutOfRange,
				frameerr.ColumnLocation(addr.FileIndex, addr.RowGroup, column+1),
				"index %d at position %d not in [0, %d)", idx, i, dim)
		}
	}

	values, err = b.decodeValues(f, addr, column+2, nnz)
	if err != nil {
		release(counts, indices)
		return slot{}, slot{}, slot{}, err
	}
	return counts, indices, values, nil
}

// readFull fills dst from cs in batches of at most batch values. It stops
// when dst is full or a call makes no progress; anything short of len(dst)
// is a short read.
func readFull[T tablefile.Numeric](cs tablefile.ColumnStream, dst []T, batch int, loc frameerr.Location) error {
	r, ok := cs.(tablefile.BatchReader[T])
	if !ok {
		return frameerr.New(frameerr.ErrUnsupportedType, loc, "column of type %s cannot be decoded as %T", cs.PhysicalType(), *new(T))
	}

	total := 0
	for total < len(dst) {
		end := min(total+batch, len(dst))
		levels, n, err := r.ReadBatch(dst[total:end])
		if err != nil {
			return frameerr.Wrap(frameerr.ErrShortRead, loc, err, fmt.Sprintf("read failed after %d of %d values", total, len(dst)))
		}
		if levels == 0 && n == 0 {
			break
		}
		total += n
	}
	if total != len(dst) {
		return frameerr.New(frameerr.ErrShortRead, loc, "read %d of %d values", total, len(dst))
	}
	return nil
}
