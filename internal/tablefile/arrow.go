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

package tablefile

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/framefeed/internal/fileprovider"
	"github.com/cardinalhq/framefeed/internal/frameerr"
)

type arrowOpener struct {
	alloc memory.Allocator
}

// NewArrowOpener reads files with the arrow-go parquet column readers.
// Page buffers come from alloc.
func NewArrowOpener(alloc memory.Allocator) Opener {
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	return &arrowOpener{alloc: alloc}
}

func (o *arrowOpener) Engine() string { return EngineArrow }

func (o *arrowOpener) Open(ctx context.Context, h fileprovider.Handle) (File, error) {
	src, err := h.Open(ctx)
	if err != nil {
		return nil, err
	}
	pf, err := file.NewParquetReader(src, file.WithReadProps(parquet.NewReaderProperties(o.alloc)))
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("failed to open parquet file %s: %w", h.Path(), err)
	}
	return &arrowFile{
		pf:     pf,
		src:    src,
		index:  h.Index(),
		schema: arrowSchema(pf),
	}, nil
}

func arrowSchema(pf *file.Reader) Schema {
	sc := pf.MetaData().Schema
	fields := make(Schema, sc.NumColumns())
	for i := range fields {
		col := sc.Column(i)
		fields[i] = Field{
			Name: col.ColumnPath().String(),
			Type: fromArrowType(col.PhysicalType()),
		}
	}
	return fields
}

func fromArrowType(t parquet.Type) PhysicalType {
	switch t {
	case parquet.Types.Boolean:
		return TypeBoolean
	case parquet.Types.Int32:
		return TypeInt32
	case parquet.Types.Int64:
		return TypeInt64
	case parquet.Types.Int96:
		return TypeInt96
	case parquet.Types.Float:
		return TypeFloat
	case parquet.Types.Double:
		return TypeDouble
	case parquet.Types.ByteArray:
		return TypeByteArray
	case parquet.Types.FixedLenByteArray:
		return TypeFixedLenByteArray
	default:
		return TypeUnknown
	}
}

type arrowFile struct {
	pf     *file.Reader
	src    fileprovider.File
	index  int
	schema Schema
}

func (f *arrowFile) NumRowGroups() int { return f.pf.NumRowGroups() }

func (f *arrowFile) Schema() Schema { return f.schema }

func (f *arrowFile) RowGroupNumRows(rowGroup int) (int64, error) {
	if err := checkRowGroup(f.index, rowGroup, f.NumRowGroups()); err != nil {
		return 0, err
	}
	return f.pf.RowGroup(rowGroup).NumRows(), nil
}

func (f *arrowFile) Column(rowGroup, column int) (ColumnStream, error) {
	if err := checkRowGroup(f.index, rowGroup, f.NumRowGroups()); err != nil {
		return nil, err
	}
	if err := checkColumn(f.index, rowGroup, column, len(f.schema)); err != nil {
		return nil, err
	}
	cr, err := f.pf.RowGroup(rowGroup).Column(column)
	if err != nil {
		return nil, fmt.Errorf("column %d of row group %d: %w", column, rowGroup, err)
	}
	switch r := cr.(type) {
	case *file.Int32ColumnChunkReader:
		return &arrowStream[int32]{typ: TypeInt32, read: r.ReadBatch}, nil
	case *file.Float32ColumnChunkReader:
		return &arrowStream[float32]{typ: TypeFloat, read: r.ReadBatch}, nil
	case *file.Float64ColumnChunkReader:
		return &arrowStream[float64]{typ: TypeDouble, read: r.ReadBatch}, nil
	default:
		return opaqueStream{typ: f.schema[column].Type}, nil
	}
}

func (f *arrowFile) Close() error {
	var errs *multierror.Error
	if err := f.pf.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := f.src.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// arrowStream adapts a typed arrow column chunk reader. The definition and
// repetition level buffers are scratch space reused across calls.
type arrowStream[T Numeric] struct {
	typ  PhysicalType
	read func(batchSize int64, values []T, defLvls, repLvls []int16) (int64, int, error)
	def  []int16
	rep  []int16
}

func (s *arrowStream[T]) PhysicalType() PhysicalType { return s.typ }

func (s *arrowStream[T]) ReadBatch(dst []T) (int64, int, error) {
	if len(dst) == 0 {
		return 0, 0, nil
	}
	if len(s.def) < len(dst) {
		s.def = make([]int16, len(dst))
		s.rep = make([]int16, len(dst))
	}
	return s.read(int64(len(dst)), dst, s.def[:len(dst)], s.rep[:len(dst)])
}

func (s *arrowStream[T]) Close() error { return nil }

// opaqueStream stands in for columns of a type that cannot be decoded as
// numbers; callers reject it by PhysicalType.
type opaqueStream struct {
	typ PhysicalType
}

func (s opaqueStream) PhysicalType() PhysicalType { return s.typ }
func (s opaqueStream) Close() error               { return nil }

func checkRowGroup(fileIndex, rowGroup, n int) error {
	if rowGroup < 0 || rowGroup >= n {
		return frameerr.New(frameerr.ErrIndexOutOfRange, frameerr.FileLocation(fileIndex, ""),
			"row group %d not in [0, %d)", rowGroup, n)
	}
	return nil
}

func checkColumn(fileIndex, rowGroup, column, n int) error {
	if column < 0 || column >= n {
		return frameerr.New(frameerr.ErrIndexOutOfRange, frameerr.ColumnLocation(fileIndex, rowGroup, column),
			"column not in [0, %d)", n)
	}
	return nil
}
