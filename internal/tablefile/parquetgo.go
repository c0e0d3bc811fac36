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
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/cardinalhq/framefeed/internal/fileprovider"
)

type parquetGoOpener struct{}

// NewParquetGoOpener reads files with parquet-go, page by page.
func NewParquetGoOpener() Opener {
	return parquetGoOpener{}
}

func (parquetGoOpener) Engine() string { return EngineParquetGo }

func (parquetGoOpener) Open(ctx context.Context, h fileprovider.Handle) (File, error) {
	src, err := h.Open(ctx)
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(src, h.Size(),
		parquet.SkipPageIndex(true),
		parquet.SkipBloomFilters(true),
	)
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("failed to open parquet file %s: %w", h.Path(), err)
	}
	return &parquetGoFile{
		pf:     pf,
		src:    src,
		index:  h.Index(),
		schema: parquetGoSchema(pf.Schema()),
	}, nil
}

func parquetGoSchema(s *parquet.Schema) Schema {
	type leaf struct {
		index int
		field Field
	}
	var leaves []leaf
	for _, path := range s.Columns() {
		col, ok := s.Lookup(path...)
		if !ok {
			continue
		}
		leaves = append(leaves, leaf{
			index: col.ColumnIndex,
			field: Field{Name: strings.Join(path, "."), Type: fromParquetGoKind(col.Node.Type().Kind())},
		})
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].index < leaves[j].index })
	fields := make(Schema, len(leaves))
	for i, l := range leaves {
		fields[i] = l.field
	}
	return fields
}

func fromParquetGoKind(k parquet.Kind) PhysicalType {
	switch k {
	case parquet.Boolean:
		return TypeBoolean
	case parquet.Int32:
		return TypeInt32
	case parquet.Int64:
		return TypeInt64
	case parquet.Int96:
		return TypeInt96
	case parquet.Float:
		return TypeFloat
	case parquet.Double:
		return TypeDouble
	case parquet.ByteArray:
		return TypeByteArray
	case parquet.FixedLenByteArray:
		return TypeFixedLenByteArray
	default:
		return TypeUnknown
	}
}

type parquetGoFile struct {
	pf     *parquet.File
	src    fileprovider.File
	index  int
	schema Schema
}

func (f *parquetGoFile) NumRowGroups() int { return len(f.pf.RowGroups()) }

func (f *parquetGoFile) Schema() Schema { return f.schema }

func (f *parquetGoFile) RowGroupNumRows(rowGroup int) (int64, error) {
	if err := checkRowGroup(f.index, rowGroup, f.NumRowGroups()); err != nil {
		return 0, err
	}
	return f.pf.RowGroups()[rowGroup].NumRows(), nil
}

func (f *parquetGoFile) Column(rowGroup, column int) (ColumnStream, error) {
	if err := checkRowGroup(f.index, rowGroup, f.NumRowGroups()); err != nil {
		return nil, err
	}
	if err := checkColumn(f.index, rowGroup, column, len(f.schema)); err != nil {
		return nil, err
	}
	chunk := f.pf.RowGroups()[rowGroup].ColumnChunks()[column]
	switch typ := f.schema[column].Type; typ {
	case TypeInt32:
		return newPageStream(typ, chunk, parquet.Value.Int32), nil
	case TypeFloat:
		return newPageStream(typ, chunk, parquet.Value.Float), nil
	case TypeDouble:
		return newPageStream(typ, chunk, parquet.Value.Double), nil
	default:
		return opaqueStream{typ: typ}, nil
	}
}

func (f *parquetGoFile) Close() error {
	return f.src.Close()
}

// pageStream walks the pages of one column chunk. Null entries, which is how
// empty repeated slots surface, count as levels but produce no value.
type pageStream[T Numeric] struct {
	typ    PhysicalType
	chunk  parquet.ColumnChunk
	pages  parquet.Pages
	page   parquet.Page
	values parquet.ValueReader
	buf    []parquet.Value
	conv   func(parquet.Value) T
	done   bool
}

func newPageStream[T Numeric](typ PhysicalType, chunk parquet.ColumnChunk, conv func(parquet.Value) T) *pageStream[T] {
	return &pageStream[T]{typ: typ, chunk: chunk, conv: conv}
}

func (s *pageStream[T]) PhysicalType() PhysicalType { return s.typ }

func (s *pageStream[T]) ReadBatch(dst []T) (int64, int, error) {
	if s.done || len(dst) == 0 {
		return 0, 0, nil
	}
	if s.pages == nil {
		s.pages = s.chunk.Pages()
	}
	if len(s.buf) < len(dst) {
		s.buf = make([]parquet.Value, len(dst))
	}
	buf := s.buf[:len(dst)]

	for {
		if s.values == nil {
			page, err := s.pages.ReadPage()
			if errors.Is(err, io.EOF) {
				return 0, 0, s.Close()
			}
			if err != nil {
				return 0, 0, fmt.Errorf("read page: %w", err)
			}
			s.page = page
			s.values = page.Values()
		}

		n, err := s.values.ReadValues(buf)
		values := 0
		for _, v := range buf[:n] {
			if v.IsNull() {
				continue
			}
			dst[values] = s.conv(v)
			values++
		}
		switch {
		case errors.Is(err, io.EOF):
			s.releasePage()
		case err != nil:
			return int64(n), values, fmt.Errorf("read values: %w", err)
		}
		if n > 0 {
			return int64(n), values, nil
		}
	}
}

func (s *pageStream[T]) releasePage() {
	if s.page != nil {
		parquet.Release(s.page)
	}
	s.page = nil
	s.values = nil
}

func (s *pageStream[T]) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	s.releasePage()
	if s.pages == nil {
		return nil
	}
	return s.pages.Close()
}
