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

// Package tablefile is the table-file reading capability: given an open source
// file it enumerates row groups and their row counts, reports the physical
// schema, and yields typed value streams per row group and column.
package tablefile

import (
	"context"
	"fmt"
	"strings"

	"github.com/cardinalhq/framefeed/internal/fileprovider"
)

// PhysicalType is the on-disk storage type of a leaf column.
type PhysicalType int

const (
	TypeUnknown PhysicalType = iota
	TypeBoolean
	TypeInt32
	TypeInt64
	TypeInt96
	TypeFloat
	TypeDouble
	TypeByteArray
	TypeFixedLenByteArray
)

func (t PhysicalType) String() string {
	switch t {
	case TypeBoolean:
		return "BOOLEAN"
	case TypeInt32:
		return "INT32"
	case TypeInt64:
		return "INT64"
	case TypeInt96:
		return "INT96"
	case TypeFloat:
		return "FLOAT"
	case TypeDouble:
		return "DOUBLE"
	case TypeByteArray:
		return "BYTE_ARRAY"
	case TypeFixedLenByteArray:
		return "FIXED_LEN_BYTE_ARRAY"
	default:
		return "UNKNOWN"
	}
}

// Field is one leaf column of a file schema.
type Field struct {
	Name string
	Type PhysicalType
}

// Schema lists leaf columns in physical column order.
type Schema []Field

// FirstDifference returns the index of the first column at which s and o
// differ, or -1 if they are identical. A length difference counts as a
// difference at the shorter length.
func (s Schema) FirstDifference(o Schema) int {
	n := min(len(s), len(o))
	for i := range n {
		if s[i] != o[i] {
			return i
		}
	}
	if len(s) != len(o) {
		return n
	}
	return -1
}

func (s Schema) Equal(o Schema) bool {
	return s.FirstDifference(o) < 0
}

func (s Schema) String() string {
	var b strings.Builder
	for i, f := range s {
		fmt.Fprintf(&b, "%3d %-24s %s\n", i, f.Name, f.Type)
	}
	return b.String()
}

// File is an opened table file.
type File interface {
	NumRowGroups() int
	RowGroupNumRows(rowGroup int) (int64, error)
	Schema() Schema
	// Column returns the value stream of one leaf column in one row group.
	// The concrete stream implements BatchReader for its physical type.
	Column(rowGroup, column int) (ColumnStream, error)
	Close() error
}

// ColumnStream is a positioned reader over one column chunk.
type ColumnStream interface {
	PhysicalType() PhysicalType
	Close() error
}

// Numeric are the element types a stream can be decoded into.
type Numeric interface {
	int32 | float32 | float64
}

// BatchReader decodes the next values of a stream into dst.
//
// levels is how many column entries were consumed, values how many non-null
// values were written to the front of dst. Entries that carry no value (empty
// or null repeated slots) advance levels but not values. Both are zero once
// the column chunk is exhausted.
type BatchReader[T Numeric] interface {
	ColumnStream
	ReadBatch(dst []T) (levels int64, values int, err error)
}

// Opener turns a file handle into a File.
type Opener interface {
	Open(ctx context.Context, h fileprovider.Handle) (File, error)
	Engine() string
}

const (
	EngineArrow     = "arrow"
	EngineParquetGo = "parquetgo"
)
