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
	"fmt"
	"strings"

	"github.com/cardinalhq/framefeed/internal/tablefile"
)

// StorageFormat is how a logical column is laid out on disk.
type StorageFormat int

const (
	// Dense is one physical column holding dimension values per row.
	Dense StorageFormat = iota
	// Sparse is three physical columns: a per-row non-zero count, then the
	// concatenated indices, then the concatenated values.
	Sparse
)

func (s StorageFormat) String() string {
	switch s {
	case Dense:
		return "dense"
	case Sparse:
		return "sparse"
	default:
		return fmt.Sprintf("StorageFormat(%d)", int(s))
	}
}

// PhysicalColumns is the number of on-disk columns the format occupies.
func (s StorageFormat) PhysicalColumns() int {
	if s == Sparse {
		return 3
	}
	return 1
}

func ParseStorageFormat(s string) (StorageFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dense":
		return Dense, nil
	case "sparse":
		return Sparse, nil
	default:
		return 0, fmt.Errorf("storage format %q is not dense or sparse", s)
	}
}

// Precision is the element width of decoded values. It applies to the whole
// chunk; columns of mixed width are not supported.
type Precision int

const (
	Double Precision = iota
	Float
)

func (p Precision) String() string {
	switch p {
	case Double:
		return "double"
	case Float:
		return "float"
	default:
		return fmt.Sprintf("Precision(%d)", int(p))
	}
}

// ElementSize is the width of one value in bytes.
func (p Precision) ElementSize() int {
	if p == Float {
		return 4
	}
	return 8
}

// PhysicalType is the on-disk type value columns must have.
func (p Precision) PhysicalType() tablefile.PhysicalType {
	if p == Float {
		return tablefile.TypeFloat
	}
	return tablefile.TypeDouble
}

func ParsePrecision(s string) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "double":
		return Double, nil
	case "float":
		return Float, nil
	default:
		return 0, fmt.Errorf("precision %q is not float or double", s)
	}
}

// ColumnSpec declares one logical column.
type ColumnSpec struct {
	Name      string
	Dimension int
	Storage   StorageFormat
}

// Layout is the ordered list of logical columns and the value precision.
// Consumers associate views with columns by position in Columns.
type Layout struct {
	Columns   []ColumnSpec
	Precision Precision
}

// PhysicalColumns is the number of on-disk columns the layout reads.
func (l Layout) PhysicalColumns() int {
	n := 0
	for _, c := range l.Columns {
		n += c.Storage.PhysicalColumns()
	}
	return n
}

// FirstPhysicalColumn is the on-disk column index where logical column c starts.
func (l Layout) FirstPhysicalColumn(c int) int {
	n := 0
	for _, spec := range l.Columns[:c] {
		n += spec.Storage.PhysicalColumns()
	}
	return n
}

// Validate checks the layout is usable.
func (l Layout) Validate() error {
	if len(l.Columns) == 0 {
		return fmt.Errorf("layout has no columns")
	}
	for i, c := range l.Columns {
		if c.Dimension <= 0 {
			return fmt.Errorf("column %d (%s): dimension must be positive, got %d", i, c.Name, c.Dimension)
		}
		if c.Storage != Dense && c.Storage != Sparse {
			return fmt.Errorf("column %d (%s): invalid storage format %s", i, c.Name, c.Storage)
		}
	}
	if l.Precision != Double && l.Precision != Float {
		return fmt.Errorf("invalid precision %s", l.Precision)
	}
	return nil
}
