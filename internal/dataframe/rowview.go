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
	"github.com/cardinalhq/framefeed/internal/frameerr"
)

// RowKey identifies one logical column of one row across the whole source.
type RowKey struct {
	Row    int64
	Column int
}

// RowView is a non-owning projection of one row of one logical column. It is
// either a DenseView or a SparseView.
type RowView interface {
	RowKey() RowKey
	isRowView()
}

// DenseView holds Dimension values. Exactly one of Float32 and Float64 is set,
// matching the chunk precision.
type DenseView struct {
	Key       RowKey
	Dimension int
	Float32   []float32
	Float64   []float64
}

func (v DenseView) RowKey() RowKey { return v.Key }
func (DenseView) isRowView()       {}

// SparseView holds the non-zero (index, value) pairs of a row. Indices and
// the populated value slice have the same length.
type SparseView struct {
	Key       RowKey
	Dimension int
	Indices   []int32
	Float32   []float32
	Float64   []float64
}

func (v SparseView) RowKey() RowKey { return v.Key }
func (SparseView) isRowView()       {}

// NNZ is the number of stored entries.
func (v SparseView) NNZ() int { return len(v.Indices) }

// GetSequence returns one view per logical column for local row row of buf,
// in layout order. The views alias buf and are valid while it is retained.
func GetSequence(buf *ChunkBuffer, row int) ([]RowView, error) {
	if row < 0 || row >= buf.NumRows() {
		return nil, frameerr.New(frameerr.ErrIndexOutOfRange,
			frameerr.ColumnLocation(buf.address.FileIndex, buf.address.RowGroup, -1),
			"row %d not in [0, %d) of chunk %d", row, buf.NumRows(), buf.ChunkID())
	}

	views := make([]RowView, 0, buf.NumColumns())
	global := buf.RowStart() + int64(row)
	double := buf.IsDoubleWidth()
	for c, col := range buf.columns {
		key := RowKey{Row: global, Column: c}
		if !col.Sparse {
			lo, hi := row*col.Dimension, (row+1)*col.Dimension
			v := DenseView{Key: key, Dimension: col.Dimension}
			if double {
				v.Float64 = buf.Float64Values(c)[lo:hi:hi]
			} else {
				v.Float32 = buf.Float32Values(c)[lo:hi:hi]
			}
			views = append(views, v)
			continue
		}

		off, err := buf.SparseOffsets(c)
		if err != nil {
			return nil, err
		}
		lo, hi := off[row], off[row+1]
		v := SparseView{Key: key, Dimension: col.Dimension}
		if hi > lo {
			v.Indices = buf.Indices(c)[lo:hi:hi]
			if double {
				v.Float64 = buf.Float64Values(c)[lo:hi:hi]
			} else {
				v.Float32 = buf.Float32Values(c)[lo:hi:hi]
			}
		}
		views = append(views, v)
	}
	return views, nil
}

// TabularChunk is the handle consumers receive for one materialized chunk.
type TabularChunk struct {
	buf *ChunkBuffer
}

// NewTabularChunk takes over the caller's reference to buf.
func NewTabularChunk(buf *ChunkBuffer) *TabularChunk {
	return &TabularChunk{buf: buf}
}

func (t *TabularChunk) ChunkID() int { return t.buf.ChunkID() }

func (t *TabularChunk) NumRows() int { return t.buf.NumRows() }

func (t *TabularChunk) Buffer() *ChunkBuffer { return t.buf }

// GetSequence returns the views of local row row.
func (t *TabularChunk) GetSequence(row int) ([]RowView, error) {
	return GetSequence(t.buf, row)
}

// Retain returns a second handle sharing the same buffer.
func (t *TabularChunk) Retain() *TabularChunk {
	t.buf.Retain()
	return &TabularChunk{buf: t.buf}
}

func (t *TabularChunk) Release() {
	t.buf.Release()
}
