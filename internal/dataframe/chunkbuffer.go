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
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/cardinalhq/framefeed/internal/frameerr"
)

// ColumnLayout records where a logical column's data lives in a ChunkBuffer.
// A dense column owns one slot; a sparse column owns three consecutive slots
// (counts, indices, values) starting at SlotIndex.
type ColumnLayout struct {
	Name      string
	Dimension int
	Sparse    bool
	SlotIndex int
	// PhysicalColumn is the first on-disk column the data was read from.
	PhysicalColumn int
}

type elemType int

const (
	elemInt32 elemType = iota
	elemFloat32
	elemFloat64
)

func (e elemType) size() int {
	if e == elemFloat64 {
		return 8
	}
	return 4
}

func valueElem(p Precision) elemType {
	if p == Float {
		return elemFloat32
	}
	return elemFloat64
}

type slot struct {
	buf  *memory.Buffer
	elem elemType
}

func (s slot) len() int { return s.buf.Len() / s.elem.size() }

// ChunkBuffer holds the decoded columns of one chunk. Each slot is an owned
// flat buffer; all of them are freed together when the last reference is
// released. Views returned by GetSequence point into the slots and are valid
// only while a reference is held.
//
// A new ChunkBuffer carries one reference owned by whoever built it.
type ChunkBuffer struct {
	address   ChunkAddress
	rowStart  int64
	numRows   int
	precision Precision
	columns   []ColumnLayout
	slots     []slot

	refs atomic.Int64

	offsetsOnce sync.Once
	offsets     [][]int
	offsetsErr  error
}

func newChunkBuffer(addr ChunkAddress, rowStart int64, numRows int, precision Precision, numColumns int) *ChunkBuffer {
	b := &ChunkBuffer{
		address:   addr,
		rowStart:  rowStart,
		numRows:   numRows,
		precision: precision,
		columns:   make([]ColumnLayout, 0, numColumns),
	}
	b.refs.Store(1)
	return b
}

func allocSlot(alloc memory.Allocator, elem elemType, n int) slot {
	if n == 0 {
		return slot{buf: memory.NewBufferBytes(nil), elem: elem}
	}
	buf := memory.NewResizableBuffer(alloc)
	buf.Resize(n * elem.size())
	return slot{buf: buf, elem: elem}
}

func (b *ChunkBuffer) addDense(spec ColumnSpec, physical int, values slot) {
	b.columns = append(b.columns, ColumnLayout{
		Name:           spec.Name,
		Dimension:      spec.Dimension,
		SlotIndex:      len(b.slots),
		PhysicalColumn: physical,
	})
	b.slots = append(b.slots, values)
}

func (b *ChunkBuffer) addSparse(spec ColumnSpec, physical int, counts, indices, values slot) {
	b.columns = append(b.columns, ColumnLayout{
		Name:           spec.Name,
		Dimension:      spec.Dimension,
		Sparse:         true,
		SlotIndex:      len(b.slots),
		PhysicalColumn: physical,
	})
	b.slots = append(b.slots, counts, indices, values)
}

func (b *ChunkBuffer) ChunkID() int { return b.address.ChunkID }

func (b *ChunkBuffer) Address() ChunkAddress { return b.address }

// RowStart is the global index of the chunk's first row.
func (b *ChunkBuffer) RowStart() int64 { return b.rowStart }

func (b *ChunkBuffer) NumRows() int { return b.numRows }

func (b *ChunkBuffer) NumColumns() int { return len(b.columns) }

func (b *ChunkBuffer) Column(c int) ColumnLayout { return b.columns[c] }

func (b *ChunkBuffer) Precision() Precision { return b.precision }

func (b *ChunkBuffer) IsDoubleWidth() bool { return b.precision == Double }

func (b *ChunkBuffer) NumSlots() int { return len(b.slots) }

// SlotLen is the element count of slot i.
func (b *ChunkBuffer) SlotLen(i int) int { return b.slots[i].len() }

// SizeBytes is the decoded size of all slots.
func (b *ChunkBuffer) SizeBytes() int {
	n := 0
	for _, s := range b.slots {
		n += s.buf.Len()
	}
	return n
}

func int32s(s slot) []int32 {
	if s.elem != elemInt32 || s.buf.Len() == 0 {
		return nil
	}
	return arrow.Int32Traits.CastFromBytes(s.buf.Bytes())
}

func float32s(s slot) []float32 {
	if s.elem != elemFloat32 || s.buf.Len() == 0 {
		return nil
	}
	return arrow.Float32Traits.CastFromBytes(s.buf.Bytes())
}

func float64s(s slot) []float64 {
	if s.elem != elemFloat64 || s.buf.Len() == 0 {
		return nil
	}
	return arrow.Float64Traits.CastFromBytes(s.buf.Bytes())
}

// Counts is the per-row non-zero count of sparse column c; nil for dense columns.
func (b *ChunkBuffer) Counts(c int) []int32 {
	col := b.columns[c]
	if !col.Sparse {
		return nil
	}
	return int32s(b.slots[col.SlotIndex])
}

// Indices is the concatenated index stream of sparse column c.
func (b *ChunkBuffer) Indices(c int) []int32 {
	col := b.columns[c]
	if !col.Sparse {
		return nil
	}
	return int32s(b.slots[col.SlotIndex+1])
}

func (b *ChunkBuffer) valueSlot(c int) slot {
	col := b.columns[c]
	if col.Sparse {
		return b.slots[col.SlotIndex+2]
	}
	return b.slots[col.SlotIndex]
}

// Float64Values is column c's value stream when the chunk is double width.
func (b *ChunkBuffer) Float64Values(c int) []float64 { return float64s(b.valueSlot(c)) }

// Float32Values is column c's value stream when the chunk is single width.
func (b *ChunkBuffer) Float32Values(c int) []float32 { return float32s(b.valueSlot(c)) }

// SparseOffsets returns the exclusive prefix sum of sparse column c's counts,
// len NumRows()+1. It is computed once for all sparse columns on first use.
func (b *ChunkBuffer) SparseOffsets(c int) ([]int, error) {
	b.offsetsOnce.Do(b.computeOffsets)
	if b.offsetsErr != nil {
		return nil, b.offsetsErr
	}
	return b.offsets[c], nil
}

func (b *ChunkBuffer) computeOffsets() {
	b.offsets = make([][]int, len(b.columns))
	for c, col := range b.columns {
		if !col.Sparse {
			continue
		}
		counts := b.Counts(c)
		off := make([]int, b.numRows+1)
		for r := range b.numRows {
			off[r+1] = off[r] + int(counts[r])
		}
		values := b.valueSlot(c).len()
		if total := off[b.numRows]; total != b.SlotLen(col.SlotIndex+1) || total != values {
			// Reported against the indices column, the one the counts disagree with.
			b.offsetsErr = frameerr.New(frameerr.ErrShortRead,
				frameerr.ColumnLocation(b.address.FileIndex, b.address.RowGroup, col.PhysicalColumn+1),
				"counts sum to %d but column holds %d indices and %d values", total, b.SlotLen(col.SlotIndex+1), values)
			return
		}
		b.offsets[c] = off
	}
}

// Retain adds a reference.
func (b *ChunkBuffer) Retain() {
	b.refs.Add(1)
}

// TryRetain adds a reference unless the buffer has already been freed.
func (b *ChunkBuffer) TryRetain() bool {
	for {
		n := b.refs.Load()
		if n <= 0 {
			return false
		}
		if b.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops a reference, freeing every slot when none remain.
func (b *ChunkBuffer) Release() {
	n := b.refs.Add(-1)
	if n < 0 {
		panic(fmt.Sprintf("chunk %d released more times than retained", b.address.ChunkID))
	}
	if n > 0 {
		return
	}
	for _, s := range b.slots {
		s.buf.Release()
	}
	b.slots = nil
}

// Equal reports whether o has the same layout and decoded bytes as b.
func (b *ChunkBuffer) Equal(o *ChunkBuffer) bool {
	if b.address != o.address || b.numRows != o.numRows || b.precision != o.precision ||
		len(b.columns) != len(o.columns) || len(b.slots) != len(o.slots) {
		return false
	}
	for i := range b.columns {
		if b.columns[i] != o.columns[i] {
			return false
		}
	}
	for i := range b.slots {
		if b.slots[i].elem != o.slots[i].elem || !bytes.Equal(b.slots[i].buf.Bytes(), o.slots[i].buf.Bytes()) {
			return false
		}
	}
	return true
}
