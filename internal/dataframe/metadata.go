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
	"sort"

	"github.com/cardinalhq/framefeed/internal/frameerr"
	"github.com/cardinalhq/framefeed/internal/tablefile"
)

// ChunkAddress locates a chunk: a row group of one file.
type ChunkAddress struct {
	ChunkID   int
	FileIndex int
	RowGroup  int
}

// TableMetadata describes the global chunk and row layout of a source set.
// It is immutable once built and safe for concurrent use.
//
// Chunk ids are assigned in file order, then row-group order.
type TableMetadata struct {
	schema    tablefile.Schema
	rowCounts []int64

	// fileChunkStart[f] is the id of file f's first chunk; the last entry is
	// the chunk count.
	fileChunkStart []int
	// chunkRowStart[c] is the global index of chunk c's first row; the last
	// entry is the row count.
	chunkRowStart []int64
}

// NewTableMetadata derives the lookup tables from per-file row-group counts
// and per-chunk row counts. len(rowCounts) must equal the sum of
// rowGroupsPerFile.
func NewTableMetadata(schema tablefile.Schema, rowGroupsPerFile []int, rowCounts []int64) (*TableMetadata, error) {
	fileStart := make([]int, len(rowGroupsPerFile)+1)
	for f, n := range rowGroupsPerFile {
		if n < 0 {
			return nil, frameerr.New(frameerr.ErrSchema, frameerr.FileLocation(f, ""), "negative row group count %d", n)
		}
		fileStart[f+1] = fileStart[f] + n
	}
	if fileStart[len(rowGroupsPerFile)] != len(rowCounts) {
		return nil, frameerr.New(frameerr.ErrSchema, frameerr.NoLocation,
			"files declare %d row groups but %d row counts were recorded", fileStart[len(rowGroupsPerFile)], len(rowCounts))
	}

	rowStart := make([]int64, len(rowCounts)+1)
	for c, n := range rowCounts {
		if n < 0 {
			return nil, frameerr.New(frameerr.ErrSchema, frameerr.NoLocation, "chunk %d has negative row count %d", c, n)
		}
		rowStart[c+1] = rowStart[c] + n
	}

	return &TableMetadata{
		schema:         append(tablefile.Schema(nil), schema...),
		rowCounts:      append([]int64(nil), rowCounts...),
		fileChunkStart: fileStart,
		chunkRowStart:  rowStart,
	}, nil
}

func (m *TableMetadata) Schema() tablefile.Schema {
	return append(tablefile.Schema(nil), m.schema...)
}

func (m *TableMetadata) NumberOfColumns() int { return len(m.schema) }

func (m *TableMetadata) ColumnName(i int) string { return m.schema[i].Name }

func (m *TableMetadata) ColumnType(i int) tablefile.PhysicalType { return m.schema[i].Type }

func (m *TableMetadata) NumberOfFiles() int { return len(m.fileChunkStart) - 1 }

func (m *TableMetadata) NumberOfRowChunks() int { return len(m.rowCounts) }

func (m *TableMetadata) NumberOfRows() int64 { return m.chunkRowStart[len(m.rowCounts)] }

// RowGroupsPerFile returns how many chunks each file contributes.
func (m *TableMetadata) RowGroupsPerFile() []int {
	out := make([]int, m.NumberOfFiles())
	for f := range out {
		out[f] = m.fileChunkStart[f+1] - m.fileChunkStart[f]
	}
	return out
}

func (m *TableMetadata) checkChunk(id int) error {
	if id < 0 || id >= len(m.rowCounts) {
		return frameerr.New(frameerr.ErrIndexOutOfRange, frameerr.NoLocation,
			"chunk %d not in [0, %d)", id, len(m.rowCounts))
	}
	return nil
}

func (m *TableMetadata) NumberOfRowsInChunk(id int) (int64, error) {
	if err := m.checkChunk(id); err != nil {
		return 0, err
	}
	return m.rowCounts[id], nil
}

// ChunkRowStart is the global index of the chunk's first row.
func (m *TableMetadata) ChunkRowStart(id int) (int64, error) {
	if err := m.checkChunk(id); err != nil {
		return 0, err
	}
	return m.chunkRowStart[id], nil
}

// ResolveChunk maps a chunk id to its file and local row group.
func (m *TableMetadata) ResolveChunk(id int) (ChunkAddress, error) {
	if err := m.checkChunk(id); err != nil {
		return ChunkAddress{}, err
	}
	files := m.NumberOfFiles()
	f := sort.Search(files, func(f int) bool { return m.fileChunkStart[f+1] > id })
	return ChunkAddress{ChunkID: id, FileIndex: f, RowGroup: id - m.fileChunkStart[f]}, nil
}

// ChunkForRow maps a global row index to its chunk and the row's index within it.
func (m *TableMetadata) ChunkForRow(row int64) (chunk int, local int64, err error) {
	if row < 0 || row >= m.NumberOfRows() {
		return 0, 0, frameerr.New(frameerr.ErrIndexOutOfRange, frameerr.NoLocation,
			"row %d not in [0, %d)", row, m.NumberOfRows())
	}
	chunk = sort.Search(len(m.rowCounts), func(c int) bool { return m.chunkRowStart[c+1] > row })
	return chunk, row - m.chunkRowStart[chunk], nil
}
