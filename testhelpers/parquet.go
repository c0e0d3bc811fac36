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

// Package testhelpers writes small table files for tests.
package testhelpers

import (
	"bytes"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// DenseRow has a dense double feature vector and a dense double label vector,
// one physical column each.
type DenseRow struct {
	Features []float64 `parquet:"features"`
	Labels   []float64 `parquet:"labels"`
}

// DenseFloatRow is DenseRow in single precision.
type DenseFloatRow struct {
	Features []float32 `parquet:"features"`
	Labels   []float32 `parquet:"labels"`
}

// SparseRow has a sparse double feature column (counts, indices, values) and
// a dense double label column.
type SparseRow struct {
	FeatureCounts  int32     `parquet:"feature_counts"`
	FeatureIndices []int32   `parquet:"feature_indices"`
	FeatureValues  []float64 `parquet:"feature_values"`
	Labels         []float64 `parquet:"labels"`
}

// SparseBothRow stores both features and labels sparse, in single precision.
type SparseBothRow struct {
	FeatureCounts  int32     `parquet:"feature_counts"`
	FeatureIndices []int32   `parquet:"feature_indices"`
	FeatureValues  []float32 `parquet:"feature_values"`
	LabelCounts    int32     `parquet:"label_counts"`
	LabelIndices   []int32   `parquet:"label_indices"`
	LabelValues    []float32 `parquet:"label_values"`
}

// NameRow has no numeric layout at all.
type NameRow struct {
	Name  string `parquet:"name"`
	Other string `parquet:"other"`
}

// ParquetBytes encodes each element of rowGroups as its own row group.
func ParquetBytes[T any](t *testing.T, rowGroups ...[]T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[T](&buf)
	for _, rows := range rowGroups {
		_, err := w.Write(rows)
		require.NoError(t, err)
		require.NoError(t, w.Flush())
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// WriteParquet writes ParquetBytes to path on fsys.
func WriteParquet[T any](t *testing.T, fsys afero.Fs, path string, rowGroups ...[]T) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fsys, path, ParquetBytes(t, rowGroups...), 0o644))
}

// DenseRows builds n rows whose feature j of row r is base+r*featureDim+j and
// whose label j is -(base+r*labelDim+j).
func DenseRows(base float64, n, featureDim, labelDim int) []DenseRow {
	rows := make([]DenseRow, n)
	for r := range rows {
		rows[r].Features = make([]float64, featureDim)
		for j := range rows[r].Features {
			rows[r].Features[j] = base + float64(r*featureDim+j)
		}
		rows[r].Labels = make([]float64, labelDim)
		for j := range rows[r].Labels {
			rows[r].Labels[j] = -(base + float64(r*labelDim+j))
		}
	}
	return rows
}
