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
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/framefeed/internal/fileprovider"
	"github.com/cardinalhq/framefeed/internal/frameerr"
	"github.com/cardinalhq/framefeed/testhelpers"
)

func engines(t *testing.T) map[string]Opener {
	t.Helper()
	out := map[string]Opener{}
	for _, name := range []string{EngineArrow, EngineParquetGo} {
		o, err := NewOpener(name, memory.NewGoAllocator())
		require.NoError(t, err)
		require.Equal(t, name, o.Engine())
		out[name] = o
	}
	return out
}

func openOne(t *testing.T, o Opener, fsys afero.Fs, path string) File {
	t.Helper()
	handles, err := fileprovider.NewLocal(fsys, path).GetFileList(context.Background())
	require.NoError(t, err)
	require.Len(t, handles, 1)
	f, err := o.Open(context.Background(), handles[0])
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, f.Close())
	})
	return f
}

func readAll[T Numeric](t *testing.T, cs ColumnStream, batch int) (levels int64, values []T) {
	t.Helper()
	r, ok := cs.(BatchReader[T])
	require.True(t, ok, "stream of type %s does not decode as %T", cs.PhysicalType(), *new(T))
	buf := make([]T, batch)
	for {
		l, n, err := r.ReadBatch(buf)
		require.NoError(t, err)
		if l == 0 && n == 0 {
			return levels, values
		}
		levels += l
		values = append(values, buf[:n]...)
	}
}

func TestDenseFileLayout(t *testing.T) {
	fsys := afero.NewMemMapFs()
	testhelpers.WriteParquet(t, fsys, "/d/a.parquet",
		testhelpers.DenseRows(0, 4, 3, 1),
		testhelpers.DenseRows(100, 3, 3, 1),
	)

	for name, o := range engines(t) {
		t.Run(name, func(t *testing.T) {
			f := openOne(t, o, fsys, "/d/a.parquet")

			require.Equal(t, 2, f.NumRowGroups())
			n, err := f.RowGroupNumRows(0)
			require.NoError(t, err)
			assert.Equal(t, int64(4), n)
			n, err = f.RowGroupNumRows(1)
			require.NoError(t, err)
			assert.Equal(t, int64(3), n)

			assert.Equal(t, Schema{
				{Name: "features", Type: TypeDouble},
				{Name: "labels", Type: TypeDouble},
			}, f.Schema())

			cs, err := f.Column(1, 0)
			require.NoError(t, err)
			defer func() {
				_ = cs.Close()
			}()
			assert.Equal(t, TypeDouble, cs.PhysicalType())
			levels, values := readAll[float64](t, cs, 4)
			assert.Equal(t, int64(9), levels)
			assert.Equal(t, []float64{100, 101, 102, 103, 104, 105, 106, 107, 108}, values)

			labels, err := f.Column(0, 1)
			require.NoError(t, err)
			defer func() {
				_ = labels.Close()
			}()
			_, lv := readAll[float64](t, labels, 128)
			assert.Equal(t, []float64{0, -1, -2, -3}, lv)
		})
	}
}

func TestSparseFileLayout(t *testing.T) {
	fsys := afero.NewMemMapFs()
	rows := []testhelpers.SparseRow{
		{FeatureCounts: 2, FeatureIndices: []int32{1, 4}, FeatureValues: []float64{1.5, 4.5}, Labels: []float64{1}},
		{FeatureCounts: 0, Labels: []float64{0}},
		{FeatureCounts: 1, FeatureIndices: []int32{7}, FeatureValues: []float64{7.5}, Labels: []float64{1}},
	}
	testhelpers.WriteParquet(t, fsys, "/d/s.parquet", rows)

	for name, o := range engines(t) {
		t.Run(name, func(t *testing.T) {
			f := openOne(t, o, fsys, "/d/s.parquet")
			assert.Equal(t, Schema{
				{Name: "feature_counts", Type: TypeInt32},
				{Name: "feature_indices", Type: TypeInt32},
				{Name: "feature_values", Type: TypeDouble},
				{Name: "labels", Type: TypeDouble},
			}, f.Schema())

			counts, err := f.Column(0, 0)
			require.NoError(t, err)
			_, cv := readAll[int32](t, counts, 2)
			assert.Equal(t, []int32{2, 0, 1}, cv)

			indices, err := f.Column(0, 1)
			require.NoError(t, err)
			levels, iv := readAll[int32](t, indices, 2)
			assert.Equal(t, []int32{1, 4, 7}, iv)
			assert.Equal(t, int64(4), levels, "the empty row still occupies one level")

			values, err := f.Column(0, 2)
			require.NoError(t, err)
			_, vv := readAll[float64](t, values, 16)
			assert.Equal(t, []float64{1.5, 4.5, 7.5}, vv)
		})
	}
}

func TestFloatAndOpaqueColumns(t *testing.T) {
	fsys := afero.NewMemMapFs()
	testhelpers.WriteParquet(t, fsys, "/d/f.parquet", []testhelpers.DenseFloatRow{
		{Features: []float32{1, 2}, Labels: []float32{3}},
	})
	testhelpers.WriteParquet(t, fsys, "/n/n.parquet", []testhelpers.NameRow{{Name: "a", Other: "b"}})

	for name, o := range engines(t) {
		t.Run(name, func(t *testing.T) {
			f := openOne(t, o, fsys, "/d/f.parquet")
			cs, err := f.Column(0, 0)
			require.NoError(t, err)
			assert.Equal(t, TypeFloat, cs.PhysicalType())
			_, fv := readAll[float32](t, cs, 8)
			assert.Equal(t, []float32{1, 2}, fv)

			_, isDouble := cs.(BatchReader[float64])
			assert.False(t, isDouble)

			nf := openOne(t, o, fsys, "/n/n.parquet")
			col, err := nf.Column(0, 0)
			require.NoError(t, err)
			assert.Equal(t, TypeByteArray, col.PhysicalType())
			_, isReader := col.(BatchReader[int32])
			assert.False(t, isReader)
		})
	}
}

func TestOutOfRangeAccess(t *testing.T) {
	fsys := afero.NewMemMapFs()
	testhelpers.WriteParquet(t, fsys, "/d/a.parquet", testhelpers.DenseRows(0, 2, 1, 1))

	for name, o := range engines(t) {
		t.Run(name, func(t *testing.T) {
			f := openOne(t, o, fsys, "/d/a.parquet")

			_, err := f.RowGroupNumRows(1)
			assert.ErrorIs(t, err, frameerr.ErrIndexOutOfRange)
			_, err = f.Column(0, 2)
			assert.ErrorIs(t, err, frameerr.ErrIndexOutOfRange)
			_, err = f.Column(-1, 0)
			assert.ErrorIs(t, err, frameerr.ErrIndexOutOfRange)
		})
	}
}

func TestUnknownEngine(t *testing.T) {
	_, err := NewOpener("duckdb", nil)
	assert.Error(t, err)
}

func TestSchemaFirstDifference(t *testing.T) {
	a := Schema{{"x", TypeDouble}, {"y", TypeDouble}}
	assert.Equal(t, -1, a.FirstDifference(Schema{{"x", TypeDouble}, {"y", TypeDouble}}))
	assert.Equal(t, 1, a.FirstDifference(Schema{{"x", TypeDouble}, {"y", TypeFloat}}))
	assert.Equal(t, 0, a.FirstDifference(Schema{{"z", TypeDouble}, {"y", TypeDouble}}))
	assert.Equal(t, 2, a.FirstDifference(Schema{{"x", TypeDouble}, {"y", TypeDouble}, {"z", TypeInt32}}))
	assert.Equal(t, 1, a.FirstDifference(Schema{{"x", TypeDouble}}))
	assert.True(t, a.Equal(a))
	assert.Contains(t, a.String(), "DOUBLE")
}
