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

package fileprovider

import (
	"context"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/framefeed/internal/frameerr"
)

func memFS(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, body := range files {
		require.NoError(t, afero.WriteFile(fsys, name, []byte(body), 0o644))
	}
	return fsys
}

func paths(handles []Handle) []string {
	out := make([]string, len(handles))
	for i, h := range handles {
		out[i] = h.Path()
	}
	return out
}

func TestLocalListsParquetFilesSorted(t *testing.T) {
	fsys := memFS(t, map[string]string{
		"/data/part-b.parquet":        "bb",
		"/data/part-a.parquet":        "a",
		"/data/part-c.parquet.crc":    "x",
		"/data/_SUCCESS":              "",
		"/data/notes.txt":             "hello",
		"/data/nested/part-z.parquet": "zzz",
	})

	handles, err := NewLocal(fsys, "/data").GetFileList(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/data/part-a.parquet",
		"/data/part-b.parquet",
		"/data/part-c.parquet.crc",
	}, paths(handles))
	for i, h := range handles {
		assert.Equal(t, i, h.Index())
	}
	assert.Equal(t, int64(2), handles[1].Size())
}

func TestLocalSingleFile(t *testing.T) {
	fsys := memFS(t, map[string]string{"/data/one.parquet": "abc"})

	handles, err := NewLocal(fsys, "/data/one.parquet").GetFileList(context.Background())
	require.NoError(t, err)
	require.Len(t, handles, 1)
	assert.Equal(t, "/data/one.parquet", handles[0].Path())
}

func TestLocalEmptyDirectory(t *testing.T) {
	fsys := memFS(t, map[string]string{"/data/readme.md": "x"})

	_, err := NewLocal(fsys, "/data").GetFileList(context.Background())
	assert.ErrorIs(t, err, frameerr.ErrNoSources)
}

func TestLocalMissingPath(t *testing.T) {
	_, err := NewLocal(afero.NewMemMapFs(), "/nope").GetFileList(context.Background())
	assert.ErrorIs(t, err, frameerr.ErrConnection)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHandleOpenReadsAndClosesOnce(t *testing.T) {
	fsys := memFS(t, map[string]string{"/d/a.parquet": "0123456789"})
	handles, err := NewLocal(fsys, "/d").GetFileList(context.Background())
	require.NoError(t, err)

	f, err := handles[0].Open(context.Background())
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, err := f.ReadAt(buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "3456", string(buf))

	pos, err := f.Seek(-2, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(8), pos)

	require.NoError(t, f.Close())
	assert.NoError(t, f.Close())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr []string
	}{
		{"local ok", Config{Type: TypeLocal, Path: "/data"}, nil},
		{"local no path", Config{Type: TypeLocal}, []string{"source.path is required"}},
		{"hdfs ok", Config{Type: TypeHDFS, Path: "/data", Host: "nn", Port: 8020}, nil},
		{"hdfs missing host and port", Config{Type: TypeHDFS, Path: "/data"}, []string{"source.host", "source.port 0"}},
		{"s3 no bucket", Config{Type: TypeS3, Path: "x"}, []string{"source.bucket"}},
		{"azure no account", Config{Type: TypeAzure, Bucket: "c"}, []string{"storageAccount"}},
		{"unknown", Config{Type: "ftp"}, []string{`"ftp"`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, TypeLocal, cfg.Type)
	assert.Equal(t, 8020, cfg.Port)
}
