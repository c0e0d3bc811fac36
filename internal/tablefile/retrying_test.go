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
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/framefeed/internal/fileprovider"
	"github.com/cardinalhq/framefeed/internal/frameerr"
	"github.com/cardinalhq/framefeed/internal/retry"
	"github.com/cardinalhq/framefeed/testhelpers"
)

// remoteHandle behaves like an object-store handle: Open does no I/O and the
// first failReads reads fail with failErr.
type remoteHandle struct {
	data      []byte
	failReads int
	failErr   error
	opens     int
}

func (h *remoteHandle) Path() string { return "s3://b/a.parquet" }
func (h *remoteHandle) Index() int   { return 0 }
func (h *remoteHandle) Size() int64  { return int64(len(h.data)) }

func (h *remoteHandle) Open(context.Context) (fileprovider.File, error) {
	h.opens++
	return &remoteFile{Reader: bytes.NewReader(h.data), h: h}, nil
}

type remoteFile struct {
	*bytes.Reader
	h *remoteHandle
}

func (f *remoteFile) ReadAt(b []byte, off int64) (int, error) {
	if f.h.failReads > 0 {
		f.h.failReads--
		return 0, f.h.failErr
	}
	return f.Reader.ReadAt(b, off)
}

func (f *remoteFile) Close() error { return nil }

func parquetBytes(t *testing.T) []byte {
	t.Helper()
	fsys := afero.NewMemMapFs()
	testhelpers.WriteParquet(t, fsys, "/a.parquet", testhelpers.DenseRows(0, 4, 3, 1))
	data, err := afero.ReadFile(fsys, "/a.parquet")
	require.NoError(t, err)
	return data
}

var fastPolicy = retry.Policy{Attempts: 3, InitialDelay: time.Millisecond}

func resetByPeer() error {
	return frameerr.Wrap(frameerr.ErrConnection, frameerr.FileLocation(-1, "s3://b/a.parquet"),
		errors.New("connection reset by peer"), "get range")
}

func TestRetryingOpenerRetriesFooterReads(t *testing.T) {
	data := parquetBytes(t)
	for name, o := range engines(t) {
		t.Run(name, func(t *testing.T) {
			h := &remoteHandle{data: data, failReads: 1, failErr: resetByPeer()}

			f, err := WithRetry(o, fastPolicy).Open(context.Background(), h)
			require.NoError(t, err)
			defer func() {
				assert.NoError(t, f.Close())
			}()
			assert.Equal(t, 2, h.opens)
			assert.Equal(t, 1, f.NumRowGroups())
		})
	}
}

func TestRetryingOpenerGivesUpAsConnectionError(t *testing.T) {
	data := parquetBytes(t)
	for name, o := range engines(t) {
		t.Run(name, func(t *testing.T) {
			h := &remoteHandle{data: data, failReads: 100, failErr: resetByPeer()}

			_, err := WithRetry(o, fastPolicy).Open(context.Background(), h)
			assert.ErrorIs(t, err, frameerr.ErrConnection)
			assert.NotErrorIs(t, err, frameerr.ErrSchema)
			assert.Equal(t, 3, h.opens)
		})
	}
}

func TestRetryingOpenerDoesNotRetryOtherErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{"not a table file", []byte("definitely not parquet at all"), nil},
		{"not found", nil, frameerr.Wrap(frameerr.ErrConnection, frameerr.NoLocation, fileprovider.ErrNotFound, "get range")},
	}
	for name, o := range engines(t) {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				h := &remoteHandle{data: tt.data}
				if tt.err != nil {
					h.data = parquetBytes(t)
					h.failReads = 100
					h.failErr = tt.err
				}

				_, err := WithRetry(o, fastPolicy).Open(context.Background(), h)
				require.Error(t, err)
				assert.Equal(t, 1, h.opens)
			})
		}
	}
}
