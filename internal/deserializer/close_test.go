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

package deserializer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/framefeed/internal/dataframe"
	"github.com/cardinalhq/framefeed/internal/fileprovider"
	"github.com/cardinalhq/framefeed/internal/tablefile"
	"github.com/cardinalhq/framefeed/testhelpers"
)

func TestCloseReleasesCachedChunksBeforeReturning(t *testing.T) {
	dir := writeSource(t)
	for range 20 {
		mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
		cfg := testConfig(dir)
		cfg.Cache.Capacity = 8
		cfg.Cache.TTL = time.Millisecond

		d, err := New(context.Background(), cfg, WithAllocator(mem))
		require.NoError(t, err)
		for id := range d.ChunkCount() {
			buf, err := d.GetChunkBuffer(context.Background(), id)
			require.NoError(t, err)
			buf.Release()
		}
		require.NoError(t, d.Close())
		mem.AssertSize(t, 0)
	}
}

func TestCloseWithoutTTL(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	cfg := testConfig(writeSource(t))
	cfg.Cache.Capacity = 1
	cfg.Cache.TTL = 0

	d, err := New(context.Background(), cfg, WithAllocator(mem))
	require.NoError(t, err)
	for _, id := range []int{0, 1, 0} {
		buf, err := d.GetChunkBuffer(context.Background(), id)
		require.NoError(t, err)
		buf.Release()
	}
	require.NoError(t, d.Close())
	mem.AssertSize(t, 0)
}

func TestExpiredChunksAreRebuilt(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	cfg := testConfig(writeSource(t))
	cfg.Cache.Capacity = 2
	cfg.Cache.TTL = 20 * time.Millisecond

	d, err := New(context.Background(), cfg, WithAllocator(mem))
	require.NoError(t, err)
	first, err := d.GetChunkBuffer(context.Background(), 0)
	require.NoError(t, err)
	first.Release()

	require.Eventually(t, func() bool { return d.cache.Len() == 0 }, time.Second, 5*time.Millisecond)
	again, err := d.GetChunkBuffer(context.Background(), 0)
	require.NoError(t, err)
	assert.NotSame(t, first, again)
	again.Release()

	require.NoError(t, d.Close())
	mem.AssertSize(t, 0)
}

// gatedOpener blocks the first column read of any file until release is
// closed, and closes started when that read begins.
type gatedOpener struct {
	tablefile.Opener
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (o *gatedOpener) Open(ctx context.Context, h fileprovider.Handle) (tablefile.File, error) {
	f, err := o.Opener.Open(ctx, h)
	if err != nil {
		return nil, err
	}
	return &gatedFile{File: f, o: o}, nil
}

type gatedFile struct {
	tablefile.File
	o *gatedOpener
}

func (f *gatedFile) Column(rowGroup, column int) (tablefile.ColumnStream, error) {
	f.o.once.Do(func() {
		close(f.o.started)
		<-f.o.release
	})
	return f.File.Column(rowGroup, column)
}

func TestCloseWaitsForInFlightBuild(t *testing.T) {
	fsys := afero.NewMemMapFs()
	testhelpers.WriteParquet(t, fsys, "/d/a.parquet", testhelpers.DenseRows(0, 4, 3, 1))
	arrow, err := tablefile.NewOpener(tablefile.EngineArrow, memory.NewGoAllocator())
	require.NoError(t, err)
	opener := &gatedOpener{Opener: arrow, started: make(chan struct{}), release: make(chan struct{})}

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	cfg := testConfig("/d")
	cfg.Cache.Capacity = 4
	d, err := Open(context.Background(), cfg, fileprovider.NewLocal(fsys, "/d"), opener, WithAllocator(mem))
	require.NoError(t, err)

	type result struct {
		buf *dataframe.ChunkBuffer
		err error
	}
	built := make(chan result, 1)
	go func() {
		buf, err := d.GetChunkBuffer(context.Background(), 0)
		built <- result{buf, err}
	}()
	<-opener.started

	closed := make(chan error, 1)
	go func() {
		closed <- d.Close()
	}()
	select {
	case <-closed:
		t.Fatal("Close returned while a chunk build was in progress")
	case <-time.After(50 * time.Millisecond):
	}

	close(opener.release)
	r := <-built
	require.NoError(t, r.err)
	assert.Equal(t, 4, r.buf.NumRows())
	require.NoError(t, <-closed)

	_, err = d.GetChunkBuffer(context.Background(), 0)
	assert.ErrorIs(t, err, ErrClosed)

	r.buf.Release()
	mem.AssertSize(t, 0)
}
