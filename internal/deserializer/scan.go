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
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/cardinalhq/framefeed/internal/dataframe"
	"github.com/cardinalhq/framefeed/internal/logctx"
)

// Prefetch decodes ids into the chunk cache using up to the configured
// number of workers. Without a cache it does nothing.
func (d *Deserializer) Prefetch(ctx context.Context, ids []int) error {
	if d.cache == nil || len(ids) == 0 {
		return nil
	}
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for _, id := range ids {
		g.Go(func() error {
			buf, err := d.GetChunkBuffer(gctx, id)
			if err != nil {
				return err
			}
			buf.Release()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logctx.FromContext(ctx).Debug("Prefetched chunks",
		slog.String("session", d.session),
		slog.Int("chunks", len(ids)),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// ChunkFunc receives each chunk during Scan. The chunk is released when fn
// returns; fn must Retain it to keep it longer.
type ChunkFunc func(ctx context.Context, chunk *dataframe.TabularChunk) error

// Scan hands every chunk to fn in chunk-id order. Up to the configured number
// of workers decode ahead of fn; at most that many decoded chunks are held
// at once. The first error from a decode or from fn stops the scan.
func (d *Deserializer) Scan(ctx context.Context, fn ChunkFunc) error {
	n := d.ChunkCount()
	ready := make([]chan *dataframe.TabularChunk, n)
	for i := range ready {
		ready[i] = make(chan *dataframe.TabularChunk, 1)
	}
	sem := semaphore.NewWeighted(int64(d.workers))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for id := range n {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			g.Go(func() error {
				chunk, err := d.GetChunk(gctx, id)
				if err != nil {
					sem.Release(1)
					return err
				}
				ready[id] <- chunk
				return nil
			})
		}
		return nil
	})
	g.Go(func() error {
		for id := range n {
			var chunk *dataframe.TabularChunk
			select {
			case chunk = <-ready[id]:
			case <-gctx.Done():
				return gctx.Err()
			}
			err := fn(gctx, chunk)
			chunk.Release()
			sem.Release(1)
			if err != nil {
				return err
			}
		}
		return nil
	})

	err := g.Wait()
	for _, ch := range ready {
		select {
		case chunk := <-ch:
			chunk.Release()
		default:
		}
	}
	return err
}

// ForEachRow calls fn with the views of every row of chunk, in order.
func ForEachRow(chunk *dataframe.TabularChunk, fn func(row int, views []dataframe.RowView) error) error {
	for row := range chunk.NumRows() {
		views, err := chunk.GetSequence(row)
		if err != nil {
			return err
		}
		if err := fn(row, views); err != nil {
			return err
		}
	}
	return nil
}
