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

// Package deserializer serves a directory of table files as numbered chunks
// of feature and label rows. It wires configuration to a file provider, opens
// every file once, and decodes chunks on demand.
package deserializer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/framefeed/config"
	"github.com/cardinalhq/framefeed/internal/dataframe"
	"github.com/cardinalhq/framefeed/internal/fileprovider"
	"github.com/cardinalhq/framefeed/internal/frameerr"
	"github.com/cardinalhq/framefeed/internal/idgen"
	"github.com/cardinalhq/framefeed/internal/logctx"
	"github.com/cardinalhq/framefeed/internal/tablefile"
)

var ErrClosed = errors.New("deserializer is closed")

// StreamDescriptor describes one logical input column to the consumer.
type StreamDescriptor struct {
	ID        int
	Name      string
	Dimension int
	Storage   dataframe.StorageFormat
	Precision dataframe.Precision
}

// ChunkDescription summarizes one chunk. Every row is one sequence of one
// sample.
type ChunkDescription struct {
	ID                int
	NumberOfSequences int64
	NumberOfSamples   int64
}

// SequenceKey is the global identity of a sequence.
type SequenceKey struct {
	Sequence int64
	Sample   int64
}

// SequenceDescription locates one row inside its chunk.
type SequenceDescription struct {
	IndexInChunk    int
	NumberOfSamples int
	ChunkID         int
	Key             SequenceKey
}

type Option func(*options)

type options struct {
	alloc memory.Allocator
}

// WithAllocator sets the allocator decoded chunks are allocated from.
func WithAllocator(alloc memory.Allocator) Option {
	return func(o *options) {
		o.alloc = alloc
	}
}

// Deserializer is safe for concurrent use. Chunks of different files are
// decoded in parallel; chunks of the same file are decoded one at a time.
// Close waits for chunk builds already in progress.
type Deserializer struct {
	session  string
	layout   dataframe.Layout
	workers  int
	provider fileprovider.Provider
	src      *dataframe.Source
	builder  *dataframe.Builder
	fileMu   []sync.Mutex

	cache *chunkCache

	// lifeMu is held shared by every GetChunkBuffer and exclusively by Close.
	lifeMu    sync.RWMutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// New validates cfg, connects to the configured storage and opens every
// source file.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Deserializer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	provider, err := fileprovider.New(ctx, cfg.Source, cfg.Retry)
	if err != nil {
		return nil, err
	}
	// Page buffers belong to the open files, not to decoded chunks.
	opener, err := tablefile.NewOpener(cfg.Engine, memory.DefaultAllocator)
	if err != nil {
		_ = provider.Close()
		return nil, frameerr.Wrap(frameerr.ErrConfiguration, frameerr.NoLocation, err, "engine")
	}
	d, err := Open(ctx, cfg, provider, tablefile.WithRetry(opener, cfg.Retry), opts...)
	if err != nil {
		_ = provider.Close()
		return nil, err
	}
	return d, nil
}

func applyOptions(opts []Option) options {
	o := options{alloc: memory.DefaultAllocator}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open builds a Deserializer over an existing provider and opener. On
// success the Deserializer owns provider and closes it in Close.
func Open(ctx context.Context, cfg *config.Config, provider fileprovider.Provider, opener tablefile.Opener, opts ...Option) (*Deserializer, error) {
	layout, err := cfg.Layout()
	if err != nil {
		return nil, frameerr.Wrap(frameerr.ErrConfiguration, frameerr.NoLocation, err, "layout")
	}
	o := applyOptions(opts)

	session := idgen.NextBase32ID()
	ctx = logctx.With(ctx, slog.String("session", session))

	handles, err := provider.GetFileList(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list source files: %w", err)
	}
	src, err := dataframe.InitializeSources(ctx, handles, opener, layout)
	if err != nil {
		return nil, err
	}

	d := &Deserializer{
		session:  session,
		layout:   layout,
		workers:  max(cfg.Workers, 1),
		provider: provider,
		src:      src,
		builder: dataframe.NewBuilder(src, layout,
			dataframe.WithAllocator(o.alloc),
			dataframe.WithReadBatchSize(cfg.ReadBatchSize)),
		fileMu: make([]sync.Mutex, len(src.Files)),
	}
	if cfg.Cache.Capacity > 0 {
		d.cache = newChunkCache(cfg.Cache)
	}

	logctx.FromContext(ctx).Info("Opened data frame source",
		slog.String("engine", opener.Engine()),
		slog.Int("fileCount", src.Meta.NumberOfFiles()),
		slog.Int("chunkCount", src.Meta.NumberOfRowChunks()),
		slog.Int64("rowCount", src.Meta.NumberOfRows()))
	return d, nil
}

func (d *Deserializer) Session() string { return d.session }

func (d *Deserializer) Metadata() *dataframe.TableMetadata { return d.src.Meta }

func (d *Deserializer) Layout() dataframe.Layout { return d.layout }

// Files returns the source files in chunk-id order.
func (d *Deserializer) Files() []fileprovider.Handle {
	return append([]fileprovider.Handle(nil), d.src.Handles...)
}

func (d *Deserializer) ChunkCount() int { return d.src.Meta.NumberOfRowChunks() }

func (d *Deserializer) ChunkRowCount(id int) (int64, error) {
	return d.src.Meta.NumberOfRowsInChunk(id)
}

func (d *Deserializer) StreamDescriptors() []StreamDescriptor {
	out := make([]StreamDescriptor, len(d.layout.Columns))
	for i, c := range d.layout.Columns {
		out[i] = StreamDescriptor{
			ID:        i,
			Name:      c.Name,
			Dimension: c.Dimension,
			Storage:   c.Storage,
			Precision: d.layout.Precision,
		}
	}
	return out
}

func (d *Deserializer) ChunkDescriptions() []ChunkDescription {
	out := make([]ChunkDescription, d.ChunkCount())
	for id := range out {
		n, _ := d.src.Meta.NumberOfRowsInChunk(id)
		out[id] = ChunkDescription{ID: id, NumberOfSequences: n, NumberOfSamples: n}
	}
	return out
}

// GetSequencesForChunk describes every row of chunk id.
func (d *Deserializer) GetSequencesForChunk(id int) ([]SequenceDescription, error) {
	n, err := d.src.Meta.NumberOfRowsInChunk(id)
	if err != nil {
		return nil, err
	}
	start, err := d.src.Meta.ChunkRowStart(id)
	if err != nil {
		return nil, err
	}
	out := make([]SequenceDescription, n)
	for i := range out {
		row := start + int64(i)
		out[i] = SequenceDescription{
			IndexInChunk:    i,
			NumberOfSamples: 1,
			ChunkID:         id,
			Key:             SequenceKey{Sequence: row, Sample: row},
		}
	}
	return out, nil
}

// GetChunkBuffer returns chunk id with a reference the caller must release.
func (d *Deserializer) GetChunkBuffer(ctx context.Context, id int) (*dataframe.ChunkBuffer, error) {
	d.lifeMu.RLock()
	defer d.lifeMu.RUnlock()
	if d.closed {
		return nil, ErrClosed
	}
	if buf := d.cached(id); buf != nil {
		return buf, nil
	}
	addr, err := d.src.Meta.ResolveChunk(id)
	if err != nil {
		return nil, err
	}

	mu := &d.fileMu[addr.FileIndex]
	mu.Lock()
	defer mu.Unlock()
	if buf := d.cached(id); buf != nil {
		return buf, nil
	}

	ctx = logctx.With(ctx, slog.String("session", d.session))
	buf, err := d.builder.GetChunkBuffer(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.cache != nil {
		d.cache.put(id, buf)
	}
	return buf, nil
}

func (d *Deserializer) cached(id int) *dataframe.ChunkBuffer {
	if d.cache == nil {
		return nil
	}
	return d.cache.get(id)
}

// GetChunk is GetChunkBuffer wrapped for row access.
func (d *Deserializer) GetChunk(ctx context.Context, id int) (*dataframe.TabularChunk, error) {
	buf, err := d.GetChunkBuffer(ctx, id)
	if err != nil {
		return nil, err
	}
	return dataframe.NewTabularChunk(buf), nil
}

// GetSequence returns the views of local row row of buf.
func (d *Deserializer) GetSequence(buf *dataframe.ChunkBuffer, row int) ([]dataframe.RowView, error) {
	return dataframe.GetSequence(buf, row)
}

// Close waits for in-flight chunk builds, releases every cached chunk and
// closes every file and the provider. Chunks already handed out stay valid
// until their holders release them.
func (d *Deserializer) Close() error {
	d.closeOnce.Do(func() {
		d.lifeMu.Lock()
		d.closed = true
		d.lifeMu.Unlock()
		if d.cache != nil {
			d.cache.Close()
		}
		var errs *multierror.Error
		errs = multierror.Append(errs, d.src.Close())
		errs = multierror.Append(errs, d.provider.Close())
		d.closeErr = errs.ErrorOrNil()
	})
	return d.closeErr
}
