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

// Package fileprovider lists and opens the table files of a source location.
// The list order is lexicographic by path and defines global chunk ids, so
// every backend sorts before returning.
package fileprovider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/cardinalhq/framefeed/internal/frameerr"
)

// File is an open source file, randomly addressable.
type File interface {
	io.ReaderAt
	io.Seeker
	io.Closer
}

// Handle names one source file in list order.
type Handle interface {
	Path() string
	Index() int
	Size() int64
	Open(ctx context.Context) (File, error)
}

// Provider enumerates the source files of one location.
type Provider interface {
	GetFileList(ctx context.Context) ([]Handle, error)
	Close() error
}

// ErrNotFound marks a path or object that does not exist. It is never retried.
var ErrNotFound = errors.New("not found")

const sourceMarker = ".parquet"

// IsSourceName reports whether a directory entry is a table file.
func IsSourceName(name string) bool {
	return strings.Contains(name, sourceMarker)
}

type openFunc func(ctx context.Context, path string, size int64) (File, error)

type entry struct {
	path string
	size int64
}

type handle struct {
	path  string
	index int
	size  int64
	open  openFunc
}

func (h *handle) Path() string { return h.path }
func (h *handle) Index() int   { return h.index }
func (h *handle) Size() int64  { return h.size }

func (h *handle) Open(ctx context.Context) (File, error) {
	f, err := h.open(ctx, h.path, h.size)
	if err != nil {
		return nil, err
	}
	return &onceFile{File: f}, nil
}

// handlesFor sorts entries by path and assigns list indexes.
func handlesFor(entries []entry, open openFunc) ([]Handle, error) {
	if len(entries) == 0 {
		return nil, frameerr.ErrNoSources
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].path < entries[j].path })
	handles := make([]Handle, len(entries))
	for i, e := range entries {
		handles[i] = &handle{path: e.path, index: i, size: e.size, open: open}
	}
	return handles, nil
}

// onceFile makes Close idempotent; table readers may close the source they
// were handed and the owner closes it again.
type onceFile struct {
	File
	once sync.Once
	err  error
}

func (f *onceFile) Close() error {
	f.once.Do(func() {
		f.err = f.File.Close()
	})
	return f.err
}

// sectionFile adapts a ReaderAt of known size to File.
type sectionFile struct {
	*io.SectionReader
}

func newSectionFile(r io.ReaderAt, size int64) File {
	return sectionFile{io.NewSectionReader(r, 0, size)}
}

func (sectionFile) Close() error { return nil }

func connectionError(loc frameerr.Location, op string, err error) error {
	if errors.Is(err, fs.ErrNotExist) && !errors.Is(err, ErrNotFound) {
		err = fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return frameerr.Wrap(frameerr.ErrConnection, loc, err, op)
}

// listInfos applies the directory-or-file rule shared by the filesystem
// backends: a directory yields its direct file children whose names mark them
// as table files, a file yields itself.
func listInfos(root string, stat func(string) (fs.FileInfo, error), readDir func(string) ([]fs.FileInfo, error), join func(...string) string) ([]entry, error) {
	info, err := stat(root)
	if err != nil {
		return nil, connectionError(frameerr.FileLocation(-1, root), "stat", err)
	}
	if !info.IsDir() {
		return []entry{{path: root, size: info.Size()}}, nil
	}

	children, err := readDir(root)
	if err != nil {
		return nil, connectionError(frameerr.FileLocation(-1, root), "list directory", err)
	}
	var entries []entry
	for _, c := range children {
		if c.IsDir() || !IsSourceName(c.Name()) {
			continue
		}
		entries = append(entries, entry{path: join(root, c.Name()), size: c.Size()})
	}
	return entries, nil
}
