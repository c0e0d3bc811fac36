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
	"context"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/framefeed/internal/fileprovider"
	"github.com/cardinalhq/framefeed/internal/frameerr"
	"github.com/cardinalhq/framefeed/internal/logctx"
	"github.com/cardinalhq/framefeed/internal/tablefile"
)

// Source is an initialized source set: the open files, in chunk-id order,
// and the metadata derived from them. Files stay open for the session.
type Source struct {
	Meta    *TableMetadata
	Handles []fileprovider.Handle
	Files   []tablefile.File
}

// InitializeSources opens every handle in order, records each file's row
// groups and their row counts, and checks that every file has the first
// file's schema and that the schema has the physical columns layout reads.
func InitializeSources(ctx context.Context, handles []fileprovider.Handle, opener tablefile.Opener, layout Layout) (*Source, error) {
	if len(handles) == 0 {
		return nil, frameerr.New(frameerr.ErrNoSources, frameerr.NoLocation, "empty file list")
	}
	if err := layout.Validate(); err != nil {
		return nil, frameerr.Wrap(frameerr.ErrConfiguration, frameerr.NoLocation, err, "layout")
	}

	src := &Source{Handles: handles, Files: make([]tablefile.File, 0, len(handles))}
	ok := false
	defer func() {
		if !ok {
			_ = src.Close()
		}
	}()

	var (
		schema    tablefile.Schema
		rowCounts []int64
	)
	rowGroupsPerFile := make([]int, 0, len(handles))
	for i, h := range handles {
		loc := frameerr.FileLocation(i, h.Path())
		f, err := opener.Open(ctx, h)
		if err != nil {
			if frameerr.KindOf(err) == nil {
				err = frameerr.Wrap(frameerr.ErrSchema, loc, err, "not a readable table file")
			}
			return nil, err
		}
		src.Files = append(src.Files, f)

		if i == 0 {
			schema = f.Schema()
			if len(schema) < layout.PhysicalColumns() {
				return nil, frameerr.New(frameerr.ErrSchema, loc,
					"layout needs %d physical columns, file has %d", layout.PhysicalColumns(), len(schema))
			}
		} else if d := schema.FirstDifference(f.Schema()); d >= 0 {
			loc.Column = d
			return nil, frameerr.New(frameerr.ErrSchema, loc, "schema differs from file 0 (%s)", describeColumn(schema, f.Schema(), d))
		}

		n := f.NumRowGroups()
		rowGroupsPerFile = append(rowGroupsPerFile, n)
		var fileRows int64
		for rg := range n {
			rows, err := f.RowGroupNumRows(rg)
			if err != nil {
				return nil, fmt.Errorf("row group %d of %s: %w", rg, h.Path(), err)
			}
			rowCounts = append(rowCounts, rows)
			fileRows += rows
		}
		logctx.FromContext(ctx).Debug("Opened source file",
			append(logctx.FileAttrs(i, h.Path()),
				slog.Int("rowGroups", n),
				slog.Int64("rows", fileRows))...)
	}

	meta, err := NewTableMetadata(schema, rowGroupsPerFile, rowCounts)
	if err != nil {
		return nil, err
	}
	src.Meta = meta
	ok = true
	return src, nil
}

func describeColumn(want, got tablefile.Schema, i int) string {
	field := func(s tablefile.Schema) string {
		if i >= len(s) {
			return "missing"
		}
		return fmt.Sprintf("%s %s", s[i].Name, s[i].Type)
	}
	return fmt.Sprintf("want %s, got %s", field(want), field(got))
}

// Close closes every open file.
func (s *Source) Close() error {
	var errs *multierror.Error
	for i, f := range s.Files {
		if err := f.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close file %d: %w", i, err))
		}
	}
	s.Files = nil
	return errs.ErrorOrNil()
}
