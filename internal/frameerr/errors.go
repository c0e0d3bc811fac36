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

// Package frameerr holds the error taxonomy shared by the ingestion packages.
// Each kind is a sentinel; *Error attaches the file / row group / column
// location and an optional cause so callers can use both errors.Is and
// errors.As.
package frameerr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration   = errors.New("configuration error")
	ErrConnection      = errors.New("connection error")
	ErrNoSources       = errors.New("no source files")
	ErrSchema          = errors.New("schema error")
	ErrShortRead       = errors.New("short read")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrUnsupportedType = errors.New("unsupported type")
	ErrIndexOutOfRange = errors.New("index out of range")
)

var kinds = []error{
	ErrConfiguration,
	ErrConnection,
	ErrNoSources,
	ErrSchema,
	ErrShortRead,
	ErrTypeMismatch,
	ErrUnsupportedType,
	ErrIndexOutOfRange,
}

// Location identifies where in the source set an error happened.
// Negative indexes and an empty path mean "not applicable".
type Location struct {
	FileIndex int
	RowGroup  int
	Column    int
	Path      string
}

// NoLocation is the zero location for errors not tied to a file.
var NoLocation = Location{FileIndex: -1, RowGroup: -1, Column: -1}

// FileLocation is a location naming only a file.
func FileLocation(fileIndex int, path string) Location {
	return Location{FileIndex: fileIndex, RowGroup: -1, Column: -1, Path: path}
}

// ColumnLocation names a column of a row group in a file.
func ColumnLocation(fileIndex, rowGroup, column int) Location {
	return Location{FileIndex: fileIndex, RowGroup: rowGroup, Column: column}
}

func (l Location) String() string {
	var parts []string
	if l.FileIndex >= 0 {
		parts = append(parts, fmt.Sprintf("file %d", l.FileIndex))
	}
	if l.RowGroup >= 0 {
		parts = append(parts, fmt.Sprintf("row group %d", l.RowGroup))
	}
	if l.Column >= 0 {
		parts = append(parts, fmt.Sprintf("column %d", l.Column))
	}
	if l.Path != "" {
		parts = append(parts, fmt.Sprintf("(%s)", l.Path))
	}
	return strings.Join(parts, " ")
}

// Error is a classified failure with its location.
type Error struct {
	Kind error
	Location
	Msg string
	Err error
}

// New builds an error of the given kind.
func New(kind error, loc Location, format string, args ...any) *Error {
	return &Error{Kind: kind, Location: loc, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err as kind. A nil err yields nil.
func Wrap(kind error, loc Location, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Location: loc, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if loc := e.Location.String(); loc != "" {
		b.WriteString(": ")
		b.WriteString(loc)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the sentinel kind err is classified as, or nil.
func KindOf(err error) error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// KindName is a short label for err's kind, suitable for metric attributes.
func KindName(err error) string {
	switch KindOf(err) {
	case ErrConfiguration:
		return "configuration"
	case ErrConnection:
		return "connection"
	case ErrNoSources:
		return "no_sources"
	case ErrSchema:
		return "schema"
	case ErrShortRead:
		return "short_read"
	case ErrTypeMismatch:
		return "type_mismatch"
	case ErrUnsupportedType:
		return "unsupported_type"
	case ErrIndexOutOfRange:
		return "index_out_of_range"
	default:
		return "other"
	}
}
