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

package frameerr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMatchesKindAndCause(t *testing.T) {
	cause := errors.New("eof")
	err := Wrap(ErrShortRead, ColumnLocation(1, 2, 3), cause, "read 5 of 6 values")

	assert.ErrorIs(t, err, ErrShortRead)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrSchema)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 1, fe.FileIndex)
	assert.Equal(t, 2, fe.RowGroup)
	assert.Equal(t, 3, fe.Column)
	assert.Equal(t, "short read: file 1 row group 2 column 3: read 5 of 6 values: eof", err.Error())
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(ErrConnection, NoLocation, nil, "open"))
}

func TestErrorStringWithoutLocation(t *testing.T) {
	err := New(ErrIndexOutOfRange, NoLocation, "chunk %d not in [0, %d)", 7, 3)
	assert.Equal(t, "index out of range: chunk 7 not in [0, 3)", err.Error())
}

func TestFileLocationString(t *testing.T) {
	err := New(ErrSchema, FileLocation(2, "/data/b.parquet"), "column 0 differs")
	assert.Equal(t, "schema error: file 2 (/data/b.parquet): column 0 differs", err.Error())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		kind  error
		label string
	}{
		{"typed", New(ErrTypeMismatch, NoLocation, "x"), ErrTypeMismatch, "type_mismatch"},
		{"wrapped typed", fmt.Errorf("chunk 3: %w", New(ErrUnsupportedType, NoLocation, "x")), ErrUnsupportedType, "unsupported_type"},
		{"bare sentinel", fmt.Errorf("listing: %w", ErrNoSources), ErrNoSources, "no_sources"},
		{"unclassified", context.Canceled, nil, "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Equal(t, tt.label, KindName(tt.err))
		})
	}
}
