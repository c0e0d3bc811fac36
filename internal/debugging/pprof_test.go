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

package debugging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPprofPort(t *testing.T) {
	tests := map[string]int{
		"":      0,
		"0":     0,
		"off":   0,
		"false": 0,
		"6060":  6060,
		"junk":  0,
		"70000": 0,
	}
	for in, want := range tests {
		assert.Equal(t, want, pprofPort(in), "input %q", in)
	}
}

func TestStartPprofDisabled(t *testing.T) {
	t.Setenv(PprofPortEnv, "")
	assert.False(t, StartPprof(t.Context()))
}
