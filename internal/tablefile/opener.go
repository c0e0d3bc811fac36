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
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

// NewOpener returns the Opener for engine. An empty engine selects arrow.
func NewOpener(engine string, alloc memory.Allocator) (Opener, error) {
	switch engine {
	case "", EngineArrow:
		return NewArrowOpener(alloc), nil
	case EngineParquetGo:
		return NewParquetGoOpener(), nil
	default:
		return nil, fmt.Errorf("unknown table file engine %q", engine)
	}
}
