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
	"context"
	"errors"

	"github.com/cardinalhq/framefeed/internal/fileprovider"
	"github.com/cardinalhq/framefeed/internal/frameerr"
	"github.com/cardinalhq/framefeed/internal/retry"
)

// WithRetry retries Open per policy. An attempt covers opening the handle and
// reading the footer, since remote backends do no I/O until the first read.
// Only connection errors are retried.
func WithRetry(o Opener, policy retry.Policy) Opener {
	return &retryingOpener{Opener: o, policy: policy}
}

type retryingOpener struct {
	Opener
	policy retry.Policy
}

func (r *retryingOpener) Open(ctx context.Context, h fileprovider.Handle) (File, error) {
	return retry.Do(ctx, r.policy, "open "+h.Path(), func(ctx context.Context) (File, error) {
		f, err := r.Opener.Open(ctx, h)
		if err != nil {
			if errors.Is(err, fileprovider.ErrNotFound) || !errors.Is(err, frameerr.ErrConnection) {
				return nil, retry.Permanent(err)
			}
			return nil, err
		}
		return f, nil
	})
}
