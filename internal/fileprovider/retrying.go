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

package fileprovider

import (
	"context"
	"errors"

	"github.com/cardinalhq/framefeed/internal/frameerr"
	"github.com/cardinalhq/framefeed/internal/retry"
)

// WithRetry retries listing per policy. Only connection errors are retried;
// not-found and classification errors fail immediately. Opening is retried by
// the table file opener, which also covers the first reads of a remote file.
func WithRetry(p Provider, policy retry.Policy) Provider {
	return &retryingProvider{Provider: p, policy: policy}
}

type retryingProvider struct {
	Provider
	policy retry.Policy
}

func retryable(err error) error {
	if errors.Is(err, ErrNotFound) || !errors.Is(err, frameerr.ErrConnection) {
		return retry.Permanent(err)
	}
	return err
}

func (r *retryingProvider) GetFileList(ctx context.Context) ([]Handle, error) {
	return retry.Do(ctx, r.policy, "list source files", func(ctx context.Context) ([]Handle, error) {
		hs, err := r.Provider.GetFileList(ctx)
		if err != nil {
			return nil, retryable(err)
		}
		return hs, nil
	})
}
