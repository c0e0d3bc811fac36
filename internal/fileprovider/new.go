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
	"fmt"

	"github.com/spf13/afero"

	"github.com/cardinalhq/framefeed/internal/frameerr"
	"github.com/cardinalhq/framefeed/internal/retry"
)

// New builds the backend named by cfg.Type wrapped in WithRetry.
func New(ctx context.Context, cfg Config, policy retry.Policy) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, frameerr.Wrap(frameerr.ErrConfiguration, frameerr.NoLocation, err, "source")
	}

	var (
		p   Provider
		err error
	)
	switch cfg.Type {
	case TypeLocal:
		p = NewLocal(afero.NewOsFs(), cfg.Path)
	case TypeHDFS:
		p, err = NewHDFS(ctx, cfg, policy)
	case TypeS3:
		p, err = NewS3(ctx, cfg)
	case TypeAzure:
		p, err = NewAzure(ctx, cfg)
	default:
		err = frameerr.New(frameerr.ErrConfiguration, frameerr.NoLocation, "unknown source type %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", cfg.Type, err)
	}
	return WithRetry(p, policy), nil
}
