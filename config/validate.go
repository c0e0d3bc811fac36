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

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/framefeed/internal/dataframe"
	"github.com/cardinalhq/framefeed/internal/frameerr"
	"github.com/cardinalhq/framefeed/internal/tablefile"
)

// ValidationError lists every problem found in a Config. It matches
// frameerr.ErrConfiguration with errors.Is.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return fmt.Sprintf("%s: %s", frameerr.ErrConfiguration, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() []error {
	return append([]error{frameerr.ErrConfiguration}, e.Problems...)
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs *multierror.Error
	errs = multierror.Append(errs, c.Source.Validate())

	if !strings.EqualFold(c.Format, FormatParquet) {
		errs = multierror.Append(errs, fmt.Errorf("format %q is not supported, only %s", c.Format, FormatParquet))
	}
	switch c.Engine {
	case "", tablefile.EngineArrow, tablefile.EngineParquetGo:
	default:
		errs = multierror.Append(errs, fmt.Errorf("engine %q is not %s or %s", c.Engine, tablefile.EngineArrow, tablefile.EngineParquetGo))
	}
	if _, err := dataframe.ParsePrecision(c.Precision); err != nil {
		errs = multierror.Append(errs, err)
	}

	for _, s := range []struct {
		key string
		cfg StreamConfig
	}{{"features", c.Features}, {"labels", c.Labels}} {
		if s.cfg.Name == "" {
			errs = multierror.Append(errs, fmt.Errorf("%s.name is required", s.key))
		}
		if s.cfg.Dim <= 0 {
			errs = multierror.Append(errs, fmt.Errorf("%s.dim must be positive, got %d", s.key, s.cfg.Dim))
		}
		if _, err := dataframe.ParseStorageFormat(s.cfg.Format); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s.format: %w", s.key, err))
		}
	}
	if c.Features.Name != "" && c.Features.Name == c.Labels.Name {
		errs = multierror.Append(errs, fmt.Errorf("features.name and labels.name are both %q", c.Features.Name))
	}

	if c.ReadBatchSize <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("readBatchSize must be positive, got %d", c.ReadBatchSize))
	}
	if c.Workers <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.Retry.Attempts < 1 {
		errs = multierror.Append(errs, fmt.Errorf("retry.attempts must be at least 1, got %d", c.Retry.Attempts))
	}
	if c.Retry.InitialDelay < 0 {
		errs = multierror.Append(errs, errors.New("retry.initialDelay must not be negative"))
	}
	if c.Cache.Capacity < 0 {
		errs = multierror.Append(errs, fmt.Errorf("cache.capacity must not be negative, got %d", c.Cache.Capacity))
	}
	if c.Cache.TTL < 0 {
		errs = multierror.Append(errs, errors.New("cache.ttl must not be negative"))
	}

	if errs.ErrorOrNil() == nil {
		return nil
	}
	return &ValidationError{Problems: errs.Errors}
}
