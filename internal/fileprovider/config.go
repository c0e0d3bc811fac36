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
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

const (
	TypeLocal = "local"
	TypeHDFS  = "hdfs"
	TypeS3    = "s3"
	TypeAzure = "azure"
)

// Config locates the source files. Path is a directory or a single file; for
// object stores it is the key prefix inside Bucket.
type Config struct {
	Type           string `mapstructure:"type"`
	Path           string `mapstructure:"path"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Bucket         string `mapstructure:"bucket"`
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	UsePathStyle   bool   `mapstructure:"usePathStyle"`
	Role           string `mapstructure:"role"`
	StorageAccount string `mapstructure:"storageAccount"`
}

func DefaultConfig() Config {
	return Config{
		Type: TypeLocal,
		Port: 8020,
	}
}

// Validate reports every missing or invalid connection parameter.
func (c Config) Validate() error {
	var errs *multierror.Error
	switch c.Type {
	case TypeLocal:
		if c.Path == "" {
			errs = multierror.Append(errs, errors.New("source.path is required"))
		}
	case TypeHDFS:
		if c.Path == "" {
			errs = multierror.Append(errs, errors.New("source.path is required"))
		}
		if c.Host == "" {
			errs = multierror.Append(errs, errors.New("source.host is required for hdfs"))
		}
		if c.Port <= 0 || c.Port > 65535 {
			errs = multierror.Append(errs, fmt.Errorf("source.port %d is not a valid port", c.Port))
		}
	case TypeS3:
		if c.Bucket == "" {
			errs = multierror.Append(errs, errors.New("source.bucket is required for s3"))
		}
	case TypeAzure:
		if c.Bucket == "" {
			errs = multierror.Append(errs, errors.New("source.bucket (container) is required for azure"))
		}
		if c.StorageAccount == "" && c.Endpoint == "" {
			errs = multierror.Append(errs, errors.New("source.storageAccount or source.endpoint is required for azure"))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("source.type %q is not one of local, hdfs, s3, azure", c.Type))
	}
	return errs.ErrorOrNil()
}
