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
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cardinalhq/framefeed/internal/dataframe"
	"github.com/cardinalhq/framefeed/internal/fileprovider"
	"github.com/cardinalhq/framefeed/internal/retry"
	"github.com/cardinalhq/framefeed/internal/tablefile"
)

// Config aggregates configuration for a deserializer session.
// Connection and retry settings are owned by their packages.
type Config struct {
	Source        fileprovider.Config `mapstructure:"source"`
	Format        string              `mapstructure:"format"`
	Engine        string              `mapstructure:"engine"`
	Precision     string              `mapstructure:"precision"`
	Features      StreamConfig        `mapstructure:"features"`
	Labels        StreamConfig        `mapstructure:"labels"`
	ReadBatchSize int                 `mapstructure:"readBatchSize"`
	Retry         retry.Policy        `mapstructure:"retry"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Workers       int                 `mapstructure:"workers"`
	// Verbosity is 0 warn, 1 info, 2 or more debug. Negative leaves the
	// logger alone.
	Verbosity int `mapstructure:"verbosity"`
}

// StreamConfig declares one logical input column.
type StreamConfig struct {
	Name   string `mapstructure:"name"`
	Dim    int    `mapstructure:"dim"`
	Format string `mapstructure:"format"`
}

// CacheConfig sizes the decoded chunk cache. A zero capacity disables it.
type CacheConfig struct {
	Capacity int           `mapstructure:"capacity"`
	TTL      time.Duration `mapstructure:"ttl"`
}

const FormatParquet = "parquet"

// DefaultConfig is the configuration before files and environment apply.
// Dimensions have no default.
func DefaultConfig() *Config {
	return &Config{
		Source:        fileprovider.DefaultConfig(),
		Format:        FormatParquet,
		Engine:        tablefile.EngineArrow,
		Precision:     dataframe.Double.String(),
		Features:      StreamConfig{Name: "features", Format: dataframe.Dense.String()},
		Labels:        StreamConfig{Name: "labels", Format: dataframe.Dense.String()},
		ReadBatchSize: dataframe.DefaultReadBatchSize,
		Retry:         retry.DefaultPolicy(),
		Cache:         CacheConfig{TTL: 5 * time.Minute},
		Workers:       4,
		Verbosity:     -1,
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "FRAMEFEED" and the dot character
// in keys is replaced by an underscore. For example, "features.dim" becomes
// "FRAMEFEED_FEATURES_DIM".
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()
	return unmarshal(v)
}

// LoadFile is Load with an explicit configuration file, which must exist.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("FRAMEFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	bindEnvs(v, cfg)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return cfg, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}

// Layout converts the stream settings to the decoder's column layout,
// features first.
func (c *Config) Layout() (dataframe.Layout, error) {
	precision, err := dataframe.ParsePrecision(c.Precision)
	if err != nil {
		return dataframe.Layout{}, err
	}
	layout := dataframe.Layout{Precision: precision}
	for _, s := range []StreamConfig{c.Features, c.Labels} {
		storage, err := dataframe.ParseStorageFormat(s.Format)
		if err != nil {
			return dataframe.Layout{}, fmt.Errorf("%s: %w", s.Name, err)
		}
		layout.Columns = append(layout.Columns, dataframe.ColumnSpec{
			Name:      s.Name,
			Dimension: s.Dim,
			Storage:   storage,
		})
	}
	return layout, nil
}
