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

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/framefeed/config"
	"github.com/cardinalhq/framefeed/internal/debugging"
	"github.com/cardinalhq/framefeed/internal/deserializer"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "framefeed",
	Short: "Serve Parquet training data as feature and label rows",
	Long: `Read a directory of Parquet files from local disk, HDFS, S3 or Azure Blob
storage and decode it chunk by chunk into dense or sparse feature and label rows.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Configuration file (default ./config.yaml if present)")
	rootCmd.PersistentFlags().Int("verbosity", -1, "Log verbosity: 0 warn, 1 info, 2 debug")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads --config or the default locations, then applies
// --verbosity when given.
func loadConfig(c *cobra.Command) (*config.Config, error) {
	path, err := c.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	var cfg *config.Config
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if c.Flags().Changed("verbosity") {
		if cfg.Verbosity, err = c.Flags().GetInt("verbosity"); err != nil {
			return nil, fmt.Errorf("failed to get verbosity flag: %w", err)
		}
	}
	return cfg, nil
}

// withDeserializer sets up telemetry, opens a deserializer from the
// configuration and hands both to fn.
func withDeserializer(c *cobra.Command, name string, fn func(ctx context.Context, d *deserializer.Deserializer) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, doneFx, err := setupTelemetry(name, cfg.Verbosity)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	defer func() {
		if err := doneFx(); err != nil {
			slog.Error("Error shutting down telemetry", slog.Any("error", err))
		}
	}()

	debugging.StartPprof(ctx)

	d, err := deserializer.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			slog.Error("Error closing deserializer", slog.Any("error", err))
		}
	}()

	return timed(ctx, name, func() error {
		return fn(ctx, d)
	})
}
