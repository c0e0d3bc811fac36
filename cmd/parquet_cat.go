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
	"io"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/framefeed/internal/fileprovider"
	"github.com/cardinalhq/framefeed/internal/tablefile"
)

func init() {
	cmd := &cobra.Command{
		Use:   "parquet-schema",
		Short: "Print out the physical schema of a Parquet file",
		RunE: func(c *cobra.Command, _ []string) error {
			filename, err := c.Flags().GetString("file")
			if err != nil {
				return fmt.Errorf("failed to get file flag: %w", err)
			}
			engine, err := c.Flags().GetString("engine")
			if err != nil {
				return fmt.Errorf("failed to get engine flag: %w", err)
			}

			return runParquetSchema(c.Context(), c.OutOrStdout(), filename, engine)
		},
	}

	rootCmd.AddCommand(cmd)

	cmd.Flags().String("file", "", "Parquet file to read")
	cmd.Flags().String("engine", tablefile.EngineArrow, "Reader engine: arrow or parquetgo")
	if err := cmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Errorf("failed to mark file flag as required: %w", err))
	}
}

func runParquetSchema(ctx context.Context, w io.Writer, filename, engine string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	opener, err := tablefile.NewOpener(engine, memory.DefaultAllocator)
	if err != nil {
		return err
	}
	handles, err := fileprovider.NewLocal(afero.NewOsFs(), filename).GetFileList(ctx)
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", filename, err)
	}

	f, err := opener.Open(ctx, handles[0])
	if err != nil {
		return fmt.Errorf("failed to load schema for file %s: %w", filename, err)
	}
	defer func() {
		_ = f.Close()
	}()

	for i, field := range f.Schema() {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i, field.Name, field.Type)
	}
	fmt.Fprintf(w, "row groups: %d\n", f.NumRowGroups())
	return nil
}
