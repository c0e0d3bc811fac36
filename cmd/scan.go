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
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/framefeed/internal/dataframe"
	"github.com/cardinalhq/framefeed/internal/deserializer"
)

func init() {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Decode every chunk and print totals",
		RunE: func(c *cobra.Command, _ []string) error {
			return withDeserializer(c, "scan", func(ctx context.Context, d *deserializer.Deserializer) error {
				return runScan(ctx, c.OutOrStdout(), d)
			})
		},
	}

	rootCmd.AddCommand(cmd)
}

type scanTotals struct {
	chunks int64
	rows   int64
	nnz    int64
	bytes  uint64
}

func runScan(ctx context.Context, w io.Writer, d *deserializer.Deserializer) error {
	start := time.Now()
	var totals scanTotals
	err := d.Scan(ctx, func(ctx context.Context, chunk *dataframe.TabularChunk) error {
		totals.chunks++
		totals.bytes += uint64(chunk.Buffer().SizeBytes())
		err := deserializer.ForEachRow(chunk, func(_ int, views []dataframe.RowView) error {
			totals.rows++
			for _, v := range views {
				switch v := v.(type) {
				case dataframe.DenseView:
					totals.nnz += int64(v.Dimension)
				case dataframe.SparseView:
					totals.nnz += int64(v.NNZ())
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		slog.Debug("Scanned chunk", slog.Int("chunkID", chunk.ChunkID()), slog.Int("rows", chunk.NumRows()))
		return ctx.Err()
	})
	if err != nil {
		return err
	}

	elapsed := time.Since(start)
	fmt.Fprintf(w, "chunks %s\nrows %s\nvalues %s\ndecoded %s\nelapsed %s\n",
		humanize.Comma(totals.chunks),
		humanize.Comma(totals.rows),
		humanize.Comma(totals.nnz),
		humanize.IBytes(totals.bytes),
		elapsed.Round(time.Millisecond))
	return nil
}
