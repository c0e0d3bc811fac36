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
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/framefeed/internal/dataframe"
	"github.com/cardinalhq/framefeed/internal/deserializer"
)

func init() {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the decoded rows of one chunk",
		RunE: func(c *cobra.Command, _ []string) error {
			chunkID, err := c.Flags().GetInt("chunk")
			if err != nil {
				return fmt.Errorf("failed to get chunk flag: %w", err)
			}
			rows, err := c.Flags().GetInt("rows")
			if err != nil {
				return fmt.Errorf("failed to get rows flag: %w", err)
			}
			return withDeserializer(c, "dump", func(ctx context.Context, d *deserializer.Deserializer) error {
				return runDump(ctx, c.OutOrStdout(), d, chunkID, rows)
			})
		},
	}

	rootCmd.AddCommand(cmd)

	cmd.Flags().Int("chunk", 0, "Chunk id to decode")
	cmd.Flags().Int("rows", 10, "Number of rows to print, 0 for all")
}

func runDump(ctx context.Context, w io.Writer, d *deserializer.Deserializer, chunkID, limit int) error {
	chunk, err := d.GetChunk(ctx, chunkID)
	if err != nil {
		return err
	}
	defer chunk.Release()

	names := make([]string, 0, len(d.StreamDescriptors()))
	for _, s := range d.StreamDescriptors() {
		names = append(names, s.Name)
	}
	return deserializer.ForEachRow(chunk, func(row int, views []dataframe.RowView) error {
		if limit > 0 && row >= limit {
			return nil
		}
		parts := make([]string, len(views))
		for i, v := range views {
			parts[i] = names[i] + "=" + formatView(v)
		}
		fmt.Fprintf(w, "%d\t%s\n", views[0].RowKey().Row, strings.Join(parts, "\t"))
		return nil
	})
}

func formatView(v dataframe.RowView) string {
	switch v := v.(type) {
	case dataframe.DenseView:
		if v.Float64 != nil {
			return "[" + joinFloats(v.Float64, 64) + "]"
		}
		return "[" + joinFloats(v.Float32, 32) + "]"
	case dataframe.SparseView:
		var b strings.Builder
		b.WriteByte('{')
		for i, idx := range v.Indices {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strconv.Itoa(int(idx)))
			b.WriteByte(':')
			if v.Float64 != nil {
				b.WriteString(strconv.FormatFloat(v.Float64[i], 'g', -1, 64))
			} else {
				b.WriteString(strconv.FormatFloat(float64(v.Float32[i]), 'g', -1, 32))
			}
		}
		b.WriteByte('}')
		return b.String()
	default:
		return "?"
	}
}

func joinFloats[T float32 | float64](vals []T, bits int) string {
	parts := make([]string, len(vals))
	for i, f := range vals {
		parts[i] = strconv.FormatFloat(float64(f), 'g', -1, bits)
	}
	return strings.Join(parts, " ")
}
