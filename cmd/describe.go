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

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/framefeed/internal/deserializer"
)

func init() {
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print the streams, files and chunks of the configured source",
		RunE: func(c *cobra.Command, _ []string) error {
			return withDeserializer(c, "describe", func(_ context.Context, d *deserializer.Deserializer) error {
				return runDescribe(c.OutOrStdout(), d)
			})
		},
	}

	rootCmd.AddCommand(cmd)
}

func runDescribe(w io.Writer, d *deserializer.Deserializer) error {
	fmt.Fprintf(w, "session %s\n\nstreams:\n", d.Session())
	for _, s := range d.StreamDescriptors() {
		fmt.Fprintf(w, "  %d %-12s dim=%d storage=%s precision=%s\n", s.ID, s.Name, s.Dimension, s.Storage, s.Precision)
	}

	fmt.Fprintf(w, "\nfiles:\n")
	for _, h := range d.Files() {
		fmt.Fprintf(w, "  %d %s (%s)\n", h.Index(), h.Path(), humanize.IBytes(uint64(h.Size())))
	}

	meta := d.Metadata()
	fmt.Fprintf(w, "\nchunks:\n")
	for _, cd := range d.ChunkDescriptions() {
		addr, err := meta.ResolveChunk(cd.ID)
		if err != nil {
			return err
		}
		start, err := meta.ChunkRowStart(cd.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %d file=%d rowGroup=%d rows=%s firstRow=%s\n",
			cd.ID, addr.FileIndex, addr.RowGroup, humanize.Comma(cd.NumberOfSequences), humanize.Comma(start))
	}

	fmt.Fprintf(w, "\n%s rows in %s chunks across %s files\n",
		humanize.Comma(meta.NumberOfRows()),
		humanize.Comma(int64(meta.NumberOfRowChunks())),
		humanize.Comma(int64(meta.NumberOfFiles())))
	return nil
}
