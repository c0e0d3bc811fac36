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

package dataframe

import (
	"fmt"

	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	chunksBuilt        otelmetric.Int64Counter
	rowsDecoded        otelmetric.Int64Counter
	valuesDecoded      otelmetric.Int64Counter
	chunkBuildErrors   otelmetric.Int64Counter
	chunkBuildDuration otelmetric.Float64Histogram
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/framefeed/internal/dataframe")

	var err error
	chunksBuilt, err = meter.Int64Counter(
		"framefeed.chunks.built",
		otelmetric.WithDescription("Number of chunks decoded into chunk buffers"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create chunks.built counter: %w", err))
	}

	rowsDecoded, err = meter.Int64Counter(
		"framefeed.rows.decoded",
		otelmetric.WithDescription("Number of rows held by decoded chunk buffers"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create rows.decoded counter: %w", err))
	}

	valuesDecoded, err = meter.Int64Counter(
		"framefeed.values.decoded",
		otelmetric.WithDescription("Number of feature and label values decoded"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create values.decoded counter: %w", err))
	}

	chunkBuildErrors, err = meter.Int64Counter(
		"framefeed.chunks.errors",
		otelmetric.WithDescription("Number of chunk builds that failed, by error kind"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create chunks.errors counter: %w", err))
	}

	chunkBuildDuration, err = meter.Float64Histogram(
		"framefeed.chunks.build.duration",
		otelmetric.WithDescription("Time spent decoding one chunk"),
		otelmetric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create chunks.build.duration histogram: %w", err))
	}
}
