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

package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"
	gomaxecs "github.com/rdforte/gomaxecs/maxprocs"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/cardinalhq/framefeed/cmd"
)

// Decoded chunks are large, short-lived heap buffers; GOMEMLIMIT keeps a
// burst of cached chunks from pushing a container past its memory limit.
const (
	memLimitRatio    = 0.8
	defaultGCPercent = 50
)

func stderrf(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
}

func init() {
	time.Local = time.UTC

	setMaxProcs()
	setMemLimit()
	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(defaultGCPercent)
	}
}

// setMaxProcs matches GOMAXPROCS to the CPU quota so the decode workers are
// not throttled.
func setMaxProcs() {
	if gomaxecs.IsECS() {
		if _, err := gomaxecs.Set(gomaxecs.WithLogger(stderrf)); err != nil {
			stderrf("failed to set GOMAXPROCS from the ECS task limits: %v", err)
		}
		return
	}
	if _, err := maxprocs.Set(maxprocs.Logger(stderrf)); err != nil {
		stderrf("failed to set GOMAXPROCS from the cgroup quota: %v", err)
	}
}

func setMemLimit() {
	_, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(memLimitRatio),
		memlimit.WithLogger(slog.Default()),
		memlimit.WithProvider(
			memlimit.ApplyFallback(
				memlimit.FromCgroup,
				memlimit.FromSystem,
			),
		),
	)
	if err != nil {
		stderrf("failed to set GOMEMLIMIT: %v", err)
	}
}

func main() {
	cmd.Execute()
}
