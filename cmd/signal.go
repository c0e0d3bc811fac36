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
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// exitInterrupted is the shell convention for death by SIGINT.
const exitInterrupted = 130

// handleSignals cancels the returned context on the first SIGINT or SIGTERM,
// which stops a scan after the chunk in hand and lets the deserializer close
// its files. A second signal exits immediately. The cancel func stops
// listening.
func handleSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return watchSignals(ctx, func() { os.Exit(exitInterrupted) })
}

func watchSignals(ctx context.Context, exit func()) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer signal.Stop(sigs)
		for received := 0; ; received++ {
			select {
			case <-stop:
				return
			case sig := <-sigs:
				if received > 0 {
					slog.Error("Second signal, exiting now", slog.String("signal", sig.String()))
					exit()
					return
				}
				slog.Warn("Stopping after the current chunk; signal again to exit now", slog.String("signal", sig.String()))
				cancel()
			}
		}
	}()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			cancel()
			close(stop)
			<-done
		})
	}
}
