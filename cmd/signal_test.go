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

//go:build unix

package cmd

import (
	"context"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchSignalsCancelsThenExits(t *testing.T) {
	var exits atomic.Int32
	ctx, stop := watchSignals(context.Background(), func() { exits.Add(1) })
	defer stop()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled by SIGTERM")
	}
	assert.Zero(t, exits.Load())

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGINT))
	assert.Eventually(t, func() bool { return exits.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestWatchSignalsStop(t *testing.T) {
	ctx, stop := watchSignals(context.Background(), func() { t.Error("exit called") })
	stop()
	stop()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
