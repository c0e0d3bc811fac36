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

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, InitialDelay: time.Millisecond, Exponential: true}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), fastPolicy(5), "open", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection refused")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestDoGivesUpAfterAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("connection refused")
	_, err := Do(context.Background(), fastPolicy(4), "list", func(context.Context) (int, error) {
		calls++
		return 0, boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 4, calls)
	assert.Contains(t, err.Error(), "list failed after 4 attempt(s)")
}

func TestDoStopsOnPermanent(t *testing.T) {
	calls := 0
	notFound := errors.New("not found")
	_, err := Do(context.Background(), fastPolicy(5), "stat", func(context.Context) (int, error) {
		calls++
		return 0, Permanent(notFound)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, notFound)
	assert.Equal(t, 1, calls)
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{}, "open", func(context.Context) (int, error) {
		calls++
		return 0, errors.New("nope")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestConstantBackOff(t *testing.T) {
	b := Policy{Attempts: 3, InitialDelay: 5 * time.Millisecond}.backOff()
	assert.Equal(t, 5*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 5*time.Millisecond, b.NextBackOff())
}

func TestExponentialBackOffDoubles(t *testing.T) {
	b := Policy{Attempts: 5, InitialDelay: 10 * time.Millisecond, Exponential: true}.backOff()
	assert.Equal(t, 10*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 20*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 40*time.Millisecond, b.NextBackOff())
}

func TestPermanentNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
