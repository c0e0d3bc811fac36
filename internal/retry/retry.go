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

// Package retry applies a bounded attempt and delay policy to I/O calls that
// talk to the storage backend (listing, opening files).
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/cardinalhq/framefeed/internal/logctx"
)

// Policy bounds how often and how patiently an operation is retried.
type Policy struct {
	Attempts     int           `mapstructure:"attempts"`
	InitialDelay time.Duration `mapstructure:"initialDelay"`
	Exponential  bool          `mapstructure:"exponential"`
}

// DefaultPolicy makes 5 attempts starting at one second, doubling each time.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:     5,
		InitialDelay: time.Second,
		Exponential:  true,
	}
}

func (p Policy) attempts() uint {
	if p.Attempts < 1 {
		return 1
	}
	return uint(p.Attempts)
}

func (p Policy) backOff() backoff.BackOff {
	if !p.Exponential {
		return backoff.NewConstantBackOff(p.InitialDelay)
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         p.InitialDelay << p.attempts(),
	}
	b.Reset()
	return b
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do runs fn until it succeeds, returns a permanent error, ctx is done, or the
// policy's attempts are used up. The last error is returned.
func Do[T any](ctx context.Context, p Policy, name string, fn func(context.Context) (T, error)) (T, error) {
	attempt := 0
	op := func() (T, error) {
		attempt++
		return fn(ctx)
	}
	notify := func(err error, d time.Duration) {
		logctx.FromContext(ctx).Warn("Retrying storage operation",
			slog.String("operation", name),
			slog.Int("attempt", attempt),
			slog.Int("maxAttempts", int(p.attempts())),
			slog.Duration("delay", d),
			slog.Any("error", err))
	}

	v, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(p.attempts()),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s failed after %d attempt(s): %w", name, attempt, err)
	}
	return v, nil
}
