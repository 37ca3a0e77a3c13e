// go-iso7816
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-iso7816.
//
// go-iso7816 is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-iso7816 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-iso7816; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package iso7816

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig configures retry behaviour for whole activations
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// Jitter is the fraction of each backoff that is randomised
	Jitter float64
	// RetryTimeout bounds the whole retry sequence. Zero means no bound.
	RetryTimeout time.Duration
}

// DefaultRetryConfig returns retry settings suited to card insertion: a few
// attempts with short backoff
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        500 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		RetryTimeout:      5 * time.Second,
	}
}

// Validate checks the retry configuration
func (c *RetryConfig) Validate() error {
	switch {
	case c.MaxAttempts < 1:
		return fmt.Errorf("%w: MaxAttempts must be at least 1", ErrInvalidParameter)
	case c.InitialBackoff < 0 || c.MaxBackoff < 0:
		return fmt.Errorf("%w: negative backoff", ErrInvalidParameter)
	case c.BackoffMultiplier < 1:
		return fmt.Errorf("%w: BackoffMultiplier must be at least 1", ErrInvalidParameter)
	case c.Jitter < 0 || c.Jitter > 1:
		return fmt.Errorf("%w: Jitter must be within 0..1", ErrInvalidParameter)
	}
	return nil
}

// RetryWithConfig calls fn until it succeeds, returns a non-retryable error,
// runs out of attempts, or ctx (bounded by RetryTimeout) ends.
func RetryWithConfig(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if config.RetryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.RetryTimeout)
		defer cancel()
	}

	var lastErr error
	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if attempt > 0 {
			wait := backoff(config, attempt)
			debugf("retry attempt %d/%d after %v: %v", attempt+1, config.MaxAttempts, wait, lastErr)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("retry cancelled after %d attempts: %w", attempt, lastErr)
			case <-timer.C:
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("giving up after %d attempts: %w", config.MaxAttempts, lastErr)
}

func backoff(config *RetryConfig, attempt int) time.Duration {
	d := float64(config.InitialBackoff) * math.Pow(config.BackoffMultiplier, float64(attempt-1))
	if maxD := float64(config.MaxBackoff); maxD > 0 && d > maxD {
		d = maxD
	}
	if config.Jitter > 0 {
		d += d * config.Jitter * (rand.Float64()*2 - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
