// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Code that waits accepts a Clock instead of calling time.After or
// time.Sleep directly. Real provides wall-clock behavior. Fake provides
// a clock that moves only when the test calls Advance, which makes
// retry loops and deadlines deterministic:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go client.Connect(ctx)      // registers a retry wait on fake
//	fake.WaitForTimers(1)       // block until the wait is registered
//	fake.Advance(retryInterval) // release it
package clock
