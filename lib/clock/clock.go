// Copyright 2026 The Cohortgrid Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the two time operations the bootstrap
// performs (reading the wall clock and sleeping between readiness
// probe attempts) so that tests can run the probe loop without real
// waits. Production code injects [Real]; tests inject a [Fake] and
// inspect the recorded sleeps.
package clock

import "time"

// Clock is the time source for bootstrap components. Production
// functions that would call time.Now or time.Sleep accept a Clock
// instead.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep pauses the calling goroutine for at least duration d.
	Sleep(d time.Duration)
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }
