// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package timerwheel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddPeriodicFiresOnEveryDueTick(t *testing.T) {
	w := New()
	var fires int
	w.AddPeriodic("every-second", 1, 0, nil, func(now time.Time, _ any) {
		fires++
	})

	start := time.Now()
	w.Tick(start)
	require.Equal(t, 0, fires, "not due yet")
	w.Tick(start.Add(time.Second))
	require.Equal(t, 1, fires)
	w.Tick(start.Add(2 * time.Second))
	require.Equal(t, 2, fires)
}

func TestAddOneshotFiresOnceThenIsForgotten(t *testing.T) {
	w := New()
	var fires int
	w.AddOneshot("once", 0, 10_000_000, nil, func(now time.Time, _ any) {
		fires++
	})

	start := time.Now()
	w.Tick(start.Add(20 * time.Millisecond))
	require.Equal(t, 1, fires)
	w.Tick(start.Add(40 * time.Millisecond))
	require.Equal(t, 1, fires, "oneshot must not fire twice")
}

func TestCancelPreventsFutureFires(t *testing.T) {
	w := New()
	var fires int
	timer := w.AddPeriodic("cancel-me", 1, 0, nil, func(now time.Time, _ any) {
		fires++
	})

	start := time.Now()
	w.Tick(start.Add(time.Second))
	require.Equal(t, 1, fires)

	w.Cancel(timer)
	w.Tick(start.Add(2 * time.Second))
	require.Equal(t, 1, fires, "canceled timer must not fire again")

	// Canceling twice, or canceling nil, must not panic.
	w.Cancel(timer)
	w.Cancel(nil)
}

func TestUserDataIsPassedThroughToCallback(t *testing.T) {
	w := New()
	var got any
	w.AddOneshot("carries-data", 0, 0, "payload", func(_ time.Time, userData any) {
		got = userData
	})
	w.Tick(time.Now())
	require.Equal(t, "payload", got)
}
