// Copyright (C) 2019-2024 Algorand, Inc.
// This file is part of go-witness
//
// go-witness is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-witness is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-witness.  If not, see <https://www.gnu.org/licenses/>.

package timers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/witnessnet/go-witness/testpartitioning"
)

func polled(ch <-chan time.Time) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestMonotonicDelta(t *testing.T) {
	testpartitioning.PartitionTest(t)

	var m Monotonic
	var c Clock
	var ch <-chan time.Time

	d := time.Millisecond * 100

	c = m.Zero()
	ch = c.TimeoutAt(d)
	if polled(ch) {
		t.Errorf("channel fired ~100ms early")
	}

	<-time.After(d * 2)
	if !polled(ch) {
		t.Errorf("channel failed to fire at 100ms")
	}

	ch = c.TimeoutAt(d / 2)
	if !polled(ch) {
		t.Errorf("channel failed to fire at 50ms")
	}
}

func TestMonotonicZeroDelta(t *testing.T) {
	testpartitioning.PartitionTest(t)

	var m Monotonic
	var c Clock
	var ch <-chan time.Time

	c = m.Zero()
	ch = c.TimeoutAt(0)
	if !polled(ch) {
		t.Errorf("read failed on channel at zero timeout")
	}
}

func TestMonotonicNegativeDelta(t *testing.T) {
	testpartitioning.PartitionTest(t)

	var m Monotonic
	var c Clock
	var ch <-chan time.Time

	c = m.Zero()
	ch = c.TimeoutAt(-time.Second)
	if !polled(ch) {
		t.Errorf("read failed on channel at negative timeout")
	}
}

func TestMonotonicZeroTwice(t *testing.T) {
	testpartitioning.PartitionTest(t)

	var m Monotonic
	var c Clock
	var ch <-chan time.Time

	d := time.Millisecond * 100

	c = m.Zero()
	ch = c.TimeoutAt(d)
	if polled(ch) {
		t.Errorf("channel fired ~100ms early")
	}

	<-time.After(d * 2)
	if !polled(ch) {
		t.Errorf("channel failed to fire at 100ms")
	}

	c = c.Zero()
	ch = c.TimeoutAt(d)
	if polled(ch) {
		t.Errorf("channel fired ~100ms early after call to Zero")
	}

	<-time.After(d * 2)
	if !polled(ch) {
		t.Errorf("channel failed to fire at 100ms after call to Zero")
	}
}

func TestManualClock(t *testing.T) {
	testpartitioning.PartitionTest(t)

	start := time.Unix(1700000000, 0)
	m := MakeManualClock(start)
	c := m.Zero()
	ch := c.TimeoutAt(10 * time.Second)
	require.False(t, polled(ch))

	m.Advance(9 * time.Second)
	require.False(t, polled(ch))
	require.Equal(t, start.Add(9*time.Second), c.Now())

	m.Advance(time.Second)
	require.True(t, polled(ch))

	c = c.Zero()
	require.True(t, polled(c.TimeoutAt(0)))
	ch = c.TimeoutAt(time.Second)
	require.False(t, polled(ch))
	m.Advance(time.Hour)
	require.True(t, polled(ch))
}
