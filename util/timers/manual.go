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
	"time"

	"github.com/algorand/go-deadlock"
)

// Manual is a Clock whose time only moves when Advance is called.
// Clocks derived from it with Zero share its notion of now.
type Manual struct {
	base *manualBase
	zero time.Time
}

type manualBase struct {
	mu      deadlock.Mutex
	now     time.Time
	pending []manualTimeout
}

type manualTimeout struct {
	at time.Time
	ch chan time.Time
}

// MakeManualClock creates a Manual clock starting at now.
func MakeManualClock(now time.Time) *Manual {
	return &Manual{base: &manualBase{now: now}, zero: now}
}

// Zero returns a Clock sharing this clock's time, zeroed at the current manual time.
func (m *Manual) Zero() Clock {
	m.base.mu.Lock()
	defer m.base.mu.Unlock()
	return &Manual{base: m.base, zero: m.base.now}
}

// TimeoutAt returns a channel that fires once the manual time reaches zero+delta.
func (m *Manual) TimeoutAt(delta time.Duration) <-chan time.Time {
	m.base.mu.Lock()
	defer m.base.mu.Unlock()

	ch := make(chan time.Time, 1)
	at := m.zero.Add(delta)
	if !at.After(m.base.now) {
		ch <- m.base.now
		return ch
	}
	m.base.pending = append(m.base.pending, manualTimeout{at: at, ch: ch})
	return ch
}

// Now implements Clock.Now.
func (m *Manual) Now() time.Time {
	m.base.mu.Lock()
	defer m.base.mu.Unlock()
	return m.base.now
}

// Advance moves the manual time forward by d, firing every timeout that becomes due.
func (m *Manual) Advance(d time.Duration) {
	m.base.mu.Lock()
	defer m.base.mu.Unlock()

	m.base.now = m.base.now.Add(d)
	remaining := m.base.pending[:0]
	for _, p := range m.base.pending {
		if !p.at.After(m.base.now) {
			p.ch <- m.base.now
			continue
		}
		remaining = append(remaining, p)
	}
	m.base.pending = remaining
}
