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

package ledger

import (
	"sync/atomic"

	"github.com/algorand/go-deadlock"

	"github.com/witnessnet/go-witness/data/basics"
)

// notifier is a struct that encapsulates a single-shot channel; it will only be signaled once.
type notifier struct {
	signal   chan struct{}
	notified *atomic.Bool
}

// makeNotifier constructs a notifier that has not been signaled.
func makeNotifier() notifier {
	return notifier{signal: make(chan struct{}), notified: new(atomic.Bool)}
}

// notify signals the channel if it hasn't already done so
func (notifier notifier) notify() {
	if notifier.notified.CompareAndSwap(false, true) {
		close(notifier.signal)
	}
}

// bulletin provides an easy way to wait on a height to be written to the ledger.
// To use it, call <-Wait(height)
type bulletin struct {
	mu                          deadlock.Mutex
	pendingNotificationRequests map[basics.Height]notifier
	latestHeight                basics.Height
}

func makeBulletin(latest basics.Height) *bulletin {
	return &bulletin{
		pendingNotificationRequests: make(map[basics.Height]notifier),
		latestHeight:                latest,
	}
}

// Wait returns a channel which gets closed when the ledger reaches a given height.
func (b *bulletin) Wait(h basics.Height) <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Return an already-closed channel if we already have the block.
	if h <= b.latestHeight {
		closed := make(chan struct{})
		close(closed)
		return closed
	}

	signal, exists := b.pendingNotificationRequests[h]
	if !exists {
		signal = makeNotifier()
		b.pendingNotificationRequests[h] = signal
	}
	return signal.signal
}

func (b *bulletin) committedUpTo(h basics.Height) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for pending, signal := range b.pendingNotificationRequests {
		if pending > h {
			continue
		}

		delete(b.pendingNotificationRequests, pending)
		signal.notify()
	}

	b.latestHeight = h
}
