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

package agreement

import (
	"github.com/witnessnet/go-witness/data/basics"
)

// pendingTable buffers verified messages that arrived ahead of the player:
// for a later round of the current height or for the next height. It holds at
// most limit messages; when full, new arrivals are dropped.
type pendingTable struct {
	limit    int
	messages []message
}

func makePendingTable(limit int) pendingTable {
	return pendingTable{limit: limit}
}

// add buffers m and reports whether there was room.
func (t *pendingTable) add(m message) bool {
	if len(t.messages) >= t.limit {
		return false
	}
	t.messages = append(t.messages, m)
	return true
}

// take removes and returns the messages for round r of height h, in arrival
// order. Messages for earlier positions are discarded.
func (t *pendingTable) take(h basics.Height, r round) []message {
	var ready []message
	kept := t.messages[:0]
	for _, m := range t.messages {
		mh, mr := m.position()
		switch {
		case mh < h || (mh == h && mr < r):
		case mh == h && mr == r:
			ready = append(ready, m)
		default:
			kept = append(kept, m)
		}
	}
	for i := len(kept); i < len(t.messages); i++ {
		t.messages[i] = nil
	}
	t.messages = kept
	return ready
}

func (t *pendingTable) len() int {
	return len(t.messages)
}
