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
	"slices"

	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/bookkeeping"
)

// voteTracker holds the latest vote of each witness in a round.
type voteTracker struct {
	votes map[crypto.PublicKey]vote
}

func makeVoteTracker() voteTracker {
	return voteTracker{votes: make(map[crypto.PublicKey]vote)}
}

// add records v, replacing any earlier vote by the same witness. It reports
// whether the tally changed.
func (t *voteTracker) add(v vote) bool {
	prev, ok := t.votes[v.Witness]
	if ok && prev.Accept == v.Accept && prev.BlockHash == v.BlockHash {
		return false
	}
	t.votes[v.Witness] = v
	return true
}

// accepts counts the accept votes for h.
func (t *voteTracker) accepts(h bookkeeping.BlockHash) int {
	n := 0
	for _, v := range t.votes {
		if v.Accept && v.BlockHash == h {
			n++
		}
	}
	return n
}

// rejects counts the reject votes in the round, whatever block they name.
func (t *voteTracker) rejects() int {
	n := 0
	for _, v := range t.votes {
		if !v.Accept {
			n++
		}
	}
	return n
}

// commitTracker counts commit notices per block hash.
type commitTracker struct {
	notices map[crypto.PublicKey]bookkeeping.BlockHash
}

func makeCommitTracker() commitTracker {
	return commitTracker{notices: make(map[crypto.PublicKey]bookkeeping.BlockHash)}
}

func (t *commitTracker) add(c commitNotice) {
	t.notices[c.Witness] = c.BlockHash
}

func (t *commitTracker) count(h bookkeeping.BlockHash) int {
	n := 0
	for _, bh := range t.notices {
		if bh == h {
			n++
		}
	}
	return n
}

// aheadTracker counts commit notices for heights above the live one. Only
// the limit highest heights are kept.
type aheadTracker struct {
	limit   int
	heights map[basics.Height]commitTracker
}

func makeAheadTracker(limit int) aheadTracker {
	return aheadTracker{limit: limit, heights: make(map[basics.Height]commitTracker)}
}

// add records c and returns the number of witnesses announcing its hash at
// its height.
func (t *aheadTracker) add(c commitNotice) int {
	ct, ok := t.heights[c.Height]
	if !ok {
		if len(t.heights) >= t.limit {
			lowest := c.Height
			for h := range t.heights {
				if h < lowest {
					lowest = h
				}
			}
			if lowest == c.Height {
				return 0
			}
			delete(t.heights, lowest)
		}
		ct = makeCommitTracker()
		t.heights[c.Height] = ct
	}
	ct.add(c)
	return ct.count(c.BlockHash)
}

// take removes and returns the notices tracked for height h.
func (t *aheadTracker) take(h basics.Height) commitTracker {
	ct, ok := t.heights[h]
	if !ok {
		return makeCommitTracker()
	}
	delete(t.heights, h)
	return ct
}

// forget drops every height up to and including h.
func (t *aheadTracker) forget(h basics.Height) {
	for height := range t.heights {
		if height <= h {
			delete(t.heights, height)
		}
	}
}

// roundTracker keeps the highest round each witness was seen in at the live
// height.
type roundTracker struct {
	rounds map[crypto.PublicKey]round
}

func makeRoundTracker() roundTracker {
	return roundTracker{rounds: make(map[crypto.PublicKey]round)}
}

// observe records that w reached r. It reports whether w's round went up.
func (t *roundTracker) observe(w crypto.PublicKey, r round) bool {
	if cur, ok := t.rounds[w]; ok && cur >= r {
		return false
	}
	t.rounds[w] = r
	return true
}

// reached returns the highest round that at least threshold witnesses were
// seen in, or zero.
func (t *roundTracker) reached(threshold int) round {
	if threshold <= 0 || len(t.rounds) < threshold {
		return 0
	}
	rs := make([]round, 0, len(t.rounds))
	for _, r := range t.rounds {
		rs = append(rs, r)
	}
	slices.Sort(rs)
	return rs[len(rs)-threshold]
}
