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

package ledgercore

import (
	"github.com/witnessnet/go-witness/data/transactions"
)

// PatchStatus is the state of a reference as seen through a Patch.
type PatchStatus int

const (
	// Absent means the patch says nothing about the reference.
	Absent PatchStatus = iota
	// Available means the patch created the coin and it is unspent.
	Available
	// Spent means the patch consumed the reference.
	Spent
)

func (s PatchStatus) String() string {
	switch s {
	case Absent:
		return "absent"
	case Available:
		return "available"
	case Spent:
		return "spent"
	}
	return "unknown"
}

// PatchEntry records what a patch did to one reference.
type PatchEntry struct {
	Ref transactions.Outpoint
	// Coin is set when Created is.
	Coin    Coin
	Created bool
	Spent   bool
}

// Patch is the set of pending changes to the unspent-output set produced by
// applying transactions. Entries keep insertion order so that iteration and
// commits are deterministic.
//
// A reference that is created and then spent inside the same patch remains
// in the patch as spent; it is unavailable to later transactions and commits
// as a no-op.
type Patch struct {
	entries []PatchEntry
	index   map[transactions.Outpoint]int
}

// MakePatch allocates an empty patch with room for hint entries.
func MakePatch(hint int) *Patch {
	return &Patch{
		entries: make([]PatchEntry, 0, hint),
		index:   make(map[transactions.Outpoint]int, hint),
	}
}

func (p *Patch) lazyInit() {
	if p.index == nil {
		p.index = make(map[transactions.Outpoint]int)
	}
}

// CreateCoin records a new coin under ref.
func (p *Patch) CreateCoin(ref transactions.Outpoint, coin Coin) error {
	p.lazyInit()
	if _, ok := p.index[ref]; ok {
		return &MergeConflictError{Ref: ref, Reason: "coin created twice"}
	}
	p.index[ref] = len(p.entries)
	p.entries = append(p.entries, PatchEntry{Ref: ref, Coin: coin, Created: true})
	return nil
}

// SpendCoin marks ref as consumed.
func (p *Patch) SpendCoin(ref transactions.Outpoint) error {
	p.lazyInit()
	if i, ok := p.index[ref]; ok {
		if p.entries[i].Spent {
			return &DoubleSpendError{TxID: ref.TxID, Index: ref.Index}
		}
		p.entries[i].Spent = true
		return nil
	}
	p.index[ref] = len(p.entries)
	p.entries = append(p.entries, PatchEntry{Ref: ref, Spent: true})
	return nil
}

// Lookup reports the patch's view of ref.
func (p *Patch) Lookup(ref transactions.Outpoint) (Coin, PatchStatus) {
	if p == nil {
		return Coin{}, Absent
	}
	i, ok := p.index[ref]
	if !ok {
		return Coin{}, Absent
	}
	e := p.entries[i]
	if e.Spent {
		return Coin{}, Spent
	}
	return e.Coin, Available
}

// IsSpent reports whether the patch consumed ref.
func (p *Patch) IsSpent(ref transactions.Outpoint) bool {
	_, status := p.Lookup(ref)
	return status == Spent
}

// Len returns the number of references the patch touches.
func (p *Patch) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

// IsEmpty reports whether the patch touches nothing.
func (p *Patch) IsEmpty() bool {
	return p.Len() == 0
}

// Entries calls fn for each entry in insertion order until fn returns false.
func (p *Patch) Entries(fn func(PatchEntry) bool) {
	if p == nil {
		return
	}
	for _, e := range p.entries {
		if !fn(e) {
			return
		}
	}
}

// CreatedCoin is a coin created and still available in a patch.
type CreatedCoin struct {
	Ref  transactions.Outpoint
	Coin Coin
}

// Coins returns the coins the patch created that are still unspent.
func (p *Patch) Coins() []CreatedCoin {
	var out []CreatedCoin
	p.Entries(func(e PatchEntry) bool {
		if e.Created && !e.Spent {
			out = append(out, CreatedCoin{Ref: e.Ref, Coin: e.Coin})
		}
		return true
	})
	return out
}

// SpentRefs returns the references to pre-existing coins the patch consumed.
func (p *Patch) SpentRefs() []transactions.Outpoint {
	var out []transactions.Outpoint
	p.Entries(func(e PatchEntry) bool {
		if e.Spent && !e.Created {
			out = append(out, e.Ref)
		}
		return true
	})
	return out
}

// Clone returns an independent copy of the patch.
func (p *Patch) Clone() *Patch {
	if p == nil {
		return MakePatch(0)
	}
	c := &Patch{
		entries: make([]PatchEntry, len(p.entries)),
		index:   make(map[transactions.Outpoint]int, len(p.index)),
	}
	copy(c.entries, p.entries)
	for k, v := range p.index {
		c.index[k] = v
	}
	return c
}

// Merge returns into overlaid by from. Neither input is modified.
// A reference spent by both patches is a double spend and fails with a
// MergeConflictError, as does a reference created by both, and a reference
// created by from after into spent the stored coin under it.
// A spent reference is never made available again.
func Merge(into, from *Patch) (*Patch, error) {
	res := into.Clone()
	var err error
	from.Entries(func(e PatchEntry) bool {
		i, ok := res.index[e.Ref]
		if !ok {
			res.index[e.Ref] = len(res.entries)
			res.entries = append(res.entries, e)
			return true
		}
		cur := &res.entries[i]
		if cur.Spent && e.Spent {
			err = &MergeConflictError{Ref: e.Ref, Reason: "spent by both patches"}
			return false
		}
		if cur.Created && e.Created {
			err = &MergeConflictError{Ref: e.Ref, Reason: "created by both patches"}
			return false
		}
		if e.Created && cur.Spent && !cur.Created {
			err = &MergeConflictError{Ref: e.Ref, Reason: "created after a stored coin was spent"}
			return false
		}
		if e.Created {
			cur.Coin = e.Coin
			cur.Created = true
		}
		cur.Spent = cur.Spent || e.Spent
		return true
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
