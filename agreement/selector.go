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
	"bytes"
	"sort"

	"github.com/dchest/siphash"

	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/data/basics"
)

// proposerOrder returns the witnesses ordered for height h: sorted by the
// siphash of their key, keyed by the height. Every node computes the same
// order without talking to anyone.
func proposerOrder(h basics.Height, witnesses []crypto.PublicKey) []crypto.PublicKey {
	type weighted struct {
		key    crypto.PublicKey
		weight uint64
	}
	ws := make([]weighted, len(witnesses))
	for i, w := range witnesses {
		ws[i] = weighted{key: w, weight: siphash.Hash(uint64(h), 0, w[:])}
	}
	sort.Slice(ws, func(i, j int) bool {
		if ws[i].weight != ws[j].weight {
			return ws[i].weight < ws[j].weight
		}
		return bytes.Compare(ws[i].key[:], ws[j].key[:]) < 0
	})

	order := make([]crypto.PublicKey, len(ws))
	for i := range ws {
		order[i] = ws[i].key
	}
	return order
}

// proposerFor returns the witness expected to propose in round r of height h.
// Within any n consecutive rounds each of the n witnesses gets a turn.
func proposerFor(h basics.Height, r round, witnesses []crypto.PublicKey) crypto.PublicKey {
	if len(witnesses) == 0 {
		return crypto.PublicKey{}
	}
	order := proposerOrder(h, witnesses)
	return order[uint64(r)%uint64(len(order))]
}
