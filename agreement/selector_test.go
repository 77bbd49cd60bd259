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
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/testpartitioning"
)

func TestProposerDeterministic(t *testing.T) {
	testpartitioning.PartitionTest(t)

	keys := publicKeys(testSecrets(5))
	reversed := make([]crypto.PublicKey, len(keys))
	for i, k := range keys {
		reversed[len(keys)-1-i] = k
	}

	for h := basics.Height(1); h < 20; h++ {
		for r := round(0); r < 7; r++ {
			require.Equal(t, proposerFor(h, r, keys), proposerFor(h, r, reversed))
		}
	}
	require.True(t, proposerFor(1, 0, nil).IsZero())
}

func TestProposerRotation(t *testing.T) {
	testpartitioning.PartitionTest(t)

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(t, "witnesses")
		h := basics.Height(rapid.Uint64().Draw(t, "height"))
		start := round(rapid.Uint64Range(0, 1<<32).Draw(t, "round"))
		keys := publicKeys(testSecrets(n))

		seen := make(map[crypto.PublicKey]bool)
		for r := start; r < start+round(n); r++ {
			seen[proposerFor(h, r, keys)] = true
		}
		if len(seen) != n {
			t.Fatalf("only %d of %d witnesses proposed within %d rounds", len(seen), n, n)
		}
	})
}

func TestProposerOrderDependsOnHeight(t *testing.T) {
	testpartitioning.PartitionTest(t)

	keys := publicKeys(testSecrets(8))
	first := proposerOrder(1, keys)
	differs := false
	for h := basics.Height(2); h < 50 && !differs; h++ {
		differs = !equalKeys(first, proposerOrder(h, keys))
	}
	require.True(t, differs, "proposer order never changes with the height")
}

func equalKeys(a, b []crypto.PublicKey) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
