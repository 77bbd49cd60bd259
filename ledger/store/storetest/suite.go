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

// Package storetest holds the conformance suite every store driver must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/bookkeeping"
	"github.com/witnessnet/go-witness/data/transactions"
	"github.com/witnessnet/go-witness/ledger/ledgercore"
	"github.com/witnessnet/go-witness/ledger/store"
)

// OpenFn opens a fresh, empty store for one test.
type OpenFn func(t *testing.T) store.Store

var allowUnexported = cmp.Exporter(func(reflect.Type) bool { return true })

// RunSuite runs the conformance tests against the driver opened by open.
func RunSuite(t *testing.T, open OpenFn) {
	tests := []struct {
		name string
		fn   func(*testing.T, store.Store)
	}{
		{"ApplyPatchRoundTrip", testApplyPatchRoundTrip},
		{"ReapplyRejected", testReapplyRejected},
		{"PatchAtomic", testPatchAtomic},
		{"SpendMissing", testSpendMissing},
		{"CreatedThenSpentSkipped", testCreatedThenSpentSkipped},
		{"CreateMapOmitsAbsent", testCreateMapOmitsAbsent},
		{"CommitBlockSequence", testCommitBlockSequence},
		{"CommitBlockAtomic", testCommitBlockAtomic},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			test.fn(t, s)
		})
	}
}

// Ref returns a deterministic outpoint for tests.
func Ref(seed string, index uint32) transactions.Outpoint {
	return transactions.Outpoint{TxID: transactions.Txid(crypto.Hash([]byte(seed))), Index: index}
}

// CoinFor returns a coin of amount owned by a deterministic address.
func CoinFor(owner string, amount uint64) ledgercore.Coin {
	return ledgercore.Coin{Amount: basics.MicroUnits(amount), Receiver: basics.Address(crypto.Hash([]byte(owner)))}
}

func createPatch(coins map[transactions.Outpoint]ledgercore.Coin) *ledgercore.Patch {
	p := ledgercore.MakePatch(len(coins))
	for ref, c := range coins {
		if err := p.CreateCoin(ref, c); err != nil {
			panic(err)
		}
	}
	return p
}

func testApplyPatchRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	a, b := Ref("tx1", 0), Ref("tx1", 1)
	coinA, coinB := CoinFor("alice", 100000), CoinFor("bob", 5)

	require.NoError(t, s.ApplyPatch(ctx, createPatch(map[transactions.Outpoint]ledgercore.Coin{a: coinA, b: coinB})))

	got, ok, err := s.GetUtxo(ctx, a)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, coinA, got)

	spend := ledgercore.MakePatch(1)
	require.NoError(t, spend.SpendCoin(a))
	require.NoError(t, s.ApplyPatch(ctx, spend))

	_, ok, err = s.GetUtxo(ctx, a)
	require.NoError(t, err)
	require.False(t, ok)

	got, ok, err = s.GetUtxo(ctx, b)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, coinB, got)
}

func testReapplyRejected(t *testing.T, s store.Store) {
	ctx := context.Background()
	ref := Ref("tx2", 0)
	p := createPatch(map[transactions.Outpoint]ledgercore.Coin{ref: CoinFor("alice", 7)})

	require.NoError(t, s.ApplyPatch(ctx, p))
	err := s.ApplyPatch(ctx, p)
	require.ErrorIs(t, err, store.ErrPatchConflict)
	var pce *store.PatchConflictError
	require.True(t, errors.As(err, &pce))
	require.Equal(t, ref, pce.Ref)
}

func testPatchAtomic(t *testing.T, s store.Store) {
	ctx := context.Background()
	existing := Ref("tx3", 0)
	require.NoError(t, s.ApplyPatch(ctx, createPatch(map[transactions.Outpoint]ledgercore.Coin{existing: CoinFor("alice", 1)})))

	fresh := Ref("tx3", 1)
	p := ledgercore.MakePatch(2)
	require.NoError(t, p.CreateCoin(fresh, CoinFor("bob", 2)))
	require.NoError(t, p.CreateCoin(existing, CoinFor("bob", 3)))

	require.ErrorIs(t, s.ApplyPatch(ctx, p), store.ErrPatchConflict)

	_, ok, err := s.GetUtxo(ctx, fresh)
	require.NoError(t, err)
	require.False(t, ok, "rejected patch must not write anything")

	got, ok, err := s.GetUtxo(ctx, existing)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, CoinFor("alice", 1), got)
}

func testSpendMissing(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := ledgercore.MakePatch(1)
	require.NoError(t, p.SpendCoin(Ref("nowhere", 3)))
	require.ErrorIs(t, s.ApplyPatch(ctx, p), store.ErrPatchConflict)
}

func testCreatedThenSpentSkipped(t *testing.T, s store.Store) {
	ctx := context.Background()
	ref := Ref("tx4", 0)
	p := ledgercore.MakePatch(1)
	require.NoError(t, p.CreateCoin(ref, CoinFor("alice", 9)))
	require.NoError(t, p.SpendCoin(ref))

	require.NoError(t, s.ApplyPatch(ctx, p))
	_, ok, err := s.GetUtxo(ctx, ref)
	require.NoError(t, err)
	require.False(t, ok)
}

func testCreateMapOmitsAbsent(t *testing.T, s store.Store) {
	ctx := context.Background()
	coins := map[transactions.Outpoint]ledgercore.Coin{}
	for i := uint32(0); i < 5; i++ {
		coins[Ref("tx5", i)] = CoinFor(fmt.Sprintf("owner%d", i), uint64(i+1))
	}
	require.NoError(t, s.ApplyPatch(ctx, createPatch(coins)))

	refs := []transactions.Outpoint{Ref("tx5", 0), Ref("tx5", 4), Ref("tx5", 9), Ref("other", 0)}
	m, err := s.GetUtxosCreateMap(ctx, refs)
	require.NoError(t, err)

	want := ledgercore.UtxoMap{
		Ref("tx5", 0): coins[Ref("tx5", 0)],
		Ref("tx5", 4): coins[Ref("tx5", 4)],
	}
	if diff := cmp.Diff(want, m, allowUnexported); diff != "" {
		t.Fatalf("unexpected utxo map (-want +got):\n%s", diff)
	}
}

func makeChain(t *testing.T, n int) []bookkeeping.Block {
	genesis := bookkeeping.Block{BlockHeader: bookkeeping.BlockHeader{TimeStamp: 1700000000}}
	genesis.TxnRoot = genesis.Payset.Root()
	chain := []bookkeeping.Block{genesis}
	for i := 1; i < n; i++ {
		prev := chain[i-1].BlockHeader
		chain = append(chain, bookkeeping.MakeBlock(prev, nil, crypto.PublicKey{}, prev.TimeStamp+1))
	}
	return chain
}

func testCommitBlockSequence(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, ok, err := s.LatestBlock(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	chain := makeChain(t, 3)
	require.ErrorIs(t, s.CommitBlock(ctx, chain[1], nil), store.ErrBlockOutOfOrder)

	ref := Ref("genesis", 0)
	require.NoError(t, s.CommitBlock(ctx, chain[0], createPatch(map[transactions.Outpoint]ledgercore.Coin{ref: CoinFor("alice", 100000)})))
	require.NoError(t, s.CommitBlock(ctx, chain[1], nil))
	require.ErrorIs(t, s.CommitBlock(ctx, chain[1], nil), store.ErrBlockOutOfOrder)

	latest, ok, err := s.LatestBlock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, chain[1].Hash(), latest.Hash())

	blk, err := s.Block(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, chain[0].Hash(), blk.Hash())

	_, err = s.Block(ctx, 2)
	var noEntry ledgercore.ErrNoEntry
	require.True(t, errors.As(err, &noEntry))
	require.Equal(t, basics.Height(2), noEntry.Height)
	require.Equal(t, basics.Height(1), noEntry.Latest)

	coin, ok, err := s.GetUtxo(ctx, ref)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, CoinFor("alice", 100000), coin)
}

func testCommitBlockAtomic(t *testing.T, s store.Store) {
	ctx := context.Background()
	chain := makeChain(t, 2)
	require.NoError(t, s.CommitBlock(ctx, chain[0], nil))

	bad := ledgercore.MakePatch(1)
	require.NoError(t, bad.SpendCoin(Ref("missing", 0)))
	require.ErrorIs(t, s.CommitBlock(ctx, chain[1], bad), store.ErrPatchConflict)

	latest, ok, err := s.LatestBlock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, basics.Height(0), latest.Height, "failed commit must not store the block")
}
