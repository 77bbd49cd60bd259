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

package eval

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/bookkeeping"
	"github.com/witnessnet/go-witness/data/transactions"
	"github.com/witnessnet/go-witness/ledger/ledgercore"
	"github.com/witnessnet/go-witness/testpartitioning"
)

const t0 = int64(1700000000)

type mapLedger struct {
	coins ledgercore.UtxoMap
	err   error
}

func (l *mapLedger) GetUtxosCreateMap(ctx context.Context, refs []transactions.Outpoint) (ledgercore.UtxoMap, error) {
	if l.err != nil {
		return nil, l.err
	}
	out := make(ledgercore.UtxoMap, len(refs))
	for _, ref := range refs {
		if c, ok := l.coins[ref]; ok {
			out[ref] = c
		}
	}
	return out, nil
}

func keyFor(b byte) *crypto.SignatureSecrets {
	var seed crypto.Seed
	seed[0] = b
	return crypto.GenerateSignatureSecrets(seed)
}

func addrOf(s *crypto.SignatureSecrets) basics.Address {
	return basics.AddressFromPublicKey(s.SignatureVerifier)
}

type evalFixture struct {
	l      *mapLedger
	alice  *crypto.SignatureSecrets
	bob    *crypto.SignatureSecrets
	fund   transactions.Txid
	prev   bookkeeping.BlockHeader
	proto  config.ConsensusParams
	signer crypto.PublicKey
}

func makeEvalFixture() evalFixture {
	f := evalFixture{
		l:     &mapLedger{coins: make(ledgercore.UtxoMap)},
		alice: keyFor(1),
		bob:   keyFor(2),
		fund:  transactions.Txid(crypto.Hash([]byte("funding"))),
		prev: bookkeeping.BlockHeader{
			Height:      5,
			TimeStamp:   t0,
			GenesisHash: crypto.Hash([]byte("genesis")),
		},
		proto:  config.DefaultConsensusParams(),
		signer: keyFor(9).SignatureVerifier,
	}
	for _, idx := range []uint32{12, 0, 80} {
		f.l.coins[transactions.Outpoint{TxID: f.fund, Index: idx}] = ledgercore.Coin{Amount: 100000, Receiver: addrOf(f.alice)}
	}
	return f
}

func (f evalFixture) spend(prev transactions.Outpoint, amount basics.MicroUnits, from, to *crypto.SignatureSecrets) transactions.Transaction {
	tx := transactions.Transaction{
		Inputs:  []transactions.Input{{Prev: prev}},
		Outputs: []transactions.Output{{Amount: amount, Receiver: addrOf(to)}},
	}
	tx.SignAll(from)
	return tx
}

func (f evalFixture) fundRef(idx uint32) transactions.Outpoint {
	return transactions.Outpoint{TxID: f.fund, Index: idx}
}

func (f evalFixture) block(ts int64, txs ...transactions.Transaction) bookkeeping.Block {
	return bookkeeping.MakeBlock(f.prev, txs, f.signer, ts)
}

func TestEvalValidBlock(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeEvalFixture()
	tx := f.spend(f.fundRef(12), 1000, f.alice, f.bob)
	blk := f.block(t0+10, tx)

	vb, err := Eval(context.Background(), f.l, f.prev, blk, f.proto, time.Unix(t0+10, 0))
	require.NoError(t, err)
	require.Equal(t, blk.Hash(), vb.Hash())
	require.True(t, vb.Patch().IsSpent(f.fundRef(12)))
	require.Len(t, vb.Patch().Coins(), 1)
}

func TestEvalChainedSpendInBlock(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeEvalFixture()
	tx1 := f.spend(f.fundRef(12), 1000, f.alice, f.bob)
	tx2 := f.spend(tx1.Outpoint(0), 900, f.bob, f.alice)

	vb, err := Eval(context.Background(), f.l, f.prev, f.block(t0+10, tx1, tx2), f.proto, time.Unix(t0+10, 0))
	require.NoError(t, err)
	require.True(t, vb.Patch().IsSpent(tx1.Outpoint(0)))
	coins := vb.Patch().Coins()
	require.Len(t, coins, 1)
	require.Equal(t, tx2.Outpoint(0), coins[0].Ref)

	// reversed order spends an output that does not exist yet
	_, err = Eval(context.Background(), f.l, f.prev, f.block(t0+10, tx2, tx1), f.proto, time.Unix(t0+10, 0))
	require.ErrorIs(t, err, ErrInvalidBlock)
	require.ErrorIs(t, err, ledgercore.ErrDoubleSpend)
}

func TestEvalDoubleSpendAcrossTransactions(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeEvalFixture()
	tx1 := f.spend(f.fundRef(12), 1000, f.alice, f.bob)
	tx2 := f.spend(f.fundRef(12), 2000, f.alice, f.bob)

	_, err := Eval(context.Background(), f.l, f.prev, f.block(t0+10, tx1, tx2), f.proto, time.Unix(t0+10, 0))
	var ibe *InvalidBlockError
	require.True(t, errors.As(err, &ibe))
	require.Equal(t, 1, ibe.TxIndex)
	require.Equal(t, basics.Height(6), ibe.Height)
	require.ErrorIs(t, err, ledgercore.ErrDoubleSpend)

	var dse *ledgercore.DoubleSpendError
	require.True(t, errors.As(err, &dse))
	require.Equal(t, fmt.Sprintf("Output #12 of Tx %s already spent!", f.fund), dse.Error())
}

func TestEvalBlockLevelRules(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeEvalFixture()
	tx := f.spend(f.fundRef(0), 1000, f.alice, f.bob)
	now := time.Unix(t0+10, 0)

	tests := []struct {
		name   string
		mutate func(*bookkeeping.Block, *config.ConsensusParams)
	}{
		{"height", func(b *bookkeeping.Block, _ *config.ConsensusParams) { b.Height++ }},
		{"branch", func(b *bookkeeping.Block, _ *config.ConsensusParams) { b.Branch = bookkeeping.BlockHash{1} }},
		{"genesis", func(b *bookkeeping.Block, _ *config.ConsensusParams) { b.GenesisHash = crypto.Digest{2} }},
		{"txnroot", func(b *bookkeeping.Block, _ *config.ConsensusParams) { b.TxnRoot = crypto.Digest{3} }},
		{"size", func(_ *bookkeeping.Block, p *config.ConsensusParams) { p.MaxBlockBytes = 64 }},
		{"future", func(b *bookkeeping.Block, _ *config.ConsensusParams) { b.TimeStamp = t0 + 2*3600 }},
		{"before-prev", func(b *bookkeeping.Block, _ *config.ConsensusParams) { b.TimeStamp = t0 - 1 }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			blk := f.block(t0+10, tx)
			proto := f.proto
			test.mutate(&blk, &proto)
			_, err := Eval(context.Background(), f.l, f.prev, blk, proto, now)
			var ibe *InvalidBlockError
			require.True(t, errors.As(err, &ibe), "%v", err)
			require.Equal(t, -1, ibe.TxIndex)
		})
	}
}

func TestEvalEmptyBlockHoldoff(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeEvalFixture()
	early := f.block(t0 + 60)
	_, err := Eval(context.Background(), f.l, f.prev, early, f.proto, time.Unix(t0+60, 0))
	require.ErrorIs(t, err, ErrInvalidBlock)

	late := f.block(t0 + int64(f.proto.EmptyBlockHoldoff/time.Second))
	_, err = Eval(context.Background(), f.l, f.prev, late, f.proto, time.Unix(late.TimeStamp, 0))
	require.NoError(t, err)

	proto := f.proto
	proto.EmptyBlockPolicy = config.EmptyBlockPropose
	_, err = Eval(context.Background(), f.l, f.prev, early, proto, time.Unix(t0+60, 0))
	require.NoError(t, err)
}

func TestEvalLookupFailure(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeEvalFixture()
	boom := errors.New("disk on fire")
	f.l.err = boom

	_, err := Eval(context.Background(), f.l, f.prev, f.block(t0+10, f.spend(f.fundRef(0), 1, f.alice, f.bob)), f.proto, time.Unix(t0+10, 0))
	require.ErrorIs(t, err, boom)
	require.False(t, errors.Is(err, ErrInvalidBlock))
}

func TestTestTransactionLeavesStateAlone(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeEvalFixture()
	ev := StartEvaluator(f.l, f.prev, f.proto, false)
	tx := f.spend(f.fundRef(80), 10, f.alice, f.bob)

	require.NoError(t, ev.TestTransaction(context.Background(), tx))
	require.True(t, ev.Patch().IsEmpty())
	require.Empty(t, ev.Payset())

	require.NoError(t, ev.Transaction(context.Background(), tx))
	require.ErrorIs(t, ev.TestTransaction(context.Background(), tx), ledgercore.ErrDoubleSpend)
	require.Len(t, ev.Payset(), 1)
	require.Equal(t, tx.EncodedLen(), ev.Bytes())
}

func TestGenesisEvaluator(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeEvalFixture()
	mint := transactions.Transaction{Outputs: []transactions.Output{{Amount: 100000, Receiver: addrOf(f.alice)}}}

	ev := StartEvaluator(f.l, bookkeeping.BlockHeader{}, f.proto, false)
	require.ErrorIs(t, ev.Transaction(context.Background(), mint), ledgercore.ErrUnauthorizedCoinCreation)

	ev = StartEvaluator(f.l, bookkeeping.BlockHeader{}, f.proto, true)
	require.NoError(t, ev.Transaction(context.Background(), mint))
	coins := ev.Patch().Coins()
	require.Len(t, coins, 1)
	require.Equal(t, ledgercore.Coin{Amount: 100000, Receiver: addrOf(f.alice)}, coins[0].Coin)
}

func TestAssembleBlockSkipsFailing(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeEvalFixture()
	good := f.spend(f.fundRef(12), 1000, f.alice, f.bob)
	badClaim := f.spend(f.fundRef(0), 1000, f.bob, f.bob)
	chained := f.spend(good.Outpoint(0), 500, f.bob, f.alice)
	now := time.Unix(t0+30, 0)

	res, err := AssembleBlock(context.Background(), f.l, f.prev, []transactions.Transaction{good, badClaim, chained}, f.signer, now, f.proto)
	require.NoError(t, err)
	require.Len(t, res.Rejected, 1)
	require.Equal(t, badClaim.ID(), res.Rejected[0].TxID)
	require.ErrorIs(t, res.Rejected[0].Err, ledgercore.ErrClaimFailed)

	blk := res.Block.Block()
	require.Equal(t, bookkeeping.Payset{good, chained}, blk.Payset)
	require.Equal(t, now.Unix(), blk.TimeStamp)

	vb, err := Eval(context.Background(), f.l, f.prev, blk, f.proto, now)
	require.NoError(t, err)
	require.Equal(t, res.Block.Patch().Coins(), vb.Patch().Coins())
}

func TestAssembleBlockSizeLimit(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeEvalFixture()
	txs := []transactions.Transaction{
		f.spend(f.fundRef(12), 1, f.alice, f.bob),
		f.spend(f.fundRef(0), 2, f.alice, f.bob),
		f.spend(f.fundRef(80), 3, f.alice, f.bob),
	}
	now := time.Unix(t0+30, 0)
	empty := bookkeeping.MakeBlock(f.prev, nil, f.signer, now.Unix())
	proto := f.proto
	proto.MaxBlockBytes = empty.EncodedLen() + paysetOverheadBytes + txs[0].EncodedLen() + txs[1].EncodedLen()

	res, err := AssembleBlock(context.Background(), f.l, f.prev, txs, f.signer, now, proto)
	require.NoError(t, err)
	require.Empty(t, res.Rejected)
	blk := res.Block.Block()
	require.Len(t, blk.Payset, 2)
	require.LessOrEqual(t, blk.EncodedLen(), proto.MaxBlockBytes)

	_, err = Eval(context.Background(), f.l, f.prev, blk, proto, now)
	require.NoError(t, err)
}

func TestAssembleBlockClampsTimestamp(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeEvalFixture()
	res, err := AssembleBlock(context.Background(), f.l, f.prev, nil, f.signer, time.Unix(t0-100, 0), f.proto)
	require.NoError(t, err)
	require.Equal(t, t0, res.Block.Block().TimeStamp)
}
