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
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/bookkeeping"
	"github.com/witnessnet/go-witness/data/transactions"
	"github.com/witnessnet/go-witness/ledger/eval"
	"github.com/witnessnet/go-witness/ledger/ledgercore"
	"github.com/witnessnet/go-witness/logging"
	"github.com/witnessnet/go-witness/testpartitioning"
)

const genesisTime = int64(1700000000)

var engines = []string{config.StorageEngineSqlite, config.StorageEnginePebble}

func testKey(b byte) *crypto.SignatureSecrets {
	var seed crypto.Seed
	seed[0] = b
	return crypto.GenerateSignatureSecrets(seed)
}

func addrOf(s *crypto.SignatureSecrets) basics.Address {
	return basics.AddressFromPublicKey(s.SignatureVerifier)
}

type ledgerFixture struct {
	alice   *crypto.SignatureSecrets
	bob     *crypto.SignatureSecrets
	witness *crypto.SignatureSecrets
	genesis bookkeeping.Genesis
}

func makeLedgerFixture() ledgerFixture {
	f := ledgerFixture{alice: testKey(1), bob: testKey(2), witness: testKey(9)}
	f.genesis = bookkeeping.Genesis{
		Network:   "testnet",
		Timestamp: genesisTime,
		Witnesses: []string{f.witness.SignatureVerifier.String()},
		Allocation: []bookkeeping.GenesisAllocation{
			{Address: addrOf(f.alice).String(), Amount: 100000},
		},
	}
	return f
}

func (f ledgerFixture) genesisRef(t *testing.T) transactions.Outpoint {
	tx, err := f.genesis.Transaction()
	require.NoError(t, err)
	return tx.Outpoint(0)
}

// pay spends ref (owned by from) into a single output to to.
func pay(from *crypto.SignatureSecrets, ref transactions.Outpoint, to basics.Address, amount basics.MicroUnits) transactions.Transaction {
	tx := transactions.Transaction{
		Inputs:  []transactions.Input{{Prev: ref}},
		Outputs: []transactions.Output{{Amount: amount, Receiver: to}},
	}
	tx.SignAll(from)
	return tx
}

func testConfig(engine string) config.Local {
	cfg := config.GetDefaultLocal()
	cfg.StorageEngine = engine
	cfg.InMemoryStorage = true
	return cfg
}

func openTestLedger(t *testing.T, engine string, f ledgerFixture) *Ledger {
	l, err := Open(context.Background(), testConfig(engine), t.TempDir(), f.genesis, crypto.Digest{}, config.DefaultConsensusParams(), logging.TestingLog(t))
	require.NoError(t, err)
	return l
}

type recordingListener struct {
	blocks chan bookkeeping.Block
}

func (r recordingListener) OnNewBlock(blk bookkeeping.Block) {
	r.blocks <- blk
}

func TestOpenFromGenesis(t *testing.T) {
	testpartitioning.PartitionTest(t)

	for _, engine := range engines {
		t.Run(engine, func(t *testing.T) {
			f := makeLedgerFixture()
			l := openTestLedger(t, engine, f)
			defer l.Close()

			require.Equal(t, basics.Height(0), l.Latest())
			require.Equal(t, basics.Height(1), l.NextHeight())
			want, err := f.genesis.Hash()
			require.NoError(t, err)
			require.Equal(t, want, l.GenesisHash())
			require.Equal(t, []crypto.PublicKey{f.witness.SignatureVerifier}, l.Witnesses())

			coin, ok, err := l.GetUtxo(context.Background(), f.genesisRef(t))
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, ledgercore.Coin{Amount: 100000, Receiver: addrOf(f.alice)}, coin)

			blk, err := l.Block(context.Background(), 0)
			require.NoError(t, err)
			require.Equal(t, want, blk.Digest())

			_, err = l.Block(context.Background(), 5)
			var noEntry ledgercore.ErrNoEntry
			require.ErrorAs(t, err, &noEntry)
			require.Equal(t, basics.Height(5), noEntry.Height)
		})
	}
}

func TestGenesisHashOverride(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeLedgerFixture()
	want, err := f.genesis.Hash()
	require.NoError(t, err)

	l, err := Open(context.Background(), testConfig(config.StorageEngineSqlite), t.TempDir(), f.genesis, want, config.DefaultConsensusParams(), logging.TestingLog(t))
	require.NoError(t, err)
	l.Close()

	_, err = Open(context.Background(), testConfig(config.StorageEngineSqlite), t.TempDir(), f.genesis, crypto.Hash([]byte("other")), config.DefaultConsensusParams(), logging.TestingLog(t))
	require.ErrorIs(t, err, ErrGenesisMismatch)
}

func TestCommitFlow(t *testing.T) {
	testpartitioning.PartitionTest(t)

	for _, engine := range engines {
		t.Run(engine, func(t *testing.T) {
			ctx := context.Background()
			f := makeLedgerFixture()
			l := openTestLedger(t, engine, f)
			defer l.Close()

			listener := recordingListener{blocks: make(chan bookkeeping.Block, 1)}
			l.RegisterBlockListeners([]BlockListener{listener})
			waiter := l.Wait(1)

			tx := pay(f.alice, f.genesisRef(t), addrOf(f.bob), 60000)
			now := time.Unix(genesisTime+10, 0)
			res, err := l.AssembleBlock(ctx, []transactions.Transaction{tx}, f.witness.SignatureVerifier, now)
			require.NoError(t, err)
			require.Empty(t, res.Rejected)

			// a second node validates the same block independently
			vb, err := l.Validate(ctx, res.Block.Block(), now)
			require.NoError(t, err)
			require.Equal(t, res.Block.Hash(), vb.Hash())

			select {
			case <-waiter:
				t.Fatal("height 1 signalled before commit")
			default:
			}

			blocksBefore := l.metrics.ledgerBlocksTotal.GetUint64Value()
			require.NoError(t, l.AddValidatedBlock(ctx, *vb))
			require.Equal(t, basics.Height(1), l.Latest())
			require.Equal(t, blocksBefore+1, l.metrics.ledgerBlocksTotal.GetUint64Value())
			require.Equal(t, uint64(1), l.metrics.ledgerHeight.GetUint64Value())

			select {
			case <-waiter:
			case <-time.After(5 * time.Second):
				t.Fatal("waiter not released")
			}
			select {
			case got := <-listener.blocks:
				require.Equal(t, vb.Hash(), got.Hash())
			case <-time.After(5 * time.Second):
				t.Fatal("listener not called")
			}

			_, ok, err := l.GetUtxo(ctx, f.genesisRef(t))
			require.NoError(t, err)
			require.False(t, ok)
			coin, ok, err := l.GetUtxo(ctx, tx.Outpoint(0))
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, ledgercore.Coin{Amount: 60000, Receiver: addrOf(f.bob)}, coin)

			// the same block again is already in the ledger
			err = l.AddValidatedBlock(ctx, *vb)
			var bile ledgercore.BlockInLedgerError
			require.ErrorAs(t, err, &bile)
			_, err = l.Validate(ctx, vb.Block(), now)
			require.ErrorAs(t, err, &bile)
		})
	}
}

func TestCommitRejectsForeignBranch(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeLedgerFixture()
	l := openTestLedger(t, config.StorageEngineSqlite, f)
	defer l.Close()

	other := bookkeeping.BlockHeader{Height: 0, TimeStamp: genesisTime + 1}
	blk := bookkeeping.MakeBlock(other, nil, f.witness.SignatureVerifier, genesisTime+2)
	err := l.Commit(context.Background(), blk, ledgercore.MakePatch(0))
	require.ErrorIs(t, err, ErrBranchMismatch)
	require.Equal(t, basics.Height(0), l.Latest())
}

func TestValidateDoubleSpendInBlock(t *testing.T) {
	testpartitioning.PartitionTest(t)

	ctx := context.Background()
	f := makeLedgerFixture()
	l := openTestLedger(t, config.StorageEngineSqlite, f)
	defer l.Close()

	ref := f.genesisRef(t)
	t1 := pay(f.alice, ref, addrOf(f.bob), 100000)
	t2 := pay(f.alice, ref, addrOf(f.alice), 100000)
	t2.Note = []byte("again")
	t2.SignAll(f.alice)

	blk := bookkeeping.MakeBlock(l.LastBlock(), bookkeeping.Payset{t1, t2}, f.witness.SignatureVerifier, genesisTime+10)
	_, err := l.Validate(ctx, blk, time.Unix(genesisTime+10, 0))
	require.ErrorIs(t, err, ledgercore.ErrDoubleSpend)

	var invalid *eval.InvalidBlockError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, 1, invalid.TxIndex)
	// nothing reached storage
	_, ok, err := l.GetUtxo(ctx, ref)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestReopenRestoresLatest(t *testing.T) {
	testpartitioning.PartitionTest(t)

	for _, engine := range engines {
		t.Run(engine, func(t *testing.T) {
			ctx := context.Background()
			f := makeLedgerFixture()
			dir := t.TempDir()
			cfg := testConfig(engine)
			cfg.InMemoryStorage = false

			l, err := Open(ctx, cfg, dir, f.genesis, crypto.Digest{}, config.DefaultConsensusParams(), logging.TestingLog(t))
			require.NoError(t, err)
			tx := pay(f.alice, f.genesisRef(t), addrOf(f.bob), 100000)
			res, err := l.AssembleBlock(ctx, []transactions.Transaction{tx}, f.witness.SignatureVerifier, time.Unix(genesisTime+5, 0))
			require.NoError(t, err)
			require.NoError(t, l.AddValidatedBlock(ctx, res.Block))
			want := l.LastBlock()
			l.Close()

			if engine == config.StorageEngineSqlite {
				require.FileExists(t, filepath.Join(dir, config.LedgerFilenamePrefix+".sqlite"))
			}
			l, err = Open(ctx, cfg, dir, f.genesis, crypto.Digest{}, config.DefaultConsensusParams(), logging.TestingLog(t))
			require.NoError(t, err)
			defer l.Close()
			require.Equal(t, want, l.LastBlock())
			require.Equal(t, basics.Height(2), l.NextHeight())
		})
	}
}

func TestBulletinWait(t *testing.T) {
	testpartitioning.PartitionTest(t)

	b := makeBulletin(3)
	select {
	case <-b.Wait(2):
	default:
		t.Fatal("past height should be signalled")
	}

	w5 := b.Wait(5)
	w4 := b.Wait(4)
	b.committedUpTo(4)
	select {
	case <-w4:
	default:
		t.Fatal("height 4 not signalled")
	}
	select {
	case <-w5:
		t.Fatal("height 5 signalled early")
	default:
	}
	b.committedUpTo(5)
	<-w5
}
