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

package apply

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/transactions"
	"github.com/witnessnet/go-witness/ledger/ledgercore"
	"github.com/witnessnet/go-witness/testpartitioning"
)

func keyFor(b byte) *crypto.SignatureSecrets {
	var seed crypto.Seed
	seed[0] = b
	return crypto.GenerateSignatureSecrets(seed)
}

func addrOf(s *crypto.SignatureSecrets) basics.Address {
	return basics.AddressFromPublicKey(s.SignatureVerifier)
}

// fixture holds three 100000-unit coins owned by alice at indexes 12, 0 and 80
// of the same funding transaction.
type fixture struct {
	app   *Application
	alice *crypto.SignatureSecrets
	bob   *crypto.SignatureSecrets
	fund  transactions.Txid
	view  ledgercore.UtxoMap
}

func makeFixture() fixture {
	f := fixture{
		app:   MakeApplication(config.DefaultConsensusParams()),
		alice: keyFor(1),
		bob:   keyFor(2),
		fund:  transactions.Txid(crypto.Hash([]byte("funding"))),
		view:  make(ledgercore.UtxoMap),
	}
	for _, idx := range []uint32{12, 0, 80} {
		f.view[transactions.Outpoint{TxID: f.fund, Index: idx}] = ledgercore.Coin{Amount: 100000, Receiver: addrOf(f.alice)}
	}
	return f
}

func (f fixture) spend(indexes []uint32, amount basics.MicroUnits, signer *crypto.SignatureSecrets) transactions.Transaction {
	tx := transactions.Transaction{
		Outputs: []transactions.Output{{Amount: amount, Receiver: addrOf(f.bob)}},
	}
	for _, idx := range indexes {
		tx.Inputs = append(tx.Inputs, transactions.Input{Prev: transactions.Outpoint{TxID: f.fund, Index: idx}})
	}
	tx.SignAll(signer)
	return tx
}

func doubleSpendMsg(txid transactions.Txid, idx uint32) string {
	return fmt.Sprintf("Output #%d of Tx %s already spent!", idx, txid)
}

func TestProcessTransaction(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeFixture()
	tx := f.spend([]uint32{12, 0, 80}, 1000, f.alice)

	patch, err := f.app.ProcessTransaction(tx, f.view, nil, false)
	require.NoError(t, err)
	require.NotNil(t, patch)

	for _, idx := range []uint32{12, 0, 80} {
		require.True(t, patch.IsSpent(transactions.Outpoint{TxID: f.fund, Index: idx}))
	}
	coins := patch.Coins()
	require.Len(t, coins, 1)
	require.Equal(t, tx.Outpoint(0), coins[0].Ref)
	require.Equal(t, ledgercore.Coin{Amount: 1000, Receiver: addrOf(f.bob)}, coins[0].Coin)
}

func TestProcessTransactionWrongIndex(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeFixture()
	tx := f.spend([]uint32{12, 17}, 1000, f.alice)

	patch := ledgercore.MakePatch(0)
	_, err := f.app.ProcessTransaction(tx, f.view, patch, false)
	require.ErrorIs(t, err, ledgercore.ErrDoubleSpend)
	require.EqualError(t, err, doubleSpendMsg(f.fund, 17))
	require.True(t, patch.IsEmpty())
}

func TestProcessTransactionBadClaim(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeFixture()
	tx := f.spend([]uint32{12, 0}, 1000, f.bob)
	_, err := f.app.ProcessTransaction(tx, f.view, nil, false)
	require.ErrorIs(t, err, ledgercore.ErrClaimFailed)
	require.EqualError(t, err, "Claim failed!")

	// right key, tampered body
	tx = f.spend([]uint32{12, 0}, 1000, f.alice)
	tx.Outputs[0].Amount = 1001
	_, err = f.app.ProcessTransaction(tx, f.view, nil, false)
	require.ErrorIs(t, err, ledgercore.ErrClaimFailed)

	// only one input re-signed after the change
	tx.Sign(0, f.alice)
	_, err = f.app.ProcessTransaction(tx, f.view, nil, false)
	var cfe *ledgercore.ClaimFailedError
	require.ErrorAs(t, err, &cfe)
	require.Equal(t, uint32(0), cfe.Ref.Index)

	tx.Sign(1, f.alice)
	_, err = f.app.ProcessTransaction(tx, f.view, nil, false)
	require.NoError(t, err)
}

func TestProcessGenesisTransaction(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeFixture()
	tx := transactions.Transaction{
		Outputs: []transactions.Output{{Amount: 100000, Receiver: addrOf(f.alice)}},
	}

	_, err := f.app.ProcessTransaction(tx, f.view, nil, false)
	require.ErrorIs(t, err, ledgercore.ErrUnauthorizedCoinCreation)

	patch, err := f.app.ProcessTransaction(tx, nil, nil, true)
	require.NoError(t, err)
	coins := patch.Coins()
	require.Len(t, coins, 1)
	require.Equal(t, ledgercore.Coin{Amount: 100000, Receiver: addrOf(f.alice)}, coins[0].Coin)

	// the same coinbase twice in one patch would mint the same outpoint again
	_, err = f.app.ProcessTransaction(tx, nil, patch, true)
	require.ErrorIs(t, err, ledgercore.ErrMergeConflict)
	require.Len(t, patch.Coins(), 1)
}

func TestProcessTransactionSameInputTwice(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeFixture()
	tx := f.spend([]uint32{12, 12}, 1000, f.alice)
	_, err := f.app.ProcessTransaction(tx, f.view, nil, false)
	require.ErrorIs(t, err, ledgercore.ErrDoubleSpend)
	require.EqualError(t, err, doubleSpendMsg(f.fund, 12))
}

func TestProcessTransactionChainedSpendInBlock(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeFixture()
	first := f.spend([]uint32{12}, 1000, f.alice)
	patch, err := f.app.ProcessTransaction(first, f.view, nil, false)
	require.NoError(t, err)
	before := patch.Len()

	second := f.spend([]uint32{12, 0}, 2000, f.alice)
	_, err = f.app.ProcessTransaction(second, f.view, patch, false)
	require.ErrorIs(t, err, ledgercore.ErrDoubleSpend)
	require.EqualError(t, err, doubleSpendMsg(f.fund, 12))
	require.Equal(t, before, patch.Len())
	require.False(t, patch.IsSpent(transactions.Outpoint{TxID: f.fund, Index: 0}))
}

func TestProcessTransactionSpendsPatchCoin(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeFixture()
	first := f.spend([]uint32{12}, 1000, f.alice)
	patch, err := f.app.ProcessTransaction(first, f.view, nil, false)
	require.NoError(t, err)

	carol := keyFor(3)
	second := transactions.Transaction{
		Inputs:  []transactions.Input{{Prev: first.Outpoint(0)}},
		Outputs: []transactions.Output{{Amount: 999, Receiver: addrOf(carol)}},
	}
	second.SignAll(f.bob)
	patch, err = f.app.ProcessTransaction(second, f.view, patch, false)
	require.NoError(t, err)

	_, status := patch.Lookup(first.Outpoint(0))
	require.Equal(t, ledgercore.Spent, status)
	require.Len(t, patch.Coins(), 1)
	require.Equal(t, second.Outpoint(0), patch.Coins()[0].Ref)
}

func TestProcessTransactionInsufficientFunds(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeFixture()
	tx := f.spend([]uint32{12, 0}, 200001, f.alice)
	patch := ledgercore.MakePatch(0)
	_, err := f.app.ProcessTransaction(tx, f.view, patch, false)
	require.ErrorIs(t, err, ledgercore.ErrInsufficientFunds)
	var ife *ledgercore.InsufficientFundsError
	require.ErrorAs(t, err, &ife)
	require.Equal(t, basics.MicroUnits(200000), ife.In)
	require.True(t, patch.IsEmpty())

	// exact spend and implicit fee both pass
	_, err = f.app.ProcessTransaction(f.spend([]uint32{12, 0}, 200000, f.alice), f.view, nil, false)
	require.NoError(t, err)
	_, err = f.app.ProcessTransaction(f.spend([]uint32{12, 0}, 1, f.alice), f.view, nil, false)
	require.NoError(t, err)
}

func TestProcessTransactionInputOverflow(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeFixture()
	big := transactions.Txid(crypto.Hash([]byte("big")))
	f.view[transactions.Outpoint{TxID: big, Index: 0}] = ledgercore.Coin{Amount: math.MaxUint64, Receiver: addrOf(f.alice)}
	f.view[transactions.Outpoint{TxID: big, Index: 1}] = ledgercore.Coin{Amount: 1, Receiver: addrOf(f.alice)}

	tx := transactions.Transaction{
		Inputs: []transactions.Input{
			{Prev: transactions.Outpoint{TxID: big, Index: 0}},
			{Prev: transactions.Outpoint{TxID: big, Index: 1}},
		},
		Outputs: []transactions.Output{{Amount: 5, Receiver: addrOf(f.bob)}},
	}
	tx.SignAll(f.alice)
	_, err := f.app.ProcessTransaction(tx, f.view, nil, false)
	var ife *ledgercore.InsufficientFundsError
	require.ErrorAs(t, err, &ife)
	require.True(t, ife.Overflow)
}

func TestProcessTransactionMalformed(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeFixture()
	tx := f.spend([]uint32{12}, 1000, f.alice)
	tx.Outputs = nil
	_, err := f.app.ProcessTransaction(tx, f.view, nil, false)
	require.ErrorIs(t, err, ledgercore.ErrMalformedTransaction)
	require.ErrorIs(t, err, transactions.ErrNoOutputs)

	tx = f.spend([]uint32{12}, 1000, f.alice)
	tx.Note = make([]byte, config.DefaultConsensusParams().MaxTxnNoteBytes+1)
	tx.SignAll(f.alice)
	patch, err := f.app.ProcessTransaction(tx, f.view, nil, false)
	var be *transactions.TxnBoundsError
	require.ErrorAs(t, err, &be)
	require.Equal(t, "note bytes", be.What)
	require.Zero(t, patch.Len())
}

func TestProcessTransactionBoundsCheckedLast(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeFixture()

	// an absent input is reported before the missing outputs
	tx := f.spend([]uint32{17}, 0, f.alice)
	tx.Outputs = nil
	tx.SignAll(f.alice)
	_, err := f.app.ProcessTransaction(tx, f.view, nil, false)
	require.EqualError(t, err, doubleSpendMsg(f.fund, 17))

	// coin creation is reported before the missing outputs
	_, err = f.app.ProcessTransaction(transactions.Transaction{}, f.view, nil, false)
	require.ErrorIs(t, err, ledgercore.ErrUnauthorizedCoinCreation)
}

func TestProcessTransactionZeroAmount(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeFixture()
	tx := f.spend([]uint32{12}, 0, f.alice)
	patch, err := f.app.ProcessTransaction(tx, f.view, nil, false)
	require.NoError(t, err)
	coin, status := patch.Lookup(tx.Outpoint(0))
	require.Equal(t, ledgercore.Available, status)
	require.Zero(t, coin.Amount)

	absent := f.spend([]uint32{17}, 0, f.alice)
	_, err = f.app.ProcessTransaction(absent, f.view, nil, false)
	require.EqualError(t, err, doubleSpendMsg(f.fund, 17))

	coinbase := transactions.Transaction{Outputs: []transactions.Output{{Amount: 0, Receiver: addrOf(f.bob)}}}
	_, err = f.app.ProcessTransaction(coinbase, f.view, nil, false)
	require.ErrorIs(t, err, ledgercore.ErrUnauthorizedCoinCreation)
}

func TestZeroInputOutsideGenesisIsUnauthorized(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeFixture()
	rapid.Check(t, func(t *rapid.T) {
		tx := transactions.Transaction{Note: rapid.SliceOfN(rapid.Byte(), 0, 2048).Draw(t, "note")}
		n := rapid.IntRange(0, 300).Draw(t, "outputs")
		for i := 0; i < n; i++ {
			out := transactions.Output{Amount: basics.MicroUnits(rapid.Uint64().Draw(t, "amount"))}
			if rapid.Bool().Draw(t, "receiver") {
				out.Receiver = addrOf(f.bob)
			}
			tx.Outputs = append(tx.Outputs, out)
		}

		patch, err := f.app.ProcessTransaction(tx, f.view, nil, false)
		if !errors.Is(err, ledgercore.ErrUnauthorizedCoinCreation) {
			t.Fatalf("zero-input transaction returned %v", err)
		}
		if patch.Len() != 0 {
			t.Fatalf("patch modified: %d entries", patch.Len())
		}
	})
}

func TestInputRefs(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeFixture()
	tx := f.spend([]uint32{80, 12}, 1, f.alice)
	require.Equal(t, []transactions.Outpoint{{TxID: f.fund, Index: 80}, {TxID: f.fund, Index: 12}}, InputRefs(tx))
}
