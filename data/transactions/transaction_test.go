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

package transactions

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/protocol"
	"github.com/witnessnet/go-witness/testpartitioning"
)

func testSecrets(b byte) *crypto.SignatureSecrets {
	var seed crypto.Seed
	seed[0] = b
	return crypto.GenerateSignatureSecrets(seed)
}

func testTxn(owner *crypto.SignatureSecrets, to basics.Address) Transaction {
	prev := Txid(crypto.Hash([]byte("prev")))
	tx := Transaction{
		Inputs: []Input{
			{Prev: Outpoint{TxID: prev, Index: 12}},
			{Prev: Outpoint{TxID: prev, Index: 0}},
		},
		Outputs: []Output{{Amount: 150000, Receiver: to}},
	}
	tx.SignAll(owner)
	return tx
}

func TestIDIgnoresClaims(t *testing.T) {
	testpartitioning.PartitionTest(t)

	alice := testSecrets(1)
	bob := basics.AddressFromPublicKey(testSecrets(2).SignatureVerifier)
	tx := testTxn(alice, bob)
	id := tx.ID()

	unsigned := tx
	unsigned.Inputs = append([]Input(nil), tx.Inputs...)
	for i := range unsigned.Inputs {
		unsigned.Inputs[i].Claim = Claim{}
	}
	require.Equal(t, id, unsigned.ID())

	changed := tx
	changed.Outputs = []Output{{Amount: 1, Receiver: bob}}
	require.NotEqual(t, id, changed.ID())

	noted := tx
	noted.Note = []byte("x")
	require.NotEqual(t, id, noted.ID())
}

func TestClaimVerification(t *testing.T) {
	testpartitioning.PartitionTest(t)

	alice := testSecrets(1)
	mallory := testSecrets(3)
	aliceAddr := basics.AddressFromPublicKey(alice.SignatureVerifier)
	bob := basics.AddressFromPublicKey(testSecrets(2).SignatureVerifier)

	tx := testTxn(alice, bob)
	require.True(t, tx.VerifyClaim(0, aliceAddr))
	require.True(t, tx.VerifyClaim(1, aliceAddr))
	require.False(t, tx.VerifyClaim(0, bob))

	// right key, signature by someone else
	forged := testTxn(alice, bob)
	forged.Inputs[0].Claim.Sig = mallory.Sign(forged.body())
	require.False(t, forged.VerifyClaim(0, aliceAddr))

	// body changed after signing
	tx.Outputs[0].Amount = 149999
	require.False(t, tx.VerifyClaim(0, aliceAddr))
	tx.Sign(0, alice)
	require.True(t, tx.VerifyClaim(0, aliceAddr))
	require.False(t, tx.VerifyClaim(1, aliceAddr))
}

func TestEncodeDecode(t *testing.T) {
	testpartitioning.PartitionTest(t)

	tx := testTxn(testSecrets(1), basics.AddressFromPublicKey(testSecrets(2).SignatureVerifier))
	enc := protocol.Encode(&tx)
	require.Equal(t, len(enc), tx.EncodedLen())

	var out Transaction
	require.NoError(t, protocol.Decode(enc, &out))
	require.Equal(t, tx, out)
	require.Equal(t, tx.ID(), out.ID())
}

func TestWellFormed(t *testing.T) {
	testpartitioning.PartitionTest(t)

	proto := config.DefaultConsensusParams()
	bob := basics.AddressFromPublicKey(testSecrets(2).SignatureVerifier)
	tx := testTxn(testSecrets(1), bob)
	require.NoError(t, tx.WellFormed(proto))

	empty := Transaction{Inputs: tx.Inputs}
	require.ErrorIs(t, empty.WellFormed(proto), ErrNoOutputs)

	// zero-amount outputs are valid coins
	zero := Transaction{Outputs: []Output{{Amount: 0, Receiver: bob}}}
	require.NoError(t, zero.WellFormed(proto))

	noReceiver := Transaction{Outputs: []Output{{Amount: 1}}}
	require.ErrorIs(t, noReceiver.WellFormed(proto), ErrZeroReceiver)

	overflow := Transaction{Outputs: []Output{{Amount: ^basics.MicroUnits(0), Receiver: bob}, {Amount: 1, Receiver: bob}}}
	require.ErrorIs(t, overflow.WellFormed(proto), ErrOutputOverflow)

	proto.MaxTxnInputs = 1
	var be *TxnBoundsError
	require.ErrorAs(t, tx.WellFormed(proto), &be)
	require.Equal(t, "inputs", be.What)
}

func TestTxidString(t *testing.T) {
	testpartitioning.PartitionTest(t)

	id := Txid(crypto.Hash([]byte("a")))
	var back Txid
	require.NoError(t, back.FromString(id.String()))
	require.Equal(t, id, back)
	require.Error(t, back.FromString("abcd"))
	require.Len(t, id.String(), 64)
}
