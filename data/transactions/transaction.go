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
	"encoding/hex"
	"fmt"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/protocol"
)

// Txid is a hash used to uniquely identify individual transactions
type Txid crypto.Digest

// String converts txid to a pretty-printable string
func (txid Txid) String() string {
	return hex.EncodeToString(txid[:])
}

// FromString initializes the Txid from a hex string
func (txid *Txid) FromString(text string) error {
	raw, err := hex.DecodeString(text)
	if err != nil {
		return err
	}
	d, err := crypto.DigestFromBytes(raw)
	*txid = Txid(d)
	return err
}

// Outpoint identifies a coin by the transaction that created it and the
// position of the output within that transaction.
type Outpoint struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	TxID  Txid   `codec:"tx"`
	Index uint32 `codec:"i"`
}

func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID, o.Index)
}

// Claim proves ownership of the coin an input spends: the key must hash to
// the coin's receiver and the signature must cover the transaction body.
type Claim struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Key crypto.PublicKey `codec:"pk"`
	Sig crypto.Signature `codec:"sig"`
}

// Input spends a previously created coin.
type Input struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Prev  Outpoint `codec:"prev"`
	Claim Claim    `codec:"claim"`
}

// Output creates a new coin owned by Receiver.
type Output struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Amount   basics.MicroUnits `codec:"amt"`
	Receiver basics.Address    `codec:"rcv"`
}

// Transaction consumes coins and creates new ones. A transaction without
// inputs creates value and is only valid in a genesis context.
type Transaction struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Inputs  []Input  `codec:"in,allocbound=-"`
	Outputs []Output `codec:"out,allocbound=-"`

	// Note carries arbitrary data. It distinguishes otherwise identical
	// value-creating transactions.
	Note []byte `codec:"note,allocbound=-"`
}

// txBody is the part of a transaction covered by its ID and by every claim.
type txBody struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Prevs   []Outpoint `codec:"prev,allocbound=-"`
	Outputs []Output   `codec:"out,allocbound=-"`
	Note    []byte     `codec:"note,allocbound=-"`
}

// ToBeHashed implements the crypto.Hashable interface.
func (b txBody) ToBeHashed() (protocol.HashID, []byte) {
	return protocol.Transaction, protocol.Encode(&b)
}

func (tx Transaction) body() txBody {
	b := txBody{
		Outputs: tx.Outputs,
		Note:    tx.Note,
	}
	if len(tx.Inputs) > 0 {
		b.Prevs = make([]Outpoint, len(tx.Inputs))
		for i, in := range tx.Inputs {
			b.Prevs[i] = in.Prev
		}
	}
	return b
}

// ID returns the Txid (i.e., hash) of the transaction body.
// Claims are not covered, so the ID is fixed once inputs and outputs are.
func (tx Transaction) ID() Txid {
	return Txid(crypto.HashObj(tx.body()))
}

// Outpoint returns the reference to output i of this transaction.
func (tx Transaction) Outpoint(i int) Outpoint {
	return Outpoint{TxID: tx.ID(), Index: uint32(i)}
}

// Sign fills in the claim of input i. Any later change to the body
// invalidates the signature and the input must be signed again.
func (tx *Transaction) Sign(i int, secrets *crypto.SignatureSecrets) {
	tx.Inputs[i].Claim = Claim{
		Key: secrets.SignatureVerifier,
		Sig: secrets.Sign(tx.body()),
	}
}

// SignAll signs every input with the same secrets.
func (tx *Transaction) SignAll(secrets *crypto.SignatureSecrets) {
	sig := secrets.Sign(tx.body())
	for i := range tx.Inputs {
		tx.Inputs[i].Claim = Claim{Key: secrets.SignatureVerifier, Sig: sig}
	}
}

// VerifyClaim checks that input i's claim is a valid signature over the body
// by a key that hashes to owner.
func (tx Transaction) VerifyClaim(i int, owner basics.Address) bool {
	c := tx.Inputs[i].Claim
	if basics.AddressFromPublicKey(c.Key) != owner {
		return false
	}
	return c.Key.Verify(tx.body(), c.Sig)
}

// IsCoinCreation reports whether the transaction creates value out of nothing.
func (tx Transaction) IsCoinCreation() bool {
	return len(tx.Inputs) == 0
}

// OutputTotal sums the outputs, reporting overflow.
func (tx Transaction) OutputTotal() (basics.MicroUnits, bool) {
	amounts := make([]basics.MicroUnits, len(tx.Outputs))
	for i, out := range tx.Outputs {
		amounts[i] = out.Amount
	}
	return basics.SumA(amounts...)
}

// EncodedLen returns the length in bytes of the encoded transaction
func (tx Transaction) EncodedLen() int {
	return len(protocol.Encode(&tx))
}

// WellFormed checks that the transaction looks reasonable on its own (but not necessarily valid against the actual ledger).
func (tx Transaction) WellFormed(proto config.ConsensusParams) error {
	if len(tx.Outputs) == 0 {
		return ErrNoOutputs
	}
	if len(tx.Inputs) > proto.MaxTxnInputs {
		return &TxnBoundsError{What: "inputs", Have: len(tx.Inputs), Max: proto.MaxTxnInputs}
	}
	if len(tx.Outputs) > proto.MaxTxnOutputs {
		return &TxnBoundsError{What: "outputs", Have: len(tx.Outputs), Max: proto.MaxTxnOutputs}
	}
	if len(tx.Note) > proto.MaxTxnNoteBytes {
		return &TxnBoundsError{What: "note bytes", Have: len(tx.Note), Max: proto.MaxTxnNoteBytes}
	}
	for i, out := range tx.Outputs {
		if out.Receiver.IsZero() {
			return fmt.Errorf("output %d: %w", i, ErrZeroReceiver)
		}
	}
	if _, overflowed := tx.OutputTotal(); overflowed {
		return ErrOutputOverflow
	}
	return nil
}
