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

package bookkeeping

import (
	"errors"
	"fmt"
	"os"

	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/transactions"
	"github.com/witnessnet/go-witness/protocol"
)

// A Genesis object defines a witness network: the set of witnesses that
// run consensus and the coins that exist before the first block.
type Genesis struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	// Network identifies the network for which the ledger is valid.
	Network string `codec:"network"`

	// Timestamp for the genesis block
	Timestamp int64 `codec:"timestamp"`

	// Witnesses are the hex-encoded public keys of the consensus participants.
	Witnesses []string `codec:"witnesses,allocbound=-"`

	// Allocation determines the initial coins.
	Allocation []GenesisAllocation `codec:"alloc,allocbound=-"`

	// Arbitrary genesis comment string - will be excluded from file if empty
	Comment string `codec:"comment"`
}

// A GenesisAllocation object represents coins created for
// an address in the genesis block.  Address is the checksummed
// short address.  Comment is a note about what this address is
// representing, and is purely informational.
type GenesisAllocation struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Address string            `codec:"addr"`
	Amount  basics.MicroUnits `codec:"amount"`
	Comment string            `codec:"comment"`
}

// ErrNoWitnesses is returned for a genesis without any witness.
var ErrNoWitnesses = errors.New("genesis defines no witnesses")

// ErrNoAllocation is returned for a genesis without any coin.
var ErrNoAllocation = errors.New("genesis defines no allocation")

// LoadGenesisFromFile attempts to load a Genesis structure from a (presumably) genesis.json file.
func LoadGenesisFromFile(genesisFile string) (genesis Genesis, err error) {
	genesisText, err := os.ReadFile(genesisFile)
	if err != nil {
		return
	}

	err = protocol.DecodeJSON(genesisText, &genesis)
	return
}

// WitnessKeys parses the witness set.
func (genesis Genesis) WitnessKeys() ([]crypto.PublicKey, error) {
	if len(genesis.Witnesses) == 0 {
		return nil, ErrNoWitnesses
	}
	keys := make([]crypto.PublicKey, 0, len(genesis.Witnesses))
	seen := make(map[crypto.PublicKey]bool, len(genesis.Witnesses))
	for _, w := range genesis.Witnesses {
		pk, err := crypto.PublicKeyFromString(w)
		if err != nil {
			return nil, fmt.Errorf("genesis witness %q: %w", w, err)
		}
		if seen[pk] {
			return nil, fmt.Errorf("genesis witness %s listed twice", pk)
		}
		seen[pk] = true
		keys = append(keys, pk)
	}
	return keys, nil
}

// Transaction returns the value-creating transaction holding the allocation.
// It has no inputs and is only valid when applied in a genesis context.
func (genesis Genesis) Transaction() (transactions.Transaction, error) {
	if len(genesis.Allocation) == 0 {
		return transactions.Transaction{}, ErrNoAllocation
	}
	tx := transactions.Transaction{
		Outputs: make([]transactions.Output, len(genesis.Allocation)),
		Note:    []byte(genesis.Network),
	}
	for i, alloc := range genesis.Allocation {
		addr, err := basics.UnmarshalChecksumAddress(alloc.Address)
		if err != nil {
			return transactions.Transaction{}, fmt.Errorf("genesis allocation %d: %w", i, err)
		}
		tx.Outputs[i] = transactions.Output{Amount: alloc.Amount, Receiver: addr}
	}
	return tx, nil
}

// Block returns the height-0 block of the network.
func (genesis Genesis) Block() (Block, error) {
	if _, err := genesis.WitnessKeys(); err != nil {
		return Block{}, err
	}
	tx, err := genesis.Transaction()
	if err != nil {
		return Block{}, err
	}
	payset := Payset{tx}
	return Block{
		BlockHeader: BlockHeader{
			Height:    0,
			TimeStamp: genesis.Timestamp,
			TxnRoot:   payset.Root(),
		},
		Payset: payset,
	}, nil
}

// Hash returns the hash of the genesis block, which identifies the chain.
func (genesis Genesis) Hash() (crypto.Digest, error) {
	blk, err := genesis.Block()
	if err != nil {
		return crypto.Digest{}, err
	}
	return blk.Digest(), nil
}
