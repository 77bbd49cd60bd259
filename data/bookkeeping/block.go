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
	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/transactions"
	"github.com/witnessnet/go-witness/protocol"
)

type (
	// BlockHash represents the hash of a block
	BlockHash crypto.Digest

	// A BlockHeader represents the metadata and commitments to the state of a Block.
	// The ledger may persist the header separately from the Payset.
	BlockHeader struct {
		_struct struct{} `codec:",omitempty,omitemptyarray"`

		Height basics.Height `codec:"hgt"`

		// The hash of the previous block
		Branch BlockHash `codec:"prev"`

		// TimeStamp in seconds since epoch
		TimeStamp int64 `codec:"ts"`

		// Proposer is the witness that assembled the block.
		Proposer crypto.PublicKey `codec:"prp"`

		// TxnRoot authenticates the set of transactions appearing in the block.
		TxnRoot crypto.Digest `codec:"txn"`

		// GenesisHash is the hash of the genesis block. Zero in the genesis block itself.
		GenesisHash crypto.Digest `codec:"gh"`
	}

	// A Block contains the Payset and metadata corresponding to a given Height.
	Block struct {
		BlockHeader
		Payset Payset `codec:"txns,allocbound=-"`
	}

	// Payset is the ordered list of transactions of a block. Order matters:
	// each transaction is validated against the state left by its predecessors.
	Payset []transactions.Transaction
)

// String returns the hash in base32.
func (h BlockHash) String() string {
	return crypto.Digest(h).String()
}

// IsZero determines whether the block hash is all zeros.
func (h BlockHash) IsZero() bool {
	return crypto.Digest(h).IsZero()
}

// Hash returns the hash of a block header.
// The hash of a block is the hash of its header.
func (bh BlockHeader) Hash() BlockHash {
	return BlockHash(crypto.HashObj(bh))
}

// ToBeHashed implements the crypto.Hashable interface
func (bh BlockHeader) ToBeHashed() (protocol.HashID, []byte) {
	return protocol.BlockHeader, protocol.Encode(&bh)
}

// ChainGenesisHash returns the genesis hash of the chain this header belongs to.
func (bh BlockHeader) ChainGenesisHash() crypto.Digest {
	if bh.Height == 0 {
		return crypto.Digest(bh.Hash())
	}
	return bh.GenesisHash
}

// Digest returns a cryptographic digest summarizing the Block.
func (block Block) Digest() crypto.Digest {
	return crypto.Digest(block.BlockHeader.Hash())
}

// EncodedLen returns the encoded size of the block in bytes.
func (block Block) EncodedLen() int {
	return len(protocol.Encode(&block))
}

// IsEmpty reports whether the block carries no transactions.
func (block Block) IsEmpty() bool {
	return len(block.Payset) == 0
}

type paysetCommit struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	IDs []transactions.Txid `codec:"ids,allocbound=-"`
}

func (pc paysetCommit) ToBeHashed() (protocol.HashID, []byte) {
	return protocol.PaysetRoot, protocol.Encode(&pc)
}

// Root returns a commitment to the ordered transaction ids of the payset.
func (payset Payset) Root() crypto.Digest {
	pc := paysetCommit{IDs: make([]transactions.Txid, len(payset))}
	for i, tx := range payset {
		pc.IDs[i] = tx.ID()
	}
	return crypto.HashObj(pc)
}

// EncodedLen sums the encoded size of every transaction.
func (payset Payset) EncodedLen() (n int) {
	for _, tx := range payset {
		n += tx.EncodedLen()
	}
	return
}

// MakeBlock constructs the block that follows prev.
func MakeBlock(prev BlockHeader, payset Payset, proposer crypto.PublicKey, timestamp int64) Block {
	return Block{
		BlockHeader: BlockHeader{
			Height:      prev.Height + 1,
			Branch:      prev.Hash(),
			TimeStamp:   timestamp,
			Proposer:    proposer,
			TxnRoot:     payset.Root(),
			GenesisHash: prev.ChainGenesisHash(),
		},
		Payset: payset,
	}
}
