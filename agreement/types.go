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
	"context"
	"time"

	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/bookkeeping"
	"github.com/witnessnet/go-witness/data/transactions"
	"github.com/witnessnet/go-witness/ledger/eval"
	"github.com/witnessnet/go-witness/ledger/ledgercore"
	"github.com/witnessnet/go-witness/protocol"
)

// round is the attempt number within a height. It restarts at zero on every height.
type round uint64

// step is the state of the witness round.
type step uint8

const (
	// roundChange: the proposer is assembling a candidate block; everyone
	// else waits for it.
	roundChange step = iota
	// block: validating the candidate.
	block
	// voteBlock: the candidate is valid; collecting votes.
	voteBlock
	// commit: quorum reached; the candidate is being written.
	commit
)

func (s step) String() string {
	switch s {
	case roundChange:
		return "ROUND_CHANGE"
	case block:
		return "BLOCK"
	case voteBlock:
		return "VOTE_BLOCK"
	case commit:
		return "COMMIT"
	default:
		return "UNKNOWN"
	}
}

// stamp identifies the state a timer or an asynchronous result was issued in.
// Epoch increases on every state entry, so a stamp that no longer matches the
// player's is stale.
type stamp struct {
	Height basics.Height
	Round  round
	Step   step
	Epoch  uint64
}

// LedgerReader is the read side of the ledger the state machine consults.
type LedgerReader interface {
	// NextHeight returns the height consensus should agree on next.
	NextHeight() basics.Height

	// LastBlock returns the header of the latest committed block.
	LastBlock() bookkeeping.BlockHeader

	// Witnesses returns the consensus participants, in genesis order.
	Witnesses() []crypto.PublicKey

	// Wait returns a channel closed once height h is committed.
	Wait(h basics.Height) <-chan struct{}
}

// Ledger represents the ledger operations the agreement service needs.
type Ledger interface {
	LedgerReader

	// Validate evaluates blk as the successor of the latest block.
	Validate(ctx context.Context, blk bookkeeping.Block, now time.Time) (*ledgercore.ValidatedBlock, error)

	// AssembleBlock builds the successor of the latest block out of txs.
	AssembleBlock(ctx context.Context, txs []transactions.Transaction, proposer crypto.PublicKey, now time.Time) (eval.AssembleResult, error)

	// AddValidatedBlock durably commits vb.
	AddValidatedBlock(ctx context.Context, vb ledgercore.ValidatedBlock) error
}

// Mempool supplies a proposer with transactions.
type Mempool interface {
	// DrawPendingTransactions returns pending transactions, oldest first, up to maxBytes.
	DrawPendingTransactions(maxBytes int) []transactions.Transaction

	// Remove drops transactions that block assembly found invalid.
	Remove(txids []transactions.Txid)
}

// Catchup fetches committed blocks the local ledger is missing.
type Catchup interface {
	// Certified reports that a quorum of witnesses announced committing
	// hash at height h. It must not block.
	Certified(h basics.Height, hash bookkeeping.BlockHash)
}

// Message is an agreement message received from the network.
type Message struct {
	Sender interface{}
	Data   []byte
}

// Network is an abstraction over the gossip layer.
type Network interface {
	// Messages returns a channel of incoming messages carrying the given tag.
	Messages(protocol.Tag) <-chan Message

	// Broadcast sends data to every peer.
	Broadcast(context.Context, protocol.Tag, []byte) error

	// Start registers the network handlers.
	Start()
}
