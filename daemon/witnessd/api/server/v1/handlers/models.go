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

package handlers

import (
	"github.com/witnessnet/go-witness/data/bookkeeping"
	"github.com/witnessnet/go-witness/data/transactions"
	"github.com/witnessnet/go-witness/ledger/ledgercore"
	"github.com/witnessnet/go-witness/node"
)

// NodeStatus contains the information about a node's status
type NodeStatus struct {
	LastHeight          uint64 `json:"lastHeight"`
	LastBlockHash       string `json:"lastBlockHash"`
	LastBlockTimestamp  int64  `json:"lastBlockTimestamp"`
	TimeSinceLastBlock  int64  `json:"timeSinceLastBlock"`
	GenesisHash         string `json:"genesisHash"`
	PendingTransactions int    `json:"pendingTransactions"`
	Peers               int    `json:"peers"`
	CatchupTime         int64  `json:"catchupTime"`

	// consensus position
	Round    uint64 `json:"round"`
	Step     string `json:"step"`
	Proposer string `json:"proposer,omitempty"`
	Witness  bool   `json:"witness"`
	Halted   string `json:"halted,omitempty"`
}

// Input spends a coin.
type Input struct {
	Prev string `json:"prev"`
	Key  string `json:"key"`
}

// Output creates a coin.
type Output struct {
	Amount   uint64 `json:"amount"`
	Receiver string `json:"receiver"`
}

// Transaction is the JSON rendering of a transaction.
type Transaction struct {
	TxID    string   `json:"txid"`
	Inputs  []Input  `json:"inputs"`
	Outputs []Output `json:"outputs"`
	Note    []byte   `json:"note,omitempty"`
}

// Block is the JSON rendering of a committed block.
type Block struct {
	Height       uint64        `json:"height"`
	Hash         string        `json:"hash"`
	Branch       string        `json:"branch"`
	Timestamp    int64         `json:"timestamp"`
	Proposer     string        `json:"proposer"`
	TxnRoot      string        `json:"txnRoot"`
	GenesisHash  string        `json:"genesisHash"`
	Transactions []Transaction `json:"transactions"`
}

// Utxo is an unspent output.
type Utxo struct {
	Ref      string `json:"ref"`
	Amount   uint64 `json:"amount"`
	Receiver string `json:"receiver"`
}

// TransactionID is the response to a submitted transaction.
type TransactionID struct {
	TxID string `json:"txId"`
}

func statusEncode(stat node.StatusReport) NodeStatus {
	res := NodeStatus{
		LastHeight:          uint64(stat.LastHeight),
		LastBlockHash:       stat.LastBlockHash.String(),
		LastBlockTimestamp:  stat.LastBlockTimestamp.Unix(),
		TimeSinceLastBlock:  stat.TimeSinceLastBlock().Nanoseconds(),
		GenesisHash:         stat.GenesisHash.String(),
		PendingTransactions: stat.PendingTransactions,
		Peers:               stat.Peers,
		CatchupTime:         stat.CatchupTime.Nanoseconds(),
		Round:               stat.Consensus.Round,
		Step:                stat.Consensus.Step,
		Witness:             stat.Consensus.Witness,
	}
	if !stat.Consensus.Proposer.IsZero() {
		res.Proposer = stat.Consensus.Proposer.String()
	}
	if stat.Consensus.Halted != nil {
		res.Halted = stat.Consensus.Halted.Error()
	}
	return res
}

func txEncode(tx transactions.Transaction) Transaction {
	res := Transaction{
		TxID:    tx.ID().String(),
		Inputs:  make([]Input, len(tx.Inputs)),
		Outputs: make([]Output, len(tx.Outputs)),
		Note:    tx.Note,
	}
	for i, in := range tx.Inputs {
		res.Inputs[i] = Input{Prev: in.Prev.String(), Key: in.Claim.Key.String()}
	}
	for i, out := range tx.Outputs {
		res.Outputs[i] = Output{Amount: uint64(out.Amount), Receiver: out.Receiver.String()}
	}
	return res
}

func blockEncode(b bookkeeping.Block) Block {
	res := Block{
		Height:       uint64(b.Height),
		Hash:         b.Hash().String(),
		Branch:       b.Branch.String(),
		Timestamp:    b.TimeStamp,
		Proposer:     b.Proposer.String(),
		TxnRoot:      b.TxnRoot.String(),
		GenesisHash:  b.ChainGenesisHash().String(),
		Transactions: make([]Transaction, len(b.Payset)),
	}
	for i, tx := range b.Payset {
		res.Transactions[i] = txEncode(tx)
	}
	return res
}

func utxoEncode(ref transactions.Outpoint, coin ledgercore.Coin) Utxo {
	return Utxo{Ref: ref.String(), Amount: uint64(coin.Amount), Receiver: coin.Receiver.String()}
}
