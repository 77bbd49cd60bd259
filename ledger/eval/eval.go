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

// Package eval validates and assembles blocks against the stored
// unspent-output set.
package eval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/bookkeeping"
	"github.com/witnessnet/go-witness/data/transactions"
	"github.com/witnessnet/go-witness/ledger/apply"
	"github.com/witnessnet/go-witness/ledger/ledgercore"
)

// ErrNoSpace indicates insufficient space for transaction in block
var ErrNoSpace = errors.New("block does not have space for transaction")

// ErrInvalidBlock classifies blocks rejected by Eval.
var ErrInvalidBlock = errors.New("invalid block")

// paysetOverheadBytes bounds what the payset key and array header add to an encoded block.
const paysetOverheadBytes = 10

// InvalidBlockError explains why a candidate block was rejected.
// TxIndex is -1 for violations that concern the block as a whole.
type InvalidBlockError struct {
	Height  basics.Height
	TxIndex int
	Reason  string
	Err     error
}

// Error satisfies builtin interface `error`
func (e *InvalidBlockError) Error() string {
	if e.TxIndex < 0 {
		return fmt.Sprintf("invalid block %d: %s", e.Height, e.Reason)
	}
	return fmt.Sprintf("invalid block %d: transaction %d %s: %v", e.Height, e.TxIndex, e.Reason, e.Err)
}

// Is matches ErrInvalidBlock.
func (e *InvalidBlockError) Is(target error) bool {
	return target == ErrInvalidBlock
}

// Unwrap returns the transaction error, if any.
func (e *InvalidBlockError) Unwrap() error {
	return e.Err
}

// LedgerForEvaluator is the storage access the evaluator needs.
type LedgerForEvaluator interface {
	GetUtxosCreateMap(ctx context.Context, refs []transactions.Outpoint) (ledgercore.UtxoMap, error)
}

// BlockEvaluator represents an in-progress evaluation of a block
// against the ledger.
type BlockEvaluator struct {
	l       LedgerForEvaluator
	app     *apply.Application
	proto   config.ConsensusParams
	genesis bool

	prevHeader bookkeeping.BlockHeader
	patch      *ledgercore.Patch
	payset     bookkeeping.Payset

	// generate enforces maxTxnBytes as transactions are added
	generate     bool
	maxTxnBytes  int
	totalTxBytes int
}

// StartEvaluator creates a BlockEvaluator for the block following prev.
// genesis allows transactions without inputs to create coins.
func StartEvaluator(l LedgerForEvaluator, prev bookkeeping.BlockHeader, proto config.ConsensusParams, genesis bool) *BlockEvaluator {
	return &BlockEvaluator{
		l:          l,
		app:        apply.MakeApplication(proto),
		proto:      proto,
		genesis:    genesis,
		prevHeader: prev,
		patch:      ledgercore.MakePatch(0),
	}
}

// Height returns the height of the block being evaluated.
func (eval *BlockEvaluator) Height() basics.Height {
	return eval.prevHeader.Height + 1
}

// Transaction tentatively adds a new transaction as part of this block evaluation.
// If the transaction cannot be added to the block without violating some constraints,
// an error is returned and the block evaluator state is unchanged.
func (eval *BlockEvaluator) Transaction(ctx context.Context, tx transactions.Transaction) error {
	return eval.transaction(ctx, tx, true)
}

// TestTransaction checks if a given transaction could be executed at this point
// in the block evaluator, but does not actually add the transaction to the block
// evaluator, or modify the block evaluator state in any other visible way.
func (eval *BlockEvaluator) TestTransaction(ctx context.Context, tx transactions.Transaction) error {
	return eval.transaction(ctx, tx, false)
}

func (eval *BlockEvaluator) transaction(ctx context.Context, tx transactions.Transaction, remember bool) error {
	thisTxBytes := 0
	if eval.generate {
		thisTxBytes = tx.EncodedLen()
		if eval.totalTxBytes+thisTxBytes > eval.maxTxnBytes {
			return ErrNoSpace
		}
	}

	view, err := eval.l.GetUtxosCreateMap(ctx, apply.InputRefs(tx))
	if err != nil {
		return &LookupError{TxID: tx.ID(), Err: err}
	}

	patch := eval.patch
	if !remember {
		patch = patch.Clone()
	}
	_, err = eval.app.ProcessTransaction(tx, view, patch, eval.genesis)
	if err != nil {
		return err
	}

	if remember {
		eval.payset = append(eval.payset, tx)
		eval.totalTxBytes += thisTxBytes
	}
	return nil
}

// Patch returns the accumulated changes of the transactions added so far.
func (eval *BlockEvaluator) Patch() *ledgercore.Patch {
	return eval.patch
}

// Payset returns the transactions added so far, in order.
func (eval *BlockEvaluator) Payset() bookkeeping.Payset {
	return eval.payset
}

// Bytes returns the encoded size of the transactions added so far.
func (eval *BlockEvaluator) Bytes() int {
	return eval.payset.EncodedLen()
}

// GenerateBlock produces a complete block from the BlockEvaluator.
func (eval *BlockEvaluator) GenerateBlock(proposer crypto.PublicKey, timestamp int64) ledgercore.ValidatedBlock {
	blk := bookkeeping.MakeBlock(eval.prevHeader, eval.payset, proposer, timestamp)
	return ledgercore.MakeValidatedBlock(blk, eval.patch)
}

// LookupError reports a storage failure while fetching a transaction's inputs.
// It is not a verdict on the transaction.
type LookupError struct {
	TxID transactions.Txid
	Err  error
}

// Error satisfies builtin interface `error`
func (e *LookupError) Error() string {
	return fmt.Sprintf("fetching inputs of %s: %v", e.TxID, e.Err)
}

// Unwrap returns the storage error.
func (e *LookupError) Unwrap() error {
	return e.Err
}

// Eval validates blk as the successor of prev at local time now. Block-level
// rules are checked first, then every transaction strictly in order against
// storage overlaid with the changes of its predecessors.
func Eval(ctx context.Context, l LedgerForEvaluator, prev bookkeeping.BlockHeader, blk bookkeeping.Block, proto config.ConsensusParams, now time.Time) (*ledgercore.ValidatedBlock, error) {
	invalid := func(reason string) error {
		return &InvalidBlockError{Height: blk.Height, TxIndex: -1, Reason: reason}
	}

	if blk.Height != prev.Height+1 {
		return nil, invalid(fmt.Sprintf("height %d does not follow %d", blk.Height, prev.Height))
	}
	if blk.Branch != prev.Hash() {
		return nil, invalid(fmt.Sprintf("previous hash %v does not match %v", blk.Branch, prev.Hash()))
	}
	if blk.GenesisHash != prev.ChainGenesisHash() {
		return nil, invalid(fmt.Sprintf("genesis hash %v does not match %v", blk.GenesisHash, prev.ChainGenesisHash()))
	}
	if root := blk.Payset.Root(); blk.TxnRoot != root {
		return nil, invalid(fmt.Sprintf("txn root wrong: %v != %v", blk.TxnRoot, root))
	}
	if n := blk.EncodedLen(); n > proto.MaxBlockBytes {
		return nil, invalid(fmt.Sprintf("block is %d bytes, limit %d", n, proto.MaxBlockBytes))
	}
	ts := time.Unix(blk.TimeStamp, 0)
	if drift := ts.Sub(now); drift > proto.ToleratedClockDrift || -drift > proto.ToleratedClockDrift {
		return nil, invalid(fmt.Sprintf("timestamp %v is %v away from local time", ts, drift))
	}
	if blk.TimeStamp < prev.TimeStamp {
		return nil, invalid(fmt.Sprintf("timestamp %d precedes previous %d", blk.TimeStamp, prev.TimeStamp))
	}
	if blk.IsEmpty() && proto.EmptyBlockPolicy == config.EmptyBlockWait {
		if earliest := prev.TimeStamp + int64(proto.EmptyBlockHoldoff/time.Second); blk.TimeStamp < earliest {
			return nil, invalid(fmt.Sprintf("empty block at %d before holdoff ends at %d", blk.TimeStamp, earliest))
		}
	}

	eval := StartEvaluator(l, prev, proto, false)
	for i, tx := range blk.Payset {
		err := eval.Transaction(ctx, tx)
		if err != nil {
			var lerr *LookupError
			if errors.As(err, &lerr) {
				return nil, err
			}
			return nil, &InvalidBlockError{Height: blk.Height, TxIndex: i, Reason: "rejected", Err: err}
		}
	}

	vb := ledgercore.MakeValidatedBlock(blk, eval.Patch())
	return &vb, nil
}

// AssembleResult is a freshly assembled block plus the transactions left out.
type AssembleResult struct {
	Block    ledgercore.ValidatedBlock
	Rejected []RejectedTxn
}

// RejectedTxn is a transaction that could not be applied during assembly.
type RejectedTxn struct {
	TxID transactions.Txid
	Err  error
}

// AssembleBlock builds the block following prev from txs. Transactions that
// fail to apply are skipped and reported; assembly stops at the block size limit.
func AssembleBlock(ctx context.Context, l LedgerForEvaluator, prev bookkeeping.BlockHeader, txs []transactions.Transaction, proposer crypto.PublicKey, now time.Time, proto config.ConsensusParams) (AssembleResult, error) {
	timestamp := now.Unix()
	if timestamp < prev.TimeStamp {
		timestamp = prev.TimeStamp
	}

	eval := StartEvaluator(l, prev, proto, false)
	eval.generate = true
	empty := bookkeeping.MakeBlock(prev, nil, proposer, timestamp)
	eval.maxTxnBytes = proto.MaxBlockBytes - empty.EncodedLen() - paysetOverheadBytes

	var res AssembleResult
	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return AssembleResult{}, err
		}
		err := eval.Transaction(ctx, tx)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrNoSpace) {
			break
		}
		var lerr *LookupError
		if errors.As(err, &lerr) {
			return AssembleResult{}, err
		}
		res.Rejected = append(res.Rejected, RejectedTxn{TxID: tx.ID(), Err: err})
	}
	res.Block = eval.GenerateBlock(proposer, timestamp)
	return res, nil
}
