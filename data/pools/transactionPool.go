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

// Package pools holds transactions waiting to be proposed.
package pools

import (
	"fmt"

	"github.com/algorand/go-deadlock"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/data/bookkeeping"
	"github.com/witnessnet/go-witness/data/transactions"
	"github.com/witnessnet/go-witness/logging"
	"github.com/witnessnet/go-witness/util/metrics"
)

var (
	transactionPoolPending = metrics.MakeGauge(metrics.TransactionPoolPending)
	transactionsDropped    = metrics.MakeCounter(metrics.TransactionMessagesDroppedFromPool, "reason")
)

// TransactionPool is a struct maintaining a sanitized pool of transactions that are available for inclusion in
// a Block. We sanitize it by rejecting malformed transactions, duplicates, and transactions spending
// a coin another pending transaction already spends.
//
// The pool does not evaluate transactions against the ledger: the proposer does that while
// assembling a block and reports the rejects back through Remove.
type TransactionPool struct {
	proto         config.ConsensusParams
	txPoolMaxSize int
	log           logging.Logger

	// mu protects pending, pendingTxids and pendingSpends
	mu           deadlock.RWMutex
	pending      []transactions.Transaction
	pendingTxids map[transactions.Txid]int
	// pendingSpends maps every outpoint spent by a pending transaction to its spender
	pendingSpends map[transactions.Outpoint]transactions.Txid
}

// MakeTransactionPool is the constructor.
func MakeTransactionPool(cfg config.Local, proto config.ConsensusParams, log logging.Logger) *TransactionPool {
	return &TransactionPool{
		proto:         proto,
		txPoolMaxSize: cfg.TxPoolSize,
		log:           log,
		pendingTxids:  make(map[transactions.Txid]int),
		pendingSpends: make(map[transactions.Outpoint]transactions.Txid),
	}
}

// PendingCount returns the number of transactions currently pending in the pool.
func (pool *TransactionPool) PendingCount() int {
	pool.mu.RLock()
	defer pool.mu.RUnlock()
	return len(pool.pending)
}

// PendingTxIDs return the IDs of all pending transactions, oldest first.
func (pool *TransactionPool) PendingTxIDs() []transactions.Txid {
	pool.mu.RLock()
	defer pool.mu.RUnlock()

	ids := make([]transactions.Txid, len(pool.pending))
	for i, tx := range pool.pending {
		ids[i] = tx.ID()
	}
	return ids
}

// Lookup returns the pending transaction with the given id.
func (pool *TransactionPool) Lookup(txid transactions.Txid) (tx transactions.Transaction, found bool) {
	pool.mu.RLock()
	defer pool.mu.RUnlock()

	idx, ok := pool.pendingTxids[txid]
	if !ok {
		return transactions.Transaction{}, false
	}
	return pool.pending[idx], true
}

// checkPendingQueueSize test to see if there is more room in the pending
// transaction list. The caller holds pool.mu.
func (pool *TransactionPool) checkPendingQueueSize() error {
	if len(pool.pending) >= pool.txPoolMaxSize {
		return ErrPendingQueueReachedMaxCap
	}
	return nil
}

// Test checks whether tx would be accepted by Remember, without adding it.
func (pool *TransactionPool) Test(tx transactions.Transaction) error {
	pool.mu.RLock()
	defer pool.mu.RUnlock()
	return pool.test(tx, tx.ID())
}

func (pool *TransactionPool) test(tx transactions.Transaction, txid transactions.Txid) error {
	if err := tx.WellFormed(pool.proto); err != nil {
		return err
	}
	if _, ok := pool.pendingTxids[txid]; ok {
		return fmt.Errorf("%w: %v", ErrTxnAlreadyPending, txid)
	}
	for _, in := range tx.Inputs {
		if spender, ok := pool.pendingSpends[in.Prev]; ok {
			return fmt.Errorf("%w: %v spent by %v", ErrInputAlreadyPending, in.Prev, spender)
		}
	}
	return pool.checkPendingQueueSize()
}

// Remember stores the provided transaction.
// Precondition: Only Remember() properly-signed and well-formed transactions (i.e., ensure t.WellFormed())
func (pool *TransactionPool) Remember(tx transactions.Transaction) error {
	txid := tx.ID()

	pool.mu.Lock()
	defer pool.mu.Unlock()

	if err := pool.test(tx, txid); err != nil {
		transactionsDropped.Inc(map[string]string{"reason": errorTag(err)})
		return fmt.Errorf("TransactionPool.Remember: %w", err)
	}

	pool.pendingTxids[txid] = len(pool.pending)
	pool.pending = append(pool.pending, tx)
	for _, in := range tx.Inputs {
		pool.pendingSpends[in.Prev] = txid
	}
	transactionPoolPending.Set(uint64(len(pool.pending)))
	return nil
}

// DrawPendingTransactions returns pending transactions in arrival order whose
// encoded sizes sum to at most maxBytes. Transactions too large to fit are
// passed over. The pool is left unchanged.
func (pool *TransactionPool) DrawPendingTransactions(maxBytes int) []transactions.Transaction {
	pool.mu.RLock()
	defer pool.mu.RUnlock()

	var out []transactions.Transaction
	used := 0
	for _, tx := range pool.pending {
		n := tx.EncodedLen()
		if used+n > maxBytes {
			continue
		}
		used += n
		out = append(out, tx)
	}
	return out
}

// Remove drops the given transactions from the pool, typically because block
// assembly found them invalid.
func (pool *TransactionPool) Remove(txids []transactions.Txid) {
	if len(txids) == 0 {
		return
	}
	drop := make(map[transactions.Txid]bool, len(txids))
	for _, txid := range txids {
		drop[txid] = true
	}

	pool.mu.Lock()
	defer pool.mu.Unlock()
	n := pool.filter(func(tx transactions.Transaction, txid transactions.Txid) bool {
		return !drop[txid]
	})
	transactionsDropped.AddUint64(uint64(n), map[string]string{"reason": TxPoolErrTagRejected})
}

// OnNewBlock excises transactions from the pool that are included in the
// specified Block, along with any transaction spending a coin the block spent.
func (pool *TransactionPool) OnNewBlock(block bookkeeping.Block) {
	committed := make(map[transactions.Txid]bool, len(block.Payset))
	spent := make(map[transactions.Outpoint]bool)
	for _, tx := range block.Payset {
		committed[tx.ID()] = true
		for _, in := range tx.Inputs {
			spent[in.Prev] = true
		}
	}

	pool.mu.Lock()
	defer pool.mu.Unlock()

	conflicts := 0
	pool.filter(func(tx transactions.Transaction, txid transactions.Txid) bool {
		if committed[txid] {
			return false
		}
		for _, in := range tx.Inputs {
			if spent[in.Prev] {
				conflicts++
				return false
			}
		}
		return true
	})
	if conflicts > 0 {
		transactionsDropped.AddUint64(uint64(conflicts), map[string]string{"reason": TxPoolErrTagCommitted})
		pool.log.Debugf("TransactionPool.OnNewBlock: dropped %d transactions conflicting with block %d", conflicts, block.Height)
	}
}

// filter keeps the pending transactions for which keep returns true and
// rebuilds the indexes. It returns the number of transactions dropped.
// The caller holds pool.mu.
func (pool *TransactionPool) filter(keep func(transactions.Transaction, transactions.Txid) bool) int {
	kept := pool.pending[:0]
	pendingTxids := make(map[transactions.Txid]int, len(pool.pending))
	pendingSpends := make(map[transactions.Outpoint]transactions.Txid, len(pool.pendingSpends))
	for _, tx := range pool.pending {
		txid := tx.ID()
		if !keep(tx, txid) {
			continue
		}
		pendingTxids[txid] = len(kept)
		kept = append(kept, tx)
		for _, in := range tx.Inputs {
			pendingSpends[in.Prev] = txid
		}
	}
	dropped := len(pool.pending) - len(kept)
	// clear the tail so dropped transactions can be collected
	for i := len(kept); i < len(pool.pending); i++ {
		pool.pending[i] = transactions.Transaction{}
	}
	pool.pending = kept
	pool.pendingTxids = pendingTxids
	pool.pendingSpends = pendingSpends
	transactionPoolPending.Set(uint64(len(pool.pending)))
	return dropped
}
