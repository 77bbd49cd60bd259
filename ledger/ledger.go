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

// Package ledger ties the durable store to block evaluation. It owns the
// latest committed header and is the only writer of committed blocks.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/algorand/go-deadlock"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/bookkeeping"
	"github.com/witnessnet/go-witness/data/transactions"
	"github.com/witnessnet/go-witness/ledger/eval"
	"github.com/witnessnet/go-witness/ledger/ledgercore"
	"github.com/witnessnet/go-witness/ledger/store"
	"github.com/witnessnet/go-witness/ledger/store/pebbledriver"
	"github.com/witnessnet/go-witness/ledger/store/sqlitedriver"
	"github.com/witnessnet/go-witness/logging"
)

// ErrGenesisMismatch is returned when the stored chain, the genesis file and
// the configured genesis hash do not agree.
var ErrGenesisMismatch = errors.New("genesis hash mismatch")

// ErrBranchMismatch is returned by Commit for a block that does not extend the latest one.
var ErrBranchMismatch = errors.New("block does not extend the latest block")

// Ledger is a database storing the unspent-output set and the committed chain.
type Ledger struct {
	store store.Store
	log   logging.Logger
	proto config.ConsensusParams

	genesisHash crypto.Digest
	witnesses   []crypto.PublicKey

	// commitMu serializes Commit; mu guards last.
	commitMu deadlock.Mutex
	mu       deadlock.RWMutex
	last     bookkeeping.BlockHeader

	bulletin *bulletin
	notifier blockNotifier
	metrics  metricsTracker
}

// Open opens the ledger stored in dataDir using the engine named by
// cfg.StorageEngine. An empty store is initialized from genesis; otherwise the
// latest height is re-derived from the last committed block. A non-zero
// genesisHashOverride must match the genesis hash of the chain.
func Open(ctx context.Context, cfg config.Local, dataDir string, genesis bookkeeping.Genesis, genesisHashOverride crypto.Digest, proto config.ConsensusParams, log logging.Logger) (*Ledger, error) {
	witnesses, err := genesis.WitnessKeys()
	if err != nil {
		return nil, err
	}
	genesisBlk, err := genesis.Block()
	if err != nil {
		return nil, err
	}
	genesisHash := genesisBlk.Digest()
	if !genesisHashOverride.IsZero() && genesisHashOverride != genesisHash {
		return nil, fmt.Errorf("%w: genesis file hashes to %v, configured %v", ErrGenesisMismatch, genesisHash, genesisHashOverride)
	}

	st, err := openStore(ctx, cfg, dataDir, log)
	if err != nil {
		return nil, fmt.Errorf("ledger.Open: %w", err)
	}

	l := &Ledger{
		store:       st,
		log:         log,
		proto:       proto,
		genesisHash: genesisHash,
		witnesses:   witnesses,
	}
	defer func() {
		if err != nil {
			st.Close()
		}
	}()

	latest, ok, err := st.LatestBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger.Open: reading latest block: %w", err)
	}
	if !ok {
		latest, err = l.initGenesis(ctx, genesisBlk)
		if err != nil {
			return nil, err
		}
	}

	if stored := latest.ChainGenesisHash(); stored != genesisHash {
		err = fmt.Errorf("%w: latest block %d belongs to chain %v, expected %v", ErrGenesisMismatch, latest.Height, stored, genesisHash)
		return nil, err
	}

	l.last = latest.BlockHeader
	l.bulletin = makeBulletin(latest.Height)
	l.notifier.start()
	l.metrics.start(l.last)

	log.Infof("ledger opened at height %d (%s engine, genesis %v)", latest.Height, cfg.StorageEngine, genesisHash)
	return l, nil
}

func openStore(ctx context.Context, cfg config.Local, dataDir string, log logging.Logger) (store.Store, error) {
	dbPath := filepath.Join(dataDir, config.LedgerFilenamePrefix)
	switch cfg.StorageEngine {
	case config.StorageEngineSqlite:
		return sqlitedriver.Open(ctx, dbPath, cfg.InMemoryStorage, log)
	case config.StorageEnginePebble:
		return pebbledriver.Open(ctx, dbPath, cfg.InMemoryStorage, log)
	default:
		return nil, fmt.Errorf("unknown storage engine %q", cfg.StorageEngine)
	}
}

// initGenesis applies the genesis transaction, the only one allowed to create
// coins, and stores the height-0 block.
func (l *Ledger) initGenesis(ctx context.Context, blk bookkeeping.Block) (bookkeeping.Block, error) {
	ev := eval.StartEvaluator(l.store, bookkeeping.BlockHeader{}, l.proto, true)
	for _, tx := range blk.Payset {
		if err := ev.Transaction(ctx, tx); err != nil {
			return bookkeeping.Block{}, fmt.Errorf("ledger.Open: genesis transaction: %w", err)
		}
	}
	if err := l.store.CommitBlock(ctx, blk, ev.Patch()); err != nil {
		return bookkeeping.Block{}, fmt.Errorf("ledger.Open: storing genesis: %w", err)
	}
	l.log.Infof("ledger initialized from genesis with %d coins", len(ev.Patch().Coins()))
	return blk, nil
}

// Close shuts down the notifier and the underlying store.
func (l *Ledger) Close() {
	l.notifier.close()
	l.metrics.close()
	l.store.Close()
}

// RegisterBlockListeners registers listeners that will be called when a
// new block is added to the ledger.
func (l *Ledger) RegisterBlockListeners(listeners []BlockListener) {
	l.notifier.register(listeners)
}

// LastBlock returns the header of the latest committed block.
func (l *Ledger) LastBlock() bookkeeping.BlockHeader {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.last
}

// Latest returns the latest committed height.
func (l *Ledger) Latest() basics.Height {
	return l.LastBlock().Height
}

// NextHeight returns the height of the block consensus should agree on next.
func (l *Ledger) NextHeight() basics.Height {
	return l.Latest() + 1
}

// GenesisHash returns the hash of the height-0 block.
func (l *Ledger) GenesisHash() crypto.Digest {
	return l.genesisHash
}

// Witnesses returns the consensus participants, in genesis order.
func (l *Ledger) Witnesses() []crypto.PublicKey {
	return append([]crypto.PublicKey(nil), l.witnesses...)
}

// ConsensusParams returns the parameters the ledger validates with.
func (l *Ledger) ConsensusParams() config.ConsensusParams {
	return l.proto
}

// Block returns the committed block at height h.
func (l *Ledger) Block(ctx context.Context, h basics.Height) (bookkeeping.Block, error) {
	blk, err := l.store.Block(ctx, h)
	var noEntry ledgercore.ErrNoEntry
	if errors.As(err, &noEntry) {
		noEntry.Latest = l.Latest()
		return bookkeeping.Block{}, noEntry
	}
	return blk, err
}

// GetUtxo returns the durable coin under ref.
func (l *Ledger) GetUtxo(ctx context.Context, ref transactions.Outpoint) (ledgercore.Coin, bool, error) {
	return l.store.GetUtxo(ctx, ref)
}

// GetUtxosCreateMap fetches the durable coins among refs.
func (l *Ledger) GetUtxosCreateMap(ctx context.Context, refs []transactions.Outpoint) (ledgercore.UtxoMap, error) {
	return l.store.GetUtxosCreateMap(ctx, refs)
}

// Validate evaluates blk as the successor of the latest block at local time now.
func (l *Ledger) Validate(ctx context.Context, blk bookkeeping.Block, now time.Time) (*ledgercore.ValidatedBlock, error) {
	prev := l.LastBlock()
	if blk.Height <= prev.Height {
		return nil, ledgercore.BlockInLedgerError{LastHeight: blk.Height, NextHeight: prev.Height + 1}
	}
	return eval.Eval(ctx, l.store, prev, blk, l.proto, now)
}

// AssembleBlock builds the successor of the latest block out of txs.
func (l *Ledger) AssembleBlock(ctx context.Context, txs []transactions.Transaction, proposer crypto.PublicKey, now time.Time) (eval.AssembleResult, error) {
	return eval.AssembleBlock(ctx, l.store, l.LastBlock(), txs, proposer, now, l.proto)
}

// Commit durably records blk together with the changes it makes. blk must
// extend the latest block. On success block listeners are notified and
// waiters on blk's height are released.
func (l *Ledger) Commit(ctx context.Context, blk bookkeeping.Block, patch *ledgercore.Patch) error {
	l.commitMu.Lock()
	defer l.commitMu.Unlock()

	started := time.Now()
	prev := l.LastBlock()
	if blk.Height <= prev.Height {
		return ledgercore.BlockInLedgerError{LastHeight: blk.Height, NextHeight: prev.Height + 1}
	}
	if blk.Height != prev.Height+1 || blk.Branch != prev.Hash() {
		return fmt.Errorf("%w: block %d (branch %v) after %d (%v)", ErrBranchMismatch, blk.Height, blk.Branch, prev.Height, prev.Hash())
	}

	err := l.store.CommitBlock(ctx, blk, patch)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.last = blk.BlockHeader
	l.mu.Unlock()

	l.metrics.newBlock(blk, patch, started)
	l.bulletin.committedUpTo(blk.Height)
	l.notifier.newBlock(blk)
	l.log.With("Height", blk.Height).Debugf("committed block %v with %d transactions", blk.Hash(), len(blk.Payset))
	return nil
}

// AddValidatedBlock commits a block previously returned by Validate or AssembleBlock.
func (l *Ledger) AddValidatedBlock(ctx context.Context, vb ledgercore.ValidatedBlock) error {
	return l.Commit(ctx, vb.Block(), vb.Patch())
}

// Wait returns a channel that closes once a given height is stored
// durably in the ledger.
// When <-l.Wait(h) finishes, ledger is guaranteed to have height h,
// and will not lose height h after a crash.
// This makes it easy to use in a select{} statement.
func (l *Ledger) Wait(h basics.Height) <-chan struct{} {
	return l.bulletin.Wait(h)
}
