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

// Package pebbledriver stores the ledger in a pebble key-value store.
package pebbledriver

import (
	"context"
	"encoding/binary"
	"errors"

	"github.com/algorand/go-deadlock"

	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/bookkeeping"
	"github.com/witnessnet/go-witness/data/transactions"
	"github.com/witnessnet/go-witness/ledger/ledgercore"
	"github.com/witnessnet/go-witness/ledger/store"
	"github.com/witnessnet/go-witness/logging"
	"github.com/witnessnet/go-witness/util/kvstore"
)

// key prefixes
const (
	prefixUtxo   = "u/"
	prefixBlock  = "b/"
	keyLatest    = "m/latest"
	heightKeyLen = 8
)

type pebbleStore struct {
	kvs kvstore.KVStore
	log logging.Logger

	// writeMu serializes the read-check-write sequence of commits
	writeMu deadlock.Mutex
}

// Open opens (creating if needed) the pebble ledger database at dbPath.
func Open(ctx context.Context, dbPath string, inMem bool, log logging.Logger) (store.Store, error) {
	kvs, err := kvstore.NewKVStore("pebble", dbPath, inMem)
	if err != nil {
		return nil, err
	}
	return &pebbleStore{kvs: kvs, log: log}, nil
}

func utxoKey(ref transactions.Outpoint) []byte {
	return append([]byte(prefixUtxo), store.OutpointKey(ref)...)
}

func blockKey(h basics.Height) []byte {
	key := make([]byte, len(prefixBlock)+heightKeyLen)
	copy(key, prefixBlock)
	binary.BigEndian.PutUint64(key[len(prefixBlock):], uint64(h))
	return key
}

type getter interface {
	Get([]byte) ([]byte, error)
}

func getUtxo(r getter, ref transactions.Outpoint) (ledgercore.Coin, bool, error) {
	buf, err := r.Get(utxoKey(ref))
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return ledgercore.Coin{}, false, nil
	}
	if err != nil {
		return ledgercore.Coin{}, false, err
	}
	coin, err := store.DecodeCoin(buf)
	if err != nil {
		return ledgercore.Coin{}, false, err
	}
	return coin, true, nil
}

func latestHeight(r getter) (basics.Height, bool, error) {
	buf, err := r.Get([]byte(keyLatest))
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(buf) != heightKeyLen {
		return 0, false, errors.New("pebbledriver: corrupt latest height record")
	}
	return basics.Height(binary.BigEndian.Uint64(buf)), true, nil
}

// GetUtxo implements store.Store
func (s *pebbleStore) GetUtxo(ctx context.Context, ref transactions.Outpoint) (ledgercore.Coin, bool, error) {
	if err := ctx.Err(); err != nil {
		return ledgercore.Coin{}, false, err
	}
	return getUtxo(s.kvs, ref)
}

// GetUtxosCreateMap implements store.Store
func (s *pebbleStore) GetUtxosCreateMap(ctx context.Context, refs []transactions.Outpoint) (ledgercore.UtxoMap, error) {
	snap := s.kvs.NewSnapshot()
	defer snap.Close()

	out := make(ledgercore.UtxoMap, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		coin, ok, err := getUtxo(snap, ref)
		if err != nil {
			return nil, err
		}
		if ok {
			out[ref] = coin
		}
	}
	return out, nil
}

// stagePatch checks patch against snap and stages its writes into batch.
func stagePatch(snap kvstore.Snapshot, batch kvstore.BatchWriter, patch *ledgercore.Patch) (err error) {
	patch.Entries(func(e ledgercore.PatchEntry) bool {
		switch {
		case e.Created && e.Spent:
		case e.Created:
			var exists bool
			_, exists, err = getUtxo(snap, e.Ref)
			if err == nil && exists {
				err = store.CoinExists(e.Ref)
			}
			if err == nil {
				err = batch.Set(utxoKey(e.Ref), store.EncodeCoin(e.Coin))
			}
		case e.Spent:
			var exists bool
			_, exists, err = getUtxo(snap, e.Ref)
			if err == nil && !exists {
				err = store.CoinMissing(e.Ref)
			}
			if err == nil {
				err = batch.Delete(utxoKey(e.Ref))
			}
		}
		return err == nil
	})
	return
}

func (s *pebbleStore) write(ctx context.Context, stage func(kvstore.Snapshot, kvstore.BatchWriter) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snap := s.kvs.NewSnapshot()
	defer snap.Close()
	batch := s.kvs.NewBatch()
	if err := stage(snap, batch); err != nil {
		batch.Cancel()
		return err
	}
	return batch.Commit()
}

// ApplyPatch implements store.Store
func (s *pebbleStore) ApplyPatch(ctx context.Context, patch *ledgercore.Patch) error {
	return s.write(ctx, func(snap kvstore.Snapshot, batch kvstore.BatchWriter) error {
		return stagePatch(snap, batch, patch)
	})
}

// CommitBlock implements store.Store
func (s *pebbleStore) CommitBlock(ctx context.Context, blk bookkeeping.Block, patch *ledgercore.Patch) error {
	return s.write(ctx, func(snap kvstore.Snapshot, batch kvstore.BatchWriter) error {
		latest, ok, err := latestHeight(snap)
		if err != nil {
			return err
		}
		err = store.CheckSequence(blk.Height, latest, !ok)
		if err != nil {
			return err
		}
		err = stagePatch(snap, batch, patch)
		if err != nil {
			return err
		}
		err = batch.Set(blockKey(blk.Height), store.EncodeBlock(blk))
		if err != nil {
			return err
		}
		var h [heightKeyLen]byte
		binary.BigEndian.PutUint64(h[:], uint64(blk.Height))
		return batch.Set([]byte(keyLatest), h[:])
	})
}

// LatestBlock implements store.Store
func (s *pebbleStore) LatestBlock(ctx context.Context) (bookkeeping.Block, bool, error) {
	snap := s.kvs.NewSnapshot()
	defer snap.Close()

	latest, ok, err := latestHeight(snap)
	if err != nil || !ok {
		return bookkeeping.Block{}, false, err
	}
	buf, err := snap.Get(blockKey(latest))
	if err != nil {
		return bookkeeping.Block{}, false, err
	}
	blk, err := store.DecodeBlock(buf)
	if err != nil {
		return bookkeeping.Block{}, false, err
	}
	return blk, true, nil
}

// Block implements store.Store
func (s *pebbleStore) Block(ctx context.Context, h basics.Height) (bookkeeping.Block, error) {
	snap := s.kvs.NewSnapshot()
	defer snap.Close()

	buf, err := snap.Get(blockKey(h))
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		latest, _, lerr := latestHeight(snap)
		if lerr != nil {
			return bookkeeping.Block{}, lerr
		}
		return bookkeeping.Block{}, ledgercore.ErrNoEntry{Height: h, Latest: latest}
	}
	if err != nil {
		return bookkeeping.Block{}, err
	}
	return store.DecodeBlock(buf)
}

// Close implements store.Store
func (s *pebbleStore) Close() {
	if err := s.kvs.Close(); err != nil {
		s.log.Warnf("pebbledriver: close: %v", err)
	}
}
