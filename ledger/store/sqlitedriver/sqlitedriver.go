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

// Package sqlitedriver stores the ledger in a sqlite database.
package sqlitedriver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/bookkeeping"
	"github.com/witnessnet/go-witness/data/transactions"
	"github.com/witnessnet/go-witness/ledger/ledgercore"
	"github.com/witnessnet/go-witness/ledger/store"
	"github.com/witnessnet/go-witness/logging"
	"github.com/witnessnet/go-witness/util/db"
)

// schemaVersion is recorded in the sqlite user_version pragma.
const schemaVersion = 1

var ledgerSchema = []string{
	`CREATE TABLE IF NOT EXISTS utxos (
		ref blob primary key,
		data blob NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS blocks (
		height integer primary key,
		hdrdata blob NOT NULL,
		blkdata blob NOT NULL)`,
}

type sqliteStore struct {
	pair db.Pair
	log  logging.Logger
}

// Open opens (creating if needed) the sqlite ledger database at dbPath.
func Open(ctx context.Context, dbPath string, inMem bool, log logging.Logger) (store.Store, error) {
	pair, err := db.OpenPair(dbPath+".sqlite", inMem)
	if err != nil {
		return nil, err
	}
	pair.Rdb.SetLogger(log)
	pair.Wdb.SetLogger(log)

	s := &sqliteStore{pair: pair, log: log}
	err = pair.Wdb.Atomic(ctx, s.initSchema)
	if err != nil {
		pair.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqliteStore) initSchema(ctx context.Context, tx *sql.Tx) error {
	version, err := db.GetUserVersion(ctx, tx)
	if err != nil {
		return err
	}
	if version > schemaVersion {
		return fmt.Errorf("ledger schema version %d is newer than supported %d", version, schemaVersion)
	}
	for _, tableCreate := range ledgerSchema {
		_, err = tx.ExecContext(ctx, tableCreate)
		if err != nil {
			return fmt.Errorf("sqlitedriver could not create table: %w", err)
		}
	}
	if version < schemaVersion {
		_, err = db.SetUserVersion(ctx, tx, schemaVersion)
		if err != nil {
			return err
		}
		s.log.Infof("sqlitedriver: ledger schema upgraded from %d to %d", version, schemaVersion)
	}
	return nil
}

func getUtxo(ctx context.Context, tx *sql.Tx, ref transactions.Outpoint) (ledgercore.Coin, bool, error) {
	var buf []byte
	err := tx.QueryRowContext(ctx, "SELECT data FROM utxos WHERE ref=?", store.OutpointKey(ref)).Scan(&buf)
	if errors.Is(err, sql.ErrNoRows) {
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

// GetUtxo implements store.Store
func (s *sqliteStore) GetUtxo(ctx context.Context, ref transactions.Outpoint) (coin ledgercore.Coin, ok bool, err error) {
	err = s.pair.Rdb.Atomic(ctx, func(ctx context.Context, tx *sql.Tx) (err error) {
		coin, ok, err = getUtxo(ctx, tx, ref)
		return
	})
	return
}

// GetUtxosCreateMap implements store.Store
func (s *sqliteStore) GetUtxosCreateMap(ctx context.Context, refs []transactions.Outpoint) (out ledgercore.UtxoMap, err error) {
	err = s.pair.Rdb.Atomic(ctx, func(ctx context.Context, tx *sql.Tx) error {
		out = make(ledgercore.UtxoMap, len(refs))
		for _, ref := range refs {
			coin, ok, err := getUtxo(ctx, tx, ref)
			if err != nil {
				return err
			}
			if ok {
				out[ref] = coin
			}
		}
		return nil
	})
	return
}

func applyPatch(ctx context.Context, tx *sql.Tx, patch *ledgercore.Patch) (err error) {
	patch.Entries(func(e ledgercore.PatchEntry) bool {
		key := store.OutpointKey(e.Ref)
		switch {
		case e.Created && e.Spent:
			// created and consumed before reaching storage
		case e.Created:
			var n int
			err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM utxos WHERE ref=?", key).Scan(&n)
			if err != nil {
				return false
			}
			if n != 0 {
				err = store.CoinExists(e.Ref)
				return false
			}
			_, err = tx.ExecContext(ctx, "INSERT INTO utxos (ref, data) VALUES (?, ?)", key, store.EncodeCoin(e.Coin))
		case e.Spent:
			var res sql.Result
			res, err = tx.ExecContext(ctx, "DELETE FROM utxos WHERE ref=?", key)
			if err != nil {
				return false
			}
			var n int64
			n, err = res.RowsAffected()
			if err == nil && n != 1 {
				err = store.CoinMissing(e.Ref)
			}
		}
		return err == nil
	})
	return
}

// ApplyPatch implements store.Store
func (s *sqliteStore) ApplyPatch(ctx context.Context, patch *ledgercore.Patch) error {
	return s.pair.Wdb.Atomic(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return applyPatch(ctx, tx, patch)
	})
}

func latestHeight(ctx context.Context, tx *sql.Tx) (basics.Height, bool, error) {
	var max sql.NullInt64
	err := tx.QueryRowContext(ctx, "SELECT MAX(height) FROM blocks").Scan(&max)
	if err != nil {
		return 0, false, err
	}
	if !max.Valid {
		return 0, false, nil
	}
	return basics.Height(max.Int64), true, nil
}

// CommitBlock implements store.Store
func (s *sqliteStore) CommitBlock(ctx context.Context, blk bookkeeping.Block, patch *ledgercore.Patch) error {
	return s.pair.Wdb.Atomic(ctx, func(ctx context.Context, tx *sql.Tx) error {
		latest, ok, err := latestHeight(ctx, tx)
		if err != nil {
			return err
		}
		err = store.CheckSequence(blk.Height, latest, !ok)
		if err != nil {
			return err
		}
		err = applyPatch(ctx, tx, patch)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "INSERT INTO blocks (height, hdrdata, blkdata) VALUES (?, ?, ?)",
			uint64(blk.Height),
			store.EncodeHeader(blk.BlockHeader),
			store.EncodeBlock(blk),
		)
		return err
	})
}

// LatestBlock implements store.Store
func (s *sqliteStore) LatestBlock(ctx context.Context) (blk bookkeeping.Block, ok bool, err error) {
	err = s.pair.Rdb.Atomic(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var buf []byte
		err := tx.QueryRowContext(ctx, "SELECT blkdata FROM blocks ORDER BY height DESC LIMIT 1").Scan(&buf)
		if errors.Is(err, sql.ErrNoRows) {
			ok = false
			return nil
		}
		if err != nil {
			return err
		}
		blk, err = store.DecodeBlock(buf)
		ok = err == nil
		return err
	})
	return
}

// Block implements store.Store
func (s *sqliteStore) Block(ctx context.Context, h basics.Height) (blk bookkeeping.Block, err error) {
	err = s.pair.Rdb.Atomic(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var buf []byte
		err := tx.QueryRowContext(ctx, "SELECT blkdata FROM blocks WHERE height=?", uint64(h)).Scan(&buf)
		if errors.Is(err, sql.ErrNoRows) {
			latest, _, lerr := latestHeight(ctx, tx)
			if lerr != nil {
				return lerr
			}
			return ledgercore.ErrNoEntry{Height: h, Latest: latest}
		}
		if err != nil {
			return err
		}
		blk, err = store.DecodeBlock(buf)
		return err
	})
	return
}

// Close implements store.Store
func (s *sqliteStore) Close() {
	s.pair.Close()
}
