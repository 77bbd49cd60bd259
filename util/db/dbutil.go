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

// Package db defines database utility functions.
//
// These functions currently work on a sqlite database.
// Other databases may not work with functions in this package.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/witnessnet/go-witness/logging"
)

// busy is the time to wait for a sqlite lock from another process, in ms.
// This causes sqlite to wait before returning SQLITE_BUSY.
const busy = 1000

// warnTxRetries is how many retries pass between contention warnings.
const warnTxRetries = 1

// maxTxRetries bounds the retry loops in Atomic.
const maxTxRetries = 1000

// An Accessor manages a sqlite database handle.
type Accessor struct {
	Handle   *sql.DB
	readOnly bool
	log      logging.Logger
}

// MakeAccessor creates a new Accessor.
func MakeAccessor(dbfilename string, readOnly bool, inMemory bool) (Accessor, error) {
	var db Accessor
	db.readOnly = readOnly
	db.log = logging.Base()

	var err error
	db.Handle, err = sql.Open("sqlite3", uri(dbfilename, readOnly, inMemory)+"&_journal_mode=wal")
	return db, err
}

// SetLogger replaces the logger used to report slow or contended transactions.
func (db *Accessor) SetLogger(log logging.Logger) {
	db.log = log
}

// Close closes the connection.
func (db Accessor) Close() {
	db.Handle.Close()
}

// Atomic executes a piece of code with respect to the database atomically.
// The transaction is retried while sqlite reports lock contention.
func (db Accessor) Atomic(ctx context.Context, fn idemFn) (err error) {
	descr := "w"
	if db.readOnly {
		descr = "r"
	}
	log := db.log
	if log == nil {
		log = logging.Base()
	}

	start := time.Now()
	defer func() {
		delta := time.Since(start)
		if delta > time.Second {
			log.Warnf("dbatomic(%v): tx took %v", descr, delta)
		} else if delta > time.Millisecond {
			log.Debugf("dbatomic(%v): tx took %v", descr, delta)
		}
	}()

	// note that the sql library will drop panics inside an active transaction
	guardedFn := func(tx *sql.Tx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				var ok bool
				err, ok = r.(error)
				if !ok {
					err = fmt.Errorf("%v", r)
				}
			}
		}()

		err = fn(ctx, tx)
		return
	}

	conn, err := db.Handle.Conn(ctx)
	if err != nil {
		return
	}
	defer conn.Close()

	for i := 0; ; i++ {
		if i > 0 && i%warnTxRetries == 0 {
			if i >= maxTxRetries {
				log.Errorf("dbatomic(%v): %d retries (last err: %v)", descr, i, err)
				return
			}
			log.Warnf("dbatomic(%v): %d retries (last err: %v)", descr, i, err)
		}

		var tx *sql.Tx
		tx, err = conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable, ReadOnly: db.readOnly})
		if dbretry(err) {
			continue
		} else if err != nil {
			return
		}

		err = guardedFn(tx)
		if err != nil {
			tx.Rollback()
			if dbretry(err) {
				continue
			}
			return
		}

		err = tx.Commit()
		if err == nil || !dbretry(err) {
			return
		}
	}
}

// uri returns the sqlite URI given a db filename as an input.
func uri(filename string, readOnly bool, memory bool) string {
	uri := fmt.Sprintf("file:%s?_busy_timeout=%d&_synchronous=full", filename, busy)
	if !readOnly {
		uri += "&_txlock=immediate"
	}
	if memory {
		uri += "&mode=memory"
		uri += "&cache=shared"
	}
	return uri
}

// GetUserVersion returns the user version field stored in the sqlite database.
func GetUserVersion(ctx context.Context, tx *sql.Tx) (userVersion int32, err error) {
	err = tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&userVersion)
	if err != nil {
		return 0, err
	}
	return
}

// SetUserVersion sets the user version field in the sqlite database and
// returns the previous value.
func SetUserVersion(ctx context.Context, tx *sql.Tx, version int32) (previousVersion int32, err error) {
	previousVersion, err = GetUserVersion(ctx, tx)
	if err != nil {
		return 0, err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version))
	if err != nil {
		return 0, err
	}
	return previousVersion, nil
}

// dbretry returns true if the error might be temporary
func dbretry(obj error) bool {
	err, ok := obj.(sqlite3.Error)
	return ok && (err.Code == sqlite3.ErrLocked || err.Code == sqlite3.ErrBusy)
}

type idemFn func(ctx context.Context, tx *sql.Tx) error
