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

package pools

import (
	"errors"
)

// ErrPendingQueueReachedMaxCap indicates the current transaction pool has reached its max capacity
var ErrPendingQueueReachedMaxCap = errors.New("TransactionPool.checkPendingQueueSize: transaction pool has reached capacity")

// ErrTxnAlreadyPending is returned by Remember for a transaction the pool already holds.
var ErrTxnAlreadyPending = errors.New("TransactionPool.Remember: transaction already pending")

// ErrInputAlreadyPending is returned by Remember for a transaction spending
// a coin that another pending transaction already spends.
var ErrInputAlreadyPending = errors.New("TransactionPool.Remember: input already spent by a pending transaction")

// TxPoolErrorTag constants for categorizing transaction pool errors.
const (
	TxPoolErrTagCap       = "cap"
	TxPoolErrTagDuplicate = "duplicate"
	TxPoolErrTagConflict  = "conflict"
	TxPoolErrTagNotWell   = "not_well"
	TxPoolErrTagCommitted = "committed"
	TxPoolErrTagRejected  = "rejected"
)

// TxPoolErrTags is the list of all error tags.
var TxPoolErrTags = []string{
	TxPoolErrTagCap,
	TxPoolErrTagDuplicate,
	TxPoolErrTagConflict,
	TxPoolErrTagNotWell,
	TxPoolErrTagCommitted,
	TxPoolErrTagRejected,
}

func errorTag(err error) string {
	switch {
	case errors.Is(err, ErrPendingQueueReachedMaxCap):
		return TxPoolErrTagCap
	case errors.Is(err, ErrTxnAlreadyPending):
		return TxPoolErrTagDuplicate
	case errors.Is(err, ErrInputAlreadyPending):
		return TxPoolErrTagConflict
	default:
		return TxPoolErrTagNotWell
	}
}
