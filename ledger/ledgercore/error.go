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

package ledgercore

import (
	"errors"
	"fmt"

	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/transactions"
)

// Sentinels for classifying transaction rejections with errors.Is.
var (
	ErrDoubleSpend              = errors.New("double spend")
	ErrClaimFailed              = errors.New("claim failed")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrUnauthorizedCoinCreation = errors.New("unauthorized coin creation")
	ErrMalformedTransaction     = errors.New("malformed transaction")
	ErrMergeConflict            = errors.New("patch merge conflict")
)

// DoubleSpendError is returned when an input references a coin that does
// not exist, was already spent, or is spent twice by the same transaction.
type DoubleSpendError struct {
	TxID  transactions.Txid
	Index uint32
}

// Error satisfies builtin interface `error`
func (e *DoubleSpendError) Error() string {
	return fmt.Sprintf("Output #%d of Tx %s already spent!", e.Index, e.TxID)
}

// Is matches ErrDoubleSpend.
func (e *DoubleSpendError) Is(target error) bool {
	return target == ErrDoubleSpend
}

// ClaimFailedError is returned when an input's key does not own the coin
// or its signature does not verify.
type ClaimFailedError struct {
	Ref transactions.Outpoint
}

// Error satisfies builtin interface `error`
func (e *ClaimFailedError) Error() string {
	return "Claim failed!"
}

// Is matches ErrClaimFailed.
func (e *ClaimFailedError) Is(target error) bool {
	return target == ErrClaimFailed
}

// InsufficientFundsError is returned when outputs exceed inputs.
type InsufficientFundsError struct {
	TxID transactions.Txid
	In   basics.MicroUnits
	Out  basics.MicroUnits
	// Overflow is set when a sum did not fit in 64 bits.
	Overflow bool
}

// Error satisfies builtin interface `error`
func (e *InsufficientFundsError) Error() string {
	if e.Overflow {
		return fmt.Sprintf("Tx %s amounts overflow", e.TxID)
	}
	return fmt.Sprintf("Tx %s spends %d but only has %d", e.TxID, uint64(e.Out), uint64(e.In))
}

// Is matches ErrInsufficientFunds.
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// UnauthorizedCoinCreationError is returned for a transaction without
// inputs outside of a genesis context.
type UnauthorizedCoinCreationError struct {
	TxID transactions.Txid
}

// Error satisfies builtin interface `error`
func (e *UnauthorizedCoinCreationError) Error() string {
	return fmt.Sprintf("Tx %s creates coins without inputs", e.TxID)
}

// Is matches ErrUnauthorizedCoinCreation.
func (e *UnauthorizedCoinCreationError) Is(target error) bool {
	return target == ErrUnauthorizedCoinCreation
}

// MalformedTransactionError wraps a well-formedness failure.
type MalformedTransactionError struct {
	TxID transactions.Txid
	Err  error
}

// Error satisfies builtin interface `error`
func (e *MalformedTransactionError) Error() string {
	return fmt.Sprintf("Tx %s is malformed: %v", e.TxID, e.Err)
}

// Is matches ErrMalformedTransaction.
func (e *MalformedTransactionError) Is(target error) bool {
	return target == ErrMalformedTransaction
}

// Unwrap returns the underlying well-formedness error.
func (e *MalformedTransactionError) Unwrap() error {
	return e.Err
}

// MergeConflictError is returned when two patches cannot be combined.
type MergeConflictError struct {
	Ref    transactions.Outpoint
	Reason string
}

// Error satisfies builtin interface `error`
func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("patch conflict on %s: %s", e.Ref, e.Reason)
}

// Is matches ErrMergeConflict.
func (e *MergeConflictError) Is(target error) bool {
	return target == ErrMergeConflict
}

// BlockInLedgerError is returned when a block cannot be added because it has already been done
type BlockInLedgerError struct {
	LastHeight basics.Height
	NextHeight basics.Height
}

// Error satisfies builtin interface `error`
func (bile BlockInLedgerError) Error() string {
	return fmt.Sprintf("block number already in ledger: block %d < next height %d", bile.LastHeight, bile.NextHeight)
}

// ErrNoEntry is used to indicate that a block is not present in the ledger.
type ErrNoEntry struct {
	Height basics.Height
	Latest basics.Height
}

// Error satisfies builtin interface `error`
func (err ErrNoEntry) Error() string {
	return fmt.Sprintf("ledger does not have entry %d (latest %d)", err.Height, err.Latest)
}
