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
	"errors"
	"fmt"

	"github.com/witnessnet/go-witness/data/basics"
)

var (
	errUnknownWitness    = errors.New("sender is not a witness")
	errBadSignature      = errors.New("signature does not verify")
	errMalformedProposal = errors.New("malformed proposal")
	errUnknownTag        = errors.New("not an agreement tag")
)

// StorageCommitFailureError is reported when an agreed block could not be
// written. Consensus halts: the height is never skipped.
type StorageCommitFailureError struct {
	Height basics.Height
	Err    error
}

// Error satisfies builtin interface `error`
func (e *StorageCommitFailureError) Error() string {
	return fmt.Sprintf("agreement: failed to commit agreed block %d: %v", e.Height, e.Err)
}

// Unwrap returns the storage error.
func (e *StorageCommitFailureError) Unwrap() error {
	return e.Err
}
