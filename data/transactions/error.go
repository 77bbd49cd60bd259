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

package transactions

import (
	"errors"
	"fmt"
)

// Errors returned by Transaction.WellFormed.
var (
	ErrNoOutputs      = errors.New("transaction has no outputs")
	ErrZeroReceiver   = errors.New("output receiver is the zero address")
	ErrOutputOverflow = errors.New("output amounts overflow")
)

// TxnBoundsError is returned when a transaction exceeds a size bound.
type TxnBoundsError struct {
	What string
	Have int
	Max  int
}

func (err *TxnBoundsError) Error() string {
	return fmt.Sprintf("transaction has %d %s, max %d", err.Have, err.What, err.Max)
}
