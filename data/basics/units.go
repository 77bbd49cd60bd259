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

package basics

import (
	"fmt"
)

// Height is the number of a block in the chain. The genesis block has height 0.
type Height uint64

// Successor returns the height after h.
func (h Height) Successor() Height {
	return h + 1
}

// MicroUnits is the smallest indivisible amount of the native coin.
type MicroUnits uint64

// String prints the amount with its unit suffix.
func (a MicroUnits) String() string {
	return fmt.Sprintf("%d µunits", uint64(a))
}
