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
	"golang.org/x/exp/constraints"
)

// OverflowTracker is used to track when an operation causes an overflow
type OverflowTracker struct {
	Overflowed bool
}

// oadd adds 2 values with overflow detection
func oadd[T constraints.Unsigned](a, b T) (res T, overflowed bool) {
	res = a + b
	overflowed = res < a
	return
}

// osub subtracts b from a with overflow detection
func osub[T constraints.Unsigned](a, b T) (res T, overflowed bool) {
	res = a - b
	overflowed = res > a
	return
}

// AddA adds 2 MicroUnits values with overflow tracking
func (t *OverflowTracker) AddA(a, b MicroUnits) MicroUnits {
	res, overflowed := oadd(a, b)
	if overflowed {
		t.Overflowed = true
	}
	return res
}

// SumA adds up a list of amounts, reporting overflow.
func SumA(amounts ...MicroUnits) (total MicroUnits, overflowed bool) {
	var ot OverflowTracker
	for _, a := range amounts {
		total = ot.AddA(total, a)
	}
	return total, ot.Overflowed
}
