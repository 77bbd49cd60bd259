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
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/transactions"
)

// Coin is an unspent output: an amount owned by a receiver. Coins are
// immutable and are identified externally by their Outpoint.
type Coin struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Amount   basics.MicroUnits `codec:"amt"`
	Receiver basics.Address    `codec:"rcv"`
}

// CoinFromOutput converts a transaction output into the coin it creates.
func CoinFromOutput(out transactions.Output) Coin {
	return Coin{Amount: out.Amount, Receiver: out.Receiver}
}

// UtxoView is read access to the durable unspent-output set.
type UtxoView interface {
	LookupCoin(ref transactions.Outpoint) (Coin, bool)
}

// UtxoMap is a pre-fetched slice of the unspent-output set. References
// missing from the map are treated as absent.
type UtxoMap map[transactions.Outpoint]Coin

// LookupCoin implements UtxoView.
func (m UtxoMap) LookupCoin(ref transactions.Outpoint) (Coin, bool) {
	c, ok := m[ref]
	return c, ok
}

// ResolveCoin looks ref up in the patch first and falls back to view.
// A reference the patch spent is unavailable even if view still holds it.
func ResolveCoin(patch *Patch, view UtxoView, ref transactions.Outpoint) (Coin, bool) {
	if patch != nil {
		switch c, status := patch.Lookup(ref); status {
		case Spent:
			return Coin{}, false
		case Available:
			return c, true
		}
	}
	if view == nil {
		return Coin{}, false
	}
	return view.LookupCoin(ref)
}
