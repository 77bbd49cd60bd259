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

package apply

import (
	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/transactions"
	"github.com/witnessnet/go-witness/ledger/ledgercore"
)

// Application validates transactions against the unspent-output set and
// records their effect in a Patch. It performs no storage I/O: callers
// pre-fetch the coins a transaction references into a UtxoView.
type Application struct {
	proto config.ConsensusParams
}

// MakeApplication creates an Application bound to the given parameters.
func MakeApplication(proto config.ConsensusParams) *Application {
	return &Application{proto: proto}
}

// ProcessTransaction validates tx against view overlaid with patch and, on
// success, extends patch in place with the transaction's spends and
// creations and returns it. A nil patch starts a new one. genesis allows a transaction
// without inputs to create coins.
//
// Checks run in order and the first failure is returned: double spend,
// claim, value conservation, coin creation, then the size bounds of
// WellFormed. On failure the patch is left exactly as it was.
func (app *Application) ProcessTransaction(tx transactions.Transaction, view ledgercore.UtxoView, patch *ledgercore.Patch, genesis bool) (*ledgercore.Patch, error) {
	if patch == nil {
		patch = ledgercore.MakePatch(len(tx.Inputs) + len(tx.Outputs))
	}

	var ot basics.OverflowTracker
	var inTotal basics.MicroUnits
	seen := make(map[transactions.Outpoint]struct{}, len(tx.Inputs))
	coins := make([]ledgercore.Coin, len(tx.Inputs))
	for i, in := range tx.Inputs {
		ref := in.Prev
		if _, dup := seen[ref]; dup {
			return patch, &ledgercore.DoubleSpendError{TxID: ref.TxID, Index: ref.Index}
		}
		seen[ref] = struct{}{}

		coin, ok := ledgercore.ResolveCoin(patch, view, ref)
		if !ok {
			return patch, &ledgercore.DoubleSpendError{TxID: ref.TxID, Index: ref.Index}
		}
		coins[i] = coin
	}

	for i, coin := range coins {
		if !tx.VerifyClaim(i, coin.Receiver) {
			return patch, &ledgercore.ClaimFailedError{Ref: tx.Inputs[i].Prev}
		}
		inTotal = ot.AddA(inTotal, coin.Amount)
	}

	txid := tx.ID()
	if len(tx.Inputs) > 0 {
		outTotal, overflowed := tx.OutputTotal()
		if ot.Overflowed || overflowed {
			return patch, &ledgercore.InsufficientFundsError{TxID: txid, In: inTotal, Out: outTotal, Overflow: true}
		}
		if inTotal < outTotal {
			return patch, &ledgercore.InsufficientFundsError{TxID: txid, In: inTotal, Out: outTotal}
		}
	} else if !genesis {
		return patch, &ledgercore.UnauthorizedCoinCreationError{TxID: txid}
	}

	if err := tx.WellFormed(app.proto); err != nil {
		return patch, &ledgercore.MalformedTransactionError{TxID: txid, Err: err}
	}

	created := make([]transactions.Outpoint, len(tx.Outputs))
	for i := range tx.Outputs {
		ref := transactions.Outpoint{TxID: txid, Index: uint32(i)}
		if _, status := patch.Lookup(ref); status != ledgercore.Absent {
			return patch, &ledgercore.MergeConflictError{Ref: ref, Reason: "coin created twice"}
		}
		created[i] = ref
	}

	// Every check passed, so the updates below cannot fail.
	for _, in := range tx.Inputs {
		_ = patch.SpendCoin(in.Prev)
	}
	for i, out := range tx.Outputs {
		_ = patch.CreateCoin(created[i], ledgercore.CoinFromOutput(out))
	}
	return patch, nil
}

// InputRefs returns the references a transaction needs fetched from storage.
func InputRefs(tx transactions.Transaction) []transactions.Outpoint {
	refs := make([]transactions.Outpoint, len(tx.Inputs))
	for i, in := range tx.Inputs {
		refs[i] = in.Prev
	}
	return refs
}
