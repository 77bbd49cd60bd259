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

package routes

import (
	"github.com/witnessnet/go-witness/daemon/witnessd/api/server/lib"
	"github.com/witnessnet/go-witness/daemon/witnessd/api/server/v1/handlers"
)

// V1Routes contains all routes for v1
var V1Routes = lib.Routes{
	lib.Route{
		Name:        "status",
		Method:      "GET",
		Path:        "/status",
		HandlerFunc: handlers.Status,
	},

	lib.Route{
		Name:        "wait-for-block",
		Method:      "GET",
		Path:        "/status/wait-for-block-after/:height",
		HandlerFunc: handlers.WaitForBlock,
	},

	lib.Route{
		Name:        "raw-transaction",
		Method:      "POST",
		Path:        "/transactions",
		HandlerFunc: handlers.RawTransaction,
	},

	lib.Route{
		Name:        "pending-transaction-information",
		Method:      "GET",
		Path:        "/transactions/pending/:txid",
		HandlerFunc: handlers.PendingTransactionInformation,
	},

	lib.Route{
		Name:        "block",
		Method:      "GET",
		Path:        "/blocks/:height",
		HandlerFunc: handlers.GetBlock,
	},

	lib.Route{
		Name:        "utxo",
		Method:      "GET",
		Path:        "/utxos/:txid/:index",
		HandlerFunc: handlers.GetUtxo,
	},
}
