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

package handlers

var (
	errFailedLookingUpLedger       = "failed to retrieve information from the ledger"
	errFailedParsingHeight         = "failed to parse the block height"
	errFailedParsingFormat         = "unknown format, expected json or msgpack"
	errFailedParsingOutpoint       = "failed to parse the output reference"
	errFailedToParseTransaction    = "failed to parse transaction"
	errFailedToBroadcast           = "failed to broadcast transaction"
	errNoTxnSpecified              = "no transaction ID was specified"
	errTransactionNotFound         = "couldn't find the transaction in the pool"
	errUtxoNotFound                = "no unspent output under this reference"
	errRequestedBlockNotAvailable  = "requested block %d is not available"
	errServiceShuttingDown         = "operation aborted as server is shutting down"
	errTransactionPoolFull         = "transaction pool is full, try again later"
	errTransactionAlreadySubmitted = "transaction conflicts with a pending transaction"
)
