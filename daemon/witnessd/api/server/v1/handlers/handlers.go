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

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/witnessnet/go-witness/daemon/witnessd/api/server/lib"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/pools"
	"github.com/witnessnet/go-witness/data/transactions"
	"github.com/witnessnet/go-witness/ledger/ledgercore"
	"github.com/witnessnet/go-witness/protocol"
)

// maxWaitForBlock bounds how long WaitForBlock holds a request open.
const maxWaitForBlock = time.Minute

// Status is an httpHandler for route GET /v1/status
func Status(ctx lib.ReqContext, w http.ResponseWriter, r *http.Request) {
	lib.SendJSON(w, statusEncode(ctx.Node.Status()), ctx.Log)
}

// WaitForBlock is an httpHandler for route GET /v1/status/wait-for-block-after/:height
//
// It answers with the node status once a block past height is committed, or
// after a minute, whichever comes first.
func WaitForBlock(ctx lib.ReqContext, w http.ResponseWriter, r *http.Request) {
	queryHeight, err := strconv.ParseUint(mux.Vars(r)["height"], 10, 64)
	if err != nil {
		lib.ErrorResponse(w, http.StatusBadRequest, err, errFailedParsingHeight, ctx.Log)
		return
	}

	select {
	case <-time.After(maxWaitForBlock):
	case <-ctx.Node.WaitForHeight(basics.Height(queryHeight + 1)):
	case <-r.Context().Done():
		return
	case <-ctx.Shutdown:
		lib.ErrorResponse(w, http.StatusServiceUnavailable, errors.New(errServiceShuttingDown), errServiceShuttingDown, ctx.Log)
		return
	}

	lib.SendJSON(w, statusEncode(ctx.Node.Status()), ctx.Log)
}

// RawTransaction is an httpHandler for route POST /v1/transactions
//
// The body is a msgpack-encoded transaction.
func RawTransaction(ctx lib.ReqContext, w http.ResponseWriter, r *http.Request) {
	var tx transactions.Transaction
	err := protocol.DecodeStream(r.Body, &tx)
	if err != nil {
		lib.ErrorResponse(w, http.StatusBadRequest, err, errFailedToParseTransaction, ctx.Log)
		return
	}

	err = ctx.Node.BroadcastTransaction(r.Context(), tx)
	if err != nil {
		status, msg := classifySubmitError(err)
		lib.ErrorResponse(w, status, err, msg, ctx.Log)
		return
	}

	lib.SendJSON(w, TransactionID{TxID: tx.ID().String()}, ctx.Log)
}

// classifySubmitError maps a rejected submission to an HTTP status.
// Rejections caused by the transaction itself are client errors.
func classifySubmitError(err error) (int, string) {
	var bounds *transactions.TxnBoundsError
	switch {
	case errors.Is(err, pools.ErrPendingQueueReachedMaxCap):
		return http.StatusServiceUnavailable, errTransactionPoolFull
	case errors.Is(err, pools.ErrTxnAlreadyPending), errors.Is(err, pools.ErrInputAlreadyPending):
		return http.StatusConflict, errTransactionAlreadySubmitted + ": " + err.Error()
	case errors.Is(err, ledgercore.ErrClaimFailed),
		errors.Is(err, ledgercore.ErrUnauthorizedCoinCreation),
		errors.Is(err, ledgercore.ErrMalformedTransaction),
		errors.Is(err, transactions.ErrNoOutputs),
		errors.Is(err, transactions.ErrZeroReceiver),
		errors.Is(err, transactions.ErrOutputOverflow),
		errors.As(err, &bounds):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, errFailedToBroadcast
	}
}

// PendingTransactionInformation is an httpHandler for route GET /v1/transactions/pending/:txid
func PendingTransactionInformation(ctx lib.ReqContext, w http.ResponseWriter, r *http.Request) {
	queryTxID := mux.Vars(r)["txid"]
	if queryTxID == "" {
		lib.ErrorResponse(w, http.StatusBadRequest, errors.New(errNoTxnSpecified), errNoTxnSpecified, ctx.Log)
		return
	}

	var txID transactions.Txid
	if err := txID.FromString(queryTxID); err != nil {
		lib.ErrorResponse(w, http.StatusBadRequest, err, errNoTxnSpecified, ctx.Log)
		return
	}

	if tx, ok := ctx.Node.PendingTransaction(txID); ok {
		lib.SendJSON(w, txEncode(tx), ctx.Log)
		return
	}

	lib.ErrorResponse(w, http.StatusNotFound, errors.New(errTransactionNotFound), errTransactionNotFound, ctx.Log)
}

// GetBlock is an httpHandler for route GET /v1/blocks/:height
//
// With ?format=msgpack the canonical encoding is returned instead of JSON.
func GetBlock(ctx lib.ReqContext, w http.ResponseWriter, r *http.Request) {
	queryHeight, err := strconv.ParseUint(mux.Vars(r)["height"], 10, 64)
	if err != nil {
		lib.ErrorResponse(w, http.StatusBadRequest, err, errFailedParsingHeight, ctx.Log)
		return
	}
	format := r.URL.Query().Get("format")
	if format != "" && format != "json" && format != "msgpack" {
		lib.ErrorResponse(w, http.StatusBadRequest, fmt.Errorf("format %q", format), errFailedParsingFormat, ctx.Log)
		return
	}

	blk, err := ctx.Node.Block(r.Context(), basics.Height(queryHeight))
	if err != nil {
		var noEntry ledgercore.ErrNoEntry
		if errors.As(err, &noEntry) {
			lib.ErrorResponse(w, http.StatusNotFound, err, fmt.Sprintf(errRequestedBlockNotAvailable, queryHeight), ctx.Log)
			return
		}
		lib.ErrorResponse(w, http.StatusInternalServerError, err, errFailedLookingUpLedger, ctx.Log)
		return
	}

	if format == "msgpack" {
		w.Header().Set("Content-Type", "application/msgpack")
		w.WriteHeader(http.StatusOK)
		w.Write(protocol.Encode(&blk))
		return
	}
	lib.SendJSON(w, blockEncode(blk), ctx.Log)
}

// GetUtxo is an httpHandler for route GET /v1/utxos/:txid/:index
func GetUtxo(ctx lib.ReqContext, w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var ref transactions.Outpoint
	if err := ref.TxID.FromString(vars["txid"]); err != nil {
		lib.ErrorResponse(w, http.StatusBadRequest, err, errFailedParsingOutpoint, ctx.Log)
		return
	}
	index, err := strconv.ParseUint(vars["index"], 10, 32)
	if err != nil {
		lib.ErrorResponse(w, http.StatusBadRequest, err, errFailedParsingOutpoint, ctx.Log)
		return
	}
	ref.Index = uint32(index)

	coin, ok, err := ctx.Node.Utxo(r.Context(), ref)
	if err != nil {
		lib.ErrorResponse(w, http.StatusInternalServerError, err, errFailedLookingUpLedger, ctx.Log)
		return
	}
	if !ok {
		lib.ErrorResponse(w, http.StatusNotFound, fmt.Errorf("%v not found", ref), errUtxoNotFound, ctx.Log)
		return
	}
	lib.SendJSON(w, utxoEncode(ref, coin), ctx.Log)
}
