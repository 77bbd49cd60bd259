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

// Package lib holds the types shared by the REST API handlers.
package lib

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/bookkeeping"
	"github.com/witnessnet/go-witness/data/transactions"
	"github.com/witnessnet/go-witness/ledger/ledgercore"
	"github.com/witnessnet/go-witness/logging"
	"github.com/witnessnet/go-witness/node"
)

// NodeInterface is the part of the node the API serves.
type NodeInterface interface {
	Config() config.Local
	GenesisHash() crypto.Digest
	Status() node.StatusReport
	ConsensusErr() error
	BroadcastTransaction(ctx context.Context, tx transactions.Transaction) error
	PendingTransaction(txid transactions.Txid) (transactions.Transaction, bool)
	Block(ctx context.Context, h basics.Height) (bookkeeping.Block, error)
	Utxo(ctx context.Context, ref transactions.Outpoint) (ledgercore.Coin, bool, error)
	WaitForHeight(h basics.Height) <-chan struct{}
}

// ReqContext is passed to each of the handlers below via wrapCtx, allowing
// handlers to interact with the node
type ReqContext struct {
	Node     NodeInterface
	Log      logging.Logger
	Shutdown <-chan struct{}
}

// Handler is an handler with a ReqContext
type Handler func(ReqContext, http.ResponseWriter, *http.Request)

// Route type description
type Route struct {
	Name        string
	Method      string
	Path        string
	HandlerFunc Handler
}

// Routes contains all routes
type Routes []Route

// APIError is the body of every failed request.
type APIError struct {
	Message string `json:"message"`
}

// ErrorResponse sets the specified status code (should != 200), and fills in the
// a human readable error.
func ErrorResponse(w http.ResponseWriter, status int, internalErr error, publicErr string, logger logging.Logger) {
	logger.Info(internalErr)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIError{Message: publicErr})
}

// SendJSON writes obj as a 200 JSON response.
func SendJSON(w http.ResponseWriter, obj interface{}, logger logging.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		logger.Warnf("failed to write response: %v", err)
	}
}
