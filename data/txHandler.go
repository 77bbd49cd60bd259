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

package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/data/pools"
	"github.com/witnessnet/go-witness/data/transactions"
	"github.com/witnessnet/go-witness/ledger/ledgercore"
	"github.com/witnessnet/go-witness/logging"
	"github.com/witnessnet/go-witness/network"
	"github.com/witnessnet/go-witness/protocol"
	"github.com/witnessnet/go-witness/util/metrics"
)

var transactionMessagesHandled = metrics.MakeCounter(metrics.TransactionMessagesHandled)
var transactionMessagesDupRawMsg = metrics.MakeCounter(metrics.TransactionMessagesDupRawMsg)
var transactionMessagesRejected = metrics.MakeCounter(metrics.TransactionMessagesRejected, "reason")

// ErrInvalidTxPool is reported when nil is passed for the tx pool
var ErrInvalidTxPool = errors.New("MakeTxHandler: txPool is nil on initialization")

// ErrInvalidLedger is reported when nil is passed for the ledger
var ErrInvalidLedger = errors.New("MakeTxHandler: ledger is nil on initialization")

const (
	rejectTagUndecodable = "undecodable"
	rejectTagCreation    = "coin_creation"
	rejectTagClaim       = "claim"
	rejectTagLookup      = "lookup"
	rejectTagPool        = "pool"
)

// TxLedger is the part of the ledger the handler checks input claims against.
type TxLedger interface {
	GetUtxosCreateMap(ctx context.Context, refs []transactions.Outpoint) (ledgercore.UtxoMap, error)
}

// TxHandler handles transaction messages
type TxHandler struct {
	txPool   *pools.TransactionPool
	ledger   TxLedger
	log      logging.Logger
	net      network.GossipNode
	msgCache *digestCache

	ctx       context.Context
	ctxCancel context.CancelFunc
}

// TxHandlerOpts is TxHandler configuration options
type TxHandlerOpts struct {
	TxPool *pools.TransactionPool
	Ledger TxLedger
	Net    network.GossipNode
	Config config.Local
	Log    logging.Logger
}

// MakeTxHandler makes a new handler for transaction messages
func MakeTxHandler(opts TxHandlerOpts) (*TxHandler, error) {
	if opts.TxPool == nil {
		return nil, ErrInvalidTxPool
	}
	if opts.Ledger == nil {
		return nil, ErrInvalidLedger
	}

	handler := &TxHandler{
		txPool:   opts.TxPool,
		ledger:   opts.Ledger,
		log:      opts.Log,
		net:      opts.Net,
		msgCache: makeDigestCache(opts.Config.TxPoolSize),
	}
	handler.ctx, handler.ctxCancel = context.WithCancel(context.Background())
	return handler, nil
}

// Start enables the processing of incoming messages at the transaction handler
func (handler *TxHandler) Start() {
	handler.net.RegisterHandlers([]network.TaggedMessageHandler{
		{Tag: protocol.TxnTag, MessageHandler: network.HandlerFunc(handler.processIncomingTxn)},
	})
}

// Stop suspends the processing of incoming messages at the transaction handler
func (handler *TxHandler) Stop() {
	handler.ctxCancel()
}

// processIncomingTxn decodes and checks a gossiped transaction and remembers
// it in the pool. The message is relayed only if the pool accepted it.
func (handler *TxHandler) processIncomingTxn(rawmsg network.IncomingMessage) network.OutgoingMessage {
	// check for duplicate messages
	// this helps against relaying duplicates
	msgKey := crypto.Hash(rawmsg.Data)
	if handler.msgCache.CheckAndPut(&msgKey) {
		transactionMessagesDupRawMsg.Inc(nil)
		return network.OutgoingMessage{Action: network.Ignore}
	}
	transactionMessagesHandled.Inc(nil)

	var tx transactions.Transaction
	if err := protocol.Decode(rawmsg.Data, &tx); err != nil {
		handler.log.Warnf("Received a non-decodable txn: %v", err)
		transactionMessagesRejected.Inc(map[string]string{"reason": rejectTagUndecodable})
		return network.OutgoingMessage{Action: network.Disconnect}
	}

	err := handler.remember(handler.ctx, tx)
	switch {
	case err == nil:
		return network.OutgoingMessage{Action: network.Accept}
	case errors.Is(err, ledgercore.ErrClaimFailed), errors.Is(err, ledgercore.ErrUnauthorizedCoinCreation):
		handler.log.Infof("Received a forged txn %v from %v: %v", tx.ID(), rawmsg.Sender, err)
		return network.OutgoingMessage{Action: network.Disconnect}
	case poolTransient(err):
		// give it a chance to be re-submitted
		handler.msgCache.Delete(&msgKey)
		return network.OutgoingMessage{Action: network.Ignore}
	case errors.Is(err, pools.ErrTxnAlreadyPending), errors.Is(err, pools.ErrInputAlreadyPending):
		return network.OutgoingMessage{Action: network.Ignore}
	default:
		handler.log.Debugf("Received a malformed txn %v: %v", tx.ID(), err)
		return network.OutgoingMessage{Action: network.Disconnect}
	}
}

// poolTransient reports errors that may clear by themselves: a full pool or a
// failed ledger lookup.
func poolTransient(err error) bool {
	var lookupErr *lookupError
	return errors.Is(err, pools.ErrPendingQueueReachedMaxCap) || errors.As(err, &lookupErr)
}

type lookupError struct {
	err error
}

func (e *lookupError) Error() string {
	return fmt.Sprintf("resolving inputs: %v", e.err)
}

func (e *lookupError) Unwrap() error {
	return e.err
}

// remember checks tx against the durable coins it spends and adds it to the pool.
func (handler *TxHandler) remember(ctx context.Context, tx transactions.Transaction) error {
	if err := handler.checkClaims(ctx, tx); err != nil {
		return err
	}
	err := handler.txPool.Remember(tx)
	if err != nil {
		transactionMessagesRejected.Inc(map[string]string{"reason": rejectTagPool})
	}
	return err
}

// checkClaims verifies the claim of every input whose coin is durable. Inputs
// that are not in the ledger are left for the evaluator: they may be created
// by a transaction still pending, or already spent.
func (handler *TxHandler) checkClaims(ctx context.Context, tx transactions.Transaction) error {
	if tx.IsCoinCreation() {
		transactionMessagesRejected.Inc(map[string]string{"reason": rejectTagCreation})
		return ledgercore.ErrUnauthorizedCoinCreation
	}
	refs := make([]transactions.Outpoint, len(tx.Inputs))
	for i, in := range tx.Inputs {
		refs[i] = in.Prev
	}
	coins, err := handler.ledger.GetUtxosCreateMap(ctx, refs)
	if err != nil {
		transactionMessagesRejected.Inc(map[string]string{"reason": rejectTagLookup})
		return &lookupError{err: err}
	}
	for i, in := range tx.Inputs {
		coin, ok := coins[in.Prev]
		if !ok {
			continue
		}
		if !tx.VerifyClaim(i, coin.Receiver) {
			transactionMessagesRejected.Inc(map[string]string{"reason": rejectTagClaim})
			return fmt.Errorf("input %d (%v): %w", i, in.Prev, ledgercore.ErrClaimFailed)
		}
	}
	return nil
}

// SubmitTransaction remembers a locally submitted transaction and gossips it.
func (handler *TxHandler) SubmitTransaction(ctx context.Context, tx transactions.Transaction) error {
	if err := handler.remember(ctx, tx); err != nil {
		return err
	}
	data := protocol.Encode(&tx)
	msgKey := crypto.Hash(data)
	handler.msgCache.CheckAndPut(&msgKey)
	return handler.net.Broadcast(ctx, protocol.TxnTag, data)
}
