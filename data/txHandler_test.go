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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/pools"
	"github.com/witnessnet/go-witness/data/transactions"
	"github.com/witnessnet/go-witness/ledger/ledgercore"
	"github.com/witnessnet/go-witness/logging"
	"github.com/witnessnet/go-witness/network"
	"github.com/witnessnet/go-witness/protocol"
	"github.com/witnessnet/go-witness/testpartitioning"
)

type mapLedger struct {
	coins ledgercore.UtxoMap
	err   error
}

func (l mapLedger) GetUtxosCreateMap(ctx context.Context, refs []transactions.Outpoint) (ledgercore.UtxoMap, error) {
	if l.err != nil {
		return nil, l.err
	}
	out := make(ledgercore.UtxoMap)
	for _, ref := range refs {
		if c, ok := l.coins[ref]; ok {
			out[ref] = c
		}
	}
	return out, nil
}

func secrets(b byte) *crypto.SignatureSecrets {
	var seed crypto.Seed
	seed[0] = b
	return crypto.GenerateSignatureSecrets(seed)
}

type handlerFixture struct {
	owner  *crypto.SignatureSecrets
	coin   transactions.Outpoint
	ledger mapLedger
	pool   *pools.TransactionPool
	hub    *network.LoopbackHub
	net    *network.LoopbackNode
	h      *TxHandler
}

func makeHandlerFixture(t *testing.T) *handlerFixture {
	f := &handlerFixture{owner: secrets(1)}
	f.coin = transactions.Outpoint{TxID: transactions.Txid(crypto.Hash([]byte("funding"))), Index: 0}
	f.ledger = mapLedger{coins: ledgercore.UtxoMap{
		f.coin: {Amount: 1000, Receiver: basics.AddressFromPublicKey(f.owner.SignatureVerifier)},
	}}
	log := logging.TestingLog(t)
	cfg := config.GetDefaultLocal()
	f.pool = pools.MakeTransactionPool(cfg, config.DefaultConsensusParams(), log)
	f.hub = network.MakeLoopbackHub()
	f.net = f.hub.MakeNode("handler")
	require.NoError(t, f.net.Start())

	var err error
	f.h, err = MakeTxHandler(TxHandlerOpts{TxPool: f.pool, Ledger: f.ledger, Net: f.net, Config: cfg, Log: log})
	require.NoError(t, err)
	f.h.Start()
	t.Cleanup(f.h.Stop)
	return f
}

func (f *handlerFixture) spend(signer *crypto.SignatureSecrets, note string) transactions.Transaction {
	tx := transactions.Transaction{
		Inputs:  []transactions.Input{{Prev: f.coin}},
		Outputs: []transactions.Output{{Amount: 1000, Receiver: basics.AddressFromPublicKey(secrets(2).SignatureVerifier)}},
		Note:    []byte(note),
	}
	tx.SignAll(signer)
	return tx
}

func incoming(tx *transactions.Transaction) network.IncomingMessage {
	return network.IncomingMessage{Sender: "peer", Tag: protocol.TxnTag, Data: protocol.Encode(tx)}
}

func TestTxHandlerAcceptsAndDedups(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeHandlerFixture(t)
	tx := f.spend(f.owner, "")
	msg := incoming(&tx)

	require.Equal(t, network.Accept, f.h.processIncomingTxn(msg).Action)
	require.Equal(t, 1, f.pool.PendingCount())
	_, ok := f.pool.Lookup(tx.ID())
	require.True(t, ok)

	// the same bytes again are dropped without touching the pool
	require.Equal(t, network.Ignore, f.h.processIncomingTxn(msg).Action)

	// a different transaction spending the same coin conflicts
	other := f.spend(f.owner, "other")
	require.Equal(t, network.Ignore, f.h.processIncomingTxn(incoming(&other)).Action)
	require.Equal(t, 1, f.pool.PendingCount())
}

func TestTxHandlerRejects(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeHandlerFixture(t)

	garbage := network.IncomingMessage{Tag: protocol.TxnTag, Data: []byte{0xc1, 0x02}}
	require.Equal(t, network.Disconnect, f.h.processIncomingTxn(garbage).Action)

	forged := f.spend(secrets(7), "")
	require.Equal(t, network.Disconnect, f.h.processIncomingTxn(incoming(&forged)).Action)

	creation := transactions.Transaction{
		Outputs: []transactions.Output{{Amount: 5, Receiver: basics.AddressFromPublicKey(f.owner.SignatureVerifier)}},
	}
	require.Equal(t, network.Disconnect, f.h.processIncomingTxn(incoming(&creation)).Action)

	empty := f.spend(f.owner, "")
	empty.Outputs = nil
	empty.SignAll(f.owner)
	require.Equal(t, network.Disconnect, f.h.processIncomingTxn(incoming(&empty)).Action)

	require.Zero(t, f.pool.PendingCount())
}

func TestTxHandlerUnknownInputPassesThrough(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeHandlerFixture(t)
	f.coin = transactions.Outpoint{TxID: transactions.Txid(crypto.Hash([]byte("pending parent"))), Index: 1}
	tx := f.spend(secrets(3), "")
	require.Equal(t, network.Accept, f.h.processIncomingTxn(incoming(&tx)).Action)
}

func TestTxHandlerLookupFailureIsRetryable(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeHandlerFixture(t)
	f.h.ledger = mapLedger{err: errors.New("disk on fire")}
	tx := f.spend(f.owner, "")
	msg := incoming(&tx)
	require.Equal(t, network.Ignore, f.h.processIncomingTxn(msg).Action)

	f.h.ledger = f.ledger
	require.Equal(t, network.Accept, f.h.processIncomingTxn(msg).Action)
}

func TestTxHandlerSubmitGossips(t *testing.T) {
	testpartitioning.PartitionTest(t)

	f := makeHandlerFixture(t)
	peer := f.hub.MakeNode("peer")
	var got []network.IncomingMessage
	peer.RegisterHandlers([]network.TaggedMessageHandler{{Tag: protocol.TxnTag, MessageHandler: network.HandlerFunc(func(msg network.IncomingMessage) network.OutgoingMessage {
		got = append(got, msg)
		return network.OutgoingMessage{Action: network.Ignore}
	})}})
	require.NoError(t, peer.Start())

	tx := f.spend(f.owner, "")
	require.NoError(t, f.h.SubmitTransaction(context.Background(), tx))
	require.Len(t, got, 1)
	require.Equal(t, protocol.Encode(&tx), got[0].Data)
	require.Equal(t, 1, f.pool.PendingCount())

	// our own message echoed back is a duplicate
	require.Equal(t, network.Ignore, f.h.processIncomingTxn(incoming(&tx)).Action)

	err := f.h.SubmitTransaction(context.Background(), f.spend(secrets(7), "x"))
	require.ErrorIs(t, err, ledgercore.ErrClaimFailed)
	require.Len(t, got, 1)
}
