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

// Package node is the witness node itself, with functions exposed to the frontend
package node

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/algorand/go-deadlock"

	"github.com/witnessnet/go-witness/agreement"
	"github.com/witnessnet/go-witness/agreement/gossip"
	"github.com/witnessnet/go-witness/catchup"
	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/data"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/bookkeeping"
	"github.com/witnessnet/go-witness/data/pools"
	"github.com/witnessnet/go-witness/data/transactions"
	"github.com/witnessnet/go-witness/ledger"
	"github.com/witnessnet/go-witness/ledger/ledgercore"
	"github.com/witnessnet/go-witness/logging"
	"github.com/witnessnet/go-witness/network"
	"github.com/witnessnet/go-witness/rpcs"
	"github.com/witnessnet/go-witness/util/timers"
)

// StatusReport represents the current basic status of the node
type StatusReport struct {
	LastHeight          basics.Height
	LastBlockHash       bookkeeping.BlockHash
	LastBlockTimestamp  time.Time
	GenesisHash         crypto.Digest
	PendingTransactions int
	Peers               int
	CatchupTime         time.Duration
	Consensus           agreement.Status
}

// TimeSinceLastBlock returns the time since the last block was committed (locally), or 0 if no blocks seen
func (status StatusReport) TimeSinceLastBlock() time.Duration {
	if status.LastBlockTimestamp.IsZero() {
		return time.Duration(0)
	}

	return time.Since(status.LastBlockTimestamp)
}

// WitnessNode specifies and implements a witness node. With a witness key it
// takes part in consensus; without one it follows the chain as an observer.
type WitnessNode struct {
	mu        deadlock.Mutex
	ctx       context.Context
	cancelCtx context.CancelFunc
	config    config.Local
	proto     config.ConsensusParams

	ledger *ledger.Ledger
	net    network.GossipNode

	transactionPool  *pools.TransactionPool
	txHandler        *data.TxHandler
	agreementService *agreement.Service
	catchupService   *catchup.Service
	blockService     *rpcs.BlockService

	rootDir     string
	genesisHash crypto.Digest

	log logging.Logger

	lastBlockTimestamp time.Time

	monitoringRoutinesWaitGroup sync.WaitGroup
}

// MakeWitness sets up a witness node over a libp2p gossip network. secrets
// may be nil, in which case the node is an observer.
func MakeWitness(log logging.Logger, rootDir string, cfg config.Local, genesis bookkeeping.Genesis, genesisHashOverride crypto.Digest, secrets *crypto.SignatureSecrets) (*WitnessNode, error) {
	p2pNode, err := network.NewP2PNetwork(log, cfg, rootDir)
	if err != nil {
		log.Errorf("could not create p2p node: %v", err)
		return nil, err
	}
	node, err := makeWitness(log, rootDir, cfg, genesis, genesisHashOverride, secrets, p2pNode, timers.MakeMonotonicClock(time.Now()))
	if err != nil {
		p2pNode.Stop()
		return nil, err
	}
	return node, nil
}

func makeWitness(log logging.Logger, rootDir string, cfg config.Local, genesis bookkeeping.Genesis, genesisHashOverride crypto.Digest, secrets *crypto.SignatureSecrets, net network.GossipNode, clock timers.Clock) (*WitnessNode, error) {
	node := new(WitnessNode)
	node.rootDir = rootDir
	node.config = cfg
	node.log = log.With("name", cfg.NetAddress)
	node.net = net

	proto, err := config.LoadConsensusParams(rootDir)
	if err != nil {
		log.Errorf("Cannot load consensus parameters: %v", err)
		return nil, err
	}
	node.proto = proto

	// load stored data
	genesisDir := filepath.Join(rootDir, genesis.Network)
	if err = os.MkdirAll(genesisDir, 0700); err != nil {
		return nil, fmt.Errorf("MakeWitness: %w", err)
	}
	node.ledger, err = ledger.Open(context.Background(), cfg, genesisDir, genesis, genesisHashOverride, proto, node.log)
	if err != nil {
		log.Errorf("Cannot initialize ledger (%s): %v", genesisDir, err)
		return nil, err
	}
	node.genesisHash = node.ledger.GenesisHash()

	node.transactionPool = pools.MakeTransactionPool(cfg, proto, node.log)
	node.ledger.RegisterBlockListeners([]ledger.BlockListener{
		node.transactionPool,
		node,
	})

	node.txHandler, err = data.MakeTxHandler(data.TxHandlerOpts{
		TxPool: node.transactionPool,
		Ledger: node.ledger,
		Net:    net,
		Config: cfg,
		Log:    node.log,
	})
	if err != nil {
		node.ledger.Close()
		return nil, err
	}

	node.blockService = rpcs.MakeBlockService(node.log, cfg, node.ledger, net)
	node.catchupService = catchup.MakeService(node.log, cfg, net, node.ledger)

	witnesses := node.ledger.Witnesses()
	agreementParameters := agreement.Parameters{
		Logger:  node.log,
		Clock:   clock,
		Network: gossip.WrapNetwork(net, node.log, cfg, agreement.MakeMessageValidator(witnesses)),
		Ledger:  node.ledger,
		Mempool: node.transactionPool,
		Secrets: secrets,
		Proto:   proto,
		Catchup: node.catchupService,
	}
	node.agreementService = agreement.MakeService(agreementParameters)
	return node, nil
}

// Config returns a copy of the node's Local configuration
func (node *WitnessNode) Config() config.Local {
	return node.config
}

// GenesisHash returns the hash of the height-0 block.
func (node *WitnessNode) GenesisHash() crypto.Digest {
	return node.genesisHash
}

// Ledger exposes the node's ledger.
func (node *WitnessNode) Ledger() *ledger.Ledger {
	return node.ledger
}

// Start the node: connect to peers and run the agreement service.
func (node *WitnessNode) Start() error {
	node.mu.Lock()
	defer node.mu.Unlock()

	// Set up a context we can use to cancel goroutines on Stop()
	node.ctx, node.cancelCtx = context.WithCancel(context.Background())

	node.txHandler.Start()
	node.blockService.Start()
	node.catchupService.Start()
	node.agreementService.Start()

	// start accepting connections
	if err := node.net.Start(); err != nil {
		node.agreementService.Shutdown()
		node.catchupService.Stop()
		node.blockService.Stop()
		node.txHandler.Stop()
		return err
	}
	if addr, ok := node.net.Address(); ok {
		node.log.Infof("node listening on %s", addr)
	}

	node.startMonitoringRoutines()
	return nil
}

// startMonitoringRoutines starts the internal monitoring routines used by the node.
func (node *WitnessNode) startMonitoringRoutines() {
	node.monitoringRoutinesWaitGroup.Add(1)
	go node.haltWatcher()
}

// waitMonitoringRoutines waits for all the monitoring routines to exit. Note that
// the node.mu must not be taken, and that the node's context should have been canceled.
func (node *WitnessNode) waitMonitoringRoutines() {
	node.monitoringRoutinesWaitGroup.Wait()
}

// haltWatcher reports when consensus stops on its own.
func (node *WitnessNode) haltWatcher() {
	defer node.monitoringRoutinesWaitGroup.Done()
	select {
	case <-node.ctx.Done():
	case <-node.agreementService.Done():
		if err := node.agreementService.Err(); err != nil {
			node.log.Errorf("consensus halted at height %d: %v", node.ledger.NextHeight(), err)
		}
	}
}

// ListeningAddress retrieves the node's current listening address, if any.
// Returns true if currently listening, false otherwise.
func (node *WitnessNode) ListeningAddress() (string, bool) {
	node.mu.Lock()
	defer node.mu.Unlock()
	return node.net.Address()
}

// Stop stops running the node. Once a node is closed, it can never start again.
func (node *WitnessNode) Stop() {
	node.mu.Lock()
	defer func() {
		node.mu.Unlock()
		node.waitMonitoringRoutines()
		node.ledger.Close()
	}()

	node.net.ClearHandlers()
	node.net.Stop()
	node.txHandler.Stop()
	node.agreementService.Shutdown()
	node.catchupService.Stop()
	node.blockService.Stop()
	if node.cancelCtx != nil {
		node.cancelCtx()
	}
}

// BroadcastTransaction validates tx against the pool and the ledger, adds it
// to the pool and gossips it.
func (node *WitnessNode) BroadcastTransaction(ctx context.Context, tx transactions.Transaction) error {
	err := node.txHandler.SubmitTransaction(ctx, tx)
	if err != nil {
		node.log.Infof("BroadcastTransaction: transaction %v rejected: %v", tx.ID(), err)
		return err
	}
	node.log.Debugf("BroadcastTransaction: sent transaction %v", tx.ID())
	return nil
}

// PendingTransaction returns the pooled transaction with the given id.
func (node *WitnessNode) PendingTransaction(txid transactions.Txid) (transactions.Transaction, bool) {
	return node.transactionPool.Lookup(txid)
}

// Block returns the committed block at height h.
func (node *WitnessNode) Block(ctx context.Context, h basics.Height) (bookkeeping.Block, error) {
	return node.ledger.Block(ctx, h)
}

// WaitForHeight returns a channel closed once height h is committed.
func (node *WitnessNode) WaitForHeight(h basics.Height) <-chan struct{} {
	return node.ledger.Wait(h)
}

// Utxo returns the unspent coin at ref.
func (node *WitnessNode) Utxo(ctx context.Context, ref transactions.Outpoint) (ledgercore.Coin, bool, error) {
	return node.ledger.GetUtxo(ctx, ref)
}

// Status returns a StatusReport structure reporting our status as Active and with our ledger's LastRound
func (node *WitnessNode) Status() StatusReport {
	node.mu.Lock()
	defer node.mu.Unlock()

	last := node.ledger.LastBlock()
	return StatusReport{
		LastHeight:          last.Height,
		LastBlockHash:       last.Hash(),
		LastBlockTimestamp:  node.lastBlockTimestamp,
		GenesisHash:         node.genesisHash,
		PendingTransactions: node.transactionPool.PendingCount(),
		Peers:               node.net.PeerCount(),
		CatchupTime:         node.catchupService.SynchronizingTime(),
		Consensus:           node.agreementService.Status(),
	}
}

// ConsensusErr returns the error consensus halted with, if any.
func (node *WitnessNode) ConsensusErr() error {
	return node.agreementService.Err()
}

// ConsensusDone is closed once the agreement service has stopped, either on
// Stop or because it halted.
func (node *WitnessNode) ConsensusDone() <-chan struct{} {
	return node.agreementService.Done()
}

// OnNewBlock implements the BlockListener interface so we're notified after each block is written to the ledger
func (node *WitnessNode) OnNewBlock(block bookkeeping.Block) {
	node.mu.Lock()
	node.lastBlockTimestamp = time.Now()
	node.mu.Unlock()
}
