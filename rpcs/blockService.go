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

// Package rpcs holds the services nodes offer each other outside gossip.
package rpcs

import (
	"context"
	"errors"
	"fmt"

	"github.com/algorand/go-deadlock"
	"golang.org/x/sync/semaphore"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/bookkeeping"
	"github.com/witnessnet/go-witness/ledger/ledgercore"
	"github.com/witnessnet/go-witness/logging"
	"github.com/witnessnet/go-witness/network"
	"github.com/witnessnet/go-witness/protocol"
	"github.com/witnessnet/go-witness/util/metrics"
)

// Error strings sent back to the requester.
const (
	badRequestErrMsg        = "unable to decode block request"
	blockNotAvailableErrMsg = "requested block is not available"
	overCapacityErrMsg      = "block service over capacity"
)

var errBlockServiceClosed = errors.New("block service is shutting down")

var blockServiceRequests = metrics.MakeCounter(metrics.BlockServiceRequests, "outcome")

// BlockRequest asks a peer for the committed block at Height.
type BlockRequest struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Height basics.Height `codec:"h"`
}

// LedgerForBlockService describes the Ledger methods used by BlockService.
type LedgerForBlockService interface {
	Block(ctx context.Context, h basics.Height) (bookkeeping.Block, error)
}

// BlockService answers block requests from peers catching up. Responses are
// msgpack-encoded blocks.
type BlockService struct {
	ledger        LedgerForBlockService
	net           network.GossipNode
	log           logging.Logger
	enableService bool
	inflight      *semaphore.Weighted

	mu      deadlock.RWMutex
	running bool
}

// MakeBlockService creates a BlockService around the provided ledger.
func MakeBlockService(log logging.Logger, cfg config.Local, ledger LedgerForBlockService, net network.GossipNode) *BlockService {
	return &BlockService{
		ledger:        ledger,
		net:           net,
		log:           log,
		enableService: cfg.EnableBlockService,
		inflight:      semaphore.NewWeighted(int64(cfg.BlockServiceMaxConcurrentRequests)),
	}
}

// Start registers the request handler with the network.
func (bs *BlockService) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if !bs.enableService {
		return
	}
	bs.running = true
	bs.net.RegisterRequestHandler(protocol.BlockRequestTag, bs.handleBlockRequest)
}

// Stop refuses further requests.
func (bs *BlockService) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.running = false
}

func (bs *BlockService) handleBlockRequest(ctx context.Context, sender network.Peer, data []byte) ([]byte, error) {
	bs.mu.RLock()
	running := bs.running
	bs.mu.RUnlock()
	if !running {
		return nil, errBlockServiceClosed
	}

	if !bs.inflight.TryAcquire(1) {
		blockServiceRequests.Inc(map[string]string{"outcome": "over_capacity"})
		return nil, errors.New(overCapacityErrMsg)
	}
	defer bs.inflight.Release(1)

	var req BlockRequest
	if err := protocol.Decode(data, &req); err != nil {
		blockServiceRequests.Inc(map[string]string{"outcome": "bad_request"})
		bs.log.Debugf("BlockService: bad request from %v: %v", sender, err)
		return nil, errors.New(badRequestErrMsg)
	}

	blk, err := bs.ledger.Block(ctx, req.Height)
	if err != nil {
		blockServiceRequests.Inc(map[string]string{"outcome": "not_available"})
		var noEntry ledgercore.ErrNoEntry
		if errors.As(err, &noEntry) {
			return nil, fmt.Errorf("%s: latest is %d", blockNotAvailableErrMsg, noEntry.Latest)
		}
		bs.log.Infof("BlockService: reading block %d: %v", req.Height, err)
		return nil, errors.New(blockNotAvailableErrMsg)
	}
	blockServiceRequests.Inc(map[string]string{"outcome": "served"})
	return protocol.Encode(&blk), nil
}
