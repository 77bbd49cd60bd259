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

package catchup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/bookkeeping"
	"github.com/witnessnet/go-witness/logging"
	"github.com/witnessnet/go-witness/network"
	"github.com/witnessnet/go-witness/protocol"
	"github.com/witnessnet/go-witness/rpcs"
)

// errWrongBlock is returned for a response that decodes to a block other
// than the one requested.
var errWrongBlock = errors.New("peer served the wrong block")

// blockFetcher requests single blocks from peers over the block request protocol.
type blockFetcher struct {
	net     network.GossipNode
	log     logging.Logger
	timeout time.Duration
}

func makeBlockFetcher(log logging.Logger, net network.GossipNode, timeout time.Duration) *blockFetcher {
	return &blockFetcher{net: net, log: log, timeout: timeout}
}

// fetchBlock asks peer for the block at height h. The returned duration is
// the time the request took.
func (bf *blockFetcher) fetchBlock(ctx context.Context, h basics.Height, peer network.Peer) (blk *bookkeeping.Block, downloadDuration time.Duration, err error) {
	ctx, cancel := context.WithTimeout(ctx, bf.timeout)
	defer cancel()

	started := time.Now()
	req := rpcs.BlockRequest{Height: h}
	fetchedBuf, err := bf.net.Request(ctx, peer, protocol.BlockRequestTag, protocol.Encode(&req))
	if err != nil {
		return nil, 0, err
	}
	downloadDuration = time.Since(started)

	blk, err = processBlockBytes(fetchedBuf, h, peer)
	if err != nil {
		return nil, 0, err
	}
	return blk, downloadDuration, nil
}

func processBlockBytes(fetchedBuf []byte, h basics.Height, peer network.Peer) (*bookkeeping.Block, error) {
	var blk bookkeeping.Block
	if err := protocol.Decode(fetchedBuf, &blk); err != nil {
		return nil, fmt.Errorf("fetchBlock(%d): cannot decode block from peer %v: %w", h, peer, err)
	}
	if blk.Height != h {
		return nil, fmt.Errorf("fetchBlock(%d): %w from %v: got height %d", h, errWrongBlock, peer, blk.Height)
	}
	return &blk, nil
}
