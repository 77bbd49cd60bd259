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

package rpcs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/bookkeeping"
	"github.com/witnessnet/go-witness/ledger/ledgercore"
	"github.com/witnessnet/go-witness/logging"
	"github.com/witnessnet/go-witness/network"
	"github.com/witnessnet/go-witness/protocol"
	"github.com/witnessnet/go-witness/testpartitioning"
)

type mockLedger struct {
	blocks []bookkeeping.Block
	err    error
}

func (l *mockLedger) Block(ctx context.Context, h basics.Height) (bookkeeping.Block, error) {
	if l.err != nil {
		return bookkeeping.Block{}, l.err
	}
	if int(h) >= len(l.blocks) {
		return bookkeeping.Block{}, ledgercore.ErrNoEntry{Height: h, Latest: basics.Height(len(l.blocks) - 1)}
	}
	return l.blocks[h], nil
}

func makeChain(n int) []bookkeeping.Block {
	var proposer crypto.PublicKey
	prev := bookkeeping.BlockHeader{TimeStamp: 1700000000}
	blocks := []bookkeeping.Block{{BlockHeader: prev}}
	for i := 1; i < n; i++ {
		blk := bookkeeping.MakeBlock(prev, nil, proposer, prev.TimeStamp+1)
		blocks = append(blocks, blk)
		prev = blk.BlockHeader
	}
	return blocks
}

func startService(t *testing.T, ledger LedgerForBlockService, cfg config.Local) (*network.LoopbackNode, *BlockService) {
	hub := network.MakeLoopbackHub()
	server := hub.MakeNode("server")
	client := hub.MakeNode("client")
	require.NoError(t, server.Start())
	require.NoError(t, client.Start())

	bs := MakeBlockService(logging.TestingLog(t), cfg, ledger, server)
	bs.Start()
	return client, bs
}

func requestBlock(client *network.LoopbackNode, h basics.Height) ([]byte, error) {
	return client.Request(context.Background(), "server", protocol.BlockRequestTag, protocol.Encode(&BlockRequest{Height: h}))
}

func TestBlockServiceServesBlocks(t *testing.T) {
	testpartitioning.PartitionTest(t)

	ledger := &mockLedger{blocks: makeChain(3)}
	client, bs := startService(t, ledger, config.GetDefaultLocal())
	defer bs.Stop()

	resp, err := requestBlock(client, 2)
	require.NoError(t, err)
	var blk bookkeeping.Block
	require.NoError(t, protocol.Decode(resp, &blk))
	require.Equal(t, ledger.blocks[2].Hash(), blk.Hash())

	_, err = requestBlock(client, 9)
	require.ErrorContains(t, err, blockNotAvailableErrMsg)
	require.ErrorContains(t, err, "latest is 2")

	_, err = client.Request(context.Background(), "server", protocol.BlockRequestTag, []byte{0xc1})
	require.EqualError(t, err, badRequestErrMsg)

	ledger.err = errors.New("disk gone")
	_, err = requestBlock(client, 1)
	require.EqualError(t, err, blockNotAvailableErrMsg)
}

func TestBlockServiceStop(t *testing.T) {
	testpartitioning.PartitionTest(t)

	client, bs := startService(t, &mockLedger{blocks: makeChain(2)}, config.GetDefaultLocal())
	bs.Stop()
	_, err := requestBlock(client, 1)
	require.EqualError(t, err, errBlockServiceClosed.Error())
}

func TestBlockServiceDisabled(t *testing.T) {
	testpartitioning.PartitionTest(t)

	cfg := config.GetDefaultLocal()
	cfg.EnableBlockService = false
	client, bs := startService(t, &mockLedger{blocks: makeChain(2)}, cfg)
	defer bs.Stop()
	_, err := requestBlock(client, 1)
	require.Error(t, err)
}

func TestBlockServiceOverCapacity(t *testing.T) {
	testpartitioning.PartitionTest(t)

	cfg := config.GetDefaultLocal()
	cfg.BlockServiceMaxConcurrentRequests = 1
	client, bs := startService(t, &mockLedger{blocks: makeChain(2)}, cfg)
	defer bs.Stop()

	require.True(t, bs.inflight.TryAcquire(1))
	_, err := requestBlock(client, 1)
	require.EqualError(t, err, overCapacityErrMsg)

	bs.inflight.Release(1)
	_, err = requestBlock(client, 1)
	require.NoError(t, err)
}
