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

package network

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/logging"
	"github.com/witnessnet/go-witness/network/p2p"
	"github.com/witnessnet/go-witness/protocol"
	"github.com/witnessnet/go-witness/testpartitioning"
)

func TestP2PTopicNames(t *testing.T) {
	testpartitioning.PartitionTest(t)

	tags := gossipTags()
	require.NotContains(t, tags, protocol.UnknownMsgTag)
	require.Contains(t, tags, protocol.WitnessVoteTag)
	require.Equal(t, "/witness/TX/1.0.0", p2p.TopicName(protocol.TxnTag))
}

func TestP2PBadBootstrapPeer(t *testing.T) {
	testpartitioning.PartitionTest(t)

	cfg := config.GetDefaultLocal()
	cfg.BootstrapPeers = []string{"not-a-multiaddr"}
	_, err := NewP2PNetwork(logging.TestingLog(t), cfg, t.TempDir())
	require.Error(t, err)
}

func TestP2PBroadcast(t *testing.T) {
	testpartitioning.PartitionTest(t)
	if testing.Short() {
		t.Skip()
	}

	log := logging.TestingLog(t)
	cfg := config.GetDefaultLocal()
	cfg.NetAddress = "/ip4/127.0.0.1/tcp/0"
	cfg.P2PPersistPeerID = false

	netA, err := NewP2PNetwork(log, cfg, "")
	require.NoError(t, err)
	require.NoError(t, netA.Start())
	defer netA.Stop()
	addr, ok := netA.Address()
	require.True(t, ok)

	cfg.BootstrapPeers = []string{addr}
	netB, err := NewP2PNetwork(log, cfg, "")
	require.NoError(t, err)
	got := make(chan IncomingMessage, 1)
	netB.RegisterHandlers([]TaggedMessageHandler{{Tag: protocol.WitnessVoteTag, MessageHandler: HandlerFunc(func(msg IncomingMessage) OutgoingMessage {
		select {
		case got <- msg:
		default:
		}
		return Propagate(msg)
	})}})
	require.NoError(t, netB.Start())
	defer netB.Stop()

	require.Eventually(t, func() bool {
		return netA.PeerCount() == 1 && len(netA.service.ListPeersForTopic(p2p.TopicName(protocol.WitnessVoteTag))) == 1
	}, 10*time.Second, 50*time.Millisecond)

	// gossipsub may need a heartbeat before the mesh forms; keep publishing fresh payloads
	deadline := time.Now().Add(10 * time.Second)
	for i := byte(0); time.Now().Before(deadline); i++ {
		require.NoError(t, netA.Broadcast(context.Background(), protocol.WitnessVoteTag, []byte{'v', i}))
		select {
		case msg := <-got:
			require.Equal(t, protocol.WitnessVoteTag, msg.Tag)
			require.Equal(t, byte('v'), msg.Data[0])
			return
		case <-time.After(200 * time.Millisecond):
		}
	}
	t.Fatal("vote not delivered")
}

func TestP2PRequest(t *testing.T) {
	testpartitioning.PartitionTest(t)
	if testing.Short() {
		t.Skip()
	}

	log := logging.TestingLog(t)
	cfg := config.GetDefaultLocal()
	cfg.NetAddress = "/ip4/127.0.0.1/tcp/0"
	cfg.P2PPersistPeerID = false

	server, err := NewP2PNetwork(log, cfg, "")
	require.NoError(t, err)
	server.RegisterRequestHandler(protocol.BlockRequestTag, func(ctx context.Context, sender Peer, data []byte) ([]byte, error) {
		if len(data) == 0 {
			return nil, errors.New("empty request")
		}
		return append([]byte("block "), data...), nil
	})
	require.NoError(t, server.Start())
	defer server.Stop()
	addr, ok := server.Address()
	require.True(t, ok)

	cfg.BootstrapPeers = []string{addr}
	client, err := NewP2PNetwork(log, cfg, "")
	require.NoError(t, err)
	require.NoError(t, client.Start())
	defer client.Stop()

	require.Eventually(t, func() bool { return len(client.Peers()) == 1 }, 10*time.Second, 50*time.Millisecond)
	target := client.Peers()[0]

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	resp, err := client.Request(ctx, target, protocol.BlockRequestTag, []byte("12"))
	require.NoError(t, err)
	require.Equal(t, []byte("block 12"), resp)

	// the string form of the peer id works too
	resp, err = client.Request(ctx, server.service.ID().String(), protocol.BlockRequestTag, []byte("13"))
	require.NoError(t, err)
	require.Equal(t, []byte("block 13"), resp)

	_, err = client.Request(ctx, target, protocol.BlockRequestTag, nil)
	var remote *p2p.RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, "empty request", remote.Message)
}
