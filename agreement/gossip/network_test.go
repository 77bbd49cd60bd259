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

package gossip

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/logging"
	"github.com/witnessnet/go-witness/network"
	"github.com/witnessnet/go-witness/protocol"
	"github.com/witnessnet/go-witness/testpartitioning"
)

func TestWrapNetworkDelivers(t *testing.T) {
	testpartitioning.PartitionTest(t)

	hub := network.MakeLoopbackHub()
	a := hub.MakeNode("a")
	b := hub.MakeNode("b")
	require.NoError(t, a.Start())
	require.NoError(t, b.Start())
	defer a.Stop()
	defer b.Stop()

	cfg := config.GetDefaultLocal()
	netB := WrapNetwork(b, logging.TestingLog(t), cfg, nil)
	netB.Start()
	netA := WrapNetwork(a, logging.TestingLog(t), cfg, nil)

	require.NoError(t, netA.Broadcast(context.Background(), protocol.WitnessVoteTag, []byte("vote")))
	msg := <-netB.Messages(protocol.WitnessVoteTag)
	require.Equal(t, []byte("vote"), msg.Data)
	require.Equal(t, "a", msg.Sender)
	require.Empty(t, netB.Messages(protocol.WitnessProposalTag))
}

func TestWrapNetworkVerdicts(t *testing.T) {
	testpartitioning.PartitionTest(t)

	cfg := config.GetDefaultLocal()
	cfg.IncomingMessageBufferSize = 1
	bad := errors.New("bad signature")
	validate := func(tag protocol.Tag, data []byte) error {
		if string(data) == "forged" {
			return bad
		}
		return nil
	}
	impl := WrapNetwork(network.MakeLoopbackHub().MakeNode("x"), logging.TestingLog(t), cfg, validate).(*networkImpl)

	in := func(tag protocol.Tag, data string) network.ForwardingPolicy {
		return impl.processMessage(network.IncomingMessage{Tag: tag, Data: []byte(data)}).Action
	}
	require.Equal(t, network.Disconnect, in(protocol.WitnessVoteTag, "forged"))
	require.Equal(t, network.Accept, in(protocol.WitnessVoteTag, "first"))
	// the queue holds one message
	require.Equal(t, network.Ignore, in(protocol.WitnessVoteTag, "second"))
	require.Equal(t, network.Ignore, in(protocol.TxnTag, "tx"))
}
