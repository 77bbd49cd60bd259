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

package agreement

import (
	"context"
	"time"

	"github.com/algorand/go-deadlock"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/protocol"
)

func testSecrets(n int) []*crypto.SignatureSecrets {
	out := make([]*crypto.SignatureSecrets, n)
	for i := range out {
		var seed crypto.Seed
		seed[0] = byte(i + 1)
		seed[1] = 0xa9
		out[i] = crypto.GenerateSignatureSecrets(seed)
	}
	return out
}

func publicKeys(secrets []*crypto.SignatureSecrets) []crypto.PublicKey {
	out := make([]crypto.PublicKey, len(secrets))
	for i, s := range secrets {
		out[i] = s.SignatureVerifier
	}
	return out
}

// testProto returns consensus parameters with short timeouts.
func testProto() config.ConsensusParams {
	proto := config.DefaultConsensusParams()
	proto.RoundChangeTimeout = 300 * time.Millisecond
	proto.BlockTimeout = 500 * time.Millisecond
	proto.VoteBlockTimeout = 500 * time.Millisecond
	proto.CommitTimeout = 5 * time.Second
	proto.AssemblyRetryInterval = 20 * time.Millisecond
	proto.EmptyBlockPolicy = config.EmptyBlockPropose
	return proto
}

// testHub connects testNetworks in memory. Broadcasts reach every other
// network that is not isolated; full queues drop messages.
type testHub struct {
	mu    deadlock.Mutex
	nodes []*testNetwork
}

type testNetwork struct {
	hub      *testHub
	name     string
	channels map[protocol.Tag]chan Message
	isolated bool
}

func (h *testHub) makeNetwork(name string) *testNetwork {
	n := &testNetwork{hub: h, name: name, channels: make(map[protocol.Tag]chan Message)}
	for _, tag := range protocol.AgreementTags {
		n.channels[tag] = make(chan Message, 1000)
	}
	h.mu.Lock()
	h.nodes = append(h.nodes, n)
	h.mu.Unlock()
	return n
}

func (h *testHub) isolate(n *testNetwork, isolated bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n.isolated = isolated
}

func (n *testNetwork) Messages(tag protocol.Tag) <-chan Message {
	return n.channels[tag]
}

func (n *testNetwork) Broadcast(ctx context.Context, tag protocol.Tag, data []byte) error {
	n.hub.mu.Lock()
	defer n.hub.mu.Unlock()
	if n.isolated {
		return nil
	}
	for _, peer := range n.hub.nodes {
		if peer == n || peer.isolated {
			continue
		}
		select {
		case peer.channels[tag] <- Message{Sender: n.name, Data: append([]byte(nil), data...)}:
		default:
		}
	}
	return nil
}

func (n *testNetwork) Start() {}
