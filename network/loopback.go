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
	"fmt"
	"sync/atomic"
	"time"

	"github.com/algorand/go-deadlock"

	"github.com/witnessnet/go-witness/protocol"
)

// ErrPeerUnreachable is returned by LoopbackNode.Request when the peer is
// unknown, stopped or isolated.
var ErrPeerUnreachable = errors.New("peer unreachable")

// LoopbackHub connects GossipNodes living in one process. Broadcasts are
// delivered synchronously to the handlers of every other started node.
type LoopbackHub struct {
	mu    deadlock.RWMutex
	nodes []*LoopbackNode
}

// MakeLoopbackHub creates an empty hub.
func MakeLoopbackHub() *LoopbackHub {
	return &LoopbackHub{}
}

// MakeNode attaches a new node named name to the hub.
func (hub *LoopbackHub) MakeNode(name string) *LoopbackNode {
	n := &LoopbackNode{hub: hub, name: name, mux: MakeMultiplexer(), requests: make(map[protocol.Tag]RequestHandler)}
	hub.mu.Lock()
	hub.nodes = append(hub.nodes, n)
	hub.mu.Unlock()
	return n
}

func (hub *LoopbackHub) peers(self *LoopbackNode) []*LoopbackNode {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	out := make([]*LoopbackNode, 0, len(hub.nodes))
	for _, n := range hub.nodes {
		if n != self && n.reachable() {
			out = append(out, n)
		}
	}
	return out
}

func (hub *LoopbackHub) lookup(name string) *LoopbackNode {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	for _, n := range hub.nodes {
		if n.name == name {
			return n
		}
	}
	return nil
}

// LoopbackNode is a GossipNode attached to a LoopbackHub.
type LoopbackNode struct {
	hub      *LoopbackHub
	name     string
	mux      *Multiplexer
	running  atomic.Bool
	isolated atomic.Bool

	requestsMu deadlock.RWMutex
	requests   map[protocol.Tag]RequestHandler
}

func (n *LoopbackNode) reachable() bool {
	return n.running.Load() && !n.isolated.Load()
}

// Isolate cuts the node off the hub (or reconnects it). Messages sent to or
// from an isolated node are dropped.
func (n *LoopbackNode) Isolate(isolated bool) {
	n.isolated.Store(isolated)
}

// Address implements GossipNode.
func (n *LoopbackNode) Address() (string, bool) {
	return n.name, true
}

// Broadcast implements GossipNode.
func (n *LoopbackNode) Broadcast(ctx context.Context, tag protocol.Tag, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !n.reachable() {
		return nil
	}
	countSent(tag)
	for _, peer := range n.hub.peers(n) {
		msg := IncomingMessage{
			Sender:   n.name,
			Tag:      tag,
			Data:     append([]byte(nil), data...),
			Net:      peer,
			Received: time.Now().UnixNano(),
		}
		countReceived(tag)
		peer.mux.Handle(msg)
	}
	return nil
}

// RegisterHandlers implements GossipNode.
func (n *LoopbackNode) RegisterHandlers(dispatch []TaggedMessageHandler) {
	n.mux.RegisterHandlers(dispatch)
}

// ClearHandlers implements GossipNode.
func (n *LoopbackNode) ClearHandlers() {
	n.mux.ClearHandlers(nil)
}

// PeerCount implements GossipNode.
func (n *LoopbackNode) PeerCount() int {
	if !n.reachable() {
		return 0
	}
	return len(n.hub.peers(n))
}

// Peers implements GossipNode. Peers are named by their node names.
func (n *LoopbackNode) Peers() []Peer {
	if !n.reachable() {
		return nil
	}
	nodes := n.hub.peers(n)
	peers := make([]Peer, len(nodes))
	for i, p := range nodes {
		peers[i] = p.name
	}
	return peers
}

// Request implements GossipNode. The peer's handler runs on the calling goroutine.
func (n *LoopbackNode) Request(ctx context.Context, p Peer, tag protocol.Tag, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, ok := p.(string)
	if !ok {
		return nil, fmt.Errorf("unknown peer type %T", p)
	}
	target := n.hub.lookup(name)
	if !n.reachable() || target == nil || target == n || !target.reachable() {
		return nil, fmt.Errorf("%w: %s", ErrPeerUnreachable, name)
	}

	target.requestsMu.RLock()
	handler := target.requests[tag]
	target.requestsMu.RUnlock()
	if handler == nil {
		return nil, fmt.Errorf("%s does not serve %s requests", name, tag)
	}
	countSent(tag)
	countReceived(tag)
	return handler(ctx, n.name, append([]byte(nil), data...))
}

// RegisterRequestHandler implements GossipNode.
func (n *LoopbackNode) RegisterRequestHandler(tag protocol.Tag, handler RequestHandler) {
	n.requestsMu.Lock()
	defer n.requestsMu.Unlock()
	n.requests[tag] = handler
}

// Start implements GossipNode.
func (n *LoopbackNode) Start() error {
	n.running.Store(true)
	return nil
}

// Stop implements GossipNode.
func (n *LoopbackNode) Stop() {
	n.running.Store(false)
}
