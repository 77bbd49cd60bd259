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

// Package network delivers tagged messages between nodes. Delivery is
// best-effort and at-most-once; callers that need reliability retry on
// their own timeouts.
package network

import (
	"context"

	"github.com/witnessnet/go-witness/protocol"
)

// Peer opaque interface for referring to a neighbor in the network
type Peer interface{}

// GossipNode represents a node in the gossip network
type GossipNode interface {
	// Address returns the address this node listens on, if any.
	Address() (string, bool)

	// Broadcast sends data to every peer subscribed to tag.
	Broadcast(ctx context.Context, tag protocol.Tag, data []byte) error

	// RegisterHandlers adds to the set of given message handlers.
	RegisterHandlers(dispatch []TaggedMessageHandler)

	// ClearHandlers deregisters all the existing message handlers.
	ClearHandlers()

	// PeerCount returns the number of connected peers.
	PeerCount() int

	// Peers returns the connected peers, in no particular order.
	Peers() []Peer

	// Request sends data to peer as a request with the given tag and
	// returns the peer's response.
	Request(ctx context.Context, peer Peer, tag protocol.Tag, data []byte) ([]byte, error)

	// RegisterRequestHandler serves requests with the given tag.
	RegisterRequestHandler(tag protocol.Tag, handler RequestHandler)

	// Start threads, listen on sockets.
	Start() error

	// Close sockets. Stop threads.
	Stop()
}

// IncomingMessage represents a message arriving from some peer in our p2p network
type IncomingMessage struct {
	Sender Peer
	Tag    Tag
	Data   []byte
	Net    GossipNode

	// Received is time.Time.UnixNano()
	Received int64
}

// Tag is a short string (2 bytes) marking a type of message
type Tag = protocol.Tag

// OutgoingMessage represents the verdict of a handler on an incoming message.
type OutgoingMessage struct {
	Action ForwardingPolicy
}

// ForwardingPolicy is an enum indicating what to do with a handled message
type ForwardingPolicy int

const (
	// Ignore - discard (don't forward)
	Ignore ForwardingPolicy = iota

	// Disconnect - the sender misbehaved; drop the message and penalize the sender
	Disconnect

	// Accept - accept the message and let the network relay it
	Accept
)

// MessageHandler takes a IncomingMessage (e.g., vote, transaction), processes it, and returns
// the forwarding verdict. Handlers run on network threads and must not block.
type MessageHandler interface {
	Handle(message IncomingMessage) OutgoingMessage
}

// HandlerFunc represents an implementation of the MessageHandler interface
type HandlerFunc func(message IncomingMessage) OutgoingMessage

// Handle implements MessageHandler.Handle, calling the handler with the IncomingMessage and returning the OutgoingMessage
func (f HandlerFunc) Handle(message IncomingMessage) OutgoingMessage {
	return f(message)
}

// RequestHandler answers a request from sender. An error is reported back to
// the requester in place of a response.
type RequestHandler func(ctx context.Context, sender Peer, data []byte) ([]byte, error)

// TaggedMessageHandler receives one type of broadcast messages
type TaggedMessageHandler struct {
	Tag
	MessageHandler
}

// Propagate is a convenience function to save typing in the common case of a message handler telling us to relay an incoming message
func Propagate(msg IncomingMessage) OutgoingMessage {
	return OutgoingMessage{Action: Accept}
}
