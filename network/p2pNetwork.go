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
	"sync"
	"time"

	"github.com/algorand/go-deadlock"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	madns "github.com/multiformats/go-multiaddr-dns"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/logging"
	"github.com/witnessnet/go-witness/network/p2p"
	"github.com/witnessnet/go-witness/protocol"
)

const meshInterval = 30 * time.Second

// P2PNetwork implements the GossipNode interface over libp2p gossipsub,
// one topic per message tag.
type P2PNetwork struct {
	service   *p2p.Service
	log       logging.Logger
	config    config.Local
	handler   *Multiplexer
	bootstrap []multiaddr.Multiaddr
	resolver  *madns.Resolver
	topicTags []protocol.Tag

	ctx       context.Context
	ctxCancel context.CancelFunc
	wg        sync.WaitGroup

	subsMu deadlock.Mutex
	subs   []*pubsub.Subscription
}

// gossipTags are the tags carried over pubsub.
func gossipTags() []protocol.Tag {
	tags := make([]protocol.Tag, 0, len(protocol.TagList))
	for _, tag := range protocol.TagList {
		if tag != protocol.UnknownMsgTag {
			tags = append(tags, tag)
		}
	}
	return tags
}

// NewP2PNetwork returns an instance of GossipNode that uses the p2p.Service
func NewP2PNetwork(log logging.Logger, cfg config.Local, datadir string) (*P2PNetwork, error) {
	bootstrap, err := p2p.ParseMultiaddrs(cfg.BootstrapPeers)
	if err != nil {
		return nil, err
	}

	net := &P2PNetwork{
		log:       log,
		config:    cfg,
		handler:   MakeMultiplexer(),
		bootstrap: bootstrap,
		resolver:  madns.DefaultResolver,
		topicTags: gossipTags(),
	}
	net.ctx, net.ctxCancel = context.WithCancel(context.Background())

	topicNames := make([]string, len(net.topicTags))
	for i, tag := range net.topicTags {
		topicNames[i] = p2p.TopicName(tag)
	}
	p2p.EnableP2PLogging(log, logging.Warn)
	net.service, err = p2p.MakeService(net.ctx, log, cfg, datadir, topicNames)
	if err != nil {
		net.ctxCancel()
		return nil, err
	}
	return net, nil
}

// Start threads, listen on sockets.
func (n *P2PNetwork) Start() error {
	for _, tag := range n.topicTags {
		topic := p2p.TopicName(tag)
		sub, err := n.service.Subscribe(topic, n.topicValidator(tag))
		if err != nil {
			return err
		}
		n.subsMu.Lock()
		n.subs = append(n.subs, sub)
		n.subsMu.Unlock()
		n.log.Debugf("Subscribed to topic %s", topic)

		n.wg.Add(1)
		go n.topicHandleLoop(sub)
	}

	n.wg.Add(1)
	go n.meshThread()
	return nil
}

// Stop closes sockets and stop threads.
func (n *P2PNetwork) Stop() {
	n.handler.ClearHandlers(nil)
	n.subsMu.Lock()
	for _, sub := range n.subs {
		sub.Cancel()
	}
	n.subs = nil
	n.subsMu.Unlock()

	n.ctxCancel()
	if err := n.service.Close(); err != nil {
		n.log.Warnf("Error closing p2p service: %v", err)
	}
	n.wg.Wait()
}

// meshThread keeps us connected to the bootstrap peers.
func (n *P2PNetwork) meshThread() {
	defer n.wg.Done()
	timer := time.NewTicker(meshInterval)
	defer timer.Stop()
	for {
		peers, err := p2p.ResolveAddrInfos(n.ctx, n.resolver, n.bootstrap)
		if err != nil && n.ctx.Err() == nil {
			n.log.Warnf("Error resolving bootstrap peers: %v", err)
		}
		n.service.DialPeers(n.ctx, peers)
		networkPeers.Set(uint64(n.service.PeerCount()))
		select {
		case <-timer.C:
		case <-n.ctx.Done():
			return
		}
	}
}

// Address returns the first dialable address of this node.
func (n *P2PNetwork) Address() (string, bool) {
	addrs, err := n.service.AddrInfo()
	if err != nil || len(addrs) == 0 {
		return "", false
	}
	return addrs[0].String(), true
}

// Broadcast sends a message to every peer subscribed to the tag's topic.
func (n *P2PNetwork) Broadcast(ctx context.Context, tag protocol.Tag, data []byte) error {
	countSent(tag)
	return n.service.Publish(ctx, p2p.TopicName(tag), data)
}

// RegisterHandlers adds to the set of given message handlers.
func (n *P2PNetwork) RegisterHandlers(dispatch []TaggedMessageHandler) {
	n.handler.RegisterHandlers(dispatch)
}

// ClearHandlers deregisters all the existing message handlers.
func (n *P2PNetwork) ClearHandlers() {
	n.handler.ClearHandlers(nil)
}

// PeerCount returns the number of connected peers.
func (n *P2PNetwork) PeerCount() int {
	return n.service.PeerCount()
}

// Peers returns the connected peers as peer.ID values.
func (n *P2PNetwork) Peers() []Peer {
	ids := n.service.Peers()
	peers := make([]Peer, len(ids))
	for i, id := range ids {
		peers[i] = id
	}
	return peers
}

// Request sends data to the given peer, a peer.ID or its string form.
func (n *P2PNetwork) Request(ctx context.Context, p Peer, tag protocol.Tag, data []byte) ([]byte, error) {
	var id peer.ID
	switch p := p.(type) {
	case peer.ID:
		id = p
	case string:
		decoded, err := peer.Decode(p)
		if err != nil {
			return nil, err
		}
		id = decoded
	default:
		return nil, fmt.Errorf("unknown peer type %T", p)
	}
	countSent(tag)
	resp, err := n.service.Request(ctx, id, tag, data)
	if err != nil {
		return nil, err
	}
	countReceived(tag)
	return resp, nil
}

// RegisterRequestHandler serves requests with the given tag over a dedicated stream protocol.
func (n *P2PNetwork) RegisterRequestHandler(tag protocol.Tag, handler RequestHandler) {
	n.service.SetRequestHandler(tag, func(ctx context.Context, from peer.ID, req []byte) ([]byte, error) {
		countReceived(tag)
		return handler(ctx, from, req)
	})
}

// topicHandleLoop drains a subscription. All work is done by the topic validator.
func (n *P2PNetwork) topicHandleLoop(sub *pubsub.Subscription) {
	defer n.wg.Done()
	for {
		_, err := sub.Next(n.ctx)
		if err != nil {
			if !errors.Is(err, pubsub.ErrSubscriptionCancelled) && !errors.Is(err, context.Canceled) {
				n.log.Errorf("Error reading from subscription to %s: %v", sub.Topic(), err)
			}
			sub.Cancel()
			return
		}
	}
}

// topicValidator hands incoming messages to the registered handler and turns
// its verdict into a pubsub validation result.
func (n *P2PNetwork) topicValidator(tag protocol.Tag) pubsub.ValidatorEx {
	return func(ctx context.Context, peerID peer.ID, msg *pubsub.Message) pubsub.ValidationResult {
		// if we sent the message, don't validate it
		if msg.ReceivedFrom == n.service.ID() {
			return pubsub.ValidationAccept
		}
		countReceived(tag)

		inmsg := IncomingMessage{
			Sender:   peerID.String(),
			Tag:      tag,
			Data:     msg.Data,
			Net:      n,
			Received: time.Now().UnixNano(),
		}
		outmsg := n.handler.Handle(inmsg)
		switch outmsg.Action {
		case Ignore:
			return pubsub.ValidationIgnore
		case Disconnect:
			return pubsub.ValidationReject
		case Accept:
			return pubsub.ValidationAccept
		default:
			n.log.Warnf("handler returned invalid action %d", outmsg.Action)
			return pubsub.ValidationIgnore
		}
	}
}
