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

package p2p

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/algorand/go-deadlock"
	yamux "github.com/libp2p/go-yamux/v4"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	p2pyamux "github.com/libp2p/go-libp2p/p2p/muxer/yamux"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	"github.com/multiformats/go-multiaddr"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/logging"
)

// Service manages integration with libp2p
type Service struct {
	ctx    context.Context
	log    logging.Logger
	host   host.Host
	pubsub *pubsub.PubSub

	topics   map[string]*pubsub.Topic
	topicsMu deadlock.RWMutex
}

const dialTimeout = 30 * time.Second

// UserAgent identifies witness nodes to their peers.
var UserAgent = fmt.Sprintf("witnessd (%s/%s)", runtime.GOOS, runtime.GOARCH)

// MakeService creates a P2P service instance listening on cfg.NetAddress and
// able to join the given topics.
func MakeService(ctx context.Context, log logging.Logger, cfg config.Local, datadir string, topicNames []string) (*Service, error) {
	// load stored peer ID, or make ephemeral peer ID
	privKey, err := GetPrivKey(cfg, datadir)
	if err != nil {
		return nil, err
	}

	ycfg := yamux.DefaultConfig()
	ycfg.LogOutput = io.Discard
	// proposals carry whole blocks
	ycfg.MaxStreamWindowSize = 16 << 20

	h, err := libp2p.New(
		libp2p.Identity(privKey),
		libp2p.UserAgent(UserAgent),
		libp2p.Transport(tcp.NewTCPTransport),
		libp2p.Muxer(p2pyamux.ID, (*p2pyamux.Transport)(ycfg)),
		libp2p.ListenAddrStrings(cfg.NetAddress),
	)
	if err != nil {
		return nil, err
	}
	log.Infof("P2P service started: peer ID %s addrs %s", h.ID(), h.Addrs())

	ps, err := makePubSub(ctx, h, topicNames)
	if err != nil {
		h.Close()
		return nil, err
	}

	return &Service{
		ctx:    ctx,
		log:    log,
		host:   h,
		pubsub: ps,
		topics: make(map[string]*pubsub.Topic),
	}, nil
}

// Close shuts down the P2P service
func (s *Service) Close() error {
	return s.host.Close()
}

// Host returns the libp2p host
func (s *Service) Host() host.Host {
	return s.host
}

// ID returns the peer id of this node.
func (s *Service) ID() peer.ID {
	return s.host.ID()
}

// AddrInfo returns the dialable addresses of this node, each ending in /p2p/<id>.
func (s *Service) AddrInfo() ([]multiaddr.Multiaddr, error) {
	return peer.AddrInfoToP2pAddrs(&peer.AddrInfo{ID: s.host.ID(), Addrs: s.host.Addrs()})
}

// PeerCount returns the number of peers we hold a connection to.
func (s *Service) PeerCount() int {
	return len(s.host.Network().Peers())
}

// Peers returns the peers we hold a connection to.
func (s *Service) Peers() []peer.ID {
	return s.host.Network().Peers()
}

// DialPeers connects to every peer in addrs we are not yet connected to.
func (s *Service) DialPeers(ctx context.Context, addrs []peer.AddrInfo) {
	for i := range addrs {
		if len(s.host.Network().ConnsToPeer(addrs[i].ID)) > 0 {
			continue
		}
		if err := s.DialNode(ctx, &addrs[i]); err != nil {
			s.log.Warnf("failed to connect to peer %s: %v", addrs[i].ID, err)
		}
	}
}

// DialNode attempts to establish a connection to the provided peer
func (s *Service) DialNode(ctx context.Context, peer *peer.AddrInfo) error {
	// don't try connecting to ourselves
	if peer.ID == s.host.ID() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	return s.host.Connect(ctx, *peer)
}
