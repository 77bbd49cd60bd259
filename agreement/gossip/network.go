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

// Package gossip adapts the interface of network.GossipNode to
// agreement.Network.
package gossip

import (
	"context"

	"github.com/witnessnet/go-witness/agreement"
	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/logging"
	"github.com/witnessnet/go-witness/network"
	"github.com/witnessnet/go-witness/protocol"
	"github.com/witnessnet/go-witness/util/metrics"
)

var messagesDropped = metrics.MakeCounter(metrics.AgreementMessagesDropped, "reason")

// Validator checks an agreement message before it is queued and relayed.
type Validator func(protocol.Tag, []byte) error

// networkImpl wraps network.GossipNode to provide a compatible interface with agreement.
type networkImpl struct {
	channels map[protocol.Tag]chan agreement.Message

	net      network.GossipNode
	log      logging.Logger
	validate Validator
}

// WrapNetwork adapts a network.GossipNode into an agreement.Network. Each
// agreement tag gets a queue of cfg.IncomingMessageBufferSize messages.
// Messages failing validate are neither queued nor relayed; validate may be nil.
func WrapNetwork(net network.GossipNode, log logging.Logger, cfg config.Local, validate Validator) agreement.Network {
	i := &networkImpl{
		channels: make(map[protocol.Tag]chan agreement.Message, len(protocol.AgreementTags)),
		net:      net,
		log:      log,
		validate: validate,
	}
	for _, tag := range protocol.AgreementTags {
		i.channels[tag] = make(chan agreement.Message, cfg.IncomingMessageBufferSize)
	}
	return i
}

func (i *networkImpl) Start() {
	handlers := make([]network.TaggedMessageHandler, 0, len(protocol.AgreementTags))
	for _, tag := range protocol.AgreementTags {
		handlers = append(handlers, network.TaggedMessageHandler{Tag: tag, MessageHandler: network.HandlerFunc(i.processMessage)})
	}
	i.net.RegisterHandlers(handlers)
}

func (i *networkImpl) processMessage(raw network.IncomingMessage) network.OutgoingMessage {
	ch, ok := i.channels[raw.Tag]
	if !ok {
		return network.OutgoingMessage{Action: network.Ignore}
	}
	if i.validate != nil {
		if err := i.validate(raw.Tag, raw.Data); err != nil {
			messagesDropped.Inc(map[string]string{"reason": "invalid"})
			i.log.Debugf("gossip: rejecting %s from %v: %v", raw.Tag, raw.Sender, err)
			return network.OutgoingMessage{Action: network.Disconnect}
		}
	}

	select {
	case ch <- agreement.Message{Sender: raw.Sender, Data: raw.Data}:
		return network.OutgoingMessage{Action: network.Accept}
	default:
		messagesDropped.Inc(map[string]string{"reason": "queue_full"})
		i.log.Debugf("gossip: %s queue full, dropping message from %v", raw.Tag, raw.Sender)
		return network.OutgoingMessage{Action: network.Ignore}
	}
}

func (i *networkImpl) Messages(t protocol.Tag) <-chan agreement.Message {
	return i.channels[t]
}

func (i *networkImpl) Broadcast(ctx context.Context, t protocol.Tag, data []byte) error {
	return i.net.Broadcast(ctx, t, data)
}
