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
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	pubsub_pb "github.com/libp2p/go-libp2p-pubsub/pb"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"golang.org/x/crypto/blake2b"

	"github.com/witnessnet/go-witness/protocol"
)

func init() {
	// witness networks are small; keep every node in the mesh
	pubsub.GossipSubD = 8
	pubsub.GossipSubDlo = 4
	pubsub.GossipSubDhi = 12
	pubsub.GossipSubDlazy = 8
	pubsub.GossipSubHistoryLength = 10
}

const (
	gossipScoreThreshold             = -500
	publishScoreThreshold            = -1000
	graylistScoreThreshold           = -2500
	acceptPXScoreThreshold           = 1000
	opportunisticGraftScoreThreshold = 3.5
)

// TopicName returns the pubsub topic carrying messages with the given tag.
func TopicName(tag protocol.Tag) string {
	return "/witness/" + string(tag) + "/1.0.0"
}

func topicScoreParams() *pubsub.TopicScoreParams {
	return &pubsub.TopicScoreParams{
		TopicWeight: 0.1,

		TimeInMeshWeight:  0.0002778, // ~1/3600
		TimeInMeshQuantum: time.Second,
		TimeInMeshCap:     1,

		FirstMessageDeliveriesWeight: 0.5, // max value is 50
		FirstMessageDeliveriesDecay:  pubsub.ScoreParameterDecay(10 * time.Minute),
		FirstMessageDeliveriesCap:    100, // 100 messages in 10 minutes

		// invalid messages decay after 1 hour
		InvalidMessageDeliveriesWeight: -1000,
		InvalidMessageDeliveriesDecay:  pubsub.ScoreParameterDecay(time.Hour),
	}
}

func makePubSub(ctx context.Context, host host.Host, topicNames []string) (*pubsub.PubSub, error) {
	topics := make(map[string]*pubsub.TopicScoreParams, len(topicNames))
	for _, name := range topicNames {
		topics[name] = topicScoreParams()
	}
	var maxSize uint64
	for _, tag := range protocol.TagList {
		if s := tag.MaxMessageSize(); s > maxSize {
			maxSize = s
		}
	}

	options := []pubsub.Option{
		pubsub.WithPeerScore(&pubsub.PeerScoreParams{
			DecayInterval: pubsub.DefaultDecayInterval,
			DecayToZero:   pubsub.DefaultDecayToZero,

			AppSpecificScore: func(p peer.ID) float64 { return 1000 },

			Topics: topics,
		},
			&pubsub.PeerScoreThresholds{
				GossipThreshold:             gossipScoreThreshold,
				PublishThreshold:            publishScoreThreshold,
				GraylistThreshold:           graylistScoreThreshold,
				AcceptPXThreshold:           acceptPXScoreThreshold,
				OpportunisticGraftThreshold: opportunisticGraftScoreThreshold,
			},
		),
		pubsub.WithSubscriptionFilter(pubsub.WrapLimitSubscriptionFilter(pubsub.NewAllowlistSubscriptionFilter(topicNames...), 100)),
		pubsub.WithMessageIdFn(msgID),
		pubsub.WithMaxMessageSize(int(maxSize)),
		pubsub.WithValidateQueueSize(256),
	}

	return pubsub.NewGossipSub(ctx, host, options...)
}

// msgID identifies messages by content so a vote or transaction relayed by
// several peers is delivered once.
func msgID(m *pubsub_pb.Message) string {
	h := blake2b.Sum256(m.Data)
	return string(h[:])
}

// getOrCreateTopic returns a topic if it was already joined previously and otherwise creates it and adds it to the topics map
func (s *Service) getOrCreateTopic(topicName string) (*pubsub.Topic, error) {
	s.topicsMu.RLock()
	topic, ok := s.topics[topicName]
	s.topicsMu.RUnlock()
	if ok {
		return topic, nil
	}

	s.topicsMu.Lock()
	defer s.topicsMu.Unlock()
	// check again in case it was created while we were waiting for the lock
	if _, ok := s.topics[topicName]; !ok {
		psTopic, err := s.pubsub.Join(topicName)
		if err != nil {
			return nil, err
		}
		s.topics[topicName] = psTopic
	}
	return s.topics[topicName], nil
}

// Subscribe returns a subscription to the given topic. val runs inline on
// every message before it is delivered or relayed.
func (s *Service) Subscribe(topic string, val pubsub.ValidatorEx) (*pubsub.Subscription, error) {
	if err := s.pubsub.RegisterTopicValidator(topic, val, pubsub.WithValidatorInline(true)); err != nil {
		return nil, err
	}
	t, err := s.getOrCreateTopic(topic)
	if err != nil {
		return nil, err
	}
	return t.Subscribe()
}

// Unsubscribe removes the validator registered for topic.
func (s *Service) Unsubscribe(topic string) error {
	return s.pubsub.UnregisterTopicValidator(topic)
}

// Publish publishes data to the given topic
func (s *Service) Publish(ctx context.Context, topic string, data []byte) error {
	t, err := s.getOrCreateTopic(topic)
	if err != nil {
		return err
	}
	return t.Publish(ctx, data)
}

// ListPeersForTopic returns a list of peers subscribed to the given topic, exported for access from the network package
func (s *Service) ListPeersForTopic(topic string) []peer.ID {
	return s.pubsub.ListPeers(topic)
}
