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

package catchup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/witnessnet/go-witness/network"
	"github.com/witnessnet/go-witness/testpartitioning"
)

type mockPeersRetriever struct {
	peers []network.Peer
}

func (m *mockPeersRetriever) Peers() []network.Peer {
	return m.peers
}

func TestPeerSelectorPrefersFastPeers(t *testing.T) {
	testpartitioning.PartitionTest(t)

	net := &mockPeersRetriever{peers: []network.Peer{"a", "b", "c"}}
	ps := makePeerSelector(net)

	_, err := ps.getNextPeer()
	require.NoError(t, err)
	require.Len(t, ps.pools, 1)

	ps.rankPeer("a", peerRankDownloadFailed)
	ps.rankPeer("b", peerRankInvalidDownload)
	_, rank := ps.rankPeer("c", ps.peerDownloadDurationToRank(100*time.Millisecond))
	require.Less(t, rank, peerRankDownloadFailed)

	for i := 0; i < 20; i++ {
		peer, err := ps.getNextPeer()
		require.NoError(t, err)
		require.Equal(t, "c", peer)
	}

	// unknown peers are not ranked
	old, rank := ps.rankPeer("zz", peerRankInitial)
	require.Equal(t, -1, old)
	require.Equal(t, -1, rank)
}

func TestPeerSelectorRefresh(t *testing.T) {
	testpartitioning.PartitionTest(t)

	net := &mockPeersRetriever{}
	ps := makePeerSelector(net)
	_, err := ps.getNextPeer()
	require.ErrorIs(t, err, errPeerSelectorNoPeerPoolsAvailable)

	net.peers = []network.Peer{"a", "b"}
	_, err = ps.getNextPeer()
	require.NoError(t, err)
	ps.rankPeer("a", peerRankDownloadFailed)

	// b disconnects; a keeps its rank
	net.peers = []network.Peer{"a"}
	peer, err := ps.getNextPeer()
	require.NoError(t, err)
	require.Equal(t, "a", peer)
	require.Len(t, ps.pools, 1)
	require.Equal(t, peerRankDownloadFailed, ps.pools[0].rank)
}

func TestHistoricStatsAverages(t *testing.T) {
	testpartitioning.PartitionTest(t)

	hs := makeHistoricStatus(2)
	require.Equal(t, 100, hs.push(100))
	require.Equal(t, 150, hs.push(200))
	require.Equal(t, 250, hs.push(300))
	require.Equal(t, peerRankInvalidDownload, hs.push(peerRankInvalidDownload))
	require.Len(t, hs.rankSamples, 2)
}

func TestDownloadDurationToRank(t *testing.T) {
	testpartitioning.PartitionTest(t)

	require.Equal(t, peerRankLowBlockTime, downloadDurationToRank(time.Millisecond, lowBlockDownloadThreshold, highBlockDownloadThreshold, peerRankLowBlockTime, peerRankHighBlockTime))
	require.Equal(t, peerRankHighBlockTime, downloadDurationToRank(time.Minute, lowBlockDownloadThreshold, highBlockDownloadThreshold, peerRankLowBlockTime, peerRankHighBlockTime))
	mid := downloadDurationToRank(4*time.Second, lowBlockDownloadThreshold, highBlockDownloadThreshold, peerRankLowBlockTime, peerRankHighBlockTime)
	require.Greater(t, mid, peerRankLowBlockTime)
	require.Less(t, mid, peerRankHighBlockTime)
}
