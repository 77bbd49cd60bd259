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
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/algorand/go-deadlock"

	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/network"
)

const (
	// peerRankInitial is the rank of a peer we have no history for.
	peerRankInitial       = 0
	peerRankLowBlockTime  = 1
	peerRankHighBlockTime = 399

	// peerRankDownloadFailed is used for responses which could be temporary, such as a peer
	// that does not have the block yet
	peerRankDownloadFailed = 900
	// peerRankInvalidDownload is used for responses which are likely to be invalid - whether it's serving the wrong content
	// or attempting to serve malicious content
	peerRankInvalidDownload = 1000

	// once a block is downloaded, the download duration is clamped into the range of [lowBlockDownloadThreshold..highBlockDownloadThreshold] and
	// then mapped into the a ranking range.
	lowBlockDownloadThreshold  = 50 * time.Millisecond
	highBlockDownloadThreshold = 8 * time.Second

	// peerHistoryWindowSize is the lookback window of rank samples averaged per peer
	peerHistoryWindowSize = 20
)

var errPeerSelectorNoPeerPoolsAvailable = errors.New("no peer pools available")

// peersRetriever is the subset of network.GossipNode the peerSelector needs.
type peersRetriever interface {
	Peers() []network.Peer
}

// peerPoolEntry is a single peer in a pool along with its rank history.
type peerPoolEntry struct {
	peer    network.Peer
	history *historicStats
}

// peerPool is a single pool of peers that shares the same rank.
type peerPool struct {
	rank  int
	peers []peerPoolEntry
}

// peerSelector is a helper struct used to select the next peer to ask for a block.
// Unlike the underlying network Peers(), it allows the client to provide feedback
// regarding the peer's performance, and to have the subsequent query(s) take
// advantage of that intel.
type peerSelector struct {
	mu    deadlock.Mutex
	net   peersRetriever
	pools []peerPool
}

// historicStats averages the last windowSize ranks given to a peer, so an
// occasional slow or failed download does not dominate its rank.
type historicStats struct {
	windowSize  int
	rankSamples []int
	rankSum     int
}

func makeHistoricStatus(windowSize int) *historicStats {
	return &historicStats{windowSize: windowSize}
}

// push records a rank sample and returns the averaged rank. Invalid
// downloads are not averaged away.
func (hs *historicStats) push(value int) int {
	if value == peerRankInvalidDownload {
		return value
	}
	hs.rankSamples = append(hs.rankSamples, value)
	hs.rankSum += value
	if len(hs.rankSamples) > hs.windowSize {
		hs.rankSum -= hs.rankSamples[0]
		hs.rankSamples = hs.rankSamples[1:]
	}
	return hs.rankSum / len(hs.rankSamples)
}

func makePeerSelector(net peersRetriever) *peerSelector {
	return &peerSelector{net: net}
}

// getNextPeer returns the next peer. It randomly selects a peer from the pool
// with the lowest rank value.
func (ps *peerSelector) getNextPeer() (network.Peer, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.refreshAvailablePeers()
	for _, pool := range ps.pools {
		if len(pool.peers) > 0 {
			peerIdx := crypto.RandUint64() % uint64(len(pool.peers))
			return pool.peers[peerIdx].peer, nil
		}
	}
	return nil, errPeerSelectorNoPeerPoolsAvailable
}

// rankPeer ranks a given peer and returns its old and new rank. The new rank
// may differ from the input, being averaged with the peer's history.
func (ps *peerSelector) rankPeer(peer network.Peer, rank int) (int, int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	poolIdx, peerIdx := ps.findPeer(peer)
	if poolIdx < 0 || peerIdx < 0 {
		return -1, -1
	}
	pool := ps.pools[poolIdx]
	initialRank := pool.rank
	entry := pool.peers[peerIdx]
	rank = entry.history.push(rank)
	if rank != initialRank {
		ps.removeAt(poolIdx, peerIdx)
		ps.addToPool(entry.peer, rank, entry.history)
		ps.sort()
	}
	return initialRank, rank
}

// peerDownloadDurationToRank calculates the rank for a block download time.
func (ps *peerSelector) peerDownloadDurationToRank(blockDownloadDuration time.Duration) int {
	return downloadDurationToRank(blockDownloadDuration, lowBlockDownloadThreshold, highBlockDownloadThreshold, peerRankLowBlockTime, peerRankHighBlockTime)
}

func (ps *peerSelector) removeAt(poolIdx, peerIdx int) {
	pool := ps.pools[poolIdx]
	if len(pool.peers) > 1 {
		pool.peers = append(pool.peers[:peerIdx], pool.peers[peerIdx+1:]...)
		ps.pools[poolIdx] = pool
	} else {
		// the last peer was removed from the pool; delete this pool.
		ps.pools = append(ps.pools[:poolIdx], ps.pools[poolIdx+1:]...)
	}
}

// addToPool adds a given peer to the pool of its rank, creating the pool if needed.
func (ps *peerSelector) addToPool(peer network.Peer, rank int, history *historicStats) {
	for i, pool := range ps.pools {
		if pool.rank == rank {
			ps.pools[i].peers = append(pool.peers, peerPoolEntry{peer: peer, history: history})
			return
		}
	}
	ps.pools = append(ps.pools, peerPool{rank: rank, peers: []peerPoolEntry{{peer: peer, history: history}}})
}

// sort the pools array in an ascending order according to the rank of each pool.
func (ps *peerSelector) sort() {
	sort.SliceStable(ps.pools, func(i, j int) bool {
		return ps.pools[i].rank < ps.pools[j].rank
	})
}

// peerAddress returns a comparable identity for peer.
func peerAddress(peer network.Peer) string {
	if s, ok := peer.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(peer)
}

// refreshAvailablePeers adds newly connected peers at the initial rank and
// drops peers the network no longer reports.
func (ps *peerSelector) refreshAvailablePeers() {
	connected := make(map[string]network.Peer)
	for _, peer := range ps.net.Peers() {
		connected[peerAddress(peer)] = peer
	}

	pools := ps.pools[:0]
	for _, pool := range ps.pools {
		kept := pool.peers[:0]
		for _, entry := range pool.peers {
			addr := peerAddress(entry.peer)
			if _, ok := connected[addr]; ok {
				delete(connected, addr)
				kept = append(kept, entry)
			}
		}
		if len(kept) > 0 {
			pool.peers = kept
			pools = append(pools, pool)
		}
	}
	ps.pools = pools
	for _, peer := range connected {
		ps.addToPool(peer, peerRankInitial, makeHistoricStatus(peerHistoryWindowSize))
	}
	ps.sort()
}

// findPeer returns the pool and peer indices of peer, or (-1, -1).
func (ps *peerSelector) findPeer(peer network.Peer) (poolIdx, peerIdx int) {
	addr := peerAddress(peer)
	for i, pool := range ps.pools {
		for j, entry := range pool.peers {
			if peerAddress(entry.peer) == addr {
				return i, j
			}
		}
	}
	return -1, -1
}

// calculate the duration rank by mapping the range of [minDownloadDuration..maxDownloadDuration] into the rank range of [minRank..maxRank]
func downloadDurationToRank(downloadDuration, minDownloadDuration, maxDownloadDuration time.Duration, minRank, maxRank int) (rank int) {
	// clamp the downloadDuration into the range of [minDownloadDuration .. maxDownloadDuration]
	if downloadDuration < minDownloadDuration {
		downloadDuration = minDownloadDuration
	} else if downloadDuration > maxDownloadDuration {
		downloadDuration = maxDownloadDuration
	}
	// the formula below maps an element in the range of [minDownloadDuration .. maxDownloadDuration] onto the range of [minRank .. maxRank]
	rank = minRank + int((downloadDuration-minDownloadDuration).Nanoseconds()*int64(maxRank-minRank)/(maxDownloadDuration-minDownloadDuration).Nanoseconds())
	return
}
