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

// Package catchup fetches committed blocks a node missed from its peers.
//
// Consensus reports a block hash that a quorum of witnesses announced
// committing. The service walks the chain back from that block to the local
// ledger, checking every link by hash, and then applies the blocks in order.
package catchup

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/bookkeeping"
	"github.com/witnessnet/go-witness/ledger/ledgercore"
	"github.com/witnessnet/go-witness/logging"
	"github.com/witnessnet/go-witness/logging/logspec"
	"github.com/witnessnet/go-witness/network"
	"github.com/witnessnet/go-witness/rpcs"
	"github.com/witnessnet/go-witness/util/metrics"
)

// noPeersBackoff is the wait before asking the network for peers again.
const noPeersBackoff = time.Second

var (
	blocksFetched = metrics.MakeCounter(metrics.CatchupBlocksFetched)
	fetchFailures = metrics.MakeCounter(metrics.CatchupFetchFailures, "reason")
)

// ErrForkDetected is returned when the certified chain does not extend the
// local ledger.
var ErrForkDetected = errors.New("certified chain does not extend the local ledger")

// errMismatchedHash is returned when a fetched block does not hash to the
// value the chain above it commits to.
var errMismatchedHash = errors.New("block hash does not match")

// Ledger represents the interface of a block database which the
// catchup server should interact with.
type Ledger interface {
	rpcs.LedgerForBlockService
	NextHeight() basics.Height
	Validate(ctx context.Context, blk bookkeeping.Block, now time.Time) (*ledgercore.ValidatedBlock, error)
	AddValidatedBlock(ctx context.Context, vb ledgercore.ValidatedBlock) error
}

// target is a block a quorum of witnesses committed.
type target struct {
	height basics.Height
	hash   bookkeeping.BlockHash
}

// Service represents the catchup service. Once started and until it is
// stopped, it brings the ledger up to every certified block it is told about.
type Service struct {
	syncStartNS atomic.Int64
	cfg         config.Local
	ledger      Ledger
	net         network.GossipNode
	log         logging.Logger
	fetcher     *blockFetcher

	targets chan target
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// MakeService creates a catchup service instance from its constituent components
func MakeService(log logging.Logger, cfg config.Local, net network.GossipNode, ledger Ledger) *Service {
	log = log.With("Context", "sync")
	return &Service{
		cfg:     cfg,
		ledger:  ledger,
		net:     net,
		log:     log,
		fetcher: makeBlockFetcher(log, net, time.Duration(cfg.CatchupBlockFetchTimeoutSec)*time.Second),
		targets: make(chan target, 1),
	}
}

// Start the catchup service
func (s *Service) Start() {
	s.done = make(chan struct{})
	s.ctx, s.cancel = context.WithCancel(context.Background())
	go s.loop()
}

// Stop informs the catchup service that it should stop, and waits for it to stop.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Certified records that a quorum committed hash at height h. Only the
// highest target waiting to be synced is kept. It never blocks.
func (s *Service) Certified(h basics.Height, hash bookkeeping.BlockHash) {
	t := target{height: h, hash: hash}
	for {
		select {
		case s.targets <- t:
			return
		default:
		}
		select {
		case queued := <-s.targets:
			if queued.height > t.height {
				t = queued
			}
		default:
		}
	}
}

// IsSynchronizing returns true while blocks are being fetched or applied.
func (s *Service) IsSynchronizing() bool {
	return s.syncStartNS.Load() != 0
}

// SynchronizingTime returns the time spent in the current sync, or zero.
func (s *Service) SynchronizingTime() time.Duration {
	startNS := s.syncStartNS.Load()
	if startNS == 0 {
		return 0
	}
	return time.Duration(time.Now().UnixNano() - startNS)
}

func (s *Service) loop() {
	defer close(s.done)
	for {
		select {
		case t := <-s.targets:
			s.sync(t)
		case <-s.ctx.Done():
			return
		}
	}
}

// sync brings the ledger up to t, logging the outcome.
func (s *Service) sync(t target) {
	from := s.ledger.NextHeight()
	if t.height < from {
		return
	}

	s.syncStartNS.Store(time.Now().UnixNano())
	defer s.syncStartNS.Store(0)
	details := logging.Fields{"From": from, "Target": t.height, "BlockHash": t.hash.String()}
	s.log.EventWithDetails(logspec.CatchupEvent(logspec.CatchupStart), "catch-up started", details)

	started := time.Now()
	applied, err := s.catchupTo(s.ctx, t)
	details["Applied"] = applied
	details["Duration"] = time.Since(started).String()
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		details["Error"] = err.Error()
		s.log.EventWithDetails(logspec.CatchupEvent(logspec.CatchupFailed), "catch-up failed", details)
		return
	}
	s.log.EventWithDetails(logspec.CatchupEvent(logspec.CatchupDone), "catch-up done", details)
}

// catchupTo fetches the blocks between the ledger and t and commits them. It
// returns the number of blocks it committed.
func (s *Service) catchupTo(ctx context.Context, t target) (int, error) {
	ps := makePeerSelector(s.net)
	from := s.ledger.NextHeight()
	if t.height < from {
		return 0, nil
	}

	// walk back from the certified block; every block names its parent's
	// hash. The lowest blocks are kept for the forward pass.
	cacheSize := basics.Height(s.cfg.CatchupBlockCacheSize)
	hashes := make([]bookkeeping.BlockHash, t.height-from+1)
	cache := make(map[basics.Height]*bookkeeping.Block)
	expected := t.hash
	for h := t.height; h >= from; h-- {
		if s.ledger.NextHeight() > t.height {
			return 0, nil
		}
		blk, err := s.fetchAndCheck(ctx, h, expected, ps)
		if err != nil {
			return 0, err
		}
		hashes[h-from] = expected
		cache[h] = blk
		delete(cache, h+cacheSize)
		expected = blk.Branch
	}

	parent, err := s.ledger.Block(ctx, from-1)
	if err != nil {
		return 0, err
	}
	if parent.Hash() != expected {
		return 0, fmt.Errorf("%w: block %d names parent %v, local block %d is %v", ErrForkDetected, from, expected, from-1, parent.Hash())
	}

	applied := 0
	for h := from; h <= t.height; h++ {
		blk, ok := cache[h]
		if !ok {
			blk, err = s.fetchAndCheck(ctx, h, hashes[h-from], ps)
			if err != nil {
				return applied, err
			}
		}
		delete(cache, h)

		committed, err := s.apply(ctx, *blk)
		if err != nil {
			return applied, err
		}
		if committed {
			applied++
		}
	}
	return applied, nil
}

// apply validates blk and commits it. It reports false when consensus
// committed the height first.
func (s *Service) apply(ctx context.Context, blk bookkeeping.Block) (bool, error) {
	// the witnesses checked the timestamp against their clocks when they
	// agreed on the block
	vb, err := s.ledger.Validate(ctx, blk, time.Unix(blk.TimeStamp, 0))
	if err == nil {
		err = s.ledger.AddValidatedBlock(ctx, *vb)
	}
	var inLedger ledgercore.BlockInLedgerError
	if errors.As(err, &inLedger) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("applying block %d: %w", blk.Height, err)
	}
	s.log.Debugf("catchup: committed block %d", blk.Height)
	return true, nil
}

// fetchAndCheck fetches the block at height h hashing to expected, asking
// up to CatchupBlockDownloadRetryAttempts peers.
func (s *Service) fetchAndCheck(ctx context.Context, h basics.Height, expected bookkeeping.BlockHash, ps *peerSelector) (*bookkeeping.Block, error) {
	var lastErr error
	for attempt := 0; attempt < s.cfg.CatchupBlockDownloadRetryAttempts; attempt++ {
		peer, err := ps.getNextPeer()
		if err != nil {
			fetchFailures.Inc(map[string]string{"reason": "no_peers"})
			lastErr = err
			select {
			case <-time.After(noPeersBackoff):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		blk, duration, err := s.fetcher.fetchBlock(ctx, h, peer)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			rank := peerRankDownloadFailed
			reason := "download"
			if errors.Is(err, errWrongBlock) {
				rank, reason = peerRankInvalidDownload, "invalid"
			}
			fetchFailures.Inc(map[string]string{"reason": reason})
			ps.rankPeer(peer, rank)
			s.log.Debugf("catchup: fetching block %d from %v: %v", h, peer, err)
			continue
		}
		if blk.Hash() != expected {
			lastErr = fmt.Errorf("%w: block %d from %v is %v, want %v", errMismatchedHash, h, peer, blk.Hash(), expected)
			fetchFailures.Inc(map[string]string{"reason": "invalid"})
			ps.rankPeer(peer, peerRankInvalidDownload)
			s.log.Warn(lastErr)
			continue
		}

		ps.rankPeer(peer, ps.peerDownloadDurationToRank(duration))
		blocksFetched.Inc(nil)
		return blk, nil
	}
	return nil, fmt.Errorf("fetching block %d: giving up after %d attempts: %w", h, s.cfg.CatchupBlockDownloadRetryAttempts, lastErr)
}
