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

// Package agreement implements the witness consensus protocol: in every round
// a deterministic proposer offers a block, the witnesses validate it and vote,
// and a quorum of accept votes commits it to the ledger.
package agreement

import (
	"context"

	"github.com/algorand/go-deadlock"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/logging"
	"github.com/witnessnet/go-witness/util/timers"
)

// Parameters holds the parameters necessary to run the agreement protocol.
type Parameters struct {
	Ledger
	Network
	Mempool
	timers.Clock
	logging.Logger

	// Secrets signs proposals and votes. A node without secrets, or whose
	// key is not a witness, follows consensus as an observer: it validates
	// and commits agreed blocks but never proposes or votes.
	Secrets *crypto.SignatureSecrets

	// Catchup is told about blocks a quorum committed that the local
	// ledger lacks. It may be nil.
	Catchup Catchup

	Proto config.ConsensusParams
}

// Status is a snapshot of the consensus state.
type Status struct {
	Height   basics.Height
	Round    uint64
	Step     string
	Proposer crypto.PublicKey
	Witness  bool
	Halted   error
}

// Service represents an instance of an execution of the witness protocol.
type Service struct {
	ledger  Ledger
	net     Network
	mempool Mempool
	clock   timers.Clock
	log     logging.Logger
	secrets *crypto.SignatureSecrets
	catchup Catchup
	proto   config.ConsensusParams

	player *player
	demux  *demux

	cancel context.CancelFunc
	done   chan struct{}

	mu     deadlock.Mutex
	status Status
	err    error
}

// MakeService creates a new Agreement Service instance given a set of Parameters.
//
// Call Start to start execution and Shutdown to finish execution.
func MakeService(p Parameters) *Service {
	s := &Service{
		ledger:  p.Ledger,
		net:     p.Network,
		mempool: p.Mempool,
		clock:   p.Clock,
		log:     p.Logger,
		secrets: p.Secrets,
		catchup: p.Catchup,
		proto:   p.Proto,
		done:    make(chan struct{}),
	}

	var self crypto.PublicKey
	if p.Secrets != nil {
		self = p.Secrets.SignatureVerifier
	}
	witnesses := p.Ledger.Witnesses()
	s.player = makePlayer(self, witnesses, p.Proto, p.Logger)
	if !s.player.witness {
		s.log.Infof("agreement: %v is not a witness, following consensus as an observer", self)
	}
	return s
}

// Start executing the agreement protocol.
func (s *Service) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.net.Start()
	s.demux = makeDemux(s.net, s.ledger, s.clock, s.player.witnesses, s.log)
	go s.mainLoop(ctx)
}

// Shutdown the execution of the protocol.
//
// This method returns after all resources have been cleaned up.
func (s *Service) Shutdown() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Done is closed when the service stops, either on Shutdown or because
// consensus halted.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// Err returns the error consensus halted with, if any.
func (s *Service) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Status returns the latest consensus state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Service) mainLoop(ctx context.Context) {
	defer close(s.done)

	s.run(ctx, s.player.enterRound(s.ledger.NextHeight(), 0))
	for s.player.Halted == nil {
		e, ok := s.demux.next(ctx)
		if !ok {
			return
		}
		s.run(ctx, s.player.handle(e))
	}
}

// run performs actions in order, queueing the events they produce.
func (s *Service) run(ctx context.Context, actions []action) {
	for _, a := range actions {
		if e := a.do(ctx, s); e.t() != none {
			s.demux.push(e)
		}
	}
	if s.player.Halted == nil {
		s.demux.watchLedger(s.player.Height)
	}

	s.mu.Lock()
	s.status = Status{
		Height:   s.player.Height,
		Round:    uint64(s.player.Round),
		Step:     s.player.Step.String(),
		Proposer: s.player.Proposer,
		Witness:  s.player.witness,
		Halted:   s.player.Halted,
	}
	s.mu.Unlock()
}

func (s *Service) halt(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.log.Errorf("agreement: halting: %v", err)
}
