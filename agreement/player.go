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

package agreement

import (
	"errors"
	"time"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/bookkeeping"
	"github.com/witnessnet/go-witness/ledger/eval"
	"github.com/witnessnet/go-witness/ledger/ledgercore"
	"github.com/witnessnet/go-witness/logging"
	"github.com/witnessnet/go-witness/logging/logspec"
)

// round change causes, used as metric labels
const (
	causeTimeout      = "timeout"
	causeInvalidBlock = "invalid_block"
	causeRejectQuorum = "reject_quorum"
	causeValidation   = "validation_error"
	causeRoundSync    = "round_sync"
)

// maxAheadHeights bounds the heights above the live one whose commit notices
// are tracked.
const maxAheadHeights = 8

// player is the state machine of the witness protocol. It is driven by a
// single goroutine: handle consumes one event and returns the actions the
// service must perform. Exactly one round is live at a time.
type player struct {
	Height   basics.Height
	Round    round
	Step     step
	Epoch    uint64
	Proposer crypto.PublicKey

	// Candidate is the proposal of the live round; Validated is set once the
	// candidate block has been checked against the ledger.
	Candidate *proposal
	Validated *ledgercore.ValidatedBlock

	Votes   voteTracker
	Commits commitTracker
	Pending pendingTable
	// Rounds holds the rounds other witnesses were seen in at the live
	// height.
	Rounds roundTracker

	// Ahead counts commit notices for later heights. A quorum there means
	// the network moved on without this node.
	Ahead aheadTracker
	// Requested is the highest height handed to catch-up.
	Requested basics.Height

	// Halted is set when an agreed block could not be committed.
	Halted error

	self       crypto.PublicKey
	witness    bool
	witnesses  []crypto.PublicKey
	witnessSet map[crypto.PublicKey]bool
	proto      config.ConsensusParams
	log        logging.Logger
	source     string
}

func makePlayer(self crypto.PublicKey, witnesses []crypto.PublicKey, proto config.ConsensusParams, log logging.Logger) *player {
	set := witnessSet(witnesses)
	return &player{
		self:       self,
		witness:    !self.IsZero() && set[self],
		witnesses:  witnesses,
		witnessSet: set,
		proto:      proto,
		log:        log,
		source:     self.String(),
		Votes:      makeVoteTracker(),
		Commits:    makeCommitTracker(),
		Rounds:     makeRoundTracker(),
		Pending:    makePendingTable(proto.MaxPendingMessages),
		Ahead:      makeAheadTracker(maxAheadHeights),
	}
}

func (p *player) stamp() stamp {
	return stamp{Height: p.Height, Round: p.Round, Step: p.Step, Epoch: p.Epoch}
}

func (p *player) proposing() bool {
	return p.witness && p.Proposer == p.self
}

func (p *player) event(eventType string, msg string, details logging.Fields) {
	if details == nil {
		details = logging.Fields{}
	}
	details["Height"] = p.Height
	details["Round"] = p.Round
	details["Step"] = p.Step.String()
	p.log.EventWithDetails(logspec.AgreementEvent(eventType, p.source), msg, details)
}

// handle applies e and returns the resulting actions.
func (p *player) handle(e event) []action {
	if p.Halted != nil {
		return nil
	}
	switch e := e.(type) {
	case messageEvent:
		return p.handleMessage(e.Input)
	case timeoutEvent:
		return p.handleTimeout(e)
	case assembledEvent:
		return p.handleAssembled(e)
	case validatedEvent:
		return p.handleValidated(e)
	case committedEvent:
		return p.handleCommitted(e)
	case ledgerAdvancedEvent:
		return p.handleLedgerAdvanced(e)
	}
	return nil
}

// enter moves to step s and arms the state deadline.
func (p *player) enter(s step, deadline time.Duration) action {
	p.Step = s
	p.Epoch++
	return armTimerAction{T: timeout, Stamp: p.stamp(), Delta: deadline}
}

// enterRound starts round r of height h and replays the messages buffered
// for it. The proposer starts assembling; everyone else waits for its
// proposal.
func (p *player) enterRound(h basics.Height, r round) []action {
	if h != p.Height {
		p.Commits = p.Ahead.take(h)
		p.Ahead.forget(h)
		p.Rounds = makeRoundTracker()
	}
	p.Height = h
	p.Round = r
	p.Candidate = nil
	p.Validated = nil
	p.Votes = makeVoteTracker()
	p.Proposer = proposerFor(h, r, p.witnesses)

	roundsTotal.Inc(nil)
	p.event(logspec.RoundStart, "round started", logging.Fields{"Proposer": p.Proposer.String()})

	var actions []action
	if p.witness && r > 0 {
		actions = append(actions, broadcastAction{Message: nextRound{Height: h, Round: r, Witness: p.self}})
	}
	if p.proposing() {
		actions = append(actions, p.enter(roundChange, p.proto.RoundChangeTimeout))
		actions = append(actions, assembleAction{Stamp: p.stamp()})
	} else {
		// a proposer silent past the block deadline costs the round
		actions = append(actions, p.enter(roundChange, p.proto.BlockTimeout))
	}

	for _, m := range p.Pending.take(h, r) {
		actions = append(actions, p.handleMessage(m)...)
	}
	return actions
}

// roundChange abandons the live round. The height is kept; the candidate,
// its patch and the votes are discarded.
func (p *player) roundChange(cause string) []action {
	roundChangesTotal.Inc(map[string]string{"cause": cause})
	p.event(logspec.RoundChange, "round change", logging.Fields{"Cause": cause})
	return p.enterRound(p.Height, p.Round+1)
}

func (p *player) handleMessage(m message) []action {
	h, r := m.position()
	tag := m.tag()

	// commit notices count for the whole height
	if c, ok := m.(commitNotice); ok && h >= p.Height {
		messagesHandled.Inc(map[string]string{"tag": string(tag)})
		if h > p.Height {
			return p.handleAheadNotice(c)
		}
		return p.handleCommitNotice(c)
	}

	if n, ok := m.(nextRound); ok {
		if h != p.Height || r <= p.Round {
			messagesDropped.Inc(map[string]string{"reason": "stale"})
			return nil
		}
		messagesHandled.Inc(map[string]string{"tag": string(tag)})
		return p.observeRound(n.Witness, r)
	}

	switch {
	case h < p.Height || (h == p.Height && r < p.Round):
		messagesDropped.Inc(map[string]string{"reason": "stale"})
		return nil
	case h > p.Height+1:
		messagesDropped.Inc(map[string]string{"reason": "too_far_ahead"})
		return nil
	case h == p.Height+1:
		if !p.Pending.add(m) {
			messagesDropped.Inc(map[string]string{"reason": "pending_full"})
		}
		return nil
	case r > p.Round:
		if !p.Pending.add(m) {
			messagesDropped.Inc(map[string]string{"reason": "pending_full"})
		}
		return p.observeRound(m.sender(), r)
	}

	messagesHandled.Inc(map[string]string{"tag": string(tag)})
	switch m := m.(type) {
	case proposal:
		return p.handleProposal(m)
	case vote:
		return p.handleVote(m)
	}
	return nil
}

// observeRound records that witness w is in round r of the live height. When
// RejectThreshold witnesses are past the live round, the player joins the
// highest round they all reached and replays what it buffered for it.
func (p *player) observeRound(w crypto.PublicKey, r round) []action {
	if !p.Rounds.observe(w, r) {
		return nil
	}
	target := p.Rounds.reached(p.proto.RejectThreshold(len(p.witnesses)))
	if target <= p.Round || p.Step == commit {
		return nil
	}
	roundChangesTotal.Inc(map[string]string{"cause": causeRoundSync})
	p.event(logspec.RoundChange, "round change", logging.Fields{"Cause": causeRoundSync, "Target": target})
	return p.enterRound(p.Height, target)
}

func (p *player) handleProposal(prop proposal) []action {
	if prop.Proposer != p.Proposer {
		messagesDropped.Inc(map[string]string{"reason": "wrong_proposer"})
		p.log.Debugf("agreement: ignoring proposal by %v at (%d, %d): expected %v", prop.Proposer, prop.Height, prop.Round, p.Proposer)
		return nil
	}
	if p.proposing() || p.Candidate != nil || p.Step != roundChange {
		return nil
	}
	p.Candidate = &prop
	arm := p.enter(block, p.proto.BlockTimeout)
	return []action{arm, validateAction{Stamp: p.stamp(), Block: prop.Block}}
}

func (p *player) handleVote(v vote) []action {
	if !p.Votes.add(v) {
		return nil
	}
	votesTotal.Inc(voteKind(v))
	return p.checkQuorum()
}

func (p *player) handleCommitNotice(c commitNotice) []action {
	p.Commits.add(c)
	threshold := p.proto.AcceptThreshold(len(p.witnesses))
	if p.Step == voteBlock && p.Validated != nil {
		if p.Commits.count(p.Validated.Hash()) >= threshold {
			return p.startCommit()
		}
		return nil
	}
	if p.Step == commit {
		return nil
	}
	// a candidate with this hash will commit through validation
	if p.Candidate != nil && p.Candidate.BlockHash == c.BlockHash {
		return nil
	}
	if p.Commits.count(c.BlockHash) >= threshold {
		return p.requestCatchup(c.Height, c.BlockHash)
	}
	return nil
}

func (p *player) handleAheadNotice(c commitNotice) []action {
	if p.Ahead.add(c) >= p.proto.AcceptThreshold(len(p.witnesses)) {
		return p.requestCatchup(c.Height, c.BlockHash)
	}
	return nil
}

// requestCatchup asks for the blocks up to height h, whose hash a quorum of
// witnesses announced.
func (p *player) requestCatchup(h basics.Height, hash bookkeeping.BlockHash) []action {
	if h <= p.Requested {
		return nil
	}
	p.Requested = h
	p.Ahead.forget(h)
	catchupsTotal.Inc(nil)
	p.event(logspec.CatchupRequested, "catch-up requested", logging.Fields{"Target": h, "BlockHash": hash.String()})
	return []action{catchupAction{Height: h, Hash: hash}}
}

// handleLedgerAdvanced resumes consensus at the ledger's next height after
// blocks were committed outside the live round.
func (p *player) handleLedgerAdvanced(e ledgerAdvancedEvent) []action {
	if e.Height != p.Height || e.Next <= p.Height {
		return nil
	}
	p.log.Infof("agreement: ledger reached height %d while at %d, resuming", e.Next-1, p.Height)
	return p.enterRound(e.Next, 0)
}

// castVote records the local vote and broadcasts it. Observers do not vote.
func (p *player) castVote(accept bool) []action {
	if !p.witness || p.Candidate == nil {
		return nil
	}
	v := vote{Height: p.Height, Round: p.Round, BlockHash: p.Candidate.BlockHash, Accept: accept, Witness: p.self}
	p.Votes.add(v)
	votesTotal.Inc(voteKind(v))
	p.event(logspec.VoteBroadcast, "vote broadcast", logging.Fields{"Accept": accept, "BlockHash": v.BlockHash.String()})
	return []action{broadcastAction{Message: v}}
}

// checkQuorum commits on an accept quorum for the validated candidate and
// abandons the round on a reject quorum.
func (p *player) checkQuorum() []action {
	n := len(p.witnesses)
	if p.Step == voteBlock && p.Validated != nil {
		if p.Votes.accepts(p.Validated.Hash()) >= p.proto.AcceptThreshold(n) {
			return p.startCommit()
		}
	}
	if p.Step != commit && p.Votes.rejects() >= p.proto.RejectThreshold(n) {
		return p.roundChange(causeRejectQuorum)
	}
	return nil
}

func (p *player) startCommit() []action {
	p.event(logspec.QuorumReached, "quorum reached", logging.Fields{"BlockHash": p.Validated.Hash().String()})
	disarm := p.enter(commit, 0)
	return []action{disarm, commitAction{Stamp: p.stamp(), Block: *p.Validated}}
}

func (p *player) handleTimeout(e timeoutEvent) []action {
	if e.Stamp != p.stamp() {
		return nil
	}
	switch e.T {
	case timeout:
		return p.roundChange(causeTimeout)
	case retry:
		if p.Step == roundChange && p.proposing() {
			return []action{assembleAction{Stamp: p.stamp()}}
		}
	}
	return nil
}

func (p *player) handleAssembled(e assembledEvent) []action {
	if e.Stamp != p.stamp() {
		return nil
	}
	if e.Err != nil || e.Wait {
		if e.Err != nil {
			p.log.Warnf("agreement: assembling block %d: %v", p.Height, e.Err)
		}
		return []action{armTimerAction{T: retry, Stamp: p.stamp(), Delta: p.proto.AssemblyRetryInterval}}
	}

	vb := e.Block
	blk := vb.Block()
	prop := proposal{Height: p.Height, Round: p.Round, BlockHash: vb.Hash(), Proposer: p.self, Block: blk}
	p.Candidate = &prop
	p.Validated = &vb
	p.event(logspec.ProposalBroadcast, "proposal broadcast", logging.Fields{"BlockHash": prop.BlockHash.String(), "Transactions": len(blk.Payset)})

	actions := []action{
		armTimerAction{T: retry, Stamp: p.stamp()},
		broadcastAction{Message: prop},
		p.enter(voteBlock, p.proto.VoteBlockTimeout),
	}
	actions = append(actions, p.castVote(true)...)
	return append(actions, p.checkQuorum()...)
}

func (p *player) handleValidated(e validatedEvent) []action {
	if e.Stamp != p.stamp() {
		return nil
	}
	if e.Err != nil {
		details := logging.Fields{"BlockHash": p.Candidate.BlockHash.String(), "Error": e.Err.Error()}
		if !errors.Is(e.Err, eval.ErrInvalidBlock) {
			p.log.Warnf("agreement: could not validate block %d: %v", p.Height, e.Err)
			return p.roundChange(causeValidation)
		}
		p.event(logspec.ProposalRejected, "proposal rejected", details)
		actions := p.castVote(false)
		return append(actions, p.roundChange(causeInvalidBlock)...)
	}

	p.Validated = e.Block
	p.event(logspec.ProposalAccepted, "proposal accepted", logging.Fields{"BlockHash": p.Candidate.BlockHash.String()})
	actions := []action{p.enter(voteBlock, p.proto.VoteBlockTimeout)}
	actions = append(actions, p.castVote(true)...)
	actions = append(actions, p.checkQuorum()...)
	// notices may have arrived before the block was validated
	if p.Step == voteBlock && p.Commits.count(p.Validated.Hash()) >= p.proto.AcceptThreshold(len(p.witnesses)) {
		actions = append(actions, p.startCommit()...)
	}
	return actions
}

func (p *player) handleCommitted(e committedEvent) []action {
	if e.Stamp != p.stamp() {
		return nil
	}
	hash := p.Validated.Hash()
	var inLedger ledgercore.BlockInLedgerError
	if errors.As(e.Err, &inLedger) {
		p.log.Infof("agreement: block %d was committed by catch-up", p.Height)
		return p.enterRound(inLedger.NextHeight, 0)
	}
	if e.Err != nil {
		p.Halted = &StorageCommitFailureError{Height: p.Height, Err: e.Err}
		p.event(logspec.CommitFailed, "commit failed", logging.Fields{"BlockHash": hash.String(), "Error": e.Err.Error()})
		p.event(logspec.Halted, "consensus halted", nil)
		return []action{haltAction{Err: p.Halted}}
	}

	commitsTotal.Inc(nil)
	p.event(logspec.BlockCommitted, "block committed", logging.Fields{"BlockHash": hash.String(), "Transactions": len(p.Validated.Block().Payset)})

	var actions []action
	if p.witness {
		actions = append(actions, broadcastAction{Message: commitNotice{Height: p.Height, Round: p.Round, BlockHash: hash, Witness: p.self}})
	}
	return append(actions, p.enterRound(p.Height+1, 0)...)
}
