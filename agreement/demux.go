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
	"context"
	"time"

	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/logging"
	"github.com/witnessnet/go-witness/protocol"
	"github.com/witnessnet/go-witness/util/timers"
)

// demux supplies the player with its next input. Events produced locally by
// actions are served first, then network messages and timers.
//
// demux is not thread-safe and assumes all calls are serialized.
type demux struct {
	ledger    LedgerReader
	clock     timers.Clock
	witnesses map[crypto.PublicKey]bool
	log       logging.Logger

	proposals <-chan Message
	votes     <-chan Message
	commits   <-chan Message
	rounds    <-chan Message

	queue []event

	deadline      <-chan time.Time
	deadlineStamp stamp
	retry         <-chan time.Time
	retryStamp    stamp

	// advanced closes once the ledger holds the watched height, which
	// happens without the player when catch-up commits blocks.
	advanced <-chan struct{}
	watching basics.Height
}

func makeDemux(net Network, ledger LedgerReader, clock timers.Clock, witnesses []crypto.PublicKey, log logging.Logger) *demux {
	return &demux{
		ledger:    ledger,
		clock:     clock,
		witnesses: witnessSet(witnesses),
		log:       log,
		proposals: net.Messages(protocol.WitnessProposalTag),
		votes:     net.Messages(protocol.WitnessVoteTag),
		commits:   net.Messages(protocol.WitnessCommitTag),
		rounds:    net.Messages(protocol.WitnessNextRoundTag),
	}
}

// push queues a locally produced event.
func (d *demux) push(e event) {
	d.queue = append(d.queue, e)
}

// setTimer arms the timer of the given kind to fire delta from now with st
// attached. A non-positive delta disarms it.
func (d *demux) setTimer(kind eventType, st stamp, delta time.Duration) {
	var ch <-chan time.Time
	if delta > 0 {
		ch = d.clock.Zero().TimeoutAt(delta)
	}
	switch kind {
	case timeout:
		d.deadline, d.deadlineStamp = ch, st
	case retry:
		d.retry, d.retryStamp = ch, st
	}
}

// watchLedger arms the ledger signal for height h. The signal is armed once
// per height.
func (d *demux) watchLedger(h basics.Height) {
	if h == d.watching {
		return
	}
	d.watching = h
	d.advanced = d.ledger.Wait(h)
}

// next blocks until an event is available or ctx is done. It returns false
// once ctx is done.
func (d *demux) next(ctx context.Context) (event, bool) {
	if len(d.queue) > 0 {
		e := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		return e, true
	}

	select {
	case raw, ok := <-d.proposals:
		if !ok {
			d.proposals = nil
			return emptyEvent{}, true
		}
		return d.verify(protocol.WitnessProposalTag, raw), true
	case raw, ok := <-d.votes:
		if !ok {
			d.votes = nil
			return emptyEvent{}, true
		}
		return d.verify(protocol.WitnessVoteTag, raw), true
	case raw, ok := <-d.commits:
		if !ok {
			d.commits = nil
			return emptyEvent{}, true
		}
		return d.verify(protocol.WitnessCommitTag, raw), true
	case raw, ok := <-d.rounds:
		if !ok {
			d.rounds = nil
			return emptyEvent{}, true
		}
		return d.verify(protocol.WitnessNextRoundTag, raw), true
	case <-d.deadline:
		d.deadline = nil
		return timeoutEvent{T: timeout, Stamp: d.deadlineStamp}, true
	case <-d.retry:
		d.retry = nil
		return timeoutEvent{T: retry, Stamp: d.retryStamp}, true
	case <-d.advanced:
		d.advanced = nil
		return ledgerAdvancedEvent{Height: d.watching, Next: d.ledger.NextHeight()}, true
	case <-ctx.Done():
		return emptyEvent{}, false
	}
}

// verify decodes raw and checks it came from a witness. Messages that fail
// are dropped here and never reach the player.
func (d *demux) verify(tag protocol.Tag, raw Message) event {
	m, err := decodeMessage(tag, raw.Data)
	if err == nil {
		err = verifyMessage(m, d.witnesses)
	}
	if err != nil {
		messagesDropped.Inc(map[string]string{"reason": "invalid"})
		d.log.Debugf("agreement: dropping %s from %v: %v", tag, raw.Sender, err)
		return emptyEvent{}
	}
	return messageEvent{Input: m}
}
