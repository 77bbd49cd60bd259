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
	"fmt"

	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/ledger/ledgercore"
)

type eventType uint8

const (
	// none is returned by actions that produce nothing to handle
	none eventType = iota

	// verified network input
	proposalReceived
	voteReceived
	commitNoticeReceived

	// timers
	timeout
	retry

	// results of asynchronous work
	assembled
	validated
	committed

	// the ledger moved past the live height without this service
	ledgerAdvanced
)

func (t eventType) String() string {
	switch t {
	case none:
		return "none"
	case proposalReceived:
		return "proposalReceived"
	case voteReceived:
		return "voteReceived"
	case commitNoticeReceived:
		return "commitNoticeReceived"
	case timeout:
		return "timeout"
	case retry:
		return "retry"
	case assembled:
		return "assembled"
	case validated:
		return "validated"
	case committed:
		return "committed"
	case ledgerAdvanced:
		return "ledgerAdvanced"
	default:
		return fmt.Sprintf("eventType(%d)", uint8(t))
	}
}

// An event is an input to the player.
type event interface {
	t() eventType
}

type emptyEvent struct{}

func (emptyEvent) t() eventType { return none }

type messageEvent struct {
	Input message
}

func (e messageEvent) t() eventType {
	switch e.Input.(type) {
	case proposal:
		return proposalReceived
	case vote:
		return voteReceived
	default:
		return commitNoticeReceived
	}
}

// timeoutEvent fires when the state deadline or the assembly retry timer
// elapses. Stamp is the player state the timer was armed in.
type timeoutEvent struct {
	T     eventType
	Stamp stamp
}

func (e timeoutEvent) t() eventType { return e.T }

// assembledEvent carries the result of assembling a candidate block. Wait is
// set when there is nothing to propose yet and the empty block policy says to
// keep polling.
type assembledEvent struct {
	Stamp stamp
	Block ledgercore.ValidatedBlock
	Wait  bool
	Err   error
}

func (assembledEvent) t() eventType { return assembled }

type validatedEvent struct {
	Stamp stamp
	Block *ledgercore.ValidatedBlock
	Err   error
}

func (validatedEvent) t() eventType { return validated }

type committedEvent struct {
	Stamp stamp
	Err   error
}

func (committedEvent) t() eventType { return committed }

// ledgerAdvancedEvent reports that height Height was committed by someone
// other than the player, typically catch-up. Next is the ledger's next height.
type ledgerAdvancedEvent struct {
	Height basics.Height
	Next   basics.Height
}

func (ledgerAdvancedEvent) t() eventType { return ledgerAdvanced }
