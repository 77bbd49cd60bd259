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
	"fmt"
	"time"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/bookkeeping"
	"github.com/witnessnet/go-witness/data/transactions"
	"github.com/witnessnet/go-witness/ledger/ledgercore"
	"github.com/witnessnet/go-witness/protocol"
)

type actionType uint8

const (
	noop actionType = iota

	// network
	broadcast

	// ledger
	assemble
	validate
	commitBlock

	// time
	armTimer

	// logical
	halt
	catchup
)

// An action is an output of the player. The service performs it and feeds the
// event it returns, if any, back into the player.
type action interface {
	t() actionType
	do(context.Context, *Service) event
	String() string
}

type broadcastAction struct {
	Message message
}

func (a broadcastAction) t() actionType { return broadcast }

func (a broadcastAction) do(ctx context.Context, s *Service) event {
	if s.secrets == nil {
		return emptyEvent{}
	}
	m := a.Message.sign(s.secrets)
	if err := s.net.Broadcast(ctx, m.tag(), protocol.Encode(m)); err != nil {
		s.log.Warnf("agreement: broadcast %s: %v", m.tag(), err)
	}
	return emptyEvent{}
}

func (a broadcastAction) String() string {
	h, r := a.Message.position()
	return fmt.Sprintf("%v: %s (%d, %d)", a.t(), a.Message.tag(), h, r)
}

// assembleAction builds a candidate block for the round the player proposes in.
type assembleAction struct {
	Stamp stamp
}

func (a assembleAction) t() actionType { return assemble }

func (a assembleAction) do(ctx context.Context, s *Service) event {
	now := s.clock.Now()
	prev := s.ledger.LastBlock()
	if prev.Height+1 != a.Stamp.Height {
		return assembledEvent{Stamp: a.Stamp, Err: fmt.Errorf("ledger is at height %d, proposing for %d", prev.Height, a.Stamp.Height)}
	}
	holding := s.proto.EmptyBlockPolicy == config.EmptyBlockWait &&
		now.Before(time.Unix(prev.TimeStamp, 0).Add(s.proto.EmptyBlockHoldoff))

	txs := s.mempool.DrawPendingTransactions(s.proto.MaxBlockBytes)
	if len(txs) == 0 && holding {
		return assembledEvent{Stamp: a.Stamp, Wait: true}
	}

	res, err := s.ledger.AssembleBlock(ctx, txs, s.secrets.SignatureVerifier, now)
	if err != nil {
		return assembledEvent{Stamp: a.Stamp, Err: err}
	}
	if len(res.Rejected) > 0 {
		ids := make([]transactions.Txid, len(res.Rejected))
		for i, rej := range res.Rejected {
			ids[i] = rej.TxID
			s.log.Debugf("agreement: dropping %v from the pool: %v", rej.TxID, rej.Err)
		}
		s.mempool.Remove(ids)
	}
	if res.Block.Block().IsEmpty() && holding {
		return assembledEvent{Stamp: a.Stamp, Wait: true}
	}
	return assembledEvent{Stamp: a.Stamp, Block: res.Block}
}

func (a assembleAction) String() string {
	return fmt.Sprintf("%v: (%d, %d)", a.t(), a.Stamp.Height, a.Stamp.Round)
}

type validateAction struct {
	Stamp stamp
	Block bookkeeping.Block
}

func (a validateAction) t() actionType { return validate }

func (a validateAction) do(ctx context.Context, s *Service) event {
	vb, err := s.ledger.Validate(ctx, a.Block, s.clock.Now())
	return validatedEvent{Stamp: a.Stamp, Block: vb, Err: err}
}

func (a validateAction) String() string {
	return fmt.Sprintf("%v: %v at %d", a.t(), a.Block.Hash(), a.Block.Height)
}

type commitAction struct {
	Stamp stamp
	Block ledgercore.ValidatedBlock
}

func (a commitAction) t() actionType { return commitBlock }

func (a commitAction) do(ctx context.Context, s *Service) event {
	ctx, cancel := context.WithTimeout(ctx, s.proto.CommitTimeout)
	defer cancel()
	err := s.ledger.AddValidatedBlock(ctx, a.Block)
	return committedEvent{Stamp: a.Stamp, Err: err}
}

func (a commitAction) String() string {
	return fmt.Sprintf("%v: %v at %d", a.t(), a.Block.Hash(), a.Block.Block().Height)
}

// armTimerAction sets the state deadline (T == timeout) or the assembly retry
// timer (T == retry) to fire Delta from now. A non-positive Delta disarms it.
type armTimerAction struct {
	T     eventType
	Stamp stamp
	Delta time.Duration
}

func (a armTimerAction) t() actionType { return armTimer }

func (a armTimerAction) do(ctx context.Context, s *Service) event {
	s.demux.setTimer(a.T, a.Stamp, a.Delta)
	return emptyEvent{}
}

func (a armTimerAction) String() string {
	return fmt.Sprintf("%v: %v in %v", a.t(), a.T, a.Delta)
}

type haltAction struct {
	Err error
}

func (a haltAction) t() actionType { return halt }

func (a haltAction) do(ctx context.Context, s *Service) event {
	s.halt(a.Err)
	return emptyEvent{}
}

func (a haltAction) String() string {
	return fmt.Sprintf("%v: %v", a.t(), a.Err)
}

// catchupAction hands a certified block hash to the catch-up service.
type catchupAction struct {
	Height basics.Height
	Hash   bookkeeping.BlockHash
}

func (a catchupAction) t() actionType { return catchup }

func (a catchupAction) do(ctx context.Context, s *Service) event {
	if s.catchup != nil {
		s.catchup.Certified(a.Height, a.Hash)
	}
	return emptyEvent{}
}

func (a catchupAction) String() string {
	return fmt.Sprintf("%v: %v at %d", a.t(), a.Hash, a.Height)
}

func (t actionType) String() string {
	switch t {
	case noop:
		return "noop"
	case broadcast:
		return "broadcast"
	case assemble:
		return "assemble"
	case validate:
		return "validate"
	case commitBlock:
		return "commit"
	case armTimer:
		return "armTimer"
	case halt:
		return "halt"
	case catchup:
		return "catchup"
	default:
		return fmt.Sprintf("actionType(%d)", uint8(t))
	}
}
