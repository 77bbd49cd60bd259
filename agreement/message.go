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

	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/bookkeeping"
	"github.com/witnessnet/go-witness/protocol"
)

// A proposal carries the candidate block of a round from its proposer.
// The signature covers the block hash, not the block itself.
type proposal struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Height    basics.Height         `codec:"h"`
	Round     round                 `codec:"r"`
	BlockHash bookkeeping.BlockHash `codec:"bh"`
	Proposer  crypto.PublicKey      `codec:"p"`
	Block     bookkeeping.Block     `codec:"blk"`
	Sig       crypto.Signature      `codec:"sig"`
}

type proposalBody struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Height    basics.Height         `codec:"h"`
	Round     round                 `codec:"r"`
	BlockHash bookkeeping.BlockHash `codec:"bh"`
	Proposer  crypto.PublicKey      `codec:"p"`
}

// ToBeHashed implements the crypto.Hashable interface.
func (b proposalBody) ToBeHashed() (protocol.HashID, []byte) {
	return protocol.Proposal, protocol.Encode(&b)
}

func (p proposal) body() proposalBody {
	return proposalBody{Height: p.Height, Round: p.Round, BlockHash: p.BlockHash, Proposer: p.Proposer}
}

// A vote is a witness's verdict on the candidate block of a round.
type vote struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Height    basics.Height         `codec:"h"`
	Round     round                 `codec:"r"`
	BlockHash bookkeeping.BlockHash `codec:"bh"`
	Accept    bool                  `codec:"a"`
	Witness   crypto.PublicKey      `codec:"w"`
	Sig       crypto.Signature      `codec:"sig"`
}

type voteBody struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Height    basics.Height         `codec:"h"`
	Round     round                 `codec:"r"`
	BlockHash bookkeeping.BlockHash `codec:"bh"`
	Accept    bool                  `codec:"a"`
	Witness   crypto.PublicKey      `codec:"w"`
}

// ToBeHashed implements the crypto.Hashable interface.
func (b voteBody) ToBeHashed() (protocol.HashID, []byte) {
	return protocol.Vote, protocol.Encode(&b)
}

func (v vote) body() voteBody {
	return voteBody{Height: v.Height, Round: v.Round, BlockHash: v.BlockHash, Accept: v.Accept, Witness: v.Witness}
}

// A commitNotice confirms that a witness committed a block.
type commitNotice struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Height    basics.Height         `codec:"h"`
	Round     round                 `codec:"r"`
	BlockHash bookkeeping.BlockHash `codec:"bh"`
	Witness   crypto.PublicKey      `codec:"w"`
	Sig       crypto.Signature      `codec:"sig"`
}

type commitNoticeBody struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Height    basics.Height         `codec:"h"`
	Round     round                 `codec:"r"`
	BlockHash bookkeeping.BlockHash `codec:"bh"`
	Witness   crypto.PublicKey      `codec:"w"`
}

// ToBeHashed implements the crypto.Hashable interface.
func (b commitNoticeBody) ToBeHashed() (protocol.HashID, []byte) {
	return protocol.CommitNotice, protocol.Encode(&b)
}

func (c commitNotice) body() commitNoticeBody {
	return commitNoticeBody{Height: c.Height, Round: c.Round, BlockHash: c.BlockHash, Witness: c.Witness}
}

// A nextRound announces that a witness entered a round above zero. Witnesses
// that fell behind on the round of the live height use it to rejoin.
type nextRound struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Height  basics.Height    `codec:"h"`
	Round   round            `codec:"r"`
	Witness crypto.PublicKey `codec:"w"`
	Sig     crypto.Signature `codec:"sig"`
}

type nextRoundBody struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Height  basics.Height    `codec:"h"`
	Round   round            `codec:"r"`
	Witness crypto.PublicKey `codec:"w"`
}

// ToBeHashed implements the crypto.Hashable interface.
func (b nextRoundBody) ToBeHashed() (protocol.HashID, []byte) {
	return protocol.NextRound, protocol.Encode(&b)
}

func (n nextRound) body() nextRoundBody {
	return nextRoundBody{Height: n.Height, Round: n.Round, Witness: n.Witness}
}

// message is implemented by proposal, vote, commitNotice and nextRound.
type message interface {
	tag() protocol.Tag
	position() (basics.Height, round)
	sender() crypto.PublicKey
	sign(*crypto.SignatureSecrets) message
	verifySignature() bool
}

func (p proposal) tag() protocol.Tag                    { return protocol.WitnessProposalTag }
func (p proposal) position() (basics.Height, round)     { return p.Height, p.Round }
func (p proposal) sender() crypto.PublicKey             { return p.Proposer }
func (v vote) tag() protocol.Tag                        { return protocol.WitnessVoteTag }
func (v vote) position() (basics.Height, round)         { return v.Height, v.Round }
func (v vote) sender() crypto.PublicKey                 { return v.Witness }
func (c commitNotice) tag() protocol.Tag                { return protocol.WitnessCommitTag }
func (c commitNotice) position() (basics.Height, round) { return c.Height, c.Round }
func (c commitNotice) sender() crypto.PublicKey         { return c.Witness }
func (n nextRound) tag() protocol.Tag                   { return protocol.WitnessNextRoundTag }
func (n nextRound) position() (basics.Height, round)    { return n.Height, n.Round }
func (n nextRound) sender() crypto.PublicKey            { return n.Witness }

func (p proposal) sign(s *crypto.SignatureSecrets) message {
	p.Proposer = s.SignatureVerifier
	p.Sig = s.Sign(p.body())
	return p
}

func (v vote) sign(s *crypto.SignatureSecrets) message {
	v.Witness = s.SignatureVerifier
	v.Sig = s.Sign(v.body())
	return v
}

func (c commitNotice) sign(s *crypto.SignatureSecrets) message {
	c.Witness = s.SignatureVerifier
	c.Sig = s.Sign(c.body())
	return c
}

func (n nextRound) sign(s *crypto.SignatureSecrets) message {
	n.Witness = s.SignatureVerifier
	n.Sig = s.Sign(n.body())
	return n
}

func (p proposal) verifySignature() bool     { return p.Proposer.Verify(p.body(), p.Sig) }
func (v vote) verifySignature() bool         { return v.Witness.Verify(v.body(), v.Sig) }
func (c commitNotice) verifySignature() bool { return c.Witness.Verify(c.body(), c.Sig) }
func (n nextRound) verifySignature() bool    { return n.Witness.Verify(n.body(), n.Sig) }

// decodeMessage decodes data received under tag.
func decodeMessage(tag protocol.Tag, data []byte) (message, error) {
	var err error
	switch tag {
	case protocol.WitnessProposalTag:
		var p proposal
		err = protocol.Decode(data, &p)
		return p, err
	case protocol.WitnessVoteTag:
		var v vote
		err = protocol.Decode(data, &v)
		return v, err
	case protocol.WitnessCommitTag:
		var c commitNotice
		err = protocol.Decode(data, &c)
		return c, err
	case protocol.WitnessNextRoundTag:
		var n nextRound
		err = protocol.Decode(data, &n)
		return n, err
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownTag, tag)
	}
}

// verifyMessage checks that m comes from a witness and is signed by it. A
// proposal must also carry the block its signature commits to.
func verifyMessage(m message, witnesses map[crypto.PublicKey]bool) error {
	if !witnesses[m.sender()] {
		return fmt.Errorf("%w: %v", errUnknownWitness, m.sender())
	}
	if p, ok := m.(proposal); ok {
		switch {
		case p.Block.Height != p.Height:
			return fmt.Errorf("%w: block height %d in proposal for %d", errMalformedProposal, p.Block.Height, p.Height)
		case p.Block.Proposer != p.Proposer:
			return fmt.Errorf("%w: block proposed by %v, signed by %v", errMalformedProposal, p.Block.Proposer, p.Proposer)
		case p.Block.Hash() != p.BlockHash:
			return fmt.Errorf("%w: block hash %v, signed %v", errMalformedProposal, p.Block.Hash(), p.BlockHash)
		}
	}
	if !m.verifySignature() {
		return errBadSignature
	}
	return nil
}

func witnessSet(witnesses []crypto.PublicKey) map[crypto.PublicKey]bool {
	set := make(map[crypto.PublicKey]bool, len(witnesses))
	for _, w := range witnesses {
		set[w] = true
	}
	return set
}

// MakeMessageValidator returns a function that decodes an agreement message
// and checks its signature against the witness set. The gossip layer uses it
// to decide whether to relay.
func MakeMessageValidator(witnesses []crypto.PublicKey) func(protocol.Tag, []byte) error {
	set := witnessSet(witnesses)
	return func(tag protocol.Tag, data []byte) error {
		m, err := decodeMessage(tag, data)
		if err != nil {
			return err
		}
		return verifyMessage(m, set)
	}
}
