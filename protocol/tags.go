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

package protocol

// Tag represents a message type identifier.  Messages have a Tag field. Handlers can register to a given Tag.
// e.g., the agreement service can register to handle proposals with the WitnessProposalTag.
type Tag string

// Tags, in lexicographic sort order of tag values to avoid duplicates.
const (
	UnknownMsgTag       Tag = "??"
	BlockRequestTag     Tag = "BR"
	TxnTag              Tag = "TX"
	WitnessCommitTag    Tag = "WC"
	WitnessNextRoundTag Tag = "WN"
	WitnessProposalTag  Tag = "WP"
	WitnessVoteTag      Tag = "WV"
)

// The following constants are overestimates of the encoded size of each
// message type. Gossip layers drop anything larger.
const (
	UnknownMsgTagMaxSize       = 1
	BlockRequestTagMaxSize     = WitnessProposalTagMaxSize
	TxnTagMaxSize              = 256 * 1024
	WitnessCommitTagMaxSize    = 512
	WitnessNextRoundTagMaxSize = 256
	WitnessProposalTagMaxSize  = 4*1024*1024 + 1024
	WitnessVoteTagMaxSize      = 512
)

// MaxMessageSize returns the maximum encoded size of a message with this tag.
func (tag Tag) MaxMessageSize() uint64 {
	switch tag {
	case BlockRequestTag:
		return BlockRequestTagMaxSize
	case TxnTag:
		return TxnTagMaxSize
	case WitnessCommitTag:
		return WitnessCommitTagMaxSize
	case WitnessNextRoundTag:
		return WitnessNextRoundTagMaxSize
	case WitnessProposalTag:
		return WitnessProposalTagMaxSize
	case WitnessVoteTag:
		return WitnessVoteTagMaxSize
	case UnknownMsgTag:
		return UnknownMsgTagMaxSize
	default:
		return 0
	}
}

// TagList lists the tags carried by gossip.
var TagList = []Tag{
	UnknownMsgTag,
	TxnTag,
	WitnessCommitTag,
	WitnessNextRoundTag,
	WitnessProposalTag,
	WitnessVoteTag,
}

// RequestTags are the tags of point-to-point requests. They are never gossiped.
var RequestTags = []Tag{
	BlockRequestTag,
}

// AgreementTags are the tags the consensus service listens on.
var AgreementTags = []Tag{
	WitnessCommitTag,
	WitnessNextRoundTag,
	WitnessProposalTag,
	WitnessVoteTag,
}
