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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/witnessnet/go-witness/util/codecs"
)

// ConsensusFilename is the name of the optional file in the data directory
// that overrides the default consensus parameters.
const ConsensusFilename = "consensus.json"

// EmptyBlockPolicy decides what a proposer does when it has nothing to propose
// and the empty-block holdoff since the last block has not yet elapsed.
type EmptyBlockPolicy string

const (
	// EmptyBlockWait makes the proposer re-poll the mempool until transactions
	// arrive or the holdoff elapses. Validators reject early empty blocks.
	EmptyBlockWait EmptyBlockPolicy = "wait"

	// EmptyBlockPropose proposes the empty block immediately.
	EmptyBlockPropose EmptyBlockPolicy = "propose"
)

// ConsensusParams specifies settings that every witness of a network must agree on.
// The value is loaded once at startup and passed by value to every component
// that needs it; it is never mutated afterwards.
type ConsensusParams struct {
	// AcceptQuorum is the number of accept votes for the same block hash
	// required to commit. Zero means a strict majority of the witness set.
	AcceptQuorum int

	// RejectQuorum is the number of reject votes that abandons a round
	// before its timeout. Zero means a strict majority of the witness set.
	RejectQuorum int

	// Per-state timeouts of the witness round.
	RoundChangeTimeout time.Duration
	BlockTimeout       time.Duration
	VoteBlockTimeout   time.Duration
	CommitTimeout      time.Duration

	// MaxBlockBytes bounds the encoded size of a block.
	MaxBlockBytes int

	// EmptyBlockHoldoff is the minimum time between a block and a following
	// empty block under the wait policy.
	EmptyBlockHoldoff time.Duration
	EmptyBlockPolicy  EmptyBlockPolicy

	// AssemblyRetryInterval is how often a waiting proposer re-polls the mempool.
	AssemblyRetryInterval time.Duration

	// ToleratedClockDrift bounds how far a block timestamp may be from local time.
	ToleratedClockDrift time.Duration

	MaxTxnInputs    int
	MaxTxnOutputs   int
	MaxTxnNoteBytes int

	// MaxPendingMessages bounds the number of buffered messages for future
	// rounds of the current height.
	MaxPendingMessages int
}

// ErrInvalidConsensusParams is returned by Validate.
var ErrInvalidConsensusParams = errors.New("invalid consensus parameters")

var defaultConsensus = ConsensusParams{
	RoundChangeTimeout:    10 * time.Second,
	BlockTimeout:          20 * time.Second,
	VoteBlockTimeout:      10 * time.Second,
	CommitTimeout:         20 * time.Second,
	MaxBlockBytes:         1 << 20,
	EmptyBlockHoldoff:     15 * time.Minute,
	EmptyBlockPolicy:      EmptyBlockWait,
	AssemblyRetryInterval: time.Second,
	ToleratedClockDrift:   time.Hour,
	MaxTxnInputs:          256,
	MaxTxnOutputs:         256,
	MaxTxnNoteBytes:       1024,
	MaxPendingMessages:    1024,
}

// DefaultConsensusParams returns a copy of the default consensus parameters.
func DefaultConsensusParams() ConsensusParams {
	return defaultConsensus
}

// LoadConsensusParams reads consensus.json from dataDir, if present, merged
// over the defaults.
func LoadConsensusParams(dataDir string) (ConsensusParams, error) {
	params := defaultConsensus
	path := filepath.Join(dataDir, ConsensusFilename)
	err := codecs.LoadObjectFromFile(path, &params)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConsensus, nil
		}
		return ConsensusParams{}, fmt.Errorf("unable to load %s: %w", path, err)
	}
	if err := params.Validate(); err != nil {
		return ConsensusParams{}, err
	}
	return params, nil
}

// Validate checks the parameters for settings no network could run with.
func (p ConsensusParams) Validate() error {
	switch {
	case p.AcceptQuorum < 0 || p.RejectQuorum < 0:
		return fmt.Errorf("%w: negative quorum", ErrInvalidConsensusParams)
	case p.RoundChangeTimeout <= 0 || p.BlockTimeout <= 0 || p.VoteBlockTimeout <= 0 || p.CommitTimeout <= 0:
		return fmt.Errorf("%w: state timeouts must be positive", ErrInvalidConsensusParams)
	case p.MaxBlockBytes <= 0:
		return fmt.Errorf("%w: MaxBlockBytes must be positive", ErrInvalidConsensusParams)
	case p.EmptyBlockPolicy != EmptyBlockWait && p.EmptyBlockPolicy != EmptyBlockPropose:
		return fmt.Errorf("%w: unknown EmptyBlockPolicy %q", ErrInvalidConsensusParams, p.EmptyBlockPolicy)
	case p.EmptyBlockPolicy == EmptyBlockWait && p.AssemblyRetryInterval <= 0:
		return fmt.Errorf("%w: AssemblyRetryInterval must be positive", ErrInvalidConsensusParams)
	case p.MaxTxnInputs <= 0 || p.MaxTxnOutputs <= 0 || p.MaxTxnNoteBytes < 0:
		return fmt.Errorf("%w: transaction bounds must be positive", ErrInvalidConsensusParams)
	}
	return nil
}

func strictMajority(n int) int {
	return n/2 + 1
}

// AcceptThreshold returns the number of accept votes needed to commit
// with a witness set of size n.
func (p ConsensusParams) AcceptThreshold(n int) int {
	if p.AcceptQuorum > 0 {
		return p.AcceptQuorum
	}
	return strictMajority(n)
}

// RejectThreshold returns the number of reject votes that abandon a round
// with a witness set of size n.
func (p ConsensusParams) RejectThreshold(n int) int {
	if p.RejectQuorum > 0 {
		return p.RejectQuorum
	}
	return strictMajority(n)
}
