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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/witnessnet/go-witness/data/bookkeeping"
	"github.com/witnessnet/go-witness/protocol"
	"github.com/witnessnet/go-witness/testpartitioning"
)

func testProposal(t *testing.T, secretsIdx int) (proposal, []byte) {
	secrets := testSecrets(4)
	prev := bookkeeping.BlockHeader{Height: 6, TimeStamp: 1700000000}
	blk := bookkeeping.MakeBlock(prev, nil, secrets[secretsIdx].SignatureVerifier, 1700000010)
	p := proposal{Height: 7, Round: 2, BlockHash: blk.Hash(), Block: blk}.sign(secrets[secretsIdx]).(proposal)
	return p, protocol.Encode(p)
}

func TestMessageSignAndVerify(t *testing.T) {
	testpartitioning.PartitionTest(t)

	secrets := testSecrets(4)
	validate := MakeMessageValidator(publicKeys(secrets))

	_, data := testProposal(t, 1)
	require.NoError(t, validate(protocol.WitnessProposalTag, data))

	v := vote{Height: 7, Round: 2, BlockHash: bookkeeping.BlockHash{1}, Accept: true}.sign(secrets[2])
	require.NoError(t, validate(protocol.WitnessVoteTag, protocol.Encode(v)))

	c := commitNotice{Height: 7, Round: 2, BlockHash: bookkeeping.BlockHash{1}}.sign(secrets[3])
	require.NoError(t, validate(protocol.WitnessCommitTag, protocol.Encode(c)))

	n := nextRound{Height: 7, Round: 4}.sign(secrets[0])
	require.NoError(t, validate(protocol.WitnessNextRoundTag, protocol.Encode(n)))
	forged := n.(nextRound)
	forged.Round++
	require.ErrorIs(t, validate(protocol.WitnessNextRoundTag, protocol.Encode(forged)), errBadSignature)

	m, err := decodeMessage(protocol.WitnessVoteTag, protocol.Encode(v))
	require.NoError(t, err)
	require.Equal(t, v, m)
}

func TestMessageVerifyFailures(t *testing.T) {
	testpartitioning.PartitionTest(t)

	secrets := testSecrets(5)
	witnesses := witnessSet(publicKeys(secrets[:4]))

	v := vote{Height: 3, Round: 0, BlockHash: bookkeeping.BlockHash{9}, Accept: true}.sign(secrets[0]).(vote)
	require.NoError(t, verifyMessage(v, witnesses))

	flipped := v
	flipped.Accept = false
	require.ErrorIs(t, verifyMessage(flipped, witnesses), errBadSignature)

	outsider := vote{Height: 3, BlockHash: bookkeeping.BlockHash{9}}.sign(secrets[4])
	require.ErrorIs(t, verifyMessage(outsider, witnesses), errUnknownWitness)

	p, _ := testProposal(t, 1)
	wrongHash := p
	wrongHash.Block.TimeStamp++
	require.ErrorIs(t, verifyMessage(wrongHash, witnesses), errMalformedProposal)

	wrongHeight := p
	wrongHeight.Height++
	require.ErrorIs(t, verifyMessage(wrongHeight, witnesses), errMalformedProposal)

	_, err := decodeMessage(protocol.TxnTag, nil)
	require.ErrorIs(t, err, errUnknownTag)

	validate := MakeMessageValidator(publicKeys(secrets[:4]))
	require.Error(t, validate(protocol.WitnessVoteTag, []byte{0xc1}))
}
