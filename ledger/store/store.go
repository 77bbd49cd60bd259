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

// Package store defines the durable storage of the unspent-output set and
// the committed chain.
package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/golang/snappy"

	"github.com/witnessnet/go-witness/data/basics"
	"github.com/witnessnet/go-witness/data/bookkeeping"
	"github.com/witnessnet/go-witness/data/transactions"
	"github.com/witnessnet/go-witness/ledger/ledgercore"
	"github.com/witnessnet/go-witness/protocol"
)

// Store is the durable unspent-output set plus the committed blocks.
//
// Writes are atomic: readers observe either the full state before a write
// or the full state after it.
type Store interface {
	// GetUtxo returns the durable coin under ref.
	GetUtxo(ctx context.Context, ref transactions.Outpoint) (ledgercore.Coin, bool, error)

	// GetUtxosCreateMap fetches every ref present in storage from a single
	// consistent view. Absent refs are omitted from the map.
	GetUtxosCreateMap(ctx context.Context, refs []transactions.Outpoint) (ledgercore.UtxoMap, error)

	// ApplyPatch merges patch into the durable set. Coins the patch created
	// must not exist yet and coins it spent must exist; otherwise nothing is
	// written and a *PatchConflictError is returned.
	ApplyPatch(ctx context.Context, patch *ledgercore.Patch) error

	// CommitBlock applies patch and records blk in one atomic write.
	// blk must directly follow the latest stored block.
	CommitBlock(ctx context.Context, blk bookkeeping.Block, patch *ledgercore.Patch) error

	// LatestBlock returns the highest committed block, if any.
	LatestBlock(ctx context.Context) (bookkeeping.Block, bool, error)

	// Block returns the block at height h or ledgercore.ErrNoEntry.
	Block(ctx context.Context, h basics.Height) (bookkeeping.Block, error)

	Close()
}

var (
	// ErrPatchConflict classifies patches that disagree with durable state.
	ErrPatchConflict = errors.New("patch conflicts with stored state")
	// ErrBlockOutOfOrder is returned when a committed block does not follow the latest one.
	ErrBlockOutOfOrder = errors.New("block out of order")
)

// PatchConflictError names the reference that made a patch inapplicable.
type PatchConflictError struct {
	Ref    transactions.Outpoint
	Reason string
}

// Error satisfies builtin interface `error`
func (e *PatchConflictError) Error() string {
	return fmt.Sprintf("cannot apply patch at %s: %s", e.Ref, e.Reason)
}

// Is matches ErrPatchConflict.
func (e *PatchConflictError) Is(target error) bool {
	return target == ErrPatchConflict
}

// CoinExists returns the conflict for inserting an already stored coin.
func CoinExists(ref transactions.Outpoint) error {
	return &PatchConflictError{Ref: ref, Reason: "coin already stored"}
}

// CoinMissing returns the conflict for deleting a coin that is not stored.
func CoinMissing(ref transactions.Outpoint) error {
	return &PatchConflictError{Ref: ref, Reason: "spent coin not stored"}
}

// CheckSequence verifies that a block at height h may follow latest.
func CheckSequence(h basics.Height, latest basics.Height, empty bool) error {
	expected := basics.Height(0)
	if !empty {
		expected = latest + 1
	}
	if h != expected {
		return fmt.Errorf("inserting block %d but expected %d: %w", h, expected, ErrBlockOutOfOrder)
	}
	return nil
}

// OutpointKeySize is the length of an encoded Outpoint key.
const OutpointKeySize = len(transactions.Txid{}) + 4

// OutpointKey encodes ref as txid || big-endian index.
func OutpointKey(ref transactions.Outpoint) []byte {
	key := make([]byte, OutpointKeySize)
	copy(key, ref.TxID[:])
	binary.BigEndian.PutUint32(key[len(ref.TxID):], ref.Index)
	return key
}

// EncodeCoin returns the stored form of a coin.
func EncodeCoin(c ledgercore.Coin) []byte {
	return protocol.Encode(&c)
}

// DecodeCoin parses a stored coin.
func DecodeCoin(buf []byte) (c ledgercore.Coin, err error) {
	err = protocol.Decode(buf, &c)
	return
}

// EncodeHeader returns the stored form of a block header.
func EncodeHeader(hdr bookkeeping.BlockHeader) []byte {
	return protocol.Encode(&hdr)
}

// EncodeBlock returns the snappy-compressed msgpack form of blk.
func EncodeBlock(blk bookkeeping.Block) []byte {
	return snappy.Encode(nil, protocol.Encode(&blk))
}

// DecodeBlock reverses EncodeBlock.
func DecodeBlock(buf []byte) (blk bookkeeping.Block, err error) {
	raw, err := snappy.Decode(nil, buf)
	if err != nil {
		return blk, fmt.Errorf("block blob: %w", err)
	}
	err = protocol.Decode(raw, &blk)
	return
}
