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

package pebbledriver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/witnessnet/go-witness/ledger/ledgercore"
	"github.com/witnessnet/go-witness/ledger/store"
	"github.com/witnessnet/go-witness/ledger/store/storetest"
	"github.com/witnessnet/go-witness/logging"
	"github.com/witnessnet/go-witness/testpartitioning"
)

func TestStoreSuite(t *testing.T) {
	testpartitioning.PartitionTest(t)

	storetest.RunSuite(t, func(t *testing.T) store.Store {
		s, err := Open(context.Background(), filepath.Join(t.TempDir(), uuid.NewString()), true, logging.TestingLog(t))
		require.NoError(t, err)
		return s
	})
}

func TestStoreReopen(t *testing.T) {
	testpartitioning.PartitionTest(t)

	path := filepath.Join(t.TempDir(), "ledger")
	ctx := context.Background()
	s, err := Open(ctx, path, false, logging.TestingLog(t))
	require.NoError(t, err)

	ref := storetest.Ref("persist", 0)
	coin := storetest.CoinFor("alice", 42)
	p := ledgercore.MakePatch(1)
	require.NoError(t, p.CreateCoin(ref, coin))
	require.NoError(t, s.ApplyPatch(ctx, p))
	s.Close()

	s, err = Open(ctx, path, false, logging.TestingLog(t))
	require.NoError(t, err)
	defer s.Close()
	got, ok, err := s.GetUtxo(ctx, ref)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, coin, got)
}
