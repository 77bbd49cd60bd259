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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/witnessnet/go-witness/testpartitioning"
)

func TestSaveThenLoad(t *testing.T) {
	testpartitioning.PartitionTest(t)

	dir := t.TempDir()
	c1 := GetDefaultLocal()
	c1.StorageEngine = StorageEnginePebble
	c1.BootstrapPeers = []string{"/ip4/10.0.0.1/tcp/4161/p2p/12D3KooWExample"}
	require.NoError(t, c1.SaveToDisk(dir))

	c2, err := LoadConfigFromDisk(dir)
	require.NoError(t, err)
	require.Equal(t, c1, c2)
}

func TestLoadMissing(t *testing.T) {
	testpartitioning.PartitionTest(t)

	dir := t.TempDir()
	_, err := LoadConfigFromDisk(dir)
	require.True(t, os.IsNotExist(err))

	c, err := LoadConfigFromDiskOrDefault(dir)
	require.NoError(t, err)
	require.Equal(t, GetDefaultLocal(), c)
}

func TestMergeConfig(t *testing.T) {
	testpartitioning.PartitionTest(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFilename), []byte(`{"TxPoolSize": 7}`), 0644))

	c, err := LoadConfigFromDisk(dir)
	require.NoError(t, err)
	require.Equal(t, 7, c.TxPoolSize)
	require.Equal(t, GetDefaultLocal().StorageEngine, c.StorageEngine)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFilename), []byte(`{"StorageEngine": "leveldb"}`), 0644))
	_, err = LoadConfigFromDisk(dir)
	require.Error(t, err)
}

func TestValidateLocal(t *testing.T) {
	testpartitioning.PartitionTest(t)

	require.NoError(t, GetDefaultLocal().Validate())

	c := GetDefaultLocal()
	c.TxPoolSize = 0
	require.Error(t, c.Validate())

	c = GetDefaultLocal()
	c.CatchupBlockCacheSize = -1
	require.Error(t, c.Validate())

	c = GetDefaultLocal()
	c.CatchupBlockFetchTimeoutSec = -1
	require.Error(t, c.Validate())
}

func TestConsensusDefaults(t *testing.T) {
	testpartitioning.PartitionTest(t)

	p := DefaultConsensusParams()
	require.NoError(t, p.Validate())
	require.Equal(t, 10*time.Second, p.RoundChangeTimeout)
	require.Equal(t, 20*time.Second, p.BlockTimeout)
	require.Equal(t, 10*time.Second, p.VoteBlockTimeout)
	require.Equal(t, 20*time.Second, p.CommitTimeout)
	require.Equal(t, 15*time.Minute, p.EmptyBlockHoldoff)
	require.Equal(t, time.Hour, p.ToleratedClockDrift)
	require.Equal(t, EmptyBlockWait, p.EmptyBlockPolicy)
}

func TestQuorumThresholds(t *testing.T) {
	testpartitioning.PartitionTest(t)

	p := DefaultConsensusParams()
	require.Equal(t, 1, p.AcceptThreshold(1))
	require.Equal(t, 2, p.AcceptThreshold(3))
	require.Equal(t, 3, p.AcceptThreshold(4))
	require.Equal(t, 3, p.RejectThreshold(5))

	p.AcceptQuorum = 5
	p.RejectQuorum = 2
	require.Equal(t, 5, p.AcceptThreshold(7))
	require.Equal(t, 2, p.RejectThreshold(7))
}

func TestLoadConsensusParams(t *testing.T) {
	testpartitioning.PartitionTest(t)

	dir := t.TempDir()
	p, err := LoadConsensusParams(dir)
	require.NoError(t, err)
	require.Equal(t, DefaultConsensusParams(), p)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ConsensusFilename), []byte(`{"EmptyBlockPolicy": "propose", "RejectQuorum": 2}`), 0644))
	p, err = LoadConsensusParams(dir)
	require.NoError(t, err)
	require.Equal(t, EmptyBlockPropose, p.EmptyBlockPolicy)
	require.Equal(t, 2, p.RejectQuorum)
	require.Equal(t, DefaultConsensusParams().BlockTimeout, p.BlockTimeout)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ConsensusFilename), []byte(`{"EmptyBlockPolicy": "sometimes"}`), 0644))
	_, err = LoadConsensusParams(dir)
	require.ErrorIs(t, err, ErrInvalidConsensusParams)
}
