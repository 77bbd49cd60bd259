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

	"github.com/witnessnet/go-witness/util/codecs"
)

// ConfigFilename is the name of the config.json file where we store per-node configuration
const ConfigFilename = "config.json"

// GenesisJSONFile is the name of the genesis.json file
const GenesisJSONFile = "genesis.json"

// LedgerFilenamePrefix is the prefix of the ledger database files in the data directory
const LedgerFilenamePrefix = "ledger"

// Storage engines supported by the ledger.
const (
	StorageEngineSqlite = "sqlite"
	StorageEnginePebble = "pebble"
)

// Local holds the per-node runtime configuration.
// These settings may differ between witnesses of the same network.
type Local struct {
	// NetAddress is the multiaddr the gossip network listens on.
	NetAddress string

	// BootstrapPeers lists multiaddrs (including the /p2p/ peer id) dialed on startup.
	BootstrapPeers []string

	// P2PPersistPeerID keeps the network identity across restarts.
	P2PPersistPeerID bool

	// StorageEngine is either "sqlite" or "pebble".
	StorageEngine string

	// InMemoryStorage keeps the ledger in memory only. Used by tests.
	InMemoryStorage bool

	BaseLoggerDebugLevel uint32
	LogToStdout          bool
	LogFileName          string

	LogArchiveName string

	// LogSizeLimit is the size in bytes at which the live log is archived.
	LogSizeLimit uint64

	// DeadlockDetectionThreshold is how many seconds a lock may be waited on
	// before it is reported as a potential deadlock. 0 disables detection.
	DeadlockDetectionThreshold uint64

	// TxPoolSize is the number of transactions the pending pool holds.
	TxPoolSize int

	// EndpointAddress is the address the HTTP API listens on. Empty disables it.
	EndpointAddress string

	RestReadTimeoutSeconds  int
	RestWriteTimeoutSeconds int

	// EnableMetrics serves prometheus metrics on the API endpoint.
	EnableMetrics bool

	// IncomingMessageBufferSize sizes the per-tag queues between the
	// network and consensus.
	IncomingMessageBufferSize int

	// EnableBlockService answers block requests from peers catching up.
	EnableBlockService bool

	// BlockServiceMaxConcurrentRequests bounds the block requests served at
	// once. Requests past it are refused.
	BlockServiceMaxConcurrentRequests int

	// CatchupBlockFetchTimeoutSec bounds a single block request.
	CatchupBlockFetchTimeoutSec int

	// CatchupBlockDownloadRetryAttempts is how many peers are asked for a
	// block before catch-up gives up on it.
	CatchupBlockDownloadRetryAttempts int

	// CatchupBlockCacheSize is how many fetched blocks catch-up keeps in
	// memory while it checks the chain back from a certified block. Blocks
	// past it are fetched again when applied.
	CatchupBlockCacheSize int
}

var defaultLocal = Local{
	NetAddress:                 "/ip4/0.0.0.0/tcp/4161",
	P2PPersistPeerID:           true,
	StorageEngine:              StorageEngineSqlite,
	BaseLoggerDebugLevel:       4,
	LogFileName:                "node.log",
	LogArchiveName:             "node.archive.log",
	LogSizeLimit:               1 << 30,
	DeadlockDetectionThreshold: 30,
	TxPoolSize:                 15000,
	EndpointAddress:            "127.0.0.1:8080",
	RestReadTimeoutSeconds:     15,
	RestWriteTimeoutSeconds:    120,
	EnableMetrics:              true,
	IncomingMessageBufferSize:  1000,

	EnableBlockService:                true,
	BlockServiceMaxConcurrentRequests: 16,
	CatchupBlockFetchTimeoutSec:       4,
	CatchupBlockDownloadRetryAttempts: 10,
	CatchupBlockCacheSize:             1000,
}

// ResolveLogPaths returns the live and archive log paths under rootDir.
func (cfg Local) ResolveLogPaths(rootDir string) (liveLog, archive string) {
	return filepath.Join(rootDir, cfg.LogFileName), filepath.Join(rootDir, cfg.LogArchiveName)
}

// GetDefaultLocal returns a copy of the current defaultLocal config
func GetDefaultLocal() Local {
	return defaultLocal
}

// LoadConfigFromDisk returns a Local config structure based on merging the defaults
// with settings loaded from the config file from the custom dir.  If the custom file
// cannot be loaded, the default config is returned (with the error from loading the
// custom file).
func LoadConfigFromDisk(custom string) (c Local, err error) {
	c = defaultLocal
	err = codecs.LoadObjectFromFile(filepath.Join(custom, ConfigFilename), &c)
	if err != nil {
		return defaultLocal, err
	}
	return c, c.Validate()
}

// LoadConfigFromDiskOrDefault is LoadConfigFromDisk, treating a missing file as "use the defaults".
func LoadConfigFromDiskOrDefault(custom string) (Local, error) {
	c, err := LoadConfigFromDisk(custom)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return defaultLocal, nil
	}
	return c, err
}

// SaveToDisk writes the Local settings into a root/ConfigFilename file
func (cfg Local) SaveToDisk(root string) error {
	return codecs.SaveObjectToFile(filepath.Join(root, ConfigFilename), cfg, true)
}

// Validate checks the settings for values the node cannot start with.
func (cfg Local) Validate() error {
	switch cfg.StorageEngine {
	case StorageEngineSqlite, StorageEnginePebble:
	default:
		return fmt.Errorf("unknown StorageEngine %q", cfg.StorageEngine)
	}
	if cfg.TxPoolSize <= 0 {
		return fmt.Errorf("TxPoolSize must be positive, got %d", cfg.TxPoolSize)
	}
	if cfg.IncomingMessageBufferSize <= 0 {
		return fmt.Errorf("IncomingMessageBufferSize must be positive, got %d", cfg.IncomingMessageBufferSize)
	}
	if cfg.EnableBlockService && cfg.BlockServiceMaxConcurrentRequests <= 0 {
		return fmt.Errorf("BlockServiceMaxConcurrentRequests must be positive, got %d", cfg.BlockServiceMaxConcurrentRequests)
	}
	if cfg.CatchupBlockFetchTimeoutSec <= 0 || cfg.CatchupBlockDownloadRetryAttempts <= 0 || cfg.CatchupBlockCacheSize < 0 {
		return errors.New("catch-up settings must be positive")
	}
	return nil
}
