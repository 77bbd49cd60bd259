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

package p2p

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/libp2p/go-libp2p/core/crypto"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/util"
)

// DefaultPrivKeyPath is the default path inside the node's root directory at which the private key
// for p2p identity is found and persisted to when a new one is generated.
const DefaultPrivKeyPath = "peerIDPrivKey.key"

// GetPrivKey manages loading and creation of private keys for network PeerIDs.
// A key stored under dataDir is loaded; otherwise a new one is generated and,
// if cfg.P2PPersistPeerID, saved for the next start.
func GetPrivKey(cfg config.Local, dataDir string) (crypto.PrivKey, error) {
	var keyPath string
	if dataDir != "" {
		keyPath = filepath.Join(dataDir, DefaultPrivKeyPath)
		if util.FileExists(keyPath) {
			return loadPrivateKeyFromFile(keyPath)
		}
	}
	privKey, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key %w", err)
	}
	if cfg.P2PPersistPeerID && keyPath != "" {
		return privKey, writePrivateKeyToFile(keyPath, privKey)
	}
	return privKey, nil
}

// loadPrivateKeyFromFile attempts to read raw privKey bytes from path
// It only supports Ed25519 keys.
func loadPrivateKeyFromFile(path string) (crypto.PrivKey, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return crypto.UnmarshalEd25519PrivateKey(bytes)
}

// writePrivateKeyToFile attempts to write raw privKey bytes to path
func writePrivateKeyToFile(path string, privKey crypto.PrivKey) error {
	bytes, err := privKey.Raw()
	if err != nil {
		return err
	}
	return os.WriteFile(path, bytes, 0600)
}
