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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/witnessnet/go-witness/config"
	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/daemon/witnessd"
	"github.com/witnessnet/go-witness/data/bookkeeping"
	"github.com/witnessnet/go-witness/util"
)

// lockFilename guards a data directory against a second witnessd.
const lockFilename = "witnessd.lock"

type options struct {
	dataDir       string
	genesisFile   string
	genesisHash   string
	privateKey    string
	listen        string
	netAddress    string
	peers         []string
	logToStdout   bool
	storageEngine string
}

var opts options

var rootCmd = &cobra.Command{
	Use:   "witnessd",
	Short: "Run a witness node",
	Long: `witnessd keeps a replica of the witness chain. With --private-key naming a
genesis witness it takes part in consensus; otherwise it follows the chain as an observer.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), opts)
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(genesisHashCmd)

	rootCmd.PersistentFlags().StringVarP(&opts.dataDir, "datadir", "d", os.Getenv("WITNESS_DATA"), "Data directory (defaults to $WITNESS_DATA)")
	rootCmd.PersistentFlags().StringVarP(&opts.genesisFile, "genesis", "g", "", "Genesis file (defaults to genesis.json in the data directory)")
	rootCmd.Flags().StringVar(&opts.genesisHash, "genesis-hash", "", "Expected genesis hash; startup fails if the genesis file or stored chain disagree")
	rootCmd.Flags().StringVar(&opts.privateKey, "private-key", os.Getenv("WITNESS_PRIVATE_KEY"), "Witness key as hex seed or private key, or a file holding one")
	rootCmd.Flags().StringVarP(&opts.listen, "listen", "l", "", "Override config.EndpointAddress (REST listening address) with ip:port")
	rootCmd.Flags().StringVar(&opts.netAddress, "net-address", "", "Override config.NetAddress (gossip multiaddr)")
	rootCmd.Flags().StringSliceVarP(&opts.peers, "peer", "p", nil, "Bootstrap peer multiaddr, repeatable; replaces config.BootstrapPeers")
	rootCmd.Flags().BoolVarP(&opts.logToStdout, "stdout", "o", false, "Write to stdout instead of node.log")
	rootCmd.Flags().StringVar(&opts.storageEngine, "storage", "", "Override config.StorageEngine (sqlite or pebble)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	signal.Ignore(syscall.SIGHUP)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveDataDir(dir string) (string, error) {
	if dir == "" {
		return "", errors.New("data directory not specified, use -d or set $WITNESS_DATA")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("can't convert data directory's path to absolute, %v: %w", dir, err)
	}
	if !util.IsDir(abs) {
		return "", fmt.Errorf("data directory %s does not appear to be valid", dir)
	}
	return abs, nil
}

func loadGenesis(dataDir, genesisFile string) (bookkeeping.Genesis, error) {
	if genesisFile == "" {
		genesisFile = filepath.Join(dataDir, config.GenesisJSONFile)
	}
	genesis, err := bookkeeping.LoadGenesisFromFile(genesisFile)
	if err != nil {
		return bookkeeping.Genesis{}, fmt.Errorf("error loading genesis file (%s): %w", genesisFile, err)
	}
	return genesis, nil
}

// loadSecrets parses the --private-key value, which is either the key in hex
// or the path of a file holding it. An empty value means observer mode.
func loadSecrets(value string) (*crypto.SignatureSecrets, error) {
	if value == "" {
		return nil, nil
	}
	if util.FileExists(value) {
		raw, err := os.ReadFile(value)
		if err != nil {
			return nil, err
		}
		value = strings.TrimSpace(string(raw))
	}
	return crypto.SecretsFromHex(value)
}

// applyOverrides folds command line flags into the loaded config.
func applyOverrides(cfg config.Local, o options) config.Local {
	if o.listen != "" {
		cfg.EndpointAddress = o.listen
	}
	if o.netAddress != "" {
		cfg.NetAddress = o.netAddress
	}
	if len(o.peers) > 0 {
		cfg.BootstrapPeers = o.peers
	}
	if o.logToStdout {
		cfg.LogToStdout = true
	}
	if o.storageEngine != "" {
		cfg.StorageEngine = o.storageEngine
	}
	return cfg
}

func run(ctx context.Context, o options) error {
	dataDir, err := resolveDataDir(o.dataDir)
	if err != nil {
		return err
	}

	// before doing anything further, attempt to acquire the lock
	// to ensure this is the only node running against this data directory
	fileLock := flock.New(filepath.Join(dataDir, lockFilename))
	locked, err := fileLock.TryLock()
	if err != nil {
		return fmt.Errorf("unexpected failure in establishing %s: %w", lockFilename, err)
	}
	if !locked {
		return fmt.Errorf("failed to lock %s; is an instance of witnessd already running in this data directory?", lockFilename)
	}
	defer fileLock.Unlock()

	genesis, err := loadGenesis(dataDir, o.genesisFile)
	if err != nil {
		return err
	}
	var genesisHash crypto.Digest
	if o.genesisHash != "" {
		genesisHash, err = crypto.DigestFromString(o.genesisHash)
		if err != nil {
			return fmt.Errorf("bad --genesis-hash: %w", err)
		}
	}
	secrets, err := loadSecrets(o.privateKey)
	if err != nil {
		return fmt.Errorf("bad --private-key: %w", err)
	}

	cfg, err := config.LoadConfigFromDiskOrDefault(dataDir)
	if err != nil {
		return fmt.Errorf("cannot load config: %w", err)
	}
	cfg = applyOverrides(cfg, o)
	if err = cfg.Validate(); err != nil {
		return err
	}

	// log is not setup yet
	fmt.Printf("Config loaded from %s\n", dataDir)
	fmt.Println("Configuration after loading/defaults merge: ")
	if err := json.NewEncoder(os.Stdout).Encode(cfg); err != nil {
		fmt.Println("Error encoding config: ", err)
	}

	s := witnessd.Server{
		RootPath:            dataDir,
		Genesis:             genesis,
		GenesisHashOverride: genesisHash,
		Secrets:             secrets,
		SessionID:           uuid.NewString(),
	}
	if err = s.Initialize(cfg); err != nil {
		return err
	}
	if err = s.Start(); err != nil {
		return err
	}
	defer s.Stop()
	if secrets != nil {
		fmt.Printf("Witness node running as %v\n", secrets.SignatureVerifier)
	} else {
		fmt.Println("Observer node running")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.ServeAPI(gctx) })
	g.Go(func() error { return s.WatchConsensus(gctx) })
	err = g.Wait()
	if err == nil {
		fmt.Println("Node exited successfully")
	}
	return err
}
