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
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/data/basics"
)

var keygenOutFile string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a witness key pair",
	Long: `Generate a witness key pair. The public key goes into the genesis witness list;
the private key is passed to witnessd with --private-key.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		secrets, err := crypto.GenerateKeyPair()
		if err != nil {
			return err
		}
		sk := hex.EncodeToString(secrets.SK[:])
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Public key: %v\n", secrets.SignatureVerifier)
		fmt.Fprintf(out, "Address:    %v\n", basics.AddressFromPublicKey(secrets.SignatureVerifier))
		if keygenOutFile != "" {
			if err := os.WriteFile(keygenOutFile, []byte(sk+"\n"), 0600); err != nil {
				return err
			}
			fmt.Fprintf(out, "Private key written to %s\n", keygenOutFile)
			return nil
		}
		fmt.Fprintf(out, "Private key: %s\n", sk)
		return nil
	},
}

var genesisHashCmd = &cobra.Command{
	Use:   "genesis-hash",
	Short: "Print the hash of the genesis block",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir := opts.dataDir
		if dataDir == "" && opts.genesisFile == "" {
			return fmt.Errorf("either --datadir or --genesis is required")
		}
		genesis, err := loadGenesis(dataDir, opts.genesisFile)
		if err != nil {
			return err
		}
		h, err := genesis.Hash()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), h.String())
		return nil
	},
}

func init() {
	keygenCmd.Flags().StringVar(&keygenOutFile, "out", "", "Write the private key to this file instead of stdout")
}
