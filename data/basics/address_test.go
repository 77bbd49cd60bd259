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

package basics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/testpartitioning"
)

func TestChecksumAddressUnmarshal(t *testing.T) {
	testpartitioning.PartitionTest(t)

	shortAddress := Address(crypto.Hash([]byte("randomString")))
	addr, err := UnmarshalChecksumAddress(shortAddress.String())
	require.NoError(t, err)
	require.Equal(t, addr, shortAddress)
}

func TestAddressChecksumMalformed(t *testing.T) {
	testpartitioning.PartitionTest(t)

	shortAddress := Address(crypto.Hash([]byte("randomString")))
	good := shortAddress.String()

	for _, bad := range []string{
		"",
		good + "r",
		good + " ",
		"4" + good,
		good[:len(good)-1] + string(good[len(good)-1]^1),
		good[:20],
	} {
		_, err := UnmarshalChecksumAddress(bad)
		require.Error(t, err, bad)
	}
}

func TestAddressFromPublicKey(t *testing.T) {
	testpartitioning.PartitionTest(t)

	var seed crypto.Seed
	seed[0] = 1
	a := crypto.GenerateSignatureSecrets(seed)
	seed[0] = 2
	b := crypto.GenerateSignatureSecrets(seed)

	addrA := AddressFromPublicKey(a.SignatureVerifier)
	require.Equal(t, addrA, AddressFromPublicKey(a.SignatureVerifier))
	require.NotEqual(t, addrA, AddressFromPublicKey(b.SignatureVerifier))
	require.NotEqual(t, Address(crypto.Hash(a.SignatureVerifier[:])), addrA)
	require.False(t, addrA.IsZero())
}

func TestAddressJSON(t *testing.T) {
	testpartitioning.PartitionTest(t)

	addr := Address(crypto.Hash([]byte("receiver")))
	enc, err := json.Marshal(addr)
	require.NoError(t, err)

	var out Address
	require.NoError(t, json.Unmarshal(enc, &out))
	require.Equal(t, addr, out)

	require.Error(t, json.Unmarshal([]byte(`"garbage"`), &out))
}
