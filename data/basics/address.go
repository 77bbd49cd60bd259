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
	"bytes"
	"encoding/base32"
	"fmt"

	"github.com/witnessnet/go-witness/crypto"
	"github.com/witnessnet/go-witness/protocol"
)

type (
	// Address is a unique identifier corresponding to ownership of coins.
	// It is the hash of the owner's public key.
	Address crypto.Digest
)

const (
	checksumLength = 4
)

// publicKeyHashable domain separates address derivation from other uses of a key.
type publicKeyHashable crypto.PublicKey

func (pk publicKeyHashable) ToBeHashed() (protocol.HashID, []byte) {
	return protocol.Address, pk[:]
}

// AddressFromPublicKey derives the address owned by the given public key.
func AddressFromPublicKey(pk crypto.PublicKey) Address {
	return Address(crypto.HashObj(publicKeyHashable(pk)))
}

// checksum returns the checksum as []byte
// Checksums are the last 4 bytes of the address hash. H(Address)[28:]
func (addr Address) checksum() []byte {
	shortAddressHash := crypto.Hash(addr[:])
	checksum := shortAddressHash[len(shortAddressHash)-checksumLength:]
	return checksum
}

// UnmarshalChecksumAddress tries to unmarshal the checksummed address string.
func UnmarshalChecksumAddress(address string) (Address, error) {
	decoded, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(address)
	if err != nil {
		return Address{}, fmt.Errorf("failed to decode address %s to base 32", address)
	}
	var short Address
	if len(decoded) != len(short)+checksumLength {
		return Address{}, fmt.Errorf("decoded bad addr: %s", address)
	}

	copy(short[:], decoded[:len(short)])
	incomingchecksum := decoded[len(decoded)-checksumLength:]

	if !bytes.Equal(incomingchecksum, short.checksum()) {
		return Address{}, fmt.Errorf("address %s is malformed, checksum verification failed", address)
	}

	return short, nil
}

// IsZero checks if an address is the zero value.
func (addr Address) IsZero() bool {
	return addr == Address{}
}

// String returns a string representation of Address
func (addr Address) String() string {
	addrWithChecksum := make([]byte, 0, len(addr)+checksumLength)
	addrWithChecksum = append(addrWithChecksum, addr[:]...)
	addrWithChecksum = append(addrWithChecksum, addr.checksum()...)
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(addrWithChecksum)
}

// MarshalText returns the address string as an array of bytes
func (addr Address) MarshalText() ([]byte, error) {
	return []byte(addr.String()), nil
}

// UnmarshalText initializes the Address from an array of bytes.
func (addr *Address) UnmarshalText(text []byte) error {
	address, err := UnmarshalChecksumAddress(string(text))
	if err == nil {
		*addr = address
		return nil
	}
	return err
}
