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

package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Seed holds the entropy needed to generate cryptographic keys.
type Seed [32]byte

// PublicKey is an exported ed25519PublicKey
type PublicKey [ed25519.PublicKeySize]byte

// PrivateKey is an exported ed25519PrivateKey
type PrivateKey [ed25519.PrivateKeySize]byte

// Signature is a cryptographic signature. It proves that a message was
// produced by a holder of a cryptographic secret.
type Signature [ed25519.SignatureSize]byte

// BlankSignature is an empty signature structure, containing nothing but zeroes
var BlankSignature = Signature{}

// Blank tests to see if the given signature contains only zeros
func (s *Signature) Blank() bool {
	return (*s) == BlankSignature
}

// A SignatureVerifier is used to identify the holder of SignatureSecrets
// and verify the authenticity of Signatures.
type SignatureVerifier = PublicKey

// SignatureSecrets are used by an entity to produce unforgeable signatures over
// a message.
type SignatureSecrets struct {
	SignatureVerifier
	SK PrivateKey
}

// ErrBadSecretKey is returned when a secret key string cannot be parsed.
var ErrBadSecretKey = errors.New("secret key must be a 32-byte seed or a 64-byte private key in hex")

// GenerateSignatureSecrets creates SignatureSecrets from a source of entropy.
func GenerateSignatureSecrets(seed Seed) *SignatureSecrets {
	sk := ed25519.NewKeyFromSeed(seed[:])
	s := &SignatureSecrets{}
	copy(s.SK[:], sk)
	copy(s.SignatureVerifier[:], sk.Public().(ed25519.PublicKey))
	return s
}

// GenerateKeyPair creates fresh SignatureSecrets from the system random source.
func GenerateKeyPair() (*SignatureSecrets, error) {
	var seed Seed
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, err
	}
	return GenerateSignatureSecrets(seed), nil
}

// SecretsFromHex parses a hex-encoded seed or private key.
func SecretsFromHex(s string) (*SignatureSecrets, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSecretKey, err)
	}
	var seed Seed
	switch len(raw) {
	case len(seed):
		copy(seed[:], raw)
	case ed25519.PrivateKeySize:
		copy(seed[:], raw[:len(seed)])
		secrets := GenerateSignatureSecrets(seed)
		if string(secrets.SignatureVerifier[:]) != string(raw[len(seed):]) {
			return nil, fmt.Errorf("%w: public half does not match seed", ErrBadSecretKey)
		}
		return secrets, nil
	default:
		return nil, ErrBadSecretKey
	}
	return GenerateSignatureSecrets(seed), nil
}

// Sign produces a cryptographic Signature of a Hashable message, given
// cryptographic secrets.
func (s *SignatureSecrets) Sign(message Hashable) Signature {
	return s.SignBytes(HashRep(message))
}

// SignBytes signs a message directly, without first hashing.
// Caller is responsible for domain separation.
func (s *SignatureSecrets) SignBytes(message []byte) (sig Signature) {
	copy(sig[:], ed25519.Sign(ed25519.PrivateKey(s.SK[:]), message))
	return
}

// Verify verifies that some holder of a cryptographic secret authentically
// signed a Hashable message.
func (v PublicKey) Verify(message Hashable, sig Signature) bool {
	return v.VerifyBytes(HashRep(message), sig)
}

// VerifyBytes verifies a signature, where the message is not hashed first.
// Caller is responsible for domain separation.
func (v PublicKey) VerifyBytes(message []byte, sig Signature) bool {
	return ed25519ConsensusVerifySingle(v, message, sig)
}

// IsZero reports whether the key is all zeroes.
func (v PublicKey) IsZero() bool {
	return v == PublicKey{}
}

// String returns the key in hex.
func (v PublicKey) String() string {
	return hex.EncodeToString(v[:])
}

// MarshalText implements encoding.TextMarshaler.
func (v PublicKey) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *PublicKey) UnmarshalText(text []byte) error {
	pk, err := PublicKeyFromString(string(text))
	if err != nil {
		return err
	}
	*v = pk
	return nil
}

// PublicKeyFromString parses a hex-encoded public key.
func PublicKeyFromString(s string) (pk PublicKey, err error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return pk, err
	}
	if len(raw) != len(pk) {
		return pk, fmt.Errorf("public key %q has %d bytes, want %d", s, len(raw), len(pk))
	}
	copy(pk[:], raw)
	return pk, nil
}
