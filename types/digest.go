// Copyright 2024 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package types contains the value types shared by the state layer, the
// block producer and the on-chain verifier.
package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// DigestSize is the length of a Digest in bytes.
const DigestSize = 32

// Digest is a 256-bit value. It is used for tree keys, values, node hashes
// and roots. The zero Digest is the default value of every key.
type Digest [DigestSize]byte

// Zero is the default digest.
var Zero Digest

// IsZero reports whether d is the default digest.
func (d Digest) IsZero() bool { return d == Zero }

// Bytes returns a copy of d as a slice.
func (d Digest) Bytes() []byte {
	b := make([]byte, DigestSize)
	copy(b, d[:])
	return b
}

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// DigestFromBytes converts b to a Digest. b must be exactly DigestSize long.
func DigestFromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestSize {
		return d, fmt.Errorf("digest must be %d bytes, got %d", DigestSize, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// ParseDigest decodes a hex string into a Digest.
func ParseDigest(s string) (Digest, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Zero, err
	}
	return DigestFromBytes(b)
}

// Sum returns the blake2b-256 digest of the concatenation of parts.
func Sum(parts ...[]byte) Digest {
	h, err := blake2b.New256(nil)
	if err != nil {
		// Only possible with an oversized key.
		panic(err)
	}
	for _, p := range parts {
		h.Write(p)
	}
	var d Digest
	h.Sum(d[:0])
	return d
}

// Uint64Digest returns a digest carrying n in little-endian order in its
// first eight bytes. It keys the block tree by block number.
func Uint64Digest(n uint64) Digest {
	var d Digest
	binary.LittleEndian.PutUint64(d[:8], n)
	return d
}

// LeafUpdate is a write to a single key, with the value before and after.
type LeafUpdate struct {
	Key Digest
	Old Digest
	New Digest
}

// Leaf is a key and its value in a sparse Merkle tree.
type Leaf struct {
	Key   Digest
	Value Digest
}
