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

// Package hashers defines the node hash functions of the sparse Merkle tree.
package hashers

import (
	"github.com/godwokenrises/godwoken-sub007/types"
)

// Domain separation prefixes.
const (
	leafPrefix     = 0x00
	childrenPrefix = 0x01
)

// MapHasher provides the hash functions needed to compute sparse merkle trees.
//
// Both functions map default inputs to the zero digest, so an empty subtree
// hashes to zero at every height and absent keys need no special casing.
type MapHasher interface {
	// HashLeaf computes the hash of the leaf at key. A zero value hashes to
	// the zero digest.
	HashLeaf(key, value types.Digest) types.Digest
	// HashChildren computes an interior node. Two zero children hash to the
	// zero digest.
	HashChildren(l, r types.Digest) types.Digest
}

// Default is the blake2b-256 map hasher used on and off chain.
var Default MapHasher = blake2bHasher{}

type blake2bHasher struct{}

func (blake2bHasher) HashLeaf(key, value types.Digest) types.Digest {
	if value.IsZero() {
		return types.Zero
	}
	return types.Sum([]byte{leafPrefix}, key[:], value[:])
}

func (blake2bHasher) HashChildren(l, r types.Digest) types.Digest {
	if l.IsZero() && r.IsZero() {
		return types.Zero
	}
	return types.Sum([]byte{childrenPrefix}, l[:], r[:])
}
