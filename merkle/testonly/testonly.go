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

// Package testonly contains code and data for testing Merkle trees.
package testonly

import (
	"math/rand"

	"github.com/godwokenrises/godwoken-sub007/merkle/hashers"
	"github.com/godwokenrises/godwoken-sub007/merkle/smt/node"
	"github.com/godwokenrises/godwoken-sub007/types"
)

// Root computes the root of the tree holding the given leaves by plain
// recursion over the key bits. It is slow, and serves as a reference for the
// real implementation. Later leaves override earlier ones with the same key.
func Root(h hashers.MapHasher, leaves []types.Leaf) types.Digest {
	return subtreeRoot(h, nonZero(leaves), 0)
}

// InclusionProof returns the siblings on key's path, leaf to root, in the
// tree holding the given leaves. It is the reference for single-key proofs.
func InclusionProof(h hashers.MapHasher, leaves []types.Leaf, key types.Digest) []types.Digest {
	proof := make([]types.Digest, node.MaxDepth)
	set := nonZero(leaves)
	for depth := uint(0); depth < node.MaxDepth; depth++ {
		var same, other []types.Leaf
		for _, l := range set {
			if node.Bit(l.Key, depth) == node.Bit(key, depth) {
				same = append(same, l)
			} else {
				other = append(other, l)
			}
		}
		proof[node.MaxDepth-1-depth] = subtreeRoot(h, other, depth+1)
		set = same
	}
	return proof
}

func nonZero(leaves []types.Leaf) []types.Leaf {
	m := make(map[types.Digest]types.Digest)
	for _, l := range leaves {
		m[l.Key] = l.Value
	}
	var set []types.Leaf
	for k, v := range m {
		if !v.IsZero() {
			set = append(set, types.Leaf{Key: k, Value: v})
		}
	}
	return set
}

func subtreeRoot(h hashers.MapHasher, leaves []types.Leaf, depth uint) types.Digest {
	if len(leaves) == 0 {
		return types.Zero
	}
	if depth == node.MaxDepth {
		return h.HashLeaf(leaves[0].Key, leaves[0].Value)
	}
	var left, right []types.Leaf
	for _, l := range leaves {
		if node.Bit(l.Key, depth) == 0 {
			left = append(left, l)
		} else {
			right = append(right, l)
		}
	}
	return h.HashChildren(subtreeRoot(h, left, depth+1), subtreeRoot(h, right, depth+1))
}

// RandomDigest returns a digest with random content.
func RandomDigest(rnd *rand.Rand) types.Digest {
	var d types.Digest
	rnd.Read(d[:])
	return d
}

// RandomLeaves returns n leaves with random keys and non-zero values.
func RandomLeaves(rnd *rand.Rand, n int) []types.Leaf {
	leaves := make([]types.Leaf, n)
	for i := range leaves {
		leaves[i] = types.Leaf{Key: RandomDigest(rnd), Value: RandomDigest(rnd)}
		leaves[i].Value[0] |= 1
	}
	return leaves
}

// Key returns a digest whose first bytes are b. Tests use it to place keys
// at chosen positions in the tree.
func Key(b ...byte) types.Digest {
	var d types.Digest
	copy(d[:], b)
	return d
}
