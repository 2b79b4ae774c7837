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

package smt

import (
	"context"

	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/merkle"
	"github.com/godwokenrises/godwoken-sub007/merkle/smt/node"
	"github.com/godwokenrises/godwoken-sub007/types"
)

// Proof is a compiled multi-key proof together with the leaves it covers,
// sorted by key.
type Proof struct {
	Leaves  []types.Leaf
	Program []byte
}

// MerkleProof returns a compiled proof for the given keys against the
// current root. Duplicate keys are proven once. Keys which are not set are
// proven with the zero value, which shows their non-membership.
//
// The proof is checked with merkle.CalculateRoot. The same program proves
// any other values for the same keys against the root obtained by writing
// those values, since it only contains siblings off the keys' paths.
func (t *Tree) MerkleProof(ctx context.Context, keys []types.Digest) (*Proof, error) {
	if len(keys) == 0 {
		return nil, errors.New(errors.InvalidArgument, "no keys to prove")
	}
	leaves := make([]types.Leaf, len(keys))
	for i, k := range keys {
		leaves[i].Key = k
	}
	leaves = lastWins(leaves)
	sorted := make([]types.Digest, len(leaves))
	for i := range leaves {
		v, err := t.Get(ctx, leaves[i].Key)
		if err != nil {
			return nil, err
		}
		leaves[i].Value = v
		sorted[i] = leaves[i].Key
	}

	b := proofBuilder{acc: newNodeAccessor(ctx, t.store)}
	if err := b.subtree(sorted, 0); err != nil {
		return nil, err
	}
	return &Proof{Leaves: leaves, Program: b.program}, nil
}

// InclusionProof returns the 256 siblings on the path of key ordered from
// the leaf to the root. A zero digest stands for an empty subtree.
func (t *Tree) InclusionProof(ctx context.Context, key types.Digest) ([]types.Digest, error) {
	acc := newNodeAccessor(ctx, t.store)
	proof := make([]types.Digest, node.MaxDepth)
	for d := uint(node.MaxDepth); d > 0; d-- {
		sib, err := acc.Get(node.NewID(key, d).Sibling())
		if err != nil {
			return nil, err
		}
		proof[node.MaxDepth-d] = sib
	}
	return proof, nil
}

type proofBuilder struct {
	acc     *nodeAccessor
	program []byte
	zeros   int
}

// subtree emits the code leaving one stack entry for the node at the given
// depth which is the common ancestor of all the keys. The keys are sorted
// and distinct.
func (b *proofBuilder) subtree(keys []types.Digest, depth uint) error {
	if len(keys) == 1 {
		b.program = append(b.program, merkle.OpPush)
		return b.climb(keys[0], node.MaxDepth, depth)
	}
	split := node.CommonPrefixLen(keys[0], keys[len(keys)-1])
	i := 1
	for node.Bit(keys[i], split) == 0 {
		i++
	}
	if err := b.subtree(keys[:i], split+1); err != nil {
		return err
	}
	if err := b.subtree(keys[i:], split+1); err != nil {
		return err
	}
	b.program = append(b.program, merkle.OpMerge)
	return b.climb(keys[0], split, depth)
}

// climb emits the siblings taking the entry for key from depth from to
// depth to.
func (b *proofBuilder) climb(key types.Digest, from, to uint) error {
	for d := from; d > to; d-- {
		sib, err := b.acc.Get(node.NewID(key, d).Sibling())
		if err != nil {
			return err
		}
		if sib.IsZero() {
			b.zeros++
			continue
		}
		b.flushZeros()
		b.program = append(b.program, merkle.OpSibling)
		b.program = append(b.program, sib[:]...)
	}
	b.flushZeros()
	return nil
}

func (b *proofBuilder) flushZeros() {
	for b.zeros > 0 {
		n := b.zeros
		if n > 255 {
			n = 255
		}
		b.program = append(b.program, merkle.OpZeros, byte(n))
		b.zeros -= n
	}
}
