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
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/godwokenrises/godwoken-sub007/merkle/smt/node"
	"github.com/godwokenrises/godwoken-sub007/types"
)

// BranchKeySize is the length of an encoded BranchKey.
const BranchKeySize = types.DigestSize + 1

// BranchNodeSize is the length of an encoded BranchNode.
const BranchNodeSize = 2 * types.DigestSize

// BranchKey is the coordinate of a branch node. A branch at depth d has
// height 255-d, and its prefix is the path to it with all the bits from
// position d onwards unset.
type BranchKey struct {
	Height uint8
	Prefix types.Digest
}

// BranchKeyOf returns the key of the branch node storing the children of the
// node with the given ID. The ID must not be a leaf.
func BranchKeyOf(id node.ID) BranchKey {
	if id.BitLen() >= node.MaxDepth {
		panic(fmt.Sprintf("BranchKeyOf: leaf ID %v", id))
	}
	return BranchKey{Height: uint8(node.MaxDepth - 1 - id.BitLen()), Prefix: id.Path()}
}

// Depth returns the depth of the branch in the tree.
func (k BranchKey) Depth() uint { return node.MaxDepth - 1 - uint(k.Height) }

// Encode returns the storage encoding of k: prefix followed by height.
func (k BranchKey) Encode() []byte {
	b := make([]byte, BranchKeySize)
	copy(b, k.Prefix[:])
	b[types.DigestSize] = k.Height
	return b
}

// DecodeBranchKey parses an encoded BranchKey.
func DecodeBranchKey(b []byte) (BranchKey, error) {
	if len(b) != BranchKeySize {
		return BranchKey{}, fmt.Errorf("branch key must be %d bytes, got %d", BranchKeySize, len(b))
	}
	var k BranchKey
	copy(k.Prefix[:], b)
	k.Height = b[types.DigestSize]
	return k, nil
}

// BranchNode holds the hashes of the two children of a branch.
type BranchNode struct {
	Left  types.Digest
	Right types.Digest
}

// Child returns the left child for bit 0 and the right child otherwise.
func (n *BranchNode) Child(bit uint) types.Digest {
	if bit == 0 {
		return n.Left
	}
	return n.Right
}

// SetChild sets the left child for bit 0 and the right child otherwise.
func (n *BranchNode) SetChild(bit uint, hash types.Digest) {
	if bit == 0 {
		n.Left = hash
	} else {
		n.Right = hash
	}
}

// IsEmpty reports whether both children are empty subtrees.
func (n BranchNode) IsEmpty() bool { return n.Left.IsZero() && n.Right.IsZero() }

// Encode returns the storage encoding of n: left child then right child.
func (n BranchNode) Encode() []byte {
	b := make([]byte, BranchNodeSize)
	copy(b, n.Left[:])
	copy(b[types.DigestSize:], n.Right[:])
	return b
}

// DecodeBranchNode parses an encoded BranchNode.
func DecodeBranchNode(b []byte) (BranchNode, error) {
	if len(b) != BranchNodeSize {
		return BranchNode{}, fmt.Errorf("branch node must be %d bytes, got %d", BranchNodeSize, len(b))
	}
	var n BranchNode
	copy(n.Left[:], b)
	copy(n.Right[:], b[types.DigestSize:])
	return n, nil
}

// StoreReader reads tree nodes. Implementations must be safe for concurrent
// use by multiple goroutines.
type StoreReader interface {
	// GetBranch returns the branch at key, or false if it is not materialized.
	GetBranch(ctx context.Context, key BranchKey) (BranchNode, bool, error)
	// GetLeaf returns the value stored at key, or false if none is stored.
	GetLeaf(ctx context.Context, key types.Digest) (types.Digest, bool, error)
}

// StoreWriter modifies tree nodes.
type StoreWriter interface {
	InsertBranch(ctx context.Context, key BranchKey, n BranchNode) error
	RemoveBranch(ctx context.Context, key BranchKey) error
	InsertLeaf(ctx context.Context, key, value types.Digest) error
	RemoveLeaf(ctx context.Context, key types.Digest) error
}

// Store is the node access contract of the tree. The persistent, pure
// in-memory and read-through variants all implement it.
type Store interface {
	StoreReader
	StoreWriter
}

// BatchWriter is implemented by stores which can apply a whole ChangeSet
// atomically. The tree prefers it over individual writes.
type BatchWriter interface {
	WriteChanges(ctx context.Context, cs *ChangeSet) error
}

// BranchChange is a write of a branch node. An empty node removes the branch.
type BranchChange struct {
	Key  BranchKey
	Node BranchNode
}

// ChangeSet is the set of node writes produced by a tree update. A zero leaf
// value removes the leaf.
type ChangeSet struct {
	Branches []BranchChange
	Leaves   []types.Leaf
}

// Len returns the number of writes in the set.
func (cs *ChangeSet) Len() int { return len(cs.Branches) + len(cs.Leaves) }

// Sort orders the writes by key, so that equal change sets compare equal.
func (cs *ChangeSet) Sort() {
	sort.Slice(cs.Branches, func(i, j int) bool {
		a, b := cs.Branches[i].Key, cs.Branches[j].Key
		if c := bytes.Compare(a.Prefix[:], b.Prefix[:]); c != 0 {
			return c < 0
		}
		return a.Height > b.Height
	})
	SortLeaves(cs.Leaves)
}

// Apply writes the change set to s, atomically if s is a BatchWriter.
func (cs *ChangeSet) Apply(ctx context.Context, s StoreWriter) error {
	if bw, ok := s.(BatchWriter); ok {
		return bw.WriteChanges(ctx, cs)
	}
	for _, b := range cs.Branches {
		var err error
		if b.Node.IsEmpty() {
			err = s.RemoveBranch(ctx, b.Key)
		} else {
			err = s.InsertBranch(ctx, b.Key, b.Node)
		}
		if err != nil {
			return err
		}
	}
	for _, l := range cs.Leaves {
		var err error
		if l.Value.IsZero() {
			err = s.RemoveLeaf(ctx, l.Key)
		} else {
			err = s.InsertLeaf(ctx, l.Key, l.Value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// SortLeaves sorts leaves by key.
func SortLeaves(leaves []types.Leaf) {
	sort.Slice(leaves, func(i, j int) bool {
		return bytes.Compare(leaves[i].Key[:], leaves[j].Key[:]) < 0
	})
}
