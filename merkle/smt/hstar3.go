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

// Package smt contains the implementation of the sparse Merkle tree logic.
package smt

import (
	"fmt"
	"sort"

	"github.com/godwokenrises/godwoken-sub007/merkle/smt/node"
	"github.com/godwokenrises/godwoken-sub007/types"
)

// NodeAccessor reads and writes sparse Merkle tree node hashes.
type NodeAccessor interface {
	// Get returns the hash of the given node.
	Get(id node.ID) (types.Digest, error)
	// Set sets the hash of the given node.
	Set(id node.ID, hash types.Digest) error
}

// HashChildrenFn computes a node hash based on its child nodes' hashes.
type HashChildrenFn func(left, right types.Digest) types.Digest

// NodeUpdate represents an update of a node hash in HStar3 algorithm.
type NodeUpdate struct {
	ID   node.ID
	Hash types.Digest
}

// HStar3 applies a batch of node updates bottom-up, one tree level at a
// time, reading only the siblings which are not themselves updated.
type HStar3 struct {
	hash  HashChildrenFn
	depth uint
}

// NewHStar3 returns a new instance of HStar3.
func NewHStar3(hash HashChildrenFn, depth uint) HStar3 {
	return HStar3{hash: hash, depth: depth}
}

// Prepare sorts the updates slice for it to be usable by HStar3. It also
// verifies that the nodes are placed at the required depth, and there are no
// ID duplicates among them.
func (h HStar3) Prepare(updates []NodeUpdate) error {
	for i := range updates {
		if d, want := updates[i].ID.BitLen(), h.depth; d != want {
			return fmt.Errorf("upd #%d: invalid depth %d, want %d", i, d, want)
		}
	}
	sort.Slice(updates, func(i, j int) bool {
		return node.Compare(updates[i].ID, updates[j].ID) < 0
	})
	for i, last := 0, len(updates)-1; i < last; i++ {
		if id := updates[i].ID; id == updates[i+1].ID {
			return fmt.Errorf("duplicate ID: %v", id)
		}
	}
	return nil
}

// Update applies the given updates to a sparse Merkle tree. Requires a
// previous Prepare invocation on the same updates slice. Returns an error if
// any of the NodeAccessor calls does so, for example if a node is missing.
//
// Returns the slice of updates at the top level induced by the provided
// lower level updates, sorted by node ID. Update doesn't Set the topmost
// level nodes, so that Update invocations can be chained: several instances
// can update disjoint subtrees down to a split depth in parallel, and another
// one takes their results from the split depth to the root.
//
// Warning: This call modifies the updates slice in-place, so the caller must
// ensure to not reuse it.
func (h HStar3) Update(updates []NodeUpdate, top uint, na NodeAccessor) ([]NodeUpdate, error) {
	for d := h.depth; d > top; d-- {
		var err error
		if updates, err = h.updateAt(updates, d, na); err != nil {
			return nil, fmt.Errorf("depth %d: %w", d, err)
		}
	}
	return updates, nil
}

// updateAt applies the given node updates at the specified tree level.
// Returns the updates that propagated to the level above.
func (h HStar3) updateAt(updates []NodeUpdate, depth uint, na NodeAccessor) ([]NodeUpdate, error) {
	for _, upd := range updates {
		if err := na.Set(upd.ID, upd.Hash); err != nil {
			return nil, err
		}
	}
	// Calculate the updates that propagate to one level above.
	newLen := 0
	for i, ln := 0, len(updates); i < ln; i, newLen = i+1, newLen+1 {
		sib := updates[i].ID.Sibling()
		left, right := updates[i].Hash, types.Zero
		if next := i + 1; next < ln && updates[next].ID == sib {
			// The sibling is the right child here, as updates are sorted.
			right = updates[next].Hash
			i = next // Skip the next update in the outer loop.
		} else {
			// The sibling is not updated, so fetch the original.
			var err error
			if right, err = na.Get(sib); err != nil {
				return nil, err
			}
			if sib.IsLeftChild() {
				left, right = right, left
			}
		}
		updates[newLen] = NodeUpdate{ID: sib.Prefix(depth - 1), Hash: h.hash(left, right)}
	}
	return updates[:newLen], nil
}
