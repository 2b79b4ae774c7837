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
	"runtime"
	"sort"
	"time"

	"github.com/godwokenrises/godwoken-sub007/merkle/hashers"
	"github.com/godwokenrises/godwoken-sub007/merkle/smt/node"
	"github.com/godwokenrises/godwoken-sub007/types"
	"k8s.io/klog/v2"
)

// splitDepth is the depth at which concurrent updates are sharded.
const splitDepth = 8

// Options configures a Tree.
type Options struct {
	// Parallelism is the number of subtrees updated concurrently by UpdateAll.
	// Zero means runtime.NumCPU(), one disables concurrency.
	Parallelism int
	// Hasher defaults to hashers.Default.
	Hasher hashers.MapHasher
}

// Tree is a sparse Merkle tree of depth 256 over a node Store.
//
// A Tree has a single writer. Reads may run concurrently with each other but
// not with UpdateAll.
type Tree struct {
	root   types.Digest
	store  Store
	hasher hashers.MapHasher
	writer *Writer
}

// New returns a tree with the given root whose nodes live in store. The root
// of an empty tree is the zero digest.
func New(root types.Digest, store Store, opts Options) *Tree {
	h := opts.Hasher
	if h == nil {
		h = hashers.Default
	}
	p := opts.Parallelism
	if p == 0 {
		p = runtime.NumCPU()
	}
	return &Tree{root: root, store: store, hasher: h, writer: NewWriter(h, splitDepth, p)}
}

// Root returns the current root of the tree.
func (t *Tree) Root() types.Digest { return t.root }

// Store returns the node store of the tree.
func (t *Tree) Store() Store { return t.store }

// Hasher returns the hasher of the tree.
func (t *Tree) Hasher() hashers.MapHasher { return t.hasher }

// Get returns the value at key. Keys which were never set have the zero
// value.
func (t *Tree) Get(ctx context.Context, key types.Digest) (types.Digest, error) {
	v, _, err := t.store.GetLeaf(ctx, key)
	return v, err
}

// Update sets the value at key. Setting the zero value deletes the key.
func (t *Tree) Update(ctx context.Context, key, value types.Digest) error {
	return t.UpdateAll(ctx, []types.Leaf{{Key: key, Value: value}})
}

// UpdateAll sets a batch of values. If a key appears more than once the last
// value wins. Writes which don't change the current value are skipped.
//
// If an error is returned the root is unchanged, but a store which is not a
// BatchWriter may hold part of the update.
func (t *Tree) UpdateAll(ctx context.Context, leaves []types.Leaf) error {
	start := time.Now()
	changed := make([]types.Leaf, 0, len(leaves))
	for _, l := range lastWins(leaves) {
		cur, err := t.Get(ctx, l.Key)
		if err != nil {
			return err
		}
		if cur != l.Value {
			changed = append(changed, l)
		}
	}
	if len(changed) == 0 {
		return nil
	}

	upd := make([]NodeUpdate, len(changed))
	for i, l := range changed {
		upd[i] = NodeUpdate{ID: node.LeafID(l.Key), Hash: t.hasher.HashLeaf(l.Key, l.Value)}
	}
	root, branches, err := t.writer.Write(ctx, t.store, upd)
	if err != nil {
		return err
	}
	cs := &ChangeSet{Branches: branches, Leaves: changed}
	cs.Sort()
	if err := cs.Apply(ctx, t.store); err != nil {
		return err
	}
	klog.V(3).Infof("smt: %d leaves, %d branch writes, root %v -> %v in %v", len(changed), len(branches), t.root, root, time.Since(start))
	t.root = root
	return nil
}

// lastWins returns a copy of leaves sorted by key, keeping only the last
// write of every key.
func lastWins(leaves []types.Leaf) []types.Leaf {
	res := make([]types.Leaf, len(leaves))
	copy(res, leaves)
	sort.SliceStable(res, func(i, j int) bool {
		return bytes.Compare(res[i].Key[:], res[j].Key[:]) < 0
	})
	n := 0
	for i := range res {
		if i+1 < len(res) && res[i+1].Key == res[i].Key {
			continue
		}
		res[n] = res[i]
		n++
	}
	return res[:n]
}
