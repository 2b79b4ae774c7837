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
	"fmt"

	"github.com/godwokenrises/godwoken-sub007/merkle/hashers"
	"github.com/godwokenrises/godwoken-sub007/merkle/smt/node"
	"github.com/godwokenrises/godwoken-sub007/types"
	"golang.org/x/sync/errgroup"
)

// Writer handles sharded writes to a sparse Merkle tree, with 2 levels of
// sharding. Shards below the split depth are updated concurrently, then one
// pass takes their results from the split depth up to the root.
type Writer struct {
	hasher      hashers.MapHasher
	split       uint
	parallelism int
}

// NewWriter creates a new Writer which splits the tree at the given depth and
// runs at most parallelism shards at a time.
func NewWriter(hasher hashers.MapHasher, split uint, parallelism int) *Writer {
	if split >= node.MaxDepth {
		panic(fmt.Errorf("NewWriter: split(%d) >= height(%d)", split, node.MaxDepth))
	}
	if parallelism < 1 {
		parallelism = 1
	}
	return &Writer{hasher: hasher, split: split, parallelism: parallelism}
}

// Split splits the given sorted list of leaf updates into shards, i.e. the
// subsets belonging to different subtrees at the split depth.
func (w *Writer) Split(upd []NodeUpdate) [][]NodeUpdate {
	var shards [][]NodeUpdate
	for begin, i := 0, 0; i < len(upd); i++ {
		pref := upd[i].ID.Prefix(w.split)
		next := i + 1
		// Check if this ID ends the shard.
		if next == len(upd) || upd[next].ID.Prefix(w.split) != pref {
			shards = append(shards, upd[begin:next])
			begin = next
		}
	}
	return shards
}

// Write applies the leaf updates on top of the nodes readable from store and
// returns the new root together with the branch writes that produce it.
// Nothing is written to store.
//
// Warning: This call modifies the upd slice in-place.
func (w *Writer) Write(ctx context.Context, store StoreReader, upd []NodeUpdate) (types.Digest, []BranchChange, error) {
	if len(upd) == 0 {
		return types.Zero, nil, fmt.Errorf("no updates")
	}
	hs := NewHStar3(w.hasher.HashChildren, node.MaxDepth)
	if err := hs.Prepare(upd); err != nil {
		return types.Zero, nil, err
	}

	if w.parallelism == 1 || w.split == 0 || len(upd) == 1 {
		acc := newNodeAccessor(ctx, store)
		top, err := hs.Update(upd, 0, acc)
		if err != nil {
			return types.Zero, nil, err
		}
		return top[0].Hash, acc.changes(), nil
	}

	shards := w.Split(upd)
	tops := make([]NodeUpdate, len(shards))
	accs := make([]*nodeAccessor, len(shards))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.parallelism)
	for i, shard := range shards {
		i, shard := i, shard
		g.Go(func() error {
			acc := newNodeAccessor(gctx, store)
			res, err := hs.Update(shard, w.split, acc)
			if err != nil {
				return err
			}
			if len(res) != 1 {
				return fmt.Errorf("shard %d: got %d top updates, want 1", i, len(res))
			}
			tops[i], accs[i] = res[0], acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return types.Zero, nil, err
	}

	acc := newNodeAccessor(ctx, store)
	top, err := NewHStar3(w.hasher.HashChildren, w.split).Update(tops, 0, acc)
	if err != nil {
		return types.Zero, nil, err
	}
	changes := acc.changes()
	for _, a := range accs {
		changes = append(changes, a.changes()...)
	}
	return top[0].Hash, changes, nil
}
