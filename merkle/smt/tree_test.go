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
	"math/rand"
	"testing"

	"github.com/godwokenrises/godwoken-sub007/merkle/hashers"
	"github.com/godwokenrises/godwoken-sub007/merkle/smt/node"
	"github.com/godwokenrises/godwoken-sub007/merkle/testonly"
	"github.com/godwokenrises/godwoken-sub007/types"
)

func newTree(parallelism int) *Tree {
	return New(types.Zero, NewMemoryStore(), Options{Parallelism: parallelism})
}

func TestEmptyTreeRoundTrip(t *testing.T) {
	ctx := context.Background()
	tree := newTree(1)
	if got := tree.Root(); !got.IsZero() {
		t.Fatalf("empty root = %v, want zero", got)
	}
	key, value := testonly.Key(0x12, 0x34), testonly.Key(0xAB)
	if err := tree.Update(ctx, key, value); err != nil {
		t.Fatalf("Update: %v", err)
	}
	root := tree.Root()
	if root.IsZero() {
		t.Fatal("root is still zero after insert")
	}
	if want := testonly.Root(hashers.Default, []types.Leaf{{Key: key, Value: value}}); root != want {
		t.Errorf("root = %v, want %v", root, want)
	}
	if got, err := tree.Get(ctx, key); err != nil || got != value {
		t.Errorf("Get = %v, %v, want %v", got, err, value)
	}

	if err := tree.Update(ctx, key, types.Zero); err != nil {
		t.Fatalf("Update(zero): %v", err)
	}
	if got := tree.Root(); !got.IsZero() {
		t.Errorf("root after reset = %v, want zero", got)
	}
	if b, l := tree.Store().(*MemoryStore).Len(); b != 0 || l != 0 {
		t.Errorf("store holds %d branches and %d leaves, want none", b, l)
	}
}

func TestRootMatchesReference(t *testing.T) {
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(1))
	for _, tc := range []struct {
		desc        string
		n           int
		parallelism int
	}{
		{desc: "one", n: 1, parallelism: 1},
		{desc: "few", n: 5, parallelism: 1},
		{desc: "many", n: 200, parallelism: 1},
		{desc: "many-parallel", n: 200, parallelism: 4},
		{desc: "default-parallelism", n: 64, parallelism: 0},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			leaves := testonly.RandomLeaves(rnd, tc.n)
			tree := newTree(tc.parallelism)
			if err := tree.UpdateAll(ctx, leaves); err != nil {
				t.Fatalf("UpdateAll: %v", err)
			}
			if got, want := tree.Root(), testonly.Root(hashers.Default, leaves); got != want {
				t.Errorf("root = %v, want %v", got, want)
			}
		})
	}
}

func TestRootIsOrderIndependent(t *testing.T) {
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(2))
	leaves := testonly.RandomLeaves(rnd, 50)

	batched := newTree(4)
	if err := batched.UpdateAll(ctx, leaves); err != nil {
		t.Fatalf("UpdateAll: %v", err)
	}
	oneByOne := newTree(1)
	for _, i := range rnd.Perm(len(leaves)) {
		if err := oneByOne.Update(ctx, leaves[i].Key, leaves[i].Value); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	if got, want := oneByOne.Root(), batched.Root(); got != want {
		t.Errorf("one-by-one root = %v, batched root = %v", got, want)
	}

	// Deleting half of the keys in any order lands on the root of the other
	// half.
	for _, l := range leaves[25:] {
		if err := oneByOne.Update(ctx, l.Key, types.Zero); err != nil {
			t.Fatalf("Update(zero): %v", err)
		}
	}
	if got, want := oneByOne.Root(), testonly.Root(hashers.Default, leaves[:25]); got != want {
		t.Errorf("root after deletes = %v, want %v", got, want)
	}
}

func TestUpdateAllLastWins(t *testing.T) {
	ctx := context.Background()
	key := testonly.Key(1)
	tree := newTree(1)
	err := tree.UpdateAll(ctx, []types.Leaf{
		{Key: key, Value: testonly.Key(1)},
		{Key: testonly.Key(2), Value: testonly.Key(2)},
		{Key: key, Value: testonly.Key(3)},
	})
	if err != nil {
		t.Fatalf("UpdateAll: %v", err)
	}
	if got, _ := tree.Get(ctx, key); got != testonly.Key(3) {
		t.Errorf("Get = %v, want last write", got)
	}
}

func TestUpdateUnchangedValueWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := NewReadThroughStore(NewMemoryStore())
	tree := New(types.Zero, store, Options{Parallelism: 1})
	if err := tree.Update(ctx, testonly.Key(5), types.Zero); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := store.Changes().Len(); got != 0 {
		t.Errorf("writing the default value buffered %d writes", got)
	}
}

func TestReadThroughStoreLeavesBaseUntouched(t *testing.T) {
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(3))
	leaves := testonly.RandomLeaves(rnd, 40)

	base := NewMemoryStore()
	baseTree := New(types.Zero, base, Options{Parallelism: 1})
	if err := baseTree.UpdateAll(ctx, leaves[:20]); err != nil {
		t.Fatalf("UpdateAll(base): %v", err)
	}
	baseBranches, baseLeaves := base.Len()

	scratch := New(baseTree.Root(), NewReadThroughStore(base), Options{Parallelism: 2})
	writes := append([]types.Leaf{{Key: leaves[0].Key, Value: types.Zero}}, leaves[20:]...)
	if err := scratch.UpdateAll(ctx, writes); err != nil {
		t.Fatalf("UpdateAll(speculative): %v", err)
	}
	if b, l := base.Len(); b != baseBranches || l != baseLeaves {
		t.Errorf("base changed: %d/%d nodes, want %d/%d", b, l, baseBranches, baseLeaves)
	}
	if got, err := scratch.Get(ctx, leaves[0].Key); err != nil || !got.IsZero() {
		t.Errorf("speculative Get(removed) = %v, %v, want zero", got, err)
	}
	if got, err := baseTree.Get(ctx, leaves[0].Key); err != nil || got != leaves[0].Value {
		t.Errorf("base Get = %v, %v, want %v", got, err, leaves[0].Value)
	}

	want := testonly.Root(hashers.Default, append(append([]types.Leaf{}, leaves[1:20]...), leaves[20:]...))
	if got := scratch.Root(); got != want {
		t.Errorf("speculative root = %v, want %v", got, want)
	}

	// Replaying the buffered changes onto the base gives the same tree.
	if err := scratch.Store().(*ReadThroughStore).Changes().Apply(ctx, base); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	direct := New(want, base, Options{Parallelism: 1})
	if err := direct.Update(ctx, leaves[1].Key, types.Zero); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got, want := direct.Root(), testonly.Root(hashers.Default, append(append([]types.Leaf{}, leaves[2:20]...), leaves[20:]...)); got != want {
		t.Errorf("root after applying changes = %v, want %v", got, want)
	}
}

func TestHStar3Prepare(t *testing.T) {
	hs := NewHStar3(hashers.Default.HashChildren, 256)
	id := func(b byte) NodeUpdate {
		return NodeUpdate{ID: node.LeafID(testonly.Key(b))}
	}
	for _, tc := range []struct {
		desc    string
		upd     []NodeUpdate
		wantErr bool
	}{
		{desc: "empty"},
		{desc: "sorted", upd: []NodeUpdate{id(3), id(1), id(2)}},
		{desc: "duplicate", upd: []NodeUpdate{id(3), id(1), id(3)}, wantErr: true},
		{desc: "wrong-depth", upd: []NodeUpdate{{ID: node.LeafID(testonly.Key(1)).Prefix(8)}}, wantErr: true},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			err := hs.Prepare(tc.upd)
			if got := err != nil; got != tc.wantErr {
				t.Fatalf("Prepare: %v, wantErr %v", err, tc.wantErr)
			}
			for i := 1; i < len(tc.upd) && err == nil; i++ {
				if tc.upd[i-1].ID.Path()[0] > tc.upd[i].ID.Path()[0] {
					t.Errorf("updates not sorted: %v", tc.upd)
				}
			}
		})
	}
}
