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

package revert

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	gerrors "github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/merkle/smt"
	"github.com/godwokenrises/godwoken-sub007/merkle/testonly"
	"github.com/godwokenrises/godwoken-sub007/overlay"
	"github.com/godwokenrises/godwoken-sub007/state"
	"github.com/godwokenrises/godwoken-sub007/storage"
	"github.com/godwokenrises/godwoken-sub007/storage/memory"
	"github.com/godwokenrises/godwoken-sub007/types"
	"github.com/google/go-cmp/cmp"
)

type env struct {
	cs       *memory.ColumnStore
	accounts *overlay.TreeDB
	reverted *overlay.TreeDB
	journal  *Journal
}

func newEnv(ctx context.Context, t *testing.T) *env {
	t.Helper()
	cs := memory.NewColumnStore()
	accounts, err := overlay.OpenTreeDB(ctx, cs, storage.AccountTree, smt.Options{}, nil)
	if err != nil {
		t.Fatalf("OpenTreeDB: %v", err)
	}
	reverted, err := overlay.OpenTreeDB(ctx, cs, storage.RevertedTree, smt.Options{}, nil)
	if err != nil {
		t.Fatalf("OpenTreeDB: %v", err)
	}
	return &env{cs: cs, accounts: accounts, reverted: reverted, journal: NewJournal(cs)}
}

// apply commits a block writing leaves, journaling it in the same batch.
func (e *env) apply(ctx context.Context, t *testing.T, number uint64, leaves []types.Leaf) *Entry {
	t.Helper()
	st := state.New(e.accounts, state.Config{})
	prior := st.CalculateRoot()
	for _, l := range leaves {
		if err := st.SetRaw(ctx, l.Key, l.Value); err != nil {
			t.Fatalf("SetRaw: %v", err)
		}
	}
	writes, err := st.Updates(ctx)
	if err != nil {
		t.Fatalf("Updates: %v", err)
	}
	entry := &Entry{Number: number, Hash: types.Uint64Digest(1000 + number), PriorRoot: prior, PostRoot: st.CalculateRoot(), Writes: writes}
	b := overlay.NewBatch(e.cs)
	defer b.Release()
	if _, err := b.Stage(ctx, e.accounts, st.Overlay().Delta()); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	ops, err := e.journal.AppendOps(entry)
	if err != nil {
		t.Fatalf("AppendOps: %v", err)
	}
	b.Add(ops...)
	if err := b.Write(ctx); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return entry
}

func directRoot(ctx context.Context, t *testing.T, blocks ...[]types.Leaf) types.Digest {
	t.Helper()
	tree := smt.New(types.Zero, smt.NewMemoryStore(), smt.Options{})
	for _, b := range blocks {
		if err := tree.UpdateAll(ctx, b); err != nil {
			t.Fatalf("UpdateAll: %v", err)
		}
	}
	return tree.Root()
}

func TestJournal(t *testing.T) {
	ctx := context.Background()
	e := newEnv(ctx, t)
	if _, ok, err := e.journal.Tip(ctx); err != nil || ok {
		t.Fatalf("Tip of empty journal = %v, %v", ok, err)
	}
	rnd := rand.New(rand.NewSource(1))
	var entries []*Entry
	for n := uint64(1); n <= 3; n++ {
		entries = append(entries, e.apply(ctx, t, n, testonly.RandomLeaves(rnd, 4)))
	}
	tip, ok, err := e.journal.Tip(ctx)
	if err != nil || !ok || tip != 3 {
		t.Fatalf("Tip = %d, %v, %v; want 3", tip, ok, err)
	}
	for _, want := range entries {
		got, err := e.journal.Get(ctx, want.Number)
		if err != nil {
			t.Fatalf("Get(%d): %v", want.Number, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("entry %d diff (-want +got):\n%s", want.Number, diff)
		}
		root, err := e.journal.SnapshotBefore(ctx, want.Number)
		if err != nil || root != want.PriorRoot {
			t.Errorf("SnapshotBefore(%d) = %v, %v; want %v", want.Number, root, err, want.PriorRoot)
		}
	}
	if _, err := e.journal.Get(ctx, 4); gerrors.CodeOf(err) != gerrors.NotFound {
		t.Errorf("Get(4): %v, want NotFound", err)
	}
}

func TestRevertThenReapplyReproducesRoot(t *testing.T) {
	ctx := context.Background()
	e := newEnv(ctx, t)
	rnd := rand.New(rand.NewSource(2))
	e.apply(ctx, t, 1, testonly.RandomLeaves(rnd, 10))
	two := testonly.RandomLeaves(rnd, 10)
	entry := e.apply(ctx, t, 2, two)

	m := NewManager(e.journal, e.accounts, e.reverted, nil, state.Config{})
	if _, err := m.Revert(ctx, Record{PriorRoot: entry.PriorRoot, Reverted: []uint64{2}}); err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if got := e.accounts.Root(); got != entry.PriorRoot {
		t.Fatalf("root after revert %v, want %v", got, entry.PriorRoot)
	}
	if tip, _, _ := e.journal.Tip(ctx); tip != 1 {
		t.Errorf("journal tip %d, want 1", tip)
	}
	marker, _, err := e.reverted.GetLeaf(ctx, entry.Hash)
	if err != nil || marker != types.RevertedMarker {
		t.Errorf("reverted tree value %v, %v; want marker", marker, err)
	}

	again := e.apply(ctx, t, 2, two)
	if again.PostRoot != entry.PostRoot {
		t.Errorf("re-applied root %v, want %v", again.PostRoot, entry.PostRoot)
	}
}

func TestRevertReplaysKeptBlocks(t *testing.T) {
	ctx := context.Background()
	e := newEnv(ctx, t)
	rnd := rand.New(rand.NewSource(3))
	shared := testonly.Key(0x77)
	one := testonly.RandomLeaves(rnd, 5)
	one = append(one, types.Leaf{Key: shared, Value: testonly.Key(1, 1)})
	two := append(testonly.RandomLeaves(rnd, 5), types.Leaf{Key: shared, Value: testonly.Key(2, 2)})
	three := append(testonly.RandomLeaves(rnd, 5), types.Leaf{Key: shared, Value: testonly.Key(3, 3)})
	four := testonly.RandomLeaves(rnd, 5)

	e.apply(ctx, t, 1, one)
	b2 := e.apply(ctx, t, 2, two)
	b3 := e.apply(ctx, t, 3, three)
	b4 := e.apply(ctx, t, 4, four)

	m := NewManager(e.journal, e.accounts, e.reverted, nil, state.Config{})
	plan, err := m.Revert(ctx, Record{PriorRoot: b2.PriorRoot, Reverted: []uint64{3, 2}})
	if err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if got, want := e.accounts.Root(), directRoot(ctx, t, one, four); got != want {
		t.Errorf("root %v, want %v", got, want)
	}
	if len(plan.Kept) != 1 || plan.Kept[0].Original.Hash != b4.Hash {
		t.Fatalf("kept %+v, want block 4", plan.Kept)
	}
	kept, err := e.journal.Get(ctx, 2)
	if err != nil {
		t.Fatalf("Get(2): %v", err)
	}
	if kept.Hash != b4.Hash || kept.PriorRoot != b2.PriorRoot || kept.PostRoot != e.accounts.Root() {
		t.Errorf("journal entry 2 = %+v", kept)
	}
	if tip, _, _ := e.journal.Tip(ctx); tip != 2 {
		t.Errorf("journal tip %d, want 2", tip)
	}
	for _, h := range []types.Digest{b2.Hash, b3.Hash} {
		if v, _, _ := e.reverted.GetLeaf(ctx, h); v != types.RevertedMarker {
			t.Errorf("block %v not registered as reverted", h)
		}
	}
	if v, _, _ := e.reverted.GetLeaf(ctx, b4.Hash); !v.IsZero() {
		t.Errorf("kept block registered as reverted")
	}
}

func TestRevertRejections(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		desc     string
		rec      func(entries []*Entry) Record
		replayer Replayer
		want     gerrors.Code
	}{
		{
			desc: "wrong prior root",
			rec:  func(es []*Entry) Record { return Record{PriorRoot: es[2].PriorRoot, Reverted: []uint64{2}} },
			want: gerrors.StateMismatch,
		},
		{
			desc: "empty",
			rec:  func(es []*Entry) Record { return Record{PriorRoot: es[0].PriorRoot} },
			want: gerrors.InvalidArgument,
		},
		{
			desc: "duplicate",
			rec:  func(es []*Entry) Record { return Record{PriorRoot: es[1].PriorRoot, Reverted: []uint64{2, 2}} },
			want: gerrors.InvalidArgument,
		},
		{
			desc: "beyond tip",
			rec:  func(es []*Entry) Record { return Record{PriorRoot: es[1].PriorRoot, Reverted: []uint64{2, 9}} },
			want: gerrors.NotFound,
		},
		{
			desc:     "replay fails",
			rec:      func(es []*Entry) Record { return Record{PriorRoot: es[0].PriorRoot, Reverted: []uint64{1}} },
			replayer: failingReplayer{},
			want:     gerrors.Unknown,
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			e := newEnv(ctx, t)
			rnd := rand.New(rand.NewSource(4))
			var entries []*Entry
			for n := uint64(1); n <= 3; n++ {
				entries = append(entries, e.apply(ctx, t, n, testonly.RandomLeaves(rnd, 3)))
			}
			root := e.accounts.Root()
			m := NewManager(e.journal, e.accounts, e.reverted, tc.replayer, state.Config{})
			_, err := m.Revert(ctx, tc.rec(entries))
			if err == nil {
				t.Fatal("Revert succeeded")
			}
			if got := gerrors.CodeOf(err); got != tc.want {
				t.Errorf("code %v, want %v (%v)", got, tc.want, err)
			}
			if got := e.accounts.Root(); got != root {
				t.Errorf("root moved to %v", got)
			}
			if !e.reverted.Root().IsZero() {
				t.Errorf("reverted tree written")
			}
			if tip, _, _ := e.journal.Tip(ctx); tip != 3 {
				t.Errorf("journal tip %d, want 3", tip)
			}
		})
	}
}

type failingReplayer struct{}

func (failingReplayer) Replay(context.Context, *state.State, *Entry) error {
	return errors.New("execution failed")
}
