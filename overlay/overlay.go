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

// Package overlay provides copy-on-write views of a sparse Merkle tree.
//
// An Overlay buffers writes in memory over a Base and never modifies the
// base until it is committed. A TreeDB is the persistent Base, a tree kept
// in a column store. Overlays can be stacked: an Overlay is itself a Base,
// so the block builder runs each operation in a child overlay which is
// committed into the block overlay or discarded.
package overlay

import (
	"context"

	"github.com/godwokenrises/godwoken-sub007/merkle/smt"
	"github.com/godwokenrises/godwoken-sub007/types"
	"k8s.io/klog/v2"
)

// Base is a tree an Overlay reads from and commits into.
type Base interface {
	smt.StoreReader
	// Root returns the current root of the base.
	Root() types.Digest
	// Apply commits a delta. If the base root is no longer d.BaseRoot the
	// base replays d.Writes on top of its current state instead.
	Apply(ctx context.Context, d *Delta) error
	// ReadLock holds off commits into the persistent store until the
	// returned function is called. Calls must not nest.
	ReadLock() (unlock func())
}

// Delta is the buffered content of an Overlay.
type Delta struct {
	// BaseRoot is the base root the changes were computed against.
	BaseRoot types.Digest
	// Root is the root after the changes.
	Root types.Digest
	// Changes are the node writes turning BaseRoot into Root.
	Changes *smt.ChangeSet
	// Writes are the leaf writes in the order they were made, later writes
	// to a key superseding earlier ones.
	Writes []types.Leaf
}

// IsEmpty reports whether the delta changes nothing.
func (d *Delta) IsEmpty() bool { return len(d.Writes) == 0 }

// Overlay is a copy-on-write view of a Base. It has a single writer. Any
// number of overlays may be created over the same base.
type Overlay struct {
	base     Base
	opts     smt.Options
	baseRoot types.Digest
	store    *smt.ReadThroughStore
	tree     *smt.Tree
	writes   []types.Leaf
	// err is the first failure to follow a moved base. It sticks until the
	// overlay is reset.
	err error
}

// New returns an empty overlay over base. No base data is copied.
func New(base Base, opts smt.Options) *Overlay {
	o := &Overlay{base: base, opts: opts}
	o.reset(base.Root())
	return o
}

func (o *Overlay) reset(root types.Digest) {
	o.baseRoot = root
	o.store = smt.NewReadThroughStore(o.base)
	o.tree = smt.New(root, o.store, o.opts)
	o.writes = nil
	o.err = nil
}

// syncedBase is implemented by bases which follow a base of their own and
// must catch up with it before reporting their root. Callers hold ReadLock.
type syncedBase interface {
	syncedRoot(ctx context.Context) (types.Digest, error)
}

func currentRoot(ctx context.Context, b Base) (types.Digest, error) {
	if s, ok := b.(syncedBase); ok {
		return s.syncedRoot(ctx)
	}
	return b.Root(), nil
}

func (o *Overlay) syncedRoot(ctx context.Context) (types.Digest, error) {
	if err := o.sync(ctx); err != nil {
		return types.Zero, err
	}
	return o.tree.Root(), nil
}

// sync makes the overlay follow its base when the base root has moved
// since the overlay was created, by replaying the buffered writes on top
// of the new base root. The caller holds ReadLock.
func (o *Overlay) sync(ctx context.Context) error {
	if o.err != nil {
		return o.err
	}
	cur, err := currentRoot(ctx, o.base)
	if err != nil {
		o.err = err
		return err
	}
	if cur == o.baseRoot {
		return nil
	}
	writes := o.writes
	store := smt.NewReadThroughStore(o.base)
	tree := smt.New(cur, store, o.opts)
	if err := tree.UpdateAll(ctx, writes); err != nil {
		o.err = err
		return err
	}
	klog.V(2).Infof("overlay: base moved %v -> %v, replayed %d writes", o.baseRoot, cur, len(writes))
	o.baseRoot, o.store, o.tree = cur, store, tree
	return nil
}

// Base returns the base of the overlay.
func (o *Overlay) Base() Base { return o.base }

// Get returns the value at key: the buffered value if there is one, else
// the base value, else the zero digest.
func (o *Overlay) Get(ctx context.Context, key types.Digest) (types.Digest, error) {
	defer o.base.ReadLock()()
	if err := o.sync(ctx); err != nil {
		return types.Zero, err
	}
	return o.tree.Get(ctx, key)
}

// Update buffers a write. Writing the value the key already has is a
// no-op.
func (o *Overlay) Update(ctx context.Context, key, value types.Digest) error {
	return o.UpdateAll(ctx, []types.Leaf{{Key: key, Value: value}})
}

// UpdateAll buffers a batch of writes. If a key appears more than once the
// last value wins.
func (o *Overlay) UpdateAll(ctx context.Context, leaves []types.Leaf) error {
	defer o.base.ReadLock()()
	if err := o.sync(ctx); err != nil {
		return err
	}
	changed := make([]types.Leaf, 0, len(leaves))
	seen := make(map[types.Digest]types.Digest, len(leaves))
	for _, l := range leaves {
		cur, ok := seen[l.Key]
		if !ok {
			var err error
			if cur, err = o.tree.Get(ctx, l.Key); err != nil {
				return err
			}
		}
		if cur != l.Value {
			changed = append(changed, l)
		}
		seen[l.Key] = l.Value
	}
	if len(changed) == 0 {
		return nil
	}
	if err := o.tree.UpdateAll(ctx, changed); err != nil {
		return err
	}
	o.writes = append(o.writes, changed...)
	return nil
}

// Root returns the root of the current base combined with the buffered
// writes, so it always matches what Get and MerkleProof see. If the base
// moved and the writes could not be replayed on it, Root returns the last
// root it computed and Err reports the failure.
func (o *Overlay) Root() types.Digest {
	defer o.base.ReadLock()()
	if err := o.sync(context.Background()); err != nil {
		klog.V(1).Infof("overlay: cannot follow base: %v", err)
	}
	return o.tree.Root()
}

// Err returns the error which stopped the overlay from following its base,
// if any. Every later read, write or commit fails with it until Discard.
func (o *Overlay) Err() error { return o.err }

// BaseRoot returns the base root the buffered writes were last applied to.
// It lags the base until the next call which follows the base.
func (o *Overlay) BaseRoot() types.Digest { return o.baseRoot }

// Writes returns the buffered leaf writes in the order they were made.
func (o *Overlay) Writes() []types.Leaf {
	return append([]types.Leaf(nil), o.writes...)
}

// MerkleProof returns a compiled proof of keys against Root.
func (o *Overlay) MerkleProof(ctx context.Context, keys []types.Digest) (*smt.Proof, error) {
	defer o.base.ReadLock()()
	if err := o.sync(ctx); err != nil {
		return nil, err
	}
	return o.tree.MerkleProof(ctx, keys)
}

// InclusionProof returns the single-key proof of key against Root.
func (o *Overlay) InclusionProof(ctx context.Context, key types.Digest) ([]types.Digest, error) {
	defer o.base.ReadLock()()
	if err := o.sync(ctx); err != nil {
		return nil, err
	}
	return o.tree.InclusionProof(ctx, key)
}

// Delta returns the buffered writes without committing them. The delta is
// relative to BaseRoot; a base which moved since then replays its Writes.
func (o *Overlay) Delta() *Delta {
	return &Delta{
		BaseRoot: o.baseRoot,
		Root:     o.tree.Root(),
		Changes:  o.store.Changes(),
		Writes:   o.Writes(),
	}
}

// Commit applies the buffered writes to the base in one atomic write and
// empties the overlay. On failure the overlay keeps its writes.
func (o *Overlay) Commit(ctx context.Context) error {
	if o.err != nil {
		return o.err
	}
	if len(o.writes) == 0 {
		o.reset(o.base.Root())
		return nil
	}
	d := o.Delta()
	if err := o.base.Apply(ctx, d); err != nil {
		return err
	}
	klog.V(2).Infof("overlay: committed %d writes, root %v", len(d.Writes), d.Root)
	o.reset(o.base.Root())
	return nil
}

// Discard drops the buffered writes. The base is not touched.
func (o *Overlay) Discard() {
	if len(o.writes) > 0 {
		klog.V(2).Infof("overlay: discarded %d writes", len(o.writes))
	}
	o.reset(o.base.Root())
}

// Child returns a new overlay using o as its base.
func (o *Overlay) Child() *Overlay {
	return New(o, o.opts)
}

// GetBranch implements smt.StoreReader, so that an Overlay can be a Base.
func (o *Overlay) GetBranch(ctx context.Context, key smt.BranchKey) (smt.BranchNode, bool, error) {
	return o.store.GetBranch(ctx, key)
}

// GetLeaf implements smt.StoreReader.
func (o *Overlay) GetLeaf(ctx context.Context, key types.Digest) (types.Digest, bool, error) {
	return o.store.GetLeaf(ctx, key)
}

// ReadLock implements Base by holding the read lock of the bottom base.
func (o *Overlay) ReadLock() func() {
	return o.base.ReadLock()
}

// Apply implements Base. A child overlay commits into its parent by
// adopting the child's node changes, or by replaying its writes if the
// parent changed since the child was created.
func (o *Overlay) Apply(ctx context.Context, d *Delta) error {
	defer o.base.ReadLock()()
	if err := o.sync(ctx); err != nil {
		return err
	}
	if d.BaseRoot != o.tree.Root() {
		klog.V(2).Infof("overlay: child delta based on %v, replaying onto %v", d.BaseRoot, o.tree.Root())
		if err := o.tree.UpdateAll(ctx, d.Writes); err != nil {
			return err
		}
		o.writes = append(o.writes, d.Writes...)
		return nil
	}
	if err := o.store.WriteChanges(ctx, d.Changes); err != nil {
		return err
	}
	o.tree = smt.New(d.Root, o.store, o.opts)
	o.writes = append(o.writes, d.Writes...)
	return nil
}
