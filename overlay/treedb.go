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

package overlay

import (
	"context"
	"sync"
	"time"

	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/merkle/smt"
	"github.com/godwokenrises/godwoken-sub007/monitoring"
	"github.com/godwokenrises/godwoken-sub007/storage"
	"github.com/godwokenrises/godwoken-sub007/types"
	"k8s.io/klog/v2"
)

var (
	once          sync.Once
	commits       monitoring.Counter
	rebases       monitoring.Counter
	commitLatency monitoring.Histogram
	batchOps      monitoring.Histogram
)

func createMetrics(mf monitoring.MetricFactory) {
	commits = mf.NewCounter("tree_commits", "Number of deltas committed to a persistent tree", "tree")
	rebases = mf.NewCounter("tree_rebases", "Number of deltas replayed because the tree moved after the overlay was created", "tree")
	commitLatency = mf.NewHistogramWithBuckets("batch_write_seconds", "Latency of atomic state batches in seconds", monitoring.LatencyBuckets())
	batchOps = mf.NewHistogramWithBuckets("batch_write_ops", "Number of column store ops per atomic state batch", monitoring.SizeBuckets())
}

// RootKey returns the meta column key holding the root of the tree stored
// in cols.
func RootKey(cols storage.TreeColumns) []byte {
	return []byte("root/" + cols.Branch.String())
}

// TreeDB is a tree persisted in a column store, with its root kept in the
// meta column. It is the bottom Base of every overlay stack.
type TreeDB struct {
	cs    storage.ColumnStore
	nodes *storage.NodeStore
	name  string
	opts  smt.Options

	// mu is held for reading by overlay operations and for writing while a
	// batch touching the tree is staged.
	mu sync.RWMutex

	rootMu sync.Mutex
	root   types.Digest
}

// OpenTreeDB opens the tree kept in cols. A tree which was never written
// has the zero root.
//
// Tree metrics are registered with the MetricFactory passed to the first
// call in the process; later factories are ignored.
func OpenTreeDB(ctx context.Context, cs storage.ColumnStore, cols storage.TreeColumns, opts smt.Options, mf monitoring.MetricFactory) (*TreeDB, error) {
	once.Do(func() { createMetrics(monitoring.OrInert(mf)) })
	db := &TreeDB{
		cs:    cs,
		nodes: storage.NewNodeStore(cs, cols),
		name:  cols.Branch.String(),
		opts:  opts,
	}
	b, ok, err := cs.Get(ctx, storage.ColumnMeta, RootKey(cols))
	if err != nil {
		return nil, err
	}
	if ok {
		if db.root, err = types.DigestFromBytes(b); err != nil {
			return nil, errors.Wrap(errors.StorageFault, err, "corrupted root")
		}
	}
	klog.V(1).Infof("Opened tree %s at root %v", db.name, db.root)
	return db, nil
}

// Root implements Base.
func (db *TreeDB) Root() types.Digest {
	db.rootMu.Lock()
	defer db.rootMu.Unlock()
	return db.root
}

func (db *TreeDB) setRoot(root types.Digest) {
	db.rootMu.Lock()
	defer db.rootMu.Unlock()
	db.root = root
}

// Columns returns the columns holding the tree.
func (db *TreeDB) Columns() storage.TreeColumns { return db.nodes.Columns() }

// GetBranch implements smt.StoreReader. It reads the committed nodes
// directly; hold ReadLock for a consistent view across several reads.
func (db *TreeDB) GetBranch(ctx context.Context, key smt.BranchKey) (smt.BranchNode, bool, error) {
	return db.nodes.GetBranch(ctx, key)
}

// GetLeaf implements smt.StoreReader.
func (db *TreeDB) GetLeaf(ctx context.Context, key types.Digest) (types.Digest, bool, error) {
	return db.nodes.GetLeaf(ctx, key)
}

// ReadLock implements Base.
func (db *TreeDB) ReadLock() func() {
	db.mu.RLock()
	return db.mu.RUnlock
}

// Apply implements Base by committing d in its own batch.
func (db *TreeDB) Apply(ctx context.Context, d *Delta) error {
	b := NewBatch(db.cs)
	defer b.Release()
	if _, err := b.Stage(ctx, db, d); err != nil {
		return err
	}
	return b.Write(ctx)
}

// Batch gathers the deltas of several trees sharing one column store, plus
// any other writes, and commits them in one atomic BatchWrite. Every staged
// tree stays locked until Write or Release.
type Batch struct {
	cs     storage.ColumnStore
	ops    []storage.Op
	staged []staged
	done   bool
}

type staged struct {
	db   *TreeDB
	root types.Digest
}

// NewBatch returns an empty batch writing to cs.
func NewBatch(cs storage.ColumnStore) *Batch {
	return &Batch{cs: cs}
}

// Add appends raw column store ops to the batch.
func (b *Batch) Add(ops ...storage.Op) {
	b.ops = append(b.ops, ops...)
}

// Stage locks db and adds the writes committing d to it. It returns the
// root the tree will have once the batch is written. Trees must be staged
// in the same order by every caller.
func (b *Batch) Stage(ctx context.Context, db *TreeDB, d *Delta) (types.Digest, error) {
	if b.done {
		return types.Zero, errors.New(errors.FailedPrecondition, "batch already written")
	}
	if db.cs != b.cs {
		return types.Zero, errors.Errorf(errors.InvalidArgument, "tree %s lives in another column store", db.name)
	}
	for _, s := range b.staged {
		if s.db == db {
			return types.Zero, errors.Errorf(errors.InvalidArgument, "tree %s staged twice", db.name)
		}
	}
	db.mu.Lock()
	cur := db.Root()
	changes, root := d.Changes, d.Root
	if d.BaseRoot != cur {
		rebases.Inc(db.name)
		klog.Warningf("tree %s: delta based on %v but root is %v, replaying %d writes", db.name, d.BaseRoot, cur, len(d.Writes))
		rt := smt.NewReadThroughStore(db.nodes)
		t := smt.New(cur, rt, db.opts)
		if err := t.UpdateAll(ctx, d.Writes); err != nil {
			db.mu.Unlock()
			return types.Zero, err
		}
		changes, root = rt.Changes(), t.Root()
	}
	b.staged = append(b.staged, staged{db: db, root: root})
	if changes != nil {
		b.ops = append(b.ops, db.nodes.Ops(changes)...)
	}
	b.ops = append(b.ops, storage.Put(storage.ColumnMeta, RootKey(db.Columns()), root.Bytes()))
	return root, nil
}

// Write commits the batch and advances the roots of the staged trees.
func (b *Batch) Write(ctx context.Context) error {
	if b.done {
		return errors.New(errors.FailedPrecondition, "batch already written")
	}
	defer b.Release()
	start := time.Now()
	if err := b.cs.BatchWrite(ctx, b.ops); err != nil {
		return err
	}
	monitoring.ObserveSince(commitLatency, start)
	batchOps.Observe(float64(len(b.ops)))
	for _, s := range b.staged {
		s.db.setRoot(s.root)
		commits.Inc(s.db.name)
	}
	return nil
}

// Release unlocks the staged trees without writing. It is a no-op once the
// batch was written or released.
func (b *Batch) Release() {
	if b.done {
		return
	}
	b.done = true
	for i := len(b.staged) - 1; i >= 0; i-- {
		b.staged[i].db.mu.Unlock()
	}
}
