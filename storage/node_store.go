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

package storage

import (
	"context"

	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/merkle/smt"
	"github.com/godwokenrises/godwoken-sub007/types"
)

// TreeColumns is the pair of columns holding one tree: branch nodes keyed by
// their encoded BranchKey, and leaves keyed by their 32-byte key.
type TreeColumns struct {
	Branch Column
	Leaf   Column
}

// Column pairs of the trees kept by the state layer.
var (
	AccountTree  = TreeColumns{Branch: ColumnAccountBranch, Leaf: ColumnAccountLeaf}
	BlockTree    = TreeColumns{Branch: ColumnBlockBranch, Leaf: ColumnBlockLeaf}
	RevertedTree = TreeColumns{Branch: ColumnRevertedBranch, Leaf: ColumnRevertedLeaf}
)

// NodeStore is the persistent smt.Store. Every write goes to the column
// store immediately, and WriteChanges applies a whole change set in one
// atomic batch.
type NodeStore struct {
	cs   ColumnStore
	cols TreeColumns
}

// NewNodeStore returns a NodeStore keeping the tree in the given columns.
func NewNodeStore(cs ColumnStore, cols TreeColumns) *NodeStore {
	return &NodeStore{cs: cs, cols: cols}
}

// Columns returns the columns holding the tree.
func (s *NodeStore) Columns() TreeColumns { return s.cols }

// ColumnStore returns the underlying column store.
func (s *NodeStore) ColumnStore() ColumnStore { return s.cs }

// GetBranch implements smt.StoreReader.
func (s *NodeStore) GetBranch(ctx context.Context, key smt.BranchKey) (smt.BranchNode, bool, error) {
	b, ok, err := s.cs.Get(ctx, s.cols.Branch, key.Encode())
	if err != nil || !ok {
		return smt.BranchNode{}, false, err
	}
	n, err := smt.DecodeBranchNode(b)
	if err != nil {
		return smt.BranchNode{}, false, errors.Wrap(errors.StorageFault, err, "corrupted branch")
	}
	return n, true, nil
}

// GetLeaf implements smt.StoreReader.
func (s *NodeStore) GetLeaf(ctx context.Context, key types.Digest) (types.Digest, bool, error) {
	b, ok, err := s.cs.Get(ctx, s.cols.Leaf, key[:])
	if err != nil || !ok {
		return types.Zero, false, err
	}
	v, err := types.DigestFromBytes(b)
	if err != nil {
		return types.Zero, false, errors.Wrap(errors.StorageFault, err, "corrupted leaf")
	}
	return v, true, nil
}

// InsertBranch implements smt.StoreWriter.
func (s *NodeStore) InsertBranch(ctx context.Context, key smt.BranchKey, n smt.BranchNode) error {
	return s.cs.BatchWrite(ctx, []Op{Put(s.cols.Branch, key.Encode(), n.Encode())})
}

// RemoveBranch implements smt.StoreWriter.
func (s *NodeStore) RemoveBranch(ctx context.Context, key smt.BranchKey) error {
	return s.cs.BatchWrite(ctx, []Op{Delete(s.cols.Branch, key.Encode())})
}

// InsertLeaf implements smt.StoreWriter.
func (s *NodeStore) InsertLeaf(ctx context.Context, key, value types.Digest) error {
	return s.cs.BatchWrite(ctx, []Op{Put(s.cols.Leaf, key.Bytes(), value.Bytes())})
}

// RemoveLeaf implements smt.StoreWriter.
func (s *NodeStore) RemoveLeaf(ctx context.Context, key types.Digest) error {
	return s.cs.BatchWrite(ctx, []Op{Delete(s.cols.Leaf, key.Bytes())})
}

// WriteChanges implements smt.BatchWriter.
func (s *NodeStore) WriteChanges(ctx context.Context, cs *smt.ChangeSet) error {
	return s.cs.BatchWrite(ctx, s.Ops(cs))
}

// Ops returns the column store writes applying cs, so that callers can
// combine them with other writes in a single batch.
func (s *NodeStore) Ops(cs *smt.ChangeSet) []Op {
	ops := make([]Op, 0, cs.Len())
	for _, b := range cs.Branches {
		if b.Node.IsEmpty() {
			ops = append(ops, Delete(s.cols.Branch, b.Key.Encode()))
		} else {
			ops = append(ops, Put(s.cols.Branch, b.Key.Encode(), b.Node.Encode()))
		}
	}
	for _, l := range cs.Leaves {
		if l.Value.IsZero() {
			ops = append(ops, Delete(s.cols.Leaf, l.Key.Bytes()))
		} else {
			ops = append(ops, Put(s.cols.Leaf, l.Key.Bytes(), l.Value.Bytes()))
		}
	}
	return ops
}
