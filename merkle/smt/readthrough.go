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
	"sync"

	"github.com/godwokenrises/godwoken-sub007/types"
)

// ReadThroughStore keeps writes in memory and reads nodes it doesn't hold
// from a base StoreReader. Removals are kept as tombstones, so a node
// removed in memory is not read from the base again. The base is never
// written.
type ReadThroughStore struct {
	base StoreReader

	mu sync.RWMutex
	// An empty node or a zero value is a tombstone.
	branches map[BranchKey]BranchNode
	leaves   map[types.Digest]types.Digest
}

// NewReadThroughStore returns an empty ReadThroughStore over base.
func NewReadThroughStore(base StoreReader) *ReadThroughStore {
	return &ReadThroughStore{
		base:     base,
		branches: make(map[BranchKey]BranchNode),
		leaves:   make(map[types.Digest]types.Digest),
	}
}

// Base returns the store reads fall through to.
func (s *ReadThroughStore) Base() StoreReader { return s.base }

// GetBranch implements StoreReader.
func (s *ReadThroughStore) GetBranch(ctx context.Context, key BranchKey) (BranchNode, bool, error) {
	s.mu.RLock()
	n, ok := s.branches[key]
	s.mu.RUnlock()
	if ok {
		return n, !n.IsEmpty(), nil
	}
	return s.base.GetBranch(ctx, key)
}

// GetLeaf implements StoreReader.
func (s *ReadThroughStore) GetLeaf(ctx context.Context, key types.Digest) (types.Digest, bool, error) {
	s.mu.RLock()
	v, ok := s.leaves[key]
	s.mu.RUnlock()
	if ok {
		return v, !v.IsZero(), nil
	}
	return s.base.GetLeaf(ctx, key)
}

// InsertBranch implements StoreWriter.
func (s *ReadThroughStore) InsertBranch(_ context.Context, key BranchKey, n BranchNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branches[key] = n
	return nil
}

// RemoveBranch implements StoreWriter.
func (s *ReadThroughStore) RemoveBranch(_ context.Context, key BranchKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branches[key] = BranchNode{}
	return nil
}

// InsertLeaf implements StoreWriter.
func (s *ReadThroughStore) InsertLeaf(_ context.Context, key, value types.Digest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaves[key] = value
	return nil
}

// RemoveLeaf implements StoreWriter.
func (s *ReadThroughStore) RemoveLeaf(_ context.Context, key types.Digest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaves[key] = types.Zero
	return nil
}

// WriteChanges implements BatchWriter.
func (s *ReadThroughStore) WriteChanges(_ context.Context, cs *ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range cs.Branches {
		s.branches[b.Key] = b.Node
	}
	for _, l := range cs.Leaves {
		s.leaves[l.Key] = l.Value
	}
	return nil
}

// Changes returns the writes held in memory, tombstones included, sorted by
// key.
func (s *ReadThroughStore) Changes() *ChangeSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs := &ChangeSet{
		Branches: make([]BranchChange, 0, len(s.branches)),
		Leaves:   make([]types.Leaf, 0, len(s.leaves)),
	}
	for k, n := range s.branches {
		cs.Branches = append(cs.Branches, BranchChange{Key: k, Node: n})
	}
	for k, v := range s.leaves {
		cs.Leaves = append(cs.Leaves, types.Leaf{Key: k, Value: v})
	}
	cs.Sort()
	return cs
}

// Reset drops all the writes held in memory.
func (s *ReadThroughStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branches = make(map[BranchKey]BranchNode)
	s.leaves = make(map[types.Digest]types.Digest)
}
