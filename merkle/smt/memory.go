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

// MemoryStore is a Store kept entirely in local maps. It never has durable
// side effects, and is used for throwaway speculative trees.
type MemoryStore struct {
	mu       sync.RWMutex
	branches map[BranchKey]BranchNode
	leaves   map[types.Digest]types.Digest
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		branches: make(map[BranchKey]BranchNode),
		leaves:   make(map[types.Digest]types.Digest),
	}
}

// GetBranch implements StoreReader.
func (s *MemoryStore) GetBranch(_ context.Context, key BranchKey) (BranchNode, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.branches[key]
	return n, ok, nil
}

// GetLeaf implements StoreReader.
func (s *MemoryStore) GetLeaf(_ context.Context, key types.Digest) (types.Digest, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.leaves[key]
	return v, ok, nil
}

// InsertBranch implements StoreWriter.
func (s *MemoryStore) InsertBranch(_ context.Context, key BranchKey, n BranchNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branches[key] = n
	return nil
}

// RemoveBranch implements StoreWriter.
func (s *MemoryStore) RemoveBranch(_ context.Context, key BranchKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.branches, key)
	return nil
}

// InsertLeaf implements StoreWriter.
func (s *MemoryStore) InsertLeaf(_ context.Context, key, value types.Digest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaves[key] = value
	return nil
}

// RemoveLeaf implements StoreWriter.
func (s *MemoryStore) RemoveLeaf(_ context.Context, key types.Digest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.leaves, key)
	return nil
}

// Len returns the number of branches and leaves held.
func (s *MemoryStore) Len() (branches, leaves int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.branches), len(s.leaves)
}
