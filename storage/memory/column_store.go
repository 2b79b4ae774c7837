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

package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/storage"
	"github.com/google/btree"
	"k8s.io/klog/v2"
)

const degree = 8

// kv is a BTree item. Items order by column, then key.
type kv struct {
	col storage.Column
	k   []byte
	v   []byte
}

func less(a, b kv) bool {
	if a.col != b.col {
		return a.col < b.col
	}
	return bytes.Compare(a.k, b.k) < 0
}

// ColumnStore is a storage.ColumnStore held in memory.
type ColumnStore struct {
	mu     sync.RWMutex
	tree   *btree.BTreeG[kv]
	closed bool
}

// NewColumnStore returns an empty ColumnStore.
func NewColumnStore() *ColumnStore {
	return &ColumnStore{tree: btree.NewG(degree, less)}
}

// Get implements storage.ColumnStore.
func (s *ColumnStore) Get(ctx context.Context, col storage.Column, key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, errors.New(errors.StorageFault, "memory store is closed")
	}
	item, ok := s.tree.Get(kv{col: col, k: key})
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(item.v), true, nil
}

// BatchWrite implements storage.ColumnStore. The batch is applied to a clone
// of the tree, which replaces the live tree only once every op has landed.
func (s *ColumnStore) BatchWrite(ctx context.Context, ops []storage.Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New(errors.StorageFault, "memory store is closed")
	}
	tx := s.tree.Clone()
	for _, op := range ops {
		if int(op.Column) >= storage.NumColumns {
			return errors.Errorf(errors.StorageFault, "write to unknown %v", op.Column)
		}
		item := kv{col: op.Column, k: bytes.Clone(op.Key)}
		if op.Delete {
			tx.Delete(item)
			continue
		}
		item.v = bytes.Clone(op.Value)
		tx.ReplaceOrInsert(item)
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.StorageFault, err, "batch abandoned")
	}
	s.tree = tx
	return nil
}

// Snapshot returns a copy of the store. Later writes to either store are
// not visible in the other.
func (s *ColumnStore) Snapshot() *ColumnStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &ColumnStore{tree: s.tree.Clone()}
}

// Len returns the number of keys in col.
func (s *ColumnStore) Len(col storage.Column) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	s.tree.AscendGreaterOrEqual(kv{col: col}, func(item kv) bool {
		if item.col != col {
			return false
		}
		n++
		return true
	})
	return n
}

// Close implements storage.ColumnStore. Further use of the store fails.
func (s *ColumnStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Dump ascends the store, logging the items contained.
func (s *ColumnStore) Dump() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.tree.Ascend(func(item kv) bool {
		klog.Infof("%v %x => %x", item.col, item.k, item.v)
		return true
	})
}
