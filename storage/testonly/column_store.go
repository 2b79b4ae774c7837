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

// Package testonly holds test-specific code for storage packages.
package testonly

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/godwokenrises/godwoken-sub007/storage"
	"github.com/stretchr/testify/require"
)

// NewColumnStoreFunc returns an empty store and a function releasing it.
type NewColumnStoreFunc func(t *testing.T) storage.ColumnStore

// ColumnStoreTester runs a suite of conformance tests against a
// storage.ColumnStore implementation.
type ColumnStoreTester struct {
	NewStore NewColumnStoreFunc
}

// RunAllTests runs all the tests in the suite.
func (c ColumnStoreTester) RunAllTests(t *testing.T) {
	t.Run("GetMissing", c.TestGetMissing)
	t.Run("PutGet", c.TestPutGet)
	t.Run("Delete", c.TestDelete)
	t.Run("ColumnsAreDisjoint", c.TestColumnsAreDisjoint)
	t.Run("LaterOpWins", c.TestLaterOpWins)
	t.Run("ValuesAreCopied", c.TestValuesAreCopied)
	t.Run("ConcurrentBatches", c.TestConcurrentBatches)
}

func (c ColumnStoreTester) newStore(t *testing.T) storage.ColumnStore {
	t.Helper()
	s := c.NewStore(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestGetMissing checks that absent keys are reported as such.
func (c ColumnStoreTester) TestGetMissing(t *testing.T) {
	ctx := context.Background()
	s := c.newStore(t)
	v, ok, err := s.Get(ctx, storage.ColumnAccountLeaf, []byte("nope"))
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, v)
}

// TestPutGet checks that a written value reads back.
func (c ColumnStoreTester) TestPutGet(t *testing.T) {
	ctx := context.Background()
	s := c.newStore(t)
	require.NoError(t, s.BatchWrite(ctx, []storage.Op{
		storage.Put(storage.ColumnAccountLeaf, []byte("a"), []byte("1")),
		storage.Put(storage.ColumnAccountLeaf, []byte("b"), []byte("2")),
	}))
	for key, want := range map[string]string{"a": "1", "b": "2"} {
		v, ok, err := s.Get(ctx, storage.ColumnAccountLeaf, []byte(key))
		require.NoError(t, err)
		require.True(t, ok, "key %q", key)
		require.Equal(t, want, string(v))
	}
}

// TestDelete checks that deleted keys become absent, and that deleting an
// absent key is not an error.
func (c ColumnStoreTester) TestDelete(t *testing.T) {
	ctx := context.Background()
	s := c.newStore(t)
	require.NoError(t, s.BatchWrite(ctx, []storage.Op{
		storage.Put(storage.ColumnMeta, []byte("k"), []byte("v")),
	}))
	require.NoError(t, s.BatchWrite(ctx, []storage.Op{
		storage.Delete(storage.ColumnMeta, []byte("k")),
		storage.Delete(storage.ColumnMeta, []byte("never-written")),
	}))
	_, ok, err := s.Get(ctx, storage.ColumnMeta, []byte("k"))
	require.NoError(t, err)
	require.False(t, ok)
}

// TestColumnsAreDisjoint checks that the same key in two columns holds two
// values.
func (c ColumnStoreTester) TestColumnsAreDisjoint(t *testing.T) {
	ctx := context.Background()
	s := c.newStore(t)
	key := []byte("shared")
	var ops []storage.Op
	for col := 0; col < storage.NumColumns; col++ {
		ops = append(ops, storage.Put(storage.Column(col), key, []byte{byte(col)}))
	}
	require.NoError(t, s.BatchWrite(ctx, ops))
	for col := 0; col < storage.NumColumns; col++ {
		v, ok, err := s.Get(ctx, storage.Column(col), key)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte{byte(col)}, v, "column %v", storage.Column(col))
	}
}

// TestLaterOpWins checks that ops on one key in one batch apply in order.
func (c ColumnStoreTester) TestLaterOpWins(t *testing.T) {
	ctx := context.Background()
	s := c.newStore(t)
	require.NoError(t, s.BatchWrite(ctx, []storage.Op{
		storage.Put(storage.ColumnBlockLeaf, []byte("k"), []byte("first")),
		storage.Put(storage.ColumnBlockLeaf, []byte("k"), []byte("second")),
		storage.Delete(storage.ColumnBlockLeaf, []byte("gone")),
		storage.Put(storage.ColumnBlockLeaf, []byte("gone"), []byte("x")),
		storage.Delete(storage.ColumnBlockLeaf, []byte("gone")),
	}))
	v, ok, err := s.Get(ctx, storage.ColumnBlockLeaf, []byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "second", string(v))
	_, ok, err = s.Get(ctx, storage.ColumnBlockLeaf, []byte("gone"))
	require.NoError(t, err)
	require.False(t, ok)
}

// TestValuesAreCopied checks that the store does not alias caller buffers.
func (c ColumnStoreTester) TestValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	s := c.newStore(t)
	key, value := []byte("key"), []byte("value")
	require.NoError(t, s.BatchWrite(ctx, []storage.Op{storage.Put(storage.ColumnMeta, key, value)}))
	key[0], value[0] = 'X', 'X'

	v, ok, err := s.Get(ctx, storage.ColumnMeta, []byte("key"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "value", string(v))
	v[0] = 'Y'
	v, _, err = s.Get(ctx, storage.ColumnMeta, []byte("key"))
	require.NoError(t, err)
	require.Equal(t, "value", string(v))
}

// TestConcurrentBatches checks that batches written concurrently all land.
func (c ColumnStoreTester) TestConcurrentBatches(t *testing.T) {
	ctx := context.Background()
	s := c.newStore(t)
	const writers, perWriter = 8, 16
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			ops := make([]storage.Op, 0, perWriter)
			for i := 0; i < perWriter; i++ {
				ops = append(ops, storage.Put(storage.ColumnAccountBranch, []byte(fmt.Sprintf("%d/%d", w, i)), []byte{byte(i)}))
			}
			errs <- s.BatchWrite(ctx, ops)
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	for w := 0; w < writers; w++ {
		for i := 0; i < perWriter; i++ {
			v, ok, err := s.Get(ctx, storage.ColumnAccountBranch, []byte(fmt.Sprintf("%d/%d", w, i)))
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, []byte{byte(i)}, v)
		}
	}
}
