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
	"context"
	"testing"

	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/storage"
	"github.com/godwokenrises/godwoken-sub007/storage/testonly"
)

func TestColumnStore(t *testing.T) {
	testonly.ColumnStoreTester{
		NewStore: func(t *testing.T) storage.ColumnStore { return NewColumnStore() },
	}.RunAllTests(t)
}

func TestSnapshotIsIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewColumnStore()
	if err := s.BatchWrite(ctx, []storage.Op{storage.Put(storage.ColumnMeta, []byte("k"), []byte("old"))}); err != nil {
		t.Fatalf("BatchWrite: %v", err)
	}
	snap := s.Snapshot()
	if err := s.BatchWrite(ctx, []storage.Op{storage.Put(storage.ColumnMeta, []byte("k"), []byte("new"))}); err != nil {
		t.Fatalf("BatchWrite: %v", err)
	}
	v, _, err := snap.Get(ctx, storage.ColumnMeta, []byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got, want := string(v), "old"; got != want {
		t.Errorf("snapshot value = %q, want %q", got, want)
	}
}

func TestBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewColumnStore()
	err := s.BatchWrite(ctx, []storage.Op{
		storage.Put(storage.ColumnMeta, []byte("k"), []byte("v")),
		storage.Put(storage.Column(200), []byte("k"), []byte("v")),
	})
	if got, want := errors.CodeOf(err), errors.StorageFault; got != want {
		t.Fatalf("BatchWrite: got code %v, want %v", got, want)
	}
	if n := s.Len(storage.ColumnMeta); n != 0 {
		t.Errorf("Len(meta) = %d after failed batch, want 0", n)
	}
}

func TestCancelledBatchIsDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewColumnStore()
	if err := s.BatchWrite(ctx, []storage.Op{storage.Put(storage.ColumnMeta, []byte("k"), []byte("v"))}); err == nil {
		t.Fatal("BatchWrite with cancelled context succeeded")
	}
	if n := s.Len(storage.ColumnMeta); n != 0 {
		t.Errorf("Len(meta) = %d, want 0", n)
	}
}

func TestClosed(t *testing.T) {
	ctx := context.Background()
	s := NewColumnStore()
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, _, err := s.Get(ctx, storage.ColumnMeta, []byte("k")); errors.CodeOf(err) != errors.StorageFault {
		t.Errorf("Get after Close: %v, want StorageFault", err)
	}
}

func TestMemoryStorageProvider(t *testing.T) {
	sp, err := storage.NewProvider("memory", nil, storage.ProviderOptions{})
	if err != nil {
		t.Fatalf("Got an unexpected error: %v", err)
	}
	if sp.ColumnStore() == nil {
		t.Fatal("Got a nil column store.")
	}
	if err := sp.Close(); err != nil {
		t.Fatalf("Failed to close the memory storage provider: %v", err)
	}
}
