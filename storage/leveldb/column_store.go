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

// Package leveldb provides a storage.ColumnStore persisted in a LevelDB
// database. Each key is prefixed with its column byte.
package leveldb

import (
	"context"

	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/storage"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"k8s.io/klog/v2"
)

// Options configures a ColumnStore.
type Options struct {
	// Sync makes every batch wait for the write to reach stable storage.
	Sync bool
	// CacheSizeMiB is the LevelDB block cache size. Zero keeps the
	// library default.
	CacheSizeMiB int
}

// ColumnStore is a storage.ColumnStore over a LevelDB database.
type ColumnStore struct {
	db   *leveldb.DB
	sync bool
}

// Open opens, or creates, the database in the directory path.
func Open(path string, o Options) (*ColumnStore, error) {
	lo := &opt.Options{}
	if o.CacheSizeMiB > 0 {
		lo.BlockCacheCapacity = o.CacheSizeMiB * opt.MiB
	}
	db, err := leveldb.OpenFile(path, lo)
	if err != nil {
		return nil, errors.Wrap(errors.StorageFault, err, "leveldb.OpenFile")
	}
	klog.V(1).Infof("Opened leveldb column store at %s", path)
	return &ColumnStore{db: db, sync: o.Sync}, nil
}

// OpenInMemory returns a ColumnStore whose database lives in memory.
func OpenInMemory() (*ColumnStore, error) {
	db, err := leveldb.Open(lstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, errors.Wrap(errors.StorageFault, err, "leveldb.Open")
	}
	return &ColumnStore{db: db}, nil
}

func dbKey(col storage.Column, key []byte) []byte {
	k := make([]byte, 1+len(key))
	k[0] = byte(col)
	copy(k[1:], key)
	return k
}

// Get implements storage.ColumnStore.
func (s *ColumnStore) Get(ctx context.Context, col storage.Column, key []byte) ([]byte, bool, error) {
	v, err := s.db.Get(dbKey(col, key), nil)
	switch {
	case err == leveldb.ErrNotFound:
		return nil, false, nil
	case err != nil:
		return nil, false, errors.Wrap(errors.StorageFault, err, "leveldb get")
	}
	if v == nil {
		v = []byte{}
	}
	return v, true, nil
}

// BatchWrite implements storage.ColumnStore with a single leveldb.Batch.
func (s *ColumnStore) BatchWrite(ctx context.Context, ops []storage.Op) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.StorageFault, err, "batch abandoned")
	}
	batch := new(leveldb.Batch)
	for _, op := range ops {
		if int(op.Column) >= storage.NumColumns {
			return errors.Errorf(errors.StorageFault, "write to unknown %v", op.Column)
		}
		if op.Delete {
			batch.Delete(dbKey(op.Column, op.Key))
		} else {
			batch.Put(dbKey(op.Column, op.Key), op.Value)
		}
	}
	if err := s.db.Write(batch, &opt.WriteOptions{Sync: s.sync}); err != nil {
		return errors.Wrap(errors.StorageFault, err, "leveldb write")
	}
	return nil
}

// Close implements storage.ColumnStore.
func (s *ColumnStore) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.Wrap(errors.StorageFault, err, "leveldb close")
	}
	return nil
}
