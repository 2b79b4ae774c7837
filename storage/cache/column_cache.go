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

// Package cache provides a read cache in front of a storage.ColumnStore.
package cache

import (
	"context"
	"sync"

	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/monitoring"
	"github.com/godwokenrises/godwoken-sub007/storage"
	lru "github.com/hashicorp/golang-lru"
)

var (
	once        sync.Once
	cacheHits   monitoring.Counter
	cacheMisses monitoring.Counter
	invalidated monitoring.Counter
)

func createMetrics(mf monitoring.MetricFactory) {
	cacheHits = mf.NewCounter("column_cache_hits", "Number of column store reads served from the cache", "column")
	cacheMisses = mf.NewCounter("column_cache_misses", "Number of column store reads passed to the backing store", "column")
	invalidated = mf.NewCounter("column_cache_invalidations", "Number of cache entries dropped by writes")
}

type entry struct {
	value   []byte
	present bool
}

// ColumnStore caches the results of Get, including misses, for a backing
// ColumnStore. Writes pass through and invalidate the keys they touch.
type ColumnStore struct {
	// mu orders writes against reads, so that a read which raced with a
	// write cannot put a stale value back into the cache.
	mu      sync.RWMutex
	backing storage.ColumnStore
	lru     *lru.Cache
}

// New returns a ColumnStore caching up to size entries of backing.
// Cache metrics are registered with the MetricFactory of the first call in
// the process; later factories are ignored.
func New(backing storage.ColumnStore, size int, mf monitoring.MetricFactory) (*ColumnStore, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(errors.InvalidArgument, err, "cache size")
	}
	once.Do(func() { createMetrics(monitoring.OrInert(mf)) })
	return &ColumnStore{backing: backing, lru: c}, nil
}

func cacheKey(col storage.Column, key []byte) string {
	return string(append([]byte{byte(col)}, key...))
}

// Get implements storage.ColumnStore.
func (s *ColumnStore) Get(ctx context.Context, col storage.Column, key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k := cacheKey(col, key)
	if v, ok := s.lru.Get(k); ok {
		cacheHits.Inc(col.String())
		e := v.(entry)
		return clone(e.value), e.present, nil
	}
	cacheMisses.Inc(col.String())
	value, present, err := s.backing.Get(ctx, col, key)
	if err != nil {
		return nil, false, err
	}
	s.lru.Add(k, entry{value: clone(value), present: present})
	return value, present, nil
}

// BatchWrite implements storage.ColumnStore.
func (s *ColumnStore) BatchWrite(ctx context.Context, ops []storage.Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.backing.BatchWrite(ctx, ops)
	// A failed batch may still have partially reached a non-atomic
	// backend, so the keys are dropped either way.
	for _, op := range ops {
		k := cacheKey(op.Column, op.Key)
		if s.lru.Contains(k) {
			s.lru.Remove(k)
			invalidated.Inc()
		}
	}
	return err
}

// Purge empties the cache.
func (s *ColumnStore) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Purge()
}

// Len returns the number of cached entries.
func (s *ColumnStore) Len() int {
	return s.lru.Len()
}

// Close implements storage.ColumnStore by closing the backing store.
func (s *ColumnStore) Close() error {
	s.Purge()
	return s.backing.Close()
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
