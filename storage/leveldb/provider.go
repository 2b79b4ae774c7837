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

package leveldb

import (
	"flag"

	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/monitoring"
	"github.com/godwokenrises/godwoken-sub007/storage"
	"k8s.io/klog/v2"
)

var (
	syncWrites = flag.Bool("leveldb_sync", false, "Wait for every leveldb batch to reach stable storage")
	cacheMiB   = flag.Int("leveldb_cache_mib", 0, "LevelDB block cache size in MiB, 0 for the default")
)

func init() {
	if err := storage.RegisterProvider("leveldb", newLevelDBStorageProvider); err != nil {
		klog.Fatalf("Failed to register storage provider leveldb: %v", err)
	}
}

type ldbProvider struct {
	cs *ColumnStore
}

func newLevelDBStorageProvider(_ monitoring.MetricFactory, o storage.ProviderOptions) (storage.Provider, error) {
	if o.Path == "" {
		return nil, errors.New(errors.InvalidArgument, "leveldb storage needs a path")
	}
	cs, err := Open(o.Path, Options{Sync: *syncWrites, CacheSizeMiB: *cacheMiB})
	if err != nil {
		return nil, err
	}
	return &ldbProvider{cs: cs}, nil
}

func (p *ldbProvider) ColumnStore() storage.ColumnStore {
	return p.cs
}

func (p *ldbProvider) Close() error {
	return p.cs.Close()
}
