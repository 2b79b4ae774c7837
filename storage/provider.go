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
	"fmt"
	"sort"
	"sync"

	"github.com/godwokenrises/godwoken-sub007/monitoring"
)

// ProviderOptions configures a storage provider. Each provider reads the
// fields it needs.
type ProviderOptions struct {
	// Path is the directory of an on-disk store.
	Path string
	// DSN is the data source name of an SQL store.
	DSN string
}

// NewProviderFunc is the signature of a function which can be registered to
// provide instances of storage providers.
type NewProviderFunc func(monitoring.MetricFactory, ProviderOptions) (Provider, error)

var (
	spMu     sync.RWMutex
	spByName = make(map[string]NewProviderFunc)
)

// RegisterProvider registers the given storage Provider.
func RegisterProvider(name string, sp NewProviderFunc) error {
	spMu.Lock()
	defer spMu.Unlock()

	if _, exists := spByName[name]; exists {
		return fmt.Errorf("storage provider %v already registered", name)
	}
	spByName[name] = sp
	return nil
}

// NewProvider returns a new Provider instance of the type specified by name.
func NewProvider(name string, mf monitoring.MetricFactory, opts ProviderOptions) (Provider, error) {
	spMu.RLock()
	sp := spByName[name]
	spMu.RUnlock()

	if sp == nil {
		return nil, fmt.Errorf("no such storage provider %v", name)
	}
	return sp(monitoring.OrInert(mf), opts)
}

// Providers returns the sorted names of all registered storage providers.
func Providers() []string {
	spMu.RLock()
	defer spMu.RUnlock()

	r := make([]string, 0, len(spByName))
	for k := range spByName {
		r = append(r, k)
	}
	sort.Strings(r)
	return r
}

// Provider is an interface which allows binaries to use different storage
// implementations.
type Provider interface {
	// ColumnStore returns the store. It stays valid until Close.
	ColumnStore() ColumnStore
	// Close closes the underlying storage.
	Close() error
}
