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

// Package provider links the storage providers selected by build tags into
// a binary. Without tags every provider is linked.
package provider

import (
	"slices"

	"github.com/godwokenrises/godwoken-sub007/storage"
)

// DefaultStorageSystem is leveldb when it is linked in, and otherwise the
// first linked provider.
var DefaultStorageSystem string

func init() {
	defaultProvider := "leveldb"
	providers := storage.Providers()
	if len(providers) > 0 && !slices.Contains(providers, defaultProvider) {
		slices.Sort(providers)
		defaultProvider = providers[0]
	}
	DefaultStorageSystem = defaultProvider
}
