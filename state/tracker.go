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

package state

import (
	"github.com/godwokenrises/godwoken-sub007/merkle/smt"
	"github.com/godwokenrises/godwoken-sub007/types"
)

// Tracker remembers the keys written while building a block together with
// their values before the first write.
type Tracker struct {
	pre map[types.Digest]types.Digest
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{pre: make(map[types.Digest]types.Digest)}
}

// Touch records a write to key whose current value is old. Only the first
// write of a key is remembered.
func (t *Tracker) Touch(key, old types.Digest) {
	if _, ok := t.pre[key]; !ok {
		t.pre[key] = old
	}
}

// Len returns the number of touched keys.
func (t *Tracker) Len() int { return len(t.pre) }

// Keys returns the touched keys sorted.
func (t *Tracker) Keys() []types.Digest {
	leaves := make([]types.Leaf, 0, len(t.pre))
	for k := range t.pre {
		leaves = append(leaves, types.Leaf{Key: k})
	}
	smt.SortLeaves(leaves)
	keys := make([]types.Digest, len(leaves))
	for i, l := range leaves {
		keys[i] = l.Key
	}
	return keys
}

// Old returns the value key had before it was first touched.
func (t *Tracker) Old(key types.Digest) (types.Digest, bool) {
	v, ok := t.pre[key]
	return v, ok
}

// Merge adds the keys of child, which tracked writes made on top of t's.
func (t *Tracker) Merge(child *Tracker) {
	for k, v := range child.pre {
		t.Touch(k, v)
	}
}

// Reset forgets every key.
func (t *Tracker) Reset() {
	t.pre = make(map[types.Digest]types.Digest)
}
