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
	"context"

	"github.com/godwokenrises/godwoken-sub007/merkle/smt"
	"github.com/godwokenrises/godwoken-sub007/overlay"
	"github.com/godwokenrises/godwoken-sub007/types"
	"k8s.io/klog/v2"
)

// State is a typed view of the account tree. Every write is buffered in an
// overlay and recorded in a Tracker. A State has a single writer.
type State struct {
	ov      *overlay.Overlay
	tracker *Tracker
	parent  *State
}

// New returns a State over base.
func New(base overlay.Base, cfg Config) *State {
	return &State{ov: overlay.New(base, cfg.TreeOptions()), tracker: NewTracker()}
}

// Overlay returns the overlay holding the buffered writes.
func (s *State) Overlay() *overlay.Overlay { return s.ov }

// Tracker returns the keys touched since the State was created, committed
// or discarded.
func (s *State) Tracker() *Tracker { return s.tracker }

// GetValue returns the value at a. An unset address has the zero value.
func (s *State) GetValue(ctx context.Context, a Address) (types.Digest, error) {
	return s.GetRaw(ctx, a.Key())
}

// SetValue sets the value at a. Setting zero clears it.
func (s *State) SetValue(ctx context.Context, a Address, value types.Digest) error {
	return s.SetRaw(ctx, a.Key(), value)
}

// GetRaw returns the value at a tree key.
func (s *State) GetRaw(ctx context.Context, key types.Digest) (types.Digest, error) {
	return s.ov.Get(ctx, key)
}

// SetRaw sets the value at a tree key.
func (s *State) SetRaw(ctx context.Context, key, value types.Digest) error {
	old, err := s.ov.Get(ctx, key)
	if err != nil {
		return err
	}
	if old == value {
		return nil
	}
	if err := s.ov.Update(ctx, key, value); err != nil {
		return err
	}
	s.tracker.Touch(key, old)
	return nil
}

// CalculateRoot returns the root of the current base combined with the
// buffered writes. Proofs from GenerateProof verify against it even when
// another State committed into the same base in between. Err reports a
// failure to follow the base.
func (s *State) CalculateRoot() types.Digest { return s.ov.Root() }

// Err returns the error, if any, which stopped the State from following
// its base. It clears on Discard.
func (s *State) Err() error { return s.ov.Err() }

// GenerateProof returns a compiled proof of the current values of keys
// against CalculateRoot.
func (s *State) GenerateProof(ctx context.Context, keys []types.Digest) (*smt.Proof, error) {
	return s.ov.MerkleProof(ctx, keys)
}

// Updates returns a LeafUpdate for every touched key whose value differs
// from its value before it was first touched, sorted by key.
func (s *State) Updates(ctx context.Context) ([]types.LeafUpdate, error) {
	keys := s.tracker.Keys()
	res := make([]types.LeafUpdate, 0, len(keys))
	for _, k := range keys {
		old, _ := s.tracker.Old(k)
		cur, err := s.ov.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if cur != old {
			res = append(res, types.LeafUpdate{Key: k, Old: old, New: cur})
		}
	}
	return res, nil
}

// Fork returns a State buffering writes on top of s. Committing it merges
// its writes and touched keys into s.
func (s *State) Fork() *State {
	return &State{ov: s.ov.Child(), tracker: NewTracker(), parent: s}
}

// Commit applies the buffered writes to the base and forgets the touched
// keys, handing them to the parent State for a fork.
func (s *State) Commit(ctx context.Context) error {
	if err := s.ov.Commit(ctx); err != nil {
		return err
	}
	if s.parent != nil {
		s.parent.tracker.Merge(s.tracker)
	}
	klog.V(3).Infof("state: committed %d touched keys, root %v", s.tracker.Len(), s.ov.Root())
	s.tracker.Reset()
	return nil
}

// Discard drops the buffered writes and touched keys.
func (s *State) Discard() {
	s.ov.Discard()
	s.tracker.Reset()
}
