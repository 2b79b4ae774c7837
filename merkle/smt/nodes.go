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

package smt

import (
	"context"
	"errors"

	"github.com/godwokenrises/godwoken-sub007/merkle/smt/node"
	"github.com/godwokenrises/godwoken-sub007/types"
)

var errRootAccess = errors.New("the root has no parent branch")

type branchEntry struct {
	node BranchNode
	orig BranchNode
}

// nodeAccessor implements NodeAccessor on top of a StoreReader. The hash of
// a node is kept in its parent branch, so reading or writing a node loads the
// parent branch once and keeps it until the changes are collected.
//
// A nodeAccessor is not safe for concurrent use.
type nodeAccessor struct {
	ctx      context.Context
	store    StoreReader
	branches map[BranchKey]*branchEntry
}

func newNodeAccessor(ctx context.Context, store StoreReader) *nodeAccessor {
	return &nodeAccessor{ctx: ctx, store: store, branches: make(map[BranchKey]*branchEntry)}
}

func (a *nodeAccessor) load(key BranchKey) (*branchEntry, error) {
	if e, ok := a.branches[key]; ok {
		return e, nil
	}
	n, _, err := a.store.GetBranch(a.ctx, key)
	if err != nil {
		return nil, err
	}
	e := &branchEntry{node: n, orig: n}
	a.branches[key] = e
	return e, nil
}

func (a *nodeAccessor) parent(id node.ID) (*branchEntry, uint, error) {
	if id.BitLen() == 0 {
		return nil, 0, errRootAccess
	}
	d := id.BitLen() - 1
	e, err := a.load(BranchKeyOf(id.Prefix(d)))
	if err != nil {
		return nil, 0, err
	}
	return e, id.Bit(d), nil
}

// Get returns the hash of the node with the given ID.
func (a *nodeAccessor) Get(id node.ID) (types.Digest, error) {
	e, bit, err := a.parent(id)
	if err != nil {
		return types.Zero, err
	}
	return e.node.Child(bit), nil
}

// Set sets the hash of the node with the given ID.
func (a *nodeAccessor) Set(id node.ID, hash types.Digest) error {
	e, bit, err := a.parent(id)
	if err != nil {
		return err
	}
	e.node.SetChild(bit, hash)
	return nil
}

// changes returns the branches modified through Set. A branch which became
// empty is returned with an empty node, which removes it.
func (a *nodeAccessor) changes() []BranchChange {
	var res []BranchChange
	for k, e := range a.branches {
		if e.node != e.orig {
			res = append(res, BranchChange{Key: k, Node: e.node})
		}
	}
	return res
}
