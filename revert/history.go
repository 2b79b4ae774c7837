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


package revert

import (
	"context"

	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/merkle/smt"
	"github.com/godwokenrises/godwoken-sub007/overlay"
	"github.com/godwokenrises/godwoken-sub007/state"
	"github.com/godwokenrises/godwoken-sub007/types"
	"k8s.io/klog/v2"
)

// History reads the account tree as it was right after a past block. Each
// call rebuilds that tree in memory by undoing the journaled writes of the
// later blocks, newest first, while commits to the account tree are held
// off. Nothing is written.
//
// Block 0 means the state before the first journaled block.
type History struct {
	journal  *Journal
	accounts *overlay.TreeDB
	opts     smt.Options
}

// NewHistory returns a History of the account tree backed by journal.
func NewHistory(journal *Journal, accounts *overlay.TreeDB, cfg state.Config) *History {
	return &History{journal: journal, accounts: accounts, opts: cfg.TreeOptions()}
}

// RootAt returns the account root after block number.
func (h *History) RootAt(ctx context.Context, number uint64) (types.Digest, error) {
	defer h.accounts.ReadLock()()
	t, err := h.treeAt(ctx, number)
	if err != nil {
		return types.Zero, err
	}
	return t.Root(), nil
}

// ValueAt returns the value of key after block number.
func (h *History) ValueAt(ctx context.Context, number uint64, key types.Digest) (types.Digest, error) {
	defer h.accounts.ReadLock()()
	t, err := h.treeAt(ctx, number)
	if err != nil {
		return types.Zero, err
	}
	return t.Get(ctx, key)
}

// ProofAt returns the root after block number and a proof of the values
// keys had then.
func (h *History) ProofAt(ctx context.Context, number uint64, keys []types.Digest) (types.Digest, *smt.Proof, error) {
	defer h.accounts.ReadLock()()
	t, err := h.treeAt(ctx, number)
	if err != nil {
		return types.Zero, nil, err
	}
	p, err := t.MerkleProof(ctx, keys)
	if err != nil {
		return types.Zero, nil, err
	}
	return t.Root(), p, nil
}

// treeAt returns an in-memory tree over the committed account tree holding
// the state after block number. The caller holds the account read lock.
func (h *History) treeAt(ctx context.Context, number uint64) (*smt.Tree, error) {
	tip, ok, err := h.journal.Tip(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		tip = 0
	}
	if number > tip {
		return nil, errors.Errorf(errors.NotFound, "block %d is past the tip %d", number, tip)
	}
	cur := h.accounts.Root()
	t := smt.New(cur, smt.NewReadThroughStore(h.accounts), h.opts)
	if tip == 0 {
		return t, nil
	}
	last, err := h.journal.Get(ctx, tip)
	if err != nil {
		return nil, err
	}
	if last.PostRoot != cur {
		return nil, errors.Errorf(errors.StateMismatch, "tip block %d ends at %v but the account root is %v", tip, last.PostRoot, cur)
	}
	for n, e := tip, last; n > number; n-- {
		if n != tip {
			if e, err = h.journal.Get(ctx, n); err != nil {
				return nil, err
			}
		}
		// Reversed, so the oldest pre-image of a key written twice wins.
		undo := make([]types.Leaf, 0, len(e.Writes))
		for i := len(e.Writes) - 1; i >= 0; i-- {
			undo = append(undo, types.Leaf{Key: e.Writes[i].Key, Value: e.Writes[i].Old})
		}
		if err := t.UpdateAll(ctx, undo); err != nil {
			return nil, err
		}
		if got := t.Root(); got != e.PriorRoot {
			return nil, errors.Errorf(errors.StateMismatch, "undoing block %d gave root %v, want %v", n, got, e.PriorRoot)
		}
	}
	klog.V(2).Infof("history: rebuilt block %d from tip %d, root %v", number, tip, t.Root())
	return t, nil
}
