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
	"sort"

	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/overlay"
	"github.com/godwokenrises/godwoken-sub007/state"
	"github.com/godwokenrises/godwoken-sub007/types"
	"k8s.io/klog/v2"
)

// Record asks for a set of committed blocks to be undone.
type Record struct {
	// PriorRoot is the account root before the first reverted block.
	PriorRoot types.Digest
	// Reverted are the numbers of the reverted blocks.
	Reverted []uint64
}

// Replayer re-applies a kept block on top of the reverted state.
type Replayer interface {
	Replay(ctx context.Context, st *state.State, e *Entry) error
}

// JournalReplayer replays a block by writing its journaled values in their
// original order. It assumes the block read nothing written by a reverted
// block.
type JournalReplayer struct{}

// Replay implements Replayer.
func (JournalReplayer) Replay(ctx context.Context, st *state.State, e *Entry) error {
	for _, w := range e.Writes {
		if err := st.SetRaw(ctx, w.Key, w.New); err != nil {
			return err
		}
	}
	return nil
}

// Replayed is a kept block after replay. Entry keeps the block's original
// number and hash; the roots and writes are those of the replay.
type Replayed struct {
	Entry
	Original *Entry
}

// Plan is a revert prepared in overlays. Nothing is written until the
// plan is staged and its batch written.
type Plan struct {
	// First is the number of the first reverted block; Tip the number of
	// the last journaled block.
	First, Tip uint64
	Reverted   []*Entry
	Kept       []*Replayed

	journal  *Journal
	accounts *overlay.Overlay
	reverted *overlay.Overlay
}

// AccountRoot returns the account root once the plan is applied.
func (p *Plan) AccountRoot() types.Digest { return p.accounts.Root() }

// RevertedRoot returns the reverted-block tree root once the plan is
// applied.
func (p *Plan) RevertedRoot() types.Digest { return p.reverted.Root() }

// MarkReverted registers further hashes in the plan's reverted tree, such
// as the old hashes of kept blocks which are sealed again.
func (p *Plan) MarkReverted(ctx context.Context, hashes ...types.Digest) error {
	for _, h := range hashes {
		if err := p.reverted.Update(ctx, h, types.RevertedMarker); err != nil {
			return err
		}
	}
	return nil
}

// Discard drops the plan's overlays.
func (p *Plan) Discard() {
	p.accounts.Discard()
	p.reverted.Discard()
}

// Manager plans and applies reverts.
type Manager struct {
	journal  *Journal
	accounts *overlay.TreeDB
	reverted *overlay.TreeDB
	replayer Replayer
	cfg      state.Config
}

// NewManager returns a Manager reverting the account tree and registering
// reverted block hashes in the reverted tree. A nil replayer means
// JournalReplayer.
func NewManager(journal *Journal, accounts, reverted *overlay.TreeDB, replayer Replayer, cfg state.Config) *Manager {
	if replayer == nil {
		replayer = JournalReplayer{}
	}
	return &Manager{journal: journal, accounts: accounts, reverted: reverted, replayer: replayer, cfg: cfg}
}

// Journal returns the journal the manager reads.
func (m *Manager) Journal() *Journal { return m.journal }

// Plan undoes every block from the tip down to the first reverted one,
// checks that the account root is then rec.PriorRoot, and replays the
// blocks which are not reverted in their original order.
func (m *Manager) Plan(ctx context.Context, rec Record) (*Plan, error) {
	if len(rec.Reverted) == 0 {
		return nil, errors.New(errors.InvalidArgument, "nothing to revert")
	}
	revertedSet := make(map[uint64]bool, len(rec.Reverted))
	for _, n := range rec.Reverted {
		if n == 0 || revertedSet[n] {
			return nil, errors.Errorf(errors.InvalidArgument, "bad reverted block number %d", n)
		}
		revertedSet[n] = true
	}
	nums := append([]uint64(nil), rec.Reverted...)
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	first := nums[0]

	tip, ok, err := m.journal.Tip(ctx)
	if err != nil {
		return nil, err
	}
	if !ok || nums[len(nums)-1] > tip {
		return nil, errors.Errorf(errors.NotFound, "block %d is not journaled", nums[len(nums)-1])
	}
	entries := make([]*Entry, 0, tip-first+1)
	for n := first; n <= tip; n++ {
		e, err := m.journal.Get(ctx, n)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if entries[0].PriorRoot != rec.PriorRoot {
		return nil, errors.Errorf(errors.StateMismatch, "block %d was applied on %v, not %v", first, entries[0].PriorRoot, rec.PriorRoot)
	}
	if cur := m.accounts.Root(); entries[len(entries)-1].PostRoot != cur {
		return nil, errors.Errorf(errors.StateMismatch, "tip block %d ends at %v but the account root is %v", tip, entries[len(entries)-1].PostRoot, cur)
	}

	st := state.New(m.accounts, m.cfg)
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		for w := len(e.Writes) - 1; w >= 0; w-- {
			if err := st.SetRaw(ctx, e.Writes[w].Key, e.Writes[w].Old); err != nil {
				st.Discard()
				return nil, err
			}
		}
		if got := st.CalculateRoot(); got != e.PriorRoot {
			st.Discard()
			return nil, errors.Errorf(errors.StateMismatch, "undoing block %d gave root %v, want %v", e.Number, got, e.PriorRoot)
		}
	}
	klog.V(1).Infof("revert: undid blocks %d..%d, back at %v", first, tip, rec.PriorRoot)

	plan := &Plan{First: first, Tip: tip, journal: m.journal, accounts: st.Overlay(), reverted: overlay.New(m.reverted, m.cfg.TreeOptions())}
	for _, e := range entries {
		if revertedSet[e.Number] {
			plan.Reverted = append(plan.Reverted, e)
			if err := plan.reverted.Update(ctx, e.Hash, types.RevertedMarker); err != nil {
				plan.Discard()
				return nil, err
			}
			continue
		}
		fork := st.Fork()
		prior := fork.CalculateRoot()
		if err := m.replayer.Replay(ctx, fork, e); err != nil {
			fork.Discard()
			plan.Discard()
			return nil, err
		}
		writes, err := fork.Updates(ctx)
		if err != nil {
			plan.Discard()
			return nil, err
		}
		if err := fork.Commit(ctx); err != nil {
			plan.Discard()
			return nil, err
		}
		plan.Kept = append(plan.Kept, &Replayed{
			Entry:    Entry{Number: e.Number, Hash: e.Hash, Timestamp: e.Timestamp, PriorRoot: prior, PostRoot: st.CalculateRoot(), Writes: writes},
			Original: e,
		})
		klog.V(2).Infof("revert: replayed block %d, root %v", e.Number, st.CalculateRoot())
	}
	return plan, nil
}

// Stage adds the plan's tree writes and the removal of the journal entries
// from First on to b. The caller journals the kept blocks under their new
// numbers, after the staged ops.
func (p *Plan) Stage(ctx context.Context, b *overlay.Batch, accounts, reverted *overlay.TreeDB) error {
	if _, err := b.Stage(ctx, accounts, p.accounts.Delta()); err != nil {
		return err
	}
	if _, err := b.Stage(ctx, reverted, p.reverted.Delta()); err != nil {
		return err
	}
	b.Add(p.journal.TruncateOps(p.First-1, p.Tip)...)
	return nil
}

// Revert applies rec in one atomic write. Kept blocks are journaled again
// with consecutive numbers starting at the first reverted block, keeping
// their hashes.
func (m *Manager) Revert(ctx context.Context, rec Record) (*Plan, error) {
	plan, err := m.Plan(ctx, rec)
	if err != nil {
		return nil, err
	}
	defer plan.Discard()
	b := overlay.NewBatch(m.journal.cs)
	defer b.Release()
	if err := plan.Stage(ctx, b, m.accounts, m.reverted); err != nil {
		return nil, err
	}
	next := plan.First
	for _, k := range plan.Kept {
		e := k.Entry
		e.Number = next
		ops, err := m.journal.AppendOps(&e)
		if err != nil {
			return nil, err
		}
		b.Add(ops...)
		next++
	}
	if err := b.Write(ctx); err != nil {
		return nil, err
	}
	klog.Infof("revert: reverted %d blocks from %d, replayed %d, account root %v", len(plan.Reverted), plan.First, len(plan.Kept), plan.AccountRoot())
	return plan, nil
}
