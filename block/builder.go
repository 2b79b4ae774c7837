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

package block

import (
	"bytes"
	"context"
	"sort"

	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/overlay"
	"github.com/godwokenrises/godwoken-sub007/revert"
	"github.com/godwokenrises/godwoken-sub007/state"
	"github.com/godwokenrises/godwoken-sub007/types"
	"github.com/godwokenrises/godwoken-sub007/util"
	"k8s.io/klog/v2"
)

// Op is an operation executed in a block, such as a transaction.
type Op func(ctx context.Context, st *state.State) error

// Builder builds one block. It is not safe for concurrent use.
type Builder struct {
	c       *Chain
	prev    types.GlobalState
	header  types.Header
	st      *state.State
	pending []types.Digest
	done    bool
}

// Result is a finalized and committed block together with its submission.
type Result struct {
	Block   *types.Block
	Witness *types.BlockWitness
	// Prev and Post are the global states before and after the block.
	Prev, Post  types.GlobalState
	Transaction *types.Transaction
}

// Number returns the number of the block being built.
func (b *Builder) Number() uint64 { return b.header.Number }

// Timestamp returns the timestamp of the block being built.
func (b *Builder) Timestamp() uint64 { return b.header.Timestamp }

// State returns the block's state. Reads see every applied operation.
func (b *Builder) State() *state.State { return b.st }

// Apply runs op in a fork of the block's state. The fork is merged into the
// block if op succeeds and dropped otherwise, so a failed op leaves no
// writes behind.
func (b *Builder) Apply(ctx context.Context, op Op) error {
	if b.done {
		return errors.New(errors.FailedPrecondition, "block already finalized or aborted")
	}
	ctx = util.WithBlock(ctx, b.header.Number)
	fork := b.st.Fork()
	if err := op(ctx, fork); err != nil {
		fork.Discard()
		klog.V(2).Infof("%s: op failed: %v", util.BlockPrefix(ctx), err)
		return err
	}
	if err := fork.Commit(ctx); err != nil {
		fork.Discard()
		klog.Warningf("%s: merging op writes failed: %v", util.BlockPrefix(ctx), err)
		return err
	}
	return nil
}

// Abort drops the block. It is a no-op after Finalize.
func (b *Builder) Abort() {
	if b.done {
		return
	}
	blocksAborted.Inc()
	klog.Warningf("chain: discarded block %d with %d touched keys", b.header.Number, b.st.Tracker().Len())
	b.finish()
}

func (b *Builder) finish() {
	b.done = true
	b.st.Discard()
	b.c.endBuild()
}

// Finalize seals the block: it signs the header, proves the updated keys
// against the previous and new account roots, registers the block in the
// block tree, and commits the trees, the journal entry and the new global
// state in one batch. On error nothing is written and the build ends.
func (b *Builder) Finalize(ctx context.Context) (*Result, error) {
	if b.done {
		return nil, errors.New(errors.FailedPrecondition, "block already finalized or aborted")
	}
	defer b.finish()
	c := b.c
	opts := c.cfg.State.TreeOptions()

	updates, err := b.st.Updates(ctx)
	if err != nil {
		return nil, err
	}
	var kvProof []byte
	if len(updates) > 0 {
		keys := make([]types.Digest, len(updates))
		for i, u := range updates {
			keys[i] = u.Key
		}
		p, err := b.st.GenerateProof(ctx, keys)
		if err != nil {
			return nil, err
		}
		kvProof = p.Program
	}

	h := b.header
	h.PostAccountRoot = b.st.CalculateRoot()
	h.UpdatesHash = types.HashUpdates(updates)
	hash := h.Hash()
	sig, err := c.cfg.Signer.Sign(hash)
	if err != nil {
		return nil, errors.Wrap(errors.Internal, err, "sign block")
	}

	bov := overlay.New(c.blocks, opts)
	defer bov.Discard()
	blockKey := types.Uint64Digest(h.Number)
	if err := bov.Update(ctx, blockKey, hash); err != nil {
		return nil, err
	}
	bp, err := bov.MerkleProof(ctx, []types.Digest{blockKey})
	if err != nil {
		return nil, err
	}

	blk := &types.Block{Header: h, Signature: sig, Updates: updates, KVProof: kvProof, BlockProof: bp.Program}
	w := &types.BlockWitness{Block: *blk}
	post := b.prev
	post.AccountRoot = h.PostAccountRoot
	post.BlockRoot = bov.Root()
	post.BlockCount = h.Number
	post.TipBlockHash = hash
	post.TipTimestamp = h.Timestamp
	if len(b.pending) > 0 {
		w.RevertedHashes = sortedUnique(b.pending)
		rov := overlay.New(c.reverted, opts)
		defer rov.Discard()
		rp, err := rov.MerkleProof(ctx, w.RevertedHashes)
		if err != nil {
			return nil, err
		}
		w.RevertedProof = rp.Program
		post.RevertedRoot = rov.Root()
	}
	tx, err := NewTransaction(c.cfg.RollupTypeHash, &b.prev, &post, w)
	if err != nil {
		return nil, err
	}

	batch := overlay.NewBatch(c.cs)
	defer batch.Release()
	if _, err := batch.Stage(ctx, c.accounts, b.st.Overlay().Delta()); err != nil {
		return nil, err
	}
	if _, err := batch.Stage(ctx, c.blocks, bov.Delta()); err != nil {
		return nil, err
	}
	jops, err := c.journal.AppendOps(&revert.Entry{
		Number:    h.Number,
		Hash:      hash,
		Timestamp: h.Timestamp,
		PriorRoot: h.PrevAccountRoot,
		PostRoot:  h.PostAccountRoot,
		Writes:    updates,
	})
	if err != nil {
		return nil, err
	}
	batch.Add(jops...)
	mops, err := c.metaOps(&post, nil)
	if err != nil {
		return nil, err
	}
	batch.Add(mops...)
	if err := batch.Write(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.global, c.pending = post, nil
	c.mu.Unlock()
	blocksFinalized.Inc()
	blockUpdates.Observe(float64(len(updates)))
	chainHeight.Set(float64(h.Number))
	klog.V(1).Infof("chain: finalized block %d %v with %d updates, account root %v", h.Number, hash, len(updates), h.PostAccountRoot)
	return &Result{Block: blk, Witness: w, Prev: b.prev, Post: post, Transaction: tx}, nil
}

func sortedUnique(ds []types.Digest) []types.Digest {
	res := append([]types.Digest(nil), ds...)
	sort.Slice(res, func(i, j int) bool { return bytes.Compare(res[i][:], res[j][:]) < 0 })
	out := res[:0]
	for i, d := range res {
		if i == 0 || d != res[i-1] {
			out = append(out, d)
		}
	}
	return out
}
