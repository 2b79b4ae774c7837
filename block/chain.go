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

// Package block produces blocks over the account tree: it runs operations
// in nested overlays, finalizes them into signed blocks with proofs, and
// commits every tree together with the journal in one batch.
package block

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/godwokenrises/godwoken-sub007/crypto"
	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/monitoring"
	"github.com/godwokenrises/godwoken-sub007/overlay"
	"github.com/godwokenrises/godwoken-sub007/revert"
	"github.com/godwokenrises/godwoken-sub007/state"
	"github.com/godwokenrises/godwoken-sub007/storage"
	"github.com/godwokenrises/godwoken-sub007/types"
	"github.com/godwokenrises/godwoken-sub007/util/clock"
	"k8s.io/klog/v2"
)

var (
	globalStateKey     = []byte("global_state")
	pendingRevertedKey = []byte("pending_reverted")
)

var (
	once            sync.Once
	blocksFinalized monitoring.Counter
	blocksReverted  monitoring.Counter
	blocksAborted   monitoring.Counter
	blockUpdates    monitoring.Histogram
	chainHeight     monitoring.Gauge
)

func createMetrics(mf monitoring.MetricFactory) {
	blocksFinalized = mf.NewCounter("blocks_finalized", "Number of blocks finalized and committed")
	blocksReverted = mf.NewCounter("blocks_reverted", "Number of committed blocks reverted")
	blocksAborted = mf.NewCounter("blocks_aborted", "Number of block builds aborted")
	blockUpdates = mf.NewHistogramWithBuckets("block_updates", "Number of leaf updates per finalized block", monitoring.SizeBuckets())
	chainHeight = mf.NewGauge("chain_height", "Number of the tip block")
}

// Config configures a Chain.
type Config struct {
	State state.Config
	// RollupTypeHash identifies the rollup's global state record on the
	// main chain.
	RollupTypeHash types.Digest
	// Signer signs produced blocks.
	Signer *crypto.Signer
	// Clock stamps blocks. Nil means the system clock.
	Clock clock.TimeSource
	// Replayer re-applies kept blocks on revert. Nil replays journaled
	// writes.
	Replayer      revert.Replayer
	MetricFactory monitoring.MetricFactory
}

// Chain is the producer side of the rollup: the account, block and
// reverted-block trees, the journal and the global state, all in one
// column store. At most one block is built at a time.
type Chain struct {
	cs  storage.ColumnStore
	cfg Config

	accounts *overlay.TreeDB
	reverted *overlay.TreeDB
	blocks   *overlay.TreeDB
	journal  *revert.Journal
	reverts  *revert.Manager
	history  *revert.History

	mu       sync.Mutex
	building bool
	global   types.GlobalState
	// pending are reverted block hashes not yet announced by a submission.
	pending []types.Digest
}

// Open opens the chain kept in cs. An empty store holds an empty chain
// whose first block has number 1.
//
// The chain metrics are registered with the MetricFactory of the first
// chain opened in the process; the factories of later chains are ignored.
func Open(ctx context.Context, cs storage.ColumnStore, cfg Config) (*Chain, error) {
	if cfg.Signer == nil {
		return nil, errors.New(errors.InvalidArgument, "no block signer")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System
	}
	once.Do(func() { createMetrics(monitoring.OrInert(cfg.MetricFactory)) })

	opts := cfg.State.TreeOptions()
	c := &Chain{cs: cs, cfg: cfg, journal: revert.NewJournal(cs)}
	var err error
	if c.accounts, err = overlay.OpenTreeDB(ctx, cs, storage.AccountTree, opts, cfg.MetricFactory); err != nil {
		return nil, err
	}
	if c.reverted, err = overlay.OpenTreeDB(ctx, cs, storage.RevertedTree, opts, cfg.MetricFactory); err != nil {
		return nil, err
	}
	if c.blocks, err = overlay.OpenTreeDB(ctx, cs, storage.BlockTree, opts, cfg.MetricFactory); err != nil {
		return nil, err
	}
	c.reverts = revert.NewManager(c.journal, c.accounts, c.reverted, cfg.Replayer, cfg.State)
	c.history = revert.NewHistory(c.journal, c.accounts, cfg.State)

	if b, ok, err := cs.Get(ctx, storage.ColumnMeta, globalStateKey); err != nil {
		return nil, err
	} else if ok {
		g, err := types.DecodeGlobalState(b)
		if err != nil {
			return nil, errors.Wrap(errors.StorageFault, err, "corrupted global state")
		}
		c.global = *g
	}
	if b, ok, err := cs.Get(ctx, storage.ColumnMeta, pendingRevertedKey); err != nil {
		return nil, err
	} else if ok {
		if err := rlp.DecodeBytes(b, &c.pending); err != nil {
			return nil, errors.Wrap(errors.StorageFault, err, "corrupted pending reverted hashes")
		}
	}
	if c.global.AccountRoot != c.accounts.Root() || c.global.BlockRoot != c.blocks.Root() {
		return nil, errors.Errorf(errors.StorageFault, "global state roots %v/%v do not match the stored trees %v/%v",
			c.global.AccountRoot, c.global.BlockRoot, c.accounts.Root(), c.blocks.Root())
	}
	chainHeight.Set(float64(c.global.BlockCount))
	klog.V(1).Infof("chain: opened at block %d, account root %v", c.global.BlockCount, c.global.AccountRoot)
	return c, nil
}

// GlobalState returns the global state after the tip block.
func (c *Chain) GlobalState() types.GlobalState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.global
}

// PendingReverted returns the reverted block hashes the next block will
// announce.
func (c *Chain) PendingReverted() []types.Digest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.Digest(nil), c.pending...)
}

// Accounts returns the committed account tree. Query States are built on
// it with state.New.
func (c *Chain) Accounts() *overlay.TreeDB { return c.accounts }

// Blocks returns the committed block tree.
func (c *Chain) Blocks() *overlay.TreeDB { return c.blocks }

// Reverted returns the committed reverted-block tree.
func (c *Chain) Reverted() *overlay.TreeDB { return c.reverted }

// Journal returns the block journal.
func (c *Chain) Journal() *revert.Journal { return c.journal }

// History returns reads of the account tree as of past blocks.
func (c *Chain) History() *revert.History { return c.history }

// NextBlockContext returns the producer and timestamp of the next block.
func (c *Chain) NextBlockContext() (types.Address, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Signer.Address(), clock.NextTimestamp(c.cfg.Clock, c.global.TipTimestamp)
}

// Begin starts building the next block. It fails if another build is in
// progress.
func (c *Chain) Begin(ctx context.Context) (*Builder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.building {
		return nil, errors.New(errors.FailedPrecondition, "a block is already being built")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.building = true
	b := &Builder{
		c:      c,
		prev:   c.global,
		header: types.Header{
			Number:          c.global.BlockCount + 1,
			ParentHash:      c.global.TipBlockHash,
			Timestamp:       clock.NextTimestamp(c.cfg.Clock, c.global.TipTimestamp),
			Producer:        c.cfg.Signer.Address(),
			PrevAccountRoot: c.global.AccountRoot,
		},
		st:      state.New(c.accounts, c.cfg.State),
		pending: append([]types.Digest(nil), c.pending...),
	}
	klog.V(1).Infof("chain: building block %d at %d", b.header.Number, b.header.Timestamp)
	return b, nil
}

func (c *Chain) endBuild() {
	c.mu.Lock()
	c.building = false
	c.mu.Unlock()
}

// Revert undoes the blocks named by rec. Later blocks are replayed in
// order and renumbered to follow the last surviving block, which gives them
// new hashes.
// The reverted hashes are announced by the next finalized block.
func (c *Chain) Revert(ctx context.Context, rec revert.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.building {
		return errors.New(errors.FailedPrecondition, "cannot revert while a block is being built")
	}
	plan, err := c.reverts.Plan(ctx, rec)
	if err != nil {
		return err
	}
	defer plan.Discard()

	g := c.global
	g.BlockCount = plan.First - 1
	g.TipBlockHash, g.TipTimestamp = types.Zero, 0
	if plan.First > 1 {
		parent, err := c.journal.Get(ctx, plan.First-1)
		if err != nil {
			return err
		}
		g.TipBlockHash, g.TipTimestamp = parent.Hash, parent.Timestamp
	}

	bov := overlay.New(c.blocks, c.cfg.State.TreeOptions())
	defer bov.Discard()
	entries := make([]*revert.Entry, 0, len(plan.Kept))
	for _, k := range plan.Kept {
		h := types.Header{
			Number:          g.BlockCount + 1,
			ParentHash:      g.TipBlockHash,
			Timestamp:       k.Timestamp,
			Producer:        c.cfg.Signer.Address(),
			PrevAccountRoot: k.PriorRoot,
			PostAccountRoot: k.PostRoot,
			UpdatesHash:     types.HashUpdates(k.Writes),
		}
		e := k.Entry
		e.Number, e.Hash = h.Number, h.Hash()
		entries = append(entries, &e)
		g.BlockCount, g.TipBlockHash, g.TipTimestamp = e.Number, e.Hash, e.Timestamp
		klog.V(2).Infof("chain: block %d %v is now block %d %v", k.Original.Number, k.Original.Hash, e.Number, e.Hash)
	}
	for n := plan.First; n <= plan.Tip; n++ {
		v := types.Zero
		if i := n - plan.First; i < uint64(len(entries)) {
			v = entries[i].Hash
		}
		if err := bov.Update(ctx, types.Uint64Digest(n), v); err != nil {
			return err
		}
	}
	g.AccountRoot = plan.AccountRoot()
	g.BlockRoot = bov.Root()

	pending := append([]types.Digest(nil), c.pending...)
	for _, e := range plan.Reverted {
		pending = append(pending, e.Hash)
	}
	for _, k := range plan.Kept {
		pending = append(pending, k.Original.Hash)
	}

	// Kept blocks are sealed again under new hashes, so their old hashes
	// are reverted too.
	for _, k := range plan.Kept {
		if err := plan.MarkReverted(ctx, k.Original.Hash); err != nil {
			return err
		}
	}

	b := overlay.NewBatch(c.cs)
	defer b.Release()
	if err := plan.Stage(ctx, b, c.accounts, c.reverted); err != nil {
		return err
	}
	if _, err := b.Stage(ctx, c.blocks, bov.Delta()); err != nil {
		return err
	}
	for _, e := range entries {
		ops, err := c.journal.AppendOps(e)
		if err != nil {
			return err
		}
		b.Add(ops...)
	}
	ops, err := c.metaOps(&g, pending)
	if err != nil {
		return err
	}
	b.Add(ops...)
	if err := b.Write(ctx); err != nil {
		return err
	}

	c.global, c.pending = g, pending
	blocksReverted.Add(float64(len(plan.Reverted)))
	chainHeight.Set(float64(g.BlockCount))
	klog.Infof("chain: reverted %d blocks from %d, replayed %d, tip is block %d", len(plan.Reverted), plan.First, len(plan.Kept), g.BlockCount)
	return nil
}

// metaOps returns the writes storing g and the pending reverted hashes.
func (c *Chain) metaOps(g *types.GlobalState, pending []types.Digest) ([]storage.Op, error) {
	ops := []storage.Op{storage.Put(storage.ColumnMeta, globalStateKey, g.Encode())}
	if len(pending) == 0 {
		return append(ops, storage.Delete(storage.ColumnMeta, pendingRevertedKey)), nil
	}
	b, err := rlp.EncodeToBytes(pending)
	if err != nil {
		return nil, errors.Wrap(errors.Internal, err, "encode pending reverted hashes")
	}
	return append(ops, storage.Put(storage.ColumnMeta, pendingRevertedKey, b)), nil
}
