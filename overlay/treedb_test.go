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

package overlay

import (
	"context"
	"math/rand"
	"testing"

	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/merkle/testonly"
	"github.com/godwokenrises/godwoken-sub007/monitoring"
	"github.com/godwokenrises/godwoken-sub007/storage"
	"github.com/godwokenrises/godwoken-sub007/storage/memory"
	"github.com/godwokenrises/godwoken-sub007/types"
)

func TestReopenTreeDB(t *testing.T) {
	ctx := context.Background()
	db, cs := newBase(ctx, t, testonly.RandomLeaves(rand.New(rand.NewSource(10)), 10))
	again, err := OpenTreeDB(ctx, cs, storage.AccountTree, opts, nil)
	if err != nil {
		t.Fatalf("OpenTreeDB: %v", err)
	}
	if got, want := again.Root(), db.Root(); got != want {
		t.Errorf("reopened root %v, want %v", got, want)
	}
	other, err := OpenTreeDB(ctx, cs, storage.BlockTree, opts, nil)
	if err != nil {
		t.Fatalf("OpenTreeDB: %v", err)
	}
	if !other.Root().IsZero() {
		t.Errorf("block tree root %v, want zero", other.Root())
	}
}

func TestBatchCommitsTreesTogether(t *testing.T) {
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(11))
	cs := memory.NewColumnStore()
	accounts, err := OpenTreeDB(ctx, cs, storage.AccountTree, opts, nil)
	if err != nil {
		t.Fatalf("OpenTreeDB: %v", err)
	}
	blocks, err := OpenTreeDB(ctx, cs, storage.BlockTree, opts, nil)
	if err != nil {
		t.Fatalf("OpenTreeDB: %v", err)
	}
	a, b := New(accounts, opts), New(blocks, opts)
	if err := a.UpdateAll(ctx, testonly.RandomLeaves(rnd, 5)); err != nil {
		t.Fatalf("UpdateAll: %v", err)
	}
	if err := b.Update(ctx, types.Uint64Digest(1), testonly.RandomDigest(rnd)); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// A failed write leaves both trees where they were.
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	batch := NewBatch(cs)
	for _, s := range []struct {
		db *TreeDB
		ov *Overlay
	}{{accounts, a}, {blocks, b}} {
		if _, err := batch.Stage(ctx, s.db, s.ov.Delta()); err != nil {
			t.Fatalf("Stage: %v", err)
		}
	}
	if err := batch.Write(cancelled); err == nil {
		t.Fatal("Write with cancelled context succeeded")
	}
	if !accounts.Root().IsZero() || !blocks.Root().IsZero() {
		t.Fatalf("roots moved after failed batch: %v, %v", accounts.Root(), blocks.Root())
	}
	if n := cs.Len(storage.ColumnMeta); n != 0 {
		t.Fatalf("meta column has %d keys after failed batch", n)
	}

	batch = NewBatch(cs)
	defer batch.Release()
	ra, err := batch.Stage(ctx, accounts, a.Delta())
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	rb, err := batch.Stage(ctx, blocks, b.Delta())
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	batch.Add(storage.Put(storage.ColumnMeta, []byte("tip"), []byte{1}))
	if err := batch.Write(ctx); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if ra != a.Root() || accounts.Root() != ra {
		t.Errorf("account root %v, staged %v, overlay %v", accounts.Root(), ra, a.Root())
	}
	if rb != b.Root() || blocks.Root() != rb {
		t.Errorf("block root %v, staged %v, overlay %v", blocks.Root(), rb, b.Root())
	}
	if err := batch.Write(ctx); errors.CodeOf(err) != errors.FailedPrecondition {
		t.Errorf("second Write: %v, want FailedPrecondition", err)
	}
}

func TestBatchRejectsMisuse(t *testing.T) {
	ctx := context.Background()
	db, _ := newBase(ctx, t, nil)
	batch := NewBatch(memory.NewColumnStore())
	defer batch.Release()
	if _, err := batch.Stage(ctx, db, New(db, opts).Delta()); errors.CodeOf(err) != errors.InvalidArgument {
		t.Errorf("Stage with foreign store: %v, want InvalidArgument", err)
	}
}

// countingFactory counts the metrics created through it.
type countingFactory struct {
	monitoring.InertMetricFactory
	created int
}

func (f *countingFactory) NewCounter(name, help string, labelNames ...string) monitoring.Counter {
	f.created++
	return f.InertMetricFactory.NewCounter(name, help, labelNames...)
}

func (f *countingFactory) NewHistogramWithBuckets(name, help string, buckets []float64, labelNames ...string) monitoring.Histogram {
	f.created++
	return f.InertMetricFactory.NewHistogramWithBuckets(name, help, buckets, labelNames...)
}

func TestLaterMetricFactoriesAreIgnored(t *testing.T) {
	ctx := context.Background()
	cs := memory.NewColumnStore()
	if _, err := OpenTreeDB(ctx, cs, storage.AccountTree, opts, nil); err != nil {
		t.Fatalf("OpenTreeDB: %v", err)
	}
	f := &countingFactory{}
	if _, err := OpenTreeDB(ctx, cs, storage.BlockTree, opts, f); err != nil {
		t.Fatalf("OpenTreeDB: %v", err)
	}
	if f.created != 0 {
		t.Errorf("second factory created %d metrics, want 0", f.created)
	}
}
