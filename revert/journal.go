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

// Package revert keeps the per-block journal of state writes and uses it to
// roll the account tree back across block boundaries.
package revert

import (
	"context"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/storage"
	"github.com/godwokenrises/godwoken-sub007/types"
)

var journalTipKey = []byte("journal_tip")

// Entry is the journal record of one block: the account tree writes it
// made, in order, with their pre-images.
type Entry struct {
	Number    uint64
	Hash      types.Digest
	Timestamp uint64
	PriorRoot types.Digest
	PostRoot  types.Digest
	Writes    []types.LeafUpdate
}

// Journal stores Entries in the block journal column, keyed by block number.
type Journal struct {
	cs storage.ColumnStore
}

// NewJournal returns a Journal over cs.
func NewJournal(cs storage.ColumnStore) *Journal {
	return &Journal{cs: cs}
}

func entryKey(number uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], number)
	return k[:]
}

// Get returns the entry of block number.
func (j *Journal) Get(ctx context.Context, number uint64) (*Entry, error) {
	b, ok, err := j.cs.Get(ctx, storage.ColumnBlockJournal, entryKey(number))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Errorf(errors.NotFound, "no journal entry for block %d", number)
	}
	var e Entry
	if err := rlp.DecodeBytes(b, &e); err != nil {
		return nil, errors.Wrap(errors.StorageFault, err, "corrupted journal entry")
	}
	return &e, nil
}

// Tip returns the number of the last journaled block, or false if the
// journal is empty.
func (j *Journal) Tip(ctx context.Context) (uint64, bool, error) {
	b, ok, err := j.cs.Get(ctx, storage.ColumnMeta, journalTipKey)
	if err != nil || !ok {
		return 0, false, err
	}
	if len(b) != 8 {
		return 0, false, errors.Errorf(errors.StorageFault, "corrupted journal tip of %d bytes", len(b))
	}
	return binary.BigEndian.Uint64(b), true, nil
}

// AppendOps returns the writes storing e and making it the tip.
func (j *Journal) AppendOps(e *Entry) ([]storage.Op, error) {
	b, err := rlp.EncodeToBytes(e)
	if err != nil {
		return nil, errors.Wrap(errors.Internal, err, "encode journal entry")
	}
	return []storage.Op{
		storage.Put(storage.ColumnBlockJournal, entryKey(e.Number), b),
		storage.Put(storage.ColumnMeta, journalTipKey, entryKey(e.Number)),
	}, nil
}

// TruncateOps returns the writes removing the entries after number, which
// becomes the tip. A zero number empties the journal.
func (j *Journal) TruncateOps(number, tip uint64) []storage.Op {
	ops := make([]storage.Op, 0, tip-number+1)
	for n := number + 1; n <= tip; n++ {
		ops = append(ops, storage.Delete(storage.ColumnBlockJournal, entryKey(n)))
	}
	if number == 0 {
		return append(ops, storage.Delete(storage.ColumnMeta, journalTipKey))
	}
	return append(ops, storage.Put(storage.ColumnMeta, journalTipKey, entryKey(number)))
}

// Append stores e on its own.
func (j *Journal) Append(ctx context.Context, e *Entry) error {
	ops, err := j.AppendOps(e)
	if err != nil {
		return err
	}
	return j.cs.BatchWrite(ctx, ops)
}

// SnapshotBefore returns the account root immediately before block number
// was applied.
func (j *Journal) SnapshotBefore(ctx context.Context, number uint64) (types.Digest, error) {
	e, err := j.Get(ctx, number)
	if err != nil {
		return types.Zero, err
	}
	return e.PriorRoot, nil
}
