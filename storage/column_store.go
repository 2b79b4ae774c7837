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

// Package storage defines the byte oriented column store the state layer
// persists into, and maps sparse Merkle tree nodes onto it.
package storage

import (
	"context"
	"fmt"
)

// Column is a storage namespace. Keys in different columns never collide.
type Column byte

// Columns used by the state layer.
const (
	ColumnMeta Column = iota
	ColumnAccountBranch
	ColumnAccountLeaf
	ColumnBlockJournal
	ColumnRevertedBranch
	ColumnRevertedLeaf
	ColumnBlockBranch
	ColumnBlockLeaf

	// NumColumns is the number of columns above.
	NumColumns int = iota
)

var columnNames = [...]string{
	"meta",
	"account_branch",
	"account_leaf",
	"block_journal",
	"reverted_branch",
	"reverted_leaf",
	"block_branch",
	"block_leaf",
}

func (c Column) String() string {
	if int(c) < len(columnNames) {
		return columnNames[c]
	}
	return fmt.Sprintf("column(%d)", byte(c))
}

// Op is a single write in a batch. A nil Value with Delete set removes the
// key.
type Op struct {
	Column Column
	Key    []byte
	Value  []byte
	Delete bool
}

// Put returns an Op storing value at key.
func Put(col Column, key, value []byte) Op {
	return Op{Column: col, Key: key, Value: value}
}

// Delete returns an Op removing key.
func Delete(col Column, key []byte) Op {
	return Op{Column: col, Key: key, Delete: true}
}

// ColumnStore is a byte oriented key/value store partitioned into columns.
// It knows nothing about trees.
//
// Implementations must be safe for concurrent use, and wrap their failures
// in errors with the StorageFault code.
type ColumnStore interface {
	// Get returns the value at key, or false if there is none.
	Get(ctx context.Context, col Column, key []byte) ([]byte, bool, error)
	// BatchWrite applies ops atomically: either all of them land or none
	// does. Later ops on the same key win.
	BatchWrite(ctx context.Context, ops []Op) error
	// Close releases the store's resources.
	Close() error
}
