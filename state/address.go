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

// Package state is the typed key/value façade over an overlay of the
// account tree.
package state

import (
	"encoding/binary"

	"github.com/godwokenrises/godwoken-sub007/merkle/smt"
	"github.com/godwokenrises/godwoken-sub007/types"
)

// Field selects what an Address refers to.
type Field byte

// Fields of the account tree.
const (
	FieldKV Field = iota
	FieldNonce
	FieldScriptHash
	// FieldScriptHashToID and FieldDataHash are not account fields. Their
	// addresses use account 0.
	FieldScriptHashToID
	FieldDataHash
)

// Address is a semantic location in the account tree.
type Address struct {
	Account uint32
	Field   Field
	Sub     []byte
}

// Key returns the tree key of a: H(account_le32 || field || key).
func (a Address) Key() types.Digest {
	var id [4]byte
	binary.LittleEndian.PutUint32(id[:], a.Account)
	return types.Sum(id[:], []byte{byte(a.Field)}, a.Sub)
}

// AccountKV returns the address of key in the storage of account id.
func AccountKV(id uint32, key []byte) Address {
	return Address{Account: id, Field: FieldKV, Sub: key}
}

// Config configures a State.
type Config struct {
	// Parallelism is the number of subtrees updated concurrently. Zero
	// means runtime.NumCPU().
	Parallelism int
}

// TreeOptions returns the tree options implied by c.
func (c Config) TreeOptions() smt.Options {
	return smt.Options{Parallelism: c.Parallelism}
}

// Uint32Value returns n as a tree value, little-endian in the low bytes.
func Uint32Value(n uint32) types.Digest {
	var d types.Digest
	binary.LittleEndian.PutUint32(d[:4], n)
	return d
}

// ValueUint32 is the inverse of Uint32Value.
func ValueUint32(d types.Digest) uint32 {
	return binary.LittleEndian.Uint32(d[:4])
}
