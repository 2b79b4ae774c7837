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

package types

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// AddressSize is the length of a producer address in bytes.
const AddressSize = 20

// Address identifies a block producer. It is derived from the producer's
// secp256k1 public key.
type Address [AddressSize]byte

func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// RevertedMarker is the value registered in the reverted block tree for the
// hash of every reverted block.
var RevertedMarker = Digest{1}

// Header is the part of a block covered by the producer's signature.
type Header struct {
	Number          uint64
	ParentHash      Digest
	Timestamp       uint64
	Producer        Address
	PrevAccountRoot Digest
	PostAccountRoot Digest
	// UpdatesHash commits to the ordered leaf update list.
	UpdatesHash Digest
}

// Hash returns the block hash: the digest of the header's RLP encoding.
func (h *Header) Hash() Digest {
	b, err := rlp.EncodeToBytes(h)
	if err != nil {
		// Header contains only fixed size fields.
		panic(fmt.Sprintf("rlp.EncodeToBytes(header): %v", err))
	}
	return Sum(b)
}

// HashUpdates returns the digest committing to an ordered update list.
func HashUpdates(updates []LeafUpdate) Digest {
	b, err := rlp.EncodeToBytes(updates)
	if err != nil {
		panic(fmt.Sprintf("rlp.EncodeToBytes(updates): %v", err))
	}
	return Sum(b)
}

// Block is a finalized block as emitted by the producer.
type Block struct {
	Header    Header
	Signature []byte
	// Updates lists every key written by the block, sorted by key.
	Updates []LeafUpdate
	// KVProof is a compiled multi-key proof for Updates' keys.
	KVProof []byte
	// BlockProof is a compiled proof for the block's key in the block tree.
	BlockProof []byte
}

// Hash returns the block's hash.
func (b *Block) Hash() Digest { return b.Header.Hash() }

// GlobalState is the rollup state carried on the main chain in a record
// owned by the rollup.
type GlobalState struct {
	AccountRoot  Digest
	BlockRoot    Digest
	BlockCount   uint64
	TipBlockHash Digest
	TipTimestamp uint64
	RevertedRoot Digest
}

// Encode returns the RLP encoding of s.
func (s *GlobalState) Encode() []byte {
	b, err := rlp.EncodeToBytes(s)
	if err != nil {
		panic(fmt.Sprintf("rlp.EncodeToBytes(global state): %v", err))
	}
	return b
}

// DecodeGlobalState parses an encoded GlobalState.
func DecodeGlobalState(b []byte) (*GlobalState, error) {
	var s GlobalState
	if err := rlp.DecodeBytes(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Record is a main chain record referenced by a transaction. TypeHash
// identifies the script which owns it.
type Record struct {
	TypeHash Digest
	Data     []byte
}

// BlockWitness is the auxiliary data of a block submission.
type BlockWitness struct {
	Block Block
	// RevertedHashes lists blocks which were reverted since the previous
	// submission. RevertedProof proves them against the reverted block tree.
	RevertedHashes []Digest
	RevertedProof  []byte
}

// Transaction is the main chain transaction submitting a block.
type Transaction struct {
	Inputs  []Record
	Outputs []Record
	// Witness is the RLP encoding of a BlockWitness.
	Witness []byte
}

// EncodeWitness returns the RLP encoding of w.
func EncodeWitness(w *BlockWitness) ([]byte, error) {
	return rlp.EncodeToBytes(w)
}

// DecodeWitness parses an encoded BlockWitness.
func DecodeWitness(b []byte) (*BlockWitness, error) {
	var w BlockWitness
	if err := rlp.DecodeBytes(b, &w); err != nil {
		return nil, err
	}
	return &w, nil
}
