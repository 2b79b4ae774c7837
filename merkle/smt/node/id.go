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

// Package node identifies the nodes of a 256-level sparse Merkle tree.
package node

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/godwokenrises/godwoken-sub007/types"
)

// MaxDepth is the depth of the leaves. The root has depth 0.
const MaxDepth = 256

// ID identifies a node of the tree. It is a bit string that counts the node
// down from the tree root, i.e. 0 and 1 bits represent going to the left or
// right child correspondingly. Bits are taken from the path most significant
// bit first, starting at byte 0.
//
// ID is immutable, comparable, and can be used as a Golang map key. Bits of
// the path beyond the depth are always unset, so there is only one encoding
// of every ID.
type ID struct {
	path  types.Digest
	depth uint16 // Invariant: depth <= MaxDepth.
}

// NewID returns the ID of the node at the given depth on the path to key.
// Panics if depth exceeds MaxDepth.
func NewID(key types.Digest, depth uint) ID {
	if depth > MaxDepth {
		panic(fmt.Sprintf("NewID: depth %d > %d", depth, MaxDepth))
	}
	return ID{path: mask(key, depth), depth: uint16(depth)}
}

// LeafID returns the ID of the leaf holding key.
func LeafID(key types.Digest) ID {
	return ID{path: key, depth: MaxDepth}
}

// BitLen returns the depth of the node.
func (n ID) BitLen() uint { return uint(n.depth) }

// Path returns the node's path, with the bits below the node unset.
func (n ID) Path() types.Digest { return n.path }

// Bit returns bit i of the path. It is the direction taken from the node at
// depth i towards this one.
func (n ID) Bit(i uint) uint {
	return Bit(n.path, i)
}

// Prefix returns the ancestor of the node at the given depth.
func (n ID) Prefix(bits uint) ID {
	if bits > n.BitLen() {
		panic(fmt.Sprintf("Prefix: bits %d > %d", bits, n.BitLen()))
	}
	return ID{path: mask(n.path, bits), depth: uint16(bits)}
}

// Sibling returns the ID of the node's sibling, i.e. the ID of the parent
// node's other child. If the node is the root then the returned ID is the
// same.
func (n ID) Sibling() ID {
	if n.depth == 0 {
		return n
	}
	i := uint(n.depth) - 1
	n.path[i/8] ^= 1 << (7 - i%8)
	return n
}

// IsLeftChild reports whether the node is the left child of its parent.
func (n ID) IsLeftChild() bool {
	return n.depth > 0 && n.Bit(uint(n.depth)-1) == 0
}

// String returns a human-readable bit string.
func (n ID) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i := uint(0); i < n.BitLen(); i++ {
		if i > 0 && i%8 == 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('0' + byte(n.Bit(i)))
	}
	b.WriteByte(']')
	return b.String()
}

// Compare compares the horizontal position of two IDs at the same depth.
// Returns -1 if a is to the left of b, 1 if it is to the right, and 0 if
// they are the same. The result is undefined for IDs at different depths.
func Compare(a, b ID) int {
	return bytes.Compare(a.path[:], b.path[:])
}

// Bit returns bit i of key, most significant bit of byte 0 first.
func Bit(key types.Digest, i uint) uint {
	return uint(key[i/8]>>(7-i%8)) & 1
}

// CommonPrefixLen returns the number of leading bits a and b share.
func CommonPrefixLen(a, b types.Digest) uint {
	for i := 0; i < types.DigestSize; i++ {
		if x := a[i] ^ b[i]; x != 0 {
			n := uint(i) * 8
			for x&0x80 == 0 {
				x <<= 1
				n++
			}
			return n
		}
	}
	return MaxDepth
}

// mask returns key with all the bits from position bits onwards unset.
func mask(key types.Digest, bits uint) types.Digest {
	full, tail := bits/8, bits%8
	if full >= types.DigestSize {
		return key
	}
	key[full] &= ^byte(0xff >> tail)
	for i := full + 1; i < types.DigestSize; i++ {
		key[i] = 0
	}
	return key
}
