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

package merkle

import (
	"bytes"

	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/merkle/hashers"
	"github.com/godwokenrises/godwoken-sub007/merkle/smt/node"
	"github.com/godwokenrises/godwoken-sub007/types"
)

// Opcodes of a compiled multi-key proof.
//
// The program runs over a stack of subtree hashes. Every stack entry is the
// hash of a node on the path of one of the proven keys.
const (
	// OpPush pushes the hash of the next leaf.
	OpPush byte = 0x4C
	// OpSibling is followed by a 32-byte digest. It replaces the top entry
	// with its parent, using the digest as the other child.
	OpSibling byte = 0x50
	// OpZeros is followed by a count byte n. It climbs the top entry n
	// levels over empty siblings. A count of zero means 256.
	OpZeros byte = 0x4F
	// OpMerge replaces the two top entries, which must be siblings with the
	// left one below, with their parent.
	OpMerge byte = 0x48
)

// MaxStackSize bounds the interpreter stack. Entries on the stack have
// strictly decreasing depth from bottom to top in any well formed program,
// so a tree of depth 256 never needs more.
const MaxStackSize = node.MaxDepth + 1

type stackEntry struct {
	key   types.Digest
	depth uint
	hash  types.Digest
}

// CalculateRoot runs a compiled proof over the given leaves and returns the
// root it implies. Leaves must be sorted by key without duplicates, and every
// leaf must be consumed by the program. Any malformed input returns an error
// with the StructuralProof code.
//
// The number of steps taken is bounded by the length of the program.
func CalculateRoot(h hashers.MapHasher, program []byte, leaves []types.Leaf) (types.Digest, error) {
	if len(leaves) == 0 {
		return types.Zero, errors.New(errors.StructuralProof, "proof covers no leaves")
	}
	for i := 1; i < len(leaves); i++ {
		if bytes.Compare(leaves[i-1].Key[:], leaves[i].Key[:]) >= 0 {
			return types.Zero, errors.Errorf(errors.StructuralProof, "leaf #%d: keys not strictly ascending", i)
		}
	}

	var stack [MaxStackSize]stackEntry
	top, next := 0, 0
	for pc := 0; pc < len(program); {
		op := program[pc]
		pc++
		switch op {
		case OpPush:
			if next >= len(leaves) {
				return types.Zero, errors.Errorf(errors.StructuralProof, "pc %d: no leaf left to push", pc-1)
			}
			if top == MaxStackSize {
				return types.Zero, errors.Errorf(errors.StructuralProof, "pc %d: stack overflow", pc-1)
			}
			l := leaves[next]
			next++
			stack[top] = stackEntry{key: l.Key, depth: node.MaxDepth, hash: h.HashLeaf(l.Key, l.Value)}
			top++

		case OpSibling:
			if top == 0 {
				return types.Zero, errors.Errorf(errors.StructuralProof, "pc %d: empty stack", pc-1)
			}
			if pc+types.DigestSize > len(program) {
				return types.Zero, errors.Errorf(errors.StructuralProof, "pc %d: truncated sibling", pc-1)
			}
			var sib types.Digest
			copy(sib[:], program[pc:pc+types.DigestSize])
			pc += types.DigestSize
			if err := climb(h, &stack[top-1], sib); err != nil {
				return types.Zero, errors.Errorf(errors.StructuralProof, "pc %d: %v", pc-1-types.DigestSize, err)
			}

		case OpZeros:
			if top == 0 {
				return types.Zero, errors.Errorf(errors.StructuralProof, "pc %d: empty stack", pc-1)
			}
			if pc >= len(program) {
				return types.Zero, errors.Errorf(errors.StructuralProof, "pc %d: truncated count", pc-1)
			}
			n := uint(program[pc])
			pc++
			if n == 0 {
				n = node.MaxDepth
			}
			e := &stack[top-1]
			if n > e.depth {
				return types.Zero, errors.Errorf(errors.StructuralProof, "pc %d: climbing %d levels from depth %d", pc-2, n, e.depth)
			}
			for ; n > 0; n-- {
				if err := climb(h, e, types.Zero); err != nil {
					return types.Zero, errors.Errorf(errors.StructuralProof, "pc %d: %v", pc-2, err)
				}
			}

		case OpMerge:
			if top < 2 {
				return types.Zero, errors.Errorf(errors.StructuralProof, "pc %d: merge needs two entries, have %d", pc-1, top)
			}
			a, b := &stack[top-2], &stack[top-1]
			if a.depth != b.depth || a.depth == 0 {
				return types.Zero, errors.Errorf(errors.StructuralProof, "pc %d: merging depths %d and %d", pc-1, a.depth, b.depth)
			}
			d := a.depth - 1
			if node.CommonPrefixLen(a.key, b.key) != d || node.Bit(a.key, d) != 0 {
				return types.Zero, errors.Errorf(errors.StructuralProof, "pc %d: entries are not siblings", pc-1)
			}
			a.hash = h.HashChildren(a.hash, b.hash)
			a.depth = d
			top--

		default:
			return types.Zero, errors.Errorf(errors.StructuralProof, "pc %d: unknown opcode 0x%02x", pc-1, op)
		}
	}

	if next != len(leaves) {
		return types.Zero, errors.Errorf(errors.StructuralProof, "%d of %d leaves unused", len(leaves)-next, len(leaves))
	}
	if top != 1 || stack[0].depth != 0 {
		return types.Zero, errors.Errorf(errors.StructuralProof, "program ends with %d entries", top)
	}
	return stack[0].hash, nil
}

// climb replaces e with its parent, given the hash of its sibling.
func climb(h hashers.MapHasher, e *stackEntry, sib types.Digest) error {
	if e.depth == 0 {
		return errors.New(errors.StructuralProof, "climbing above the root")
	}
	e.depth--
	if node.Bit(e.key, e.depth) == 0 {
		e.hash = h.HashChildren(e.hash, sib)
	} else {
		e.hash = h.HashChildren(sib, e.hash)
	}
	return nil
}

// VerifyProof checks that the compiled proof over leaves yields root.
// Returns a StateMismatch error if the proof is well formed but computes a
// different root.
func VerifyProof(h hashers.MapHasher, program []byte, leaves []types.Leaf, root types.Digest) error {
	got, err := CalculateRoot(h, program, leaves)
	if err != nil {
		return err
	}
	if got != root {
		return errors.Errorf(errors.StateMismatch, "calculated root %v, want %v", got, root)
	}
	return nil
}
