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

package smt

import (
	"context"
	"math/rand"
	"testing"

	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/merkle"
	"github.com/godwokenrises/godwoken-sub007/merkle/hashers"
	"github.com/godwokenrises/godwoken-sub007/merkle/testonly"
	"github.com/godwokenrises/godwoken-sub007/types"
)

func TestMerkleProof(t *testing.T) {
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(10))
	leaves := testonly.RandomLeaves(rnd, 100)
	absent := testonly.RandomDigest(rnd)

	for _, tc := range []struct {
		desc string
		keys []types.Digest
	}{
		{desc: "single", keys: []types.Digest{leaves[0].Key}},
		{desc: "absent", keys: []types.Digest{absent}},
		{desc: "several", keys: []types.Digest{leaves[7].Key, leaves[3].Key, leaves[99].Key}},
		{desc: "mixed", keys: []types.Digest{absent, leaves[42].Key}},
		{desc: "duplicates", keys: []types.Digest{leaves[5].Key, leaves[5].Key}},
		{desc: "adjacent", keys: []types.Digest{testonly.Key(0x00), testonly.Key(0x00, 0x01)}},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			tree := newTree(1)
			if err := tree.UpdateAll(ctx, leaves); err != nil {
				t.Fatalf("UpdateAll: %v", err)
			}
			proof, err := tree.MerkleProof(ctx, tc.keys)
			if err != nil {
				t.Fatalf("MerkleProof: %v", err)
			}
			if err := merkle.VerifyProof(hashers.Default, proof.Program, proof.Leaves, tree.Root()); err != nil {
				t.Fatalf("VerifyProof(old values): %v", err)
			}

			// The same program proves the values written next.
			updated := make([]types.Leaf, len(proof.Leaves))
			for i, l := range proof.Leaves {
				updated[i] = types.Leaf{Key: l.Key, Value: testonly.RandomDigest(rnd)}
			}
			updated[0].Value = types.Zero
			if err := tree.UpdateAll(ctx, updated); err != nil {
				t.Fatalf("UpdateAll(updated): %v", err)
			}
			if err := merkle.VerifyProof(hashers.Default, proof.Program, updated, tree.Root()); err != nil {
				t.Errorf("VerifyProof(new values): %v", err)
			}
		})
	}
}

func TestMerkleProofEmptyTree(t *testing.T) {
	ctx := context.Background()
	tree := newTree(1)
	proof, err := tree.MerkleProof(ctx, []types.Digest{testonly.Key(1)})
	if err != nil {
		t.Fatalf("MerkleProof: %v", err)
	}
	want := []byte{merkle.OpPush, merkle.OpZeros, 255, merkle.OpZeros, 1}
	if string(proof.Program) != string(want) {
		t.Errorf("Program = %x, want %x", proof.Program, want)
	}
	if _, err := tree.MerkleProof(ctx, nil); !errors.Is(err, errors.InvalidArgument) {
		t.Errorf("MerkleProof(nil) = %v, want InvalidArgument", err)
	}
}

// siblingOffsets returns the offsets of the sibling digests in a program.
func siblingOffsets(t *testing.T, program []byte) []int {
	t.Helper()
	var res []int
	for pc := 0; pc < len(program); {
		switch program[pc] {
		case merkle.OpSibling:
			res = append(res, pc+1)
			pc += 1 + types.DigestSize
		case merkle.OpZeros:
			pc += 2
		default:
			pc++
		}
	}
	return res
}

func TestMerkleProofTamperedSibling(t *testing.T) {
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(11))
	leaves := testonly.RandomLeaves(rnd, 64)
	tree := newTree(1)
	if err := tree.UpdateAll(ctx, leaves); err != nil {
		t.Fatalf("UpdateAll: %v", err)
	}
	proof, err := tree.MerkleProof(ctx, []types.Digest{leaves[1].Key, leaves[2].Key})
	if err != nil {
		t.Fatalf("MerkleProof: %v", err)
	}
	offsets := siblingOffsets(t, proof.Program)
	if len(offsets) == 0 {
		t.Fatal("proof has no siblings")
	}
	for _, off := range offsets {
		for i := 0; i < types.DigestSize; i++ {
			program := append([]byte{}, proof.Program...)
			program[off+i] ^= 0x01
			err := merkle.VerifyProof(hashers.Default, program, proof.Leaves, tree.Root())
			if !errors.Is(err, errors.StateMismatch) {
				t.Fatalf("byte %d of sibling at %d flipped: got %v, want StateMismatch", i, off, err)
			}
		}
	}
}

func TestInclusionProof(t *testing.T) {
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(12))
	leaves := testonly.RandomLeaves(rnd, 30)
	tree := newTree(2)
	if err := tree.UpdateAll(ctx, leaves); err != nil {
		t.Fatalf("UpdateAll: %v", err)
	}
	for _, tc := range []struct {
		desc  string
		key   types.Digest
		value types.Digest
	}{
		{desc: "present", key: leaves[4].Key, value: leaves[4].Value},
		{desc: "absent", key: testonly.RandomDigest(rnd), value: types.Zero},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			proof, err := tree.InclusionProof(ctx, tc.key)
			if err != nil {
				t.Fatalf("InclusionProof: %v", err)
			}
			if err := merkle.VerifyInclusion(hashers.Default, tc.key, tc.value, tree.Root(), proof); err != nil {
				t.Errorf("VerifyInclusion: %v", err)
			}
			wrong := tc.value
			wrong[31] ^= 1
			if err := merkle.VerifyInclusion(hashers.Default, tc.key, wrong, tree.Root(), proof); !errors.Is(err, errors.StateMismatch) {
				t.Errorf("VerifyInclusion(wrong value) = %v, want StateMismatch", err)
			}
			if err := merkle.VerifyInclusion(hashers.Default, tc.key, tc.value, tree.Root(), proof[1:]); !errors.Is(err, errors.StructuralProof) {
				t.Errorf("VerifyInclusion(short proof) = %v, want StructuralProof", err)
			}
		})
	}
}
