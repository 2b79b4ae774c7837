// Copyright 2016 Google Inc. All Rights Reserved.
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
	"math/rand"
	"testing"

	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/merkle/hashers"
	"github.com/godwokenrises/godwoken-sub007/merkle/testonly"
	"github.com/godwokenrises/godwoken-sub007/types"
)

func TestVerifyInclusion(t *testing.T) {
	h := hashers.Default
	leaves := testonly.RandomLeaves(rand.New(rand.NewSource(42)), 50)
	root := testonly.Root(h, leaves)
	key, value := leaves[7].Key, leaves[7].Value
	proof := testonly.InclusionProof(h, leaves, key)
	absent := testonly.Key(0xde, 0xad)
	absentProof := testonly.InclusionProof(h, leaves, absent)

	// Copy the bad proof so we don't mess up the good proof.
	badProof := append([]types.Digest(nil), proof...)
	for i := range badProof {
		if !badProof[i].IsZero() {
			badProof[i][15] ^= 0x10
			break
		}
	}

	for _, test := range []struct {
		desc  string
		key   types.Digest
		value types.Digest
		root  types.Digest
		proof []types.Digest
		want  errors.Code
	}{
		{"correct", key, value, root, proof, errors.OK},
		{"absent key", absent, types.Zero, root, absentProof, errors.OK},
		{"absent key with a value", absent, value, root, absentProof, errors.StateMismatch},
		{"present key as absent", key, types.Zero, root, proof, errors.StateMismatch},
		{"incorrect key", leaves[8].Key, value, root, proof, errors.StateMismatch},
		{"incorrect value", key, leaves[8].Value, root, proof, errors.StateMismatch},
		{"incorrect root", key, value, types.Sum([]byte("w")), proof, errors.StateMismatch},
		{"incorrect proof", key, value, root, badProof, errors.StateMismatch},
		{"short proof", key, value, root, proof[1:], errors.StructuralProof},
		{"excess proof", key, value, root, append(append([]types.Digest(nil), proof...), types.Zero), errors.StructuralProof},
	} {
		err := VerifyInclusion(h, test.key, test.value, test.root, test.proof)
		if got := errors.CodeOf(err); got != test.want {
			t.Errorf("%v: VerifyInclusion(): %v, want code %v", test.desc, err, test.want)
		}
	}
}

func TestEmptyTreeInclusion(t *testing.T) {
	proof := make([]types.Digest, 256)
	got, err := CalculateInclusionRoot(hashers.Default, testonly.Key(1), types.Zero, proof)
	if err != nil {
		t.Fatalf("CalculateInclusionRoot: %v", err)
	}
	if got != types.Zero {
		t.Errorf("empty tree root = %v, want zero", got)
	}
}
