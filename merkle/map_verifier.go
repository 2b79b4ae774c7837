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
	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/merkle/hashers"
	"github.com/godwokenrises/godwoken-sub007/merkle/smt/node"
	"github.com/godwokenrises/godwoken-sub007/types"
)

// CalculateInclusionRoot returns the root implied by a single-key inclusion
// proof. The proof lists the 256 siblings on the key's path ordered from the
// leaf to the root, where a zero digest stands for an empty subtree.
//
// The value may be zero, in which case the proof shows non-inclusion.
func CalculateInclusionRoot(h hashers.MapHasher, key, value types.Digest, proof []types.Digest) (types.Digest, error) {
	if got, want := len(proof), node.MaxDepth; got != want {
		return types.Zero, errors.Errorf(errors.StructuralProof, "invalid proof length %d, expected %d", got, want)
	}
	runningHash := h.HashLeaf(key, value)
	for i, sib := range proof {
		// The sibling at proof[i] is the other child of the node at depth
		// 255-i.
		bit := node.Bit(key, uint(node.MaxDepth-1-i))
		if bit == 0 {
			runningHash = h.HashChildren(runningHash, sib)
		} else {
			runningHash = h.HashChildren(sib, runningHash)
		}
	}
	return runningHash, nil
}

// VerifyInclusion verifies that value is stored at key in the tree with the
// given root.
//
// Returns nil on a successful verification, and an error otherwise.
func VerifyInclusion(h hashers.MapHasher, key, value, expectedRoot types.Digest, proof []types.Digest) error {
	got, err := CalculateInclusionRoot(h, key, value, proof)
	if err != nil {
		return err
	}
	if got != expectedRoot {
		return errors.Errorf(errors.StateMismatch, "invalid proof; calculated root %v but expected %v", got, expectedRoot)
	}
	return nil
}
