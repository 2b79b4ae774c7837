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

package block

import (
	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/types"
)

// NewTransaction returns the main chain transaction submitting w: it
// consumes the rollup's record holding prev and creates one holding post.
func NewTransaction(rollupTypeHash types.Digest, prev, post *types.GlobalState, w *types.BlockWitness) (*types.Transaction, error) {
	wb, err := types.EncodeWitness(w)
	if err != nil {
		return nil, errors.Wrap(errors.Internal, err, "encode block witness")
	}
	return &types.Transaction{
		Inputs:  []types.Record{{TypeHash: rollupTypeHash, Data: prev.Encode()}},
		Outputs: []types.Record{{TypeHash: rollupTypeHash, Data: post.Encode()}},
		Witness: wb,
	}, nil
}
