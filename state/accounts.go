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

package state

import (
	"context"

	"github.com/godwokenrises/godwoken-sub007/types"
)

// The accessors below give names to the non-KV fields.

// GetNonce returns the nonce of account id.
func (s *State) GetNonce(ctx context.Context, id uint32) (uint32, error) {
	v, err := s.GetValue(ctx, Address{Account: id, Field: FieldNonce})
	return ValueUint32(v), err
}

// SetNonce sets the nonce of account id.
func (s *State) SetNonce(ctx context.Context, id, nonce uint32) error {
	return s.SetValue(ctx, Address{Account: id, Field: FieldNonce}, Uint32Value(nonce))
}

// GetScriptHash returns the script hash of account id.
func (s *State) GetScriptHash(ctx context.Context, id uint32) (types.Digest, error) {
	return s.GetValue(ctx, Address{Account: id, Field: FieldScriptHash})
}

// RegisterAccount binds account id to scriptHash in both directions.
func (s *State) RegisterAccount(ctx context.Context, id uint32, scriptHash types.Digest) error {
	if err := s.SetValue(ctx, Address{Account: id, Field: FieldScriptHash}, scriptHash); err != nil {
		return err
	}
	// Account ids are stored plus one so that id 0 is not the zero value.
	return s.SetValue(ctx, scriptHashToID(scriptHash), Uint32Value(id+1))
}

// GetAccountID returns the account bound to scriptHash, if there is one.
func (s *State) GetAccountID(ctx context.Context, scriptHash types.Digest) (uint32, bool, error) {
	v, err := s.GetValue(ctx, scriptHashToID(scriptHash))
	if err != nil || v.IsZero() {
		return 0, false, err
	}
	return ValueUint32(v) - 1, true, nil
}

func scriptHashToID(scriptHash types.Digest) Address {
	return Address{Field: FieldScriptHashToID, Sub: scriptHash.Bytes()}
}

// StoreDataHash marks dataHash as stored.
func (s *State) StoreDataHash(ctx context.Context, dataHash types.Digest) error {
	return s.SetValue(ctx, dataHashAddress(dataHash), Uint32Value(1))
}

// IsDataHashStored reports whether dataHash was stored.
func (s *State) IsDataHashStored(ctx context.Context, dataHash types.Digest) (bool, error) {
	v, err := s.GetValue(ctx, dataHashAddress(dataHash))
	return !v.IsZero(), err
}

func dataHashAddress(dataHash types.Digest) Address {
	return Address{Field: FieldDataHash, Sub: dataHash.Bytes()}
}
