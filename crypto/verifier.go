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

package crypto

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/types"
)

// Recover returns the address whose key produced sig over digest. A
// malformed signature is an Authorization error.
func Recover(digest types.Digest, sig []byte) (types.Address, error) {
	if len(sig) != SignatureSize {
		return types.Address{}, errors.Errorf(errors.Authorization, "signature has %d bytes, want %d", len(sig), SignatureSize)
	}
	pub, err := ethcrypto.SigToPub(digest[:], sig)
	if err != nil {
		return types.Address{}, errors.Wrap(errors.Authorization, err, "recover signer")
	}
	return types.Address(ethcrypto.PubkeyToAddress(*pub)), nil
}

// Verify checks that sig over digest was produced by addr.
func Verify(addr types.Address, digest types.Digest, sig []byte) error {
	got, err := Recover(digest, sig)
	if err != nil {
		return err
	}
	if got != addr {
		return errors.Errorf(errors.Authorization, "signed by %v, not %v", got, addr)
	}
	return nil
}
