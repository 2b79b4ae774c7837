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

// Package crypto signs block hashes for producers and recovers producers
// from signatures.
package crypto

import (
	"crypto/ecdsa"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/types"
	"k8s.io/klog/v2"
)

// SignatureSize is the size of a recoverable secp256k1 signature.
const SignatureSize = 65

// Signer signs digests with a secp256k1 key.
type Signer struct {
	key     *ecdsa.PrivateKey
	address types.Address
}

// NewSigner returns a Signer for key.
func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key, address: types.Address(ethcrypto.PubkeyToAddress(key.PublicKey))}
}

// GenerateSigner returns a Signer with a fresh key.
func GenerateSigner() (*Signer, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, errors.Wrap(errors.Internal, err, "generate key")
	}
	return NewSigner(key), nil
}

// LoadSigner reads a hex encoded private key from file.
func LoadSigner(file string) (*Signer, error) {
	key, err := ethcrypto.LoadECDSA(file)
	if err != nil {
		return nil, errors.Wrap(errors.InvalidArgument, err, "load key")
	}
	return NewSigner(key), nil
}

// Address returns the producer identifier of the signer.
func (s *Signer) Address() types.Address { return s.address }

// Sign returns the recoverable signature of digest.
func (s *Signer) Sign(digest types.Digest) ([]byte, error) {
	sig, err := ethcrypto.Sign(digest[:], s.key)
	if err != nil {
		klog.Warningf("%v: signer failed to sign %v: %v", s.address, digest, err)
		return nil, errors.Wrap(errors.Internal, err, "sign")
	}
	return sig, nil
}
