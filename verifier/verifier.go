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

// Package verifier checks block submissions the way the rollup's on-chain
// script does. It is a pure function of the submitted transaction: it reads
// no storage, keeps no state and does not log.
package verifier

import (
	"github.com/godwokenrises/godwoken-sub007/crypto"
	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/merkle"
	"github.com/godwokenrises/godwoken-sub007/merkle/hashers"
	"github.com/godwokenrises/godwoken-sub007/types"
)

// Default bounds on a submission.
const (
	DefaultMaxUpdates        = 1 << 14
	DefaultMaxRevertedHashes = 1 << 10
	// DefaultMaxWitnessSize bounds the encoded witness in bytes.
	DefaultMaxWitnessSize = 1 << 24
)

// Authority decides which producer may produce a block.
type Authority interface {
	// Authorized reports whether producer may produce block number at
	// timestamp.
	Authorized(producer types.Address, number, timestamp uint64) bool
}

// AllowList authorizes a fixed set of producers for every block.
type AllowList map[types.Address]bool

// Authorized implements Authority.
func (a AllowList) Authorized(producer types.Address, _, _ uint64) bool { return a[producer] }

// Params are the rollup's on-chain parameters.
type Params struct {
	// RollupTypeHash identifies the records holding the rollup's global
	// state.
	RollupTypeHash types.Digest
	// Zero values mean the defaults above.
	MaxUpdates        int
	MaxRevertedHashes int
	MaxWitnessSize    int
}

// Verifier checks block submissions.
type Verifier struct {
	params Params
	auth   Authority
	hasher hashers.MapHasher
}

// New returns a Verifier for the rollup described by p, checking producers
// against auth.
func New(p Params, auth Authority) *Verifier {
	if p.MaxUpdates <= 0 {
		p.MaxUpdates = DefaultMaxUpdates
	}
	if p.MaxRevertedHashes <= 0 {
		p.MaxRevertedHashes = DefaultMaxRevertedHashes
	}
	if p.MaxWitnessSize <= 0 {
		p.MaxWitnessSize = DefaultMaxWitnessSize
	}
	return &Verifier{params: p, auth: auth, hasher: hashers.Default}
}

// Verify checks a block submission and returns the global state it
// creates. A rejected submission returns an error whose code tells why:
// AmbiguousReference, StructuralProof, StateMismatch or Authorization.
//
// The checks run in order: the rollup's records are identified and
// decoded, the account tree update is proven against the previous and the
// claimed root, the block is checked against the tip and proven into the
// block tree, reverted blocks are proven into the reverted tree, and the
// producer is authenticated last.
func (v *Verifier) Verify(tx *types.Transaction) (*types.GlobalState, error) {
	prevRec, err := v.findRecord(tx.Inputs, "input")
	if err != nil {
		return nil, err
	}
	postRec, err := v.findRecord(tx.Outputs, "output")
	if err != nil {
		return nil, err
	}
	prev, err := types.DecodeGlobalState(prevRec.Data)
	if err != nil {
		return nil, errors.Wrap(errors.StructuralProof, err, "decode previous global state")
	}
	post, err := types.DecodeGlobalState(postRec.Data)
	if err != nil {
		return nil, errors.Wrap(errors.StructuralProof, err, "decode new global state")
	}
	if len(tx.Witness) > v.params.MaxWitnessSize {
		return nil, errors.Errorf(errors.StructuralProof, "witness of %d bytes exceeds %d", len(tx.Witness), v.params.MaxWitnessSize)
	}
	w, err := types.DecodeWitness(tx.Witness)
	if err != nil {
		return nil, errors.Wrap(errors.StructuralProof, err, "decode block witness")
	}
	blk := &w.Block
	h := &blk.Header
	hash := h.Hash()

	if err := v.verifyAccounts(blk, prev, post); err != nil {
		return nil, err
	}
	if err := v.verifyBlock(h, hash, blk.BlockProof, prev, post); err != nil {
		return nil, err
	}
	if err := v.verifyReverted(w, prev, post); err != nil {
		return nil, err
	}

	if err := crypto.Verify(h.Producer, hash, blk.Signature); err != nil {
		return nil, err
	}
	if v.auth == nil || !v.auth.Authorized(h.Producer, h.Number, h.Timestamp) {
		return nil, errors.Errorf(errors.Authorization, "producer %v may not produce block %d", h.Producer, h.Number)
	}
	return post, nil
}

// findRecord returns the only record owned by the rollup.
func (v *Verifier) findRecord(recs []types.Record, kind string) (*types.Record, error) {
	var found *types.Record
	n := 0
	for i := range recs {
		if recs[i].TypeHash == v.params.RollupTypeHash {
			found = &recs[i]
			n++
		}
	}
	if n != 1 {
		return nil, errors.Errorf(errors.AmbiguousReference, "%d %s records belong to rollup %v, want 1", n, kind, v.params.RollupTypeHash)
	}
	return found, nil
}

func (v *Verifier) verifyAccounts(blk *types.Block, prev, post *types.GlobalState) error {
	h := &blk.Header
	if h.PrevAccountRoot != prev.AccountRoot {
		return errors.Errorf(errors.StateMismatch, "block builds on account root %v, previous state has %v", h.PrevAccountRoot, prev.AccountRoot)
	}
	if h.PostAccountRoot != post.AccountRoot {
		return errors.Errorf(errors.StateMismatch, "block ends at account root %v, new state claims %v", h.PostAccountRoot, post.AccountRoot)
	}
	if len(blk.Updates) > v.params.MaxUpdates {
		return errors.Errorf(errors.StructuralProof, "%d updates exceed %d", len(blk.Updates), v.params.MaxUpdates)
	}
	if got := types.HashUpdates(blk.Updates); got != h.UpdatesHash {
		return errors.Errorf(errors.StateMismatch, "updates hash to %v, header commits to %v", got, h.UpdatesHash)
	}
	if len(blk.Updates) == 0 {
		if len(blk.KVProof) != 0 {
			return errors.New(errors.StructuralProof, "proof without updates")
		}
		if prev.AccountRoot != post.AccountRoot {
			return errors.Errorf(errors.StateMismatch, "account root moved from %v to %v without updates", prev.AccountRoot, post.AccountRoot)
		}
		return nil
	}
	olds := make([]types.Leaf, len(blk.Updates))
	news := make([]types.Leaf, len(blk.Updates))
	for i, u := range blk.Updates {
		olds[i] = types.Leaf{Key: u.Key, Value: u.Old}
		news[i] = types.Leaf{Key: u.Key, Value: u.New}
	}
	if err := v.checkRoot(blk.KVProof, olds, prev.AccountRoot, "previous account"); err != nil {
		return err
	}
	return v.checkRoot(blk.KVProof, news, post.AccountRoot, "new account")
}

func (v *Verifier) verifyBlock(h *types.Header, hash types.Digest, proof []byte, prev, post *types.GlobalState) error {
	switch {
	case h.Number != prev.BlockCount+1:
		return errors.Errorf(errors.StateMismatch, "block number %d does not follow %d blocks", h.Number, prev.BlockCount)
	case post.BlockCount != h.Number:
		return errors.Errorf(errors.StateMismatch, "new state counts %d blocks after block %d", post.BlockCount, h.Number)
	case h.ParentHash != prev.TipBlockHash:
		return errors.Errorf(errors.StateMismatch, "parent %v is not the tip %v", h.ParentHash, prev.TipBlockHash)
	case post.TipBlockHash != hash:
		return errors.Errorf(errors.StateMismatch, "new state tip %v is not block %v", post.TipBlockHash, hash)
	case h.Timestamp <= prev.TipTimestamp:
		return errors.Errorf(errors.StateMismatch, "timestamp %d does not follow %d", h.Timestamp, prev.TipTimestamp)
	case post.TipTimestamp != h.Timestamp:
		return errors.Errorf(errors.StateMismatch, "new state timestamp %d is not the block's %d", post.TipTimestamp, h.Timestamp)
	}
	key := types.Uint64Digest(h.Number)
	if err := v.checkRoot(proof, []types.Leaf{{Key: key}}, prev.BlockRoot, "previous block"); err != nil {
		return err
	}
	return v.checkRoot(proof, []types.Leaf{{Key: key, Value: hash}}, post.BlockRoot, "new block")
}

func (v *Verifier) verifyReverted(w *types.BlockWitness, prev, post *types.GlobalState) error {
	if len(w.RevertedHashes) == 0 {
		if len(w.RevertedProof) != 0 {
			return errors.New(errors.StructuralProof, "reverted proof without reverted hashes")
		}
		if prev.RevertedRoot != post.RevertedRoot {
			return errors.Errorf(errors.StateMismatch, "reverted root moved from %v to %v without reverted blocks", prev.RevertedRoot, post.RevertedRoot)
		}
		return nil
	}
	if len(w.RevertedHashes) > v.params.MaxRevertedHashes {
		return errors.Errorf(errors.StructuralProof, "%d reverted hashes exceed %d", len(w.RevertedHashes), v.params.MaxRevertedHashes)
	}
	unset := make([]types.Leaf, len(w.RevertedHashes))
	marked := make([]types.Leaf, len(w.RevertedHashes))
	for i, hash := range w.RevertedHashes {
		unset[i] = types.Leaf{Key: hash}
		marked[i] = types.Leaf{Key: hash, Value: types.RevertedMarker}
	}
	if err := v.checkRoot(w.RevertedProof, unset, prev.RevertedRoot, "previous reverted"); err != nil {
		return err
	}
	return v.checkRoot(w.RevertedProof, marked, post.RevertedRoot, "new reverted")
}

func (v *Verifier) checkRoot(proof []byte, leaves []types.Leaf, want types.Digest, name string) error {
	got, err := merkle.CalculateRoot(v.hasher, proof, leaves)
	if err != nil {
		return err
	}
	if got != want {
		return errors.Errorf(errors.StateMismatch, "proof gives %s root %v, want %v", name, got, want)
	}
	return nil
}
