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

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/godwokenrises/godwoken-sub007/block"
	"github.com/godwokenrises/godwoken-sub007/crypto"
	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/merkle"
	"github.com/godwokenrises/godwoken-sub007/merkle/hashers"
	"github.com/godwokenrises/godwoken-sub007/monitoring"
	"github.com/godwokenrises/godwoken-sub007/revert"
	"github.com/godwokenrises/godwoken-sub007/state"
	"github.com/godwokenrises/godwoken-sub007/storage"
	"github.com/godwokenrises/godwoken-sub007/storage/cache"
	"github.com/godwokenrises/godwoken-sub007/types"
	"github.com/godwokenrises/godwoken-sub007/verifier"
	"k8s.io/klog/v2"
)

type options struct {
	StorageSystem  string
	Provider       storage.ProviderOptions
	CacheSize      int
	Parallelism    int
	RollupTypeHash types.Digest
	KeyFile        string
}

// env is what a command runs against.
type env struct {
	chain  *block.Chain
	signer *crypto.Signer
	opts   options
	w      io.Writer
}

// command is a subcommand. needsKey is set for commands which sign blocks.
type command struct {
	usage    string
	needsKey bool
	run      func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"root":    {usage: "print the global state", run: printRoot},
	"get":     {usage: "<account> <key>: print a value", run: getValue},
	"nonce":   {usage: "<account>: print an account nonce", run: getNonce},
	"proof":   {usage: "<account> <key>...: print a proof of values", run: proveValues},
	"journal": {usage: "<number>: print the journal entry of a block", run: printJournal},
	"history": {usage: "<number> <account> <key>...: print values and a proof as of a block", run: proveHistory},
	"produce": {usage: "(<account> <key> <value>)...: produce a block writing values", needsKey: true, run: produce},
	"revert":  {usage: "<number>...: revert blocks", needsKey: true, run: revertBlocks},
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func run(ctx context.Context, o options, mf monitoring.MetricFactory, args []string, w io.Writer) error {
	if len(args) == 0 {
		return errors.Errorf(errors.InvalidArgument, "no command, want one of %v", commandNames())
	}
	c, ok := commands[args[0]]
	if !ok {
		return errors.Errorf(errors.InvalidArgument, "unknown command %q, want one of %v", args[0], commandNames())
	}

	sp, err := storage.NewProvider(o.StorageSystem, mf, o.Provider)
	if err != nil {
		return err
	}
	defer func() {
		if err := sp.Close(); err != nil {
			klog.Errorf("Close storage: %v", err)
		}
	}()
	cs := sp.ColumnStore()
	if o.CacheSize > 0 {
		if cs, err = cache.New(cs, o.CacheSize, mf); err != nil {
			return err
		}
	}

	var signer *crypto.Signer
	switch {
	case o.KeyFile != "":
		signer, err = crypto.LoadSigner(o.KeyFile)
	case c.needsKey:
		err = errors.Errorf(errors.InvalidArgument, "%s needs --key_file", args[0])
	default:
		// Read-only commands never sign.
		signer, err = crypto.GenerateSigner()
	}
	if err != nil {
		return err
	}

	chain, err := block.Open(ctx, cs, block.Config{
		State:          state.Config{Parallelism: o.Parallelism},
		RollupTypeHash: o.RollupTypeHash,
		Signer:         signer,
		MetricFactory:  mf,
	})
	if err != nil {
		return err
	}
	return c.run(ctx, &env{chain: chain, signer: signer, opts: o, w: w}, args[1:])
}

func printGlobalState(w io.Writer, g types.GlobalState) {
	fmt.Fprintf(w, "account_root   %v\n", g.AccountRoot)
	fmt.Fprintf(w, "block_root     %v\n", g.BlockRoot)
	fmt.Fprintf(w, "reverted_root  %v\n", g.RevertedRoot)
	fmt.Fprintf(w, "block_count    %d\n", g.BlockCount)
	fmt.Fprintf(w, "tip_hash       %v\n", g.TipBlockHash)
	fmt.Fprintf(w, "tip_timestamp  %d\n", g.TipTimestamp)
}

func printRoot(_ context.Context, e *env, args []string) error {
	if len(args) != 0 {
		return errors.New(errors.InvalidArgument, "root takes no arguments")
	}
	printGlobalState(e.w, e.chain.GlobalState())
	fmt.Fprintf(e.w, "pending        %d\n", len(e.chain.PendingReverted()))
	return nil
}

func parseAccount(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, errors.Errorf(errors.InvalidArgument, "bad account %q: %v", s, err)
	}
	return uint32(id), nil
}

// parseBytes reads a 0x prefixed hex string, or takes s literally.
func parseBytes(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") {
		return []byte(s), nil
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return nil, errors.Errorf(errors.InvalidArgument, "bad hex %q: %v", s, err)
	}
	return b, nil
}

// parseValue reads a value of at most 32 bytes, right aligned.
func parseValue(s string) (types.Digest, error) {
	b, err := parseBytes(s)
	if err != nil {
		return types.Zero, err
	}
	if len(b) > types.DigestSize {
		return types.Zero, errors.Errorf(errors.InvalidArgument, "value %q is longer than %d bytes", s, types.DigestSize)
	}
	var d types.Digest
	copy(d[types.DigestSize-len(b):], b)
	return d, nil
}

func parseAddress(account, key string) (state.Address, error) {
	id, err := parseAccount(account)
	if err != nil {
		return state.Address{}, err
	}
	k, err := parseBytes(key)
	if err != nil {
		return state.Address{}, err
	}
	return state.AccountKV(id, k), nil
}

func (e *env) state() *state.State {
	return state.New(e.chain.Accounts(), state.Config{Parallelism: e.opts.Parallelism})
}

func getValue(ctx context.Context, e *env, args []string) error {
	if len(args) != 2 {
		return errors.New(errors.InvalidArgument, "get takes an account and a key")
	}
	a, err := parseAddress(args[0], args[1])
	if err != nil {
		return err
	}
	v, err := e.state().GetValue(ctx, a)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.w, "%v\n", v)
	return nil
}

func getNonce(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errors.New(errors.InvalidArgument, "nonce takes an account")
	}
	id, err := parseAccount(args[0])
	if err != nil {
		return err
	}
	n, err := e.state().GetNonce(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.w, "%d\n", n)
	return nil
}

func proveValues(ctx context.Context, e *env, args []string) error {
	if len(args) == 0 || len(args)%2 != 0 {
		return errors.New(errors.InvalidArgument, "proof takes account and key pairs")
	}
	keys := make([]types.Digest, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		a, err := parseAddress(args[i], args[i+1])
		if err != nil {
			return err
		}
		keys = append(keys, a.Key())
	}
	st := e.state()
	p, err := st.GenerateProof(ctx, keys)
	if err != nil {
		return err
	}
	if err := merkle.VerifyProof(hashers.Default, p.Program, p.Leaves, st.CalculateRoot()); err != nil {
		return err
	}
	fmt.Fprintf(e.w, "root     %v\n", st.CalculateRoot())
	for _, l := range p.Leaves {
		fmt.Fprintf(e.w, "leaf     %v %v\n", l.Key, l.Value)
	}
	fmt.Fprintf(e.w, "program  %x\n", p.Program)
	return nil
}

func proveHistory(ctx context.Context, e *env, args []string) error {
	if len(args) < 3 || len(args)%2 != 1 {
		return errors.New(errors.InvalidArgument, "history takes a block number and account and key pairs")
	}
	n, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return errors.Errorf(errors.InvalidArgument, "bad block number %q: %v", args[0], err)
	}
	keys := make([]types.Digest, 0, len(args)/2)
	for i := 1; i < len(args); i += 2 {
		a, err := parseAddress(args[i], args[i+1])
		if err != nil {
			return err
		}
		keys = append(keys, a.Key())
	}
	root, p, err := e.chain.History().ProofAt(ctx, n, keys)
	if err != nil {
		return err
	}
	if err := merkle.VerifyProof(hashers.Default, p.Program, p.Leaves, root); err != nil {
		return err
	}
	fmt.Fprintf(e.w, "block    %d\n", n)
	fmt.Fprintf(e.w, "root     %v\n", root)
	for _, l := range p.Leaves {
		fmt.Fprintf(e.w, "leaf     %v %v\n", l.Key, l.Value)
	}
	fmt.Fprintf(e.w, "program  %x\n", p.Program)
	return nil
}

func printJournal(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errors.New(errors.InvalidArgument, "journal takes a block number")
	}
	n, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return errors.Errorf(errors.InvalidArgument, "bad block number %q: %v", args[0], err)
	}
	entry, err := e.chain.Journal().Get(ctx, n)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.w, "block      %d\n", entry.Number)
	fmt.Fprintf(e.w, "hash       %v\n", entry.Hash)
	fmt.Fprintf(e.w, "timestamp  %d\n", entry.Timestamp)
	fmt.Fprintf(e.w, "prior      %v\n", entry.PriorRoot)
	fmt.Fprintf(e.w, "post       %v\n", entry.PostRoot)
	for _, u := range entry.Writes {
		fmt.Fprintf(e.w, "write      %v %v -> %v\n", u.Key, u.Old, u.New)
	}
	return nil
}

func produce(ctx context.Context, e *env, args []string) error {
	if len(args)%3 != 0 {
		return errors.New(errors.InvalidArgument, "produce takes account, key and value triples")
	}
	type write struct {
		a state.Address
		v types.Digest
	}
	writes := make([]write, 0, len(args)/3)
	for i := 0; i < len(args); i += 3 {
		a, err := parseAddress(args[i], args[i+1])
		if err != nil {
			return err
		}
		v, err := parseValue(args[i+2])
		if err != nil {
			return err
		}
		writes = append(writes, write{a, v})
	}

	b, err := e.chain.Begin(ctx)
	if err != nil {
		return err
	}
	defer b.Abort()
	for _, w := range writes {
		w := w
		if err := b.Apply(ctx, func(ctx context.Context, st *state.State) error {
			return st.SetValue(ctx, w.a, w.v)
		}); err != nil {
			return err
		}
	}
	res, err := b.Finalize(ctx)
	if err != nil {
		return err
	}

	v := verifier.New(verifier.Params{RollupTypeHash: e.opts.RollupTypeHash}, verifier.AllowList{e.signer.Address(): true})
	if _, err := v.Verify(res.Transaction); err != nil {
		return errors.Wrap(errors.CodeOf(err), err, "produced block does not verify")
	}
	fmt.Fprintf(e.w, "block    %d %v\n", res.Block.Header.Number, res.Block.Hash())
	fmt.Fprintf(e.w, "updates  %d\n", len(res.Block.Updates))
	fmt.Fprintf(e.w, "witness  %d bytes\n", len(res.Transaction.Witness))
	printGlobalState(e.w, res.Post)
	return nil
}

func revertBlocks(ctx context.Context, e *env, args []string) error {
	if len(args) == 0 {
		return errors.New(errors.InvalidArgument, "revert takes block numbers")
	}
	rec := revert.Record{}
	for _, s := range args {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return errors.Errorf(errors.InvalidArgument, "bad block number %q: %v", s, err)
		}
		rec.Reverted = append(rec.Reverted, n)
	}
	first := rec.Reverted[0]
	for _, n := range rec.Reverted {
		if n < first {
			first = n
		}
	}
	prior, err := e.chain.Journal().SnapshotBefore(ctx, first)
	if err != nil {
		return err
	}
	rec.PriorRoot = prior
	if err := e.chain.Revert(ctx, rec); err != nil {
		return err
	}
	printGlobalState(e.w, e.chain.GlobalState())
	return nil
}
