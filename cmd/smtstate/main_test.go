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
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/storage"
	"github.com/godwokenrises/godwoken-sub007/types"
)

func testOptions(t *testing.T) options {
	t.Helper()
	dir := t.TempDir()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	keyFile := filepath.Join(dir, "producer.key")
	if err := ethcrypto.SaveECDSA(keyFile, key); err != nil {
		t.Fatalf("SaveECDSA: %v", err)
	}
	return options{
		StorageSystem:  "leveldb",
		Provider:       storage.ProviderOptions{Path: filepath.Join(dir, "db")},
		CacheSize:      64,
		Parallelism:    2,
		RollupTypeHash: types.Sum([]byte("rollup")),
		KeyFile:        keyFile,
	}
}

func runCmd(t *testing.T, o options, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	if err := run(context.Background(), o, nil, args, &out); err != nil {
		t.Fatalf("run(%v): %v", args, err)
	}
	return out.String()
}

func field(t *testing.T, out, name string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if f := strings.Fields(line); len(f) >= 2 && f[0] == name {
			return f[1]
		}
	}
	t.Fatalf("no %s in output:\n%s", name, out)
	return ""
}

func TestProduceInspectRevert(t *testing.T) {
	o := testOptions(t)
	empty := runCmd(t, o, "root")
	if got := field(t, empty, "block_count"); got != "0" {
		t.Errorf("block_count of an empty store = %s", got)
	}

	out := runCmd(t, o, "produce", "1", "a", "0x01", "1", "b", "0x0202")
	if got := field(t, out, "updates"); got != "2" {
		t.Errorf("updates = %s, want 2", got)
	}
	first := field(t, out, "account_root")
	runCmd(t, o, "produce", "2", "0x63", "0x03")

	root := runCmd(t, o, "root")
	if got := field(t, root, "block_count"); got != "2" {
		t.Errorf("block_count = %s, want 2", got)
	}
	if got, want := strings.TrimSpace(runCmd(t, o, "get", "1", "b")), strings.Repeat("00", 30)+"0202"; got != want {
		t.Errorf("get 1 b = %s, want %s", got, want)
	}
	if got, want := strings.TrimSpace(runCmd(t, o, "get", "2", "c")), strings.Repeat("00", 31)+"03"; got != want {
		t.Errorf("get 2 c = %s, want %s", got, want)
	}
	proof := runCmd(t, o, "proof", "1", "a", "2", "c", "3", "missing")
	if got, want := field(t, proof, "root"), field(t, root, "account_root"); got != want {
		t.Errorf("proof root %s, want %s", got, want)
	}
	if got := strings.Count(proof, "leaf "); got != 3 {
		t.Errorf("proof has %d leaves, want 3", got)
	}
	journal := runCmd(t, o, "journal", "2")
	if got, want := field(t, journal, "prior"), first; got != want {
		t.Errorf("block 2 prior root %s, want %s", got, want)
	}

	past := runCmd(t, o, "history", "1", "2", "c")
	if got := field(t, past, "root"); got != first {
		t.Errorf("history root after block 1 %s, want %s", got, first)
	}
	if got := strings.Fields(strings.Split(past, "leaf")[1])[1]; got != types.Zero.String() {
		t.Errorf("2 c after block 1 = %s, want zero", got)
	}

	reverted := runCmd(t, o, "revert", "2")
	if got := field(t, reverted, "account_root"); got != first {
		t.Errorf("account root after revert %s, want %s", got, first)
	}
	if got := field(t, runCmd(t, o, "root"), "pending"); got != "1" {
		t.Errorf("pending = %s, want 1", got)
	}
	if got, want := strings.TrimSpace(runCmd(t, o, "get", "2", "c")), types.Zero.String(); got != want {
		t.Errorf("get 2 c after revert = %s, want %s", got, want)
	}
}

func TestRunErrors(t *testing.T) {
	o := testOptions(t)
	noKey := o
	noKey.KeyFile = ""
	badStorage := o
	badStorage.StorageSystem = "nope"
	for _, tc := range []struct {
		desc string
		o    options
		args []string
		want errors.Code
	}{
		{"no command", o, nil, errors.InvalidArgument},
		{"unknown command", o, []string{"frobnicate"}, errors.InvalidArgument},
		{"produce without key", noKey, []string{"produce", "1", "a", "0x01"}, errors.InvalidArgument},
		{"odd proof args", o, []string{"proof", "1"}, errors.InvalidArgument},
		{"bad account", o, []string{"get", "x", "a"}, errors.InvalidArgument},
		{"bad hex", o, []string{"get", "1", "0xzz"}, errors.InvalidArgument},
		{"long value", o, []string{"produce", "1", "a", "0x" + strings.Repeat("01", 33)}, errors.InvalidArgument},
		{"missing journal entry", o, []string{"journal", "9"}, errors.NotFound},
		{"revert unknown block", o, []string{"revert", "9"}, errors.NotFound},
		{"history past the tip", o, []string{"history", "9", "1", "a"}, errors.NotFound},
		{"history without keys", o, []string{"history", "1"}, errors.InvalidArgument},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			err := run(context.Background(), tc.o, nil, tc.args, &bytes.Buffer{})
			if got := errors.CodeOf(err); got != tc.want {
				t.Errorf("run(%v): %v, want code %v", tc.args, err, tc.want)
			}
		})
	}
	if err := run(context.Background(), badStorage, nil, []string{"root"}, &bytes.Buffer{}); err == nil {
		t.Error("run with an unknown storage system succeeded")
	}
}
