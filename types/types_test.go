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

package types

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSum(t *testing.T) {
	// BLAKE2b-256 of the empty string.
	want, err := ParseDigest("0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fe3a8")
	if err != nil {
		t.Fatalf("ParseDigest: %v", err)
	}
	if got := Sum(); got != want {
		t.Errorf("Sum() = %v, want %v", got, want)
	}
	if got, want := Sum([]byte("ab"), []byte("c")), Sum([]byte("abc")); got != want {
		t.Errorf("Sum(ab, c) = %v, want %v", got, want)
	}
}

func TestDigestFromBytes(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		in      []byte
		wantErr bool
	}{
		{desc: "nil", in: nil, wantErr: true},
		{desc: "short", in: make([]byte, 31), wantErr: true},
		{desc: "long", in: make([]byte, 33), wantErr: true},
		{desc: "ok", in: []byte("0123456789abcdef0123456789abcdef")},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			d, err := DigestFromBytes(tc.in)
			if gotErr := err != nil; gotErr != tc.wantErr {
				t.Fatalf("DigestFromBytes: %v, wantErr %v", err, tc.wantErr)
			}
			if err == nil && string(d.Bytes()) != string(tc.in) {
				t.Errorf("Bytes() = %x, want %x", d.Bytes(), tc.in)
			}
		})
	}
}

func TestUint64Digest(t *testing.T) {
	d := Uint64Digest(0x0102)
	if d[0] != 0x02 || d[1] != 0x01 {
		t.Errorf("Uint64Digest(0x0102) = %v, want little-endian prefix", d)
	}
	for i := 8; i < DigestSize; i++ {
		if d[i] != 0 {
			t.Fatalf("byte %d = %x, want 0", i, d[i])
		}
	}
	if !Uint64Digest(0).IsZero() {
		t.Errorf("Uint64Digest(0) is not zero")
	}
}

func TestHeaderHash(t *testing.T) {
	h := Header{Number: 7, Timestamp: 1000, Producer: Address{1}}
	base := h.Hash()
	if base != h.Hash() {
		t.Fatal("Hash() is not deterministic")
	}
	for _, tc := range []struct {
		desc   string
		mutate func(h *Header)
	}{
		{desc: "number", mutate: func(h *Header) { h.Number++ }},
		{desc: "timestamp", mutate: func(h *Header) { h.Timestamp++ }},
		{desc: "producer", mutate: func(h *Header) { h.Producer[19] = 1 }},
		{desc: "prev-root", mutate: func(h *Header) { h.PrevAccountRoot[0] = 1 }},
		{desc: "post-root", mutate: func(h *Header) { h.PostAccountRoot[0] = 1 }},
		{desc: "updates", mutate: func(h *Header) { h.UpdatesHash[31] = 1 }},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			h2 := h
			tc.mutate(&h2)
			if h2.Hash() == base {
				t.Errorf("Hash() unchanged after modifying %s", tc.desc)
			}
		})
	}
}

func TestGlobalStateEncoding(t *testing.T) {
	s := GlobalState{
		AccountRoot:  Sum([]byte("account")),
		BlockRoot:    Sum([]byte("block")),
		BlockCount:   3,
		TipBlockHash: Sum([]byte("tip")),
		TipTimestamp: 12345,
	}
	got, err := DecodeGlobalState(s.Encode())
	if err != nil {
		t.Fatalf("DecodeGlobalState: %v", err)
	}
	if diff := cmp.Diff(&s, got); diff != "" {
		t.Errorf("decoded state diff (-want +got):\n%s", diff)
	}
	if _, err := DecodeGlobalState([]byte{0xc1}); err == nil {
		t.Error("DecodeGlobalState(garbage) succeeded")
	}
}
