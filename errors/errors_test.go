// Copyright 2017 Google Inc. All Rights Reserved.
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

package errors

import (
	"fmt"
	"io"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestGRPCCodes(t *testing.T) {
	tests := []struct {
		got  Code
		want codes.Code
	}{
		{got: InvalidArgument, want: codes.InvalidArgument},
		{got: NotFound, want: codes.NotFound},
		{got: Internal, want: codes.Internal},
		{got: StorageFault, want: codes.Unavailable},
		{got: StructuralProof, want: codes.InvalidArgument},
		{got: StateMismatch, want: codes.FailedPrecondition},
		{got: Authorization, want: codes.PermissionDenied},
		{got: AmbiguousReference, want: codes.InvalidArgument},
	}
	for _, test := range tests {
		if got := test.got.GRPCCode(); got != test.want {
			t.Errorf("%v.GRPCCode() = %v, want = %v", test.got, got, test.want)
		}
	}
}

func TestErrorf(t *testing.T) {
	tests := []struct {
		code    Code
		msg     string
		param   string
		wantMsg string
	}{
		// No need to test all values, just a couple is enough.
		{code: InvalidArgument, msg: "InvalidArgument: %v", param: "foo", wantMsg: "InvalidArgument: foo"},
		{code: StateMismatch, msg: "StateMismatch: %v", param: "bar", wantMsg: "StateMismatch: bar"},
	}
	for _, test := range tests {
		err := Errorf(test.code, test.msg, test.param)
		assertError(t, err, test.code, test.wantMsg)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		code Code
		msg  string
	}{
		{code: InvalidArgument, msg: "err InvalidArgument"},
		{code: Authorization, msg: "err Authorization"},
	}
	for _, test := range tests {
		err := New(test.code, test.msg)
		assertError(t, err, test.code, test.msg)
	}
}

func TestWrap(t *testing.T) {
	if err := Wrap(StorageFault, nil, "read"); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
	err := Wrap(StorageFault, io.ErrUnexpectedEOF, "read node")
	assertError(t, err, StorageFault, "read node: unexpected EOF")

	outer := fmt.Errorf("commit: %w", err)
	if got := CodeOf(outer); got != StorageFault {
		t.Errorf("CodeOf(wrapped) = %v, want %v", got, StorageFault)
	}
	if !Is(outer, StorageFault) {
		t.Errorf("Is(wrapped, StorageFault) = false")
	}
	if got := CodeOf(io.EOF); got != Unknown {
		t.Errorf("CodeOf(io.EOF) = %v, want Unknown", got)
	}
	if got := CodeOf(nil); got != OK {
		t.Errorf("CodeOf(nil) = %v, want OK", got)
	}
	if s, ok := status.FromError(err); !ok || s.Code() != codes.Unavailable {
		t.Errorf("status.FromError() = %v, %v, want Unavailable", s, ok)
	}
}

func assertError(t *testing.T, err error, wantCode Code, wantMsg string) {
	t.Helper()
	if got := err.Error(); got != wantMsg {
		t.Errorf("Error() = %v, want = %v", got, wantMsg)
	}
	serr, ok := err.(StateError)
	if !ok {
		t.Errorf("err is not a StateError: %T", err)
		return
	}
	if got := serr.Code(); got != wantCode {
		t.Errorf("Code() = %v, want = %v", got, wantCode)
	}
}
