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

package errors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code identifies the kind of an error.
type Code uint32

// Generic codes share their numeric values with gRPC.
const (
	OK                 = Code(codes.OK)
	Unknown            = Code(codes.Unknown)
	InvalidArgument    = Code(codes.InvalidArgument)
	NotFound           = Code(codes.NotFound)
	FailedPrecondition = Code(codes.FailedPrecondition)
	Aborted            = Code(codes.Aborted)
	Internal           = Code(codes.Internal)
	Unavailable        = Code(codes.Unavailable)
)

// Domain codes. Each maps onto the closest gRPC code in GRPCCode.
const (
	// StorageFault is an I/O failure in the backing column store.
	StorageFault Code = iota + 100
	// StructuralProof is a malformed or incompatible proof or tree encoding.
	StructuralProof
	// StateMismatch is a recomputed root that disagrees with a claimed root.
	StateMismatch
	// Authorization is a failed signature or producer assignment check.
	Authorization
	// AmbiguousReference means the referenced records do not identify exactly
	// one state record of this rollup.
	AmbiguousReference
)

var codeNames = map[Code]string{
	StorageFault:       "StorageFault",
	StructuralProof:    "StructuralProof",
	StateMismatch:      "StateMismatch",
	Authorization:      "Authorization",
	AmbiguousReference: "AmbiguousReference",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return codes.Code(c).String()
}

// GRPCCode returns the gRPC code used when an error of this kind leaves the
// process.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case StorageFault:
		return codes.Unavailable
	case StructuralProof:
		return codes.InvalidArgument
	case StateMismatch:
		return codes.FailedPrecondition
	case Authorization:
		return codes.PermissionDenied
	case AmbiguousReference:
		return codes.InvalidArgument
	}
	return codes.Code(c)
}

// StateError is an error with an associated Code.
type StateError interface {
	error
	Code() Code
}

type stateError struct {
	code  Code
	msg   string
	cause error
}

func (e *stateError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return fmt.Sprintf("%s: %v", e.msg, e.cause)
}

func (e *stateError) Code() Code { return e.code }

func (e *stateError) Unwrap() error { return e.cause }

// GRPCStatus allows status.FromError to recover the code.
func (e *stateError) GRPCStatus() *status.Status {
	return status.New(e.code.GRPCCode(), e.Error())
}

// New returns an error with the given code and message.
func New(code Code, msg string) error {
	return &stateError{code: code, msg: msg}
}

// Errorf returns an error with the given code and formatted message.
func Errorf(code Code, format string, a ...interface{}) error {
	return &stateError{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap returns an error with the given code which keeps err as its cause.
// Wrap returns nil if err is nil.
func Wrap(code Code, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &stateError{code: code, msg: msg, cause: err}
}

// CodeOf returns the code of the first StateError in err's chain, OK for a
// nil error and Unknown for any other error.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var se StateError
	if errors.As(err, &se) {
		return se.Code()
	}
	return Unknown
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
