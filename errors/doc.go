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

// Package errors defines an error representation that associates an error
// message with a Code.
//
// Codes cover the failure kinds of the state layer (storage faults, malformed
// proofs, root mismatches, failed authorization and ambiguous record
// references) as well as a handful of generic codes shared with gRPC. Errors
// convert to gRPC status values without information loss, so a query layer
// in front of the state can return them unchanged.
package errors
