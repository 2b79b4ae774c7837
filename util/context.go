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


package util

import (
	"context"
	"fmt"
)

type contextKey int

// blockKey is the key used when storing a block number in a context.Context.
const blockKey contextKey = iota

// WithBlock returns a context scoped to building block number.
func WithBlock(ctx context.Context, number uint64) context.Context {
	return context.WithValue(ctx, blockKey, number)
}

// BlockPrefix returns an identifier for the block associated with ctx in a
// form suitable for use as a diagnostic prefix.
func BlockPrefix(ctx context.Context) string {
	v, ok := ctx.Value(blockKey).(uint64)
	if !ok {
		return "{unknown}"
	}
	return fmt.Sprintf("{block %d}", v)
}
