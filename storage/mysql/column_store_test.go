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

package mysql

import (
	"context"
	"flag"
	"os"
	"testing"

	"github.com/godwokenrises/godwoken-sub007/storage"
	"github.com/godwokenrises/godwoken-sub007/storage/testdb"
	"github.com/godwokenrises/godwoken-sub007/storage/testonly"
	"k8s.io/klog/v2"
)

func TestColumnStore(t *testing.T) {
	testdb.SkipIfNoMySQL(t)
	testonly.ColumnStoreTester{
		NewStore: func(t *testing.T) storage.ColumnStore {
			ctx := context.Background()
			db, done, err := testdb.NewDatabase(ctx)
			if err != nil {
				t.Fatalf("NewDatabase: %v", err)
			}
			t.Cleanup(func() { done(ctx) })
			if err := CreateSchema(ctx, db); err != nil {
				t.Fatalf("CreateSchema: %v", err)
			}
			return NewColumnStore(db)
		},
	}.RunAllTests(t)
}

func TestMain(m *testing.M) {
	flag.Parse()
	if !testdb.MySQLAvailable() {
		klog.Errorf("MySQL not available, skipping all MySQL storage tests")
	}
	os.Exit(m.Run())
}
