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


// Package testdb creates throwaway MySQL databases for tests.
package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql" // mysql driver
	"k8s.io/klog/v2"
)

// MySQLURIEnv names the environment variable holding the URI of the MySQL
// server used by tests. The URI must end with a slash so a database name can
// be appended.
const MySQLURIEnv = "TEST_MYSQL_URI"

const defaultURI = "root@tcp(127.0.0.1)/"

var (
	availableOnce sync.Once
	available     bool
)

func serverURI() string {
	if e := os.Getenv(MySQLURIEnv); e != "" {
		return e
	}
	return defaultURI
}

// MySQLAvailable reports whether the test MySQL server answers. The server
// is probed once per process.
func MySQLAvailable() bool {
	availableOnce.Do(func() {
		db, err := sql.Open("mysql", serverURI())
		if err != nil {
			klog.Infof("sql.Open(%q): %v", serverURI(), err)
			return
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			klog.Infof("Ping(%q): %v", serverURI(), err)
			return
		}
		available = true
	})
	return available
}

// NewDatabase creates an empty database with a unique name and connects to
// it. The returned function drops the database and closes the handle.
func NewDatabase(ctx context.Context) (*sql.DB, func(context.Context), error) {
	admin, err := sql.Open("mysql", serverURI())
	if err != nil {
		return nil, nil, err
	}
	defer admin.Close()

	name := fmt.Sprintf("state_%d", time.Now().UnixNano())
	if _, err := admin.ExecContext(ctx, "CREATE DATABASE "+name); err != nil {
		return nil, nil, fmt.Errorf("create database %s: %v", name, err)
	}
	db, err := sql.Open("mysql", serverURI()+name)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	done := func(ctx context.Context) {
		defer db.Close()
		if _, err := db.ExecContext(ctx, "DROP DATABASE "+name); err != nil {
			klog.Warningf("Failed to drop test database %s: %v", name, err)
		}
	}
	return db, done, nil
}

// SkipIfNoMySQL skips the calling test when no MySQL server is reachable.
func SkipIfNoMySQL(t *testing.T) {
	t.Helper()
	if !MySQLAvailable() {
		t.Skip("Skipping test as MySQL not available")
	}
}
