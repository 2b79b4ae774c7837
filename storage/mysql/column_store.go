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

// Package mysql provides a storage.ColumnStore kept in a MySQL table.
package mysql

import (
	"context"
	"database/sql"

	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/storage"
	"k8s.io/klog/v2"
)

const (
	selectValueSQL = "SELECT V FROM ColumnData WHERE Col = ? AND K = ?"
	upsertValueSQL = "INSERT INTO ColumnData(Col, K, V) VALUES(?, ?, ?) ON DUPLICATE KEY UPDATE V = VALUES(V)"
	deleteValueSQL = "DELETE FROM ColumnData WHERE Col = ? AND K = ?"
)

// OpenDB opens a database connection for all MySQL-based storage
// implementations.
func OpenDB(dbURL string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dbURL)
	if err != nil {
		// Don't log uri as it could contain credentials
		klog.Warningf("Could not open MySQL database, check config: %s", err)
		return nil, err
	}

	if _, err := db.ExecContext(context.TODO(), "SET sql_mode = 'STRICT_ALL_TABLES'"); err != nil {
		klog.Warningf("Failed to set strict mode on mysql db: %s", err)
		return nil, err
	}

	return db, nil
}

// ColumnStore is a storage.ColumnStore over the ColumnData table.
type ColumnStore struct {
	db *sql.DB
}

// NewColumnStore returns a ColumnStore using db, which must already hold
// the schema.
func NewColumnStore(db *sql.DB) *ColumnStore {
	return &ColumnStore{db: db}
}

// Get implements storage.ColumnStore.
func (s *ColumnStore) Get(ctx context.Context, col storage.Column, key []byte) ([]byte, bool, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, selectValueSQL, byte(col), key).Scan(&v)
	switch {
	case err == sql.ErrNoRows:
		return nil, false, nil
	case err != nil:
		return nil, false, toStateError(err, "select value")
	}
	if v == nil {
		v = []byte{}
	}
	return v, true, nil
}

// BatchWrite implements storage.ColumnStore in one SQL transaction.
func (s *ColumnStore) BatchWrite(ctx context.Context, ops []storage.Op) (err error) {
	for _, op := range ops {
		if int(op.Column) >= storage.NumColumns {
			return errors.Errorf(errors.StorageFault, "write to unknown %v", op.Column)
		}
	}
	tx, err := s.db.BeginTx(ctx, nil /* opts */)
	if err != nil {
		klog.Warningf("Could not start batch TX: %s", err)
		return toStateError(err, "begin")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				klog.Errorf("Rollback of failed batch: %v", rbErr)
			}
		}
	}()

	upsert, err := tx.PrepareContext(ctx, upsertValueSQL)
	if err != nil {
		return toStateError(err, "prepare upsert")
	}
	defer upsert.Close()
	del, err := tx.PrepareContext(ctx, deleteValueSQL)
	if err != nil {
		return toStateError(err, "prepare delete")
	}
	defer del.Close()

	for _, op := range ops {
		if op.Delete {
			_, err = del.ExecContext(ctx, byte(op.Column), op.Key)
		} else {
			value := op.Value
			if value == nil {
				value = []byte{}
			}
			_, err = upsert.ExecContext(ctx, byte(op.Column), op.Key, value)
		}
		if err != nil {
			if isDuplicateErr(err) {
				klog.Warningf("Duplicate key in upsert on %v: %v", op.Column, err)
			}
			return toStateError(err, "write")
		}
	}
	if err = tx.Commit(); err != nil {
		return toStateError(err, "commit")
	}
	return nil
}

// Close implements storage.ColumnStore. The database handle is owned by the
// provider and stays open.
func (s *ColumnStore) Close() error {
	return nil
}
