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
	"github.com/go-sql-driver/mysql"
	"github.com/godwokenrises/godwoken-sub007/errors"
)

const (
	// ER_DUP_ENTRY: Error returned by driver when inserting a duplicate row.
	errNumDuplicate = 1062
	// ER_LOCK_DEADLOCK: Error returned when there was a deadlock.
	errNumDeadlock = 1213
)

// toStateError converts MySQL errors into state errors. Deadlocks map to
// Aborted, which tells callers the batch can be retried, and everything
// else is a StorageFault.
func toStateError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if mysqlErr, ok := err.(*mysql.MySQLError); ok && mysqlErr.Number == errNumDeadlock {
		return errors.Wrap(errors.Aborted, err, msg)
	}
	return errors.Wrap(errors.StorageFault, err, msg)
}

func isDuplicateErr(err error) bool {
	switch err := err.(type) {
	case *mysql.MySQLError:
		return err.Number == errNumDuplicate
	default:
		return false
	}
}
