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
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"flag"
	"os"
	"sync"

	"github.com/go-sql-driver/mysql"
	"github.com/godwokenrises/godwoken-sub007/errors"
	"github.com/godwokenrises/godwoken-sub007/monitoring"
	"github.com/godwokenrises/godwoken-sub007/storage"
	"k8s.io/klog/v2"
)

var (
	mySQLURI        = flag.String("mysql_uri", "test:zaphod@tcp(127.0.0.1:3306)/test", "Connection URI for MySQL database")
	maxConns        = flag.Int("mysql_max_conns", 0, "Maximum connections to the database")
	maxIdle         = flag.Int("mysql_max_idle_conns", -1, "Maximum idle database connections in the connection pool")
	mySQLTLSCA      = flag.String("mysql_tls_ca", "", "Path to the CA certificate file for MySQL TLS connection ")
	mySQLServerName = flag.String("mysql_server_name", "", "Name of the MySQL server to be used as the Server Name in the TLS configuration")

	tlsOnce sync.Once
	tlsErr  error
)

func init() {
	if err := storage.RegisterProvider("mysql", newMySQLStorageProvider); err != nil {
		klog.Fatalf("Failed to register storage provider mysql: %v", err)
	}
}

type mysqlProvider struct {
	db *sql.DB
	cs *ColumnStore
}

func newMySQLStorageProvider(_ monitoring.MetricFactory, o storage.ProviderOptions) (storage.Provider, error) {
	dsn := o.DSN
	if dsn == "" {
		dsn = *mySQLURI
	}
	if *mySQLTLSCA != "" {
		tlsOnce.Do(func() { tlsErr = registerMySQLTLSConfig() })
		if tlsErr != nil {
			return nil, tlsErr
		}
		dsn += "?tls=custom"
	}
	db, err := OpenDB(dsn)
	if err != nil {
		return nil, errors.Wrap(errors.StorageFault, err, "open mysql")
	}
	if *maxConns > 0 {
		db.SetMaxOpenConns(*maxConns)
	}
	if *maxIdle >= 0 {
		db.SetMaxIdleConns(*maxIdle)
	}
	if err := CreateSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return &mysqlProvider{db: db, cs: NewColumnStore(db)}, nil
}

func (s *mysqlProvider) ColumnStore() storage.ColumnStore {
	return s.cs
}

func (s *mysqlProvider) Close() error {
	return s.db.Close()
}

// registerMySQLTLSConfig registers a custom TLS config for MySQL using a provided CA certificate and optional server name.
// Returns an error if the CA certificate can't be read or added to the root cert pool, or when the registration of the TLS config fails.
func registerMySQLTLSConfig() error {
	rootCertPool := x509.NewCertPool()
	pem, err := os.ReadFile(*mySQLTLSCA)
	if err != nil {
		return err
	}
	if ok := rootCertPool.AppendCertsFromPEM(pem); !ok {
		return errors.New(errors.InvalidArgument, "failed to append PEM")
	}
	tlsConfig := &tls.Config{
		RootCAs: rootCertPool,
	}
	if *mySQLServerName != "" {
		tlsConfig.ServerName = *mySQLServerName
	}
	return mysql.RegisterTLSConfig("custom", tlsConfig)
}
