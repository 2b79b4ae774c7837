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

// The smtstate binary inspects and drives a rollup state store: it prints
// roots, values, proofs and journal entries, and can produce or revert
// blocks.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/godwokenrises/godwoken-sub007/cmd"
	"github.com/godwokenrises/godwoken-sub007/cmd/internal/provider"
	"github.com/godwokenrises/godwoken-sub007/monitoring/prometheus"
	"github.com/godwokenrises/godwoken-sub007/storage"
	"github.com/godwokenrises/godwoken-sub007/types"
	"github.com/godwokenrises/godwoken-sub007/util"
	prom "github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog/v2"
)

var (
	storageSystem  = flag.String("storage_system", provider.DefaultStorageSystem, fmt.Sprintf("Storage system to use. One of: %v", storage.Providers()))
	dbPath         = flag.String("db_path", "smtstate.db", "Directory of an on-disk store")
	mysqlDSN       = flag.String("mysql_dsn", "", "MySQL data source name, overriding --mysql_uri")
	cacheSize      = flag.Int("cache_size", 0, "Number of column store entries cached in memory, 0 to disable")
	parallelism    = flag.Int("parallelism", 0, "Number of subtrees updated in parallel, 0 for one per CPU")
	rollupTypeHash = flag.String("rollup_type_hash", "", "Hex type hash identifying the rollup's global state records")
	keyFile        = flag.String("key_file", "", "File holding the block producer's hex private key")
	metricsFile    = flag.String("metrics_file", "", "If set, write Prometheus metrics to this file on exit")
	configFile     = flag.String("config", "", "Config file containing flags, as YAML or command line flags; command line flags take precedence")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <command> [args]\n\nCommands:\n", os.Args[0])
	for _, name := range commandNames() {
		fmt.Fprintf(flag.CommandLine.Output(), "  %-8s %s\n", name, commands[name].usage)
	}
	fmt.Fprintln(flag.CommandLine.Output(), "\nFlags:")
	flag.PrintDefaults()
}

func main() {
	klog.InitFlags(nil)
	flag.Usage = usage
	flag.Parse()
	defer klog.Flush()

	if *configFile != "" {
		if err := cmd.ParseFlagFile(*configFile); err != nil {
			klog.Exitf("Failed to load flags from config file %q: %s", *configFile, err)
		}
	}

	o := options{
		StorageSystem: *storageSystem,
		Provider:      storage.ProviderOptions{Path: *dbPath, DSN: *mysqlDSN},
		CacheSize:     *cacheSize,
		Parallelism:   *parallelism,
		KeyFile:       *keyFile,
	}
	if *rollupTypeHash != "" {
		h, err := types.ParseDigest(*rollupTypeHash)
		if err != nil {
			klog.Exitf("Bad --rollup_type_hash: %v", err)
		}
		o.RollupTypeHash = h
	}

	ctx, stop := util.CancelOnSignal(context.Background())
	defer stop()

	err := run(ctx, o, prometheus.MetricFactory{Prefix: "smtstate_"}, flag.Args(), os.Stdout)
	if *metricsFile != "" {
		if werr := prom.WriteToTextfile(*metricsFile, prom.DefaultGatherer); werr != nil {
			klog.Errorf("Failed to write metrics to %q: %v", *metricsFile, werr)
		}
	}
	if err != nil {
		klog.Exitf("%s: %v", flag.Arg(0), err)
	}
}
