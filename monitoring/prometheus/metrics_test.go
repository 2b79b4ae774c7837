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

package prometheus

import (
	"testing"

	"github.com/godwokenrises/godwoken-sub007/monitoring/testonly"
	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricFactory(t *testing.T) {
	mf := MetricFactory{Prefix: "smt_", Registerer: prometheus.NewRegistry()}
	testonly.TestCounter(t, mf)
	testonly.TestGauge(t, mf)
	testonly.TestHistogram(t, mf)
}

func TestPrefixedNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	mf := MetricFactory{Prefix: "smt_", Registerer: reg}
	mf.NewCounter("commits", "Test only", "tree").Inc("account")
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) != 1 || families[0].GetName() != "smt_commits" {
		t.Errorf("Gather() = %v, want one family named smt_commits", families)
	}
}
