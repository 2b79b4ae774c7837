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

package monitoring_test

import (
	"math"
	"testing"

	"github.com/godwokenrises/godwoken-sub007/monitoring"
	"github.com/godwokenrises/godwoken-sub007/monitoring/testonly"
)

func TestBuckets(t *testing.T) {
	for _, tc := range []struct {
		desc        string
		buckets     []float64
		first, last float64
	}{
		{desc: "latency", buckets: monitoring.LatencyBuckets(), first: 0.0005, last: 262.144},
		{desc: "size", buckets: monitoring.SizeBuckets(), first: 1, last: 32768},
		{desc: "exp", buckets: monitoring.ExpBuckets(3, 10, 3), first: 3, last: 300},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			b := tc.buckets
			if math.Abs(b[0]-tc.first) > 1e-9 {
				t.Errorf("first bucket = %v, want %v", b[0], tc.first)
			}
			if got := b[len(b)-1]; math.Abs(got-tc.last) > 1e-6 {
				t.Errorf("last bucket = %v, want %v", got, tc.last)
			}
			for i := 1; i < len(b); i++ {
				if b[i-1] >= b[i] {
					t.Errorf("buckets out of order at index %d", i)
				}
			}
		})
	}
}

func TestInertMetricFactory(t *testing.T) {
	testonly.TestCounter(t, monitoring.InertMetricFactory{})
	testonly.TestGauge(t, monitoring.InertMetricFactory{})
	testonly.TestHistogram(t, monitoring.InertMetricFactory{})
}

func TestOrInert(t *testing.T) {
	if _, ok := monitoring.OrInert(nil).(monitoring.InertMetricFactory); !ok {
		t.Errorf("OrInert(nil) is not inert")
	}
}
