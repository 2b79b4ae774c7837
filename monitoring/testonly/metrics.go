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

// Package testonly contains checks shared by the MetricFactory
// implementations.
package testonly

import (
	"testing"

	"github.com/godwokenrises/godwoken-sub007/monitoring"
)

var labelSets = []struct {
	suffix     string
	labelNames []string
	labelVals  []string
}{
	{suffix: "0"},
	{suffix: "1", labelNames: []string{"key1"}, labelVals: []string{"val1"}},
	{suffix: "2", labelNames: []string{"key1", "key2"}, labelVals: []string{"val1", "val2"}},
}

// bogus returns vals with one label too many.
func bogus(vals []string) []string {
	return append(append([]string{}, vals...), "bogus")
}

// TestCounter runs a test on a Counter produced from the provided MetricFactory.
func TestCounter(t *testing.T, factory monitoring.MetricFactory) {
	t.Helper()
	for _, ls := range labelSets {
		name := "test_counter" + ls.suffix
		counter := factory.NewCounter(name, "Test only", ls.labelNames...)
		for _, step := range []struct {
			apply func()
			want  float64
		}{
			{apply: func() {}, want: 0},
			{apply: func() { counter.Inc(ls.labelVals...) }, want: 1},
			{apply: func() { counter.Add(2.5, ls.labelVals...) }, want: 3.5},
			// Calls with the wrong number of labels are dropped.
			{apply: func() { counter.Add(10, bogus(ls.labelVals)...) }, want: 3.5},
		} {
			step.apply()
			if got := counter.Value(ls.labelVals...); got != step.want {
				t.Errorf("Counter(%s)[%v].Value()=%v; want %v", name, ls.labelVals, got, step.want)
			}
		}
		if got := counter.Value(bogus(ls.labelVals)...); got != 0 {
			t.Errorf("Counter(%s).Value(bogus)=%v; want 0", name, got)
		}
	}
}

// TestGauge runs a test on a Gauge produced from the provided MetricFactory.
func TestGauge(t *testing.T, factory monitoring.MetricFactory) {
	t.Helper()
	for _, ls := range labelSets {
		name := "test_gauge" + ls.suffix
		gauge := factory.NewGauge(name, "Test only", ls.labelNames...)
		for _, step := range []struct {
			apply func()
			want  float64
		}{
			{apply: func() {}, want: 0},
			{apply: func() { gauge.Inc(ls.labelVals...) }, want: 1},
			{apply: func() { gauge.Dec(ls.labelVals...) }, want: 0},
			{apply: func() { gauge.Add(2.5, ls.labelVals...) }, want: 2.5},
			{apply: func() { gauge.Set(42, ls.labelVals...) }, want: 42},
			{apply: func() { gauge.Set(120, bogus(ls.labelVals)...) }, want: 42},
		} {
			step.apply()
			if got := gauge.Value(ls.labelVals...); got != step.want {
				t.Errorf("Gauge(%s)[%v].Value()=%v; want %v", name, ls.labelVals, got, step.want)
			}
		}
	}
}

// TestHistogram runs a test on a Histogram produced from the provided MetricFactory.
func TestHistogram(t *testing.T, factory monitoring.MetricFactory) {
	t.Helper()
	for _, ls := range labelSets {
		name := "test_histogram" + ls.suffix
		histogram := factory.NewHistogram(name, "Test only", ls.labelNames...)
		if count, sum := histogram.Info(ls.labelVals...); count != 0 || sum != 0 {
			t.Errorf("Histogram(%s)[%v].Info()=%v,%v; want 0,0", name, ls.labelVals, count, sum)
		}
		for _, v := range []float64{1, 2, 3} {
			histogram.Observe(v, ls.labelVals...)
		}
		histogram.Observe(100, bogus(ls.labelVals)...)
		if count, sum := histogram.Info(ls.labelVals...); count != 3 || sum != 6 {
			t.Errorf("Histogram(%s)[%v].Info()=%v,%v; want 3,6", name, ls.labelVals, count, sum)
		}
	}
}
