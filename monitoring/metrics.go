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

// Package monitoring provides the metrics abstraction used by the state
// layer, with an inert implementation for tests.
package monitoring

import "time"

// MetricFactory allows the creation of different types of metric.
type MetricFactory interface {
	NewCounter(name, help string, labelNames ...string) Counter
	NewGauge(name, help string, labelNames ...string) Gauge
	NewHistogram(name, help string, labelNames ...string) Histogram
	NewHistogramWithBuckets(name, help string, buckets []float64, labelNames ...string) Histogram
}

// Counter is a metric class for numeric values that increase.
type Counter interface {
	Inc(labelVals ...string)
	Add(val float64, labelVals ...string)
	Value(labelVals ...string) float64
}

// Gauge is a metric class for numeric values that can go up and down.
type Gauge interface {
	Inc(labelVals ...string)
	Dec(labelVals ...string)
	Add(val float64, labelVals ...string)
	Set(val float64, labelVals ...string)
	// Value retrieves the value for a particular set of labels.
	// This is only really useful for testing implementations.
	Value(labelVals ...string) float64
}

// Histogram is a metric class that tracks the distribution of a collection
// of observations.
type Histogram interface {
	Observe(val float64, labelVals ...string)
	// Info retrieves the count and sum of observations for a particular set of labels.
	// This is only really useful for testing implementations.
	Info(labelVals ...string) (uint64, float64)
}

// ObserveSince records the seconds elapsed since start in h.
func ObserveSince(h Histogram, start time.Time, labelVals ...string) {
	h.Observe(time.Since(start).Seconds(), labelVals...)
}

// OrInert returns mf, or an InertMetricFactory if mf is nil.
func OrInert(mf MetricFactory) MetricFactory {
	if mf == nil {
		return InertMetricFactory{}
	}
	return mf
}
