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

package monitoring

import (
	"fmt"
	"strings"
	"sync"

	"k8s.io/klog/v2"
)

// InertMetricFactory creates metrics which only keep their values in memory.
// It is used by tests and by components created without a MetricFactory.
type InertMetricFactory struct{}

// NewCounter creates a new inert Counter.
func (InertMetricFactory) NewCounter(name, help string, labelNames ...string) Counter {
	return &InertFloat{name: name, labelCount: len(labelNames)}
}

// NewGauge creates a new inert Gauge.
func (InertMetricFactory) NewGauge(name, help string, labelNames ...string) Gauge {
	return &InertFloat{name: name, labelCount: len(labelNames)}
}

// NewHistogram creates a new inert Histogram.
func (InertMetricFactory) NewHistogram(name, help string, labelNames ...string) Histogram {
	return &InertDistribution{name: name, labelCount: len(labelNames)}
}

// NewHistogramWithBuckets creates a new inert Histogram. The buckets are not
// used.
func (imf InertMetricFactory) NewHistogramWithBuckets(name, help string, _ []float64, labelNames ...string) Histogram {
	return imf.NewHistogram(name, help, labelNames...)
}

// InertFloat implements both the Counter and Gauge interfaces.
type InertFloat struct {
	name       string
	labelCount int
	mu         sync.Mutex
	vals       map[string]float64
}

// update applies fn to the value for the given labels. Calls with the wrong
// number of labels are logged and dropped.
func (m *InertFloat) update(labelVals []string, fn func(float64) float64) {
	key, err := keyForLabels(labelVals, m.labelCount)
	if err != nil {
		klog.Errorf("%s: %v", m.name, err)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vals == nil {
		m.vals = make(map[string]float64)
	}
	m.vals[key] = fn(m.vals[key])
}

// Inc adds 1 to the value.
func (m *InertFloat) Inc(labelVals ...string) { m.Add(1, labelVals...) }

// Dec subtracts 1 from the value.
func (m *InertFloat) Dec(labelVals ...string) { m.Add(-1, labelVals...) }

// Add adds the given amount to the value.
func (m *InertFloat) Add(val float64, labelVals ...string) {
	m.update(labelVals, func(v float64) float64 { return v + val })
}

// Set sets the value.
func (m *InertFloat) Set(val float64, labelVals ...string) {
	m.update(labelVals, func(float64) float64 { return val })
}

// Value returns the current value.
func (m *InertFloat) Value(labelVals ...string) float64 {
	key, err := keyForLabels(labelVals, m.labelCount)
	if err != nil {
		klog.Errorf("%s: %v", m.name, err)
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vals[key]
}

type distribution struct {
	count uint64
	sum   float64
}

// InertDistribution implements the Histogram interface.
type InertDistribution struct {
	name       string
	labelCount int
	mu         sync.Mutex
	dists      map[string]distribution
}

// Observe adds a single observation to the distribution.
func (m *InertDistribution) Observe(val float64, labelVals ...string) {
	key, err := keyForLabels(labelVals, m.labelCount)
	if err != nil {
		klog.Errorf("%s: %v", m.name, err)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dists == nil {
		m.dists = make(map[string]distribution)
	}
	d := m.dists[key]
	d.count++
	d.sum += val
	m.dists[key] = d
}

// Info returns count, sum for the distribution.
func (m *InertDistribution) Info(labelVals ...string) (uint64, float64) {
	key, err := keyForLabels(labelVals, m.labelCount)
	if err != nil {
		klog.Errorf("%s: %v", m.name, err)
		return 0, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.dists[key]
	return d.count, d.sum
}

func keyForLabels(labelVals []string, count int) (string, error) {
	if len(labelVals) != count {
		return "", fmt.Errorf("invalid label count %d; want %d", len(labelVals), count)
	}
	return strings.Join(labelVals, "|"), nil
}
