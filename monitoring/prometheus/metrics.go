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

// Package prometheus provides a Prometheus-based implementation of the
// MetricFactory abstraction.
package prometheus

import (
	"fmt"

	"github.com/godwokenrises/godwoken-sub007/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"k8s.io/klog/v2"
)

// MetricFactory allows the creation of Prometheus-based metrics.
type MetricFactory struct {
	// Prefix is prepended to every metric name.
	Prefix string
	// Registerer defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

func (pmf MetricFactory) register(c prometheus.Collector) {
	r := pmf.Registerer
	if r == nil {
		r = prometheus.DefaultRegisterer
	}
	r.MustRegister(c)
}

// NewCounter creates a new Counter object backed by Prometheus.
func (pmf MetricFactory) NewCounter(name, help string, labelNames ...string) monitoring.Counter {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: pmf.Prefix + name, Help: help}, labelNames)
	pmf.register(vec)
	return &Counter{labelNames: labelNames, vec: vec}
}

// NewGauge creates a new Gauge object backed by Prometheus.
func (pmf MetricFactory) NewGauge(name, help string, labelNames ...string) monitoring.Gauge {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: pmf.Prefix + name, Help: help}, labelNames)
	pmf.register(vec)
	return &Gauge{labelNames: labelNames, vec: vec}
}

// NewHistogram creates a new Histogram object backed by Prometheus, with the
// default latency buckets.
func (pmf MetricFactory) NewHistogram(name, help string, labelNames ...string) monitoring.Histogram {
	return pmf.NewHistogramWithBuckets(name, help, monitoring.LatencyBuckets(), labelNames...)
}

// NewHistogramWithBuckets creates a new Histogram object backed by Prometheus.
func (pmf MetricFactory) NewHistogramWithBuckets(name, help string, buckets []float64, labelNames ...string) monitoring.Histogram {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: pmf.Prefix + name, Help: help, Buckets: buckets}, labelNames)
	pmf.register(vec)
	return &Histogram{labelNames: labelNames, vec: vec}
}

// Counter is a wrapper around a Prometheus CounterVec object.
type Counter struct {
	labelNames []string
	vec        *prometheus.CounterVec
}

// Inc adds 1 to a counter.
func (m *Counter) Inc(labelVals ...string) { m.Add(1, labelVals...) }

// Add adds the given amount to a counter.
func (m *Counter) Add(val float64, labelVals ...string) {
	if labels, ok := labelsFor(m.labelNames, labelVals); ok {
		m.vec.With(labels).Add(val)
	}
}

// Value returns the current amount of a counter.
func (m *Counter) Value(labelVals ...string) float64 {
	labels, ok := labelsFor(m.labelNames, labelVals)
	if !ok {
		return 0
	}
	pb, ok := read(m.vec.With(labels))
	if !ok || pb.Counter == nil {
		return 0
	}
	return pb.Counter.GetValue()
}

// Gauge is a wrapper around a Prometheus GaugeVec object.
type Gauge struct {
	labelNames []string
	vec        *prometheus.GaugeVec
}

// Inc adds 1 to a gauge.
func (m *Gauge) Inc(labelVals ...string) { m.Add(1, labelVals...) }

// Dec subtracts 1 from a gauge.
func (m *Gauge) Dec(labelVals ...string) { m.Add(-1, labelVals...) }

// Add adds given value to a gauge.
func (m *Gauge) Add(val float64, labelVals ...string) {
	if labels, ok := labelsFor(m.labelNames, labelVals); ok {
		m.vec.With(labels).Add(val)
	}
}

// Set sets the value of a gauge.
func (m *Gauge) Set(val float64, labelVals ...string) {
	if labels, ok := labelsFor(m.labelNames, labelVals); ok {
		m.vec.With(labels).Set(val)
	}
}

// Value returns the current amount of a gauge.
func (m *Gauge) Value(labelVals ...string) float64 {
	labels, ok := labelsFor(m.labelNames, labelVals)
	if !ok {
		return 0
	}
	pb, ok := read(m.vec.With(labels))
	if !ok || pb.Gauge == nil {
		return 0
	}
	return pb.Gauge.GetValue()
}

// Histogram is a wrapper around a Prometheus HistogramVec object.
type Histogram struct {
	labelNames []string
	vec        *prometheus.HistogramVec
}

// Observe adds a single observation to the histogram.
func (m *Histogram) Observe(val float64, labelVals ...string) {
	if labels, ok := labelsFor(m.labelNames, labelVals); ok {
		m.vec.With(labels).Observe(val)
	}
}

// Info returns the count and sum of observations for the histogram.
func (m *Histogram) Info(labelVals ...string) (uint64, float64) {
	labels, ok := labelsFor(m.labelNames, labelVals)
	if !ok {
		return 0, 0
	}
	pb, ok := read(m.vec.With(labels).(prometheus.Metric))
	if !ok || pb.Histogram == nil {
		return 0, 0
	}
	return pb.Histogram.GetSampleCount(), pb.Histogram.GetSampleSum()
}

func read(metric prometheus.Metric) (*dto.Metric, bool) {
	var pb dto.Metric
	if err := metric.Write(&pb); err != nil {
		klog.Errorf("failed to Write metric: %v", err)
		return nil, false
	}
	return &pb, true
}

func labelsFor(names, values []string) (prometheus.Labels, bool) {
	if len(names) != len(values) {
		klog.Error(fmt.Sprintf("got %d (%v) values for %d labels (%v)", len(values), values, len(names), names))
		return nil, false
	}
	labels := make(prometheus.Labels, len(names))
	for i, name := range names {
		labels[name] = values[i]
	}
	return labels, true
}
