// Copyright (C) 2019-2024 Algorand, Inc.
// This file is part of go-witness
//
// go-witness is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-witness is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-witness.  If not, see <https://www.gnu.org/licenses/>.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Counter represent a single counter variable, optionally split by labels.
type Counter struct {
	vec *prometheus.CounterVec
}

// MakeCounter create a new counter with the provided name, description and label names,
// registered with the default registry.
func MakeCounter(metric MetricName, labelNames ...string) *Counter {
	c := &Counter{vec: prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metric.Name,
		Help: metric.Description,
	}, labelNames)}
	c.Register(nil)
	return c
}

// Register registers the counter with the default/specific registry
func (counter *Counter) Register(reg *Registry) {
	if reg == nil {
		reg = DefaultRegistry()
	}
	if existing, ok := reg.Register(counter.vec).(*prometheus.CounterVec); ok {
		counter.vec = existing
	}
}

// Deregister deregisters the counter with the default/specific registry
func (counter *Counter) Deregister(reg *Registry) {
	if reg == nil {
		reg = DefaultRegistry()
	}
	reg.Deregister(counter.vec)
}

// Inc increases counter by 1
func (counter *Counter) Inc(labels map[string]string) {
	counter.vec.With(labels).Inc()
}

// AddUint64 increases counter by x
func (counter *Counter) AddUint64(x uint64, labels map[string]string) {
	counter.vec.With(labels).Add(float64(x))
}

// AddMicrosecondsSince increases counter by microseconds between Time t and now.
func (counter *Counter) AddMicrosecondsSince(t time.Time, labels map[string]string) {
	counter.AddUint64(uint64(time.Since(t).Microseconds()), labels)
}

// GetUint64Value returns the value of the unlabelled counter.
func (counter *Counter) GetUint64Value() uint64 {
	return counter.ValueForLabels(nil)
}

// ValueForLabels returns the value of the counter for the given labels or 0 if it's not found.
func (counter *Counter) ValueForLabels(labels map[string]string) uint64 {
	c, err := counter.vec.GetMetricWith(labels)
	if err != nil {
		return 0
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return uint64(m.GetCounter().GetValue())
}
