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
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Gauge represent a single gauge variable.
type Gauge struct {
	g prometheus.Gauge
}

// MakeGauge create a new gauge with the provided name and description.
func MakeGauge(metric MetricName) *Gauge {
	g := &Gauge{g: prometheus.NewGauge(prometheus.GaugeOpts{
		Name: metric.Name,
		Help: metric.Description,
	})}
	g.Register(nil)
	return g
}

// Register registers the gauge with the default/specific registry
func (gauge *Gauge) Register(reg *Registry) {
	if reg == nil {
		reg = DefaultRegistry()
	}
	if existing, ok := reg.Register(gauge.g).(prometheus.Gauge); ok {
		gauge.g = existing
	}
}

// Deregister deregisters the gauge with the default/specific registry
func (gauge *Gauge) Deregister(reg *Registry) {
	if reg == nil {
		reg = DefaultRegistry()
	}
	reg.Deregister(gauge.g)
}

// Set sets gauge to x
func (gauge *Gauge) Set(x uint64) {
	gauge.g.Set(float64(x))
}

// Add increases gauge by x
func (gauge *Gauge) Add(x float64) {
	gauge.g.Add(x)
}

// GetUint64Value returns the current value of the gauge.
func (gauge *Gauge) GetUint64Value() uint64 {
	var m dto.Metric
	if err := gauge.g.Write(&m); err != nil {
		return 0
	}
	return uint64(m.GetGauge().GetValue())
}
