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
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry represents a single set of metrics registry
type Registry struct {
	reg *prometheus.Registry
}

var defaultRegistry = makeDefaultRegistry()

func makeDefaultRegistry() *Registry {
	r := MakeRegistry()
	r.reg.MustRegister(collectors.NewGoCollector())
	r.reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return r
}

// MakeRegistry creates a new, empty metrics registry
func MakeRegistry() *Registry {
	return &Registry{reg: prometheus.NewRegistry()}
}

// DefaultRegistry returns the process-wide registry that metrics register with unless told otherwise.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a collector to the registry. If an equivalent collector is
// already registered, that one is returned instead.
func (r *Registry) Register(c prometheus.Collector) prometheus.Collector {
	if err := r.reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

// Deregister removes a collector from the registry.
func (r *Registry) Deregister(c prometheus.Collector) {
	r.reg.Unregister(c)
}

// Gatherer exposes the registry for scraping and tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler returns an http.Handler serving the registry in the prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
