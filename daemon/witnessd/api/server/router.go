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

// Package server is the witnessd REST API.
//
// Common routes (/health, /versions) live at the root; node operations are
// served under /v1. Responses are JSON unless a handler says otherwise.
package server

import (
	"github.com/gorilla/mux"
	"github.com/labstack/echo/v4"

	"github.com/witnessnet/go-witness/daemon/witnessd/api/server/common"
	"github.com/witnessnet/go-witness/daemon/witnessd/api/server/lib"
	"github.com/witnessnet/go-witness/daemon/witnessd/api/server/lib/middlewares"
	"github.com/witnessnet/go-witness/daemon/witnessd/api/server/v1/routes"
	"github.com/witnessnet/go-witness/logging"
	"github.com/witnessnet/go-witness/util/metrics"
)

const (
	apiV1Tag        = "/v1"
	metricsEndpoint = "/metrics"
)

// wrapCtx passes a common context to each request without a global variable.
// Path parameters are handed over as mux vars.
func wrapCtx(ctx lib.ReqContext, handler lib.Handler) echo.HandlerFunc {
	return func(context echo.Context) error {
		req := context.Request()
		if names := context.ParamNames(); len(names) > 0 {
			vars := make(map[string]string, len(names))
			for _, name := range names {
				vars[name] = context.Param(name)
			}
			req = mux.SetURLVars(req, vars)
		}
		handler(ctx, context.Response(), req)
		return nil
	}
}

// registerHandlers registers a set of Routes to [router] under [prefix].
func registerHandlers(router *echo.Echo, prefix string, routes lib.Routes, ctx lib.ReqContext) {
	for _, route := range routes {
		r := router.Add(route.Method, prefix+route.Path, wrapCtx(ctx, route.HandlerFunc))
		r.Name = route.Name
	}
}

// NewRouter builds and returns a new router from routes
func NewRouter(logger logging.Logger, node lib.NodeInterface, shutdown <-chan struct{}) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middlewares.MakeLogger(logger))
	e.Use(middlewares.MakePNA())
	e.Use(middlewares.MakeCORS())

	// Request Context
	ctx := lib.ReqContext{Node: node, Log: logger, Shutdown: shutdown}

	if node.Config().EnableMetrics {
		route := e.GET(metricsEndpoint, echo.WrapHandler(metrics.DefaultRegistry().Handler()))
		route.Name = "metrics"
	}

	// Registering common routes
	registerHandlers(e, "", common.Routes, ctx)

	// Registering v1 routes
	registerHandlers(e, apiV1Tag, routes.V1Routes, ctx)

	return e
}
