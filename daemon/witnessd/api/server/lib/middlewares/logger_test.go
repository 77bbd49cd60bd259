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
package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/witnessnet/go-witness/logging"
	"github.com/witnessnet/go-witness/testpartitioning"
)

func TestLoggerRecordsStatus(t *testing.T) {
	testpartitioning.PartitionTest(t)

	e := echo.New()
	e.Use(MakeLogger(logging.TestingLog(t)))
	e.GET("/blocks/:height", func(c echo.Context) error {
		return c.String(http.StatusTeapot, "short and stout")
	})
	e.GET("/fails", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadGateway, "upstream")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/blocks/7", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	// errors are written by the middleware
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fails", nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/blocks/7", nil), httptest.NewRecorder())
	e.Router().Find(http.MethodGet, "/blocks/7", c)
	require.Equal(t, "GET /blocks/:height", routeName(c))
	require.Equal(t, "unmatched", routeName(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())))
}
