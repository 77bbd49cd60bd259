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
	"github.com/stretchr/testify/assert"

	"github.com/witnessnet/go-witness/testpartitioning"
)

func TestMakeCORS(t *testing.T) {
	testpartitioning.PartitionTest(t)
	e := echo.New()
	corsMiddleware := MakeCORS()

	testCases := []struct {
		name            string
		method          string
		headers         map[string]string
		expectedStatus  int
		expectedHeaders map[string]string
	}{
		{
			name:   "OPTIONS request",
			method: http.MethodOptions,
			headers: map[string]string{
				"Origin":                         "http://wallet.example",
				"Access-Control-Request-Headers": "Content-Type",
			},
			expectedStatus: http.StatusNoContent,
			expectedHeaders: map[string]string{
				"Access-Control-Allow-Origin":  "*",
				"Access-Control-Allow-Methods": "GET,POST,OPTIONS",
				"Access-Control-Allow-Headers": "Content-Type",
			},
		},
		{
			name:   "GET request",
			method: http.MethodGet,
			headers: map[string]string{
				"Origin": "http://wallet.example",
			},
			expectedStatus: http.StatusOK,
			expectedHeaders: map[string]string{
				"Access-Control-Allow-Origin": "*",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/health", nil)
			for key, value := range tc.headers {
				req.Header.Set(key, value)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			handler := corsMiddleware(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})

			err := handler(c)

			assert.NoError(t, err)
			assert.Equal(t, tc.expectedStatus, rec.Code)
			for key, value := range tc.expectedHeaders {
				assert.Equal(t, value, rec.Header().Get(key))
			}
		})
	}
}

func TestMakePNA(t *testing.T) {
	testpartitioning.PartitionTest(t)
	e := echo.New()
	pnaMiddleware := MakePNA()

	testCases := []struct {
		name           string
		method         string
		headers        map[string]string
		expectedHeader string
	}{
		{"OPTIONS request with PNA header", http.MethodOptions, map[string]string{"Access-Control-Request-Private-Network": "true"}, "true"},
		{"OPTIONS request without PNA header", http.MethodOptions, map[string]string{}, ""},
		{"GET request", http.MethodGet, map[string]string{"Access-Control-Request-Private-Network": "true"}, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/", nil)
			for key, value := range tc.headers {
				req.Header.Set(key, value)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			handler := pnaMiddleware(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})

			assert.NoError(t, handler(c))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tc.expectedHeader, rec.Header().Get("Access-Control-Allow-Private-Network"))
		})
	}
}
