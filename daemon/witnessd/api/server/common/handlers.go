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

package common

import (
	"errors"
	"net/http"

	"github.com/witnessnet/go-witness/daemon/witnessd/api/server/lib"
)

// Version is the body of GET /versions.
type Version struct {
	Versions    []string `json:"versions"`
	GenesisHash string   `json:"genesis_hash"`
}

// HealthCheck is an httpHandler for route GET /health
//
// It answers 503 once consensus has halted, since the node can no longer
// extend the chain.
func HealthCheck(ctx lib.ReqContext, w http.ResponseWriter, r *http.Request) {
	if err := ctx.Node.ConsensusErr(); err != nil {
		lib.ErrorResponse(w, http.StatusServiceUnavailable, err, "consensus halted: "+err.Error(), ctx.Log)
		return
	}
	select {
	case <-ctx.Shutdown:
		lib.ErrorResponse(w, http.StatusServiceUnavailable, errors.New("shutting down"), "node is shutting down", ctx.Log)
		return
	default:
	}
	lib.SendJSON(w, nil, ctx.Log)
}

// VersionsHandler is an httpHandler for route GET /versions
func VersionsHandler(ctx lib.ReqContext, w http.ResponseWriter, r *http.Request) {
	lib.SendJSON(w, Version{
		Versions:    []string{"v1"},
		GenesisHash: ctx.Node.GenesisHash().String(),
	}, ctx.Log)
}
