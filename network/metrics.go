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

package network

import (
	"github.com/witnessnet/go-witness/util/metrics"
)

var networkMessageReceivedTotal = metrics.MakeCounter(metrics.NetworkMessageReceivedTotal, "tag")
var networkMessageSentTotal = metrics.MakeCounter(metrics.NetworkMessageSentTotal, "tag")
var networkPeers = metrics.MakeGauge(metrics.NetworkPeers)

func countReceived(tag Tag) {
	networkMessageReceivedTotal.Inc(map[string]string{"tag": string(tag)})
}

func countSent(tag Tag) {
	networkMessageSentTotal.Inc(map[string]string{"tag": string(tag)})
}
