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

package agreement

import (
	"github.com/witnessnet/go-witness/util/metrics"
)

var (
	roundsTotal       = metrics.MakeCounter(metrics.AgreementRoundsTotal)
	roundChangesTotal = metrics.MakeCounter(metrics.AgreementRoundChangesTotal, "cause")
	commitsTotal      = metrics.MakeCounter(metrics.AgreementCommitsTotal)
	votesTotal        = metrics.MakeCounter(metrics.AgreementVotesTotal, "kind")
	messagesHandled   = metrics.MakeCounter(metrics.AgreementMessagesHandled, "tag")
	messagesDropped   = metrics.MakeCounter(metrics.AgreementMessagesDropped, "reason")
	catchupsTotal     = metrics.MakeCounter(metrics.AgreementCatchupsTotal)
)

func voteKind(v vote) map[string]string {
	if v.Accept {
		return map[string]string{"kind": "accept"}
	}
	return map[string]string{"kind": "reject"}
}
