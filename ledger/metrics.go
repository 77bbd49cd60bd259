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

package ledger

import (
	"time"

	"github.com/witnessnet/go-witness/data/bookkeeping"
	"github.com/witnessnet/go-witness/ledger/ledgercore"
	"github.com/witnessnet/go-witness/util/metrics"
)

type metricsTracker struct {
	ledgerHeight            *metrics.Gauge
	ledgerTransactionsTotal *metrics.Counter
	ledgerBlocksTotal       *metrics.Counter
	ledgerCoinsCreatedTotal *metrics.Counter
	ledgerCoinsSpentTotal   *metrics.Counter
	ledgerCommitMicros      *metrics.Counter
}

func (mt *metricsTracker) start(latest bookkeeping.BlockHeader) {
	mt.ledgerHeight = metrics.MakeGauge(metrics.LedgerHeight)
	mt.ledgerTransactionsTotal = metrics.MakeCounter(metrics.LedgerTransactionsTotal)
	mt.ledgerBlocksTotal = metrics.MakeCounter(metrics.LedgerBlocksTotal)
	mt.ledgerCoinsCreatedTotal = metrics.MakeCounter(metrics.LedgerCoinsCreatedTotal)
	mt.ledgerCoinsSpentTotal = metrics.MakeCounter(metrics.LedgerCoinsSpentTotal)
	mt.ledgerCommitMicros = metrics.MakeCounter(metrics.LedgerCommitMicros)
	mt.ledgerHeight.Set(uint64(latest.Height))
}

func (mt *metricsTracker) close() {
	if mt.ledgerHeight != nil {
		mt.ledgerHeight.Deregister(nil)
		mt.ledgerHeight = nil
	}
	for _, c := range []**metrics.Counter{
		&mt.ledgerTransactionsTotal,
		&mt.ledgerBlocksTotal,
		&mt.ledgerCoinsCreatedTotal,
		&mt.ledgerCoinsSpentTotal,
		&mt.ledgerCommitMicros,
	} {
		if *c != nil {
			(*c).Deregister(nil)
			*c = nil
		}
	}
}

func (mt *metricsTracker) newBlock(blk bookkeeping.Block, patch *ledgercore.Patch, started time.Time) {
	mt.ledgerHeight.Set(uint64(blk.Height))
	mt.ledgerBlocksTotal.Inc(nil)
	mt.ledgerTransactionsTotal.AddUint64(uint64(len(blk.Payset)), nil)
	if patch != nil {
		mt.ledgerCoinsCreatedTotal.AddUint64(uint64(len(patch.Coins())), nil)
		mt.ledgerCoinsSpentTotal.AddUint64(uint64(len(patch.SpentRefs())), nil)
	}
	mt.ledgerCommitMicros.AddMicrosecondsSince(started, nil)
}
