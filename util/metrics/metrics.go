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

// Package metrics exposes the node's named prometheus metrics.
package metrics

// MetricName describes the name and description of a single metric
type MetricName struct {
	Name        string
	Description string
}

var (
	// LedgerHeight Last height written to the ledger
	LedgerHeight = MetricName{Name: "witness_ledger_height", Description: "Last height written to the ledger"}
	// LedgerTransactionsTotal Total number of transactions written to the ledger
	LedgerTransactionsTotal = MetricName{Name: "witness_ledger_transactions_total", Description: "Total number of transactions written to the ledger"}
	// LedgerBlocksTotal Total number of blocks written to the ledger
	LedgerBlocksTotal = MetricName{Name: "witness_ledger_blocks_total", Description: "Total number of blocks written to the ledger"}
	// LedgerCoinsCreatedTotal Total number of coins made durable
	LedgerCoinsCreatedTotal = MetricName{Name: "witness_ledger_coins_created_total", Description: "Total number of coins made durable"}
	// LedgerCoinsSpentTotal Total number of durable coins removed by spends
	LedgerCoinsSpentTotal = MetricName{Name: "witness_ledger_coins_spent_total", Description: "Total number of durable coins removed by spends"}
	// LedgerCommitMicros Microseconds spent committing blocks
	LedgerCommitMicros = MetricName{Name: "witness_ledger_commit_micros", Description: "Microseconds spent committing blocks"}

	// AgreementRoundsTotal Number of rounds started
	AgreementRoundsTotal = MetricName{Name: "witness_agreement_rounds_total", Description: "Number of rounds started"}
	// AgreementRoundChangesTotal Number of round changes, by cause
	AgreementRoundChangesTotal = MetricName{Name: "witness_agreement_round_changes_total", Description: "Number of round changes, by cause"}
	// AgreementCommitsTotal Number of blocks committed by consensus
	AgreementCommitsTotal = MetricName{Name: "witness_agreement_commits_total", Description: "Number of blocks committed by consensus"}
	// AgreementVotesTotal Number of votes counted, by kind
	AgreementVotesTotal = MetricName{Name: "witness_agreement_votes_total", Description: "Number of votes counted, by kind"}
	// AgreementMessagesHandled Number of agreement messages handled
	AgreementMessagesHandled = MetricName{Name: "witness_agreement_handled", Description: "Number of agreement messages handled"}
	// AgreementMessagesDropped Number of agreement messages dropped
	AgreementMessagesDropped = MetricName{Name: "witness_agreement_dropped", Description: "Number of agreement messages dropped"}
	// AgreementCatchupsTotal Number of times consensus found itself behind a certified block
	AgreementCatchupsTotal = MetricName{Name: "witness_agreement_catchups_total", Description: "Number of times consensus found itself behind a certified block"}

	// CatchupBlocksFetched Number of blocks fetched from peers
	CatchupBlocksFetched = MetricName{Name: "witness_catchup_blocks_fetched_total", Description: "Number of blocks fetched from peers"}
	// CatchupFetchFailures Number of failed block fetches, by reason
	CatchupFetchFailures = MetricName{Name: "witness_catchup_fetch_failures_total", Description: "Number of failed block fetches, by reason"}
	// BlockServiceRequests Number of block requests served to peers, by outcome
	BlockServiceRequests = MetricName{Name: "witness_block_service_requests_total", Description: "Number of block requests served to peers, by outcome"}

	// TransactionMessagesHandled Number of transaction messages handled
	TransactionMessagesHandled = MetricName{Name: "witness_transaction_messages_handled", Description: "Number of transaction messages handled"}
	// TransactionMessagesDroppedFromPool Number of transaction messages dropped from pool
	TransactionMessagesDroppedFromPool = MetricName{Name: "witness_transaction_messages_dropped_pool", Description: "Number of transaction messages dropped from pool"}
	// TransactionMessagesDupRawMsg Number of duplicate raw transaction messages
	TransactionMessagesDupRawMsg = MetricName{Name: "witness_transaction_messages_dropped_dup_rawmsg", Description: "Number of duplicate raw transaction messages"}
	// TransactionMessagesRejected Number of transaction messages rejected before reaching the pool, by reason
	TransactionMessagesRejected = MetricName{Name: "witness_transaction_messages_rejected", Description: "Number of transaction messages rejected before reaching the pool, by reason"}
	// TransactionPoolPending Number of transactions waiting in the pool
	TransactionPoolPending = MetricName{Name: "witness_transaction_pool_pending", Description: "Number of transactions waiting in the pool"}

	// NetworkMessageReceivedTotal Total number of complete messages that were received from the network
	NetworkMessageReceivedTotal = MetricName{Name: "witness_network_message_received_total", Description: "Total number of complete messages that were received from the network"}
	// NetworkMessageSentTotal Total number of complete messages that were sent to the network
	NetworkMessageSentTotal = MetricName{Name: "witness_network_message_sent_total", Description: "Total number of complete messages that were sent to the network"}
	// NetworkPeers Number of connected peers
	NetworkPeers = MetricName{Name: "witness_network_peers", Description: "Number of connected peers"}

	// APIRequestsTotal Number of REST requests served, by route and status
	APIRequestsTotal = MetricName{Name: "witness_api_requests_total", Description: "Number of REST requests served, by route and status"}
)
