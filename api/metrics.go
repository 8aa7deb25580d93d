/*
metrics.go - Prometheus instrumentation for the HTTP API

PURPOSE:
  Counts the operations that move points so operators can watch award
  volume, duplicate-trigger rates and lottery payout distribution.
  Exposed on /metrics by the router.

METRICS:
  points_transactions_total{type,outcome}  awards/penalties/transfers
  points_quest_claims_total                successful quest claims
  points_lottery_draws_total{prize}        draws by prize name
*/
package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "points_transactions_total",
		Help: "Point operations by type and outcome (applied or duplicate).",
	}, []string{"type", "outcome"})

	questClaimsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "points_quest_claims_total",
		Help: "Quest rewards successfully claimed.",
	})

	lotteryDrawsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "points_lottery_draws_total",
		Help: "Lottery draws by prize name.",
	}, []string{"prize"})
)

func recordTransaction(kind, outcome string) {
	transactionsTotal.WithLabelValues(kind, outcome).Inc()
}

func recordQuestClaim() {
	questClaimsTotal.Inc()
}

func recordLotteryDraw(prize string) {
	lotteryDrawsTotal.WithLabelValues(prize).Inc()
}
