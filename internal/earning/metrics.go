package earning

import (
	"errors"

	"zcoin/internal/ledger"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	factsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zcoin",
			Name:      "earning_facts_total",
			Help:      "Activity facts processed, by trigger and result.",
		},
		[]string{"trigger", "result"},
	)

	earnedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zcoin",
			Name:      "earning_credited_total",
			Help:      "Z-Coin credited by the earning engine, by trigger.",
		},
		[]string{"trigger"},
	)
)

func init() {
	prometheus.MustRegister(factsTotal, earnedTotal)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "credited"
	case errors.Is(err, ErrCooldown):
		return "cooldown"
	case errors.Is(err, ErrDailyCapReached):
		return "daily_cap"
	case errors.Is(err, ErrUnknownTrigger):
		return "unknown_trigger"
	case errors.Is(err, ledger.ErrAccountBanned):
		return "banned"
	default:
		return "error"
	}
}
