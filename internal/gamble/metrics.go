package gamble

import "github.com/prometheus/client_golang/prometheus"

var (
	roundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zcoin",
			Name:      "gamble_rounds_total",
			Help:      "Settled wagering rounds by game and player outcome.",
		},
		[]string{"game", "outcome"},
	)

	wageredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zcoin",
			Name:      "gamble_wagered_total",
			Help:      "Z-Coin wagered, by game.",
		},
		[]string{"game"},
	)

	sessionsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zcoin",
			Name:      "gamble_sessions_finished_total",
			Help:      "Sessions reaching a terminal state, by game and state.",
		},
		[]string{"game", "state"},
	)

	sweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zcoin",
			Name:      "gamble_sweep_actions_total",
			Help:      "Janitor actions by kind.",
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(roundsTotal, wageredTotal, sessionsFinishedTotal, sweepsTotal)
}

func recordRound(g Game, net, wager int64) {
	outcome := "push"
	switch {
	case net > 0:
		outcome = "win"
	case net < 0:
		outcome = "loss"
	}
	roundsTotal.WithLabelValues(string(g), outcome).Inc()
	if g == GameSlots || g == GameFlip {
		wageredTotal.WithLabelValues(string(g)).Add(float64(wager))
	}
}
