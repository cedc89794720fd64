package services

import "github.com/prometheus/client_golang/prometheus"

var (
	activitiesLoggedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_activities_logged_total",
		Help: "Activities successfully applied to a challenge",
	})
	challengesCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_challenges_completed_total",
		Help: "Challenge completions",
	})
	challengesFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_challenges_failed_total",
		Help: "Strict-mode streak breaks",
	})
	badgesAwardedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_badges_awarded_total",
		Help: "Badges newly awarded",
	})
)

// InitMetrics registers the engine counters. Call this from main.go
func InitMetrics() {
	prometheus.MustRegister(activitiesLoggedTotal)
	prometheus.MustRegister(challengesCompletedTotal)
	prometheus.MustRegister(challengesFailedTotal)
	prometheus.MustRegister(badgesAwardedTotal)
}
