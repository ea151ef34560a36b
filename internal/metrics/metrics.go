// Package metrics holds the Prometheus collectors of the lead pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ListingsExtracted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clinic_leads_listings_extracted_total",
			Help: "Total number of listings read from detail views.",
		},
	)
	ListingErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clinic_leads_listing_errors_total",
			Help: "Total number of listings skipped because their fields could not be read.",
		},
	)
	ClassifierRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_leads_classifier_requests_total",
			Help: "Batch classification calls, labeled by outcome.",
		},
		[]string{"outcome"},
	)
	LeadsEmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clinic_leads_leads_emitted_total",
			Help: "Total number of leads produced by completed runs.",
		},
	)
	Runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_leads_runs_total",
			Help: "Collector runs, labeled by final status.",
		},
		[]string{"status"},
	)
	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clinic_leads_run_duration_seconds",
			Help:    "Wall-clock duration of collector runs.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		},
	)
)

func init() {
	prometheus.MustRegister(ListingsExtracted)
	prometheus.MustRegister(ListingErrors)
	prometheus.MustRegister(ClassifierRequests)
	prometheus.MustRegister(LeadsEmitted)
	prometheus.MustRegister(Runs)
	prometheus.MustRegister(RunDuration)
}

// Handler serves the registered collectors in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
