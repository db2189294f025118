package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shop_sessions_active",
		Help: "Currently active browser sessions",
	})

	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_sessions_total",
		Help: "Total browser sessions served",
	})

	CredentialFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credential_fetch_total",
		Help: "Credential exchanges by route and outcome",
	}, []string{"route", "outcome"})

	CredentialDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "credential_fetch_duration_seconds",
		Help:    "Latency of vendor credential exchanges",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.0, 2.0, 5.0},
	})

	VendorEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vendor_events_total",
		Help: "Debug/message frames received from the conversation vendor",
	})

	ResourcesExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ui_resources_extracted_total",
		Help: "UI resources extracted from vendor tool-call results",
	})

	UIActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ui_actions_total",
		Help: "UI actions dispatched by type and result",
	}, []string{"type", "result"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_errors_total",
		Help: "Error counts by stage",
	}, []string{"stage", "error_type"})
)
