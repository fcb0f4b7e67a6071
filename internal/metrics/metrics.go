// Package metrics exposes Prometheus collectors for the paste lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PastesCreated counts stored pastes by exposure.
	PastesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pastemate_pastes_created_total",
		Help: "Total number of pastes created by exposure",
	}, []string{"exposure"})

	// PastesBurned counts burn-after-read deletions.
	PastesBurned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastemate_pastes_burned_total",
		Help: "Total number of pastes deleted after their first read",
	})

	// PastesExpired counts pastes removed by the expiration sweep.
	PastesExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastemate_pastes_expired_total",
		Help: "Total number of pastes removed by the expiration sweep",
	})

	// PasswordAttempts counts password submissions by result.
	PasswordAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pastemate_password_attempts_total",
		Help: "Password submissions for protected pastes by result",
	}, []string{"result"})

	// EmbedImageFailures counts embed renders that degraded to no image.
	EmbedImageFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastemate_embed_image_failures_total",
		Help: "Embeddable image generations that failed and were skipped",
	})

	// ReportsFiled counts reports submitted against pastes.
	ReportsFiled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastemate_reports_filed_total",
		Help: "Total number of paste reports filed",
	})

	// HTTPRequestDuration records handler latency by route and status.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pastemate_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
