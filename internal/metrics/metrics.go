// Package metrics holds the Prometheus collectors served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AdsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automark_ads_generated_total",
		Help: "Ads successfully generated, by mode.",
	}, []string{"type"})

	GenerationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automark_generation_failures_total",
		Help: "Failed generation requests, by mode.",
	}, []string{"type"})

	GenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "automark_generation_duration_seconds",
		Help:    "Backend generation latency, by mode.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"type"})

	InstagramPosts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automark_instagram_posts_total",
		Help: "Instagram post attempts, by post type and result.",
	}, []string{"post_type", "result"})

	ImagesDownloaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "automark_images_downloaded_total",
		Help: "Generated images saved to the download directory.",
	})

	ActivityArchived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automark_activity_archived_total",
		Help: "Activity events handled by the archive worker, by result.",
	}, []string{"result"})
)
