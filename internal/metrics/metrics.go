// Package metrics declares the Prometheus collectors shared by the relay
// components. Collectors are registered on the default registry and served
// by the player server at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransfersTotal counts finished pipeline runs by outcome
	// (completed, degraded, size_limit, download_failed, upload_failed, timeout).
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_transfers_total",
			Help: "Finished transfer pipeline runs by outcome",
		},
		[]string{"result"},
	)

	// TransferBytesTotal counts bytes moved by direction (download, upload).
	TransferBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_transfer_bytes_total",
			Help: "Bytes moved by the transfer pipeline",
		},
		[]string{"direction"},
	)

	// StageDuration observes how long each pipeline stage took.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_stage_duration_seconds",
			Help:    "Duration of transfer pipeline stages",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	// MultipartPartsTotal counts uploaded multipart parts by result.
	MultipartPartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_multipart_parts_total",
			Help: "Multipart upload parts by result",
		},
		[]string{"result"},
	)

	// ProgressUpdatesTotal counts progress sink calls by outcome
	// (sent, rate_limited, failed, backoff, busy).
	ProgressUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_progress_updates_total",
			Help: "Progress message updates by outcome",
		},
		[]string{"outcome"},
	)

	// CallbackEntries is the current size of the callback registry.
	CallbackEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_callback_entries",
			Help: "Entries currently held by the callback registry",
		},
	)

	// PlayerRequestsTotal counts player server requests by route and status.
	PlayerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_player_requests_total",
			Help: "Player server HTTP requests",
		},
		[]string{"route", "status"},
	)
)
