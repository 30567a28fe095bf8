package monitoring

import (
	"log"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ipnNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipn_notifications_total",
			Help: "IPN deliveries by reconciliation outcome",
		},
		[]string{"outcome"},
	)

	gatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Outbound payment gateway calls",
		},
		[]string{"operation", "status"},
	)

	gatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Duration of outbound payment gateway calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"operation"},
	)

	pendingPurchases = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pending_purchases_total",
			Help: "Purchases still waiting for a gateway outcome",
		},
	)

	artifactDownloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_artifact_downloads_total",
			Help: "Ticket artifact downloads by kind",
		},
		[]string{"kind"},
	)
)

// TrackIPNNotification records the outcome of one IPN delivery.
func TrackIPNNotification(outcome string) {
	ipnNotifications.WithLabelValues(outcome).Inc()
}

// TrackGatewayRequest records one outbound gateway call.
func TrackGatewayRequest(operation string, duration time.Duration, success bool) {
	status := "ok"
	if !success {
		status = "error"
	}
	gatewayRequests.WithLabelValues(operation, status).Inc()
	gatewayRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// TrackArtifactDownload records one ticket artifact download.
func TrackArtifactDownload(kind string) {
	artifactDownloads.WithLabelValues(kind).Inc()
}

type Monitor struct {
	app core.App
}

func NewMonitor(app core.App) *Monitor {
	monitor := &Monitor{app: app}

	// Start metrics collection
	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.collectPurchaseMetrics()
	}
}

func (m *Monitor) collectPurchaseMetrics() {
	var count int
	err := m.app.DB().
		NewQuery("SELECT COUNT(*) FROM ticket_purchases WHERE payment_status = 'pending'").
		Row(&count)
	if err != nil {
		log.Printf("collectPurchaseMetrics: %v", err)
		return
	}

	pendingPurchases.Set(float64(count))
}
