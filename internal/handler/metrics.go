package handler

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/shelfkit/shelfkit/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
//
// GET /metrics
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	for _, key := range sortedKeys(snap.WebhookEvents) {
		eventType, status, _ := strings.Cut(key, "|")
		writeMetric(w, "shelfkit_webhook_events_total{type=%q,status=%q} %d\n", eventType, status, snap.WebhookEvents[key])
	}
	writeMetric(w, "shelfkit_webhook_duration_seconds_count %d\n", snap.WebhookDurationCount)
	writeMetric(w, "shelfkit_webhook_duration_seconds_sum %.6f\n", float64(snap.WebhookDurationTotalNs)/1e9)

	writeLabeled(w, "shelfkit_purchase_resolutions_total", "kind", snap.PurchaseResolutions)
	writeMetric(w, "shelfkit_claims_linked_total %d\n", snap.ClaimsLinked)

	writeMetric(w, "shelfkit_products_created_total %d\n", snap.ProductsCreated)
	writeMetric(w, "shelfkit_products_updated_total %d\n", snap.ProductsUpdated)
	writeMetric(w, "shelfkit_products_deleted_total %d\n", snap.ProductsDeleted)
	writeLabeled(w, "shelfkit_checkout_sessions_total", "status", snap.CheckoutSessions)

	writeLabeled(w, "shelfkit_mail_deliveries_total", "status", snap.MailDeliveries)
	writeMetric(w, "shelfkit_mail_queue_depth %d\n", snap.MailQueueDepth)
}

func writeLabeled(w http.ResponseWriter, name, label string, values map[string]uint64) {
	for _, key := range sortedKeys(values) {
		writeMetric(w, "%s{%s=%q} %d\n", name, label, key, values[key])
	}
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
