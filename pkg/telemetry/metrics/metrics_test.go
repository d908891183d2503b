package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"quantra-hq/hermes/pkg/config"
)

func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:   true,
		Namespace: "hermes",
		Subsystem: "gateway",
	}
}

func gatherNames(t *testing.T, registry *prometheus.Registry) map[string]bool {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	return names
}

func TestCollectorRegistersAllMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(testConfig(), registry)

	// Touch one metric from each group so vectors materialize.
	collector.SetConnectionsActive("authenticated", 3)
	collector.ConnectionRegistered()
	collector.ConnectionEvicted("per-user limit")
	collector.ConnectionReaped()
	collector.FrameReceived("ai_chat")
	collector.FrameSent("ai_stream_chunk")
	collector.SendError()
	collector.RecordStream("success", time.Second)
	collector.StreamChunk()
	collector.StreamRetry("rate_limited")
	collector.StreamFallback("success")
	collector.SetAccountsFailed(1)

	names := gatherNames(t, registry)
	want := []string{
		"hermes_gateway_connections_active",
		"hermes_gateway_connections_registered_total",
		"hermes_gateway_connections_evicted_total",
		"hermes_gateway_connections_reaped_total",
		"hermes_gateway_frames_received_total",
		"hermes_gateway_frames_sent_total",
		"hermes_gateway_send_errors_total",
		"hermes_gateway_streams_total",
		"hermes_gateway_stream_duration_seconds",
		"hermes_gateway_stream_chunks_total",
		"hermes_gateway_stream_retries_total",
		"hermes_gateway_stream_fallbacks_total",
		"hermes_gateway_accounts_failed",
	}
	for _, name := range want {
		if !names[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestCollectorDisabledIsNoop(t *testing.T) {
	registry := prometheus.NewRegistry()
	cfg := testConfig()
	cfg.Enabled = false
	collector := NewCollector(cfg, registry)

	collector.ConnectionRegistered()
	collector.RecordStream("success", time.Second)
	collector.StreamChunk()

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			if m.GetCounter() != nil && m.GetCounter().GetValue() != 0 {
				t.Errorf("metric %s recorded while disabled", fam.GetName())
			}
		}
	}
}

func TestCollectorDefaults(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(&config.MetricsConfig{Enabled: true}, registry)

	collector.ConnectionRegistered()

	names := gatherNames(t, registry)
	if !names["hermes_gateway_connections_registered_total"] {
		t.Error("expected default namespace/subsystem hermes_gateway")
	}
}

func TestHandlerServesExposition(t *testing.T) {
	collector := NewCollector(testConfig(), nil)
	collector.StreamRetry("timeout")

	srv := httptest.NewServer(collector.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "hermes_gateway_stream_retries_total") {
		t.Errorf("exposition missing retry counter:\n%s", body)
	}
}
