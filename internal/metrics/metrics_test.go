package metrics

import (
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestShopMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewShopMetrics(reg)
	m.IncCallback("processed")
	m.IncCallback("processed")
	m.IncCallback("")
	m.IncCheckout("success")
	m.ObserveGateway("cashier_create", 120*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "payment_callback_total", "outcome", "processed"); err != nil || got != 2 {
		t.Fatalf("expected processed=2, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "payment_callback_total", "outcome", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected unknown=1, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "checkout_initiated_total", "result", "success"); err != nil || got != 1 {
		t.Fatalf("expected success=1, got %f err=%v", got, err)
	}
}

func TestShopMetricsNilSafe(t *testing.T) {
	var m *ShopMetrics
	m.IncCallback("processed")
	m.IncCheckout("success")
	m.ObserveGateway("cashier_create", time.Second)

	empty := NewShopMetrics(nil)
	empty.IncCallback("processed")
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewShopMetrics(reg)
	m.IncCheckout("gateway_error")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `checkout_initiated_total{result="gateway_error"} 1`) {
		t.Fatalf("metrics output missing counter: %s", body)
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == label && pair.GetValue() == value {
					return metric.GetCounter().GetValue(), nil
				}
			}
		}
		return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
	}
	return 0, fmt.Errorf("metric %q not found", name)
}
