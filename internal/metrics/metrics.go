package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ShopMetrics 支付与结账指标，registerer 为空时所有方法为空操作。
type ShopMetrics struct {
	gatherer        prometheus.Gatherer
	callbacks       *prometheus.CounterVec
	checkouts       *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
}

// NewShopMetrics 在 registerer 上注册指标
func NewShopMetrics(reg prometheus.Registerer) *ShopMetrics {
	if reg == nil {
		return &ShopMetrics{}
	}
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_callback_total",
		Help: "Payment callbacks grouped by reconciliation outcome.",
	}, []string{"outcome"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_initiated_total",
		Help: "Checkout initiations grouped by result.",
	}, []string{"result"})
	gatewayDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_request_duration_seconds",
		Help:    "Duration of outbound payment gateway requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(callbacks, checkouts, gatewayDuration)

	m := &ShopMetrics{
		callbacks:       callbacks,
		checkouts:       checkouts,
		gatewayDuration: gatewayDuration,
	}
	if gatherer, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = gatherer
	}
	return m
}

// IncCallback 记录回调结果
func (m *ShopMetrics) IncCallback(outcome string) {
	if m == nil || m.callbacks == nil {
		return
	}
	m.callbacks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncCheckout 记录结账结果
func (m *ShopMetrics) IncCheckout(result string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(result)).Inc()
}

// ObserveGateway 记录网关请求耗时
func (m *ShopMetrics) ObserveGateway(operation string, duration time.Duration) {
	if m == nil || m.gatewayDuration == nil {
		return
	}
	m.gatewayDuration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// Handler 返回 /metrics 处理器；未绑定 gatherer 时使用默认注册表。
func (m *ShopMetrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
