package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	ExpensesRecorded    prometheus.Counter
	SettlementsFinished *prometheus.CounterVec
	GatewayRequests     *prometheus.CounterVec
	GatewayLatency      *prometheus.HistogramVec
	AuthCacheHits       prometheus.Counter
	AuthCacheMisses     prometheus.Counter
	StuckSettlements    prometheus.Counter
}

// New creates all metrics and registers them with the default registry
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates all metrics against the given registerer. Tests use a
// fresh registry so parallel packages never collide on registration.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ExpensesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "splitpay_expenses_recorded_total",
			Help: "Total number of expenses recorded",
		}),
		SettlementsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "splitpay_settlements_finished_total",
			Help: "Settlements reaching a terminal state, by outcome",
		}, []string{"outcome"}),
		GatewayRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "splitpay_gateway_requests_total",
			Help: "Payment gateway calls, by operation and result",
		}, []string{"operation", "result"}),
		GatewayLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "splitpay_gateway_request_duration_seconds",
			Help:    "Payment gateway call latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		AuthCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "splitpay_auth_cache_hits_total",
			Help: "Credential cache hits",
		}),
		AuthCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "splitpay_auth_cache_misses_total",
			Help: "Credential cache misses",
		}),
		StuckSettlements: factory.NewCounter(prometheus.CounterOpts{
			Name: "splitpay_stuck_settlements_failed_total",
			Help: "Settlements failed by the deadline sweep",
		}),
	}
}
