package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Lock backends reported on the lock wait histogram.
const (
	LockBackendAdvisory = "advisory"
	LockBackendLocal    = "local"
	LockBackendRedis    = "redis"
)

// BillingMetrics captures pay application lifecycle signals.
type BillingMetrics struct {
	payAppsCreated     prometheus.Counter
	transitions        *prometheus.CounterVec
	transitionRejected *prometheus.CounterVec
	lienWaivers        *prometheus.CounterVec
	overBilling        *prometheus.CounterVec
	lockWait           *prometheus.HistogramVec
	serializationRetry prometheus.Counter
}

var (
	billingMetricsOnce sync.Once
	billingMetrics     *BillingMetrics
)

// Billing returns the process-wide billing metrics.
func Billing() *BillingMetrics {
	return BillingWithConfig(Config{})
}

// BillingWithConfig returns the process-wide billing metrics, registering them on first use.
func BillingWithConfig(cfg Config) *BillingMetrics {
	billingMetricsOnce.Do(func() {
		billingMetrics = newBillingMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return billingMetrics
}

// ResetBillingMetricsForTest drops the singleton so the next call re-registers.
func ResetBillingMetricsForTest() {
	billingMetricsOnce = sync.Once{}
	billingMetrics = nil
}

func newBillingMetrics(registerer prometheus.Registerer, cfg Config) *BillingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	labels := constLabels(cfg)

	m := &BillingMetrics{
		payAppsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "progresspay_pay_applications_created_total",
			Help:        "Pay applications created.",
			ConstLabels: labels,
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "progresspay_pay_application_transitions_total",
			Help:        "Pay application status transitions by from and to status.",
			ConstLabels: labels,
		}, []string{"from", "to"}),
		transitionRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "progresspay_pay_application_transitions_rejected_total",
			Help:        "Rejected pay application transitions by reason.",
			ConstLabels: labels,
		}, []string{"reason"}),
		lienWaivers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "progresspay_lien_waivers_recorded_total",
			Help:        "Lien waivers recorded by waiver type.",
			ConstLabels: labels,
		}, []string{"waiver_type"}),
		overBilling: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "progresspay_over_billing_total",
			Help:        "Line items billed beyond their scheduled value, by policy outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		lockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "progresspay_project_lock_wait_seconds",
			Help:        "Time spent waiting for the per-project lock.",
			ConstLabels: labels,
			Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"backend"}),
		serializationRetry: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "progresspay_serialization_retries_total",
			Help:        "Transactions retried after a serialization failure.",
			ConstLabels: labels,
		}),
	}

	registerer.MustRegister(
		m.payAppsCreated,
		m.transitions,
		m.transitionRejected,
		m.lienWaivers,
		m.overBilling,
		m.lockWait,
		m.serializationRetry,
	)
	return m
}

func constLabels(cfg Config) prometheus.Labels {
	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = "progresspay"
	}
	env := strings.TrimSpace(cfg.Environment)
	if env == "" {
		env = "unknown"
	}
	return prometheus.Labels{"service": service, "env": env}
}

func (m *BillingMetrics) IncPayApplicationCreated() {
	if m == nil {
		return
	}
	m.payAppsCreated.Inc()
}

func (m *BillingMetrics) IncTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *BillingMetrics) IncTransitionRejected(reason string) {
	if m == nil {
		return
	}
	m.transitionRejected.WithLabelValues(reason).Inc()
}

func (m *BillingMetrics) IncLienWaiver(waiverType string) {
	if m == nil {
		return
	}
	m.lienWaivers.WithLabelValues(waiverType).Inc()
}

// IncOverBilling counts an over-billed line item; outcome is "warn" or "reject".
func (m *BillingMetrics) IncOverBilling(outcome string) {
	if m == nil {
		return
	}
	m.overBilling.WithLabelValues(outcome).Inc()
}

func (m *BillingMetrics) ObserveLockWait(backend string, d time.Duration) {
	if m == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	m.lockWait.WithLabelValues(backend).Observe(d.Seconds())
}

func (m *BillingMetrics) IncSerializationRetry() {
	if m == nil {
		return
	}
	m.serializationRetry.Inc()
}
