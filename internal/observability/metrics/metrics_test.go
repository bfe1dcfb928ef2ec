package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("org_id", "123"),
		attribute.String("pay_application_id", "456"),
		attribute.String("waiver_type", "conditional_partial"),
	)
	assert.Len(t, attrs, 2)
	for _, attr := range attrs {
		assert.NotEqual(t, attribute.Key("pay_application_id"), attr.Key)
	}
}

func TestBillingMetricsCountTransitions(t *testing.T) {
	m := newBillingMetrics(prometheus.NewRegistry(), Config{ServiceName: "progresspay", Environment: "test"})

	m.IncTransition("draft", "submitted")
	m.IncTransition("draft", "submitted")
	m.IncTransition("submitted", "certified")
	m.IncPayApplicationCreated()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.transitions.WithLabelValues("draft", "submitted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.transitions.WithLabelValues("submitted", "certified")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.payAppsCreated))
}

func TestBillingMetricsLockWaitClampsNegative(t *testing.T) {
	m := newBillingMetrics(prometheus.NewRegistry(), Config{})
	m.ObserveLockWait(LockBackendLocal, -time.Second)
	assert.Equal(t, 1, testutil.CollectAndCount(m.lockWait))
}

func TestNilBillingMetricsIsSafe(t *testing.T) {
	var m *BillingMetrics
	assert.NotPanics(t, func() {
		m.IncTransition("draft", "submitted")
		m.IncOverBilling("warn")
		m.ObserveLockWait(LockBackendRedis, time.Millisecond)
	})
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newHTTPMetrics(prometheus.NewRegistry(), Config{})
	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/api/sov-items/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/sov-items/1", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("/api/sov-items/:id", http.MethodGet, "404")))
}
