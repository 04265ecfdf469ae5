// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	RegisterMetricsEndpoint(router)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# HELP")
}

func TestRecordLockAcquire(t *testing.T) {
	before := testutil.ToFloat64(LockAcquireTotal.WithLabelValues("expiring", "acquired"))

	RecordLockAcquire("expiring", "acquired")
	RecordLockAcquire("expiring", "acquired")

	after := testutil.ToFloat64(LockAcquireTotal.WithLabelValues("expiring", "acquired"))
	assert.Equal(t, before+2, after)
}

func TestRecordLockRelease(t *testing.T) {
	before := testutil.ToFloat64(LockReleaseTotal.WithLabelValues("lease"))
	RecordLockRelease("lease")
	assert.Equal(t, before+1, testutil.ToFloat64(LockReleaseTotal.WithLabelValues("lease")))
}

func TestRecordActionThrottled(t *testing.T) {
	before := testutil.ToFloat64(ActionsThrottled.WithLabelValues("login"))
	RecordActionThrottled("login")
	assert.Equal(t, before+1, testutil.ToFloat64(ActionsThrottled.WithLabelValues("login")))
}

func TestRecordReferenceUnderflow(t *testing.T) {
	before := testutil.ToFloat64(ReferenceUnderflows)
	RecordReferenceUnderflow()
	assert.Equal(t, before+1, testutil.ToFloat64(ReferenceUnderflows))
}

func TestRecordHistograms(t *testing.T) {
	// This should not panic
	RecordLeaseWait("obtained", 0.002)
	RecordLeaseWait("failed", 1.5)
	RecordJobWait("completed", 0.3)
	RecordJobWait("timeout", 60)
	RecordReferenceStoreError("increase")
	RecordHTTPRequest("GET", "/health", "200")
	RecordHTTPRequestDuration("GET", "/health", 0.001)
}

func TestMetricsAreRegistered(t *testing.T) {
	metrics := []prometheus.Collector{
		LockAcquireTotal,
		LockReleaseTotal,
		LeaseWaitDuration,
		ActionsThrottled,
		ReferenceUnderflows,
		ReferenceStoreErrors,
		JobWaitDuration,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	}

	for _, metric := range metrics {
		assert.NotNil(t, metric)
	}
}
