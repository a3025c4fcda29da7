package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestStarted_RecordsCounter(t *testing.T) {
	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/health", "200"))

	done := RequestStarted()
	assert.Equal(t, float64(1), testutil.ToFloat64(httpInFlight))
	done("GET", "/api/health", http.StatusOK)

	assert.Equal(t, float64(0), testutil.ToFloat64(httpInFlight))
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/health", "200")))
}

func TestDBAndOAuthMetrics(t *testing.T) {
	SetDBConnectionState("mongo", 2)
	assert.Equal(t, float64(2), testutil.ToFloat64(dbConnectionState.WithLabelValues("mongo")))

	before := testutil.ToFloat64(oauthResolutions.WithLabelValues("created"))
	RecordOAuthResolution("created")
	assert.Equal(t, before+1, testutil.ToFloat64(oauthResolutions.WithLabelValues("created")))

	RecordDBConnectAttempt("mongo", "failure")
	assert.GreaterOrEqual(t, testutil.ToFloat64(dbConnectAttempts.WithLabelValues("mongo", "failure")), float64(1))
}

func TestHandler_ExposesRegistry(t *testing.T) {
	RecordOAuthResolution("existing")

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ecommerce_oauth_resolutions_total")
}
