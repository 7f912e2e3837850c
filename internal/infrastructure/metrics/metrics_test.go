package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	require.NotNil(t, timer)

	time.Sleep(20 * time.Millisecond)
	assert.GreaterOrEqual(t, timer.Duration(), 20*time.Millisecond)
}

func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "test_duration_seconds",
		Help: "Test duration histogram",
	})

	NewTimer().ObserveDuration(histogram)
	assert.Equal(t, 1, testutil.CollectAndCount(histogram))
}

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(BroadcastDeliveries.WithLabelValues("test"))
	BroadcastDeliveries.WithLabelValues("test").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(BroadcastDeliveries.WithLabelValues("test")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	MessagesReceived.WithLabelValues("text").Add(0)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "smartslides_ws_connections_active"))
	assert.True(t, strings.Contains(body, "smartslides_ws_messages_received_total"))
}
