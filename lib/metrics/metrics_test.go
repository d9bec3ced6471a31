package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrument(t *testing.T) {
	handler := Instrument("GET /api/veterans")(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET /api/veterans", "401"))

	handler(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/veterans", nil))

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET /api/veterans", "401"))
	assert.Equal(t, before+1, after)
}

func TestHandler(t *testing.T) {
	UpstreamRequests.WithLabelValues("Patient", "200").Inc()
	server := httptest.NewServer(Handler())
	defer server.Close()

	response, err := http.Get(server.URL)
	require.NoError(t, err)
	defer response.Body.Close()
	data, _ := io.ReadAll(response.Body)
	assert.Contains(t, string(data), `vetconnect_upstream_requests_total{outcome="200",resource="Patient"}`)
}
