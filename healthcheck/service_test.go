package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error {
	return f(ctx)
}

func TestHandleHealthCheck(t *testing.T) {
	type testCase struct {
		name     string
		ping     error
		status   int
		expected string
	}
	for _, tc := range []testCase{
		{name: "up", status: http.StatusOK, expected: "up"},
		{name: "database down", ping: errors.New("closed"), status: http.StatusServiceUnavailable, expected: "down"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			service := New(pingerFunc(func(context.Context) error { return tc.ping }))
			mux := http.NewServeMux()
			service.RegisterHandlers(mux)
			req, _ := http.NewRequest(http.MethodGet, "/health", nil)
			rec := httptest.NewRecorder()

			mux.ServeHTTP(rec, req)

			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var response map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
			require.Equal(t, map[string]string{"status": tc.expected}, response)
		})
	}
}
