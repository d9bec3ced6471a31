package httpserv

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Middleware(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	handler := limiter.Middleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	call := func(remoteAddr string) int {
		request := httptest.NewRequest(http.MethodPost, "/case_manager_login", nil)
		request.RemoteAddr = remoteAddr
		response := httptest.NewRecorder()
		handler(response, request)
		return response.Code
	}

	t.Run("burst is allowed, then rejected", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, call("10.0.0.1:1234"))
		assert.Equal(t, http.StatusNoContent, call("10.0.0.1:1235"))
		assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:1236"))
	})
	t.Run("other clients are not affected", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, call("10.0.0.2:1234"))
	})
	t.Run("tokens are replenished", func(t *testing.T) {
		now = now.Add(time.Second)
		assert.Equal(t, http.StatusNoContent, call("10.0.0.1:1234"))
	})
	t.Run("idle limiters are pruned", func(t *testing.T) {
		now = now.Add(limiterIdleTimeout + time.Second)
		limiter.Allow("10.0.0.3")
		require.Len(t, limiter.limiters, 1)
	})
}
