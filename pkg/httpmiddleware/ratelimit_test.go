package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func limited(t *testing.T, h http.Handler, remoteAddr string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit(t *testing.T) {
	t.Run("under limit", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{Max: 5, Window: time.Minute})(okHandler())
		for i := range 5 {
			w := limited(t, h, "192.168.1.1:12345", nil)
			assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
			assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
			assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
		}
	})

	t.Run("over limit", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())
		for range 2 {
			require.Equal(t, http.StatusOK, limited(t, h, "10.0.0.1:9999", nil).Code)
		}

		w := limited(t, h, "10.0.0.1:9999", nil)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("Retry-After"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "rate limit exceeded", body["message"])
	})

	t.Run("keys are independent", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())
		assert.Equal(t, http.StatusOK, limited(t, h, "10.0.0.1:1234", nil).Code)
		assert.Equal(t, http.StatusOK, limited(t, h, "10.0.0.2:1234", nil).Code)
		// Same IP, different port: still the same key.
		assert.Equal(t, http.StatusTooManyRequests, limited(t, h, "10.0.0.1:5678", nil).Code)
	})

	t.Run("custom key func", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{
			Max:    1,
			Window: time.Minute,
			KeyFunc: func(r *http.Request) string {
				return r.Header.Get("X-API-Key")
			},
		})(okHandler())

		assert.Equal(t, http.StatusOK, limited(t, h, "1.2.3.4:1", map[string]string{"X-API-Key": "key-a"}).Code)
		assert.Equal(t, http.StatusTooManyRequests, limited(t, h, "1.2.3.4:1", map[string]string{"X-API-Key": "key-a"}).Code)
		assert.Equal(t, http.StatusOK, limited(t, h, "1.2.3.4:1", map[string]string{"X-API-Key": "key-b"}).Code)
	})

	t.Run("x-forwarded-for wins over remote addr", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())
		xff := map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}
		assert.Equal(t, http.StatusOK, limited(t, h, "192.168.1.1:4444", xff).Code)
		assert.Equal(t, http.StatusTooManyRequests, limited(t, h, "192.168.1.2:5555", xff).Code)
	})
}
