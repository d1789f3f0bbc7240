package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestInitWithWriter_AddsServiceField(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("reviews-service", "info", &buf)

	Info().Str("product_id", "p-1").Msg("rating recomputed")

	entry := lastLine(t, &buf)
	assert.Equal(t, "reviews-service", entry["service"])
	assert.Equal(t, "p-1", entry["product_id"])
	assert.Equal(t, "info", entry["level"])
	assert.Contains(t, entry, "time")
}

func TestInitWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("reviews-service", "warn", &buf)

	Info().Msg("hidden")
	Debug().Msg("hidden")
	assert.Empty(t, buf.String())

	Warn().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestInitWithWriter_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("reviews-service", "not-a-level", &buf)

	Debug().Msg("hidden")
	Info().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestGinLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name          string
		status        int
		requestID     string
		expectedLevel string
	}{
		{name: "success is info", status: http.StatusOK, expectedLevel: "info"},
		{name: "client error is warn", status: http.StatusBadRequest, expectedLevel: "warn"},
		{name: "server error is error", status: http.StatusInternalServerError, expectedLevel: "error"},
		{name: "incoming request id is kept", status: http.StatusOK, requestID: "req-42", expectedLevel: "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			InitWithWriter("test", "debug", &buf)

			router := gin.New()
			router.Use(GinLoggerMiddleware())
			router.GET("/reviews", func(c *gin.Context) {
				c.Status(tt.status)
			})

			req := httptest.NewRequest(http.MethodGet, "/reviews?productId=abc", nil)
			if tt.requestID != "" {
				req.Header.Set(RequestIDHeader, tt.requestID)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			entry := lastLine(t, &buf)
			assert.Equal(t, tt.expectedLevel, entry["level"])
			assert.Equal(t, "/reviews", entry["path"])
			assert.Equal(t, "productId=abc", entry["query"])
			assert.Equal(t, float64(tt.status), entry["status"])

			headerID := w.Header().Get(RequestIDHeader)
			assert.NotEmpty(t, headerID)
			assert.Equal(t, headerID, entry["request_id"])
			if tt.requestID != "" {
				assert.Equal(t, tt.requestID, headerID)
			}
		})
	}
}
