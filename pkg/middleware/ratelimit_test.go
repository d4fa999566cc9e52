package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"options-analytics/internal/dto"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(NewRateLimiterMiddleware(1, 1))
	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	first := do()
	assert.Equal(t, http.StatusOK, first.Code)

	// The single-token burst is spent, the next request is denied with the
	// standard response envelope.
	second := do()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	var body dto.BaseResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &body))
	assert.Equal(t, http.StatusTooManyRequests, body.Code)
	assert.Contains(t, body.Message, "Too many requests")
}
