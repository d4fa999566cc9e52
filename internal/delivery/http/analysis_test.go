package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"options-analytics/internal/dto"
	"options-analytics/internal/model"
	"options-analytics/internal/service"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAnalysisService struct {
	lastParam dto.AnalyzeParam
	sweeps    int
	singles   int
}

func (s *stubAnalysisService) Analyze(_ context.Context, param dto.AnalyzeParam) (*dto.OptionAnalysis, error) {
	s.lastParam = param
	s.singles++
	return &dto.OptionAnalysis{Symbol: param.Symbol}, nil
}

func (s *stubAnalysisService) AnalyzeAllExpirations(_ context.Context, param dto.AnalyzeParam) (*dto.OptionSweep, error) {
	s.lastParam = param
	s.sweeps++
	return &dto.OptionSweep{
		Symbol: param.Symbol,
		Expirations: []dto.OptionAnalysis{
			{Symbol: param.Symbol},
			{Symbol: param.Symbol},
		},
	}, nil
}

func (s *stubAnalysisService) GetSnapshots(context.Context, string, int) ([]model.OptionSnapshot, error) {
	return nil, nil
}

func newAnalysisTestHandler(t *testing.T) (*stubAnalysisService, *echo.Echo) {
	t.Helper()

	stub := &stubAnalysisService{}
	services := &service.Service{AnalysisService: stub}

	e := echo.New()
	handler := NewHttpAPIHandler(context.Background(), e, goValidator.New(), services)
	handler.SetupAnalysis(e.Group("/api"))
	return stub, e
}

func getRequest(e *echo.Echo, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeSymbol(t *testing.T) {
	t.Run("nearest expiry by default", func(t *testing.T) {
		stub, e := newAnalysisTestHandler(t)

		rec := getRequest(e, "/api/v1/analysis/AAPL?range=6m")
		require.Equal(t, http.StatusOK, rec.Code)

		assert.Equal(t, 1, stub.singles)
		assert.Equal(t, "AAPL", stub.lastParam.Symbol)
		assert.Equal(t, int64(0), stub.lastParam.Expiration)
		assert.Equal(t, "6m", stub.lastParam.HistoryRange)
	})

	t.Run("specific expiry", func(t *testing.T) {
		stub, e := newAnalysisTestHandler(t)

		rec := getRequest(e, "/api/v1/analysis/AAPL?expiry=1702592000")
		require.Equal(t, http.StatusOK, rec.Code)

		assert.Equal(t, 1, stub.singles)
		assert.Equal(t, int64(1702592000), stub.lastParam.Expiration)
	})

	t.Run("expiry=all sweeps every expiration", func(t *testing.T) {
		stub, e := newAnalysisTestHandler(t)

		rec := getRequest(e, "/api/v1/analysis/AAPL?expiry=all")
		require.Equal(t, http.StatusOK, rec.Code)

		assert.Equal(t, 1, stub.sweeps)
		assert.Equal(t, 0, stub.singles)
		assert.True(t, stub.lastParam.AllExpirations)

		var resp dto.BaseResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		data, ok := resp.Data.(map[string]interface{})
		require.True(t, ok)
		expirations, ok := data["expirations"].([]interface{})
		require.True(t, ok)
		assert.Len(t, expirations, 2)
	})

	t.Run("rejects a malformed expiry", func(t *testing.T) {
		stub, e := newAnalysisTestHandler(t)

		rec := getRequest(e, "/api/v1/analysis/AAPL?expiry=tomorrow")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, 0, stub.singles+stub.sweeps)
	})
}
