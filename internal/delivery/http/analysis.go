package http

import (
	"errors"
	"net/http"
	"strconv"

	"options-analytics/internal/dto"
	"options-analytics/internal/pricing"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupAnalysis(base *echo.Group) {
	v1 := base.Group("/v1/analysis")
	{
		v1.GET("/:symbol", h.AnalyzeSymbol)
		v1.GET("/:symbol/history", h.SnapshotHistory)
	}
}

func (h *HttpAPIHandler) AnalyzeSymbol(c echo.Context) error {
	symbol := c.Param("symbol")
	if symbol == "" {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("symbol is required"))
	}

	param := dto.AnalyzeParam{
		Symbol:       symbol,
		HistoryRange: c.QueryParam("range"),
	}

	// expiry selects one unix-timestamped expiration, "all" sweeps every
	// listed one, absent means the nearest.
	if raw := c.QueryParam("expiry"); raw != "" {
		if raw == "all" {
			param.AllExpirations = true
		} else {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("expiry must be a unix timestamp or \"all\""))
			}
			param.Expiration = parsed
		}
	}

	if param.AllExpirations {
		sweep, err := h.service.AnalysisService.AnalyzeAllExpirations(c.Request().Context(), param)
		if err != nil {
			return analysisErrorResponse(c, err)
		}
		return c.JSON(http.StatusOK, dto.NewSuccessResponse("Analyzed option chains for all expirations", sweep))
	}

	analysis, err := h.service.AnalysisService.Analyze(c.Request().Context(), param)
	if err != nil {
		return analysisErrorResponse(c, err)
	}

	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Analyzed option chain", analysis))
}

func analysisErrorResponse(c echo.Context, err error) error {
	if errors.Is(err, pricing.ErrInvalidInput) {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}
	// Everything else is an upstream market-data failure.
	return c.JSON(http.StatusBadGateway, dto.NewBaseResponse(http.StatusBadGateway, err.Error(), nil))
}

func (h *HttpAPIHandler) SnapshotHistory(c echo.Context) error {
	symbol := c.Param("symbol")
	if symbol == "" {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("symbol is required"))
	}

	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("limit must be a positive integer"))
		}
		limit = parsed
	}

	snapshots, err := h.service.AnalysisService.GetSnapshots(c.Request().Context(), symbol, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, err.Error(), nil))
	}

	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Fetched analysis snapshots", snapshots))
}
