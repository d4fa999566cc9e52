package http

import (
	"errors"
	"net/http"

	"options-analytics/internal/dto"
	"options-analytics/internal/pricing"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupPricing(base *echo.Group) {
	v1 := base.Group("/v1/pricing")
	{
		v1.POST("/price", h.PriceOption)
		v1.POST("/implied-vol", h.ImpliedVolatility)
	}
}

func (h *HttpAPIHandler) PriceOption(c echo.Context) error {
	var req dto.PriceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid request body"))
	}
	if err := h.validator.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	result, err := h.service.PricingService.Price(c.Request().Context(), req.ToContract())
	if err != nil {
		return c.JSON(pricingErrorStatus(err), dto.NewBaseResponse(pricingErrorStatus(err), err.Error(), nil))
	}

	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Priced option contract", result))
}

func (h *HttpAPIHandler) ImpliedVolatility(c echo.Context) error {
	var req dto.ImpliedVolRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid request body"))
	}
	if err := h.validator.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	result, err := h.service.PricingService.ImpliedVolatility(c.Request().Context(), req.ToContract(), req.MarketPrice)
	if err != nil {
		return c.JSON(pricingErrorStatus(err), dto.NewBaseResponse(pricingErrorStatus(err), err.Error(), nil))
	}

	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Solved implied volatility", result))
}

func pricingErrorStatus(err error) int {
	switch {
	case errors.Is(err, pricing.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, pricing.ErrNoConvergence):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
