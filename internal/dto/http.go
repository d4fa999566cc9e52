package dto

import "net/http"

type BaseResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func NewBaseResponse(code int, message string, data interface{}) *BaseResponse {
	return &BaseResponse{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

func NewBadRequestResponse(message string) *BaseResponse {
	return NewBaseResponse(http.StatusBadRequest, message, nil)
}

func NewSuccessResponse(message string, data interface{}) *BaseResponse {
	return NewBaseResponse(http.StatusOK, message, data)
}

type PriceRequest struct {
	Spot         float64 `json:"spot" validate:"required,gt=0"`
	Strike       float64 `json:"strike" validate:"required,gt=0"`
	TimeToExpiry float64 `json:"time_to_expiry" validate:"gte=0"`
	Rate         float64 `json:"rate"`
	Volatility   float64 `json:"volatility" validate:"required,gt=0"`
	Type         string  `json:"type" validate:"required,oneof=call put"`
}

func (r PriceRequest) ToContract() OptionContract {
	return OptionContract{
		Spot:         r.Spot,
		Strike:       r.Strike,
		TimeToExpiry: r.TimeToExpiry,
		Rate:         r.Rate,
		Volatility:   r.Volatility,
		Type:         OptionType(r.Type),
	}
}

type ImpliedVolRequest struct {
	Spot         float64 `json:"spot" validate:"required,gt=0"`
	Strike       float64 `json:"strike" validate:"required,gt=0"`
	TimeToExpiry float64 `json:"time_to_expiry" validate:"gt=0"`
	Rate         float64 `json:"rate"`
	MarketPrice  float64 `json:"market_price" validate:"required,gt=0"`
	Type         string  `json:"type" validate:"required,oneof=call put"`
}

func (r ImpliedVolRequest) ToContract() OptionContract {
	return OptionContract{
		Spot:         r.Spot,
		Strike:       r.Strike,
		TimeToExpiry: r.TimeToExpiry,
		Rate:         r.Rate,
		Type:         OptionType(r.Type),
	}
}

type ImpliedVolResponse struct {
	ImpliedVol float64 `json:"implied_vol"`
	Converged  bool    `json:"converged"`
	Iterations int     `json:"iterations"`
}
