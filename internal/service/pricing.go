package service

import (
	"context"
	"errors"

	"options-analytics/config"
	"options-analytics/internal/dto"
	"options-analytics/internal/pricing"
	"options-analytics/pkg/logger"
)

type PricingService interface {
	Price(ctx context.Context, contract dto.OptionContract) (*dto.PricingResult, error)
	ImpliedVolatility(ctx context.Context, contract dto.OptionContract, marketPrice float64) (*dto.ImpliedVolResponse, error)
}

type pricingService struct {
	cfg *config.Config
	log *logger.Logger
}

func NewPricingService(cfg *config.Config, log *logger.Logger) PricingService {
	return &pricingService{
		cfg: cfg,
		log: log,
	}
}

func (s *pricingService) Price(ctx context.Context, contract dto.OptionContract) (*dto.PricingResult, error) {
	result, err := pricing.Price(contract)
	if err != nil {
		if !errors.Is(err, pricing.ErrInvalidInput) {
			s.log.ErrorContext(ctx, "Failed to price contract", logger.ErrorField(err))
		}
		return nil, err
	}

	s.log.DebugContext(ctx, "Priced contract",
		logger.StringField("type", string(contract.Type)),
		logger.Float64Field("strike", contract.Strike),
		logger.Float64Field("price", result.Price),
	)

	return &result, nil
}

func (s *pricingService) ImpliedVolatility(ctx context.Context, contract dto.OptionContract, marketPrice float64) (*dto.ImpliedVolResponse, error) {
	sol, err := pricing.ImpliedVolatility(contract, marketPrice)
	if err != nil {
		return nil, err
	}

	if !sol.Converged {
		s.log.WarnContext(ctx, "Implied volatility solver hit iteration cap",
			logger.Float64Field("market_price", marketPrice),
			logger.Float64Field("best_estimate", sol.Vol),
		)
	}

	return &dto.ImpliedVolResponse{
		ImpliedVol: sol.Vol,
		Converged:  sol.Converged,
		Iterations: sol.Iterations,
	}, nil
}
