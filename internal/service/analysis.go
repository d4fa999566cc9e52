package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"options-analytics/config"
	"options-analytics/internal/dto"
	"options-analytics/internal/model"
	"options-analytics/internal/pricing"
	"options-analytics/internal/repository"
	"options-analytics/pkg/cache"
	"options-analytics/pkg/common"
	"options-analytics/pkg/logger"
	"options-analytics/pkg/utils"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

type AnalysisService interface {
	// Analyze prices every quoted contract of one expiry against the
	// Black-Scholes theoretical value and flags large deviations.
	Analyze(ctx context.Context, param dto.AnalyzeParam) (*dto.OptionAnalysis, error)
	// AnalyzeAllExpirations runs Analyze across every listed expiry of the
	// symbol, fanning the chain fetches out concurrently.
	AnalyzeAllExpirations(ctx context.Context, param dto.AnalyzeParam) (*dto.OptionSweep, error)
	GetSnapshots(ctx context.Context, symbol string, limit int) ([]model.OptionSnapshot, error)
}

type analysisService struct {
	cfg           *config.Config
	log           *logger.Logger
	inmemoryCache cache.Cache
	quoteRepo     repository.QuoteRepository
	chainRepo     repository.OptionChainRepository
	snapshotRepo  repository.OptionSnapshotRepository
}

func NewAnalysisService(
	cfg *config.Config,
	log *logger.Logger,
	inmemoryCache cache.Cache,
	quoteRepo repository.QuoteRepository,
	chainRepo repository.OptionChainRepository,
	snapshotRepo repository.OptionSnapshotRepository,
) AnalysisService {
	return &analysisService{
		cfg:           cfg,
		log:           log,
		inmemoryCache: inmemoryCache,
		quoteRepo:     quoteRepo,
		chainRepo:     chainRepo,
		snapshotRepo:  snapshotRepo,
	}
}

// marketInputs are the chain-independent pricing inputs of a symbol, shared
// by every expiry.
type marketInputs struct {
	stockData    *dto.StockData
	histVol      float64
	riskFreeRate float64
}

func (s *analysisService) Analyze(ctx context.Context, param dto.AnalyzeParam) (*dto.OptionAnalysis, error) {
	if param.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", pricing.ErrInvalidInput)
	}
	if param.AllExpirations {
		return nil, fmt.Errorf("%w: use AnalyzeAllExpirations for an expiry sweep", pricing.ErrInvalidInput)
	}

	inputs, err := s.getMarketInputs(ctx, param.Symbol, param.HistoryRange)
	if err != nil {
		return nil, err
	}

	chain, err := s.getChain(ctx, param.Symbol, param.Expiration)
	if err != nil {
		return nil, fmt.Errorf("failed to get option chain for %s: %w", param.Symbol, err)
	}

	analysis, err := s.analyzeChain(ctx, chain, inputs)
	if err != nil {
		return nil, err
	}

	s.saveSnapshot(ctx, analysis)

	return analysis, nil
}

func (s *analysisService) AnalyzeAllExpirations(ctx context.Context, param dto.AnalyzeParam) (*dto.OptionSweep, error) {
	if param.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", pricing.ErrInvalidInput)
	}

	inputs, err := s.getMarketInputs(ctx, param.Symbol, param.HistoryRange)
	if err != nil {
		return nil, err
	}

	// The nearest chain carries the full expiration calendar.
	nearest, err := s.getChain(ctx, param.Symbol, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get option chain for %s: %w", param.Symbol, err)
	}

	expirations := nearest.ExpirationDates
	if len(expirations) == 0 {
		expirations = []int64{nearest.Expiration}
	}

	// One slot per expiry keeps the calendar order without locking.
	results := make([]*dto.OptionAnalysis, len(expirations))
	g, gCtx := errgroup.WithContext(ctx)
	for i, expiry := range expirations {
		g.Go(func() error {
			chain := nearest
			if expiry != nearest.Expiration {
				var err error
				chain, err = s.getChain(gCtx, param.Symbol, expiry)
				if err != nil {
					if gCtx.Err() != nil {
						return gCtx.Err()
					}
					s.log.WarnContext(gCtx, "Skipping expiry whose chain failed to load",
						logger.StringField("symbol", param.Symbol),
						logger.IntField("expiry", int(expiry)),
						logger.ErrorField(err),
					)
					return nil
				}
			}

			analysis, err := s.analyzeChain(gCtx, chain, inputs)
			if err != nil {
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				s.log.WarnContext(gCtx, "Skipping expiry that failed analysis",
					logger.StringField("symbol", param.Symbol),
					logger.IntField("expiry", int(expiry)),
					logger.ErrorField(err),
				)
				return nil
			}

			s.saveSnapshot(gCtx, analysis)
			results[i] = analysis
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sweep := &dto.OptionSweep{
		Symbol:        param.Symbol,
		RiskFreeRate:  inputs.riskFreeRate,
		HistoricalVol: inputs.histVol,
		AnalyzedAt:    utils.TimeNowMarket(),
	}
	for _, analysis := range results {
		if analysis == nil {
			continue
		}
		if sweep.SpotPrice == 0 {
			sweep.SpotPrice = analysis.SpotPrice
		}
		sweep.Expirations = append(sweep.Expirations, *analysis)
	}
	if len(sweep.Expirations) == 0 {
		return nil, fmt.Errorf("no expirations could be analyzed for %s", param.Symbol)
	}

	return sweep, nil
}

// getMarketInputs resolves the stock history, historical volatility and
// risk-free rate for a symbol.
func (s *analysisService) getMarketInputs(ctx context.Context, symbol, historyRange string) (*marketInputs, error) {
	if historyRange == "" {
		historyRange = s.cfg.Pricing.DefaultHistoryRange
	}

	stockData, err := s.getHistory(ctx, symbol, historyRange)
	if err != nil {
		return nil, fmt.Errorf("failed to get stock history for %s: %w", symbol, err)
	}

	closes := make([]float64, 0, len(stockData.OHLCV))
	for _, bar := range stockData.OHLCV {
		closes = append(closes, bar.Close)
	}

	histVol, err := pricing.HistoricalVolatility(closes, pricing.TradingDaysPerYear)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate historical volatility for %s: %w", symbol, err)
	}
	if histVol <= 0 {
		return nil, fmt.Errorf("%w: historical volatility is zero for %s", pricing.ErrInvalidInput, symbol)
	}

	return &marketInputs{
		stockData:    stockData,
		histVol:      histVol,
		riskFreeRate: s.getRiskFreeRate(ctx),
	}, nil
}

// analyzeChain prices one expiry's chain against the shared market inputs.
func (s *analysisService) analyzeChain(ctx context.Context, chain *dto.OptionChain, inputs *marketInputs) (*dto.OptionAnalysis, error) {
	spot := chain.SpotPrice
	if spot <= 0 {
		spot = inputs.stockData.MarketPrice
	}
	if spot <= 0 {
		return nil, fmt.Errorf("%w: no spot price available for %s", pricing.ErrInvalidInput, chain.Symbol)
	}

	now := utils.TimeNowMarket()
	expiration := time.Unix(chain.Expiration, 0).In(now.Location())
	timeToExpiry := utils.YearsUntil(expiration, now)

	analysis := &dto.OptionAnalysis{
		Symbol:        chain.Symbol,
		SpotPrice:     spot,
		RiskFreeRate:  inputs.riskFreeRate,
		HistoricalVol: inputs.histVol,
		Expiration:    expiration,
		TimeToExpiry:  timeToExpiry,
		AnalyzedAt:    now,
	}

	var calls, puts []dto.ContractAnalysis
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		calls = s.analyzeQuotes(gCtx, chain.Calls, spot, timeToExpiry, inputs.riskFreeRate, inputs.histVol)
		return gCtx.Err()
	})
	g.Go(func() error {
		puts = s.analyzeQuotes(gCtx, chain.Puts, spot, timeToExpiry, inputs.riskFreeRate, inputs.histVol)
		return gCtx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	analysis.Contracts = append(calls, puts...)
	for _, c := range analysis.Contracts {
		if c.Mispriced {
			analysis.Mispriced = append(analysis.Mispriced, c)
		}
	}

	return analysis, nil
}

func (s *analysisService) GetSnapshots(ctx context.Context, symbol string, limit int) ([]model.OptionSnapshot, error) {
	return s.snapshotRepo.Get(ctx, model.GetOptionSnapshotsParam{
		Symbol: symbol,
		Limit:  limit,
	})
}

// analyzeQuotes prices each quoted contract with the historical volatility
// estimate and inverts the market mid into an implied volatility. A solver
// failure on one contract leaves its implied vol empty, it never fails the
// chain.
func (s *analysisService) analyzeQuotes(ctx context.Context, quotes []dto.OptionQuote, spot, timeToExpiry, rate, vol float64) []dto.ContractAnalysis {
	analyses := make([]dto.ContractAnalysis, 0, len(quotes))

	for _, quote := range quotes {
		if !utils.ShouldContinue(ctx, s.log) {
			break
		}

		contract := dto.OptionContract{
			Spot:         spot,
			Strike:       quote.Strike,
			TimeToExpiry: timeToExpiry,
			Rate:         rate,
			Volatility:   vol,
			Type:         quote.Type,
		}

		result, err := pricing.Price(contract)
		if err != nil {
			s.log.WarnContext(ctx, "Skipping contract that failed pricing",
				logger.StringField("contract", quote.ContractSymbol),
				logger.ErrorField(err),
			)
			continue
		}

		ca := dto.ContractAnalysis{
			Quote:            quote,
			TheoreticalPrice: result.Price,
			Delta:            result.Delta,
			MarketPrice:      quote.MidPrice(),
		}

		if ca.MarketPrice > 0 {
			ca.Deviation = ca.MarketPrice - ca.TheoreticalPrice
			if ca.TheoreticalPrice > 0 {
				ca.DeviationPct = ca.Deviation / ca.TheoreticalPrice
				ca.Mispriced = math.Abs(ca.DeviationPct) > s.cfg.Pricing.MispriceThreshold
			}

			if timeToExpiry > 0 {
				sol, err := pricing.ImpliedVolatility(contract, ca.MarketPrice)
				switch {
				case errors.Is(err, pricing.ErrNoConvergence):
					s.log.DebugContext(ctx, "Implied volatility has no root for quote",
						logger.StringField("contract", quote.ContractSymbol),
						logger.Float64Field("market_price", ca.MarketPrice),
					)
				case err != nil:
					s.log.WarnContext(ctx, "Implied volatility solve failed",
						logger.StringField("contract", quote.ContractSymbol),
						logger.ErrorField(err),
					)
				case sol.Converged:
					ca.ImpliedVol = utils.ToPointer(sol.Vol)
				}
			}
		}

		analyses = append(analyses, ca)
	}

	return analyses
}

func (s *analysisService) getHistory(ctx context.Context, symbol, historyRange string) (*dto.StockData, error) {
	cacheKey := fmt.Sprintf(common.KEY_STOCK_HISTORY, symbol, historyRange)
	if data, found := cache.GetFromCache[*dto.StockData](s.inmemoryCache, cacheKey); found {
		return data, nil
	}

	stockData, err := s.quoteRepo.GetHistory(ctx, dto.GetStockDataParam{
		Symbol:   symbol,
		Range:    historyRange,
		Interval: "1d",
	})
	if err != nil {
		return nil, err
	}

	s.inmemoryCache.Set(cacheKey, stockData, s.cfg.Cache.QuoteExpiration)
	return stockData, nil
}

func (s *analysisService) getChain(ctx context.Context, symbol string, expiration int64) (*dto.OptionChain, error) {
	cacheKey := fmt.Sprintf(common.KEY_OPTION_CHAIN, symbol, expiration)
	if chain, found := cache.GetFromCache[*dto.OptionChain](s.inmemoryCache, cacheKey); found {
		return chain, nil
	}

	chain, err := s.chainRepo.GetChain(ctx, symbol, expiration)
	if err != nil {
		return nil, err
	}

	s.inmemoryCache.Set(cacheKey, chain, s.cfg.Cache.QuoteExpiration)
	return chain, nil
}

// getRiskFreeRate quotes the configured treasury symbol (^IRX trades in
// percent) and falls back to the configured default when the quote is
// unavailable.
func (s *analysisService) getRiskFreeRate(ctx context.Context) float64 {
	if rate, found := cache.GetFromCache[float64](s.inmemoryCache, common.KEY_RISK_FREE_RATE); found {
		return rate
	}

	stockData, err := s.quoteRepo.GetHistory(ctx, dto.GetStockDataParam{
		Symbol:   s.cfg.Pricing.RiskFreeRateSymbol,
		Range:    "1m",
		Interval: "1d",
	})
	if err != nil || stockData.MarketPrice <= 0 {
		s.log.WarnContext(ctx, "Falling back to default risk-free rate",
			logger.StringField("symbol", s.cfg.Pricing.RiskFreeRateSymbol),
			logger.Float64Field("default", s.cfg.Pricing.DefaultRiskFreeRate),
			logger.ErrorField(err),
		)
		return s.cfg.Pricing.DefaultRiskFreeRate
	}

	rate := stockData.MarketPrice / 100
	s.inmemoryCache.Set(common.KEY_RISK_FREE_RATE, rate, s.cfg.Cache.RateExpiration)
	return rate
}

// saveSnapshot persists the analysis for later comparison. Storage failures
// are logged, the analysis result is still returned to the caller.
func (s *analysisService) saveSnapshot(ctx context.Context, analysis *dto.OptionAnalysis) {
	contractsJSON, err := json.Marshal(analysis.Contracts)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to marshal contracts for snapshot", logger.ErrorField(err))
		return
	}

	snapshot := &model.OptionSnapshot{
		Symbol:         analysis.Symbol,
		SpotPrice:      analysis.SpotPrice,
		RiskFreeRate:   analysis.RiskFreeRate,
		HistoricalVol:  analysis.HistoricalVol,
		Expiration:     analysis.Expiration,
		ContractCount:  len(analysis.Contracts),
		MispricedCount: len(analysis.Mispriced),
		Contracts:      datatypes.JSON(contractsJSON),
		AnalyzedAt:     analysis.AnalyzedAt,
	}

	if err := s.snapshotRepo.Create(ctx, snapshot); err != nil {
		s.log.ErrorContext(ctx, "Failed to save option snapshot",
			logger.StringField("symbol", analysis.Symbol),
			logger.ErrorField(err),
		)
	}
}
