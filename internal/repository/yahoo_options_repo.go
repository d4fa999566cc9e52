package repository

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"options-analytics/config"
	"options-analytics/internal/dto"
	"options-analytics/pkg/httpclient"
	"options-analytics/pkg/logger"

	"golang.org/x/time/rate"
)

type OptionChainRepository interface {
	// GetChain fetches the option chain for a symbol. A zero expiration
	// returns the nearest listed expiry.
	GetChain(ctx context.Context, symbol string, expiration int64) (*dto.OptionChain, error)
}

// optionChainRepository fetches option chains from the Yahoo Finance options
// API.
type optionChainRepository struct {
	httpClient     httpclient.HTTPClient
	cfg            *config.Config
	logger         *logger.Logger
	requestLimiter *rate.Limiter
}

// NewOptionChainRepository creates a new instance of optionChainRepository.
func NewOptionChainRepository(cfg *config.Config, log *logger.Logger) OptionChainRepository {
	secondsPerRequest := time.Minute / time.Duration(cfg.YahooFinance.MaxRequestPerMinute)
	requestLimiter := rate.NewLimiter(rate.Every(secondsPerRequest), 1)

	return &optionChainRepository{
		httpClient:     httpclient.New(cfg.YahooFinance.OptionsBaseURL, cfg.YahooFinance.Timeout),
		cfg:            cfg,
		logger:         log,
		requestLimiter: requestLimiter,
	}
}

func (r *optionChainRepository) GetChain(ctx context.Context, symbol string, expiration int64) (*dto.OptionChain, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := "/" + symbol

	queryParams := map[string]string{}
	if expiration > 0 {
		queryParams["date"] = fmt.Sprintf("%d", expiration)
	}

	var chainResp dto.YahooOptionChainResponse
	resp, err := r.httpClient.Get(ctx, endpoint, queryParams, yahooHeaders(), &chainResp)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch option chain from yahoo finance: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		r.logger.Error("Yahoo Finance options API returned Non-OK status",
			logger.IntField("status_code", resp.StatusCode),
			logger.StringField("body", string(resp.Body)))
		return nil, fmt.Errorf("yahoo finance options api returned status: %d", resp.StatusCode)
	}

	if chainResp.OptionChain.Error != nil {
		return nil, fmt.Errorf("yahoo finance options api error: %v", chainResp.OptionChain.Error)
	}

	if len(chainResp.OptionChain.Result) == 0 {
		return nil, fmt.Errorf("no option chain returned for symbol: %s", symbol)
	}

	result := chainResp.OptionChain.Result[0]
	if len(result.Options) == 0 {
		return nil, fmt.Errorf("no listed expirations for symbol: %s", symbol)
	}

	options := result.Options[0]

	chain := &dto.OptionChain{
		Symbol:          symbol,
		SpotPrice:       result.Quote.RegularMarketPrice,
		ExpirationDates: result.ExpirationDates,
		Expiration:      options.ExpirationDate,
		Calls:           mapQuotes(options.Calls, dto.OptionTypeCall),
		Puts:            mapQuotes(options.Puts, dto.OptionTypePut),
	}

	if len(chain.Calls) == 0 && len(chain.Puts) == 0 {
		return nil, fmt.Errorf("empty option chain for symbol: %s", symbol)
	}

	return chain, nil
}

func mapQuotes(quotes []dto.YahooOptionQuote, optType dto.OptionType) []dto.OptionQuote {
	mapped := make([]dto.OptionQuote, 0, len(quotes))
	for _, q := range quotes {
		if q.Strike <= 0 {
			continue
		}
		mapped = append(mapped, dto.OptionQuote{
			ContractSymbol:   q.ContractSymbol,
			Type:             optType,
			Strike:           q.Strike,
			LastPrice:        q.LastPrice,
			Bid:              q.Bid,
			Ask:              q.Ask,
			Volume:           q.Volume,
			OpenInterest:     q.OpenInterest,
			MarketImpliedVol: q.ImpliedVolatility,
			InTheMoney:       q.InTheMoney,
			Expiration:       q.Expiration,
		})
	}
	return mapped
}
