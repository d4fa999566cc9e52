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
	"options-analytics/pkg/utils"

	"golang.org/x/time/rate"
)

type QuoteRepository interface {
	GetHistory(ctx context.Context, param dto.GetStockDataParam) (*dto.StockData, error)
}

// quoteRepository fetches spot prices and OHLCV history from the Yahoo
// Finance chart API.
type quoteRepository struct {
	httpClient     httpclient.HTTPClient
	cfg            *config.Config
	logger         *logger.Logger
	requestLimiter *rate.Limiter
}

// NewQuoteRepository creates a new instance of quoteRepository.
func NewQuoteRepository(cfg *config.Config, log *logger.Logger) QuoteRepository {
	secondsPerRequest := time.Minute / time.Duration(cfg.YahooFinance.MaxRequestPerMinute)
	requestLimiter := rate.NewLimiter(rate.Every(secondsPerRequest), 1)

	return &quoteRepository{
		httpClient:     httpclient.New(cfg.YahooFinance.ChartBaseURL, cfg.YahooFinance.Timeout),
		cfg:            cfg,
		logger:         log,
		requestLimiter: requestLimiter,
	}
}

func (r *quoteRepository) GetHistory(ctx context.Context, param dto.GetStockDataParam) (*dto.StockData, error) {
	// Tokens is a read-only peek, Wait below is the single charge.
	if r.requestLimiter.Tokens() < 1 {
		r.logger.WarnContext(ctx, "Yahoo Finance API request limit exceeded",
			logger.IntField("max_request_per_minute", r.cfg.YahooFinance.MaxRequestPerMinute),
		)
	}
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := "/" + param.Symbol

	period1, period2 := r.MapRangeToUnix(param.Range)
	if period1 == 0 || period2 == 0 {
		return nil, fmt.Errorf("invalid history range: %s", param.Range)
	}

	interval := param.Interval
	if interval == "" {
		interval = "1d"
	}

	queryParams := map[string]string{
		"period1":        fmt.Sprintf("%d", period1),
		"period2":        fmt.Sprintf("%d", period2),
		"interval":       interval,
		"includePrePost": "false",
		"events":         "div,split",
	}

	var yahooResp dto.YahooChartResponse
	resp, err := r.httpClient.Get(ctx, endpoint, queryParams, yahooHeaders(), &yahooResp)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data from yahoo finance: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		r.logger.Error("Yahoo Finance chart API returned Non-OK status",
			logger.IntField("status_code", resp.StatusCode),
			logger.StringField("body", string(resp.Body)))
		return nil, fmt.Errorf("yahoo finance api returned status: %d", resp.StatusCode)
	}

	if yahooResp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo finance api error: %v", yahooResp.Chart.Error)
	}

	if len(yahooResp.Chart.Result) == 0 {
		return nil, fmt.Errorf("no data returned for symbol: %s", param.Symbol)
	}

	result := yahooResp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no quote data available for symbol: %s", param.Symbol)
	}

	quote := result.Indicators.Quote[0]

	var ohlcvData []dto.StockOHLCV
	for i, timestamp := range result.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) ||
			i >= len(quote.Close) || i >= len(quote.Volume) {
			continue
		}

		// Zero prices mean missing data for that bar.
		if quote.Open[i] == 0 || quote.High[i] == 0 || quote.Low[i] == 0 ||
			quote.Close[i] == 0 {
			continue
		}

		ohlcvData = append(ohlcvData, dto.StockOHLCV{
			Timestamp: timestamp,
			Open:      quote.Open[i],
			High:      quote.High[i],
			Low:       quote.Low[i],
			Close:     quote.Close[i],
			Volume:    quote.Volume[i],
		})
	}

	if len(ohlcvData) == 0 {
		return nil, fmt.Errorf("no valid OHLCV data found for symbol: %s", param.Symbol)
	}

	marketPrice := result.Meta.RegularMarketPrice
	if marketPrice == 0 {
		marketPrice = ohlcvData[len(ohlcvData)-1].Close
	}

	return &dto.StockData{
		Symbol:      param.Symbol,
		MarketPrice: marketPrice,
		OHLCV:       ohlcvData,
		Range:       param.Range,
		Interval:    interval,
	}, nil
}

// MapRangeToUnix converts a history range string to a unix period pair.
func (r *quoteRepository) MapRangeToUnix(rangeStr string) (int64, int64) {
	now := utils.TimeNowMarket()
	switch rangeStr {
	case "1w":
		return now.AddDate(0, 0, -7).Unix(), now.Unix()
	case "1m":
		return now.AddDate(0, 0, -30).Unix(), now.Unix()
	case "3m":
		return now.AddDate(0, 0, -90).Unix(), now.Unix()
	case "6m":
		return now.AddDate(0, 0, -180).Unix(), now.Unix()
	case "1y":
		return now.AddDate(0, 0, -365).Unix(), now.Unix()
	case "2y":
		return now.AddDate(0, 0, -730).Unix(), now.Unix()
	default:
		return 0, 0
	}
}

func yahooHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36",
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.9",
		"Connection":      "keep-alive",
		"Referer":         "https://finance.yahoo.com/",
	}
}
