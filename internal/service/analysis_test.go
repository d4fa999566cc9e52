package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"options-analytics/config"
	"options-analytics/internal/dto"
	"options-analytics/internal/model"
	"options-analytics/internal/pricing"
	"options-analytics/pkg/logger"
	"options-analytics/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuoteRepo struct {
	mu    sync.Mutex
	data  map[string]*dto.StockData
	errs  map[string]error
	calls map[string]int
}

func (f *fakeQuoteRepo) GetHistory(_ context.Context, param dto.GetStockDataParam) (*dto.StockData, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[param.Symbol]++
	f.mu.Unlock()

	if err, ok := f.errs[param.Symbol]; ok {
		return nil, err
	}
	if data, ok := f.data[param.Symbol]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("no data for symbol: %s", param.Symbol)
}

// fakeChainRepo serves chain for the nearest expiry (expiration 0 or
// chain's own) and chains for specific ones.
type fakeChainRepo struct {
	mu     sync.Mutex
	chain  *dto.OptionChain
	chains map[int64]*dto.OptionChain
	err    error
	calls  int
}

func (f *fakeChainRepo) GetChain(_ context.Context, _ string, expiration int64) (*dto.OptionChain, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if expiration == 0 || (f.chain != nil && expiration == f.chain.Expiration) {
		return f.chain, nil
	}
	if c, ok := f.chains[expiration]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("no chain for expiration: %d", expiration)
}

type fakeSnapshotRepo struct {
	created []*model.OptionSnapshot
	err     error
}

func (f *fakeSnapshotRepo) Create(_ context.Context, snapshot *model.OptionSnapshot) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, snapshot)
	return nil
}

func (f *fakeSnapshotRepo) Get(_ context.Context, param model.GetOptionSnapshotsParam, _ ...utils.DBOption) ([]model.OptionSnapshot, error) {
	var out []model.OptionSnapshot
	for _, s := range f.created {
		if param.Symbol == "" || s.Symbol == param.Symbol {
			out = append(out, *s)
		}
	}
	return out, nil
}

type fakeCache struct {
	store map[string]interface{}
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: make(map[string]interface{})}
}

func (f *fakeCache) Set(key string, value interface{}, _ time.Duration) { f.store[key] = value }
func (f *fakeCache) Get(key string) (interface{}, bool) {
	v, ok := f.store[key]
	return v, ok
}
func (f *fakeCache) Delete(key string) { delete(f.store, key) }
func (f *fakeCache) Flush()            { f.store = map[string]interface{}{} }

func testConfig() *config.Config {
	return &config.Config{
		Pricing: config.Pricing{
			DefaultRiskFreeRate: 0.05,
			RiskFreeRateSymbol:  "^IRX",
			DefaultHistoryRange: "1y",
			MispriceThreshold:   0.15,
		},
		Cache: config.Cache{
			QuoteExpiration: time.Minute,
			RateExpiration:  time.Hour,
		},
	}
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("debug", "console")
	require.NoError(t, err)
	return log
}

// noisyCloses builds a close series around base with alternating moves so the
// historical volatility estimate is positive.
func noisyCloses(base float64, n int) []dto.StockOHLCV {
	bars := make([]dto.StockOHLCV, n)
	price := base
	for i := range bars {
		if i%2 == 0 {
			price *= 1.012
		} else {
			price *= 0.99
		}
		bars[i] = dto.StockOHLCV{Close: price, Open: price, High: price, Low: price, Volume: 1000}
	}
	return bars
}

func TestAnalyze(t *testing.T) {
	cfg := testConfig()
	log := testLogger(t)

	expiry := time.Now().Add(30 * 24 * time.Hour).Unix()

	quoteRepo := &fakeQuoteRepo{
		data: map[string]*dto.StockData{
			"AAPL": {Symbol: "AAPL", MarketPrice: 100, OHLCV: noisyCloses(100, 60)},
		},
		errs: map[string]error{
			"^IRX": errors.New("upstream down"),
		},
	}

	chainRepo := &fakeChainRepo{
		chain: &dto.OptionChain{
			Symbol:     "AAPL",
			SpotPrice:  100,
			Expiration: expiry,
			Calls: []dto.OptionQuote{
				{ContractSymbol: "AAPL_C100", Type: dto.OptionTypeCall, Strike: 100, Bid: 3.0, Ask: 3.4},
				// Quoted above the stock itself, outside any call's arbitrage bounds.
				{ContractSymbol: "AAPL_C120", Type: dto.OptionTypeCall, Strike: 120, LastPrice: 150.0},
			},
			Puts: []dto.OptionQuote{
				{ContractSymbol: "AAPL_P100", Type: dto.OptionTypePut, Strike: 100, Bid: 2.8, Ask: 3.2},
			},
		},
	}

	snapshotRepo := &fakeSnapshotRepo{}

	svc := NewAnalysisService(cfg, log, newFakeCache(), quoteRepo, chainRepo, snapshotRepo)

	analysis, err := svc.Analyze(context.Background(), dto.AnalyzeParam{Symbol: "AAPL"})
	require.NoError(t, err)

	assert.Equal(t, "AAPL", analysis.Symbol)
	assert.Equal(t, 100.0, analysis.SpotPrice)
	assert.Greater(t, analysis.HistoricalVol, 0.0)
	assert.Greater(t, analysis.TimeToExpiry, 0.0)
	assert.Len(t, analysis.Contracts, 3)

	// Rate quote failed, so the configured default applies.
	assert.Equal(t, 0.05, analysis.RiskFreeRate)

	byContract := make(map[string]dto.ContractAnalysis)
	for _, c := range analysis.Contracts {
		byContract[c.Quote.ContractSymbol] = c
	}

	// Mid of 3.0/3.4.
	atmCall := byContract["AAPL_C100"]
	assert.InDelta(t, 3.2, atmCall.MarketPrice, 1e-9)
	assert.Greater(t, atmCall.TheoreticalPrice, 0.0)

	// A call quoted above the stock violates arbitrage bounds: no implied
	// vol, flagged as mispriced.
	richCall := byContract["AAPL_C120"]
	assert.Nil(t, richCall.ImpliedVol)
	assert.True(t, richCall.Mispriced)

	// Snapshot persisted.
	require.Len(t, snapshotRepo.created, 1)
	assert.Equal(t, "AAPL", snapshotRepo.created[0].Symbol)
	assert.Equal(t, 3, snapshotRepo.created[0].ContractCount)
	assert.Equal(t, len(analysis.Mispriced), snapshotRepo.created[0].MispricedCount)
}

func TestAnalyzeAllExpirations(t *testing.T) {
	cfg := testConfig()
	log := testLogger(t)

	near := time.Now().Add(30 * 24 * time.Hour).Unix()
	mid := time.Now().Add(60 * 24 * time.Hour).Unix()
	far := time.Now().Add(90 * 24 * time.Hour).Unix()

	quoteRepo := &fakeQuoteRepo{
		data: map[string]*dto.StockData{
			"AAPL": {Symbol: "AAPL", MarketPrice: 100, OHLCV: noisyCloses(100, 60)},
			"^IRX": {Symbol: "^IRX", MarketPrice: 5.0, OHLCV: noisyCloses(5, 20)},
		},
	}

	chainFor := func(expiry int64) *dto.OptionChain {
		return &dto.OptionChain{
			Symbol:          "AAPL",
			SpotPrice:       100,
			ExpirationDates: []int64{near, mid, far},
			Expiration:      expiry,
			Calls: []dto.OptionQuote{
				{ContractSymbol: fmt.Sprintf("AAPL_C100_%d", expiry), Type: dto.OptionTypeCall, Strike: 100, Bid: 3.0, Ask: 3.4},
			},
			Puts: []dto.OptionQuote{
				{ContractSymbol: fmt.Sprintf("AAPL_P100_%d", expiry), Type: dto.OptionTypePut, Strike: 100, Bid: 2.8, Ask: 3.2},
			},
		}
	}

	// The far expiry's chain is unavailable, the sweep must carry on with
	// the two that loaded.
	chainRepo := &fakeChainRepo{
		chain:  chainFor(near),
		chains: map[int64]*dto.OptionChain{mid: chainFor(mid)},
	}
	snapshotRepo := &fakeSnapshotRepo{}

	svc := NewAnalysisService(cfg, log, newFakeCache(), quoteRepo, chainRepo, snapshotRepo)

	sweep, err := svc.AnalyzeAllExpirations(context.Background(), dto.AnalyzeParam{Symbol: "AAPL"})
	require.NoError(t, err)

	assert.Equal(t, "AAPL", sweep.Symbol)
	assert.Equal(t, 100.0, sweep.SpotPrice)
	assert.InDelta(t, 0.05, sweep.RiskFreeRate, 1e-9)
	assert.Greater(t, sweep.HistoricalVol, 0.0)

	// Calendar order survives the concurrent fan-out.
	require.Len(t, sweep.Expirations, 2)
	assert.Equal(t, time.Unix(near, 0).Unix(), sweep.Expirations[0].Expiration.Unix())
	assert.Equal(t, time.Unix(mid, 0).Unix(), sweep.Expirations[1].Expiration.Unix())
	assert.Less(t, sweep.Expirations[0].TimeToExpiry, sweep.Expirations[1].TimeToExpiry)
	for _, analysis := range sweep.Expirations {
		assert.Len(t, analysis.Contracts, 2)
		assert.Equal(t, sweep.HistoricalVol, analysis.HistoricalVol)
	}

	// One snapshot per analyzed expiry.
	assert.Len(t, snapshotRepo.created, 2)

	// Nearest chain fetched once and reused for its own expiry slot.
	chainRepo.mu.Lock()
	defer chainRepo.mu.Unlock()
	assert.Equal(t, 3, chainRepo.calls)
}

func TestAnalyzeAllExpirations_AllChainsFail(t *testing.T) {
	cfg := testConfig()
	log := testLogger(t)

	quoteRepo := &fakeQuoteRepo{
		data: map[string]*dto.StockData{
			"AAPL": {Symbol: "AAPL", MarketPrice: 100, OHLCV: noisyCloses(100, 60)},
			"^IRX": {Symbol: "^IRX", MarketPrice: 5.0, OHLCV: noisyCloses(5, 20)},
		},
	}
	chainRepo := &fakeChainRepo{err: errors.New("chain unavailable")}

	svc := NewAnalysisService(cfg, log, newFakeCache(), quoteRepo, chainRepo, &fakeSnapshotRepo{})

	_, err := svc.AnalyzeAllExpirations(context.Background(), dto.AnalyzeParam{Symbol: "AAPL"})
	assert.ErrorContains(t, err, "chain unavailable")
}

func TestAnalyze_CachesMarketInputs(t *testing.T) {
	cfg := testConfig()
	log := testLogger(t)

	expiry := time.Now().Add(30 * 24 * time.Hour).Unix()

	quoteRepo := &fakeQuoteRepo{
		data: map[string]*dto.StockData{
			"AAPL": {Symbol: "AAPL", MarketPrice: 100, OHLCV: noisyCloses(100, 60)},
			"^IRX": {Symbol: "^IRX", MarketPrice: 5.0, OHLCV: noisyCloses(5, 20)},
		},
	}
	chainRepo := &fakeChainRepo{
		chain: &dto.OptionChain{
			Symbol:     "AAPL",
			SpotPrice:  100,
			Expiration: expiry,
			Calls: []dto.OptionQuote{
				{ContractSymbol: "AAPL_C100", Type: dto.OptionTypeCall, Strike: 100, Bid: 3.0, Ask: 3.4},
			},
		},
	}

	svc := NewAnalysisService(cfg, log, newFakeCache(), quoteRepo, chainRepo, &fakeSnapshotRepo{})

	for i := 0; i < 2; i++ {
		_, err := svc.Analyze(context.Background(), dto.AnalyzeParam{Symbol: "AAPL"})
		require.NoError(t, err)
	}

	// History, rate quote and chain are all served from cache on the second
	// pass.
	quoteRepo.mu.Lock()
	assert.Equal(t, 1, quoteRepo.calls["AAPL"])
	assert.Equal(t, 1, quoteRepo.calls["^IRX"])
	quoteRepo.mu.Unlock()

	chainRepo.mu.Lock()
	assert.Equal(t, 1, chainRepo.calls)
	chainRepo.mu.Unlock()
}

func TestAnalyze_ImpliedVolRoundTrip(t *testing.T) {
	cfg := testConfig()
	log := testLogger(t)

	expiry := time.Now().Add(90 * 24 * time.Hour).Unix()

	quoteRepo := &fakeQuoteRepo{
		data: map[string]*dto.StockData{
			"MSFT": {Symbol: "MSFT", MarketPrice: 100, OHLCV: noisyCloses(100, 120)},
			"^IRX": {Symbol: "^IRX", MarketPrice: 5.0, OHLCV: noisyCloses(5, 20)},
		},
	}

	// Quote the call exactly at its Black-Scholes value under a 30% vol so
	// the solver must recover that vol.
	const quotedVol = 0.30
	timeToExpiry := utils.YearsUntil(time.Unix(expiry, 0), utils.TimeNowMarket())
	priced, err := pricing.Price(dto.OptionContract{
		Spot:         100,
		Strike:       105,
		TimeToExpiry: timeToExpiry,
		Rate:         0.05,
		Volatility:   quotedVol,
		Type:         dto.OptionTypeCall,
	})
	require.NoError(t, err)

	chainRepo := &fakeChainRepo{
		chain: &dto.OptionChain{
			Symbol:     "MSFT",
			SpotPrice:  100,
			Expiration: expiry,
			Calls: []dto.OptionQuote{
				{ContractSymbol: "MSFT_C105", Type: dto.OptionTypeCall, Strike: 105, Bid: priced.Price, Ask: priced.Price},
			},
		},
	}

	svc := NewAnalysisService(cfg, log, newFakeCache(), quoteRepo, chainRepo, &fakeSnapshotRepo{})

	analysis, err := svc.Analyze(context.Background(), dto.AnalyzeParam{Symbol: "MSFT"})
	require.NoError(t, err)

	// ^IRX quotes in percent.
	assert.InDelta(t, 0.05, analysis.RiskFreeRate, 1e-9)

	require.Len(t, analysis.Contracts, 1)
	require.NotNil(t, analysis.Contracts[0].ImpliedVol)
	assert.InDelta(t, quotedVol, *analysis.Contracts[0].ImpliedVol, 1e-3)
}

func TestAnalyze_Errors(t *testing.T) {
	cfg := testConfig()
	log := testLogger(t)

	t.Run("missing symbol", func(t *testing.T) {
		svc := NewAnalysisService(cfg, log, newFakeCache(), &fakeQuoteRepo{}, &fakeChainRepo{}, &fakeSnapshotRepo{})
		_, err := svc.Analyze(context.Background(), dto.AnalyzeParam{})
		assert.ErrorIs(t, err, pricing.ErrInvalidInput)
	})

	t.Run("history fetch fails", func(t *testing.T) {
		svc := NewAnalysisService(cfg, log, newFakeCache(), &fakeQuoteRepo{}, &fakeChainRepo{}, &fakeSnapshotRepo{})
		_, err := svc.Analyze(context.Background(), dto.AnalyzeParam{Symbol: "NOPE"})
		assert.Error(t, err)
	})

	t.Run("chain fetch fails", func(t *testing.T) {
		quoteRepo := &fakeQuoteRepo{
			data: map[string]*dto.StockData{
				"AAPL": {Symbol: "AAPL", MarketPrice: 100, OHLCV: noisyCloses(100, 60)},
				"^IRX": {Symbol: "^IRX", MarketPrice: 5.0, OHLCV: noisyCloses(5, 20)},
			},
		}
		svc := NewAnalysisService(cfg, log, newFakeCache(), quoteRepo, &fakeChainRepo{err: errors.New("chain unavailable")}, &fakeSnapshotRepo{})
		_, err := svc.Analyze(context.Background(), dto.AnalyzeParam{Symbol: "AAPL"})
		assert.ErrorContains(t, err, "chain unavailable")
	})
}

func TestGetSnapshots(t *testing.T) {
	cfg := testConfig()
	log := testLogger(t)

	snapshotRepo := &fakeSnapshotRepo{
		created: []*model.OptionSnapshot{
			{Symbol: "AAPL", ContractCount: 10},
			{Symbol: "MSFT", ContractCount: 4},
		},
	}

	svc := NewAnalysisService(cfg, log, newFakeCache(), &fakeQuoteRepo{}, &fakeChainRepo{}, snapshotRepo)

	snapshots, err := svc.GetSnapshots(context.Background(), "AAPL", 10)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "AAPL", snapshots[0].Symbol)
}
