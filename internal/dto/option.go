package dto

import "time"

type OptionType string

const (
	OptionTypeCall OptionType = "call"
	OptionTypePut  OptionType = "put"
)

func (t OptionType) IsValid() bool {
	return t == OptionTypeCall || t == OptionTypePut
}

// OptionContract holds the Black-Scholes inputs for a single European option.
// Spot, Strike and Volatility must be positive, TimeToExpiry non-negative.
type OptionContract struct {
	Spot         float64    `json:"spot"`
	Strike       float64    `json:"strike"`
	TimeToExpiry float64    `json:"time_to_expiry"`
	Rate         float64    `json:"rate"`
	Volatility   float64    `json:"volatility"`
	Type         OptionType `json:"type"`
}

type PricingResult struct {
	Price float64 `json:"price"`
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// OptionQuote is one market-quoted contract from an option chain.
type OptionQuote struct {
	ContractSymbol   string     `json:"contract_symbol"`
	Type             OptionType `json:"type"`
	Strike           float64    `json:"strike"`
	LastPrice        float64    `json:"last_price"`
	Bid              float64    `json:"bid"`
	Ask              float64    `json:"ask"`
	Volume           int64      `json:"volume"`
	OpenInterest     int64      `json:"open_interest"`
	MarketImpliedVol float64    `json:"market_implied_vol"`
	InTheMoney       bool       `json:"in_the_money"`
	Expiration       int64      `json:"expiration"`
}

// MidPrice returns the bid/ask mid when both sides are quoted, else the last
// traded price.
func (q OptionQuote) MidPrice() float64 {
	if q.Bid > 0 && q.Ask > 0 {
		return (q.Bid + q.Ask) / 2
	}
	return q.LastPrice
}

type OptionChain struct {
	Symbol          string        `json:"symbol"`
	SpotPrice       float64       `json:"spot_price"`
	ExpirationDates []int64       `json:"expiration_dates"`
	Expiration      int64         `json:"expiration"`
	Calls           []OptionQuote `json:"calls"`
	Puts            []OptionQuote `json:"puts"`
}

// AnalyzeParam selects what to analyze. A zero Expiration means the nearest
// listed expiry; AllExpirations sweeps every listed expiry instead.
type AnalyzeParam struct {
	Symbol         string `json:"symbol"`
	Expiration     int64  `json:"expiration"`
	AllExpirations bool   `json:"all_expirations"`
	HistoryRange   string `json:"history_range"`
}

// ContractAnalysis compares one quoted contract against its theoretical price.
type ContractAnalysis struct {
	Quote            OptionQuote `json:"quote"`
	TheoreticalPrice float64     `json:"theoretical_price"`
	Delta            float64     `json:"delta"`
	MarketPrice      float64     `json:"market_price"`
	Deviation        float64     `json:"deviation"`
	DeviationPct     float64     `json:"deviation_pct"`
	ImpliedVol       *float64    `json:"implied_vol,omitempty"`
	Mispriced        bool        `json:"mispriced"`
}

// OptionSweep collects the analyses of every listed expiration of one
// symbol. The shared inputs (spot, rate, historical vol) are estimated once
// and reused across expiries.
type OptionSweep struct {
	Symbol        string           `json:"symbol"`
	SpotPrice     float64          `json:"spot_price"`
	RiskFreeRate  float64          `json:"risk_free_rate"`
	HistoricalVol float64          `json:"historical_vol"`
	Expirations   []OptionAnalysis `json:"expirations"`
	AnalyzedAt    time.Time        `json:"analyzed_at"`
}

type OptionAnalysis struct {
	Symbol        string             `json:"symbol"`
	SpotPrice     float64            `json:"spot_price"`
	RiskFreeRate  float64            `json:"risk_free_rate"`
	HistoricalVol float64            `json:"historical_vol"`
	Expiration    time.Time          `json:"expiration"`
	TimeToExpiry  float64            `json:"time_to_expiry"`
	Contracts     []ContractAnalysis `json:"contracts"`
	Mispriced     []ContractAnalysis `json:"mispriced"`
	AnalyzedAt    time.Time          `json:"analyzed_at"`
}
