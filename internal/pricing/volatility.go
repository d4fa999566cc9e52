package pricing

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// TradingDaysPerYear is the conventional annualization factor for daily
// close-to-close returns.
const TradingDaysPerYear = 252.0

// HistoricalVolatility estimates the annualized volatility from a series of
// close prices as the sample standard deviation of log returns, scaled by
// sqrt(periodsPerYear).
func HistoricalVolatility(closes []float64, periodsPerYear float64) (float64, error) {
	if len(closes) < 2 {
		return 0, fmt.Errorf("%w: need at least 2 closes, got %d", ErrInvalidInput, len(closes))
	}
	if periodsPerYear <= 0 {
		return 0, fmt.Errorf("%w: periods per year must be positive", ErrInvalidInput)
	}

	logReturns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			return 0, fmt.Errorf("%w: non-positive close price at index %d", ErrInvalidInput, i)
		}
		logReturns = append(logReturns, math.Log(closes[i]/closes[i-1]))
	}

	stdDev, err := stats.StandardDeviationSample(logReturns)
	if err != nil {
		return 0, fmt.Errorf("failed to compute standard deviation: %w", err)
	}

	return stdDev * math.Sqrt(periodsPerYear), nil
}
