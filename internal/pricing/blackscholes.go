package pricing

import (
	"errors"
	"fmt"
	"math"

	"options-analytics/internal/dto"
)

var (
	// ErrInvalidInput is returned when a contract parameter violates its
	// domain constraint (spot, strike or volatility non-positive, expiry
	// negative).
	ErrInvalidInput = errors.New("invalid pricing input")

	// ErrNoConvergence is returned when the implied volatility solver cannot
	// bracket a root, typically because the market price violates arbitrage
	// bounds.
	ErrNoConvergence = errors.New("implied volatility did not converge")
)

const (
	ivLowerBound = 1e-6
	ivUpperBound = 5.0
	ivTolerance  = 1e-6
	ivMaxIter    = 100
)

// Price computes the Black-Scholes price and Greeks for a European option.
//
// For T == 0 the contract is worth its intrinsic value and the closed form
// does not apply.
func Price(c dto.OptionContract) (dto.PricingResult, error) {
	if err := validate(c); err != nil {
		return dto.PricingResult{}, err
	}

	if c.TimeToExpiry == 0 {
		return intrinsic(c), nil
	}

	S, K, T, r, sigma := c.Spot, c.Strike, c.TimeToExpiry, c.Rate, c.Volatility

	sqrtT := math.Sqrt(T)
	d1 := (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT

	discount := math.Exp(-r * T)
	pdfD1 := normPDF(d1)

	result := dto.PricingResult{
		Gamma: pdfD1 / (S * sigma * sqrtT),
		Vega:  S * pdfD1 * sqrtT,
	}

	switch c.Type {
	case dto.OptionTypeCall:
		nd1 := normCDF(d1)
		nd2 := normCDF(d2)
		result.Price = S*nd1 - K*discount*nd2
		result.Delta = nd1
		result.Theta = (-S*pdfD1*sigma/(2*sqrtT) - r*K*discount*nd2) / 365
		result.Rho = K * T * discount * nd2
	case dto.OptionTypePut:
		nNegD1 := normCDF(-d1)
		nNegD2 := normCDF(-d2)
		result.Price = K*discount*nNegD2 - S*nNegD1
		result.Delta = normCDF(d1) - 1
		result.Theta = (-S*pdfD1*sigma/(2*sqrtT) + r*K*discount*nNegD2) / 365
		result.Rho = -K * T * discount * nNegD2
	}

	return result, nil
}

// VolSolution is the outcome of an implied volatility solve. Converged is
// false when the iteration cap was reached before the price tolerance; Vol
// then holds the best estimate.
type VolSolution struct {
	Vol        float64
	Converged  bool
	Iterations int
}

// ImpliedVolatility root-finds the volatility that reproduces marketPrice
// under Black-Scholes, via bisection with Newton refinement over
// sigma in [1e-6, 5.0].
func ImpliedVolatility(c dto.OptionContract, marketPrice float64) (VolSolution, error) {
	if c.Spot <= 0 || c.Strike <= 0 || c.TimeToExpiry <= 0 || marketPrice <= 0 {
		return VolSolution{}, fmt.Errorf("%w: spot=%v strike=%v T=%v market=%v",
			ErrInvalidInput, c.Spot, c.Strike, c.TimeToExpiry, marketPrice)
	}
	if !c.Type.IsValid() {
		return VolSolution{}, fmt.Errorf("%w: option type %q", ErrInvalidInput, c.Type)
	}

	lo, hi := ivLowerBound, ivUpperBound

	pLo, err := priceAt(c, lo)
	if err != nil {
		return VolSolution{}, err
	}
	pHi, err := priceAt(c, hi)
	if err != nil {
		return VolSolution{}, err
	}

	// Price is monotone increasing in volatility; a market price outside
	// [price(lo), price(hi)] violates arbitrage bounds and has no root.
	if marketPrice < pLo-ivTolerance || marketPrice > pHi+ivTolerance {
		return VolSolution{}, fmt.Errorf("%w: market price %v outside [%v, %v]",
			ErrNoConvergence, marketPrice, pLo, pHi)
	}

	sigma := 0.5 * (lo + hi)
	for i := 1; i <= ivMaxIter; i++ {
		res, err := Price(contractWithVol(c, sigma))
		if err != nil {
			return VolSolution{}, err
		}

		diff := res.Price - marketPrice
		if math.Abs(diff) < ivTolerance {
			return VolSolution{Vol: sigma, Converged: true, Iterations: i}, nil
		}

		if diff > 0 {
			hi = sigma
		} else {
			lo = sigma
		}

		// Newton step when vega is healthy and the step stays bracketed,
		// else fall back to bisection.
		next := sigma
		if res.Vega > 1e-10 {
			next = sigma - diff/res.Vega
		}
		if next <= lo || next >= hi {
			next = 0.5 * (lo + hi)
		}
		sigma = next
	}

	return VolSolution{Vol: sigma, Converged: false, Iterations: ivMaxIter}, nil
}

func validate(c dto.OptionContract) error {
	if c.Spot <= 0 || c.Strike <= 0 || c.Volatility <= 0 || c.TimeToExpiry < 0 {
		return fmt.Errorf("%w: spot=%v strike=%v vol=%v T=%v",
			ErrInvalidInput, c.Spot, c.Strike, c.Volatility, c.TimeToExpiry)
	}
	if !c.Type.IsValid() {
		return fmt.Errorf("%w: option type %q", ErrInvalidInput, c.Type)
	}
	return nil
}

// intrinsic prices an expired contract. Delta reflects the zero-vol limit: a
// full position when in the money, none otherwise.
func intrinsic(c dto.OptionContract) dto.PricingResult {
	var result dto.PricingResult
	switch c.Type {
	case dto.OptionTypeCall:
		result.Price = math.Max(c.Spot-c.Strike, 0)
		if c.Spot > c.Strike {
			result.Delta = 1
		}
	case dto.OptionTypePut:
		result.Price = math.Max(c.Strike-c.Spot, 0)
		if c.Spot < c.Strike {
			result.Delta = -1
		}
	}
	return result
}

func priceAt(c dto.OptionContract, sigma float64) (float64, error) {
	res, err := Price(contractWithVol(c, sigma))
	if err != nil {
		return 0, err
	}
	return res.Price, nil
}

func contractWithVol(c dto.OptionContract, sigma float64) dto.OptionContract {
	c.Volatility = sigma
	return c
}

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}
