package utils

import (
	"log"
	"time"
)

const hoursPerYear = 24 * 365.0

func GetMarketTimeLocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		log.Fatal("Failed to load location", err)
	}
	return loc
}

func TimeNowMarket() time.Time {
	return time.Now().In(GetMarketTimeLocation())
}

// YearsUntil returns the time to expiry in years, floored at zero for
// already-expired timestamps.
func YearsUntil(expiry time.Time, now time.Time) float64 {
	years := expiry.Sub(now).Hours() / hoursPerYear
	if years < 0 {
		return 0
	}
	return years
}
