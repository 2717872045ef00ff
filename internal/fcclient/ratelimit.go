package fcclient

import (
	"os"
	"strconv"

	"golang.org/x/time/rate"
)

// newLimiter creates a rate limiter; FC_API_RPS and FC_API_BURST override
// non-positive arguments.
func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		rps = 5.0
		if v := os.Getenv("FC_API_RPS"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
				rps = f
			}
		}
	}
	if burst <= 0 {
		burst = 10
		if v := os.Getenv("FC_API_BURST"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				burst = n
			}
		}
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
