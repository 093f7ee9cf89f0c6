package session

import (
	"math"
	"math/rand"
	"time"
)

// RetransmitTimeout returns the wait for transmission N (1-based):
// AckTimeout scaled by a fresh uniform factor in [1, AckRandomFactor] and
// doubled for every earlier transmission. A nil rng disables jitter.
func RetransmitTimeout(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if cfg.AckTimeout <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	factor := 1.0
	if rng != nil && cfg.AckRandomFactor > 1.0 {
		factor += rng.Float64() * (cfg.AckRandomFactor - 1.0)
	}
	timeout := float64(cfg.AckTimeout) * factor * math.Pow(2, float64(attempt-1))
	return time.Duration(timeout)
}

// MaxTransmitSpan is the longest a single RunOnce can wait for a response:
// AckTimeout * (2^MaxRetransmit - 1) * AckRandomFactor.
func MaxTransmitSpan(cfg BackoffConfig) time.Duration {
	factor := cfg.AckRandomFactor
	if factor < 1.0 {
		factor = 1.0
	}
	span := float64(cfg.AckTimeout) * (math.Pow(2, float64(cfg.MaxRetransmit)) - 1) * factor
	return time.Duration(span)
}
