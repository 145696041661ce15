// Package cache centralises Redis key construction and TTL classes so the
// store and jobs never hand-build keys.
package cache

import (
	"strings"
	"time"
)

// Namespace is the Redis key prefix for the application.
const Namespace = "criptosee"

// TTLSet normalises cache TTLs from config into durations.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts TTL seconds into durations, falling back to defaults
// for zero values. Negative values disable the class.
func NewTTLSet(short, medium, long int) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(short, 10*time.Second),
		Medium: durationOrDefault(medium, time.Minute),
		Long:   durationOrDefault(long, 5*time.Minute),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// PriceLatestKey caches the latest price for a coin.
func PriceLatestKey(coinID string) string {
	return formatKey("price", coinID)
}

// MarketSnapshotKey caches the full latest-market row for a coin.
func MarketSnapshotKey(coinID string) string {
	return formatKey("market", coinID)
}

// PredictionsKey caches the active prediction list for an audience tier.
func PredictionsKey(tier string) string {
	return formatKey("predictions", tier)
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}
