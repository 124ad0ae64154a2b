package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Namespace is prepended to every key so several devices can share one server
	Namespace string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// ResultTTL expires cached game results. Zero keeps them forever.
	ResultTTL time.Duration
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:          "redis://localhost:6379",
		Namespace:    "",
		PoolSize:     10,
		MinIdleConns: 2,
		ResultTTL:    0,
	}
}
