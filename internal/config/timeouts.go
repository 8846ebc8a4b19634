package config

import "time"

// TimeoutConfig holds timeout settings for various operations.
// These can be configured via CLI flags to tune behavior for different environments.
type TimeoutConfig struct {
	// HTTPRead is the timeout for reading an HTTP request. Default: 15s
	HTTPRead time.Duration

	// Shutdown is how long the HTTP server waits for open requests on exit.
	// Default: 30s
	Shutdown time.Duration

	// WebSocketPing is the interval between WebSocket keepalive pings.
	// Default: 30s
	WebSocketPing time.Duration

	// Mutation bounds how long a CLI or HTTP caller waits for the writer.
	// Default: 30s
	Mutation time.Duration
}

// DefaultTimeoutConfig returns the default timeout configuration
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPRead:      15 * time.Second,
		Shutdown:      30 * time.Second,
		WebSocketPing: 30 * time.Second,
		Mutation:      30 * time.Second,
	}
}

// global instance that can be set at startup
var globalTimeouts = DefaultTimeoutConfig()

// SetGlobalTimeouts sets the global timeout configuration
func SetGlobalTimeouts(cfg *TimeoutConfig) {
	globalTimeouts = cfg
}

// GetTimeouts returns the global timeout configuration
func GetTimeouts() *TimeoutConfig {
	return globalTimeouts
}
