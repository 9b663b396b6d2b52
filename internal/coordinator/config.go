package coordinator

import "time"

// Config holds the handler's tunables.
type Config struct {
	JobExpiry        time.Duration // JOB_EXPIRY, default 400s
	ErrorExpiry      time.Duration // ERROR_EXPIRY, default 400s (consumed by the lock store)
	MaxRetries       int           // MAX_RETRIES, default 50
	RetrySleep       time.Duration // RETRY_SLEEP ceiling, default 5s
	CheckErrorsEvery int           // CHECK_ERRORS_EVERY, default 5
}

// DefaultConfig returns the documented production defaults.
func DefaultConfig() Config {
	return Config{
		JobExpiry:        400 * time.Second,
		ErrorExpiry:      400 * time.Second,
		MaxRetries:       50,
		RetrySleep:       5 * time.Second,
		CheckErrorsEvery: 5,
	}
}
