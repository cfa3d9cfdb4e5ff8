package config

import (
	"time"
)

// WorkerConfig controls the payout dispatcher's concurrency and retry policy.
type WorkerConfig struct {
	Concurrency     int
	QueueKey        string
	ProcessingKey   string
	ClaimTimeout    time.Duration
	ProviderTimeout time.Duration
	BackoffBase     time.Duration
	BackoffFactor   float64
	BackoffCap      time.Duration
	MaxRetries      int
}

// LoadWorkerConfig reads dispatcher settings from the environment, falling
// back to the defaults named in the payout processing contract (base 1s,
// factor 2, cap 60s).
func LoadWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		Concurrency:     getEnvAsInt("WORKER_CONCURRENCY", 4),
		QueueKey:        getEnv("WORKER_QUEUE_KEY", "ruralpay:payout:queue"),
		ProcessingKey:   getEnv("WORKER_PROCESSING_KEY", "ruralpay:payout:processing"),
		ClaimTimeout:    getEnvAsDuration("WORKER_CLAIM_TIMEOUT", 5*time.Second),
		ProviderTimeout: getEnvAsDuration("WORKER_PROVIDER_TIMEOUT", 30*time.Second),
		BackoffBase:     getEnvAsDuration("WORKER_BACKOFF_BASE", 1*time.Second),
		BackoffFactor:   getEnvAsFloat("WORKER_BACKOFF_FACTOR", 2.0),
		BackoffCap:      getEnvAsDuration("WORKER_BACKOFF_CAP", 60*time.Second),
		MaxRetries:      getEnvAsInt("WORKER_MAX_RETRIES", 5),
	}
}
