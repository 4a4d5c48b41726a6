package redis

import "time"

// Config holds Redis connection and pair-lock settings.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"` // redis://:password@host:6379/0
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`

	LockTTL          time.Duration `env:"REDIS_LOCK_TTL" envDefault:"30s"`
	LockPollInterval time.Duration `env:"REDIS_LOCK_POLL_INTERVAL" envDefault:"50ms"`
}
