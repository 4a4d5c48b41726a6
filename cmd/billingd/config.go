package main

import (
	"time"

	"github.com/dmitrymomot/billing/pkg/logger"
)

type appConfig struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Name string `env:"APP_NAME" envDefault:"billingd"`

	Provider        string        `env:"BILLING_PROVIDER" envDefault:"stripe"` // stripe or paddle
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`

	// PlansFile is a YAML catalog; when empty plans are read from Postgres.
	PlansFile string `env:"PLANS_FILE"`

	RecoveryInterval  time.Duration `env:"RECOVERY_INTERVAL" envDefault:"5m"` // 0 disables the background retry
	RecoveryBatchSize int           `env:"RECOVERY_BATCH_SIZE" envDefault:"50"`

	// RedisEnabled adds the cross-process pair lock and shares rate limit buckets.
	RedisEnabled     bool   `env:"REDIS_ENABLED" envDefault:"false"`
	RateLimitEnabled bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	NotifySupport    bool   `env:"NOTIFY_SUPPORT" envDefault:"true"`
	UserHeader       string `env:"USER_ID_HEADER" envDefault:"X-User-ID"`
	RoutePrefix      string `env:"ROUTE_PREFIX" envDefault:"/billing"`

	Log logger.Config
}
