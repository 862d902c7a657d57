package app

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the console, the sandbox API and the worker.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`
	RateLimit         int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	GatewayBaseURL string        `envconfig:"GATEWAY_BASE_URL" default:"http://127.0.0.1:8081/api/v1"`
	GatewayTimeout time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"15s"`

	// RedisAddr is optional; when empty dispatch slots and table views stay in process.
	RedisAddr    string        `envconfig:"REDIS_ADDR"`
	SessionTTL   time.Duration `envconfig:"SESSION_TTL" default:"12h"`
	DispatchTTL  time.Duration `envconfig:"DISPATCH_TTL" default:"30m"`
	ViewCacheTTL time.Duration `envconfig:"VIEW_CACHE_TTL" default:"5m"`

	DisplayLocale       string `envconfig:"DISPLAY_LOCALE" default:"en-US"`
	DisplayCurrency     string `envconfig:"DISPLAY_CURRENCY" default:"USD"`
	DefaultTechnicianID string `envconfig:"DEFAULT_TECHNICIAN_ID" default:"92bc23b9-92e5-4eda-b3eb-3a2e6d2f240a"`

	MockAPIAddr        string `envconfig:"MOCKAPI_ADDR" default:":8081"`
	MockAPITechnicians string `envconfig:"MOCKAPI_TECHNICIANS" default:"92bc23b9-92e5-4eda-b3eb-3a2e6d2f240a:Default Technician"`
	MockAPISeed        string `envconfig:"MOCKAPI_SEED"`

	WorkerConcurrency int    `envconfig:"WORKER_CONCURRENCY" default:"5"`
	SettleCron        string `envconfig:"SETTLE_CRON" default:"*/10 * * * *"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.GatewayTimeout <= 0 {
		return nil, errors.New("gateway timeout must be positive")
	}
	if cfg.DispatchTTL <= 0 {
		return nil, errors.New("dispatch ttl must be positive")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// HasRedis reports whether a Redis address is configured.
func (c *Config) HasRedis() bool {
	return c != nil && c.RedisAddr != ""
}

// runtimeFlags is read before LoadConfig so the binaries can bail out early.
type runtimeFlags struct {
	TestMode bool `envconfig:"FIELDOPS_TEST_MODE"`
}

var (
	testMode     atomic.Bool
	testModeOnce sync.Once
)

func loadTestMode() {
	var flags runtimeFlags
	// Empty or malformed values leave the flag off.
	if err := envconfig.Process("", &flags); err != nil {
		flags.TestMode = false
	}
	testMode.Store(flags.TestMode)
}

// InTestMode reports whether FIELDOPS_TEST_MODE is set, in which case the
// binaries return before opening listeners or connections.
func InTestMode() bool {
	testModeOnce.Do(loadTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads the flag after the environment changed.
func RefreshTestMode() {
	testModeOnce.Do(func() {})
	loadTestMode()
}
