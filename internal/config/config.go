package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName        = "PayWave"
	defaultEnv            = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultStoreTimeout   = 5 * time.Second
	defaultPurgeInterval  = time.Hour

	// Business rules preserved as configuration rather than code: the source
	// system fixed these with no stated rationale.
	defaultDepositCeiling = 5000
	defaultCodeTTL        = 24 * time.Hour
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	Env            string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	// DepositCeiling is the maximum amount a single deposit may inject.
	DepositCeiling int64
	// CodeTTL is how long a payment code stays redeemable after creation.
	CodeTTL time.Duration
	// StoreTimeout bounds every store access so no operation blocks indefinitely.
	StoreTimeout time.Duration
	// PurgeInterval is how often expired unused payment codes are swept away.
	PurgeInterval time.Duration
	// RedeemRatePerMin caps redemption attempts per caller per minute.
	RedeemRatePerMin int
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:          getEnv("APP_NAME", defaultAppName),
		Env:              strings.ToLower(getEnv("APP_ENV", defaultEnv)),
		Port:             getEnv("PORT", defaultPort),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		ShutdownPeriod:   defaultShutdownDelay,
		IdempotencyTTL:   defaultIdempotencyTTL,
		DepositCeiling:   defaultDepositCeiling,
		CodeTTL:          defaultCodeTTL,
		StoreTimeout:     defaultStoreTimeout,
		PurgeInterval:    defaultPurgeInterval,
		RedeemRatePerMin: 10,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.CodeTTL, err = durationEnv("CODE_TTL", cfg.CodeTTL); err != nil {
		return Config{}, err
	}
	if cfg.StoreTimeout, err = durationEnv("STORE_TIMEOUT", cfg.StoreTimeout); err != nil {
		return Config{}, err
	}
	if cfg.PurgeInterval, err = durationEnv("CODE_PURGE_INTERVAL", cfg.PurgeInterval); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("DEPOSIT_CEILING"); v != "" {
		ceiling, err := strconv.ParseInt(v, 10, 64)
		if err != nil || ceiling <= 0 {
			return Config{}, fmt.Errorf("invalid DEPOSIT_CEILING: %q", v)
		}
		cfg.DepositCeiling = ceiling
	}
	if v := os.Getenv("REDEEM_RATE_PER_MIN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid REDEEM_RATE_PER_MIN: %q", v)
		}
		cfg.RedeemRatePerMin = n
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set")
		}
	}

	return cfg, nil
}

// IsDev reports whether the app runs in a development-like environment where
// in-memory stores are acceptable.
func (c Config) IsDev() bool {
	switch c.Env {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
