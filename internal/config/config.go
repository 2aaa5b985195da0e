package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mamapay/ledgerwallet/internal/ledger"
)

const (
	defaultAppName        = "LedgerWallet"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultHorizonURL     = "https://horizon-testnet.stellar.org"
	defaultNetwork        = "Test Network ; LedgerWallet"
	defaultAssetCode      = "USD"
	defaultNativeBalance  = "999"
	defaultSeedFunding    = "50"
	defaultProvisionMode  = "async"
	defaultWorkers        = 4
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
)

// Provisioning execution modes: inline blocks the signup call on the full
// ledger workflow; async returns once the identity record is persisted and
// runs the ledger steps on background workers.
const (
	ModeInline = "inline"
	ModeAsync  = "async"
)

// Config captures application runtime configuration loaded from environment
// variables. All values are fixed at startup; malformed values are fatal.
type Config struct {
	AppName  string
	AppEnv   string
	Port     string
	LogLevel string

	DatabaseURL string
	RedisURL    string

	VaultSecret   string
	HorizonURL    string
	Network       string
	AssetCode     string
	IssuerAddress string
	FunderSeed    string
	BankSeed      string

	// NativeStartingBalance covers the minimum reserve plus one trust-line
	// reserve for a newly created account.
	NativeStartingBalance string
	// SeedFundingAmount is the asset gift sent after trust authorization.
	SeedFundingAmount string

	ProvisionMode    string
	ProvisionRetries int
	ProvisionWorkers int

	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
}

// Load reads configuration values from the environment and validates them.
func Load() (Config, error) {
	cfg := Config{
		AppName:  getEnv("APP_NAME", defaultAppName),
		AppEnv:   getEnv("APP_ENV", defaultAppEnv),
		Port:     getEnv("PORT", defaultPort),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		VaultSecret:   os.Getenv("VAULT_SECRET"),
		HorizonURL:    getEnv("HORIZON_URL", defaultHorizonURL),
		Network:       getEnv("NETWORK_PASSPHRASE", defaultNetwork),
		AssetCode:     getEnv("ASSET_CODE", defaultAssetCode),
		IssuerAddress: os.Getenv("ISSUER_ADDRESS"),
		FunderSeed:    os.Getenv("FUNDER_SEED"),
		BankSeed:      os.Getenv("BANK_SEED"),

		NativeStartingBalance: getEnv("NATIVE_STARTING_BALANCE", defaultNativeBalance),
		SeedFundingAmount:     getEnv("SEED_FUNDING_AMOUNT", defaultSeedFunding),

		ProvisionMode:    strings.ToLower(getEnv("PROVISION_MODE", defaultProvisionMode)),
		ProvisionWorkers: defaultWorkers,

		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
	}

	if cfg.VaultSecret == "" {
		return Config{}, fmt.Errorf("VAULT_SECRET must be set")
	}
	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.IssuerAddress == "" || cfg.FunderSeed == "" || cfg.BankSeed == "" {
			return Config{}, fmt.Errorf("ISSUER_ADDRESS, FUNDER_SEED and BANK_SEED must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	if cfg.ProvisionMode != ModeInline && cfg.ProvisionMode != ModeAsync {
		return Config{}, fmt.Errorf("invalid PROVISION_MODE %q", cfg.ProvisionMode)
	}
	if _, err := ledger.ParseAmount(cfg.NativeStartingBalance); err != nil {
		return Config{}, fmt.Errorf("invalid NATIVE_STARTING_BALANCE: %w", err)
	}
	if _, err := ledger.ParseAmount(cfg.SeedFundingAmount); err != nil {
		return Config{}, fmt.Errorf("invalid SEED_FUNDING_AMOUNT: %w", err)
	}

	if v := os.Getenv("PROVISION_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("invalid PROVISION_RETRIES %q", v)
		}
		cfg.ProvisionRetries = n
	}
	if v := os.Getenv("PROVISION_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid PROVISION_WORKERS %q", v)
		}
		cfg.ProvisionWorkers = n
	}

	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
		}
		cfg.ShutdownPeriod = d
	}
	if v := os.Getenv("IDEMPOTENCY_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid IDEMPOTENCY_TTL: %w", err)
		}
		cfg.IdempotencyTTL = d
	}

	return cfg, nil
}

// IsDev reports whether the process runs in a development environment, where
// the Postgres/Redis/custodial-key requirements relax to in-memory fallbacks.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
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
