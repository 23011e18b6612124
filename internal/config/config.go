package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr           = ":8080"
	defaultMetricsAddr        = ":9090"
	defaultRedisAddr          = "localhost:6379"
	defaultInvalidateChannel  = "merchantops_invalidate"
	defaultTransitMount       = "transit"
	defaultTransitKey         = "merchantops-master"
	defaultKVMount            = "secret"
	defaultPostCommitAttempts = 3
	defaultProfileWorkers     = 4
)

// Environment names the deployment tier.
type Environment string

const (
	Development Environment = "development"
	Sandbox     Environment = "sandbox"
	Production  Environment = "production"
)

// KeyPrefix is the environment part of publishable keys.
func (e Environment) KeyPrefix() string {
	switch e {
	case Sandbox:
		return "snd"
	case Production:
		return "prd"
	default:
		return "dev"
	}
}

type Config struct {
	DatabaseURL string
	HTTPAddr    string
	MetricsAddr string
	Environment Environment
	APIVersion  string

	KVSoftKill            bool
	DummyConnectorEnabled bool

	LockerBasedOpenBankingConnectors []string
	PaymentInitiationBaseURL         string
	LockerTTL                        time.Duration

	CacheBackend      string
	CacheChannel      string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	PostCommitAttempt int
	ProfileWorkers    int

	KeyManager   string
	MasterEncKey string

	VaultAddr            string
	VaultToken           string
	VaultNamespace       string
	VaultAuthType        string
	VaultAppRoleMount    string
	VaultAppRoleRoleID   string
	VaultAppRoleSecretID string
	VaultTransitMount    string
	VaultTransitKey      string
	VaultKVMount         string
}

// MetricsEnabled reports whether the Prometheus listener should start.
func (c Config) MetricsEnabled() bool {
	return c.MetricsAddr != "" && !strings.EqualFold(c.MetricsAddr, "off")
}

// VaultConfigured reports whether a Vault address is set.
func (c Config) VaultConfigured() bool {
	return strings.TrimSpace(c.VaultAddr) != ""
}

type LoadOptions struct {
	RequireDatabaseURL bool
	// SkipKeyManager accepts a config without master key material. Commands
	// that never touch merchant secrets set it.
	SkipKeyManager bool
}

func Load() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireDatabaseURL: true})
}

func LoadOptionalDB() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
}

func LoadWithOptions(opts LoadOptions) (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, err
		}
	}

	cfg := Config{
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		HTTPAddr:                 getenvDefault("HTTP_ADDR", defaultHTTPAddr),
		MetricsAddr:              getenvDefault("METRICS_ADDR", defaultMetricsAddr),
		Environment:              Environment(strings.ToLower(getenvDefault("ENVIRONMENT", string(Development)))),
		APIVersion:               strings.ToLower(getenvDefault("API_VERSION", "v1")),
		KVSoftKill:               getenvBoolDefault("KV_SOFT_KILL", false),
		DummyConnectorEnabled:    getenvBoolDefault("DUMMY_CONNECTOR_ENABLED", false),
		PaymentInitiationBaseURL: strings.TrimSpace(os.Getenv("PAYMENT_INITIATION_BASE_URL")),
		CacheBackend:             strings.ToLower(getenvDefault("CACHE_INVALIDATION_BACKEND", "redis")),
		CacheChannel:             getenvDefault("CACHE_INVALIDATION_CHANNEL", defaultInvalidateChannel),
		RedisAddr:                getenvDefault("REDIS_ADDR", defaultRedisAddr),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  getenvNonNegativeIntDefault("REDIS_DB", 0),
		PostCommitAttempt:        getenvIntDefault("POST_COMMIT_ATTEMPTS", defaultPostCommitAttempts),
		ProfileWorkers:           getenvIntDefault("PROFILE_CREATE_WORKERS", defaultProfileWorkers),
		KeyManager:               strings.ToLower(getenvDefault("KEY_MANAGER", "local")),
		MasterEncKey:             strings.TrimSpace(os.Getenv("MASTER_ENC_KEY")),
		VaultAddr:                os.Getenv("VAULT_ADDR"),
		VaultToken:               os.Getenv("VAULT_TOKEN"),
		VaultNamespace:           os.Getenv("VAULT_NAMESPACE"),
		VaultAuthType:            strings.ToLower(getenvDefault("VAULT_AUTH_TYPE", "token")),
		VaultAppRoleMount:        getenvDefault("VAULT_APPROLE_MOUNT", "approle"),
		VaultAppRoleRoleID:       os.Getenv("VAULT_APPROLE_ROLE_ID"),
		VaultAppRoleSecretID:     os.Getenv("VAULT_APPROLE_SECRET_ID"),
		VaultTransitMount:        getenvDefault("VAULT_TRANSIT_MOUNT", defaultTransitMount),
		VaultTransitKey:          getenvDefault("VAULT_TRANSIT_KEY", defaultTransitKey),
		VaultKVMount:             getenvDefault("VAULT_KV_MOUNT", defaultKVMount),
	}

	for _, name := range strings.Split(os.Getenv("LOCKER_BASED_OPEN_BANKING_CONNECTORS"), ",") {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			cfg.LockerBasedOpenBankingConnectors = append(cfg.LockerBasedOpenBankingConnectors, name)
		}
	}
	if v := os.Getenv("LOCKER_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.LockerTTL = d
		}
	}

	switch cfg.Environment {
	case Development, Sandbox, Production:
	default:
		return cfg, fmt.Errorf("ENVIRONMENT must be one of: development, sandbox, production")
	}
	switch cfg.APIVersion {
	case "v1", "v2":
	default:
		return cfg, fmt.Errorf("API_VERSION must be one of: v1, v2")
	}
	switch cfg.CacheBackend {
	case "redis", "postgres", "none":
	default:
		return cfg, fmt.Errorf("CACHE_INVALIDATION_BACKEND must be one of: redis, postgres, none")
	}
	switch cfg.KeyManager {
	case "local":
		if cfg.MasterEncKey == "" && !opts.SkipKeyManager {
			return cfg, errors.New("MASTER_ENC_KEY is required when KEY_MANAGER=local")
		}
	case "vault":
		if !cfg.VaultConfigured() && !opts.SkipKeyManager {
			return cfg, errors.New("VAULT_ADDR is required when KEY_MANAGER=vault")
		}
	default:
		return cfg, fmt.Errorf("KEY_MANAGER must be one of: local, vault")
	}

	if opts.RequireDatabaseURL && cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func getenvNonNegativeIntDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvBoolDefault(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	switch v {
	case "1":
		return true
	case "0":
		return false
	default:
		return def
	}
}
