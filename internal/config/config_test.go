package config

import (
	"testing"
	"time"
)

func setBase(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("API_VERSION", "")
	t.Setenv("CACHE_INVALIDATION_BACKEND", "")
	t.Setenv("KEY_MANAGER", "")
	t.Setenv("MASTER_ENC_KEY", "00")
	t.Setenv("LOCKER_BASED_OPEN_BANKING_CONNECTORS", "")
	t.Setenv("LOCKER_TTL", "")
	t.Setenv("METRICS_ADDR", "")
	t.Setenv("POST_COMMIT_ATTEMPTS", "")
}

func TestLoadWithOptions_Defaults(t *testing.T) {
	setBase(t)

	cfg, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
	if err != nil {
		t.Fatalf("LoadWithOptions() error = %v", err)
	}
	if cfg.Environment != Development || cfg.Environment.KeyPrefix() != "dev" {
		t.Fatalf("Environment = %q", cfg.Environment)
	}
	if cfg.APIVersion != "v1" || cfg.CacheBackend != "redis" || cfg.KeyManager != "local" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.PostCommitAttempt != defaultPostCommitAttempts {
		t.Fatalf("PostCommitAttempt = %d, want %d", cfg.PostCommitAttempt, defaultPostCommitAttempts)
	}
	if !cfg.MetricsEnabled() {
		t.Fatalf("MetricsEnabled() = false, want true")
	}
}

func TestLoadWithOptions_ParsesLists(t *testing.T) {
	setBase(t)
	t.Setenv("LOCKER_BASED_OPEN_BANKING_CONNECTORS", " Volt, ,trustpay ")
	t.Setenv("LOCKER_TTL", "90m")
	t.Setenv("METRICS_ADDR", "off")
	t.Setenv("ENVIRONMENT", "Production")

	cfg, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
	if err != nil {
		t.Fatalf("LoadWithOptions() error = %v", err)
	}
	if len(cfg.LockerBasedOpenBankingConnectors) != 2 || cfg.LockerBasedOpenBankingConnectors[0] != "volt" {
		t.Fatalf("LockerBasedOpenBankingConnectors = %v", cfg.LockerBasedOpenBankingConnectors)
	}
	if cfg.LockerTTL != 90*time.Minute {
		t.Fatalf("LockerTTL = %s", cfg.LockerTTL)
	}
	if cfg.MetricsEnabled() {
		t.Fatalf("MetricsEnabled() = true, want false")
	}
	if cfg.Environment.KeyPrefix() != "prd" {
		t.Fatalf("KeyPrefix() = %q, want prd", cfg.Environment.KeyPrefix())
	}
}

func TestLoadWithOptions_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		opts LoadOptions
	}{
		{name: "missing database url", opts: LoadOptions{RequireDatabaseURL: true}},
		{name: "bad environment", env: map[string]string{"ENVIRONMENT": "staging"}},
		{name: "bad api version", env: map[string]string{"API_VERSION": "v3"}},
		{name: "bad cache backend", env: map[string]string{"CACHE_INVALIDATION_BACKEND": "memcached"}},
		{name: "local without key", env: map[string]string{"MASTER_ENC_KEY": ""}},
		{name: "vault without addr", env: map[string]string{"KEY_MANAGER": "vault", "VAULT_ADDR": ""}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setBase(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := LoadWithOptions(tc.opts); err == nil {
				t.Fatalf("LoadWithOptions() error = nil, want error")
			}
		})
	}
}

func TestLoadWithOptions_SkipKeyManager(t *testing.T) {
	setBase(t)
	t.Setenv("MASTER_ENC_KEY", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/merchantops")

	cfg, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: true, SkipKeyManager: true})
	if err != nil {
		t.Fatalf("LoadWithOptions() error = %v", err)
	}
	if cfg.DatabaseURL == "" {
		t.Fatalf("DatabaseURL is empty")
	}

	t.Setenv("KEY_MANAGER", "hsm")
	if _, err := LoadWithOptions(LoadOptions{SkipKeyManager: true}); err == nil {
		t.Fatalf("LoadWithOptions() accepted an unknown key manager")
	}
}
