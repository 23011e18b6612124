package main

import (
	"testing"

	"github.com/merchantops/merchantops/internal/config"
	"github.com/merchantops/merchantops/internal/connectors"
	"github.com/merchantops/merchantops/internal/keymanager"
)

const testMasterKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestBuildKeyManager(t *testing.T) {
	t.Parallel()

	keys, err := buildKeyManager(config.Config{KeyManager: "local", MasterEncKey: testMasterKey}, nil)
	if err != nil {
		t.Fatalf("buildKeyManager(local) error = %v", err)
	}
	if got := keys.Active().Name(); got != keymanager.WrapperLocal {
		t.Fatalf("active wrapper = %q, want %q", got, keymanager.WrapperLocal)
	}
	if _, ok := keys.Wrapper(keymanager.WrapperVault); ok {
		t.Fatalf("vault wrapper registered without a vault client")
	}

	if _, err := buildKeyManager(config.Config{KeyManager: "vault", MasterEncKey: testMasterKey}, nil); err == nil {
		t.Fatalf("buildKeyManager(vault without client) error = nil")
	}
	if _, err := buildKeyManager(config.Config{KeyManager: "local", MasterEncKey: "not-hex"}, nil); err == nil {
		t.Fatalf("buildKeyManager(bad key) error = nil")
	}
}

func TestOpenBankingResolverRejectsUnknownLockerConnector(t *testing.T) {
	t.Parallel()

	rt := &runtime{cfg: config.Config{LockerBasedOpenBankingConnectors: []string{"nosuchbank"}}}
	if _, err := rt.openBankingResolver(); err == nil {
		t.Fatalf("openBankingResolver() error = nil, want error")
	}

	rt = &runtime{cfg: config.Config{LockerBasedOpenBankingConnectors: []string{string(connectors.Stripe)}}}
	if _, err := rt.openBankingResolver(); err != nil {
		t.Fatalf("openBankingResolver() error = %v", err)
	}
}

func TestPublisherDefaultsToNoop(t *testing.T) {
	t.Parallel()

	rt := &runtime{cfg: config.Config{CacheBackend: "none"}}
	pub, err := rt.publisher()
	if err != nil || pub == nil {
		t.Fatalf("publisher() = %v, %v", pub, err)
	}

	rt = &runtime{cfg: config.Config{CacheBackend: "redis"}}
	if _, err := rt.publisher(); err == nil {
		t.Fatalf("publisher(redis without client) error = nil")
	}
}
