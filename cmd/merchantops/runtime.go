package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/merchantops/merchantops/internal/admin"
	"github.com/merchantops/merchantops/internal/cache"
	"github.com/merchantops/merchantops/internal/config"
	"github.com/merchantops/merchantops/internal/connectors"
	"github.com/merchantops/merchantops/internal/connectors/registry"
	"github.com/merchantops/merchantops/internal/keymanager"
	"github.com/merchantops/merchantops/internal/locker"
	"github.com/merchantops/merchantops/internal/openbanking"
	"github.com/merchantops/merchantops/internal/store"
	opsync "github.com/merchantops/merchantops/internal/sync"
	"github.com/merchantops/merchantops/internal/vault"
)

const routingCacheTTL = 10 * time.Minute

// exitAlreadyRunning is returned when a bulk job holds its lock elsewhere.
const exitAlreadyRunning = 75

// Scopes of the bulk jobs that must not run concurrently.
const (
	lockScopeKind        = "admin"
	lockScopeKVAll       = "kv_all"
	lockScopeKeyTransfer = "key_transfer"
)

// runtime holds the collaborators shared by the commands that talk to the
// database.
type runtime struct {
	cfg    config.Config
	logger *slog.Logger

	pool  *pgxpool.Pool
	store *store.Postgres
	vault *vault.Client
	keys  *keymanager.Manager
	redis *redis.Client

	// routingViews is read by the admin service and evicted by the
	// invalidation listener.
	routingViews *cache.Local
}

func openRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	vc, err := newVaultClient(cfg)
	if err != nil {
		return nil, err
	}
	keys, err := buildKeyManager(cfg, vc)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	rt := &runtime{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		store:  store.NewPostgres(pool),
		vault:  vc,
		keys:   keys,

		routingViews: cache.NewLocal(routingCacheTTL),
	}
	if cfg.CacheBackend == cache.BackendRedis {
		rt.redis = cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			rt.logger.Warn("close redis client", "error", err)
		}
	}
	rt.pool.Close()
}

func newVaultClient(cfg config.Config) (*vault.Client, error) {
	if !cfg.VaultConfigured() {
		return nil, nil
	}
	vc, err := vault.New(vault.Options{
		Address:          cfg.VaultAddr,
		Namespace:        cfg.VaultNamespace,
		AuthType:         cfg.VaultAuthType,
		Token:            cfg.VaultToken,
		AppRoleMountPath: cfg.VaultAppRoleMount,
		AppRoleRoleID:    cfg.VaultAppRoleRoleID,
		AppRoleSecretID:  cfg.VaultAppRoleSecretID,
	})
	if err != nil {
		return nil, fmt.Errorf("vault client: %w", err)
	}
	return vc, nil
}

// buildKeyManager registers every master key wrapper the config can build.
// The one named by KEY_MANAGER wraps new keys.
func buildKeyManager(cfg config.Config, vc *vault.Client) (*keymanager.Manager, error) {
	var local, transit keymanager.Wrapper
	if cfg.MasterEncKey != "" {
		w, err := keymanager.NewLocalWrapper(cfg.MasterEncKey)
		if err != nil {
			return nil, fmt.Errorf("MASTER_ENC_KEY: %w", err)
		}
		local = w
	}
	if vc != nil {
		w, err := keymanager.NewTransitWrapper(vc, cfg.VaultTransitMount, cfg.VaultTransitKey)
		if err != nil {
			return nil, err
		}
		transit = w
	}

	active, other := local, transit
	if cfg.KeyManager == keymanager.WrapperVault {
		active, other = transit, local
	}
	if active == nil {
		return nil, fmt.Errorf("key manager %q is not configured", cfg.KeyManager)
	}
	if other == nil {
		return keymanager.NewManager(active)
	}
	return keymanager.NewManager(active, other)
}

func (rt *runtime) publisher() (cache.Publisher, error) {
	switch rt.cfg.CacheBackend {
	case cache.BackendRedis:
		if rt.redis == nil {
			return nil, errors.New("redis client is not configured")
		}
		return cache.NewRedisPublisher(rt.redis, rt.cfg.CacheChannel), nil
	case cache.BackendPostgres:
		return cache.NewPostgresPublisher(rt.pool, rt.cfg.CacheChannel), nil
	default:
		return cache.Noop{}, nil
	}
}

func (rt *runtime) openBankingResolver() (*openbanking.Resolver, error) {
	opts := openbanking.ResolverOptions{
		LockerTTL: rt.cfg.LockerTTL,
		Logger:    rt.logger,
	}
	if rt.cfg.PaymentInitiationBaseURL != "" {
		client, err := openbanking.NewClient(rt.cfg.PaymentInitiationBaseURL)
		if err != nil {
			return nil, err
		}
		opts.Creator = client
	}
	if rt.vault != nil {
		l, err := locker.New(rt.vault, rt.cfg.VaultKVMount)
		if err != nil {
			return nil, err
		}
		opts.Locker = l
	}
	for _, name := range rt.cfg.LockerBasedOpenBankingConnectors {
		c, err := connectors.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("LOCKER_BASED_OPEN_BANKING_CONNECTORS: %w", err)
		}
		opts.LockerBased = append(opts.LockerBased, c)
	}
	return openbanking.NewResolver(opts), nil
}

func (rt *runtime) adminService() (*admin.Service, error) {
	reg, err := registry.Default()
	if err != nil {
		return nil, err
	}
	pub, err := rt.publisher()
	if err != nil {
		return nil, err
	}
	resolver, err := rt.openBankingResolver()
	if err != nil {
		return nil, err
	}
	return admin.New(admin.Options{
		Store:                 rt.store,
		Keys:                  rt.keys,
		Registry:              reg,
		OpenBanking:           resolver,
		Publisher:             pub,
		RoutingCache:          rt.routingViews,
		APIVersion:            rt.cfg.APIVersion,
		KeyPrefix:             rt.cfg.Environment.KeyPrefix(),
		KVSoftKill:            rt.cfg.KVSoftKill,
		DummyConnectorEnabled: rt.cfg.DummyConnectorEnabled,
		PostCommitAttempts:    rt.cfg.PostCommitAttempt,
		ProfileWorkers:        rt.cfg.ProfileWorkers,
		Logger:                rt.logger,
	})
}

// exclusive runs fn under the advisory lock of scope.
func (rt *runtime) exclusive(ctx context.Context, scope string, fn func(context.Context) error) error {
	locks, err := opsync.NewAdvisoryLockManager(rt.pool)
	if err != nil {
		return err
	}
	err = opsync.RunExclusive(ctx, locks, lockScopeKind, scope, fn)
	if errors.Is(err, opsync.ErrAlreadyRunning) {
		return &exitError{code: exitAlreadyRunning, err: fmt.Errorf("%s: %w", scope, err)}
	}
	return err
}
