// Package admin implements the merchant, business profile and connector
// account lifecycles on top of storage, key management and routing.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/cache"
	"github.com/merchantops/merchantops/internal/connectors/registry"
	"github.com/merchantops/merchantops/internal/keymanager"
	"github.com/merchantops/merchantops/internal/metrics"
	"github.com/merchantops/merchantops/internal/openbanking"
	"github.com/merchantops/merchantops/internal/routing"
	"github.com/merchantops/merchantops/internal/store"
)

const (
	defaultPostCommitAttempts = 3
	defaultProfileWorkers     = 4
	defaultKeyTransferWorkers = 8

	defaultRoutingCacheTTL = 10 * time.Minute
)

// Options wires the collaborators of a Service.
type Options struct {
	Store       store.Store
	Keys        *keymanager.Manager
	Registry    *registry.ConnectorRegistry
	OpenBanking *openbanking.Resolver
	Publisher   routing.Publisher
	// RoutingCache holds decoded profile routing views. Share it with the
	// invalidation listener so evictions from other instances reach it.
	RoutingCache *cache.Local

	// APIVersion selects the v1 or v2 account shapes.
	APIVersion string
	// KeyPrefix is the environment part of publishable keys (dev, snd, prd).
	KeyPrefix             string
	KVSoftKill            bool
	DummyConnectorEnabled bool
	PostCommitAttempts    int
	ProfileWorkers        int

	Logger *slog.Logger
	Now    func() time.Time
}

type Service struct {
	store        store.Store
	keys         *keymanager.Manager
	registry     *registry.ConnectorRegistry
	openBanking  *openbanking.Resolver
	defaults     *routing.DefaultConfigManager
	activator    *routing.AlgorithmActivator
	strategy     strategy
	publisher    routing.Publisher
	routingViews *cache.Local

	keyPrefix             string
	kvSoftKill            bool
	dummyConnectorEnabled bool
	postCommitAttempts    int
	postCommitBackoff     time.Duration
	profileWorkers        int

	logger *slog.Logger
	now    func() time.Time
}

func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("admin: store is required")
	}
	if opts.Keys == nil {
		return nil, errors.New("admin: key manager is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("admin: connector registry is required")
	}
	if opts.OpenBanking == nil {
		opts.OpenBanking = openbanking.NewResolver(openbanking.ResolverOptions{Logger: opts.Logger})
	}
	strat, err := strategyFor(opts.APIVersion)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	publisher := opts.Publisher
	if publisher == nil {
		return nil, errors.New("admin: cache invalidation publisher is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	keyPrefix := opts.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "dev"
	}
	attempts := opts.PostCommitAttempts
	if attempts < 1 {
		attempts = defaultPostCommitAttempts
	}
	workers := opts.ProfileWorkers
	if workers < 1 {
		workers = defaultProfileWorkers
	}
	routingCache := opts.RoutingCache
	if routingCache == nil {
		routingCache = cache.NewLocal(defaultRoutingCacheTTL)
	}

	return &Service{
		store:                 opts.Store,
		keys:                  opts.Keys,
		registry:              opts.Registry,
		openBanking:           opts.OpenBanking,
		defaults:              routing.NewDefaultConfigManager(opts.Store, logger),
		activator:             routing.NewAlgorithmActivator(opts.Store, publisher, logger),
		strategy:              strat,
		publisher:             publisher,
		routingViews:          routingCache,
		keyPrefix:             keyPrefix,
		kvSoftKill:            opts.KVSoftKill,
		dummyConnectorEnabled: opts.DummyConnectorEnabled,
		postCommitAttempts:    attempts,
		postCommitBackoff:     50 * time.Millisecond,
		profileWorkers:        workers,
		logger:                logger,
		now:                   now,
	}, nil
}

// APIVersion reports the account shape version the service was built for.
func (s *Service) APIVersion() string {
	return s.strategy.version()
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

// track records the outcome of an operation. Use with a named error return:
//
//	defer s.track("merchant_create", time.Now(), &err)
func (s *Service) track(operation string, start time.Time, errp *error) {
	status := "success"
	if errp != nil && *errp != nil {
		status = string(apperr.KindOf(*errp))
	}
	metrics.AdminOperationsTotal.WithLabelValues(operation, status).Inc()
	metrics.AdminOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// merchantKey opens the data key of a merchant.
func (s *Service) merchantKey(ctx context.Context, st store.KeyStoreStore, merchantID string) (*keymanager.Key, error) {
	ks, err := st.GetMerchantKeyStore(ctx, merchantID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, merchantNotFound()
	}
	if err != nil {
		return nil, apperr.Internal("failed to fetch merchant key store", err)
	}
	key, err := s.keys.Open(ctx, keymanager.KeyStore{Wrapper: ks.Wrapper, WrappedKey: ks.WrappedKey})
	if err != nil {
		return nil, apperr.Internal("failed to open merchant key store", err)
	}
	return key, nil
}

func (s *Service) loadMerchant(ctx context.Context, merchantID string) (store.MerchantAccount, error) {
	m, err := s.store.GetMerchant(ctx, merchantID)
	if errors.Is(err, store.ErrNotFound) {
		return store.MerchantAccount{}, merchantNotFound()
	}
	if err != nil {
		return store.MerchantAccount{}, apperr.Internal("failed to fetch merchant account", err)
	}
	return m, nil
}

func merchantNotFound() *apperr.Error {
	return apperr.NotFound(apperr.CodeMerchantNotFound, "Merchant account does not exist in our records")
}

func profileNotFound(id string) *apperr.Error {
	return apperr.NotFound(apperr.CodeProfileNotFound, fmt.Sprintf("Business profile with the given id '%s' does not exist in our records", id))
}

func connectorNotFound(id string) *apperr.Error {
	return apperr.NotFound(apperr.CodeConnectorNotFound, fmt.Sprintf("Merchant connector account with id '%s' does not exist in our records", id))
}
