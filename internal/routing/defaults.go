package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/connectors"
	"github.com/merchantops/merchantops/internal/metrics"
	"github.com/merchantops/merchantops/internal/store"
)

const defaultMaxAttempts = 5

type Scope string

const (
	ScopeMerchant Scope = "merchant"
	ScopeProfile  Scope = "profile"
)

// DefaultConfigKey is the config key of the default list owned by id. Merchant
// lists live under their own prefix so a merchant id equal to a profile id
// does not share a list with that profile.
func DefaultConfigKey(scope Scope, id string, txn connectors.TransactionType) string {
	prefix := "routing_default_"
	if txn == connectors.TransactionPayout {
		prefix = "routing_default_po_"
	}
	if scope == ScopeMerchant {
		prefix += "merchant_"
	}
	return prefix + id
}

// DefaultConfigManager owns the merchant and profile default routing lists.
// Writes use the version of the config row, so concurrent registrations
// never drop each other's entries.
type DefaultConfigManager struct {
	configs     store.ConfigStore
	logger      *slog.Logger
	maxAttempts int
}

func NewDefaultConfigManager(configs store.ConfigStore, logger *slog.Logger) *DefaultConfigManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultConfigManager{configs: configs, logger: logger, maxAttempts: defaultMaxAttempts}
}

// RegisterIfAbsent appends the account to the merchant list and to the
// profile list of txn unless an equal choice is already there.
func (m *DefaultConfigManager) RegisterIfAbsent(ctx context.Context, merchantID, profileID string, routable connectors.RoutableConnector, merchantConnectorID string, txn connectors.TransactionType) error {
	choice := FullStruct(routable, merchantConnectorID)
	if err := m.appendIfAbsent(ctx, ScopeMerchant, merchantID, txn, choice); err != nil {
		return err
	}
	return m.appendIfAbsent(ctx, ScopeProfile, profileID, txn, choice)
}

// Get returns the default list of id. A list never written is empty.
func (m *DefaultConfigManager) Get(ctx context.Context, scope Scope, id string, txn connectors.TransactionType) ([]Choice, error) {
	list, _, err := m.load(ctx, DefaultConfigKey(scope, id, txn))
	return list, err
}

// Replace overwrites the list of id with a reordering of its current entries.
func (m *DefaultConfigManager) Replace(ctx context.Context, scope Scope, id string, txn connectors.TransactionType, updated []Choice) ([]Choice, error) {
	key := DefaultConfigKey(scope, id, txn)
	for attempt := 0; attempt < m.maxAttempts; attempt++ {
		current, cfg, err := m.load(ctx, key)
		if err != nil {
			return nil, err
		}
		if err := IsPermutation(current, updated); err != nil {
			return nil, err
		}
		written, err := m.write(ctx, key, cfg, updated)
		if errors.Is(err, errRetry) {
			m.observe(scope, txn, "conflict_retry")
			continue
		}
		if err != nil {
			return nil, err
		}
		m.observe(scope, txn, "replaced")
		return written, nil
	}
	return nil, apperr.Internal("default routing config kept changing", fmt.Errorf("key %s", key))
}

var errRetry = errors.New("routing: retry")

func (m *DefaultConfigManager) appendIfAbsent(ctx context.Context, scope Scope, id string, txn connectors.TransactionType, choice Choice) error {
	key := DefaultConfigKey(scope, id, txn)
	for attempt := 0; attempt < m.maxAttempts; attempt++ {
		current, cfg, err := m.load(ctx, key)
		if err != nil {
			return err
		}
		if Contains(current, choice) {
			m.observe(scope, txn, "present")
			return nil
		}
		_, err = m.write(ctx, key, cfg, append(current, choice))
		if errors.Is(err, errRetry) {
			m.observe(scope, txn, "conflict_retry")
			m.logger.Debug("default routing config changed concurrently", "key", key, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return err
		}
		m.observe(scope, txn, "added")
		m.logger.Info("registered connector in default routing config",
			"scope", string(scope), "key", key, "connector", choice.Connector.String())
		return nil
	}
	return apperr.Internal("default routing config kept changing", fmt.Errorf("key %s", key))
}

// load returns the list and the row it came from; cfg is nil when no row exists.
func (m *DefaultConfigManager) load(ctx context.Context, key string) ([]Choice, *store.Config, error) {
	cfg, err := m.configs.GetConfig(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return []Choice{}, nil, nil
	}
	if err != nil {
		return nil, nil, apperr.Internal("failed to fetch default routing config", err)
	}
	list, err := DecodeList(json.RawMessage(cfg.Value))
	if err != nil {
		return nil, nil, apperr.Internal("failed to decode default routing config", err)
	}
	return list, &cfg, nil
}

func (m *DefaultConfigManager) write(ctx context.Context, key string, cfg *store.Config, list []Choice) ([]Choice, error) {
	encoded, err := json.Marshal(list)
	if err != nil {
		return nil, apperr.Internal("failed to encode default routing config", err)
	}
	if cfg == nil {
		_, err = m.configs.InsertConfig(ctx, key, string(encoded))
		if errors.Is(err, store.ErrDuplicate) {
			return nil, errRetry
		}
	} else {
		_, err = m.configs.UpdateConfigIfVersion(ctx, key, string(encoded), cfg.Version)
		if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
			return nil, errRetry
		}
	}
	if err != nil {
		return nil, apperr.Internal("failed to update default routing config", err)
	}
	return list, nil
}

func (m *DefaultConfigManager) observe(scope Scope, txn connectors.TransactionType, result string) {
	metrics.RoutingDefaultConfigUpdatesTotal.WithLabelValues(string(scope), string(txn), result).Inc()
}
