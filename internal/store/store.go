// Package store persists organizations, merchants, business profiles,
// connector accounts and config blobs.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate key")
	// ErrConflict is returned when a versioned update lost a race.
	ErrConflict = errors.New("store: version conflict")
)

type OrganizationStore interface {
	InsertOrganization(ctx context.Context, org Organization) (Organization, error)
	GetOrganization(ctx context.Context, organizationID string) (Organization, error)
	UpdateOrganization(ctx context.Context, org Organization) (Organization, error)
}

type KeyStoreStore interface {
	InsertMerchantKeyStore(ctx context.Context, ks MerchantKeyStore) (MerchantKeyStore, error)
	GetMerchantKeyStore(ctx context.Context, merchantID string) (MerchantKeyStore, error)
	ListMerchantKeyStores(ctx context.Context) ([]MerchantKeyStore, error)
	UpdateMerchantKeyStore(ctx context.Context, ks MerchantKeyStore) (MerchantKeyStore, error)
	DeleteMerchantKeyStore(ctx context.Context, merchantID string) (bool, error)
}

type MerchantStore interface {
	InsertMerchant(ctx context.Context, m MerchantAccount) (MerchantAccount, error)
	GetMerchant(ctx context.Context, merchantID string) (MerchantAccount, error)
	ListMerchantsByOrganization(ctx context.Context, organizationID string) ([]MerchantAccount, error)
	UpdateMerchant(ctx context.Context, m MerchantAccount) (MerchantAccount, error)
	// TouchMerchant bumps modified_at without changing any other field.
	TouchMerchant(ctx context.Context, merchantID string, at time.Time) error
	// UpdateStorageScheme is the only write path for storage_scheme.
	UpdateStorageScheme(ctx context.Context, merchantID string, scheme StorageScheme, at time.Time) (MerchantAccount, error)
	UpdateAllStorageSchemes(ctx context.Context, scheme StorageScheme) ([]MerchantAccount, error)
	DeleteMerchant(ctx context.Context, merchantID string) (bool, error)
}

type ProfileStore interface {
	InsertProfile(ctx context.Context, p BusinessProfile) (BusinessProfile, error)
	GetProfile(ctx context.Context, profileID string) (BusinessProfile, error)
	GetProfileByName(ctx context.Context, merchantID, profileName string) (BusinessProfile, error)
	ListProfiles(ctx context.Context, merchantID string) ([]BusinessProfile, error)
	UpdateProfile(ctx context.Context, p BusinessProfile) (BusinessProfile, error)
	DeleteProfile(ctx context.Context, merchantID, profileID string) (bool, error)
}

type ConnectorStore interface {
	InsertConnector(ctx context.Context, mca MerchantConnectorAccount) (MerchantConnectorAccount, error)
	GetConnector(ctx context.Context, merchantID, merchantConnectorID string) (MerchantConnectorAccount, error)
	// ListConnectors returns every account of the merchant, disabled ones
	// included when includeDisabled is set.
	ListConnectors(ctx context.Context, merchantID string, includeDisabled bool) ([]MerchantConnectorAccount, error)
	UpdateConnector(ctx context.Context, mca MerchantConnectorAccount) (MerchantConnectorAccount, error)
	DeleteConnector(ctx context.Context, merchantID, merchantConnectorID string) (bool, error)
}

type ConfigStore interface {
	InsertConfig(ctx context.Context, key, value string) (Config, error)
	GetConfig(ctx context.Context, key string) (Config, error)
	// UpdateConfigIfVersion writes value only when the stored version still
	// equals version. The new version is returned.
	UpdateConfigIfVersion(ctx context.Context, key, value string, version int64) (Config, error)
	DeleteConfig(ctx context.Context, key string) (bool, error)
}

// Store is the full storage contract.
type Store interface {
	OrganizationStore
	KeyStoreStore
	MerchantStore
	ProfileStore
	ConnectorStore
	ConfigStore
	// WithTx runs fn against a transactional view of the store. fn's error
	// rolls the transaction back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Present reports whether raw carries a JSON value other than null.
func Present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
