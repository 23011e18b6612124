// Package memstore is an in-memory store.Store used by tests and dry runs.
package memstore

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/merchantops/merchantops/internal/store"
)

type Store struct {
	mu            sync.Mutex
	organizations map[string]store.Organization
	keyStores     map[string]store.MerchantKeyStore
	merchants     map[string]store.MerchantAccount
	profiles      map[string]store.BusinessProfile
	connectors    map[string]store.MerchantConnectorAccount
	configs       map[string]store.Config
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		organizations: map[string]store.Organization{},
		keyStores:     map[string]store.MerchantKeyStore{},
		merchants:     map[string]store.MerchantAccount{},
		profiles:      map[string]store.BusinessProfile{},
		connectors:    map[string]store.MerchantConnectorAccount{},
		configs:       map[string]store.Config{},
	}
}

// WithTx restores the previous state when fn fails. Concurrent writers are
// not isolated from each other.
func (s *Store) WithTx(_ context.Context, fn func(store.Store) error) error {
	s.mu.Lock()
	snap := s.snapshot()
	s.mu.Unlock()
	if err := fn(s); err != nil {
		s.mu.Lock()
		s.restore(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

type snapshot struct {
	organizations map[string]store.Organization
	keyStores     map[string]store.MerchantKeyStore
	merchants     map[string]store.MerchantAccount
	profiles      map[string]store.BusinessProfile
	connectors    map[string]store.MerchantConnectorAccount
	configs       map[string]store.Config
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		organizations: maps.Clone(s.organizations),
		keyStores:     maps.Clone(s.keyStores),
		merchants:     maps.Clone(s.merchants),
		profiles:      maps.Clone(s.profiles),
		connectors:    maps.Clone(s.connectors),
		configs:       maps.Clone(s.configs),
	}
}

func (s *Store) restore(snap snapshot) {
	s.organizations = snap.organizations
	s.keyStores = snap.keyStores
	s.merchants = snap.merchants
	s.profiles = snap.profiles
	s.connectors = snap.connectors
	s.configs = snap.configs
}

func sortedValues[V any](m map[string]V, keep func(V) bool, less func(a, b V) int) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		if keep(v) {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, less)
	return out
}

// Organizations

func (s *Store) InsertOrganization(_ context.Context, org store.Organization) (store.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.organizations[org.OrganizationID]; ok {
		return store.Organization{}, store.ErrDuplicate
	}
	s.organizations[org.OrganizationID] = org
	return org, nil
}

func (s *Store) GetOrganization(_ context.Context, organizationID string) (store.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.organizations[organizationID]
	if !ok {
		return store.Organization{}, store.ErrNotFound
	}
	return org, nil
}

func (s *Store) UpdateOrganization(_ context.Context, org store.Organization) (store.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.organizations[org.OrganizationID]
	if !ok {
		return store.Organization{}, store.ErrNotFound
	}
	org.CreatedAt = current.CreatedAt
	s.organizations[org.OrganizationID] = org
	return org, nil
}

// Key stores

func (s *Store) InsertMerchantKeyStore(_ context.Context, ks store.MerchantKeyStore) (store.MerchantKeyStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keyStores[ks.MerchantID]; ok {
		return store.MerchantKeyStore{}, store.ErrDuplicate
	}
	s.keyStores[ks.MerchantID] = ks
	return ks, nil
}

func (s *Store) GetMerchantKeyStore(_ context.Context, merchantID string) (store.MerchantKeyStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ks, ok := s.keyStores[merchantID]
	if !ok {
		return store.MerchantKeyStore{}, store.ErrNotFound
	}
	return ks, nil
}

func (s *Store) ListMerchantKeyStores(_ context.Context) ([]store.MerchantKeyStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.keyStores, func(store.MerchantKeyStore) bool { return true }, func(a, b store.MerchantKeyStore) int {
		return strings.Compare(a.MerchantID, b.MerchantID)
	}), nil
}

func (s *Store) UpdateMerchantKeyStore(_ context.Context, ks store.MerchantKeyStore) (store.MerchantKeyStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.keyStores[ks.MerchantID]
	if !ok {
		return store.MerchantKeyStore{}, store.ErrNotFound
	}
	current.Wrapper, current.WrappedKey = ks.Wrapper, ks.WrappedKey
	s.keyStores[ks.MerchantID] = current
	return current, nil
}

func (s *Store) DeleteMerchantKeyStore(_ context.Context, merchantID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keyStores[merchantID]
	delete(s.keyStores, merchantID)
	return ok, nil
}

// Merchant accounts

func (s *Store) InsertMerchant(_ context.Context, m store.MerchantAccount) (store.MerchantAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.merchants[m.MerchantID]; ok {
		return store.MerchantAccount{}, store.ErrDuplicate
	}
	for _, existing := range s.merchants {
		if existing.PublishableKey == m.PublishableKey {
			return store.MerchantAccount{}, store.ErrDuplicate
		}
	}
	s.merchants[m.MerchantID] = m
	return m, nil
}

func (s *Store) GetMerchant(_ context.Context, merchantID string) (store.MerchantAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.merchants[merchantID]
	if !ok {
		return store.MerchantAccount{}, store.ErrNotFound
	}
	return m, nil
}

func (s *Store) ListMerchantsByOrganization(_ context.Context, organizationID string) ([]store.MerchantAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.merchants, func(m store.MerchantAccount) bool { return m.OrganizationID == organizationID }, compareMerchants), nil
}

func compareMerchants(a, b store.MerchantAccount) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.MerchantID, b.MerchantID)
}

func (s *Store) UpdateMerchant(_ context.Context, m store.MerchantAccount) (store.MerchantAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.merchants[m.MerchantID]
	if !ok {
		return store.MerchantAccount{}, store.ErrNotFound
	}
	m.OrganizationID = current.OrganizationID
	m.PublishableKey = current.PublishableKey
	m.StorageScheme = current.StorageScheme
	m.CreatedAt = current.CreatedAt
	s.merchants[m.MerchantID] = m
	return m, nil
}

func (s *Store) TouchMerchant(_ context.Context, merchantID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.merchants[merchantID]
	if !ok {
		return store.ErrNotFound
	}
	m.ModifiedAt = at
	s.merchants[merchantID] = m
	return nil
}

func (s *Store) UpdateStorageScheme(_ context.Context, merchantID string, scheme store.StorageScheme, at time.Time) (store.MerchantAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.merchants[merchantID]
	if !ok {
		return store.MerchantAccount{}, store.ErrNotFound
	}
	m.StorageScheme = scheme
	m.ModifiedAt = at
	s.merchants[merchantID] = m
	return m, nil
}

func (s *Store) UpdateAllStorageSchemes(_ context.Context, scheme store.StorageScheme) ([]store.MerchantAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	var out []store.MerchantAccount
	for id, m := range s.merchants {
		if m.StorageScheme == scheme {
			continue
		}
		m.StorageScheme = scheme
		m.ModifiedAt = now
		s.merchants[id] = m
		out = append(out, m)
	}
	slices.SortFunc(out, compareMerchants)
	return out, nil
}

func (s *Store) DeleteMerchant(_ context.Context, merchantID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.merchants[merchantID]
	delete(s.merchants, merchantID)
	return ok, nil
}

// Business profiles

func (s *Store) InsertProfile(_ context.Context, p store.BusinessProfile) (store.BusinessProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.ProfileID]; ok {
		return store.BusinessProfile{}, store.ErrDuplicate
	}
	for _, existing := range s.profiles {
		if existing.MerchantID == p.MerchantID && existing.ProfileName == p.ProfileName {
			return store.BusinessProfile{}, store.ErrDuplicate
		}
	}
	s.profiles[p.ProfileID] = p
	return p, nil
}

func (s *Store) GetProfile(_ context.Context, profileID string) (store.BusinessProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return store.BusinessProfile{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetProfileByName(_ context.Context, merchantID, profileName string) (store.BusinessProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.MerchantID == merchantID && p.ProfileName == profileName {
			return p, nil
		}
	}
	return store.BusinessProfile{}, store.ErrNotFound
}

func (s *Store) ListProfiles(_ context.Context, merchantID string) ([]store.BusinessProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.profiles, func(p store.BusinessProfile) bool { return p.MerchantID == merchantID }, func(a, b store.BusinessProfile) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ProfileID, b.ProfileID)
	}), nil
}

func (s *Store) UpdateProfile(_ context.Context, p store.BusinessProfile) (store.BusinessProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.profiles[p.ProfileID]
	if !ok || current.MerchantID != p.MerchantID {
		return store.BusinessProfile{}, store.ErrNotFound
	}
	for id, existing := range s.profiles {
		if id != p.ProfileID && existing.MerchantID == p.MerchantID && existing.ProfileName == p.ProfileName {
			return store.BusinessProfile{}, store.ErrDuplicate
		}
	}
	p.CreatedAt = current.CreatedAt
	s.profiles[p.ProfileID] = p
	return p, nil
}

func (s *Store) DeleteProfile(_ context.Context, merchantID, profileID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[profileID]
	if !ok || p.MerchantID != merchantID {
		return false, nil
	}
	delete(s.profiles, profileID)
	return true, nil
}

// Connector accounts

func (s *Store) labelTaken(profileID, label, exceptID string) bool {
	for id, existing := range s.connectors {
		if id != exceptID && existing.ProfileID == profileID && existing.ConnectorLabel == label {
			return true
		}
	}
	return false
}

func (s *Store) InsertConnector(_ context.Context, mca store.MerchantConnectorAccount) (store.MerchantConnectorAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.connectors[mca.MerchantConnectorID]; ok {
		return store.MerchantConnectorAccount{}, store.ErrDuplicate
	}
	if s.labelTaken(mca.ProfileID, mca.ConnectorLabel, "") {
		return store.MerchantConnectorAccount{}, store.ErrDuplicate
	}
	s.connectors[mca.MerchantConnectorID] = mca
	return mca, nil
}

func (s *Store) GetConnector(_ context.Context, merchantID, merchantConnectorID string) (store.MerchantConnectorAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mca, ok := s.connectors[merchantConnectorID]
	if !ok || mca.MerchantID != merchantID {
		return store.MerchantConnectorAccount{}, store.ErrNotFound
	}
	return mca, nil
}

func (s *Store) ListConnectors(_ context.Context, merchantID string, includeDisabled bool) ([]store.MerchantConnectorAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.connectors, func(m store.MerchantConnectorAccount) bool {
		return m.MerchantID == merchantID && (includeDisabled || !m.Disabled)
	}, func(a, b store.MerchantConnectorAccount) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.MerchantConnectorID, b.MerchantConnectorID)
	}), nil
}

func (s *Store) UpdateConnector(_ context.Context, mca store.MerchantConnectorAccount) (store.MerchantConnectorAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.connectors[mca.MerchantConnectorID]
	if !ok || current.MerchantID != mca.MerchantID || current.ProfileID != mca.ProfileID || current.ConnectorName != mca.ConnectorName {
		return store.MerchantConnectorAccount{}, store.ErrNotFound
	}
	if s.labelTaken(mca.ProfileID, mca.ConnectorLabel, mca.MerchantConnectorID) {
		return store.MerchantConnectorAccount{}, store.ErrDuplicate
	}
	mca.BusinessCountry, mca.BusinessLabel, mca.BusinessSubLabel = current.BusinessCountry, current.BusinessLabel, current.BusinessSubLabel
	mca.CreatedAt = current.CreatedAt
	s.connectors[mca.MerchantConnectorID] = mca
	return mca, nil
}

func (s *Store) DeleteConnector(_ context.Context, merchantID, merchantConnectorID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mca, ok := s.connectors[merchantConnectorID]
	if !ok || mca.MerchantID != merchantID {
		return false, nil
	}
	delete(s.connectors, merchantConnectorID)
	return true, nil
}

// Configs

func (s *Store) InsertConfig(_ context.Context, key, value string) (store.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[key]; ok {
		return store.Config{}, store.ErrDuplicate
	}
	cfg := store.Config{Key: key, Value: value, Version: 1}
	s.configs[key] = cfg
	return cfg, nil
}

func (s *Store) GetConfig(_ context.Context, key string) (store.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[key]
	if !ok {
		return store.Config{}, store.ErrNotFound
	}
	return cfg, nil
}

func (s *Store) UpdateConfigIfVersion(_ context.Context, key, value string, version int64) (store.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[key]
	if !ok {
		return store.Config{}, store.ErrNotFound
	}
	if cfg.Version != version {
		return store.Config{}, store.ErrConflict
	}
	cfg.Value = value
	cfg.Version++
	s.configs[key] = cfg
	return cfg, nil
}

func (s *Store) DeleteConfig(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.configs[key]
	delete(s.configs, key)
	return ok, nil
}
