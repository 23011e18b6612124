package admin

import (
	"context"
	"errors"
	"time"

	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/store"
)

func schemeFor(enable bool) store.StorageScheme {
	if enable {
		return store.RedisKv
	}
	return store.PostgresOnly
}

// ToggleKV moves a merchant between Postgres-only and Redis KV storage. It is
// the only path that writes the storage scheme of a single merchant.
func (s *Service) ToggleKV(ctx context.Context, merchantID string, enable bool) (resp KVResponse, err error) {
	defer s.track("kv_toggle", time.Now(), &err)

	merchant, err := s.loadMerchant(ctx, merchantID)
	if err != nil {
		return KVResponse{}, err
	}
	target := schemeFor(enable)
	if merchant.StorageScheme == target {
		return KVResponse{MerchantID: merchantID, KVEnabled: enable}, nil
	}
	if enable && s.kvSoftKill {
		return KVResponse{}, apperr.InvalidRequest("Kv cannot be enabled when application is in soft_kill_mode")
	}

	updated, err := s.store.UpdateStorageScheme(ctx, merchantID, target, s.timestamp())
	if errors.Is(err, store.ErrNotFound) {
		return KVResponse{}, merchantNotFound()
	}
	if err != nil {
		return KVResponse{}, apperr.Internal("failed to update storage scheme", err)
	}
	s.logger.Info("storage scheme updated", "merchant_id", merchantID, "storage_scheme", updated.StorageScheme)
	return KVResponse{MerchantID: merchantID, KVEnabled: updated.StorageScheme == store.RedisKv}, nil
}

func (s *Service) ToggleKVForAll(ctx context.Context, enable bool) (resp ToggleAllKVResponse, err error) {
	defer s.track("kv_toggle_all", time.Now(), &err)

	if enable && s.kvSoftKill {
		return ToggleAllKVResponse{}, apperr.InvalidRequest("Kv cannot be enabled when application is in soft_kill_mode")
	}
	updated, err := s.store.UpdateAllStorageSchemes(ctx, schemeFor(enable))
	if err != nil {
		return ToggleAllKVResponse{}, apperr.Internal("failed to update storage schemes", err)
	}
	s.logger.Info("storage scheme updated for all merchants", "kv_enabled", enable, "total_updated", len(updated))
	return ToggleAllKVResponse{TotalUpdated: len(updated), KVEnabled: enable}, nil
}

func (s *Service) KVStatus(ctx context.Context, merchantID string) (resp KVResponse, err error) {
	defer s.track("kv_status", time.Now(), &err)

	merchant, err := s.loadMerchant(ctx, merchantID)
	if err != nil {
		return KVResponse{}, err
	}
	return KVResponse{MerchantID: merchantID, KVEnabled: merchant.StorageScheme == store.RedisKv}, nil
}
