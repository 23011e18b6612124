package routing

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"time"

	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/connectors"
	"github.com/merchantops/merchantops/internal/store"
)

// AlgorithmRef points at the active routing algorithm of a merchant or profile.
type AlgorithmRef struct {
	AlgorithmID *string `json:"algorithm_id"`
	Timestamp   int64   `json:"timestamp"`
}

// DefaultAlgorithmRef is the pointer stored before any algorithm is activated.
func DefaultAlgorithmRef() json.RawMessage {
	return json.RawMessage(`{"algorithm_id":null,"timestamp":0}`)
}

var algorithmTypes = []string{"single", "priority", "volume_split", "advanced"}

// ValidateAlgorithm checks a routing algorithm object supplied by a caller.
// Absent values are accepted.
func ValidateAlgorithm(field string, raw json.RawMessage) error {
	if !store.Present(raw) {
		return nil
	}
	var algo struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &algo); err != nil || !slices.Contains(algorithmTypes, algo.Type) {
		return apperr.InvalidDataFormat(field, "routing algorithm")
	}
	return nil
}

// CacheKey names the routing cache entry of a business profile.
func CacheKey(merchantID, profileID string) string {
	return "routing_config_" + merchantID + "_" + profileID
}

// Publisher broadcasts cache keys that other instances must evict.
type Publisher interface {
	Publish(ctx context.Context, keys ...string) error
}

type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, p store.BusinessProfile) (store.BusinessProfile, error)
}

// AlgorithmActivator moves the routing algorithm pointer of a profile and
// evicts the cached routing config of that profile.
type AlgorithmActivator struct {
	profiles  ProfileUpdater
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewAlgorithmActivator(profiles ProfileUpdater, publisher Publisher, logger *slog.Logger) *AlgorithmActivator {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlgorithmActivator{profiles: profiles, publisher: publisher, logger: logger, now: time.Now}
}

// Activate stores algorithmID as the active algorithm of txn on the profile.
// The call fails when the invalidation cannot be published.
func (a *AlgorithmActivator) Activate(ctx context.Context, profile store.BusinessProfile, algorithmID string, txn connectors.TransactionType) (store.BusinessProfile, error) {
	now := a.now().UTC()
	ref, err := json.Marshal(AlgorithmRef{AlgorithmID: &algorithmID, Timestamp: now.Unix()})
	if err != nil {
		return store.BusinessProfile{}, apperr.Internal("failed to encode routing algorithm reference", err)
	}
	if txn == connectors.TransactionPayout {
		profile.PayoutRoutingAlgorithm = ref
	} else {
		profile.RoutingAlgorithm = ref
	}
	profile.ModifiedAt = now

	updated, err := a.profiles.UpdateProfile(ctx, profile)
	if err != nil {
		return store.BusinessProfile{}, apperr.Internal("failed to update routing algorithm ref in business profile", err)
	}

	key := CacheKey(updated.MerchantID, updated.ProfileID)
	if err := a.publisher.Publish(ctx, key); err != nil {
		return store.BusinessProfile{}, apperr.Internal("failed to invalidate the routing cache", err)
	}
	a.logger.Info("activated routing algorithm",
		"merchant_id", updated.MerchantID, "profile_id", updated.ProfileID,
		"algorithm_id", algorithmID, "transaction_type", string(txn))
	return updated, nil
}
