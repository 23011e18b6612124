package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/connectors"
	"github.com/merchantops/merchantops/internal/connectors/credentials"
	"github.com/merchantops/merchantops/internal/keymanager"
	"github.com/merchantops/merchantops/internal/routing"
	"github.com/merchantops/merchantops/internal/store"
)

const (
	defaultProfileName = "default"

	minSessionExpiry         int64 = 60
	maxSessionExpiry         int64 = 7890000
	defaultSessionExpiry     int64 = 900
	minIntentFulfillmentTime int64 = 60
	maxIntentFulfillmentTime int64 = 1800
	defaultIntentFulfillment int64 = 900
)

func validateProfileRequest(req BusinessProfileCreate) error {
	if req.SessionExpiry != nil && (*req.SessionExpiry < minSessionExpiry || *req.SessionExpiry > maxSessionExpiry) {
		return apperr.InvalidRequest(fmt.Sprintf("session_expiry should be between %d and %d seconds", minSessionExpiry, maxSessionExpiry))
	}
	if req.IntentFulfillmentTime != nil && (*req.IntentFulfillmentTime < minIntentFulfillmentTime || *req.IntentFulfillmentTime > maxIntentFulfillmentTime) {
		return apperr.InvalidRequest(fmt.Sprintf("intent_fulfillment_time should be between %d and %d seconds", minIntentFulfillmentTime, maxIntentFulfillmentTime))
	}
	if req.ProfileName != nil && *req.ProfileName == "" {
		return apperr.InvalidDataValue("profile_name")
	}
	if err := routing.ValidateAlgorithm("routing_algorithm", req.RoutingAlgorithm); err != nil {
		return err
	}
	return routing.ValidateAlgorithm("payout_routing_algorithm", req.PayoutRoutingAlgorithm)
}

// buildProfile creates the profile record. Fields absent from the request
// are inherited from the merchant.
func (s *Service) buildProfile(merchant store.MerchantAccount, key *keymanager.Key, req BusinessProfileCreate) (store.BusinessProfile, error) {
	if err := validateProfileRequest(req); err != nil {
		return store.BusinessProfile{}, err
	}

	now := s.timestamp()
	p := store.BusinessProfile{
		ProfileID:                        generateID("pro"),
		MerchantID:                       merchant.MerchantID,
		ProfileName:                      defaultProfileName,
		ReturnURL:                        merchant.ReturnURL,
		EnablePaymentResponseHash:        merchant.EnablePaymentResponseHash,
		PaymentResponseHashKey:           merchant.PaymentResponseHashKey,
		RedirectToMerchantWithHTTPPost:   merchant.RedirectToMerchantWithHTTPPost,
		WebhookDetails:                   merchant.WebhookDetails,
		Metadata:                         req.Metadata,
		RoutingAlgorithm:                 merchant.RoutingAlgorithm,
		PayoutRoutingAlgorithm:           merchant.PayoutRoutingAlgorithm,
		FRMRoutingAlgorithm:              merchant.FRMRoutingAlgorithm,
		IntentFulfillmentTime:            ptr(defaultIntentFulfillment),
		SessionExpiry:                    ptr(defaultSessionExpiry),
		PaymentLinkConfig:                req.PaymentLinkConfig,
		PayoutLinkConfig:                 req.PayoutLinkConfig,
		IsConnectorAgnosticMITEnabled:    req.IsConnectorAgnosticMITEnabled,
		UseBillingAsPaymentMethodBilling: ptr(true),
		CollectShippingDetailsFromWallet: ptr(false),
		CollectBillingDetailsFromWallet:  ptr(false),
		CreatedAt:                        now,
		ModifiedAt:                       now,
	}
	if req.ProfileName != nil {
		p.ProfileName = *req.ProfileName
	}
	applyProfileFields(&p, req)
	if p.EnablePaymentResponseHash && p.PaymentResponseHashKey == nil {
		p.PaymentResponseHashKey = ptr(randomString(secretLength))
	}

	headers, err := encryptHeaders(key, req.OutgoingWebhookCustomHTTPHeaders, merchant.MerchantID)
	if err != nil {
		return store.BusinessProfile{}, err
	}
	p.EncryptedWebhookHeaders = headers
	return p, nil
}

// applyProfileFields copies every present request field onto p. Name and
// headers are handled by the callers.
func applyProfileFields(p *store.BusinessProfile, req BusinessProfileCreate) {
	if req.ReturnURL != nil {
		p.ReturnURL = req.ReturnURL
	}
	if req.EnablePaymentResponseHash != nil {
		p.EnablePaymentResponseHash = *req.EnablePaymentResponseHash
	}
	if req.PaymentResponseHashKey != nil {
		p.PaymentResponseHashKey = req.PaymentResponseHashKey
	}
	if req.RedirectToMerchantWithHTTPPost != nil {
		p.RedirectToMerchantWithHTTPPost = *req.RedirectToMerchantWithHTTPPost
	}
	if store.Present(req.WebhookDetails) {
		p.WebhookDetails = req.WebhookDetails
	}
	if store.Present(req.Metadata) {
		p.Metadata = req.Metadata
	}
	if store.Present(req.RoutingAlgorithm) {
		p.RoutingAlgorithm = req.RoutingAlgorithm
	}
	if store.Present(req.PayoutRoutingAlgorithm) {
		p.PayoutRoutingAlgorithm = req.PayoutRoutingAlgorithm
	}
	if store.Present(req.FRMRoutingAlgorithm) {
		p.FRMRoutingAlgorithm = req.FRMRoutingAlgorithm
	}
	if req.IntentFulfillmentTime != nil {
		p.IntentFulfillmentTime = req.IntentFulfillmentTime
	}
	if req.SessionExpiry != nil {
		p.SessionExpiry = req.SessionExpiry
	}
	if store.Present(req.PaymentLinkConfig) {
		p.PaymentLinkConfig = req.PaymentLinkConfig
	}
	if store.Present(req.PayoutLinkConfig) {
		p.PayoutLinkConfig = req.PayoutLinkConfig
	}
	if req.IsConnectorAgnosticMITEnabled != nil {
		p.IsConnectorAgnosticMITEnabled = req.IsConnectorAgnosticMITEnabled
	}
	if req.UseBillingAsPaymentMethodBilling != nil {
		p.UseBillingAsPaymentMethodBilling = req.UseBillingAsPaymentMethodBilling
	}
	if req.CollectShippingDetailsFromWallet != nil {
		p.CollectShippingDetailsFromWallet = req.CollectShippingDetailsFromWallet
	}
	if req.CollectBillingDetailsFromWallet != nil {
		p.CollectBillingDetailsFromWallet = req.CollectBillingDetailsFromWallet
	}
}

func (s *Service) insertProfile(ctx context.Context, st store.ProfileStore, p store.BusinessProfile) (store.BusinessProfile, error) {
	inserted, err := st.InsertProfile(ctx, p)
	if errors.Is(err, store.ErrDuplicate) {
		return store.BusinessProfile{}, duplicateProfile(p.ProfileName)
	}
	if err != nil {
		return store.BusinessProfile{}, apperr.Internal("failed to insert business profile", err)
	}
	return inserted, nil
}

func duplicateProfile(name string) *apperr.Error {
	return apperr.Duplicate(apperr.CodeDuplicateProfile, fmt.Sprintf("Business Profile with the profile_name %s already exists", name))
}

// ownedProfile loads a profile and hides profiles of other merchants.
func (s *Service) ownedProfile(ctx context.Context, merchantID, profileID string) (store.BusinessProfile, error) {
	p, err := s.store.GetProfile(ctx, profileID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && p.MerchantID != merchantID) {
		return store.BusinessProfile{}, profileNotFound(profileID)
	}
	if err != nil {
		return store.BusinessProfile{}, apperr.Internal("failed to fetch business profile", err)
	}
	return p, nil
}

// writableProfile loads a profile for modification. Profiles of other
// merchants are reported as forbidden.
func (s *Service) writableProfile(ctx context.Context, merchantID, profileID string) (store.BusinessProfile, error) {
	p, err := s.store.GetProfile(ctx, profileID)
	if errors.Is(err, store.ErrNotFound) {
		return store.BusinessProfile{}, profileNotFound(profileID)
	}
	if err != nil {
		return store.BusinessProfile{}, apperr.Internal("failed to fetch business profile", err)
	}
	if p.MerchantID != merchantID {
		return store.BusinessProfile{}, apperr.Forbidden("business_profile")
	}
	return p, nil
}

func (s *Service) CreateBusinessProfile(ctx context.Context, merchantID string, req BusinessProfileCreate) (resp BusinessProfileResponse, err error) {
	defer s.track("profile_create", time.Now(), &err)

	key, err := s.merchantKey(ctx, s.store, merchantID)
	if err != nil {
		return BusinessProfileResponse{}, err
	}
	merchant, err := s.loadMerchant(ctx, merchantID)
	if err != nil {
		return BusinessProfileResponse{}, err
	}
	p, err := s.buildProfile(merchant, key, req)
	if err != nil {
		return BusinessProfileResponse{}, err
	}
	created, err := s.insertProfile(ctx, s.store, p)
	if err != nil {
		return BusinessProfileResponse{}, err
	}

	// With more than one profile there is no implicit default any more.
	if merchant.DefaultProfile != nil {
		merchant.DefaultProfile = nil
		merchant.ModifiedAt = s.timestamp()
		if _, err := s.store.UpdateMerchant(ctx, merchant); err != nil {
			return BusinessProfileResponse{}, apperr.Internal("failed to unset default profile", err)
		}
	}
	s.logger.Info("business profile created", "merchant_id", merchantID, "profile_id", created.ProfileID)
	return profileResponse(created, key)
}

func (s *Service) ListBusinessProfiles(ctx context.Context, merchantID string) (resp []BusinessProfileResponse, err error) {
	defer s.track("profile_list", time.Now(), &err)

	key, err := s.merchantKey(ctx, s.store, merchantID)
	if err != nil {
		return nil, err
	}
	profiles, err := s.store.ListProfiles(ctx, merchantID)
	if err != nil {
		return nil, apperr.Internal("failed to list business profiles", err)
	}
	out := make([]BusinessProfileResponse, 0, len(profiles))
	for _, p := range profiles {
		r, err := profileResponse(p, key)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) RetrieveBusinessProfile(ctx context.Context, merchantID, profileID string) (resp BusinessProfileResponse, err error) {
	defer s.track("profile_retrieve", time.Now(), &err)

	key, err := s.merchantKey(ctx, s.store, merchantID)
	if err != nil {
		return BusinessProfileResponse{}, err
	}
	p, err := s.ownedProfile(ctx, merchantID, profileID)
	if err != nil {
		return BusinessProfileResponse{}, err
	}
	return profileResponse(p, key)
}

func (s *Service) DeleteBusinessProfile(ctx context.Context, merchantID, profileID string) (deleted bool, err error) {
	defer s.track("profile_delete", time.Now(), &err)

	deleted, err = s.store.DeleteProfile(ctx, merchantID, profileID)
	if err != nil {
		return false, apperr.Internal("failed to delete business profile", err)
	}
	if !deleted {
		return false, profileNotFound(profileID)
	}
	if err := s.invalidateRouting(ctx, merchantID, profileID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) UpdateBusinessProfile(ctx context.Context, merchantID, profileID string, req BusinessProfileUpdate) (resp BusinessProfileResponse, err error) {
	defer s.track("profile_update", time.Now(), &err)

	key, err := s.merchantKey(ctx, s.store, merchantID)
	if err != nil {
		return BusinessProfileResponse{}, err
	}
	p, err := s.writableProfile(ctx, merchantID, profileID)
	if err != nil {
		return BusinessProfileResponse{}, err
	}
	if err := validateProfileRequest(req); err != nil {
		return BusinessProfileResponse{}, err
	}

	if req.ProfileName != nil {
		p.ProfileName = *req.ProfileName
	}
	applyProfileFields(&p, req)
	if req.OutgoingWebhookCustomHTTPHeaders != nil {
		headers, err := encryptHeaders(key, req.OutgoingWebhookCustomHTTPHeaders, merchantID)
		if err != nil {
			return BusinessProfileResponse{}, err
		}
		p.EncryptedWebhookHeaders = headers
	}
	p.ModifiedAt = s.timestamp()

	updated, err := s.store.UpdateProfile(ctx, p)
	if errors.Is(err, store.ErrDuplicate) {
		return BusinessProfileResponse{}, duplicateProfile(p.ProfileName)
	}
	if err != nil {
		return BusinessProfileResponse{}, apperr.Internal("failed to update business profile", err)
	}
	if err := s.invalidateRouting(ctx, merchantID, profileID); err != nil {
		return BusinessProfileResponse{}, err
	}
	return profileResponse(updated, key)
}

// ToggleExtendedCardInfo writes only when the flag is unset or changes.
func (s *Service) ToggleExtendedCardInfo(ctx context.Context, merchantID, profileID string, choice ExtendedCardInfoChoice) (resp ExtendedCardInfoChoice, err error) {
	defer s.track("profile_toggle_extended_card_info", time.Now(), &err)

	p, err := s.ownedProfile(ctx, merchantID, profileID)
	if err != nil {
		return ExtendedCardInfoChoice{}, err
	}
	if p.IsExtendedCardInfoEnabled == nil || *p.IsExtendedCardInfoEnabled != choice.Enabled {
		p.IsExtendedCardInfoEnabled = ptr(choice.Enabled)
		p.ModifiedAt = s.timestamp()
		if _, err := s.store.UpdateProfile(ctx, p); err != nil {
			return ExtendedCardInfoChoice{}, apperr.Internal("failed to update extended card info flag", err)
		}
	}
	return choice, nil
}

func (s *Service) ToggleConnectorAgnosticMIT(ctx context.Context, merchantID, profileID string, choice ConnectorAgnosticMITChoice) (resp ConnectorAgnosticMITChoice, err error) {
	defer s.track("profile_toggle_connector_agnostic_mit", time.Now(), &err)

	p, err := s.writableProfile(ctx, merchantID, profileID)
	if err != nil {
		return ConnectorAgnosticMITChoice{}, err
	}
	if p.IsConnectorAgnosticMITEnabled == nil || *p.IsConnectorAgnosticMITEnabled != choice.Enabled {
		p.IsConnectorAgnosticMITEnabled = ptr(choice.Enabled)
		p.ModifiedAt = s.timestamp()
		if _, err := s.store.UpdateProfile(ctx, p); err != nil {
			return ConnectorAgnosticMITChoice{}, apperr.Internal("failed to update connector agnostic mit flag", err)
		}
	}
	return choice, nil
}

// ActivateRoutingAlgorithm points the profile at algorithmID and invalidates
// the routing cache of the profile.
func (s *Service) ActivateRoutingAlgorithm(ctx context.Context, merchantID, profileID, algorithmID string, txn connectors.TransactionType) (resp routing.AlgorithmRef, err error) {
	defer s.track("profile_activate_routing_algorithm", time.Now(), &err)

	if algorithmID == "" {
		return routing.AlgorithmRef{}, apperr.MissingField("algorithm_id")
	}
	p, err := s.writableProfile(ctx, merchantID, profileID)
	if err != nil {
		return routing.AlgorithmRef{}, err
	}
	updated, err := s.activator.Activate(ctx, p, algorithmID, txn)
	// The pointer may be stored even when the broadcast failed.
	s.routingViews.Evict(routing.CacheKey(merchantID, profileID))
	if err != nil {
		return routing.AlgorithmRef{}, err
	}
	raw := updated.RoutingAlgorithm
	if txn == connectors.TransactionPayout {
		raw = updated.PayoutRoutingAlgorithm
	}
	var ref routing.AlgorithmRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return routing.AlgorithmRef{}, apperr.Internal("failed to decode routing algorithm reference", err)
	}
	return ref, nil
}

// profileRouting is the cached routing view of a business profile.
type profileRouting struct {
	RoutingAlgorithm       json.RawMessage  `json:"routing_algorithm,omitempty"`
	PayoutRoutingAlgorithm json.RawMessage  `json:"payout_routing_algorithm,omitempty"`
	Fallback               []routing.Choice `json:"fallback"`
	PayoutFallback         []routing.Choice `json:"payout_fallback"`
}

func (v profileRouting) algorithm(txn connectors.TransactionType) json.RawMessage {
	if txn == connectors.TransactionPayout {
		return v.PayoutRoutingAlgorithm
	}
	return v.RoutingAlgorithm
}

func (v profileRouting) fallback(txn connectors.TransactionType) []routing.Choice {
	if txn == connectors.TransactionPayout {
		return v.PayoutFallback
	}
	return v.Fallback
}

// routingView reads the routing view of a profile through the local cache.
// Lookups that fail are not cached.
func (s *Service) routingView(ctx context.Context, merchantID, profileID string) (profileRouting, error) {
	raw, err := s.routingViews.GetOrLoad(routing.CacheKey(merchantID, profileID), func() ([]byte, error) {
		p, err := s.ownedProfile(ctx, merchantID, profileID)
		if err != nil {
			return nil, err
		}
		payment, err := s.defaults.Get(ctx, routing.ScopeProfile, profileID, connectors.TransactionPayment)
		if err != nil {
			return nil, err
		}
		payout, err := s.defaults.Get(ctx, routing.ScopeProfile, profileID, connectors.TransactionPayout)
		if err != nil {
			return nil, err
		}
		view, err := json.Marshal(profileRouting{
			RoutingAlgorithm:       p.RoutingAlgorithm,
			PayoutRoutingAlgorithm: p.PayoutRoutingAlgorithm,
			Fallback:               payment,
			PayoutFallback:         payout,
		})
		if err != nil {
			return nil, apperr.Internal("failed to encode profile routing view", err)
		}
		return view, nil
	})
	if err != nil {
		return profileRouting{}, err
	}
	var view profileRouting
	if err := json.Unmarshal(raw, &view); err != nil {
		return profileRouting{}, apperr.Internal("failed to decode profile routing view", err)
	}
	return view, nil
}

// invalidateRouting drops the routing view of a profile here and on every
// other instance.
func (s *Service) invalidateRouting(ctx context.Context, merchantID, profileID string) error {
	key := routing.CacheKey(merchantID, profileID)
	s.routingViews.Evict(key)
	if err := s.publisher.Publish(ctx, key); err != nil {
		return apperr.Internal("failed to invalidate routing cache", err)
	}
	return nil
}

// GetProfileRoutingAlgorithm returns the routing algorithm a profile points
// at for txn, or null when none is set.
func (s *Service) GetProfileRoutingAlgorithm(ctx context.Context, merchantID, profileID string, txn connectors.TransactionType) (resp json.RawMessage, err error) {
	defer s.track("profile_routing_algorithm_retrieve", time.Now(), &err)

	view, err := s.routingView(ctx, merchantID, profileID)
	if err != nil {
		return nil, err
	}
	if algo := view.algorithm(txn); store.Present(algo) {
		return algo, nil
	}
	return json.RawMessage("null"), nil
}

func (s *Service) GetProfileFallbackRouting(ctx context.Context, merchantID, profileID string, txn connectors.TransactionType) (resp []routing.Choice, err error) {
	defer s.track("profile_fallback_routing_retrieve", time.Now(), &err)

	view, err := s.routingView(ctx, merchantID, profileID)
	if err != nil {
		return nil, err
	}
	list := view.fallback(txn)
	if list == nil {
		list = []routing.Choice{}
	}
	return list, nil
}

// UpdateProfileFallbackRouting reorders the fallback list of a profile. The
// update must hold exactly the current entries.
func (s *Service) UpdateProfileFallbackRouting(ctx context.Context, merchantID, profileID string, txn connectors.TransactionType, updated []routing.Choice) (resp []routing.Choice, err error) {
	defer s.track("profile_fallback_routing_update", time.Now(), &err)

	if _, err := s.ownedProfile(ctx, merchantID, profileID); err != nil {
		return nil, err
	}
	if err := routing.ValidateList(updated); err != nil {
		return nil, err
	}
	list, err := s.defaults.Replace(ctx, routing.ScopeProfile, profileID, txn, updated)
	if err != nil {
		return nil, err
	}
	if err := s.invalidateRouting(ctx, merchantID, profileID); err != nil {
		return nil, err
	}
	return list, nil
}

// GetDefaultRouting returns the merchant level default list.
func (s *Service) GetDefaultRouting(ctx context.Context, merchantID string, txn connectors.TransactionType) (resp []routing.Choice, err error) {
	defer s.track("routing_default_retrieve", time.Now(), &err)

	if _, err := s.loadMerchant(ctx, merchantID); err != nil {
		return nil, err
	}
	return s.defaults.Get(ctx, routing.ScopeMerchant, merchantID, txn)
}

func encryptHeaders(key *keymanager.Key, headers map[string]string, merchantID string) ([]byte, error) {
	if headers == nil {
		return nil, nil
	}
	raw, err := json.Marshal(headers)
	if err != nil {
		return nil, apperr.Internal("failed to encode outgoing webhook headers", err)
	}
	enc, err := key.Encrypt(raw, merchantID)
	if err != nil {
		return nil, apperr.Internal("failed to encrypt outgoing webhook headers", err)
	}
	return enc, nil
}

func profileResponse(p store.BusinessProfile, key *keymanager.Key) (BusinessProfileResponse, error) {
	resp := BusinessProfileResponse{
		MerchantID:                       p.MerchantID,
		ProfileID:                        p.ProfileID,
		ProfileName:                      p.ProfileName,
		ReturnURL:                        p.ReturnURL,
		EnablePaymentResponseHash:        p.EnablePaymentResponseHash,
		PaymentResponseHashKey:           p.PaymentResponseHashKey,
		RedirectToMerchantWithHTTPPost:   p.RedirectToMerchantWithHTTPPost,
		WebhookDetails:                   p.WebhookDetails,
		Metadata:                         p.Metadata,
		RoutingAlgorithm:                 p.RoutingAlgorithm,
		PayoutRoutingAlgorithm:           p.PayoutRoutingAlgorithm,
		FRMRoutingAlgorithm:              p.FRMRoutingAlgorithm,
		IntentFulfillmentTime:            p.IntentFulfillmentTime,
		SessionExpiry:                    p.SessionExpiry,
		PaymentLinkConfig:                p.PaymentLinkConfig,
		PayoutLinkConfig:                 p.PayoutLinkConfig,
		IsExtendedCardInfoEnabled:        p.IsExtendedCardInfoEnabled,
		IsConnectorAgnosticMITEnabled:    p.IsConnectorAgnosticMITEnabled,
		UseBillingAsPaymentMethodBilling: p.UseBillingAsPaymentMethodBilling,
		CollectShippingDetailsFromWallet: p.CollectShippingDetailsFromWallet,
		CollectBillingDetailsFromWallet:  p.CollectBillingDetailsFromWallet,
	}
	raw, err := key.DecryptOptional(p.EncryptedWebhookHeaders, p.MerchantID)
	if err != nil {
		return BusinessProfileResponse{}, apperr.Internal("failed to decrypt outgoing webhook headers", err)
	}
	if raw != nil {
		var headers map[string]string
		if err := json.Unmarshal(raw, &headers); err != nil {
			return BusinessProfileResponse{}, apperr.Internal("failed to decode outgoing webhook headers", err)
		}
		masked := maps.Clone(headers)
		for k, v := range masked {
			masked[k] = credentials.MaskSecret(v)
		}
		resp.OutgoingWebhookCustomHTTPHeaders = masked
	}
	return resp, nil
}

func ptr[T any](v T) *T {
	return &v
}
