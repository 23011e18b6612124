package admin

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/keymanager"
	"github.com/merchantops/merchantops/internal/routing"
	"github.com/merchantops/merchantops/internal/store"
	opsync "github.com/merchantops/merchantops/internal/sync"
)

func duplicateMerchant(err error) *apperr.Error {
	e := apperr.Duplicate(apperr.CodeDuplicateMerchant, "The merchant account with the specified details already exists in our records")
	e.Err = err
	return e
}

func (s *Service) validateSubMerchant(ctx context.Context, enabled *bool, parentID *string) error {
	if enabled == nil || !*enabled {
		return nil
	}
	if parentID == nil || strings.TrimSpace(*parentID) == "" {
		return apperr.Precondition("If `sub_merchants_enabled` is `true`, then `parent_merchant_id` is mandatory")
	}
	_, err := s.store.GetMerchant(ctx, strings.TrimSpace(*parentID))
	if errors.Is(err, store.ErrNotFound) {
		return apperr.InvalidDataValue("parent_merchant_id")
	}
	if err != nil {
		return apperr.Internal("failed to fetch parent merchant account", err)
	}
	return nil
}

func (s *Service) CreateMerchantAccount(ctx context.Context, req MerchantAccountCreate) (resp MerchantAccountResponse, err error) {
	defer s.track("merchant_create", time.Now(), &err)

	merchantID, err := s.strategy.merchantID(req, s.timestamp())
	if err != nil {
		return MerchantAccountResponse{}, err
	}
	if err := s.validateSubMerchant(ctx, req.SubMerchantsEnabled, req.ParentMerchantID); err != nil {
		return MerchantAccountResponse{}, err
	}
	if err := routing.ValidateAlgorithm("routing_algorithm", req.RoutingAlgorithm); err != nil {
		return MerchantAccountResponse{}, err
	}
	if err := routing.ValidateAlgorithm("payout_routing_algorithm", req.PayoutRoutingAlgorithm); err != nil {
		return MerchantAccountResponse{}, err
	}
	for _, d := range req.PrimaryBusinessDetails {
		if strings.TrimSpace(d.Country) == "" || strings.TrimSpace(d.Business) == "" {
			return MerchantAccountResponse{}, apperr.InvalidDataValue("primary_business_details")
		}
	}

	org, err := s.strategy.organization(ctx, s, req.OrganizationID)
	if err != nil {
		return MerchantAccountResponse{}, err
	}

	ks, key, err := s.keys.Create(ctx)
	if err != nil {
		return MerchantAccountResponse{}, apperr.Internal("failed to generate merchant key", err)
	}

	now := s.timestamp()
	merchant := store.MerchantAccount{
		MerchantID:                     merchantID,
		OrganizationID:                 org.OrganizationID,
		PublishableKey:                 publishableKey(s.keyPrefix),
		ReturnURL:                      req.ReturnURL,
		WebhookDetails:                 req.WebhookDetails,
		ParentMerchantID:               req.ParentMerchantID,
		EnablePaymentResponseHash:      true,
		PaymentResponseHashKey:         req.PaymentResponseHashKey,
		StorageScheme:                  store.PostgresOnly,
		RoutingAlgorithm:               req.RoutingAlgorithm,
		PayoutRoutingAlgorithm:         req.PayoutRoutingAlgorithm,
		FRMRoutingAlgorithm:            req.FRMRoutingAlgorithm,
		Metadata:                       req.Metadata,
		CreatedAt:                      now,
		ModifiedAt:                     now,
		RedirectToMerchantWithHTTPPost: req.RedirectToMerchantWithHTTPPost != nil && *req.RedirectToMerchantWithHTTPPost,
		SubMerchantsEnabled:            req.SubMerchantsEnabled != nil && *req.SubMerchantsEnabled,
	}
	if req.EnablePaymentResponseHash != nil {
		merchant.EnablePaymentResponseHash = *req.EnablePaymentResponseHash
	}
	if merchant.PaymentResponseHashKey == nil {
		merchant.PaymentResponseHashKey = ptr(randomString(secretLength))
	}
	if !store.Present(merchant.RoutingAlgorithm) {
		merchant.RoutingAlgorithm = routing.DefaultAlgorithmRef()
	}
	if len(req.PrimaryBusinessDetails) > 0 {
		raw, err := json.Marshal(req.PrimaryBusinessDetails)
		if err != nil {
			return MerchantAccountResponse{}, apperr.Internal("failed to encode primary business details", err)
		}
		merchant.PrimaryBusinessDetails = raw
	}
	if err := encryptMerchantPII(&merchant, key, req.MerchantName, req.MerchantDetails); err != nil {
		return MerchantAccountResponse{}, err
	}

	err = s.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := tx.InsertMerchantKeyStore(ctx, keyStoreRecord(merchantID, ks, now)); err != nil {
			return err
		}
		inserted, err := tx.InsertMerchant(ctx, merchant)
		if err != nil {
			return err
		}
		merchant = inserted
		return nil
	})
	if errors.Is(err, store.ErrDuplicate) {
		return MerchantAccountResponse{}, duplicateMerchant(err)
	}
	if err != nil {
		return MerchantAccountResponse{}, apperr.Internal("failed to insert merchant account", err)
	}
	s.logger.Info("merchant account created", "merchant_id", merchantID, "organization_id", org.OrganizationID)

	if s.strategy.createsDefaultProfiles() {
		merchant, err = s.createDefaultProfiles(ctx, merchant, key, req.PrimaryBusinessDetails)
		if err != nil {
			return MerchantAccountResponse{}, err
		}
	}

	if err := s.runPostCommit(ctx,
		postCommitStep{name: "requires_cvv_config", run: func(ctx context.Context) error {
			return s.insertConfigIfAbsent(ctx, requiresCVVKey(merchantID), "true")
		}},
		postCommitStep{name: "fingerprint_secret_config", run: func(ctx context.Context) error {
			return s.insertConfigIfAbsent(ctx, fingerprintSecretKey(merchantID), fingerprintSecret())
		}},
	); err != nil {
		return MerchantAccountResponse{}, err
	}

	return merchantResponse(merchant, key)
}

func (s *Service) insertConfigIfAbsent(ctx context.Context, key, value string) error {
	_, err := s.store.InsertConfig(ctx, key, value)
	if errors.Is(err, store.ErrDuplicate) {
		return nil
	}
	return err
}

// createDefaultProfiles creates one profile per business details entry, or a
// single "default" profile when there are none. The merchant's default
// profile is set only when exactly one profile was created.
func (s *Service) createDefaultProfiles(ctx context.Context, merchant store.MerchantAccount, key *keymanager.Key, details []PrimaryBusinessDetails) (store.MerchantAccount, error) {
	names := []string{defaultProfileName}
	if len(details) > 0 {
		names = names[:0]
		for _, d := range details {
			names = append(names, d.profileName())
		}
	}

	created, err := s.createProfiles(ctx, merchant, key, names)
	if err != nil {
		return store.MerchantAccount{}, err
	}
	if len(created) != 1 {
		return merchant, nil
	}

	merchant.DefaultProfile = ptr(created[0].ProfileID)
	merchant.ModifiedAt = s.timestamp()
	updated, err := s.store.UpdateMerchant(ctx, merchant)
	if err != nil {
		return store.MerchantAccount{}, apperr.Internal("failed to set default profile", err)
	}
	return updated, nil
}

// createProfiles inserts the named profiles concurrently. Duplicate names are
// logged and skipped; any other failure is returned.
func (s *Service) createProfiles(ctx context.Context, merchant store.MerchantAccount, key *keymanager.Key, names []string) ([]store.BusinessProfile, error) {
	results := opsync.ParallelCollect(ctx, names, s.profileWorkers,
		func(ctx context.Context, name string) (store.BusinessProfile, error) {
			p, err := s.buildProfile(merchant, key, BusinessProfileCreate{ProfileName: ptr(name)})
			if err != nil {
				return store.BusinessProfile{}, err
			}
			return s.insertProfile(ctx, s.store, p)
		}, nil)

	var failed []error
	for _, res := range results {
		switch {
		case res.Err == nil:
		case apperr.Is(res.Err, apperr.KindDuplicate):
			s.logger.Warn("business profile already exists, skipping", "merchant_id", merchant.MerchantID, "profile_name", res.Item)
		default:
			s.logger.Error("business profile creation failed", "merchant_id", merchant.MerchantID, "profile_name", res.Item, "err", res.Err)
			failed = append(failed, res.Err)
		}
	}
	if len(failed) > 0 {
		return nil, apperr.Internalize(errors.Join(failed...), "failed to create business profiles")
	}
	return opsync.Succeeded(results), nil
}

func (s *Service) GetMerchantAccount(ctx context.Context, merchantID string) (resp MerchantAccountResponse, err error) {
	defer s.track("merchant_retrieve", time.Now(), &err)

	key, err := s.merchantKey(ctx, s.store, merchantID)
	if err != nil {
		return MerchantAccountResponse{}, err
	}
	merchant, err := s.loadMerchant(ctx, merchantID)
	if err != nil {
		return MerchantAccountResponse{}, err
	}
	return merchantResponse(merchant, key)
}

func (s *Service) ListMerchantAccounts(ctx context.Context, organizationID string) (resp []MerchantAccountResponse, err error) {
	defer s.track("merchant_list", time.Now(), &err)

	if _, err := s.getOrganization(ctx, organizationID); err != nil {
		return nil, err
	}
	merchants, err := s.store.ListMerchantsByOrganization(ctx, organizationID)
	if err != nil {
		return nil, apperr.Internal("failed to list merchant accounts", err)
	}
	out := make([]MerchantAccountResponse, 0, len(merchants))
	for _, m := range merchants {
		key, err := s.merchantKey(ctx, s.store, m.MerchantID)
		if err != nil {
			return nil, err
		}
		r, err := merchantResponse(m, key)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) UpdateMerchantAccount(ctx context.Context, merchantID string, req MerchantAccountUpdate) (resp MerchantAccountResponse, err error) {
	defer s.track("merchant_update", time.Now(), &err)

	key, err := s.merchantKey(ctx, s.store, merchantID)
	if err != nil {
		return MerchantAccountResponse{}, err
	}
	merchant, err := s.loadMerchant(ctx, merchantID)
	if err != nil {
		return MerchantAccountResponse{}, err
	}
	if err := s.validateSubMerchant(ctx, req.SubMerchantsEnabled, req.ParentMerchantID); err != nil {
		return MerchantAccountResponse{}, err
	}
	if err := routing.ValidateAlgorithm("routing_algorithm", req.RoutingAlgorithm); err != nil {
		return MerchantAccountResponse{}, err
	}
	if err := routing.ValidateAlgorithm("payout_routing_algorithm", req.PayoutRoutingAlgorithm); err != nil {
		return MerchantAccountResponse{}, err
	}

	if req.DefaultProfile != nil {
		if id := strings.TrimSpace(*req.DefaultProfile); id == "" {
			merchant.DefaultProfile = nil
		} else {
			if _, err := s.ownedProfile(ctx, merchantID, id); err != nil {
				return MerchantAccountResponse{}, err
			}
			merchant.DefaultProfile = ptr(id)
		}
	}

	if len(req.PrimaryBusinessDetails) > 0 {
		added, merged, err := diffBusinessDetails(merchant.PrimaryBusinessDetails, req.PrimaryBusinessDetails)
		if err != nil {
			return MerchantAccountResponse{}, err
		}
		if len(added) > 0 {
			names := make([]string, 0, len(added))
			for _, d := range added {
				names = append(names, d.profileName())
			}
			if _, err := s.createProfiles(ctx, merchant, key, names); err != nil {
				return MerchantAccountResponse{}, err
			}
			merchant.DefaultProfile = nil
		}
		raw, err := json.Marshal(merged)
		if err != nil {
			return MerchantAccountResponse{}, apperr.Internal("failed to encode primary business details", err)
		}
		merchant.PrimaryBusinessDetails = raw
	}

	if req.MerchantName != nil || store.Present(req.MerchantDetails) {
		if err := encryptMerchantPII(&merchant, key, req.MerchantName, req.MerchantDetails); err != nil {
			return MerchantAccountResponse{}, err
		}
	}
	if req.ReturnURL != nil {
		merchant.ReturnURL = req.ReturnURL
	}
	if store.Present(req.WebhookDetails) {
		merchant.WebhookDetails = req.WebhookDetails
	}
	if store.Present(req.RoutingAlgorithm) {
		merchant.RoutingAlgorithm = req.RoutingAlgorithm
	}
	if store.Present(req.PayoutRoutingAlgorithm) {
		merchant.PayoutRoutingAlgorithm = req.PayoutRoutingAlgorithm
	}
	if store.Present(req.FRMRoutingAlgorithm) {
		merchant.FRMRoutingAlgorithm = req.FRMRoutingAlgorithm
	}
	if req.SubMerchantsEnabled != nil {
		merchant.SubMerchantsEnabled = *req.SubMerchantsEnabled
	}
	if req.ParentMerchantID != nil {
		merchant.ParentMerchantID = req.ParentMerchantID
	}
	if req.EnablePaymentResponseHash != nil {
		merchant.EnablePaymentResponseHash = *req.EnablePaymentResponseHash
	}
	if req.PaymentResponseHashKey != nil {
		merchant.PaymentResponseHashKey = req.PaymentResponseHashKey
	}
	if req.RedirectToMerchantWithHTTPPost != nil {
		merchant.RedirectToMerchantWithHTTPPost = *req.RedirectToMerchantWithHTTPPost
	}
	if store.Present(req.Metadata) {
		merchant.Metadata = req.Metadata
	}
	merchant.ModifiedAt = s.timestamp()

	updated, err := s.store.UpdateMerchant(ctx, merchant)
	if errors.Is(err, store.ErrNotFound) {
		return MerchantAccountResponse{}, merchantNotFound()
	}
	if err != nil {
		return MerchantAccountResponse{}, apperr.Internal("failed to update merchant account", err)
	}
	return merchantResponse(updated, key)
}

// diffBusinessDetails returns the requested entries missing from the stored
// list and the stored list extended with them.
func diffBusinessDetails(stored json.RawMessage, requested []PrimaryBusinessDetails) ([]PrimaryBusinessDetails, []PrimaryBusinessDetails, error) {
	var current []PrimaryBusinessDetails
	if store.Present(stored) {
		if err := json.Unmarshal(stored, &current); err != nil {
			return nil, nil, apperr.Internal("failed to decode stored primary business details", err)
		}
	}
	merged := slices.Clone(current)
	var added []PrimaryBusinessDetails
	for _, d := range requested {
		if strings.TrimSpace(d.Country) == "" || strings.TrimSpace(d.Business) == "" {
			return nil, nil, apperr.InvalidDataValue("primary_business_details")
		}
		if slices.Contains(merged, d) {
			continue
		}
		merged = append(merged, d)
		added = append(added, d)
	}
	return added, merged, nil
}

// DeleteMerchantAccount removes the account and its key store. deleted is
// true only when both were removed.
func (s *Service) DeleteMerchantAccount(ctx context.Context, merchantID string) (resp MerchantAccountDeleteResponse, err error) {
	defer s.track("merchant_delete", time.Now(), &err)

	var merchantDeleted, keyDeleted bool
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		if merchantDeleted, err = tx.DeleteMerchant(ctx, merchantID); err != nil {
			return err
		}
		if !merchantDeleted {
			return nil
		}
		keyDeleted, err = tx.DeleteMerchantKeyStore(ctx, merchantID)
		return err
	})
	if err != nil {
		return MerchantAccountDeleteResponse{}, apperr.Internal("failed to delete merchant account", err)
	}
	if !merchantDeleted {
		return MerchantAccountDeleteResponse{}, merchantNotFound()
	}

	if ok, err := s.store.DeleteConfig(ctx, requiresCVVKey(merchantID)); err != nil || !ok {
		s.logger.Error("failed to delete requires_cvv config", "merchant_id", merchantID, "err", err)
	}
	s.logger.Info("merchant account deleted", "merchant_id", merchantID)
	return MerchantAccountDeleteResponse{MerchantID: merchantID, Deleted: merchantDeleted && keyDeleted}, nil
}

func encryptMerchantPII(m *store.MerchantAccount, key *keymanager.Key, name *string, details json.RawMessage) error {
	if name != nil {
		enc, err := key.Encrypt([]byte(*name), m.MerchantID)
		if err != nil {
			return apperr.Internal("failed to encrypt merchant name", err)
		}
		m.EncryptedMerchantName = enc
	}
	if store.Present(details) {
		enc, err := key.Encrypt(details, m.MerchantID)
		if err != nil {
			return apperr.Internal("failed to encrypt merchant details", err)
		}
		m.EncryptedMerchantDetails = enc
	}
	return nil
}

func merchantResponse(m store.MerchantAccount, key *keymanager.Key) (MerchantAccountResponse, error) {
	resp := MerchantAccountResponse{
		MerchantID:                     m.MerchantID,
		ReturnURL:                      m.ReturnURL,
		WebhookDetails:                 m.WebhookDetails,
		RoutingAlgorithm:               m.RoutingAlgorithm,
		PayoutRoutingAlgorithm:         m.PayoutRoutingAlgorithm,
		FRMRoutingAlgorithm:            m.FRMRoutingAlgorithm,
		SubMerchantsEnabled:            m.SubMerchantsEnabled,
		ParentMerchantID:               m.ParentMerchantID,
		EnablePaymentResponseHash:      m.EnablePaymentResponseHash,
		PaymentResponseHashKey:         m.PaymentResponseHashKey,
		RedirectToMerchantWithHTTPPost: m.RedirectToMerchantWithHTTPPost,
		PublishableKey:                 m.PublishableKey,
		Metadata:                       m.Metadata,
		PrimaryBusinessDetails:         m.PrimaryBusinessDetails,
		OrganizationID:                 m.OrganizationID,
		DefaultProfile:                 m.DefaultProfile,
		StorageScheme:                  string(m.StorageScheme),
	}
	name, err := key.DecryptOptional(m.EncryptedMerchantName, m.MerchantID)
	if err != nil {
		return MerchantAccountResponse{}, apperr.Internal("failed to decrypt merchant name", err)
	}
	if name != nil {
		resp.MerchantName = ptr(string(name))
	}
	details, err := key.DecryptOptional(m.EncryptedMerchantDetails, m.MerchantID)
	if err != nil {
		return MerchantAccountResponse{}, apperr.Internal("failed to decrypt merchant details", err)
	}
	resp.MerchantDetails = details
	return resp, nil
}
