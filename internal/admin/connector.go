package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/connectors"
	"github.com/merchantops/merchantops/internal/connectors/credentials"
	"github.com/merchantops/merchantops/internal/connectors/metadata"
	"github.com/merchantops/merchantops/internal/keymanager"
	"github.com/merchantops/merchantops/internal/metrics"
	"github.com/merchantops/merchantops/internal/openbanking"
	"github.com/merchantops/merchantops/internal/store"
)

func duplicateConnector(profileID, label string) *apperr.Error {
	return apperr.Duplicate(apperr.CodeDuplicateConnector, fmt.Sprintf(
		"The merchant connector account with the specified profile_id '%s' and connector_label '%s' already exists in our records",
		profileID, label))
}

func parseConnectorName(name string, dummyEnabled bool) (connectors.Connector, error) {
	c, err := connectors.Parse(name)
	if err != nil {
		return "", apperr.InvalidConnectorName("Invalid connector name")
	}
	if err := c.ValidateDummyEnabled(dummyEnabled); err != nil {
		return "", apperr.InvalidRequest("Invalid connector name")
	}
	return c, nil
}

func parseRequestedStatus(raw *string) (*connectors.ConnectorStatus, error) {
	if raw == nil {
		return nil, nil
	}
	st, err := connectors.ParseConnectorStatus(*raw)
	if err != nil {
		return nil, apperr.InvalidDataValue("status")
	}
	return &st, nil
}

// connectorLabel returns the explicit label, else one derived from the
// business details, else one derived from the profile name.
func connectorLabel(req ConnectorCreate, connector connectors.Connector, profileName string) string {
	if req.ConnectorLabel != nil && strings.TrimSpace(*req.ConnectorLabel) != "" {
		return strings.TrimSpace(*req.ConnectorLabel)
	}
	if req.BusinessCountry != nil && req.BusinessLabel != nil {
		parts := []string{connector.String(), *req.BusinessCountry, *req.BusinessLabel}
		if req.BusinessSubLabel != nil && *req.BusinessSubLabel != "" {
			parts = append(parts, *req.BusinessSubLabel)
		}
		return strings.Join(parts, "_")
	}
	return connector.String() + "_" + profileName
}

func (s *Service) CreateConnector(ctx context.Context, merchantID string, req ConnectorCreate) (resp ConnectorResponse, err error) {
	defer s.track("connector_create", time.Now(), &err)

	connector, err := parseConnectorName(req.ConnectorName, s.dummyConnectorEnabled)
	if err != nil {
		return ConnectorResponse{}, err
	}
	connectorType, err := connectors.ParseConnectorType(req.ConnectorType)
	if err != nil {
		return ConnectorResponse{}, apperr.InvalidDataValue("connector_type")
	}
	key, err := s.merchantKey(ctx, s.store, merchantID)
	if err != nil {
		return ConnectorResponse{}, err
	}
	if err := metadata.ValidateApplePayCertificates(req.Metadata); err != nil {
		return ConnectorResponse{}, err
	}
	merchant, err := s.loadMerchant(ctx, merchantID)
	if err != nil {
		return ConnectorResponse{}, err
	}
	profile, err := s.strategy.connectorProfile(ctx, s, merchant, req)
	if err != nil {
		return ConnectorResponse{}, err
	}
	if err := s.validatePMAuth(ctx, merchantID, profile.ProfileID, connectorType, req.PMAuthConfig); err != nil {
		return ConnectorResponse{}, err
	}
	routable, err := connectors.Classify(connectorType, connector)
	if err != nil {
		return ConnectorResponse{}, err
	}

	mca, err := s.buildConnector(ctx, key, merchantID, profile, connector, connectorType, req)
	if err != nil {
		return ConnectorResponse{}, err
	}
	created, err := s.store.InsertConnector(ctx, mca)
	if errors.Is(err, store.ErrDuplicate) {
		return ConnectorResponse{}, duplicateConnector(mca.ProfileID, mca.ConnectorLabel)
	}
	if err != nil {
		return ConnectorResponse{}, apperr.Internal("failed to insert merchant connector account", err)
	}
	s.logger.Info("merchant connector account created",
		"merchant_id", merchantID,
		"profile_id", created.ProfileID,
		"merchant_connector_id", created.MerchantConnectorID,
		"connector", connector,
	)

	steps := []postCommitStep{{
		name: "touch_merchant",
		run: func(ctx context.Context) error {
			return s.store.TouchMerchant(ctx, merchantID, s.timestamp())
		},
	}}
	if routable != nil {
		steps = append(steps, postCommitStep{
			name: "register_default_routing",
			run: func(ctx context.Context) error {
				return s.defaults.RegisterIfAbsent(ctx, merchantID, created.ProfileID, *routable, created.MerchantConnectorID, connectorType.TransactionType())
			},
		}, postCommitStep{
			name: "invalidate_routing_cache",
			run: func(ctx context.Context) error {
				return s.invalidateRouting(ctx, merchantID, created.ProfileID)
			},
		})
	}
	if err := s.runPostCommit(ctx, steps...); err != nil {
		return ConnectorResponse{}, err
	}

	metrics.ConnectorAccountsCreatedTotal.WithLabelValues(connector.String(), merchantID).Inc()
	return connectorResponse(created, key)
}

func (s *Service) buildConnector(ctx context.Context, key *keymanager.Key, merchantID string, profile store.BusinessProfile, connector connectors.Connector, connectorType connectors.ConnectorType, req ConnectorCreate) (store.MerchantConnectorAccount, error) {
	auth, err := credentials.Parse(req.ConnectorAccountDetails)
	if err != nil {
		return store.MerchantConnectorAccount{}, err
	}
	if err := s.registry.Validate(connector, auth, req.Metadata); err != nil {
		return store.MerchantConnectorAccount{}, err
	}
	requested, err := parseRequestedStatus(req.Status)
	if err != nil {
		return store.MerchantConnectorAccount{}, err
	}
	status, disabled, err := connectors.ResolveStatus(connectors.StatusInput{
		Requested: requested,
		Disabled:  req.Disabled,
		AuthType:  auth.Type,
		Current:   connectors.StatusActive,
	})
	if err != nil {
		return store.MerchantConnectorAccount{}, err
	}

	now := s.timestamp()
	mca := store.MerchantConnectorAccount{
		MerchantConnectorID:     generateID("mca"),
		MerchantID:              merchantID,
		ProfileID:               profile.ProfileID,
		ConnectorName:           connector.String(),
		ConnectorType:           string(connectorType),
		ConnectorLabel:          connectorLabel(req, connector, profile.ProfileName),
		TestMode:                req.TestMode,
		Disabled:                disabled != nil && *disabled,
		Status:                  string(status),
		PaymentMethodsEnabled:   req.PaymentMethodsEnabled,
		Metadata:                req.Metadata,
		FRMConfigs:              req.FRMConfigs,
		ConnectorWebhookDetails: req.ConnectorWebhookDetails,
		PMAuthConfig:            req.PMAuthConfig,
		BusinessCountry:         req.BusinessCountry,
		BusinessLabel:           req.BusinessLabel,
		BusinessSubLabel:        req.BusinessSubLabel,
		CreatedAt:               now,
		ModifiedAt:              now,
	}

	additional, err := openbanking.ParseAdditionalMerchantData(req.AdditionalMerchantData)
	if err != nil {
		return store.MerchantConnectorAccount{}, err
	}
	if additional != nil {
		resolved, err := s.openBanking.Resolve(ctx, merchantID, auth, connectorType, connector, *additional)
		if err != nil {
			return store.MerchantConnectorAccount{}, err
		}
		raw, err := json.Marshal(resolved)
		if err != nil {
			return store.MerchantConnectorAccount{}, apperr.Internal("failed to encode additional merchant data", err)
		}
		if mca.EncryptedAdditionalMerchantData, err = key.Encrypt(raw, merchantID); err != nil {
			return store.MerchantConnectorAccount{}, apperr.Internal("failed to encrypt additional merchant data", err)
		}
	}

	if err := encryptConnectorSecrets(&mca, key, &auth, req.Metadata); err != nil {
		return store.MerchantConnectorAccount{}, err
	}
	return mca, nil
}

// encryptConnectorSecrets stores the auth payload and the Apple Pay wallet
// section of the metadata encrypted. A nil auth keeps the stored credentials.
func encryptConnectorSecrets(mca *store.MerchantConnectorAccount, key *keymanager.Key, auth *credentials.AuthPayload, meta json.RawMessage) error {
	if auth != nil {
		raw, err := json.Marshal(*auth)
		if err != nil {
			return apperr.Internal("failed to encode connector account details", err)
		}
		if mca.EncryptedAccountDetails, err = key.Encrypt(raw, mca.MerchantID); err != nil {
			return apperr.Internal("failed to encrypt connector account details", err)
		}
	}
	wallet, ok, err := metadata.ApplePayWalletDetails(meta)
	if err != nil {
		return err
	}
	if ok {
		if mca.EncryptedConnectorWalletsDetails, err = key.Encrypt(wallet, mca.MerchantID); err != nil {
			return apperr.Internal("failed to encrypt connector wallets details", err)
		}
	}
	return nil
}

type pmAuthConfig struct {
	EnabledPaymentMethods []pmAuthMethod `json:"enabled_payment_methods"`
}

type pmAuthMethod struct {
	PaymentMethod     string `json:"payment_method"`
	PaymentMethodType string `json:"payment_method_type"`
	ConnectorName     string `json:"connector_name"`
	MCAID             string `json:"mca_id"`
}

// validatePMAuth checks that every payment method auth account referenced by
// a connector's pm_auth_config belongs to the merchant and to profileID.
func (s *Service) validatePMAuth(ctx context.Context, merchantID, profileID string, connectorType connectors.ConnectorType, raw json.RawMessage) error {
	if connectorType == connectors.PaymentMethodAuth || !store.Present(raw) {
		return nil
	}
	var cfg pmAuthConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return apperr.InvalidRequest("invalid data received for payment method auth config")
	}
	if len(cfg.EnabledPaymentMethods) == 0 {
		return nil
	}

	accounts, err := s.store.ListConnectors(ctx, merchantID, true)
	if err != nil {
		return apperr.Internal("failed to list merchant connector accounts", err)
	}
	for _, method := range cfg.EnabledPaymentMethods {
		idx := slices.IndexFunc(accounts, func(a store.MerchantConnectorAccount) bool {
			return a.MerchantConnectorID == method.MCAID
		})
		if idx < 0 {
			return apperr.NotFound(apperr.CodeConnectorNotFound, "payment method auth connector account not found")
		}
		if accounts[idx].ProfileID != profileID {
			return apperr.NotFound(apperr.CodeConnectorNotFound, "payment method auth profile_id differs from connector profile_id")
		}
	}
	return nil
}

func (s *Service) getConnector(ctx context.Context, merchantID, merchantConnectorID string) (store.MerchantConnectorAccount, error) {
	mca, err := s.store.GetConnector(ctx, merchantID, merchantConnectorID)
	if errors.Is(err, store.ErrNotFound) {
		return store.MerchantConnectorAccount{}, connectorNotFound(merchantConnectorID)
	}
	if err != nil {
		return store.MerchantConnectorAccount{}, apperr.Internal("failed to fetch merchant connector account", err)
	}
	return mca, nil
}

// UpdateConnector changes a connector account in place. A non-empty
// profileID restricts the caller to accounts of that profile.
func (s *Service) UpdateConnector(ctx context.Context, merchantID, profileID, merchantConnectorID string, req ConnectorUpdate) (resp ConnectorResponse, err error) {
	defer s.track("connector_update", time.Now(), &err)

	key, err := s.merchantKey(ctx, s.store, merchantID)
	if err != nil {
		return ConnectorResponse{}, err
	}
	mca, err := s.getConnector(ctx, merchantID, merchantConnectorID)
	if err != nil {
		return ConnectorResponse{}, err
	}
	if profileID != "" && mca.ProfileID != profileID {
		return ConnectorResponse{}, connectorNotFound(merchantConnectorID)
	}

	connector, err := connectors.Parse(mca.ConnectorName)
	if err != nil {
		return ConnectorResponse{}, apperr.Internal("stored connector name is invalid", err)
	}
	connectorType := connectors.ConnectorType(mca.ConnectorType)
	if req.ConnectorType != "" {
		if connectorType, err = connectors.ParseConnectorType(req.ConnectorType); err != nil {
			return ConnectorResponse{}, apperr.InvalidDataValue("connector_type")
		}
		// A new type must suit the connector. Routing lists are only written on
		// create, so the identity is not registered again here.
		if _, err := connectors.Classify(connectorType, connector); err != nil {
			return ConnectorResponse{}, err
		}
	}

	var newAuth *credentials.AuthPayload
	var auth credentials.AuthPayload
	if store.Present(req.ConnectorAccountDetails) {
		if auth, err = credentials.Parse(req.ConnectorAccountDetails); err != nil {
			return ConnectorResponse{}, err
		}
		newAuth = &auth
	} else if auth, err = decryptAuth(mca, key); err != nil {
		return ConnectorResponse{}, err
	}

	meta := mca.Metadata
	if store.Present(req.Metadata) {
		if err := metadata.ValidateApplePayCertificates(req.Metadata); err != nil {
			return ConnectorResponse{}, err
		}
		meta = req.Metadata
	}
	if err := s.registry.Validate(connector, auth, meta); err != nil {
		return ConnectorResponse{}, err
	}

	requested, err := parseRequestedStatus(req.Status)
	if err != nil {
		return ConnectorResponse{}, err
	}
	status, disabled, err := connectors.ResolveStatus(connectors.StatusInput{
		Requested: requested,
		Disabled:  req.Disabled,
		AuthType:  auth.Type,
		Current:   connectors.ConnectorStatus(mca.Status),
	})
	if err != nil {
		return ConnectorResponse{}, err
	}
	if err := s.validatePMAuth(ctx, merchantID, mca.ProfileID, connectorType, req.PMAuthConfig); err != nil {
		return ConnectorResponse{}, err
	}

	mca.ConnectorType = string(connectorType)
	mca.Status = string(status)
	if disabled != nil {
		mca.Disabled = *disabled
	}
	if req.ConnectorLabel != nil && strings.TrimSpace(*req.ConnectorLabel) != "" {
		mca.ConnectorLabel = strings.TrimSpace(*req.ConnectorLabel)
	}
	if req.TestMode != nil {
		mca.TestMode = req.TestMode
	}
	if store.Present(req.PaymentMethodsEnabled) {
		mca.PaymentMethodsEnabled = req.PaymentMethodsEnabled
	}
	if store.Present(req.FRMConfigs) {
		mca.FRMConfigs = req.FRMConfigs
	}
	if store.Present(req.ConnectorWebhookDetails) {
		mca.ConnectorWebhookDetails = req.ConnectorWebhookDetails
	}
	if store.Present(req.PMAuthConfig) {
		mca.PMAuthConfig = req.PMAuthConfig
	}
	var walletSource json.RawMessage
	if store.Present(req.Metadata) {
		mca.Metadata = req.Metadata
		walletSource = req.Metadata
	}
	if err := encryptConnectorSecrets(&mca, key, newAuth, walletSource); err != nil {
		return ConnectorResponse{}, err
	}
	mca.ModifiedAt = s.timestamp()

	updated, err := s.store.UpdateConnector(ctx, mca)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return ConnectorResponse{}, duplicateConnector(mca.ProfileID, mca.ConnectorLabel)
	case errors.Is(err, store.ErrNotFound):
		return ConnectorResponse{}, connectorNotFound(merchantConnectorID)
	case err != nil:
		return ConnectorResponse{}, apperr.Internal("failed to update merchant connector account", err)
	}
	s.logger.Info("merchant connector account updated", "merchant_id", merchantID, "merchant_connector_id", merchantConnectorID, "connector", connector)
	return connectorResponse(updated, key)
}

func (s *Service) RetrieveConnector(ctx context.Context, merchantID, merchantConnectorID string) (resp ConnectorResponse, err error) {
	defer s.track("connector_retrieve", time.Now(), &err)

	key, err := s.merchantKey(ctx, s.store, merchantID)
	if err != nil {
		return ConnectorResponse{}, err
	}
	mca, err := s.getConnector(ctx, merchantID, merchantConnectorID)
	if err != nil {
		return ConnectorResponse{}, err
	}
	return connectorResponse(mca, key)
}

// ListConnectors returns every account of the merchant, disabled ones
// included. A non-empty profileIDs keeps only accounts of those profiles.
func (s *Service) ListConnectors(ctx context.Context, merchantID string, profileIDs []string) (resp []ConnectorResponse, err error) {
	defer s.track("connector_list", time.Now(), &err)

	key, err := s.merchantKey(ctx, s.store, merchantID)
	if err != nil {
		return nil, err
	}
	accounts, err := s.store.ListConnectors(ctx, merchantID, true)
	if err != nil {
		return nil, apperr.Internal("failed to list merchant connector accounts", err)
	}
	out := make([]ConnectorResponse, 0, len(accounts))
	for _, mca := range accounts {
		if len(profileIDs) > 0 && !slices.Contains(profileIDs, mca.ProfileID) {
			continue
		}
		r, err := connectorResponse(mca, key)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// DeleteConnector removes the account. Default routing lists keep their
// entries for it.
func (s *Service) DeleteConnector(ctx context.Context, merchantID, merchantConnectorID string) (resp ConnectorDeleteResponse, err error) {
	defer s.track("connector_delete", time.Now(), &err)

	if _, err := s.merchantKey(ctx, s.store, merchantID); err != nil {
		return ConnectorDeleteResponse{}, err
	}
	deleted, err := s.store.DeleteConnector(ctx, merchantID, merchantConnectorID)
	if err != nil {
		return ConnectorDeleteResponse{}, apperr.Internal("failed to delete merchant connector account", err)
	}
	if !deleted {
		return ConnectorDeleteResponse{}, connectorNotFound(merchantConnectorID)
	}
	s.logger.Info("merchant connector account deleted", "merchant_id", merchantID, "merchant_connector_id", merchantConnectorID)
	return ConnectorDeleteResponse{MerchantID: merchantID, MerchantConnectorID: merchantConnectorID, Deleted: true}, nil
}

func decryptAuth(mca store.MerchantConnectorAccount, key *keymanager.Key) (credentials.AuthPayload, error) {
	raw, err := key.Decrypt(mca.EncryptedAccountDetails, mca.MerchantID)
	if err != nil {
		return credentials.AuthPayload{}, apperr.Internal("failed to decrypt connector account details", err)
	}
	var auth credentials.AuthPayload
	if err := json.Unmarshal(raw, &auth); err != nil {
		return credentials.AuthPayload{}, apperr.Internal("failed to decode connector account details", err)
	}
	return auth, nil
}

// maskedAdditionalData decrypts additional_merchant_data and masks the bank
// account it carries.
func maskedAdditionalData(mca store.MerchantConnectorAccount, key *keymanager.Key) (json.RawMessage, error) {
	raw, err := key.DecryptOptional(mca.EncryptedAdditionalMerchantData, mca.MerchantID)
	if err != nil {
		return nil, apperr.Internal("failed to decrypt additional merchant data", err)
	}
	if raw == nil {
		return nil, nil
	}
	var data openbanking.AdditionalMerchantData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, apperr.Internal("failed to decode additional merchant data", err)
	}
	masked, err := json.Marshal(data.Masked())
	if err != nil {
		return nil, apperr.Internal("failed to encode additional merchant data", err)
	}
	return masked, nil
}

// connectorResponse renders an account with masked credentials.
func connectorResponse(mca store.MerchantConnectorAccount, key *keymanager.Key) (ConnectorResponse, error) {
	auth, err := decryptAuth(mca, key)
	if err != nil {
		return ConnectorResponse{}, err
	}
	additional, err := maskedAdditionalData(mca, key)
	if err != nil {
		return ConnectorResponse{}, err
	}
	return ConnectorResponse{
		MerchantConnectorID:     mca.MerchantConnectorID,
		MerchantID:              mca.MerchantID,
		ProfileID:               mca.ProfileID,
		ConnectorType:           mca.ConnectorType,
		ConnectorName:           mca.ConnectorName,
		ConnectorLabel:          mca.ConnectorLabel,
		ConnectorAccountDetails: auth.MaskedJSON(),
		TestMode:                mca.TestMode,
		Disabled:                mca.Disabled,
		Status:                  mca.Status,
		PaymentMethodsEnabled:   mca.PaymentMethodsEnabled,
		Metadata:                mca.Metadata,
		FRMConfigs:              mca.FRMConfigs,
		ConnectorWebhookDetails: mca.ConnectorWebhookDetails,
		PMAuthConfig:            mca.PMAuthConfig,
		BusinessCountry:         mca.BusinessCountry,
		BusinessLabel:           mca.BusinessLabel,
		BusinessSubLabel:        mca.BusinessSubLabel,
		AdditionalMerchantData:  additional,
	}, nil
}
