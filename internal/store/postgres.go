package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Store = (*Postgres)(nil)

// Postgres implements Store on a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
	q    querier
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, q: pool}
}

func (p *Postgres) WithTx(ctx context.Context, fn func(Store) error) error {
	if p.pool == nil {
		// Already inside a transaction.
		return fn(p)
	}
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return fn(&Postgres{q: tx})
	})
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

func collectOne[T any](rows pgx.Rows, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, mapErr(err)
	}
	out, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[T])
	if err != nil {
		return zero, mapErr(err)
	}
	return out, nil
}

func collectAll[T any](rows pgx.Rows, err error) ([]T, error) {
	if err != nil {
		return nil, mapErr(err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

// jsonArg stores absent JSON as SQL NULL.
func jsonArg(raw json.RawMessage) any {
	if !Present(raw) {
		return nil
	}
	return string(raw)
}

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ", ")
}

// Organizations

const organizationColumns = `organization_id, organization_name, organization_details, metadata, created_at, modified_at`

func (p *Postgres) InsertOrganization(ctx context.Context, org Organization) (Organization, error) {
	rows, err := p.q.Query(ctx, `INSERT INTO organizations (`+organizationColumns+`) VALUES (`+placeholders(6)+`) RETURNING `+organizationColumns,
		org.OrganizationID, org.OrganizationName, jsonArg(org.Details), jsonArg(org.Metadata), org.CreatedAt, org.ModifiedAt)
	return collectOne[Organization](rows, err)
}

func (p *Postgres) GetOrganization(ctx context.Context, organizationID string) (Organization, error) {
	rows, err := p.q.Query(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE organization_id = $1`, organizationID)
	return collectOne[Organization](rows, err)
}

func (p *Postgres) UpdateOrganization(ctx context.Context, org Organization) (Organization, error) {
	rows, err := p.q.Query(ctx, `UPDATE organizations SET organization_name = $2, organization_details = $3, metadata = $4, modified_at = $5
WHERE organization_id = $1 RETURNING `+organizationColumns,
		org.OrganizationID, org.OrganizationName, jsonArg(org.Details), jsonArg(org.Metadata), org.ModifiedAt)
	return collectOne[Organization](rows, err)
}

// Key stores

const keyStoreColumns = `merchant_id, wrapper, wrapped_key, created_at`

func (p *Postgres) InsertMerchantKeyStore(ctx context.Context, ks MerchantKeyStore) (MerchantKeyStore, error) {
	rows, err := p.q.Query(ctx, `INSERT INTO merchant_key_stores (`+keyStoreColumns+`) VALUES (`+placeholders(4)+`) RETURNING `+keyStoreColumns,
		ks.MerchantID, ks.Wrapper, ks.WrappedKey, ks.CreatedAt)
	return collectOne[MerchantKeyStore](rows, err)
}

func (p *Postgres) GetMerchantKeyStore(ctx context.Context, merchantID string) (MerchantKeyStore, error) {
	rows, err := p.q.Query(ctx, `SELECT `+keyStoreColumns+` FROM merchant_key_stores WHERE merchant_id = $1`, merchantID)
	return collectOne[MerchantKeyStore](rows, err)
}

func (p *Postgres) ListMerchantKeyStores(ctx context.Context) ([]MerchantKeyStore, error) {
	rows, err := p.q.Query(ctx, `SELECT `+keyStoreColumns+` FROM merchant_key_stores ORDER BY merchant_id`)
	return collectAll[MerchantKeyStore](rows, err)
}

func (p *Postgres) UpdateMerchantKeyStore(ctx context.Context, ks MerchantKeyStore) (MerchantKeyStore, error) {
	rows, err := p.q.Query(ctx, `UPDATE merchant_key_stores SET wrapper = $2, wrapped_key = $3 WHERE merchant_id = $1 RETURNING `+keyStoreColumns,
		ks.MerchantID, ks.Wrapper, ks.WrappedKey)
	return collectOne[MerchantKeyStore](rows, err)
}

func (p *Postgres) DeleteMerchantKeyStore(ctx context.Context, merchantID string) (bool, error) {
	tag, err := p.q.Exec(ctx, `DELETE FROM merchant_key_stores WHERE merchant_id = $1`, merchantID)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() > 0, nil
}

// Merchant accounts

const merchantColumns = `merchant_id, organization_id, publishable_key, merchant_name, merchant_details, return_url,
webhook_details, sub_merchants_enabled, parent_merchant_id, enable_payment_response_hash, payment_response_hash_key,
redirect_to_merchant_with_http_post, storage_scheme, default_profile, routing_algorithm, payout_routing_algorithm,
frm_routing_algorithm, primary_business_details, metadata, created_at, modified_at`

func merchantArgs(m MerchantAccount) []any {
	return []any{
		m.MerchantID, m.OrganizationID, m.PublishableKey, m.EncryptedMerchantName, m.EncryptedMerchantDetails, m.ReturnURL,
		jsonArg(m.WebhookDetails), m.SubMerchantsEnabled, m.ParentMerchantID, m.EnablePaymentResponseHash, m.PaymentResponseHashKey,
		m.RedirectToMerchantWithHTTPPost, string(m.StorageScheme), m.DefaultProfile, jsonArg(m.RoutingAlgorithm), jsonArg(m.PayoutRoutingAlgorithm),
		jsonArg(m.FRMRoutingAlgorithm), jsonArg(m.PrimaryBusinessDetails), jsonArg(m.Metadata), m.CreatedAt, m.ModifiedAt,
	}
}

func (p *Postgres) InsertMerchant(ctx context.Context, m MerchantAccount) (MerchantAccount, error) {
	rows, err := p.q.Query(ctx, `INSERT INTO merchant_accounts (`+merchantColumns+`) VALUES (`+placeholders(21)+`) RETURNING `+merchantColumns, merchantArgs(m)...)
	return collectOne[MerchantAccount](rows, err)
}

func (p *Postgres) GetMerchant(ctx context.Context, merchantID string) (MerchantAccount, error) {
	rows, err := p.q.Query(ctx, `SELECT `+merchantColumns+` FROM merchant_accounts WHERE merchant_id = $1`, merchantID)
	return collectOne[MerchantAccount](rows, err)
}

func (p *Postgres) ListMerchantsByOrganization(ctx context.Context, organizationID string) ([]MerchantAccount, error) {
	rows, err := p.q.Query(ctx, `SELECT `+merchantColumns+` FROM merchant_accounts WHERE organization_id = $1 ORDER BY created_at, merchant_id`, organizationID)
	return collectAll[MerchantAccount](rows, err)
}

// UpdateMerchant rewrites every mutable column. publishable_key and
// storage_scheme are not touched here.
func (p *Postgres) UpdateMerchant(ctx context.Context, m MerchantAccount) (MerchantAccount, error) {
	rows, err := p.q.Query(ctx, `UPDATE merchant_accounts SET
merchant_name = $2, merchant_details = $3, return_url = $4, webhook_details = $5, sub_merchants_enabled = $6,
parent_merchant_id = $7, enable_payment_response_hash = $8, payment_response_hash_key = $9,
redirect_to_merchant_with_http_post = $10, default_profile = $11, routing_algorithm = $12, payout_routing_algorithm = $13,
frm_routing_algorithm = $14, primary_business_details = $15, metadata = $16, modified_at = $17
WHERE merchant_id = $1 RETURNING `+merchantColumns,
		m.MerchantID, m.EncryptedMerchantName, m.EncryptedMerchantDetails, m.ReturnURL, jsonArg(m.WebhookDetails), m.SubMerchantsEnabled,
		m.ParentMerchantID, m.EnablePaymentResponseHash, m.PaymentResponseHashKey,
		m.RedirectToMerchantWithHTTPPost, m.DefaultProfile, jsonArg(m.RoutingAlgorithm), jsonArg(m.PayoutRoutingAlgorithm),
		jsonArg(m.FRMRoutingAlgorithm), jsonArg(m.PrimaryBusinessDetails), jsonArg(m.Metadata), m.ModifiedAt)
	return collectOne[MerchantAccount](rows, err)
}

func (p *Postgres) TouchMerchant(ctx context.Context, merchantID string, at time.Time) error {
	tag, err := p.q.Exec(ctx, `UPDATE merchant_accounts SET modified_at = $2 WHERE merchant_id = $1`, merchantID, at)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) UpdateStorageScheme(ctx context.Context, merchantID string, scheme StorageScheme, at time.Time) (MerchantAccount, error) {
	rows, err := p.q.Query(ctx, `UPDATE merchant_accounts SET storage_scheme = $2, modified_at = $3 WHERE merchant_id = $1 RETURNING `+merchantColumns,
		merchantID, string(scheme), at)
	return collectOne[MerchantAccount](rows, err)
}

func (p *Postgres) UpdateAllStorageSchemes(ctx context.Context, scheme StorageScheme) ([]MerchantAccount, error) {
	rows, err := p.q.Query(ctx, `UPDATE merchant_accounts SET storage_scheme = $1, modified_at = now()
WHERE storage_scheme <> $1 RETURNING `+merchantColumns, string(scheme))
	return collectAll[MerchantAccount](rows, err)
}

func (p *Postgres) DeleteMerchant(ctx context.Context, merchantID string) (bool, error) {
	tag, err := p.q.Exec(ctx, `DELETE FROM merchant_accounts WHERE merchant_id = $1`, merchantID)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() > 0, nil
}

// Business profiles

const profileColumns = `profile_id, merchant_id, profile_name, return_url, enable_payment_response_hash, payment_response_hash_key,
redirect_to_merchant_with_http_post, webhook_details, metadata, routing_algorithm, payout_routing_algorithm, frm_routing_algorithm,
intent_fulfillment_time, session_expiry, payment_link_config, payout_link_config,
is_extended_card_info_enabled, extended_card_info_config, is_connector_agnostic_mit_enabled,
use_billing_as_payment_method_billing, collect_shipping_details_from_wallet_connector,
collect_billing_details_from_wallet_connector, outgoing_webhook_custom_http_headers, created_at, modified_at`

func profileArgs(p BusinessProfile) []any {
	return []any{
		p.ProfileID, p.MerchantID, p.ProfileName, p.ReturnURL, p.EnablePaymentResponseHash, p.PaymentResponseHashKey,
		p.RedirectToMerchantWithHTTPPost, jsonArg(p.WebhookDetails), jsonArg(p.Metadata), jsonArg(p.RoutingAlgorithm), jsonArg(p.PayoutRoutingAlgorithm), jsonArg(p.FRMRoutingAlgorithm),
		p.IntentFulfillmentTime, p.SessionExpiry, jsonArg(p.PaymentLinkConfig), jsonArg(p.PayoutLinkConfig),
		p.IsExtendedCardInfoEnabled, jsonArg(p.ExtendedCardInfoConfig), p.IsConnectorAgnosticMITEnabled,
		p.UseBillingAsPaymentMethodBilling, p.CollectShippingDetailsFromWallet,
		p.CollectBillingDetailsFromWallet, p.EncryptedWebhookHeaders, p.CreatedAt, p.ModifiedAt,
	}
}

func (p *Postgres) InsertProfile(ctx context.Context, profile BusinessProfile) (BusinessProfile, error) {
	rows, err := p.q.Query(ctx, `INSERT INTO business_profiles (`+profileColumns+`) VALUES (`+placeholders(25)+`) RETURNING `+profileColumns, profileArgs(profile)...)
	return collectOne[BusinessProfile](rows, err)
}

func (p *Postgres) GetProfile(ctx context.Context, profileID string) (BusinessProfile, error) {
	rows, err := p.q.Query(ctx, `SELECT `+profileColumns+` FROM business_profiles WHERE profile_id = $1`, profileID)
	return collectOne[BusinessProfile](rows, err)
}

func (p *Postgres) GetProfileByName(ctx context.Context, merchantID, profileName string) (BusinessProfile, error) {
	rows, err := p.q.Query(ctx, `SELECT `+profileColumns+` FROM business_profiles WHERE merchant_id = $1 AND profile_name = $2`, merchantID, profileName)
	return collectOne[BusinessProfile](rows, err)
}

func (p *Postgres) ListProfiles(ctx context.Context, merchantID string) ([]BusinessProfile, error) {
	rows, err := p.q.Query(ctx, `SELECT `+profileColumns+` FROM business_profiles WHERE merchant_id = $1 ORDER BY created_at, profile_id`, merchantID)
	return collectAll[BusinessProfile](rows, err)
}

func (p *Postgres) UpdateProfile(ctx context.Context, profile BusinessProfile) (BusinessProfile, error) {
	rows, err := p.q.Query(ctx, `UPDATE business_profiles SET
profile_name = $3, return_url = $4, enable_payment_response_hash = $5, payment_response_hash_key = $6,
redirect_to_merchant_with_http_post = $7, webhook_details = $8, metadata = $9, routing_algorithm = $10,
payout_routing_algorithm = $11, frm_routing_algorithm = $12, intent_fulfillment_time = $13, session_expiry = $14,
payment_link_config = $15, payout_link_config = $16, is_extended_card_info_enabled = $17,
extended_card_info_config = $18, is_connector_agnostic_mit_enabled = $19, use_billing_as_payment_method_billing = $20,
collect_shipping_details_from_wallet_connector = $21, collect_billing_details_from_wallet_connector = $22,
outgoing_webhook_custom_http_headers = $23, modified_at = $24
WHERE profile_id = $1 AND merchant_id = $2 RETURNING `+profileColumns,
		profile.ProfileID, profile.MerchantID, profile.ProfileName, profile.ReturnURL, profile.EnablePaymentResponseHash, profile.PaymentResponseHashKey,
		profile.RedirectToMerchantWithHTTPPost, jsonArg(profile.WebhookDetails), jsonArg(profile.Metadata), jsonArg(profile.RoutingAlgorithm),
		jsonArg(profile.PayoutRoutingAlgorithm), jsonArg(profile.FRMRoutingAlgorithm), profile.IntentFulfillmentTime, profile.SessionExpiry,
		jsonArg(profile.PaymentLinkConfig), jsonArg(profile.PayoutLinkConfig), profile.IsExtendedCardInfoEnabled,
		jsonArg(profile.ExtendedCardInfoConfig), profile.IsConnectorAgnosticMITEnabled, profile.UseBillingAsPaymentMethodBilling,
		profile.CollectShippingDetailsFromWallet, profile.CollectBillingDetailsFromWallet,
		profile.EncryptedWebhookHeaders, profile.ModifiedAt)
	return collectOne[BusinessProfile](rows, err)
}

func (p *Postgres) DeleteProfile(ctx context.Context, merchantID, profileID string) (bool, error) {
	tag, err := p.q.Exec(ctx, `DELETE FROM business_profiles WHERE merchant_id = $1 AND profile_id = $2`, merchantID, profileID)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() > 0, nil
}

// Connector accounts

const connectorColumns = `merchant_connector_id, merchant_id, profile_id, connector_name, connector_type, connector_label,
connector_account_details, test_mode, disabled, status, payment_methods_enabled, metadata, frm_configs,
connector_webhook_details, pm_auth_config, business_country, business_label, business_sub_label,
additional_merchant_data, connector_wallets_details, created_at, modified_at`

func connectorArgs(m MerchantConnectorAccount) []any {
	return []any{
		m.MerchantConnectorID, m.MerchantID, m.ProfileID, m.ConnectorName, m.ConnectorType, m.ConnectorLabel,
		m.EncryptedAccountDetails, m.TestMode, m.Disabled, m.Status, jsonArg(m.PaymentMethodsEnabled), jsonArg(m.Metadata), jsonArg(m.FRMConfigs),
		jsonArg(m.ConnectorWebhookDetails), jsonArg(m.PMAuthConfig), m.BusinessCountry, m.BusinessLabel, m.BusinessSubLabel,
		m.EncryptedAdditionalMerchantData, m.EncryptedConnectorWalletsDetails, m.CreatedAt, m.ModifiedAt,
	}
}

func (p *Postgres) InsertConnector(ctx context.Context, mca MerchantConnectorAccount) (MerchantConnectorAccount, error) {
	rows, err := p.q.Query(ctx, `INSERT INTO merchant_connector_accounts (`+connectorColumns+`) VALUES (`+placeholders(22)+`) RETURNING `+connectorColumns, connectorArgs(mca)...)
	return collectOne[MerchantConnectorAccount](rows, err)
}

func (p *Postgres) GetConnector(ctx context.Context, merchantID, merchantConnectorID string) (MerchantConnectorAccount, error) {
	rows, err := p.q.Query(ctx, `SELECT `+connectorColumns+` FROM merchant_connector_accounts WHERE merchant_id = $1 AND merchant_connector_id = $2`, merchantID, merchantConnectorID)
	return collectOne[MerchantConnectorAccount](rows, err)
}

func (p *Postgres) ListConnectors(ctx context.Context, merchantID string, includeDisabled bool) ([]MerchantConnectorAccount, error) {
	rows, err := p.q.Query(ctx, `SELECT `+connectorColumns+` FROM merchant_connector_accounts
WHERE merchant_id = $1 AND ($2 OR NOT disabled) ORDER BY created_at, merchant_connector_id`, merchantID, includeDisabled)
	return collectAll[MerchantConnectorAccount](rows, err)
}

// UpdateConnector keeps merchant, profile and connector identity fixed.
func (p *Postgres) UpdateConnector(ctx context.Context, mca MerchantConnectorAccount) (MerchantConnectorAccount, error) {
	rows, err := p.q.Query(ctx, `UPDATE merchant_connector_accounts SET
connector_type = $5, connector_label = $6, connector_account_details = $7, test_mode = $8, disabled = $9, status = $10,
payment_methods_enabled = $11, metadata = $12, frm_configs = $13, connector_webhook_details = $14, pm_auth_config = $15,
additional_merchant_data = $16, connector_wallets_details = $17, modified_at = $18
WHERE merchant_connector_id = $1 AND merchant_id = $2 AND profile_id = $3 AND connector_name = $4
RETURNING `+connectorColumns,
		mca.MerchantConnectorID, mca.MerchantID, mca.ProfileID, mca.ConnectorName,
		mca.ConnectorType, mca.ConnectorLabel, mca.EncryptedAccountDetails, mca.TestMode, mca.Disabled, mca.Status,
		jsonArg(mca.PaymentMethodsEnabled), jsonArg(mca.Metadata), jsonArg(mca.FRMConfigs), jsonArg(mca.ConnectorWebhookDetails), jsonArg(mca.PMAuthConfig),
		mca.EncryptedAdditionalMerchantData, mca.EncryptedConnectorWalletsDetails, mca.ModifiedAt)
	return collectOne[MerchantConnectorAccount](rows, err)
}

func (p *Postgres) DeleteConnector(ctx context.Context, merchantID, merchantConnectorID string) (bool, error) {
	tag, err := p.q.Exec(ctx, `DELETE FROM merchant_connector_accounts WHERE merchant_id = $1 AND merchant_connector_id = $2`, merchantID, merchantConnectorID)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() > 0, nil
}

// Configs

const configColumns = `key, value, version`

func (p *Postgres) InsertConfig(ctx context.Context, key, value string) (Config, error) {
	rows, err := p.q.Query(ctx, `INSERT INTO configs (key, value, version) VALUES ($1, $2, 1) RETURNING `+configColumns, key, value)
	return collectOne[Config](rows, err)
}

func (p *Postgres) GetConfig(ctx context.Context, key string) (Config, error) {
	rows, err := p.q.Query(ctx, `SELECT `+configColumns+` FROM configs WHERE key = $1`, key)
	return collectOne[Config](rows, err)
}

func (p *Postgres) UpdateConfigIfVersion(ctx context.Context, key, value string, version int64) (Config, error) {
	rows, err := p.q.Query(ctx, `UPDATE configs SET value = $2, version = version + 1 WHERE key = $1 AND version = $3 RETURNING `+configColumns,
		key, value, version)
	cfg, err := collectOne[Config](rows, err)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := p.GetConfig(ctx, key); getErr == nil {
			return Config{}, ErrConflict
		}
	}
	return cfg, err
}

func (p *Postgres) DeleteConfig(ctx context.Context, key string) (bool, error) {
	tag, err := p.q.Exec(ctx, `DELETE FROM configs WHERE key = $1`, key)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() > 0, nil
}
