package store

import (
	"encoding/json"
	"time"
)

// StorageScheme selects where a merchant's hot data is kept.
type StorageScheme string

const (
	PostgresOnly StorageScheme = "postgres_only"
	RedisKv      StorageScheme = "redis_kv"
)

type Organization struct {
	OrganizationID   string          `db:"organization_id"`
	OrganizationName *string         `db:"organization_name"`
	Details          json.RawMessage `db:"organization_details"`
	Metadata         json.RawMessage `db:"metadata"`
	CreatedAt        time.Time       `db:"created_at"`
	ModifiedAt       time.Time       `db:"modified_at"`
}

// MerchantKeyStore holds the wrapped data key of a merchant.
type MerchantKeyStore struct {
	MerchantID string    `db:"merchant_id"`
	Wrapper    string    `db:"wrapper"`
	WrappedKey string    `db:"wrapped_key"`
	CreatedAt  time.Time `db:"created_at"`
}

// MerchantAccount fields named Encrypted* hold ciphertext produced with the
// merchant data key.
type MerchantAccount struct {
	MerchantID                     string          `db:"merchant_id"`
	OrganizationID                 string          `db:"organization_id"`
	PublishableKey                 string          `db:"publishable_key"`
	EncryptedMerchantName          []byte          `db:"merchant_name"`
	EncryptedMerchantDetails       []byte          `db:"merchant_details"`
	ReturnURL                      *string         `db:"return_url"`
	WebhookDetails                 json.RawMessage `db:"webhook_details"`
	SubMerchantsEnabled            bool            `db:"sub_merchants_enabled"`
	ParentMerchantID               *string         `db:"parent_merchant_id"`
	EnablePaymentResponseHash      bool            `db:"enable_payment_response_hash"`
	PaymentResponseHashKey         *string         `db:"payment_response_hash_key"`
	RedirectToMerchantWithHTTPPost bool            `db:"redirect_to_merchant_with_http_post"`
	StorageScheme                  StorageScheme   `db:"storage_scheme"`
	DefaultProfile                 *string         `db:"default_profile"`
	RoutingAlgorithm               json.RawMessage `db:"routing_algorithm"`
	PayoutRoutingAlgorithm         json.RawMessage `db:"payout_routing_algorithm"`
	FRMRoutingAlgorithm            json.RawMessage `db:"frm_routing_algorithm"`
	PrimaryBusinessDetails         json.RawMessage `db:"primary_business_details"`
	Metadata                       json.RawMessage `db:"metadata"`
	CreatedAt                      time.Time       `db:"created_at"`
	ModifiedAt                     time.Time       `db:"modified_at"`
}

type BusinessProfile struct {
	ProfileID                        string          `db:"profile_id"`
	MerchantID                       string          `db:"merchant_id"`
	ProfileName                      string          `db:"profile_name"`
	ReturnURL                        *string         `db:"return_url"`
	EnablePaymentResponseHash        bool            `db:"enable_payment_response_hash"`
	PaymentResponseHashKey           *string         `db:"payment_response_hash_key"`
	RedirectToMerchantWithHTTPPost   bool            `db:"redirect_to_merchant_with_http_post"`
	WebhookDetails                   json.RawMessage `db:"webhook_details"`
	Metadata                         json.RawMessage `db:"metadata"`
	RoutingAlgorithm                 json.RawMessage `db:"routing_algorithm"`
	PayoutRoutingAlgorithm           json.RawMessage `db:"payout_routing_algorithm"`
	FRMRoutingAlgorithm              json.RawMessage `db:"frm_routing_algorithm"`
	IntentFulfillmentTime            *int64          `db:"intent_fulfillment_time"`
	SessionExpiry                    *int64          `db:"session_expiry"`
	PaymentLinkConfig                json.RawMessage `db:"payment_link_config"`
	PayoutLinkConfig                 json.RawMessage `db:"payout_link_config"`
	IsExtendedCardInfoEnabled        *bool           `db:"is_extended_card_info_enabled"`
	ExtendedCardInfoConfig           json.RawMessage `db:"extended_card_info_config"`
	IsConnectorAgnosticMITEnabled    *bool           `db:"is_connector_agnostic_mit_enabled"`
	UseBillingAsPaymentMethodBilling *bool           `db:"use_billing_as_payment_method_billing"`
	CollectShippingDetailsFromWallet *bool           `db:"collect_shipping_details_from_wallet_connector"`
	CollectBillingDetailsFromWallet  *bool           `db:"collect_billing_details_from_wallet_connector"`
	EncryptedWebhookHeaders          []byte          `db:"outgoing_webhook_custom_http_headers"`
	CreatedAt                        time.Time       `db:"created_at"`
	ModifiedAt                       time.Time       `db:"modified_at"`
}

// MerchantConnectorAccount is a configured connector integration.
type MerchantConnectorAccount struct {
	MerchantConnectorID              string          `db:"merchant_connector_id"`
	MerchantID                       string          `db:"merchant_id"`
	ProfileID                        string          `db:"profile_id"`
	ConnectorName                    string          `db:"connector_name"`
	ConnectorType                    string          `db:"connector_type"`
	ConnectorLabel                   string          `db:"connector_label"`
	EncryptedAccountDetails          []byte          `db:"connector_account_details"`
	TestMode                         *bool           `db:"test_mode"`
	Disabled                         bool            `db:"disabled"`
	Status                           string          `db:"status"`
	PaymentMethodsEnabled            json.RawMessage `db:"payment_methods_enabled"`
	Metadata                         json.RawMessage `db:"metadata"`
	FRMConfigs                       json.RawMessage `db:"frm_configs"`
	ConnectorWebhookDetails          json.RawMessage `db:"connector_webhook_details"`
	PMAuthConfig                     json.RawMessage `db:"pm_auth_config"`
	BusinessCountry                  *string         `db:"business_country"`
	BusinessLabel                    *string         `db:"business_label"`
	BusinessSubLabel                 *string         `db:"business_sub_label"`
	EncryptedAdditionalMerchantData  []byte          `db:"additional_merchant_data"`
	EncryptedConnectorWalletsDetails []byte          `db:"connector_wallets_details"`
	CreatedAt                        time.Time       `db:"created_at"`
	ModifiedAt                       time.Time       `db:"modified_at"`
}

// Config is a versioned key/value blob.
type Config struct {
	Key     string `db:"key"`
	Value   string `db:"value"`
	Version int64  `db:"version"`
}
