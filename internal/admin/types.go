package admin

import (
	"encoding/json"
	"time"
)

type OrganizationRequest struct {
	OrganizationName    *string         `json:"organization_name,omitempty"`
	OrganizationDetails json.RawMessage `json:"organization_details,omitempty"`
	Metadata            json.RawMessage `json:"metadata,omitempty"`
}

type OrganizationResponse struct {
	OrganizationID      string          `json:"organization_id"`
	OrganizationName    *string         `json:"organization_name,omitempty"`
	OrganizationDetails json.RawMessage `json:"organization_details,omitempty"`
	Metadata            json.RawMessage `json:"metadata,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	ModifiedAt          time.Time       `json:"modified_at"`
}

// PrimaryBusinessDetails is a legacy country and business label pair. Each
// pair maps to one business profile.
type PrimaryBusinessDetails struct {
	Country  string `json:"country"`
	Business string `json:"business"`
}

func (d PrimaryBusinessDetails) profileName() string {
	return profileNameFromBusinessDetails(d.Country, d.Business)
}

type MerchantAccountCreate struct {
	MerchantID                     string                   `json:"merchant_id,omitempty"`
	MerchantName                   *string                  `json:"merchant_name,omitempty"`
	MerchantDetails                json.RawMessage          `json:"merchant_details,omitempty"`
	ReturnURL                      *string                  `json:"return_url,omitempty"`
	WebhookDetails                 json.RawMessage          `json:"webhook_details,omitempty"`
	RoutingAlgorithm               json.RawMessage          `json:"routing_algorithm,omitempty"`
	PayoutRoutingAlgorithm         json.RawMessage          `json:"payout_routing_algorithm,omitempty"`
	FRMRoutingAlgorithm            json.RawMessage          `json:"frm_routing_algorithm,omitempty"`
	SubMerchantsEnabled            *bool                    `json:"sub_merchants_enabled,omitempty"`
	ParentMerchantID               *string                  `json:"parent_merchant_id,omitempty"`
	EnablePaymentResponseHash      *bool                    `json:"enable_payment_response_hash,omitempty"`
	PaymentResponseHashKey         *string                  `json:"payment_response_hash_key,omitempty"`
	RedirectToMerchantWithHTTPPost *bool                    `json:"redirect_to_merchant_with_http_post,omitempty"`
	Metadata                       json.RawMessage          `json:"metadata,omitempty"`
	PrimaryBusinessDetails         []PrimaryBusinessDetails `json:"primary_business_details,omitempty"`
	OrganizationID                 *string                  `json:"organization_id,omitempty"`
}

type MerchantAccountUpdate struct {
	MerchantName                   *string                  `json:"merchant_name,omitempty"`
	MerchantDetails                json.RawMessage          `json:"merchant_details,omitempty"`
	ReturnURL                      *string                  `json:"return_url,omitempty"`
	WebhookDetails                 json.RawMessage          `json:"webhook_details,omitempty"`
	RoutingAlgorithm               json.RawMessage          `json:"routing_algorithm,omitempty"`
	PayoutRoutingAlgorithm         json.RawMessage          `json:"payout_routing_algorithm,omitempty"`
	FRMRoutingAlgorithm            json.RawMessage          `json:"frm_routing_algorithm,omitempty"`
	SubMerchantsEnabled            *bool                    `json:"sub_merchants_enabled,omitempty"`
	ParentMerchantID               *string                  `json:"parent_merchant_id,omitempty"`
	EnablePaymentResponseHash      *bool                    `json:"enable_payment_response_hash,omitempty"`
	PaymentResponseHashKey         *string                  `json:"payment_response_hash_key,omitempty"`
	RedirectToMerchantWithHTTPPost *bool                    `json:"redirect_to_merchant_with_http_post,omitempty"`
	Metadata                       json.RawMessage          `json:"metadata,omitempty"`
	PrimaryBusinessDetails         []PrimaryBusinessDetails `json:"primary_business_details,omitempty"`
	DefaultProfile                 *string                  `json:"default_profile,omitempty"`
}

type MerchantAccountResponse struct {
	MerchantID                     string          `json:"merchant_id"`
	MerchantName                   *string         `json:"merchant_name,omitempty"`
	MerchantDetails                json.RawMessage `json:"merchant_details,omitempty"`
	ReturnURL                      *string         `json:"return_url,omitempty"`
	WebhookDetails                 json.RawMessage `json:"webhook_details,omitempty"`
	RoutingAlgorithm               json.RawMessage `json:"routing_algorithm,omitempty"`
	PayoutRoutingAlgorithm         json.RawMessage `json:"payout_routing_algorithm,omitempty"`
	FRMRoutingAlgorithm            json.RawMessage `json:"frm_routing_algorithm,omitempty"`
	SubMerchantsEnabled            bool            `json:"sub_merchants_enabled"`
	ParentMerchantID               *string         `json:"parent_merchant_id,omitempty"`
	EnablePaymentResponseHash      bool            `json:"enable_payment_response_hash"`
	PaymentResponseHashKey         *string         `json:"payment_response_hash_key,omitempty"`
	RedirectToMerchantWithHTTPPost bool            `json:"redirect_to_merchant_with_http_post"`
	PublishableKey                 string          `json:"publishable_key"`
	Metadata                       json.RawMessage `json:"metadata,omitempty"`
	PrimaryBusinessDetails         json.RawMessage `json:"primary_business_details,omitempty"`
	OrganizationID                 string          `json:"organization_id"`
	DefaultProfile                 *string         `json:"default_profile,omitempty"`
	StorageScheme                  string          `json:"storage_scheme"`
}

type MerchantAccountDeleteResponse struct {
	MerchantID string `json:"merchant_id"`
	Deleted    bool   `json:"deleted"`
}

type KVResponse struct {
	MerchantID string `json:"merchant_id"`
	KVEnabled  bool   `json:"kv_enabled"`
}

type ToggleAllKVResponse struct {
	TotalUpdated int  `json:"total_updated"`
	KVEnabled    bool `json:"kv_enabled"`
}

type BusinessProfileCreate struct {
	ProfileName                      *string           `json:"profile_name,omitempty"`
	ReturnURL                        *string           `json:"return_url,omitempty"`
	EnablePaymentResponseHash        *bool             `json:"enable_payment_response_hash,omitempty"`
	PaymentResponseHashKey           *string           `json:"payment_response_hash_key,omitempty"`
	RedirectToMerchantWithHTTPPost   *bool             `json:"redirect_to_merchant_with_http_post,omitempty"`
	WebhookDetails                   json.RawMessage   `json:"webhook_details,omitempty"`
	Metadata                         json.RawMessage   `json:"metadata,omitempty"`
	RoutingAlgorithm                 json.RawMessage   `json:"routing_algorithm,omitempty"`
	PayoutRoutingAlgorithm           json.RawMessage   `json:"payout_routing_algorithm,omitempty"`
	FRMRoutingAlgorithm              json.RawMessage   `json:"frm_routing_algorithm,omitempty"`
	IntentFulfillmentTime            *int64            `json:"intent_fulfillment_time,omitempty"`
	SessionExpiry                    *int64            `json:"session_expiry,omitempty"`
	PaymentLinkConfig                json.RawMessage   `json:"payment_link_config,omitempty"`
	PayoutLinkConfig                 json.RawMessage   `json:"payout_link_config,omitempty"`
	IsConnectorAgnosticMITEnabled    *bool             `json:"is_connector_agnostic_mit_enabled,omitempty"`
	UseBillingAsPaymentMethodBilling *bool             `json:"use_billing_as_payment_method_billing,omitempty"`
	CollectShippingDetailsFromWallet *bool             `json:"collect_shipping_details_from_wallet_connector,omitempty"`
	CollectBillingDetailsFromWallet  *bool             `json:"collect_billing_details_from_wallet_connector,omitempty"`
	OutgoingWebhookCustomHTTPHeaders map[string]string `json:"outgoing_webhook_custom_http_headers,omitempty"`
}

// BusinessProfileUpdate has the create fields; absent fields keep their value.
type BusinessProfileUpdate = BusinessProfileCreate

type BusinessProfileResponse struct {
	MerchantID                       string            `json:"merchant_id"`
	ProfileID                        string            `json:"profile_id"`
	ProfileName                      string            `json:"profile_name"`
	ReturnURL                        *string           `json:"return_url,omitempty"`
	EnablePaymentResponseHash        bool              `json:"enable_payment_response_hash"`
	PaymentResponseHashKey           *string           `json:"payment_response_hash_key,omitempty"`
	RedirectToMerchantWithHTTPPost   bool              `json:"redirect_to_merchant_with_http_post"`
	WebhookDetails                   json.RawMessage   `json:"webhook_details,omitempty"`
	Metadata                         json.RawMessage   `json:"metadata,omitempty"`
	RoutingAlgorithm                 json.RawMessage   `json:"routing_algorithm,omitempty"`
	PayoutRoutingAlgorithm           json.RawMessage   `json:"payout_routing_algorithm,omitempty"`
	FRMRoutingAlgorithm              json.RawMessage   `json:"frm_routing_algorithm,omitempty"`
	IntentFulfillmentTime            *int64            `json:"intent_fulfillment_time,omitempty"`
	SessionExpiry                    *int64            `json:"session_expiry,omitempty"`
	PaymentLinkConfig                json.RawMessage   `json:"payment_link_config,omitempty"`
	PayoutLinkConfig                 json.RawMessage   `json:"payout_link_config,omitempty"`
	IsExtendedCardInfoEnabled        *bool             `json:"is_extended_card_info_enabled,omitempty"`
	IsConnectorAgnosticMITEnabled    *bool             `json:"is_connector_agnostic_mit_enabled,omitempty"`
	UseBillingAsPaymentMethodBilling *bool             `json:"use_billing_as_payment_method_billing,omitempty"`
	CollectShippingDetailsFromWallet *bool             `json:"collect_shipping_details_from_wallet_connector,omitempty"`
	CollectBillingDetailsFromWallet  *bool             `json:"collect_billing_details_from_wallet_connector,omitempty"`
	OutgoingWebhookCustomHTTPHeaders map[string]string `json:"outgoing_webhook_custom_http_headers,omitempty"`
}

type ExtendedCardInfoChoice struct {
	Enabled bool `json:"enabled"`
}

type ConnectorAgnosticMITChoice struct {
	Enabled bool `json:"enabled"`
}

// ConnectorCreate is the create request of a merchant connector account.
// Names and enums stay strings so their errors carry the right code.
type ConnectorCreate struct {
	ConnectorType           string          `json:"connector_type"`
	ConnectorName           string          `json:"connector_name"`
	ConnectorLabel          *string         `json:"connector_label,omitempty"`
	ProfileID               *string         `json:"profile_id,omitempty"`
	ConnectorAccountDetails json.RawMessage `json:"connector_account_details,omitempty"`
	TestMode                *bool           `json:"test_mode,omitempty"`
	Disabled                *bool           `json:"disabled,omitempty"`
	Status                  *string         `json:"status,omitempty"`
	PaymentMethodsEnabled   json.RawMessage `json:"payment_methods_enabled,omitempty"`
	Metadata                json.RawMessage `json:"metadata,omitempty"`
	FRMConfigs              json.RawMessage `json:"frm_configs,omitempty"`
	ConnectorWebhookDetails json.RawMessage `json:"connector_webhook_details,omitempty"`
	PMAuthConfig            json.RawMessage `json:"pm_auth_config,omitempty"`
	BusinessCountry         *string         `json:"business_country,omitempty"`
	BusinessLabel           *string         `json:"business_label,omitempty"`
	BusinessSubLabel        *string         `json:"business_sub_label,omitempty"`
	AdditionalMerchantData  json.RawMessage `json:"additional_merchant_data,omitempty"`
}

type ConnectorUpdate struct {
	ConnectorType           string          `json:"connector_type,omitempty"`
	ConnectorLabel          *string         `json:"connector_label,omitempty"`
	ConnectorAccountDetails json.RawMessage `json:"connector_account_details,omitempty"`
	TestMode                *bool           `json:"test_mode,omitempty"`
	Disabled                *bool           `json:"disabled,omitempty"`
	Status                  *string         `json:"status,omitempty"`
	PaymentMethodsEnabled   json.RawMessage `json:"payment_methods_enabled,omitempty"`
	Metadata                json.RawMessage `json:"metadata,omitempty"`
	FRMConfigs              json.RawMessage `json:"frm_configs,omitempty"`
	ConnectorWebhookDetails json.RawMessage `json:"connector_webhook_details,omitempty"`
	PMAuthConfig            json.RawMessage `json:"pm_auth_config,omitempty"`
}

type ConnectorResponse struct {
	MerchantConnectorID     string          `json:"merchant_connector_id"`
	MerchantID              string          `json:"merchant_id"`
	ProfileID               string          `json:"profile_id"`
	ConnectorType           string          `json:"connector_type"`
	ConnectorName           string          `json:"connector_name"`
	ConnectorLabel          string          `json:"connector_label"`
	ConnectorAccountDetails json.RawMessage `json:"connector_account_details"`
	TestMode                *bool           `json:"test_mode,omitempty"`
	Disabled                bool            `json:"disabled"`
	Status                  string          `json:"status"`
	PaymentMethodsEnabled   json.RawMessage `json:"payment_methods_enabled,omitempty"`
	Metadata                json.RawMessage `json:"metadata,omitempty"`
	FRMConfigs              json.RawMessage `json:"frm_configs,omitempty"`
	ConnectorWebhookDetails json.RawMessage `json:"connector_webhook_details,omitempty"`
	PMAuthConfig            json.RawMessage `json:"pm_auth_config,omitempty"`
	BusinessCountry         *string         `json:"business_country,omitempty"`
	BusinessLabel           *string         `json:"business_label,omitempty"`
	BusinessSubLabel        *string         `json:"business_sub_label,omitempty"`
	AdditionalMerchantData  json.RawMessage `json:"additional_merchant_data,omitempty"`
}

type ConnectorDeleteResponse struct {
	MerchantID          string `json:"merchant_id"`
	MerchantConnectorID string `json:"merchant_connector_id"`
	Deleted             bool   `json:"deleted"`
}
