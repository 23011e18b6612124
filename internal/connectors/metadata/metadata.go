// Package metadata validates the connector-specific metadata blob attached to
// a connector account.
package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Validator checks the metadata of one connector. raw is nil when the request
// carried no metadata.
type Validator func(raw json.RawMessage) error

var errMetadataMissing = errors.New("connector metadata is required")

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, error) {
	if !present(raw) {
		return nil, errMetadataMissing
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if obj == nil {
		return nil, errMetadataMissing
	}
	return obj, nil
}

// Required returns a validator that needs every listed key as a string.
func Required(fields ...string) Validator {
	return func(raw json.RawMessage) error {
		obj, err := decodeObject(raw)
		if err != nil {
			return err
		}
		for _, field := range fields {
			if err := requireString(obj, field); err != nil {
				return err
			}
		}
		return nil
	}
}

// Optional returns a validator that accepts absent metadata but, when present,
// needs each listed key to be a string or null if it is set.
func Optional(fields ...string) Validator {
	return func(raw json.RawMessage) error {
		if !present(raw) {
			return nil
		}
		obj, err := decodeObject(raw)
		if err != nil {
			return err
		}
		for _, field := range fields {
			if err := optionalString(obj, field); err != nil {
				return err
			}
		}
		return nil
	}
}

func requireString(obj map[string]json.RawMessage, field string) error {
	v, ok := obj[field]
	if !ok || !present(v) {
		return fmt.Errorf("metadata.%s is required", field)
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return fmt.Errorf("metadata.%s must be a string", field)
	}
	return nil
}

func optionalString(obj map[string]json.RawMessage, field string) error {
	v, ok := obj[field]
	if !ok || !present(v) {
		return nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return fmt.Errorf("metadata.%s must be a string", field)
	}
	return nil
}

// Per-connector validators.
var (
	Adyen     = Optional("endpoint_prefix")
	Braintree = Required("merchant_account_id", "merchant_config_currency")
	Coinbase  = Required("pricing_type")
	Fiserv    = Required("terminal_id")
	Gpayments = Required("endpoint_prefix", "merchant_id")
	Mifinity  = Required("brand_id", "destination_account_number")
)

var klarnaRegions = map[string]struct{}{
	"Europe":       {},
	"NorthAmerica": {},
	"Oceania":      {},
}

// Klarna accepts absent metadata or an optional klarna_region.
func Klarna(raw json.RawMessage) error {
	if !present(raw) {
		return nil
	}
	obj, err := decodeObject(raw)
	if err != nil {
		return err
	}
	v, ok := obj["klarna_region"]
	if !ok || !present(v) {
		return nil
	}
	var region string
	if err := json.Unmarshal(v, &region); err != nil {
		return errors.New("metadata.klarna_region must be a string")
	}
	if _, ok := klarnaRegions[region]; !ok {
		return fmt.Errorf("metadata.klarna_region %q is not supported", region)
	}
	return nil
}

// Netcetera needs endpoint_prefix; the requestor fields are optional strings.
func Netcetera(raw json.RawMessage) error {
	obj, err := decodeObject(raw)
	if err != nil {
		return err
	}
	if err := requireString(obj, "endpoint_prefix"); err != nil {
		return err
	}
	for _, field := range []string{"mcc", "merchant_country_code", "merchant_name", "three_ds_requestor_name", "three_ds_requestor_id"} {
		if err := optionalString(obj, field); err != nil {
			return err
		}
	}
	return nil
}
