package metadata

import (
	"encoding/json"

	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/connectors/credentials"
)

type sessionTokenData struct {
	Certificate     *string `json:"certificate"`
	CertificateKeys *string `json:"certificate_keys"`
}

type applePayMetadata struct {
	SessionTokenData *sessionTokenData `json:"session_token_data"`
}

type applePayCombined struct {
	Manual *applePayMetadata `json:"manual"`
}

type connectorMetadata struct {
	ApplePay         *applePayMetadata `json:"apple_pay"`
	ApplePayCombined *applePayCombined `json:"apple_pay_combined"`
}

func parseConnectorMetadata(raw json.RawMessage) (connectorMetadata, error) {
	var meta connectorMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return connectorMetadata{}, apperr.InvalidDataFormat("metadata", "connector metadata")
	}
	return meta, nil
}

func (m connectorMetadata) sessionToken() *sessionTokenData {
	if m.ApplePayCombined != nil && m.ApplePayCombined.Manual != nil && m.ApplePayCombined.Manual.SessionTokenData != nil {
		return m.ApplePayCombined.Manual.SessionTokenData
	}
	if m.ApplePay != nil {
		return m.ApplePay.SessionTokenData
	}
	return nil
}

// ValidateApplePayCertificates checks that Apple Pay session certificates in
// the metadata, if any, form a valid identity.
func ValidateApplePayCertificates(raw json.RawMessage) error {
	if !present(raw) {
		return nil
	}
	meta, err := parseConnectorMetadata(raw)
	if err != nil {
		return err
	}
	token := meta.sessionToken()
	if token == nil {
		return nil
	}
	cert, key := "", ""
	if token.Certificate != nil {
		cert = *token.Certificate
	}
	if token.CertificateKeys != nil {
		key = *token.CertificateKeys
	}
	if err := credentials.CheckIdentity(cert, key); err != nil {
		return apperr.InvalidDataValue("certificate/certificate key")
	}
	return nil
}

// ApplePayWalletDetails extracts the Apple Pay section of the metadata for
// separate encrypted storage. ok is false when no Apple Pay data is present.
func ApplePayWalletDetails(raw json.RawMessage) (json.RawMessage, bool, error) {
	if !present(raw) {
		return nil, false, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false, apperr.InvalidDataFormat("metadata", "connector metadata")
	}
	wallet := make(map[string]json.RawMessage, 2)
	for _, key := range []string{"apple_pay_combined", "apple_pay"} {
		if v, ok := obj[key]; ok && present(v) {
			wallet[key] = v
		}
	}
	if len(wallet) == 0 {
		return nil, false, nil
	}
	out, err := json.Marshal(wallet)
	if err != nil {
		return nil, false, apperr.Internal("encode apple pay wallet details", err)
	}
	return out, true, nil
}
