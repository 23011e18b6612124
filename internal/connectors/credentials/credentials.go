// Package credentials models connector authentication payloads and the
// connector-independent checks applied to them.
package credentials

import (
	"bytes"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/merchantops/merchantops/internal/apperr"
)

// AuthType is the discriminator of an AuthPayload.
type AuthType string

const (
	TemporaryAuth   AuthType = "TemporaryAuth"
	HeaderKey       AuthType = "HeaderKey"
	BodyKey         AuthType = "BodyKey"
	SignatureKey    AuthType = "SignatureKey"
	MultiAuthKey    AuthType = "MultiAuthKey"
	CurrencyAuthKey AuthType = "CurrencyAuthKey"
	CertificateAuth AuthType = "CertificateAuth"
	NoKey           AuthType = "NoKey"
)

// AllAuthTypes lists every variant of AuthPayload.
func AllAuthTypes() []AuthType {
	return []AuthType{TemporaryAuth, HeaderKey, BodyKey, SignatureKey, MultiAuthKey, CurrencyAuthKey, CertificateAuth, NoKey}
}

// AuthPayload is a tagged union of connector credentials. Only the fields of
// the variant named by Type are meaningful.
type AuthPayload struct {
	Type AuthType

	APIKey    Secret
	Key1      Secret
	APISecret Secret
	Key2      Secret

	AuthKeyMap map[string]json.RawMessage

	Certificate Secret
	PrivateKey  Secret
}

type authWire struct {
	AuthType    AuthType                   `json:"auth_type"`
	APIKey      *string                    `json:"api_key,omitempty"`
	Key1        *string                    `json:"key1,omitempty"`
	APISecret   *string                    `json:"api_secret,omitempty"`
	Key2        *string                    `json:"key2,omitempty"`
	AuthKeyMap  map[string]json.RawMessage `json:"auth_key_map,omitempty"`
	Certificate *string                    `json:"certificate,omitempty"`
	PrivateKey  *string                    `json:"private_key,omitempty"`
}

var errMissingAuthField = errors.New("missing auth field")

// Parse decodes connector_account_details. Every field of the named variant
// must be present; values may still be blank and are checked by Validate.
func Parse(raw json.RawMessage) (AuthPayload, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return AuthPayload{}, apperr.MissingField("connector_account_details")
	}
	p, err := decode(raw)
	if err != nil {
		return AuthPayload{}, apperr.InvalidDataFormat("connector_account_details", "auth_type and api_key")
	}
	return p, nil
}

func decode(raw json.RawMessage) (AuthPayload, error) {
	var w authWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return AuthPayload{}, err
	}

	need := func(v *string) (Secret, error) {
		if v == nil {
			return Secret{}, errMissingAuthField
		}
		return NewSecret(*v), nil
	}

	p := AuthPayload{Type: w.AuthType}
	var err error
	switch w.AuthType {
	case TemporaryAuth, NoKey:
	case HeaderKey:
		p.APIKey, err = need(w.APIKey)
	case BodyKey:
		if p.APIKey, err = need(w.APIKey); err == nil {
			p.Key1, err = need(w.Key1)
		}
	case SignatureKey:
		if p.APIKey, err = need(w.APIKey); err == nil {
			if p.Key1, err = need(w.Key1); err == nil {
				p.APISecret, err = need(w.APISecret)
			}
		}
	case MultiAuthKey:
		if p.APIKey, err = need(w.APIKey); err == nil {
			if p.Key1, err = need(w.Key1); err == nil {
				if p.APISecret, err = need(w.APISecret); err == nil {
					p.Key2, err = need(w.Key2)
				}
			}
		}
	case CurrencyAuthKey:
		if w.AuthKeyMap == nil {
			return AuthPayload{}, errMissingAuthField
		}
		p.AuthKeyMap = w.AuthKeyMap
	case CertificateAuth:
		if p.Certificate, err = need(w.Certificate); err == nil {
			p.PrivateKey, err = need(w.PrivateKey)
		}
	default:
		return AuthPayload{}, fmt.Errorf("unknown auth_type %q", w.AuthType)
	}
	if err != nil {
		return AuthPayload{}, err
	}
	return p, nil
}

// MarshalJSON encodes the raw credential values. It is used for at-rest
// encryption only; responses use MaskedJSON.
func (p AuthPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.wire(func(s Secret) string { return s.Reveal() }))
}

func (p *AuthPayload) UnmarshalJSON(raw []byte) error {
	parsed, err := decode(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MaskedJSON encodes the payload with every secret masked.
func (p AuthPayload) MaskedJSON() json.RawMessage {
	w := p.wire(func(s Secret) string { return s.String() })
	if w.AuthKeyMap != nil {
		masked := make(map[string]json.RawMessage, len(w.AuthKeyMap))
		for currency := range w.AuthKeyMap {
			masked[currency] = json.RawMessage(`"****"`)
		}
		w.AuthKeyMap = masked
	}
	out, err := json.Marshal(w)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return out
}

func (p AuthPayload) wire(render func(Secret) string) authWire {
	str := func(s Secret) *string {
		v := render(s)
		return &v
	}
	w := authWire{AuthType: p.Type}
	switch p.Type {
	case HeaderKey:
		w.APIKey = str(p.APIKey)
	case BodyKey:
		w.APIKey, w.Key1 = str(p.APIKey), str(p.Key1)
	case SignatureKey:
		w.APIKey, w.Key1, w.APISecret = str(p.APIKey), str(p.Key1), str(p.APISecret)
	case MultiAuthKey:
		w.APIKey, w.Key1, w.APISecret, w.Key2 = str(p.APIKey), str(p.Key1), str(p.APISecret), str(p.Key2)
	case CurrencyAuthKey:
		w.AuthKeyMap = p.AuthKeyMap
		if w.AuthKeyMap == nil {
			w.AuthKeyMap = map[string]json.RawMessage{}
		}
	case CertificateAuth:
		w.Certificate, w.PrivateKey = str(p.Certificate), str(p.PrivateKey)
	}
	return w
}

// Validate applies the connector-independent shape checks.
func (p AuthPayload) Validate() error {
	nonEmpty := func(s Secret, field string) error {
		if s.Blank() {
			return apperr.InvalidDataFormat("connector_account_details."+field, "a non empty String")
		}
		return nil
	}

	switch p.Type {
	case TemporaryAuth, NoKey:
		return nil
	case HeaderKey:
		return nonEmpty(p.APIKey, "api_key")
	case BodyKey:
		return firstErr(nonEmpty(p.APIKey, "api_key"), nonEmpty(p.Key1, "key1"))
	case SignatureKey:
		return firstErr(
			nonEmpty(p.APIKey, "api_key"),
			nonEmpty(p.Key1, "key1"),
			nonEmpty(p.APISecret, "api_secret"),
		)
	case MultiAuthKey:
		return firstErr(
			nonEmpty(p.APIKey, "api_key"),
			nonEmpty(p.Key1, "key1"),
			nonEmpty(p.APISecret, "api_secret"),
			nonEmpty(p.Key2, "key2"),
		)
	case CurrencyAuthKey:
		if len(p.AuthKeyMap) == 0 {
			return apperr.InvalidDataFormat("connector_account_details.auth_key_map", "a non empty map")
		}
		return nil
	case CertificateAuth:
		if err := CheckIdentity(p.Certificate.Reveal(), p.PrivateKey.Reveal()); err != nil {
			return apperr.InvalidDataFormat(
				"connector_account_details.certificate or connector_account_details.private_key",
				"a valid base64 encoded string of PEM encoded Certificate and Private Key",
			)
		}
		return nil
	default:
		return apperr.InvalidDataFormat("connector_account_details", "auth_type and api_key")
	}
}

// Currencies returns the sorted currency keys of a CurrencyAuthKey payload.
func (p AuthPayload) Currencies() []string {
	out := make([]string, 0, len(p.AuthKeyMap))
	for k := range p.AuthKeyMap {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CheckIdentity verifies that base64 encoded PEM certificate and key form a
// usable TLS client identity.
func CheckIdentity(certificateB64, privateKeyB64 string) error {
	certPEM, err := base64.StdEncoding.DecodeString(strings.TrimSpace(certificateB64))
	if err != nil {
		return fmt.Errorf("decode certificate: %w", err)
	}
	keyPEM, err := base64.StdEncoding.DecodeString(strings.TrimSpace(privateKeyB64))
	if err != nil {
		return fmt.Errorf("decode private key: %w", err)
	}
	if _, err := tls.X509KeyPair(certPEM, keyPEM); err != nil {
		return fmt.Errorf("build identity: %w", err)
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
