// Package openbanking validates merchant bank account data and registers
// open banking payment recipients with a connector or the locker.
package openbanking

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/connectors/credentials"
)

const (
	ibanMaxLength          = 34
	bacsMaxAccountNumber   = 8
	bacsSortCodeLength     = 6
	recipientKindConnector = "connector_id"
	recipientKindLocker    = "locker_id"
)

// RecipientID is the registered recipient reference. Exactly one of the
// connector or locker forms is set.
type RecipientID struct {
	ConnectorID string
	LockerID    string
}

func ConnectorRecipient(id string) *RecipientID { return &RecipientID{ConnectorID: id} }

func LockerRecipient(id string) *RecipientID { return &RecipientID{LockerID: id} }

func (r RecipientID) MarshalJSON() ([]byte, error) {
	if r.LockerID != "" {
		return json.Marshal(map[string]string{recipientKindLocker: r.LockerID})
	}
	return json.Marshal(map[string]string{recipientKindConnector: r.ConnectorID})
}

func (r *RecipientID) UnmarshalJSON(raw []byte) error {
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return errors.New("recipient id must have exactly one variant")
	}
	switch {
	case m[recipientKindConnector] != "":
		*r = RecipientID{ConnectorID: m[recipientKindConnector]}
	case m[recipientKindLocker] != "":
		*r = RecipientID{LockerID: m[recipientKindLocker]}
	default:
		return fmt.Errorf("unknown recipient id variant")
	}
	return nil
}

// Iban is a SEPA bank account.
type Iban struct {
	Iban                 string       `json:"iban"`
	Name                 string       `json:"name"`
	ConnectorRecipientID *RecipientID `json:"connector_recipient_id,omitempty"`
}

// Bacs is a UK bank account.
type Bacs struct {
	AccountNumber        string       `json:"account_number"`
	SortCode             string       `json:"sort_code"`
	Name                 string       `json:"name"`
	ConnectorRecipientID *RecipientID `json:"connector_recipient_id,omitempty"`
}

// AccountData holds exactly one of Iban or Bacs.
type AccountData struct {
	Iban *Iban `json:"iban,omitempty"`
	Bacs *Bacs `json:"bacs,omitempty"`
}

// Name returns the account holder name.
func (a AccountData) Name() string {
	switch {
	case a.Iban != nil:
		return a.Iban.Name
	case a.Bacs != nil:
		return a.Bacs.Name
	}
	return ""
}

// WithRecipient returns a copy of the account data carrying id.
func (a AccountData) WithRecipient(id *RecipientID) AccountData {
	switch {
	case a.Iban != nil:
		cp := *a.Iban
		cp.ConnectorRecipientID = id
		return AccountData{Iban: &cp}
	case a.Bacs != nil:
		cp := *a.Bacs
		cp.ConnectorRecipientID = id
		return AccountData{Bacs: &cp}
	}
	return a
}

// Validate applies the IBAN or BACS rules.
func (a AccountData) Validate() error {
	switch {
	case a.Iban != nil && a.Bacs != nil:
		return apperr.InvalidRequest("account_data must contain exactly one of iban or bacs")
	case a.Iban != nil:
		return ValidateIBAN(a.Iban.Iban)
	case a.Bacs != nil:
		return ValidateBACS(a.Bacs.AccountNumber, a.Bacs.SortCode)
	}
	return apperr.MissingField("account_data")
}

// RecipientData is the open banking recipient section of
// additional_merchant_data. Only AccountData triggers registration.
type RecipientData struct {
	ConnectorRecipientID *string      `json:"connector_recipient_id,omitempty"`
	WalletID             *string      `json:"wallet_id,omitempty"`
	AccountData          *AccountData `json:"account_data,omitempty"`
}

// AdditionalMerchantData is the connector account field persisted encrypted.
type AdditionalMerchantData struct {
	OpenBankingRecipientData *RecipientData `json:"open_banking_recipient_data,omitempty"`
}

// Masked returns a copy for API responses. Account numbers, IBANs and sort
// codes are masked; names and recipient ids are kept.
func (d AdditionalMerchantData) Masked() AdditionalMerchantData {
	if d.OpenBankingRecipientData == nil || d.OpenBankingRecipientData.AccountData == nil {
		return d
	}
	recipient := *d.OpenBankingRecipientData
	var account AccountData
	switch src := recipient.AccountData; {
	case src.Iban != nil:
		cp := *src.Iban
		cp.Iban = credentials.MaskSecret(cp.Iban)
		account.Iban = &cp
	case src.Bacs != nil:
		cp := *src.Bacs
		cp.AccountNumber = credentials.MaskSecret(cp.AccountNumber)
		cp.SortCode = credentials.MaskSecret(cp.SortCode)
		account.Bacs = &cp
	}
	recipient.AccountData = &account
	return AdditionalMerchantData{OpenBankingRecipientData: &recipient}
}

// ParseAdditionalMerchantData decodes the request field.
func ParseAdditionalMerchantData(raw json.RawMessage) (*AdditionalMerchantData, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var data AdditionalMerchantData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, apperr.InvalidDataFormat("additional_merchant_data", "open_banking_recipient_data")
	}
	if data.OpenBankingRecipientData == nil {
		return nil, apperr.InvalidDataFormat("additional_merchant_data", "open_banking_recipient_data")
	}
	return &data, nil
}

// ValidateIBAN checks length, the uppercase alphanumeric alphabet and the
// ISO 13616 mod-97 checksum.
func ValidateIBAN(iban string) error {
	if len(iban) > ibanMaxLength {
		return apperr.InvalidRequest("IBAN length must be up to 34 characters")
	}
	for _, r := range iban {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return apperr.InvalidRequest("IBAN data must be alphanumeric")
		}
	}
	if len(iban) < 5 {
		return apperr.InvalidRequest("Invalid IBAN")
	}

	rearranged := iban[4:] + iban[:4]
	var digits strings.Builder
	for _, r := range rearranged {
		if r >= 'A' && r <= 'Z' {
			fmt.Fprintf(&digits, "%02d", r-'A'+10)
			continue
		}
		digits.WriteRune(r)
	}
	n, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok {
		return apperr.InvalidRequest("Invalid IBAN")
	}
	if new(big.Int).Mod(n, big.NewInt(97)).Int64() != 1 {
		return apperr.InvalidRequest("Invalid IBAN")
	}
	return nil
}

// ValidateBACS checks raw character counts, not numeric ranges.
func ValidateBACS(accountNumber, sortCode string) error {
	if len(accountNumber) > bacsMaxAccountNumber || len(sortCode) != bacsSortCodeLength {
		return apperr.InvalidRequest("Invalid BACS numbers")
	}
	return nil
}
