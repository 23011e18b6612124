package openbanking

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/merchantops/merchantops/internal/apperr"
)

func TestValidateIBAN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		iban    string
		wantMsg string
	}{
		{name: "valid gb", iban: "GB82WEST12345698765432"},
		{name: "valid de", iban: "DE89370400440532013000"},
		{name: "wrong checksum", iban: "GB82WEST1234569876543", wantMsg: "Invalid IBAN"},
		{name: "lowercase", iban: "gb82west12345698765432", wantMsg: "IBAN data must be alphanumeric"},
		{name: "spaces", iban: "GB82 WEST 1234 5698 7654 32", wantMsg: "IBAN data must be alphanumeric"},
		{name: "too long", iban: "GB82WEST12345698765432" + strings.Repeat("0", 13), wantMsg: "IBAN length must be up to 34 characters"},
		{name: "empty", iban: "", wantMsg: "Invalid IBAN"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateIBAN(tc.iban)
			if tc.wantMsg == "" {
				if err != nil {
					t.Fatalf("ValidateIBAN(%q) error = %v", tc.iban, err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidateIBAN(%q) error = nil, want %q", tc.iban, tc.wantMsg)
			}
			if !apperr.Is(err, apperr.KindInvalidRequest) {
				t.Fatalf("ValidateIBAN(%q) kind = %q", tc.iban, apperr.KindOf(err))
			}
			if err.Error() != tc.wantMsg {
				t.Fatalf("ValidateIBAN(%q) = %q, want %q", tc.iban, err.Error(), tc.wantMsg)
			}
		})
	}
}

func TestValidateBACS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		accountNumber string
		sortCode      string
		wantErr       bool
	}{
		{name: "valid", accountNumber: "12345678", sortCode: "123456"},
		{name: "short account number", accountNumber: "1234", sortCode: "123456"},
		{name: "nine digit account", accountNumber: "123456789", sortCode: "123456", wantErr: true},
		{name: "five digit sort code", accountNumber: "12345678", sortCode: "12345", wantErr: true},
		{name: "formatted sort code", accountNumber: "12345678", sortCode: "12-34-56", wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateBACS(tc.accountNumber, tc.sortCode)
			if tc.wantErr {
				if err == nil || err.Error() != "Invalid BACS numbers" {
					t.Fatalf("ValidateBACS() error = %v, want Invalid BACS numbers", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateBACS() error = %v", err)
			}
		})
	}
}

func TestAccountDataWithRecipientEncoding(t *testing.T) {
	t.Parallel()

	data := AccountData{Bacs: &Bacs{AccountNumber: "12345678", SortCode: "123456", Name: "Acme"}}
	got, err := json.Marshal(data.WithRecipient(LockerRecipient("ref_1")))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"bacs":{"account_number":"12345678","sort_code":"123456","name":"Acme","connector_recipient_id":{"locker_id":"ref_1"}}}`
	if string(got) != want {
		t.Fatalf("Marshal() = %s, want %s", got, want)
	}
	if data.Bacs.ConnectorRecipientID != nil {
		t.Fatalf("WithRecipient mutated the original account data")
	}
}

func TestParseAdditionalMerchantData(t *testing.T) {
	t.Parallel()

	data, err := ParseAdditionalMerchantData(json.RawMessage(`{"open_banking_recipient_data":{"account_data":{"iban":{"iban":"GB82WEST12345698765432","name":"Acme"}}}}`))
	if err != nil {
		t.Fatalf("ParseAdditionalMerchantData() error = %v", err)
	}
	if data == nil || data.OpenBankingRecipientData.AccountData.Iban.Name != "Acme" {
		t.Fatalf("ParseAdditionalMerchantData() = %+v", data)
	}

	if data, err := ParseAdditionalMerchantData(nil); err != nil || data != nil {
		t.Fatalf("ParseAdditionalMerchantData(nil) = %+v, %v", data, err)
	}
	if _, err := ParseAdditionalMerchantData(json.RawMessage(`{"other":1}`)); apperr.CodeOf(err) != apperr.CodeInvalidDataFormat {
		t.Fatalf("ParseAdditionalMerchantData(unknown) error = %v", err)
	}
}

func TestAdditionalMerchantDataMasked(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data AdditionalMerchantData
		want string
	}{
		{
			name: "iban",
			data: AdditionalMerchantData{OpenBankingRecipientData: &RecipientData{AccountData: &AccountData{
				Iban: &Iban{Iban: "GB82WEST12345698765432", Name: "Acme", ConnectorRecipientID: ConnectorRecipient("rcp_1")},
			}}},
			want: `{"open_banking_recipient_data":{"account_data":{"iban":{"iban":"****5432","name":"Acme","connector_recipient_id":{"connector_id":"rcp_1"}}}}}`,
		},
		{
			name: "bacs",
			data: AdditionalMerchantData{OpenBankingRecipientData: &RecipientData{AccountData: &AccountData{
				Bacs: &Bacs{AccountNumber: "12345678", SortCode: "123456", Name: "Acme"},
			}}},
			want: `{"open_banking_recipient_data":{"account_data":{"bacs":{"account_number":"****","sort_code":"****","name":"Acme"}}}}`,
		},
		{
			name: "wallet only",
			data: AdditionalMerchantData{OpenBankingRecipientData: &RecipientData{WalletID: ptrTo("wallet_1")}},
			want: `{"open_banking_recipient_data":{"wallet_id":"wallet_1"}}`,
		},
	}
	for _, tc := range tests {
		got, err := json.Marshal(tc.data.Masked())
		if err != nil {
			t.Fatalf("%s: Marshal() error = %v", tc.name, err)
		}
		if string(got) != tc.want {
			t.Fatalf("%s: Masked() = %s, want %s", tc.name, got, tc.want)
		}
	}

	original := AdditionalMerchantData{OpenBankingRecipientData: &RecipientData{AccountData: &AccountData{
		Iban: &Iban{Iban: "GB82WEST12345698765432", Name: "Acme"},
	}}}
	original.Masked()
	if got := original.OpenBankingRecipientData.AccountData.Iban.Iban; got != "GB82WEST12345698765432" {
		t.Fatalf("Masked() changed the original iban to %q", got)
	}
}

func ptrTo(s string) *string { return &s }
