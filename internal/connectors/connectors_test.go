package connectors

import (
	"testing"

	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/connectors/credentials"
)

func TestAllConnectorsAreUniqueAndParse(t *testing.T) {
	t.Parallel()

	seen := make(map[Connector]bool)
	for _, c := range All() {
		if seen[c] {
			t.Fatalf("connector %q listed twice", c)
		}
		seen[c] = true
		got, err := Parse(" " + string(c) + " ")
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", c, err)
		}
		if got != c {
			t.Fatalf("Parse(%q) = %q", c, got)
		}
	}
	if _, err := Parse("not-a-connector"); err == nil {
		t.Fatalf("Parse(unknown) error = nil, want error")
	}
}

func TestCapabilityTablesAreDisjoint(t *testing.T) {
	t.Parallel()

	for _, c := range All() {
		n := 0
		for _, in := range []bool{IsPaymentMethodAuth(c), IsAuthentication(c)} {
			if in {
				n++
			}
		}
		if _, ok := ParseRoutable(c); ok {
			n++
		}
		if n != 1 {
			t.Fatalf("connector %q is in %d capability tables, want exactly 1", c, n)
		}
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		typ          ConnectorType
		connector    Connector
		wantRoutable bool
		wantMessage  string
	}{
		{name: "processor", typ: PaymentProcessor, connector: Stripe, wantRoutable: true},
		{name: "payout processor", typ: PayoutProcessor, connector: Adyen, wantRoutable: true},
		{name: "pm auth as pm auth", typ: PaymentMethodAuth, connector: Plaid},
		{name: "pm auth as processor", typ: PaymentProcessor, connector: Plaid},
		{name: "pm auth wrong type", typ: AuthenticationProcessor, connector: Plaid, wantMessage: "Invalid connector type given"},
		{name: "authentication", typ: AuthenticationProcessor, connector: Netcetera},
		{name: "authentication wrong type", typ: PaymentProcessor, connector: Threedsecureio, wantMessage: "Invalid connector type given"},
		{name: "fraud check", typ: FraudRiskManagement, connector: Signifyd, wantRoutable: true},
		{name: "fraud check as vas", typ: PaymentVas, connector: Riskified, wantRoutable: true},
		{name: "fraud check under any type", typ: PaymentProcessor, connector: Signifyd, wantRoutable: true},
		{name: "authentication under fraud type", typ: FraudRiskManagement, connector: Gpayments, wantMessage: "Invalid connector type given"},
		{name: "dummy", typ: PaymentProcessor, connector: DummyConnector1, wantRoutable: true},
		{name: "unknown", typ: PaymentProcessor, connector: Connector("nope"), wantMessage: "Invalid connector name given"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := Classify(tc.typ, tc.connector)
			if tc.wantMessage != "" {
				if err == nil {
					t.Fatalf("Classify() error = nil, want %q", tc.wantMessage)
				}
				if !apperr.Is(err, apperr.KindInvalidRequest) || err.Error() != tc.wantMessage {
					t.Fatalf("Classify() error = %v, want %q", err, tc.wantMessage)
				}
				return
			}
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if (got != nil) != tc.wantRoutable {
				t.Fatalf("Classify() routable = %v, want %v", got, tc.wantRoutable)
			}
			if got != nil && string(*got) != string(tc.connector) {
				t.Fatalf("Classify() = %q, want %q", *got, tc.connector)
			}
		})
	}
}

func TestTransactionTypeFromConnectorType(t *testing.T) {
	t.Parallel()

	if got := PayoutProcessor.TransactionType(); got != TransactionPayout {
		t.Fatalf("PayoutProcessor.TransactionType() = %q", got)
	}
	if got := PaymentProcessor.TransactionType(); got != TransactionPayment {
		t.Fatalf("PaymentProcessor.TransactionType() = %q", got)
	}
}

func TestResolveStatusActiveWithTemporaryAuthAlwaysFails(t *testing.T) {
	t.Parallel()

	active := StatusActive
	for _, disabled := range []*bool{nil, boolPtr(true), boolPtr(false)} {
		for _, current := range []ConnectorStatus{StatusActive, StatusInactive} {
			_, _, err := ResolveStatus(StatusInput{Requested: &active, Disabled: disabled, AuthType: credentials.TemporaryAuth, Current: current})
			if err == nil {
				t.Fatalf("ResolveStatus(active, %v, temporary, %s) error = nil", disabled, current)
			}
		}
	}
}

func TestResolveStatusEnableWhileInactiveAlwaysFails(t *testing.T) {
	t.Parallel()

	inactive := StatusInactive
	enable := false
	inputs := []StatusInput{
		{Requested: &inactive, Disabled: &enable, AuthType: credentials.HeaderKey, Current: StatusActive},
		{Disabled: &enable, AuthType: credentials.TemporaryAuth, Current: StatusActive},
		{Disabled: &enable, AuthType: credentials.BodyKey, Current: StatusInactive},
	}
	for _, in := range inputs {
		if _, _, err := ResolveStatus(in); err == nil {
			t.Fatalf("ResolveStatus(%+v) error = nil, want error", in)
		}
	}
}

func TestResolveStatus(t *testing.T) {
	t.Parallel()

	active := StatusActive
	inactive := StatusInactive

	tests := []struct {
		name         string
		in           StatusInput
		wantStatus   ConnectorStatus
		wantDisabled *bool
	}{
		{
			name:       "requested status used",
			in:         StatusInput{Requested: &active, AuthType: credentials.HeaderKey, Current: StatusInactive},
			wantStatus: StatusActive,
		},
		{
			name:         "temporary auth defaults inactive and disabled",
			in:           StatusInput{AuthType: credentials.TemporaryAuth, Current: StatusActive},
			wantStatus:   StatusInactive,
			wantDisabled: boolPtr(true),
		},
		{
			name:       "current status kept",
			in:         StatusInput{AuthType: credentials.HeaderKey, Current: StatusActive},
			wantStatus: StatusActive,
		},
		{
			name:         "explicit disabled kept",
			in:           StatusInput{Requested: &active, Disabled: boolPtr(true), AuthType: credentials.HeaderKey, Current: StatusActive},
			wantStatus:   StatusActive,
			wantDisabled: boolPtr(true),
		},
		{
			name:         "inactive disables by default",
			in:           StatusInput{Requested: &inactive, AuthType: credentials.HeaderKey, Current: StatusActive},
			wantStatus:   StatusInactive,
			wantDisabled: boolPtr(true),
		},
		{
			name:         "disabled true while inactive allowed",
			in:           StatusInput{Requested: &inactive, Disabled: boolPtr(true), AuthType: credentials.TemporaryAuth, Current: StatusActive},
			wantStatus:   StatusInactive,
			wantDisabled: boolPtr(true),
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			status, disabled, err := ResolveStatus(tc.in)
			if err != nil {
				t.Fatalf("ResolveStatus() error = %v", err)
			}
			if status != tc.wantStatus {
				t.Fatalf("status = %q, want %q", status, tc.wantStatus)
			}
			if (disabled == nil) != (tc.wantDisabled == nil) {
				t.Fatalf("disabled = %v, want %v", disabled, tc.wantDisabled)
			}
			if disabled != nil && *disabled != *tc.wantDisabled {
				t.Fatalf("disabled = %v, want %v", *disabled, *tc.wantDisabled)
			}
		})
	}
}

func boolPtr(v bool) *bool {
	return &v
}
