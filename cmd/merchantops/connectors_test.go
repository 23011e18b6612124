package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/merchantops/merchantops/internal/connectors"
	"github.com/merchantops/merchantops/internal/connectors/credentials"
	"github.com/merchantops/merchantops/internal/connectors/registry"
)

func TestWriteConnectorTable(t *testing.T) {
	t.Parallel()

	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("registry.Default() error = %v", err)
	}
	var out bytes.Buffer
	if err := writeConnectorTable(&out, reg); err != nil {
		t.Fatalf("writeConnectorTable() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != len(reg.All())+1 {
		t.Fatalf("got %d lines, want %d", len(lines), len(reg.All())+1)
	}
	if !strings.HasPrefix(lines[0], "CONNECTOR") {
		t.Fatalf("header = %q", lines[0])
	}
	var stripe string
	for _, line := range lines[1:] {
		if strings.HasPrefix(line, "stripe ") {
			stripe = line
		}
	}
	if !strings.Contains(stripe, "true") || !strings.Contains(stripe, string(credentials.HeaderKey)) {
		t.Fatalf("stripe row = %q", stripe)
	}
}

func TestValidateAuth(t *testing.T) {
	t.Parallel()

	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("registry.Default() error = %v", err)
	}

	tests := []struct {
		name      string
		connector connectors.Connector
		raw       string
		wantErr   bool
	}{
		{name: "stripe header key", connector: connectors.Stripe, raw: `{"auth_type":"HeaderKey","api_key":"sk_test_1"}`},
		{name: "stripe body key", connector: connectors.Stripe, raw: `{"auth_type":"BodyKey","api_key":"a","key1":"b"}`, wantErr: true},
		{name: "blank api key", connector: connectors.Stripe, raw: `{"auth_type":"HeaderKey","api_key":" "}`, wantErr: true},
		{name: "missing field", connector: connectors.Stripe, raw: `{"auth_type":"HeaderKey"}`, wantErr: true},
		{name: "not json", connector: connectors.Stripe, raw: `api_key=x`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			auth, err := validateAuth(reg, tc.connector, json.RawMessage(tc.raw), nil)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("validateAuth() error = nil, want error")
				}
				if describeError(err) == "" {
					t.Fatalf("describeError() is empty")
				}
				return
			}
			if err != nil {
				t.Fatalf("validateAuth() error = %v", err)
			}
			if strings.Contains(string(auth.MaskedJSON()), "sk_test_1") {
				t.Fatalf("masked payload leaked the key: %s", auth.MaskedJSON())
			}
		})
	}
}

func TestAuthFieldsCoverPromptableVariants(t *testing.T) {
	t.Parallel()

	for _, at := range credentials.AllAuthTypes() {
		if at == credentials.CurrencyAuthKey {
			if _, ok := authFields[at]; ok {
				t.Fatalf("CurrencyAuthKey must be entered from a file")
			}
			continue
		}
		if _, ok := authFields[at]; !ok {
			t.Fatalf("auth type %s has no prompt fields", at)
		}
	}
}
