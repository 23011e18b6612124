package locker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/merchantops/merchantops/internal/vault"
)

type memKV struct {
	mu   sync.Mutex
	data map[string]map[string]any
}

func (m *memKV) PutKV(_ context.Context, mount, path string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string]map[string]any{}
	}
	m.data[mount+"/"+path] = data
	return nil
}

func (m *memKV) GetKV(_ context.Context, mount, path string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[mount+"/"+path]
	if !ok {
		return nil, vault.ErrSecretNotFound
	}
	return data, nil
}

func TestStoreAndRetrieve(t *testing.T) {
	t.Parallel()

	kv := &memKV{}
	l, err := New(kv, "/secret/")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	l.now = func() time.Time { return now }

	ref, err := l.Store(context.Background(), []byte(`{"iban":{"iban":"X"}}`), "merchant_1", VaultInternal, time.Minute)
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if !strings.HasPrefix(ref, referencePrefix) || strings.Contains(ref, "-") {
		t.Fatalf("Store() ref = %q", ref)
	}
	if _, ok := kv.data["secret/locker/merchant_1/"+ref]; !ok {
		t.Fatalf("entry not written under customer path: %v", kv.data)
	}

	got, err := l.Retrieve(context.Background(), "merchant_1", ref)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if string(got) != `{"iban":{"iban":"X"}}` {
		t.Fatalf("Retrieve() = %s", got)
	}

	now = now.Add(2 * time.Minute)
	if _, err := l.Retrieve(context.Background(), "merchant_1", ref); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Retrieve(expired) error = %v, want ErrNotFound", err)
	}
	if _, err := l.Retrieve(context.Background(), "merchant_2", ref); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Retrieve(other customer) error = %v, want ErrNotFound", err)
	}
}

func TestStoreRequiresCustomer(t *testing.T) {
	t.Parallel()

	l, err := New(&memKV{}, "secret")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := l.Store(context.Background(), []byte("x"), " ", VaultInternal, 0); err == nil {
		t.Fatalf("Store(blank customer) error = nil")
	}
	if _, err := l.Store(context.Background(), []byte("x"), "merchant_1", VaultChoice("hsm"), 0); err == nil {
		t.Fatalf("Store(unknown vault choice) error = nil")
	}
	if _, err := New(nil, "secret"); err == nil {
		t.Fatalf("New(nil) error = nil")
	}
}

func TestStoreWritesVaultKVv2(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		gotPath string
		gotBody map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "s.token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		mu.Lock()
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"version":       1,
				"created_time":  "2026-01-02T03:04:05Z",
				"deletion_time": "",
				"destroyed":     false,
			},
		})
	}))
	defer server.Close()

	client, err := vault.New(vault.Options{Address: server.URL, Token: "s.token"})
	if err != nil {
		t.Fatalf("vault.New() error = %v", err)
	}
	l, err := New(client, "secret")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ref, err := l.Store(context.Background(), []byte("payload"), "merchant_1", "", 0)
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if want := "/v1/secret/data/locker/merchant_1/" + ref; gotPath != want {
		t.Fatalf("path = %q, want %q", gotPath, want)
	}
	data, _ := gotBody["data"].(map[string]any)
	if data["enc_data"] != "payload" || data["merchant_customer_id"] != "merchant_1" || data["vault_choice"] != "internal" {
		t.Fatalf("body = %v", gotBody)
	}
	if _, ok := data["expires_at"]; ok {
		t.Fatalf("zero ttl must not set expires_at: %v", data)
	}
}
