// Package locker stores opaque customer payloads in a Vault KV v2 mount and
// hands back a reference id.
package locker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/merchantops/merchantops/internal/vault"
)

const (
	referencePrefix = "lck_"
	pathPrefix      = "locker"
)

// VaultChoice records which vault the payload is meant for. Entries are
// always written to the KV mount; the choice travels with them.
type VaultChoice string

const (
	VaultInternal VaultChoice = "internal"
	VaultExternal VaultChoice = "external"
)

// ErrNotFound is returned for unknown or expired references.
var ErrNotFound = errors.New("locker entry not found")

// KV is the subset of the Vault client the locker needs.
type KV interface {
	PutKV(ctx context.Context, mount, path string, data map[string]any) error
	GetKV(ctx context.Context, mount, path string) (map[string]any, error)
}

type Locker struct {
	kv    KV
	mount string
	now   func() time.Time
}

func New(kv KV, mount string) (*Locker, error) {
	if kv == nil {
		return nil, errors.New("locker kv client is required")
	}
	mount = strings.Trim(strings.TrimSpace(mount), "/")
	if mount == "" {
		return nil, errors.New("locker kv mount is required")
	}
	return &Locker{kv: kv, mount: mount, now: time.Now}, nil
}

// Store writes payload under the customer and returns the reference id. An
// empty choice means VaultInternal. A zero ttl keeps the entry indefinitely.
func (l *Locker) Store(ctx context.Context, payload []byte, customerID string, choice VaultChoice, ttl time.Duration) (string, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return "", errors.New("locker customer id is required")
	}
	switch choice {
	case "":
		choice = VaultInternal
	case VaultInternal, VaultExternal:
	default:
		return "", fmt.Errorf("unknown vault choice %q", choice)
	}
	ref := referencePrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	data := map[string]any{
		"merchant_customer_id": customerID,
		"enc_data":             string(payload),
		"vault_choice":         string(choice),
		"stored_at":            l.now().UTC().Format(time.RFC3339),
	}
	if ttl > 0 {
		data["expires_at"] = l.now().Add(ttl).UTC().Format(time.RFC3339)
	}
	if err := l.kv.PutKV(ctx, l.mount, entryPath(customerID, ref), data); err != nil {
		return "", fmt.Errorf("locker store: %w", err)
	}
	return ref, nil
}

// Retrieve returns the payload stored under ref.
func (l *Locker) Retrieve(ctx context.Context, customerID, ref string) ([]byte, error) {
	data, err := l.kv.GetKV(ctx, l.mount, entryPath(strings.TrimSpace(customerID), strings.TrimSpace(ref)))
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("locker retrieve: %w", err)
	}
	if raw, ok := data["expires_at"].(string); ok && raw != "" {
		expiresAt, err := time.Parse(time.RFC3339, raw)
		if err == nil && !l.now().Before(expiresAt) {
			return nil, ErrNotFound
		}
	}
	payload, ok := data["enc_data"].(string)
	if !ok {
		return nil, errors.New("locker entry has no payload")
	}
	return []byte(payload), nil
}

func entryPath(customerID, ref string) string {
	return pathPrefix + "/" + customerID + "/" + ref
}
