package keymanager

import (
	"context"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	WrapperLocal = "local"
	WrapperVault = "vault"

	localPrefix = "local:v1:"
	// Additional data for wrapped data keys.
	wrapLabel = "merchantops/keystore"
)

// LocalWrapper wraps keys with an in-process AES-256 master key.
type LocalWrapper struct {
	aead cipher.AEAD
}

// NewLocalWrapper parses a hex-encoded 32-byte master key.
func NewLocalWrapper(hexKey string) (*LocalWrapper, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("master key must be hex encoded: %w", err)
	}
	aead, err := newAEAD(raw)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	return &LocalWrapper{aead: aead}, nil
}

func (w *LocalWrapper) Name() string { return WrapperLocal }

func (w *LocalWrapper) Wrap(_ context.Context, key []byte) (string, error) {
	sealed, err := seal(w.aead, key, wrapLabel)
	if err != nil {
		return "", err
	}
	return localPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (w *LocalWrapper) Unwrap(_ context.Context, wrapped string) ([]byte, error) {
	encoded, ok := strings.CutPrefix(wrapped, localPrefix)
	if !ok {
		return nil, errors.New("wrapped key is not a local key")
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode wrapped key: %w", err)
	}
	return open(w.aead, sealed, wrapLabel)
}

// TransitClient is the Vault Transit subset used by TransitWrapper.
type TransitClient interface {
	TransitEncrypt(ctx context.Context, mount, key string, plaintext []byte) (string, error)
	TransitDecrypt(ctx context.Context, mount, key, ciphertext string) ([]byte, error)
}

// TransitWrapper wraps keys with a Vault Transit key.
type TransitWrapper struct {
	client TransitClient
	mount  string
	key    string
}

func NewTransitWrapper(client TransitClient, mount, key string) (*TransitWrapper, error) {
	if client == nil {
		return nil, errors.New("vault transit client is required")
	}
	mount = strings.TrimSpace(mount)
	key = strings.TrimSpace(key)
	if mount == "" || key == "" {
		return nil, errors.New("vault transit mount and key are required")
	}
	return &TransitWrapper{client: client, mount: mount, key: key}, nil
}

func (w *TransitWrapper) Name() string { return WrapperVault }

func (w *TransitWrapper) Wrap(ctx context.Context, key []byte) (string, error) {
	return w.client.TransitEncrypt(ctx, w.mount, w.key, key)
}

func (w *TransitWrapper) Unwrap(ctx context.Context, wrapped string) ([]byte, error) {
	return w.client.TransitDecrypt(ctx, w.mount, w.key, wrapped)
}
