// Package keymanager issues per-merchant data keys, wraps them with a master
// key and encrypts merchant fields with them.
package keymanager

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const keySize = 32

var ErrDecrypt = errors.New("keymanager: decryption failed")

// Wrapper protects data keys with a master key.
type Wrapper interface {
	Name() string
	Wrap(ctx context.Context, key []byte) (string, error)
	Unwrap(ctx context.Context, wrapped string) ([]byte, error)
}

// KeyStore is the persisted form of a merchant data key.
type KeyStore struct {
	Wrapper    string
	WrappedKey string
}

// Key is an unwrapped merchant data key.
type Key struct {
	aead cipher.AEAD
}

// GenerateKey returns a fresh AES-256 key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

func NewKey(raw []byte) (*Key, error) {
	aead, err := newAEAD(raw)
	if err != nil {
		return nil, err
	}
	return &Key{aead: aead}, nil
}

func newAEAD(raw []byte) (cipher.AEAD, error) {
	if len(raw) != keySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", keySize, len(raw))
	}
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext bound to identifier, usually the merchant id. The
// output is nonce || ciphertext.
func (k *Key) Encrypt(plaintext []byte, identifier string) ([]byte, error) {
	return seal(k.aead, plaintext, identifier)
}

// Decrypt opens a value produced by Encrypt with the same identifier.
func (k *Key) Decrypt(ciphertext []byte, identifier string) ([]byte, error) {
	return open(k.aead, ciphertext, identifier)
}

// EncryptOptional returns nil for a nil plaintext.
func (k *Key) EncryptOptional(plaintext []byte, identifier string) ([]byte, error) {
	if plaintext == nil {
		return nil, nil
	}
	return k.Encrypt(plaintext, identifier)
}

// DecryptOptional returns nil for a nil ciphertext.
func (k *Key) DecryptOptional(ciphertext []byte, identifier string) ([]byte, error) {
	if ciphertext == nil {
		return nil, nil
	}
	return k.Decrypt(ciphertext, identifier)
}

func seal(aead cipher.AEAD, plaintext []byte, identifier string) ([]byte, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, []byte(identifier)), nil
}

func open(aead cipher.AEAD, ciphertext []byte, identifier string) ([]byte, error) {
	if len(ciphertext) < aead.NonceSize() {
		return nil, ErrDecrypt
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, []byte(identifier))
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// Manager creates and opens key stores with the active wrapper. Additional
// wrappers can open key stores written by a previous configuration.
type Manager struct {
	active   Wrapper
	wrappers map[string]Wrapper
}

func NewManager(active Wrapper, others ...Wrapper) (*Manager, error) {
	if active == nil {
		return nil, errors.New("keymanager: active wrapper is required")
	}
	m := &Manager{active: active, wrappers: map[string]Wrapper{active.Name(): active}}
	for _, w := range others {
		if w != nil {
			m.wrappers[w.Name()] = w
		}
	}
	return m, nil
}

func (m *Manager) Active() Wrapper { return m.active }

// Wrapper returns the wrapper registered under name.
func (m *Manager) Wrapper(name string) (Wrapper, bool) {
	w, ok := m.wrappers[name]
	return w, ok
}

// Create generates a data key and wraps it with the active wrapper.
func (m *Manager) Create(ctx context.Context) (KeyStore, *Key, error) {
	raw, err := GenerateKey()
	if err != nil {
		return KeyStore{}, nil, err
	}
	wrapped, err := m.active.Wrap(ctx, raw)
	if err != nil {
		return KeyStore{}, nil, fmt.Errorf("wrap merchant key: %w", err)
	}
	key, err := NewKey(raw)
	if err != nil {
		return KeyStore{}, nil, err
	}
	return KeyStore{Wrapper: m.active.Name(), WrappedKey: wrapped}, key, nil
}

// Open unwraps a key store.
func (m *Manager) Open(ctx context.Context, ks KeyStore) (*Key, error) {
	w, ok := m.wrappers[ks.Wrapper]
	if !ok {
		return nil, fmt.Errorf("keymanager: no wrapper %q configured", ks.Wrapper)
	}
	raw, err := w.Unwrap(ctx, ks.WrappedKey)
	if err != nil {
		return nil, fmt.Errorf("unwrap merchant key: %w", err)
	}
	return NewKey(raw)
}

// Rewrap moves a key store from its current wrapper to to.
func (m *Manager) Rewrap(ctx context.Context, ks KeyStore, to Wrapper) (KeyStore, error) {
	from, ok := m.wrappers[ks.Wrapper]
	if !ok {
		return KeyStore{}, fmt.Errorf("keymanager: no wrapper %q configured", ks.Wrapper)
	}
	raw, err := from.Unwrap(ctx, ks.WrappedKey)
	if err != nil {
		return KeyStore{}, fmt.Errorf("unwrap merchant key: %w", err)
	}
	wrapped, err := to.Wrap(ctx, raw)
	if err != nil {
		return KeyStore{}, fmt.Errorf("wrap merchant key: %w", err)
	}
	return KeyStore{Wrapper: to.Name(), WrappedKey: wrapped}, nil
}
