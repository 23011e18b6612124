// Package vault wraps the HashiCorp Vault client used by the locker (KV v2)
// and the key manager (Transit).
package vault

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	vaultapi "github.com/hashicorp/vault/api"
)

const (
	AuthTypeToken   = "token"
	AuthTypeAppRole = "approle"
)

type Options struct {
	Address          string
	Namespace        string
	AuthType         string
	Token            string
	AppRoleMountPath string
	AppRoleRoleID    string
	AppRoleSecretID  string
	TLSSkipVerify    bool
	TLSCACertPEM     string
}

type Client struct {
	client      *vaultapi.Client
	namespace   string
	addressHost string
}

func New(opts Options) (*Client, error) {
	address := strings.TrimSpace(opts.Address)
	if address == "" {
		return nil, errors.New("vault address is required")
	}
	authType := strings.ToLower(strings.TrimSpace(opts.AuthType))
	if authType == "" {
		authType = AuthTypeToken
	}

	cfg := vaultapi.DefaultConfig()
	cfg.Address = address
	cfg.HttpClient = &http.Client{
		Timeout:   30 * time.Second,
		Transport: buildHTTPTransport(opts.TLSSkipVerify, strings.TrimSpace(opts.TLSCACertPEM)),
	}
	// Retries are owned by callers; Vault's own 5xx retry would double them.
	cfg.MaxRetries = 0
	addressHost := ""
	if parsed, err := neturl.Parse(address); err == nil {
		addressHost = strings.ToLower(strings.TrimSpace(parsed.Hostname()))
	}

	client, err := vaultapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault client setup: %w", err)
	}
	namespace := strings.TrimSpace(opts.Namespace)
	if namespace != "" {
		client.SetNamespace(namespace)
	}

	switch authType {
	case AuthTypeToken:
		token := strings.TrimSpace(opts.Token)
		if token == "" {
			return nil, errors.New("vault token is required")
		}
		client.SetToken(token)
	case AuthTypeAppRole:
		roleID := strings.TrimSpace(opts.AppRoleRoleID)
		secretID := strings.TrimSpace(opts.AppRoleSecretID)
		mountPath := normalizeMountPath(opts.AppRoleMountPath)
		if mountPath == "" {
			mountPath = "approle"
		}
		if roleID == "" {
			return nil, errors.New("vault AppRole role ID is required")
		}
		if secretID == "" {
			return nil, errors.New("vault AppRole secret ID is required")
		}
		loginPath := "auth/" + mountPath + "/login"
		secret, err := client.Logical().Write(loginPath, map[string]any{
			"role_id":   roleID,
			"secret_id": secretID,
		})
		if err != nil {
			return nil, fmt.Errorf("vault approle login at %s: %w", loginPath, err)
		}
		if secret == nil || secret.Auth == nil || strings.TrimSpace(secret.Auth.ClientToken) == "" {
			return nil, errors.New("vault approle login succeeded without client token")
		}
		client.SetToken(secret.Auth.ClientToken)
	default:
		return nil, errors.New("vault auth type is invalid")
	}

	return &Client{
		client:      client,
		namespace:   namespace,
		addressHost: addressHost,
	}, nil
}

// PutKV writes data to a KV v2 mount.
func (c *Client) PutKV(ctx context.Context, mount, path string, data map[string]any) error {
	mount = normalizeMountPath(mount)
	if mount == "" {
		return errors.New("vault kv mount is required")
	}
	if _, err := c.client.KVv2(mount).Put(ctx, strings.Trim(path, "/"), data); err != nil {
		return fmt.Errorf("vault kv put %s/%s: %w", mount, path, c.withNamespaceHint(err))
	}
	return nil
}

// GetKV reads the latest version of a KV v2 secret. A missing secret returns
// ErrSecretNotFound.
func (c *Client) GetKV(ctx context.Context, mount, path string) (map[string]any, error) {
	mount = normalizeMountPath(mount)
	secret, err := c.client.KVv2(mount).Get(ctx, strings.Trim(path, "/"))
	if err != nil {
		if errors.Is(err, vaultapi.ErrSecretNotFound) {
			return nil, ErrSecretNotFound
		}
		return nil, fmt.Errorf("vault kv get %s/%s: %w", mount, path, c.withNamespaceHint(err))
	}
	if secret == nil || secret.Data == nil {
		return nil, ErrSecretNotFound
	}
	return secret.Data, nil
}

var ErrSecretNotFound = errors.New("vault secret not found")

// TransitEncrypt encrypts plaintext with a Transit key and returns the
// vault:v1:... ciphertext.
func (c *Client) TransitEncrypt(ctx context.Context, mount, key string, plaintext []byte) (string, error) {
	path := fmt.Sprintf("%s/encrypt/%s", normalizeMountPath(mount), neturl.PathEscape(strings.TrimSpace(key)))
	secret, err := c.client.Logical().WriteWithContext(ctx, path, map[string]any{
		"plaintext": base64.StdEncoding.EncodeToString(plaintext),
	})
	if err != nil {
		return "", fmt.Errorf("vault transit encrypt: %w", c.withNamespaceHint(err))
	}
	if secret == nil || secret.Data == nil {
		return "", errors.New("vault transit encrypt returned no data")
	}
	ciphertext, _ := secret.Data["ciphertext"].(string)
	if strings.TrimSpace(ciphertext) == "" {
		return "", errors.New("vault transit encrypt returned empty ciphertext")
	}
	return ciphertext, nil
}

// TransitDecrypt reverses TransitEncrypt.
func (c *Client) TransitDecrypt(ctx context.Context, mount, key, ciphertext string) ([]byte, error) {
	path := fmt.Sprintf("%s/decrypt/%s", normalizeMountPath(mount), neturl.PathEscape(strings.TrimSpace(key)))
	secret, err := c.client.Logical().WriteWithContext(ctx, path, map[string]any{
		"ciphertext": ciphertext,
	})
	if err != nil {
		return nil, fmt.Errorf("vault transit decrypt: %w", c.withNamespaceHint(err))
	}
	if secret == nil || secret.Data == nil {
		return nil, errors.New("vault transit decrypt returned no data")
	}
	encoded, _ := secret.Data["plaintext"].(string)
	plaintext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("vault transit decrypt: decode plaintext: %w", err)
	}
	return plaintext, nil
}

func normalizeMountPath(path string) string {
	return strings.Trim(strings.TrimSpace(path), "/")
}

func (c *Client) withNamespaceHint(err error) error {
	if err == nil {
		return nil
	}
	if strings.TrimSpace(c.namespace) != "" {
		return err
	}
	if !strings.HasSuffix(strings.ToLower(strings.TrimSpace(c.addressHost)), ".hashicorp.cloud") {
		return err
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "permission denied") && !strings.Contains(msg, "403") {
		return err
	}
	return fmt.Errorf("%w (tip: set namespace to \"admin\" for HCP Vault Dedicated)", err)
}

func buildHTTPTransport(skipVerify bool, caCertPEM string) http.RoundTripper {
	base, _ := http.DefaultTransport.(*http.Transport)
	if base == nil {
		return http.DefaultTransport
	}
	transport := base.Clone()
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	} else {
		transport.TLSClientConfig = transport.TLSClientConfig.Clone()
	}
	transport.TLSClientConfig.MinVersion = tls.VersionTLS12
	transport.TLSClientConfig.InsecureSkipVerify = skipVerify
	if strings.TrimSpace(caCertPEM) != "" {
		pool := x509.NewCertPool()
		if pool.AppendCertsFromPEM([]byte(caCertPEM)) {
			transport.TLSClientConfig.RootCAs = pool
		}
	}
	return transport
}
