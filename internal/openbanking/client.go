package openbanking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/merchantops/merchantops/internal/connectors"
	"github.com/merchantops/merchantops/internal/connectors/credentials"
)

const (
	defaultTimeout   = 30 * time.Second
	maxErrorBodySize = 1 << 20 // 1 MiB
	noErrorCode      = "No error code"
	noErrorMessage   = "No error message"
)

// RecipientRequest is the uniform create-recipient envelope.
type RecipientRequest struct {
	Name        string
	AccountData AccountData
}

// ConnectorError is a structured error reported by the connector.
type ConnectorError struct {
	StatusCode int
	Code       string
	Message    string
	Reason     string
}

func (e *ConnectorError) Error() string {
	return fmt.Sprintf("connector error %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Client calls the payment initiation gateway that fronts the open banking
// connectors.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient validates that baseURL is provided.
func NewClient(baseURL string) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, errors.New("payment initiation base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("payment initiation base URL: %w", err)
	}
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: defaultTimeout},
	}, nil
}

type recipientAccountWire struct {
	Iban *string `json:"iban,omitempty"`
	Bacs *struct {
		AccountNumber string `json:"account_number"`
		SortCode      string `json:"sort_code"`
	} `json:"bacs,omitempty"`
}

type recipientCreateWire struct {
	Name          string                  `json:"name"`
	AccountData   recipientAccountWire    `json:"account_data"`
	ConnectorAuth credentials.AuthPayload `json:"connector_auth"`
	MerchantID    string                  `json:"merchant_id"`
}

// CreateRecipient registers the account as a payment recipient with the
// connector and returns the connector-assigned id. Responses other than 2xx
// are returned as *ConnectorError.
func (c *Client) CreateRecipient(ctx context.Context, merchantID string, connector connectors.Connector, auth credentials.AuthPayload, req RecipientRequest) (string, error) {
	if c.BaseURL == "" || c.HTTP == nil {
		return "", errors.New("payment initiation client is not configured")
	}

	wire := recipientCreateWire{Name: req.Name, ConnectorAuth: auth, MerchantID: merchantID}
	switch {
	case req.AccountData.Iban != nil:
		iban := req.AccountData.Iban.Iban
		wire.AccountData.Iban = &iban
	case req.AccountData.Bacs != nil:
		wire.AccountData.Bacs = &struct {
			AccountNumber string `json:"account_number"`
			SortCode      string `json:"sort_code"`
		}{req.AccountData.Bacs.AccountNumber, req.AccountData.Bacs.SortCode}
	default:
		return "", errors.New("recipient account data is empty")
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return "", err
	}

	endpoint := c.BaseURL + "/recipients/" + url.PathEscape(connector.String())
	body, err := c.post(ctx, endpoint, payload)
	if err != nil {
		return "", err
	}
	var resp struct {
		RecipientID string `json:"recipient_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode recipient response: %w", err)
	}
	if strings.TrimSpace(resp.RecipientID) == "" {
		return "", errors.New("recipient response without recipient_id")
	}
	return resp.RecipientID, nil
}

// post issues exactly one request. Creating a recipient is not idempotent at
// the connector, so rate limits are reported to the caller like any other
// failure.
func (c *Client) post(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "merchantops")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, connectorError(resp.StatusCode, body)
	}
	return body, nil
}

func connectorError(status int, body []byte) *ConnectorError {
	out := &ConnectorError{StatusCode: status, Code: noErrorCode, Message: noErrorMessage}
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		if msg := strings.Join(strings.Fields(string(body)), " "); msg != "" && !strings.HasPrefix(msg, "<") {
			const maxLen = 300
			out.Message = truncateRunes(msg, maxLen)
		}
		return out
	}
	if v := strings.TrimSpace(payload.Code); v != "" {
		out.Code = v
	}
	if v := strings.TrimSpace(payload.Message); v != "" {
		out.Message = v
	}
	out.Reason = strings.TrimSpace(payload.Reason)
	return out
}

// truncateRunes cuts s to at most n bytes without splitting a character.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
