package httpapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"

	"github.com/merchantops/merchantops/internal/admin"
	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/connectors/registry"
	"github.com/merchantops/merchantops/internal/http/handlers"
	"github.com/merchantops/merchantops/internal/keymanager"
	"github.com/merchantops/merchantops/internal/store/memstore"
)

const testMasterKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, ...string) error { return nil }

func newTestServer(t *testing.T) *EchoServer {
	t.Helper()

	local, err := keymanager.NewLocalWrapper(testMasterKey)
	if err != nil {
		t.Fatalf("NewLocalWrapper() error = %v", err)
	}
	keys, err := keymanager.NewManager(local)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("registry.Default() error = %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := admin.New(admin.Options{
		Store:              memstore.New(),
		Keys:               keys,
		Registry:           reg,
		Publisher:          nopPublisher{},
		APIVersion:         admin.APIVersionV1,
		PostCommitAttempts: 1,
		Logger:             logger,
	})
	if err != nil {
		t.Fatalf("admin.New() error = %v", err)
	}
	es, err := NewEchoServer(svc, logger)
	if err != nil {
		t.Fatalf("NewEchoServer() error = %v", err)
	}
	return es
}

func doJSON(t *testing.T, es *EchoServer, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	es.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handlers.ErrorDetail {
	t.Helper()

	var body handlers.ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func TestHTTPErrorHandlerInternalErrorIsGeneric(t *testing.T) {
	e := echo.New()
	e.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	req := httptest.NewRequest(http.MethodGet, "http://example.com/test", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(handlers.ContextKeyRequestID, "req-123")

	es := &EchoServer{h: &handlers.Handlers{}, e: e}
	es.httpErrorHandler(c, errors.New("very sensitive error"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want %d", rec.Code, http.StatusInternalServerError)
	}

	body := rec.Body.String()
	if strings.Contains(body, "very sensitive") {
		t.Fatalf("response leaked error details: %q", body)
	}
	if !strings.Contains(body, "Internal server error") {
		t.Fatalf("response missing generic message: %q", body)
	}
	if !strings.Contains(body, "Reference: req-123") {
		t.Fatalf("response missing request reference: %q", body)
	}
	if !strings.Contains(body, "Code: "+handlers.InternalErrorCode) {
		t.Fatalf("response missing error code: %q", body)
	}
}

func TestHTTPErrorHandlerInternalAppErrorIsGeneric(t *testing.T) {
	e := echo.New()
	e.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	req := httptest.NewRequest(http.MethodGet, "http://example.com/test", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	es := &EchoServer{h: &handlers.Handlers{}, e: e}
	es.httpErrorHandler(c, apperr.Internal("failed to decrypt merchant secret", errors.New("cipher: message authentication failed")))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want %d", rec.Code, http.StatusInternalServerError)
	}
	body := rec.Body.String()
	if strings.Contains(body, "decrypt") || strings.Contains(body, "cipher") {
		t.Fatalf("response leaked error details: %q", body)
	}
	if got := decodeError(t, rec).Code; got != handlers.InternalErrorCode {
		t.Fatalf("code=%q want %q", got, handlers.InternalErrorCode)
	}
}

func TestHTTPErrorHandlerRendersAppErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantType   string
	}{
		{
			name:       "not found",
			err:        apperr.NotFound(apperr.CodeMerchantNotFound, "Merchant account does not exist in our records"),
			wantStatus: http.StatusNotFound,
			wantCode:   apperr.CodeMerchantNotFound,
			wantType:   string(apperr.KindNotFound),
		},
		{
			name:       "duplicate",
			err:        apperr.Duplicate(apperr.CodeDuplicateMerchant, "The merchant account with the specified details already exists in our records"),
			wantStatus: http.StatusConflict,
			wantCode:   apperr.CodeDuplicateMerchant,
			wantType:   string(apperr.KindDuplicate),
		},
		{
			name:       "missing field",
			err:        apperr.MissingField("merchant_id"),
			wantStatus: http.StatusBadRequest,
			wantCode:   apperr.CodeMissingField,
			wantType:   string(apperr.KindMissingField),
		},
		{
			name:       "forbidden",
			err:        apperr.Forbidden("business_profile"),
			wantStatus: http.StatusForbidden,
			wantCode:   apperr.CodeForbidden,
			wantType:   string(apperr.KindForbidden),
		},
		{
			name:       "wrapped",
			err:        errors.Join(apperr.InvalidDataValue("connector_type")),
			wantStatus: http.StatusBadRequest,
			wantCode:   apperr.CodeInvalidDataValue,
			wantType:   string(apperr.KindInvalidRequest),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := echo.New()
			e.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
			req := httptest.NewRequest(http.MethodGet, "http://example.com/x", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			es := &EchoServer{h: &handlers.Handlers{}, e: e}
			es.httpErrorHandler(c, tt.err)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status=%d want %d", rec.Code, tt.wantStatus)
			}
			got := decodeError(t, rec)
			if got.Code != tt.wantCode || got.Type != tt.wantType {
				t.Fatalf("error=%+v want code %q type %q", got, tt.wantCode, tt.wantType)
			}
			if got.Message == "" {
				t.Fatalf("error message is empty")
			}
		})
	}
}

func TestHTTPErrorHandlerNotFoundDoesNotLeakMessage(t *testing.T) {
	e := echo.New()
	e.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	req := httptest.NewRequest(http.MethodGet, "http://example.com/missing", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	es := &EchoServer{h: &handlers.Handlers{}, e: e}
	es.httpErrorHandler(c, echo.NewHTTPError(http.StatusNotFound, "leaky not found"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d want %d", rec.Code, http.StatusNotFound)
	}

	body := rec.Body.String()
	if strings.Contains(body, "leaky") {
		t.Fatalf("response leaked error details: %q", body)
	}
	if !strings.Contains(body, "404 page not found") {
		t.Fatalf("response missing not found message: %q", body)
	}
}

func TestHTTPStatusFromErrorUsesStatusCoder(t *testing.T) {
	if got := httpStatusFromError(echo.ErrNotFound); got != http.StatusNotFound {
		t.Fatalf("status=%d want %d", got, http.StatusNotFound)
	}
	if got := httpStatusFromError(echo.ErrForbidden); got != http.StatusForbidden {
		t.Fatalf("status=%d want %d", got, http.StatusForbidden)
	}
	if got := httpStatusFromError(apperr.MissingField("x")); got != http.StatusBadRequest {
		t.Fatalf("status=%d want %d", got, http.StatusBadRequest)
	}
	if got := httpStatusFromError(errors.New("boom")); got != http.StatusInternalServerError {
		t.Fatalf("status=%d want %d", got, http.StatusInternalServerError)
	}
}

func TestHTTPErrorHandlerBadRequestUsesStatusText(t *testing.T) {
	e := echo.New()
	e.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	req := httptest.NewRequest(http.MethodGet, "http://example.com/bad", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	es := &EchoServer{h: &handlers.Handlers{}, e: e}
	es.httpErrorHandler(c, echo.NewHTTPError(http.StatusBadRequest, "leaky bad request"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want %d", rec.Code, http.StatusBadRequest)
	}

	body := rec.Body.String()
	if strings.Contains(body, "leaky") {
		t.Fatalf("response leaked error details: %q", body)
	}
	if got := strings.TrimSpace(body); got != http.StatusText(http.StatusBadRequest) {
		t.Fatalf("body=%q want %q", got, http.StatusText(http.StatusBadRequest))
	}
}

func TestNewEchoServerRequiresService(t *testing.T) {
	if _, err := NewEchoServer(nil, nil); err == nil {
		t.Fatalf("NewEchoServer(nil) error = nil, want error")
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	t.Parallel()

	es := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-abc")
	rec := httptest.NewRecorder()
	es.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(echo.HeaderXRequestID); got != "req-abc" {
		t.Fatalf("X-Request-ID=%q want %q", got, "req-abc")
	}

	rec = doJSON(t, es, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get(echo.HeaderXRequestID); got == "" {
		t.Fatalf("X-Request-ID missing on generated request")
	}
}

func TestMerchantLifecycleOverHTTP(t *testing.T) {
	t.Parallel()

	es := newTestServer(t)

	rec := doJSON(t, es, http.MethodPost, "/accounts", `{"merchant_id":"merchant_http","merchant_name":"Acme"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status=%d body=%s", rec.Code, rec.Body.String())
	}
	var created admin.MerchantAccountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode merchant: %v", err)
	}
	if created.MerchantID != "merchant_http" || created.PublishableKey == "" {
		t.Fatalf("created=%+v", created)
	}
	if created.DefaultProfile == nil {
		t.Fatalf("default_profile not set on a merchant without business details")
	}

	rec = doJSON(t, es, http.MethodGet, "/accounts/merchant_http", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("retrieve status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, es, http.MethodPost, "/accounts/merchant_http/kv", `{"kv_enabled":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("kv status=%d body=%s", rec.Code, rec.Body.String())
	}
	var kv admin.KVResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &kv); err != nil {
		t.Fatalf("decode kv: %v", err)
	}
	if !kv.KVEnabled {
		t.Fatalf("kv_enabled=false after enabling")
	}

	rec = doJSON(t, es, http.MethodPost, "/accounts/merchant_http/kv", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("kv without flag status=%d want %d", rec.Code, http.StatusBadRequest)
	}

	rec = doJSON(t, es, http.MethodDelete, "/accounts/merchant_http", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status=%d body=%s", rec.Code, rec.Body.String())
	}
	var deleted admin.MerchantAccountDeleteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &deleted); err != nil {
		t.Fatalf("decode delete: %v", err)
	}
	if !deleted.Deleted {
		t.Fatalf("deleted=false")
	}

	rec = doJSON(t, es, http.MethodGet, "/accounts/merchant_http", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("retrieve after delete status=%d want %d", rec.Code, http.StatusNotFound)
	}
	if got := decodeError(t, rec).Code; got != apperr.CodeMerchantNotFound {
		t.Fatalf("code=%q want %q", got, apperr.CodeMerchantNotFound)
	}
}

func TestConnectorCreateRegistersDefaultRoutingOverHTTP(t *testing.T) {
	t.Parallel()

	es := newTestServer(t)

	rec := doJSON(t, es, http.MethodPost, "/accounts", `{"merchant_id":"merchant_route"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create merchant status=%d body=%s", rec.Code, rec.Body.String())
	}

	body := `{"connector_type":"payment_processor","connector_name":"stripe","connector_account_details":{"auth_type":"HeaderKey","api_key":"sk_test_4242424242"}}`
	rec = doJSON(t, es, http.MethodPost, "/account/merchant_route/connectors", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("create connector status=%d body=%s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "sk_test_4242424242") {
		t.Fatalf("connector response leaked the api key: %s", rec.Body.String())
	}
	var mca admin.ConnectorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &mca); err != nil {
		t.Fatalf("decode connector: %v", err)
	}

	rec = doJSON(t, es, http.MethodGet, "/routing/default?merchant_id=merchant_route&transaction_type=payment", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("default routing status=%d body=%s", rec.Code, rec.Body.String())
	}
	var choices []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &choices); err != nil {
		t.Fatalf("decode routing: %v", err)
	}
	if len(choices) != 1 || choices[0]["merchant_connector_id"] != mca.MerchantConnectorID {
		t.Fatalf("default routing=%v want one entry for %s", choices, mca.MerchantConnectorID)
	}

	rec = doJSON(t, es, http.MethodGet, "/account/merchant_route/connectors/"+mca.MerchantConnectorID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("retrieve connector status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, es, http.MethodGet, "/account/merchant_route/connectors", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list connectors status=%d body=%s", rec.Code, rec.Body.String())
	}
	var listed []admin.ConnectorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("listed %d connectors, want 1", len(listed))
	}
}

func TestConnectorCreateRejectsUnknownConnectorOverHTTP(t *testing.T) {
	t.Parallel()

	es := newTestServer(t)
	rec := doJSON(t, es, http.MethodPost, "/accounts", `{"merchant_id":"merchant_bad"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create merchant status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, es, http.MethodPost, "/account/merchant_bad/connectors", `{"connector_type":"payment_processor","connector_name":"nosuchpay"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want %d body=%s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
	if got := decodeError(t, rec).Code; got != apperr.CodeInvalidConnectorName {
		t.Fatalf("code=%q want %q", got, apperr.CodeInvalidConnectorName)
	}
}

func TestProfileRoutesOverHTTP(t *testing.T) {
	t.Parallel()

	es := newTestServer(t)
	rec := doJSON(t, es, http.MethodPost, "/accounts", `{"merchant_id":"merchant_profiles"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create merchant status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, es, http.MethodPost, "/account/merchant_profiles/business_profile", `{"profile_name":"checkout"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create profile status=%d body=%s", rec.Code, rec.Body.String())
	}
	var profile admin.BusinessProfileResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}

	rec = doJSON(t, es, http.MethodPost, "/account/merchant_profiles/business_profile", `{"profile_name":"checkout"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate profile status=%d want %d", rec.Code, http.StatusConflict)
	}

	base := "/account/merchant_profiles/business_profile/" + profile.ProfileID
	rec = doJSON(t, es, http.MethodPost, base+"/toggle_extended_card_info", `{"enabled":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, es, http.MethodGet, base+"/routing_algorithm", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("routing algorithm status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, es, http.MethodPatch, base+"/activate_routing_algorithm", `{"algorithm_id":"routing_abc"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("activate status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, es, http.MethodGet, base+"/routing_algorithm", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"algorithm_id":"routing_abc"`) {
		t.Fatalf("routing algorithm after activation status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, es, http.MethodGet, base+"/fallback_routing?transaction_type=refund", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad transaction type status=%d want %d", rec.Code, http.StatusBadRequest)
	}

	rec = doJSON(t, es, http.MethodGet, base+"/fallback_routing", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("fallback status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, es, http.MethodDelete, base, "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "true" {
		t.Fatalf("delete status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, es, http.MethodGet, base, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("retrieve after delete status=%d want %d", rec.Code, http.StatusNotFound)
	}
}

func TestUnknownRouteIsPlainNotFound(t *testing.T) {
	t.Parallel()

	es := newTestServer(t)
	rec := doJSON(t, es, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d want %d", rec.Code, http.StatusNotFound)
	}
	if !strings.Contains(rec.Body.String(), "404 page not found") {
		t.Fatalf("body=%q", rec.Body.String())
	}
}

func TestMalformedBodyIsInvalidRequest(t *testing.T) {
	t.Parallel()

	es := newTestServer(t)
	rec := doJSON(t, es, http.MethodPost, "/accounts", `{"merchant_id":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want %d", rec.Code, http.StatusBadRequest)
	}
	if got := decodeError(t, rec).Code; got != apperr.CodeInvalidRequest {
		t.Fatalf("code=%q want %q", got, apperr.CodeInvalidRequest)
	}
}
