// Package apperr defines the error taxonomy surfaced by the admin API.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation and HTTP mapping.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindDuplicate         Kind = "duplicate_conflict"
	KindInvalidRequest    Kind = "invalid_request_data"
	KindMissingField      Kind = "missing_required_field"
	KindExternalConnector Kind = "external_connector_error"
	KindInternal          Kind = "internal_server_error"
	KindForbidden         Kind = "access_forbidden"
	KindPrecondition      Kind = "precondition_failed"
)

// Stable codes returned to clients.
const (
	CodeNotFound               = "not_found"
	CodeMerchantNotFound       = "merchant_account_not_found"
	CodeProfileNotFound        = "business_profile_not_found"
	CodeConnectorNotFound      = "merchant_connector_account_not_found"
	CodeOrganizationNotFound   = "organization_not_found"
	CodeDuplicateMerchant      = "duplicate_merchant_account"
	CodeDuplicateConnector     = "duplicate_merchant_connector_account"
	CodeDuplicateProfile       = "duplicate_business_profile"
	CodeInvalidRequest         = "invalid_request_data"
	CodeInvalidDataFormat      = "invalid_data_format"
	CodeInvalidDataValue       = "invalid_data_value"
	CodeInvalidConnectorName   = "invalid_connector_name"
	CodeInvalidConnectorConfig = "invalid_connector_configuration"
	CodeMissingField           = "missing_required_field"
	CodeExternalConnector      = "external_connector_error"
	CodeInternal               = "internal_server_error"
	CodeForbidden              = "access_forbidden"
	CodePrecondition           = "precondition_failed"
)

// Error is a classified application error. Message is safe to show to API callers
// except for KindInternal, whose message is only logged.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Field   string

	// Set for KindExternalConnector.
	Connector       string
	ConnectorCode   string
	ConnectorStatus int
	Reason          string

	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StatusCode maps the error kind onto an HTTP status.
func (e *Error) StatusCode() int {
	if e == nil {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindDuplicate:
		return http.StatusConflict
	case KindInvalidRequest, KindMissingField, KindPrecondition:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindExternalConnector:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// CodeOf returns the stable code of err, or CodeInternal.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Code != "" {
		return ae.Code
	}
	return CodeInternal
}

func NotFound(code, message string) *Error {
	if code == "" {
		code = CodeNotFound
	}
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Duplicate(code, message string) *Error {
	return &Error{Kind: KindDuplicate, Code: code, Message: message}
}

func InvalidRequest(message string) *Error {
	return &Error{Kind: KindInvalidRequest, Code: CodeInvalidRequest, Message: message}
}

// InvalidDataFormat reports a field whose shape does not match what is expected.
func InvalidDataFormat(field, expected string) *Error {
	return &Error{
		Kind:    KindInvalidRequest,
		Code:    CodeInvalidDataFormat,
		Field:   field,
		Message: fmt.Sprintf("%s contains invalid data. Expected format is %s", field, expected),
	}
}

// InvalidDataValue reports a field whose value was rejected.
func InvalidDataValue(field string) *Error {
	return &Error{
		Kind:    KindInvalidRequest,
		Code:    CodeInvalidDataValue,
		Field:   field,
		Message: fmt.Sprintf("Invalid value provided: %s", field),
	}
}

func InvalidConnectorName(message string) *Error {
	return &Error{Kind: KindInvalidRequest, Code: CodeInvalidConnectorName, Message: message}
}

func InvalidConnectorConfig(field, message string) *Error {
	return &Error{Kind: KindInvalidRequest, Code: CodeInvalidConnectorConfig, Field: field, Message: message}
}

func MissingField(field string) *Error {
	return &Error{
		Kind:    KindMissingField,
		Code:    CodeMissingField,
		Field:   field,
		Message: fmt.Sprintf("Missing required param: %s", field),
	}
}

// ExternalConnector carries a downstream connector failure verbatim.
func ExternalConnector(connector, code, message string, status int, reason string) *Error {
	return &Error{
		Kind:            KindExternalConnector,
		Code:            CodeExternalConnector,
		Message:         message,
		Connector:       connector,
		ConnectorCode:   code,
		ConnectorStatus: status,
		Reason:          reason,
	}
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: message, Err: err}
}

func Forbidden(resource string) *Error {
	return &Error{
		Kind:    KindForbidden,
		Code:    CodeForbidden,
		Field:   resource,
		Message: fmt.Sprintf("Access forbidden, invalid %s", resource),
	}
}

func Precondition(message string) *Error {
	return &Error{Kind: KindPrecondition, Code: CodePrecondition, Message: message}
}

// Internalize keeps classified errors as they are and wraps anything else as
// an internal error with the given context.
func Internalize(err error, message string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return Internal(message, err)
}
