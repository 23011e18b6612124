package connectors

import (
	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/connectors/credentials"
)

// StatusInput carries the requested and current state of a connector account.
type StatusInput struct {
	Requested *ConnectorStatus
	Disabled  *bool
	AuthType  credentials.AuthType
	Current   ConnectorStatus
}

// ResolveStatus derives the effective status and disabled flag. A nil
// disabled result means the stored value is kept.
func ResolveStatus(in StatusInput) (ConnectorStatus, *bool, error) {
	temporary := in.AuthType == credentials.TemporaryAuth

	var status ConnectorStatus
	switch {
	case in.Requested != nil && *in.Requested == StatusActive && temporary:
		return "", nil, apperr.InvalidRequest("Connector status cannot be active when using TemporaryAuth")
	case in.Requested != nil:
		status = *in.Requested
	case temporary:
		status = StatusInactive
	default:
		status = in.Current
	}

	switch {
	case in.Disabled != nil && !*in.Disabled && status == StatusInactive:
		return "", nil, apperr.InvalidRequest("Connector cannot be enabled when connector_status is inactive or when using TemporaryAuth")
	case in.Disabled != nil:
		disabled := *in.Disabled
		return status, &disabled, nil
	case status == StatusInactive:
		disabled := true
		return status, &disabled, nil
	default:
		return status, nil, nil
	}
}
