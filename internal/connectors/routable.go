package connectors

import (
	"github.com/merchantops/merchantops/internal/apperr"
)

// RoutableConnector is a connector that may appear in a routing list.
type RoutableConnector Connector

func (r RoutableConnector) String() string {
	return string(r)
}

// Capability tables. The two sets are disjoint from each other and from the
// routable set below. Fraud check connectors such as Signifyd are routable.
var (
	paymentMethodAuthConnectors = map[Connector]struct{}{
		Plaid: {},
	}
	authenticationConnectors = map[Connector]struct{}{
		Threedsecureio: {},
		Netcetera:      {},
		Gpayments:      {},
	}
)

var routableConnectors = func() map[Connector]struct{} {
	out := make(map[Connector]struct{}, len(allConnectors))
	for _, c := range allConnectors {
		if IsPaymentMethodAuth(c) || IsAuthentication(c) {
			continue
		}
		out[c] = struct{}{}
	}
	return out
}()

func IsPaymentMethodAuth(c Connector) bool {
	_, ok := paymentMethodAuthConnectors[c]
	return ok
}

func IsAuthentication(c Connector) bool {
	_, ok := authenticationConnectors[c]
	return ok
}

// ParseRoutable returns the routable identity of c, if it has one.
func ParseRoutable(c Connector) (RoutableConnector, bool) {
	if _, ok := routableConnectors[c]; !ok {
		return "", false
	}
	return RoutableConnector(c), true
}

// Classify checks that the connector may be configured with the given type
// and returns its routable identity. A nil identity with a nil error means
// the connector is valid but never joins a routing list. Only payment method
// auth and authentication connectors have their type checked.
func Classify(connectorType ConnectorType, c Connector) (*RoutableConnector, error) {
	routable, ok := ParseRoutable(c)
	var identity *RoutableConnector
	if ok {
		identity = &routable
	}

	switch {
	case IsPaymentMethodAuth(c):
		if connectorType != PaymentMethodAuth && connectorType != PaymentProcessor {
			return nil, apperr.InvalidRequest("Invalid connector type given")
		}
		return identity, nil
	case IsAuthentication(c):
		if connectorType != AuthenticationProcessor {
			return nil, apperr.InvalidRequest("Invalid connector type given")
		}
		return identity, nil
	default:
		if !ok {
			return nil, apperr.InvalidRequest("Invalid connector name given")
		}
		return identity, nil
	}
}
