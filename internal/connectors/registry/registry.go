// Package registry maps every connector to the rule that validates its
// credentials and metadata.
package registry

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/connectors"
	"github.com/merchantops/merchantops/internal/connectors/credentials"
	"github.com/merchantops/merchantops/internal/connectors/metadata"
)

// Rule describes what a connector accepts.
type Rule struct {
	// AuthTypes lists the accepted credential variants.
	AuthTypes []credentials.AuthType
	// Metadata validates the metadata blob; nil means metadata is not inspected.
	Metadata metadata.Validator
}

func (r Rule) accepts(t credentials.AuthType) bool {
	return slices.Contains(r.AuthTypes, t)
}

// ConnectorRegistry is the central registry of connector validation rules.
type ConnectorRegistry struct {
	rules map[connectors.Connector]Rule
	order []connectors.Connector
}

// NewRegistry creates an empty registry.
func NewRegistry() *ConnectorRegistry {
	return &ConnectorRegistry{
		rules: make(map[connectors.Connector]Rule),
		order: make([]connectors.Connector, 0),
	}
}

// Register adds the rule for a connector.
func (r *ConnectorRegistry) Register(c connectors.Connector, rule Rule) error {
	if !c.Valid() {
		return fmt.Errorf("connector %q is not a known connector", c)
	}
	if len(rule.AuthTypes) == 0 {
		return fmt.Errorf("connector %q rule accepts no auth types", c)
	}
	if _, exists := r.rules[c]; exists {
		return fmt.Errorf("connector %q already registered", c)
	}
	r.rules[c] = rule
	r.order = append(r.order, c)
	return nil
}

// Get retrieves the rule of a connector.
func (r *ConnectorRegistry) Get(c connectors.Connector) (Rule, bool) {
	rule, ok := r.rules[c]
	return rule, ok
}

// All returns every registered connector in registration order.
func (r *ConnectorRegistry) All() []connectors.Connector {
	out := make([]connectors.Connector, len(r.order))
	copy(out, r.order)
	return out
}

// Missing returns the connectors that have no rule.
func (r *ConnectorRegistry) Missing() []connectors.Connector {
	var out []connectors.Connector
	for _, c := range connectors.All() {
		if _, ok := r.rules[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// Validate checks credentials and metadata for a connector. The generic
// credential shape is checked first, then the connector rule.
func (r *ConnectorRegistry) Validate(c connectors.Connector, auth credentials.AuthPayload, meta json.RawMessage) error {
	if err := auth.Validate(); err != nil {
		return err
	}
	rule, ok := r.rules[c]
	if !ok {
		return apperr.InvalidConnectorName("The connector name is invalid")
	}
	if !rule.accepts(auth.Type) {
		return apperr.InvalidConnectorConfig("connector_account_details", "The auth type is invalid for the connector")
	}
	if rule.Metadata != nil {
		if err := rule.Metadata(meta); err != nil {
			invalid := apperr.InvalidConnectorConfig("metadata", "The metadata is invalid")
			invalid.Err = err
			return invalid
		}
	}
	return nil
}

// Default builds the registry from the built-in rule table and fails when a
// connector is left without a rule.
func Default() (*ConnectorRegistry, error) {
	reg := NewRegistry()
	for _, entry := range ruleTable() {
		for _, c := range entry.connectors {
			if err := reg.Register(c, entry.rule); err != nil {
				return nil, err
			}
		}
	}
	if missing := reg.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("connectors without validation rule: %v", missing)
	}
	return reg, nil
}
