// Package routing maintains default routing lists and the routing algorithm
// pointers of business profiles.
package routing

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/connectors"
	"github.com/merchantops/merchantops/internal/store"
)

type ChoiceKind string

const (
	KindOnlyConnector ChoiceKind = "only_connector"
	KindFullStruct    ChoiceKind = "full_struct"
)

// Choice is one entry of a routing list.
type Choice struct {
	Kind                ChoiceKind                   `json:"choice_kind"`
	Connector           connectors.RoutableConnector `json:"connector"`
	MerchantConnectorID *string                      `json:"merchant_connector_id,omitempty"`
}

// FullStruct pins a connector to a specific account.
func FullStruct(c connectors.RoutableConnector, merchantConnectorID string) Choice {
	return Choice{Kind: KindFullStruct, Connector: c, MerchantConnectorID: &merchantConnectorID}
}

// Equal compares every field, including the kind.
func (c Choice) Equal(o Choice) bool {
	if c.Kind != o.Kind || c.Connector != o.Connector {
		return false
	}
	if c.MerchantConnectorID == nil || o.MerchantConnectorID == nil {
		return c.MerchantConnectorID == nil && o.MerchantConnectorID == nil
	}
	return *c.MerchantConnectorID == *o.MerchantConnectorID
}

func (c Choice) String() string {
	if c.MerchantConnectorID == nil {
		return fmt.Sprintf("%s:%s", c.Kind, c.Connector)
	}
	return fmt.Sprintf("%s:%s:%s", c.Kind, c.Connector, *c.MerchantConnectorID)
}

func Contains(list []Choice, c Choice) bool {
	return slices.ContainsFunc(list, c.Equal)
}

// DecodeList parses a stored routing list. Absent values decode to an empty list.
func DecodeList(raw json.RawMessage) ([]Choice, error) {
	if !store.Present(raw) {
		return []Choice{}, nil
	}
	var list []Choice
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []Choice{}
	}
	return list, nil
}

// ValidateList rejects choices naming connectors that cannot be routed.
func ValidateList(list []Choice) error {
	for _, c := range list {
		if _, ok := connectors.ParseRoutable(connectors.Connector(c.Connector)); !ok {
			return apperr.InvalidDataValue("connector")
		}
		switch c.Kind {
		case KindFullStruct:
			if c.MerchantConnectorID == nil || strings.TrimSpace(*c.MerchantConnectorID) == "" {
				return apperr.MissingField("merchant_connector_id")
			}
		case KindOnlyConnector:
		default:
			return apperr.InvalidDataValue("choice_kind")
		}
	}
	return nil
}

// IsPermutation reports whether updated holds exactly the entries of current.
func IsPermutation(current, updated []Choice) error {
	if len(current) != len(updated) {
		return apperr.InvalidRequest("current config and updated config have different lengths")
	}
	remaining := slices.Clone(current)
	for _, c := range updated {
		idx := slices.IndexFunc(remaining, c.Equal)
		if idx < 0 {
			return apperr.InvalidRequest("a connector present in the updated config is missing from the current config")
		}
		remaining = slices.Delete(remaining, idx, idx+1)
	}
	return nil
}
