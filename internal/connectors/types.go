package connectors

import (
	"fmt"
	"strings"
)

// ConnectorType is the role a connector account plays for the merchant.
type ConnectorType string

const (
	PaymentProcessor        ConnectorType = "payment_processor"
	PaymentVas              ConnectorType = "payment_vas"
	FinOperations           ConnectorType = "fin_operations"
	FizOperations           ConnectorType = "fiz_operations"
	Networks                ConnectorType = "networks"
	BankingEntities         ConnectorType = "banking_entities"
	NonBankingFinance       ConnectorType = "non_banking_finance"
	PayoutProcessor         ConnectorType = "payout_processor"
	PaymentMethodAuth       ConnectorType = "payment_method_auth"
	AuthenticationProcessor ConnectorType = "authentication_processor"
	FraudRiskManagement     ConnectorType = "fraud_risk_management"
)

func ParseConnectorType(raw string) (ConnectorType, error) {
	t := ConnectorType(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case PaymentProcessor, PaymentVas, FinOperations, FizOperations, Networks,
		BankingEntities, NonBankingFinance, PayoutProcessor, PaymentMethodAuth,
		AuthenticationProcessor, FraudRiskManagement:
		return t, nil
	default:
		return "", fmt.Errorf("unknown connector type %q", raw)
	}
}

func (t *ConnectorType) UnmarshalText(text []byte) error {
	parsed, err := ParseConnectorType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TransactionType selects which default routing list a connector joins.
type TransactionType string

const (
	TransactionPayment TransactionType = "payment"
	TransactionPayout  TransactionType = "payout"
)

func ParseTransactionType(raw string) (TransactionType, error) {
	switch TransactionType(strings.ToLower(strings.TrimSpace(raw))) {
	case "", TransactionPayment:
		return TransactionPayment, nil
	case TransactionPayout:
		return TransactionPayout, nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", raw)
	}
}

// TransactionType returns the routing list a connector of this type belongs to.
func (t ConnectorType) TransactionType() TransactionType {
	if t == PayoutProcessor {
		return TransactionPayout
	}
	return TransactionPayment
}

// ConnectorStatus is the lifecycle status of a connector account.
type ConnectorStatus string

const (
	StatusActive   ConnectorStatus = "active"
	StatusInactive ConnectorStatus = "inactive"
)

func ParseConnectorStatus(raw string) (ConnectorStatus, error) {
	s := ConnectorStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case StatusActive, StatusInactive:
		return s, nil
	default:
		return "", fmt.Errorf("unknown connector status %q", raw)
	}
}

func (s *ConnectorStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseConnectorStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
