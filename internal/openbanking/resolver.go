package openbanking

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/connectors"
	"github.com/merchantops/merchantops/internal/connectors/credentials"
	"github.com/merchantops/merchantops/internal/locker"
	"github.com/merchantops/merchantops/internal/metrics"
)

// RecipientCreator registers a recipient with the connector.
type RecipientCreator interface {
	CreateRecipient(ctx context.Context, merchantID string, connector connectors.Connector, auth credentials.AuthPayload, req RecipientRequest) (string, error)
}

// Locker stores an opaque payload for a customer and returns its reference.
type Locker interface {
	Store(ctx context.Context, payload []byte, customerID string, choice locker.VaultChoice, ttl time.Duration) (string, error)
}

// Resolver turns open banking account data into registered recipient data.
type Resolver struct {
	creator     RecipientCreator
	locker      Locker
	lockerBased map[connectors.Connector]struct{}
	lockerTTL   time.Duration
	logger      *slog.Logger
}

type ResolverOptions struct {
	Creator RecipientCreator
	Locker  Locker
	// LockerBased lists connectors that cannot create recipients; their
	// account data is kept in the locker instead.
	LockerBased []connectors.Connector
	LockerTTL   time.Duration
	Logger      *slog.Logger
}

func NewResolver(opts ResolverOptions) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lockerBased := make(map[connectors.Connector]struct{}, len(opts.LockerBased))
	for _, c := range opts.LockerBased {
		lockerBased[c] = struct{}{}
	}
	return &Resolver{
		creator:     opts.Creator,
		locker:      opts.Locker,
		lockerBased: lockerBased,
		lockerTTL:   opts.LockerTTL,
		logger:      logger,
	}
}

// Resolve validates the account data and registers the recipient. Data that
// already carries a wallet or recipient id is returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, merchantID string, auth credentials.AuthPayload, connectorType connectors.ConnectorType, connector connectors.Connector, data AdditionalMerchantData) (AdditionalMerchantData, error) {
	recipient := data.OpenBankingRecipientData
	if recipient == nil {
		return data, nil
	}
	if connectorType != connectors.PaymentProcessor {
		return AdditionalMerchantData{}, apperr.InvalidConnectorConfig("connector_type", "OpenBanking connector for Payment Initiation should be a payment processor")
	}
	if recipient.AccountData == nil {
		return data, nil
	}

	account := *recipient.AccountData
	if err := account.Validate(); err != nil {
		return AdditionalMerchantData{}, err
	}

	var (
		id     *RecipientID
		err    error
		method = "connector"
	)
	if _, ok := r.lockerBased[connector]; ok {
		method = "locker"
		id, err = r.storeInLocker(ctx, merchantID, account)
	} else {
		id, err = r.createWithConnector(ctx, merchantID, auth, connector, account)
	}
	if err != nil {
		metrics.OpenBankingRecipientsTotal.WithLabelValues(connector.String(), method, "error").Inc()
		return AdditionalMerchantData{}, err
	}
	metrics.OpenBankingRecipientsTotal.WithLabelValues(connector.String(), method, "success").Inc()
	r.logger.Info("open banking recipient registered", "merchant_id", merchantID, "connector", connector, "method", method)

	registered := account.WithRecipient(id)
	return AdditionalMerchantData{
		OpenBankingRecipientData: &RecipientData{AccountData: &registered},
	}, nil
}

func (r *Resolver) storeInLocker(ctx context.Context, merchantID string, account AccountData) (*RecipientID, error) {
	if r.locker == nil {
		return nil, apperr.Internal("locker is not configured", nil)
	}
	payload, err := json.Marshal(account)
	if err != nil {
		return nil, apperr.Internal("Failed to convert merchant account data to json", err)
	}
	// The merchant id doubles as the locker customer id.
	ref, err := r.locker.Store(ctx, payload, merchantID, locker.VaultInternal, r.lockerTTL)
	if err != nil {
		return nil, apperr.Internal("Failed to encrypt merchant bank account data", err)
	}
	return LockerRecipient(ref), nil
}

func (r *Resolver) createWithConnector(ctx context.Context, merchantID string, auth credentials.AuthPayload, connector connectors.Connector, account AccountData) (*RecipientID, error) {
	if r.creator == nil {
		return nil, apperr.Internal("payment initiation client is not configured", nil)
	}
	id, err := r.creator.CreateRecipient(ctx, merchantID, connector, auth, RecipientRequest{
		Name:        account.Name(),
		AccountData: account,
	})
	if err != nil {
		var connErr *ConnectorError
		if errors.As(err, &connErr) {
			return nil, apperr.ExternalConnector(connector.String(), connErr.Code, connErr.Message, connErr.StatusCode, connErr.Reason)
		}
		return nil, apperr.Internal("Failed while calling recipient create connector api", err)
	}
	return ConnectorRecipient(id), nil
}
