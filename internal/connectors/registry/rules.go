package registry

import (
	"github.com/merchantops/merchantops/internal/connectors"
	"github.com/merchantops/merchantops/internal/connectors/credentials"
	"github.com/merchantops/merchantops/internal/connectors/metadata"
)

type ruleEntry struct {
	connectors []connectors.Connector
	rule       Rule
}

func accepts(types ...credentials.AuthType) []credentials.AuthType {
	return types
}

func ruleTable() []ruleEntry {
	header := accepts(credentials.HeaderKey)
	body := accepts(credentials.BodyKey)
	signature := accepts(credentials.SignatureKey)

	return []ruleEntry{
		{
			connectors: []connectors.Connector{
				connectors.Adyenplatform, connectors.Bitpay, connectors.Ebanx, connectors.Gocardless,
				connectors.Helcim, connectors.Multisafepay, connectors.Opennode, connectors.Shift4,
				connectors.Stax, connectors.Stripe, connectors.Zen, connectors.Signifyd,
				connectors.Threedsecureio,
				connectors.DummyConnector1, connectors.DummyConnector2, connectors.DummyConnector3,
				connectors.DummyConnector4, connectors.DummyConnector5, connectors.DummyConnector6,
				connectors.DummyConnector7,
			},
			rule: Rule{AuthTypes: header},
		},
		{
			connectors: []connectors.Connector{
				connectors.Aci, connectors.Airwallex, connectors.Authorizedotnet, connectors.Bambora,
				connectors.Billwerk, connectors.Bluesnap, connectors.Boku, connectors.Cryptopay,
				connectors.Datatrans, connectors.Globalpay, connectors.Globepay, connectors.Nexinets,
				connectors.Payme, connectors.Payu, connectors.Placetopay, connectors.Powertranz,
				connectors.Rapyd, connectors.Square, connectors.Wise, connectors.Zsl,
				connectors.Riskified, connectors.Plaid,
			},
			rule: Rule{AuthTypes: body},
		},
		{
			connectors: []connectors.Connector{
				connectors.Bamboraapac, connectors.Bankofamerica, connectors.Checkout, connectors.Cybersource,
				connectors.Dlocal, connectors.Iatapay, connectors.Noon, connectors.Nuvei, connectors.Payone,
				connectors.Prophetpay, connectors.Razorpay, connectors.Trustpay, connectors.Tsys,
				connectors.Wellsfargo, connectors.Worldline,
			},
			rule: Rule{AuthTypes: signature},
		},
		{
			connectors: []connectors.Connector{connectors.Forte, connectors.Itaubank, connectors.Paybox, connectors.Volt},
			rule:       Rule{AuthTypes: accepts(credentials.MultiAuthKey)},
		},
		{
			connectors: []connectors.Connector{connectors.Cashtocode},
			rule:       Rule{AuthTypes: accepts(credentials.CurrencyAuthKey)},
		},
		{
			connectors: []connectors.Connector{connectors.Mollie, connectors.Nmi},
			rule:       Rule{AuthTypes: accepts(credentials.HeaderKey, credentials.BodyKey)},
		},
		{
			connectors: []connectors.Connector{connectors.Worldpay},
			rule:       Rule{AuthTypes: accepts(credentials.SignatureKey, credentials.BodyKey)},
		},
		{
			connectors: []connectors.Connector{connectors.Paypal},
			rule:       Rule{AuthTypes: accepts(credentials.BodyKey, credentials.SignatureKey, credentials.TemporaryAuth)},
		},
		{
			connectors: []connectors.Connector{connectors.Adyen},
			rule:       Rule{AuthTypes: accepts(credentials.BodyKey, credentials.SignatureKey), Metadata: metadata.Adyen},
		},
		{
			connectors: []connectors.Connector{connectors.Braintree},
			rule:       Rule{AuthTypes: signature, Metadata: metadata.Braintree},
		},
		{
			connectors: []connectors.Connector{connectors.Coinbase},
			rule:       Rule{AuthTypes: header, Metadata: metadata.Coinbase},
		},
		{
			connectors: []connectors.Connector{connectors.Fiserv},
			rule:       Rule{AuthTypes: signature, Metadata: metadata.Fiserv},
		},
		{
			connectors: []connectors.Connector{connectors.Klarna},
			rule:       Rule{AuthTypes: body, Metadata: metadata.Klarna},
		},
		{
			connectors: []connectors.Connector{connectors.Mifinity},
			rule:       Rule{AuthTypes: header, Metadata: metadata.Mifinity},
		},
		{
			connectors: []connectors.Connector{connectors.Gpayments},
			rule:       Rule{AuthTypes: accepts(credentials.CertificateAuth), Metadata: metadata.Gpayments},
		},
		{
			connectors: []connectors.Connector{connectors.Netcetera},
			rule:       Rule{AuthTypes: accepts(credentials.CertificateAuth), Metadata: metadata.Netcetera},
		},
	}
}
