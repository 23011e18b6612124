// Package connectors holds the closed set of payment connectors together with
// the capability tables used to classify them.
package connectors

import (
	"fmt"
	"strings"
)

// Connector names one external integration. Values are the wire names.
type Connector string

const (
	Aci             Connector = "aci"
	Adyen           Connector = "adyen"
	Adyenplatform   Connector = "adyenplatform"
	Airwallex       Connector = "airwallex"
	Authorizedotnet Connector = "authorizedotnet"
	Bambora         Connector = "bambora"
	Bamboraapac     Connector = "bamboraapac"
	Bankofamerica   Connector = "bankofamerica"
	Billwerk        Connector = "billwerk"
	Bitpay          Connector = "bitpay"
	Bluesnap        Connector = "bluesnap"
	Boku            Connector = "boku"
	Braintree       Connector = "braintree"
	Cashtocode      Connector = "cashtocode"
	Checkout        Connector = "checkout"
	Coinbase        Connector = "coinbase"
	Cryptopay       Connector = "cryptopay"
	Cybersource     Connector = "cybersource"
	Datatrans       Connector = "datatrans"
	Dlocal          Connector = "dlocal"
	Ebanx           Connector = "ebanx"
	Fiserv          Connector = "fiserv"
	Forte           Connector = "forte"
	Globalpay       Connector = "globalpay"
	Globepay        Connector = "globepay"
	Gocardless      Connector = "gocardless"
	Gpayments       Connector = "gpayments"
	Helcim          Connector = "helcim"
	Iatapay         Connector = "iatapay"
	Itaubank        Connector = "itaubank"
	Klarna          Connector = "klarna"
	Mifinity        Connector = "mifinity"
	Mollie          Connector = "mollie"
	Multisafepay    Connector = "multisafepay"
	Netcetera       Connector = "netcetera"
	Nexinets        Connector = "nexinets"
	Nmi             Connector = "nmi"
	Noon            Connector = "noon"
	Nuvei           Connector = "nuvei"
	Opennode        Connector = "opennode"
	Paybox          Connector = "paybox"
	Payme           Connector = "payme"
	Payone          Connector = "payone"
	Paypal          Connector = "paypal"
	Payu            Connector = "payu"
	Placetopay      Connector = "placetopay"
	Plaid           Connector = "plaid"
	Powertranz      Connector = "powertranz"
	Prophetpay      Connector = "prophetpay"
	Rapyd           Connector = "rapyd"
	Razorpay        Connector = "razorpay"
	Riskified       Connector = "riskified"
	Shift4          Connector = "shift4"
	Signifyd        Connector = "signifyd"
	Square          Connector = "square"
	Stax            Connector = "stax"
	Stripe          Connector = "stripe"
	Threedsecureio  Connector = "threedsecureio"
	Trustpay        Connector = "trustpay"
	Tsys            Connector = "tsys"
	Volt            Connector = "volt"
	Wellsfargo      Connector = "wellsfargo"
	Wise            Connector = "wise"
	Worldline       Connector = "worldline"
	Worldpay        Connector = "worldpay"
	Zen             Connector = "zen"
	Zsl             Connector = "zsl"

	DummyConnector1 Connector = "phonypay"
	DummyConnector2 Connector = "fauxpay"
	DummyConnector3 Connector = "pretendpay"
	DummyConnector4 Connector = "stripe_test"
	DummyConnector5 Connector = "adyen_test"
	DummyConnector6 Connector = "checkout_test"
	DummyConnector7 Connector = "paypal_test"
)

var allConnectors = []Connector{
	Aci, Adyen, Adyenplatform, Airwallex, Authorizedotnet, Bambora, Bamboraapac,
	Bankofamerica, Billwerk, Bitpay, Bluesnap, Boku, Braintree, Cashtocode, Checkout,
	Coinbase, Cryptopay, Cybersource, Datatrans, Dlocal, Ebanx, Fiserv, Forte,
	Globalpay, Globepay, Gocardless, Gpayments, Helcim, Iatapay, Itaubank, Klarna,
	Mifinity, Mollie, Multisafepay, Netcetera, Nexinets, Nmi, Noon, Nuvei, Opennode,
	Paybox, Payme, Payone, Paypal, Payu, Placetopay, Plaid, Powertranz, Prophetpay,
	Rapyd, Razorpay, Riskified, Shift4, Signifyd, Square, Stax, Stripe, Threedsecureio,
	Trustpay, Tsys, Volt, Wellsfargo, Wise, Worldline, Worldpay, Zen, Zsl,
	DummyConnector1, DummyConnector2, DummyConnector3, DummyConnector4,
	DummyConnector5, DummyConnector6, DummyConnector7,
}

var connectorByName = func() map[string]Connector {
	out := make(map[string]Connector, len(allConnectors))
	for _, c := range allConnectors {
		out[string(c)] = c
	}
	return out
}()

// All returns every known connector in declaration order.
func All() []Connector {
	out := make([]Connector, len(allConnectors))
	copy(out, allConnectors)
	return out
}

// Parse resolves a wire name into a Connector.
func Parse(name string) (Connector, error) {
	c, ok := connectorByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("unknown connector %q", name)
	}
	return c, nil
}

func (c Connector) String() string {
	return string(c)
}

// Valid reports whether c is a member of the enumeration.
func (c Connector) Valid() bool {
	_, ok := connectorByName[string(c)]
	return ok
}

// IsDummy reports whether c is one of the sandbox test connectors.
func (c Connector) IsDummy() bool {
	switch c {
	case DummyConnector1, DummyConnector2, DummyConnector3, DummyConnector4,
		DummyConnector5, DummyConnector6, DummyConnector7:
		return true
	default:
		return false
	}
}

// ValidateDummyEnabled rejects test connectors on deployments where they are off.
func (c Connector) ValidateDummyEnabled(enabled bool) error {
	if c.IsDummy() && !enabled {
		return fmt.Errorf("connector %s is not enabled on this deployment", c)
	}
	return nil
}

func (c *Connector) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
