package gateway

import "fmt"

// Supported exchange ids. Adding an exchange means implementing Gateway
// and registering a builder, never branching inside the dispatcher.
const (
	ExchangeBinance = "binance"
	ExchangeKucoin  = "kucoin"
)

// Factory builds a gateway bound to one user's decrypted credentials.
// A fresh gateway per dispatch keeps stale credentials out of play: the
// original design cached clients by user and kept trading on rotated
// keys.
type Factory interface {
	Gateway(exchangeID string, creds Credentials) (Gateway, error)
}

// Builder constructs one exchange's gateway for the given credentials.
type Builder func(creds Credentials) Gateway

// Registry is a static Factory keyed by exchange id.
type Registry map[string]Builder

func (r Registry) Gateway(exchangeID string, creds Credentials) (Gateway, error) {
	builder, ok := r[exchangeID]
	if !ok {
		return nil, fmt.Errorf("gateway for exchange %q not found", exchangeID)
	}
	return builder(creds), nil
}

// Exchanges lists the registered exchange ids.
func (r Registry) Exchanges() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	return ids
}

// DefaultRegistry wires every supported exchange with its configured
// endpoints.
func DefaultRegistry() Registry {
	config := GetConfig()

	return Registry{
		ExchangeBinance: func(creds Credentials) Gateway {
			return NewBinanceGateway(creds)
		},
		ExchangeKucoin: func(creds Credentials) Gateway {
			return NewKucoinGateway(creds, config.KucoinBaseURL)
		},
	}
}
