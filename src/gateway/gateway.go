package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// Credentials carries decrypted API key material for the duration of a
// single dispatch. It is never persisted, cached, or logged.
type Credentials struct {
	APIKey        string
	APISecret     string
	APIPassphrase string
}

// OrderPlan is a fully resolved order: absolute base amount, explicit
// price for non-market types, and a client order id for idempotent
// tracking on the exchange side.
type OrderPlan struct {
	Symbol        string // unified "BASE/QUOTE" form, e.g. "BTC/USDT"
	Side          string
	OrderType     string
	Amount        decimal.Decimal
	Price         *decimal.Decimal // nil for market orders
	ClientOrderID string
}

// OrderResult is the exchange's answer to a successfully placed order.
type OrderResult struct {
	ExchangeOrderID string
	FilledAmount    decimal.Decimal
	AvgPrice        decimal.Decimal
	RawStatus       string
}

// Gateway is the per-exchange trading capability. Implementations must
// classify every failure into one of the gateway error kinds and must
// not retry internally; retry policy belongs to the dispatcher so that
// attempt counts stay observable and bounded.
type Gateway interface {
	PlaceOrder(ctx context.Context, plan OrderPlan) (*OrderResult, error)
	CancelOrder(ctx context.Context, exchangeOrderID, symbol string) error
	FetchBalance(ctx context.Context, currency string) (decimal.Decimal, error)
}
