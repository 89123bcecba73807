package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

const (
	OrderTypeMarket     = "market"
	OrderTypeLimit      = "limit"
	OrderTypeStopLoss   = "stop_loss"
	OrderTypeTakeProfit = "take_profit"
)

// Price offset modes applied to the alert price for non-market orders.
const (
	PriceOffsetNone     = "none"
	PriceOffsetPercent  = "percent"
	PriceOffsetAbsolute = "absolute"
)

// PriceOffsetPolicy adjusts the price carried by an alert before it is
// used as the limit/trigger price. Percent values are signed percentages
// (e.g. -1 lowers the price by 1%), absolute values are signed quote
// currency amounts.
type PriceOffsetPolicy struct {
	Mode  string          `json:"mode"`
	Value decimal.Decimal `json:"value"`
}

// AlertConfig is a named, user-owned trading rule. Configurations are
// created and edited by the external CRUD layer; the dispatcher only
// reads them. (UserID, Name) uniquely identifies a configuration.
type AlertConfig struct {
	Name       string `json:"name"`
	UserID     string `json:"user_id"`
	ExchangeID string `json:"exchange_id"`
	Symbol     string `json:"symbol"` // e.g. "BTC/USDT"
	Side       string `json:"side"`
	OrderType  string `json:"order_type"`

	// Exactly one of Amount / AmountFraction should be set. Amount is in
	// base units; AmountFraction is a 0..1 share of the available quote
	// balance, converted to base units at the effective price.
	Amount         decimal.Decimal `json:"amount"`
	AmountFraction decimal.Decimal `json:"amount_fraction"`

	PriceOffset PriceOffsetPolicy `json:"price_offset_policy"`

	// FallbackPrice is used for non-market orders when the alert carries
	// no usable price.
	FallbackPrice decimal.Decimal `json:"price"`

	Enabled     bool   `json:"enabled"`
	Description string `json:"description,omitempty"`
}

// IncomingAlert is the transient webhook payload. It is never persisted
// as received; terminal outcomes are recorded as DispatchRecords.
type IncomingAlert struct {
	ConfigName string    `json:"config_name"`
	UserID     string    `json:"user_id"`
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	Message    string    `json:"message,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}
