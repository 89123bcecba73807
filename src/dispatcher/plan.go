package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"alertbridge/src/gateway"
	"alertbridge/src/model"
)

// Base amounts are truncated to what spot exchanges commonly accept.
const amountPrecision = 8

var (
	errNoUsablePrice  = errors.New("no usable price: alert carried none and the configuration has no fallback")
	errNoUsableAmount = errors.New("configuration sets neither amount nor amount_fraction")
)

// referencePrice is the price used for planning: the alert's own price
// when it carries one, otherwise the configuration fallback.
func referencePrice(config *model.AlertConfig, alert *model.IncomingAlert) (decimal.Decimal, bool) {
	if alert.Price > 0 {
		return decimal.NewFromFloat(alert.Price), true
	}
	if config.FallbackPrice.IsPositive() {
		return config.FallbackPrice, true
	}
	return decimal.Zero, false
}

func applyOffset(price decimal.Decimal, policy model.PriceOffsetPolicy) decimal.Decimal {
	switch policy.Mode {
	case model.PriceOffsetPercent:
		factor := decimal.NewFromInt(1).Add(policy.Value.Div(decimal.NewFromInt(100)))
		return price.Mul(factor).Round(amountPrecision)
	case model.PriceOffsetAbsolute:
		return price.Add(policy.Value)
	}
	return price
}

// resolvePrice computes the limit/trigger price for the order. Market
// orders take none; every other type needs a positive price after the
// configured offset.
func resolvePrice(config *model.AlertConfig, alert *model.IncomingAlert) (*decimal.Decimal, error) {
	if config.OrderType == model.OrderTypeMarket {
		return nil, nil
	}

	price, ok := referencePrice(config, alert)
	if !ok {
		return nil, errNoUsablePrice
	}

	price = applyOffset(price, config.PriceOffset)
	if !price.IsPositive() {
		return nil, fmt.Errorf("price offset produced non-positive price %s", price)
	}
	return &price, nil
}

// resolveAmount computes the base amount to trade. A fixed Amount wins;
// otherwise AmountFraction is applied to the available balance fetched
// from the exchange: the quote balance converted at price for buys, the
// base balance directly for sells.
func (d *Dispatcher) resolveAmount(ctx context.Context, gw gateway.Gateway, config *model.AlertConfig, price *decimal.Decimal, alert *model.IncomingAlert) (decimal.Decimal, error) {
	if config.Amount.IsPositive() {
		return config.Amount, nil
	}
	if !config.AmountFraction.IsPositive() {
		return decimal.Zero, errNoUsableAmount
	}

	base, quote, err := gateway.SplitSymbol(config.Symbol)
	if err != nil {
		return decimal.Zero, err
	}

	balanceCurrency := base
	if config.Side == model.SideBuy {
		balanceCurrency = quote
	}

	var available decimal.Decimal
	err = d.withRetry(ctx, func() error {
		var ferr error
		available, ferr = gw.FetchBalance(ctx, balanceCurrency)
		return ferr
	})
	if err != nil {
		return decimal.Zero, err
	}

	amount := available.Mul(config.AmountFraction)
	if config.Side == model.SideBuy {
		conversion := price
		if conversion == nil {
			ref, ok := referencePrice(config, alert)
			if !ok {
				return decimal.Zero, errNoUsablePrice
			}
			conversion = &ref
		}
		amount = amount.Div(*conversion)
	}

	amount = amount.Truncate(amountPrecision)
	if !amount.IsPositive() {
		return decimal.Zero, gateway.NewInsufficientFunds(config.ExchangeID,
			fmt.Sprintf("available %s %s resolves to zero order size", available, balanceCurrency))
	}
	return amount, nil
}
