package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// BinanceGateway trades spot on Binance through goex. Stop-loss and
// take-profit types are not exposed by the goex spot API and come back
// as invalid orders.
type BinanceGateway struct {
	api goex.API
}

func NewBinanceGateway(creds Credentials) *BinanceGateway {
	apiConfig := &goex.APIConfig{
		HttpClient:   &http.Client{Timeout: GetConfig().HTTPTimeout},
		Endpoint:     binance.GLOBAL_API_BASE_URL,
		ApiKey:       creds.APIKey,
		ApiSecretKey: creds.APISecret,
	}
	return &BinanceGateway{api: binance.NewWithConfig(apiConfig)}
}

func (g *BinanceGateway) currencyPair(symbol string) (goex.CurrencyPair, error) {
	base, quote, err := SplitSymbol(symbol)
	if err != nil {
		return goex.CurrencyPair{}, err
	}
	return goex.NewCurrencyPair(goex.Currency{Symbol: base}, goex.Currency{Symbol: quote}), nil
}

func (g *BinanceGateway) PlaceOrder(ctx context.Context, plan OrderPlan) (*OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyTransportErr(ExchangeBinance, "place_order", err)
	}

	pair, err := g.currencyPair(plan.Symbol)
	if err != nil {
		return nil, newError(KindInvalidOrder, ExchangeBinance, "place_order", err.Error())
	}

	amount := plan.Amount.String()
	price := "0"
	if plan.Price != nil {
		price = plan.Price.String()
	}

	logger.WithFields(logger.Fields{
		"exchange":   ExchangeBinance,
		"symbol":     plan.Symbol,
		"side":       plan.Side,
		"order_type": plan.OrderType,
		"amount":     amount,
	}).Info("Placing Binance order")

	var order *goex.Order
	switch {
	case plan.OrderType == "market" && plan.Side == "buy":
		order, err = g.api.MarketBuy(amount, price, pair)
	case plan.OrderType == "market" && plan.Side == "sell":
		order, err = g.api.MarketSell(amount, price, pair)
	case plan.OrderType == "limit" && plan.Side == "buy":
		order, err = g.api.LimitBuy(amount, price, pair)
	case plan.OrderType == "limit" && plan.Side == "sell":
		order, err = g.api.LimitSell(amount, price, pair)
	default:
		return nil, newError(KindInvalidOrder, ExchangeBinance, "place_order",
			fmt.Sprintf("order type %q/%q not supported by the binance connector", plan.OrderType, plan.Side))
	}
	if err != nil {
		return nil, classifyBinanceErr("place_order", err)
	}

	result := &OrderResult{
		ExchangeOrderID: order.OrderID2,
		FilledAmount:    decimal.NewFromFloat(order.DealAmount),
		AvgPrice:        decimal.NewFromFloat(order.AvgPrice),
		RawStatus:       order.Status.String(),
	}

	logger.WithFields(logger.Fields{
		"exchange":          ExchangeBinance,
		"symbol":            plan.Symbol,
		"exchange_order_id": result.ExchangeOrderID,
		"raw_status":        result.RawStatus,
	}).Info("Binance order placed")

	return result, nil
}

func (g *BinanceGateway) CancelOrder(ctx context.Context, exchangeOrderID, symbol string) error {
	if err := ctx.Err(); err != nil {
		return classifyTransportErr(ExchangeBinance, "cancel_order", err)
	}

	pair, err := g.currencyPair(symbol)
	if err != nil {
		return newError(KindInvalidOrder, ExchangeBinance, "cancel_order", err.Error())
	}

	if _, err := g.api.CancelOrder(exchangeOrderID, pair); err != nil {
		return classifyBinanceErr("cancel_order", err)
	}
	return nil
}

func (g *BinanceGateway) FetchBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, classifyTransportErr(ExchangeBinance, "fetch_balance", err)
	}

	account, err := g.api.GetAccount()
	if err != nil {
		return decimal.Zero, classifyBinanceErr("fetch_balance", err)
	}

	sub, ok := account.SubAccounts[goex.NewCurrency(currency, "")]
	if !ok {
		return decimal.Zero, nil
	}
	return decimal.NewFromFloat(sub.Amount), nil
}

// classifyBinanceErr maps goex/Binance failures onto the taxonomy.
// goex surfaces Binance API errors as strings carrying the numeric
// code, e.g. "-2010 Account has insufficient balance".
func classifyBinanceErr(op string, err error) *Error {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "-1003"),
		strings.Contains(msg, "429"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "request weight"):
		return newError(KindRateLimit, ExchangeBinance, op, err.Error())

	case strings.Contains(msg, "-2014"),
		strings.Contains(msg, "-2015"),
		strings.Contains(msg, "api-key"),
		strings.Contains(msg, "signature for this request is not valid"):
		return newError(KindAuth, ExchangeBinance, op, err.Error())

	case strings.Contains(msg, "-2010"),
		strings.Contains(msg, "insufficient balance"):
		return newError(KindInsufficientFunds, ExchangeBinance, op, err.Error())

	case strings.Contains(msg, "-1013"),
		strings.Contains(msg, "min_notional"),
		strings.Contains(msg, "lot_size"),
		strings.Contains(msg, "filter failure"),
		strings.Contains(msg, "invalid symbol"):
		return newError(KindInvalidOrder, ExchangeBinance, op, err.Error())
	}

	return classifyTransportErr(ExchangeBinance, op, err)
}
