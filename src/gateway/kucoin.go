package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const kucoinKeyVersion = "2"

// Generic KuCoin response envelope.
type kucoinAPIResponse struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg,omitempty"`
	Data json.RawMessage `json:"data"`
}

type kucoinSpotAccount struct {
	Currency  string `json:"currency"`
	Type      string `json:"type"`
	Balance   string `json:"balance"`
	Available string `json:"available"`
	Holds     string `json:"holds"`
}

type kucoinOrderDetail struct {
	ID        string `json:"id"`
	DealSize  string `json:"dealSize"`
	DealFunds string `json:"dealFunds"`
	IsActive  bool   `json:"isActive"`
}

// KC-API-PASSPHRASE = base64( HMAC_SHA256(apiSecret, apiPassphrase) )
func kucoinSignPassphrase(secret, passphrase string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(passphrase))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// KC-API-SIGN = base64( HMAC_SHA256(apiSecret, timestamp + method + requestPath + body) )
// requestPath includes the query string.
func kucoinSignRequest(secret, timestamp, method, requestPath, body string) string {
	prehash := timestamp + method + requestPath + body
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(prehash))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// KucoinGateway trades spot on KuCoin over signed REST. Unlike the
// Binance connector it covers stop_loss/take_profit through KuCoin's
// stop-order endpoint.
type KucoinGateway struct {
	creds Credentials
	http  *resty.Client
	now   func() time.Time
}

func NewKucoinGateway(creds Credentials, baseURL string) *KucoinGateway {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(GetConfig().HTTPTimeout)

	return &KucoinGateway{
		creds: creds,
		http:  httpClient,
		now:   time.Now,
	}
}

// kucoinSymbol converts "BTC/USDT" into KuCoin's "BTC-USDT".
func kucoinSymbol(symbol string) (string, error) {
	base, quote, err := SplitSymbol(symbol)
	if err != nil {
		return "", err
	}
	return base + "-" + quote, nil
}

// doRequest performs one signed call and decodes the envelope. It never
// retries; the dispatcher owns retry policy.
func (g *KucoinGateway) doRequest(ctx context.Context, op, method, endpoint, query string, body []byte) (*kucoinAPIResponse, error) {
	requestPath := endpoint
	if query != "" {
		requestPath = endpoint + "?" + query
	}

	timestamp := strconv.FormatInt(g.now().UnixMilli(), 10)
	signature := kucoinSignRequest(g.creds.APISecret, timestamp, method, requestPath, string(body))

	req := g.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("KC-API-KEY", g.creds.APIKey).
		SetHeader("KC-API-SIGN", signature).
		SetHeader("KC-API-TIMESTAMP", timestamp).
		SetHeader("KC-API-PASSPHRASE", kucoinSignPassphrase(g.creds.APISecret, g.creds.APIPassphrase)).
		SetHeader("KC-API-KEY-VERSION", kucoinKeyVersion)

	if len(body) > 0 {
		req = req.SetBody(body)
	}

	resp, err := req.Execute(method, requestPath)
	if err != nil {
		return nil, classifyTransportErr(ExchangeKucoin, op, err)
	}

	if resp.StatusCode() == http.StatusTooManyRequests {
		ge := newError(KindRateLimit, ExchangeKucoin, op, "http 429: rate limited")
		if after, parseErr := strconv.Atoi(resp.Header().Get("Retry-After")); parseErr == nil && after > 0 {
			ge.RetryAfter = time.Duration(after) * time.Second
		}
		return nil, ge
	}
	if resp.StatusCode() >= 500 {
		return nil, newError(KindTransient, ExchangeKucoin, op,
			fmt.Sprintf("http %d from kucoin", resp.StatusCode()))
	}

	var apiResp kucoinAPIResponse
	if err := json.Unmarshal(resp.Body(), &apiResp); err != nil {
		return nil, newError(KindTransient, ExchangeKucoin, op, "unreadable kucoin response")
	}

	if apiResp.Code != "200000" {
		return nil, newError(kucoinErrorKind(apiResp.Code), ExchangeKucoin, op,
			fmt.Sprintf("kucoin code=%s msg=%s", apiResp.Code, apiResp.Msg))
	}

	return &apiResp, nil
}

// kucoinErrorKind maps KuCoin business codes onto the taxonomy.
func kucoinErrorKind(code string) ErrorKind {
	switch code {
	case "400003", "400004", "400005", "400006", "400007", "411100":
		return KindAuth
	case "200004":
		return KindInsufficientFunds
	case "400100", "400500", "900001":
		return KindInvalidOrder
	case "429000", "200002":
		return KindRateLimit
	}
	return KindTransient
}

func (g *KucoinGateway) PlaceOrder(ctx context.Context, plan OrderPlan) (*OrderResult, error) {
	symbol, err := kucoinSymbol(plan.Symbol)
	if err != nil {
		return nil, newError(KindInvalidOrder, ExchangeKucoin, "place_order", err.Error())
	}

	payload := map[string]interface{}{
		"clientOid": plan.ClientOrderID,
		"symbol":    symbol,
		"side":      plan.Side,
		"size":      plan.Amount.String(),
	}

	endpoint := "/api/v1/orders"
	switch plan.OrderType {
	case "market":
		payload["type"] = "market"
	case "limit":
		if plan.Price == nil {
			return nil, newError(KindInvalidOrder, ExchangeKucoin, "place_order", "limit order without price")
		}
		payload["type"] = "limit"
		payload["price"] = plan.Price.String()
	case "stop_loss", "take_profit":
		if plan.Price == nil {
			return nil, newError(KindInvalidOrder, ExchangeKucoin, "place_order", "stop order without trigger price")
		}
		endpoint = "/api/v1/stop-order"
		payload["type"] = "market"
		payload["stopPrice"] = plan.Price.String()
		// "loss" triggers at-or-below the stop price, "entry" at-or-above.
		if plan.OrderType == "stop_loss" {
			payload["stop"] = "loss"
		} else {
			payload["stop"] = "entry"
		}
	default:
		return nil, newError(KindInvalidOrder, ExchangeKucoin, "place_order",
			fmt.Sprintf("order type %q not supported", plan.OrderType))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, newError(KindInvalidOrder, ExchangeKucoin, "place_order", "marshal order body: "+err.Error())
	}

	logger.WithFields(logger.Fields{
		"exchange":   ExchangeKucoin,
		"symbol":     symbol,
		"side":       plan.Side,
		"order_type": plan.OrderType,
		"size":       plan.Amount.String(),
	}).Info("Placing KuCoin order")

	resp, err := g.doRequest(ctx, "place_order", http.MethodPost, endpoint, "", body)
	if err != nil {
		return nil, err
	}

	var placed struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(resp.Data, &placed); err != nil || placed.OrderID == "" {
		return nil, newError(KindTransient, ExchangeKucoin, "place_order", "order response without orderId")
	}

	result := &OrderResult{
		ExchangeOrderID: placed.OrderID,
		RawStatus:       "submitted",
	}

	// Best effort fill lookup; market orders usually report deal size
	// immediately. Submission already succeeded, so lookup failures are
	// only logged.
	if detail, derr := g.fetchOrderDetail(ctx, placed.OrderID); derr != nil {
		logger.WithError(derr).WithField("exchange_order_id", placed.OrderID).Debug("KuCoin fill lookup failed")
	} else {
		result.FilledAmount = detail.filled
		result.AvgPrice = detail.avgPrice
		result.RawStatus = detail.rawStatus
	}

	logger.WithFields(logger.Fields{
		"exchange":          ExchangeKucoin,
		"symbol":            symbol,
		"exchange_order_id": result.ExchangeOrderID,
		"raw_status":        result.RawStatus,
	}).Info("KuCoin order placed")

	return result, nil
}

type kucoinFill struct {
	filled    decimal.Decimal
	avgPrice  decimal.Decimal
	rawStatus string
}

func (g *KucoinGateway) fetchOrderDetail(ctx context.Context, orderID string) (*kucoinFill, error) {
	resp, err := g.doRequest(ctx, "get_order", http.MethodGet, "/api/v1/orders/"+orderID, "", nil)
	if err != nil {
		return nil, err
	}

	var detail kucoinOrderDetail
	if err := json.Unmarshal(resp.Data, &detail); err != nil {
		return nil, fmt.Errorf("unmarshal order detail: %w", err)
	}

	fill := &kucoinFill{rawStatus: "open"}
	if !detail.IsActive {
		fill.rawStatus = "done"
	}

	if size, err := decimal.NewFromString(detail.DealSize); err == nil {
		fill.filled = size
		if funds, err := decimal.NewFromString(detail.DealFunds); err == nil && size.IsPositive() {
			fill.avgPrice = funds.Div(size).Round(8)
		}
	}

	return fill, nil
}

func (g *KucoinGateway) CancelOrder(ctx context.Context, exchangeOrderID, symbol string) error {
	_, err := g.doRequest(ctx, "cancel_order", http.MethodDelete, "/api/v1/orders/"+exchangeOrderID, "", nil)
	return err
}

func (g *KucoinGateway) FetchBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	query := "currency=" + strings.ToUpper(currency) + "&type=trade"

	resp, err := g.doRequest(ctx, "fetch_balance", http.MethodGet, "/api/v1/accounts", query, nil)
	if err != nil {
		return decimal.Zero, err
	}

	var accounts []kucoinSpotAccount
	if err := json.Unmarshal(resp.Data, &accounts); err != nil {
		return decimal.Zero, newError(KindTransient, ExchangeKucoin, "fetch_balance", "unreadable accounts response")
	}

	total := decimal.Zero
	for _, account := range accounts {
		available, err := decimal.NewFromString(account.Available)
		if err != nil {
			continue
		}
		total = total.Add(available)
	}

	return total, nil
}
