package dispatcher

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"alertbridge/src/model"
)

func TestResolvePrice(t *testing.T) {
	dec := decimal.RequireFromString

	tests := []struct {
		name      string
		orderType string
		alert     float64
		fallback  decimal.Decimal
		offset    model.PriceOffsetPolicy
		want      string
		wantNil   bool
		wantErr   error
	}{
		{
			name:      "market has no price",
			orderType: model.OrderTypeMarket,
			alert:     30000,
			wantNil:   true,
		},
		{
			name:      "limit uses alert price",
			orderType: model.OrderTypeLimit,
			alert:     30000,
			want:      "30000",
		},
		{
			name:      "limit falls back when alert has no price",
			orderType: model.OrderTypeLimit,
			fallback:  dec("28000"),
			want:      "28000",
		},
		{
			name:      "alert price wins over fallback",
			orderType: model.OrderTypeLimit,
			alert:     30000,
			fallback:  dec("28000"),
			want:      "30000",
		},
		{
			name:      "percent offset lowers price",
			orderType: model.OrderTypeLimit,
			alert:     30000,
			offset:    model.PriceOffsetPolicy{Mode: model.PriceOffsetPercent, Value: dec("-1")},
			want:      "29700",
		},
		{
			name:      "percent offset raises price",
			orderType: model.OrderTypeStopLoss,
			alert:     30000,
			offset:    model.PriceOffsetPolicy{Mode: model.PriceOffsetPercent, Value: dec("2")},
			want:      "30600",
		},
		{
			name:      "absolute offset",
			orderType: model.OrderTypeTakeProfit,
			alert:     30000,
			offset:    model.PriceOffsetPolicy{Mode: model.PriceOffsetAbsolute, Value: dec("-150")},
			want:      "29850",
		},
		{
			name:      "no usable price",
			orderType: model.OrderTypeLimit,
			wantErr:   errNoUsablePrice,
		},
		{
			name:      "offset driving price non-positive",
			orderType: model.OrderTypeLimit,
			alert:     100,
			offset:    model.PriceOffsetPolicy{Mode: model.PriceOffsetAbsolute, Value: dec("-100")},
			wantErr:   errors.New("non-positive"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &model.AlertConfig{
				OrderType:     tt.orderType,
				FallbackPrice: tt.fallback,
				PriceOffset:   tt.offset,
			}
			alert := &model.IncomingAlert{Price: tt.alert}

			price, err := resolvePrice(config, alert)

			if tt.wantErr != nil {
				if err == nil {
					t.Fatal("expected error")
				}
				if errors.Is(tt.wantErr, errNoUsablePrice) && !errors.Is(err, errNoUsablePrice) {
					t.Errorf("err = %v, want errNoUsablePrice", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolvePrice: %v", err)
			}
			if tt.wantNil {
				if price != nil {
					t.Errorf("price = %s, want nil", price)
				}
				return
			}
			if price == nil {
				t.Fatal("price = nil, want value")
			}
			if !price.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("price = %s, want %s", price, tt.want)
			}
		})
	}
}

func TestResolveAmountSellFraction(t *testing.T) {
	f := newFixture()
	config := f.store.configs["u1/breakout"]
	config.Side = model.SideSell
	config.Amount = decimal.Zero
	config.AmountFraction = decimal.RequireFromString("0.25")
	f.gateway.balance = decimal.RequireFromString("2") // BTC

	record := f.dispatcher.Dispatch(context.Background(), testAlert())

	if record.Status != model.DispatchStatusExecuted {
		t.Fatalf("status = %q, want executed (detail %q)", record.Status, record.ErrorDetail)
	}
	plan := f.gateway.placed[0]
	if !plan.Amount.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("amount = %s, want 0.5 (2 BTC * 0.25)", plan.Amount)
	}
}

func TestResolveAmountNeitherConfigured(t *testing.T) {
	f := newFixture()
	config := f.store.configs["u1/breakout"]
	config.Amount = decimal.Zero
	config.AmountFraction = decimal.Zero

	record := f.dispatcher.Dispatch(context.Background(), testAlert())

	if record.Status != model.DispatchStatusExchangeError {
		t.Fatalf("status = %q, want exchange_error", record.Status)
	}
	if record.ErrorDetail != errNoUsableAmount.Error() {
		t.Errorf("detail = %q, want %q", record.ErrorDetail, errNoUsableAmount.Error())
	}
}

func TestResolveAmountTruncation(t *testing.T) {
	f := newFixture()
	config := f.store.configs["u1/breakout"]
	config.Amount = decimal.Zero
	config.AmountFraction = decimal.RequireFromString("0.333333")
	f.gateway.balance = decimal.RequireFromString("1000")

	alert := testAlert()
	alert.Price = 30000
	record := f.dispatcher.Dispatch(context.Background(), alert)

	if record.Status != model.DispatchStatusExecuted {
		t.Fatalf("status = %q, want executed (detail %q)", record.Status, record.ErrorDetail)
	}
	plan := f.gateway.placed[0]
	if plan.Amount.Exponent() < -8 {
		t.Errorf("amount %s carries more than 8 decimal places", plan.Amount)
	}
}
