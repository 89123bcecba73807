package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Dispatch statuses. "accepted" marks the pre-submission intent written
// just before the exchange call; every processed alert ends in exactly
// one of the three terminal statuses.
const (
	DispatchStatusAccepted      = "accepted"
	DispatchStatusRejected      = "rejected"
	DispatchStatusExchangeError = "exchange_error"
	DispatchStatusExecuted      = "executed"
)

// Stable, non-secret error details surfaced verbatim by the UI.
const (
	ReasonMalformedPayload     = "malformed_payload"
	ReasonConfigNotFound       = "config_not_found"
	ReasonConfigDisabled       = "config_disabled"
	ReasonConcurrentExecution  = "concurrent_execution"
	ReasonCredentialNotFound   = "credential_not_found"
	ReasonDecryptionFailed     = "decryption_failed"
	ReasonExchangeNotSupported = "exchange_not_supported"
	ReasonInvalidOrder         = "invalid_order"
	ReasonInsufficientFunds    = "insufficient_funds"
	ReasonAuthFailed           = "auth_error"
	ReasonExchangeUnavailable  = "exchange_unavailable"
	ReasonInterruptedShutdown  = "interrupted_shutdown"
	ReasonInternalError        = "internal_error"
)

// DispatchRecord is one row of the execution ledger: the full, immutable
// outcome of processing one alert. Config holds a snapshot of the
// matched configuration (which carries no secret material).
type DispatchRecord struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	Alert  IncomingAlert `json:"alert"`
	Config *AlertConfig  `json:"config,omitempty"`

	Status          string          `json:"status"`
	ExchangeOrderID string          `json:"exchange_order_id,omitempty"`
	FilledAmount    decimal.Decimal `json:"filled_amount"`
	AvgPrice        decimal.Decimal `json:"avg_price"`
	RawStatus       string          `json:"raw_status,omitempty"`
	ErrorDetail     string          `json:"error_detail,omitempty"`

	ReceivedAt  time.Time `json:"received_at"`
	DecidedAt   time.Time `json:"decided_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Terminal reports whether the record reached a final state.
func (r *DispatchRecord) Terminal() bool {
	switch r.Status {
	case DispatchStatusRejected, DispatchStatusExchangeError, DispatchStatusExecuted:
		return true
	}
	return false
}
